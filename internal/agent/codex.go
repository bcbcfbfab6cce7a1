package agent

import (
	"context"
	"fmt"
	"io"
	"os/exec"
	"strings"
)

// Compile-time interface check
var _ Agent = (*CodexAgent)(nil)

// CodexAgent implements the Agent interface for the codex CLI.
type CodexAgent struct {
	model  string
	stream io.Writer
}

// NewCodexAgent creates a new CodexAgent.
func NewCodexAgent(model string, stream io.Writer) *CodexAgent {
	return &CodexAgent{model: model, stream: stream}
}

// Name returns the agent's identifier.
func (a *CodexAgent) Name() string {
	return "codex"
}

// IsAvailable checks if the codex CLI is installed and accessible.
func (a *CodexAgent) IsAvailable() error {
	if _, err := exec.LookPath("codex"); err != nil {
		return fmt.Errorf("%w: codex not found in PATH: %v", ErrUnavailable, err)
	}
	return nil
}

func (a *CodexAgent) args() []string {
	args := []string{"exec", "--color", "never"}
	if a.model != "" {
		args = append(args, "-m", a.model)
	}
	return append(args, "-")
}

// Run executes 'codex exec' with the prompt piped via stdin.
func (a *CodexAgent) Run(ctx context.Context, prompt string) (*Result, error) {
	return executeCommand(ctx, executeOptions{
		Command: "codex",
		Args:    a.args(),
		Stdin:   strings.NewReader(prompt),
		Stream:  a.stream,
	})
}

// Summarize runs codex non-interactively and returns its cleaned output.
func (a *CodexAgent) Summarize(ctx context.Context, prompt string) (string, error) {
	result, err := executeCommand(ctx, executeOptions{
		Command: "codex",
		Args:    a.args(),
		Stdin:   strings.NewReader(prompt),
	})
	if err != nil {
		return "", err
	}
	return cleanSummaryOutput(result)
}
