package agent

import (
	"context"
	"fmt"
	"io"
	"os/exec"
	"strings"
)

// Compile-time interface check
var _ Agent = (*ClaudeAgent)(nil)

// ClaudeAgent implements the Agent interface for the claude CLI.
type ClaudeAgent struct {
	model  string
	stream io.Writer
}

// NewClaudeAgent creates a new ClaudeAgent.
func NewClaudeAgent(model string, stream io.Writer) *ClaudeAgent {
	return &ClaudeAgent{model: model, stream: stream}
}

// Name returns the agent's identifier.
func (a *ClaudeAgent) Name() string {
	return "claude"
}

// IsAvailable checks if the claude CLI is installed and accessible.
func (a *ClaudeAgent) IsAvailable() error {
	if _, err := exec.LookPath("claude"); err != nil {
		return fmt.Errorf("%w: claude not found in PATH: %v", ErrUnavailable, err)
	}
	return nil
}

// args builds the common claude invocation: prompt via stdin to avoid
// ARG_MAX limits on long composed prompts.
func (a *ClaudeAgent) args() []string {
	args := []string{"--print"}
	if a.model != "" {
		args = append(args, "--model", a.model)
	}
	return append(args, "-")
}

// Run executes the claude CLI with the prompt piped via stdin.
func (a *ClaudeAgent) Run(ctx context.Context, prompt string) (*Result, error) {
	return executeCommand(ctx, executeOptions{
		Command: "claude",
		Args:    a.args(),
		Stdin:   strings.NewReader(prompt),
		Stream:  a.stream,
	})
}

// Summarize runs claude non-interactively and returns its cleaned output.
func (a *ClaudeAgent) Summarize(ctx context.Context, prompt string) (string, error) {
	result, err := executeCommand(ctx, executeOptions{
		Command: "claude",
		Args:    a.args(),
		Stdin:   strings.NewReader(prompt),
	})
	if err != nil {
		return "", err
	}
	return cleanSummaryOutput(result)
}
