package agent

import (
	"context"
	"fmt"
	"io"
	"os/exec"
	"strings"
)

// Compile-time interface check
var _ Agent = (*OpencodeAgent)(nil)

// OpencodeAgent implements the Agent interface for the opencode CLI.
type OpencodeAgent struct {
	model  string
	stream io.Writer
}

// NewOpencodeAgent creates a new OpencodeAgent. Live output is written
// to stream while the agent runs; stream may be nil.
func NewOpencodeAgent(model string, stream io.Writer) *OpencodeAgent {
	return &OpencodeAgent{model: model, stream: stream}
}

// Name returns the agent's identifier.
func (a *OpencodeAgent) Name() string {
	return "opencode"
}

// IsAvailable checks if the opencode CLI is installed and accessible.
func (a *OpencodeAgent) IsAvailable() error {
	if _, err := exec.LookPath("opencode"); err != nil {
		return fmt.Errorf("%w: opencode not found in PATH: %v", ErrUnavailable, err)
	}
	return nil
}

// Run executes 'opencode run <prompt> [-m model]', blocking until the
// agent exits.
func (a *OpencodeAgent) Run(ctx context.Context, prompt string) (*Result, error) {
	args := []string{"run", prompt}
	if a.model != "" {
		args = append(args, "-m", a.model)
	}
	return executeCommand(ctx, executeOptions{
		Command: "opencode",
		Args:    args,
		Stream:  a.stream,
	})
}

// Summarize runs opencode with the prompt and returns its cleaned
// stdout. Live output is not streamed for summary runs.
func (a *OpencodeAgent) Summarize(ctx context.Context, prompt string) (string, error) {
	args := []string{"run", prompt}
	if a.model != "" {
		args = append(args, "-m", a.model)
	}
	result, err := executeCommand(ctx, executeOptions{
		Command: "opencode",
		Args:    args,
	})
	if err != nil {
		return "", err
	}
	return cleanSummaryOutput(result)
}

// cleanSummaryOutput validates a summary invocation result and strips
// markdown code fences the agent may wrap its answer in.
func cleanSummaryOutput(result *Result) (string, error) {
	if !result.Succeeded {
		return "", fmt.Errorf("summary run failed with exit code %d", result.ExitCode)
	}
	text := StripFences(strings.TrimSpace(result.Output))
	if text == "" {
		return "", fmt.Errorf("summary run produced no output")
	}
	return text, nil
}

// StripFences removes a surrounding markdown code block, if present.
func StripFences(s string) string {
	if !strings.HasPrefix(s, "```") || !strings.HasSuffix(s, "```") {
		return s
	}
	lines := strings.Split(s, "\n")
	if len(lines) < 2 {
		return s
	}
	return strings.TrimSpace(strings.Join(lines[1:len(lines)-1], "\n"))
}
