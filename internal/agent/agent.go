// Package agent wraps the external coding-agent CLIs (opencode, claude,
// codex) behind a single interface. An invocation either succeeds or
// fails by exit code; errors are reserved for environment failures such
// as a missing executable, which callers must treat as fatal.
package agent

import (
	"context"
	"errors"
)

// ErrUnavailable wraps "the agent executable cannot be found or
// spawned". Distinct from a failed run, which is reported through
// Result.Succeeded.
var ErrUnavailable = errors.New("agent CLI not available")

// Result contains the outcome of one agent invocation.
type Result struct {
	// Succeeded is true when the agent process exited zero.
	Succeeded bool
	// ExitCode is the process exit code (-1 if it could not be waited on).
	ExitCode int
	// Output is the captured combined stdout/stderr of the agent.
	Output string
}

// Agent drives one external coding-agent CLI.
type Agent interface {
	// Name returns the agent identifier (e.g. "opencode").
	Name() string

	// IsAvailable checks that the agent CLI is installed and reachable.
	IsAvailable() error

	// Run executes the agent with the given prompt, blocking until it
	// exits. A non-zero exit is reported via Result, not an error;
	// a non-nil error means the process could not be started at all.
	Run(ctx context.Context, prompt string) (*Result, error)

	// Summarize runs the agent non-interactively to produce a short
	// text answer (used for squash commit messages). Returns an error
	// when the agent is unavailable, fails, or produces no output.
	Summarize(ctx context.Context, prompt string) (string, error)
}
