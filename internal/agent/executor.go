package agent

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"syscall"
)

// executeOptions configures one agent CLI invocation.
type executeOptions struct {
	// Command is the CLI executable name (e.g. "opencode", "claude").
	Command string
	// Args are the command-line arguments.
	Args []string
	// Stdin provides input to the command (typically the prompt).
	Stdin io.Reader
	// Stream receives live output while the command runs; may be nil.
	Stream io.Writer
}

// executeCommand runs an agent CLI to completion and captures its
// output. It sets a process group so a context cancellation can kill
// the agent and everything it spawned, and it keeps stderr in the same
// capture buffer as stdout since agent CLIs interleave progress and
// results across both.
//
// A non-zero exit is returned inside Result. Only spawn-level failures
// produce a non-nil error.
func executeCommand(ctx context.Context, opts executeOptions) (*Result, error) {
	if _, err := exec.LookPath(opts.Command); err != nil {
		return nil, fmt.Errorf("%w: %q not found in PATH", ErrUnavailable, opts.Command)
	}

	// #nosec G204 - Command is always one of the known agent CLIs
	// passed from trusted code in the agent implementations, not user input.
	cmd := exec.Command(opts.Command, opts.Args...)

	if opts.Stdin != nil {
		cmd.Stdin = opts.Stdin
	}

	// Set process group for proper signal handling
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	captured := &bytes.Buffer{}
	var sink io.Writer = captured
	if opts.Stream != nil {
		sink = io.MultiWriter(captured, opts.Stream)
	}
	cmd.Stdout = sink
	cmd.Stderr = sink

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("%w: failed to start %s: %v", ErrUnavailable, opts.Command, err)
	}

	// Wait for completion, but kill the process group if the context is
	// canceled so no orphaned agent processes are left behind.
	waitDone := make(chan error, 1)
	go func() {
		waitDone <- cmd.Wait()
	}()

	var waitErr error
	select {
	case <-ctx.Done():
		if cmd.Process != nil {
			_ = syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
		}
		<-waitDone // reap the process
		return &Result{Succeeded: false, ExitCode: -1, Output: captured.String()}, nil
	case waitErr = <-waitDone:
	}

	exitCode := 0
	if waitErr != nil {
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) {
			exitCode = exitErr.ExitCode()
		} else {
			exitCode = -1
		}
	}

	return &Result{
		Succeeded: exitCode == 0,
		ExitCode:  exitCode,
		Output:    captured.String(),
	}, nil
}
