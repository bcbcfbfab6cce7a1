// Package domain provides core types shared across the loop runner.
package domain

// ExitCode represents the process exit status of a loop run.
type ExitCode int

const (
	// ExitOK indicates the loop completed or was stopped cleanly.
	ExitOK ExitCode = 0
	// ExitFailed indicates the run stopped because the failure budget was exhausted.
	ExitFailed ExitCode = 1
	// ExitError indicates the run aborted due to a git or environment error.
	ExitError ExitCode = 2
	// ExitInterrupted indicates the run was force-stopped by a second signal.
	ExitInterrupted ExitCode = 130
)

// Int returns the exit code as an int for use with os.Exit.
func (e ExitCode) Int() int {
	return int(e)
}
