package main

import (
	"fmt"
	"runtime/debug"

	"github.com/richhaase/agent-loop/internal/domain"
)

// version is set via -ldflags at release build time.
var version = "dev"

func buildVersionString() string {
	if version != "dev" {
		return version
	}
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" && info.Main.Version != "(devel)" {
		return info.Main.Version
	}
	return version
}

// exitCodeError is a wrapper type for returning exit codes via error interface.
type exitCodeError struct {
	code domain.ExitCode
}

func (e exitCodeError) Error() string {
	switch e.code {
	case domain.ExitFailed:
		return "run stopped after repeated agent failures"
	case domain.ExitError:
		return "run failed with error"
	case domain.ExitInterrupted:
		return "run was interrupted"
	default:
		return fmt.Sprintf("exit code %d", e.code)
	}
}

func exitCode(code domain.ExitCode) error {
	if code == domain.ExitOK {
		return nil
	}
	return exitCodeError{code: code}
}
