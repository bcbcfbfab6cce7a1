// Package main provides the CLI entry point for the agent iteration loop.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/richhaase/agent-loop/internal/domain"
)

func main() {
	os.Exit(run())
}

func run() int {
	rootCmd := &cobra.Command{
		Use:   "aloop",
		Short: "Drive a coding agent through repeated mode cycles",
		Long: `Run an autonomous coding agent in a loop, cycling through a preset's
modes, committing what each iteration produces, and squashing the run's
commits into one on termination.

Exit codes:
  0 - Run completed or stopped cleanly
  1 - Failure budget exhausted
  2 - Error
  130 - Interrupted`,
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       buildVersionString(),
	}

	rootCmd.SetVersionTemplate("{{.Version}}\n")

	rootCmd.AddCommand(newRunCmd())
	rootCmd.AddCommand(newListCmd())
	rootCmd.AddCommand(newSquashCmd())
	rootCmd.AddCommand(newInitCmd())

	if err := rootCmd.Execute(); err != nil {
		// Check if this is an exit code wrapper (not a real error)
		if exitErr, ok := err.(exitCodeError); ok {
			return exitErr.code.Int()
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return domain.ExitError.Int()
	}

	return 0
}
