package main

import (
	"github.com/spf13/cobra"

	"github.com/richhaase/agent-loop/internal/preset"
)

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List available built-in presets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			infos := preset.List()
			if len(infos) == 0 {
				cmd.Println("No built-in presets found.")
				cmd.Println("Create a preset file and use: aloop run --config <path>")
				return nil
			}

			cmd.Println("Available presets:")
			cmd.Println()
			for _, info := range infos {
				cmd.Println("  " + info.Name)
				if info.Description != "" {
					cmd.Println("    " + info.Description)
				}
				cmd.Println()
			}
			return nil
		},
	}
}
