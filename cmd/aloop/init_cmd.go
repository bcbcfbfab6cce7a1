package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

const presetTemplate = `name: %[1]s
description: Add your description here

# File targeting (optional)
files:
  pattern: "**/*.md"
  exclude:
    - "node_modules/**"
    - ".git/**"

# Modes cycle through in order
modes:
  - name: review
    prompt: |
      Review these files for quality and accuracy.

      Files:
      {files}

  - name: refine
    prompt: |
      Refine these files based on the previous review.

      Files:
      {files}

# Optional settings
settings:
  # agent: opencode
  # model: "your-model-here"
  commit_message_template: "[{mode}] iteration {n}"
`

func newInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init <name>",
		Short: "Create a new preset file in the current directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			filename := name + ".yaml"

			if _, err := os.Stat(filename); err == nil {
				return fmt.Errorf("file already exists: %s", filename)
			}

			content := fmt.Sprintf(presetTemplate, name)
			if err := os.WriteFile(filename, []byte(content), 0644); err != nil {
				return fmt.Errorf("failed to write %s: %w", filename, err)
			}

			cmd.Printf("Created preset: %s\n", filename)
			cmd.Printf("Edit the file and run: aloop run --config %s\n", filename)
			return nil
		},
	}
}
