package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/richhaase/agent-loop/internal/agent"
	"github.com/richhaase/agent-loop/internal/config"
	"github.com/richhaase/agent-loop/internal/domain"
	"github.com/richhaase/agent-loop/internal/git"
	"github.com/richhaase/agent-loop/internal/loop"
	"github.com/richhaase/agent-loop/internal/terminal"
)

var (
	squashSince   string
	squashMessage string
	squashNoAgent bool
	squashAgent   string
	squashModel   string
)

func newSquashCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "squash",
		Short: "Manually squash commits from a previous run",
		Long: `Squash all commits from --since (exclusive) up to HEAD into a single
commit. Useful after a run that ended without squashing.`,
		Args: cobra.NoArgs,
		RunE: runSquash,
	}

	cmd.Flags().StringVar(&squashSince, "since", "",
		"Commit hash to squash from, exclusive (required)")
	cmd.Flags().StringVarP(&squashMessage, "message", "m", "",
		"Commit message (generated if not specified)")
	cmd.Flags().BoolVar(&squashNoAgent, "no-agent", false,
		"Use the bullet-list message instead of asking the agent")
	cmd.Flags().StringVarP(&squashAgent, "agent", "a", "",
		"Agent CLI for message generation (default: opencode, env: ALOOP_AGENT)")
	cmd.Flags().StringVar(&squashModel, "model", "",
		"Model identifier for message generation (env: ALOOP_MODEL)")
	_ = cmd.MarkFlagRequired("since")

	return cmd
}

func runSquash(cmd *cobra.Command, _ []string) error {
	if !terminal.IsStderrTTY() {
		terminal.DisableColors()
	}
	logger := terminal.NewLogger(false)

	repo, err := git.New(".")
	if err != nil {
		logger.Logf(terminal.StyleError, "%v", err)
		return exitCode(domain.ExitError)
	}

	subjects, err := repo.SubjectsSince(squashSince)
	if err != nil {
		logger.Logf(terminal.StyleError, "%v", err)
		return exitCode(domain.ExitError)
	}
	if len(subjects) == 0 {
		logger.Logf(terminal.StyleError, "no commits found since %s", shortHash(squashSince))
		return exitCode(domain.ExitError)
	}

	message := squashMessage
	if message == "" {
		message = generateSquashMessage(cmd.Context(), repo, subjects, logger)
	}

	logger.Logf(terminal.StyleInfo, "squashing %d commit(s) since %s", len(subjects), shortHash(squashSince))

	hash, err := repo.SquashSince(squashSince, message)
	if err != nil {
		logger.Logf(terminal.StyleError, "%v", err)
		return exitCode(domain.ExitError)
	}

	logger.Logf(terminal.StyleSuccess, "squash complete: %s", shortHash(hash))
	return nil
}

// generateSquashMessage asks the configured agent for a summary of the
// commit range, falling back to the deterministic bullet list.
func generateSquashMessage(ctx context.Context, repo *git.Repo, subjects []string, logger *terminal.Logger) string {
	fallback := loop.FallbackSquashMessage(subjects)
	if squashNoAgent {
		return fallback
	}

	env := config.LoadEnvState()
	name := squashAgent
	if name == "" {
		if env.AgentSet {
			name = env.Agent
		} else {
			name = agent.DefaultAgent
		}
	}
	model := squashModel
	if model == "" && env.ModelSet {
		model = env.Model
	}

	ag, err := agent.New(name, model, nil)
	if err != nil {
		logger.Logf(terminal.StyleWarning, "%v, using fallback message", err)
		return fallback
	}
	if err := ag.IsAvailable(); err != nil {
		logger.Logf(terminal.StyleWarning, "%v, using fallback message", err)
		return fallback
	}

	stat, err := repo.DiffStat(squashSince)
	if err != nil {
		stat = ""
	}
	message, err := ag.Summarize(ctx, loop.SummaryPrompt(subjects, stat))
	if err != nil {
		logger.Logf(terminal.StyleWarning, "message generation failed: %v, using fallback", err)
		return fallback
	}
	return message
}
