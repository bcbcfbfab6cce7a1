package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/richhaase/agent-loop/internal/agent"
	"github.com/richhaase/agent-loop/internal/config"
	"github.com/richhaase/agent-loop/internal/domain"
	"github.com/richhaase/agent-loop/internal/git"
	"github.com/richhaase/agent-loop/internal/loop"
	"github.com/richhaase/agent-loop/internal/preset"
	"github.com/richhaase/agent-loop/internal/review"
	"github.com/richhaase/agent-loop/internal/terminal"
)

var (
	runConfigPath      string
	runAgentName       string
	runModel           string
	runMaxIterations   int
	runMaxFailures     int
	runPromptSuffix    string
	runDryRun          bool
	runVerbose         bool
	runNoSquash        bool
	runNoSquashOnFail  bool
	runNoAgentSquash   bool
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run [preset]",
		Short: "Run the iteration loop with a preset",
		Long: `Run the agent loop with a built-in preset or a custom preset file.

Press Ctrl+C to stop the loop after the current iteration finishes; by
default all commits made during the run are squashed into one. Press
Ctrl+C a second time to force an immediate exit.`,
		Args: cobra.MaximumNArgs(1),
		RunE: runLoop,
	}

	// Configuration flags (defaults are resolved via config.Resolve with precedence: flag > env > preset > default)
	cmd.Flags().StringVarP(&runConfigPath, "config", "c", "",
		"Path to a custom preset YAML file")
	cmd.Flags().StringVarP(&runAgentName, "agent", "a", "",
		"Agent CLI to drive: opencode, claude, codex (default: opencode, env: ALOOP_AGENT)")
	cmd.Flags().StringVarP(&runModel, "model", "m", "",
		"Model identifier passed to the agent (env: ALOOP_MODEL)")
	cmd.Flags().IntVarP(&runMaxIterations, "max-iterations", "n", 0,
		"Stop after this many iterations, 0 = unlimited (env: ALOOP_MAX_ITERATIONS)")
	cmd.Flags().IntVar(&runMaxFailures, "max-failures", 0,
		"Stop after this many consecutive agent failures, 0 = unlimited (env: ALOOP_MAX_FAILURES)")
	cmd.Flags().StringVar(&runPromptSuffix, "prompt-suffix", "",
		"Instruction appended to every mode prompt (env: ALOOP_PROMPT_SUFFIX)")
	cmd.Flags().BoolVar(&runDryRun, "dry-run", false,
		"Show what would happen without invoking the agent or touching git")
	cmd.Flags().BoolVarP(&runVerbose, "verbose", "v", false,
		"Stream agent output and print debug messages")
	cmd.Flags().BoolVar(&runNoSquash, "no-squash", false,
		"Don't squash commits on stop (env: ALOOP_SQUASH=false)")
	cmd.Flags().BoolVar(&runNoSquashOnFail, "no-squash-on-failure", false,
		"Don't squash when the failure budget stops the run (env: ALOOP_SQUASH_ON_FAILURE=false)")
	cmd.Flags().BoolVar(&runNoAgentSquash, "no-agent", false,
		"Use the bullet-list squash message instead of asking the agent")

	return cmd
}

func runLoop(cmd *cobra.Command, args []string) error {
	if !terminal.IsStderrTTY() {
		terminal.DisableColors()
	}

	logger := terminal.NewLogger(runVerbose)

	result, err := selectPreset(args)
	if err != nil {
		logger.Logf(terminal.StyleError, "%v", err)
		return exitCode(domain.ExitError)
	}
	for _, w := range result.Warnings {
		logger.Log(w, terminal.StyleWarning)
	}
	p := result.Preset

	settings := config.Resolve(p.Settings, config.LoadEnvState(), runFlagState(cmd), runFlagValues())

	repo, err := git.New(".")
	if err != nil {
		logger.Logf(terminal.StyleError, "%v", err)
		return exitCode(domain.ExitError)
	}

	var stream io.Writer
	if runVerbose {
		stream = os.Stderr
	}
	ag, err := agent.New(settings.Agent, settings.Model, stream)
	if err != nil {
		logger.Logf(terminal.StyleError, "%v", err)
		return exitCode(domain.ExitError)
	}

	runID := uuid.NewString()
	controller := &loop.Controller{
		Preset: p,
		Agent:  ag,
		Repo:   repo,
		Reviewer: &review.Executor{
			Agent:  ag,
			Repo:   repo,
			Logger: logger,
			DryRun: runDryRun,
		},
		Logger: logger,
		Options: loop.Options{
			MaxIterations:   settings.MaxIterations,
			MaxFailures:     settings.MaxFailures,
			Squash:          settings.Squash,
			SquashOnFailure: settings.SquashOnFailure,
			NoAgent:         runNoAgentSquash,
			DryRun:          runDryRun,
			PromptSuffix:    settings.PromptSuffix,
			RunID:           runID,
		},
	}

	logger.Logf(terminal.StyleInfo, "preset %q with %d modes, agent %s (run %s)",
		p.Name, len(p.Modes), settings.Agent, runID[:8])

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// First Ctrl+C requests a cooperative stop so the in-flight
	// iteration can finish and be committed; the second forces exit.
	var interrupted atomic.Bool
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		<-sigCh
		fmt.Fprintln(os.Stderr)
		logger.Log("Interrupt received, stopping after the current iteration (Ctrl+C again to force quit)", terminal.StyleWarning)
		interrupted.Store(true)
		controller.State().RequestStop()
		<-sigCh
		os.Exit(domain.ExitInterrupted.Int())
	}()

	report, err := controller.Run(ctx)
	if err != nil {
		var squashErr *loop.SquashError
		if errors.As(err, &squashErr) {
			logger.Logf(terminal.StyleError, "%v", squashErr)
			logger.Log("Iteration commits are preserved; squash manually with 'aloop squash'", terminal.StyleWarning)
			return exitCode(domain.ExitError)
		}
		logger.Logf(terminal.StyleError, "%v", err)
		return exitCode(domain.ExitError)
	}

	printRunSummary(logger, report)

	switch {
	case report.Status == domain.StatusFailed:
		return exitCode(domain.ExitFailed)
	case interrupted.Load():
		return exitCode(domain.ExitInterrupted)
	default:
		return nil
	}
}

// selectPreset resolves the preset to run: an explicit file, a named
// builtin, or an interactive choice when attached to a terminal.
func selectPreset(args []string) (*preset.LoadResult, error) {
	if runConfigPath != "" {
		return preset.Load(runConfigPath)
	}
	if len(args) > 0 {
		return preset.Find(args[0])
	}

	if !terminal.IsStdinTTY() {
		return nil, fmt.Errorf("a preset name or --config is required (use 'aloop list' to see available presets)")
	}

	infos := preset.List()
	items := make([]terminal.PickerItem, len(infos))
	for i, info := range infos {
		items[i] = terminal.PickerItem{Name: info.Name, Description: info.Description}
	}
	item, ok, err := terminal.PickOne("Select a preset", items)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("no preset selected")
	}
	return preset.Find(item.Name)
}

func runFlagState(cmd *cobra.Command) config.FlagState {
	return config.FlagState{
		AgentSet:          cmd.Flags().Changed("agent"),
		ModelSet:          cmd.Flags().Changed("model"),
		MaxIterationsSet:  cmd.Flags().Changed("max-iterations"),
		MaxFailuresSet:    cmd.Flags().Changed("max-failures"),
		NoSquashSet:       cmd.Flags().Changed("no-squash"),
		NoSquashOnFailSet: cmd.Flags().Changed("no-squash-on-failure"),
		PromptSuffixSet:   cmd.Flags().Changed("prompt-suffix"),
	}
}

func runFlagValues() config.RunSettings {
	return config.RunSettings{
		Agent:           runAgentName,
		Model:           runModel,
		MaxIterations:   runMaxIterations,
		MaxFailures:     runMaxFailures,
		Squash:          !runNoSquash,
		SquashOnFailure: !runNoSquashOnFail,
		PromptSuffix:    runPromptSuffix,
	}
}

func printRunSummary(logger *terminal.Logger, report *domain.RunReport) {
	logger.Banner("run " + string(report.Status))
	logger.Logf(terminal.StyleInfo, "iterations: %d, commits: %d",
		len(report.Iterations), report.CommitCount())
	if report.Squashed {
		logger.Logf(terminal.StyleSuccess, "squashed into %s", shortHash(report.FinalCommit))
	} else if report.CommitCount() > 0 {
		logger.Logf(terminal.StyleInfo, "HEAD at %s", shortHash(report.FinalCommit))
	}
}

func shortHash(h string) string {
	if len(h) > 8 {
		return h[:8]
	}
	return h
}
