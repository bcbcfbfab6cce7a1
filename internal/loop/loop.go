// Package loop implements the iteration controller: it drives the
// agent through the preset's modes in order, commits the resulting
// changes, runs review passes on cycle boundaries, and squashes the
// run's commits on termination.
package loop

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/richhaase/agent-loop/internal/agent"
	"github.com/richhaase/agent-loop/internal/domain"
	"github.com/richhaase/agent-loop/internal/preset"
	"github.com/richhaase/agent-loop/internal/terminal"
)

// Repository is the slice of git behavior the controller needs.
type Repository interface {
	Head() (string, error)
	IsDirty() (bool, error)
	Commit(message string) (string, error)
	SquashSince(base, message string) (string, error)
	SubjectsSince(base string) ([]string, error)
	DiffStat(base string) (string, error)
	CreateBranch(name, ref string) error
}

// Reviewer runs one review pass for a completed mode cycle.
type Reviewer interface {
	RunCycle(ctx context.Context, p *preset.Preset, cycle int) error
}

// Options bound and shape a single run.
type Options struct {
	MaxIterations int
	MaxFailures   int
	Squash        bool
	// SquashOnFailure controls whether a failure-budget stop still
	// squashes the commits made so far.
	SquashOnFailure bool
	// NoAgent skips the agent-generated squash message and uses the
	// deterministic bullet-list fallback directly.
	NoAgent      bool
	DryRun       bool
	PromptSuffix string
	RunID        string
}

// State is the controller's mutable run state. It lives in memory for
// one run and is never persisted.
type State struct {
	StartCommit         string
	ModeIndex           int
	Iteration           int
	ConsecutiveFailures int

	stopRequested atomic.Bool
}

// RequestStop asks the controller to stop before its next iteration.
// Safe to call from a signal handler goroutine; the in-flight agent
// invocation is allowed to finish.
func (s *State) RequestStop() {
	s.stopRequested.Store(true)
}

// StopRequested reports whether a cooperative stop is pending.
func (s *State) StopRequested() bool {
	return s.stopRequested.Load()
}

// SquashError reports a failed terminal squash. The run's iteration
// commits are intact on disk, just not collapsed, so callers should
// treat this as degraded success rather than data loss.
type SquashError struct {
	Err        error
	LastCommit string
}

func (e *SquashError) Error() string {
	return fmt.Sprintf("squash failed (commits preserved up to %s): %v", e.LastCommit, e.Err)
}

func (e *SquashError) Unwrap() error { return e.Err }

// Controller owns one run of the iteration loop.
type Controller struct {
	Preset   *preset.Preset
	Agent    agent.Agent
	Repo     Repository
	Reviewer Reviewer
	Logger   *terminal.Logger
	Options  Options

	state State
}

// State exposes the run state for stop requests and inspection.
func (c *Controller) State() *State {
	return &c.state
}

// Run drives the loop until a stop condition is reached and returns a
// report of what happened. A nil error with StatusFailed means the
// failure budget stopped the run; a *SquashError means the iterations
// finished but the terminal squash did not.
func (c *Controller) Run(ctx context.Context) (*domain.RunReport, error) {
	if err := c.Agent.IsAvailable(); err != nil {
		return nil, err
	}

	start, err := c.Repo.Head()
	if err != nil {
		return nil, err
	}
	c.state.StartCommit = start

	report := &domain.RunReport{
		RunID:       c.Options.RunID,
		StartCommit: start,
		FinalCommit: start,
	}

	n := len(c.Preset.Modes)
	for {
		if ctx.Err() != nil {
			c.state.RequestStop()
		}
		if c.state.StopRequested() {
			c.Logger.Log("stop requested, finishing run", terminal.StyleWarning)
			report.Status = domain.StatusStopped
			break
		}
		if c.Options.MaxIterations > 0 && c.state.Iteration >= c.Options.MaxIterations {
			c.Logger.Logf(terminal.StyleInfo, "reached iteration limit (%d)", c.Options.MaxIterations)
			report.Status = domain.StatusCompleted
			break
		}

		mode := c.Preset.Modes[c.state.ModeIndex]
		c.Logger.Banner(fmt.Sprintf("iteration %d: mode %q", c.state.Iteration+1, mode.Name))

		rec, err := c.step(ctx, mode)
		if err != nil {
			return nil, err
		}
		report.Iterations = append(report.Iterations, *rec)

		c.state.Iteration++
		c.state.ModeIndex = (c.state.ModeIndex + 1) % n

		if !rec.AgentSucceeded && c.Options.MaxFailures > 0 &&
			c.state.ConsecutiveFailures >= c.Options.MaxFailures {
			c.Logger.Logf(terminal.StyleError, "%d consecutive failures, stopping", c.state.ConsecutiveFailures)
			report.Status = domain.StatusFailed
			break
		}

		if c.state.ModeIndex == 0 && c.Preset.ReviewEnabled() {
			cycle := c.state.Iteration / n
			if err := c.Reviewer.RunCycle(ctx, c.Preset, cycle); err != nil {
				if errors.Is(err, agent.ErrUnavailable) {
					return nil, err
				}
				return nil, fmt.Errorf("last good commit %s: %w", c.lastCommit(report), err)
			}
		}
	}

	return c.finalize(ctx, report)
}

// step runs one iteration: invoke the agent with the composed prompt,
// then commit whatever it left in the working tree.
func (c *Controller) step(ctx context.Context, mode preset.Mode) (*domain.IterationRecord, error) {
	rec := &domain.IterationRecord{
		Index: c.state.Iteration,
		Mode:  mode.Name,
	}

	prompt := c.Preset.FullPrompt(mode, c.Options.PromptSuffix, c.state.Iteration)

	if c.Options.DryRun {
		c.Logger.Logf(terminal.StyleDim, "dry-run: would invoke %s with mode %q prompt", c.Agent.Name(), mode.Name)
		c.Logger.Logf(terminal.StyleDim, "dry-run: would commit as %q if the tree is dirty",
			c.Preset.CommitMessage(mode.Name, c.state.Iteration))
		rec.AgentSucceeded = true
		c.state.ConsecutiveFailures = 0
		return rec, nil
	}

	result, err := c.Agent.Run(ctx, prompt)
	if err != nil {
		return nil, err
	}

	rec.AgentSucceeded = result.Succeeded
	if result.Succeeded {
		c.state.ConsecutiveFailures = 0
	} else {
		c.state.ConsecutiveFailures++
		c.Logger.Logf(terminal.StyleWarning, "agent exited with code %d (failure %d)", result.ExitCode, c.state.ConsecutiveFailures)
	}

	// Commit partial work even when the agent reported failure.
	dirty, err := c.Repo.IsDirty()
	if err != nil {
		return nil, fmt.Errorf("last good commit %s: %w", c.state.StartCommit, err)
	}
	if dirty {
		msg := c.Preset.CommitMessage(mode.Name, c.state.Iteration)
		hash, err := c.Repo.Commit(msg)
		if err != nil {
			return nil, fmt.Errorf("last good commit %s: %w", c.state.StartCommit, err)
		}
		rec.Committed = true
		rec.CommitHash = hash
		c.Logger.Logf(terminal.StyleSuccess, "committed %s: %s", shortHash(hash), msg)
	} else {
		c.Logger.Log("no changes to commit", terminal.StyleDim)
	}

	return rec, nil
}

// finalize performs the terminal squash and fills in the report's
// final fields.
func (c *Controller) finalize(ctx context.Context, report *domain.RunReport) (*domain.RunReport, error) {
	if c.Options.DryRun {
		if c.Options.Squash {
			c.Logger.Log("dry-run: would squash run commits into one", terminal.StyleDim)
		}
		return report, nil
	}

	head, err := c.Repo.Head()
	if err != nil {
		return report, fmt.Errorf("last good commit %s: %w", c.lastCommit(report), err)
	}
	report.FinalCommit = head

	if !c.Options.Squash {
		return report, nil
	}
	if report.Status == domain.StatusFailed && !c.Options.SquashOnFailure {
		c.Logger.Log("skipping squash after failure stop", terminal.StyleWarning)
		return report, nil
	}

	subjects, err := c.Repo.SubjectsSince(c.state.StartCommit)
	if err != nil {
		return report, &SquashError{Err: err, LastCommit: head}
	}
	if len(subjects) == 0 {
		c.Logger.Log("no commits to squash", terminal.StyleDim)
		return report, nil
	}

	if branch := c.backupBranch(); branch != "" {
		if err := c.Repo.CreateBranch(branch, head); err != nil {
			c.Logger.Logf(terminal.StyleWarning, "could not create backup branch: %v", err)
		} else {
			c.Logger.Debugf("backup branch %s at %s", branch, shortHash(head))
		}
	}

	message := c.squashMessage(ctx, subjects)
	hash, err := c.Repo.SquashSince(c.state.StartCommit, message)
	if err != nil {
		return report, &SquashError{Err: err, LastCommit: head}
	}

	report.Squashed = true
	report.SquashMessage = message
	report.FinalCommit = hash
	c.Logger.Logf(terminal.StyleSuccess, "squashed %d commits into %s", len(subjects), shortHash(hash))
	return report, nil
}

// squashMessage produces the squash commit message: agent-generated
// when allowed, otherwise the deterministic bullet list of subjects.
func (c *Controller) squashMessage(ctx context.Context, subjects []string) string {
	if c.Options.NoAgent {
		return FallbackSquashMessage(subjects)
	}

	message, err := c.Agent.Summarize(ctx, c.summaryPrompt(subjects))
	if err != nil {
		c.Logger.Logf(terminal.StyleWarning, "squash message generation failed: %v", err)
		return FallbackSquashMessage(subjects)
	}
	return message
}

// summaryPrompt builds the agent prompt for the run's squash message.
func (c *Controller) summaryPrompt(subjects []string) string {
	stat, err := c.Repo.DiffStat(c.state.StartCommit)
	if err != nil {
		stat = ""
	}
	return SummaryPrompt(subjects, stat)
}

// SummaryPrompt asks the agent for a commit message covering the given
// commit subjects and optional diff stat.
func SummaryPrompt(subjects []string, diffStat string) string {
	var b strings.Builder
	b.WriteString("Write a git commit message summarizing these changes. Be specific about what was actually changed.\n\n")
	b.WriteString("Individual commits:\n")
	for _, s := range subjects {
		b.WriteString("- " + s + "\n")
	}
	if diffStat != "" {
		b.WriteString("\nFiles changed:\n")
		b.WriteString(diffStat + "\n")
	}
	b.WriteString("\nOutput ONLY the commit message, no preamble, no explanation. ")
	b.WriteString("First line under 72 chars, then blank line, then brief body if needed.")
	return b.String()
}

// FallbackSquashMessage builds a deterministic squash message: one
// bullet per squashed commit subject, in order.
func FallbackSquashMessage(subjects []string) string {
	lines := make([]string, len(subjects))
	for i, s := range subjects {
		lines[i] = "- " + s
	}
	return strings.Join(lines, "\n")
}

func (c *Controller) backupBranch() string {
	if c.Options.RunID == "" {
		return ""
	}
	id := c.Options.RunID
	if len(id) > 8 {
		id = id[:8]
	}
	return "aloop/backup-" + id
}

func (c *Controller) lastCommit(report *domain.RunReport) string {
	for i := len(report.Iterations) - 1; i >= 0; i-- {
		if report.Iterations[i].Committed {
			return report.Iterations[i].CommitHash
		}
	}
	return c.state.StartCommit
}

func shortHash(h string) string {
	if len(h) > 8 {
		return h[:8]
	}
	return h
}
