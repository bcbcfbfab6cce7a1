// Package review runs the end-of-cycle review pass: one agent
// invocation over a composed review prompt, followed by a commit when
// the pass changed anything.
package review

import (
	"context"
	"fmt"
	"strings"

	"github.com/richhaase/agent-loop/internal/agent"
	"github.com/richhaase/agent-loop/internal/preset"
	"github.com/richhaase/agent-loop/internal/terminal"
)

// Invoker runs the agent once and reports whether it succeeded.
type Invoker interface {
	Run(ctx context.Context, prompt string) (*agent.Result, error)
}

// Committer is the slice of repository behavior the review pass needs.
type Committer interface {
	IsDirty() (bool, error)
	Commit(message string) (string, error)
}

// Executor runs review cycles against a repository.
type Executor struct {
	Agent  Invoker
	Repo   Committer
	Logger *terminal.Logger
	DryRun bool
}

// BuildPrompt composes a self-contained review prompt from the preset
// description and the review configuration. The prompt carries enough
// context for the agent to scope its review, filter false positives,
// and fix what remains.
func BuildPrompt(p *preset.Preset, cfg *preset.ReviewConfig) string {
	var parts []string

	parts = append(parts, "Task: "+p.Description)
	parts = append(parts, "")
	parts = append(parts, "A cycle of work has been completed. Review and finalize the changes.")
	parts = append(parts, "")
	parts = append(parts, "Use `git diff` to see what was changed. Focus only on changes related to the task above.")
	parts = append(parts, "If there are unrelated modified files, ignore them; do not include them in your review.")
	if len(cfg.ScopeGlobs) > 0 {
		parts = append(parts, fmt.Sprintf("Limit the review to files matching: %s", strings.Join(cfg.ScopeGlobs, ", ")))
	}
	parts = append(parts, "")

	if cfg.CheckPrompt != "" {
		parts = append(parts, "**Review scope:**")
		parts = append(parts, strings.TrimSpace(cfg.CheckPrompt))
		parts = append(parts, "")
	}

	if cfg.FilterPrompt != "" {
		parts = append(parts, "**Before acting, filter your feedback:**")
		parts = append(parts, strings.TrimSpace(cfg.FilterPrompt))
		parts = append(parts, "")
	}

	parts = append(parts, "**Fix:**")
	if cfg.FixPrompt != "" {
		parts = append(parts, strings.TrimSpace(cfg.FixPrompt))
	} else {
		parts = append(parts, "If actionable issues remain after filtering, fix them.")
	}
	parts = append(parts, "")

	parts = append(parts, "Do not commit; leave the fixes in the working tree.")

	return strings.Join(parts, "\n")
}

// RunCycle executes one review pass for the given completed cycle
// number. Agent failure is reported but never fatal: the loop continues
// regardless of review outcome. The returned error covers git failures
// only.
func (e *Executor) RunCycle(ctx context.Context, p *preset.Preset, cycle int) error {
	cfg := p.Review
	if cfg == nil || !cfg.Enabled {
		return nil
	}

	prompt := BuildPrompt(p, cfg)
	e.Logger.Logf(terminal.StylePhase, "review: cycle %d", cycle)

	if e.DryRun {
		e.Logger.Log("dry-run: would invoke agent for review pass", terminal.StyleDim)
		return nil
	}

	result, err := e.Agent.Run(ctx, prompt)
	if err != nil {
		return fmt.Errorf("review agent invocation: %w", err)
	}
	if !result.Succeeded {
		e.Logger.Logf(terminal.StyleWarning, "review: agent exited with code %d, continuing", result.ExitCode)
		return nil
	}

	dirty, err := e.Repo.IsDirty()
	if err != nil {
		return err
	}
	if !dirty {
		e.Logger.Log("review: no changes to commit", terminal.StyleDim)
		return nil
	}

	hash, err := e.Repo.Commit(fmt.Sprintf("[review] cycle %d", cycle))
	if err != nil {
		return fmt.Errorf("review commit: %w", err)
	}
	e.Logger.Logf(terminal.StyleSuccess, "review: committed %s", shortHash(hash))
	return nil
}

func shortHash(h string) string {
	if len(h) > 8 {
		return h[:8]
	}
	return h
}
