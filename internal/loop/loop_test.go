package loop

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/richhaase/agent-loop/internal/agent"
	"github.com/richhaase/agent-loop/internal/domain"
	"github.com/richhaase/agent-loop/internal/preset"
	"github.com/richhaase/agent-loop/internal/terminal"
)

type fakeRepo struct {
	headHash  string
	counter   int
	dirty     bool
	subjects  []string
	branches  map[string]string
	commitErr error
	squashErr error

	squashCalled bool
	squashedMsg  string
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{headHash: "start", branches: map[string]string{}}
}

func (r *fakeRepo) Head() (string, error) { return r.headHash, nil }

func (r *fakeRepo) IsDirty() (bool, error) { return r.dirty, nil }

func (r *fakeRepo) DiffStat(string) (string, error) { return "2 files changed", nil }

func (r *fakeRepo) Commit(message string) (string, error) {
	if r.commitErr != nil {
		return "", r.commitErr
	}
	r.counter++
	r.headHash = fmt.Sprintf("commit-%d", r.counter)
	r.subjects = append(r.subjects, message)
	r.dirty = false
	return r.headHash, nil
}

func (r *fakeRepo) SubjectsSince(string) ([]string, error) {
	return append([]string(nil), r.subjects...), nil
}

func (r *fakeRepo) CreateBranch(name, ref string) error {
	r.branches[name] = ref
	return nil
}

func (r *fakeRepo) SquashSince(base, message string) (string, error) {
	r.squashCalled = true
	if r.squashErr != nil {
		return "", r.squashErr
	}
	r.squashedMsg = message
	r.subjects = []string{message}
	r.headHash = "squash-commit"
	return r.headHash, nil
}

// fakeAgent simulates agent invocations. Each Run consumes the next
// entry of results (true = success) and optionally dirties the repo;
// an exhausted results slice means success.
type fakeAgent struct {
	repo        *fakeRepo
	results     []bool
	dirtyOnRun  bool
	unavailable bool

	runs       []string
	summaryIn  string
	summary    string
	summaryErr error
}

func (a *fakeAgent) Name() string { return "fake" }

func (a *fakeAgent) IsAvailable() error {
	if a.unavailable {
		return agent.ErrUnavailable
	}
	return nil
}

func (a *fakeAgent) Run(_ context.Context, prompt string) (*agent.Result, error) {
	call := len(a.runs)
	a.runs = append(a.runs, prompt)
	succeeded := true
	if call < len(a.results) {
		succeeded = a.results[call]
	}
	if a.dirtyOnRun && a.repo != nil {
		a.repo.dirty = true
	}
	exitCode := 0
	if !succeeded {
		exitCode = 1
	}
	return &agent.Result{Succeeded: succeeded, ExitCode: exitCode}, nil
}

func (a *fakeAgent) Summarize(_ context.Context, prompt string) (string, error) {
	a.summaryIn = prompt
	if a.summaryErr != nil {
		return "", a.summaryErr
	}
	if a.summary == "" {
		return "generated summary", nil
	}
	return a.summary, nil
}

type fakeReviewer struct {
	cycles []int
	err    error
}

func (f *fakeReviewer) RunCycle(_ context.Context, _ *preset.Preset, cycle int) error {
	f.cycles = append(f.cycles, cycle)
	return f.err
}

func modePreset(names ...string) *preset.Preset {
	modes := make([]preset.Mode, len(names))
	for i, n := range names {
		modes[i] = preset.Mode{Name: n, Prompt: "do " + n}
	}
	return &preset.Preset{
		Name:        "test",
		Description: "test preset",
		Modes:       modes,
		Review:      &preset.ReviewConfig{Enabled: true, CheckPrompt: "check"},
	}
}

func newController(p *preset.Preset, a *fakeAgent, r *fakeRepo, opts Options) (*Controller, *fakeReviewer) {
	rev := &fakeReviewer{}
	return &Controller{
		Preset:   p,
		Agent:    a,
		Repo:     r,
		Reviewer: rev,
		Logger:   terminal.NewLoggerTo(&bytes.Buffer{}, false),
		Options:  opts,
	}, rev
}

func TestRoundRobinModeOrder(t *testing.T) {
	repo := newFakeRepo()
	ag := &fakeAgent{repo: repo, dirtyOnRun: true}
	c, _ := newController(modePreset("a", "b", "c"), ag, repo, Options{MaxIterations: 5, NoAgent: true})

	report, err := c.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if report.Status != domain.StatusCompleted {
		t.Errorf("Status = %q, want completed", report.Status)
	}

	wantModes := []string{"a", "b", "c", "a", "b"}
	if len(report.Iterations) != len(wantModes) {
		t.Fatalf("got %d iterations, want %d", len(report.Iterations), len(wantModes))
	}
	for i, want := range wantModes {
		if report.Iterations[i].Mode != want {
			t.Errorf("iteration %d mode = %q, want %q", i, report.Iterations[i].Mode, want)
		}
	}
	if got, want := c.State().ModeIndex, 5%3; got != want {
		t.Errorf("ModeIndex = %d, want %d", got, want)
	}
}

func TestReviewRunsOncePerFullCycle(t *testing.T) {
	repo := newFakeRepo()
	ag := &fakeAgent{repo: repo, dirtyOnRun: true}
	c, rev := newController(modePreset("a", "b"), ag, repo, Options{MaxIterations: 4, NoAgent: true})

	if _, err := c.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(rev.cycles) != 2 || rev.cycles[0] != 1 || rev.cycles[1] != 2 {
		t.Errorf("review cycles = %v, want [1 2]", rev.cycles)
	}
}

func TestNoReviewAfterIncompleteCycle(t *testing.T) {
	repo := newFakeRepo()
	ag := &fakeAgent{repo: repo, dirtyOnRun: true}
	c, rev := newController(modePreset("a", "b"), ag, repo, Options{MaxIterations: 3, NoAgent: true})

	report, err := c.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	wantModes := []string{"a", "b", "a"}
	for i, want := range wantModes {
		if report.Iterations[i].Mode != want {
			t.Errorf("iteration %d mode = %q, want %q", i, report.Iterations[i].Mode, want)
		}
	}
	if len(rev.cycles) != 1 {
		t.Errorf("review cycles = %v, want exactly one after the full cycle", rev.cycles)
	}
}

func TestReviewDisabled(t *testing.T) {
	repo := newFakeRepo()
	ag := &fakeAgent{repo: repo, dirtyOnRun: true}
	p := modePreset("a", "b")
	p.Review = nil
	c, rev := newController(p, ag, repo, Options{MaxIterations: 4, NoAgent: true})

	if _, err := c.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(rev.cycles) != 0 {
		t.Errorf("review should not run when disabled, got %v", rev.cycles)
	}
}

func TestFailureBudgetStopsRun(t *testing.T) {
	repo := newFakeRepo()
	ag := &fakeAgent{repo: repo, results: []bool{false, false, false}}
	c, _ := newController(modePreset("a", "b"), ag, repo, Options{MaxFailures: 2, NoAgent: true})

	report, err := c.Run(context.Background())
	if err != nil {
		t.Fatalf("budget stop should not be an error: %v", err)
	}
	if report.Status != domain.StatusFailed {
		t.Errorf("Status = %q, want failed", report.Status)
	}
	if len(ag.runs) != 2 {
		t.Errorf("agent invoked %d times, want exactly 2", len(ag.runs))
	}
}

func TestConsecutiveFailuresResetOnSuccess(t *testing.T) {
	repo := newFakeRepo()
	ag := &fakeAgent{repo: repo, results: []bool{false, true, false, true}}
	c, _ := newController(modePreset("a", "b"), ag, repo, Options{MaxIterations: 4, MaxFailures: 2, NoAgent: true})

	report, err := c.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if report.Status != domain.StatusCompleted {
		t.Errorf("Status = %q, want completed: alternating failures never exhaust the budget", report.Status)
	}
	if c.State().ConsecutiveFailures != 0 {
		t.Errorf("ConsecutiveFailures = %d, want 0 after final success", c.State().ConsecutiveFailures)
	}
}

func TestCommitAfterFailedInvocation(t *testing.T) {
	repo := newFakeRepo()
	ag := &fakeAgent{repo: repo, dirtyOnRun: true, results: []bool{false}}
	c, _ := newController(modePreset("a"), ag, repo, Options{MaxIterations: 1, NoAgent: true})

	report, err := c.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if !report.Iterations[0].Committed {
		t.Error("partial work from a failed invocation should still be committed")
	}
}

func TestCommitMessagesUseTemplate(t *testing.T) {
	repo := newFakeRepo()
	ag := &fakeAgent{repo: repo, dirtyOnRun: true}
	c, _ := newController(modePreset("tidy"), ag, repo, Options{MaxIterations: 2, Squash: false})

	if _, err := c.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	want := []string{"[tidy] iteration 1", "[tidy] iteration 2"}
	if len(repo.subjects) != 2 {
		t.Fatalf("got %d commits, want 2: %v", len(repo.subjects), repo.subjects)
	}
	for i := range want {
		if repo.subjects[i] != want[i] {
			t.Errorf("commit %d = %q, want %q", i, repo.subjects[i], want[i])
		}
	}
}

func TestSquashFallbackMessageIsBulletList(t *testing.T) {
	repo := newFakeRepo()
	repo.subjects = []string{}
	ag := &fakeAgent{repo: repo}
	c, _ := newController(modePreset("a"), ag, repo, Options{MaxIterations: 0, Squash: true, NoAgent: true})
	c.State().RequestStop()

	repo.subjects = []string{"fix x", "fix y", "fix z"}
	repo.headHash = "commit-3"

	report, err := c.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	want := "- fix x\n- fix y\n- fix z"
	if report.SquashMessage != want {
		t.Errorf("SquashMessage = %q, want %q", report.SquashMessage, want)
	}
	if !report.Squashed {
		t.Error("report should record the squash")
	}
}

func TestSquashUsesAgentSummary(t *testing.T) {
	repo := newFakeRepo()
	ag := &fakeAgent{repo: repo, dirtyOnRun: true, summary: "Tidy internals"}
	c, _ := newController(modePreset("a"), ag, repo, Options{MaxIterations: 2, Squash: true})

	report, err := c.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if report.SquashMessage != "Tidy internals" {
		t.Errorf("SquashMessage = %q, want agent summary", report.SquashMessage)
	}
	if !strings.Contains(ag.summaryIn, "- [a] iteration 1") {
		t.Errorf("summary prompt should list commit subjects, got:\n%s", ag.summaryIn)
	}
}

func TestSquashFallsBackWhenSummaryFails(t *testing.T) {
	repo := newFakeRepo()
	ag := &fakeAgent{repo: repo, dirtyOnRun: true, summaryErr: errors.New("model offline")}
	c, _ := newController(modePreset("a"), ag, repo, Options{MaxIterations: 1, Squash: true})

	report, err := c.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if report.SquashMessage != "- [a] iteration 1" {
		t.Errorf("SquashMessage = %q, want bullet fallback", report.SquashMessage)
	}
}

func TestSquashNoOpWithoutCommits(t *testing.T) {
	repo := newFakeRepo()
	ag := &fakeAgent{repo: repo}
	c, _ := newController(modePreset("a"), ag, repo, Options{MaxIterations: 2, Squash: true, NoAgent: true})

	report, err := c.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if repo.squashCalled {
		t.Error("squash should not run when no commits were made")
	}
	if report.FinalCommit != "start" {
		t.Errorf("FinalCommit = %q, want unchanged HEAD", report.FinalCommit)
	}
}

func TestSquashDisabled(t *testing.T) {
	repo := newFakeRepo()
	ag := &fakeAgent{repo: repo, dirtyOnRun: true}
	c, _ := newController(modePreset("a"), ag, repo, Options{MaxIterations: 2, Squash: false})

	report, err := c.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if repo.squashCalled {
		t.Error("squash should not run when disabled")
	}
	if report.CommitCount() != 2 {
		t.Errorf("CommitCount = %d, want 2", report.CommitCount())
	}
}

func TestSquashSkippedAfterFailureStop(t *testing.T) {
	repo := newFakeRepo()
	ag := &fakeAgent{repo: repo, dirtyOnRun: true, results: []bool{false, false}}
	c, _ := newController(modePreset("a"), ag, repo,
		Options{MaxFailures: 2, Squash: true, SquashOnFailure: false, NoAgent: true})

	report, err := c.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if report.Status != domain.StatusFailed {
		t.Fatalf("Status = %q, want failed", report.Status)
	}
	if repo.squashCalled {
		t.Error("squash should be skipped when SquashOnFailure is off")
	}
}

func TestSquashRunsAfterFailureStopWhenConfigured(t *testing.T) {
	repo := newFakeRepo()
	ag := &fakeAgent{repo: repo, dirtyOnRun: true, results: []bool{false, false}}
	c, _ := newController(modePreset("a"), ag, repo,
		Options{MaxFailures: 2, Squash: true, SquashOnFailure: true, NoAgent: true})

	report, err := c.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if !repo.squashCalled {
		t.Error("squash should still run after a failure stop when configured")
	}
	if report.Status != domain.StatusFailed {
		t.Errorf("Status = %q, want failed even with squash", report.Status)
	}
}

func TestSquashErrorIsDistinct(t *testing.T) {
	repo := newFakeRepo()
	repo.squashErr = errors.New("dirty tree")
	ag := &fakeAgent{repo: repo, dirtyOnRun: true}
	c, _ := newController(modePreset("a"), ag, repo, Options{MaxIterations: 1, Squash: true, NoAgent: true})

	report, err := c.Run(context.Background())
	var squashErr *SquashError
	if !errors.As(err, &squashErr) {
		t.Fatalf("expected *SquashError, got %v", err)
	}
	if squashErr.LastCommit != "commit-1" {
		t.Errorf("LastCommit = %q, want commit-1", squashErr.LastCommit)
	}
	if report == nil || len(report.Iterations) != 1 {
		t.Error("report should survive a squash failure")
	}
}

func TestAgentUnavailableIsFatal(t *testing.T) {
	repo := newFakeRepo()
	ag := &fakeAgent{repo: repo, unavailable: true}
	c, _ := newController(modePreset("a"), ag, repo, Options{MaxIterations: 1, Squash: true})

	_, err := c.Run(context.Background())
	if !errors.Is(err, agent.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
	if repo.squashCalled {
		t.Error("fatal environment error must not attempt squash")
	}
}

func TestCommitErrorIsFatal(t *testing.T) {
	repo := newFakeRepo()
	repo.commitErr = errors.New("index locked")
	ag := &fakeAgent{repo: repo, dirtyOnRun: true}
	c, _ := newController(modePreset("a"), ag, repo, Options{MaxIterations: 3, Squash: true, NoAgent: true})

	_, err := c.Run(context.Background())
	if err == nil {
		t.Fatal("expected fatal error from commit failure")
	}
	if !strings.Contains(err.Error(), "start") {
		t.Errorf("error should name the last good commit, got: %v", err)
	}
	if repo.squashCalled {
		t.Error("fatal git error must not attempt squash")
	}
}

func TestStopRequestedBeforeFirstIteration(t *testing.T) {
	repo := newFakeRepo()
	ag := &fakeAgent{repo: repo}
	c, _ := newController(modePreset("a"), ag, repo, Options{Squash: true, NoAgent: true})
	c.State().RequestStop()

	report, err := c.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if report.Status != domain.StatusStopped {
		t.Errorf("Status = %q, want stopped", report.Status)
	}
	if len(ag.runs) != 0 {
		t.Error("stop before the first step should skip the agent entirely")
	}
}

func TestContextCancellationStopsLoop(t *testing.T) {
	repo := newFakeRepo()
	ag := &fakeAgent{repo: repo}
	c, _ := newController(modePreset("a"), ag, repo, Options{NoAgent: true})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := c.Run(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if report.Status != domain.StatusStopped {
		t.Errorf("Status = %q, want stopped", report.Status)
	}
}

func TestDryRunMakesNoMutations(t *testing.T) {
	repo := newFakeRepo()
	ag := &fakeAgent{repo: repo, dirtyOnRun: true}
	c, _ := newController(modePreset("a", "b"), ag, repo, Options{MaxIterations: 4, Squash: true, DryRun: true})

	report, err := c.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(ag.runs) != 0 {
		t.Error("dry run must not invoke the agent")
	}
	if len(repo.subjects) != 0 || repo.squashCalled {
		t.Error("dry run must not mutate the repository")
	}
	if len(report.Iterations) != 4 {
		t.Errorf("dry run should still report %d planned iterations, got %d", 4, len(report.Iterations))
	}
	if report.FinalCommit != "start" {
		t.Errorf("FinalCommit = %q, want start", report.FinalCommit)
	}
}

func TestBackupBranchCreatedBeforeSquash(t *testing.T) {
	repo := newFakeRepo()
	ag := &fakeAgent{repo: repo, dirtyOnRun: true}
	c, _ := newController(modePreset("a"), ag, repo,
		Options{MaxIterations: 1, Squash: true, NoAgent: true, RunID: "0123456789abcdef"})

	if _, err := c.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	if ref, ok := repo.branches["aloop/backup-01234567"]; !ok {
		t.Error("expected backup branch before squash")
	} else if ref != "commit-1" {
		t.Errorf("backup branch points at %q, want commit-1", ref)
	}
}

func TestReviewEnvironmentErrorIsFatal(t *testing.T) {
	repo := newFakeRepo()
	ag := &fakeAgent{repo: repo, dirtyOnRun: true}
	c, rev := newController(modePreset("a"), ag, repo, Options{MaxIterations: 2, Squash: true, NoAgent: true})
	rev.err = fmt.Errorf("review agent invocation: %w", agent.ErrUnavailable)

	_, err := c.Run(context.Background())
	if !errors.Is(err, agent.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
	if repo.squashCalled {
		t.Error("fatal review error must not attempt squash")
	}
}
