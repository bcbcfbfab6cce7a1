// Package git provides the repository operations the iteration loop
// depends on: commit, squash, and history inspection.
package git

import (
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// Repo is a handle to a git working tree. All commands run with the
// repository root as working directory.
type Repo struct {
	Dir string
}

// New resolves the repository containing dir. It fails when dir is not
// inside a git working tree.
func New(dir string) (*Repo, error) {
	cmd := exec.Command("git", "rev-parse", "--show-toplevel")
	cmd.Dir = dir
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("not inside a git repository: %w", err)
	}
	return &Repo{Dir: strings.TrimSpace(string(out))}, nil
}

// git runs a git subcommand in the repository and returns its trimmed
// stdout. Stderr is folded into the error message on failure.
func (r *Repo) git(args ...string) (string, error) {
	cmd := exec.Command("git", args...) //nolint:gosec // args are built from internal call sites
	cmd.Dir = r.Dir
	var stderr strings.Builder
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg != "" {
			return "", fmt.Errorf("git %s: %s: %w", args[0], msg, err)
		}
		return "", fmt.Errorf("git %s: %w", args[0], err)
	}
	return strings.TrimSpace(string(out)), nil
}

// Head returns the full hash of the current HEAD commit.
func (r *Repo) Head() (string, error) {
	hash, err := r.git("rev-parse", "HEAD")
	if err != nil {
		return "", fmt.Errorf("failed to resolve HEAD: %w", err)
	}
	return hash, nil
}

// IsDirty reports whether the working tree has any changes, including
// untracked files.
func (r *Repo) IsDirty() (bool, error) {
	out, err := r.git("status", "--porcelain")
	if err != nil {
		return false, fmt.Errorf("failed to check working tree status: %w", err)
	}
	return out != "", nil
}

// Commit stages everything and creates a commit with the given message,
// returning the new commit hash. It fails if there is nothing to commit.
func (r *Repo) Commit(message string) (string, error) {
	if _, err := r.git("add", "-A"); err != nil {
		return "", fmt.Errorf("failed to stage changes: %w", err)
	}
	if _, err := r.git("commit", "-m", message); err != nil {
		return "", fmt.Errorf("failed to commit: %w", err)
	}
	return r.Head()
}

// IsAncestor reports whether ancestor is reachable from ref.
func (r *Repo) IsAncestor(ancestor, ref string) (bool, error) {
	cmd := exec.Command("git", "merge-base", "--is-ancestor", ancestor, ref) //nolint:gosec // refs come from internal call sites
	cmd.Dir = r.Dir
	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && exitErr.ExitCode() == 1 {
			return false, nil
		}
		return false, fmt.Errorf("failed to check ancestry of %s: %w", ancestor, err)
	}
	return true, nil
}

// SubjectsSince returns the subject line of every commit after base up
// to HEAD, oldest first.
func (r *Repo) SubjectsSince(base string) ([]string, error) {
	out, err := r.git("log", "--reverse", "--format=%s", base+"..HEAD")
	if err != nil {
		return nil, fmt.Errorf("failed to list commits since %s: %w", base, err)
	}
	if out == "" {
		return nil, nil
	}
	return strings.Split(out, "\n"), nil
}

// CountSince returns the number of commits after base up to HEAD.
func (r *Repo) CountSince(base string) (int, error) {
	subjects, err := r.SubjectsSince(base)
	if err != nil {
		return 0, err
	}
	return len(subjects), nil
}

// DiffStat returns a summary of files changed between base and HEAD.
func (r *Repo) DiffStat(base string) (string, error) {
	out, err := r.git("diff", "--stat", base, "HEAD")
	if err != nil {
		return "", fmt.Errorf("failed to diff against %s: %w", base, err)
	}
	return out, nil
}

// CreateBranch creates a branch pointing at ref without checking it out.
func (r *Repo) CreateBranch(name, ref string) error {
	if _, err := r.git("branch", name, ref); err != nil {
		return fmt.Errorf("failed to create branch %s: %w", name, err)
	}
	return nil
}

// SquashSince collapses every commit after base into a single commit
// with the given message and returns the new commit hash. The working
// tree must be clean and base must be an ancestor of HEAD.
func (r *Repo) SquashSince(base, message string) (string, error) {
	dirty, err := r.IsDirty()
	if err != nil {
		return "", err
	}
	if dirty {
		return "", fmt.Errorf("cannot squash with uncommitted changes in the working tree")
	}

	ok, err := r.IsAncestor(base, "HEAD")
	if err != nil {
		return "", err
	}
	if !ok {
		return "", fmt.Errorf("base commit %s is not an ancestor of HEAD", base)
	}

	if _, err := r.git("reset", "--soft", base); err != nil {
		return "", fmt.Errorf("failed to reset to %s: %w", base, err)
	}
	if _, err := r.git("add", "-A"); err != nil {
		return "", fmt.Errorf("failed to stage squashed changes: %w", err)
	}
	if _, err := r.git("commit", "-m", message); err != nil {
		return "", fmt.Errorf("failed to create squash commit: %w", err)
	}
	return r.Head()
}
