// Package vcs captures version-control metadata recorded with each build.
package vcs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/caarlos0/svu/v3/pkg/svu"

	"github.com/yaklabco/fwstat/internal/log"
	"github.com/yaklabco/fwstat/pkg/fsutils"
)

// ErrNotGitRepo is returned when the directory is not inside a Git repository.
var ErrNotGitRepo = errors.New("not a git repository")

// GitCmd is the git binary used for all queries.
//
//nolint:gochecknoglobals // overridable for tests
var GitCmd = "git"

// LastCommitSummary returns the one-line summary of the latest commit
// (`git log --oneline -n 1`) of the repository containing dir. If dir is
// empty, the current working directory is used.
//
// A git binary that cannot be run is an error. A git that runs and fails
// (for instance outside a repository) yields an empty summary.
func LastCommitSummary(ctx context.Context, dir string) (string, error) {
	out, err := gitOutput(ctx, dir, "log", "--oneline", "-n", "1")
	if err == nil {
		return out, nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		slog.Warn("git log failed; recording an empty commit line",
			slog.String(log.Dir, dir),
			slog.String(log.Stderr, strings.TrimSpace(string(exitErr.Stderr))))
		return "", nil
	}
	return "", fmt.Errorf("running git: %w", err)
}

// Repo is a Git working tree.
type Repo struct {
	// RootDir is the absolute path to the repository root.
	RootDir string
}

// FindRepo locates the Git repository containing dir.
func FindRepo(ctx context.Context, dir string) (*Repo, error) {
	absDir, err := resolveDir(dir)
	if err != nil {
		return nil, err
	}

	rootDir, err := gitOutput(ctx, absDir, "rev-parse", "--show-toplevel")
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrNotGitRepo, absDir)
	}

	rootDir, err = fsutils.TruePath(rootDir)
	if err != nil {
		return nil, fmt.Errorf("resolving root dir: %w", err)
	}

	return &Repo{RootDir: rootDir}, nil
}

// LastCommitSummary returns the latest commit summary of the repository.
func (r *Repo) LastCommitSummary(ctx context.Context) (string, error) {
	return LastCommitSummary(ctx, r.RootDir)
}

// NextVersion returns the next semantic version tag of the repository in
// the working directory, as computed from its tags and commit messages.
func NextVersion() (string, error) {
	out, err := svu.Next(svu.Always())
	if err != nil {
		return "", fmt.Errorf("svu.Next: %w", err)
	}
	return strings.TrimSpace(out), nil
}

func resolveDir(dir string) (string, error) {
	if dir == "" {
		var err error
		dir, err = os.Getwd()
		if err != nil {
			return "", fmt.Errorf("getting working directory: %w", err)
		}
	}

	absDir, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolving absolute path: %w", err)
	}
	return absDir, nil
}

// gitOutput runs a git command in dir and returns the trimmed stdout.
func gitOutput(ctx context.Context, dir string, args ...string) (string, error) {
	absDir, err := resolveDir(dir)
	if err != nil {
		return "", err
	}

	cmd := exec.CommandContext(ctx, GitCmd, args...)
	cmd.Dir = absDir

	out, err := cmd.Output()
	if err != nil {
		return "", err
	}

	return strings.TrimSpace(string(out)), nil
}
