package vcs

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
)

// initRepo creates a repository with a single commit and returns its path.
func initRepo(t *testing.T, message string) string {
	t.Helper()

	tmpDir, err := filepath.EvalSymlinks(t.TempDir())
	if err != nil {
		t.Fatalf("EvalSymlinks failed: %v", err)
	}

	run := func(args ...string) {
		t.Helper()
		cmd := exec.Command("git", args...)
		cmd.Dir = tmpDir
		cmd.Env = append(os.Environ(),
			"GIT_AUTHOR_NAME=fwstat", "GIT_AUTHOR_EMAIL=fwstat@example.com",
			"GIT_COMMITTER_NAME=fwstat", "GIT_COMMITTER_EMAIL=fwstat@example.com")
		if out, err := cmd.CombinedOutput(); err != nil {
			t.Fatalf("git %v failed: %v\n%s", args, err, out)
		}
	}

	run("init")
	if err := os.WriteFile(filepath.Join(tmpDir, "main.cpp"), []byte("void setup() {}\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	run("add", "main.cpp")
	run("-c", "commit.gpgsign=false", "commit", "-m", message)

	return tmpDir
}

func TestLastCommitSummary(t *testing.T) {
	t.Parallel()

	dir := initRepo(t, "Add blink sketch")

	summary, err := LastCommitSummary(context.Background(), dir)
	if err != nil {
		t.Fatalf("LastCommitSummary() error = %v", err)
	}

	hash, subject, ok := strings.Cut(summary, " ")
	if !ok || subject != "Add blink sketch" {
		t.Errorf("summary = %q, want \"<hash> Add blink sketch\"", summary)
	}
	if len(hash) < 7 {
		t.Errorf("abbreviated hash %q is too short", hash)
	}
}

func TestLastCommitSummary_NotARepo(t *testing.T) {
	t.Parallel()

	summary, err := LastCommitSummary(context.Background(), t.TempDir())
	if err != nil {
		t.Fatalf("LastCommitSummary() error = %v, want nil", err)
	}
	if summary != "" {
		t.Errorf("summary = %q, want empty", summary)
	}
}

func TestLastCommitSummary_MissingGit(t *testing.T) {
	orig := GitCmd
	GitCmd = "fwstat-no-such-git"
	t.Cleanup(func() { GitCmd = orig })

	_, err := LastCommitSummary(context.Background(), t.TempDir())
	if err == nil {
		t.Fatal("LastCommitSummary() error = nil, want error for missing git")
	}
	if !errors.Is(err, exec.ErrNotFound) {
		t.Errorf("error = %v, want wrapping exec.ErrNotFound", err)
	}
}

func TestFindRepo_Subdirectory(t *testing.T) {
	t.Parallel()

	dir := initRepo(t, "Initial commit")
	subDir := filepath.Join(dir, "src", "drivers")
	if err := os.MkdirAll(subDir, 0o755); err != nil {
		t.Fatal(err)
	}

	repo, err := FindRepo(context.Background(), subDir)
	if err != nil {
		t.Fatalf("FindRepo() error = %v", err)
	}
	if repo.RootDir != dir {
		t.Errorf("RootDir = %q, want %q", repo.RootDir, dir)
	}

	summary, err := repo.LastCommitSummary(context.Background())
	if err != nil || !strings.HasSuffix(summary, "Initial commit") {
		t.Errorf("LastCommitSummary() = %q, %v", summary, err)
	}
}

func TestFindRepo_NotARepo(t *testing.T) {
	t.Parallel()

	_, err := FindRepo(context.Background(), t.TempDir())
	if !errors.Is(err, ErrNotGitRepo) {
		t.Errorf("FindRepo() error = %v, want %v", err, ErrNotGitRepo)
	}
}
