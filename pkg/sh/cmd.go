// Package sh runs external commands for fwstat's post actions: the
// version-control query and the platform size tool.
package sh

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/yaklabco/fwstat/internal/log"
	"github.com/yaklabco/fwstat/pkg/st"
)

// Exec executes the command, piping its stdout and stderr to the given
// writers. Env is a set of variables added to (and overriding) the current
// process environment. cmd and args may reference variables in $FOO format;
// they are expanded from env first and the process environment second.
// When env carries PATH, the command is looked up along that PATH.
//
// Ran reports if the command ran (rather than was not found or not
// executable). A command that ran but exited non-zero yields an error whose
// ExitStatus is the child's exit code and which wraps the *exec.ExitError.
func Exec(
	ctx context.Context,
	env map[string]string,
	stdin io.Reader,
	stdout, stderr io.Writer,
	cmd string,
	args ...string,
) (bool, error) {
	expand := Expander(env)

	cmd = os.Expand(cmd, expand)
	expanded := make([]string, len(args))
	for i := range args {
		expanded[i] = os.Expand(args[i], expand)
	}

	ran, code, err := run(ctx, env, stdin, stdout, stderr, cmd, expanded...)
	if err == nil {
		return true, nil
	}
	if ran {
		return ran, st.Fatalf(code, `running "%s %s" failed with exit code %d: %w`, cmd, strings.Join(expanded, " "), code, err)
	}
	return ran, fmt.Errorf(`failed to run "%s %s": %w`, cmd, strings.Join(expanded, " "), err)
}

// Output runs the command and returns the text from stdout with the trailing
// newline removed. Stderr is discarded.
func Output(ctx context.Context, env map[string]string, cmd string, args ...string) (string, error) {
	buf := &bytes.Buffer{}
	_, err := Exec(ctx, env, nil, buf, io.Discard, cmd, args...)
	return strings.TrimSuffix(buf.String(), "\n"), err
}

// Expander returns an os.Expand mapping that resolves names from env and
// falls back to the process environment.
func Expander(env map[string]string) func(string) string {
	return func(varName string) string {
		if v, ok := env[varName]; ok {
			return v
		}
		return os.Getenv(varName)
	}
}

func run(
	ctx context.Context,
	env map[string]string,
	stdin io.Reader,
	stdout, stderr io.Writer,
	cmd string,
	args ...string,
) (bool, int, error) {
	if path, ok := env["PATH"]; ok && !strings.ContainsRune(cmd, filepath.Separator) {
		if resolved, err := lookPathIn(cmd, path); err == nil {
			cmd = resolved
		}
	}

	theCmd := exec.CommandContext(ctx, cmd, args...)
	theCmd.Env = os.Environ()
	for k, v := range env {
		theCmd.Env = append(theCmd.Env, k+"="+v)
	}
	theCmd.Stderr = stderr
	theCmd.Stdout = stdout
	theCmd.Stdin = stdin

	quoted := make([]string, 0, len(args))
	for i := range args {
		quoted = append(quoted, fmt.Sprintf("%q", args[i]))
	}
	slog.Debug("exec", slog.String(log.Cmd, cmd), slog.String(log.Args, strings.Join(quoted, " ")))

	err := theCmd.Run()

	return CmdRan(err), ExitStatus(err), err
}

// lookPathIn searches the directories of pathList for an executable file.
func lookPathIn(name, pathList string) (string, error) {
	for _, dir := range filepath.SplitList(pathList) {
		if dir == "" {
			dir = "."
		}
		candidate := filepath.Join(dir, name)
		info, err := os.Stat(candidate)
		if err != nil || info.IsDir() {
			continue
		}
		if info.Mode()&0o111 != 0 {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("%s: %w", name, exec.ErrNotFound)
}

// CmdRan examines the error to determine if it was generated as a result of a
// command running via os/exec.Command. If the error is nil, or the command
// ran (even with a non-zero exit code), CmdRan reports true.
func CmdRan(err error) bool {
	if err == nil {
		return true
	}
	var ee *exec.ExitError
	if errors.As(err, &ee) {
		return ee.Exited()
	}
	return false
}

// ExitStatus returns the exit status of the error if it is an exec.ExitError
// or if it implements ExitStatus() int. 0 if it is nil or 1 otherwise.
func ExitStatus(err error) int {
	if err == nil {
		return 0
	}
	var exit st.ExitStatuser
	if errors.As(err, &exit) {
		return exit.ExitStatus()
	}
	var e *exec.ExitError
	if errors.As(err, &e) {
		if ex, ok := e.Sys().(st.ExitStatuser); ok {
			return ex.ExitStatus()
		}
		return e.ExitCode()
	}
	return 1
}
