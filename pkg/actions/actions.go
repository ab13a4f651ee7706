// Package actions provides the post actions fwstat attaches to build
// targets and the runtime that runs the configured ones.
package actions

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"

	"charm.land/lipgloss/v2"
	"github.com/gobwas/glob"
	"github.com/muesli/reflow/indent"
	"github.com/muesli/reflow/wordwrap"
	"github.com/muesli/reflow/wrap"
	"github.com/samber/lo"

	"github.com/yaklabco/fwstat/config"
	"github.com/yaklabco/fwstat/internal/log"
	"github.com/yaklabco/fwstat/pkg/buildenv"
	"github.com/yaklabco/fwstat/pkg/sizecheck"
	"github.com/yaklabco/fwstat/pkg/status"
	"github.com/yaklabco/fwstat/pkg/ui"
	"github.com/yaklabco/fwstat/pkg/vcs"
)

const (
	envDumpTitle  = "Build environment"
	minValueWidth = 20
	separator     = " = "
)

// Deps are the collaborators post actions use. Zero values fall back to
// the real implementations.
type Deps struct {
	// Config supplies the status file and size-check settings.
	Config *config.Config

	// Dir is the project directory: git runs there and a relative status
	// file is resolved against it. Empty means the working directory.
	Dir string

	// CommitSummary returns the summary of the commit being built.
	CommitSummary func(ctx context.Context, dir string) (string, error)

	// NextVersion returns the next release version.
	NextVersion func() (string, error)

	// SizeRunner runs the size command.
	SizeRunner sizecheck.Runner

	// Width is the column env dumps are wrapped to.
	Width int

	// Styled renders env dumps with colors.
	Styled bool
}

func (d Deps) config() *config.Config {
	if d.Config == nil {
		return config.DefaultConfig()
	}
	return d.Config
}

func (d Deps) commitSummary(ctx context.Context) (string, error) {
	if d.CommitSummary != nil {
		return d.CommitSummary(ctx, d.Dir)
	}
	return vcs.LastCommitSummary(ctx, d.Dir)
}

func (d Deps) nextVersion() (string, error) {
	if d.NextVersion != nil {
		return d.NextVersion()
	}
	return vcs.NextVersion()
}

func (d Deps) sizeOptions() sizecheck.Options {
	return sizecheck.Options{
		EnforceRAMLimit: d.config().EnforceRAMLimit,
		Runner:          d.SizeRunner,
	}
}

func (d Deps) width() int {
	if d.Width > 0 {
		return d.Width
	}
	return ui.TerminalWidth()
}

// Build returns the post action of the given kind configured with args.
func (d Deps) Build(kind Kind, args []string) (buildenv.Action, error) {
	switch kind {
	case KindStatus:
		return d.Status(args), nil
	case KindEnvDump:
		return d.EnvDump(args)
	case KindSizeCheck:
		return d.SizeCheck(), nil
	default:
		return nil, fmt.Errorf("unsupported action %s", kind)
	}
}

// StatusPath returns the status file the status action appends to. A first
// argument overrides the configured file.
func (d Deps) StatusPath(args []string) string {
	path := d.config().StatusFile
	if len(args) > 0 && args[0] != "" {
		path = args[0]
	}
	if path == "" {
		path = config.DefaultStatusFile
	}
	if d.Dir != "" && !filepath.IsAbs(path) {
		path = filepath.Join(d.Dir, path)
	}
	return path
}

// Status records the commit summary and the size report of the build in
// the status file. The block is appended even when the size check fails;
// the failure is returned afterwards.
func (d Deps) Status(args []string) buildenv.Action {
	return func(ctx context.Context, _ string, sources []string, env *buildenv.Env) error {
		path := d.StatusPath(args)
		_, _ = fmt.Fprintf(env.Stdout(), "Generate %s file\n", filepath.Base(path))

		commit, err := d.commitSummary(ctx)
		if err != nil {
			return err
		}

		var report bytes.Buffer
		_, sizeErr := sizecheck.CheckUploadSize(ctx, env, sources, &report, d.sizeOptions())

		if err := status.Append(path, status.NewEntry(commit, report.String())); err != nil {
			return err
		}
		slog.Debug("status recorded",
			slog.String(log.Path, path),
			slog.String(log.Commit, commit))

		return sizeErr
	}
}

// SizeCheck runs the upload-size check and prints the report to the build
// output.
func (d Deps) SizeCheck() buildenv.Action {
	return func(ctx context.Context, _ string, sources []string, env *buildenv.Env) error {
		_, err := sizecheck.CheckUploadSize(ctx, env, sources, env.Stdout(), d.sizeOptions())
		return err
	}
}

// EnvDump prints the commit summary, the build variables, the process
// environment and the board manifest. Arguments are glob patterns that
// restrict the variables printed.
func (d Deps) EnvDump(filters []string) (buildenv.Action, error) {
	matchers := make([]glob.Glob, 0, len(filters))
	for _, filter := range filters {
		matcher, err := glob.Compile(filter)
		if err != nil {
			return nil, fmt.Errorf("invalid variable filter %q: %w", filter, err)
		}
		matchers = append(matchers, matcher)
	}
	keep := func(name string) bool {
		return len(matchers) == 0 || lo.SomeBy(matchers, func(m glob.Glob) bool { return m.Match(name) })
	}

	return func(ctx context.Context, target string, sources []string, env *buildenv.Env) error {
		commit, err := d.commitSummary(ctx)
		if err != nil {
			return err
		}

		header := [][2]string{
			{"COMMIT", commit},
			{"TARGET", target},
			{"SOURCES", strings.Join(sources, " ")},
		}
		if d.config().RecordVersion {
			version, err := d.nextVersion()
			if err != nil {
				slog.Warn("could not compute next version", slog.Any(log.Error, err))
			} else {
				header = append(header, [2]string{"VERSION", version})
			}
		}

		vars := env.ExecEnv()
		for name, value := range env.Vars() {
			vars[name] = value
		}
		board := env.BoardConfig()
		for _, key := range board.Keys() {
			vars["board."+key] = fmt.Sprint(board.Get(key))
		}

		names := lo.Filter(lo.Keys(vars), func(name string, _ int) bool { return keep(name) })
		sort.Strings(names)

		rows := append(header, lo.Map(names, func(name string, _ int) [2]string {
			return [2]string{name, vars[name]}
		})...)

		return d.writeDump(env.Stdout(), rows)
	}, nil
}

func (d Deps) writeDump(out io.Writer, rows [][2]string) error {
	titleStyle, _ := ui.GetBlockStyles()
	keyStyle, valueStyle := ui.GetKeyValueStyles()
	render := func(style lipgloss.Style, text string) string {
		if !d.Styled {
			return text
		}
		return style.Render(text)
	}

	if _, err := fmt.Fprintln(out, render(titleStyle, envDumpTitle)); err != nil {
		return err
	}

	width := d.width()
	for _, row := range rows {
		key, value := row[0], row[1]
		valueWidth := max(minValueWidth, width-len(key)-len(separator))

		wrapped := strings.Split(wrapValue(value, valueWidth), "\n")
		lines := lo.Map(wrapped, func(line string, _ int) string { return render(valueStyle, line) })

		text := render(keyStyle, key) + separator + lines[0]
		if len(lines) > 1 {
			text += "\n" + indent.String(strings.Join(lines[1:], "\n"), uint(len(key)+len(separator)))
		}
		if _, err := fmt.Fprintln(out, text); err != nil {
			return err
		}
	}
	return nil
}

// wrapValue wraps value at spaces, hard-wrapping words longer than width.
// Hyphens are not break points: build flags like -DLED_PIN=13 stay whole.
func wrapValue(value string, width int) string {
	words := wordwrap.NewWriter(width)
	words.Breakpoints = nil
	_, _ = words.Write([]byte(value))
	_ = words.Close()

	return wrap.String(words.String(), width)
}
