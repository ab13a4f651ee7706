// Package sizecheck checks a firmware image against the upload limits of its
// board: it runs the platform size tool, sums the program and data fields
// extracted by the configured regular expressions, prints usage bars and
// fails the build when the program does not fit.
package sizecheck

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/yaklabco/fwstat/internal/log"
	"github.com/yaklabco/fwstat/pkg/buildenv"
	"github.com/yaklabco/fwstat/pkg/sh"
	"github.com/yaklabco/fwstat/pkg/st"
)

// Defaults configured when neither SIZECHECKCMD nor SIZEPROGREGEXP is set.
const (
	DefaultSizeCheckCmd = "$SIZETOOL -B -d $SOURCES"
	DefaultProgRegexp   = `^(\d+)\s+(\d+)\s+\d+\s`
	DefaultDataRegexp   = `^\d+\s+(\d+)\s+(\d+)\s+\d+`
)

// Banner is printed before the usage bars.
const Banner = `Advanced Memory Usage is available via "PlatformIO Home > Project Inspect"`

const (
	blocksPerProgress = 10
	sourcesToken      = "$SOURCES"
)

var (
	// ErrProgramTooLarge is wrapped by the error returned when the program
	// size exceeds the board maximum.
	ErrProgramTooLarge = errors.New("program size exceeds maximum")

	// ErrDataTooLarge is wrapped by the error returned when the data size
	// exceeds the board maximum and the RAM limit is enforced.
	ErrDataTooLarge = errors.New("data size exceeds maximum")

	// ErrNoSources is returned when the size command needs $SOURCES but no
	// source was given.
	ErrNoSources = errors.New("no source file to size")
)

// OverflowError reports a segment that does not fit its board limit. It
// matches ErrProgramTooLarge or ErrDataTooLarge under errors.Is.
type OverflowError struct {
	Segment string
	Size    int64
	Max     int64

	kind error
}

func (e *OverflowError) Error() string {
	return fmt.Sprintf("Error: The %s size (%d bytes) is greater than maximum allowed (%d bytes)",
		e.Segment, e.Size, e.Max)
}

func (e *OverflowError) Unwrap() error {
	return e.kind
}

// Runner runs the size command and returns its stdout. A command that ran
// but exited non-zero must be reported with an error for which sh.CmdRan
// reports true.
type Runner func(ctx context.Context, env *buildenv.Env, cmd string, args ...string) (string, error)

// Options tunes CheckUploadSize.
type Options struct {
	// EnforceRAMLimit fails the check when the data size exceeds the RAM
	// maximum. By default RAM overflow is only reported.
	EnforceRAMLimit bool

	// Runner runs the size command; nil uses DefaultRunner.
	Runner Runner
}

// Report is the outcome of a size check. Sizes are -1 when they could not
// be computed.
type Report struct {
	ProgramSize int64
	ProgramMax  int64
	DataSize    int64
	DataMax     int64

	// Output is the raw size-tool output.
	Output string
}

// ProgramOverflow reports whether the program does not fit in flash.
func (r *Report) ProgramOverflow() bool {
	return r.ProgramSize > r.ProgramMax
}

// DataOverflow reports whether the data segment does not fit in RAM.
func (r *Report) DataOverflow() bool {
	return r.DataMax > 0 && r.DataSize > r.DataMax
}

// CheckUploadSize runs the size check for sources against env's board and
// writes the usage report to out.
//
// It is a silent no-op (nil report, nil error) when no board is set, when
// neither SIZETOOL nor SIZECHECKCMD is set, or when the board has no
// program size limit.
func CheckUploadSize(ctx context.Context, env *buildenv.Env, sources []string, out io.Writer, opts Options) (*Report, error) {
	if env.Get(buildenv.VarBoard) == "" ||
		(env.Get(buildenv.VarSizeTool) == "" && env.Get(buildenv.VarSizeCheckCmd) == "") {
		slog.Debug("size check skipped: no board or size tool")
		return nil, nil //nolint:nilnil // no-op is not an error
	}

	board := env.BoardConfig()
	report := &Report{
		ProgramMax: board.Int(buildenv.KeyMaxProgramSize, 0),
		DataMax:    board.Int(buildenv.KeyMaxDataSize, 0),
	}
	if report.ProgramMax == 0 {
		slog.Debug("size check skipped: board has no program size limit",
			slog.String(log.Board, board.ID()))
		return nil, nil //nolint:nilnil // no-op is not an error
	}

	if env.Get(buildenv.VarSizeCheckCmd) == "" && env.Get(buildenv.VarSizeProgRegexp) == "" {
		configureDefaults(env)
	}

	runner := opts.Runner
	if runner == nil {
		runner = DefaultRunner
	}

	output, err := sizeOutput(ctx, env, sources, runner)
	if err != nil {
		return nil, err
	}
	report.Output = output

	if report.ProgramSize, err = CalculateSize(output, env.Get(buildenv.VarSizeProgRegexp)); err != nil {
		return nil, fmt.Errorf("%s: %w", buildenv.VarSizeProgRegexp, err)
	}
	if report.DataSize, err = CalculateSize(output, env.Get(buildenv.VarSizeDataRegexp)); err != nil {
		return nil, fmt.Errorf("%s: %w", buildenv.VarSizeDataRegexp, err)
	}

	slog.Debug("size check computed",
		slog.Int64(log.ProgSize, report.ProgramSize),
		slog.Int64(log.ProgMax, report.ProgramMax),
		slog.Int64(log.DataSize, report.DataSize),
		slog.Int64(log.DataMax, report.DataMax))

	if err := writeReport(out, report, env.Verbose()); err != nil {
		return report, fmt.Errorf("writing size report: %w", err)
	}

	if report.ProgramOverflow() {
		return report, st.Fatalf(1, "%w", &OverflowError{
			Segment: "program", Size: report.ProgramSize, Max: report.ProgramMax, kind: ErrProgramTooLarge,
		})
	}

	if report.DataOverflow() {
		if opts.EnforceRAMLimit {
			return report, st.Fatalf(1, "%w", &OverflowError{
				Segment: "data", Size: report.DataSize, Max: report.DataMax, kind: ErrDataTooLarge,
			})
		}
		slog.Warn("data size exceeds maximum allowed; not enforced",
			slog.Int64(log.DataSize, report.DataSize),
			slog.Int64(log.DataMax, report.DataMax))
	}

	return report, nil
}

func configureDefaults(env *buildenv.Env) {
	env.Replace(map[string]string{
		buildenv.VarSizeCheckCmd:   DefaultSizeCheckCmd,
		buildenv.VarSizeProgRegexp: DefaultProgRegexp,
		buildenv.VarSizeDataRegexp: DefaultDataRegexp,
	})
}

// sizeOutput runs SIZECHECKCMD and returns its trimmed output, or "" when the
// command is unset or exits non-zero. A command that cannot be started is an
// error.
func sizeOutput(ctx context.Context, env *buildenv.Env, sources []string, runner Runner) (string, error) {
	template := env.Get(buildenv.VarSizeCheckCmd)
	if template == "" {
		return "", nil
	}

	argv, err := expandCommand(env, template, sources)
	if err != nil {
		return "", err
	}
	if len(argv) == 0 {
		return "", nil
	}

	output, err := runner(ctx, env, argv[0], argv[1:]...)
	if err != nil {
		if sh.CmdRan(err) {
			slog.Debug("size command failed", slog.String(log.Cmd, strings.Join(argv, " ")),
				slog.Int(log.ExitCode, sh.ExitStatus(err)))
			return "", nil
		}
		return "", fmt.Errorf("running size command: %w", err)
	}

	return strings.TrimSpace(output), nil
}

// expandCommand splits the command template on whitespace, substitutes the
// first source for $SOURCES and expands build variables in the remaining
// words. A variable that expands to several words (SIZETOOL="fwstat size")
// yields several arguments; a source path is never split.
func expandCommand(env *buildenv.Env, template string, sources []string) ([]string, error) {
	var argv []string
	for _, word := range strings.Fields(template) {
		if strings.Contains(word, sourcesToken) {
			if len(sources) == 0 {
				return nil, ErrNoSources
			}
			argv = append(argv, strings.ReplaceAll(word, sourcesToken, sources[0]))
			continue
		}
		argv = append(argv, strings.Fields(env.Subst(word))...)
	}
	return argv, nil
}

// CalculateSize sums every capture group matched by pattern over the
// non-empty lines of output. It returns -1 when output or pattern is empty.
// The pattern is searched, not anchored, on each trimmed line.
func CalculateSize(output, pattern string) (int64, error) {
	if output == "" || pattern == "" {
		return -1, nil
	}

	re, err := regexp.Compile(pattern)
	if err != nil {
		return -1, fmt.Errorf("compiling size pattern: %w", err)
	}

	var size int64
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		match := re.FindStringSubmatch(line)
		if match == nil {
			continue
		}
		for _, group := range match[1:] {
			if group == "" {
				continue
			}
			value, err := strconv.ParseInt(group, 10, 64)
			if err != nil {
				return -1, fmt.Errorf("size field %q in line %q: %w", group, line, err)
			}
			size += value
		}
	}
	return size, nil
}

// FormatAvailableBytes renders a ten-block usage bar, e.g.
//
//	[==        ]  18.4% (used 24120 bytes from 131072 bytes)
func FormatAvailableBytes(value, total int64) string {
	percent := float64(value) / float64(total)
	usedBlocks := min(int(math.RoundToEven(blocksPerProgress*percent)), blocksPerProgress)
	usedBlocks = max(usedBlocks, 0)

	return fmt.Sprintf("[%-*s] % 5.1f%% (used %d bytes from %d bytes)",
		blocksPerProgress, strings.Repeat("=", usedBlocks), percent*100, value, total)
}

func writeReport(out io.Writer, report *Report, verbose bool) error {
	lines := []string{Banner}
	if report.DataMax > 0 && report.DataSize > -1 {
		lines = append(lines, "RAM:   "+FormatAvailableBytes(report.DataSize, report.DataMax))
	}
	if report.ProgramSize > -1 {
		lines = append(lines, "Flash: "+FormatAvailableBytes(report.ProgramSize, report.ProgramMax))
	}
	if verbose {
		lines = append(lines, report.Output)
	}

	for _, line := range lines {
		if _, err := fmt.Fprintln(out, line); err != nil {
			return err
		}
	}
	return nil
}
