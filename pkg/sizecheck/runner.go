package sizecheck

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/yaklabco/fwstat/pkg/buildenv"
	"github.com/yaklabco/fwstat/pkg/elfsize"
)

// BuiltinSizeTool names the in-process ELF size reader. Set SIZETOOL to it to
// size firmware without binutils.
const BuiltinSizeTool = "builtin"

// DefaultRunner runs the size command with env's child-process environment,
// or the built-in ELF reader when the command is BuiltinSizeTool.
func DefaultRunner(ctx context.Context, env *buildenv.Env, cmd string, args ...string) (string, error) {
	if cmd == BuiltinSizeTool {
		return RunBuiltin(args)
	}
	return env.RunCommand(ctx, cmd, args...)
}

// RunBuiltin emulates `size` for the flags fwstat's default command uses:
// -B (Berkeley format, the only one supported), -d, -o, -x and -t.
func RunBuiltin(args []string) (string, error) {
	radix := elfsize.Decimal
	totals := false
	var files []string

	for _, arg := range args {
		switch {
		case arg == "-B" || arg == "--format=berkeley":
		case arg == "-d" || arg == "--radix=10":
			radix = elfsize.Decimal
		case arg == "-o" || arg == "--radix=8":
			radix = elfsize.Octal
		case arg == "-x" || arg == "--radix=16":
			radix = elfsize.Hex
		case arg == "-t" || arg == "--totals":
			totals = true
		case strings.HasPrefix(arg, "-"):
			return "", fmt.Errorf("builtin size: unsupported flag %q", arg)
		default:
			files = append(files, arg)
		}
	}
	if len(files) == 0 {
		return "", fmt.Errorf("builtin size: %w", ErrNoSources)
	}

	all := make([]elfsize.Sizes, 0, len(files))
	for _, file := range files {
		sizes, err := elfsize.Read(file)
		if err != nil {
			return "", err
		}
		all = append(all, sizes)
	}

	var buf bytes.Buffer
	if err := elfsize.WriteBerkeley(&buf, all, radix, totals); err != nil {
		return "", err
	}
	return buf.String(), nil
}
