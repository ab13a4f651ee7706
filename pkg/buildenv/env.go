// Package buildenv models the build environment a post-build hook runs in:
// the build variables, the board manifest, the process environment handed
// to child commands, and the post actions attached to build targets.
package buildenv

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"os"
	"sort"
	"time"

	"github.com/gobwas/glob"
	"github.com/samber/lo"

	"github.com/yaklabco/fwstat/config"
	"github.com/yaklabco/fwstat/internal/env"
	"github.com/yaklabco/fwstat/internal/log"
	"github.com/yaklabco/fwstat/pkg/sh"
)

// Build variable names.
const (
	VarBoard          = "BOARD"
	VarSizeTool       = "SIZETOOL"
	VarSizeCheckCmd   = "SIZECHECKCMD"
	VarSizeProgRegexp = "SIZEPROGREGEXP"
	VarSizeDataRegexp = "SIZEDATAREGEXP"
	VarVerbose        = "PIOVERBOSE"
)

// BuildVarNames lists the build variables read from the process environment.
func BuildVarNames() []string {
	return []string{VarBoard, VarSizeTool, VarSizeCheckCmd, VarSizeProgRegexp, VarSizeDataRegexp, VarVerbose}
}

// Action is a callback run after a build target completes.
type Action func(ctx context.Context, target string, sources []string, env *Env) error

type registration struct {
	pattern string
	matcher glob.Glob
	action  Action
}

// Env is the build environment handed to post actions.
type Env struct {
	vars    map[string]string
	process map[string]string
	board   *Board
	stdout  io.Writer
	stderr  io.Writer

	postActions []registration
}

// Option configures an Env.
type Option func(*Env)

// WithVars sets build variables.
func WithVars(vars map[string]string) Option {
	return func(e *Env) {
		maps.Copy(e.vars, vars)
	}
}

// WithProcessEnv replaces the environment child commands run with.
func WithProcessEnv(process map[string]string) Option {
	return func(e *Env) {
		e.process = maps.Clone(process)
	}
}

// WithBoard sets the board manifest.
func WithBoard(board *Board) Option {
	return func(e *Env) {
		e.board = board
	}
}

// WithOutput sets where post actions write their output.
func WithOutput(stdout, stderr io.Writer) Option {
	return func(e *Env) {
		e.stdout = stdout
		e.stderr = stderr
	}
}

// New creates an Env. By default child commands inherit the process
// environment and output goes to os.Stdout / os.Stderr.
func New(opts ...Option) *Env {
	e := &Env{
		vars:    map[string]string{},
		process: env.GetMap(),
		stdout:  os.Stdout,
		stderr:  os.Stderr,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// FromConfig builds an Env from the loaded configuration and the process
// environment. Build variables set in the process environment override
// their configured counterparts.
func FromConfig(cfg *config.Config, process map[string]string, opts ...Option) (*Env, error) {
	vars := lo.OmitByValues(map[string]string{
		VarBoard:          cfg.Board,
		VarSizeTool:       cfg.SizeTool,
		VarSizeCheckCmd:   cfg.SizeCheckCmd,
		VarSizeProgRegexp: cfg.SizeProgRegexp,
		VarSizeDataRegexp: cfg.SizeDataRegexp,
	}, []string{""})
	if cfg.Verbose {
		vars[VarVerbose] = "1"
	}
	for _, name := range BuildVarNames() {
		if v, ok := process[name]; ok && v != "" {
			vars[name] = v
		}
	}

	board := NewBoard(vars[VarBoard], nil)
	if cfg.BoardManifest != "" {
		loaded, err := LoadBoard(cfg.BoardManifest)
		if err != nil {
			return nil, err
		}
		board = loaded
		if _, ok := vars[VarBoard]; !ok {
			vars[VarBoard] = board.ID()
		}
	}
	if cfg.MaxProgramSize > 0 {
		board.Set(KeyMaxProgramSize, cfg.MaxProgramSize)
	}
	if cfg.MaxDataSize > 0 {
		board.Set(KeyMaxDataSize, cfg.MaxDataSize)
	}

	all := append([]Option{WithVars(vars), WithProcessEnv(process), WithBoard(board)}, opts...)
	return New(all...), nil
}

// Get returns a build variable, or "" if unset.
func (e *Env) Get(name string) string {
	return e.vars[name]
}

// Lookup returns a build variable and whether it is set.
func (e *Env) Lookup(name string) (string, bool) {
	v, ok := e.vars[name]
	return v, ok
}

// Replace sets build variables, overwriting existing values.
func (e *Env) Replace(vars map[string]string) {
	maps.Copy(e.vars, vars)
}

// Vars returns a copy of the build variables.
func (e *Env) Vars() map[string]string {
	return maps.Clone(e.vars)
}

// VarNames returns the names of all build variables, sorted.
func (e *Env) VarNames() []string {
	names := lo.Keys(e.vars)
	sort.Strings(names)
	return names
}

// Subst expands $VAR and ${VAR} references, resolving build variables first
// and the child-process environment second.
func (e *Env) Subst(s string) string {
	return os.Expand(s, func(name string) string {
		if v, ok := e.vars[name]; ok {
			return v
		}
		return e.process[name]
	})
}

// ExecEnv returns the environment child commands run with.
func (e *Env) ExecEnv() map[string]string {
	return maps.Clone(e.process)
}

// BoardConfig returns the board manifest; it is never nil.
func (e *Env) BoardConfig() *Board {
	if e.board == nil {
		e.board = NewBoard(e.vars[VarBoard], nil)
	}
	return e.board
}

// Verbose reports whether the build runs in verbose mode (PIOVERBOSE).
func (e *Env) Verbose() bool {
	return env.ParseLevel(e.vars[VarVerbose])
}

// Stdout is where post actions write their report.
func (e *Env) Stdout() io.Writer {
	return e.stdout
}

// Stderr is where post actions write diagnostics.
func (e *Env) Stderr() io.Writer {
	return e.stderr
}

// AddPostAction attaches action to every target whose name matches pattern.
// Patterns use glob syntax; a plain name matches only itself.
func (e *Env) AddPostAction(pattern string, action Action) error {
	matcher, err := glob.Compile(pattern)
	if err != nil {
		return fmt.Errorf("invalid target pattern %q: %w", pattern, err)
	}
	e.postActions = append(e.postActions, registration{pattern: pattern, matcher: matcher, action: action})
	return nil
}

// PostActionCount returns how many post actions would run for target.
func (e *Env) PostActionCount(target string) int {
	return lo.CountBy(e.postActions, func(r registration) bool {
		return r.matcher.Match(target)
	})
}

// RunPostActions runs the post actions matching target in registration order
// and stops at the first failure.
func (e *Env) RunPostActions(ctx context.Context, target string, sources []string) error {
	for _, reg := range e.postActions {
		if !reg.matcher.Match(target) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		start := time.Now()
		slog.Debug("post action starting",
			slog.String(log.Target, target),
			slog.String(log.Pattern, reg.pattern))

		err := reg.action(ctx, target, sources, e)

		slog.Debug("post action completed",
			slog.String(log.Target, target),
			slog.Duration(log.Duration, time.Since(start)),
			slog.Any(log.Error, err))
		if err != nil {
			return err
		}
	}
	return nil
}

// RunCommand runs a command with the child-process environment and returns
// its trimmed stdout.
func (e *Env) RunCommand(ctx context.Context, cmd string, args ...string) (string, error) {
	return sh.Output(ctx, e.ExecEnv(), cmd, args...)
}
