package actions

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/yaklabco/fwstat/config"
	"github.com/yaklabco/fwstat/internal/log"
	"github.com/yaklabco/fwstat/pkg/buildenv"
	"github.com/yaklabco/fwstat/pkg/st"
)

// EnvHooks is the environment variable that disables post actions when set to 0.
const EnvHooks = "FWSTAT_HOOKS"

// Runtime runs the post actions configured for a build target.
type Runtime struct {
	// Deps are handed to every action; Deps.Config holds the post_actions table.
	Deps Deps

	// Stderr is where failure summaries are written.
	Stderr io.Writer
}

// RunResult holds the outcome of running the post actions of a target.
type RunResult struct {
	// Target is the build target the actions ran after.
	Target string

	// Actions contains the results for each action that was executed.
	Actions []ActionResult

	// ExitCode is the overall exit code (0 for success, first non-zero for failure).
	ExitCode int

	// TotalTime is the total duration of the post actions.
	TotalTime time.Duration

	// Disabled is true if post actions were disabled via environment variable.
	Disabled bool

	err error
}

// ActionResult holds the result of running a single post action.
type ActionResult struct {
	// Name is the action name.
	Name string

	// Pattern is the post_actions key the action was configured under.
	Pattern string

	// Args are the configured arguments.
	Args []string

	// ExitCode is the exit status the action's error carries.
	ExitCode int

	// Duration is how long the action took to run.
	Duration time.Duration

	// Error is the action's error, if any.
	Error error
}

// Success returns true if the action completed successfully.
func (r ActionResult) Success() bool {
	return r.ExitCode == 0 && r.Error == nil
}

// Success returns true if every action passed or post actions were disabled.
func (r RunResult) Success() bool {
	return r.ExitCode == 0
}

// Err returns the failure of the run as an error carrying its exit code,
// or nil when the run succeeded.
func (r RunResult) Err() error {
	if r.Success() {
		return nil
	}
	for _, action := range r.Actions {
		if !action.Success() {
			return st.Fatalf(r.ExitCode, "post action %s failed for target %s: %w", action.Name, r.Target, action.Error)
		}
	}
	return st.Fatalf(r.ExitCode, "post actions failed for target %s: %w", r.Target, r.err)
}

// NewRuntime creates a Runtime for cfg writing to os.Stderr.
func NewRuntime(cfg *config.Config) *Runtime {
	return &Runtime{
		Deps:   Deps{Config: cfg},
		Stderr: os.Stderr,
	}
}

// Run attaches the configured post actions to env and runs those matching
// target. env should be fresh: actions registered by an earlier Run would
// run again.
//
// Behavior:
//   - If FWSTAT_HOOKS=0, returns immediately with success (Disabled=true).
//   - Actions configured under the exact target name run first, then those
//     configured under glob patterns, in pattern order.
//   - Actions run sequentially and the first failure stops the run.
//
// The returned error reports configuration problems; action failures are
// reported through the result.
func (r *Runtime) Run(ctx context.Context, env *buildenv.Env, target string, sources []string) (*RunResult, error) {
	startTime := time.Now()
	result := &RunResult{
		Target:  target,
		Actions: []ActionResult{},
	}

	if IsHooksDisabled() {
		slog.Debug("post actions disabled via environment",
			slog.String(log.Target, target),
			slog.String("env", EnvHooks))
		result.Disabled = true
		result.TotalTime = time.Since(startTime)
		if r.Stderr != nil {
			_, _ = fmt.Fprintf(r.Stderr, "fwstat: post actions disabled (%s=0)\n", EnvHooks)
		}
		return result, nil
	}

	if err := r.register(env, result); err != nil {
		return nil, err
	}

	count := env.PostActionCount(target)
	if count == 0 {
		slog.Debug("no post actions for target", slog.String(log.Target, target))
		result.TotalTime = time.Since(startTime)
		return result, nil
	}

	slog.Debug("post actions starting",
		slog.String(log.Target, target),
		slog.Int(log.TargetsNum, count))

	err := env.RunPostActions(ctx, target, sources)
	result.TotalTime = time.Since(startTime)
	if err != nil {
		result.ExitCode = st.ExitStatus(err)
		result.err = err
		if r.Stderr != nil {
			_, _ = fmt.Fprintf(r.Stderr, "fwstat: post actions for %s failed (exit %d)\n", target, result.ExitCode)
		}
		return result, nil
	}

	if r.Deps.config().Verbose {
		log.SimpleConsoleLogger.Printf("Post actions completed: %s (%d actions, %v)",
			target, len(result.Actions), result.TotalTime)
	}
	return result, nil
}

// register attaches every configured action to env, wrapped so that its
// outcome is recorded in result.
func (r *Runtime) register(env *buildenv.Env, result *RunResult) error {
	postActions := r.Deps.config().PostActions
	for _, pattern := range orderedPatterns(postActions, result.Target) {
		for _, configured := range postActions[pattern] {
			kind, err := ParseKind(configured.Action)
			if err != nil {
				return fmt.Errorf("post_actions[%s]: %w", pattern, err)
			}
			action, err := r.Deps.Build(kind, configured.Args)
			if err != nil {
				return fmt.Errorf("post_actions[%s]: %w", pattern, err)
			}
			if err := env.AddPostAction(pattern, record(result, pattern, configured, action)); err != nil {
				return err
			}
		}
	}
	return nil
}

// orderedPatterns lists target first when it is configured verbatim,
// followed by the remaining patterns in sorted order.
func orderedPatterns(postActions config.PostActionsConfig, target string) []string {
	patterns := make([]string, 0, len(postActions))
	if _, ok := postActions[target]; ok {
		patterns = append(patterns, target)
	}
	for _, pattern := range postActions.Patterns() {
		if pattern != target {
			patterns = append(patterns, pattern)
		}
	}
	return patterns
}

func record(result *RunResult, pattern string, configured config.PostAction, action buildenv.Action) buildenv.Action {
	return func(ctx context.Context, target string, sources []string, env *buildenv.Env) error {
		start := time.Now()

		slog.Debug("action starting",
			slog.String(log.Action, configured.Action),
			slog.String(log.Target, target),
			slog.Any(log.Args, configured.Args))

		err := action(ctx, target, sources, env)

		actionResult := ActionResult{
			Name:     configured.Action,
			Pattern:  pattern,
			Args:     configured.Args,
			Duration: time.Since(start),
			Error:    err,
		}
		if err != nil {
			actionResult.ExitCode = st.ExitStatus(err)
		}
		result.Actions = append(result.Actions, actionResult)

		slog.Debug("action completed",
			slog.String(log.Action, configured.Action),
			slog.Int(log.ExitCode, actionResult.ExitCode),
			slog.Duration(log.Duration, actionResult.Duration))

		return err
	}
}

// IsHooksDisabled returns true if post actions are disabled via FWSTAT_HOOKS=0.
func IsHooksDisabled() bool {
	return os.Getenv(EnvHooks) == "0"
}
