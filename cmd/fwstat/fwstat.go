// Package fwstat is the fwstat command line: the post-build hook a firmware
// build calls after its size-check target, and the tools around it.
package fwstat

import (
	"context"
	"fmt"

	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"

	"github.com/yaklabco/fwstat/cmd/fwstat/version"
	"github.com/yaklabco/fwstat/config"
	"github.com/yaklabco/fwstat/internal/env"
	"github.com/yaklabco/fwstat/internal/prettylog"
	"github.com/yaklabco/fwstat/pkg/actions"
	"github.com/yaklabco/fwstat/pkg/buildenv"
	"github.com/yaklabco/fwstat/pkg/ui"
)

const (
	shortDescription = "fwstat records firmware size and commit status after each build."

	// skipConfigAnnotation marks commands that run without loading configuration.
	skipConfigAnnotation = "fwstat/skip-config"
)

type rootCmdOptions struct {
	configureDeps func(*actions.Deps)
}

type Option func(*rootCmdOptions)

// withDeps adjusts the collaborators handed to post actions. It exists
// purely for testing purposes.
func withDeps(fn func(*actions.Deps)) Option {
	return func(opts *rootCmdOptions) {
		opts.configureDeps = fn
	}
}

// rootState carries the persistent flags and the configuration loaded for
// the command being run.
type rootState struct {
	opts *rootCmdOptions

	configFile string
	dir        string
	debug      bool
	verbose    bool

	cfg *config.Config
}

// deps returns the post action collaborators for the loaded configuration.
func (s *rootState) deps(styled bool) actions.Deps {
	deps := actions.Deps{
		Config: s.cfg,
		Dir:    s.dir,
		Styled: styled && s.cfg.EnableColor,
	}
	if s.opts.configureDeps != nil {
		s.opts.configureDeps(&deps)
	}
	return deps
}

// buildEnv assembles the build environment from configuration and the
// process environment, writing post action output to the command's streams.
func (s *rootState) buildEnv(cmd *cobra.Command) (*buildenv.Env, error) {
	return buildenv.FromConfig(s.cfg, env.GetMap(),
		buildenv.WithOutput(cmd.OutOrStdout(), cmd.ErrOrStderr()))
}

func (s *rootState) load(cmd *cobra.Command) error {
	if _, skip := cmd.Annotations[skipConfigAnnotation]; skip {
		return nil
	}

	cfg, err := config.Load(&config.LoadOptions{
		ProjectDir: s.dir,
		ConfigFile: s.configFile,
		Stderr:     cmd.ErrOrStderr(),
	})
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("debug") {
		cfg.Debug = s.debug
	}
	if flags.Changed("verbose") {
		cfg.Verbose = s.verbose
	}
	s.cfg = cfg

	prettylog.Setup(cmd.ErrOrStderr(), cfg.Debug)

	return cfg.CheckRequires(version.EffectiveVersion(cmd.Context()))
}

// NewRootCmd builds the fwstat command tree.
func NewRootCmd(ctx context.Context, opts ...Option) *cobra.Command {
	rootCmdOpts := &rootCmdOptions{}
	for _, opt := range opts {
		opt(rootCmdOpts)
	}

	state := &rootState{opts: rootCmdOpts}
	rootCmd := &cobra.Command{
		Use:   "fwstat",
		Short: shortDescription,
		Example: `	# Post action of the checkprogsize target: append commit and sizes to status.txt
	fwstat run .pio/build/uno/firmware.elf

	# Check the upload size only
	SIZETOOL=avr-size BOARD=uno fwstat check .pio/build/uno/firmware.elf

	# Size an ELF image without binutils
	fwstat size -B -d .pio/build/uno/firmware.elf

	# Show the recorded status
	fwstat status --last 5

	# Manage configuration
	fwstat config show`,
		Version: version.OverallVersionStringColorized(ctx),
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return state.load(cmd)
		},
	}

	rootCmd.PersistentFlags().StringVar(&state.configFile, "config", "", "configuration file to use instead of fwstat.yaml")
	rootCmd.PersistentFlags().BoolVar(&state.debug, "debug", false, "turn on debug messages")
	rootCmd.PersistentFlags().BoolVarP(&state.verbose, "verbose", "v", false, "print the raw size-tool output")
	rootCmd.PersistentFlags().StringVarP(&state.dir, "dir", "C", "", "project directory (fwstat.yaml, git, status file)")

	rootCmd.AddCommand(
		newRunCmd(state),
		newCheckCmd(state),
		newSizeCmd(),
		newEnvCmd(state),
		newStatusCmd(state),
		newWatchCmd(state),
		newConfigCmd(state),
	)

	return rootCmd
}

// ExecuteWithFang runs the root Cobra command with Fang-specific options.
func ExecuteWithFang(ctx context.Context, rootCmd *cobra.Command) error {
	//nolint:wrapcheck // top-level error from cobra, wrapping not needed
	return fang.Execute(
		ctx, rootCmd, fang.WithVersion(rootCmd.Version), fang.WithoutManpage())
}

// styledOutput reports whether output should carry colors.
func styledOutput() bool {
	return ui.IsTerminal() && !env.InCI()
}

func requireArgs(n int, what string) cobra.PositionalArgs {
	return func(_ *cobra.Command, args []string) error {
		if len(args) < n {
			return fmt.Errorf("requires at least %d %s", n, what)
		}
		return nil
	}
}
