package fwstat

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/yaklabco/fwstat/config"
	"github.com/yaklabco/fwstat/internal/log"
	"github.com/yaklabco/fwstat/pkg/actions"
	"github.com/yaklabco/fwstat/pkg/elfsize"
	"github.com/yaklabco/fwstat/pkg/status"
	"github.com/yaklabco/fwstat/pkg/ui"
	"github.com/yaklabco/fwstat/pkg/watch"
)

// runPostActions builds a fresh environment and runs the post actions
// configured for target.
func runPostActions(ctx context.Context, cmd *cobra.Command, state *rootState, target string, sources []string) error {
	env, err := state.buildEnv(cmd)
	if err != nil {
		return err
	}

	runtime := &actions.Runtime{
		Deps:   state.deps(styledOutput()),
		Stderr: cmd.ErrOrStderr(),
	}
	result, err := runtime.Run(ctx, env, target, sources)
	if err != nil {
		return err
	}
	return result.Err()
}

func newRunCmd(state *rootState) *cobra.Command {
	var target string
	cmd := &cobra.Command{
		Use:   "run [SOURCE...]",
		Short: "Run the post actions configured for a build target",
		Long: `Run the post actions configured for a build target. This is the entry point
a build system calls once the target completes; SOURCE is the firmware image.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPostActions(cmd.Context(), cmd, state, target, args)
		},
	}
	cmd.Flags().StringVarP(&target, "target", "t", config.DefaultTarget, "build target that completed")
	return cmd
}

func newCheckCmd(state *rootState) *cobra.Command {
	return &cobra.Command{
		Use:   "check SOURCE",
		Short: "Check the upload size of a firmware image against the board limits",
		Args:  requireArgs(1, "firmware image"),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := state.buildEnv(cmd)
			if err != nil {
				return err
			}
			return state.deps(false).SizeCheck()(cmd.Context(), config.DefaultTarget, args, env)
		},
	}
}

func newSizeCmd() *cobra.Command {
	var (
		berkeley, decimal, octal, hex, totals bool
	)
	cmd := &cobra.Command{
		Use:         "size [-B] [-d|-o|-x] [-t] FILE...",
		Short:       "List section sizes of ELF images in Berkeley format",
		Args:        requireArgs(1, "ELF file"),
		Annotations: map[string]string{skipConfigAnnotation: ""},
		RunE: func(cmd *cobra.Command, args []string) error {
			radix := elfsize.Decimal
			switch {
			case octal:
				radix = elfsize.Octal
			case hex:
				radix = elfsize.Hex
			}

			all := make([]elfsize.Sizes, 0, len(args))
			for _, file := range args {
				sizes, err := elfsize.Read(file)
				if err != nil {
					return err
				}
				all = append(all, sizes)
			}
			return elfsize.WriteBerkeley(cmd.OutOrStdout(), all, radix, totals)
		},
	}
	cmd.Flags().BoolVarP(&berkeley, "berkeley", "B", true, "Berkeley output format (the only one supported)")
	cmd.Flags().BoolVarP(&decimal, "decimal", "d", false, "print sizes in decimal (default)")
	cmd.Flags().BoolVarP(&octal, "octal", "o", false, "print sizes in octal")
	cmd.Flags().BoolVarP(&hex, "hex", "x", false, "print sizes in hexadecimal")
	cmd.Flags().BoolVarP(&totals, "totals", "t", false, "print a totals row")
	cmd.MarkFlagsMutuallyExclusive("decimal", "octal", "hex")
	return cmd
}

func newEnvCmd(state *rootState) *cobra.Command {
	var target string
	cmd := &cobra.Command{
		Use:   "env [PATTERN...]",
		Short: "Print the build environment post actions see",
		Long:  "Print the commit, the build variables, the process environment and the board manifest.\nPATTERN globs restrict the variables printed.",
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := state.buildEnv(cmd)
			if err != nil {
				return err
			}
			action, err := state.deps(styledOutput()).EnvDump(args)
			if err != nil {
				return err
			}
			return action(cmd.Context(), target, nil, env)
		},
	}
	cmd.Flags().StringVarP(&target, "target", "t", config.DefaultTarget, "build target to report")
	return cmd
}

func newStatusCmd(state *rootState) *cobra.Command {
	var (
		last int
		raw  bool
	)
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the builds recorded in the status file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			entries, err := status.Read(state.deps(false).StatusPath(nil))
			if err != nil {
				return err
			}
			entries = status.Last(entries, last)

			if raw {
				for _, entry := range entries {
					if _, err := fmt.Fprint(cmd.OutOrStdout(), entry.String()); err != nil {
						return err
					}
				}
				return nil
			}

			return status.Render(cmd.OutOrStdout(), entries, status.RenderOptions{
				Width: ui.TerminalWidth(),
				Plain: !styledOutput() || !state.cfg.EnableColor,
			})
		},
	}
	cmd.Flags().IntVarP(&last, "last", "n", 0, "show only the N most recent builds")
	cmd.Flags().BoolVar(&raw, "raw", false, "print the entries as stored")
	return cmd
}

func newWatchCmd(state *rootState) *cobra.Command {
	var (
		target   string
		debounce time.Duration
		patterns []string
	)
	cmd := &cobra.Command{
		Use:   "watch SOURCE...",
		Short: "Re-run the post actions whenever a firmware image changes",
		Args:  requireArgs(1, "firmware image"),
		RunE: func(cmd *cobra.Command, args []string) error {
			log.SimpleConsoleLogger.Printf("Watching %d file(s) for target %s", len(args), target)

			return watch.Watch(cmd.Context(), args, watch.Options{Debounce: debounce, Patterns: patterns},
				func(ctx context.Context, changed []string) error {
					log.SimpleConsoleLogger.Printf("Changed: %v", changed)
					return runPostActions(ctx, cmd, state, target, args)
				})
		},
	}
	cmd.Flags().StringVarP(&target, "target", "t", config.DefaultTarget, "build target whose post actions run")
	cmd.Flags().DurationVar(&debounce, "debounce", watch.DefaultDebounce, "quiet period before re-running")
	cmd.Flags().StringSliceVar(&patterns, "pattern", nil, "glob of files that trigger a re-run (default: the sources)")
	return cmd
}
