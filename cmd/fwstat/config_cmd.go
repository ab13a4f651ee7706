package fwstat

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/yaklabco/fwstat/config"
)

func newConfigCmd(state *rootState) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage fwstat configuration",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return writeConfig(cmd.OutOrStdout(), state.cfg)
		},
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "show",
			Short: "Display the effective configuration (default)",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return writeConfig(cmd.OutOrStdout(), state.cfg)
			},
		},
		&cobra.Command{
			Use:         "init",
			Short:       "Create fwstat.yaml in the project directory",
			Annotations: map[string]string{skipConfigAnnotation: ""},
			RunE: func(cmd *cobra.Command, _ []string) error {
				dir := state.dir
				if dir == "" {
					var err error
					if dir, err = os.Getwd(); err != nil {
						return err
					}
				}
				path, err := config.WriteDefaultConfig(dir)
				if err != nil {
					return err
				}
				_, err = fmt.Fprintf(cmd.OutOrStdout(), "Created config file: %s\n", path)
				return err
			},
		},
		&cobra.Command{
			Use:         "path",
			Short:       "Show configuration file paths",
			Annotations: map[string]string{skipConfigAnnotation: ""},
			RunE: func(cmd *cobra.Command, _ []string) error {
				paths := config.ResolveXDGPaths()
				out := cmd.OutOrStdout()
				_, _ = fmt.Fprintln(out, "Configuration Paths:")
				_, _ = fmt.Fprintf(out, "  User config:    %s\n", paths.ConfigFilePath())
				_, err := fmt.Fprintf(out, "  Project config: %s.yaml\n", config.ProjectConfigFileName)
				return err
			},
		},
	)

	return cmd
}

// writeConfig prints the effective configuration.
func writeConfig(out io.Writer, cfg *config.Config) error {
	var b strings.Builder

	b.WriteString("# Effective fwstat Configuration\n")
	if cfg.ConfigFile() != "" {
		fmt.Fprintf(&b, "# Loaded from: %s\n", cfg.ConfigFile())
	} else {
		b.WriteString("# (using defaults, no config file found)\n")
	}
	b.WriteString("\n")
	fmt.Fprintf(&b, "status_file: %s\n", cfg.StatusFile)
	fmt.Fprintf(&b, "verbose: %v\n", cfg.Verbose)
	fmt.Fprintf(&b, "debug: %v\n", cfg.Debug)
	fmt.Fprintf(&b, "enable_color: %v\n", cfg.EnableColor)
	fmt.Fprintf(&b, "board: %s\n", cfg.Board)
	fmt.Fprintf(&b, "board_manifest: %s\n", cfg.BoardManifest)
	fmt.Fprintf(&b, "size_tool: %s\n", cfg.SizeTool)
	fmt.Fprintf(&b, "size_check_cmd: %s\n", cfg.SizeCheckCmd)
	fmt.Fprintf(&b, "size_prog_regexp: %s\n", cfg.SizeProgRegexp)
	fmt.Fprintf(&b, "size_data_regexp: %s\n", cfg.SizeDataRegexp)
	fmt.Fprintf(&b, "max_program_size: %d\n", cfg.MaxProgramSize)
	fmt.Fprintf(&b, "max_data_size: %d\n", cfg.MaxDataSize)
	fmt.Fprintf(&b, "enforce_ram_limit: %v\n", cfg.EnforceRAMLimit)
	fmt.Fprintf(&b, "record_version: %v\n", cfg.RecordVersion)
	fmt.Fprintf(&b, "requires: %s\n", cfg.Requires)
	b.WriteString("post_actions:\n")
	for _, pattern := range cfg.PostActions.Patterns() {
		fmt.Fprintf(&b, "  %s:\n", pattern)
		for _, action := range cfg.PostActions[pattern] {
			fmt.Fprintf(&b, "    - action: %s\n", action.Action)
			if len(action.Args) > 0 {
				fmt.Fprintf(&b, "      args: [%s]\n", strings.Join(action.Args, ", "))
			}
		}
	}

	_, err := io.WriteString(out, b.String())
	return err
}
