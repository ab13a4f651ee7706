package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/yaklabco/fwstat/internal/env"

	"github.com/spf13/viper"
)

// Config holds all fwstat configuration values.
type Config struct {
	// StatusFile is the file the status post action appends to.
	StatusFile string `mapstructure:"status_file"`

	// Verbose prints the raw size-tool output after the usage report.
	Verbose bool `mapstructure:"verbose"`

	// Debug enables debug messages.
	Debug bool `mapstructure:"debug"`

	// EnableColor enables styled output in terminal.
	EnableColor bool `mapstructure:"enable_color"`

	// Board is the board identifier; the BOARD build variable overrides it.
	Board string `mapstructure:"board"`

	// BoardManifest is the path to the PlatformIO board JSON carrying the
	// upload.maximum_size and upload.maximum_ram_size keys.
	BoardManifest string `mapstructure:"board_manifest"`

	// SizeTool is the platform size tool (SIZETOOL).
	SizeTool string `mapstructure:"size_tool"`

	// SizeCheckCmd is the size-check command template (SIZECHECKCMD).
	SizeCheckCmd string `mapstructure:"size_check_cmd"`

	// SizeProgRegexp extracts program-size fields (SIZEPROGREGEXP).
	SizeProgRegexp string `mapstructure:"size_prog_regexp"`

	// SizeDataRegexp extracts data-size fields (SIZEDATAREGEXP).
	SizeDataRegexp string `mapstructure:"size_data_regexp"`

	// MaxProgramSize overrides the board's upload.maximum_size when non-zero.
	MaxProgramSize int64 `mapstructure:"max_program_size"`

	// MaxDataSize overrides the board's upload.maximum_ram_size when non-zero.
	MaxDataSize int64 `mapstructure:"max_data_size"`

	// EnforceRAMLimit fails the build when the data size exceeds the RAM maximum.
	EnforceRAMLimit bool `mapstructure:"enforce_ram_limit"`

	// RecordVersion adds the next release version to environment dumps.
	RecordVersion bool `mapstructure:"record_version"`

	// Requires is a semver constraint the running fwstat must satisfy.
	Requires string `mapstructure:"requires"`

	// PostActions maps build targets to the actions run after them.
	PostActions PostActionsConfig `mapstructure:"post_actions"`

	configFile string
}

// ConfigFile returns the path to the configuration file that was loaded,
// or an empty string if no file was loaded.
func (c *Config) ConfigFile() string {
	return c.configFile
}

// LoadOptions configures how configuration is loaded.
type LoadOptions struct {
	// ProjectDir is the directory to search for fwstat.yaml.
	// If empty, the current working directory is used.
	ProjectDir string

	// ConfigFile, when set, is read instead of the project config.
	ConfigFile string

	// Stderr is where warnings are written. If nil, os.Stderr is used.
	Stderr io.Writer

	SkipProjectConfig bool
	SkipUserConfig    bool
	SkipEnv           bool
}

// Load reads configuration from all sources and returns a Config struct.
// Configuration is loaded in the following order (later sources override earlier):
//  1. Defaults
//  2. User config file (~/.config/fwstat/config.yaml)
//  3. Project config file (./fwstat.yaml) or LoadOptions.ConfigFile
//  4. Environment variables (FWSTAT_*)
func Load(opts *LoadOptions) (*Config, error) {
	if opts == nil {
		opts = &LoadOptions{}
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}

	viperInstance := viper.New()
	setDefaults(viperInstance)
	viperInstance.SetConfigType("yaml")

	var configFileUsed string

	if !opts.SkipUserConfig {
		paths := ResolveXDGPaths()
		viperInstance.SetConfigName(ConfigFileName)
		viperInstance.AddConfigPath(paths.ConfigDir())

		if err := viperInstance.ReadInConfig(); err != nil {
			var configFileNotFoundError viper.ConfigFileNotFoundError
			if !errors.As(err, &configFileNotFoundError) {
				return nil, fmt.Errorf("failed to read user config file: %w", err)
			}
		} else {
			configFileUsed = viperInstance.ConfigFileUsed()
		}
	}

	projectConfigPath, err := projectConfigPath(opts)
	if err != nil {
		return nil, err
	}
	if projectConfigPath != "" {
		viperInstance.SetConfigFile(projectConfigPath)
		if err := viperInstance.MergeInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read project config file: %w", err)
		}
		configFileUsed = projectConfigPath
	}

	var cfg Config
	if err := viperInstance.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if !opts.SkipEnv {
		applyEnvironmentOverrides(&cfg)
	}

	cfg.configFile = configFileUsed
	cfg.BoardManifest = expandHome(cfg.BoardManifest)
	if len(cfg.PostActions) == 0 {
		cfg.PostActions = defaultPostActions()
	}

	result := cfg.Validate()
	if result.HasWarnings() {
		result.WriteWarnings(opts.Stderr)
	}
	if result.HasErrors() {
		return nil, errors.New(result.ErrorMessage())
	}

	return &cfg, nil
}

// projectConfigPath returns the project config file to merge, or "" if none.
func projectConfigPath(opts *LoadOptions) (string, error) {
	if opts.ConfigFile != "" {
		if _, err := os.Stat(opts.ConfigFile); err != nil {
			return "", fmt.Errorf("config file: %w", err)
		}
		return opts.ConfigFile, nil
	}
	if opts.SkipProjectConfig {
		return "", nil
	}

	projectDir := opts.ProjectDir
	if projectDir == "" {
		var err error
		projectDir, err = os.Getwd()
		if err != nil {
			return "", fmt.Errorf("failed to get working directory: %w", err)
		}
	}

	path := filepath.Join(projectDir, ProjectConfigFileName+".yaml")
	if _, err := os.Stat(path); err != nil {
		return "", nil //nolint:nilerr // a missing project config is not an error
	}
	return path, nil
}

// applyEnvironmentOverrides applies FWSTAT_* environment variable overrides.
func applyEnvironmentOverrides(cfg *Config) {
	if v := os.Getenv("FWSTAT_STATUS_FILE"); v != "" {
		cfg.StatusFile = v
	}
	if v := os.Getenv("FWSTAT_BOARD_MANIFEST"); v != "" {
		cfg.BoardManifest = v
	}
	cfg.Verbose = env.FailsafeParseBoolEnv("FWSTAT_VERBOSE", cfg.Verbose)
	cfg.Debug = env.FailsafeParseBoolEnv("FWSTAT_DEBUG", cfg.Debug)
	cfg.EnableColor = env.FailsafeParseBoolEnv("FWSTAT_ENABLE_COLOR", cfg.EnableColor)
	cfg.EnforceRAMLimit = env.FailsafeParseBoolEnv("FWSTAT_ENFORCE_RAM_LIMIT", cfg.EnforceRAMLimit)
	cfg.RecordVersion = env.FailsafeParseBoolEnv("FWSTAT_RECORD_VERSION", cfg.RecordVersion)
}

// DefaultConfig returns a Config with all default values.
func DefaultConfig() *Config {
	return &Config{
		StatusFile:      DefaultStatusFile,
		Verbose:         DefaultVerbose,
		Debug:           DefaultDebug,
		EnableColor:     DefaultEnableColor,
		EnforceRAMLimit: DefaultEnforceRAMLimit,
		RecordVersion:   DefaultRecordVersion,
		PostActions:     defaultPostActions(),
	}
}

// WriteDefaultConfig writes a default project configuration file into dir.
func WriteDefaultConfig(dir string) (string, error) {
	configPath := filepath.Join(dir, ProjectConfigFileName+".yaml")

	if _, err := os.Stat(configPath); err == nil {
		return "", fmt.Errorf("config file already exists: %s", configPath)
	}

	if err := os.WriteFile(configPath, []byte(defaultConfigYAML()), 0o644); err != nil { //nolint:gosec // project config is meant to be committed
		return "", fmt.Errorf("failed to write config file: %w", err)
	}

	return configPath, nil
}

func defaultConfigYAML() string {
	return `# fwstat project configuration

# File appended by the "status" post action.
status_file: status.txt

# PlatformIO board manifest (JSON) providing upload.maximum_size and
# upload.maximum_ram_size.
# board_manifest: ~/.platformio/platforms/atmelavr/boards/uno.json

# Size tool used by the default size-check command
# ("$SIZETOOL -B -d $SOURCES"). "builtin" reads ELF sections directly.
# size_tool: avr-size

# Fail the build when RAM usage exceeds the board maximum.
enforce_ram_limit: false

# Actions run after each build target. Keys may be glob patterns.
post_actions:
  checkprogsize:
    - action: status
`
}
