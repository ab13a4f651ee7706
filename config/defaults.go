package config

import (
	"github.com/spf13/viper"
)

// Default configuration values.
const (
	// DefaultStatusFile is the status file appended by the status post action,
	// relative to the working directory.
	DefaultStatusFile = "status.txt"

	// DefaultTarget is the build target the post actions hang off.
	DefaultTarget = "checkprogsize"

	// DefaultAction is the post action run for DefaultTarget when nothing is configured.
	DefaultAction = "status"

	DefaultVerbose         = false
	DefaultDebug           = false
	DefaultEnableColor     = true
	DefaultEnforceRAMLimit = false
	DefaultRecordVersion   = false
)

// setDefaults configures default values in the viper instance.
func setDefaults(viperInstance *viper.Viper) {
	viperInstance.SetDefault("status_file", DefaultStatusFile)
	viperInstance.SetDefault("verbose", DefaultVerbose)
	viperInstance.SetDefault("debug", DefaultDebug)
	viperInstance.SetDefault("enable_color", DefaultEnableColor)
	viperInstance.SetDefault("enforce_ram_limit", DefaultEnforceRAMLimit)
	viperInstance.SetDefault("record_version", DefaultRecordVersion)
	viperInstance.SetDefault("max_program_size", 0)
	viperInstance.SetDefault("max_data_size", 0)
}

// defaultPostActions is used when the loaded configuration names none.
func defaultPostActions() PostActionsConfig {
	return PostActionsConfig{
		DefaultTarget: {{Action: DefaultAction}},
	}
}
