package config

import (
	"fmt"
	"sort"
	"strings"

	"github.com/gobwas/glob"
)

// PostAction is a single action run after a build target completes.
type PostAction struct {
	// Action is the name of a registered post action (status, envdump, sizecheck).
	Action string `mapstructure:"action"`

	// Args are extra arguments handed to the action.
	Args []string `mapstructure:"args,omitempty"`
}

// PostActionsConfig maps build target names (or glob patterns such as
// "check*") to the actions run after them.
type PostActionsConfig map[string][]PostAction

//nolint:gochecknoglobals // package-level lookup table for action validation
var knownActions = map[string]bool{
	"status":    true,
	"envdump":   true,
	"sizecheck": true,
}

// IsKnownAction returns true if the name is a post action fwstat provides.
func IsKnownAction(name string) bool {
	return knownActions[name]
}

// KnownActionNames returns all known action names in sorted order.
func KnownActionNames() []string {
	names := make([]string, 0, len(knownActions))
	for name := range knownActions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ValidatePostActions validates the post action configuration.
func ValidatePostActions(actions PostActionsConfig) ValidationResults {
	var result ValidationResults

	for _, pattern := range actions.Patterns() {
		if strings.TrimSpace(pattern) == "" {
			result.Errors = append(result.Errors, ValidationError{
				Field:   "post_actions",
				Message: "target pattern cannot be empty",
			})
			continue
		}
		if _, err := glob.Compile(pattern); err != nil {
			result.Errors = append(result.Errors, ValidationError{
				Field:   "post_actions." + pattern,
				Message: fmt.Sprintf("invalid target pattern: %v", err),
			})
			continue
		}

		entries := actions[pattern]
		if len(entries) == 0 {
			result.Warnings = append(result.Warnings, ValidationWarning{
				Field:   "post_actions." + pattern,
				Message: "no actions configured",
			})
		}
		for i, entry := range entries {
			if !IsKnownAction(entry.Action) {
				result.Errors = append(result.Errors, ValidationError{
					Field: fmt.Sprintf("post_actions.%s[%d].action", pattern, i),
					Message: fmt.Sprintf("unknown action %q, must be one of: %s",
						entry.Action, strings.Join(KnownActionNames(), ", ")),
				})
			}
		}
	}

	return result
}

// Patterns returns all configured target patterns in sorted order.
func (a PostActionsConfig) Patterns() []string {
	if a == nil {
		return nil
	}
	patterns := make([]string, 0, len(a))
	for pattern := range a {
		patterns = append(patterns, pattern)
	}
	sort.Strings(patterns)
	return patterns
}
