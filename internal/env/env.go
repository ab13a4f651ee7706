// Package env holds helpers for reading fwstat and build-tool settings from
// the process environment.
package env

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/samber/lo"
)

// GetMap returns the current process environment as a map.
func GetMap() map[string]string {
	return ToMap(os.Environ())
}

const keyValueParts = 2 // Number of parts in a key=value pair.

// ToMap converts KEY=value assignments to a map. Malformed entries are dropped.
func ToMap(assignments []string) map[string]string {
	return lo.FromPairs(lo.FilterMap(assignments, func(item string, _ int) (lo.Entry[string, string], bool) {
		parts := strings.SplitN(item, "=", keyValueParts)
		if len(parts) != keyValueParts {
			return lo.Entry[string, string]{}, false
		}

		return lo.Entry[string, string]{Key: parts[0], Value: parts[1]}, true
	}))
}

// ToAssignments converts a map to KEY=value assignments, sorted by key.
func ToAssignments(envMap map[string]string) []string {
	assignments := lo.MapToSlice(envMap, func(k, v string) string {
		return k + "=" + v
	})
	sort.Strings(assignments)

	return assignments
}

// ErrInvalidBool is returned when a string cannot be parsed as a boolean.
var ErrInvalidBool = errors.New("invalid boolean value")

// ParseBool interprets a string as a boolean after trimming and lowercasing.
//
// Accepted values:
//   - "true", "yes", "1"  -> true
//   - "false", "no", "0"  -> false
//   - "" (empty)          -> false, nil error
//   - any other non-empty -> false, ErrInvalidBool
func ParseBool(value string) (bool, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return false, nil
	}

	switch strings.ToLower(value) {
	case "true", "yes", "1":
		return true, nil
	case "false", "no", "0":
		return false, nil
	default:
		return false, fmt.Errorf("%w: %q", ErrInvalidBool, value)
	}
}

// FailsafeParseBoolEnv reads an environment variable and parses it as a boolean.
// It returns defaultValue if the variable is unset, empty, or invalid.
func FailsafeParseBoolEnv(envVar string, defaultValue bool) bool {
	v, ok := os.LookupEnv(envVar)
	if !ok || v == "" {
		return defaultValue
	}

	b, err := ParseBool(v)
	if err != nil {
		return defaultValue
	}

	return b
}

// ParseLevel interprets a PlatformIO-style verbosity value ("0", "1", "2", or
// a boolean word) and reports whether it is enabled.
func ParseLevel(value string) bool {
	value = strings.TrimSpace(value)
	if b, err := ParseBool(value); err == nil {
		return b
	}
	var level int
	if _, err := fmt.Sscanf(value, "%d", &level); err == nil {
		return level > 0
	}

	return false
}

//nolint:gochecknoglobals // package-level lookup table for CI detection
var boolCIVars = []string{
	"CI",
	"GITHUB_ACTIONS",
	"GITLAB_CI",
	"CIRCLECI",
	"BUILDKITE",
}

//nolint:gochecknoglobals // package-level lookup table for CI detection
var presenceCIVars = []string{
	"JENKINS_URL",
}

// CIEnvVarNames returns every environment variable that InCI checks.
func CIEnvVarNames() []string {
	return append(append([]string{}, boolCIVars...), presenceCIVars...)
}

// InCI returns true if the process appears to be running in a CI environment.
func InCI() bool {
	for _, v := range boolCIVars {
		if FailsafeParseBoolEnv(v, false) {
			return true
		}
	}

	return lo.SomeBy(presenceCIVars, func(v string) bool {
		return os.Getenv(v) != ""
	})
}
