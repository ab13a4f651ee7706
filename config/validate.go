package config

import (
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Message)
}

// ValidationWarning represents a non-fatal configuration issue.
type ValidationWarning struct {
	Field   string
	Message string
}

func (w ValidationWarning) String() string {
	return fmt.Sprintf("config warning: %s: %s", w.Field, w.Message)
}

// ValidationResults holds the results of configuration validation.
type ValidationResults struct {
	Errors   []ValidationError
	Warnings []ValidationWarning
}

// HasErrors returns true if there are validation errors.
func (r ValidationResults) HasErrors() bool {
	return len(r.Errors) > 0
}

// HasWarnings returns true if there are validation warnings.
func (r ValidationResults) HasWarnings() bool {
	return len(r.Warnings) > 0
}

// ErrorMessage returns a combined error message for all validation errors.
func (r ValidationResults) ErrorMessage() string {
	msgs := make([]string, 0, len(r.Errors))
	for _, e := range r.Errors {
		msgs = append(msgs, e.Error())
	}
	return strings.Join(msgs, "; ")
}

// WriteWarnings writes all warnings to the given writer.
func (r ValidationResults) WriteWarnings(w io.Writer) {
	for _, warn := range r.Warnings {
		_, _ = fmt.Fprintln(w, warn.String())
	}
}

func (r *ValidationResults) merge(other ValidationResults) {
	r.Errors = append(r.Errors, other.Errors...)
	r.Warnings = append(r.Warnings, other.Warnings...)
}

// Validate checks the configuration for errors and warnings.
func (c *Config) Validate() ValidationResults {
	var result ValidationResults

	patterns := []struct{ field, pattern string }{
		{"size_prog_regexp", c.SizeProgRegexp},
		{"size_data_regexp", c.SizeDataRegexp},
	}
	for _, p := range patterns {
		if p.pattern == "" {
			continue
		}
		if _, err := regexp.Compile(p.pattern); err != nil {
			result.Errors = append(result.Errors, ValidationError{
				Field:   p.field,
				Message: fmt.Sprintf("invalid regular expression: %v", err),
			})
		}
	}

	if c.MaxProgramSize < 0 {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "max_program_size",
			Message: "must not be negative",
		})
	}
	if c.MaxDataSize < 0 {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "max_data_size",
			Message: "must not be negative",
		})
	}

	if c.Requires != "" {
		if _, err := semver.NewConstraint(c.Requires); err != nil {
			result.Errors = append(result.Errors, ValidationError{
				Field:   "requires",
				Message: fmt.Sprintf("invalid version constraint %q: %v", c.Requires, err),
			})
		}
	}

	if c.StatusFile == "" {
		result.Warnings = append(result.Warnings, ValidationWarning{
			Field:   "status_file",
			Message: "empty, the status action will fall back to " + DefaultStatusFile,
		})
	}

	result.merge(ValidatePostActions(c.PostActions))

	return result
}

// VersionError is returned when the running fwstat does not meet the
// project's version constraint.
type VersionError struct {
	Version    string
	Constraint string
}

func (e VersionError) Error() string {
	return fmt.Sprintf("fwstat %s does not satisfy required version %q", e.Version, e.Constraint)
}

// CheckRequires verifies version against the configured constraint. Development
// builds (empty, "dev", or non-semver versions) always pass.
func (c *Config) CheckRequires(version string) error {
	if c.Requires == "" {
		return nil
	}
	constraint, err := semver.NewConstraint(c.Requires)
	if err != nil {
		return fmt.Errorf("parsing requires: %w", err)
	}

	current, err := semver.NewVersion(strings.TrimPrefix(version, "v"))
	if err != nil {
		return nil //nolint:nilerr // dev builds carry no comparable version
	}
	if !constraint.Check(current) {
		return VersionError{Version: version, Constraint: c.Requires}
	}
	return nil
}
