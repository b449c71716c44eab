package config

import (
	"fmt"
	"slices"
	"strings"

	"github.com/gobwas/glob"
)

// ValidationError represents a single validation failure
type ValidationError struct {
	Field   string // The config field path (e.g., "rebase.max_attempts")
	Value   any    // The invalid value
	Message string // Human-readable error description
}

// Error implements the error interface for ValidationError
func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface for ValidationErrors
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d validation errors:\n", len(e)))
	for i, err := range e {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// ValidLogLevels returns the list of valid log levels
func ValidLogLevels() []string {
	return []string{"debug", "info", "warn", "error"}
}

// ValidBackends returns the list of supported agent backends
func ValidBackends() []string {
	return []string{"claude", "codex", "openai"}
}

// Validate checks the Config for invalid values and returns all validation
// errors found.
func (c *Config) Validate() []ValidationError {
	var errs []ValidationError

	errs = append(errs, c.validateRebase()...)
	errs = append(errs, c.validateAgent()...)
	errs = append(errs, c.validateLogging()...)

	return errs
}

func (c *Config) validateRebase() []ValidationError {
	var errs []ValidationError

	if c.Rebase.MaxAttempts < 1 || c.Rebase.MaxAttempts > 10 {
		errs = append(errs, ValidationError{
			Field:   "rebase.max_attempts",
			Value:   c.Rebase.MaxAttempts,
			Message: "must be between 1 and 10",
		})
	}

	for _, pattern := range c.Rebase.LockFilePatterns {
		if _, err := glob.Compile(pattern); err != nil {
			errs = append(errs, ValidationError{
				Field:   "rebase.lock_file_patterns",
				Value:   pattern,
				Message: "invalid glob pattern",
			})
		}
	}

	return errs
}

func (c *Config) validateAgent() []ValidationError {
	var errs []ValidationError

	if !slices.Contains(ValidBackends(), strings.ToLower(c.Agent.Backend)) {
		errs = append(errs, ValidationError{
			Field:   "agent.backend",
			Value:   c.Agent.Backend,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidBackends(), ", ")),
		})
	}

	if c.Agent.Codex.ApprovalMode != "" &&
		c.Agent.Codex.ApprovalMode != "full-auto" && c.Agent.Codex.ApprovalMode != "bypass" {
		errs = append(errs, ValidationError{
			Field:   "agent.codex.approval_mode",
			Value:   c.Agent.Codex.ApprovalMode,
			Message: "must be 'full-auto' or 'bypass'",
		})
	}

	return errs
}

func (c *Config) validateLogging() []ValidationError {
	var errs []ValidationError

	if !slices.Contains(ValidLogLevels(), strings.ToLower(c.Logging.Level)) {
		errs = append(errs, ValidationError{
			Field:   "logging.level",
			Value:   c.Logging.Level,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidLogLevels(), ", ")),
		})
	}

	return errs
}
