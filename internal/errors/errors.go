// Package errors provides centralized error definitions and error handling
// utilities for the remerge codebase. It defines domain-specific errors,
// error constructors with context wrapping, and error classification helpers.
//
// # Error Types
//
// Domain-specific errors represent errors from specific subsystems:
//   - GitError: errors related to git operations (rebase, staging, reset)
//   - AgentError: errors related to the resolution/verification agents
//   - RunError: errors related to an orchestrated rebase run
//
// Semantic errors represent common error conditions:
//   - ValidationError: invalid input or state, rejected before any mutation
//
// # Usage
//
// Creating errors:
//
//	err := errors.NewGitError("rebase failed", errors.ErrMergeConflict).
//		WithBranch("feature-x").
//		WithGitOutput(output)
//
// Checking errors:
//
//	if errors.Is(err, errors.ErrBranchNotFound) { ... }
//
//	var gitErr *errors.GitError
//	if errors.As(err, &gitErr) { ... }
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Re-export standard library functions for convenience.
// This allows callers to import only this package for all error handling.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	New    = errors.New
	Join   = errors.Join
)

// Severity represents the severity level of an error.
type Severity int

const (
	// SeverityWarning is for errors that might indicate a problem but aren't critical.
	SeverityWarning Severity = iota
	// SeverityError is for errors that indicate a real problem.
	SeverityError
	// SeverityCritical is for errors that require immediate attention.
	SeverityCritical
)

// String returns the string representation of the severity level.
func (s Severity) String() string {
	switch s {
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	case SeverityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// -----------------------------------------------------------------------------
// Sentinel Errors
// -----------------------------------------------------------------------------

// Validation sentinel errors, surfaced before any repository mutation.
var (
	// ErrBranchNotFound indicates that a branch does not resolve to a revision.
	ErrBranchNotFound = New("branch not found")
	// ErrDirtyWorkingTree indicates the working tree has tracked modifications.
	ErrDirtyWorkingTree = New("working tree has uncommitted changes")
	// ErrNotRepository indicates the current directory is not a git repository.
	ErrNotRepository = New("not a git repository")
	// ErrInvalidInput indicates that input validation failed.
	ErrInvalidInput = New("invalid input")
)

// Run sentinel errors.
var (
	// ErrAttemptsExhausted indicates the global resolution attempt ceiling was reached.
	ErrAttemptsExhausted = New("resolution attempts exhausted")
	// ErrFileExhausted indicates a single file's retry ceiling was reached.
	ErrFileExhausted = New("file retry attempts exhausted")
	// ErrAmbiguousFailure indicates a tool operation failed but no conflict
	// files are identifiable, so there is nothing to resolve.
	ErrAmbiguousFailure = New("rebase failed with no identifiable conflicts")
	// ErrMergeConflict indicates a merge conflict occurred.
	ErrMergeConflict = New("merge conflict")
	// ErrRunCanceled indicates the run's context was canceled mid-flight.
	ErrRunCanceled = New("run canceled")
)

// Agent sentinel errors.
var (
	// ErrAgentFailed indicates an agent dispatch failed or returned a malformed result.
	ErrAgentFailed = New("agent dispatch failed")
	// ErrUnknownBackend is returned when the configured agent backend is unsupported.
	ErrUnknownBackend = New("unknown agent backend")
)

// -----------------------------------------------------------------------------
// Base Error Implementation
// -----------------------------------------------------------------------------

// baseError provides common functionality for all error types.
type baseError struct {
	message   string
	cause     error
	severity  Severity
	retryable bool
}

func (e *baseError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.message, e.cause)
	}
	return e.message
}

func (e *baseError) Unwrap() error {
	return e.cause
}

func (e *baseError) Is(target error) bool {
	if e.cause != nil {
		return errors.Is(e.cause, target)
	}
	return false
}

// Severity returns the error severity.
func (e *baseError) Severity() Severity {
	return e.severity
}

// IsRetryable returns whether the error is retryable.
func (e *baseError) IsRetryable() bool {
	return e.retryable
}

// -----------------------------------------------------------------------------
// Domain-Specific Errors
// -----------------------------------------------------------------------------

// GitError represents errors related to git operations.
//
// Example:
//
//	err := errors.NewGitError("failed to stage file", cause).
//		WithFile("src/main.go").
//		WithGitOutput(string(output))
type GitError struct {
	baseError
	Branch     string
	File       string
	Repository string
	GitOutput  string // Captured git command output
}

// NewGitError creates a new GitError.
func NewGitError(message string, cause error) *GitError {
	return &GitError{
		baseError: baseError{
			message:  message,
			cause:    cause,
			severity: SeverityError,
		},
	}
}

// WithBranch adds a branch name to the error context.
func (e *GitError) WithBranch(branch string) *GitError {
	e.Branch = branch
	return e
}

// WithFile adds a file path to the error context.
func (e *GitError) WithFile(path string) *GitError {
	e.File = path
	return e
}

// WithRepository adds a repository path to the error context.
func (e *GitError) WithRepository(path string) *GitError {
	e.Repository = path
	return e
}

// WithGitOutput adds git command output to the error context.
func (e *GitError) WithGitOutput(output string) *GitError {
	e.GitOutput = strings.TrimSpace(output)
	return e
}

// WithRetryable sets whether the error is retryable.
func (e *GitError) WithRetryable(r bool) *GitError {
	e.retryable = r
	return e
}

// Error returns the formatted error message.
func (e *GitError) Error() string {
	var parts []string
	if e.Branch != "" {
		parts = append(parts, fmt.Sprintf("branch=%s", e.Branch))
	}
	if e.File != "" {
		parts = append(parts, fmt.Sprintf("file=%s", e.File))
	}
	if e.Repository != "" {
		parts = append(parts, fmt.Sprintf("repo=%s", e.Repository))
	}

	prefix := "git error"
	if len(parts) > 0 {
		prefix = fmt.Sprintf("git error [%s]", strings.Join(parts, ", "))
	}

	msg := e.message
	if e.cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.cause)
	}
	if e.GitOutput != "" {
		msg = fmt.Sprintf("%s\ngit output: %s", msg, e.GitOutput)
	}

	return fmt.Sprintf("%s: %s", prefix, msg)
}

// Is checks if this error matches the target.
func (e *GitError) Is(target error) bool {
	if _, ok := target.(*GitError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// AgentError represents errors from the resolution or verification agents.
//
// Example:
//
//	err := errors.NewAgentError("resolution agent failed", cause).
//		WithAgent("resolver").
//		WithFile("src/main.go")
type AgentError struct {
	baseError
	Agent string // "resolver" or "verifier"
	File  string
}

// NewAgentError creates a new AgentError.
func NewAgentError(message string, cause error) *AgentError {
	return &AgentError{
		baseError: baseError{
			message:  message,
			cause:    cause,
			severity: SeverityError,
			// Agent faults are recorded per-file and never crash the run.
			retryable: true,
		},
	}
}

// WithAgent adds the agent role to the error context.
func (e *AgentError) WithAgent(agent string) *AgentError {
	e.Agent = agent
	return e
}

// WithFile adds a file path to the error context.
func (e *AgentError) WithFile(path string) *AgentError {
	e.File = path
	return e
}

// WithRetryable sets whether the error is retryable.
func (e *AgentError) WithRetryable(r bool) *AgentError {
	e.retryable = r
	return e
}

// Error returns the formatted error message.
func (e *AgentError) Error() string {
	var parts []string
	if e.Agent != "" {
		parts = append(parts, fmt.Sprintf("agent=%s", e.Agent))
	}
	if e.File != "" {
		parts = append(parts, fmt.Sprintf("file=%s", e.File))
	}

	prefix := "agent error"
	if len(parts) > 0 {
		prefix = fmt.Sprintf("agent error [%s]", strings.Join(parts, ", "))
	}

	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.message)
}

// Is checks if this error matches the target.
func (e *AgentError) Is(target error) bool {
	if _, ok := target.(*AgentError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// RunError represents errors from an orchestrated rebase run.
//
// Example:
//
//	err := errors.NewRunError("round failed", errors.ErrAttemptsExhausted).
//		WithRunID("run-1").
//		WithStage("resolving_conflicts")
type RunError struct {
	baseError
	RunID string
	Stage string
	Round int
}

// NewRunError creates a new RunError.
func NewRunError(message string, cause error) *RunError {
	return &RunError{
		baseError: baseError{
			message:  message,
			cause:    cause,
			severity: SeverityError,
		},
		Round: -1, // -1 indicates not set
	}
}

// WithRunID adds a run ID to the error context.
func (e *RunError) WithRunID(id string) *RunError {
	e.RunID = id
	return e
}

// WithStage adds a workflow stage to the error context.
func (e *RunError) WithStage(stage string) *RunError {
	e.Stage = stage
	return e
}

// WithRound adds a resolution round number to the error context.
func (e *RunError) WithRound(round int) *RunError {
	e.Round = round
	return e
}

// Error returns the formatted error message.
func (e *RunError) Error() string {
	var parts []string
	if e.RunID != "" {
		parts = append(parts, fmt.Sprintf("run=%s", e.RunID))
	}
	if e.Stage != "" {
		parts = append(parts, fmt.Sprintf("stage=%s", e.Stage))
	}
	if e.Round >= 0 {
		parts = append(parts, fmt.Sprintf("round=%d", e.Round))
	}

	prefix := "run error"
	if len(parts) > 0 {
		prefix = fmt.Sprintf("run error [%s]", strings.Join(parts, ", "))
	}

	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.message)
}

// Is checks if this error matches the target.
func (e *RunError) Is(target error) bool {
	if _, ok := target.(*RunError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// -----------------------------------------------------------------------------
// Semantic Errors
// -----------------------------------------------------------------------------

// ValidationError represents invalid input or state, detected before any
// repository mutation. Validation failures never trigger rollback.
//
// Example:
//
//	err := errors.NewValidationError("branch name cannot be empty").
//		WithField("source")
type ValidationError struct {
	baseError
	Field string
	Value any
}

// NewValidationError creates a new ValidationError.
func NewValidationError(message string) *ValidationError {
	return &ValidationError{
		baseError: baseError{
			message:  message,
			severity: SeverityWarning,
		},
	}
}

// WithField adds a field name to the error context.
func (e *ValidationError) WithField(field string) *ValidationError {
	e.Field = field
	return e
}

// WithValue adds the invalid value to the error context.
func (e *ValidationError) WithValue(value any) *ValidationError {
	e.Value = value
	return e
}

// WithCause adds a cause to the error.
func (e *ValidationError) WithCause(cause error) *ValidationError {
	e.cause = cause
	return e
}

// Error returns the formatted error message.
func (e *ValidationError) Error() string {
	var parts []string
	if e.Field != "" {
		parts = append(parts, fmt.Sprintf("field=%s", e.Field))
	}
	if e.Value != nil {
		parts = append(parts, fmt.Sprintf("value=%v", e.Value))
	}

	prefix := "validation error"
	if len(parts) > 0 {
		prefix = fmt.Sprintf("validation error [%s]", strings.Join(parts, ", "))
	}

	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.message)
}

// Is checks if this error matches the target.
func (e *ValidationError) Is(target error) bool {
	if _, ok := target.(*ValidationError); ok {
		return true
	}
	if errors.Is(target, ErrInvalidInput) {
		return true
	}
	return e.baseError.Is(target)
}

// -----------------------------------------------------------------------------
// Error Classification Helpers
// -----------------------------------------------------------------------------

// classified is implemented by all errors in this package.
type classified interface {
	error
	Severity() Severity
	IsRetryable() bool
}

// IsRetryable returns true if the error represents a transient condition
// that may succeed on retry.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var ce classified
	if As(err, &ce) {
		return ce.IsRetryable()
	}
	return false
}

// IsValidation returns true if the error is a validation failure, meaning
// nothing was mutated and no rollback is required.
func IsValidation(err error) bool {
	if err == nil {
		return false
	}
	var ve *ValidationError
	return As(err, &ve)
}

// GetSeverity returns the severity level of the error.
// Returns SeverityError for errors that don't carry a severity.
func GetSeverity(err error) Severity {
	var ce classified
	if As(err, &ce) {
		return ce.Severity()
	}
	return SeverityError
}

// -----------------------------------------------------------------------------
// Convenience Constructors
// -----------------------------------------------------------------------------

// Wrap wraps an error with additional context message.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with a formatted context message.
func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}
