// Package git wraps the git CLI behind the narrow command contract the
// rebase orchestrator consumes: branch inspection, rebase start/continue,
// conflict listing, staging, and hard reset.
//
// The CommandExecutor interface abstracts process execution so tests can
// script git behavior without a real repository.
package git

import (
	"context"
	"os/exec"
)

// CommandExecutor abstracts command execution for testability.
// This allows tests to mock git commands without executing them.
type CommandExecutor interface {
	// Run executes a command and returns combined output.
	Run(ctx context.Context, dir string, name string, args ...string) ([]byte, error)

	// RunQuiet executes a command and returns only the error.
	RunQuiet(ctx context.Context, dir string, name string, args ...string) error
}

// CLICommandExecutor executes commands using os/exec.
type CLICommandExecutor struct{}

// NewCLICommandExecutor creates a new CLI command executor.
func NewCLICommandExecutor() *CLICommandExecutor {
	return &CLICommandExecutor{}
}

// Run executes a command and returns combined output.
func (e *CLICommandExecutor) Run(ctx context.Context, dir string, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	return cmd.CombinedOutput()
}

// RunQuiet executes a command and returns only the error.
func (e *CLICommandExecutor) RunQuiet(ctx context.Context, dir string, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	return cmd.Run()
}
