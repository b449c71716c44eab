package agent

import (
	"fmt"
	"strings"

	"github.com/Iron-Ham/remerge/internal/config"
)

// Backend provides backend-specific behavior for one-shot CLI agents.
// A backend builds the shell command that feeds a prompt file to the agent
// and cleans the file up afterwards.
type Backend interface {
	Name() BackendName
	DisplayName() string
	PromptFileName() string
	BuildCommand(promptFile string) (string, error)
}

// ClaudeBackend implements Backend for the Claude CLI.
type ClaudeBackend struct {
	command         string
	skipPermissions bool
}

// NewClaudeBackend creates a Claude backend from config.
func NewClaudeBackend(cfg config.ClaudeBackendConfig) *ClaudeBackend {
	command := cfg.Command
	if command == "" {
		command = "claude"
	}
	return &ClaudeBackend{
		command:         command,
		skipPermissions: cfg.SkipPermissions,
	}
}

func (c *ClaudeBackend) Name() BackendName { return BackendClaude }

func (c *ClaudeBackend) DisplayName() string { return "Claude" }

func (c *ClaudeBackend) PromptFileName() string { return ".remerge-prompt" }

func (c *ClaudeBackend) BuildCommand(promptFile string) (string, error) {
	if promptFile == "" {
		return "", fmt.Errorf("prompt file required")
	}

	cmd := c.command + " --print"
	if c.skipPermissions {
		cmd += " --dangerously-skip-permissions"
	}
	return fmt.Sprintf("%s \"$(cat %q)\" && rm %q", cmd, promptFile, promptFile), nil
}

// CodexBackend implements Backend for the Codex CLI.
type CodexBackend struct {
	command      string
	approvalMode string
}

// NewCodexBackend creates a Codex backend from config.
func NewCodexBackend(cfg config.CodexBackendConfig) *CodexBackend {
	command := cfg.Command
	if command == "" {
		command = "codex"
	}
	mode := cfg.ApprovalMode
	if mode == "" {
		mode = "full-auto"
	}
	return &CodexBackend{
		command:      command,
		approvalMode: mode,
	}
}

func (c *CodexBackend) Name() BackendName { return BackendCodex }

func (c *CodexBackend) DisplayName() string { return "Codex" }

func (c *CodexBackend) PromptFileName() string { return ".remerge-prompt" }

func (c *CodexBackend) BuildCommand(promptFile string) (string, error) {
	if promptFile == "" {
		return "", fmt.Errorf("prompt file required")
	}

	cmd := c.command + " exec" + c.approvalFlags()
	return fmt.Sprintf("%s \"$(cat %q)\" && rm %q", cmd, promptFile, promptFile), nil
}

func (c *CodexBackend) approvalFlags() string {
	switch strings.ToLower(c.approvalMode) {
	case "bypass":
		return " --dangerously-bypass-approvals-and-sandbox"
	case "full-auto":
		return " --full-auto"
	default:
		return ""
	}
}
