package config

import (
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// Config represents the complete remerge configuration
type Config struct {
	Rebase  RebaseConfig  `mapstructure:"rebase" yaml:"rebase"`
	Agent   AgentConfig   `mapstructure:"agent" yaml:"agent"`
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`
}

// RebaseConfig controls the conflict-resolution workflow
type RebaseConfig struct {
	// MaxAttempts bounds both the total resolution rounds across all files
	// and each file's individual verification retries (default: 3, range 1-10)
	MaxAttempts int `mapstructure:"max_attempts" yaml:"max_attempts"`
	// LockFilePatterns are glob patterns for generated lock files that are
	// never handed to the resolution agent
	LockFilePatterns []string `mapstructure:"lock_file_patterns" yaml:"lock_file_patterns"`
}

// AgentConfig selects and configures the resolution/verification agent backend
type AgentConfig struct {
	// Backend is the agent backend: "claude", "codex", or "openai" (default: "claude")
	Backend string `mapstructure:"backend" yaml:"backend"`
	// Claude configures the Claude CLI backend
	Claude ClaudeBackendConfig `mapstructure:"claude" yaml:"claude"`
	// Codex configures the Codex CLI backend
	Codex CodexBackendConfig `mapstructure:"codex" yaml:"codex"`
	// OpenAI configures the OpenAI API backend
	OpenAI OpenAIBackendConfig `mapstructure:"openai" yaml:"openai"`
}

// ClaudeBackendConfig configures the Claude CLI backend
type ClaudeBackendConfig struct {
	// Command is the CLI executable (default: "claude")
	Command string `mapstructure:"command" yaml:"command"`
	// SkipPermissions passes --dangerously-skip-permissions (default: true)
	SkipPermissions bool `mapstructure:"skip_permissions" yaml:"skip_permissions"`
}

// CodexBackendConfig configures the Codex CLI backend
type CodexBackendConfig struct {
	// Command is the CLI executable (default: "codex")
	Command string `mapstructure:"command" yaml:"command"`
	// ApprovalMode is "full-auto" or "bypass" (default: "full-auto")
	ApprovalMode string `mapstructure:"approval_mode" yaml:"approval_mode"`
}

// OpenAIBackendConfig configures the OpenAI API backend
type OpenAIBackendConfig struct {
	// Model is the chat model used for resolution and verification (default: "gpt-4o")
	Model string `mapstructure:"model" yaml:"model"`
	// APIKeyEnv names the environment variable holding the API key
	// (default: "OPENAI_API_KEY")
	APIKeyEnv string `mapstructure:"api_key_env" yaml:"api_key_env"`
}

// LoggingConfig controls debug logging behavior
type LoggingConfig struct {
	// Enabled controls whether debug logging is enabled (default: true)
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
	// Level is the log level: "debug", "info", "warn", "error" (default: "info")
	Level string `mapstructure:"level" yaml:"level"`
	// Dir is the log directory; empty means stderr
	Dir string `mapstructure:"dir" yaml:"dir"`
}

// SetDefaults registers default values with viper.
// Call this before reading the config file so defaults are available
// even when no config file exists.
func SetDefaults() {
	viper.SetDefault("rebase.max_attempts", 3)
	viper.SetDefault("rebase.lock_file_patterns", DefaultLockFilePatterns())

	viper.SetDefault("agent.backend", "claude")
	viper.SetDefault("agent.claude.command", "claude")
	viper.SetDefault("agent.claude.skip_permissions", true)
	viper.SetDefault("agent.codex.command", "codex")
	viper.SetDefault("agent.codex.approval_mode", "full-auto")
	viper.SetDefault("agent.openai.model", "gpt-4o")
	viper.SetDefault("agent.openai.api_key_env", "OPENAI_API_KEY")

	viper.SetDefault("logging.enabled", true)
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.dir", "")
}

// DefaultLockFilePatterns returns the default glob patterns for generated
// lock files that must never be sent to the resolution agent.
func DefaultLockFilePatterns() []string {
	return []string{
		"*.lock",
		"*-lock.json",
		"*-lock.yaml",
		"*.lockb",
		"go.sum",
	}
}

// Load unmarshals the current viper state into a Config.
func Load() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns a Config populated with default values, without touching
// the global viper state. Useful for tests and for `remerge init`.
func Default() *Config {
	return &Config{
		Rebase: RebaseConfig{
			MaxAttempts:      3,
			LockFilePatterns: DefaultLockFilePatterns(),
		},
		Agent: AgentConfig{
			Backend: "claude",
			Claude: ClaudeBackendConfig{
				Command:         "claude",
				SkipPermissions: true,
			},
			Codex: CodexBackendConfig{
				Command:      "codex",
				ApprovalMode: "full-auto",
			},
			OpenAI: OpenAIBackendConfig{
				Model:     "gpt-4o",
				APIKeyEnv: "OPENAI_API_KEY",
			},
		},
		Logging: LoggingConfig{
			Enabled: true,
			Level:   "info",
		},
	}
}

// ConfigDir returns the directory where the remerge config file lives.
func ConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "remerge")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "remerge")
}

// ConfigFile returns the full path of the config file.
func ConfigFile() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}
