package cmd

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Iron-Ham/remerge/internal/config"
	"gopkg.in/yaml.v3"
)

func TestRootHasSubcommands(t *testing.T) {
	want := map[string]bool{"rebase": false, "init": false}
	for _, c := range rootCmd.Commands() {
		if _, ok := want[c.Name()]; ok {
			want[c.Name()] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Errorf("expected %q subcommand to be registered", name)
		}
	}
}

func TestRebaseRequiresTwoArgs(t *testing.T) {
	if err := rebaseCmd.Args(rebaseCmd, []string{"feature"}); err == nil {
		t.Error("expected an error with a single argument")
	}
	if err := rebaseCmd.Args(rebaseCmd, []string{"feature", "main"}); err != nil {
		t.Errorf("unexpected error with two arguments: %v", err)
	}
}

func TestInitWritesDefaultConfig(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	if err := runInit(); err != nil {
		t.Fatalf("runInit: %v", err)
	}

	data, err := os.ReadFile(config.ConfigFile())
	if err != nil {
		t.Fatalf("reading config file: %v", err)
	}

	var cfg config.Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		t.Fatalf("unmarshaling config: %v", err)
	}
	if cfg.Rebase.MaxAttempts != 3 {
		t.Errorf("max_attempts = %d, want 3", cfg.Rebase.MaxAttempts)
	}
	if cfg.Agent.Backend != "claude" {
		t.Errorf("backend = %q, want claude", cfg.Agent.Backend)
	}
	if !strings.Contains(string(data), "lock_file_patterns") {
		t.Error("expected lock_file_patterns key in written config")
	}
}

func TestInitRefusesToOverwrite(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)

	path := config.ConfigFile()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("rebase:\n  max_attempts: 5\n"), 0644); err != nil {
		t.Fatal(err)
	}

	initForce = false
	if err := runInit(); err == nil {
		t.Error("expected an error when the config file already exists")
	}

	initForce = true
	defer func() { initForce = false }()
	if err := runInit(); err != nil {
		t.Errorf("expected --force to overwrite: %v", err)
	}
}
