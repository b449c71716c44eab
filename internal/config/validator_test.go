package config

import (
	"strings"
	"testing"
)

func TestValidateDefaults(t *testing.T) {
	cfg := Default()
	if errs := cfg.Validate(); len(errs) != 0 {
		t.Errorf("default config should validate cleanly, got: %v", ValidationErrors(errs))
	}
}

func TestValidateRebase(t *testing.T) {
	tests := []struct {
		name        string
		maxAttempts int
		wantErr     bool
	}{
		{"minimum", 1, false},
		{"default", 3, false},
		{"maximum", 10, false},
		{"zero", 0, true},
		{"negative", -1, true},
		{"too large", 11, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.Rebase.MaxAttempts = tt.maxAttempts
			errs := cfg.Validate()
			if tt.wantErr && len(errs) == 0 {
				t.Error("expected validation error, got none")
			}
			if !tt.wantErr && len(errs) != 0 {
				t.Errorf("unexpected validation errors: %v", ValidationErrors(errs))
			}
		})
	}
}

func TestValidateBadGlobPattern(t *testing.T) {
	cfg := Default()
	cfg.Rebase.LockFilePatterns = []string{"[unclosed"}
	errs := cfg.Validate()
	if len(errs) == 0 {
		t.Fatal("expected validation error for invalid glob")
	}
	if errs[0].Field != "rebase.lock_file_patterns" {
		t.Errorf("Field = %q, want rebase.lock_file_patterns", errs[0].Field)
	}
}

func TestValidateAgentBackend(t *testing.T) {
	cfg := Default()
	cfg.Agent.Backend = "gemini"
	errs := cfg.Validate()
	if len(errs) != 1 {
		t.Fatalf("expected 1 validation error, got %d", len(errs))
	}
	if !strings.Contains(errs[0].Error(), "agent.backend") {
		t.Errorf("error = %q, want agent.backend mention", errs[0].Error())
	}
}

func TestValidateLogLevel(t *testing.T) {
	cfg := Default()
	cfg.Logging.Level = "verbose"
	errs := cfg.Validate()
	if len(errs) != 1 {
		t.Fatalf("expected 1 validation error, got %d", len(errs))
	}
}

func TestValidationErrorsFormatting(t *testing.T) {
	errs := ValidationErrors{
		{Field: "a", Value: 1, Message: "bad"},
		{Field: "b", Value: 2, Message: "worse"},
	}
	msg := errs.Error()
	if !strings.Contains(msg, "2 validation errors") {
		t.Errorf("Error() = %q, want count header", msg)
	}

	single := ValidationErrors{{Field: "a", Value: 1, Message: "bad"}}
	if strings.Contains(single.Error(), "validation errors") {
		t.Errorf("single error should not have count header: %q", single.Error())
	}

	if (ValidationErrors{}).Error() != "" {
		t.Error("empty ValidationErrors should produce empty string")
	}
}
