package tui

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/Iron-Ham/remerge/internal/errors"
	"github.com/Iron-Ham/remerge/internal/orchestrator/callback"
)

func update(t *testing.T, m Model, msg tea.Msg) Model {
	t.Helper()
	next, _ := m.Update(msg)
	out, ok := next.(Model)
	if !ok {
		t.Fatalf("Update returned %T, want Model", next)
	}
	return out
}

func TestModelTracksStage(t *testing.T) {
	m := NewModel("feature", "main")
	m = update(t, m, StageMsg{From: callback.StageInitializing, To: callback.StageResolving})

	if m.stage != callback.StageResolving {
		t.Errorf("stage = %s, want resolving", m.stage)
	}
	if !strings.Contains(m.View(), "resolving_conflicts") {
		t.Error("view should show the current stage")
	}
}

func TestModelRendersFileStates(t *testing.T) {
	m := NewModel("feature", "main")
	m = update(t, m, LogMsg{Details: "resolving a.go", Files: []string{"a.go", "b.go"}})
	m = update(t, m, FileResolvedMsg{Path: "a.go", Attempts: 1})
	m = update(t, m, FileFailedMsg{Path: "b.go", Reason: "attempts exhausted"})

	view := m.View()
	if !strings.Contains(view, "✓ a.go") {
		t.Errorf("view missing resolved marker:\n%s", view)
	}
	if !strings.Contains(view, "✗ b.go") {
		t.Errorf("view missing failed marker:\n%s", view)
	}
	if !strings.Contains(view, "attempts exhausted") {
		t.Errorf("view missing failure detail:\n%s", view)
	}
}

func TestModelDone(t *testing.T) {
	m := NewModel("feature", "main")

	t.Run("success", func(t *testing.T) {
		next, cmd := m.Update(DoneMsg{Success: true})
		if cmd == nil {
			t.Error("DoneMsg should quit the program")
		}
		view := next.(Model).View()
		if !strings.Contains(view, "completed") {
			t.Errorf("view = %q, want completion message", view)
		}
	})

	t.Run("failure", func(t *testing.T) {
		next, _ := m.Update(DoneMsg{Success: false, Err: errors.ErrAttemptsExhausted})
		view := next.(Model).View()
		if !strings.Contains(view, "failed") {
			t.Errorf("view = %q, want failure message", view)
		}
		if !strings.Contains(view, errors.ErrAttemptsExhausted.Error()) {
			t.Errorf("view = %q, want the terminal error", view)
		}
	})
}

func TestModelQuitKey(t *testing.T) {
	m := NewModel("feature", "main")
	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}})
	if cmd == nil {
		t.Error("q should quit")
	}
	if !next.(Model).Quit() {
		t.Error("Quit() = false after q, want true")
	}
}

func TestModelLogLinesBounded(t *testing.T) {
	m := NewModel("feature", "main")
	for i := 0; i < maxLogLines*2; i++ {
		m = update(t, m, LogMsg{Details: "line"})
	}
	if len(m.logLines) != maxLogLines {
		t.Errorf("logLines = %d entries, want bounded at %d", len(m.logLines), maxLogLines)
	}
}
