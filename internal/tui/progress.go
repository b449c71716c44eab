// Package tui renders the rebase workflow's event stream as an interactive
// progress view. It consumes the orchestrator's callbacks and never feeds
// anything back into the run, except user-requested quit which cancels it.
package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/Iron-Ham/remerge/internal/orchestrator"
	"github.com/Iron-Ham/remerge/internal/orchestrator/callback"
	"github.com/Iron-Ham/remerge/internal/util"
)

const (
	maxLogLines = 8
	lineWidth   = 100
)

// Messages delivered into the model from orchestrator callbacks.
type (
	// StageMsg reports a workflow stage transition.
	StageMsg struct {
		From, To callback.Stage
	}
	// FileResolvedMsg reports an accepted, staged resolution.
	FileResolvedMsg struct {
		Path     string
		Attempts int
	}
	// FileFailedMsg reports a terminally failed file.
	FileFailedMsg struct {
		Path   string
		Reason string
	}
	// LogMsg carries one event-log entry.
	LogMsg orchestrator.LogEntry
	// DoneMsg carries the terminal outcome.
	DoneMsg struct {
		Success bool
		Err     error
	}
)

type fileState struct {
	path     string
	resolved bool
	failed   bool
	detail   string
}

// Model is the bubbletea model for a single run.
type Model struct {
	spinner spinner.Model
	stage   callback.Stage

	fileOrder []string
	files     map[string]*fileState

	logLines []string

	done    bool
	success bool
	err     error
	quit    bool

	source, target string
}

// NewModel creates the progress model for a run of source onto target.
func NewModel(source, target string) Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = stageStyle
	return Model{
		spinner: s,
		stage:   callback.StageInitializing,
		files:   make(map[string]*fileState),
		source:  source,
		target:  target,
	}
}

// Init starts the spinner.
func (m Model) Init() tea.Cmd {
	return m.spinner.Tick
}

// Update handles spinner ticks, workflow messages, and quit keys.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quit = true
			return m, tea.Quit
		}

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case StageMsg:
		m.stage = msg.To
		return m, nil

	case FileResolvedMsg:
		m.touchFile(msg.Path).resolved = true
		return m, nil

	case FileFailedMsg:
		f := m.touchFile(msg.Path)
		f.failed = true
		f.detail = util.TruncateString(msg.Reason, lineWidth)
		return m, nil

	case LogMsg:
		for _, path := range msg.Files {
			m.touchFile(path)
		}
		m.logLines = append(m.logLines, util.TruncateString(msg.Details, lineWidth))
		if len(m.logLines) > maxLogLines {
			m.logLines = m.logLines[len(m.logLines)-maxLogLines:]
		}
		return m, nil

	case DoneMsg:
		m.done = true
		m.success = msg.Success
		m.err = msg.Err
		return m, tea.Quit
	}

	return m, nil
}

// View renders the progress screen.
func (m Model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render(fmt.Sprintf("remerge: %s onto %s", m.source, m.target)))
	b.WriteString("\n")

	if m.done {
		if m.success {
			b.WriteString(okStyle.Render("✓ rebase completed"))
		} else {
			b.WriteString(failStyle.Render("✗ rebase failed, repository rolled back"))
			if m.err != nil {
				b.WriteString("\n" + failStyle.Render("  "+m.err.Error()))
			}
		}
		b.WriteString("\n")
	} else {
		b.WriteString(fmt.Sprintf("%s %s\n", m.spinner.View(), stageStyle.Render(string(m.stage))))
	}

	if len(m.fileOrder) > 0 {
		b.WriteString("\n")
		for _, path := range m.fileOrder {
			f := m.files[path]
			switch {
			case f.resolved:
				b.WriteString(okStyle.Render("  ✓ "+path) + "\n")
			case f.failed:
				b.WriteString(failStyle.Render("  ✗ "+path) + "\n")
				if f.detail != "" {
					b.WriteString(mutedStyle.Render("      "+f.detail) + "\n")
				}
			default:
				b.WriteString(mutedStyle.Render("  … "+path) + "\n")
			}
		}
	}

	if len(m.logLines) > 0 && !m.done {
		b.WriteString("\n")
		for _, line := range m.logLines {
			b.WriteString(util.TruncateANSI(mutedStyle.Render("  "+line), lineWidth) + "\n")
		}
	}

	if !m.done {
		b.WriteString("\n" + mutedStyle.Render("press q to cancel"))
	}

	return b.String()
}

// Quit reports whether the user asked to cancel.
func (m Model) Quit() bool { return m.quit }

func (m *Model) touchFile(path string) *fileState {
	if f, ok := m.files[path]; ok {
		return f
	}
	f := &fileState{path: path}
	m.files[path] = f
	m.fileOrder = append(m.fileOrder, path)
	return f
}
