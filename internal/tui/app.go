package tui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/Iron-Ham/remerge/internal/orchestrator"
	"github.com/Iron-Ham/remerge/internal/orchestrator/callback"
)

// App owns the bubbletea program for one run.
type App struct {
	program *tea.Program
}

// NewApp creates the progress view for a run of source onto target.
func NewApp(source, target string) *App {
	return &App{
		program: tea.NewProgram(NewModel(source, target)),
	}
}

// Callbacks returns orchestrator callbacks that feed the view. The terminal
// outcome arrives through OnComplete, which also ends the program.
func (a *App) Callbacks() *callback.Callbacks {
	return &callback.Callbacks{
		OnStageChange: func(from, to callback.Stage) {
			a.program.Send(StageMsg{From: from, To: to})
		},
		OnFileResolved: func(path string, attempts int) {
			a.program.Send(FileResolvedMsg{Path: path, Attempts: attempts})
		},
		OnFileFailed: func(path, reason string) {
			a.program.Send(FileFailedMsg{Path: path, Reason: reason})
		},
		OnLog: func(entry callback.LogEntry) {
			if logEntry, ok := entry.(orchestrator.LogEntry); ok {
				a.program.Send(LogMsg(logEntry))
			}
		},
		OnComplete: func(success bool, err error) {
			a.program.Send(DoneMsg{Success: success, Err: err})
		},
	}
}

// Run blocks until the run completes or the user quits. It reports whether
// the user asked to cancel the run.
func (a *App) Run() (canceled bool, err error) {
	model, err := a.program.Run()
	if err != nil {
		return false, err
	}
	if m, ok := model.(Model); ok {
		return m.Quit(), nil
	}
	return false, nil
}
