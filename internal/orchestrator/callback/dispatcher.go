// Package callback provides centralized callback dispatch for workflow
// events. It encapsulates the notification logic so the controller and
// engine never touch caller-supplied closures directly.
package callback

import (
	"sync"

	"github.com/Iron-Ham/remerge/internal/logging"
)

// Stage labels a state of the rebase workflow.
// Defined locally to avoid circular imports with the orchestrator package.
type Stage string

// Stage constants.
const (
	StageInitializing Stage = "initializing"
	StageContinuing   Stage = "continuing"
	StageDetecting    Stage = "detecting_conflicts"
	StageResolving    Stage = "resolving_conflicts"
	StageRollingBack  Stage = "rolling_back"
	StageCompleted    Stage = "completed"
	StageFailed       Stage = "failed"
)

// LogEntry is a type alias allowing the dispatcher to forward event-log
// entries without importing the orchestrator package.
type LogEntry = any

// Callbacks holds all callback functions for workflow events.
// Each field is optional - nil callbacks are safely skipped.
type Callbacks struct {
	// OnStageChange is called when the workflow stage changes
	OnStageChange func(from, to Stage)

	// OnFileResolved is called when a file's resolution is accepted and staged
	OnFileResolved func(path string, attempts int)

	// OnFileFailed is called when a file fails terminally
	OnFileFailed func(path, reason string)

	// OnProgress is called as files settle within a round
	OnProgress func(settled, total int, stage Stage)

	// OnLog receives every event-log entry as it is appended
	OnLog func(entry LogEntry)

	// OnComplete is called exactly once when the run ends
	OnComplete func(success bool, err error)
}

// Dispatcher provides centralized, thread-safe callback dispatch.
// It logs events before dispatch and safely handles nil callbacks.
type Dispatcher struct {
	callbacks *Callbacks
	logger    *logging.Logger
	mu        sync.RWMutex
}

// NewDispatcher creates a Dispatcher.
// The logger parameter is optional - if nil, a no-op logger is used.
func NewDispatcher(logger *logging.Logger) *Dispatcher {
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &Dispatcher{
		logger: logger.With("component", "callback-dispatcher"),
	}
}

// SetCallbacks sets or updates the callback functions.
// This is thread-safe and can be called at any time.
func (d *Dispatcher) SetCallbacks(cb *Callbacks) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.callbacks = cb
}

// GetCallbacks returns the current callback configuration.
// Returns nil if no callbacks have been set.
func (d *Dispatcher) GetCallbacks() *Callbacks {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.callbacks
}

// NotifyStageChange notifies callbacks that the workflow stage changed.
func (d *Dispatcher) NotifyStageChange(from, to Stage) {
	d.logger.Info("stage changed",
		"from_stage", string(from),
		"to_stage", string(to),
	)

	cb := d.GetCallbacks()
	if cb != nil && cb.OnStageChange != nil {
		cb.OnStageChange(from, to)
	}
}

// NotifyFileResolved notifies callbacks that a file was resolved and staged.
func (d *Dispatcher) NotifyFileResolved(path string, attempts int) {
	d.logger.Info("file resolved",
		"file", path,
		"attempts", attempts,
	)

	cb := d.GetCallbacks()
	if cb != nil && cb.OnFileResolved != nil {
		cb.OnFileResolved(path, attempts)
	}
}

// NotifyFileFailed notifies callbacks that a file failed terminally.
func (d *Dispatcher) NotifyFileFailed(path, reason string) {
	d.logger.Warn("file failed",
		"file", path,
		"reason", reason,
	)

	cb := d.GetCallbacks()
	if cb != nil && cb.OnFileFailed != nil {
		cb.OnFileFailed(path, reason)
	}
}

// NotifyProgress notifies callbacks of progress within a round.
func (d *Dispatcher) NotifyProgress(settled, total int, stage Stage) {
	cb := d.GetCallbacks()
	if cb != nil && cb.OnProgress != nil {
		cb.OnProgress(settled, total, stage)
	}
}

// NotifyLog forwards an event-log entry to callbacks.
func (d *Dispatcher) NotifyLog(entry LogEntry) {
	cb := d.GetCallbacks()
	if cb != nil && cb.OnLog != nil {
		cb.OnLog(entry)
	}
}

// NotifyComplete notifies callbacks that the run ended.
func (d *Dispatcher) NotifyComplete(success bool, err error) {
	d.logger.Info("run complete",
		"success", success,
		"error", errString(err),
	)

	cb := d.GetCallbacks()
	if cb != nil && cb.OnComplete != nil {
		cb.OnComplete(success, err)
	}
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
