// Package tracker counts in-flight asynchronous operations for one workflow
// run and fires the run's terminal callback exactly once when the count
// settles at zero.
package tracker

import (
	"sync"

	"github.com/Iron-Ham/remerge/internal/logging"
)

// Tracker is the pending-operation counter plus single-fire completion latch
// shared by one run. Every dispatch to an external collaborator registers
// with Track before the dispatch is issued and resolves with Complete when
// its continuation finishes; the ordering matters so a fast completion can
// never race the count to a premature zero.
//
// It is safe for a completion callback to call back into the Tracker from
// inside another callback's continuation.
type Tracker struct {
	mu         sync.Mutex
	pending    int
	completed  bool
	onComplete func(success bool, err error)
	logger     *logging.Logger
}

// New creates a Tracker. onComplete is the run's terminal callback; it is
// invoked at most once, outside the Tracker's lock.
func New(onComplete func(success bool, err error), logger *logging.Logger) *Tracker {
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &Tracker{
		onComplete: onComplete,
		logger:     logger,
	}
}

// Track registers one in-flight operation. Call before issuing the dispatch.
func (t *Tracker) Track() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.completed {
		t.logger.Warn("operation tracked after run completed")
		return
	}
	t.pending++
}

// Complete resolves one in-flight operation. When the pending count reaches
// zero the terminal callback fires exactly once with the given outcome.
// Decrementing below zero is a logic fault: it is clamped and logged, never
// propagated.
func (t *Tracker) Complete(success bool, err error) {
	t.mu.Lock()
	if t.pending == 0 {
		t.logger.Warn("operation completed with no pending operations")
	} else {
		t.pending--
	}

	if t.pending != 0 || t.completed {
		t.mu.Unlock()
		return
	}
	t.completed = true
	cb := t.onComplete
	t.mu.Unlock()

	if cb != nil {
		cb(success, err)
	}
}

// Pending returns the current in-flight count.
func (t *Tracker) Pending() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.pending
}

// Completed reports whether the terminal callback has fired.
func (t *Tracker) Completed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.completed
}
