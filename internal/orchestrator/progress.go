package orchestrator

import (
	"sync"
	"time"
)

// LogEntry is one record in the run's event log. Immutable once appended.
type LogEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Stage     Stage     `json:"stage"`
	Details   string    `json:"details"`
	// Progress is a 0..100 estimate of run completion.
	Progress int      `json:"progress"`
	Files    []string `json:"files,omitempty"`
	Errors   []string `json:"errors,omitempty"`
}

// EventLog is the append-only ordered log of a run. The orchestrator only
// writes to it; consumers read it incrementally through the onAppend hook or
// after the fact through Entries.
type EventLog struct {
	mu       sync.Mutex
	entries  []LogEntry
	onAppend func(LogEntry)
}

// NewEventLog creates an EventLog. onAppend, if non-nil, is invoked for
// every appended entry in order.
func NewEventLog(onAppend func(LogEntry)) *EventLog {
	return &EventLog{onAppend: onAppend}
}

// Append stamps and appends an entry. Entries are never mutated or
// reordered after this point.
func (l *EventLog) Append(entry LogEntry) {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}

	l.mu.Lock()
	l.entries = append(l.entries, entry)
	hook := l.onAppend
	l.mu.Unlock()

	if hook != nil {
		hook(entry)
	}
}

// Entries returns a copy of the log so far.
func (l *EventLog) Entries() []LogEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]LogEntry, len(l.entries))
	copy(out, l.entries)
	return out
}

// Len returns the number of appended entries.
func (l *EventLog) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
