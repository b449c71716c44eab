// Package retry tracks the two bounded attempt budgets of a run: the global
// round counter and the per-file verification attempt counts. Both share one
// configured ceiling.
package retry

import (
	"sync"
)

// FileState tracks verification attempts for one conflicted file.
type FileState struct {
	Path       string   `json:"path"`
	Attempts   int      `json:"attempts"`
	LastIssues []string `json:"last_issues,omitempty"`
	Resolved   bool     `json:"resolved,omitempty"`
}

// Manager manages attempt state for a run.
// It is thread-safe and can be used concurrently.
type Manager struct {
	mu    sync.RWMutex
	max   int
	round int
	files map[string]*FileState
}

// NewManager creates a Manager with the given shared attempt ceiling.
func NewManager(max int) *Manager {
	return &Manager{
		max:   max,
		files: make(map[string]*FileState),
	}
}

// Max returns the configured ceiling.
func (m *Manager) Max() int {
	return m.max
}

// BeginRound consumes one global resolution round. It returns false, without
// incrementing, when the budget is already spent; the round counter never
// exceeds the ceiling.
func (m *Manager) BeginRound() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.round >= m.max {
		return false
	}
	m.round++
	return true
}

// Round returns the number of rounds consumed so far.
func (m *Manager) Round() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.round
}

// Attempts returns the verification attempt count for a file.
func (m *Manager) Attempts(path string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if state, ok := m.files[path]; ok {
		return state.Attempts
	}
	return 0
}

// RecordRejection records a failed verification for a file, incrementing its
// attempt count and retaining the issue list for diagnostics.
func (m *Manager) RecordRejection(path string, issues []string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	state := m.getOrCreate(path)
	state.Attempts++
	state.LastIssues = issues
}

// RecordResolved marks a file as successfully resolved and staged.
func (m *Manager) RecordResolved(path string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.getOrCreate(path).Resolved = true
}

// ShouldRetry reports whether a rejected file still has attempt budget.
func (m *Manager) ShouldRetry(path string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	state, ok := m.files[path]
	if !ok {
		return true
	}
	return !state.Resolved && state.Attempts < m.max
}

// Exhausted reports whether a file has spent its attempt budget without
// being resolved. An exhausted file is never dispatched again in the run.
func (m *Manager) Exhausted(path string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	state, ok := m.files[path]
	if !ok {
		return false
	}
	return !state.Resolved && state.Attempts >= m.max
}

// LastIssues returns the most recent rejection issues for a file.
func (m *Manager) LastIssues(path string) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if state, ok := m.files[path]; ok {
		return state.LastIssues
	}
	return nil
}

// ExhaustedFiles returns all files that spent their budget unresolved.
func (m *Manager) ExhaustedFiles() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var exhausted []string
	for path, state := range m.files {
		if !state.Resolved && state.Attempts >= m.max {
			exhausted = append(exhausted, path)
		}
	}
	return exhausted
}

func (m *Manager) getOrCreate(path string) *FileState {
	state, ok := m.files[path]
	if !ok {
		state = &FileState{Path: path}
		m.files[path] = state
	}
	return state
}
