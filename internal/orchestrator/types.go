// Package orchestrator drives the asynchronous rebase conflict-resolution
// workflow: validate, detect conflicts, dispatch resolution and verification
// per file under bounded retry budgets, and roll back to the initial
// snapshot when the run fails.
package orchestrator

import (
	"context"
	"fmt"

	"github.com/Iron-Ham/remerge/internal/orchestrator/callback"
)

// Stage labels a state of the rebase workflow.
type Stage = callback.Stage

// Stage constants, re-exported for callers that never touch the callback
// package directly.
const (
	StageInitializing = callback.StageInitializing
	StageContinuing   = callback.StageContinuing
	StageDetecting    = callback.StageDetecting
	StageResolving    = callback.StageResolving
	StageRollingBack  = callback.StageRollingBack
	StageCompleted    = callback.StageCompleted
	StageFailed       = callback.StageFailed
)

// Git is the version-control surface the orchestrator consumes. The concrete
// implementation shells out; tests substitute a scripted fake.
type Git interface {
	RepoDir() string
	IsValidRepository(ctx context.Context) bool
	BranchExists(ctx context.Context, name string) bool
	IsCleanWorkingTree(ctx context.Context) (bool, error)
	CurrentRevision(ctx context.Context) (string, error)
	StartRebase(ctx context.Context, target, source string) (string, error)
	ContinueRebase(ctx context.Context) (string, error)
	AbortRebase(ctx context.Context) error
	RebaseInProgress(ctx context.Context) bool
	ListUnmergedFiles(ctx context.Context) ([]string, error)
	IsBinary(ctx context.Context, path string) bool
	ReadFile(ctx context.Context, path string) ([]byte, error)
	Stage(ctx context.Context, path string) error
	HardReset(ctx context.Context, snapshot string) error
}

// MutationWatcher confirms that a claimed resolution actually rewrote the
// file on disk. Optional; a nil watcher disables the check.
type MutationWatcher interface {
	Track(paths ...string) error
	WasModified(path string) bool
}

// ResolutionError records a per-file failure within one resolution round.
type ResolutionError struct {
	File string
	Err  error
}

func (e ResolutionError) Error() string {
	return fmt.Sprintf("%s: %v", e.File, e.Err)
}

func (e ResolutionError) Unwrap() error { return e.Err }

// RunContext is the mutable state of one workflow run. It is owned by the
// controller; the engine and gate mutate it while a round is in flight.
type RunContext struct {
	ID        string
	SourceRef string
	TargetRef string

	// InitialSnapshot is the revision captured before any mutation,
	// used only by rollback.
	InitialSnapshot string

	// ConflictFiles is the ordered file list from the most recent
	// detection; each detection fully replaces it.
	ConflictFiles []string

	// ResolutionErrors accumulates per-file failures for the current
	// round; cleared when a round begins.
	ResolutionErrors []ResolutionError

	// Stage is the current workflow state.
	Stage Stage

	// LastOpOK and LastOpOutput record the outcome of the most recent
	// rebase operation (start or continue). Detection uses them to tell
	// a finished rebase from an ambiguous failure.
	LastOpOK     bool
	LastOpOutput string
}

// recordError appends a per-file failure to the current round.
func (r *RunContext) recordError(file string, err error) {
	r.ResolutionErrors = append(r.ResolutionErrors, ResolutionError{File: file, Err: err})
}
