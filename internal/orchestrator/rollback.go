package orchestrator

import (
	"context"
	"sync"

	"github.com/Iron-Ham/remerge/internal/logging"
)

// RollbackManager restores the repository to the run's initial snapshot when
// the run fails. It runs at most once per run; a reset that itself fails is
// logged but never masks the original failure.
type RollbackManager struct {
	git    Git
	events *EventLog
	logger *logging.Logger

	mu  sync.Mutex
	ran bool
}

// NewRollbackManager creates a RollbackManager.
func NewRollbackManager(git Git, events *EventLog, logger *logging.Logger) *RollbackManager {
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &RollbackManager{
		git:    git,
		events: events,
		logger: logger,
	}
}

// Rollback aborts any in-progress rebase and hard-resets to the snapshot.
// Subsequent invocations are no-ops.
func (r *RollbackManager) Rollback(ctx context.Context, run *RunContext) {
	r.mu.Lock()
	if r.ran {
		r.mu.Unlock()
		return
	}
	r.ran = true
	r.mu.Unlock()

	r.logger.Info("rolling back to initial snapshot", "snapshot", run.InitialSnapshot)

	// The reset cannot run mid-rebase; clear the rebase state first. An
	// abort failure is expected when git already unwound the rebase.
	if r.git.RebaseInProgress(ctx) {
		if err := r.git.AbortRebase(ctx); err != nil {
			r.logger.Warn("rebase abort during rollback failed", "error", err)
		}
	}

	if err := r.git.HardReset(ctx, run.InitialSnapshot); err != nil {
		r.logger.Error("hard reset to snapshot failed", "error", err)
		r.events.Append(LogEntry{
			Stage:   StageRollingBack,
			Details: "rollback failed; repository may need manual recovery",
			Errors:  []string{err.Error()},
		})
		return
	}

	r.events.Append(LogEntry{
		Stage:   StageRollingBack,
		Details: "repository restored to " + run.InitialSnapshot,
	})
}

// Ran reports whether rollback has executed.
func (r *RollbackManager) Ran() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ran
}
