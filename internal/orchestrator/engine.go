package orchestrator

import (
	"bytes"
	"context"

	"github.com/Iron-Ham/remerge/internal/agent"
	"github.com/Iron-Ham/remerge/internal/conflict"
	"github.com/Iron-Ham/remerge/internal/errors"
	"github.com/Iron-Ham/remerge/internal/logging"
	"github.com/Iron-Ham/remerge/internal/orchestrator/callback"
	"github.com/Iron-Ham/remerge/internal/orchestrator/retry"
	"github.com/Iron-Ham/remerge/internal/orchestrator/tracker"
)

// Engine processes one resolution round: every conflicted file, strictly in
// detection order, through the resolution agent and the verification gate.
type Engine struct {
	git        Git
	resolver   agent.Resolver
	gate       *Gate
	retries    *retry.Manager
	tracker    *tracker.Tracker
	watcher    MutationWatcher
	dispatcher *callback.Dispatcher
	events     *EventLog
	logger     *logging.Logger
}

// NewEngine creates an Engine. watcher may be nil to disable on-disk
// mutation confirmation.
func NewEngine(git Git, resolver agent.Resolver, gate *Gate, retries *retry.Manager, tr *tracker.Tracker, watcher MutationWatcher, dispatcher *callback.Dispatcher, events *EventLog, logger *logging.Logger) *Engine {
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &Engine{
		git:        git,
		resolver:   resolver,
		gate:       gate,
		retries:    retries,
		tracker:    tr,
		watcher:    watcher,
		dispatcher: dispatcher,
		events:     events,
		logger:     logger,
	}
}

// RunRound visits every file in run.ConflictFiles in order, then issues the
// rebase continue. It returns nil when the round succeeded; an
// ErrMergeConflict from the continue counts as success with further
// conflicts pending, which the next detection will pick up.
func (e *Engine) RunRound(ctx context.Context, run *RunContext) error {
	run.ResolutionErrors = nil

	if e.watcher != nil {
		if err := e.watcher.Track(run.ConflictFiles...); err != nil {
			e.logger.Warn("mutation watcher unavailable for this round", "error", err)
		}
	}

	total := len(run.ConflictFiles)
	for i, file := range run.ConflictFiles {
		if err := ctx.Err(); err != nil {
			return errors.Wrap(errors.ErrRunCanceled, err.Error())
		}
		e.processFile(ctx, run, file)
		e.dispatcher.NotifyProgress(i+1, total, run.Stage)
	}

	if len(run.ResolutionErrors) > 0 {
		return errors.Join(errorsOf(run.ResolutionErrors)...)
	}

	output, err := e.git.ContinueRebase(ctx)
	run.LastOpOK = err == nil
	run.LastOpOutput = output
	if err != nil {
		if errors.Is(err, errors.ErrMergeConflict) {
			// More commits conflicted later in the replay; the next
			// detection supersedes the file list.
			e.logger.Info("rebase continue stopped on further conflicts")
			return nil
		}
		return errors.Wrap(err, "continuing rebase")
	}
	return nil
}

// processFile runs the resolve/verify loop for one file. The same file is
// re-dispatched while the gate asks for a retry; progression through the
// round's file list resumes only when the file settles.
func (e *Engine) processFile(ctx context.Context, run *RunContext, file string) {
	logger := e.logger.WithFile(file)

	if e.retries.Exhausted(file) {
		run.recordError(file, errors.ErrFileExhausted)
		return
	}

	content, err := e.git.ReadFile(ctx, file)
	if err != nil {
		run.recordError(file, errors.Wrap(err, "reading conflicted file"))
		return
	}

	// Already marker-free: the conflict resolved trivially or a prior step
	// handled it. Stage as-is.
	if !conflict.HasMarkers(content) {
		logger.Info("no conflict markers present, staging as-is")
		if err := e.git.Stage(ctx, file); err != nil {
			run.recordError(file, errors.Wrapf(err, "staging %s", file))
			return
		}
		e.retries.RecordResolved(file)
		e.dispatcher.NotifyFileResolved(file, 0)
		return
	}

	feedback := ""
	before := content
	for {
		attempt := e.retries.Attempts(file) + 1
		logger.Info("dispatching resolution", "attempt", attempt)
		e.events.Append(LogEntry{
			Stage:   run.Stage,
			Details: "resolving " + file,
			Files:   []string{file},
		})

		e.tracker.Track()
		result, err := e.resolver.Resolve(ctx, agent.ResolveRequest{
			RepoDir:      e.git.RepoDir(),
			File:         file,
			TargetBranch: run.TargetRef,
			SourceBranch: run.SourceRef,
			Attempt:      attempt,
			Feedback:     feedback,
		})
		e.tracker.Complete(err == nil, err)

		// A resolver fault advances to the next file without consuming a
		// verification attempt.
		if err != nil {
			run.recordError(file, err)
			return
		}
		if !result.OK {
			run.recordError(file, errors.NewAgentError("agent declined to resolve: "+result.Summary, nil).
				WithAgent("resolver").
				WithFile(file))
			return
		}
		if !e.confirmMutated(ctx, file, before) {
			run.recordError(file, errors.NewAgentError("agent claimed success but the file was not rewritten", nil).
				WithAgent("resolver").
				WithFile(file))
			return
		}

		decision, gateFeedback, gateErr := e.gate.Check(ctx, run, file)
		switch decision {
		case DecisionAccepted:
			return
		case DecisionRetry:
			feedback = gateFeedback
			// Same file, next attempt; the file index does not advance.
			// Re-baseline the mutation check so a retry that touches
			// nothing cannot pass on the strength of an earlier edit.
			if current, rerr := e.git.ReadFile(ctx, file); rerr == nil {
				before = current
			}
			if e.watcher != nil {
				if terr := e.watcher.Track(file); terr != nil {
					logger.Warn("mutation watcher re-arm failed", "error", terr)
				}
			}
		case DecisionExhausted, DecisionStageFailed:
			run.recordError(file, gateErr)
			return
		}
	}
}

// confirmMutated reports whether the file was actually rewritten since the
// round started. The filesystem watcher answers first; a byte comparison
// against the pre-dispatch content covers watcher lag and rounds without a
// watcher.
func (e *Engine) confirmMutated(ctx context.Context, file string, before []byte) bool {
	if e.watcher != nil && e.watcher.WasModified(file) {
		return true
	}
	after, err := e.git.ReadFile(ctx, file)
	if err != nil {
		return false
	}
	return !bytes.Equal(after, before)
}

func errorsOf(resErrs []ResolutionError) []error {
	out := make([]error, len(resErrs))
	for i, re := range resErrs {
		out[i] = re
	}
	return out
}
