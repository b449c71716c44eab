package orchestrator

import (
	"context"
	"fmt"

	"github.com/Iron-Ham/remerge/internal/conflict"
	"github.com/Iron-Ham/remerge/internal/errors"
	"github.com/Iron-Ham/remerge/internal/logging"
	"github.com/Iron-Ham/remerge/internal/orchestrator/callback"
	"github.com/Iron-Ham/remerge/internal/orchestrator/retry"
	"github.com/Iron-Ham/remerge/internal/orchestrator/tracker"
)

// Controller is the top-level workflow state machine. It owns the run
// context, holds the run-level tracked operation open for the run's
// lifetime, and signals the terminal outcome through the tracker so nested
// dispatches can never double-complete the run.
type Controller struct {
	git        Git
	engine     *Engine
	filter     *conflict.Filter
	retries    *retry.Manager
	tracker    *tracker.Tracker
	rollback   *RollbackManager
	dispatcher *callback.Dispatcher
	events     *EventLog
	logger     *logging.Logger

	run *RunContext
}

// NewController creates a Controller for one run.
func NewController(git Git, engine *Engine, filter *conflict.Filter, retries *retry.Manager, tr *tracker.Tracker, rollback *RollbackManager, dispatcher *callback.Dispatcher, events *EventLog, logger *logging.Logger, run *RunContext) *Controller {
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &Controller{
		git:        git,
		engine:     engine,
		filter:     filter,
		retries:    retries,
		tracker:    tr,
		rollback:   rollback,
		dispatcher: dispatcher,
		events:     events,
		logger:     logger,
		run:        run,
	}
}

// Run executes a validated run from the start of the rebase.
func (c *Controller) Run(ctx context.Context) {
	// The run-level operation stays open until the run settles so nested
	// agent dispatches can never drive the pending count to zero early.
	c.tracker.Track()

	c.setStage(StageDetecting)
	output, err := c.git.StartRebase(ctx, c.run.TargetRef, c.run.SourceRef)
	c.run.LastOpOK = err == nil
	c.run.LastOpOutput = output
	if err != nil && !errors.Is(err, errors.ErrMergeConflict) {
		c.fail(ctx, errors.Wrap(err, "starting rebase"))
		return
	}

	c.loop(ctx)
}

// Resume re-enters an in-progress rebase, skipping validation.
func (c *Controller) Resume(ctx context.Context) {
	c.tracker.Track()

	c.setStage(StageContinuing)
	if !c.git.RebaseInProgress(ctx) {
		c.fail(ctx, errors.New("no rebase in progress to resume"))
		return
	}

	output, err := c.git.ContinueRebase(ctx)
	c.run.LastOpOK = err == nil
	c.run.LastOpOutput = output
	if err != nil && !errors.Is(err, errors.ErrMergeConflict) {
		c.fail(ctx, errors.Wrap(err, "continuing rebase"))
		return
	}

	c.loop(ctx)
}

// loop is the detect -> resolve cycle shared by Run and Resume.
func (c *Controller) loop(ctx context.Context) {
	for {
		if err := ctx.Err(); err != nil {
			c.fail(ctx, errors.Wrap(errors.ErrRunCanceled, err.Error()))
			return
		}

		c.setStage(StageDetecting)
		files, done, err := c.detect(ctx)
		if err != nil {
			c.fail(ctx, err)
			return
		}
		if done {
			c.complete()
			return
		}
		c.run.ConflictFiles = files

		c.setStage(StageResolving)
		if !c.retries.BeginRound() {
			c.fail(ctx, errors.Wrapf(errors.ErrAttemptsExhausted,
				"no resolution budget left after %d rounds", c.retries.Round()))
			return
		}
		c.events.Append(LogEntry{
			Stage:    StageResolving,
			Details:  fmt.Sprintf("round %d of %d", c.retries.Round(), c.retries.Max()),
			Progress: c.progressEstimate(),
			Files:    files,
		})

		if err := c.engine.RunRound(ctx, c.run); err != nil {
			c.fail(ctx, err)
			return
		}
	}
}

// detect lists and filters the current conflicted files. It returns
// done=true when the rebase finished cleanly, and an error when the state is
// ambiguous: the last rebase operation failed but no resolvable conflicts
// remain to explain it.
func (c *Controller) detect(ctx context.Context) (files []string, done bool, err error) {
	unmerged, err := c.git.ListUnmergedFiles(ctx)
	if err != nil {
		return nil, false, errors.Wrap(err, "listing conflicted files")
	}

	files = c.filter.Apply(unmerged, func(path string) bool {
		return c.git.IsBinary(ctx, path)
	})

	c.events.Append(LogEntry{
		Stage:    StageDetecting,
		Details:  fmt.Sprintf("%d conflicted files (%d resolvable)", len(unmerged), len(files)),
		Progress: c.progressEstimate(),
		Files:    files,
	})

	if len(files) == 0 {
		if !c.run.LastOpOK {
			return nil, false, errors.Wrapf(errors.ErrAmbiguousFailure,
				"rebase operation failed with no resolvable conflicts: %s", c.run.LastOpOutput)
		}
		return nil, true, nil
	}
	return files, false, nil
}

// fail runs rollback and settles the run with failure. Validation failures
// never reach here; nothing is rolled back unless the rebase started.
func (c *Controller) fail(ctx context.Context, err error) {
	c.logger.Error("run failed", "error", err)
	c.setStage(StageFailed)

	c.setStage(StageRollingBack)
	// Rollback must run even when the failure is the caller canceling ctx.
	c.rollback.Rollback(context.WithoutCancel(ctx), c.run)
	c.setStage(StageFailed)

	c.events.Append(LogEntry{
		Stage:   StageFailed,
		Details: "run failed",
		Errors:  []string{err.Error()},
	})
	c.tracker.Complete(false, err)
}

func (c *Controller) complete() {
	c.setStage(StageCompleted)
	c.events.Append(LogEntry{
		Stage:    StageCompleted,
		Details:  "rebase completed",
		Progress: 100,
	})
	c.tracker.Complete(true, nil)
}

func (c *Controller) setStage(stage Stage) {
	if c.run.Stage == stage {
		return
	}
	from := c.run.Stage
	c.run.Stage = stage
	c.dispatcher.NotifyStageChange(from, stage)
}

// progressEstimate derives a rough 0..100 figure from the round budget.
func (c *Controller) progressEstimate() int {
	if c.retries.Max() == 0 {
		return 0
	}
	pct := c.retries.Round() * 100 / c.retries.Max()
	if pct > 99 {
		pct = 99
	}
	return pct
}
