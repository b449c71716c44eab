package orchestrator

import (
	"context"
	"sync"

	"github.com/Iron-Ham/remerge/internal/agent"
	"github.com/Iron-Ham/remerge/internal/config"
	"github.com/Iron-Ham/remerge/internal/conflict"
	"github.com/Iron-Ham/remerge/internal/errors"
	"github.com/Iron-Ham/remerge/internal/logging"
	"github.com/Iron-Ham/remerge/internal/orchestrator/callback"
	"github.com/Iron-Ham/remerge/internal/orchestrator/retry"
	"github.com/Iron-Ham/remerge/internal/orchestrator/tracker"

	"github.com/google/uuid"
)

// Options configures a run.
type Options struct {
	// MaxAttempts bounds both the global rounds and per-file retries.
	// Zero means the default of 3; valid values are 1..10.
	MaxAttempts int

	// LockFilePatterns are glob patterns for generated files that are
	// never handed to the agent. Nil means config defaults.
	LockFilePatterns []string

	// Callbacks receive workflow events. Optional.
	Callbacks *callback.Callbacks

	// Watcher confirms on-disk mutations. Optional.
	Watcher MutationWatcher
}

// Handle identifies an in-flight run and exposes its terminal outcome.
type Handle struct {
	ID string

	mu      sync.Mutex
	done    chan struct{}
	success bool
	err     error
}

// Done is closed when the run settles.
func (h *Handle) Done() <-chan struct{} { return h.done }

// Wait blocks until the run settles or ctx is canceled, then returns the
// terminal outcome.
func (h *Handle) Wait(ctx context.Context) (bool, error) {
	select {
	case <-ctx.Done():
		return false, errors.Wrap(errors.ErrRunCanceled, ctx.Err().Error())
	case <-h.done:
	}
	return h.Outcome()
}

// Outcome returns the terminal outcome; only meaningful after Done.
func (h *Handle) Outcome() (bool, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.success, h.err
}

func (h *Handle) settle(success bool, err error) {
	h.mu.Lock()
	h.success = success
	h.err = err
	h.mu.Unlock()
	close(h.done)
}

// Orchestrator wires the workflow components around a git client and the
// two agent collaborators. One Orchestrator drives one logical run at a
// time; each Start builds fresh per-run state.
type Orchestrator struct {
	git      Git
	resolver agent.Resolver
	verifier agent.Verifier
	logger   *logging.Logger

	mu     sync.Mutex
	events *EventLog
}

// New creates an Orchestrator.
func New(git Git, resolver agent.Resolver, verifier agent.Verifier, logger *logging.Logger) *Orchestrator {
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &Orchestrator{
		git:      git,
		resolver: resolver,
		verifier: verifier,
		logger:   logger,
	}
}

// EventLog returns the event log of the most recent run.
func (o *Orchestrator) EventLog() *EventLog {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.events
}

// Start validates the branches and repository synchronously, then runs the
// rebase workflow asynchronously. Validation failures return immediately
// with no mutation and no rollback; after a successful start the terminal
// outcome is delivered exactly once through OnComplete and the Handle.
func (o *Orchestrator) Start(ctx context.Context, source, target string, opts Options) (*Handle, error) {
	run, err := newRunContext(ctx, o.git, source, target)
	if err != nil {
		return nil, err
	}

	ctrl, handle, err := o.build(run, opts)
	if err != nil {
		return nil, err
	}

	go ctrl.Run(ctx)
	return handle, nil
}

// Resume re-enters an already in-progress rebase, skipping branch
// validation. The rollback snapshot is the repository state at resume time.
func (o *Orchestrator) Resume(ctx context.Context, source, target string, opts Options) (*Handle, error) {
	snapshot, err := o.git.CurrentRevision(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "capturing resume snapshot")
	}
	run := &RunContext{
		ID:              uuid.NewString(),
		SourceRef:       sanitizeRef(source),
		TargetRef:       sanitizeRef(target),
		InitialSnapshot: snapshot,
		Stage:           StageContinuing,
	}

	ctrl, handle, err := o.build(run, opts)
	if err != nil {
		return nil, err
	}

	go ctrl.Resume(ctx)
	return handle, nil
}

// build assembles the per-run component graph.
func (o *Orchestrator) build(run *RunContext, opts Options) (*Controller, *Handle, error) {
	maxAttempts, err := normalizeMaxAttempts(opts.MaxAttempts)
	if err != nil {
		return nil, nil, err
	}

	patterns := opts.LockFilePatterns
	if patterns == nil {
		patterns = config.DefaultLockFilePatterns()
	}

	logger := o.logger.WithRun(run.ID)
	dispatcher := callback.NewDispatcher(logger)
	dispatcher.SetCallbacks(opts.Callbacks)

	events := NewEventLog(func(entry LogEntry) {
		dispatcher.NotifyLog(entry)
	})
	o.mu.Lock()
	o.events = events
	o.mu.Unlock()

	handle := &Handle{ID: run.ID, done: make(chan struct{})}
	tr := tracker.New(func(success bool, err error) {
		dispatcher.NotifyComplete(success, err)
		handle.settle(success, err)
	}, logger)

	retries := retry.NewManager(maxAttempts)
	gate := NewGate(o.git, o.verifier, retries, tr, dispatcher, events, logger)
	engine := NewEngine(o.git, o.resolver, gate, retries, tr, opts.Watcher, dispatcher, events, logger)
	rollback := NewRollbackManager(o.git, events, logger)
	filter := conflict.NewFilter(patterns)
	ctrl := NewController(o.git, engine, filter, retries, tr, rollback, dispatcher, events, logger, run)

	return ctrl, handle, nil
}
