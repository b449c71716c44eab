package orchestrator

import (
	"context"

	"github.com/Iron-Ham/remerge/internal/agent"
	"github.com/Iron-Ham/remerge/internal/conflict"
	"github.com/Iron-Ham/remerge/internal/errors"
	"github.com/Iron-Ham/remerge/internal/logging"
	"github.com/Iron-Ham/remerge/internal/orchestrator/callback"
	"github.com/Iron-Ham/remerge/internal/orchestrator/retry"
	"github.com/Iron-Ham/remerge/internal/orchestrator/tracker"
)

// Decision is the gate's verdict on one verification pass.
type Decision int

const (
	// DecisionAccepted means the resolution passed and the file was staged.
	DecisionAccepted Decision = iota
	// DecisionRetry means verification rejected the resolution and the same
	// file should be re-dispatched.
	DecisionRetry
	// DecisionExhausted means the file spent its attempt budget; the engine
	// advances past it.
	DecisionExhausted
	// DecisionStageFailed means verification passed but staging failed,
	// which is terminal for the file this round.
	DecisionStageFailed
)

// Gate runs the verification agent over a claimed resolution and decides
// retry-same-file vs. advance, staging accepted resolutions along the way.
type Gate struct {
	git        Git
	verifier   agent.Verifier
	retries    *retry.Manager
	tracker    *tracker.Tracker
	dispatcher *callback.Dispatcher
	events     *EventLog
	logger     *logging.Logger
}

// NewGate creates a Gate.
func NewGate(git Git, verifier agent.Verifier, retries *retry.Manager, tr *tracker.Tracker, dispatcher *callback.Dispatcher, events *EventLog, logger *logging.Logger) *Gate {
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &Gate{
		git:        git,
		verifier:   verifier,
		retries:    retries,
		tracker:    tr,
		dispatcher: dispatcher,
		events:     events,
		logger:     logger,
	}
}

// Check verifies a claimed resolution for file and applies the retry policy.
// On DecisionRetry the returned feedback explains the rejection so the next
// resolution attempt can address it. On DecisionExhausted or
// DecisionStageFailed the returned error is the file's terminal error.
func (g *Gate) Check(ctx context.Context, run *RunContext, file string) (Decision, string, error) {
	logger := g.logger.WithFile(file)

	g.tracker.Track()
	result, err := g.verifier.Verify(ctx, agent.VerifyRequest{
		RepoDir: g.git.RepoDir(),
		File:    file,
	})
	g.tracker.Complete(err == nil, err)

	// A verifier fault counts as a rejection: the resolution is unproven,
	// so it consumes an attempt and retries like any rejected file.
	if err != nil {
		logger.Warn("verifier fault treated as rejection", "error", err)
		result = agent.VerifyResult{Passed: false, Issues: []string{err.Error()}}
	}

	if result.Passed {
		if err := g.git.Stage(ctx, file); err != nil {
			logger.Error("staging accepted resolution failed", "error", err)
			g.events.Append(LogEntry{
				Stage:   run.Stage,
				Details: "staging failed for " + file,
				Files:   []string{file},
				Errors:  []string{err.Error()},
			})
			return DecisionStageFailed, "", errors.Wrapf(err, "staging %s", file)
		}

		g.retries.RecordResolved(file)
		attempts := g.retries.Attempts(file)
		logger.Info("resolution accepted and staged", "attempts", attempts)
		g.dispatcher.NotifyFileResolved(file, attempts)
		g.events.Append(LogEntry{
			Stage:   run.Stage,
			Details: "resolved " + file,
			Files:   []string{file},
		})
		return DecisionAccepted, "", nil
	}

	// Rejected: classify the issues for the diagnostic message only;
	// classification never changes control flow.
	feedback := conflict.ClassifyIssues(result.Issues).Describe(file)
	g.retries.RecordRejection(file, result.Issues)
	attempts := g.retries.Attempts(file)

	if g.retries.ShouldRetry(file) {
		logger.Info("verification rejected, retrying same file",
			"attempts", attempts, "max", g.retries.Max())
		g.events.Append(LogEntry{
			Stage:   run.Stage,
			Details: feedback,
			Files:   []string{file},
			Errors:  result.Issues,
		})
		return DecisionRetry, feedback, nil
	}

	terminal := errors.Wrapf(errors.ErrFileExhausted, "%s after %d attempts: %s", file, attempts, feedback)
	logger.Warn("file attempt budget exhausted", "attempts", attempts)
	g.dispatcher.NotifyFileFailed(file, feedback)
	g.events.Append(LogEntry{
		Stage:   run.Stage,
		Details: "attempts exhausted for " + file,
		Files:   []string{file},
		Errors:  result.Issues,
	})
	return DecisionExhausted, feedback, terminal
}
