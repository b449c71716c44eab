package orchestrator

import (
	"context"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/Iron-Ham/remerge/internal/errors"
)

const (
	minMaxAttempts     = 1
	maxMaxAttempts     = 10
	defaultMaxAttempts = 3
)

// refCharPattern strips anything outside the characters git branch names need
// here. Sanitization happens before any ref reaches the command boundary.
var refCharPattern = regexp.MustCompile(`[^A-Za-z0-9_/-]`)

// sanitizeRef normalizes a branch identifier to the restricted character set.
func sanitizeRef(ref string) string {
	return refCharPattern.ReplaceAllString(strings.TrimSpace(ref), "")
}

// normalizeMaxAttempts applies the default and range-checks the ceiling.
func normalizeMaxAttempts(maxAttempts int) (int, error) {
	if maxAttempts == 0 {
		return defaultMaxAttempts, nil
	}
	if maxAttempts < minMaxAttempts || maxAttempts > maxMaxAttempts {
		return 0, errors.NewValidationError("max attempts must be between 1 and 10").
			WithField("max_attempts")
	}
	return maxAttempts, nil
}

// newRunContext validates preconditions and produces the run's initial
// state, capturing the rollback snapshot before anything is mutated.
func newRunContext(ctx context.Context, g Git, source, target string) (*RunContext, error) {
	sourceRef := sanitizeRef(source)
	targetRef := sanitizeRef(target)
	if sourceRef == "" {
		return nil, errors.NewValidationError("source branch name is empty or invalid").
			WithField("source")
	}
	if targetRef == "" {
		return nil, errors.NewValidationError("target branch name is empty or invalid").
			WithField("target")
	}

	if !g.IsValidRepository(ctx) {
		return nil, errors.NewGitError("not a git repository", errors.ErrNotRepository).
			WithRepository(g.RepoDir())
	}
	if !g.BranchExists(ctx, sourceRef) {
		return nil, errors.NewGitError("source branch not found", errors.ErrBranchNotFound).
			WithBranch(sourceRef)
	}
	if !g.BranchExists(ctx, targetRef) {
		return nil, errors.NewGitError("target branch not found", errors.ErrBranchNotFound).
			WithBranch(targetRef)
	}

	clean, err := g.IsCleanWorkingTree(ctx)
	if err != nil {
		return nil, err
	}
	if !clean {
		return nil, errors.NewGitError("working tree has uncommitted changes", errors.ErrDirtyWorkingTree).
			WithRepository(g.RepoDir())
	}

	snapshot, err := g.CurrentRevision(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "capturing initial snapshot")
	}

	return &RunContext{
		ID:              uuid.NewString(),
		SourceRef:       sourceRef,
		TargetRef:       targetRef,
		InitialSnapshot: snapshot,
		Stage:           StageInitializing,
	}, nil
}
