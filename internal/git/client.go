package git

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/Iron-Ham/remerge/internal/errors"
)

// Client exposes the git operations the orchestrator depends on.
// All mutating operations return the captured git output inside a GitError
// on failure so callers can surface it in diagnostics.
type Client struct {
	repoDir  string
	executor CommandExecutor
}

// NewClient creates a Client for the repository at repoDir.
func NewClient(repoDir string) *Client {
	return &Client{
		repoDir:  repoDir,
		executor: NewCLICommandExecutor(),
	}
}

// NewClientWithExecutor creates a Client with a custom executor.
// This is primarily useful for testing.
func NewClientWithExecutor(repoDir string, executor CommandExecutor) *Client {
	return &Client{
		repoDir:  repoDir,
		executor: executor,
	}
}

// RepoDir returns the repository directory.
func (c *Client) RepoDir() string {
	return c.repoDir
}

// IsValidRepository returns true if repoDir is inside a git repository.
func (c *Client) IsValidRepository(ctx context.Context) bool {
	return c.executor.RunQuiet(ctx, c.repoDir, "git", "rev-parse", "--git-dir") == nil
}

// BranchExists returns true if name resolves to a commit.
func (c *Client) BranchExists(ctx context.Context, name string) bool {
	return c.executor.RunQuiet(ctx, c.repoDir, "git", "rev-parse", "--verify", "--quiet", name+"^{commit}") == nil
}

// IsCleanWorkingTree returns true if the working tree has no tracked
// modifications. Untracked files are tolerated.
func (c *Client) IsCleanWorkingTree(ctx context.Context) (bool, error) {
	output, err := c.executor.Run(ctx, c.repoDir, "git", "status", "--porcelain")
	if err != nil {
		return false, errors.NewGitError("failed to check git status", err).
			WithRepository(c.repoDir).
			WithGitOutput(string(output))
	}

	for _, line := range strings.Split(string(output), "\n") {
		line = strings.TrimRight(line, "\r")
		if line == "" {
			continue
		}
		// "??" entries are untracked files and do not make the tree dirty.
		if strings.HasPrefix(line, "??") {
			continue
		}
		return false, nil
	}
	return true, nil
}

// CurrentRevision returns the SHA of HEAD, used as the rollback snapshot.
func (c *Client) CurrentRevision(ctx context.Context) (string, error) {
	output, err := c.executor.Run(ctx, c.repoDir, "git", "rev-parse", "HEAD")
	if err != nil {
		return "", errors.NewGitError("failed to resolve HEAD", err).
			WithRepository(c.repoDir).
			WithGitOutput(string(output))
	}
	return strings.TrimSpace(string(output)), nil
}

// StartRebase begins replaying source's commits onto target.
// On conflict or failure it returns the captured output along with a GitError;
// conflicts are expected and the caller inspects ListUnmergedFiles next.
func (c *Client) StartRebase(ctx context.Context, target, source string) (string, error) {
	output, err := c.executor.Run(ctx, c.repoDir, "git", "rebase", target, source)
	outputStr := string(output)
	if err != nil {
		gitErr := errors.NewGitError("rebase failed", err).
			WithRepository(c.repoDir).
			WithBranch(target).
			WithGitOutput(outputStr)
		if strings.Contains(outputStr, "CONFLICT") || strings.Contains(outputStr, "could not apply") {
			gitErr = errors.NewGitError("rebase stopped on conflicts", errors.ErrMergeConflict).
				WithRepository(c.repoDir).
				WithBranch(target).
				WithGitOutput(outputStr)
		}
		return outputStr, gitErr
	}
	return outputStr, nil
}

// ContinueRebase resumes an in-progress rebase after conflicts were staged.
// core.editor is disabled so the continue never blocks on a commit message.
func (c *Client) ContinueRebase(ctx context.Context) (string, error) {
	output, err := c.executor.Run(ctx, c.repoDir, "git", "-c", "core.editor=true", "rebase", "--continue")
	outputStr := string(output)
	if err != nil {
		gitErr := errors.NewGitError("rebase continue failed", err).
			WithRepository(c.repoDir).
			WithGitOutput(outputStr)
		if strings.Contains(outputStr, "CONFLICT") || strings.Contains(outputStr, "could not apply") {
			gitErr = errors.NewGitError("rebase stopped on further conflicts", errors.ErrMergeConflict).
				WithRepository(c.repoDir).
				WithGitOutput(outputStr)
		}
		return outputStr, gitErr
	}
	return outputStr, nil
}

// AbortRebase aborts an in-progress rebase. Safe to call when none is in
// progress; the resulting error is returned for logging but is not fatal.
func (c *Client) AbortRebase(ctx context.Context) error {
	output, err := c.executor.Run(ctx, c.repoDir, "git", "rebase", "--abort")
	if err != nil {
		return errors.NewGitError("failed to abort rebase", err).
			WithRepository(c.repoDir).
			WithGitOutput(string(output))
	}
	return nil
}

// RebaseInProgress returns true if a rebase is currently in progress.
func (c *Client) RebaseInProgress(ctx context.Context) bool {
	output, err := c.executor.Run(ctx, c.repoDir, "git", "rev-parse", "--git-path", "rebase-merge")
	if err != nil {
		return false
	}
	dir := strings.TrimSpace(string(output))
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(c.repoDir, dir)
	}
	if _, statErr := os.Stat(dir); statErr == nil {
		return true
	}

	output, err = c.executor.Run(ctx, c.repoDir, "git", "rev-parse", "--git-path", "rebase-apply")
	if err != nil {
		return false
	}
	dir = strings.TrimSpace(string(output))
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(c.repoDir, dir)
	}
	_, statErr := os.Stat(dir)
	return statErr == nil
}

// ListUnmergedFiles returns paths with unresolved merge conflicts,
// in the order git reports them.
func (c *Client) ListUnmergedFiles(ctx context.Context) ([]string, error) {
	output, err := c.executor.Run(ctx, c.repoDir, "git", "diff", "--name-only", "--diff-filter=U")
	if err != nil {
		return nil, errors.NewGitError("failed to list unmerged files", err).
			WithRepository(c.repoDir).
			WithGitOutput(string(output))
	}

	lines := strings.TrimSpace(string(output))
	if lines == "" {
		return []string{}, nil
	}
	return strings.Split(lines, "\n"), nil
}

// IsBinary reports whether the file at path holds binary content.
// It checks git's numstat marker first and falls back to a NUL-byte scan.
func (c *Client) IsBinary(ctx context.Context, path string) bool {
	output, err := c.executor.Run(ctx, c.repoDir, "git", "diff", "--numstat", "--", path)
	if err == nil {
		line := strings.TrimSpace(string(output))
		if strings.HasPrefix(line, "-\t-\t") {
			return true
		}
		if line != "" {
			return false
		}
	}

	data, readErr := os.ReadFile(filepath.Join(c.repoDir, path))
	if readErr != nil {
		return false
	}
	if len(data) > 8000 {
		data = data[:8000]
	}
	return bytes.IndexByte(data, 0) >= 0
}

// ReadFile reads a repository-relative file from the working tree.
func (c *Client) ReadFile(ctx context.Context, path string) ([]byte, error) {
	_ = ctx
	return os.ReadFile(filepath.Join(c.repoDir, path))
}

// Stage marks the file's current on-disk content as the accepted resolution.
func (c *Client) Stage(ctx context.Context, path string) error {
	output, err := c.executor.Run(ctx, c.repoDir, "git", "add", "--", path)
	if err != nil {
		return errors.NewGitError("failed to stage file", err).
			WithRepository(c.repoDir).
			WithFile(path).
			WithGitOutput(string(output))
	}
	return nil
}

// HardReset force-resets the repository to the given snapshot revision.
func (c *Client) HardReset(ctx context.Context, snapshot string) error {
	output, err := c.executor.Run(ctx, c.repoDir, "git", "reset", "--hard", snapshot)
	if err != nil {
		return errors.NewGitError("failed to reset to snapshot", err).
			WithRepository(c.repoDir).
			WithGitOutput(string(output))
	}
	return nil
}
