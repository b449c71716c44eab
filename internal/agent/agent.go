// Package agent dispatches conflict resolution and verification work to an
// external AI agent. CLI backends (claude, codex) run one-shot commands in
// the repository and edit conflicted files in place; the openai backend
// calls the chat API and writes resolutions to disk itself.
package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/Iron-Ham/remerge/internal/config"
	"github.com/Iron-Ham/remerge/internal/errors"
	"github.com/Iron-Ham/remerge/internal/git"
	"github.com/Iron-Ham/remerge/internal/logging"
)

// BackendName identifies a supported agent backend.
type BackendName string

const (
	BackendClaude BackendName = "claude"
	BackendCodex  BackendName = "codex"
	BackendOpenAI BackendName = "openai"
)

// ResolveRequest asks an agent to resolve one conflicted file.
type ResolveRequest struct {
	RepoDir      string
	File         string
	TargetBranch string
	SourceBranch string
	// Attempt is 1-based; values above 1 mean a retry of the same file.
	Attempt int
	// Feedback carries the rejection detail from a failed verification,
	// empty on the first attempt.
	Feedback string
}

// ResolveResult is the agent's verdict on a resolution dispatch.
type ResolveResult struct {
	OK      bool
	Summary string
}

// VerifyRequest asks an agent to check a claimed resolution.
type VerifyRequest struct {
	RepoDir string
	File    string
}

// VerifyResult is the verifier's verdict. Issues explains a rejection.
type VerifyResult struct {
	Passed bool
	Issues []string
}

// Resolver dispatches resolution attempts.
type Resolver interface {
	Resolve(ctx context.Context, req ResolveRequest) (ResolveResult, error)
}

// Verifier checks claimed resolutions.
type Verifier interface {
	Verify(ctx context.Context, req VerifyRequest) (VerifyResult, error)
}

// Agent provides both resolution and verification.
type Agent interface {
	Resolver
	Verifier
	Name() BackendName
	DisplayName() string
}

// NewFromConfig builds an Agent from configuration.
func NewFromConfig(cfg *config.Config, executor git.CommandExecutor, logger *logging.Logger) (Agent, error) {
	if cfg == nil {
		return nil, errors.New("missing config")
	}
	if logger == nil {
		logger = logging.NopLogger()
	}

	switch strings.ToLower(cfg.Agent.Backend) {
	case string(BackendClaude), "":
		return NewCLIAgent(NewClaudeBackend(cfg.Agent.Claude), executor, logger), nil
	case string(BackendCodex):
		return NewCLIAgent(NewCodexBackend(cfg.Agent.Codex), executor, logger), nil
	case string(BackendOpenAI):
		return NewOpenAIAgent(cfg.Agent.OpenAI, logger)
	default:
		return nil, fmt.Errorf("%w: %s", errors.ErrUnknownBackend, cfg.Agent.Backend)
	}
}
