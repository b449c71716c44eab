package agent

import (
	"context"
	"os"
	"path/filepath"

	"github.com/Iron-Ham/remerge/internal/errors"
	"github.com/Iron-Ham/remerge/internal/git"
	"github.com/Iron-Ham/remerge/internal/logging"
)

// CLIAgent runs one-shot backend commands inside the repository. The backend
// reads and edits files directly; the agent only carries the prompt in and
// the verdict out.
type CLIAgent struct {
	backend  Backend
	executor git.CommandExecutor
	logger   *logging.Logger
}

// NewCLIAgent creates a CLIAgent for the given backend.
func NewCLIAgent(backend Backend, executor git.CommandExecutor, logger *logging.Logger) *CLIAgent {
	if executor == nil {
		executor = git.NewCLICommandExecutor()
	}
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &CLIAgent{
		backend:  backend,
		executor: executor,
		logger:   logger,
	}
}

func (a *CLIAgent) Name() BackendName { return a.backend.Name() }

func (a *CLIAgent) DisplayName() string { return a.backend.DisplayName() }

// Resolve dispatches a resolution attempt for one conflicted file.
func (a *CLIAgent) Resolve(ctx context.Context, req ResolveRequest) (ResolveResult, error) {
	a.logger.WithFile(req.File).Debug("dispatching resolution",
		"backend", a.backend.Name(), "attempt", req.Attempt)

	output, err := a.run(ctx, req.RepoDir, resolvePrompt(req))
	if err != nil {
		return ResolveResult{}, errors.NewAgentError("resolution dispatch failed", err).
			WithAgent("resolver").
			WithFile(req.File)
	}

	result, err := parseResolveVerdict(output)
	if err != nil {
		return ResolveResult{}, errors.NewAgentError("malformed resolver verdict", err).
			WithAgent("resolver").
			WithFile(req.File)
	}
	return result, nil
}

// Verify dispatches a verification pass over a claimed resolution.
func (a *CLIAgent) Verify(ctx context.Context, req VerifyRequest) (VerifyResult, error) {
	a.logger.WithFile(req.File).Debug("dispatching verification",
		"backend", a.backend.Name())

	output, err := a.run(ctx, req.RepoDir, verifyPrompt(req))
	if err != nil {
		return VerifyResult{}, errors.NewAgentError("verification dispatch failed", err).
			WithAgent("verifier").
			WithFile(req.File)
	}

	result, err := parseVerifyVerdict(output)
	if err != nil {
		return VerifyResult{}, errors.NewAgentError("malformed verifier verdict", err).
			WithAgent("verifier").
			WithFile(req.File)
	}
	return result, nil
}

// run writes the prompt to the backend's prompt file and executes the
// backend's one-shot command from the repository root. The command removes
// the prompt file when it succeeds; the deferred cleanup covers failures.
func (a *CLIAgent) run(ctx context.Context, repoDir, prompt string) ([]byte, error) {
	promptFile := filepath.Join(repoDir, a.backend.PromptFileName())
	if err := os.WriteFile(promptFile, []byte(prompt), 0o600); err != nil {
		return nil, err
	}
	defer os.Remove(promptFile)

	cmd, err := a.backend.BuildCommand(promptFile)
	if err != nil {
		return nil, err
	}
	return a.executor.Run(ctx, repoDir, "sh", "-c", cmd)
}
