package agent

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/Iron-Ham/remerge/internal/config"
	"github.com/Iron-Ham/remerge/internal/errors"
	"github.com/Iron-Ham/remerge/internal/logging"
)

// unresolvableReply is the exact reply the model is told to produce when it
// cannot resolve a conflict.
const unresolvableReply = "UNRESOLVABLE"

// chatClient is the slice of the OpenAI client the agent needs, split out so
// tests can substitute a scripted fake.
type chatClient interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// OpenAIAgent resolves conflicts through the chat API. Unlike the CLI
// backends it cannot edit the repository itself, so it sends the conflicted
// content out, receives the full resolved file back, and writes it to disk.
type OpenAIAgent struct {
	client chatClient
	model  string
	logger *logging.Logger
}

// NewOpenAIAgent creates an OpenAI-backed agent from config. The API key is
// read from the configured environment variable.
func NewOpenAIAgent(cfg config.OpenAIBackendConfig, logger *logging.Logger) (*OpenAIAgent, error) {
	keyEnv := cfg.APIKeyEnv
	if keyEnv == "" {
		keyEnv = "OPENAI_API_KEY"
	}
	apiKey := strings.TrimSpace(os.Getenv(keyEnv))
	if apiKey == "" {
		return nil, errors.NewValidationError(fmt.Sprintf("environment variable %s is not set", keyEnv)).
			WithField("agent.openai.api_key_env")
	}

	model := cfg.Model
	if model == "" {
		model = "gpt-4o"
	}
	if logger == nil {
		logger = logging.NopLogger()
	}

	return &OpenAIAgent{
		client: openai.NewClient(apiKey),
		model:  model,
		logger: logger,
	}, nil
}

func (a *OpenAIAgent) Name() BackendName { return BackendOpenAI }

func (a *OpenAIAgent) DisplayName() string { return "OpenAI" }

// Resolve sends the conflicted file content to the model and writes the
// resolved content back to disk.
func (a *OpenAIAgent) Resolve(ctx context.Context, req ResolveRequest) (ResolveResult, error) {
	path := filepath.Join(req.RepoDir, req.File)
	content, err := os.ReadFile(path)
	if err != nil {
		return ResolveResult{}, errors.NewAgentError("reading conflicted file", err).
			WithAgent("resolver").
			WithFile(req.File)
	}

	a.logger.WithFile(req.File).Debug("dispatching resolution",
		"backend", BackendOpenAI, "model", a.model, "attempt", req.Attempt)

	reply, err := a.chat(ctx, openAIResolveSystemPrompt, openAIResolveUserPrompt(req, content))
	if err != nil {
		return ResolveResult{}, errors.NewAgentError("resolution dispatch failed", err).
			WithAgent("resolver").
			WithFile(req.File)
	}

	if strings.TrimSpace(reply) == unresolvableReply {
		return ResolveResult{OK: false, Summary: "model declined to resolve the conflict"}, nil
	}

	resolved := stripCodeFence(reply)
	if strings.TrimSpace(resolved) == "" {
		return ResolveResult{}, errors.NewAgentError("empty resolution from model", nil).
			WithAgent("resolver").
			WithFile(req.File)
	}

	if err := os.WriteFile(path, []byte(resolved), 0o644); err != nil {
		return ResolveResult{}, errors.NewAgentError("writing resolved file", err).
			WithAgent("resolver").
			WithFile(req.File)
	}
	return ResolveResult{OK: true, Summary: "resolved via chat completion"}, nil
}

// Verify sends the resolved content to the model and parses its JSON verdict.
func (a *OpenAIAgent) Verify(ctx context.Context, req VerifyRequest) (VerifyResult, error) {
	content, err := os.ReadFile(filepath.Join(req.RepoDir, req.File))
	if err != nil {
		return VerifyResult{}, errors.NewAgentError("reading resolved file", err).
			WithAgent("verifier").
			WithFile(req.File)
	}

	a.logger.WithFile(req.File).Debug("dispatching verification",
		"backend", BackendOpenAI, "model", a.model)

	reply, err := a.chat(ctx, openAIVerifySystemPrompt, openAIVerifyUserPrompt(req, content))
	if err != nil {
		return VerifyResult{}, errors.NewAgentError("verification dispatch failed", err).
			WithAgent("verifier").
			WithFile(req.File)
	}

	result, err := parseVerifyVerdict([]byte(reply))
	if err != nil {
		return VerifyResult{}, errors.NewAgentError("malformed verifier verdict", err).
			WithAgent("verifier").
			WithFile(req.File)
	}
	return result, nil
}

func (a *OpenAIAgent) chat(ctx context.Context, system, user string) (string, error) {
	resp, err := a.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: a.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("chat completion returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

const openAIResolveSystemPrompt = `You resolve git rebase conflicts. You receive one conflicted file and reply with the complete resolved file content, nothing else: no explanation, no markdown fences. Remove every conflict marker, preserve the intent of both sides, and never duplicate code both sides share. If the conflict cannot be resolved, reply with exactly UNRESOLVABLE.`

func openAIResolveUserPrompt(req ResolveRequest, content []byte) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Rebasing %q onto %q conflicted in %q.\n", req.SourceBranch, req.TargetBranch, req.File)
	if req.Attempt > 1 && req.Feedback != "" {
		fmt.Fprintf(&b, "A previous attempt was rejected: %s\n", req.Feedback)
	}
	b.WriteString("\nConflicted content:\n")
	b.Write(content)
	return b.String()
}

const openAIVerifySystemPrompt = `You review resolved git rebase conflicts. Check that no conflict markers remain, no code is duplicated from merging both sides, and the file is syntactically plausible. Reply with exactly one line of JSON: {"verdict": "pass"} or {"verdict": "fail", "issues": ["<problem>", ...]}.`

func openAIVerifyUserPrompt(req VerifyRequest, content []byte) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Resolved content of %q:\n", req.File)
	b.Write(content)
	return b.String()
}

// stripCodeFence removes a surrounding markdown code fence if the model
// added one despite instructions.
func stripCodeFence(s string) string {
	trimmed := strings.TrimSpace(s)
	if !strings.HasPrefix(trimmed, "```") {
		return s
	}
	lines := strings.Split(trimmed, "\n")
	if len(lines) < 2 {
		return s
	}
	lines = lines[1:]
	if strings.TrimSpace(lines[len(lines)-1]) == "```" {
		lines = lines[:len(lines)-1]
	}
	return strings.Join(lines, "\n")
}
