package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Iron-Ham/remerge/internal/agent"
	"github.com/Iron-Ham/remerge/internal/errors"
	"github.com/Iron-Ham/remerge/internal/orchestrator/callback"
)

const conflictedContent = "package a\n<<<<<<< HEAD\nx := 1\n=======\nx := 2\n>>>>>>> feature\n"

// fakeGit scripts the version-control collaborator.
type fakeGit struct {
	mu sync.Mutex

	repoDir   string
	validRepo bool
	branches  map[string]bool
	clean     bool
	revision  string

	files    map[string]string
	binaries map[string]bool

	startErr     error
	unmergedSeq  [][]string
	continueErrs []error
	stageErr     error
	resetErr     error

	inProgress bool

	startCalls    int
	continueCalls int
	staged        []string
	resets        []string
	aborts        int
}

func newFakeGit() *fakeGit {
	return &fakeGit{
		repoDir:   "/repo",
		validRepo: true,
		branches:  map[string]bool{"main": true, "feature": true},
		clean:     true,
		revision:  "abc1234",
		files:     make(map[string]string),
		binaries:  make(map[string]bool),
	}
}

func conflictErr(msg string) error {
	return errors.NewGitError(msg, errors.ErrMergeConflict).WithGitOutput("CONFLICT")
}

func (g *fakeGit) RepoDir() string { return g.repoDir }

func (g *fakeGit) IsValidRepository(ctx context.Context) bool { return g.validRepo }

func (g *fakeGit) BranchExists(ctx context.Context, name string) bool { return g.branches[name] }

func (g *fakeGit) IsCleanWorkingTree(ctx context.Context) (bool, error) { return g.clean, nil }

func (g *fakeGit) CurrentRevision(ctx context.Context) (string, error) { return g.revision, nil }

func (g *fakeGit) StartRebase(ctx context.Context, target, source string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.startCalls++
	if g.startErr != nil {
		g.inProgress = true
		return "CONFLICT", g.startErr
	}
	return "ok", nil
}

func (g *fakeGit) ContinueRebase(ctx context.Context) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.continueCalls++
	if len(g.continueErrs) > 0 {
		err := g.continueErrs[0]
		g.continueErrs = g.continueErrs[1:]
		if err != nil {
			return "CONFLICT", err
		}
	}
	g.inProgress = false
	return "ok", nil
}

func (g *fakeGit) AbortRebase(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.aborts++
	g.inProgress = false
	return nil
}

func (g *fakeGit) RebaseInProgress(ctx context.Context) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.inProgress
}

func (g *fakeGit) ListUnmergedFiles(ctx context.Context) ([]string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.unmergedSeq) > 0 {
		out := g.unmergedSeq[0]
		g.unmergedSeq = g.unmergedSeq[1:]
		return out, nil
	}
	return nil, nil
}

func (g *fakeGit) IsBinary(ctx context.Context, path string) bool { return g.binaries[path] }

func (g *fakeGit) ReadFile(ctx context.Context, path string) ([]byte, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if content, ok := g.files[path]; ok {
		return []byte(content), nil
	}
	return nil, fmt.Errorf("no such file: %s", path)
}

func (g *fakeGit) Stage(ctx context.Context, path string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.stageErr != nil {
		return g.stageErr
	}
	g.staged = append(g.staged, path)
	return nil
}

func (g *fakeGit) HardReset(ctx context.Context, snapshot string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.resets = append(g.resets, snapshot)
	return g.resetErr
}

// fakeResolver rewrites the file in the fake git and reports success unless
// scripted otherwise.
type fakeResolver struct {
	git       *fakeGit
	mu        sync.Mutex
	calls     []agent.ResolveRequest
	resolveFn func(req agent.ResolveRequest) (agent.ResolveResult, error)
}

func (r *fakeResolver) Resolve(ctx context.Context, req agent.ResolveRequest) (agent.ResolveResult, error) {
	r.mu.Lock()
	r.calls = append(r.calls, req)
	r.mu.Unlock()
	if r.resolveFn != nil {
		return r.resolveFn(req)
	}
	r.git.mu.Lock()
	r.git.files[req.File] = fmt.Sprintf("resolved content, attempt %d\n", req.Attempt)
	r.git.mu.Unlock()
	return agent.ResolveResult{OK: true, Summary: "done"}, nil
}

func (r *fakeResolver) callCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

// fakeVerifier consumes scripted verdicts in order; an empty script passes
// everything.
type fakeVerifier struct {
	mu       sync.Mutex
	calls    int
	verdicts []agent.VerifyResult
}

func (v *fakeVerifier) Verify(ctx context.Context, req agent.VerifyRequest) (agent.VerifyResult, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.calls++
	if len(v.verdicts) > 0 {
		out := v.verdicts[0]
		v.verdicts = v.verdicts[1:]
		return out, nil
	}
	return agent.VerifyResult{Passed: true}, nil
}

func (v *fakeVerifier) callCount() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.calls
}

func waitOutcome(t *testing.T, h *Handle) (bool, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return h.Wait(ctx)
}

func TestStartNoConflictsCompletes(t *testing.T) {
	g := newFakeGit()
	resolver := &fakeResolver{git: g}
	verifier := &fakeVerifier{}
	o := New(g, resolver, verifier, nil)

	h, err := o.Start(context.Background(), "feature", "main", Options{})
	if err != nil {
		t.Fatalf("Start returned error: %v", err)
	}

	success, err := waitOutcome(t, h)
	if !success || err != nil {
		t.Fatalf("outcome = (%v, %v), want success", success, err)
	}
	if resolver.callCount() != 0 {
		t.Errorf("resolver dispatched %d times, want 0", resolver.callCount())
	}
	if len(g.resets) != 0 {
		t.Errorf("rollback ran on a successful run: %v", g.resets)
	}
}

func TestStartSingleFileResolved(t *testing.T) {
	g := newFakeGit()
	g.startErr = conflictErr("rebase stopped on conflicts")
	g.unmergedSeq = [][]string{{"src/a.go"}}
	g.files["src/a.go"] = conflictedContent

	resolver := &fakeResolver{git: g}
	verifier := &fakeVerifier{}
	o := New(g, resolver, verifier, nil)

	h, err := o.Start(context.Background(), "feature", "main", Options{})
	if err != nil {
		t.Fatalf("Start returned error: %v", err)
	}

	success, err := waitOutcome(t, h)
	if !success || err != nil {
		t.Fatalf("outcome = (%v, %v), want success", success, err)
	}
	if resolver.callCount() != 1 {
		t.Errorf("resolver dispatched %d times, want 1", resolver.callCount())
	}
	if verifier.callCount() != 1 {
		t.Errorf("verifier dispatched %d times, want 1", verifier.callCount())
	}
	if len(g.staged) != 1 || g.staged[0] != "src/a.go" {
		t.Errorf("staged = %v, want [src/a.go]", g.staged)
	}
	if len(g.resets) != 0 {
		t.Errorf("rollback ran on a successful run: %v", g.resets)
	}
}

func TestStartRejectTwiceThenAccept(t *testing.T) {
	g := newFakeGit()
	g.startErr = conflictErr("rebase stopped on conflicts")
	g.unmergedSeq = [][]string{{"a.go"}}
	g.files["a.go"] = conflictedContent

	resolver := &fakeResolver{git: g}
	verifier := &fakeVerifier{verdicts: []agent.VerifyResult{
		{Passed: false, Issues: []string{"unresolved conflict markers"}},
		{Passed: false, Issues: []string{"duplicated block"}},
		{Passed: true},
	}}

	var resolvedAttempts int
	o := New(g, resolver, verifier, nil)
	h, err := o.Start(context.Background(), "feature", "main", Options{
		MaxAttempts: 3,
		Callbacks: &callback.Callbacks{
			OnFileResolved: func(path string, attempts int) { resolvedAttempts = attempts },
		},
	})
	if err != nil {
		t.Fatalf("Start returned error: %v", err)
	}

	success, err := waitOutcome(t, h)
	if !success || err != nil {
		t.Fatalf("outcome = (%v, %v), want success", success, err)
	}
	if resolver.callCount() != 3 {
		t.Errorf("resolver dispatched %d times, want 3", resolver.callCount())
	}
	if resolvedAttempts != 2 {
		t.Errorf("attempts at acceptance = %d, want 2 rejections before success", resolvedAttempts)
	}

	// Retry dispatches must carry the rejection feedback.
	if resolver.calls[1].Feedback == "" || !strings.Contains(resolver.calls[1].Feedback, "a.go") {
		t.Errorf("second dispatch feedback = %q, want rejection detail", resolver.calls[1].Feedback)
	}
	if resolver.calls[2].Attempt != 3 {
		t.Errorf("third dispatch attempt = %d, want 3", resolver.calls[2].Attempt)
	}
}

func TestStartExhaustionRollsBack(t *testing.T) {
	g := newFakeGit()
	g.startErr = conflictErr("rebase stopped on conflicts")
	g.unmergedSeq = [][]string{{"a.go"}}
	g.files["a.go"] = conflictedContent

	resolver := &fakeResolver{git: g}
	verifier := &fakeVerifier{verdicts: []agent.VerifyResult{
		{Passed: false, Issues: []string{"still conflicted"}},
	}}

	var completions int
	o := New(g, resolver, verifier, nil)
	h, err := o.Start(context.Background(), "feature", "main", Options{
		MaxAttempts: 1,
		Callbacks: &callback.Callbacks{
			OnComplete: func(success bool, err error) { completions++ },
		},
	})
	if err != nil {
		t.Fatalf("Start returned error: %v", err)
	}

	success, err := waitOutcome(t, h)
	if success {
		t.Fatal("outcome success, want failure")
	}
	if !errors.Is(err, errors.ErrFileExhausted) {
		t.Errorf("err = %v, want ErrFileExhausted", err)
	}
	if !strings.Contains(err.Error(), "a.go") {
		t.Errorf("err = %v, want mention of the exhausted file", err)
	}
	if resolver.callCount() != 1 {
		t.Errorf("resolver dispatched %d times, want 1", resolver.callCount())
	}
	if len(g.resets) != 1 || g.resets[0] != g.revision {
		t.Errorf("resets = %v, want one reset to %s", g.resets, g.revision)
	}
	if g.aborts != 1 {
		t.Errorf("aborts = %d, want rebase aborted before reset", g.aborts)
	}
	if completions != 1 {
		t.Errorf("OnComplete fired %d times, want 1", completions)
	}
}

func TestStartDirtyTreeFailsFast(t *testing.T) {
	g := newFakeGit()
	g.clean = false

	o := New(g, &fakeResolver{git: g}, &fakeVerifier{}, nil)
	_, err := o.Start(context.Background(), "feature", "main", Options{})
	if !errors.Is(err, errors.ErrDirtyWorkingTree) {
		t.Fatalf("err = %v, want ErrDirtyWorkingTree", err)
	}
	if g.startCalls != 0 {
		t.Errorf("rebase started %d times despite dirty tree, want 0", g.startCalls)
	}
	if len(g.resets) != 0 {
		t.Errorf("rollback ran on a validation failure: %v", g.resets)
	}
}

func TestStartBranchNotFound(t *testing.T) {
	g := newFakeGit()
	delete(g.branches, "feature")

	o := New(g, &fakeResolver{git: g}, &fakeVerifier{}, nil)
	_, err := o.Start(context.Background(), "feature", "main", Options{})
	if !errors.Is(err, errors.ErrBranchNotFound) {
		t.Fatalf("err = %v, want ErrBranchNotFound", err)
	}
}

func TestStartMaxAttemptsOutOfRange(t *testing.T) {
	g := newFakeGit()
	o := New(g, &fakeResolver{git: g}, &fakeVerifier{}, nil)

	for _, bad := range []int{-1, 11, 100} {
		if _, err := o.Start(context.Background(), "feature", "main", Options{MaxAttempts: bad}); !errors.IsValidation(err) {
			t.Errorf("MaxAttempts=%d: err = %v, want validation error", bad, err)
		}
	}
}

func TestStartGlobalBudgetExhausted(t *testing.T) {
	g := newFakeGit()
	g.startErr = conflictErr("rebase stopped on conflicts")
	g.unmergedSeq = [][]string{{"a.go"}, {"b.go"}, {"c.go"}}
	g.files["a.go"] = conflictedContent
	g.files["b.go"] = conflictedContent
	g.files["c.go"] = conflictedContent
	// Every continue stops on a later commit's conflicts.
	g.continueErrs = []error{
		conflictErr("rebase stopped on further conflicts"),
		conflictErr("rebase stopped on further conflicts"),
	}

	resolver := &fakeResolver{git: g}
	o := New(g, resolver, &fakeVerifier{}, nil)
	h, err := o.Start(context.Background(), "feature", "main", Options{MaxAttempts: 2})
	if err != nil {
		t.Fatalf("Start returned error: %v", err)
	}

	success, err := waitOutcome(t, h)
	if success {
		t.Fatal("outcome success, want failure")
	}
	if !errors.Is(err, errors.ErrAttemptsExhausted) {
		t.Errorf("err = %v, want ErrAttemptsExhausted", err)
	}
	// Two rounds ran; the third detection had files but no budget.
	if resolver.callCount() != 2 {
		t.Errorf("resolver dispatched %d times, want 2", resolver.callCount())
	}
	if len(g.resets) != 1 {
		t.Errorf("resets = %v, want exactly one rollback", g.resets)
	}
}

func TestStartAmbiguousFailure(t *testing.T) {
	g := newFakeGit()
	g.startErr = conflictErr("rebase stopped on conflicts")
	// The only conflicted file is binary, so filtering leaves nothing to
	// resolve while the operation still failed.
	g.unmergedSeq = [][]string{{"img.png"}}
	g.binaries["img.png"] = true

	o := New(g, &fakeResolver{git: g}, &fakeVerifier{}, nil)
	h, err := o.Start(context.Background(), "feature", "main", Options{})
	if err != nil {
		t.Fatalf("Start returned error: %v", err)
	}

	success, err := waitOutcome(t, h)
	if success {
		t.Fatal("outcome success, want failure")
	}
	if !errors.Is(err, errors.ErrAmbiguousFailure) {
		t.Errorf("err = %v, want ErrAmbiguousFailure", err)
	}
	if len(g.resets) != 1 {
		t.Errorf("resets = %v, want exactly one rollback", g.resets)
	}
}

func TestStartResolverFaultAdvancesToNextFile(t *testing.T) {
	g := newFakeGit()
	g.startErr = conflictErr("rebase stopped on conflicts")
	g.unmergedSeq = [][]string{{"a.go", "b.go"}}
	g.files["a.go"] = conflictedContent
	g.files["b.go"] = conflictedContent

	resolver := &fakeResolver{git: g}
	resolver.resolveFn = func(req agent.ResolveRequest) (agent.ResolveResult, error) {
		if req.File == "a.go" {
			return agent.ResolveResult{}, errors.NewAgentError("agent crashed", nil).WithFile(req.File)
		}
		g.mu.Lock()
		g.files[req.File] = "resolved\n"
		g.mu.Unlock()
		return agent.ResolveResult{OK: true}, nil
	}

	o := New(g, resolver, &fakeVerifier{}, nil)
	h, err := o.Start(context.Background(), "feature", "main", Options{})
	if err != nil {
		t.Fatalf("Start returned error: %v", err)
	}

	success, err := waitOutcome(t, h)
	if success {
		t.Fatal("outcome success, want round failure")
	}
	if !strings.Contains(err.Error(), "a.go") {
		t.Errorf("err = %v, want mention of the failed file", err)
	}
	// Both files were visited; the fault on a.go did not stop b.go.
	if resolver.callCount() != 2 {
		t.Errorf("resolver dispatched %d times, want 2", resolver.callCount())
	}
	// b.go settled and was staged even though the round failed.
	if len(g.staged) != 1 || g.staged[0] != "b.go" {
		t.Errorf("staged = %v, want [b.go]", g.staged)
	}
}

func TestStartSkipsMarkerFreeFile(t *testing.T) {
	g := newFakeGit()
	g.startErr = conflictErr("rebase stopped on conflicts")
	g.unmergedSeq = [][]string{{"a.go"}}
	g.files["a.go"] = "package a\n" // both sides identical, already clean

	resolver := &fakeResolver{git: g}
	o := New(g, resolver, &fakeVerifier{}, nil)
	h, err := o.Start(context.Background(), "feature", "main", Options{})
	if err != nil {
		t.Fatalf("Start returned error: %v", err)
	}

	success, err := waitOutcome(t, h)
	if !success || err != nil {
		t.Fatalf("outcome = (%v, %v), want success", success, err)
	}
	if resolver.callCount() != 0 {
		t.Errorf("resolver dispatched %d times for a marker-free file, want 0", resolver.callCount())
	}
	if len(g.staged) != 1 || g.staged[0] != "a.go" {
		t.Errorf("staged = %v, want the file staged as-is", g.staged)
	}
}

func TestStartRejectsUnmutatedResolution(t *testing.T) {
	g := newFakeGit()
	g.startErr = conflictErr("rebase stopped on conflicts")
	g.unmergedSeq = [][]string{{"a.go"}}
	g.files["a.go"] = conflictedContent

	resolver := &fakeResolver{git: g}
	// Claims success without touching the file.
	resolver.resolveFn = func(req agent.ResolveRequest) (agent.ResolveResult, error) {
		return agent.ResolveResult{OK: true}, nil
	}
	verifier := &fakeVerifier{}

	o := New(g, resolver, verifier, nil)
	h, err := o.Start(context.Background(), "feature", "main", Options{})
	if err != nil {
		t.Fatalf("Start returned error: %v", err)
	}

	success, err := waitOutcome(t, h)
	if success {
		t.Fatal("outcome success, want failure for unmutated resolution")
	}
	if verifier.callCount() != 0 {
		t.Errorf("verifier dispatched %d times, want 0 when the file was never rewritten", verifier.callCount())
	}
}

func TestStartCancellation(t *testing.T) {
	g := newFakeGit()
	g.startErr = conflictErr("rebase stopped on conflicts")
	g.unmergedSeq = [][]string{{"a.go", "b.go"}}
	g.files["a.go"] = conflictedContent
	g.files["b.go"] = conflictedContent

	ctx, cancel := context.WithCancel(context.Background())
	resolver := &fakeResolver{git: g}
	resolver.resolveFn = func(req agent.ResolveRequest) (agent.ResolveResult, error) {
		cancel() // caller gives up mid-round
		g.mu.Lock()
		g.files[req.File] = "resolved\n"
		g.mu.Unlock()
		return agent.ResolveResult{OK: true}, nil
	}

	o := New(g, resolver, &fakeVerifier{}, nil)
	h, err := o.Start(ctx, "feature", "main", Options{})
	if err != nil {
		t.Fatalf("Start returned error: %v", err)
	}

	success, err := waitOutcome(t, h)
	if success {
		t.Fatal("outcome success, want cancellation failure")
	}
	if !errors.Is(err, errors.ErrRunCanceled) {
		t.Errorf("err = %v, want ErrRunCanceled", err)
	}
}

func TestStartFiltersLockFiles(t *testing.T) {
	g := newFakeGit()
	g.startErr = conflictErr("rebase stopped on conflicts")
	g.unmergedSeq = [][]string{{"Gemfile.lock", "a.go"}}
	g.files["a.go"] = conflictedContent

	resolver := &fakeResolver{git: g}
	o := New(g, resolver, &fakeVerifier{}, nil)
	h, err := o.Start(context.Background(), "feature", "main", Options{})
	if err != nil {
		t.Fatalf("Start returned error: %v", err)
	}

	if _, err := waitOutcome(t, h); err != nil {
		t.Fatalf("run failed: %v", err)
	}
	for _, req := range resolver.calls {
		if req.File == "Gemfile.lock" {
			t.Error("lock file was dispatched to the resolution agent")
		}
	}
}

func TestResume(t *testing.T) {
	g := newFakeGit()
	g.inProgress = true
	g.continueErrs = []error{conflictErr("rebase stopped on further conflicts")}
	g.unmergedSeq = [][]string{{"a.go"}}
	g.files["a.go"] = conflictedContent

	resolver := &fakeResolver{git: g}
	o := New(g, resolver, &fakeVerifier{}, nil)
	h, err := o.Resume(context.Background(), "feature", "main", Options{})
	if err != nil {
		t.Fatalf("Resume returned error: %v", err)
	}

	success, err := waitOutcome(t, h)
	if !success || err != nil {
		t.Fatalf("outcome = (%v, %v), want success", success, err)
	}
	// Resume never re-validates: no start, straight to continue.
	if g.startCalls != 0 {
		t.Errorf("startCalls = %d, want 0 on resume", g.startCalls)
	}
	if resolver.callCount() != 1 {
		t.Errorf("resolver dispatched %d times, want 1", resolver.callCount())
	}
}

func TestResumeWithoutRebaseInProgress(t *testing.T) {
	g := newFakeGit()
	o := New(g, &fakeResolver{git: g}, &fakeVerifier{}, nil)

	h, err := o.Resume(context.Background(), "feature", "main", Options{})
	if err != nil {
		t.Fatalf("Resume returned error: %v", err)
	}
	success, err := waitOutcome(t, h)
	if success || err == nil {
		t.Fatalf("outcome = (%v, %v), want failure when no rebase is in progress", success, err)
	}
}

func TestStageTransitionsObserved(t *testing.T) {
	g := newFakeGit()
	g.startErr = conflictErr("rebase stopped on conflicts")
	g.unmergedSeq = [][]string{{"a.go"}}
	g.files["a.go"] = conflictedContent

	var mu sync.Mutex
	var stages []Stage
	o := New(g, &fakeResolver{git: g}, &fakeVerifier{}, nil)
	h, err := o.Start(context.Background(), "feature", "main", Options{
		Callbacks: &callback.Callbacks{
			OnStageChange: func(from, to Stage) {
				mu.Lock()
				stages = append(stages, to)
				mu.Unlock()
			},
		},
	})
	if err != nil {
		t.Fatalf("Start returned error: %v", err)
	}
	if _, err := waitOutcome(t, h); err != nil {
		t.Fatalf("run failed: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	want := []Stage{StageDetecting, StageResolving, StageDetecting, StageCompleted}
	if len(stages) != len(want) {
		t.Fatalf("stages = %v, want %v", stages, want)
	}
	for i := range want {
		if stages[i] != want[i] {
			t.Fatalf("stages = %v, want %v", stages, want)
		}
	}
}

func TestStageFailureIsTerminalForFile(t *testing.T) {
	g := newFakeGit()
	g.startErr = conflictErr("rebase stopped on conflicts")
	g.unmergedSeq = [][]string{{"src/a.go"}}
	g.files["src/a.go"] = conflictedContent
	g.stageErr = errors.New("fatal: unable to create index.lock")

	resolver := &fakeResolver{git: g}
	verifier := &fakeVerifier{}
	o := New(g, resolver, verifier, nil)

	h, err := o.Start(context.Background(), "feature", "main", Options{})
	if err != nil {
		t.Fatalf("Start returned error: %v", err)
	}

	success, runErr := waitOutcome(t, h)
	if success {
		t.Fatal("run succeeded despite staging failure")
	}
	if !errors.Is(runErr, g.stageErr) {
		t.Errorf("error = %v, want the staging cause", runErr)
	}

	// Staging failure is terminal for the file this round: no second
	// resolution or verification dispatch for it.
	if resolver.callCount() != 1 {
		t.Errorf("resolver dispatched %d times, want 1", resolver.callCount())
	}
	if verifier.callCount() != 1 {
		t.Errorf("verifier dispatched %d times, want 1", verifier.callCount())
	}
	if len(g.staged) != 0 {
		t.Errorf("staged = %v, want none", g.staged)
	}
	if len(g.resets) != 1 {
		t.Errorf("resets = %v, want exactly one rollback", g.resets)
	}
}

func TestRollbackResetFailureDoesNotMaskCause(t *testing.T) {
	g := newFakeGit()
	g.startErr = conflictErr("rebase stopped on conflicts")
	g.unmergedSeq = [][]string{{"src/a.go"}}
	g.files["src/a.go"] = conflictedContent
	g.stageErr = errors.New("fatal: unable to create index.lock")
	g.resetErr = errors.New("reset refused")

	resolver := &fakeResolver{git: g}
	verifier := &fakeVerifier{}
	o := New(g, resolver, verifier, nil)

	var (
		mu          sync.Mutex
		completions int
		completeErr error
	)
	h, err := o.Start(context.Background(), "feature", "main", Options{
		Callbacks: &callback.Callbacks{
			OnComplete: func(success bool, err error) {
				mu.Lock()
				completions++
				completeErr = err
				mu.Unlock()
			},
		},
	})
	if err != nil {
		t.Fatalf("Start returned error: %v", err)
	}

	success, runErr := waitOutcome(t, h)
	if success {
		t.Fatal("run succeeded despite staging failure")
	}
	if !errors.Is(runErr, g.stageErr) {
		t.Errorf("error = %v, want the original staging cause", runErr)
	}
	if strings.Contains(runErr.Error(), "reset refused") {
		t.Errorf("reset failure leaked into the terminal error: %v", runErr)
	}

	if len(g.resets) != 1 {
		t.Errorf("resets = %v, want exactly one attempt", g.resets)
	}

	mu.Lock()
	defer mu.Unlock()
	if completions != 1 {
		t.Errorf("OnComplete fired %d times, want 1", completions)
	}
	if !errors.Is(completeErr, g.stageErr) {
		t.Errorf("OnComplete error = %v, want the original staging cause", completeErr)
	}
}

func TestRetryWithoutRewriteIsRejected(t *testing.T) {
	g := newFakeGit()
	g.startErr = conflictErr("rebase stopped on conflicts")
	g.unmergedSeq = [][]string{{"src/a.go"}}
	g.files["src/a.go"] = conflictedContent

	// Attempt 1 rewrites the file; attempt 2 claims success but touches
	// nothing, which must fail the mutation check against the attempt-1
	// content, not the round's original content.
	resolver := &fakeResolver{git: g}
	resolver.resolveFn = func(req agent.ResolveRequest) (agent.ResolveResult, error) {
		if req.Attempt == 1 {
			g.mu.Lock()
			g.files[req.File] = "still wrong, but different\n"
			g.mu.Unlock()
		}
		return agent.ResolveResult{OK: true, Summary: "done"}, nil
	}
	verifier := &fakeVerifier{
		verdicts: []agent.VerifyResult{
			{Passed: false, Issues: []string{"conflict markers remain"}},
		},
	}
	o := New(g, resolver, verifier, nil)

	h, err := o.Start(context.Background(), "feature", "main", Options{MaxAttempts: 3})
	if err != nil {
		t.Fatalf("Start returned error: %v", err)
	}

	success, runErr := waitOutcome(t, h)
	if success {
		t.Fatal("run succeeded despite an untouched retry")
	}

	var agentErr *errors.AgentError
	if !errors.As(runErr, &agentErr) {
		t.Fatalf("error = %v, want an AgentError", runErr)
	}
	if !strings.Contains(agentErr.Error(), "not rewritten") {
		t.Errorf("error = %v, want the unmutated-file rejection", agentErr)
	}

	if resolver.callCount() != 2 {
		t.Errorf("resolver dispatched %d times, want 2", resolver.callCount())
	}
	if verifier.callCount() != 1 {
		t.Errorf("verifier dispatched %d times, want 1", verifier.callCount())
	}
	if len(g.resets) != 1 {
		t.Errorf("resets = %v, want exactly one rollback", g.resets)
	}
}
