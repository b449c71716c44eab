package agent

import (
	"fmt"
	"strings"
)

// resolvePrompt builds the one-shot prompt for a resolution dispatch.
// The agent edits the file in place and reports a verdict as its final
// output line so the dispatcher can tell success from failure.
func resolvePrompt(req ResolveRequest) string {
	var b strings.Builder

	fmt.Fprintf(&b, "You are resolving a git rebase conflict.\n\n")
	fmt.Fprintf(&b, "Rebasing %q onto %q left the file %q with merge conflicts.\n",
		req.SourceBranch, req.TargetBranch, req.File)
	b.WriteString("Edit the file in place to resolve every conflict:\n")
	b.WriteString("- Remove all conflict markers (<<<<<<<, =======, >>>>>>>).\n")
	b.WriteString("- Preserve the intent of both sides; prefer the incoming change when they overlap.\n")
	b.WriteString("- Do not duplicate code that both sides share.\n")
	b.WriteString("- Do not modify any other file.\n")

	if req.Attempt > 1 && req.Feedback != "" {
		fmt.Fprintf(&b, "\nA previous attempt was rejected: %s\n", req.Feedback)
		b.WriteString("Fix the reported problems this time.\n")
	}

	b.WriteString("\nWhen finished, print exactly one final line of JSON:\n")
	b.WriteString(`{"status": "resolved", "summary": "<one sentence>"}` + "\n")
	b.WriteString("If you cannot resolve the conflict, print instead:\n")
	b.WriteString(`{"status": "failed", "summary": "<why>"}` + "\n")

	return b.String()
}

// verifyPrompt builds the one-shot prompt for a verification dispatch.
func verifyPrompt(req VerifyRequest) string {
	var b strings.Builder

	fmt.Fprintf(&b, "You are reviewing a resolved git rebase conflict in %q.\n\n", req.File)
	b.WriteString("Read the file and check that:\n")
	b.WriteString("- No conflict markers remain (<<<<<<<, =======, >>>>>>>).\n")
	b.WriteString("- No code is accidentally duplicated from merging both sides.\n")
	b.WriteString("- The file is syntactically plausible for its language.\n")
	b.WriteString("\nDo not modify the file.\n")
	b.WriteString("\nPrint exactly one final line of JSON:\n")
	b.WriteString(`{"verdict": "pass"}` + "\n")
	b.WriteString("or, listing every problem found:\n")
	b.WriteString(`{"verdict": "fail", "issues": ["<problem>", ...]}` + "\n")

	return b.String()
}
