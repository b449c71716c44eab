package agent

import (
	"bufio"
	"encoding/json"
	"strings"

	"github.com/Iron-Ham/remerge/internal/errors"
)

// resolveVerdict is the JSON verdict a resolution dispatch must emit.
type resolveVerdict struct {
	Status  string `json:"status"`
	Summary string `json:"summary"`
}

// verifyVerdict is the JSON verdict a verification dispatch must emit.
type verifyVerdict struct {
	Verdict string   `json:"verdict"`
	Issues  []string `json:"issues"`
}

// parseResolveVerdict extracts the last resolve verdict from agent output.
// Agents print freeform progress text before the verdict line, so the last
// parseable line wins.
func parseResolveVerdict(output []byte) (ResolveResult, error) {
	var found *resolveVerdict
	forEachJSONLine(output, func(line []byte) {
		var v resolveVerdict
		if err := json.Unmarshal(line, &v); err == nil && v.Status != "" {
			found = &v
		}
	})
	if found == nil {
		return ResolveResult{}, errors.Wrap(errors.ErrAgentFailed, "no resolve verdict in agent output")
	}

	switch strings.ToLower(found.Status) {
	case "resolved":
		return ResolveResult{OK: true, Summary: found.Summary}, nil
	case "failed":
		return ResolveResult{OK: false, Summary: found.Summary}, nil
	default:
		return ResolveResult{}, errors.Wrapf(errors.ErrAgentFailed, "unexpected resolve status %q", found.Status)
	}
}

// parseVerifyVerdict extracts the last verify verdict from agent output.
func parseVerifyVerdict(output []byte) (VerifyResult, error) {
	var found *verifyVerdict
	forEachJSONLine(output, func(line []byte) {
		var v verifyVerdict
		if err := json.Unmarshal(line, &v); err == nil && v.Verdict != "" {
			found = &v
		}
	})
	if found == nil {
		return VerifyResult{}, errors.Wrap(errors.ErrAgentFailed, "no verify verdict in agent output")
	}

	switch strings.ToLower(found.Verdict) {
	case "pass":
		return VerifyResult{Passed: true}, nil
	case "fail":
		return VerifyResult{Passed: false, Issues: found.Issues}, nil
	default:
		return VerifyResult{}, errors.Wrapf(errors.ErrAgentFailed, "unexpected verify verdict %q", found.Verdict)
	}
}

// forEachJSONLine calls fn for every output line that looks like a JSON
// object, stripping markdown code fences along the way.
func forEachJSONLine(output []byte, fn func(line []byte)) {
	scanner := bufio.NewScanner(strings.NewReader(string(output)))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		line = strings.TrimPrefix(line, "```json")
		line = strings.TrimPrefix(line, "```")
		line = strings.TrimSuffix(line, "```")
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "{") && strings.HasSuffix(line, "}") {
			fn([]byte(line))
		}
	}
}
