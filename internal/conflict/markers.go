// Package conflict provides conflict-marker inspection, conflict-file
// filtering, and on-disk mutation watching for the rebase orchestrator.
package conflict

import (
	"bufio"
	"bytes"
	"fmt"
	"strings"
)

// Conflict marker prefixes as written by git into a conflicted file.
const (
	markerOurs   = "<<<<<<<"
	markerBase   = "======="
	markerTheirs = ">>>>>>>"
)

// HasMarkers reports whether content still contains git conflict markers.
// Markers are only recognized at the start of a line, matching how git
// writes them.
func HasMarkers(content []byte) bool {
	scanner := bufio.NewScanner(bytes.NewReader(content))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, markerOurs) ||
			strings.HasPrefix(line, markerTheirs) ||
			line == markerBase {
			return true
		}
	}
	return false
}

// IssueKind buckets a verification issue for diagnostic message construction.
// Classification never changes control flow, only the human-readable
// explanation attached to a rejected resolution.
type IssueKind int

const (
	// IssueMarkers means unresolved conflict markers are still present.
	IssueMarkers IssueKind = iota
	// IssueDuplication means duplicated code was detected in the resolution.
	IssueDuplication
	// IssueOther is any issue that fits neither bucket.
	IssueOther
)

// Classification groups verification issues by kind.
type Classification struct {
	Markers     []string
	Duplication []string
	Other       []string
}

// ClassifyIssues buckets verifier issue strings by their apparent kind.
func ClassifyIssues(issues []string) Classification {
	var c Classification
	for _, issue := range issues {
		switch classifyIssue(issue) {
		case IssueMarkers:
			c.Markers = append(c.Markers, issue)
		case IssueDuplication:
			c.Duplication = append(c.Duplication, issue)
		default:
			c.Other = append(c.Other, issue)
		}
	}
	return c
}

func classifyIssue(issue string) IssueKind {
	lower := strings.ToLower(issue)
	if strings.Contains(lower, "conflict marker") ||
		strings.Contains(lower, "<<<<<<<") ||
		strings.Contains(lower, ">>>>>>>") ||
		strings.Contains(lower, "unresolved") {
		return IssueMarkers
	}
	if strings.Contains(lower, "duplicat") {
		return IssueDuplication
	}
	return IssueOther
}

// Describe builds the human-readable explanation for a rejected resolution.
func (c Classification) Describe(path string) string {
	var parts []string
	if len(c.Markers) > 0 {
		parts = append(parts, fmt.Sprintf("unresolved conflict markers (%s)", strings.Join(c.Markers, "; ")))
	}
	if len(c.Duplication) > 0 {
		parts = append(parts, fmt.Sprintf("duplicated code (%s)", strings.Join(c.Duplication, "; ")))
	}
	if len(c.Other) > 0 {
		parts = append(parts, strings.Join(c.Other, "; "))
	}
	if len(parts) == 0 {
		return fmt.Sprintf("verification rejected %s", path)
	}
	return fmt.Sprintf("verification rejected %s: %s", path, strings.Join(parts, "; "))
}
