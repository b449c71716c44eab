package conflict

import (
	"path"
	"regexp"

	"github.com/gobwas/glob"
)

// safePathPattern is the conservative path-safety gate: any conflicted path
// outside this character set is left for manual resolution rather than being
// forwarded to an external process.
var safePathPattern = regexp.MustCompile(`^[A-Za-z0-9._/ -]+$`)

// Filter drops conflicted files the orchestrator must not hand to the
// resolution agent: binary files, paths failing the safety pattern, and
// generated lock files.
type Filter struct {
	lockGlobs []glob.Glob
}

// NewFilter compiles the given lock-file glob patterns.
// Invalid patterns are skipped; config validation reports them separately.
func NewFilter(lockPatterns []string) *Filter {
	f := &Filter{}
	for _, pattern := range lockPatterns {
		g, err := glob.Compile(pattern)
		if err != nil {
			continue
		}
		f.lockGlobs = append(f.lockGlobs, g)
	}
	return f
}

// IsLockFile reports whether the path's base name matches a lock-file pattern.
func (f *Filter) IsLockFile(p string) bool {
	base := path.Base(p)
	for _, g := range f.lockGlobs {
		if g.Match(base) {
			return true
		}
	}
	return false
}

// IsSafePath reports whether the path passes the conservative safety pattern.
func (f *Filter) IsSafePath(p string) bool {
	if p == "" || p == "." || p == ".." {
		return false
	}
	return safePathPattern.MatchString(p)
}

// Apply returns the resolvable subset of files, preserving order.
// isBinary is consulted last since it may shell out to git.
func (f *Filter) Apply(files []string, isBinary func(path string) bool) []string {
	resolvable := make([]string, 0, len(files))
	for _, file := range files {
		if !f.IsSafePath(file) {
			continue
		}
		if f.IsLockFile(file) {
			continue
		}
		if isBinary != nil && isBinary(file) {
			continue
		}
		resolvable = append(resolvable, file)
	}
	return resolvable
}
