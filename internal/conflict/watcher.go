package conflict

import (
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher observes write events under the repository root and records which
// tracked files were rewritten on disk. The resolution agent mutates
// conflicted files in place; the engine consults the watcher to confirm a
// claimed resolution actually touched the file.
type Watcher struct {
	watcher *fsnotify.Watcher
	repoDir string

	// relative path -> last write time, for tracked paths only
	writes  map[string]time.Time
	tracked map[string]bool

	ignorePaths []string

	mu     sync.RWMutex
	stopCh chan struct{}
}

// NewWatcher creates a Watcher rooted at repoDir.
func NewWatcher(repoDir string) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	return &Watcher{
		watcher:     fsw,
		repoDir:     repoDir,
		writes:      make(map[string]time.Time),
		tracked:     make(map[string]bool),
		ignorePaths: []string{".git", "node_modules", ".DS_Store"},
		stopCh:      make(chan struct{}),
	}, nil
}

// Track registers repository-relative paths whose writes should be recorded,
// and watches their parent directories. Previously recorded writes for the
// paths are cleared.
func (w *Watcher) Track(paths ...string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	dirs := make(map[string]bool)
	for _, p := range paths {
		w.tracked[p] = true
		delete(w.writes, p)
		dirs[filepath.Join(w.repoDir, filepath.Dir(p))] = true
	}

	for dir := range dirs {
		if err := w.watcher.Add(dir); err != nil {
			return err
		}
	}
	return nil
}

// Start begins processing filesystem events.
func (w *Watcher) Start() {
	go w.watchLoop()
}

// Stop stops the watcher and releases resources.
func (w *Watcher) Stop() {
	close(w.stopCh)
	_ = w.watcher.Close()
}

// watchLoop processes filesystem events.
// Events are debounced because many editors and tools emit several events
// for a single save.
func (w *Watcher) watchLoop() {
	debounce := time.NewTimer(0)
	<-debounce.C // drain initial timer

	pending := make(map[string]struct{})
	var pendingMu sync.Mutex

	for {
		select {
		case <-w.stopCh:
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}

			pendingMu.Lock()
			pending[event.Name] = struct{}{}
			pendingMu.Unlock()

			debounce.Reset(50 * time.Millisecond)

		case <-debounce.C:
			pendingMu.Lock()
			names := pending
			pending = make(map[string]struct{})
			pendingMu.Unlock()

			for name := range names {
				w.recordWrite(name)
			}

		case _, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
		}
	}
}

// recordWrite notes a write to a tracked path.
func (w *Watcher) recordWrite(absPath string) {
	for _, ignore := range w.ignorePaths {
		if strings.Contains(absPath, string(filepath.Separator)+ignore+string(filepath.Separator)) ||
			filepath.Base(absPath) == ignore {
			return
		}
	}

	rel, err := filepath.Rel(w.repoDir, absPath)
	if err != nil {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.tracked[rel] {
		w.writes[rel] = time.Now()
	}
}

// WasModified reports whether the tracked path was written since Track.
func (w *Watcher) WasModified(path string) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	_, ok := w.writes[path]
	return ok
}

// ModifiedFiles returns all tracked paths with recorded writes.
func (w *Watcher) ModifiedFiles() []string {
	w.mu.RLock()
	defer w.mu.RUnlock()

	files := make([]string, 0, len(w.writes))
	for p := range w.writes {
		files = append(files, p)
	}
	return files
}
