package pipeline

import (
	"errors"
	"io/fs"
	"log"
	"os"
	"sync"
)

// Tracker accumulates every filesystem path a job creates — uploaded inputs,
// scrape diagnostics, render products — and deletes them all when the job
// settles. A path that is already gone is logged and skipped, never fatal:
// one missing file must not strand the rest of the job's artifacts.
type Tracker struct {
	mu    sync.Mutex
	paths []string
}

func NewTracker() *Tracker {
	return &Tracker{}
}

// Track records a path for deletion at job completion. Empty paths and
// duplicates are ignored.
func (t *Tracker) Track(path string) {
	if path == "" {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	for _, p := range t.paths {
		if p == path {
			return
		}
	}
	t.paths = append(t.paths, path)
}

// Count returns the number of currently tracked paths.
func (t *Tracker) Count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.paths)
}

// ReleaseAll deletes every tracked path and clears the tracker, so a second
// call is a no-op. It returns the number of deletion attempts made.
func (t *Tracker) ReleaseAll() int {
	t.mu.Lock()
	paths := t.paths
	t.paths = nil
	t.mu.Unlock()

	for _, path := range paths {
		if err := os.Remove(path); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				log.Printf("[Cleanup] %s already gone", path)
			} else {
				log.Printf("[Cleanup] failed to remove %s: %v", path, err)
			}
			continue
		}
		log.Printf("[Cleanup] removed %s", path)
	}

	return len(paths)
}
