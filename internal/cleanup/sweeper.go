package cleanup

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/robfig/cron/v3"
)

// Sweep removes top-level files in dir older than maxAge. Subdirectories are
// left alone. Returns the number of files removed.
func Sweep(dir string, maxAge time.Duration) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("failed to read %s: %w", dir, err)
	}

	cutoff := time.Now().Add(-maxAge)
	removed := 0

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}

		path := filepath.Join(dir, entry.Name())
		if err := os.Remove(path); err != nil {
			log.Printf("[Sweeper] failed to remove %s: %v", path, err)
			continue
		}
		removed++
	}

	return removed, nil
}

// Sweeper periodically clears leftovers (crash debris, files the per-job
// cleanup could not delete) out of the working directory.
type Sweeper struct {
	cron   *cron.Cron
	dir    string
	maxAge time.Duration
}

func NewSweeper(dir string, maxAge time.Duration) *Sweeper {
	return &Sweeper{
		cron:   cron.New(),
		dir:    dir,
		maxAge: maxAge,
	}
}

func (s *Sweeper) Start(every time.Duration) error {
	spec := fmt.Sprintf("@every %s", every)
	if _, err := s.cron.AddFunc(spec, s.run); err != nil {
		return fmt.Errorf("failed to schedule sweep: %w", err)
	}
	s.cron.Start()
	log.Printf("[Sweeper] sweeping %s every %s (max age %s)", s.dir, every, s.maxAge)
	return nil
}

func (s *Sweeper) Stop() {
	<-s.cron.Stop().Done()
}

func (s *Sweeper) run() {
	removed, err := Sweep(s.dir, s.maxAge)
	if err != nil {
		log.Printf("[Sweeper] sweep failed: %v", err)
		return
	}
	if removed > 0 {
		log.Printf("[Sweeper] removed %d stale file(s)", removed)
	}
}
