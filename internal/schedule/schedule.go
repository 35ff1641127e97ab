// Package schedule runs keyed, cancelable delayed callbacks.
package schedule

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

type entry struct {
	timer *time.Timer
	gen   uint64
}

// Scheduler holds at most one pending callback per key.
type Scheduler struct {
	mu      sync.Mutex
	entries map[string]entry
	gen     uint64
	stopped bool
	logger  *zap.Logger
}

func New(logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{entries: make(map[string]entry), logger: logger.Named("schedule")}
}

// After runs fn once d has elapsed, replacing any callback pending under key.
func (s *Scheduler) After(key string, d time.Duration, fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	if prev, ok := s.entries[key]; ok {
		prev.timer.Stop()
	}
	s.gen++
	gen := s.gen
	t := time.AfterFunc(d, func() {
		s.mu.Lock()
		cur, ok := s.entries[key]
		if !ok || cur.gen != gen {
			s.mu.Unlock()
			return
		}
		delete(s.entries, key)
		s.mu.Unlock()
		s.logger.Debug("fired", zap.String("key", key))
		fn()
	})
	s.entries[key] = entry{timer: t, gen: gen}
}

// Cancel drops the callback pending under key and reports whether one existed.
func (s *Scheduler) Cancel(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	if !ok {
		return false
	}
	e.timer.Stop()
	delete(s.entries, key)
	return true
}

// Pending returns the number of callbacks not yet fired or cancelled.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Stop cancels everything and refuses new callbacks.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, e := range s.entries {
		e.timer.Stop()
		delete(s.entries, key)
	}
	s.stopped = true
}
