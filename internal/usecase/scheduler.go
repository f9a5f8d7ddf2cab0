package usecase

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Scheduler keeps one recurring refresh trigger per active observation.
// Re-registering an observation replaces its timer instead of duplicating
// it; failures of a background cycle are logged and skipped so prior
// results stay intact.
type Scheduler struct {
	refresher *Refresher
	interval  time.Duration
	logger    *slog.Logger

	mu     sync.Mutex
	timers map[string]chan struct{}
}

// NewScheduler builds a scheduler driving the refresher every interval.
func NewScheduler(refresher *Refresher, interval time.Duration, logger *slog.Logger) *Scheduler {
	if interval <= 0 {
		interval = time.Hour
	}
	return &Scheduler{
		refresher: refresher,
		interval:  interval,
		logger:    logger,
		timers:    make(map[string]chan struct{}),
	}
}

// Schedule registers a recurring trigger for the observation, replacing
// any existing one.
func (s *Scheduler) Schedule(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if stop, ok := s.timers[id]; ok {
		close(stop)
	}
	stop := make(chan struct{})
	s.timers[id] = stop
	go s.run(id, stop)
}

// Cancel removes the observation's trigger, if any.
func (s *Scheduler) Cancel(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if stop, ok := s.timers[id]; ok {
		close(stop)
		delete(s.timers, id)
	}
}

// Stop tears down every trigger.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, stop := range s.timers {
		close(stop)
		delete(s.timers, id)
	}
}

func (s *Scheduler) run(id string, stop chan struct{}) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.tick(id)
		case <-stop:
			return
		}
	}
}

func (s *Scheduler) tick(id string) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	if _, err := s.refresher.RefreshAndPersist(ctx, id); err != nil {
		if s.logger != nil {
			s.logger.Warn("scheduled refresh failed", "observation", id, "error", err)
		}
		return
	}
	if s.logger != nil {
		s.logger.Debug("scheduled refresh complete", "observation", id)
	}
}
