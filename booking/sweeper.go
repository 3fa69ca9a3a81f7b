package booking

import (
	"context"
	"log"
	"time"

	"kachalka/models"
	"kachalka/monitoring"
)

// Sweeper периодически прогоняет Advance по всем scheduled-записям.
// Безопасен при параллельном создании записей: каждый переход — CAS.
type Sweeper struct {
	lifecycle *Lifecycle
	repo      models.Repository
	clock     Clock
	interval  time.Duration
	shutdown  chan struct{}
}

func NewSweeper(lifecycle *Lifecycle, repo models.Repository, clock Clock, interval time.Duration) *Sweeper {
	return &Sweeper{
		lifecycle: lifecycle,
		repo:      repo,
		clock:     clock,
		interval:  interval,
		shutdown:  make(chan struct{}),
	}
}

func (s *Sweeper) Start(ctx context.Context) {
	log.Printf("Starting session status sweeper (interval %s)", s.interval)

	go func() {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-s.shutdown:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := s.Sweep(); err != nil {
					log.Printf("Session sweep failed: %v", err)
				}
			}
		}
	}()
}

func (s *Sweeper) Stop() {
	close(s.shutdown)
}

// Sweep завершает все просроченные тренировки и возвращает их количество.
func (s *Sweeper) Sweep() (int, error) {
	sessions, err := s.repo.ListScheduledSessions()
	if err != nil {
		return 0, err
	}

	now := s.clock.Now()
	completed := 0
	for i := range sessions {
		ok, err := s.lifecycle.Advance(&sessions[i], now)
		if err != nil {
			log.Printf("Failed to advance session %d: %v", sessions[i].ID, err)
			continue
		}
		if ok {
			completed++
		}
	}

	monitoring.SweepRuns.Inc()
	if completed > 0 {
		log.Printf("Session sweep completed %d sessions", completed)
	}
	return completed, nil
}
