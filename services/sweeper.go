package services

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"party-system/config"
	"party-system/monitoring"
	"party-system/store"
)

// SweeperLock is the leader lock taken before each sweep so only one
// instance finalizes parties at a time. The lock is advisory: the sweep
// itself is idempotent.
type SweeperLock interface {
	TryAcquire(ctx context.Context) (bool, error)
	Release(ctx context.Context)
}

type noopLock struct{}

func (noopLock) TryAcquire(ctx context.Context) (bool, error) { return true, nil }
func (noopLock) Release(ctx context.Context)                  {}

// Sweeper finalizes ended parties in the background. It runs once
// shortly after startup and then on a fixed interval, independently of
// guest and host traffic; all of its writes go through the same
// transactional store path as everything else.
type Sweeper struct {
	store    store.PartyStore
	service  *PartyService
	lock     SweeperLock
	config   *config.Config
	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	mu        sync.Mutex
	lastRunAt time.Time
	lastSwept int
}

func NewSweeper(partyStore store.PartyStore, service *PartyService, lock SweeperLock, cfg *config.Config) *Sweeper {
	if lock == nil {
		lock = noopLock{}
	}
	return &Sweeper{
		store:    partyStore,
		service:  service,
		lock:     lock,
		config:   cfg,
		stopChan: make(chan struct{}),
	}
}

// Start launches the background loop.
func (s *Sweeper) Start(ctx context.Context) {
	s.wg.Add(1)
	go s.run(ctx)
	slog.Info("completion sweeper started",
		"interval", s.config.SweepInterval, "batch_size", s.config.SweepBatchSize)
}

func (s *Sweeper) run(ctx context.Context) {
	defer s.wg.Done()

	// First pass shortly after boot to catch parties that ended while
	// the process was down.
	initial := time.NewTimer(s.config.SweepInitialDelay)
	defer initial.Stop()
	select {
	case <-initial.C:
		s.Sweep(ctx)
	case <-s.stopChan:
		return
	case <-ctx.Done():
		return
	}

	ticker := time.NewTicker(s.config.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.Sweep(ctx)
		case <-s.stopChan:
			slog.Info("completion sweeper stopping")
			return
		case <-ctx.Done():
			return
		}
	}
}

// Sweep runs one pass: pick up a bounded batch of ended, unprocessed
// parties and finalize each exactly once. Running it twice in a row is
// safe; already processed parties are skipped.
func (s *Sweeper) Sweep(ctx context.Context) {
	held, err := s.lock.TryAcquire(ctx)
	if err != nil {
		slog.Error("sweep lock error", "error", err)
		monitoring.TrackSweepRun("lock_error")
		return
	}
	if !held {
		monitoring.TrackSweepRun("skipped")
		return
	}
	defer s.lock.Release(ctx)

	now := time.Now()
	endedBefore := now.Add(-s.config.SweepMinAge)
	endedAfter := now.Add(-s.config.SweepMaxAge)

	parties, err := s.store.UnprocessedEndedParties(ctx, endedBefore, endedAfter, s.config.SweepBatchSize)
	if err != nil {
		slog.Error("sweep query failed", "error", err)
		monitoring.TrackSweepRun("error")
		return
	}

	swept := 0
	failed := 0
	for _, party := range parties {
		if err := s.service.FinalizeParty(ctx, party.ID); err != nil {
			// Finalization errors here are store-level; accounting
			// errors are already swallowed inside FinalizeParty.
			slog.Error("sweep finalize failed", "party_id", party.ID, "error", err)
			failed++
			continue
		}
		monitoring.TrackSweptParty()
		swept++
	}

	s.mu.Lock()
	s.lastRunAt = now
	s.lastSwept = swept
	s.mu.Unlock()

	switch {
	case failed == 0:
		monitoring.TrackSweepRun("success")
	case swept == 0:
		monitoring.TrackSweepRun("failed")
	default:
		monitoring.TrackSweepRun("partial")
	}
	if len(parties) > 0 {
		slog.Info("sweep completed", "candidates", len(parties), "finalized", swept, "failed", failed)
	}
}

// Status reports the last run for the admin endpoint.
func (s *Sweeper) Status() (lastRunAt time.Time, lastSwept int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastRunAt, s.lastSwept
}

// Shutdown stops the loop and waits for the current pass to finish.
func (s *Sweeper) Shutdown() {
	s.stopOnce.Do(func() {
		close(s.stopChan)
	})

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		slog.Info("completion sweeper stopped")
	case <-time.After(30 * time.Second):
		slog.Warn("timeout waiting for completion sweeper to stop")
	}
}
