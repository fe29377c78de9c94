package service

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aussiebroadwan/gatehouse/internal/auth/store"
)

// HousekeepingService periodically deletes refresh families that expired
// more than Retention ago. Their token rows go with them via the cascade.
// Fast store entries are not touched, they expire on their own TTLs.
type HousekeepingService struct {
	Store     store.Store
	Logger    *slog.Logger
	Clock     Clock
	Interval  time.Duration
	Retention time.Duration

	stopCh   chan struct{}
	doneCh   chan struct{}
	started  atomic.Bool
	stopOnce sync.Once
}

// NewHousekeepingService creates the worker. A non-positive interval
// defaults to one hour.
func NewHousekeepingService(st store.Store, logger *slog.Logger, interval, retention time.Duration) *HousekeepingService {
	if interval <= 0 {
		interval = time.Hour
	}
	if retention < 0 {
		retention = 0
	}

	return &HousekeepingService{
		Store:     st,
		Logger:    logger,
		Interval:  interval,
		Retention: retention,
		stopCh:    make(chan struct{}),
		doneCh:    make(chan struct{}),
	}
}

// Start launches the worker. It does not block.
func (s *HousekeepingService) Start() {
	if !s.started.CompareAndSwap(false, true) {
		return
	}
	go s.run()
	s.Logger.Info("housekeeping service started",
		slog.Duration("interval", s.Interval),
		slog.Duration("retention", s.Retention),
	)
}

// Stop blocks until any in-progress cleanup has finished. Safe to call twice
// and without a prior Start.
func (s *HousekeepingService) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopCh)
		if !s.started.Load() {
			return
		}
		<-s.doneCh
		s.Logger.Info("housekeeping service stopped")
	})
}

func (s *HousekeepingService) run() {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	// First pass right away
	s.Cleanup(context.Background())

	for {
		select {
		case <-ticker.C:
			s.Cleanup(context.Background())
		case <-s.stopCh:
			return
		}
	}
}

// Cleanup runs one retention pass and returns how many families it removed.
func (s *HousekeepingService) Cleanup(ctx context.Context) int64 {
	cutoff := clockOrSystem(s.Clock).Now().Add(-s.Retention)
	s.Logger.Debug("starting housekeeping cleanup", slog.Time("cutoff", cutoff))

	deleted, err := s.Store.RefreshFamilies().DeleteExpiredFamilies(ctx, cutoff)
	if err != nil {
		s.Logger.Error("failed to delete expired refresh families", slog.Any("error", err))
		return 0
	}

	s.Logger.Info("housekeeping cleanup completed", slog.Int64("families_deleted", deleted))
	return deleted
}
