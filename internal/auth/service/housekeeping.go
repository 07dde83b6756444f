package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/aussiebroadwan/quickfix/internal/auth/store"
)

// HousekeepingService periodically deletes expired and consumed records
// so otp_challenges, reset_tokens and sessions do not grow without bound.
type HousekeepingService struct {
	Store      store.Store
	Challenges store.Challenges
	Logger     *slog.Logger
	Interval   time.Duration

	// Now is the clock; nil means time.Now.
	Now func() time.Time

	// Internal channels for lifecycle management
	stopCh chan struct{}
	doneCh chan struct{}
}

// NewHousekeepingService creates a new housekeeping service with the given
// interval. If interval is 0 or negative, defaults to 1 hour. challenges
// may be a separate backend from st.
func NewHousekeepingService(st store.Store, challenges store.Challenges, logger *slog.Logger, interval time.Duration) *HousekeepingService {
	if interval <= 0 {
		interval = 1 * time.Hour
	}
	if challenges == nil {
		challenges = st.Challenges()
	}

	return &HousekeepingService{
		Store:      st,
		Challenges: challenges,
		Logger:     logger,
		Interval:   interval,
		stopCh:     make(chan struct{}),
		doneCh:     make(chan struct{}),
	}
}

// Start begins the background worker that periodically runs cleanup.
// Call Stop() to shut it down.
func (s *HousekeepingService) Start() {
	go s.run()
	s.Logger.Info("housekeeping service started", "interval", s.Interval)
}

// Stop gracefully shuts down the background worker.
// Blocks until the worker has finished any in-progress cleanup.
func (s *HousekeepingService) Stop() {
	close(s.stopCh)
	<-s.doneCh
	s.Logger.Info("housekeeping service stopped")
}

func (s *HousekeepingService) run() {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	// Run cleanup immediately on startup
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

// Cleanup performs one pass. Each deletion is independent; a failure in
// one does not stop the others. Returns the number of records removed.
func (s *HousekeepingService) Cleanup(ctx context.Context) int64 {
	at := now(s.Now)

	tasks := []struct {
		kind string
		fn   func(context.Context, time.Time) (int64, error)
	}{
		{"otp_challenges", s.Challenges.DeleteExpiredChallenges},
		{"reset_tokens", s.Store.ResetTokens().DeleteExpiredResetTokens},
		{"sessions", s.Store.Sessions().DeleteExpiredSessions},
	}

	var total int64
	for _, t := range tasks {
		n, err := t.fn(ctx, at)
		if err != nil {
			s.Logger.Error("failed to delete expired records", "kind", t.kind, "error", err)
			continue
		}
		housekeepingDeletedTotal.WithLabelValues(t.kind).Add(float64(n))
		total += n
	}

	s.Logger.Info("housekeeping cleanup completed", "deleted", total)
	return total
}
