package access

import (
	"context"
	"log/slog"
	"time"

	"github.com/Steez431/SLC-PAYMENTBOT/internal/metrics"
	"github.com/Steez431/SLC-PAYMENTBOT/internal/storage"
)

// sweepOffset is how long after midnight UTC the daily sweep runs
const sweepOffset = 10 * time.Second

// Sweeper revokes memberships whose TTL has passed
type Sweeper struct {
	store   *storage.Store
	actions *Actions
	ttl     time.Duration
	exempt  func(username string) bool
	metrics *metrics.Metrics
	log     *slog.Logger

	now func() time.Time
}

// NewSweeper creates a sweeper; usernames for which exempt returns true are
// never removed
func NewSweeper(store *storage.Store, actions *Actions, ttl time.Duration, exempt func(username string) bool, m *metrics.Metrics, log *slog.Logger) *Sweeper {
	return &Sweeper{
		store:   store,
		actions: actions,
		ttl:     ttl,
		exempt:  exempt,
		metrics: m,
		log:     log,
		now:     time.Now,
	}
}

// Start runs a sweep every day shortly after midnight UTC until ctx is done
func (s *Sweeper) Start(ctx context.Context) {
	for {
		next := NextRun(s.now())
		s.log.Info("next expiry sweep scheduled", "at", next)

		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}

		s.Sweep(ctx)
	}
}

// Sweep removes every expired, non-exempt member and then revokes each one.
// Deletion is decided and saved atomically first; removal and notification
// follow outside the store lock.
func (s *Sweeper) Sweep(ctx context.Context) []storage.Expired {
	s.log.Info("running daily expiry sweep")

	expired, err := s.store.ExpireStale(s.now(), s.ttl, s.exempt)
	if err != nil {
		s.metrics.UpstreamErrors.WithLabelValues(metrics.SourceStore).Inc()
		s.log.Error("save after expiry sweep", "error", err)
	}

	for _, exp := range expired {
		s.actions.Revoke(ctx, exp)
	}

	stats := s.store.Stats()
	s.metrics.Members.Set(float64(stats.Members))
	s.log.Info("expiry sweep complete", "removed", len(expired), "members", stats.Members)

	return expired
}

// NextRun returns the first daily sweep time strictly after now
func NextRun(now time.Time) time.Time {
	now = now.UTC()
	run := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC).Add(sweepOffset)
	if !run.After(now) {
		run = run.AddDate(0, 0, 1)
	}
	return run
}
