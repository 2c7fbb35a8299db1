package listings

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/appstack-labs/marketplace/internal/domain/listing"
	"github.com/appstack-labs/marketplace/internal/metrics"
	"github.com/appstack-labs/marketplace/internal/storage"
)

// Sweeper polls for listings whose moderation window has elapsed and
// approves the ones still pending. Because the deadline is persisted on
// the listing, a restart never loses queued approvals.
type Sweeper struct {
	store    storage.ListingStore
	interval time.Duration
	cron     *cron.Cron
	log      *logrus.Logger
}

// NewSweeper builds a sweeper polling at the given interval.
func NewSweeper(store storage.ListingStore, interval time.Duration, log *logrus.Logger) *Sweeper {
	return &Sweeper{
		store:    store,
		interval: interval,
		log:      log,
	}
}

// Name implements system.Service.
func (s *Sweeper) Name() string { return "review-sweeper" }

// Start schedules the sweep loop.
func (s *Sweeper) Start(ctx context.Context) error {
	if s.cron != nil {
		return fmt.Errorf("sweeper already started")
	}
	s.cron = cron.New()
	_, err := s.cron.AddFunc(fmt.Sprintf("@every %s", s.interval), func() {
		s.Sweep(context.Background())
	})
	if err != nil {
		return fmt.Errorf("schedule sweep: %w", err)
	}
	s.cron.Start()
	return nil
}

// Stop halts the loop and waits for an in-flight sweep to finish.
func (s *Sweeper) Stop(ctx context.Context) error {
	if s.cron == nil {
		return nil
	}
	stopped := s.cron.Stop()
	select {
	case <-stopped.Done():
	case <-ctx.Done():
		return ctx.Err()
	}
	s.cron = nil
	return nil
}

// Sweep runs one pass and returns the number of listings approved. It
// is exported so tests and the admin surface can trigger it directly.
func (s *Sweeper) Sweep(ctx context.Context) int {
	due, err := s.store.ListReviewDue(ctx, time.Now().UTC())
	if err != nil {
		s.log.WithError(err).Error("review sweep failed")
		metrics.RecordSweep(0, err)
		return 0
	}

	approved := 0
	for _, l := range due {
		if !l.HasFlag(listing.FlagPendingReview) {
			// An admin already decided; just clear the deadline.
			l.ReviewDueAt = nil
			if _, err := s.store.UpdateListing(ctx, l); err != nil {
				s.log.WithField("listing_id", l.ID).WithError(err).Warn("deadline clear failed")
			}
			continue
		}

		l.RemoveFlag(listing.FlagPendingReview)
		l.Published = true
		l.ReviewDueAt = nil
		if _, err := s.store.UpdateListing(ctx, l); err != nil {
			s.log.WithField("listing_id", l.ID).WithError(err).Warn("auto-approve failed")
			continue
		}
		approved++
		s.log.WithField("listing_id", l.ID).Info("listing auto-approved")
	}

	metrics.RecordSweep(approved, nil)
	return approved
}
