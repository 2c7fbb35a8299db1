// Package downloads records retrieval events and keeps the listing
// download counters in step.
package downloads

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/appstack-labs/marketplace/internal/apperr"
	"github.com/appstack-labs/marketplace/internal/domain/account"
	"github.com/appstack-labs/marketplace/internal/domain/download"
	"github.com/appstack-labs/marketplace/internal/domain/listing"
	"github.com/appstack-labs/marketplace/internal/metrics"
	"github.com/appstack-labs/marketplace/internal/storage"
)

// Service coordinates download recording.
type Service struct {
	store    storage.DownloadStore
	listings storage.ListingStore
	log      *logrus.Logger
}

// New creates a configured downloads service.
func New(store storage.DownloadStore, listings storage.ListingStore, log *logrus.Logger) *Service {
	return &Service{store: store, listings: listings, log: log}
}

// Result is a recorded download plus the artifact to fetch.
type Result struct {
	Download download.Download `json:"download"`
	Version  listing.Version   `json:"version"`
}

// Record logs a download of the listing's latest version. The listing
// must be published and must have at least one version; the event
// snapshots price and currency at the time of the download. actor may
// be the zero Account for anonymous downloads.
func (s *Service) Record(ctx context.Context, actor account.Account, listingID, ip, userAgent string) (Result, error) {
	l, err := s.listings.GetListing(ctx, listingID)
	if err != nil {
		return Result{}, err
	}
	if !l.Published {
		return Result{}, apperr.NotFound("listing %s not found", listingID)
	}
	latest, ok := l.LatestVersion()
	if !ok {
		return Result{}, apperr.InvalidState("listing has no downloadable versions")
	}

	d, err := s.store.CreateDownload(ctx, download.Download{
		ListingID: listingID,
		AccountID: actor.ID,
		VersionID: latest.ID,
		IPAddress: ip,
		UserAgent: userAgent,
		Provider:  "direct",
		Price:     l.Price,
		Currency:  l.Currency,
		Status:    download.StatusCompleted,
	})
	if err != nil {
		return Result{}, err
	}

	if _, err := s.listings.IncrementDownloads(ctx, listingID); err != nil {
		s.log.WithField("listing_id", listingID).WithError(err).Warn("download counter bump failed")
	}
	metrics.RecordDownload()

	s.log.WithField("listing_id", listingID).
		WithField("version", latest.Label).
		Info("download recorded")
	return Result{Download: d, Version: latest}, nil
}

// History returns a listing's download events for its owner or an
// administrator.
func (s *Service) History(ctx context.Context, actor account.Account, listingID string) ([]download.Download, error) {
	l, err := s.listings.GetListing(ctx, listingID)
	if err != nil {
		return nil, err
	}
	if actor.ID != l.OwnerID && actor.Role != account.RoleAdministrator {
		return nil, apperr.Forbidden("not the listing owner")
	}
	return s.store.ListDownloads(ctx, download.Filter{ListingID: listingID})
}
