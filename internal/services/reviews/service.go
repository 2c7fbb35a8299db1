// Package reviews implements review submission and the listing rating
// rollup.
package reviews

import (
	"context"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/appstack-labs/marketplace/internal/apperr"
	"github.com/appstack-labs/marketplace/internal/domain/account"
	"github.com/appstack-labs/marketplace/internal/domain/download"
	"github.com/appstack-labs/marketplace/internal/domain/listing"
	"github.com/appstack-labs/marketplace/internal/domain/review"
	"github.com/appstack-labs/marketplace/internal/storage"
)

// Service coordinates review operations.
type Service struct {
	store     storage.ReviewStore
	listings  storage.ListingStore
	downloads storage.DownloadStore
	log       *logrus.Logger
}

// New creates a configured reviews service.
func New(store storage.ReviewStore, listings storage.ListingStore, downloads storage.DownloadStore, log *logrus.Logger) *Service {
	return &Service{
		store:     store,
		listings:  listings,
		downloads: downloads,
		log:       log,
	}
}

// Input carries a review submission.
type Input struct {
	Rating int
	Title  string
	Body   string
}

// Result is a submitted review together with the listing's refreshed
// aggregates.
type Result struct {
	Review  review.Review   `json:"review"`
	Listing listing.Listing `json:"app"`
	Created bool            `json:"-"`
}

// Submit records or replaces the actor's review of a published listing
// and recomputes the listing's average rating.
func (s *Service) Submit(ctx context.Context, actor account.Account, listingID string, in Input) (Result, error) {
	if in.Rating < 1 || in.Rating > 5 {
		return Result{}, apperr.Validation("rating must be between 1 and 5")
	}
	in.Title = strings.TrimSpace(in.Title)
	in.Body = strings.TrimSpace(in.Body)

	l, err := s.listings.GetListing(ctx, listingID)
	if err != nil {
		return Result{}, err
	}
	if !l.Published {
		return Result{}, apperr.NotFound("listing %s not found", listingID)
	}
	if l.OwnerID == actor.ID {
		return Result{}, apperr.Validation("cannot review your own listing")
	}

	r, created, err := s.store.UpsertReview(ctx, review.Review{
		ListingID:        listingID,
		AccountID:        actor.ID,
		Rating:           in.Rating,
		Title:            in.Title,
		Body:             in.Body,
		VerifiedPurchase: s.hasDownloaded(ctx, listingID, actor.ID),
	})
	if err != nil {
		return Result{}, err
	}

	l, err = s.listings.RefreshListingRating(ctx, listingID)
	if err != nil {
		return Result{}, err
	}

	s.log.WithField("listing_id", listingID).
		WithField("account_id", actor.ID).
		WithField("created", created).
		Info("review submitted")
	return Result{Review: r, Listing: l, Created: created}, nil
}

// List returns a published listing's reviews.
func (s *Service) List(ctx context.Context, listingID string) ([]review.Review, error) {
	l, err := s.listings.GetListing(ctx, listingID)
	if err != nil {
		return nil, err
	}
	if !l.Published {
		return nil, apperr.NotFound("listing %s not found", listingID)
	}

	all, err := s.store.ListReviews(ctx, listingID)
	if err != nil {
		return nil, err
	}
	visible := make([]review.Review, 0, len(all))
	for _, r := range all {
		if !r.Hidden {
			visible = append(visible, r)
		}
	}
	return visible, nil
}

// SetHidden flips a review's moderation flag and refreshes the listing
// aggregates.
func (s *Service) SetHidden(ctx context.Context, listingID, accountID string, hidden bool) (review.Review, error) {
	r, err := s.store.SetReviewHidden(ctx, listingID, accountID, hidden)
	if err != nil {
		return review.Review{}, err
	}
	if _, err := s.listings.RefreshListingRating(ctx, listingID); err != nil {
		return review.Review{}, err
	}
	return r, nil
}

func (s *Service) hasDownloaded(ctx context.Context, listingID, accountID string) bool {
	events, err := s.downloads.ListDownloads(ctx, download.Filter{ListingID: listingID})
	if err != nil {
		return false
	}
	for _, d := range events {
		if d.AccountID == accountID {
			return true
		}
	}
	return false
}
