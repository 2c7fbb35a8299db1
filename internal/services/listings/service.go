// Package listings implements the publisher-facing listing lifecycle:
// creation, version uploads, and the publish / moderation workflow.
package listings

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/appstack-labs/marketplace/internal/apperr"
	"github.com/appstack-labs/marketplace/internal/blobstore"
	"github.com/appstack-labs/marketplace/internal/domain/account"
	"github.com/appstack-labs/marketplace/internal/domain/listing"
	"github.com/appstack-labs/marketplace/internal/storage"
)

// Service coordinates listing operations.
type Service struct {
	store       storage.ListingStore
	categories  storage.CategoryStore
	objects     blobstore.ObjectStore
	uploadTTL   time.Duration
	reviewDelay time.Duration
	log         *logrus.Logger
}

// New creates a configured listings service. reviewDelay is the
// moderation window before auto-approval.
func New(store storage.ListingStore, categories storage.CategoryStore, objects blobstore.ObjectStore, uploadTTL, reviewDelay time.Duration, log *logrus.Logger) *Service {
	return &Service{
		store:       store,
		categories:  categories,
		objects:     objects,
		uploadTTL:   uploadTTL,
		reviewDelay: reviewDelay,
		log:         log,
	}
}

// Input carries the editable listing fields.
type Input struct {
	Title            string
	ShortDescription string
	Description      string
	CategoryIDs      []string
	Price            float64
	Currency         string
}

var slugPattern = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify derives the URL slug from a title.
func Slugify(title string) string {
	slug := strings.ToLower(strings.TrimSpace(title))
	slug = slugPattern.ReplaceAllString(slug, "-")
	return strings.Trim(slug, "-")
}

func (s *Service) validate(ctx context.Context, in *Input) error {
	in.Title = strings.TrimSpace(in.Title)
	in.ShortDescription = strings.TrimSpace(in.ShortDescription)
	in.Description = strings.TrimSpace(in.Description)

	if in.Title == "" {
		return apperr.Validation("title is required")
	}
	if in.Price < 0 {
		return apperr.Validation("price cannot be negative")
	}
	if in.Currency == "" {
		in.Currency = "INR"
	}
	for _, id := range in.CategoryIDs {
		if _, err := s.categories.GetCategory(ctx, id); err != nil {
			if apperr.Is(err, apperr.KindNotFound) {
				return apperr.Validation("unknown category %s", id)
			}
			return err
		}
	}
	return nil
}

// Create registers a draft listing owned by the caller.
func (s *Service) Create(ctx context.Context, owner account.Account, in Input) (listing.Listing, error) {
	if err := s.validate(ctx, &in); err != nil {
		return listing.Listing{}, err
	}

	l, err := s.store.CreateListing(ctx, listing.Listing{
		Title:            in.Title,
		Slug:             Slugify(in.Title),
		ShortDescription: in.ShortDescription,
		Description:      in.Description,
		CategoryIDs:      in.CategoryIDs,
		OwnerID:          owner.ID,
		Price:            in.Price,
		Currency:         in.Currency,
	})
	if err != nil {
		return listing.Listing{}, err
	}

	s.log.WithField("listing_id", l.ID).
		WithField("owner_id", owner.ID).
		Info("listing created")
	return l, nil
}

// Update edits a listing's descriptive fields. Only the owner or an
// administrator may edit; the slug follows the title.
func (s *Service) Update(ctx context.Context, actor account.Account, listingID string, in Input) (listing.Listing, error) {
	l, err := s.ownedListing(ctx, actor, listingID)
	if err != nil {
		return listing.Listing{}, err
	}
	if err := s.validate(ctx, &in); err != nil {
		return listing.Listing{}, err
	}

	l.Title = in.Title
	l.Slug = Slugify(in.Title)
	l.ShortDescription = in.ShortDescription
	l.Description = in.Description
	l.CategoryIDs = in.CategoryIDs
	l.Price = in.Price
	l.Currency = in.Currency

	return s.store.UpdateListing(ctx, l)
}

// Get returns a listing visible to the actor: its owner and admins see
// it in any state, everyone else only when published.
func (s *Service) Get(ctx context.Context, actor account.Account, listingID string) (listing.Listing, error) {
	l, err := s.store.GetListing(ctx, listingID)
	if err != nil {
		return listing.Listing{}, err
	}
	if !l.Published && !canManage(actor, l) {
		return listing.Listing{}, apperr.NotFound("listing %s not found", listingID)
	}
	return l, nil
}

// ListOwned returns the actor's own listings.
func (s *Service) ListOwned(ctx context.Context, actor account.Account, page, pageSize int) ([]listing.Listing, int, error) {
	return s.store.ListListings(ctx, listing.Filter{
		OwnerID:  actor.ID,
		Page:     page,
		PageSize: pageSize,
	})
}

// RequestUploadSlot grants a presigned URL for a new binary upload.
// The returned key is handed back by the client in CompleteVersion.
func (s *Service) RequestUploadSlot(ctx context.Context, actor account.Account, listingID, filename, contentType string) (blobstore.PresignedUpload, error) {
	filename = strings.TrimSpace(filename)
	if filename == "" {
		return blobstore.PresignedUpload{}, apperr.Validation("filename is required")
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	if _, err := s.ownedListing(ctx, actor, listingID); err != nil {
		return blobstore.PresignedUpload{}, err
	}

	key := blobstore.ArtifactKey(filename)
	grant, err := s.objects.PresignUpload(ctx, key, contentType, s.uploadTTL)
	if err != nil {
		return blobstore.PresignedUpload{}, apperr.Internal("", err)
	}
	return grant, nil
}

// CompleteVersion records an uploaded binary as the listing's newest
// version. A duplicate label fails with conflict.
func (s *Service) CompleteVersion(ctx context.Context, actor account.Account, listingID, key, label string) (listing.Listing, error) {
	key = strings.TrimSpace(key)
	label = strings.TrimSpace(label)
	if key == "" {
		return listing.Listing{}, apperr.Validation("key is required")
	}
	if label == "" {
		return listing.Listing{}, apperr.Validation("versionNumber is required")
	}

	if _, err := s.ownedListing(ctx, actor, listingID); err != nil {
		return listing.Listing{}, err
	}

	l, err := s.store.AppendVersion(ctx, listingID, listing.Version{Key: key, Label: label})
	if err != nil {
		return listing.Listing{}, err
	}

	s.log.WithField("listing_id", listingID).
		WithField("version", label).
		Info("version recorded")
	return l, nil
}

// RequestPublish places the listing in the moderation queue. It
// requires at least one uploaded version. Repeating the request while
// one is pending is a no-op; requesting on a live listing takes it off
// the catalog and re-queues it.
func (s *Service) RequestPublish(ctx context.Context, actor account.Account, listingID string) (listing.Listing, error) {
	l, err := s.ownedListing(ctx, actor, listingID)
	if err != nil {
		return listing.Listing{}, err
	}
	if len(l.Versions) == 0 {
		return listing.Listing{}, apperr.InvalidState("listing has no uploaded versions")
	}
	if l.HasFlag(listing.FlagPendingReview) {
		return l, nil
	}

	due := time.Now().UTC().Add(s.reviewDelay)
	l.Published = false
	l.AddFlag(listing.FlagPendingReview)
	l.ReviewDueAt = &due

	l, err = s.store.UpdateListing(ctx, l)
	if err != nil {
		return listing.Listing{}, err
	}

	s.log.WithField("listing_id", listingID).
		WithField("review_due_at", due).
		Info("publish requested")
	return l, nil
}

// Approve publishes a listing, clearing the moderation state and any
// earlier rejection.
func (s *Service) Approve(ctx context.Context, listingID string) (listing.Listing, error) {
	l, err := s.store.GetListing(ctx, listingID)
	if err != nil {
		return listing.Listing{}, err
	}

	l.RemoveFlag(listing.FlagPendingReview)
	for _, f := range append([]string(nil), l.Flags...) {
		if strings.HasPrefix(f, listing.RejectedFlagPrefix) {
			l.RemoveFlag(f)
		}
	}
	l.Published = true
	l.ReviewDueAt = nil

	l, err = s.store.UpdateListing(ctx, l)
	if err != nil {
		return listing.Listing{}, err
	}
	s.log.WithField("listing_id", listingID).Info("listing approved")
	return l, nil
}

// Reject declines a publish request, recording the reason when one is
// given. Clearing the moderation state is unconditional.
func (s *Service) Reject(ctx context.Context, listingID, reason string) (listing.Listing, error) {
	reason = strings.TrimSpace(reason)

	l, err := s.store.GetListing(ctx, listingID)
	if err != nil {
		return listing.Listing{}, err
	}

	l.RemoveFlag(listing.FlagPendingReview)
	if reason != "" {
		l.AddFlag(listing.RejectedFlagPrefix + reason)
	}
	l.Published = false
	l.ReviewDueAt = nil

	l, err = s.store.UpdateListing(ctx, l)
	if err != nil {
		return listing.Listing{}, err
	}
	s.log.WithField("listing_id", listingID).
		WithField("reason", reason).
		Info("listing rejected")
	return l, nil
}

// Unpublish takes a live listing off the catalog.
func (s *Service) Unpublish(ctx context.Context, actor account.Account, listingID string) (listing.Listing, error) {
	l, err := s.ownedListing(ctx, actor, listingID)
	if err != nil {
		return listing.Listing{}, err
	}
	if !l.Published {
		return listing.Listing{}, apperr.InvalidState("listing is not published")
	}

	l.Published = false
	return s.store.UpdateListing(ctx, l)
}

// Delete removes a listing and its uploaded binaries.
func (s *Service) Delete(ctx context.Context, actor account.Account, listingID string) error {
	l, err := s.ownedListing(ctx, actor, listingID)
	if err != nil {
		return err
	}
	if err := s.store.DeleteListing(ctx, listingID); err != nil {
		return err
	}
	for _, v := range l.Versions {
		if err := s.objects.Delete(ctx, v.Key); err != nil {
			s.log.WithField("listing_id", listingID).
				WithField("key", v.Key).
				WithError(err).Warn("artifact cleanup failed")
		}
	}
	s.log.WithField("listing_id", listingID).Info("listing deleted")
	return nil
}

func (s *Service) ownedListing(ctx context.Context, actor account.Account, listingID string) (listing.Listing, error) {
	l, err := s.store.GetListing(ctx, listingID)
	if err != nil {
		return listing.Listing{}, err
	}
	if !canManage(actor, l) {
		return listing.Listing{}, apperr.Forbidden("not the listing owner")
	}
	return l, nil
}

func canManage(actor account.Account, l listing.Listing) bool {
	return actor.ID != "" && (actor.ID == l.OwnerID || actor.Role == account.RoleAdministrator)
}
