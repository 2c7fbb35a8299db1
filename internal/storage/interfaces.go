// Package storage defines the persistence interfaces shared by the
// memory and postgres backends.
//
// Stores classify their own failures: a missing record is returned as
// an apperr not_found, a uniqueness violation as conflict, so services
// can surface them without backend-specific translation.
package storage

import (
	"context"
	"time"

	"github.com/appstack-labs/marketplace/internal/domain/account"
	"github.com/appstack-labs/marketplace/internal/domain/category"
	"github.com/appstack-labs/marketplace/internal/domain/download"
	"github.com/appstack-labs/marketplace/internal/domain/listing"
	"github.com/appstack-labs/marketplace/internal/domain/review"
)

// AccountStore persists account records. Email uniqueness is enforced
// here; CreateAccount and UpdateAccount fail with conflict on a
// duplicate email.
type AccountStore interface {
	CreateAccount(ctx context.Context, acct account.Account) (account.Account, error)
	UpdateAccount(ctx context.Context, acct account.Account) (account.Account, error)
	GetAccount(ctx context.Context, id string) (account.Account, error)
	GetAccountByEmail(ctx context.Context, email string) (account.Account, error)
	ListAccounts(ctx context.Context, role account.Role, page, pageSize int) ([]account.Account, int, error)
	DeleteAccount(ctx context.Context, id string) error
	CountAccounts(ctx context.Context, since time.Time) (int, error)
}

// ListingStore persists listings and their version sub-records. The
// check-then-write operations of the workflow (version append, counter
// increment, rating refresh) are store primitives so each backend can
// make them atomic.
type ListingStore interface {
	CreateListing(ctx context.Context, l listing.Listing) (listing.Listing, error)
	UpdateListing(ctx context.Context, l listing.Listing) (listing.Listing, error)
	GetListing(ctx context.Context, id string) (listing.Listing, error)
	DeleteListing(ctx context.Context, id string) error
	GetListingBySlug(ctx context.Context, slug string) (listing.Listing, error)
	ListListings(ctx context.Context, f listing.Filter) ([]listing.Listing, int, error)
	CountListings(ctx context.Context, f listing.Filter, since time.Time) (int, error)

	// AppendVersion atomically appends v unless a version with the same
	// label already exists, in which case it fails with conflict.
	AppendVersion(ctx context.Context, listingID string, v listing.Version) (listing.Listing, error)

	// IncrementDownloads bumps the download counter by one.
	IncrementDownloads(ctx context.Context, listingID string) (listing.Listing, error)

	// RefreshListingRating recomputes the listing's average rating and
	// review count from its non-hidden reviews in a single round trip.
	RefreshListingRating(ctx context.Context, listingID string) (listing.Listing, error)

	// ListReviewDue returns listings whose pending-review deadline is at
	// or before now, for the approval sweeper.
	ListReviewDue(ctx context.Context, now time.Time) ([]listing.Listing, error)

	// AggregateTotals returns the platform-wide download count and the
	// revenue sum (downloads x price) over published listings.
	AggregateTotals(ctx context.Context, ownerID string) (downloads int64, revenue float64, err error)
}

// CategoryStore persists the category tree. Name and slug uniqueness
// are enforced here.
type CategoryStore interface {
	CreateCategory(ctx context.Context, c category.Category) (category.Category, error)
	UpdateCategory(ctx context.Context, c category.Category) (category.Category, error)
	GetCategory(ctx context.Context, id string) (category.Category, error)
	GetCategoryBySlug(ctx context.Context, slug string) (category.Category, error)
	ListCategories(ctx context.Context) ([]category.Category, error)
}

// ReviewStore persists reviews with a unique (listing, account) pair.
type ReviewStore interface {
	// UpsertReview inserts or, when the pair already has a review,
	// updates rating/title/body in place. The bool reports insertion.
	UpsertReview(ctx context.Context, r review.Review) (review.Review, bool, error)
	GetReviewByPair(ctx context.Context, listingID, accountID string) (review.Review, error)
	SetReviewHidden(ctx context.Context, listingID, accountID string, hidden bool) (review.Review, error)
	ListReviews(ctx context.Context, listingID string) ([]review.Review, error)
}

// DownloadStore persists append-only download events.
type DownloadStore interface {
	CreateDownload(ctx context.Context, d download.Download) (download.Download, error)
	ListDownloads(ctx context.Context, f download.Filter) ([]download.Download, error)
	CountDownloads(ctx context.Context, since time.Time) (int, error)
}
