package memory

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/appstack-labs/marketplace/internal/apperr"
	"github.com/appstack-labs/marketplace/internal/domain/account"
	"github.com/appstack-labs/marketplace/internal/domain/download"
	"github.com/appstack-labs/marketplace/internal/domain/listing"
	"github.com/appstack-labs/marketplace/internal/domain/review"
)

func TestCreateAccountDuplicateEmail(t *testing.T) {
	s := New()
	ctx := context.Background()

	_, err := s.CreateAccount(ctx, account.Account{Name: "A", Email: "Dev@Example.com"})
	require.NoError(t, err)

	_, err = s.CreateAccount(ctx, account.Account{Name: "B", Email: "dev@example.com"})
	assert.True(t, apperr.Is(err, apperr.KindConflict))
}

func TestListListingsPagination(t *testing.T) {
	s := New()
	ctx := context.Background()

	for i := 0; i < 25; i++ {
		_, err := s.CreateListing(ctx, listing.Listing{
			Title:     fmt.Sprintf("App %02d", i),
			Slug:      fmt.Sprintf("app-%02d", i),
			OwnerID:   "owner",
			Published: true,
		})
		require.NoError(t, err)
	}

	page1, total, err := s.ListListings(ctx, listing.Filter{PublishedOnly: true, Page: 1, PageSize: 10})
	require.NoError(t, err)
	assert.Equal(t, 25, total)
	assert.Len(t, page1, 10)

	page3, _, err := s.ListListings(ctx, listing.Filter{PublishedOnly: true, Page: 3, PageSize: 10})
	require.NoError(t, err)
	assert.Len(t, page3, 5)

	page4, _, err := s.ListListings(ctx, listing.Filter{PublishedOnly: true, Page: 4, PageSize: 10})
	require.NoError(t, err)
	assert.Empty(t, page4)
}

func TestAppendVersionDuplicateLabel(t *testing.T) {
	s := New()
	ctx := context.Background()

	l, err := s.CreateListing(ctx, listing.Listing{Title: "Notes", Slug: "notes", OwnerID: "owner"})
	require.NoError(t, err)

	_, err = s.AppendVersion(ctx, l.ID, listing.Version{Key: "apps/a", Label: "1.0.0"})
	require.NoError(t, err)

	_, err = s.AppendVersion(ctx, l.ID, listing.Version{Key: "apps/b", Label: "1.0.0"})
	assert.True(t, apperr.Is(err, apperr.KindConflict))

	got, err := s.GetListing(ctx, l.ID)
	require.NoError(t, err)
	require.Len(t, got.Versions, 1)

	latest, ok := got.LatestVersion()
	require.True(t, ok)
	assert.Equal(t, "1.0.0", latest.Label)
}

func TestRefreshListingRatingSkipsHidden(t *testing.T) {
	s := New()
	ctx := context.Background()

	l, err := s.CreateListing(ctx, listing.Listing{Title: "Notes", Slug: "notes", OwnerID: "owner", Published: true})
	require.NoError(t, err)

	_, _, err = s.UpsertReview(ctx, review.Review{ListingID: l.ID, AccountID: "u1", Rating: 5})
	require.NoError(t, err)
	_, _, err = s.UpsertReview(ctx, review.Review{ListingID: l.ID, AccountID: "u2", Rating: 1})
	require.NoError(t, err)

	got, err := s.RefreshListingRating(ctx, l.ID)
	require.NoError(t, err)
	assert.InDelta(t, 3.0, got.AverageRating, 0.001)
	assert.Equal(t, 2, got.ReviewsCount)

	_, err = s.SetReviewHidden(ctx, l.ID, "u2", true)
	require.NoError(t, err)

	got, err = s.RefreshListingRating(ctx, l.ID)
	require.NoError(t, err)
	assert.InDelta(t, 5.0, got.AverageRating, 0.001)
	assert.Equal(t, 1, got.ReviewsCount)
}

func TestUpsertReviewUpdatesInPlace(t *testing.T) {
	s := New()
	ctx := context.Background()

	first, created, err := s.UpsertReview(ctx, review.Review{ListingID: "l1", AccountID: "u1", Rating: 2})
	require.NoError(t, err)
	assert.True(t, created)

	second, created, err := s.UpsertReview(ctx, review.Review{ListingID: "l1", AccountID: "u1", Rating: 4})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 4, second.Rating)

	all, err := s.ListReviews(ctx, "l1")
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestListReviewDue(t *testing.T) {
	s := New()
	ctx := context.Background()
	now := time.Now().UTC()

	past := now.Add(-time.Minute)
	future := now.Add(time.Hour)

	due, err := s.CreateListing(ctx, listing.Listing{
		Title: "Due", Slug: "due", OwnerID: "o",
		Flags: []string{listing.FlagPendingReview}, ReviewDueAt: &past,
	})
	require.NoError(t, err)

	_, err = s.CreateListing(ctx, listing.Listing{
		Title: "Later", Slug: "later", OwnerID: "o",
		Flags: []string{listing.FlagPendingReview}, ReviewDueAt: &future,
	})
	require.NoError(t, err)

	got, err := s.ListReviewDue(ctx, now)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, due.ID, got[0].ID)
}

func TestAggregateTotals(t *testing.T) {
	s := New()
	ctx := context.Background()

	paid, err := s.CreateListing(ctx, listing.Listing{Title: "Paid", Slug: "paid", OwnerID: "o1", Price: 2.5, Published: true})
	require.NoError(t, err)
	free, err := s.CreateListing(ctx, listing.Listing{Title: "Free", Slug: "free", OwnerID: "o2", Published: true})
	require.NoError(t, err)

	for i := 0; i < 4; i++ {
		_, err = s.IncrementDownloads(ctx, paid.ID)
		require.NoError(t, err)
	}
	_, err = s.IncrementDownloads(ctx, free.ID)
	require.NoError(t, err)

	downloads, revenue, err := s.AggregateTotals(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, int64(5), downloads)
	assert.InDelta(t, 10.0, revenue, 0.001)

	downloads, revenue, err = s.AggregateTotals(ctx, "o1")
	require.NoError(t, err)
	assert.Equal(t, int64(4), downloads)
	assert.InDelta(t, 10.0, revenue, 0.001)
}

func TestCountDownloadsSince(t *testing.T) {
	s := New()
	ctx := context.Background()

	old := download.Download{ListingID: "l1", Status: download.StatusCompleted, CreatedAt: time.Now().UTC().AddDate(0, 0, -10)}
	recent := download.Download{ListingID: "l1", Status: download.StatusCompleted}

	_, err := s.CreateDownload(ctx, old)
	require.NoError(t, err)
	_, err = s.CreateDownload(ctx, recent)
	require.NoError(t, err)

	count, err := s.CountDownloads(ctx, time.Now().UTC().AddDate(0, 0, -7))
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	count, err = s.CountDownloads(ctx, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}
