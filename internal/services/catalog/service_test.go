package catalog

import (
	"context"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/appstack-labs/marketplace/internal/apperr"
	"github.com/appstack-labs/marketplace/internal/domain/account"
	"github.com/appstack-labs/marketplace/internal/domain/download"
	"github.com/appstack-labs/marketplace/internal/domain/listing"
	"github.com/appstack-labs/marketplace/internal/storage/memory"
)

func newTestService(t *testing.T) (*Service, *memory.Store) {
	t.Helper()
	log := logrus.New()
	log.SetOutput(io.Discard)
	store := memory.New()
	return New(store, store, store, store, log), store
}

func TestBrowsePaginates(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	for i := 0; i < 25; i++ {
		_, err := store.CreateListing(ctx, listing.Listing{
			Title: fmt.Sprintf("App %02d", i), Slug: fmt.Sprintf("app-%02d", i),
			OwnerID: "o", Published: true,
		})
		require.NoError(t, err)
	}
	// Drafts never show up in the public catalog.
	_, err := store.CreateListing(ctx, listing.Listing{Title: "Draft", Slug: "draft", OwnerID: "o"})
	require.NoError(t, err)

	page, err := svc.Browse(ctx, listing.Filter{Page: 3, PageSize: 10})
	require.NoError(t, err)
	assert.Equal(t, 3, page.Page)
	assert.Equal(t, 3, page.TotalPages)
	assert.Equal(t, 25, page.Total)
	assert.Len(t, page.Listings, 5)
}

func TestSearchRequiresQueryAndCapsResults(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	_, err := svc.Search(ctx, "   ")
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	for i := 0; i < 30; i++ {
		_, err := store.CreateListing(ctx, listing.Listing{
			Title: fmt.Sprintf("Notes %02d", i), Slug: fmt.Sprintf("notes-%02d", i),
			OwnerID: "o", Published: true,
		})
		require.NoError(t, err)
	}

	items, err := svc.Search(ctx, "notes")
	require.NoError(t, err)
	assert.Len(t, items, searchLimit)
}

func TestGetPublishedResolvesSlug(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	l, err := store.CreateListing(ctx, listing.Listing{Title: "Notes", Slug: "notes", OwnerID: "o", Published: true})
	require.NoError(t, err)

	byID, err := svc.GetPublished(ctx, l.ID)
	require.NoError(t, err)
	assert.Equal(t, l.ID, byID.ID)

	bySlug, err := svc.GetPublished(ctx, "notes")
	require.NoError(t, err)
	assert.Equal(t, l.ID, bySlug.ID)

	draft, err := store.CreateListing(ctx, listing.Listing{Title: "Draft", Slug: "draft", OwnerID: "o"})
	require.NoError(t, err)
	_, err = svc.GetPublished(ctx, draft.ID)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestCategoryCycleRejected(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	root, err := svc.CreateCategory(ctx, CategoryInput{Name: "Tools"})
	require.NoError(t, err)
	child, err := svc.CreateCategory(ctx, CategoryInput{Name: "Editors", ParentID: root.ID})
	require.NoError(t, err)

	// Reparenting the root under its own child would close a cycle.
	_, err = svc.UpdateCategory(ctx, root.ID, CategoryInput{Name: "Tools", ParentID: child.ID})
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	_, err = svc.UpdateCategory(ctx, child.ID, CategoryInput{Name: "Editors", ParentID: child.ID})
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}

func TestCategoryDepthCapped(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	parent := ""
	var last string
	for i := 0; i <= 10; i++ {
		c, err := svc.CreateCategory(ctx, CategoryInput{Name: fmt.Sprintf("Level %d", i), ParentID: parent})
		require.NoError(t, err)
		parent = c.ID
		last = c.ID
	}

	_, err := svc.CreateCategory(ctx, CategoryInput{Name: "Too Deep", ParentID: last})
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}

func TestStatsForAdmin(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	_, err := store.CreateAccount(ctx, account.Account{Name: "A", Email: "a@b.com"})
	require.NoError(t, err)

	pub, err := store.CreateListing(ctx, listing.Listing{Title: "Live", Slug: "live", OwnerID: "o", Published: true, Price: 2})
	require.NoError(t, err)
	_, err = store.CreateListing(ctx, listing.Listing{
		Title: "Queued", Slug: "queued", OwnerID: "o",
		Flags: []string{listing.FlagPendingReview},
	})
	require.NoError(t, err)

	_, err = store.IncrementDownloads(ctx, pub.ID)
	require.NoError(t, err)
	_, err = store.CreateDownload(ctx, download.Download{ListingID: pub.ID, Status: download.StatusCompleted})
	require.NoError(t, err)

	stats, err := svc.StatsForAdmin(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TotalAccounts)
	assert.Equal(t, 2, stats.TotalListings)
	assert.Equal(t, 1, stats.PublishedListings)
	assert.Equal(t, 1, stats.PendingListings)
	assert.Equal(t, int64(1), stats.TotalDownloads)
	assert.InDelta(t, 2.0, stats.TotalRevenue, 0.001)
	assert.Equal(t, 1, stats.RecentActivity.NewAccounts)
	assert.Equal(t, 2, stats.RecentActivity.NewListings)
	assert.Equal(t, 1, stats.RecentActivity.NewDownloads)
}

func TestDownloadTrendsBucketsByDay(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	now := time.Now().UTC()

	for _, age := range []time.Duration{time.Hour, 3 * 24 * time.Hour, 20 * 24 * time.Hour} {
		_, err := store.CreateDownload(ctx, download.Download{
			ListingID: "l1", Status: download.StatusCompleted, CreatedAt: now.Add(-age),
		})
		require.NoError(t, err)
	}

	trends, err := svc.DownloadTrends(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, trends.LastDay)
	assert.Equal(t, 2, trends.LastWeek)
	assert.Equal(t, 3, trends.LastMonth)
	assert.Len(t, trends.DownloadsByDate, 3)
}

func TestTopListingsOrderedByDownloads(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	low, err := store.CreateListing(ctx, listing.Listing{Title: "Low", Slug: "low", OwnerID: "o", Published: true})
	require.NoError(t, err)
	high, err := store.CreateListing(ctx, listing.Listing{Title: "High", Slug: "high", OwnerID: "o", Published: true})
	require.NoError(t, err)

	_, err = store.IncrementDownloads(ctx, low.ID)
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		_, err = store.IncrementDownloads(ctx, high.ID)
		require.NoError(t, err)
	}

	top, err := svc.TopListings(ctx, 10)
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, high.ID, top[0].ID)
}
