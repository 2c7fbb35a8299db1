package reviews

import (
	"context"
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/appstack-labs/marketplace/internal/apperr"
	"github.com/appstack-labs/marketplace/internal/domain/account"
	"github.com/appstack-labs/marketplace/internal/domain/listing"
	"github.com/appstack-labs/marketplace/internal/storage/memory"
)

func newTestService(t *testing.T) (*Service, *memory.Store, listing.Listing) {
	t.Helper()
	log := logrus.New()
	log.SetOutput(io.Discard)
	store := memory.New()
	svc := New(store, store, store, log)

	l, err := store.CreateListing(context.Background(), listing.Listing{
		Title: "Notes", Slug: "notes", OwnerID: "owner-1", Published: true,
	})
	require.NoError(t, err)
	return svc, store, l
}

var reviewer = account.Account{ID: "user-1", Role: account.RoleStandard}

func TestSubmitValidatesRating(t *testing.T) {
	svc, _, l := newTestService(t)

	for _, rating := range []int{0, 6, -1} {
		_, err := svc.Submit(context.Background(), reviewer, l.ID, Input{Rating: rating})
		assert.True(t, apperr.Is(err, apperr.KindValidation), "rating %d", rating)
	}
}

func TestSubmitRefusesOwnListing(t *testing.T) {
	svc, _, l := newTestService(t)
	owner := account.Account{ID: "owner-1", Role: account.RolePublisher}

	_, err := svc.Submit(context.Background(), owner, l.ID, Input{Rating: 5})
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}

func TestSubmitUnpublishedListingIsNotFound(t *testing.T) {
	svc, store, _ := newTestService(t)
	draft, err := store.CreateListing(context.Background(), listing.Listing{
		Title: "Draft", Slug: "draft", OwnerID: "owner-1",
	})
	require.NoError(t, err)

	_, err = svc.Submit(context.Background(), reviewer, draft.ID, Input{Rating: 4})
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestSubmitRecomputesMean(t *testing.T) {
	svc, _, l := newTestService(t)
	ctx := context.Background()

	res, err := svc.Submit(ctx, reviewer, l.ID, Input{Rating: 5, Title: "Great"})
	require.NoError(t, err)
	assert.True(t, res.Created)
	assert.InDelta(t, 5.0, res.Listing.AverageRating, 0.001)
	assert.Equal(t, 1, res.Listing.ReviewsCount)

	other := account.Account{ID: "user-2"}
	res, err = svc.Submit(ctx, other, l.ID, Input{Rating: 2})
	require.NoError(t, err)
	assert.InDelta(t, 3.5, res.Listing.AverageRating, 0.001)
	assert.Equal(t, 2, res.Listing.ReviewsCount)

	// Resubmitting replaces the earlier rating instead of adding a row.
	res, err = svc.Submit(ctx, reviewer, l.ID, Input{Rating: 1})
	require.NoError(t, err)
	assert.False(t, res.Created)
	assert.InDelta(t, 1.5, res.Listing.AverageRating, 0.001)
	assert.Equal(t, 2, res.Listing.ReviewsCount)
}

func TestSetHiddenDropsFromListAndMean(t *testing.T) {
	svc, _, l := newTestService(t)
	ctx := context.Background()

	_, err := svc.Submit(ctx, reviewer, l.ID, Input{Rating: 5})
	require.NoError(t, err)
	_, err = svc.Submit(ctx, account.Account{ID: "user-2"}, l.ID, Input{Rating: 1})
	require.NoError(t, err)

	_, err = svc.SetHidden(ctx, l.ID, "user-2", true)
	require.NoError(t, err)

	visible, err := svc.List(ctx, l.ID)
	require.NoError(t, err)
	require.Len(t, visible, 1)
	assert.Equal(t, reviewer.ID, visible[0].AccountID)
}
