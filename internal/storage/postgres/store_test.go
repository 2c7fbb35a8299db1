package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/appstack-labs/marketplace/internal/apperr"
	"github.com/appstack-labs/marketplace/internal/domain/account"
	"github.com/appstack-labs/marketplace/internal/domain/listing"
)

func listingVersion(label string) listing.Version {
	return listing.Version{Key: "apps/artifact.zip", Label: label}
}

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return New(sqlx.NewDb(db, "sqlmock")), mock
}

func TestGetAccountNotFound(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(`SELECT .+ FROM accounts WHERE id=\$1`).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := store.GetAccount(context.Background(), "missing")
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetAccountScansRow(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Now().UTC()

	rows := sqlmock.NewRows([]string{
		"id", "name", "email", "password_hash", "role", "phone", "bio", "location",
		"website", "avatar", "publisher_company", "publisher_website", "publisher_bio",
		"credits", "banned", "created_at", "updated_at",
	}).AddRow("acct-1", "Dev", "dev@example.com", "hash", "publisher", "", "", "",
		"", "", "Acme", "", "", int64(0), false, now, now)

	mock.ExpectQuery(`SELECT .+ FROM accounts WHERE id=\$1`).
		WithArgs("acct-1").
		WillReturnRows(rows)

	acct, err := store.GetAccount(context.Background(), "acct-1")
	require.NoError(t, err)
	assert.Equal(t, account.RolePublisher, acct.Role)
	assert.Equal(t, "Acme", acct.Publisher.Company)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateAccountUniqueViolation(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec(`INSERT INTO accounts`).
		WillReturnError(&pq.Error{Code: "23505"})

	_, err := store.CreateAccount(context.Background(), account.Account{
		Name: "Dev", Email: "dev@example.com", PasswordHash: "hash", Role: account.RoleStandard,
	})
	assert.True(t, apperr.Is(err, apperr.KindConflict))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteAccountNotFound(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec(`DELETE FROM accounts WHERE id=\$1`).
		WithArgs("missing").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := store.DeleteAccount(context.Background(), "missing")
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetListingNonUUIDTreatedAsMiss(t *testing.T) {
	store, mock := newMockStore(t)

	// Slugs reach this lookup before the slug fallback; the UUID column
	// must not turn them into a query error.
	_, err := store.GetListing(context.Background(), "notes")
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIncrementDownloadsMissingListing(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec(`UPDATE listings SET downloads_count = downloads_count \+ 1`).
		WithArgs("missing").
		WillReturnResult(sqlmock.NewResult(0, 0))

	_, err := store.IncrementDownloads(context.Background(), "missing")
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAppendVersionDuplicateLabel(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec(`INSERT INTO listing_versions`).
		WillReturnError(&pq.Error{Code: "23505"})

	_, err := store.AppendVersion(context.Background(), "l1", listingVersion("1.0.0"))
	assert.True(t, apperr.Is(err, apperr.KindConflict))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAggregateTotals(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(`SELECT COALESCE\(SUM\(downloads_count\), 0\)`).
		WillReturnRows(sqlmock.NewRows([]string{"downloads", "revenue"}).AddRow(int64(42), 99.5))

	downloads, revenue, err := store.AggregateTotals(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, int64(42), downloads)
	assert.InDelta(t, 99.5, revenue, 0.001)
	assert.NoError(t, mock.ExpectationsWereMet())
}
