// Package postgres implements the storage interfaces on PostgreSQL
// using sqlx. Uniqueness (email, slug, version label, review pair) is
// delegated to the schema's unique constraints, so the check-then-write
// primitives stay atomic under concurrent writers.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/appstack-labs/marketplace/internal/apperr"
	"github.com/appstack-labs/marketplace/internal/domain/account"
	"github.com/appstack-labs/marketplace/internal/domain/category"
	"github.com/appstack-labs/marketplace/internal/domain/download"
	"github.com/appstack-labs/marketplace/internal/domain/listing"
	"github.com/appstack-labs/marketplace/internal/domain/review"
	"github.com/appstack-labs/marketplace/internal/storage"
)

// Store is the PostgreSQL backend for every storage interface.
type Store struct {
	db *sqlx.DB
}

var _ storage.AccountStore = (*Store)(nil)
var _ storage.ListingStore = (*Store)(nil)
var _ storage.CategoryStore = (*Store)(nil)
var _ storage.ReviewStore = (*Store)(nil)
var _ storage.DownloadStore = (*Store)(nil)

// New wraps an existing connection pool.
func New(db *sqlx.DB) *Store {
	return &Store{db: db}
}

// Open connects to dsn, verifies the connection, and applies pending
// migrations.
func Open(dsn string) (*Store, error) {
	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := Migrate(db.DB); err != nil {
		db.Close()
		return nil, err
	}
	return New(db), nil
}

// Close releases the connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}

// Account rows ---------------------------------------------------------------

type accountRow struct {
	ID               string    `db:"id"`
	Name             string    `db:"name"`
	Email            string    `db:"email"`
	PasswordHash     string    `db:"password_hash"`
	Role             string    `db:"role"`
	Phone            string    `db:"phone"`
	Bio              string    `db:"bio"`
	Location         string    `db:"location"`
	Website          string    `db:"website"`
	Avatar           string    `db:"avatar"`
	PublisherCompany string    `db:"publisher_company"`
	PublisherWebsite string    `db:"publisher_website"`
	PublisherBio     string    `db:"publisher_bio"`
	Credits          int64     `db:"credits"`
	Banned           bool      `db:"banned"`
	CreatedAt        time.Time `db:"created_at"`
	UpdatedAt        time.Time `db:"updated_at"`
}

func (r accountRow) toDomain() account.Account {
	return account.Account{
		ID:           r.ID,
		Name:         r.Name,
		Email:        r.Email,
		PasswordHash: r.PasswordHash,
		Role:         account.Role(r.Role),
		Phone:        r.Phone,
		Bio:          r.Bio,
		Location:     r.Location,
		Website:      r.Website,
		Avatar:       r.Avatar,
		Publisher: account.PublisherProfile{
			Company: r.PublisherCompany,
			Website: r.PublisherWebsite,
			Bio:     r.PublisherBio,
		},
		Credits:   r.Credits,
		Banned:    r.Banned,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

const accountColumns = `id, name, email, password_hash, role, phone, bio, location, website,
	avatar, publisher_company, publisher_website, publisher_bio, credits, banned,
	created_at, updated_at`

func (s *Store) CreateAccount(ctx context.Context, acct account.Account) (account.Account, error) {
	if acct.ID == "" {
		acct.ID = uuid.NewString()
	}
	acct.Email = strings.ToLower(strings.TrimSpace(acct.Email))
	now := time.Now().UTC()
	acct.CreatedAt = now
	acct.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO accounts (id, name, email, password_hash, role, phone, bio, location,
			website, avatar, publisher_company, publisher_website, publisher_bio,
			credits, banned, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)`,
		acct.ID, acct.Name, acct.Email, acct.PasswordHash, string(acct.Role),
		acct.Phone, acct.Bio, acct.Location, acct.Website, acct.Avatar,
		acct.Publisher.Company, acct.Publisher.Website, acct.Publisher.Bio,
		acct.Credits, acct.Banned, acct.CreatedAt, acct.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return account.Account{}, apperr.Conflict("email %s already in use", acct.Email)
		}
		return account.Account{}, fmt.Errorf("insert account: %w", err)
	}
	return acct, nil
}

func (s *Store) UpdateAccount(ctx context.Context, acct account.Account) (account.Account, error) {
	acct.Email = strings.ToLower(strings.TrimSpace(acct.Email))
	acct.UpdatedAt = time.Now().UTC()

	res, err := s.db.ExecContext(ctx, `
		UPDATE accounts SET name=$2, email=$3, password_hash=$4, role=$5, phone=$6,
			bio=$7, location=$8, website=$9, avatar=$10, publisher_company=$11,
			publisher_website=$12, publisher_bio=$13, credits=$14, banned=$15,
			updated_at=$16
		WHERE id=$1`,
		acct.ID, acct.Name, acct.Email, acct.PasswordHash, string(acct.Role),
		acct.Phone, acct.Bio, acct.Location, acct.Website, acct.Avatar,
		acct.Publisher.Company, acct.Publisher.Website, acct.Publisher.Bio,
		acct.Credits, acct.Banned, acct.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return account.Account{}, apperr.Conflict("email %s already in use", acct.Email)
		}
		return account.Account{}, fmt.Errorf("update account: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return account.Account{}, apperr.NotFound("account %s not found", acct.ID)
	}
	return s.GetAccount(ctx, acct.ID)
}

func (s *Store) GetAccount(ctx context.Context, id string) (account.Account, error) {
	var row accountRow
	err := s.db.GetContext(ctx, &row,
		`SELECT `+accountColumns+` FROM accounts WHERE id=$1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return account.Account{}, apperr.NotFound("account %s not found", id)
	}
	if err != nil {
		return account.Account{}, fmt.Errorf("get account: %w", err)
	}
	return row.toDomain(), nil
}

func (s *Store) GetAccountByEmail(ctx context.Context, email string) (account.Account, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	var row accountRow
	err := s.db.GetContext(ctx, &row,
		`SELECT `+accountColumns+` FROM accounts WHERE email=$1`, email)
	if errors.Is(err, sql.ErrNoRows) {
		return account.Account{}, apperr.NotFound("account %s not found", email)
	}
	if err != nil {
		return account.Account{}, fmt.Errorf("get account by email: %w", err)
	}
	return row.toDomain(), nil
}

func (s *Store) ListAccounts(ctx context.Context, role account.Role, page, pageSize int) ([]account.Account, int, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 10
	}

	where := ""
	args := []any{}
	if role != "" {
		where = " WHERE role=$1"
		args = append(args, string(role))
	}

	var total int
	if err := s.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM accounts`+where, args...); err != nil {
		return nil, 0, fmt.Errorf("count accounts: %w", err)
	}

	query := fmt.Sprintf(`SELECT %s FROM accounts%s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		accountColumns, where, len(args)+1, len(args)+2)
	args = append(args, pageSize, (page-1)*pageSize)

	var rows []accountRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list accounts: %w", err)
	}

	accounts := make([]account.Account, 0, len(rows))
	for _, row := range rows {
		accounts = append(accounts, row.toDomain())
	}
	return accounts, total, nil
}

func (s *Store) DeleteAccount(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM accounts WHERE id=$1`, id)
	if err != nil {
		return fmt.Errorf("delete account: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.NotFound("account %s not found", id)
	}
	return nil
}

func (s *Store) CountAccounts(ctx context.Context, since time.Time) (int, error) {
	var count int
	var err error
	if since.IsZero() {
		err = s.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM accounts`)
	} else {
		err = s.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM accounts WHERE created_at >= $1`, since)
	}
	if err != nil {
		return 0, fmt.Errorf("count accounts: %w", err)
	}
	return count, nil
}

// Listing rows ---------------------------------------------------------------

type listingRow struct {
	ID               string         `db:"id"`
	Title            string         `db:"title"`
	Slug             string         `db:"slug"`
	ShortDescription string         `db:"short_description"`
	Description      string         `db:"description"`
	OwnerID          string         `db:"owner_id"`
	Price            float64        `db:"price"`
	Currency         string         `db:"currency"`
	Published        bool           `db:"published"`
	Flags            pq.StringArray `db:"flags"`
	DownloadsCount   int64          `db:"downloads_count"`
	AverageRating    float64        `db:"average_rating"`
	ReviewsCount     int            `db:"reviews_count"`
	ReviewDueAt      *time.Time     `db:"review_due_at"`
	CreatedAt        time.Time      `db:"created_at"`
	UpdatedAt        time.Time      `db:"updated_at"`
}

func (r listingRow) toDomain() listing.Listing {
	return listing.Listing{
		ID:               r.ID,
		Title:            r.Title,
		Slug:             r.Slug,
		ShortDescription: r.ShortDescription,
		Description:      r.Description,
		OwnerID:          r.OwnerID,
		Price:            r.Price,
		Currency:         r.Currency,
		Published:        r.Published,
		Flags:            append([]string(nil), r.Flags...),
		DownloadsCount:   r.DownloadsCount,
		AverageRating:    r.AverageRating,
		ReviewsCount:     r.ReviewsCount,
		ReviewDueAt:      r.ReviewDueAt,
		CreatedAt:        r.CreatedAt,
		UpdatedAt:        r.UpdatedAt,
	}
}

type versionRow struct {
	ID         string    `db:"id"`
	ListingID  string    `db:"listing_id"`
	Key        string    `db:"key"`
	Label      string    `db:"label"`
	UploadedAt time.Time `db:"uploaded_at"`
}

const listingColumns = `id, title, slug, short_description, description, owner_id, price,
	currency, published, flags, downloads_count, average_rating, reviews_count,
	review_due_at, created_at, updated_at`

func (s *Store) CreateListing(ctx context.Context, l listing.Listing) (listing.Listing, error) {
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	l.CreatedAt = now
	l.UpdatedAt = now

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return listing.Listing{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO listings (id, title, slug, short_description, description, owner_id,
			price, currency, published, flags, downloads_count, average_rating,
			reviews_count, review_due_at, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)`,
		l.ID, l.Title, l.Slug, l.ShortDescription, l.Description, l.OwnerID,
		l.Price, l.Currency, l.Published, pq.StringArray(l.Flags),
		l.DownloadsCount, l.AverageRating, l.ReviewsCount, l.ReviewDueAt,
		l.CreatedAt, l.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return listing.Listing{}, apperr.Conflict("slug %s already in use", l.Slug)
		}
		return listing.Listing{}, fmt.Errorf("insert listing: %w", err)
	}

	if err := replaceCategoriesTx(ctx, tx, l.ID, l.CategoryIDs); err != nil {
		return listing.Listing{}, err
	}
	if err := tx.Commit(); err != nil {
		return listing.Listing{}, fmt.Errorf("commit: %w", err)
	}
	return s.GetListing(ctx, l.ID)
}

func (s *Store) UpdateListing(ctx context.Context, l listing.Listing) (listing.Listing, error) {
	l.UpdatedAt = time.Now().UTC()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return listing.Listing{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE listings SET title=$2, slug=$3, short_description=$4, description=$5,
			price=$6, currency=$7, published=$8, flags=$9, review_due_at=$10,
			updated_at=$11
		WHERE id=$1`,
		l.ID, l.Title, l.Slug, l.ShortDescription, l.Description,
		l.Price, l.Currency, l.Published, pq.StringArray(l.Flags),
		l.ReviewDueAt, l.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return listing.Listing{}, apperr.Conflict("slug %s already in use", l.Slug)
		}
		return listing.Listing{}, fmt.Errorf("update listing: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return listing.Listing{}, apperr.NotFound("listing %s not found", l.ID)
	}

	if err := replaceCategoriesTx(ctx, tx, l.ID, l.CategoryIDs); err != nil {
		return listing.Listing{}, err
	}
	if err := tx.Commit(); err != nil {
		return listing.Listing{}, fmt.Errorf("commit: %w", err)
	}
	return s.GetListing(ctx, l.ID)
}

func replaceCategoriesTx(ctx context.Context, tx *sqlx.Tx, listingID string, categoryIDs []string) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM listing_categories WHERE listing_id=$1`, listingID); err != nil {
		return fmt.Errorf("clear listing categories: %w", err)
	}
	for i, id := range categoryIDs {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO listing_categories (listing_id, category_id, position) VALUES ($1,$2,$3)`,
			listingID, id, i)
		if err != nil {
			return fmt.Errorf("attach category %s: %w", id, err)
		}
	}
	return nil
}

func (s *Store) DeleteListing(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM listings WHERE id=$1`, id)
	if err != nil {
		return fmt.Errorf("delete listing: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.NotFound("listing %s not found", id)
	}
	return nil
}

func (s *Store) GetListing(ctx context.Context, id string) (listing.Listing, error) {
	// The id column is UUID; a malformed id would otherwise surface as a
	// cast error instead of a miss.
	if _, err := uuid.Parse(id); err != nil {
		return listing.Listing{}, apperr.NotFound("listing %s not found", id)
	}

	var row listingRow
	err := s.db.GetContext(ctx, &row,
		`SELECT `+listingColumns+` FROM listings WHERE id=$1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return listing.Listing{}, apperr.NotFound("listing %s not found", id)
	}
	if err != nil {
		return listing.Listing{}, fmt.Errorf("get listing: %w", err)
	}
	return s.hydrateListing(ctx, row)
}

func (s *Store) GetListingBySlug(ctx context.Context, slug string) (listing.Listing, error) {
	var row listingRow
	err := s.db.GetContext(ctx, &row,
		`SELECT `+listingColumns+` FROM listings WHERE slug=$1`, slug)
	if errors.Is(err, sql.ErrNoRows) {
		return listing.Listing{}, apperr.NotFound("listing %s not found", slug)
	}
	if err != nil {
		return listing.Listing{}, fmt.Errorf("get listing by slug: %w", err)
	}
	return s.hydrateListing(ctx, row)
}

func (s *Store) hydrateListing(ctx context.Context, row listingRow) (listing.Listing, error) {
	l := row.toDomain()

	if err := s.db.SelectContext(ctx, &l.CategoryIDs,
		`SELECT category_id FROM listing_categories WHERE listing_id=$1 ORDER BY position`,
		l.ID); err != nil {
		return listing.Listing{}, fmt.Errorf("load listing categories: %w", err)
	}

	var versions []versionRow
	if err := s.db.SelectContext(ctx, &versions,
		`SELECT id, listing_id, key, label, uploaded_at FROM listing_versions
		 WHERE listing_id=$1 ORDER BY uploaded_at, id`, l.ID); err != nil {
		return listing.Listing{}, fmt.Errorf("load listing versions: %w", err)
	}
	for _, v := range versions {
		l.Versions = append(l.Versions, listing.Version{
			ID: v.ID, Key: v.Key, Label: v.Label, UploadedAt: v.UploadedAt,
		})
	}
	return l, nil
}

func listingWhere(f listing.Filter, since time.Time) (string, []any) {
	var conds []string
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if f.PublishedOnly {
		conds = append(conds, "published = TRUE")
	}
	if f.OwnerID != "" {
		conds = append(conds, "owner_id = "+arg(f.OwnerID))
	}
	if f.CategoryID != "" {
		conds = append(conds, "id IN (SELECT listing_id FROM listing_categories WHERE category_id = "+arg(f.CategoryID)+")")
	}
	if f.FreeOnly {
		conds = append(conds, "price = 0")
	}
	if f.MinPrice != nil {
		conds = append(conds, "price >= "+arg(*f.MinPrice))
	}
	if f.MaxPrice != nil {
		conds = append(conds, "price <= "+arg(*f.MaxPrice))
	}
	switch f.Status {
	case listing.StatusPublished:
		conds = append(conds, "published = TRUE")
	case listing.StatusPending:
		conds = append(conds, arg(listing.FlagPendingReview)+" = ANY(flags)")
	case listing.StatusDraft:
		conds = append(conds, "published = FALSE")
	}
	if f.Search != "" {
		p := arg("%" + f.Search + "%")
		conds = append(conds, "(title ILIKE "+p+" OR description ILIKE "+p+")")
	}
	if !since.IsZero() {
		conds = append(conds, "created_at >= "+arg(since))
	}

	if len(conds) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func listingOrder(sortBy string) string {
	switch sortBy {
	case listing.SortPopular, listing.SortDownloads:
		return " ORDER BY downloads_count DESC, created_at DESC"
	case listing.SortRating:
		return " ORDER BY average_rating DESC, created_at DESC"
	default:
		return " ORDER BY created_at DESC"
	}
}

func (s *Store) ListListings(ctx context.Context, f listing.Filter) ([]listing.Listing, int, error) {
	f.Normalize()
	where, args := listingWhere(f, time.Time{})

	var total int
	if err := s.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM listings`+where, args...); err != nil {
		return nil, 0, fmt.Errorf("count listings: %w", err)
	}

	query := fmt.Sprintf(`SELECT %s FROM listings%s%s LIMIT $%d OFFSET $%d`,
		listingColumns, where, listingOrder(f.Sort), len(args)+1, len(args)+2)
	args = append(args, f.PageSize, f.Offset())

	var rows []listingRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list listings: %w", err)
	}

	listings := make([]listing.Listing, 0, len(rows))
	for _, row := range rows {
		l, err := s.hydrateListing(ctx, row)
		if err != nil {
			return nil, 0, err
		}
		listings = append(listings, l)
	}
	return listings, total, nil
}

func (s *Store) CountListings(ctx context.Context, f listing.Filter, since time.Time) (int, error) {
	where, args := listingWhere(f, since)
	var count int
	if err := s.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM listings`+where, args...); err != nil {
		return 0, fmt.Errorf("count listings: %w", err)
	}
	return count, nil
}

func (s *Store) AppendVersion(ctx context.Context, listingID string, v listing.Version) (listing.Listing, error) {
	if v.ID == "" {
		v.ID = uuid.NewString()
	}
	if v.UploadedAt.IsZero() {
		v.UploadedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO listing_versions (id, listing_id, key, label, uploaded_at)
		VALUES ($1,$2,$3,$4,$5)`,
		v.ID, listingID, v.Key, v.Label, v.UploadedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return listing.Listing{}, apperr.Conflict("version %s already exists", v.Label)
		}
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23503" {
			return listing.Listing{}, apperr.NotFound("listing %s not found", listingID)
		}
		return listing.Listing{}, fmt.Errorf("insert version: %w", err)
	}

	if _, err := s.db.ExecContext(ctx,
		`UPDATE listings SET updated_at=$2 WHERE id=$1`, listingID, time.Now().UTC()); err != nil {
		return listing.Listing{}, fmt.Errorf("touch listing: %w", err)
	}
	return s.GetListing(ctx, listingID)
}

func (s *Store) IncrementDownloads(ctx context.Context, listingID string) (listing.Listing, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE listings SET downloads_count = downloads_count + 1, updated_at = NOW()
		WHERE id=$1`, listingID)
	if err != nil {
		return listing.Listing{}, fmt.Errorf("increment downloads: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return listing.Listing{}, apperr.NotFound("listing %s not found", listingID)
	}
	return s.GetListing(ctx, listingID)
}

func (s *Store) RefreshListingRating(ctx context.Context, listingID string) (listing.Listing, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE listings SET
			average_rating = COALESCE((SELECT AVG(rating) FROM reviews WHERE listing_id=$1 AND NOT hidden), 0),
			reviews_count  = (SELECT COUNT(*) FROM reviews WHERE listing_id=$1 AND NOT hidden),
			updated_at = NOW()
		WHERE id=$1`, listingID)
	if err != nil {
		return listing.Listing{}, fmt.Errorf("refresh rating: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return listing.Listing{}, apperr.NotFound("listing %s not found", listingID)
	}
	return s.GetListing(ctx, listingID)
}

func (s *Store) ListReviewDue(ctx context.Context, now time.Time) ([]listing.Listing, error) {
	var rows []listingRow
	err := s.db.SelectContext(ctx, &rows,
		`SELECT `+listingColumns+` FROM listings
		 WHERE review_due_at IS NOT NULL AND review_due_at <= $1
		 ORDER BY review_due_at`, now)
	if err != nil {
		return nil, fmt.Errorf("list review due: %w", err)
	}

	var due []listing.Listing
	for _, row := range rows {
		l, err := s.hydrateListing(ctx, row)
		if err != nil {
			return nil, err
		}
		due = append(due, l)
	}
	return due, nil
}

func (s *Store) AggregateTotals(ctx context.Context, ownerID string) (int64, float64, error) {
	query := `
		SELECT COALESCE(SUM(downloads_count), 0) AS downloads,
		       COALESCE(SUM(CASE WHEN published THEN downloads_count * price ELSE 0 END), 0) AS revenue
		FROM listings`
	args := []any{}
	if ownerID != "" {
		query += ` WHERE owner_id=$1`
		args = append(args, ownerID)
	}

	var totals struct {
		Downloads int64   `db:"downloads"`
		Revenue   float64 `db:"revenue"`
	}
	if err := s.db.GetContext(ctx, &totals, query, args...); err != nil {
		return 0, 0, fmt.Errorf("aggregate totals: %w", err)
	}
	return totals.Downloads, totals.Revenue, nil
}

// Categories -----------------------------------------------------------------

type categoryRow struct {
	ID          string         `db:"id"`
	Name        string         `db:"name"`
	Slug        string         `db:"slug"`
	Description string         `db:"description"`
	ParentID    sql.NullString `db:"parent_id"`
	CreatedAt   time.Time      `db:"created_at"`
	UpdatedAt   time.Time      `db:"updated_at"`
}

func (r categoryRow) toDomain() category.Category {
	c := category.Category{
		ID:          r.ID,
		Name:        r.Name,
		Slug:        r.Slug,
		Description: r.Description,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
	if r.ParentID.Valid {
		c.ParentID = r.ParentID.String
	}
	return c
}

func toNullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func (s *Store) CreateCategory(ctx context.Context, c category.Category) (category.Category, error) {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	c.CreatedAt = now
	c.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO categories (id, name, slug, description, parent_id, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		c.ID, c.Name, c.Slug, c.Description, toNullString(c.ParentID), c.CreatedAt, c.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return category.Category{}, apperr.Conflict("category %s already exists", c.Name)
		}
		return category.Category{}, fmt.Errorf("insert category: %w", err)
	}
	return c, nil
}

func (s *Store) UpdateCategory(ctx context.Context, c category.Category) (category.Category, error) {
	c.UpdatedAt = time.Now().UTC()
	res, err := s.db.ExecContext(ctx, `
		UPDATE categories SET name=$2, slug=$3, description=$4, parent_id=$5, updated_at=$6
		WHERE id=$1`,
		c.ID, c.Name, c.Slug, c.Description, toNullString(c.ParentID), c.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return category.Category{}, apperr.Conflict("category %s already exists", c.Name)
		}
		return category.Category{}, fmt.Errorf("update category: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return category.Category{}, apperr.NotFound("category %s not found", c.ID)
	}
	return s.GetCategory(ctx, c.ID)
}

func (s *Store) GetCategory(ctx context.Context, id string) (category.Category, error) {
	var row categoryRow
	err := s.db.GetContext(ctx, &row,
		`SELECT id, name, slug, description, parent_id, created_at, updated_at
		 FROM categories WHERE id=$1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return category.Category{}, apperr.NotFound("category %s not found", id)
	}
	if err != nil {
		return category.Category{}, fmt.Errorf("get category: %w", err)
	}
	return row.toDomain(), nil
}

func (s *Store) GetCategoryBySlug(ctx context.Context, slug string) (category.Category, error) {
	var row categoryRow
	err := s.db.GetContext(ctx, &row,
		`SELECT id, name, slug, description, parent_id, created_at, updated_at
		 FROM categories WHERE slug=$1`, slug)
	if errors.Is(err, sql.ErrNoRows) {
		return category.Category{}, apperr.NotFound("category %s not found", slug)
	}
	if err != nil {
		return category.Category{}, fmt.Errorf("get category by slug: %w", err)
	}
	return row.toDomain(), nil
}

func (s *Store) ListCategories(ctx context.Context) ([]category.Category, error) {
	var rows []categoryRow
	err := s.db.SelectContext(ctx, &rows,
		`SELECT id, name, slug, description, parent_id, created_at, updated_at
		 FROM categories ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}

	categories := make([]category.Category, 0, len(rows))
	for _, row := range rows {
		categories = append(categories, row.toDomain())
	}
	return categories, nil
}

// Reviews --------------------------------------------------------------------

type reviewRow struct {
	ID               string    `db:"id"`
	ListingID        string    `db:"listing_id"`
	AccountID        string    `db:"account_id"`
	Rating           int       `db:"rating"`
	Title            string    `db:"title"`
	Body             string    `db:"body"`
	VerifiedPurchase bool      `db:"verified_purchase"`
	Hidden           bool      `db:"hidden"`
	CreatedAt        time.Time `db:"created_at"`
	UpdatedAt        time.Time `db:"updated_at"`
}

func (r reviewRow) toDomain() review.Review {
	return review.Review{
		ID:               r.ID,
		ListingID:        r.ListingID,
		AccountID:        r.AccountID,
		Rating:           r.Rating,
		Title:            r.Title,
		Body:             r.Body,
		VerifiedPurchase: r.VerifiedPurchase,
		Hidden:           r.Hidden,
		CreatedAt:        r.CreatedAt,
		UpdatedAt:        r.UpdatedAt,
	}
}

func (s *Store) UpsertReview(ctx context.Context, r review.Review) (review.Review, bool, error) {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	now := time.Now().UTC()

	var row reviewRow
	err := s.db.GetContext(ctx, &row, `
		INSERT INTO reviews (id, listing_id, account_id, rating, title, body,
			verified_purchase, hidden, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$9)
		ON CONFLICT (listing_id, account_id) DO UPDATE SET
			rating=EXCLUDED.rating, title=EXCLUDED.title, body=EXCLUDED.body,
			updated_at=EXCLUDED.updated_at
		RETURNING id, listing_id, account_id, rating, title, body,
			verified_purchase, hidden, created_at, updated_at`,
		r.ID, r.ListingID, r.AccountID, r.Rating, r.Title, r.Body,
		r.VerifiedPurchase, r.Hidden, now)
	if err != nil {
		return review.Review{}, false, fmt.Errorf("upsert review: %w", err)
	}
	// On conflict the returned id is the pre-existing row's, not ours.
	return row.toDomain(), row.ID == r.ID, nil
}

func (s *Store) SetReviewHidden(ctx context.Context, listingID, accountID string, hidden bool) (review.Review, error) {
	var row reviewRow
	err := s.db.GetContext(ctx, &row, `
		UPDATE reviews SET hidden=$3, updated_at=NOW()
		WHERE listing_id=$1 AND account_id=$2
		RETURNING id, listing_id, account_id, rating, title, body,
			verified_purchase, hidden, created_at, updated_at`,
		listingID, accountID, hidden)
	if errors.Is(err, sql.ErrNoRows) {
		return review.Review{}, apperr.NotFound("review not found")
	}
	if err != nil {
		return review.Review{}, fmt.Errorf("set review hidden: %w", err)
	}
	return row.toDomain(), nil
}

func (s *Store) GetReviewByPair(ctx context.Context, listingID, accountID string) (review.Review, error) {
	var row reviewRow
	err := s.db.GetContext(ctx, &row, `
		SELECT id, listing_id, account_id, rating, title, body, verified_purchase,
			hidden, created_at, updated_at
		FROM reviews WHERE listing_id=$1 AND account_id=$2`, listingID, accountID)
	if errors.Is(err, sql.ErrNoRows) {
		return review.Review{}, apperr.NotFound("review not found")
	}
	if err != nil {
		return review.Review{}, fmt.Errorf("get review: %w", err)
	}
	return row.toDomain(), nil
}

func (s *Store) ListReviews(ctx context.Context, listingID string) ([]review.Review, error) {
	var rows []reviewRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT id, listing_id, account_id, rating, title, body, verified_purchase,
			hidden, created_at, updated_at
		FROM reviews WHERE listing_id=$1 ORDER BY created_at DESC`, listingID)
	if err != nil {
		return nil, fmt.Errorf("list reviews: %w", err)
	}

	reviews := make([]review.Review, 0, len(rows))
	for _, row := range rows {
		reviews = append(reviews, row.toDomain())
	}
	return reviews, nil
}

// Downloads ------------------------------------------------------------------

type downloadRow struct {
	ID        string         `db:"id"`
	ListingID string         `db:"listing_id"`
	AccountID sql.NullString `db:"account_id"`
	VersionID sql.NullString `db:"version_id"`
	IPAddress string         `db:"ip_address"`
	UserAgent string         `db:"user_agent"`
	Provider  string         `db:"provider"`
	Price     float64        `db:"price"`
	Currency  string         `db:"currency"`
	Status    string         `db:"status"`
	CreatedAt time.Time      `db:"created_at"`
}

func (r downloadRow) toDomain() download.Download {
	d := download.Download{
		ID:        r.ID,
		ListingID: r.ListingID,
		IPAddress: r.IPAddress,
		UserAgent: r.UserAgent,
		Provider:  r.Provider,
		Price:     r.Price,
		Currency:  r.Currency,
		Status:    r.Status,
		CreatedAt: r.CreatedAt,
	}
	if r.AccountID.Valid {
		d.AccountID = r.AccountID.String
	}
	if r.VersionID.Valid {
		d.VersionID = r.VersionID.String
	}
	return d
}

func (s *Store) CreateDownload(ctx context.Context, d download.Download) (download.Download, error) {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO downloads (id, listing_id, account_id, version_id, ip_address,
			user_agent, provider, price, currency, status, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		d.ID, d.ListingID, toNullString(d.AccountID), toNullString(d.VersionID),
		d.IPAddress, d.UserAgent, d.Provider, d.Price, d.Currency, d.Status, d.CreatedAt)
	if err != nil {
		return download.Download{}, fmt.Errorf("insert download: %w", err)
	}
	return d, nil
}

func (s *Store) ListDownloads(ctx context.Context, f download.Filter) ([]download.Download, error) {
	query := `SELECT id, listing_id, account_id, version_id, ip_address, user_agent,
		provider, price, currency, status, created_at FROM downloads`
	var conds []string
	var args []any
	if f.ListingID != "" {
		args = append(args, f.ListingID)
		conds = append(conds, fmt.Sprintf("listing_id=$%d", len(args)))
	}
	if !f.Since.IsZero() {
		args = append(args, f.Since)
		conds = append(conds, fmt.Sprintf("created_at >= $%d", len(args)))
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY created_at DESC"

	var rows []downloadRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list downloads: %w", err)
	}

	downloads := make([]download.Download, 0, len(rows))
	for _, row := range rows {
		downloads = append(downloads, row.toDomain())
	}
	return downloads, nil
}

func (s *Store) CountDownloads(ctx context.Context, since time.Time) (int, error) {
	var count int
	var err error
	if since.IsZero() {
		err = s.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM downloads`)
	} else {
		err = s.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM downloads WHERE created_at >= $1`, since)
	}
	if err != nil {
		return 0, fmt.Errorf("count downloads: %w", err)
	}
	return count, nil
}
