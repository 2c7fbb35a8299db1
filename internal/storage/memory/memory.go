// Package memory provides an in-memory implementation of the storage
// interfaces. It is safe for concurrent use and is primarily intended
// for tests and local development.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/appstack-labs/marketplace/internal/apperr"
	"github.com/appstack-labs/marketplace/internal/domain/account"
	"github.com/appstack-labs/marketplace/internal/domain/category"
	"github.com/appstack-labs/marketplace/internal/domain/download"
	"github.com/appstack-labs/marketplace/internal/domain/listing"
	"github.com/appstack-labs/marketplace/internal/domain/review"
	"github.com/appstack-labs/marketplace/internal/storage"
)

// Store is an in-memory backend for all storage interfaces. Every
// mutating method runs under one lock, which is what makes the
// check-then-write primitives (AppendVersion, RefreshListingRating)
// atomic here.
type Store struct {
	mu         sync.RWMutex
	accounts   map[string]account.Account
	listings   map[string]listing.Listing
	categories map[string]category.Category
	reviews    map[string]review.Review // keyed by listingID+"/"+accountID
	downloads  []download.Download
}

var _ storage.AccountStore = (*Store)(nil)
var _ storage.ListingStore = (*Store)(nil)
var _ storage.CategoryStore = (*Store)(nil)
var _ storage.ReviewStore = (*Store)(nil)
var _ storage.DownloadStore = (*Store)(nil)

// New creates an empty store.
func New() *Store {
	return &Store{
		accounts:   make(map[string]account.Account),
		listings:   make(map[string]listing.Listing),
		categories: make(map[string]category.Category),
		reviews:    make(map[string]review.Review),
	}
}

// AccountStore implementation -------------------------------------------------

func (s *Store) CreateAccount(_ context.Context, acct account.Account) (account.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	email := strings.ToLower(strings.TrimSpace(acct.Email))
	for _, existing := range s.accounts {
		if existing.Email == email {
			return account.Account{}, apperr.Conflict("email %s already in use", email)
		}
	}

	if acct.ID == "" {
		acct.ID = uuid.NewString()
	}
	acct.Email = email
	now := time.Now().UTC()
	acct.CreatedAt = now
	acct.UpdatedAt = now

	s.accounts[acct.ID] = acct
	return acct, nil
}

func (s *Store) UpdateAccount(_ context.Context, acct account.Account) (account.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	original, ok := s.accounts[acct.ID]
	if !ok {
		return account.Account{}, apperr.NotFound("account %s not found", acct.ID)
	}

	email := strings.ToLower(strings.TrimSpace(acct.Email))
	for id, existing := range s.accounts {
		if id != acct.ID && existing.Email == email {
			return account.Account{}, apperr.Conflict("email %s already in use", email)
		}
	}

	acct.Email = email
	acct.CreatedAt = original.CreatedAt
	acct.UpdatedAt = time.Now().UTC()

	s.accounts[acct.ID] = acct
	return acct, nil
}

func (s *Store) GetAccount(_ context.Context, id string) (account.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	acct, ok := s.accounts[id]
	if !ok {
		return account.Account{}, apperr.NotFound("account %s not found", id)
	}
	return acct, nil
}

func (s *Store) GetAccountByEmail(_ context.Context, email string) (account.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	email = strings.ToLower(strings.TrimSpace(email))
	for _, acct := range s.accounts {
		if acct.Email == email {
			return acct, nil
		}
	}
	return account.Account{}, apperr.NotFound("account %s not found", email)
}

func (s *Store) ListAccounts(_ context.Context, role account.Role, page, pageSize int) ([]account.Account, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matched := make([]account.Account, 0, len(s.accounts))
	for _, acct := range s.accounts {
		if role != "" && acct.Role != role {
			continue
		}
		matched = append(matched, acct)
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := len(matched)
	return paginate(matched, page, pageSize), total, nil
}

func (s *Store) DeleteAccount(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.accounts[id]; !ok {
		return apperr.NotFound("account %s not found", id)
	}
	delete(s.accounts, id)
	return nil
}

func (s *Store) CountAccounts(_ context.Context, since time.Time) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, acct := range s.accounts {
		if since.IsZero() || !acct.CreatedAt.Before(since) {
			count++
		}
	}
	return count, nil
}

// ListingStore implementation -------------------------------------------------

func (s *Store) CreateListing(_ context.Context, l listing.Listing) (listing.Listing, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.listings {
		if existing.Slug == l.Slug {
			return listing.Listing{}, apperr.Conflict("slug %s already in use", l.Slug)
		}
	}

	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	l.CreatedAt = now
	l.UpdatedAt = now
	l.CategoryIDs = append([]string(nil), l.CategoryIDs...)
	l.Flags = append([]string(nil), l.Flags...)
	l.Versions = append([]listing.Version(nil), l.Versions...)

	s.listings[l.ID] = l
	return cloneListing(l), nil
}

func (s *Store) UpdateListing(_ context.Context, l listing.Listing) (listing.Listing, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	original, ok := s.listings[l.ID]
	if !ok {
		return listing.Listing{}, apperr.NotFound("listing %s not found", l.ID)
	}
	for id, existing := range s.listings {
		if id != l.ID && existing.Slug == l.Slug {
			return listing.Listing{}, apperr.Conflict("slug %s already in use", l.Slug)
		}
	}

	l.CreatedAt = original.CreatedAt
	l.UpdatedAt = time.Now().UTC()
	l.CategoryIDs = append([]string(nil), l.CategoryIDs...)
	l.Flags = append([]string(nil), l.Flags...)
	l.Versions = append([]listing.Version(nil), l.Versions...)

	s.listings[l.ID] = l
	return cloneListing(l), nil
}

func (s *Store) DeleteListing(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.listings[id]; !ok {
		return apperr.NotFound("listing %s not found", id)
	}
	delete(s.listings, id)
	for key, r := range s.reviews {
		if r.ListingID == id {
			delete(s.reviews, key)
		}
	}
	return nil
}

func (s *Store) GetListing(_ context.Context, id string) (listing.Listing, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	l, ok := s.listings[id]
	if !ok {
		return listing.Listing{}, apperr.NotFound("listing %s not found", id)
	}
	return cloneListing(l), nil
}

func (s *Store) GetListingBySlug(_ context.Context, slug string) (listing.Listing, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, l := range s.listings {
		if l.Slug == slug {
			return cloneListing(l), nil
		}
	}
	return listing.Listing{}, apperr.NotFound("listing %s not found", slug)
}

func (s *Store) ListListings(_ context.Context, f listing.Filter) ([]listing.Listing, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	f.Normalize()
	matched := s.matchLocked(f, time.Time{})
	sortListings(matched, f.Sort)

	total := len(matched)
	return paginate(matched, f.Page, f.PageSize), total, nil
}

func (s *Store) CountListings(_ context.Context, f listing.Filter, since time.Time) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.matchLocked(f, since)), nil
}

func (s *Store) matchLocked(f listing.Filter, since time.Time) []listing.Listing {
	matched := make([]listing.Listing, 0, len(s.listings))
	for _, l := range s.listings {
		if !matchesFilter(l, f, since) {
			continue
		}
		matched = append(matched, cloneListing(l))
	}
	return matched
}

func matchesFilter(l listing.Listing, f listing.Filter, since time.Time) bool {
	if f.PublishedOnly && !l.Published {
		return false
	}
	if f.OwnerID != "" && l.OwnerID != f.OwnerID {
		return false
	}
	if f.CategoryID != "" {
		found := false
		for _, id := range l.CategoryIDs {
			if id == f.CategoryID {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.FreeOnly && l.Price != 0 {
		return false
	}
	if f.MinPrice != nil && l.Price < *f.MinPrice {
		return false
	}
	if f.MaxPrice != nil && l.Price > *f.MaxPrice {
		return false
	}
	switch f.Status {
	case listing.StatusPublished:
		if !l.Published {
			return false
		}
	case listing.StatusPending:
		if !l.HasFlag(listing.FlagPendingReview) {
			return false
		}
	case listing.StatusDraft:
		if l.Published {
			return false
		}
	}
	if f.Search != "" {
		q := strings.ToLower(f.Search)
		if !strings.Contains(strings.ToLower(l.Title), q) &&
			!strings.Contains(strings.ToLower(l.Description), q) {
			return false
		}
	}
	if !since.IsZero() && l.CreatedAt.Before(since) {
		return false
	}
	return true
}

func sortListings(ls []listing.Listing, by string) {
	switch by {
	case listing.SortPopular, listing.SortDownloads:
		sort.Slice(ls, func(i, j int) bool { return ls[i].DownloadsCount > ls[j].DownloadsCount })
	case listing.SortRating:
		sort.Slice(ls, func(i, j int) bool { return ls[i].AverageRating > ls[j].AverageRating })
	default:
		sort.Slice(ls, func(i, j int) bool { return ls[i].CreatedAt.After(ls[j].CreatedAt) })
	}
}

func (s *Store) AppendVersion(_ context.Context, listingID string, v listing.Version) (listing.Listing, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.listings[listingID]
	if !ok {
		return listing.Listing{}, apperr.NotFound("listing %s not found", listingID)
	}
	if l.HasVersionLabel(v.Label) {
		return listing.Listing{}, apperr.Conflict("version %s already exists", v.Label)
	}

	if v.ID == "" {
		v.ID = uuid.NewString()
	}
	if v.UploadedAt.IsZero() {
		v.UploadedAt = time.Now().UTC()
	}
	l.Versions = append(l.Versions, v)
	l.UpdatedAt = time.Now().UTC()

	s.listings[listingID] = l
	return cloneListing(l), nil
}

func (s *Store) IncrementDownloads(_ context.Context, listingID string) (listing.Listing, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.listings[listingID]
	if !ok {
		return listing.Listing{}, apperr.NotFound("listing %s not found", listingID)
	}
	l.DownloadsCount++
	l.UpdatedAt = time.Now().UTC()
	s.listings[listingID] = l
	return cloneListing(l), nil
}

func (s *Store) RefreshListingRating(_ context.Context, listingID string) (listing.Listing, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.listings[listingID]
	if !ok {
		return listing.Listing{}, apperr.NotFound("listing %s not found", listingID)
	}

	var sum, count int
	for _, r := range s.reviews {
		if r.ListingID == listingID && !r.Hidden {
			sum += r.Rating
			count++
		}
	}
	if count == 0 {
		l.AverageRating = 0
	} else {
		l.AverageRating = float64(sum) / float64(count)
	}
	l.ReviewsCount = count
	l.UpdatedAt = time.Now().UTC()

	s.listings[listingID] = l
	return cloneListing(l), nil
}

func (s *Store) ListReviewDue(_ context.Context, now time.Time) ([]listing.Listing, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var due []listing.Listing
	for _, l := range s.listings {
		if l.ReviewDueAt != nil && !l.ReviewDueAt.After(now) {
			due = append(due, cloneListing(l))
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i].ReviewDueAt.Before(*due[j].ReviewDueAt) })
	return due, nil
}

func (s *Store) AggregateTotals(_ context.Context, ownerID string) (int64, float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var downloads int64
	var revenue float64
	for _, l := range s.listings {
		if ownerID != "" && l.OwnerID != ownerID {
			continue
		}
		downloads += l.DownloadsCount
		if l.Published {
			revenue += float64(l.DownloadsCount) * l.Price
		}
	}
	return downloads, revenue, nil
}

// CategoryStore implementation ------------------------------------------------

func (s *Store) CreateCategory(_ context.Context, c category.Category) (category.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.categories {
		if existing.Name == c.Name || existing.Slug == c.Slug {
			return category.Category{}, apperr.Conflict("category %s already exists", c.Name)
		}
	}

	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	c.CreatedAt = now
	c.UpdatedAt = now

	s.categories[c.ID] = c
	return c, nil
}

func (s *Store) UpdateCategory(_ context.Context, c category.Category) (category.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	original, ok := s.categories[c.ID]
	if !ok {
		return category.Category{}, apperr.NotFound("category %s not found", c.ID)
	}
	for id, existing := range s.categories {
		if id != c.ID && (existing.Name == c.Name || existing.Slug == c.Slug) {
			return category.Category{}, apperr.Conflict("category %s already exists", c.Name)
		}
	}

	c.CreatedAt = original.CreatedAt
	c.UpdatedAt = time.Now().UTC()
	s.categories[c.ID] = c
	return c, nil
}

func (s *Store) GetCategory(_ context.Context, id string) (category.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.categories[id]
	if !ok {
		return category.Category{}, apperr.NotFound("category %s not found", id)
	}
	return c, nil
}

func (s *Store) GetCategoryBySlug(_ context.Context, slug string) (category.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, c := range s.categories {
		if c.Slug == slug {
			return c, nil
		}
	}
	return category.Category{}, apperr.NotFound("category %s not found", slug)
}

func (s *Store) ListCategories(_ context.Context) ([]category.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]category.Category, 0, len(s.categories))
	for _, c := range s.categories {
		result = append(result, c)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

// ReviewStore implementation --------------------------------------------------

func reviewKey(listingID, accountID string) string {
	return listingID + "/" + accountID
}

func (s *Store) UpsertReview(_ context.Context, r review.Review) (review.Review, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := reviewKey(r.ListingID, r.AccountID)
	now := time.Now().UTC()

	if existing, ok := s.reviews[key]; ok {
		existing.Rating = r.Rating
		existing.Title = r.Title
		existing.Body = r.Body
		existing.UpdatedAt = now
		s.reviews[key] = existing
		return existing, false, nil
	}

	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	r.CreatedAt = now
	r.UpdatedAt = now
	s.reviews[key] = r
	return r, true, nil
}

func (s *Store) SetReviewHidden(_ context.Context, listingID, accountID string, hidden bool) (review.Review, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := reviewKey(listingID, accountID)
	r, ok := s.reviews[key]
	if !ok {
		return review.Review{}, apperr.NotFound("review not found")
	}
	r.Hidden = hidden
	r.UpdatedAt = time.Now().UTC()
	s.reviews[key] = r
	return r, nil
}

func (s *Store) GetReviewByPair(_ context.Context, listingID, accountID string) (review.Review, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.reviews[reviewKey(listingID, accountID)]
	if !ok {
		return review.Review{}, apperr.NotFound("review not found")
	}
	return r, nil
}

func (s *Store) ListReviews(_ context.Context, listingID string) ([]review.Review, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []review.Review
	for _, r := range s.reviews {
		if r.ListingID == listingID {
			result = append(result, r)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.After(result[j].CreatedAt) })
	return result, nil
}

// DownloadStore implementation ------------------------------------------------

func (s *Store) CreateDownload(_ context.Context, d download.Download) (download.Download, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now().UTC()
	}
	s.downloads = append(s.downloads, d)
	return d, nil
}

func (s *Store) ListDownloads(_ context.Context, f download.Filter) ([]download.Download, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []download.Download
	for _, d := range s.downloads {
		if f.ListingID != "" && d.ListingID != f.ListingID {
			continue
		}
		if !f.Since.IsZero() && d.CreatedAt.Before(f.Since) {
			continue
		}
		result = append(result, d)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.After(result[j].CreatedAt) })
	return result, nil
}

func (s *Store) CountDownloads(_ context.Context, since time.Time) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, d := range s.downloads {
		if since.IsZero() || !d.CreatedAt.Before(since) {
			count++
		}
	}
	return count, nil
}

// Helpers ---------------------------------------------------------------------

func cloneListing(l listing.Listing) listing.Listing {
	l.CategoryIDs = append([]string(nil), l.CategoryIDs...)
	l.Flags = append([]string(nil), l.Flags...)
	l.Versions = append([]listing.Version(nil), l.Versions...)
	if l.ReviewDueAt != nil {
		due := *l.ReviewDueAt
		l.ReviewDueAt = &due
	}
	return l
}

func paginate[T any](items []T, page, pageSize int) []T {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 10
	}
	start := (page - 1) * pageSize
	if start >= len(items) {
		return []T{}
	}
	end := start + pageSize
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}
