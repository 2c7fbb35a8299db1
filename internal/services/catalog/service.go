// Package catalog implements the public query surface, the category
// tree, and the publisher and admin aggregation views.
package catalog

import (
	"context"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/appstack-labs/marketplace/internal/apperr"
	"github.com/appstack-labs/marketplace/internal/domain/category"
	"github.com/appstack-labs/marketplace/internal/domain/download"
	"github.com/appstack-labs/marketplace/internal/domain/listing"
	"github.com/appstack-labs/marketplace/internal/storage"
)

// searchLimit caps search results.
const searchLimit = 20

// Service coordinates catalog queries.
type Service struct {
	listings   storage.ListingStore
	categories storage.CategoryStore
	accounts   storage.AccountStore
	downloads  storage.DownloadStore
	log        *logrus.Logger
}

// New creates a configured catalog service.
func New(listings storage.ListingStore, categories storage.CategoryStore, accounts storage.AccountStore, downloads storage.DownloadStore, log *logrus.Logger) *Service {
	return &Service{
		listings:   listings,
		categories: categories,
		accounts:   accounts,
		downloads:  downloads,
		log:        log,
	}
}

// Page is a paginated listing result.
type Page struct {
	Page       int               `json:"page"`
	TotalPages int               `json:"totalPages"`
	Total      int               `json:"total"`
	Listings   []listing.Listing `json:"apps"`
}

func newPage(items []listing.Listing, f listing.Filter, total int) Page {
	totalPages := (total + f.PageSize - 1) / f.PageSize
	if totalPages == 0 {
		totalPages = 1
	}
	if items == nil {
		items = []listing.Listing{}
	}
	return Page{Page: f.Page, TotalPages: totalPages, Total: total, Listings: items}
}

// Browse returns published listings matching the filter.
func (s *Service) Browse(ctx context.Context, f listing.Filter) (Page, error) {
	f.PublishedOnly = true
	f.Normalize()
	items, total, err := s.listings.ListListings(ctx, f)
	if err != nil {
		return Page{}, err
	}
	return newPage(items, f, total), nil
}

// AdminBrowse returns listings in any state for the moderation view.
func (s *Service) AdminBrowse(ctx context.Context, f listing.Filter) (Page, error) {
	f.Normalize()
	items, total, err := s.listings.ListListings(ctx, f)
	if err != nil {
		return Page{}, err
	}
	return newPage(items, f, total), nil
}

// Search matches published listings on title or description. The query
// is required and results are capped.
func (s *Service) Search(ctx context.Context, query string) ([]listing.Listing, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, apperr.Validation("search query is required")
	}
	items, _, err := s.listings.ListListings(ctx, listing.Filter{
		PublishedOnly: true,
		Search:        query,
		Page:          1,
		PageSize:      searchLimit,
	})
	if err != nil {
		return nil, err
	}
	return items, nil
}

// GetPublished resolves a published listing by id or slug. Unpublished
// listings are indistinguishable from missing ones.
func (s *Service) GetPublished(ctx context.Context, idOrSlug string) (listing.Listing, error) {
	l, err := s.listings.GetListing(ctx, idOrSlug)
	if apperr.Is(err, apperr.KindNotFound) {
		l, err = s.listings.GetListingBySlug(ctx, idOrSlug)
	}
	if err != nil {
		return listing.Listing{}, err
	}
	if !l.Published {
		return listing.Listing{}, apperr.NotFound("listing %s not found", idOrSlug)
	}
	return l, nil
}

// Categories -----------------------------------------------------------------

// CategoryInput carries the editable category fields.
type CategoryInput struct {
	Name        string
	Description string
	ParentID    string
}

// CreateCategory adds a category node, validating the parent chain.
func (s *Service) CreateCategory(ctx context.Context, in CategoryInput) (category.Category, error) {
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return category.Category{}, apperr.Validation("name is required")
	}
	if in.ParentID != "" {
		if err := s.checkParentChain(ctx, "", in.ParentID); err != nil {
			return category.Category{}, err
		}
	}
	return s.categories.CreateCategory(ctx, category.Category{
		Name:        in.Name,
		Slug:        slugify(in.Name),
		Description: strings.TrimSpace(in.Description),
		ParentID:    in.ParentID,
	})
}

// UpdateCategory edits a category, refusing parent assignments that
// would close a cycle.
func (s *Service) UpdateCategory(ctx context.Context, id string, in CategoryInput) (category.Category, error) {
	c, err := s.categories.GetCategory(ctx, id)
	if err != nil {
		return category.Category{}, err
	}

	in.Name = strings.TrimSpace(in.Name)
	if in.Name != "" {
		c.Name = in.Name
		c.Slug = slugify(in.Name)
	}
	c.Description = strings.TrimSpace(in.Description)

	if in.ParentID != c.ParentID {
		if in.ParentID != "" {
			if err := s.checkParentChain(ctx, id, in.ParentID); err != nil {
				return category.Category{}, err
			}
		}
		c.ParentID = in.ParentID
	}
	return s.categories.UpdateCategory(ctx, c)
}

// checkParentChain walks up from parentID and fails if it reaches
// selfID or exceeds the depth cap.
func (s *Service) checkParentChain(ctx context.Context, selfID, parentID string) error {
	seen := 0
	current := parentID
	for current != "" {
		if current == selfID {
			return apperr.Validation("category parent chain forms a cycle")
		}
		seen++
		if seen > category.MaxDepth {
			return apperr.Validation("category nesting exceeds %d levels", category.MaxDepth)
		}
		parent, err := s.categories.GetCategory(ctx, current)
		if err != nil {
			if apperr.Is(err, apperr.KindNotFound) {
				return apperr.Validation("unknown parent category %s", current)
			}
			return err
		}
		current = parent.ParentID
	}
	return nil
}

// ListCategories returns every category sorted by name.
func (s *Service) ListCategories(ctx context.Context) ([]category.Category, error) {
	return s.categories.ListCategories(ctx)
}

func slugify(name string) string {
	slug := strings.ToLower(strings.TrimSpace(name))
	var b strings.Builder
	lastDash := true
	for _, r := range slug {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastDash = false
		default:
			if !lastDash {
				b.WriteByte('-')
				lastDash = true
			}
		}
	}
	return strings.Trim(b.String(), "-")
}

// Aggregations ---------------------------------------------------------------

// PublisherStats summarize one publisher's listings.
type PublisherStats struct {
	TotalListings     int     `json:"totalApps"`
	PublishedListings int     `json:"publishedApps"`
	PendingListings   int     `json:"pendingApps"`
	TotalDownloads    int64   `json:"totalDownloads"`
	TotalRevenue      float64 `json:"totalRevenue"`
}

// StatsForPublisher aggregates the owner's listings.
func (s *Service) StatsForPublisher(ctx context.Context, ownerID string) (PublisherStats, error) {
	total, err := s.listings.CountListings(ctx, listing.Filter{OwnerID: ownerID}, time.Time{})
	if err != nil {
		return PublisherStats{}, err
	}
	published, err := s.listings.CountListings(ctx, listing.Filter{OwnerID: ownerID, Status: listing.StatusPublished}, time.Time{})
	if err != nil {
		return PublisherStats{}, err
	}
	pending, err := s.listings.CountListings(ctx, listing.Filter{OwnerID: ownerID, Status: listing.StatusPending}, time.Time{})
	if err != nil {
		return PublisherStats{}, err
	}
	downloads, revenue, err := s.listings.AggregateTotals(ctx, ownerID)
	if err != nil {
		return PublisherStats{}, err
	}
	return PublisherStats{
		TotalListings:     total,
		PublishedListings: published,
		PendingListings:   pending,
		TotalDownloads:    downloads,
		TotalRevenue:      revenue,
	}, nil
}

// RecentActivity counts the last week's growth.
type RecentActivity struct {
	NewAccounts  int `json:"newUsers"`
	NewListings  int `json:"newApps"`
	NewDownloads int `json:"newDownloads"`
}

// AdminStats is the platform-wide dashboard payload.
type AdminStats struct {
	TotalAccounts     int            `json:"totalUsers"`
	TotalListings     int            `json:"totalApps"`
	PublishedListings int            `json:"publishedApps"`
	PendingListings   int            `json:"pendingApps"`
	TotalDownloads    int64          `json:"totalDownloads"`
	TotalRevenue      float64        `json:"totalRevenue"`
	RecentActivity    RecentActivity `json:"recentActivity"`
}

// StatsForAdmin aggregates the whole platform, with a seven-day recent
// activity window.
func (s *Service) StatsForAdmin(ctx context.Context) (AdminStats, error) {
	weekAgo := time.Now().UTC().AddDate(0, 0, -7)

	totalAccounts, err := s.accounts.CountAccounts(ctx, time.Time{})
	if err != nil {
		return AdminStats{}, err
	}
	totalListings, err := s.listings.CountListings(ctx, listing.Filter{}, time.Time{})
	if err != nil {
		return AdminStats{}, err
	}
	published, err := s.listings.CountListings(ctx, listing.Filter{Status: listing.StatusPublished}, time.Time{})
	if err != nil {
		return AdminStats{}, err
	}
	pending, err := s.listings.CountListings(ctx, listing.Filter{Status: listing.StatusPending}, time.Time{})
	if err != nil {
		return AdminStats{}, err
	}
	downloads, revenue, err := s.listings.AggregateTotals(ctx, "")
	if err != nil {
		return AdminStats{}, err
	}

	newAccounts, err := s.accounts.CountAccounts(ctx, weekAgo)
	if err != nil {
		return AdminStats{}, err
	}
	newListings, err := s.listings.CountListings(ctx, listing.Filter{}, weekAgo)
	if err != nil {
		return AdminStats{}, err
	}
	newDownloads, err := s.downloads.CountDownloads(ctx, weekAgo)
	if err != nil {
		return AdminStats{}, err
	}

	return AdminStats{
		TotalAccounts:     totalAccounts,
		TotalListings:     totalListings,
		PublishedListings: published,
		PendingListings:   pending,
		TotalDownloads:    downloads,
		TotalRevenue:      revenue,
		RecentActivity: RecentActivity{
			NewAccounts:  newAccounts,
			NewListings:  newListings,
			NewDownloads: newDownloads,
		},
	}, nil
}

// DownloadsAnalytics is the admin download trend payload.
type DownloadsAnalytics struct {
	LastDay         int            `json:"last1d"`
	LastWeek        int            `json:"last7d"`
	LastMonth       int            `json:"last30d"`
	DownloadsByDate map[string]int `json:"downloadsByDate"`
}

// DownloadTrends buckets the last month's download events by day.
func (s *Service) DownloadTrends(ctx context.Context) (DownloadsAnalytics, error) {
	now := time.Now().UTC()
	monthAgo := now.AddDate(0, 0, -30)

	events, err := s.downloads.ListDownloads(ctx, download.Filter{Since: monthAgo})
	if err != nil {
		return DownloadsAnalytics{}, err
	}

	out := DownloadsAnalytics{DownloadsByDate: make(map[string]int)}
	dayAgo := now.AddDate(0, 0, -1)
	weekAgo := now.AddDate(0, 0, -7)
	for _, d := range events {
		out.LastMonth++
		if d.CreatedAt.After(weekAgo) {
			out.LastWeek++
		}
		if d.CreatedAt.After(dayAgo) {
			out.LastDay++
		}
		out.DownloadsByDate[d.CreatedAt.Format("2006-01-02")]++
	}
	return out, nil
}

// TopListings returns the most-downloaded published listings.
func (s *Service) TopListings(ctx context.Context, limit int) ([]listing.Listing, error) {
	if limit < 1 || limit > 100 {
		limit = 10
	}
	items, _, err := s.listings.ListListings(ctx, listing.Filter{
		PublishedOnly: true,
		Sort:          listing.SortDownloads,
		Page:          1,
		PageSize:      limit,
	})
	if err != nil {
		return nil, err
	}
	return items, nil
}
