package listing

import (
	"strings"
	"time"
)

// FlagPendingReview marks a listing awaiting a publish decision. A
// listing must not be published while this flag is present.
const FlagPendingReview = "pending_review"

// RejectedFlagPrefix prefixes the flag recording an admin rejection;
// the remainder of the flag is the free-form reason.
const RejectedFlagPrefix = "rejected: "

// Version is an immutable uploaded-binary reference. The last element
// of a listing's Versions slice is authoritative for downloads.
type Version struct {
	ID         string    `json:"id"`
	Key        string    `json:"key"`
	Label      string    `json:"versionNumber"`
	UploadedAt time.Time `json:"uploadedAt"`
}

// Listing is a publishable app record owned by a publisher account.
type Listing struct {
	ID               string     `json:"id"`
	Title            string     `json:"title"`
	Slug             string     `json:"slug"`
	ShortDescription string     `json:"shortDescription"`
	Description      string     `json:"description"`
	CategoryIDs      []string   `json:"categories"`
	OwnerID          string     `json:"developer"`
	Price            float64    `json:"price"`
	Currency         string     `json:"currency"`
	Published        bool       `json:"isPublished"`
	Flags            []string   `json:"flags"`
	DownloadsCount   int64      `json:"downloadsCount"`
	AverageRating    float64    `json:"averageRating"`
	ReviewsCount     int        `json:"reviewsCount"`
	Versions         []Version  `json:"versions"`
	ReviewDueAt      *time.Time `json:"reviewDueAt,omitempty"`
	CreatedAt        time.Time  `json:"createdAt"`
	UpdatedAt        time.Time  `json:"updatedAt"`
}

// HasFlag reports whether the flag set contains the exact flag.
func (l Listing) HasFlag(flag string) bool {
	for _, f := range l.Flags {
		if f == flag {
			return true
		}
	}
	return false
}

// AddFlag appends flag if absent.
func (l *Listing) AddFlag(flag string) {
	if !l.HasFlag(flag) {
		l.Flags = append(l.Flags, flag)
	}
}

// RemoveFlag drops every occurrence of flag.
func (l *Listing) RemoveFlag(flag string) {
	kept := l.Flags[:0]
	for _, f := range l.Flags {
		if f != flag {
			kept = append(kept, f)
		}
	}
	l.Flags = kept
}

// RejectionReason returns the reason recorded by the most recent
// rejection, if any.
func (l Listing) RejectionReason() (string, bool) {
	for i := len(l.Flags) - 1; i >= 0; i-- {
		if strings.HasPrefix(l.Flags[i], RejectedFlagPrefix) {
			return strings.TrimPrefix(l.Flags[i], RejectedFlagPrefix), true
		}
	}
	return "", false
}

// LatestVersion returns the most recently appended version.
func (l Listing) LatestVersion() (Version, bool) {
	if len(l.Versions) == 0 {
		return Version{}, false
	}
	return l.Versions[len(l.Versions)-1], true
}

// HasVersionLabel reports whether a version with the label exists.
func (l Listing) HasVersionLabel(label string) bool {
	for _, v := range l.Versions {
		if v.Label == label {
			return true
		}
	}
	return false
}

// Sort orders accepted by the list queries.
const (
	SortLatest    = "latest"
	SortPopular   = "popular"
	SortDownloads = "downloads"
	SortRating    = "rating"
)

// Status filter values accepted by the admin list query.
const (
	StatusDraft     = "draft"
	StatusPending   = "pending"
	StatusPublished = "published"
)

// Filter narrows and orders list queries. Zero values mean "no
// constraint"; Page is 1-based.
type Filter struct {
	PublishedOnly bool
	OwnerID       string
	CategoryID    string
	FreeOnly      bool
	MinPrice      *float64
	MaxPrice      *float64
	Status        string
	Search        string
	Sort          string
	Page          int
	PageSize      int
}

// Normalize clamps pagination to sane defaults.
func (f *Filter) Normalize() {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.PageSize < 1 {
		f.PageSize = 10
	}
	if f.PageSize > 100 {
		f.PageSize = 100
	}
}

// Offset returns the row offset for the normalized page.
func (f Filter) Offset() int {
	return (f.Page - 1) * f.PageSize
}
