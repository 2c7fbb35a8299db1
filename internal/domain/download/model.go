package download

import "time"

// Statuses a download event can carry. Events are append-only; the
// status is fixed at creation.
const (
	StatusInitiated = "initiated"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// Download records a single retrieval of a listing binary. AccountID is
// empty for anonymous downloads; Price and Currency snapshot the
// listing at the time of the event.
type Download struct {
	ID        string    `json:"id"`
	ListingID string    `json:"app"`
	AccountID string    `json:"user,omitempty"`
	VersionID string    `json:"versionId,omitempty"`
	IPAddress string    `json:"ipAddress,omitempty"`
	UserAgent string    `json:"userAgent,omitempty"`
	Provider  string    `json:"provider"`
	Price     float64   `json:"price"`
	Currency  string    `json:"currency"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
}

// Filter narrows download queries.
type Filter struct {
	ListingID string
	Since     time.Time
}
