package category

import "time"

// MaxDepth caps category nesting; parent assignment beyond this fails.
const MaxDepth = 10

// Category is a node in the self-referential category tree. ParentID is
// empty for roots. Acyclicity is enforced at assignment time by the
// catalog service, not by the store.
type Category struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Slug        string    `json:"slug"`
	Description string    `json:"description"`
	ParentID    string    `json:"parent,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}
