package review

import "time"

// Review is one account's rating of one listing. The (listing, account)
// pair is unique; submitting again updates in place.
type Review struct {
	ID               string    `json:"id"`
	ListingID        string    `json:"app"`
	AccountID        string    `json:"user"`
	Rating           int       `json:"rating"`
	Title            string    `json:"title,omitempty"`
	Body             string    `json:"body,omitempty"`
	VerifiedPurchase bool      `json:"isVerifiedPurchase"`
	Hidden           bool      `json:"isHidden"`
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
}
