package account

import "time"

// Role is the closed set of permission tiers. Keeping it a named type
// forces call sites through the constants below instead of raw strings.
type Role string

const (
	RoleStandard      Role = "standard"
	RolePublisher     Role = "publisher"
	RoleAdministrator Role = "administrator"
)

// Valid reports whether r is one of the defined roles.
func (r Role) Valid() bool {
	switch r {
	case RoleStandard, RolePublisher, RoleAdministrator:
		return true
	}
	return false
}

// In reports whether r is contained in the allowed set.
func (r Role) In(allowed ...Role) bool {
	for _, a := range allowed {
		if r == a {
			return true
		}
	}
	return false
}

// PublisherProfile holds the optional publisher-facing fields.
type PublisherProfile struct {
	Company string `json:"company,omitempty"`
	Website string `json:"website,omitempty"`
	Bio     string `json:"bio,omitempty"`
}

// Account is a registered user of the marketplace. PasswordHash never
// leaves the storage boundary; Public() strips it before serialization.
type Account struct {
	ID           string           `json:"id"`
	Name         string           `json:"name"`
	Email        string           `json:"email"`
	PasswordHash string           `json:"-"`
	Role         Role             `json:"role"`
	Phone        string           `json:"phone,omitempty"`
	Bio          string           `json:"bio,omitempty"`
	Location     string           `json:"location,omitempty"`
	Website      string           `json:"website,omitempty"`
	Avatar       string           `json:"avatar,omitempty"`
	Publisher    PublisherProfile `json:"publisherProfile"`
	Credits      int64            `json:"credits"`
	Banned       bool             `json:"isBanned"`
	CreatedAt    time.Time        `json:"createdAt"`
	UpdatedAt    time.Time        `json:"updatedAt"`
}

// Public returns a copy safe to hand to callers: the hash is cleared.
func (a Account) Public() Account {
	a.PasswordHash = ""
	return a
}
