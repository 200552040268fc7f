// Package listing provides the listed asset a visit is scheduled against.
package listing

import "time"

// Listing is a property on the marketplace. Visits are only actionable
// while their listing is active.
type Listing struct {
	ID         int64     `json:"id"`
	Address    string    `json:"address"`
	OwnerEmail string    `json:"owner_email"`
	Active     bool      `json:"active"`
	CreatedAt  time.Time `json:"created_at"`
}
