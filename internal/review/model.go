// Package review provides visit reviews, owner replies and report categories.
package review

import "time"

// Rating bounds for a review.
const (
	MinRating = 1
	MaxRating = 5
)

// Review is a rating and comment a visitor attaches to a completed visit.
type Review struct {
	ID        int64     `json:"id"`
	VisitID   int64     `json:"visit_id"`
	Rating    int       `json:"rating"`
	Comment   string    `json:"comment"`
	Author    string    `json:"author"`
	Reply     string    `json:"reply,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// HasReply reports whether the listing owner has answered the review.
func (r *Review) HasReply() bool {
	return r.Reply != ""
}

// Category is a reason a review can be reported for.
type Category struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}
