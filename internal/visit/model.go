// Package visit models scheduled property visits and resolves, for a given
// viewer and moment, how a visit is bucketed, which actions it offers and
// how its status is displayed.
package visit

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/evcraddock/visit-desk/internal/review"
)

// Status is the server-side state of a visit.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusAccepted  Status = "ACCEPTED"
	StatusRejected  Status = "REJECTED"
	StatusCancelled Status = "CANCELLED"
)

// ValidStatuses is the set of known visit statuses.
var ValidStatuses = []Status{StatusPending, StatusAccepted, StatusRejected, StatusCancelled}

// IsValid checks if a status is recognized.
func (s Status) IsValid() bool {
	for _, v := range ValidStatuses {
		if s == v {
			return true
		}
	}
	return false
}

// ParseStatus converts a wire value into a Status.
func ParseStatus(s string) (Status, error) {
	st := Status(s)
	if !st.IsValid() {
		return "", fmt.Errorf("%w: unknown status %q", ErrMalformedData, s)
	}
	return st, nil
}

// UnmarshalJSON rejects unknown statuses.
func (s *Status) UnmarshalJSON(b []byte) error {
	return unmarshalEnum(b, s, ParseStatus)
}

// ActionCode is an operation the server allows the viewer to take.
type ActionCode string

const (
	ActionApprove ActionCode = "APPROVE"
	ActionReject  ActionCode = "REJECT"
	ActionCancel  ActionCode = "CANCEL"
)

// ValidActions is the set of known action codes.
var ValidActions = []ActionCode{ActionApprove, ActionReject, ActionCancel}

// IsValid checks if an action code is recognized.
func (a ActionCode) IsValid() bool {
	for _, v := range ValidActions {
		if a == v {
			return true
		}
	}
	return false
}

// Target returns the status an action moves a visit to.
func (a ActionCode) Target() Status {
	switch a {
	case ActionApprove:
		return StatusAccepted
	case ActionReject:
		return StatusRejected
	case ActionCancel:
		return StatusCancelled
	default:
		return ""
	}
}

// ActionFor returns the action code that moves a visit into status.
func ActionFor(status Status) (ActionCode, bool) {
	for _, a := range ValidActions {
		if a.Target() == status {
			return a, true
		}
	}
	return "", false
}

// ParseActionCode converts a wire value into an ActionCode.
func ParseActionCode(s string) (ActionCode, error) {
	a := ActionCode(s)
	if !a.IsValid() {
		return "", fmt.Errorf("%w: unknown action %q", ErrMalformedData, s)
	}
	return a, nil
}

// UnmarshalJSON rejects unknown action codes.
func (a *ActionCode) UnmarshalJSON(b []byte) error {
	return unmarshalEnum(b, a, ParseActionCode)
}

// Role is the viewer's relationship to the listed asset.
type Role string

const (
	RoleOwner  Role = "OWNER"
	RoleTenant Role = "TENANT"
	RoleBuyer  Role = "BUYER"
	RoleAgent  Role = "AGENT"
)

// ValidRoles is the set of known roles.
var ValidRoles = []Role{RoleOwner, RoleTenant, RoleBuyer, RoleAgent}

// IsValid checks if a role is recognized.
func (r Role) IsValid() bool {
	for _, v := range ValidRoles {
		if r == v {
			return true
		}
	}
	return false
}

// OwnerSide reports whether the role answers visit requests rather than
// making them.
func (r Role) OwnerSide() bool {
	return r == RoleOwner || r == RoleAgent
}

// ParseRole converts a wire value into a Role.
func ParseRole(s string) (Role, error) {
	r := Role(s)
	if !r.IsValid() {
		return "", fmt.Errorf("%w: unknown role %q", ErrMalformedData, s)
	}
	return r, nil
}

// UnmarshalJSON rejects unknown roles.
func (r *Role) UnmarshalJSON(b []byte) error {
	return unmarshalEnum(b, r, ParseRole)
}

// Bucket is the client-side grouping of a visit.
type Bucket string

const (
	BucketUpcoming  Bucket = "UPCOMING"
	BucketMissed    Bucket = "MISSED"
	BucketCompleted Bucket = "COMPLETED"
)

// Label returns a human-readable label for the bucket.
func (b Bucket) Label() string {
	switch b {
	case BucketUpcoming:
		return "Upcoming"
	case BucketMissed:
		return "Missed"
	case BucketCompleted:
		return "Completed"
	default:
		return ""
	}
}

// ReviewAction is the review affordance offered on a visit.
type ReviewAction string

const (
	ReviewNone       ReviewAction = "NONE"
	ReviewWrite      ReviewAction = "WRITE_REVIEW"
	ReviewShowRating ReviewAction = "SHOW_RATING"
	ReviewReply      ReviewAction = "REPLY_TO_REVIEW"
)

// Label returns a human-readable label for the review action.
func (a ReviewAction) Label() string {
	switch a {
	case ReviewWrite:
		return "Write a review"
	case ReviewShowRating:
		return "Show rating"
	case ReviewReply:
		return "Reply to review"
	default:
		return ""
	}
}

// Visit is a read-only snapshot of a scheduled viewing, as seen by one viewer.
type Visit struct {
	ID           int64          `json:"id"`
	ListingID    int64          `json:"listing_id"`
	Address      string         `json:"address"`
	VisitorEmail string         `json:"visitor_email"`
	Status       Status         `json:"status"`
	StartDate    time.Time      `json:"start_date"`
	EndDate      time.Time      `json:"end_date"`
	Actions      []ActionCode   `json:"actions"`
	Role         Role           `json:"role"`
	IsValidVisit bool           `json:"is_valid_visit"`
	IsAssetOwner bool           `json:"is_asset_owner"`
	Review       *review.Review `json:"review,omitempty"`
}

// HasAction reports whether the server offers code on this visit.
func (v *Visit) HasAction(code ActionCode) bool {
	for _, a := range v.Actions {
		if a == code {
			return true
		}
	}
	return false
}

// Group is a day's worth of visits, keyed YYYY-MM-DD.
type Group struct {
	Date   string   `json:"date"`
	Visits []*Visit `json:"visits"`
}

func unmarshalEnum[T ~string](b []byte, dst *T, parse func(string) (T, error)) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedData, err)
	}
	v, err := parse(s)
	if err != nil {
		return err
	}
	*dst = v
	return nil
}
