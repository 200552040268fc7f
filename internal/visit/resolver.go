package visit

import (
	"context"
	"fmt"
	"time"
)

// Descriptor is the display triple for a status or an action.
type Descriptor struct {
	Title string `json:"title"`
	Icon  string `json:"icon"`
	Color string `json:"color"`
}

var statusDescriptors = map[Status]Descriptor{
	StatusAccepted:  {Title: "Accepted", Icon: "check-circle", Color: "#2E7D32"},
	StatusRejected:  {Title: "Rejected", Icon: "x-circle", Color: "#C62828"},
	StatusCancelled: {Title: "Cancelled", Icon: "slash-circle", Color: "#757575"},
	StatusPending:   {Title: "Awaiting confirmation", Icon: "clock", Color: "#F9A825"},
}

var actionDescriptors = map[ActionCode]Descriptor{
	ActionApprove: {Title: "Accept", Icon: "check", Color: "#2E7D32"},
	ActionReject:  {Title: "Reject", Icon: "x", Color: "#C62828"},
	ActionCancel:  {Title: "Cancel", Icon: "slash", Color: "#757575"},
}

// Submission is a status change the viewer asks the server to apply.
type Submission struct {
	VisitID      int64
	Status       Status
	IsValidVisit bool
}

// SubmitFunc sends a submission to the server. Success and failure
// handling (toasts, refetch) belongs to whoever supplies it.
type SubmitFunc func(ctx context.Context, s Submission) error

// CancelFunc lets a caller take over the cancel action, for example to
// show its own confirmation dialog.
type CancelFunc func(ctx context.Context, visitID int64) error

// ActionHandler runs an action. A non-nil ConfirmationRequest means the
// action is waiting on the viewer and nothing has been submitted yet.
type ActionHandler func(ctx context.Context) (*ConfirmationRequest, error)

// ActionDescriptor is an action ready for display. It is never persisted.
type ActionDescriptor struct {
	Code    ActionCode
	Title   string
	Icon    string
	Color   string
	Handler ActionHandler
}

// ActionOptions carries the caller's hooks into ResolveActions.
type ActionOptions struct {
	Submit   SubmitFunc
	OnCancel CancelFunc
}

// Classify buckets a visit by comparing calendar days of its start and now,
// in now's location. A visit without a start date cannot be bucketed and
// yields the empty bucket.
func Classify(v *Visit, now time.Time) Bucket {
	if v.StartDate.IsZero() {
		return ""
	}

	diff := dayDiff(v.StartDate, now)
	switch {
	case diff > 0:
		return BucketUpcoming
	case diff < 0 && v.Status == StatusPending:
		return BucketMissed
	default:
		return BucketCompleted
	}
}

// dayDiff returns day(a) - day(b) counted in b's location.
func dayDiff(a, b time.Time) int {
	a = a.In(b.Location())
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	da := time.Date(ay, am, ad, 0, 0, 0, 0, time.UTC)
	db := time.Date(by, bm, bd, 0, 0, 0, 0, time.UTC)
	return int(da.Sub(db).Hours() / 24)
}

// StatusDescriptor returns the badge for a status. The second result is
// false for unknown statuses; callers must then hide the badge.
func StatusDescriptor(status Status) (Descriptor, bool) {
	d, ok := statusDescriptors[status]
	return d, ok
}

// ResolveActions builds descriptors for the server-provided actions, in
// order. Unknown codes are skipped. For an invalid visit it returns
// ErrInvalidVisit and no descriptors.
func ResolveActions(v *Visit, opts ActionOptions) ([]ActionDescriptor, error) {
	if !v.IsValidVisit {
		return nil, ErrInvalidVisit
	}
	if opts.Submit == nil {
		return nil, fmt.Errorf("resolving actions for visit %d: submit function is required", v.ID)
	}

	submit := guardSubmit(v.IsValidVisit, opts.Submit)
	out := make([]ActionDescriptor, 0, len(v.Actions))
	for _, code := range v.Actions {
		d, ok := actionDescriptors[code]
		if !ok {
			continue
		}
		out = append(out, ActionDescriptor{
			Code:    code,
			Title:   d.Title,
			Icon:    d.Icon,
			Color:   d.Color,
			Handler: actionHandler(v.ID, code, submit, opts.OnCancel),
		})
	}
	return out, nil
}

func actionHandler(visitID int64, code ActionCode, submit SubmitFunc, onCancel CancelFunc) ActionHandler {
	if code == ActionCancel {
		return func(ctx context.Context) (*ConfirmationRequest, error) {
			if onCancel != nil {
				return nil, onCancel(ctx, visitID)
			}
			return ConfirmCancellation(visitID, submit), nil
		}
	}

	status := code.Target()
	return func(ctx context.Context) (*ConfirmationRequest, error) {
		return nil, submit(ctx, Submission{VisitID: visitID, Status: status, IsValidVisit: true})
	}
}

// guardSubmit refuses to reach the server for a visit known to be invalid.
func guardSubmit(valid bool, submit SubmitFunc) SubmitFunc {
	return func(ctx context.Context, s Submission) error {
		if !valid || !s.IsValidVisit {
			return ErrInvalidVisit
		}
		return submit(ctx, s)
	}
}

// ResolveReviewAction decides which review affordance a visit offers.
func ResolveReviewAction(v *Visit, now time.Time) ReviewAction {
	if Classify(v, now) != BucketCompleted {
		return ReviewNone
	}
	switch {
	case v.IsAssetOwner && v.Review == nil:
		return ReviewNone
	case v.IsAssetOwner:
		return ReviewReply
	case v.Review == nil:
		return ReviewWrite
	default:
		return ReviewShowRating
	}
}

// ConfirmationOption is one button of a confirmation prompt.
type ConfirmationOption struct {
	Label   string
	Confirm bool
}

// ConfirmationRequest is a two-option prompt guarding a cancellation.
type ConfirmationRequest struct {
	VisitID int64
	Title   string
	Message string
	Options [2]ConfirmationOption

	submit SubmitFunc
	done   bool
}

// ConfirmCancellation builds the prompt shown before cancelling a visit.
func ConfirmCancellation(visitID int64, submit SubmitFunc) *ConfirmationRequest {
	return &ConfirmationRequest{
		VisitID: visitID,
		Title:   "Cancel visit",
		Message: "Are you sure you want to cancel this visit?",
		Options: [2]ConfirmationOption{
			{Label: "Yes, cancel", Confirm: true},
			{Label: "No", Confirm: false},
		},
		submit: submit,
	}
}

// Confirm submits the cancellation. The visit is treated as valid here
// because the prompt only opens for a visit that already passed the check;
// the server validates again when it applies the change.
func (c *ConfirmationRequest) Confirm(ctx context.Context) error {
	if c.done {
		return fmt.Errorf("confirmation for visit %d already answered", c.VisitID)
	}
	c.done = true
	return c.submit(ctx, Submission{VisitID: c.VisitID, Status: StatusCancelled, IsValidVisit: true})
}

// Decline closes the prompt without submitting anything.
func (c *ConfirmationRequest) Decline() {
	c.done = true
}

// Answered reports whether Confirm or Decline has been called.
func (c *ConfirmationRequest) Answered() bool {
	return c.done
}
