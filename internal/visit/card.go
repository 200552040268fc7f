package visit

import (
	"context"
	"fmt"
)

// CardState is the interaction state of one rendered visit.
type CardState int

const (
	CardIdle CardState = iota
	CardConfirmingCancel
	CardSubmitting
)

func (s CardState) String() string {
	switch s {
	case CardIdle:
		return "IDLE"
	case CardConfirmingCancel:
		return "CONFIRMING_CANCEL"
	case CardSubmitting:
		return "SUBMITTING"
	default:
		return fmt.Sprintf("CardState(%d)", int(s))
	}
}

// Card drives the actions of a single visit:
//
//	IDLE --approve/reject--> SUBMITTING --done--> IDLE
//	IDLE --cancel--> CONFIRMING_CANCEL --decline--> IDLE
//	CONFIRMING_CANCEL --confirm--> SUBMITTING --done--> IDLE
//
// A caller-supplied CancelFunc replaces the CONFIRMING_CANCEL leg.
type Card struct {
	visit    *Visit
	submit   SubmitFunc
	onCancel CancelFunc

	state   CardState
	pending *ConfirmationRequest
}

// NewCard creates a card in the IDLE state.
func NewCard(v *Visit, submit SubmitFunc, onCancel CancelFunc) *Card {
	return &Card{visit: v, submit: submit, onCancel: onCancel}
}

// State returns the current state.
func (c *Card) State() CardState {
	return c.state
}

// Visit returns the snapshot the card currently renders.
func (c *Card) Visit() *Visit {
	return c.visit
}

// Pending returns the open confirmation prompt, if any.
func (c *Card) Pending() *ConfirmationRequest {
	return c.pending
}

// Update swaps in a fresh snapshot, e.g. after a refetch.
func (c *Card) Update(v *Visit) {
	c.visit = v
}

// Actions resolves the action descriptors for the current snapshot.
func (c *Card) Actions() ([]ActionDescriptor, error) {
	return ResolveActions(c.visit, ActionOptions{Submit: c.submit, OnCancel: c.onCancel})
}

// Trigger runs the action with the given code.
func (c *Card) Trigger(ctx context.Context, code ActionCode) error {
	if c.state != CardIdle {
		return fmt.Errorf("trigger %s in state %s: %w", code, c.state, ErrCardBusy)
	}

	actions, err := c.Actions()
	if err != nil {
		return err
	}

	var handler ActionHandler
	for _, a := range actions {
		if a.Code == code {
			handler = a.Handler
			break
		}
	}
	if handler == nil {
		return fmt.Errorf("visit %d does not offer %s: %w", c.visit.ID, code, ErrTransitionNotAllowed)
	}

	c.state = CardSubmitting
	req, err := handler(ctx)
	c.state = CardIdle
	if err != nil {
		return err
	}

	if req != nil {
		c.pending = req
		c.state = CardConfirmingCancel
	}
	return nil
}

// Confirm answers the open prompt with yes. The snapshot is checked again
// first since the listing may have been withdrawn while the prompt was open.
func (c *Card) Confirm(ctx context.Context) error {
	if c.state != CardConfirmingCancel || c.pending == nil {
		return fmt.Errorf("confirm in state %s: %w", c.state, ErrCardBusy)
	}

	req := c.pending
	c.pending = nil

	if !c.visit.IsValidVisit {
		req.Decline()
		c.state = CardIdle
		return ErrInvalidVisit
	}

	c.state = CardSubmitting
	err := req.Confirm(ctx)
	c.state = CardIdle
	return err
}

// Decline answers the open prompt with no.
func (c *Card) Decline() error {
	if c.state != CardConfirmingCancel || c.pending == nil {
		return fmt.Errorf("decline in state %s: %w", c.state, ErrCardBusy)
	}
	c.pending.Decline()
	c.pending = nil
	c.state = CardIdle
	return nil
}
