package visit

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidVisit means the visit's listing is no longer active, so no
	// action may be submitted for it.
	ErrInvalidVisit = errors.New("this visit is no longer valid")

	// ErrMalformedData marks unparseable dates or unknown enum values.
	ErrMalformedData = errors.New("malformed visit data")

	// ErrNotFound is returned when a visit does not exist or is not
	// visible to the viewer.
	ErrNotFound = errors.New("visit not found")

	// ErrTransitionNotAllowed is returned when the requested status is not
	// one of the viewer's allowed actions.
	ErrTransitionNotAllowed = errors.New("action not allowed")

	// ErrCardBusy is returned when a card is asked to act outside the state
	// that permits it.
	ErrCardBusy = errors.New("visit card is busy")
)

// NetworkError wraps any failure from the visit source.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// wrapSource turns a source failure into a NetworkError, leaving the
// invalid-visit condition recognizable.
func wrapSource(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrInvalidVisit) {
		return err
	}
	return &NetworkError{Op: op, Err: err}
}
