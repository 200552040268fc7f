package visit

import (
	"context"
	"errors"
	"testing"
)

func TestCardApproveReturnsToIdle(t *testing.T) {
	rec := &recorder{}
	card := NewCard(testVisit(1, daysFromNow(2), StatusPending, ActionApprove, ActionReject), rec.submit, nil)

	if card.State() != CardIdle {
		t.Fatalf("initial state = %s, want IDLE", card.State())
	}
	if err := card.Trigger(context.Background(), ActionApprove); err != nil {
		t.Fatalf("trigger: %v", err)
	}
	if card.State() != CardIdle {
		t.Errorf("state = %s, want IDLE", card.State())
	}
	if len(rec.got) != 1 || rec.got[0].Status != StatusAccepted {
		t.Errorf("submissions = %+v, want one ACCEPTED", rec.got)
	}
}

func TestCardCancelConfirmFlow(t *testing.T) {
	rec := &recorder{}
	card := NewCard(testVisit(1, daysFromNow(2), StatusAccepted, ActionCancel), rec.submit, nil)

	if err := card.Trigger(context.Background(), ActionCancel); err != nil {
		t.Fatalf("trigger: %v", err)
	}
	if card.State() != CardConfirmingCancel {
		t.Fatalf("state = %s, want CONFIRMING_CANCEL", card.State())
	}
	if card.Pending() == nil {
		t.Fatal("expected a pending confirmation")
	}
	if len(rec.got) != 0 {
		t.Fatal("nothing may be submitted while confirming")
	}

	if err := card.Trigger(context.Background(), ActionCancel); !errors.Is(err, ErrCardBusy) {
		t.Errorf("trigger while confirming: err = %v, want ErrCardBusy", err)
	}

	if err := card.Confirm(context.Background()); err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if card.State() != CardIdle {
		t.Errorf("state = %s, want IDLE", card.State())
	}
	if card.Pending() != nil {
		t.Error("pending confirmation should be cleared")
	}
	if len(rec.got) != 1 || rec.got[0].Status != StatusCancelled {
		t.Errorf("submissions = %+v, want one CANCELLED", rec.got)
	}
}

func TestCardCancelDecline(t *testing.T) {
	rec := &recorder{}
	card := NewCard(testVisit(1, daysFromNow(2), StatusAccepted, ActionCancel), rec.submit, nil)

	if err := card.Trigger(context.Background(), ActionCancel); err != nil {
		t.Fatalf("trigger: %v", err)
	}
	if err := card.Decline(); err != nil {
		t.Fatalf("decline: %v", err)
	}
	if card.State() != CardIdle {
		t.Errorf("state = %s, want IDLE", card.State())
	}
	if len(rec.got) != 0 {
		t.Error("decline must not submit")
	}
	if err := card.Decline(); !errors.Is(err, ErrCardBusy) {
		t.Errorf("second decline: err = %v, want ErrCardBusy", err)
	}
}

func TestCardConfirmRevalidates(t *testing.T) {
	rec := &recorder{}
	v := testVisit(1, daysFromNow(2), StatusAccepted, ActionCancel)
	card := NewCard(v, rec.submit, nil)

	if err := card.Trigger(context.Background(), ActionCancel); err != nil {
		t.Fatalf("trigger: %v", err)
	}

	withdrawn := *v
	withdrawn.IsValidVisit = false
	card.Update(&withdrawn)

	if err := card.Confirm(context.Background()); !errors.Is(err, ErrInvalidVisit) {
		t.Fatalf("err = %v, want ErrInvalidVisit", err)
	}
	if len(rec.got) != 0 {
		t.Error("an invalid visit must not be submitted")
	}
	if card.State() != CardIdle {
		t.Errorf("state = %s, want IDLE", card.State())
	}
}

func TestCardCancelCallbackSkipsConfirmation(t *testing.T) {
	rec := &recorder{}
	called := false
	onCancel := func(context.Context, int64) error {
		called = true
		return nil
	}
	card := NewCard(testVisit(1, daysFromNow(2), StatusAccepted, ActionCancel), rec.submit, onCancel)

	if err := card.Trigger(context.Background(), ActionCancel); err != nil {
		t.Fatalf("trigger: %v", err)
	}
	if !called {
		t.Error("expected callback to run")
	}
	if card.State() != CardIdle {
		t.Errorf("state = %s, want IDLE", card.State())
	}
}

func TestCardTriggerNotOffered(t *testing.T) {
	rec := &recorder{}
	card := NewCard(testVisit(1, daysFromNow(2), StatusPending, ActionCancel), rec.submit, nil)

	err := card.Trigger(context.Background(), ActionApprove)
	if !errors.Is(err, ErrTransitionNotAllowed) {
		t.Fatalf("err = %v, want ErrTransitionNotAllowed", err)
	}
	if len(rec.got) != 0 {
		t.Error("expected no submission")
	}
}

func TestCardInvalidVisit(t *testing.T) {
	rec := &recorder{}
	v := testVisit(1, daysFromNow(2), StatusPending, ActionApprove)
	v.IsValidVisit = false
	card := NewCard(v, rec.submit, nil)

	if err := card.Trigger(context.Background(), ActionApprove); !errors.Is(err, ErrInvalidVisit) {
		t.Fatalf("err = %v, want ErrInvalidVisit", err)
	}
	if len(rec.got) != 0 {
		t.Error("expected no submission")
	}
}

func TestCardSubmitErrorReturnsToIdle(t *testing.T) {
	boom := errors.New("boom")
	rec := &recorder{err: boom}
	card := NewCard(testVisit(1, daysFromNow(2), StatusPending, ActionReject), rec.submit, nil)

	if err := card.Trigger(context.Background(), ActionReject); !errors.Is(err, boom) {
		t.Fatalf("err = %v, want boom", err)
	}
	if card.State() != CardIdle {
		t.Errorf("state = %s, want IDLE", card.State())
	}
}

func TestCardConfirmWithoutPrompt(t *testing.T) {
	card := NewCard(testVisit(1, daysFromNow(2), StatusPending), (&recorder{}).submit, nil)
	if err := card.Confirm(context.Background()); !errors.Is(err, ErrCardBusy) {
		t.Errorf("err = %v, want ErrCardBusy", err)
	}
}

func TestCardStateString(t *testing.T) {
	tests := map[CardState]string{
		CardIdle:             "IDLE",
		CardConfirmingCancel: "CONFIRMING_CANCEL",
		CardSubmitting:       "SUBMITTING",
		CardState(9):         "CardState(9)",
	}
	for s, want := range tests {
		if got := s.String(); got != want {
			t.Errorf("String() = %q, want %q", got, want)
		}
	}
}
