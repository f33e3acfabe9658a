package loan

import (
	"errors"
	"testing"
	"time"
)

func TestLoan_Expired(t *testing.T) {
	deadline := time.Date(2025, 9, 6, 10, 0, 0, 0, time.UTC)
	l := &Loan{State: StateActive, RepaymentDeadline: deadline}

	if l.Expired(deadline) {
		t.Fatalf("loan must not be expired exactly at its deadline")
	}
	if !l.Expired(deadline.Add(time.Second)) {
		t.Fatalf("loan must be expired one second after its deadline")
	}
}

func TestLoan_Close(t *testing.T) {
	at := time.Date(2025, 9, 6, 10, 0, 0, 0, time.UTC)
	borrower := "bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"

	l := &Loan{BorrowerID: borrower, ActiveBorrower: &borrower, State: StateActive}
	if err := l.Close(StateRepaid, at); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if l.State != StateRepaid || l.ActiveBorrower != nil || l.ClosedAt == nil || !l.ClosedAt.Equal(at) {
		t.Fatalf("unexpected loan after close: %+v", l)
	}

	// closed loans cannot transition again
	if err := l.Close(StateLiquidated, at); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("second Close: want ErrInvalidTransition, got %v", err)
	}

	// active is not a terminal state
	l = &Loan{State: StateActive}
	if err := l.Close(StateActive, at); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("Close(active): want ErrInvalidTransition, got %v", err)
	}
}
