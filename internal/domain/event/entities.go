package event

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"zkloan/pkg/amount"
)

type Kind string

const (
	KindLiquidityDeposited   Kind = "LiquidityDeposited"
	KindLoanApproved         Kind = "LoanApproved"
	KindLoanRejected         Kind = "LoanRejected"
	KindReplayAttempt        Kind = "ReplayAttempt"
	KindLoanRepaid           Kind = "LoanRepaid"
	KindCollateralLiquidated Kind = "CollateralLiquidated"
)

type LiquidityDeposited struct {
	Depositor string        `json:"depositor"`
	Amount    amount.Amount `json:"amount"`
}

type LoanApproved struct {
	Borrower    string        `json:"borrower"`
	Amount      amount.Amount `json:"amount"`
	Collateral  amount.Amount `json:"collateral"`
	Ratio       uint64        `json:"ratio"`
	CreditScore uint64        `json:"creditScore"`
	Timestamp   int64         `json:"timestamp"`
}

type LoanRejected struct {
	Borrower  string `json:"borrower"`
	Reason    string `json:"reason"`
	Timestamp int64  `json:"timestamp"`
}

type ReplayAttempt struct {
	Borrower    string `json:"borrower"`
	Fingerprint string `json:"fingerprint"`
}

type LoanRepaid struct {
	Borrower           string        `json:"borrower"`
	Amount             amount.Amount `json:"amount"`
	CollateralReturned amount.Amount `json:"collateralReturned"`
	Timestamp          int64         `json:"timestamp"`
}

type CollateralLiquidated struct {
	Borrower         string        `json:"borrower"`
	CollateralAmount amount.Amount `json:"collateralAmount"`
	Timestamp        int64         `json:"timestamp"`
}

// Event is an outbox row: written in the same transaction as the state change
// it reports, published after commit.
type Event struct {
	ID        string    `gorm:"primaryKey;size:36;column:id" json:"id"`
	Kind      Kind      `gorm:"size:32;index;column:kind" json:"kind"`
	Subject   string    `gorm:"size:32;index;column:subject" json:"subject"`
	Payload   string    `gorm:"type:text;column:payload" json:"payload"`
	CreatedAt time.Time `gorm:"column:created_at" json:"created_at"`
}

func (Event) TableName() string { return "events" }

// New wraps a payload. Subject is the account the event is about.
func New(kind Kind, subject string, payload any, at time.Time) (Event, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return Event{}, err
	}
	return Event{
		ID:        uuid.NewString(),
		Kind:      kind,
		Subject:   subject,
		Payload:   string(b),
		CreatedAt: at.UTC(),
	}, nil
}

type Repository interface {
	Append(ctx context.Context, evs ...Event) error
	ListBySubject(ctx context.Context, subject string, limit int) ([]Event, error)
}

// Publisher fans committed events out to subscribers.
type Publisher interface {
	Publish(ctx context.Context, evs ...Event) error
}
