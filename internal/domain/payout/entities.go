package payout

import (
	"context"
	"errors"
	"time"

	"zkloan/pkg/amount"
)

type Purpose string

const (
	PurposeDisbursement     Purpose = "disbursement"
	PurposeCollateralReturn Purpose = "collateral_return"
)

var ErrRejected = errors.New("payout rejected")

// Payout is an outgoing transfer instruction. It is written inside the same
// transaction as the ledger change it settles; a settlement worker executes
// committed rows.
type Payout struct {
	ID          uint64        `gorm:"primaryKey;column:id"`
	PayoutID    string        `gorm:"size:32;uniqueIndex;column:payout_id"`
	RecipientID string        `gorm:"size:32;index;column:recipient_id"`
	Amount      amount.Amount `gorm:"type:varchar(80);not null;column:amount"`
	Purpose     Purpose       `gorm:"size:32;column:purpose"`
	LoanID      string        `gorm:"size:32;index;column:loan_id"`
	CreatedAt   time.Time     `gorm:"column:created_at"`
}

func (Payout) TableName() string { return "payouts" }

type Repository interface {
	// Create records the transfer. Any error aborts the enclosing operation.
	Create(ctx context.Context, p *Payout) error
	ListByRecipient(ctx context.Context, recipientID string) ([]Payout, error)
}
