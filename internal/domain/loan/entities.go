package loan

import (
	"errors"
	"time"

	"zkloan/pkg/amount"
)

type State string

const (
	StateActive     State = "active"
	StateRepaid     State = "repaid"
	StateLiquidated State = "liquidated"
)

var (
	ErrNotFound                = errors.New("loan not found")
	ErrActiveLoanExists        = errors.New("borrower already has an active loan")
	ErrInvalidAmount           = errors.New("requested amount must be greater than zero")
	ErrMalformedSignals        = errors.New("public signals must carry income, debt ratio and model fingerprint")
	ErrInsufficientRepayment   = errors.New("repayment is less than principal")
	ErrRepaymentDeadlinePassed = errors.New("repayment deadline has passed")
	ErrNotYetLiquidatable      = errors.New("loan is not past its repayment deadline")
	ErrInvalidTransition       = errors.New("invalid loan state transition")
)

// Loan is one borrower's obligation. Only the row in StateActive is the
// borrower's current loan; repaid and liquidated rows are kept as history.
type Loan struct {
	ID                uint64        `gorm:"primaryKey;column:id" json:"-"`
	LoanID            string        `gorm:"size:32;uniqueIndex:ux_loans_loan_id" json:"loan_id"`
	BorrowerID        string        `gorm:"size:32;index:idx_loans_borrower" json:"borrower_id"`
	ActiveBorrower    *string       `gorm:"size:32;uniqueIndex:ux_loans_active_borrower" json:"-"`
	Principal         amount.Amount `gorm:"type:varchar(80);not null" json:"principal"`
	Collateral        amount.Amount `gorm:"type:varchar(80);not null" json:"collateral"`
	CollateralRatio   uint64        `gorm:"not null" json:"collateral_ratio"`
	CreditScore       uint64        `gorm:"not null" json:"credit_score"`
	ProofFingerprint  string        `gorm:"size:66" json:"proof_fingerprint"`
	State             State         `gorm:"size:16;not null;default:'active'" json:"state"`
	RepaymentDeadline time.Time     `gorm:"not null" json:"repayment_deadline"`
	ClosedAt          *time.Time    `json:"closed_at,omitempty"`
	CreatedAt         time.Time     `json:"created_at"`
	UpdatedAt         time.Time     `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Loan) TableName() string { return "loans" }

func (l *Loan) IsActive() bool { return l.State == StateActive }

// Expired reports whether now is strictly after the repayment deadline.
func (l *Loan) Expired(now time.Time) bool { return now.After(l.RepaymentDeadline) }

// Close moves an active loan to a terminal state and frees the borrower slot.
func (l *Loan) Close(to State, at time.Time) error {
	if !l.IsActive() || (to != StateRepaid && to != StateLiquidated) {
		return ErrInvalidTransition
	}
	l.State = to
	l.ActiveBorrower = nil
	l.ClosedAt = &at
	return nil
}
