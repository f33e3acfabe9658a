package loan

import (
	"time"

	domain "zkloan/internal/domain/loan"
	"zkloan/pkg/amount"
)

type RequestInput struct {
	BorrowerID  string
	Amount      amount.Amount
	CreditScore uint64
	Proof       []byte
	Signals     []string
	Collateral  amount.Amount
}

type RepayInput struct {
	BorrowerID string
	Amount     amount.Amount
}

type LiquidateInput struct {
	BorrowerID string
	CallerID   string
}

// Reason is the user-facing cause of a rejected loan request.
type Reason string

const (
	ReasonReplay                 Reason = "replay"
	ReasonInvalidProof           Reason = "invalid proof"
	ReasonModelMismatch          Reason = "model mismatch"
	ReasonFailsConstraints       Reason = "fails constraints"
	ReasonInsufficientCollateral Reason = "insufficient collateral"
)

type LoanDTO struct {
	LoanID            string        `json:"loan_id"`
	BorrowerID        string        `json:"borrower_id"`
	Principal         amount.Amount `json:"principal"`
	Collateral        amount.Amount `json:"collateral"`
	CollateralRatio   uint64        `json:"collateral_ratio"`
	CreditScore       uint64        `json:"credit_score"`
	ProofFingerprint  string        `json:"proof_fingerprint"`
	State             string        `json:"state"`
	RepaymentDeadline time.Time     `json:"repayment_deadline"`
	ClosedAt          *time.Time    `json:"closed_at,omitempty"`
	CreatedAt         time.Time     `json:"created_at"`
}

func toDTO(l *domain.Loan) *LoanDTO {
	return &LoanDTO{
		LoanID:            l.LoanID,
		BorrowerID:        l.BorrowerID,
		Principal:         l.Principal,
		Collateral:        l.Collateral,
		CollateralRatio:   l.CollateralRatio,
		CreditScore:       l.CreditScore,
		ProofFingerprint:  l.ProofFingerprint,
		State:             string(l.State),
		RepaymentDeadline: l.RepaymentDeadline,
		ClosedAt:          l.ClosedAt,
		CreatedAt:         l.CreatedAt,
	}
}

// Decision is the outcome of a loan request that passed its preconditions.
// Rejections are decisions, not errors.
type Decision struct {
	Approved    bool      `json:"approved"`
	Reason      Reason    `json:"reason,omitempty"`
	Fingerprint string    `json:"fingerprint"`
	Ratio       uint64    `json:"collateral_ratio,omitempty"`
	Loan        *LoanDTO  `json:"loan,omitempty"`
	DecidedAt   time.Time `json:"decided_at"`
}

type RepayResult struct {
	Loan               *LoanDTO      `json:"loan"`
	Supplied           amount.Amount `json:"supplied"`
	CollateralReturned amount.Amount `json:"collateral_returned"`
}

type LiquidateResult struct {
	Loan               *LoanDTO      `json:"loan"`
	CollateralAbsorbed amount.Amount `json:"collateral_absorbed"`
}

type EventDTO struct {
	ID        string    `json:"id"`
	Kind      string    `json:"kind"`
	Payload   string    `json:"payload"`
	CreatedAt time.Time `json:"created_at"`
}

type PayoutDTO struct {
	PayoutID  string        `json:"payout_id"`
	Amount    amount.Amount `json:"amount"`
	Purpose   string        `json:"purpose"`
	LoanID    string        `json:"loan_id"`
	CreatedAt time.Time     `json:"created_at"`
}

// ActivityDTO is an account's notification and transfer history.
type ActivityDTO struct {
	AccountID string      `json:"account_id"`
	Events    []EventDTO  `json:"events"`
	Payouts   []PayoutDTO `json:"payouts"`
}
