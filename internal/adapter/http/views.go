package http

import (
	"encoding/json"
	"time"

	"zkloan/internal/usecase/loan"
	"zkloan/internal/usecase/pool"
	"zkloan/pkg/amount"
)

// Response bodies carry amounts in asset units, rendered with the configured
// decimals. Usecase DTOs stay in base units.

type units int32

func (d units) str(a amount.Amount) string { return a.Decimal(int32(d)).String() }

type loanView struct {
	LoanID            string     `json:"loan_id"`
	BorrowerID        string     `json:"borrower_id"`
	Principal         string     `json:"principal"`
	Collateral        string     `json:"collateral"`
	CollateralRatio   uint64     `json:"collateral_ratio"`
	CreditScore       uint64     `json:"credit_score"`
	ProofFingerprint  string     `json:"proof_fingerprint"`
	State             string     `json:"state"`
	RepaymentDeadline time.Time  `json:"repayment_deadline"`
	ClosedAt          *time.Time `json:"closed_at,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
}

func (d units) loan(l *loan.LoanDTO) *loanView {
	if l == nil {
		return nil
	}
	return &loanView{
		LoanID:            l.LoanID,
		BorrowerID:        l.BorrowerID,
		Principal:         d.str(l.Principal),
		Collateral:        d.str(l.Collateral),
		CollateralRatio:   l.CollateralRatio,
		CreditScore:       l.CreditScore,
		ProofFingerprint:  l.ProofFingerprint,
		State:             l.State,
		RepaymentDeadline: l.RepaymentDeadline,
		ClosedAt:          l.ClosedAt,
		CreatedAt:         l.CreatedAt,
	}
}

type decisionView struct {
	Approved        bool      `json:"approved"`
	Reason          string    `json:"reason,omitempty"`
	Fingerprint     string    `json:"fingerprint"`
	CollateralRatio uint64    `json:"collateral_ratio,omitempty"`
	Loan            *loanView `json:"loan,omitempty"`
	DecidedAt       time.Time `json:"decided_at"`
}

func (d units) decision(x *loan.Decision) decisionView {
	return decisionView{
		Approved:        x.Approved,
		Reason:          string(x.Reason),
		Fingerprint:     x.Fingerprint,
		CollateralRatio: x.Ratio,
		Loan:            d.loan(x.Loan),
		DecidedAt:       x.DecidedAt,
	}
}

type repayView struct {
	Loan               *loanView `json:"loan"`
	Supplied           string    `json:"supplied"`
	CollateralReturned string    `json:"collateral_returned"`
}

type liquidateView struct {
	Loan               *loanView `json:"loan"`
	CollateralAbsorbed string    `json:"collateral_absorbed"`
}

type poolView struct {
	TotalValueLocked string    `json:"total_value_locked"`
	Liquidity        string    `json:"liquidity"`
	Locked           string    `json:"locked"`
	UpdatedAt        time.Time `json:"updated_at"`
}

func (d units) pool(s *pool.StatsDTO) poolView {
	return poolView{
		TotalValueLocked: d.str(s.TotalValueLocked),
		Liquidity:        d.str(s.Liquidity),
		Locked:           d.str(s.Locked),
		UpdatedAt:        s.UpdatedAt,
	}
}

type policyView struct {
	LoanDuration       string `json:"loan_duration"`
	LoanDurationSecs   int64  `json:"loan_duration_seconds"`
	MinSecurityDeposit string `json:"min_security_deposit"`
	AssetDecimals      int32  `json:"asset_decimals"`
}

type eventView struct {
	ID        string          `json:"id"`
	Kind      string          `json:"kind"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
}

type payoutView struct {
	PayoutID  string    `json:"payout_id"`
	Amount    string    `json:"amount"`
	Purpose   string    `json:"purpose"`
	LoanID    string    `json:"loan_id"`
	CreatedAt time.Time `json:"created_at"`
}

type activityView struct {
	AccountID string       `json:"account_id"`
	Events    []eventView  `json:"events"`
	Payouts   []payoutView `json:"payouts"`
}

// activity keeps event payloads as stored, so amounts inside them are
// base-unit strings.
func (d units) activity(a *loan.ActivityDTO) activityView {
	out := activityView{AccountID: a.AccountID, Events: []eventView{}, Payouts: []payoutView{}}
	for _, e := range a.Events {
		out.Events = append(out.Events, eventView{ID: e.ID, Kind: e.Kind, Payload: json.RawMessage(e.Payload), CreatedAt: e.CreatedAt})
	}
	for _, p := range a.Payouts {
		out.Payouts = append(out.Payouts, payoutView{PayoutID: p.PayoutID, Amount: d.str(p.Amount), Purpose: p.Purpose, LoanID: p.LoanID, CreatedAt: p.CreatedAt})
	}
	return out
}
