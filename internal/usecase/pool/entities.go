package pool

import (
	"time"

	"zkloan/pkg/amount"
)

type DepositInput struct {
	DepositorID string
	Amount      amount.Amount
}

type StatsDTO struct {
	TotalValueLocked amount.Amount `json:"total_value_locked"`
	Liquidity        amount.Amount `json:"liquidity"`
	// Locked is the collateral backing active loans.
	Locked    amount.Amount `json:"locked"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// PolicyDTO lists the constants external consumers gate on.
type PolicyDTO struct {
	LoanDuration       string        `json:"loan_duration"`
	LoanDurationSecs   int64         `json:"loan_duration_seconds"`
	MinSecurityDeposit amount.Amount `json:"min_security_deposit"`
	AssetDecimals      int32         `json:"asset_decimals"`
}
