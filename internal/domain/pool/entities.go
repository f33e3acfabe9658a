package pool

import (
	"errors"
	"fmt"
	"time"

	"zkloan/pkg/amount"
)

// SingletonID is the primary key of the only pool row.
const SingletonID uint64 = 1

var (
	ErrZeroDeposit           = errors.New("deposit amount must be greater than zero")
	ErrInsufficientLiquidity = errors.New("requested amount exceeds pool liquidity")
	ErrInvariantViolated     = errors.New("pool liquidity exceeds total value locked")
)

// State holds the aggregate pool counters. TotalValueLocked counts every asset
// the pool holds; Liquidity is the part of it available for new loans, so
// TotalValueLocked - Liquidity is the collateral backing active loans.
//
// Every mutator is all-or-nothing: on error the receiver is left unchanged.
type State struct {
	ID               uint64        `gorm:"primaryKey;column:id"`
	TotalValueLocked amount.Amount `gorm:"type:varchar(80);not null;column:total_value_locked"`
	Liquidity        amount.Amount `gorm:"type:varchar(80);not null;column:liquidity"`
	UpdatedAt        time.Time     `gorm:"autoUpdateTime;column:updated_at"`
}

func (State) TableName() string { return "pool_state" }

func (s *State) apply(tvl, liq amount.Amount) error {
	if liq.Gt(tvl) {
		return fmt.Errorf("liquidity %s > tvl %s: %w", liq, tvl, ErrInvariantViolated)
	}
	s.TotalValueLocked, s.Liquidity = tvl, liq
	return nil
}

// Deposit credits an inflow to both counters. Used for LP deposits and for
// unsolicited receipts.
func (s *State) Deposit(a amount.Amount) error {
	tvl, err := s.TotalValueLocked.Add(a)
	if err != nil {
		return err
	}
	liq, err := s.Liquidity.Add(a)
	if err != nil {
		return err
	}
	return s.apply(tvl, liq)
}

// CanDisburse reports whether principal fits in the available liquidity.
func (s *State) CanDisburse(principal amount.Amount) bool {
	return !principal.Gt(s.Liquidity)
}

// Disburse books a new loan: collateral comes in, principal goes out to the
// borrower and leaves the spendable liquidity.
func (s *State) Disburse(principal, collateral amount.Amount) error {
	liq, err := s.Liquidity.Sub(principal)
	if err != nil {
		return fmt.Errorf("disburse: %w", err)
	}
	tvl, err := s.TotalValueLocked.Add(collateral)
	if err != nil {
		return fmt.Errorf("disburse: %w", err)
	}
	if tvl, err = tvl.Sub(principal); err != nil {
		return fmt.Errorf("disburse: %w", err)
	}
	return s.apply(tvl, liq)
}

// SettleRepayment books a repayment: the supplied funds become liquidity and
// the loan's collateral leaves the pool back to the borrower.
func (s *State) SettleRepayment(supplied, collateral amount.Amount) error {
	liq, err := s.Liquidity.Add(supplied)
	if err != nil {
		return fmt.Errorf("repay: %w", err)
	}
	tvl, err := s.TotalValueLocked.Add(supplied)
	if err != nil {
		return fmt.Errorf("repay: %w", err)
	}
	if tvl, err = tvl.Sub(collateral); err != nil {
		return fmt.Errorf("repay: %w", err)
	}
	return s.apply(tvl, liq)
}

// Absorb moves forfeited collateral into liquidity. The collateral is already
// part of TotalValueLocked.
func (s *State) Absorb(collateral amount.Amount) error {
	liq, err := s.Liquidity.Add(collateral)
	if err != nil {
		return fmt.Errorf("absorb: %w", err)
	}
	return s.apply(s.TotalValueLocked, liq)
}
