package pool

import (
	"errors"
	"math/rand"
	"testing"

	"zkloan/pkg/amount"
)

func amt(n uint64) amount.Amount { return amount.New(n) }

func assertState(t *testing.T, s *State, tvl, liq uint64) {
	t.Helper()
	if s.TotalValueLocked.String() != amt(tvl).String() || s.Liquidity.String() != amt(liq).String() {
		t.Fatalf("state = (tvl %s, liq %s), want (tvl %d, liq %d)", s.TotalValueLocked, s.Liquidity, tvl, liq)
	}
}

func TestState_LoanRepaidScenario(t *testing.T) {
	// one decimal place: 10 units = 100 base units
	s := &State{}
	if err := s.Deposit(amt(100)); err != nil {
		t.Fatalf("Deposit: %v", err)
	}
	assertState(t, s, 100, 100)

	if !s.CanDisburse(amt(20)) {
		t.Fatalf("20 should fit in 100 liquidity")
	}
	if err := s.Disburse(amt(20), amt(24)); err != nil {
		t.Fatalf("Disburse: %v", err)
	}
	assertState(t, s, 104, 80)

	if err := s.SettleRepayment(amt(20), amt(24)); err != nil {
		t.Fatalf("SettleRepayment: %v", err)
	}
	assertState(t, s, 100, 100)
}

func TestState_LiquidationScenario(t *testing.T) {
	s := &State{}
	_ = s.Deposit(amt(100))
	_ = s.Disburse(amt(20), amt(24))

	if err := s.Absorb(amt(24)); err != nil {
		t.Fatalf("Absorb: %v", err)
	}
	assertState(t, s, 104, 104)
}

func TestState_OverpaymentRetained(t *testing.T) {
	s := &State{}
	_ = s.Deposit(amt(100))
	_ = s.Disburse(amt(20), amt(24))

	if err := s.SettleRepayment(amt(30), amt(24)); err != nil {
		t.Fatalf("SettleRepayment: %v", err)
	}
	assertState(t, s, 110, 110)
}

func TestState_Disburse_UnderflowLeavesStateUntouched(t *testing.T) {
	s := &State{}
	_ = s.Deposit(amt(10))

	if s.CanDisburse(amt(11)) {
		t.Fatalf("11 must not fit in 10 liquidity")
	}
	if err := s.Disburse(amt(11), amt(20)); !errors.Is(err, amount.ErrUnderflow) {
		t.Fatalf("want ErrUnderflow, got %v", err)
	}
	assertState(t, s, 10, 10)
}

func TestState_SettleRepayment_CollateralNotInPool(t *testing.T) {
	s := &State{}
	_ = s.Deposit(amt(10))

	// liquidity would exceed tvl: collateral that was never booked
	err := s.SettleRepayment(amt(1), amt(5))
	if !errors.Is(err, ErrInvariantViolated) {
		t.Fatalf("want ErrInvariantViolated, got %v", err)
	}
	assertState(t, s, 10, 10)
}

func TestState_Absorb_WithoutCollateral(t *testing.T) {
	s := &State{}
	_ = s.Deposit(amt(10))

	if err := s.Absorb(amt(1)); !errors.Is(err, ErrInvariantViolated) {
		t.Fatalf("want ErrInvariantViolated, got %v", err)
	}
	assertState(t, s, 10, 10)
}

func TestState_Deposit_Overflow(t *testing.T) {
	max := amount.MustParse("0xffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffff")
	s := &State{}
	if err := s.Deposit(max); err != nil {
		t.Fatalf("Deposit max: %v", err)
	}
	if err := s.Deposit(amt(1)); !errors.Is(err, amount.ErrOverflow) {
		t.Fatalf("want ErrOverflow, got %v", err)
	}
	if !s.TotalValueLocked.Eq(max) || !s.Liquidity.Eq(max) {
		t.Fatalf("state changed on failed deposit: %+v", s)
	}
}

// Random operation sequences never break liquidity <= tvl, and tvl - liquidity
// always equals the collateral of the loans still open.
func TestState_RandomSequencesKeepInvariant(t *testing.T) {
	type open struct{ principal, collateral uint64 }
	rng := rand.New(rand.NewSource(42))

	for run := 0; run < 50; run++ {
		s := &State{}
		var loans []open
		var locked uint64

		for step := 0; step < 200; step++ {
			switch rng.Intn(4) {
			case 0:
				_ = s.Deposit(amt(uint64(rng.Intn(1000) + 1)))
			case 1:
				p := uint64(rng.Intn(500) + 1)
				c := p * uint64(100+rng.Intn(100)) / 100
				if !s.CanDisburse(amt(p)) {
					continue
				}
				if err := s.Disburse(amt(p), amt(c)); err != nil {
					t.Fatalf("run %d step %d: Disburse: %v", run, step, err)
				}
				loans = append(loans, open{p, c})
				locked += c
			case 2, 3:
				if len(loans) == 0 {
					continue
				}
				i := rng.Intn(len(loans))
				l := loans[i]
				loans = append(loans[:i], loans[i+1:]...)
				locked -= l.collateral
				var err error
				if rng.Intn(2) == 0 {
					err = s.SettleRepayment(amt(l.principal+uint64(rng.Intn(3))), amt(l.collateral))
				} else {
					err = s.Absorb(amt(l.collateral))
				}
				if err != nil {
					t.Fatalf("run %d step %d: close: %v", run, step, err)
				}
			}

			if s.Liquidity.Gt(s.TotalValueLocked) {
				t.Fatalf("run %d step %d: liquidity %s > tvl %s", run, step, s.Liquidity, s.TotalValueLocked)
			}
			gap, err := s.TotalValueLocked.Sub(s.Liquidity)
			if err != nil {
				t.Fatalf("run %d step %d: %v", run, step, err)
			}
			if gap.String() != amt(locked).String() {
				t.Fatalf("run %d step %d: tvl-liquidity = %s, open collateral = %d", run, step, gap, locked)
			}
		}
	}
}
