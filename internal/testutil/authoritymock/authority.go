// Package authoritymock holds function-backed doubles for the verification
// capabilities. Unset funcs pass, so a test only stubs the stage it exercises.
package authoritymock

import (
	"context"
	"sync/atomic"

	"zkloan/internal/domain/verification"

	"github.com/holiman/uint256"
)

var (
	_ verification.ProofVerifier       = (*Verifier)(nil)
	_ verification.ModelAuthority      = (*Models)(nil)
	_ verification.ConstraintAuthority = (*Constraints)(nil)
)

type Verifier struct {
	VerifyFn func(ctx context.Context, artifact []byte, signals []string) (bool, error)
	Calls    atomic.Int32
}

func (m *Verifier) Verify(ctx context.Context, artifact []byte, signals []string) (bool, error) {
	m.Calls.Add(1)
	if m.VerifyFn != nil {
		return m.VerifyFn(ctx, artifact, signals)
	}
	return true, nil
}

type Models struct {
	IsCommittedFn func(ctx context.Context, fp *uint256.Int) (bool, error)
	Calls         atomic.Int32
}

func (m *Models) IsCommitted(ctx context.Context, fp *uint256.Int) (bool, error) {
	m.Calls.Add(1)
	if m.IsCommittedFn != nil {
		return m.IsCommittedFn(ctx, fp)
	}
	return true, nil
}

// Constraints defaults to eligible with Ratio (150 when zero).
type Constraints struct {
	CheckEligibilityFn func(ctx context.Context, income, debtRatio *uint256.Int, score uint64) (bool, error)
	RatioFn            func(ctx context.Context, score uint64) (uint64, error)
	Ratio              uint64
	Calls              atomic.Int32
}

func (m *Constraints) CheckEligibility(ctx context.Context, income, debtRatio *uint256.Int, score uint64) (bool, error) {
	m.Calls.Add(1)
	if m.CheckEligibilityFn != nil {
		return m.CheckEligibilityFn(ctx, income, debtRatio, score)
	}
	return true, nil
}

func (m *Constraints) RequiredCollateralRatio(ctx context.Context, score uint64) (uint64, error) {
	if m.RatioFn != nil {
		return m.RatioFn(ctx, score)
	}
	if m.Ratio == 0 {
		return 150, nil
	}
	return m.Ratio, nil
}
