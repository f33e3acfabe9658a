// Package verification declares the capabilities the loan pipeline delegates
// to: proof checking, model commitment lookup and credit policy.
package verification

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"regexp"

	"github.com/holiman/uint256"
)

// Positions of the required public signals.
const (
	SignalIncome = iota
	SignalDebtRatio
	SignalModelFingerprint

	RequiredSignals
)

var ErrBadSignal = errors.New("public signal is not a field element")

type ProofVerifier interface {
	Verify(ctx context.Context, artifact []byte, signals []string) (bool, error)
}

type ModelAuthority interface {
	IsCommitted(ctx context.Context, fingerprint *uint256.Int) (bool, error)
}

type ConstraintAuthority interface {
	CheckEligibility(ctx context.Context, income, debtRatio *uint256.Int, creditScore uint64) (bool, error)
	// RequiredCollateralRatio returns a percentage, e.g. 150 for 150%.
	RequiredCollateralRatio(ctx context.Context, creditScore uint64) (uint64, error)
}

var (
	reDecimal = regexp.MustCompile(`^[0-9]+$`)
	reHex     = regexp.MustCompile(`^0[xX][0-9a-fA-F]+$`)
)

// ParseSignal reads a public signal written as plain decimal digits or as
// 0x-prefixed hex. Leading zeros are decimal, never octal, and no other
// prefix or digit separator is accepted.
func ParseSignal(s string) (*uint256.Int, error) {
	var (
		b  *big.Int
		ok bool
	)
	switch {
	case reDecimal.MatchString(s):
		b, ok = new(big.Int).SetString(s, 10)
	case reHex.MatchString(s):
		b, ok = new(big.Int).SetString(s[2:], 16)
	}
	if !ok {
		return nil, fmt.Errorf("%q: %w", s, ErrBadSignal)
	}
	v, overflow := uint256.FromBig(b)
	if overflow {
		return nil, fmt.Errorf("%q: %w", s, ErrBadSignal)
	}
	return v, nil
}

// ParseSignals parses every signal in order.
func ParseSignals(signals []string) ([]*uint256.Int, error) {
	out := make([]*uint256.Int, len(signals))
	for i, s := range signals {
		v, err := ParseSignal(s)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}
