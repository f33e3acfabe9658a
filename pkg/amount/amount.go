package amount

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"
)

var (
	ErrOverflow  = errors.New("amount overflow")
	ErrUnderflow = errors.New("amount underflow")
	ErrDivByZero = errors.New("amount division by zero")
	ErrNegative  = errors.New("amount must not be negative")
	ErrPrecision = errors.New("amount has more decimals than the asset supports")
)

// Amount is an unsigned 256-bit quantity in base units. The zero value is 0.
// Values are immutable: every operation returns a new Amount.
type Amount struct{ v uint256.Int }

func Zero() Amount { return Amount{} }

func New(n uint64) Amount {
	var a Amount
	a.v.SetUint64(n)
	return a
}

// Parse reads a base-unit integer in decimal or 0x-hex form.
func Parse(s string) (Amount, error) {
	var a Amount
	if err := a.v.SetFromDecimal(s); err == nil {
		return a, nil
	}
	if err := a.v.SetFromHex(s); err != nil {
		return Amount{}, fmt.Errorf("parse amount %q: %w", s, err)
	}
	return a, nil
}

func MustParse(s string) Amount {
	a, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return a
}

func (a Amount) IsZero() bool          { return a.v.IsZero() }
func (a Amount) Cmp(b Amount) int      { return a.v.Cmp(&b.v) }
func (a Amount) Lt(b Amount) bool      { return a.v.Lt(&b.v) }
func (a Amount) Gt(b Amount) bool      { return a.v.Gt(&b.v) }
func (a Amount) Eq(b Amount) bool      { return a.v.Eq(&b.v) }
func (a Amount) String() string        { return a.v.Dec() }
func (a Amount) Uint256() *uint256.Int { return new(uint256.Int).Set(&a.v) }

func (a Amount) Add(b Amount) (Amount, error) {
	var out Amount
	if _, overflow := out.v.AddOverflow(&a.v, &b.v); overflow {
		return Amount{}, fmt.Errorf("%s + %s: %w", a, b, ErrOverflow)
	}
	return out, nil
}

func (a Amount) Sub(b Amount) (Amount, error) {
	var out Amount
	if _, underflow := out.v.SubOverflow(&a.v, &b.v); underflow {
		return Amount{}, fmt.Errorf("%s - %s: %w", a, b, ErrUnderflow)
	}
	return out, nil
}

// MulDiv returns a*num/den truncated toward zero. The intermediate product is
// computed at 512-bit width, so only a final result above 2^256-1 overflows.
func (a Amount) MulDiv(num, den uint64) (Amount, error) {
	if den == 0 {
		return Amount{}, ErrDivByZero
	}
	var out Amount
	n, d := uint256.NewInt(num), uint256.NewInt(den)
	if _, overflow := out.v.MulDivOverflow(&a.v, n, d); overflow {
		return Amount{}, fmt.Errorf("%s * %d / %d: %w", a, num, den, ErrOverflow)
	}
	return out, nil
}

// FromDecimal converts an asset-unit decimal string ("2.4") into base units
// for an asset with the given number of decimals.
func FromDecimal(s string, decimals int32) (Amount, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Amount{}, fmt.Errorf("parse decimal %q: %w", s, err)
	}
	if d.IsNegative() {
		return Amount{}, ErrNegative
	}
	scaled := d.Shift(decimals)
	if !scaled.Equal(scaled.Truncate(0)) {
		return Amount{}, fmt.Errorf("%q with %d decimals: %w", s, decimals, ErrPrecision)
	}
	var a Amount
	if overflow := a.v.SetFromBig(scaled.BigInt()); overflow {
		return Amount{}, fmt.Errorf("%q: %w", s, ErrOverflow)
	}
	return a, nil
}

// Decimal renders the amount in asset units.
func (a Amount) Decimal(decimals int32) decimal.Decimal {
	return decimal.NewFromBigInt(a.v.ToBig(), -decimals)
}

// Value stores amounts as base-10 strings so no driver loses precision.
func (a Amount) Value() (driver.Value, error) { return a.v.Dec(), nil }

func (a *Amount) Scan(src any) error {
	var s string
	switch v := src.(type) {
	case nil:
		a.v.Clear()
		return nil
	case string:
		s = v
	case []byte:
		s = string(v)
	case int64:
		if v < 0 {
			return ErrNegative
		}
		a.v.SetUint64(uint64(v))
		return nil
	default:
		return fmt.Errorf("amount: unsupported scan type %T", src)
	}
	if s == "" {
		a.v.Clear()
		return nil
	}
	return a.v.SetFromDecimal(s)
}

func (a Amount) MarshalJSON() ([]byte, error) { return json.Marshal(a.v.Dec()) }

func (a *Amount) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	p, err := Parse(s)
	if err != nil {
		return err
	}
	*a = p
	return nil
}
