// Package tokenvalue implements integer token amounts tagged with their decimal
// precision. Two values can only be compared or combined after rescaling to a
// common precision; scaling down truncates and is the only lossy operation.
package tokenvalue

import (
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
)

// TokenValue is an integer amount expressed in units of 10^-Decimals
type TokenValue struct {
	Amount   *big.Int `json:"amount"`
	Decimals int      `json:"decimals"`
}

// New copies amount into a TokenValue. A nil amount is treated as zero.
func New(amount *big.Int, decimals int) TokenValue {
	mustDecimals(decimals)
	v := new(big.Int)
	if amount != nil {
		v.Set(amount)
	}
	return TokenValue{Amount: v, Decimals: decimals}
}

// FromInt64 is a convenience constructor for tests and constants
func FromInt64(amount int64, decimals int) TokenValue {
	return New(big.NewInt(amount), decimals)
}

// Zero returns a zero value with the given precision
func Zero(decimals int) TokenValue {
	return New(nil, decimals)
}

// Parse converts a human readable amount such as "1.5" into a TokenValue with
// the given precision. Amounts with more fractional digits than decimals are rejected.
func Parse(s string, decimals int) (TokenValue, error) {
	mustDecimals(decimals)
	d, err := decimal.NewFromString(s)
	if err != nil {
		return TokenValue{}, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	shifted := d.Shift(int32(decimals))
	if !shifted.IsInteger() {
		return TokenValue{}, fmt.Errorf("amount %q has more than %d decimal places", s, decimals)
	}
	return TokenValue{Amount: shifted.BigInt(), Decimals: decimals}, nil
}

// AdjustDecimals rescales a raw amount from one precision to another.
// Scaling up multiplies by 10^Δ, scaling down divides and truncates toward zero.
func AdjustDecimals(amount *big.Int, from, to int) *big.Int {
	mustDecimals(from)
	mustDecimals(to)
	out := new(big.Int)
	if amount == nil {
		return out
	}
	switch {
	case to > from:
		return out.Mul(amount, pow10(to-from))
	case to < from:
		return out.Quo(amount, pow10(from-to))
	default:
		return out.Set(amount)
	}
}

// Rescale returns v expressed with the given precision
func (v TokenValue) Rescale(decimals int) TokenValue {
	return TokenValue{Amount: AdjustDecimals(v.Amount, v.Decimals, decimals), Decimals: decimals}
}

// IsZero reports whether the amount is zero
func (v TokenValue) IsZero() bool {
	return v.Amount == nil || v.Amount.Sign() == 0
}

// Sign returns -1, 0 or +1
func (v TokenValue) Sign() int {
	if v.Amount == nil {
		return 0
	}
	return v.Amount.Sign()
}

// Cmp compares a and b at the higher of the two precisions, so no rounding happens
func Cmp(a, b TokenValue) int {
	d := common(a, b)
	return a.Rescale(d).Amount.Cmp(b.Rescale(d).Amount)
}

// Add returns a+b at the higher of the two precisions
func Add(a, b TokenValue) TokenValue {
	d := common(a, b)
	return TokenValue{Amount: new(big.Int).Add(a.Rescale(d).Amount, b.Rescale(d).Amount), Decimals: d}
}

// Sub returns a-b at the higher of the two precisions
func Sub(a, b TokenValue) TokenValue {
	d := common(a, b)
	return TokenValue{Amount: new(big.Int).Sub(a.Rescale(d).Amount, b.Rescale(d).Amount), Decimals: d}
}

// Min returns the smaller of a and b, keeping its own precision
func Min(a, b TokenValue) TokenValue {
	if Cmp(a, b) <= 0 {
		return a
	}
	return b
}

// MinInt returns the smaller of two raw integers
func MinInt(a, b *big.Int) *big.Int {
	if a.Cmp(b) <= 0 {
		return new(big.Int).Set(a)
	}
	return new(big.Int).Set(b)
}

// Format renders the value in whole-token units, e.g. 1500000 with 6 decimals is "1.5"
func (v TokenValue) Format() string {
	if v.Amount == nil {
		return "0"
	}
	return decimal.NewFromBigInt(v.Amount, -int32(v.Decimals)).String()
}

func (v TokenValue) String() string {
	return fmt.Sprintf("%s (%d dp)", v.Format(), v.Decimals)
}

func common(a, b TokenValue) int {
	if a.Decimals > b.Decimals {
		return a.Decimals
	}
	return b.Decimals
}

func pow10(n int) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(n)), nil)
}

func mustDecimals(d int) {
	if d < 0 {
		panic(fmt.Sprintf("tokenvalue: negative decimals %d", d))
	}
}
