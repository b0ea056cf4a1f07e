package quote

import (
	"fmt"

	"near-intents/pkg/tokenvalue"
)

// AmountMismatchError is returned when the listed balances cannot cover the
// requested amount. Callers should refresh balances and try again.
type AmountMismatchError struct {
	Requested tokenvalue.TokenValue
	// Remaining is the part that no token could cover, in Requested's precision
	Remaining tokenvalue.TokenValue
}

func (e *AmountMismatchError) Error() string {
	return fmt.Sprintf("insufficient balance: requested %s, %s could not be covered",
		e.Requested.Format(), e.Remaining.Format())
}

// Kind classifies a quote failure
type Kind string

const (
	KindNoQuotes           Kind = "NO_QUOTES"
	KindInsufficientAmount Kind = "INSUFFICIENT_AMOUNT"
)

// Error means the market returned nothing usable for at least one leg of the
// request. It is shown as "no route" and never retried automatically.
type Error struct {
	Kind Kind
	// MinAmount is the smallest accepted input, set for KindInsufficientAmount
	MinAmount string
}

func (e *Error) Error() string {
	if e.MinAmount != "" {
		return fmt.Sprintf("quote failed: %s (min amount %s)", e.Kind, e.MinAmount)
	}
	return fmt.Sprintf("quote failed: %s", e.Kind)
}
