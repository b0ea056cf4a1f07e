package quote

import (
	"math/big"
	"time"

	"near-intents/pkg/relay"
)

// AggregatedQuote combines the best quote of every leg of a split request.
// It is only valid until ExpirationTime, the earliest expiry among its parts.
type AggregatedQuote struct {
	QuoteHashes    []string            `json:"quote_hashes"`
	ExpirationTime time.Time           `json:"expiration_time"`
	TotalAmountIn  *big.Int            `json:"total_amount_in"`
	TotalAmountOut *big.Int            `json:"total_amount_out"`
	AmountsIn      map[string]*big.Int `json:"amounts_in"`
	AmountsOut     map[string]*big.Int `json:"amounts_out"`
}

// IsEmpty reports whether no leg produced a usable quote
func (q AggregatedQuote) IsEmpty() bool {
	return len(q.QuoteHashes) == 0
}

// Expired reports whether the quote is no longer valid at now
func (q AggregatedQuote) Expired(now time.Time) bool {
	return !now.Before(q.ExpirationTime)
}

type selected struct {
	quote relay.Quote
	in    *big.Int
	out   *big.Int
}

// AggregateQuotes picks the highest amount_out quote of every result, first seen
// winning ties, and sums them. When any result is empty or a failure the partial
// aggregate is returned together with an *Error, and callers must not use it.
func AggregateQuotes(results []relay.QuoteResult) (AggregatedQuote, error) {
	agg := AggregatedQuote{
		QuoteHashes:    []string{},
		TotalAmountIn:  new(big.Int),
		TotalAmountOut: new(big.Int),
		AmountsIn:      make(map[string]*big.Int),
		AmountsOut:     make(map[string]*big.Int),
	}

	var failure *Error
	fail := func(e *Error) {
		// INSUFFICIENT_AMOUNT tells the user what to change, so it wins
		if failure == nil || (e.Kind == KindInsufficientAmount && failure.Kind != KindInsufficientAmount) {
			failure = e
		}
	}

	for _, res := range results {
		switch r := res.(type) {
		case relay.QuoteFailure:
			fail(&Error{Kind: Kind(r.Type), MinAmount: r.MinAmount})
		case relay.QuoteList:
			best, ok := bestQuote(r)
			if !ok {
				fail(&Error{Kind: KindNoQuotes})
				continue
			}
			agg.add(best)
		default:
			fail(&Error{Kind: KindNoQuotes})
		}
	}

	if failure == nil && agg.IsEmpty() {
		failure = &Error{Kind: KindNoQuotes}
	}
	if failure != nil {
		return agg, failure
	}
	return agg, nil
}

func (q *AggregatedQuote) add(s selected) {
	q.QuoteHashes = append(q.QuoteHashes, s.quote.QuoteHash)
	if q.ExpirationTime.IsZero() || s.quote.ExpirationTime.Before(q.ExpirationTime) {
		q.ExpirationTime = s.quote.ExpirationTime
	}
	q.TotalAmountIn.Add(q.TotalAmountIn, s.in)
	q.TotalAmountOut.Add(q.TotalAmountOut, s.out)
	addTo(q.AmountsIn, s.quote.AssetIn, s.in)
	addTo(q.AmountsOut, s.quote.AssetOut, s.out)
}

func bestQuote(list relay.QuoteList) (selected, bool) {
	var best selected
	found := false
	for _, q := range list {
		in, okIn := q.AmountInInt()
		out, okOut := q.AmountOutInt()
		if !okIn || !okOut {
			continue
		}
		if !found || out.Cmp(best.out) > 0 {
			best = selected{quote: q, in: in, out: out}
			found = true
		}
	}
	return best, found
}

func addTo(m map[string]*big.Int, key string, v *big.Int) {
	if cur, ok := m[key]; ok {
		cur.Add(cur, v)
		return
	}
	m[key] = new(big.Int).Set(v)
}
