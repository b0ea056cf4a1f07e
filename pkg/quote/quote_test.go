package quote

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"testing"
	"time"

	"near-intents/config"
	"near-intents/pkg/balance"
	"near-intents/pkg/relay"
	"near-intents/pkg/tokens"
	"near-intents/pkg/tokenvalue"
)

var (
	token1 = tokens.BaseToken{DefuseAssetID: "nep141:token1.near", Symbol: "T1", Decimals: 6, ChainName: "near"}
	token2 = tokens.BaseToken{DefuseAssetID: "nep141:token2.near", Symbol: "T2", Decimals: 8, ChainName: "near"}
	token3 = tokens.BaseToken{DefuseAssetID: "nep141:token3.near", Symbol: "T3", Decimals: 18, ChainName: "near"}
	out    = tokens.BaseToken{DefuseAssetID: "nep141:wrap.near", Symbol: "wNEAR", Decimals: 24, ChainName: "near"}
)

func units(s string) *big.Int {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		panic("bad number " + s)
	}
	return v
}

func hundredEach() balance.Mapping {
	return balance.Mapping{
		token1.DefuseAssetID: units("100000000"),
		token2.DefuseAssetID: units("10000000000"),
		token3.DefuseAssetID: units("100000000000000000000"),
	}
}

func TestCalculateSplitAmounts(t *testing.T) {
	tests := []struct {
		name     string
		tokensIn []tokens.BaseToken
		amount   tokenvalue.TokenValue
		balances balance.Mapping
		want     map[string]string
		mismatch bool
	}{
		{
			name:     "uses first token then part of second",
			tokensIn: []tokens.BaseToken{token1, token2, token3},
			amount:   tokenvalue.FromInt64(150_000000, 6),
			balances: hundredEach(),
			want: map[string]string{
				token1.DefuseAssetID: "100000000",
				token2.DefuseAssetID: "5000000000",
			},
		},
		{
			name:     "duplicates charged once",
			tokensIn: []tokens.BaseToken{token1, token1, token2},
			amount:   tokenvalue.FromInt64(150_000000, 6),
			balances: hundredEach(),
			want: map[string]string{
				token1.DefuseAssetID: "100000000",
				token2.DefuseAssetID: "5000000000",
			},
		},
		{
			name:     "order matters",
			tokensIn: []tokens.BaseToken{token2, token1},
			amount:   tokenvalue.FromInt64(50_000000, 6),
			balances: hundredEach(),
			want: map[string]string{
				token2.DefuseAssetID: "5000000000",
			},
		},
		{
			name:     "insufficient balance",
			tokensIn: []tokens.BaseToken{token1},
			amount:   tokenvalue.FromInt64(150_000000, 6),
			balances: hundredEach(),
			mismatch: true,
		},
		{
			name:     "empty token list",
			amount:   tokenvalue.FromInt64(1, 6),
			balances: hundredEach(),
			mismatch: true,
		},
		{
			name:     "all zero balances",
			tokensIn: []tokens.BaseToken{token1, token2},
			amount:   tokenvalue.FromInt64(1, 6),
			balances: balance.Mapping{token1.DefuseAssetID: big.NewInt(0), token2.DefuseAssetID: big.NewInt(0)},
			mismatch: true,
		},
		{
			name:     "sub unit balance is skipped",
			tokensIn: []tokens.BaseToken{token3, token1},
			amount:   tokenvalue.FromInt64(1_000000, 6),
			balances: balance.Mapping{
				token3.DefuseAssetID: units("999999999999"),
				token1.DefuseAssetID: units("1000000"),
			},
			want: map[string]string{
				token1.DefuseAssetID: "1000000",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CalculateSplitAmounts(tt.tokensIn, tt.amount, tt.balances)
			if tt.mismatch {
				var me *AmountMismatchError
				if !errors.As(err, &me) {
					t.Fatalf("expected AmountMismatchError, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
			for id, want := range tt.want {
				if got[id] == nil || got[id].String() != want {
					t.Errorf("%s = %v, want %s", id, got[id], want)
				}
			}
		})
	}
}

func TestCalculateSplitAmountsCoversRequest(t *testing.T) {
	list := []tokens.BaseToken{token3, token2, token1}
	for _, amount := range []int64{1, 999_999, 100_000000, 250_000000, 300_000000} {
		req := tokenvalue.FromInt64(amount, 6)
		got, err := CalculateSplitAmounts(list, req, hundredEach())
		if err != nil {
			t.Fatalf("amount %d: %v", amount, err)
		}
		total := new(big.Int)
		for _, tok := range list {
			if v, ok := got[tok.DefuseAssetID]; ok {
				total.Add(total, tokenvalue.AdjustDecimals(v, tok.Decimals, 6))
			}
		}
		if total.Cmp(req.Amount) != 0 {
			t.Errorf("amount %d: split totals %s", amount, total)
		}
	}
}

func expiry(min int) time.Time {
	return time.Date(2030, 1, 1, 0, min, 0, 0, time.UTC)
}

func TestAggregateQuotesPicksBest(t *testing.T) {
	a := relay.Quote{QuoteHash: "a", AssetIn: token1.DefuseAssetID, AssetOut: out.DefuseAssetID, AmountIn: "100", AmountOut: "90", ExpirationTime: expiry(5)}
	b := relay.Quote{QuoteHash: "b", AssetIn: token1.DefuseAssetID, AssetOut: out.DefuseAssetID, AmountIn: "100", AmountOut: "95", ExpirationTime: expiry(7)}
	c := relay.Quote{QuoteHash: "c", AssetIn: token2.DefuseAssetID, AssetOut: out.DefuseAssetID, AmountIn: "50", AmountOut: "40", ExpirationTime: expiry(3)}

	for _, order := range [][]relay.Quote{{a, b}, {b, a}} {
		agg, err := AggregateQuotes([]relay.QuoteResult{relay.QuoteList(order), relay.QuoteList{c}})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if agg.QuoteHashes[0] != "b" || agg.QuoteHashes[1] != "c" {
			t.Errorf("hashes = %v", agg.QuoteHashes)
		}
		if agg.TotalAmountOut.Int64() != 135 || agg.TotalAmountIn.Int64() != 150 {
			t.Errorf("totals = %s / %s", agg.TotalAmountIn, agg.TotalAmountOut)
		}
		if !agg.ExpirationTime.Equal(expiry(3)) {
			t.Errorf("expiration = %v, want min", agg.ExpirationTime)
		}
		if agg.AmountsIn[token2.DefuseAssetID].Int64() != 50 || agg.AmountsOut[out.DefuseAssetID].Int64() != 135 {
			t.Errorf("amounts = %v / %v", agg.AmountsIn, agg.AmountsOut)
		}
	}
}

func TestAggregateQuotesTiesKeepFirst(t *testing.T) {
	a := relay.Quote{QuoteHash: "first", AmountIn: "1", AmountOut: "10", ExpirationTime: expiry(1)}
	b := relay.Quote{QuoteHash: "second", AmountIn: "1", AmountOut: "10", ExpirationTime: expiry(1)}
	agg, err := AggregateQuotes([]relay.QuoteResult{relay.QuoteList{a, b}})
	if err != nil {
		t.Fatal(err)
	}
	if agg.QuoteHashes[0] != "first" {
		t.Errorf("tie went to %s", agg.QuoteHashes[0])
	}
}

func TestAggregateQuotesSingletonIdempotent(t *testing.T) {
	q := relay.Quote{QuoteHash: "only", AssetIn: token1.DefuseAssetID, AssetOut: out.DefuseAssetID, AmountIn: "7", AmountOut: "3", ExpirationTime: expiry(2)}
	agg, err := AggregateQuotes([]relay.QuoteResult{relay.QuoteList{q}})
	if err != nil {
		t.Fatal(err)
	}
	again, err := AggregateQuotes([]relay.QuoteResult{relay.QuoteList{{
		QuoteHash:      agg.QuoteHashes[0],
		AssetIn:        token1.DefuseAssetID,
		AssetOut:       out.DefuseAssetID,
		AmountIn:       agg.TotalAmountIn.String(),
		AmountOut:      agg.TotalAmountOut.String(),
		ExpirationTime: agg.ExpirationTime,
	}}})
	if err != nil {
		t.Fatal(err)
	}
	if agg.TotalAmountIn.Cmp(again.TotalAmountIn) != 0 || agg.TotalAmountOut.Cmp(again.TotalAmountOut) != 0 ||
		!agg.ExpirationTime.Equal(again.ExpirationTime) || agg.QuoteHashes[0] != again.QuoteHashes[0] {
		t.Errorf("aggregate changed: %+v vs %+v", agg, again)
	}
	if agg.TotalAmountOut.Int64() != 3 || !agg.ExpirationTime.Equal(expiry(2)) {
		t.Errorf("singleton = %+v", agg)
	}
}

func TestAggregateQuotesFailures(t *testing.T) {
	good := relay.QuoteList{{QuoteHash: "g", AmountIn: "1", AmountOut: "1", ExpirationTime: expiry(1)}}

	tests := []struct {
		name    string
		results []relay.QuoteResult
		want    Kind
	}{
		{"no input", nil, KindNoQuotes},
		{"empty list", []relay.QuoteResult{good, relay.QuoteList{}}, KindNoQuotes},
		{"insufficient wins", []relay.QuoteResult{relay.QuoteList{}, relay.QuoteFailure{Type: relay.FailureInsufficientAmount, MinAmount: "500"}}, KindInsufficientAmount},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := AggregateQuotes(tt.results)
			var qe *Error
			if !errors.As(err, &qe) {
				t.Fatalf("expected *Error, got %v", err)
			}
			if qe.Kind != tt.want {
				t.Errorf("kind = %s, want %s", qe.Kind, tt.want)
			}
		})
	}
}

type fakeRelay struct {
	mu       sync.Mutex
	requests []relay.QuoteParams
	respond  func(relay.QuoteParams) (relay.QuoteResult, error)
}

func (f *fakeRelay) Quote(ctx context.Context, p relay.QuoteParams) (relay.QuoteResult, error) {
	f.mu.Lock()
	f.requests = append(f.requests, p)
	f.mu.Unlock()
	if f.respond != nil {
		return f.respond(p)
	}
	return relay.QuoteList{{
		QuoteHash:      "h-" + p.AssetIn,
		AssetIn:        p.AssetIn,
		AssetOut:       p.AssetOut,
		AmountIn:       p.ExactAmountIn,
		AmountOut:      p.ExactAmountIn,
		ExpirationTime: expiry(10),
	}}, nil
}

func testService(r Quoter) *Service {
	return NewService(r, config.RelayConfig{QuoteMinDeadline: time.Minute, QuoteTimeout: time.Second}, nil)
}

func TestQueryQuoteUnderfundedSingleRequest(t *testing.T) {
	r := &fakeRelay{}
	agg, err := testService(r).QueryQuote(context.Background(), Request{
		TokensIn: []tokens.BaseToken{token1},
		TokenOut: out,
		AmountIn: tokenvalue.FromInt64(150_000000, 6),
		Balances: balance.Mapping{token1.DefuseAssetID: units("100000000")},
	})
	if err != nil {
		t.Fatalf("QueryQuote: %v", err)
	}
	if len(r.requests) != 1 {
		t.Fatalf("requests = %d, want 1", len(r.requests))
	}
	p := r.requests[0]
	if p.AssetIn != token1.DefuseAssetID || p.ExactAmountIn != "150000000" || p.MinDeadlineMs != 60000 {
		t.Errorf("request = %+v", p)
	}
	if agg.TotalAmountIn.String() != "150000000" || agg.TotalAmountOut.String() != "150000000" {
		t.Errorf("aggregate = %+v", agg)
	}
}

func TestQueryQuoteSplitsInParallel(t *testing.T) {
	r := &fakeRelay{}
	agg, err := testService(r).QueryQuote(context.Background(), Request{
		TokensIn: []tokens.BaseToken{token1, token2, token3},
		TokenOut: out,
		AmountIn: tokenvalue.FromInt64(150_000000, 6),
		Balances: hundredEach(),
	})
	if err != nil {
		t.Fatalf("QueryQuote: %v", err)
	}
	if len(r.requests) != 2 {
		t.Fatalf("requests = %+v", r.requests)
	}
	if len(agg.QuoteHashes) != 2 || agg.QuoteHashes[0] != "h-"+token1.DefuseAssetID {
		t.Errorf("hashes = %v", agg.QuoteHashes)
	}
	if agg.AmountsIn[token2.DefuseAssetID].String() != "5000000000" {
		t.Errorf("amounts in = %v", agg.AmountsIn)
	}
}

func TestQueryQuoteTransportError(t *testing.T) {
	r := &fakeRelay{respond: func(relay.QuoteParams) (relay.QuoteResult, error) {
		return nil, fmt.Errorf("connection refused")
	}}
	_, err := testService(r).QueryQuote(context.Background(), Request{
		TokensIn: []tokens.BaseToken{token1},
		TokenOut: out,
		AmountIn: tokenvalue.FromInt64(1, 6),
		Balances: hundredEach(),
	})
	if err == nil {
		t.Fatal("expected error")
	}
	var qe *Error
	if errors.As(err, &qe) {
		t.Errorf("transport failure reported as quote error: %v", err)
	}
}

func TestQueryQuoteNoTokens(t *testing.T) {
	_, err := testService(&fakeRelay{}).QueryQuote(context.Background(), Request{TokenOut: out, AmountIn: tokenvalue.FromInt64(1, 6)})
	var me *AmountMismatchError
	if !errors.As(err, &me) {
		t.Fatalf("expected AmountMismatchError, got %v", err)
	}
}

func TestQueryQuoteUnderfundedAmountBelowTokenPrecision(t *testing.T) {
	r := &fakeRelay{}
	// 1e-7 cannot be expressed with token1's 6 decimals
	_, err := testService(r).QueryQuote(context.Background(), Request{
		TokensIn: []tokens.BaseToken{token1, token2},
		TokenOut: out,
		AmountIn: tokenvalue.FromInt64(1, 7),
		Balances: balance.Mapping{},
	})
	var me *AmountMismatchError
	if !errors.As(err, &me) {
		t.Fatalf("expected AmountMismatchError, got %v", err)
	}
	if len(r.requests) != 0 {
		t.Errorf("sent %d requests for a zero amount", len(r.requests))
	}
}
