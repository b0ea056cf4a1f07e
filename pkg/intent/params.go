package intent

import (
	"math/big"
	"time"

	"near-intents/pkg/quote"
	"near-intents/pkg/tokens"
	"near-intents/pkg/tokenvalue"
)

// OperationParams is what the user asked for: SwapParams or WithdrawParams
type OperationParams interface {
	isOperation()
}

// SwapParams converts the aggregated quote's inputs into TokenOut
type SwapParams struct {
	TokensIn []tokens.BaseToken
	TokenOut tokens.BaseToken
	Quote    quote.AggregatedQuote
}

// WithdrawParams moves TokenOut to Recipient. Quote is the swap covering the part
// not held directly; StorageQuote pays for the recipient's NEP-141 storage.
type WithdrawParams struct {
	TokenOut                 tokens.BaseToken
	Quote                    *quote.AggregatedQuote
	StorageQuote             *quote.AggregatedQuote
	NEP141StorageRequirement *big.Int
	DirectWithdrawalAmount   tokenvalue.TokenValue
	Recipient                string
	Memo                     string
}

func (SwapParams) isOperation()     {}
func (WithdrawParams) isOperation() {}

// mainQuote is the quote whose return the user agreed to, nil for a plain withdrawal
func mainQuote(p OperationParams) *quote.AggregatedQuote {
	switch p := p.(type) {
	case SwapParams:
		q := p.Quote
		return &q
	case WithdrawParams:
		return p.Quote
	}
	return nil
}

func storageQuote(p OperationParams) *quote.AggregatedQuote {
	if w, ok := p.(WithdrawParams); ok {
		return w.StorageQuote
	}
	return nil
}

// quoteHashes lists the hashes to publish with the intent, main quote first
func quoteHashes(main, storage *quote.AggregatedQuote) []string {
	hashes := []string{}
	if main != nil {
		hashes = append(hashes, main.QuoteHashes...)
	}
	if storage != nil {
		hashes = append(hashes, storage.QuoteHashes...)
	}
	return hashes
}

// deadline is now+ttl, capped by the earliest quote expiry
func deadline(p OperationParams, now time.Time, ttl time.Duration) time.Time {
	d := now.Add(ttl)
	for _, q := range []*quote.AggregatedQuote{mainQuote(p), storageQuote(p)} {
		if q != nil && !q.ExpirationTime.IsZero() && q.ExpirationTime.Before(d) {
			d = q.ExpirationTime
		}
	}
	return d
}

// buildIntents translates the operation into intents and returns the net deltas they sign
func buildIntents(p OperationParams) ([]Intent, Deltas) {
	switch p := p.(type) {
	case SwapParams:
		d := QuoteDeltas(p.Quote)
		return []Intent{d.TokenDiff()}, d

	case WithdrawParams:
		var out []Intent
		deltas := make(Deltas)
		amount := new(big.Int)
		if p.DirectWithdrawalAmount.Amount != nil {
			amount.Set(p.DirectWithdrawalAmount.Amount)
		}

		if p.Quote != nil {
			d := QuoteDeltas(*p.Quote)
			out = append(out, d.TokenDiff())
			deltas = deltas.Merge(d)
			amount.Add(amount, p.Quote.TotalAmountOut)
		}
		if p.StorageQuote != nil {
			d := QuoteDeltas(*p.StorageQuote)
			out = append(out, d.TokenDiff())
			deltas = deltas.Merge(d)
		}

		w := FtWithdraw{
			Token:      p.TokenOut.ContractID(),
			ReceiverID: p.Recipient,
			Amount:     amount.String(),
			Memo:       p.Memo,
		}
		if p.NEP141StorageRequirement != nil && p.NEP141StorageRequirement.Sign() > 0 {
			w.StorageDeposit = p.NEP141StorageRequirement.String()
		}
		out = append(out, w)
		deltas.add(p.TokenOut.DefuseAssetID, new(big.Int).Neg(amount))
		return out, deltas
	}
	return nil, nil
}

// Description summarizes a completed intent for display
type Description struct {
	Type           string                 `json:"type"`
	TokensIn       []string               `json:"tokens_in,omitempty"`
	TokenOut       string                 `json:"token_out"`
	TotalAmountIn  *big.Int               `json:"total_amount_in,omitempty"`
	TotalAmountOut *big.Int               `json:"total_amount_out,omitempty"`
	Amount         *tokenvalue.TokenValue `json:"amount,omitempty"`
	Recipient      string                 `json:"recipient,omitempty"`
}

// describe computes the summary for display. Swaps are described by the signed
// deltas restricted to the traded tokens.
func describe(p OperationParams, d Deltas) Description {
	switch p := p.(type) {
	case SwapParams:
		desc := Description{
			Type:           "swap",
			TokenOut:       p.TokenOut.DefuseAssetID,
			TotalAmountIn:  new(big.Int),
			TotalAmountOut: new(big.Int),
		}
		for _, t := range tokens.Dedupe(p.TokensIn) {
			if v, ok := d[t.DefuseAssetID]; ok && v.Sign() < 0 {
				desc.TokensIn = append(desc.TokensIn, t.DefuseAssetID)
				desc.TotalAmountIn.Sub(desc.TotalAmountIn, v)
			}
		}
		if v, ok := d[p.TokenOut.DefuseAssetID]; ok && v.Sign() > 0 {
			desc.TotalAmountOut.Set(v)
		}
		return desc

	case WithdrawParams:
		// the swap return is credited and withdrawn in the same intent, so the
		// withdrawn amount is the direct part plus what the swap returns
		amount := new(big.Int)
		if p.DirectWithdrawalAmount.Amount != nil {
			amount.Set(p.DirectWithdrawalAmount.Amount)
		}
		if p.Quote != nil {
			if v, ok := p.Quote.AmountsOut[p.TokenOut.DefuseAssetID]; ok {
				amount.Add(amount, v)
			}
		}
		tv := tokenvalue.New(amount, p.TokenOut.Decimals)
		return Description{
			Type:      "withdraw",
			TokenOut:  p.TokenOut.DefuseAssetID,
			Amount:    &tv,
			Recipient: p.Recipient,
		}
	}
	return Description{}
}
