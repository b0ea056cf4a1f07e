package quote

import (
	"math/big"

	"near-intents/pkg/balance"
	"near-intents/pkg/tokens"
	"near-intents/pkg/tokenvalue"
)

// CalculateSplitAmounts decides how much of each token to sell so that together
// they cover amountIn. Tokens are consumed greedily in the given order and each
// asset id is charged only once. Returned amounts are in each token's own
// precision and are never zero.
func CalculateSplitAmounts(tokensIn []tokens.BaseToken, amountIn tokenvalue.TokenValue, balances balance.Mapping) (map[string]*big.Int, error) {
	remaining := new(big.Int)
	if amountIn.Amount != nil {
		remaining.Set(amountIn.Amount)
	}
	out := make(map[string]*big.Int)

	for _, t := range tokens.Dedupe(tokensIn) {
		if remaining.Sign() <= 0 {
			break
		}
		bal, ok := balances.Get(t.DefuseAssetID)
		if !ok || bal.Sign() <= 0 {
			continue
		}

		need := tokenvalue.AdjustDecimals(remaining, amountIn.Decimals, t.Decimals)
		take := tokenvalue.MinInt(bal, need)

		contributed := tokenvalue.AdjustDecimals(take, t.Decimals, amountIn.Decimals)
		if contributed.Sign() == 0 {
			continue
		}
		// only request what actually counts towards the total
		out[t.DefuseAssetID] = tokenvalue.AdjustDecimals(contributed, amountIn.Decimals, t.Decimals)
		remaining.Sub(remaining, contributed)
	}

	if remaining.Sign() > 0 {
		return nil, &AmountMismatchError{
			Requested: amountIn,
			Remaining: tokenvalue.New(remaining, amountIn.Decimals),
		}
	}
	return out, nil
}

// totalBalance sums the balances of tokensIn expressed in the given precision
func totalBalance(tokensIn []tokens.BaseToken, decimals int, balances balance.Mapping) *big.Int {
	sum := new(big.Int)
	for _, t := range tokens.Dedupe(tokensIn) {
		if bal, ok := balances.Get(t.DefuseAssetID); ok {
			sum.Add(sum, tokenvalue.AdjustDecimals(bal, t.Decimals, decimals))
		}
	}
	return sum
}
