// Package withdraw splits a withdrawal into the part already held in the
// destination token and the part that has to be swapped into it first.
package withdraw

import (
	"math/big"

	"near-intents/pkg/balance"
	"near-intents/pkg/tokens"
	"near-intents/pkg/tokenvalue"
)

// SwapParams describes the swap needed before withdrawing
type SwapParams struct {
	TokensIn []tokens.BaseToken    `json:"tokens_in"`
	TokenOut tokens.BaseToken      `json:"token_out"`
	AmountIn tokenvalue.TokenValue `json:"amount_in"`
	Balances balance.Mapping       `json:"balances"`
}

// Spec is the withdrawal plan. SwapParams is nil when no swap is needed.
type Spec struct {
	DirectWithdrawalAmount tokenvalue.TokenValue `json:"direct_withdrawal_amount"`
	SwapParams             *SwapParams           `json:"swap_params"`
	TokenOut               tokens.BaseToken      `json:"token_out"`
}

// GetRequiredSwapAmount plans the withdrawal of totalAmountIn of tokenIn as tokenOut.
// It returns nil when the balance of any involved token is unknown.
func GetRequiredSwapAmount(tokenIn tokens.Token, tokenOut tokens.BaseToken, totalAmountIn tokenvalue.TokenValue, balances balance.Mapping) *Spec {
	underlying := tokenIn.Underlying()

	for _, t := range underlying {
		if _, ok := balances.Get(t.DefuseAssetID); !ok {
			return nil
		}
	}
	outBalance, ok := balances.Get(tokenOut.DefuseAssetID)
	if !ok {
		return nil
	}

	swapTokens := make([]tokens.BaseToken, 0, len(underlying))
	for _, t := range underlying {
		if t.DefuseAssetID != tokenOut.DefuseAssetID {
			swapTokens = append(swapTokens, t)
		}
	}

	total := tokenvalue.New(totalAmountIn.Amount, totalAmountIn.Decimals)

	direct := new(big.Int)
	if tokens.Contains(underlying, tokenOut.DefuseAssetID) {
		requested := tokenvalue.AdjustDecimals(total.Amount, total.Decimals, tokenOut.Decimals)
		direct = tokenvalue.MinInt(requested, outBalance)
	}

	swap := new(big.Int).Sub(total.Amount, tokenvalue.AdjustDecimals(direct, tokenOut.Decimals, total.Decimals))
	// a residual that rounds to nothing in the destination precision is dust
	if tokenvalue.AdjustDecimals(swap, total.Decimals, tokenOut.Decimals).Sign() == 0 {
		swap.SetInt64(0)
	}

	spec := &Spec{
		DirectWithdrawalAmount: tokenvalue.New(direct, tokenOut.Decimals),
		TokenOut:               tokenOut,
	}
	if swap.Sign() > 0 {
		spec.SwapParams = &SwapParams{
			TokensIn: swapTokens,
			TokenOut: tokenOut,
			AmountIn: tokenvalue.New(swap, total.Decimals),
			Balances: balances,
		}
	}
	return spec
}
