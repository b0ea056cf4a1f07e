package withdraw

import (
	"math/big"
	"testing"

	"near-intents/pkg/balance"
	"near-intents/pkg/tokens"
	"near-intents/pkg/tokenvalue"
)

var (
	nearUSDC = tokens.BaseToken{DefuseAssetID: "nep141:usdc.near", Symbol: "USDC", Decimals: 6, ChainName: "near"}
	ethUSDC  = tokens.BaseToken{DefuseAssetID: "nep141:eth-usdc.omft.near", Symbol: "USDC", Decimals: 6, ChainName: "eth"}
	wnear    = tokens.BaseToken{DefuseAssetID: "nep141:wrap.near", Symbol: "NEAR", Decimals: 24, ChainName: "near"}
	btc8     = tokens.BaseToken{DefuseAssetID: "nep141:btc.omft.near", Symbol: "NEAR", Decimals: 8, ChainName: "btc"}

	usdc = tokens.UnifiedToken{UnifiedAssetID: "usdc", Symbol: "USDC", GroupedTokens: []tokens.BaseToken{nearUSDC, ethUSDC, nearUSDC}}
)

func big10(s string) *big.Int {
	v, _ := new(big.Int).SetString(s, 10)
	return v
}

func TestSameTokenNeedsNoSwap(t *testing.T) {
	amount := tokenvalue.FromInt64(5_000000, 6)
	spec := GetRequiredSwapAmount(nearUSDC, nearUSDC, amount, balance.Mapping{nearUSDC.DefuseAssetID: big10("1000000000000")})
	if spec == nil {
		t.Fatal("nil spec")
	}
	if spec.SwapParams != nil {
		t.Errorf("swap params = %+v", spec.SwapParams)
	}
	if tokenvalue.Cmp(spec.DirectWithdrawalAmount, amount) != 0 {
		t.Errorf("direct = %s", spec.DirectWithdrawalAmount)
	}
}

func TestUnknownBalanceReturnsNil(t *testing.T) {
	amount := tokenvalue.FromInt64(1, 6)
	if spec := GetRequiredSwapAmount(usdc, nearUSDC, amount, balance.Mapping{nearUSDC.DefuseAssetID: big.NewInt(1)}); spec != nil {
		t.Errorf("expected nil when a grouped balance is unknown, got %+v", spec)
	}
	if spec := GetRequiredSwapAmount(nearUSDC, ethUSDC, amount, balance.Mapping{nearUSDC.DefuseAssetID: big.NewInt(1)}); spec != nil {
		t.Errorf("expected nil when the destination balance is unknown, got %+v", spec)
	}
}

func TestPartialDirectWithSwap(t *testing.T) {
	balances := balance.Mapping{
		nearUSDC.DefuseAssetID: big10("3000000"),
		ethUSDC.DefuseAssetID:  big10("10000000"),
	}
	spec := GetRequiredSwapAmount(usdc, nearUSDC, tokenvalue.FromInt64(5_000000, 6), balances)
	if spec == nil || spec.SwapParams == nil {
		t.Fatalf("spec = %+v", spec)
	}
	if spec.DirectWithdrawalAmount.Amount.String() != "3000000" {
		t.Errorf("direct = %s", spec.DirectWithdrawalAmount.Amount)
	}
	if spec.SwapParams.AmountIn.Amount.String() != "2000000" {
		t.Errorf("swap = %s", spec.SwapParams.AmountIn.Amount)
	}
	if len(spec.SwapParams.TokensIn) != 1 || spec.SwapParams.TokensIn[0].DefuseAssetID != ethUSDC.DefuseAssetID {
		t.Errorf("swap tokens = %+v", spec.SwapParams.TokensIn)
	}
}

func TestDestinationNotInGroupSwapsEverything(t *testing.T) {
	balances := balance.Mapping{
		nearUSDC.DefuseAssetID: big10("10000000"),
		ethUSDC.DefuseAssetID:  big10("10000000"),
		wnear.DefuseAssetID:    big10("0"),
	}
	spec := GetRequiredSwapAmount(usdc, wnear, tokenvalue.FromInt64(1_000000, 6), balances)
	if spec == nil || spec.SwapParams == nil {
		t.Fatalf("spec = %+v", spec)
	}
	if !spec.DirectWithdrawalAmount.IsZero() {
		t.Errorf("direct = %s", spec.DirectWithdrawalAmount)
	}
	if spec.SwapParams.AmountIn.Amount.Int64() != 1_000000 || len(spec.SwapParams.TokensIn) != 2 {
		t.Errorf("swap = %+v", spec.SwapParams)
	}
}

func TestDustSwapIsDropped(t *testing.T) {
	group := tokens.UnifiedToken{UnifiedAssetID: "near", Symbol: "NEAR", GroupedTokens: []tokens.BaseToken{wnear, btc8}}
	balances := balance.Mapping{
		wnear.DefuseAssetID: big10("1000000000000000000000000"),
		btc8.DefuseAssetID:  big10("100000000"),
	}
	// 0.000000003 with 24 decimals
	amount := tokenvalue.New(big10("3000000000000000"), 24)

	spec := GetRequiredSwapAmount(group, btc8, amount, balances)
	if spec == nil {
		t.Fatal("nil spec")
	}
	if spec.SwapParams != nil {
		t.Errorf("dust produced a swap: %+v", spec.SwapParams)
	}
	if spec.DirectWithdrawalAmount.Decimals != 8 {
		t.Errorf("direct decimals = %d", spec.DirectWithdrawalAmount.Decimals)
	}
}

func TestResidualBelowDestinationPrecision(t *testing.T) {
	group := tokens.UnifiedToken{UnifiedAssetID: "near", Symbol: "NEAR", GroupedTokens: []tokens.BaseToken{wnear, btc8}}
	balances := balance.Mapping{
		wnear.DefuseAssetID: big10("1000000000000000000000000"),
		btc8.DefuseAssetID:  big10("100000000"),
	}
	// 0.5 plus a residual of 1e-20 that btc8 cannot represent
	amount := tokenvalue.New(big10("500000000000000000010000"), 24)

	spec := GetRequiredSwapAmount(group, btc8, amount, balances)
	if spec == nil {
		t.Fatal("nil spec")
	}
	if spec.DirectWithdrawalAmount.Amount.String() != "50000000" {
		t.Errorf("direct = %s", spec.DirectWithdrawalAmount.Amount)
	}
	if spec.SwapParams != nil {
		t.Errorf("residual dust produced a swap: %+v", spec.SwapParams)
	}
}
