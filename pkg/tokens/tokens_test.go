package tokens

import "testing"

var (
	usdcEth = BaseToken{DefuseAssetID: "nep141:eth-0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48.omft.near", Symbol: "USDC", Decimals: 6, ChainName: "eth"}
	usdcSol = BaseToken{DefuseAssetID: "nep141:sol-5ce3bf3a31af18be40ba30f721101b4341690186.omft.near", Symbol: "USDC", Decimals: 6, ChainName: "sol"}
	wnear   = BaseToken{DefuseAssetID: "nep141:wrap.near", Symbol: "wNEAR", Decimals: 24, ChainName: "near"}
)

func TestUnifiedUnderlyingDedupes(t *testing.T) {
	u := UnifiedToken{UnifiedAssetID: "usdc", Symbol: "USDC", GroupedTokens: []BaseToken{usdcEth, usdcSol, usdcEth}}
	got := u.Underlying()
	if len(got) != 2 || got[0] != usdcEth || got[1] != usdcSol {
		t.Fatalf("Underlying = %v", got)
	}
}

func TestFlatten(t *testing.T) {
	u := UnifiedToken{UnifiedAssetID: "usdc", GroupedTokens: []BaseToken{usdcEth, usdcSol}}
	got := Flatten([]Token{usdcSol, u, wnear})
	if len(got) != 3 {
		t.Fatalf("Flatten = %v", got)
	}
	if got[0] != usdcSol || got[1] != usdcEth || got[2] != wnear {
		t.Errorf("Flatten order = %v", got)
	}
}

func TestContractID(t *testing.T) {
	if got := wnear.ContractID(); got != "wrap.near" {
		t.Errorf("ContractID = %q", got)
	}
}

func TestRegistryLookup(t *testing.T) {
	r := NewRegistry([]BaseToken{usdcEth, usdcSol, wnear})

	tok, err := r.Lookup("usdc", "")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if _, ok := tok.(UnifiedToken); !ok {
		t.Errorf("expected unified token, got %T", tok)
	}

	tok, err = r.Lookup("USDC", "sol")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if tok.ID() != usdcSol.DefuseAssetID {
		t.Errorf("Lookup(USDC, sol) = %s", tok.ID())
	}

	tok, err = r.Lookup("nep141:wrap.near", "")
	if err != nil || tok.ID() != "nep141:wrap.near" {
		t.Errorf("Lookup by id = %v, %v", tok, err)
	}

	if _, err := r.Lookup("DOGE", ""); err == nil {
		t.Errorf("expected not found")
	}

	eth, _ := r.Get(usdcEth.DefuseAssetID)
	if eth.Address != "0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48" {
		t.Errorf("address not derived: %q", eth.Address)
	}
}
