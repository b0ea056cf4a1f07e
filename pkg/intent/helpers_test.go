package intent

import (
	"context"
	"crypto/ecdsa"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/crypto"

	"near-intents/pkg/quote"
	"near-intents/pkg/tokens"
)

var (
	usdc  = tokens.BaseToken{DefuseAssetID: "nep141:usdc.near", Symbol: "USDC", Decimals: 6, ChainName: "near"}
	wnear = tokens.BaseToken{DefuseAssetID: "nep141:wrap.near", Symbol: "wNEAR", Decimals: 24, ChainName: "near"}
)

// testClock is a fixed point in time
var testClock = time.Date(2030, 1, 1, 12, 0, 0, 0, time.UTC)

type evmSigner struct {
	key *ecdsa.PrivateKey
}

func newEVMSigner(t *testing.T) *evmSigner {
	t.Helper()
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatal(err)
	}
	return &evmSigner{key: key}
}

func (s *evmSigner) user() User {
	return User{Address: crypto.PubkeyToAddress(s.key.PublicKey).Hex(), Method: AuthEVM}
}

func (s *evmSigner) Sign(ctx context.Context, msg WalletMessage) (WalletSignature, error) {
	sig, err := crypto.Sign(accounts.TextHash([]byte(msg.JSON)), s.key)
	if err != nil {
		return nil, err
	}
	sig[64] += 27
	return ERC191Signature{Message: msg.JSON, Signature: sig}, nil
}

func swapQuote(hash string, out int64, expires time.Time) quote.AggregatedQuote {
	return quote.AggregatedQuote{
		QuoteHashes:    []string{hash},
		ExpirationTime: expires,
		TotalAmountIn:  big.NewInt(1_000000),
		TotalAmountOut: big.NewInt(out),
		AmountsIn:      map[string]*big.Int{usdc.DefuseAssetID: big.NewInt(1_000000)},
		AmountsOut:     map[string]*big.Int{wnear.DefuseAssetID: big.NewInt(out)},
	}
}

func swapParams(q quote.AggregatedQuote) SwapParams {
	return SwapParams{TokensIn: []tokens.BaseToken{usdc}, TokenOut: wnear, Quote: q}
}

var machineCfg = MachineConfig{VerifyingContract: "intents.near", SwapTTL: 10 * time.Minute}

// zeroReader yields a deterministic nonce
type zeroReader struct{}

func (zeroReader) Read(p []byte) (int, error) {
	for i := range p {
		p[i] = 0
	}
	return len(p), nil
}
