package intent

import (
	"encoding/json"
	"math/big"
	"strings"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"

	"near-intents/pkg/quote"
	"near-intents/pkg/tokenvalue"
)

func TestSignerID(t *testing.T) {
	key, err := solana.NewRandomPrivateKey()
	if err != nil {
		t.Fatal(err)
	}
	pub := key.PublicKey()

	tests := []struct {
		user User
		want string
	}{
		{User{Address: "0xAbC0000000000000000000000000000000000001", Method: AuthEVM}, "0xabc0000000000000000000000000000000000001"},
		{User{Address: "alice.near", Method: AuthNear}, "alice.near"},
	}
	for _, tt := range tests {
		got, err := SignerID(tt.user)
		if err != nil || got != tt.want {
			t.Errorf("SignerID(%+v) = %q, %v", tt.user, got, err)
		}
	}

	got, err := SignerID(User{Address: pub.String(), Method: AuthSolana})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 64 || strings.ToLower(got) != got {
		t.Errorf("solana signer id = %q", got)
	}

	if _, err := SignerID(User{Address: "x", Method: "tron"}); err == nil {
		t.Error("expected error for unknown method")
	}
}

func TestWalletMessageJSON(t *testing.T) {
	deadline := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	msg, err := NewWalletMessage("alice.near", "intents.near", deadline, []Intent{
		TokenDiff{Diff: map[string]string{"nep141:usdc.near": "-100"}},
		FtWithdraw{Token: "usdc.near", ReceiverID: "bob.near", Amount: "100"},
	}, zeroReader{})
	if err != nil {
		t.Fatal(err)
	}

	var decoded map[string]interface{}
	if err := json.Unmarshal([]byte(msg.JSON), &decoded); err != nil {
		t.Fatal(err)
	}
	if decoded["signer_id"] != "alice.near" || decoded["verifying_contract"] != "intents.near" {
		t.Errorf("message = %s", msg.JSON)
	}
	if decoded["deadline"] != "2030-01-01T00:00:00.000Z" {
		t.Errorf("deadline = %v", decoded["deadline"])
	}
	if decoded["nonce"] != "AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA=" {
		t.Errorf("nonce = %v", decoded["nonce"])
	}
	intents := decoded["intents"].([]interface{})
	first := intents[0].(map[string]interface{})
	second := intents[1].(map[string]interface{})
	if first["intent"] != "token_diff" || second["intent"] != "ft_withdraw" || second["receiver_id"] != "bob.near" {
		t.Errorf("intents = %v", intents)
	}
	if _, ok := second["storage_deposit"]; ok {
		t.Error("empty storage_deposit should be omitted")
	}
}

func TestBuildIntentsSwap(t *testing.T) {
	q := swapQuote("h", 5, testClock)
	intents, deltas := buildIntents(swapParams(q))
	if len(intents) != 1 {
		t.Fatalf("intents = %+v", intents)
	}
	diff := intents[0].(TokenDiff).Diff
	if diff[usdc.DefuseAssetID] != "-1000000" || diff[wnear.DefuseAssetID] != "5" {
		t.Errorf("diff = %v", diff)
	}

	desc := describe(swapParams(q), deltas)
	if desc.Type != "swap" || desc.TotalAmountIn.Int64() != 1_000000 || desc.TotalAmountOut.Int64() != 5 {
		t.Errorf("description = %+v", desc)
	}
}

func TestBuildIntentsWithdrawWithSwapAndStorage(t *testing.T) {
	swap := quote.AggregatedQuote{
		QuoteHashes:    []string{"swap"},
		TotalAmountOut: big.NewInt(400),
		AmountsIn:      map[string]*big.Int{wnear.DefuseAssetID: big.NewInt(9)},
		AmountsOut:     map[string]*big.Int{usdc.DefuseAssetID: big.NewInt(400)},
	}
	storage := quote.AggregatedQuote{
		QuoteHashes:    []string{"storage"},
		TotalAmountOut: big.NewInt(125),
		AmountsIn:      map[string]*big.Int{usdc.DefuseAssetID: big.NewInt(3)},
		AmountsOut:     map[string]*big.Int{wnear.DefuseAssetID: big.NewInt(125)},
	}
	p := WithdrawParams{
		TokenOut:                 usdc,
		Quote:                    &swap,
		StorageQuote:             &storage,
		NEP141StorageRequirement: big.NewInt(125),
		DirectWithdrawalAmount:   tokenvalue.FromInt64(600, 6),
		Recipient:                "bob.near",
	}

	intents, deltas := buildIntents(p)
	if len(intents) != 3 {
		t.Fatalf("intents = %+v", intents)
	}
	w := intents[2].(FtWithdraw)
	if w.Amount != "1000" || w.Token != "usdc.near" || w.StorageDeposit != "125" {
		t.Errorf("withdraw = %+v", w)
	}
	if hashes := quoteHashes(p.Quote, p.StorageQuote); len(hashes) != 2 || hashes[1] != "storage" {
		t.Errorf("hashes = %v", hashes)
	}

	desc := describe(p, deltas)
	if desc.Type != "withdraw" || desc.Amount.Amount.Int64() != 1000 || desc.Recipient != "bob.near" {
		t.Errorf("description = %+v (amount %s)", desc, desc.Amount.Amount)
	}
}

func TestDeadlineCappedByQuote(t *testing.T) {
	soon := testClock.Add(time.Minute)
	p := swapParams(swapQuote("h", 1, soon))
	if got := deadline(p, testClock, 10*time.Minute); !got.Equal(soon) {
		t.Errorf("deadline = %v, want %v", got, soon)
	}
	p = swapParams(swapQuote("h", 1, testClock.Add(time.Hour)))
	if got := deadline(p, testClock, 10*time.Minute); !got.Equal(testClock.Add(10 * time.Minute)) {
		t.Errorf("deadline = %v", got)
	}
}
