package intent

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"sort"
	"strings"
	"time"

	"github.com/gagliardetto/solana-go"

	"near-intents/pkg/quote"
)

// AuthMethod is the account model of the signing wallet
type AuthMethod string

const (
	AuthEVM    AuthMethod = "evm"
	AuthSolana AuthMethod = "solana"
	AuthNear   AuthMethod = "near"
)

// User identifies the session that started the lifecycle
type User struct {
	Address string     `json:"address"`
	Method  AuthMethod `json:"method"`
}

// SignerID derives the account id the intents contract knows the user by
func SignerID(u User) (string, error) {
	switch u.Method {
	case AuthEVM:
		return strings.ToLower(u.Address), nil
	case AuthSolana:
		pk, err := solana.PublicKeyFromBase58(u.Address)
		if err != nil {
			return "", fmt.Errorf("invalid solana address: %w", err)
		}
		return hex.EncodeToString(pk.Bytes()), nil
	case AuthNear:
		return u.Address, nil
	default:
		return "", fmt.Errorf("unsupported auth method %q", u.Method)
	}
}

// Intent is one instruction inside a signed message
type Intent interface {
	isIntent()
}

// TokenDiff moves balances inside the intents contract. Negative values are spent.
type TokenDiff struct {
	Diff map[string]string `json:"diff"`
}

// FtWithdraw moves a NEP-141 token out of the intents contract
type FtWithdraw struct {
	Token          string `json:"token"`
	ReceiverID     string `json:"receiver_id"`
	Amount         string `json:"amount"`
	Memo           string `json:"memo,omitempty"`
	StorageDeposit string `json:"storage_deposit,omitempty"`
}

func (TokenDiff) isIntent()  {}
func (FtWithdraw) isIntent() {}

func (d TokenDiff) MarshalJSON() ([]byte, error) {
	type alias TokenDiff
	return json.Marshal(struct {
		Intent string `json:"intent"`
		alias
	}{"token_diff", alias(d)})
}

func (w FtWithdraw) MarshalJSON() ([]byte, error) {
	type alias FtWithdraw
	return json.Marshal(struct {
		Intent string `json:"intent"`
		alias
	}{"ft_withdraw", alias(w)})
}

// Message is the chain agnostic intent message every wallet signs
type Message struct {
	SignerID          string   `json:"signer_id"`
	VerifyingContract string   `json:"verifying_contract"`
	Deadline          string   `json:"deadline"`
	Nonce             string   `json:"nonce"`
	Intents           []Intent `json:"intents"`
}

// WalletMessage is what the signer receives: the message, its serialized form
// and the NEP-413 envelope fields
type WalletMessage struct {
	Message   Message
	JSON      string
	Nonce     [32]byte
	Recipient string
}

const deadlineLayout = "2006-01-02T15:04:05.000Z"

// NewWalletMessage serializes intents into a signable message with a fresh nonce
func NewWalletMessage(signerID, contract string, deadline time.Time, intents []Intent, random io.Reader) (WalletMessage, error) {
	if random == nil {
		random = rand.Reader
	}
	var nonce [32]byte
	if _, err := io.ReadFull(random, nonce[:]); err != nil {
		return WalletMessage{}, fmt.Errorf("failed to generate nonce: %w", err)
	}

	msg := Message{
		SignerID:          signerID,
		VerifyingContract: contract,
		Deadline:          deadline.UTC().Format(deadlineLayout),
		Nonce:             base64.StdEncoding.EncodeToString(nonce[:]),
		Intents:           intents,
	}
	raw, err := json.Marshal(msg)
	if err != nil {
		return WalletMessage{}, fmt.Errorf("failed to encode message: %w", err)
	}
	return WalletMessage{Message: msg, JSON: string(raw), Nonce: nonce, Recipient: contract}, nil
}

// Deltas are net per-token balance changes, negative for spent tokens
type Deltas map[string]*big.Int

func (d Deltas) add(token string, v *big.Int) {
	if cur, ok := d[token]; ok {
		cur.Add(cur, v)
		return
	}
	d[token] = new(big.Int).Set(v)
}

// QuoteDeltas are the balance changes of filling q
func QuoteDeltas(q quote.AggregatedQuote) Deltas {
	d := make(Deltas)
	for token, amount := range q.AmountsIn {
		d.add(token, new(big.Int).Neg(amount))
	}
	for token, amount := range q.AmountsOut {
		d.add(token, amount)
	}
	return d
}

// TokenDiff turns the non-zero deltas into a token_diff intent
func (d Deltas) TokenDiff() TokenDiff {
	diff := make(map[string]string, len(d))
	for token, v := range d {
		if v.Sign() != 0 {
			diff[token] = v.String()
		}
	}
	return TokenDiff{Diff: diff}
}

// Merge adds other into a copy of d
func (d Deltas) Merge(other Deltas) Deltas {
	out := make(Deltas, len(d)+len(other))
	for _, src := range []Deltas{d, other} {
		for token, v := range src {
			out.add(token, v)
		}
	}
	return out
}

// Tokens lists the tokens with a non-zero delta, sorted
func (d Deltas) Tokens() []string {
	out := make([]string, 0, len(d))
	for token, v := range d {
		if v.Sign() != 0 {
			out = append(out, token)
		}
	}
	sort.Strings(out)
	return out
}
