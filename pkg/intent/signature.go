package intent

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/gagliardetto/solana-go"
	"github.com/mr-tron/base58"

	"near-intents/pkg/relay"
)

// WalletSignature is a signer's answer, one variant per signature scheme
type WalletSignature interface {
	Standard() string
	isWalletSignature()
}

// ERC191Signature is an Ethereum personal_sign signature over the message JSON
type ERC191Signature struct {
	Message string
	// Signature is r || s || v, v may be 0/1 or 27/28
	Signature []byte
}

// RawEd25519Signature is a detached ed25519 signature, as produced by Solana wallets
type RawEd25519Signature struct {
	Message   string
	Signature []byte
}

// NEP413Payload is the envelope NEAR wallets sign
type NEP413Payload struct {
	Message     string `json:"message"`
	Nonce       string `json:"nonce"`
	Recipient   string `json:"recipient"`
	CallbackURL string `json:"callbackUrl,omitempty"`
}

// NEP413Signature is a NEAR wallet signature. AccountID is the account the wallet
// actually signed with, PublicKey is "ed25519:<base58>".
type NEP413Signature struct {
	Payload   NEP413Payload
	AccountID string
	PublicKey string
	Signature []byte
}

func (ERC191Signature) Standard() string     { return relay.StandardERC191 }
func (RawEd25519Signature) Standard() string { return relay.StandardRawEd25519 }
func (NEP413Signature) Standard() string     { return relay.StandardNEP413 }

func (ERC191Signature) isWalletSignature()     {}
func (RawEd25519Signature) isWalletSignature() {}
func (NEP413Signature) isWalletSignature()     {}

// NewNEP413Payload builds the envelope for msg
func NewNEP413Payload(msg WalletMessage) NEP413Payload {
	return NEP413Payload{
		Message:   msg.JSON,
		Nonce:     base64.StdEncoding.EncodeToString(msg.Nonce[:]),
		Recipient: msg.Recipient,
	}
}

// VerifySignature checks that sig was produced by the session's account.
// It returns false when the signature belongs to someone else.
func VerifySignature(sig WalletSignature, user User) (bool, error) {
	switch s := sig.(type) {
	case NEP413Signature:
		return s.AccountID == user.Address, nil

	case ERC191Signature:
		if len(s.Signature) != crypto.SignatureLength {
			return false, fmt.Errorf("invalid signature length %d", len(s.Signature))
		}
		rsv := normalizeV(s.Signature)
		pub, err := crypto.SigToPub(accounts.TextHash([]byte(s.Message)), rsv)
		if err != nil {
			return false, fmt.Errorf("failed to recover public key: %w", err)
		}
		return strings.EqualFold(crypto.PubkeyToAddress(*pub).Hex(), user.Address), nil

	case RawEd25519Signature:
		pk, err := solana.PublicKeyFromBase58(user.Address)
		if err != nil {
			return false, fmt.Errorf("invalid solana address: %w", err)
		}
		var detached solana.Signature
		if len(s.Signature) != len(detached) {
			return false, fmt.Errorf("invalid signature length %d", len(s.Signature))
		}
		copy(detached[:], s.Signature)
		return detached.Verify(pk, []byte(s.Message)), nil
	}
	return false, fmt.Errorf("unsupported signature type %T", sig)
}

// ToMultiPayload converts a wallet signature into the relay's signed_data form
func ToMultiPayload(sig WalletSignature, user User) (relay.MultiPayload, error) {
	switch s := sig.(type) {
	case ERC191Signature:
		payload, err := json.Marshal(s.Message)
		if err != nil {
			return relay.MultiPayload{}, err
		}
		return relay.MultiPayload{
			Standard:  relay.StandardERC191,
			Payload:   payload,
			Signature: "secp256k1:" + base58.Encode(normalizeV(s.Signature)),
		}, nil

	case RawEd25519Signature:
		pk, err := solana.PublicKeyFromBase58(user.Address)
		if err != nil {
			return relay.MultiPayload{}, fmt.Errorf("invalid solana address: %w", err)
		}
		payload, err := json.Marshal(s.Message)
		if err != nil {
			return relay.MultiPayload{}, err
		}
		return relay.MultiPayload{
			Standard:  relay.StandardRawEd25519,
			Payload:   payload,
			PublicKey: "ed25519:" + base58.Encode(pk.Bytes()),
			Signature: "ed25519:" + base58.Encode(s.Signature),
		}, nil

	case NEP413Signature:
		payload, err := json.Marshal(s.Payload)
		if err != nil {
			return relay.MultiPayload{}, err
		}
		return relay.MultiPayload{
			Standard:  relay.StandardNEP413,
			Payload:   payload,
			PublicKey: s.PublicKey,
			Signature: "ed25519:" + base58.Encode(s.Signature),
		}, nil
	}
	return relay.MultiPayload{}, fmt.Errorf("unsupported signature type %T", sig)
}

// normalizeV returns a copy of a 65 byte signature with v in {0, 1}
func normalizeV(sig []byte) []byte {
	out := make([]byte, len(sig))
	copy(out, sig)
	if len(out) == crypto.SignatureLength && out[64] >= 27 {
		out[64] -= 27
	}
	return out
}
