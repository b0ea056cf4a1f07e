// Package wallet provides local signers backed by keys from the config file.
// Keys are only loaded, never generated or stored.
package wallet

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/gagliardetto/solana-go"

	"near-intents/config"
	"near-intents/pkg/intent"
)

// Wallet is a signer that knows which account it signs for
type Wallet interface {
	intent.Signer
	User() intent.User
}

// EVMSigner signs intent messages with personal_sign (ERC-191)
type EVMSigner struct {
	privateKey *ecdsa.PrivateKey
	address    string
}

// NewEVMSigner parses a hex private key, with or without 0x
func NewEVMSigner(hexKey string) (*EVMSigner, error) {
	if hexKey == "" {
		return nil, fmt.Errorf("evm private key not configured")
	}
	privateKey, err := crypto.HexToECDSA(strings.TrimPrefix(hexKey, "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}
	return &EVMSigner{
		privateKey: privateKey,
		address:    crypto.PubkeyToAddress(privateKey.PublicKey).Hex(),
	}, nil
}

// User returns the EVM account of the key
func (s *EVMSigner) User() intent.User {
	return intent.User{Address: s.address, Method: intent.AuthEVM}
}

// Sign returns an ERC-191 signature over the message JSON with v in {27, 28}
func (s *EVMSigner) Sign(ctx context.Context, msg intent.WalletMessage) (intent.WalletSignature, error) {
	if err := ctx.Err(); err != nil {
		return nil, &intent.WalletError{Code: intent.WalletCodeRejected, Err: err}
	}
	sig, err := crypto.Sign(accounts.TextHash([]byte(msg.JSON)), s.privateKey)
	if err != nil {
		return nil, &intent.WalletError{Code: intent.WalletCodeUnknown, Err: err}
	}
	sig[crypto.RecoveryIDOffset] += 27
	return intent.ERC191Signature{Message: msg.JSON, Signature: sig}, nil
}

// SolanaSigner signs the raw message bytes with an ed25519 key
type SolanaSigner struct {
	privateKey solana.PrivateKey
}

// NewSolanaSigner parses a base58 private key
func NewSolanaSigner(base58Key string) (*SolanaSigner, error) {
	if base58Key == "" {
		return nil, fmt.Errorf("solana private key not configured")
	}
	privateKey, err := solana.PrivateKeyFromBase58(base58Key)
	if err != nil {
		return nil, fmt.Errorf("invalid Solana private key: %w", err)
	}
	return &SolanaSigner{privateKey: privateKey}, nil
}

// User returns the Solana account of the key
func (s *SolanaSigner) User() intent.User {
	return intent.User{Address: s.privateKey.PublicKey().String(), Method: intent.AuthSolana}
}

// Sign returns a detached signature over the message JSON
func (s *SolanaSigner) Sign(ctx context.Context, msg intent.WalletMessage) (intent.WalletSignature, error) {
	if err := ctx.Err(); err != nil {
		return nil, &intent.WalletError{Code: intent.WalletCodeRejected, Err: err}
	}
	sig, err := s.privateKey.Sign([]byte(msg.JSON))
	if err != nil {
		return nil, &intent.WalletError{Code: intent.WalletCodeUnknown, Err: err}
	}
	return intent.RawEd25519Signature{Message: msg.JSON, Signature: sig[:]}, nil
}

// FromConfig picks the signer for chain: "solana"/"sol" uses the Solana key,
// anything else the EVM key
func FromConfig(cfg *config.Config, chain string) (Wallet, error) {
	switch strings.ToLower(chain) {
	case "sol", "solana":
		return NewSolanaSigner(cfg.Solana.PrivateKey)
	default:
		return NewEVMSigner(cfg.EVM.PrivateKey)
	}
}
