package chain

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"

	"near-intents/config"
	"near-intents/pkg/tokens"
)

// SolanaBalanceReader reads SOL and SPL token balances
type SolanaBalanceReader struct {
	config config.SolanaConfig
	client *rpc.Client
}

// NewSolanaBalanceReader creates a reader against the configured RPC endpoint
func NewSolanaBalanceReader(cfg config.SolanaConfig) (*SolanaBalanceReader, error) {
	if cfg.RPCUrl == "" {
		return nil, fmt.Errorf("RPC URL not configured for Solana")
	}
	return &SolanaBalanceReader{
		config: cfg,
		client: rpc.New(cfg.RPCUrl),
	}, nil
}

// Read returns lamports for SOL or raw units for SPL tokens. Tokens without a known
// mint that are not SOL itself yield an unknown balance.
func (s *SolanaBalanceReader) Read(ctx context.Context, token tokens.BaseToken, account string) (*big.Int, error) {
	owner, err := solana.PublicKeyFromBase58(account)
	if err != nil {
		return nil, fmt.Errorf("invalid account address: %w", err)
	}

	if token.Address == "" {
		if !strings.EqualFold(token.Symbol, "SOL") {
			return nil, nil
		}
		balance, err := s.client.GetBalance(ctx, owner, s.getCommitment())
		if err != nil {
			return nil, fmt.Errorf("failed to get balance: %w", err)
		}
		return new(big.Int).SetUint64(balance.Value), nil
	}

	mint, err := solana.PublicKeyFromBase58(token.Address)
	if err != nil {
		return nil, fmt.Errorf("invalid token mint address: %w", err)
	}

	tokenAccount, _, err := solana.FindAssociatedTokenAddress(owner, mint)
	if err != nil {
		return nil, fmt.Errorf("failed to derive associated token address: %w", err)
	}

	accountInfo, err := s.client.GetTokenAccountBalance(ctx, tokenAccount, s.getCommitment())
	if err != nil {
		// no associated account yet means nothing was ever received
		if strings.Contains(err.Error(), "could not find account") || strings.Contains(err.Error(), "not found") {
			return new(big.Int), nil
		}
		return nil, fmt.Errorf("failed to get token balance: %w", err)
	}

	amount, ok := new(big.Int).SetString(accountInfo.Value.Amount, 10)
	if !ok {
		return nil, fmt.Errorf("failed to parse token balance %q", accountInfo.Value.Amount)
	}
	return amount, nil
}

// getCommitment returns the commitment level from config
func (s *SolanaBalanceReader) getCommitment() rpc.CommitmentType {
	switch strings.ToLower(s.config.Commitment) {
	case "finalized":
		return rpc.CommitmentFinalized
	case "confirmed":
		return rpc.CommitmentConfirmed
	case "processed":
		return rpc.CommitmentProcessed
	default:
		return rpc.CommitmentConfirmed
	}
}
