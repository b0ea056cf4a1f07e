package chain

import (
	"context"
	"fmt"
	"math/big"
	"sort"
	"strings"

	"near-intents/config"
	"near-intents/pkg/balance"
	"near-intents/pkg/tokens"
)

// Router dispatches on-chain balance reads to the reader for the token's chain
type Router struct {
	readers map[string]balance.Reader
	closers []func()
}

// NewRouter builds readers for every chain enabled in cfg
func NewRouter(cfg *config.Config) (*Router, error) {
	r := &Router{readers: make(map[string]balance.Reader)}

	for name := range cfg.EVM.Networks {
		reader, err := NewEVMBalanceReader(cfg.EVM, name)
		if err != nil {
			r.Close()
			return nil, fmt.Errorf("evm network %s: %w", name, err)
		}
		r.Register(name, reader)
		r.closers = append(r.closers, reader.Close)
	}

	if cfg.Solana.RPCUrl != "" {
		reader, err := NewSolanaBalanceReader(cfg.Solana)
		if err != nil {
			r.Close()
			return nil, err
		}
		r.Register("sol", reader)
		r.Register("solana", reader)
	}

	return r, nil
}

// Register installs a reader for a chain name
func (r *Router) Register(chain string, reader balance.Reader) {
	if r.readers == nil {
		r.readers = make(map[string]balance.Reader)
	}
	r.readers[strings.ToLower(chain)] = reader
}

// IsEnabledForChain reports whether a reader exists for chain
func (r *Router) IsEnabledForChain(chain string) bool {
	_, ok := r.readers[strings.ToLower(chain)]
	return ok
}

// SupportedChains lists chains with a registered reader
func (r *Router) SupportedChains() []string {
	out := make([]string, 0, len(r.readers))
	for name := range r.readers {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Read forwards to the chain specific reader
func (r *Router) Read(ctx context.Context, token tokens.BaseToken, account string) (*big.Int, error) {
	reader, ok := r.readers[strings.ToLower(token.ChainName)]
	if !ok {
		return nil, fmt.Errorf("balance reads not supported for chain: %s", token.ChainName)
	}
	return reader.Read(ctx, token, account)
}

// Close releases the underlying clients
func (r *Router) Close() {
	for _, c := range r.closers {
		c()
	}
	r.closers = nil
}
