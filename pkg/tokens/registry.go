package tokens

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Registry indexes known base tokens by asset id and by symbol
type Registry struct {
	mu       sync.RWMutex
	byID     map[string]BaseToken
	bySymbol map[string][]BaseToken
}

// NewRegistry builds a registry from a token list
func NewRegistry(list []BaseToken) *Registry {
	r := &Registry{
		byID:     make(map[string]BaseToken),
		bySymbol: make(map[string][]BaseToken),
	}
	for _, t := range list {
		r.Add(t)
	}
	return r
}

// Add registers a token, replacing any previous entry with the same asset id
func (r *Registry) Add(t BaseToken) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if t.Address == "" {
		t.Address = AddressFromAssetID(t.DefuseAssetID)
	}
	sym := strings.ToUpper(t.Symbol)
	if prev, ok := r.byID[t.DefuseAssetID]; ok {
		r.bySymbol[strings.ToUpper(prev.Symbol)] = remove(r.bySymbol[strings.ToUpper(prev.Symbol)], prev.DefuseAssetID)
	}
	r.byID[t.DefuseAssetID] = t
	r.bySymbol[sym] = append(r.bySymbol[sym], t)
}

// Get returns the token with the given asset id
func (r *Registry) Get(assetID string) (BaseToken, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.byID[assetID]
	return t, ok
}

// Lookup resolves a user supplied reference. An asset id or a symbol with a chain
// yields a BaseToken; a bare symbol present on several chains yields a UnifiedToken.
func (r *Registry) Lookup(ref, chain string) (Token, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if t, ok := r.byID[ref]; ok {
		return t, nil
	}

	matches := r.bySymbol[strings.ToUpper(ref)]
	if chain != "" {
		for _, t := range matches {
			if strings.EqualFold(t.ChainName, chain) {
				return t, nil
			}
		}
		return nil, fmt.Errorf("token '%s' not found on chain '%s'", ref, chain)
	}

	switch len(matches) {
	case 0:
		return nil, fmt.Errorf("token '%s' not found", ref)
	case 1:
		return matches[0], nil
	default:
		return UnifiedToken{
			UnifiedAssetID: strings.ToLower(ref),
			Symbol:         strings.ToUpper(ref),
			GroupedTokens:  append([]BaseToken(nil), matches...),
		}, nil
	}
}

// All returns every registered token sorted by symbol then chain
func (r *Registry) All() []BaseToken {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]BaseToken, 0, len(r.byID))
	for _, t := range r.byID {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Symbol != out[j].Symbol {
			return out[i].Symbol < out[j].Symbol
		}
		return out[i].ChainName < out[j].ChainName
	})
	return out
}

// Len returns the number of registered tokens
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byID)
}

// AddressFromAssetID extracts an EVM contract address from an omni-bridge asset id,
// e.g. "nep141:eth-0xa0b8...eb48.omft.near". Anything else yields "".
func AddressFromAssetID(assetID string) string {
	i := strings.Index(assetID, "-0x")
	if i < 0 {
		return ""
	}
	rest := assetID[i+1:]
	if j := strings.Index(rest, "."); j >= 0 {
		rest = rest[:j]
	}
	if len(rest) != 42 {
		return ""
	}
	return rest
}

func remove(list []BaseToken, assetID string) []BaseToken {
	out := list[:0]
	for _, t := range list {
		if t.DefuseAssetID != assetID {
			out = append(out, t)
		}
	}
	return out
}
