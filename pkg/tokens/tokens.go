package tokens

import (
	"fmt"
	"strings"
)

// Token is either a single-chain BaseToken or a UnifiedToken grouping several of them
type Token interface {
	// ID is the defuse asset id for base tokens and the unified id otherwise
	ID() string
	// Underlying lists the chain specific tokens, de-duplicated, in declaration order
	Underlying() []BaseToken
	isToken()
}

// BaseToken is a token living on exactly one chain
type BaseToken struct {
	DefuseAssetID string `json:"defuse_asset_id" mapstructure:"defuse_asset_id"`
	Symbol        string `json:"symbol" mapstructure:"symbol"`
	Name          string `json:"name,omitempty" mapstructure:"name"`
	Decimals      int    `json:"decimals" mapstructure:"decimals"`
	ChainName     string `json:"chain_name" mapstructure:"chain_name"`
	// Address is the contract or mint address on ChainName; empty means the native coin
	Address string `json:"address,omitempty" mapstructure:"address"`
}

func (t BaseToken) ID() string              { return t.DefuseAssetID }
func (t BaseToken) Underlying() []BaseToken { return []BaseToken{t} }
func (BaseToken) isToken()                  {}

// IsNative reports whether the token is the chain's native coin
func (t BaseToken) IsNative() bool {
	return t.Address == ""
}

// ContractID strips the standard prefix, "nep141:usdc.near" becomes "usdc.near"
func (t BaseToken) ContractID() string {
	if i := strings.Index(t.DefuseAssetID, ":"); i >= 0 {
		return t.DefuseAssetID[i+1:]
	}
	return t.DefuseAssetID
}

func (t BaseToken) String() string {
	return fmt.Sprintf("%s@%s", t.Symbol, t.ChainName)
}

// UnifiedToken is one user-facing symbol backed by several chain variants
type UnifiedToken struct {
	UnifiedAssetID string      `json:"unified_asset_id"`
	Symbol         string      `json:"symbol"`
	Name           string      `json:"name,omitempty"`
	GroupedTokens  []BaseToken `json:"grouped_tokens"`
}

func (t UnifiedToken) ID() string { return t.UnifiedAssetID }
func (UnifiedToken) isToken()     {}

func (t UnifiedToken) Underlying() []BaseToken {
	return Dedupe(t.GroupedTokens)
}

// Dedupe drops repeated asset ids, keeping the first occurrence
func Dedupe(list []BaseToken) []BaseToken {
	seen := make(map[string]struct{}, len(list))
	out := make([]BaseToken, 0, len(list))
	for _, t := range list {
		if _, ok := seen[t.DefuseAssetID]; ok {
			continue
		}
		seen[t.DefuseAssetID] = struct{}{}
		out = append(out, t)
	}
	return out
}

// Flatten expands every token into its underlying base tokens and de-duplicates the result
func Flatten(list []Token) []BaseToken {
	var all []BaseToken
	for _, t := range list {
		all = append(all, t.Underlying()...)
	}
	return Dedupe(all)
}

// Contains reports whether list holds a token with the given asset id
func Contains(list []BaseToken, assetID string) bool {
	for _, t := range list {
		if t.DefuseAssetID == assetID {
			return true
		}
	}
	return false
}

// MaxDecimals returns the highest precision among the tokens
func MaxDecimals(list []BaseToken) int {
	max := 0
	for _, t := range list {
		if t.Decimals > max {
			max = t.Decimals
		}
	}
	return max
}
