package parser

import (
	"fmt"
	"regexp"
	"strings"

	"near-intents/pkg/types"
)

var swapPattern = regexp.MustCompile(`(?i)^(\d+\.?\d*)\s+([A-Za-z0-9@:.,_\-]+)\s+to\s+([A-Za-z0-9@:._\-]+)$`)

// ParseSwapCommand parses a natural language swap command
// Examples:
//   - "swap 1 SOL to USDC"
//   - "1.5 USDC,USDT to NEAR"
//   - "100 USDC@base to nep141:wrap.near"
func ParseSwapCommand(command string) (*types.SwapRequest, error) {
	command = strings.TrimSpace(command)
	if len(command) >= 5 && strings.EqualFold(command[:5], "swap ") {
		command = strings.TrimSpace(command[5:])
	}

	matches := swapPattern.FindStringSubmatch(command)
	if matches == nil {
		return nil, fmt.Errorf("invalid swap command format. Expected: 'swap <amount> <token>[,<token>...] to <token>' (e.g., 'swap 1 USDC,USDT to NEAR')")
	}

	var in []types.TokenRef
	for _, part := range strings.Split(matches[2], ",") {
		if part = strings.TrimSpace(part); part != "" {
			in = append(in, ParseTokenRef(part))
		}
	}

	req := &types.SwapRequest{
		Amount:   matches[1],
		TokensIn: in,
		TokenOut: ParseTokenRef(matches[3]),
	}
	return req, ValidateSwapRequest(req)
}

// ParseTokenRef splits "SYMBOL@chain" into its parts. Symbols are normalized,
// asset ids such as "nep141:wrap.near" are kept verbatim.
func ParseTokenRef(s string) types.TokenRef {
	s = strings.TrimSpace(s)
	ref, chain := s, ""
	if i := strings.LastIndex(s, "@"); i >= 0 {
		ref, chain = s[:i], strings.ToLower(s[i+1:])
	}
	if !strings.Contains(ref, ":") {
		ref = NormalizeTokenSymbol(ref)
	}
	return types.TokenRef{Ref: ref, Chain: chain}
}

// ValidateSwapRequest validates that a swap request has all required fields
func ValidateSwapRequest(req *types.SwapRequest) error {
	if req.Amount == "" {
		return fmt.Errorf("amount is required")
	}
	if len(req.TokensIn) == 0 {
		return fmt.Errorf("source token is required")
	}
	if req.TokenOut.Ref == "" {
		return fmt.Errorf("destination token is required")
	}
	return nil
}

// NormalizeTokenSymbol normalizes token symbols to standard format
func NormalizeTokenSymbol(symbol string) string {
	symbol = strings.TrimSpace(strings.ToUpper(symbol))

	aliases := map[string]string{
		"WBTC":  "BTC",
		"WETH":  "ETH",
		"WSOL":  "SOL",
		"WNEAR": "NEAR",
	}

	if normalized, exists := aliases[symbol]; exists {
		return normalized
	}

	return symbol
}
