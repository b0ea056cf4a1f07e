package types

// TokenRef names a token as typed by the user: a symbol or asset id, optionally
// pinned to a chain with "@chain" (e.g. "USDC@base")
type TokenRef struct {
	Ref   string
	Chain string
}

// SwapRequest represents a user's swap command
type SwapRequest struct {
	Amount   string
	TokensIn []TokenRef
	TokenOut TokenRef
}

// WithdrawRequest represents a user's withdrawal command
type WithdrawRequest struct {
	Amount    string
	Token     TokenRef
	TokenOut  TokenRef
	Recipient string
	Memo      string
}

// QuoteDisplay holds formatted quote information for display
type QuoteDisplay struct {
	AmountIn    string            `json:"amount_in"`
	TokensIn    []string          `json:"tokens_in"`
	AmountOut   string            `json:"amount_out"`
	TokenOut    string            `json:"token_out"`
	Rate        string            `json:"rate,omitempty"`
	ExpiresAt   string            `json:"expires_at"`
	QuoteHashes []string          `json:"quote_hashes"`
	Split       map[string]string `json:"split,omitempty"`
}

// SwapStatus represents the current status of a published intent
type SwapStatus struct {
	IntentHash string `json:"intent_hash"`
	Status     string `json:"status"`
	TxHash     string `json:"tx_hash,omitempty"`
	Message    string `json:"message,omitempty"`
}
