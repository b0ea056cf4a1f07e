package relay

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/big"
	"time"
)

// QuoteParams is the request body of the relay's quote method
type QuoteParams struct {
	AssetIn       string `json:"defuse_asset_identifier_in"`
	AssetOut      string `json:"defuse_asset_identifier_out"`
	ExactAmountIn string `json:"exact_amount_in"`
	MinDeadlineMs int64  `json:"min_deadline_ms,omitempty"`
}

// Quote is a single solver offer
type Quote struct {
	QuoteHash      string    `json:"quote_hash"`
	AssetIn        string    `json:"defuse_asset_identifier_in"`
	AssetOut       string    `json:"defuse_asset_identifier_out"`
	AmountIn       string    `json:"amount_in"`
	AmountOut      string    `json:"amount_out"`
	ExpirationTime time.Time `json:"expiration_time"`
}

// AmountInInt parses AmountIn
func (q Quote) AmountInInt() (*big.Int, bool) {
	return new(big.Int).SetString(q.AmountIn, 10)
}

// AmountOutInt parses AmountOut
func (q Quote) AmountOutInt() (*big.Int, bool) {
	return new(big.Int).SetString(q.AmountOut, 10)
}

// QuoteResult is the outcome of one quote request: QuoteList or QuoteFailure
type QuoteResult interface {
	isQuoteResult()
}

// QuoteList holds the offers returned for a request. It may be empty.
type QuoteList []Quote

func (QuoteList) isQuoteResult() {}

// Failure types reported by the relay
const (
	FailureInsufficientAmount = "INSUFFICIENT_AMOUNT"
)

// QuoteFailure is a structured rejection, e.g. the requested amount is below the
// minimum any solver accepts
type QuoteFailure struct {
	Type      string `json:"type"`
	MinAmount string `json:"min_amount,omitempty"`
}

func (QuoteFailure) isQuoteResult() {}

// DecodeQuoteResult interprets the raw result of the quote method:
// null means no quotes, an array is a QuoteList, an object a QuoteFailure
func DecodeQuoteResult(raw json.RawMessage) (QuoteResult, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || string(trimmed) == "null" {
		return QuoteList(nil), nil
	}

	switch trimmed[0] {
	case '[':
		var list QuoteList
		if err := json.Unmarshal(trimmed, &list); err != nil {
			return nil, fmt.Errorf("failed to decode quotes: %w", err)
		}
		return list, nil
	case '{':
		var failure QuoteFailure
		if err := json.Unmarshal(trimmed, &failure); err != nil {
			return nil, fmt.Errorf("failed to decode quote failure: %w", err)
		}
		if failure.Type == "" {
			return nil, fmt.Errorf("unexpected quote result: %s", string(trimmed))
		}
		return failure, nil
	default:
		return nil, fmt.Errorf("unexpected quote result: %s", string(trimmed))
	}
}

// MultiPayload is a signed intent in one of the signature standards accepted by
// the verifying contract
type MultiPayload struct {
	Standard  string          `json:"standard"`
	Payload   json.RawMessage `json:"payload"`
	PublicKey string          `json:"public_key,omitempty"`
	Signature string          `json:"signature"`
}

// Signature standards
const (
	StandardNEP413     = "nep413"
	StandardERC191     = "erc191"
	StandardRawEd25519 = "raw_ed25519"
)

// PublishParams is the request body of publish_intent
type PublishParams struct {
	QuoteHashes []string     `json:"quote_hashes"`
	SignedData  MultiPayload `json:"signed_data"`
}

// Publish statuses
const (
	PublishOK     = "OK"
	PublishFailed = "FAILED"
)

// ReasonAlreadyProcessed is returned when the same intent was published before
const ReasonAlreadyProcessed = "already processed"

// PublishResult is the response of publish_intent
type PublishResult struct {
	Status     string `json:"status"`
	Reason     string `json:"reason,omitempty"`
	IntentHash string `json:"intent_hash"`
}

// Settlement statuses returned by get_status
const (
	StatusPending            = "PENDING"
	StatusTxBroadcasted      = "TX_BROADCASTED"
	StatusSettled            = "SETTLED"
	StatusNotFoundOrNotValid = "NOT_FOUND_OR_NOT_VALID"
)

// StatusResult is the response of get_status
type StatusResult struct {
	IntentHash string `json:"intent_hash"`
	Status     string `json:"status"`
	Data       *struct {
		Hash string `json:"hash"`
	} `json:"data,omitempty"`
}

// TxHash returns the settlement transaction hash if present
func (s StatusResult) TxHash() string {
	if s.Data == nil {
		return ""
	}
	return s.Data.Hash
}
