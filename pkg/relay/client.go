package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/rpc"

	"near-intents/pkg/logger"
	"near-intents/pkg/metrics"
)

// Client talks to the solver relay over JSON-RPC 2.0
type Client struct {
	rpc *rpc.Client
	log *logger.Logger
}

// Dial connects to the relay at url
func Dial(ctx context.Context, url string, log *logger.Logger) (*Client, error) {
	if log == nil {
		log = logger.Nop()
	}
	c, err := rpc.DialOptions(ctx, url, rpc.WithHTTPClient(&http.Client{Timeout: 30 * time.Second}))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to solver relay: %w", err)
	}
	return &Client{rpc: c, log: log}, nil
}

// Quote requests solver quotes for an exact input amount
func (c *Client) Quote(ctx context.Context, params QuoteParams) (QuoteResult, error) {
	start := time.Now()
	var raw json.RawMessage
	err := c.rpc.CallContext(ctx, &raw, "quote", params)
	if err != nil {
		metrics.QuoteRequestDuration.WithLabelValues("error").Observe(time.Since(start).Seconds())
		return nil, fmt.Errorf("quote %s -> %s: %w", params.AssetIn, params.AssetOut, err)
	}
	metrics.QuoteRequestDuration.WithLabelValues("ok").Observe(time.Since(start).Seconds())

	res, err := DecodeQuoteResult(raw)
	if err != nil {
		return nil, err
	}
	c.log.Debugf("[Relay] quote %s -> %s amount=%s", params.AssetIn, params.AssetOut, params.ExactAmountIn)
	return res, nil
}

// PublishIntent submits a signed intent together with the quote hashes it fills
func (c *Client) PublishIntent(ctx context.Context, signed MultiPayload, quoteHashes []string) (PublishResult, error) {
	if quoteHashes == nil {
		quoteHashes = []string{}
	}
	var res PublishResult
	err := c.rpc.CallContext(ctx, &res, "publish_intent", PublishParams{
		QuoteHashes: quoteHashes,
		SignedData:  signed,
	})
	if err != nil {
		return PublishResult{}, fmt.Errorf("publish_intent: %w", err)
	}
	return res, nil
}

// GetStatus returns the settlement status of a published intent
func (c *Client) GetStatus(ctx context.Context, intentHash string) (StatusResult, error) {
	var res StatusResult
	err := c.rpc.CallContext(ctx, &res, "get_status", map[string]string{"intent_hash": intentHash})
	if err != nil {
		return StatusResult{}, fmt.Errorf("get_status: %w", err)
	}
	return res, nil
}

// Close releases the connection
func (c *Client) Close() {
	c.rpc.Close()
}
