package chain

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"time"

	"near-intents/pkg/tokens"
)

// NearClient performs read-only view calls against a NEAR JSON-RPC endpoint
type NearClient struct {
	url  string
	http *http.Client
}

// NewNearClient creates a client for rpcURL
func NewNearClient(rpcURL string) *NearClient {
	return &NearClient{
		url:  rpcURL,
		http: &http.Client{Timeout: 15 * time.Second},
	}
}

type nearRequest struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      string      `json:"id"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params"`
}

type nearResponse struct {
	Result *struct {
		Result []int  `json:"result"`
		Error  string `json:"error"`
	} `json:"result"`
	Error *struct {
		Name    string          `json:"name"`
		Message string          `json:"message"`
		Cause   json.RawMessage `json:"cause"`
		Data    json.RawMessage `json:"data"`
	} `json:"error"`
}

// ViewFunction calls a view method and returns the raw JSON bytes it produced
func (c *NearClient) ViewFunction(ctx context.Context, contract, method string, args interface{}) ([]byte, error) {
	argsJSON, err := json.Marshal(args)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal args: %w", err)
	}

	body, err := json.Marshal(nearRequest{
		JSONRPC: "2.0",
		ID:      "dontcare",
		Method:  "query",
		Params: map[string]string{
			"request_type": "call_function",
			"finality":     "optimistic",
			"account_id":   contract,
			"method_name":  method,
			"args_base64":  base64.StdEncoding.EncodeToString(argsJSON),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	httpResp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("near rpc %s.%s: %w", contract, method, err)
	}
	defer httpResp.Body.Close()

	raw, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		return nil, fmt.Errorf("near rpc returned status code %d: %s", httpResp.StatusCode, string(raw))
	}

	var resp nearResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if resp.Error != nil {
		return nil, fmt.Errorf("near rpc error %s: %s", resp.Error.Name, resp.Error.Message)
	}
	if resp.Result == nil {
		return nil, fmt.Errorf("near rpc returned empty result")
	}
	if resp.Result.Error != "" {
		return nil, fmt.Errorf("view call %s.%s failed: %s", contract, method, resp.Result.Error)
	}

	out := make([]byte, len(resp.Result.Result))
	for i, b := range resp.Result.Result {
		out[i] = byte(b)
	}
	return out, nil
}

// HasPublicKey asks the intents contract whether publicKey is registered for accountID
func (c *NearClient) HasPublicKey(ctx context.Context, contract, accountID, publicKey string) (bool, error) {
	raw, err := c.ViewFunction(ctx, contract, "has_public_key", map[string]string{
		"account_id": accountID,
		"public_key": publicKey,
	})
	if err != nil {
		return false, err
	}
	var has bool
	if err := json.Unmarshal(raw, &has); err != nil {
		return false, fmt.Errorf("failed to decode has_public_key result: %w", err)
	}
	return has, nil
}

// IntentsBalanceReader reads balances held inside the intents contract
type IntentsBalanceReader struct {
	client   *NearClient
	contract string
}

// NewIntentsBalanceReader reads balances from the given verifying contract
func NewIntentsBalanceReader(client *NearClient, contract string) *IntentsBalanceReader {
	return &IntentsBalanceReader{client: client, contract: contract}
}

// Read returns the multi-token balance of token for account
func (r *IntentsBalanceReader) Read(ctx context.Context, token tokens.BaseToken, account string) (*big.Int, error) {
	raw, err := r.client.ViewFunction(ctx, r.contract, "mt_batch_balance_of", map[string]interface{}{
		"account_id": account,
		"token_ids":  []string{token.DefuseAssetID},
	})
	if err != nil {
		return nil, err
	}

	var amounts []string
	if err := json.Unmarshal(raw, &amounts); err != nil {
		return nil, fmt.Errorf("failed to decode mt_batch_balance_of result: %w", err)
	}
	if len(amounts) != 1 {
		return nil, nil
	}

	amount, ok := new(big.Int).SetString(amounts[0], 10)
	if !ok {
		return nil, fmt.Errorf("invalid balance %q", amounts[0])
	}
	return amount, nil
}
