package client

import (
	"context"
	"fmt"
	"strings"

	oneclick "github.com/defuse-protocol/one-click-sdk-go"

	"near-intents/config"
	"near-intents/pkg/tokens"
)

// OneClickClient wraps the 1Click SDK. It is used as the token catalog: every
// asset it lists can be traded through the intents contract.
type OneClickClient struct {
	client   *oneclick.APIClient
	jwtToken string
}

// NewOneClickClient creates a new 1Click API client
func NewOneClickClient(cfg config.OneClickConfig) *OneClickClient {
	sdkConfig := oneclick.NewConfiguration()
	if cfg.BaseURL != "" {
		sdkConfig.Servers = oneclick.ServerConfigurations{{URL: cfg.BaseURL}}
	}

	return &OneClickClient{
		client:   oneclick.NewAPIClient(sdkConfig),
		jwtToken: cfg.JWTToken,
	}
}

func (c *OneClickClient) authContext(ctx context.Context) context.Context {
	if c.jwtToken == "" {
		return ctx
	}
	return context.WithValue(ctx, oneclick.ContextAccessToken, c.jwtToken)
}

// GetSupportedTokens retrieves all supported tokens
func (c *OneClickClient) GetSupportedTokens(ctx context.Context) ([]oneclick.TokenResponse, error) {
	resp, httpResp, err := c.client.OneClickAPI.GetTokens(c.authContext(ctx)).Execute()
	if err != nil {
		return nil, fmt.Errorf("failed to get tokens: %w", err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != 200 {
		return nil, fmt.Errorf("API returned status code %d", httpResp.StatusCode)
	}

	return resp, nil
}

// LoadRegistry fetches the catalog and indexes it for lookups by id or symbol
func (c *OneClickClient) LoadRegistry(ctx context.Context) (*tokens.Registry, error) {
	list, err := c.GetSupportedTokens(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]tokens.BaseToken, 0, len(list))
	for _, t := range list {
		if t.GetAssetId() == "" {
			continue
		}
		out = append(out, tokens.BaseToken{
			DefuseAssetID: t.GetAssetId(),
			Symbol:        strings.ToUpper(t.GetSymbol()),
			Name:          t.GetSymbol(),
			Decimals:      int(t.GetDecimals()),
			ChainName:     strings.ToLower(t.GetBlockchain()),
		})
	}
	return tokens.NewRegistry(out), nil
}
