// Package app wires the relay, catalog, balance and quote components together
// and resolves user supplied token references into typed requests.
package app

import (
	"context"
	"fmt"
	"strings"

	"near-intents/config"
	"near-intents/pkg/balance"
	"near-intents/pkg/chain"
	"near-intents/pkg/client"
	"near-intents/pkg/logger"
	"near-intents/pkg/quote"
	"near-intents/pkg/relay"
	"near-intents/pkg/tokens"
	"near-intents/pkg/tokenvalue"
	"near-intents/pkg/types"
	"near-intents/pkg/withdraw"
)

// Quoter is the subset of quote.Service used here
type Quoter interface {
	QueryQuote(ctx context.Context, req quote.Request) (quote.AggregatedQuote, error)
}

// BalanceFetcher refreshes balances for an account. *balance.Aggregator implements it.
type BalanceFetcher interface {
	Fetch(ctx context.Context, account string, list []tokens.BaseToken) (balance.Changed, error)
}

// App holds the long-lived collaborators shared by the CLI and the HTTP API
type App struct {
	Config   *config.Config
	Log      *logger.Logger
	Registry *tokens.Registry
	Relay    *relay.Client
	Near     *chain.NearClient
	Quotes   Quoter
	Balances BalanceFetcher
}

// New dials the relay, loads the token catalog and builds the intents balance
// aggregator. Close releases the relay connection.
func New(ctx context.Context, cfg *config.Config, log *logger.Logger) (*App, error) {
	if log == nil {
		log = logger.Nop()
	}

	registry, err := client.NewOneClickClient(cfg.OneClick).LoadRegistry(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load token catalog: %w", err)
	}
	log.Debugf("[App] loaded %d tokens", registry.Len())

	rc, err := relay.Dial(ctx, cfg.Relay.URL, log)
	if err != nil {
		return nil, err
	}

	near := chain.NewNearClient(cfg.Near.RPCUrl)
	agg := balance.NewAggregator(
		chain.NewIntentsBalanceReader(near, cfg.Near.VerifyingContract),
		balance.Config{Concurrency: cfg.Balance.Concurrency, Spacing: cfg.Balance.Spacing},
		log,
	)

	return &App{
		Config:   cfg,
		Log:      log,
		Registry: registry,
		Relay:    rc,
		Near:     near,
		Quotes:   quote.NewService(rc, cfg.Relay, log),
		Balances: agg,
	}, nil
}

// Close releases network resources
func (a *App) Close() {
	if a.Relay != nil {
		a.Relay.Close()
	}
}

// ResolveToken looks up a single reference
func (a *App) ResolveToken(ref types.TokenRef) (tokens.Token, error) {
	return a.Registry.Lookup(ref.Ref, ref.Chain)
}

// ResolveBaseToken looks up a reference that must name exactly one chain's token
func (a *App) ResolveBaseToken(ref types.TokenRef) (tokens.BaseToken, error) {
	t, err := a.ResolveToken(ref)
	if err != nil {
		return tokens.BaseToken{}, err
	}
	base, ok := t.(tokens.BaseToken)
	if !ok {
		chains := make([]string, 0, len(t.Underlying()))
		for _, u := range t.Underlying() {
			chains = append(chains, u.ChainName)
		}
		return tokens.BaseToken{}, fmt.Errorf("token '%s' exists on several chains (%s), pick one with %s@<chain>",
			ref.Ref, strings.Join(chains, ", "), ref.Ref)
	}
	return base, nil
}

// ResolveTokens flattens every reference into its underlying base tokens,
// keeping the order given and dropping duplicates
func (a *App) ResolveTokens(refs []types.TokenRef) ([]tokens.BaseToken, error) {
	list := make([]tokens.Token, 0, len(refs))
	for _, ref := range refs {
		t, err := a.ResolveToken(ref)
		if err != nil {
			return nil, err
		}
		list = append(list, t)
	}
	return tokens.Flatten(list), nil
}

// FetchBalances reads intents balances for account. An empty account yields an
// empty mapping, which makes the quote service fall back to a single request.
func (a *App) FetchBalances(ctx context.Context, account string, list []tokens.BaseToken) (balance.Mapping, error) {
	if account == "" {
		return balance.Mapping{}, nil
	}
	changed, err := a.Balances.Fetch(ctx, account, list)
	if err != nil {
		return nil, err
	}
	return changed.Balances, nil
}

// QuoteRequest builds a quote.Request for a swap of amount across tokensIn
func (a *App) QuoteRequest(ctx context.Context, account string, req types.SwapRequest) (quote.Request, error) {
	in, err := a.ResolveTokens(req.TokensIn)
	if err != nil {
		return quote.Request{}, err
	}
	out, err := a.ResolveBaseToken(req.TokenOut)
	if err != nil {
		return quote.Request{}, err
	}
	amount, err := tokenvalue.Parse(req.Amount, tokens.MaxDecimals(in))
	if err != nil {
		return quote.Request{}, err
	}
	balances, err := a.FetchBalances(ctx, account, append(append([]tokens.BaseToken(nil), in...), out))
	if err != nil {
		return quote.Request{}, err
	}

	return quote.Request{
		TokensIn: in,
		TokenOut: out,
		AmountIn: amount,
		Balances: balances,
	}, nil
}

// WithdrawPlan plans a withdrawal of amount of token as tokenOut for account
func (a *App) WithdrawPlan(ctx context.Context, account string, req types.WithdrawRequest) (*withdraw.Spec, error) {
	if account == "" {
		return nil, fmt.Errorf("account is required")
	}
	tokenIn, err := a.ResolveToken(req.Token)
	if err != nil {
		return nil, err
	}
	out := req.TokenOut
	if out.Ref == "" {
		out = req.Token
	}
	tokenOut, err := a.ResolveBaseToken(out)
	if err != nil {
		return nil, err
	}

	underlying := tokenIn.Underlying()
	amount, err := tokenvalue.Parse(req.Amount, tokens.MaxDecimals(underlying))
	if err != nil {
		return nil, err
	}
	balances, err := a.FetchBalances(ctx, account, append(append([]tokens.BaseToken(nil), underlying...), tokenOut))
	if err != nil {
		return nil, err
	}

	spec := withdraw.GetRequiredSwapAmount(tokenIn, tokenOut, amount, balances)
	if spec == nil {
		return nil, fmt.Errorf("balances for %s are not available yet", tokenIn.ID())
	}
	return spec, nil
}
