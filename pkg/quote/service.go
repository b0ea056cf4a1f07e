package quote

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sort"

	"golang.org/x/sync/errgroup"

	"near-intents/config"
	"near-intents/pkg/balance"
	"near-intents/pkg/logger"
	"near-intents/pkg/metrics"
	"near-intents/pkg/relay"
	"near-intents/pkg/tokens"
	"near-intents/pkg/tokenvalue"
)

// Quoter requests quotes from the solver relay
type Quoter interface {
	Quote(ctx context.Context, params relay.QuoteParams) (relay.QuoteResult, error)
}

// Request describes a conversion of AmountIn, paid with any of TokensIn, into TokenOut
type Request struct {
	TokensIn []tokens.BaseToken
	TokenOut tokens.BaseToken
	AmountIn tokenvalue.TokenValue
	Balances balance.Mapping
}

// Service splits requests across source tokens and aggregates the answers
type Service struct {
	relay Quoter
	cfg   config.RelayConfig
	log   *logger.Logger
}

// NewService creates a quote service
func NewService(q Quoter, cfg config.RelayConfig, log *logger.Logger) *Service {
	if log == nil {
		log = logger.Nop()
	}
	return &Service{relay: q, cfg: cfg, log: log}
}

// QueryQuote quotes req against the relay. When the balances cannot cover the
// amount a single indicative quote for the whole amount is requested against
// the first token; otherwise one request per non-zero split runs in parallel.
func (s *Service) QueryQuote(ctx context.Context, req Request) (AggregatedQuote, error) {
	agg, err := s.queryQuote(ctx, req)
	kind := "ok"
	if err != nil {
		var qe *Error
		var me *AmountMismatchError
		switch {
		case errors.As(err, &qe):
			kind = string(qe.Kind)
		case errors.As(err, &me):
			kind = "amount_mismatch"
		default:
			kind = "error"
		}
	}
	metrics.QuoteOutcomes.WithLabelValues(kind).Inc()
	return agg, err
}

func (s *Service) queryQuote(ctx context.Context, req Request) (AggregatedQuote, error) {
	req.AmountIn = tokenvalue.New(req.AmountIn.Amount, req.AmountIn.Decimals)
	if len(req.TokensIn) == 0 {
		return AggregatedQuote{}, &AmountMismatchError{Requested: req.AmountIn, Remaining: req.AmountIn}
	}

	var amounts map[string]*big.Int
	if totalBalance(req.TokensIn, req.AmountIn.Decimals, req.Balances).Cmp(req.AmountIn.Amount) < 0 {
		first := req.TokensIn[0]
		exact := req.AmountIn.Rescale(first.Decimals).Amount
		if exact.Sign() <= 0 {
			return AggregatedQuote{}, &AmountMismatchError{Requested: req.AmountIn, Remaining: req.AmountIn}
		}
		amounts = map[string]*big.Int{first.DefuseAssetID: exact}
		s.log.Debugf("[Quote] balances do not cover %s, requesting indicative quote for %s", req.AmountIn.Format(), first)
	} else {
		var err error
		amounts, err = CalculateSplitAmounts(req.TokensIn, req.AmountIn, req.Balances)
		if err != nil {
			return AggregatedQuote{}, err
		}
	}

	// keep requests in tokensIn order so aggregation is deterministic
	ids := make([]string, 0, len(amounts))
	for id := range amounts {
		ids = append(ids, id)
	}
	order := indexOf(req.TokensIn)
	sort.Slice(ids, func(i, j int) bool { return order[ids[i]] < order[ids[j]] })

	results := make([]relay.QuoteResult, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	for i, id := range ids {
		i, id := i, id
		params := relay.QuoteParams{
			AssetIn:       id,
			AssetOut:      req.TokenOut.DefuseAssetID,
			ExactAmountIn: amounts[id].String(),
			MinDeadlineMs: s.cfg.QuoteMinDeadline.Milliseconds(),
		}
		g.Go(func() error {
			rctx, cancel := s.requestContext(gctx)
			defer cancel()
			res, err := s.relay.Quote(rctx, params)
			if err != nil {
				return fmt.Errorf("failed to quote %s: %w", id, err)
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return AggregatedQuote{}, err
	}

	return AggregateQuotes(results)
}

func (s *Service) requestContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.cfg.QuoteTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.cfg.QuoteTimeout)
}

func indexOf(list []tokens.BaseToken) map[string]int {
	out := make(map[string]int, len(list))
	for i, t := range list {
		if _, ok := out[t.DefuseAssetID]; !ok {
			out[t.DefuseAssetID] = i
		}
	}
	return out
}
