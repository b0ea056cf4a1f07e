package balance

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"near-intents/pkg/logger"
	"near-intents/pkg/metrics"
	"near-intents/pkg/tokens"
)

// Mapping holds raw balances keyed by defuse asset id. A missing key means unknown.
type Mapping map[string]*big.Int

// Clone returns a deep copy
func (m Mapping) Clone() Mapping {
	out := make(Mapping, len(m))
	for k, v := range m {
		if v != nil {
			out[k] = new(big.Int).Set(v)
		}
	}
	return out
}

// Get returns the balance and whether it is known
func (m Mapping) Get(assetID string) (*big.Int, bool) {
	v, ok := m[assetID]
	return v, ok && v != nil
}

// Reader reads one token balance for an account. A nil balance with a nil error
// means the balance could not be determined.
type Reader interface {
	Read(ctx context.Context, token tokens.BaseToken, account string) (*big.Int, error)
}

// ReaderFunc adapts a function to Reader
type ReaderFunc func(ctx context.Context, token tokens.BaseToken, account string) (*big.Int, error)

func (f ReaderFunc) Read(ctx context.Context, token tokens.BaseToken, account string) (*big.Int, error) {
	return f(ctx, token, account)
}

// Changed is emitted after a refresh that modified at least one balance
type Changed struct {
	Keys     []string
	Balances Mapping
}

// Config controls fetch concurrency
type Config struct {
	Concurrency int
	Spacing     time.Duration
}

// Aggregator fetches balances across chains under a shared limiter and keeps the
// merged mapping. Only keys whose value actually changed are reported.
type Aggregator struct {
	reader  Reader
	limiter *Limiter
	log     *logger.Logger

	mu       sync.RWMutex
	balances Mapping

	changes chan Changed
	refresh chan struct{}
}

// NewAggregator creates an aggregator reading through r
func NewAggregator(r Reader, cfg Config, log *logger.Logger) *Aggregator {
	if log == nil {
		log = logger.Nop()
	}
	return &Aggregator{
		reader:   r,
		limiter:  NewLimiter(cfg.Concurrency, cfg.Spacing),
		log:      log,
		balances: make(Mapping),
		changes:  make(chan Changed, 1),
		refresh:  make(chan struct{}, 1),
	}
}

// Balances returns a snapshot of the merged mapping
func (a *Aggregator) Balances() Mapping {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.balances.Clone()
}

// Changes delivers change notifications from Run
func (a *Aggregator) Changes() <-chan Changed {
	return a.changes
}

// RequestRefresh asks a running loop to refresh now. Extra requests coalesce.
func (a *Aggregator) RequestRefresh() {
	select {
	case a.refresh <- struct{}{}:
	default:
	}
}

// Fetch reads balances for list, merges them and returns the keys that changed.
// Individual read failures are logged and leave the previous value in place.
func (a *Aggregator) Fetch(ctx context.Context, account string, list []tokens.BaseToken) (Changed, error) {
	list = tokens.Dedupe(list)
	results := make([]*big.Int, len(list))

	g, gctx := errgroup.WithContext(ctx)
	for i, tok := range list {
		i, tok := i, tok
		g.Go(func() error {
			if err := a.limiter.Acquire(gctx); err != nil {
				return err
			}
			defer a.limiter.Release()

			bal, err := a.reader.Read(gctx, tok, account)
			if err != nil {
				if errors.Is(err, context.Canceled) {
					return err
				}
				metrics.BalanceFetches.WithLabelValues(tok.ChainName, "error").Inc()
				a.log.Errorf("[Balances] failed to read %s for %s: %v", tok.DefuseAssetID, account, err)
				return nil
			}
			if bal == nil {
				metrics.BalanceFetches.WithLabelValues(tok.ChainName, "unknown").Inc()
				return nil
			}
			metrics.BalanceFetches.WithLabelValues(tok.ChainName, "ok").Inc()
			results[i] = bal
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Changed{}, fmt.Errorf("fetch balances: %w", err)
	}

	fresh := make(Mapping, len(list))
	for i, tok := range list {
		if results[i] != nil {
			fresh[tok.DefuseAssetID] = results[i]
		}
	}

	a.mu.Lock()
	next := a.balances.Clone()
	for k, v := range fresh {
		next[k] = v
	}
	keys := Diff(a.balances, next)
	a.balances = next
	a.mu.Unlock()

	return Changed{Keys: keys, Balances: next.Clone()}, nil
}

// Run refreshes on every tick and on RequestRefresh until ctx is done.
// A Changed event is emitted only when a refresh altered some key.
func (a *Aggregator) Run(ctx context.Context, account string, list []tokens.BaseToken, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	a.RequestRefresh()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		case <-a.refresh:
		}

		changed, err := a.Fetch(ctx, account, list)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			a.log.Errorf("[Balances] refresh failed: %v", err)
			continue
		}
		if len(changed.Keys) == 0 {
			continue
		}

		select {
		case a.changes <- changed:
		case <-ctx.Done():
			return nil
		}
	}
}

// Diff returns the sorted keys whose value differs between prev and next,
// including keys present in only one of them
func Diff(prev, next Mapping) []string {
	var keys []string
	for k, nv := range next {
		pv, ok := prev[k]
		if !ok || pv == nil || nv == nil {
			if pv != nv {
				keys = append(keys, k)
			}
			continue
		}
		if pv.Cmp(nv) != 0 {
			keys = append(keys, k)
		}
	}
	for k := range prev {
		if _, ok := next[k]; !ok {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}
