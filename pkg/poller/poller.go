// Package poller keeps re-quoting the trade that is currently being edited.
//
// Every NewQuoteInput cancels the previous cycle and starts a new one that
// queries, publishes the result, sleeps and repeats. A PauseInput stops the
// current cycle and is itself reported as an update, so consumers can tell
// "no data yet" apart from "idle on purpose".
package poller

import (
	"context"
	"errors"
	"sync"
	"time"

	"near-intents/config"
	"near-intents/pkg/logger"
	"near-intents/pkg/metrics"
	"near-intents/pkg/quote"
)

// Querier produces an aggregated quote for a request
type Querier interface {
	QueryQuote(ctx context.Context, req quote.Request) (quote.AggregatedQuote, error)
}

// Input drives the poller: NewQuoteInput or PauseInput
type Input interface {
	isInput()
}

// NewQuoteInput replaces the trade being quoted
type NewQuoteInput struct {
	Request quote.Request
}

// PauseInput stops polling until the next NewQuoteInput
type PauseInput struct{}

func (NewQuoteInput) isInput() {}
func (PauseInput) isInput()    {}

// Update is emitted by the poller: QuoteUpdate or Paused
type Update interface {
	isUpdate()
}

// QuoteUpdate carries a fresh aggregate or a quote-level failure
// (*quote.Error, *quote.AmountMismatchError)
type QuoteUpdate struct {
	Quote       quote.AggregatedQuote
	Err         error
	RequestedAt time.Time
}

// Paused confirms that a PauseInput was handled
type Paused struct{}

func (QuoteUpdate) isUpdate() {}
func (Paused) isUpdate()      {}

type cycle struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// Poller re-quotes the latest input until paused or superseded
type Poller struct {
	q   Querier
	cfg config.PollerConfig
	log *logger.Logger
	now func() time.Time

	inputs  chan Input
	updates chan Update

	mu             sync.Mutex
	lastPropagated time.Time
}

// New creates a poller. Call Run to start it.
func New(q Querier, cfg config.PollerConfig, log *logger.Logger) *Poller {
	if log == nil {
		log = logger.Nop()
	}
	return &Poller{
		q:       q,
		cfg:     cfg,
		log:     log,
		now:     time.Now,
		inputs:  make(chan Input),
		updates: make(chan Update, 1),
	}
}

// Updates delivers quote updates. It is closed when Run returns.
// Consumers must keep draining it while the poller runs.
func (p *Poller) Updates() <-chan Update {
	return p.updates
}

// Send hands an input to the running poller
func (p *Poller) Send(ctx context.Context, in Input) error {
	select {
	case p.inputs <- in:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run processes inputs until ctx is cancelled
func (p *Poller) Run(ctx context.Context) error {
	defer close(p.updates)

	var current *cycle
	stop := func() {
		if current != nil {
			current.cancel()
			<-current.done
			current = nil
		}
	}
	defer stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case in := <-p.inputs:
			stop()
			switch in := in.(type) {
			case NewQuoteInput:
				cctx, cancel := context.WithCancel(ctx)
				current = &cycle{cancel: cancel, done: make(chan struct{})}
				go p.loop(cctx, in.Request, current.done)
			case PauseInput:
				metrics.PollerUpdates.WithLabelValues("paused").Inc()
				select {
				case p.updates <- Paused{}:
				case <-ctx.Done():
					return ctx.Err()
				}
			}
		}
	}
}

func (p *Poller) loop(ctx context.Context, req quote.Request, done chan struct{}) {
	defer close(done)

	for {
		requestedAt := p.now()
		rctx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
		agg, err := p.q.QueryQuote(rctx, req)
		cancel()

		if ctx.Err() != nil {
			return
		}

		switch {
		case err == nil || isQuoteError(err):
			if !p.propagate(ctx, QuoteUpdate{Quote: agg, Err: err, RequestedAt: requestedAt}) {
				return
			}
		default:
			metrics.PollerUpdates.WithLabelValues("error").Inc()
			p.log.Warnf("[Poller] quote request failed: %v", err)
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(p.cfg.Delay):
		}
	}
}

// propagate publishes u unless a newer request was already published.
// It reports false when ctx was cancelled while waiting.
func (p *Poller) propagate(ctx context.Context, u QuoteUpdate) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if u.RequestedAt.Before(p.lastPropagated) {
		metrics.PollerUpdates.WithLabelValues("stale").Inc()
		p.log.Debugf("[Poller] dropping stale quote requested at %s", u.RequestedAt)
		return true
	}

	select {
	case p.updates <- u:
		p.lastPropagated = u.RequestedAt
		metrics.PollerUpdates.WithLabelValues("propagated").Inc()
		return true
	case <-ctx.Done():
		return false
	}
}

func isQuoteError(err error) bool {
	var qe *quote.Error
	var me *quote.AmountMismatchError
	return errors.As(err, &qe) || errors.As(err, &me)
}
