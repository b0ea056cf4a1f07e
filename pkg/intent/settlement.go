package intent

import (
	"context"
	"time"

	"near-intents/config"
	"near-intents/pkg/logger"
	"near-intents/pkg/metrics"
	"near-intents/pkg/relay"
)

// StatusGetter reads the settlement status of a published intent
type StatusGetter interface {
	GetStatus(ctx context.Context, intentHash string) (relay.StatusResult, error)
}

// SettlementStatus is the final state reported by WaitForSettlement
type SettlementStatus string

const (
	SettlementSettled  SettlementStatus = "SETTLED"
	SettlementNotValid SettlementStatus = "NOT_FOUND_OR_NOT_VALID"
	// SettlementCancelled means the caller stopped waiting
	SettlementCancelled SettlementStatus = "CANCELLED"
)

// Settlement is the outcome of WaitForSettlement. TxHash is the last seen
// transaction hash, if any.
type Settlement struct {
	Status SettlementStatus `json:"status"`
	TxHash string           `json:"tx_hash,omitempty"`
}

// WaitForSettlement polls the relay until the intent settles or is reported
// missing NotFoundThreshold times in a row. It has no deadline of its own:
// cancelling ctx stops it and yields SettlementCancelled without an error.
// Request errors are logged and polling continues.
func WaitForSettlement(ctx context.Context, getter StatusGetter, intentHash string, cfg config.SettlementConfig, log *logger.Logger) Settlement {
	if log == nil {
		log = logger.Nop()
	}
	threshold := cfg.NotFoundThreshold
	if threshold < 1 {
		threshold = 1
	}

	var txHash string
	notFound := 0
	for {
		if ctx.Err() != nil {
			return Settlement{Status: SettlementCancelled, TxHash: txHash}
		}

		res, err := getter.GetStatus(ctx, intentHash)
		switch {
		case err != nil:
			if ctx.Err() != nil {
				return Settlement{Status: SettlementCancelled, TxHash: txHash}
			}
			metrics.SettlementPolls.WithLabelValues("error").Inc()
			log.Warnf("[Settlement] status of %s: %v", intentHash, err)

		default:
			metrics.SettlementPolls.WithLabelValues(res.Status).Inc()
			if h := res.TxHash(); h != "" {
				txHash = h
			}
			if res.Status == relay.StatusNotFoundOrNotValid {
				notFound++
				if notFound >= threshold {
					return Settlement{Status: SettlementNotValid, TxHash: txHash}
				}
			} else {
				notFound = 0
			}
			if res.Status == relay.StatusSettled {
				return Settlement{Status: SettlementSettled, TxHash: txHash}
			}
		}

		t := time.NewTimer(cfg.Interval)
		select {
		case <-ctx.Done():
			t.Stop()
			return Settlement{Status: SettlementCancelled, TxHash: txHash}
		case <-t.C:
		}
	}
}
