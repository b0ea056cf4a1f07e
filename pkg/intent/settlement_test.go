package intent

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"near-intents/config"
	"near-intents/pkg/relay"
)

type scriptedStatus struct {
	mu        sync.Mutex
	responses []relay.StatusResult
	errs      map[int]error
	calls     int
}

func (s *scriptedStatus) GetStatus(ctx context.Context, intentHash string) (relay.StatusResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.calls
	s.calls++
	if err, ok := s.errs[i]; ok {
		return relay.StatusResult{}, err
	}
	if i >= len(s.responses) {
		return s.responses[len(s.responses)-1], nil
	}
	return s.responses[i], nil
}

func status(s, hash string) relay.StatusResult {
	r := relay.StatusResult{IntentHash: "ih", Status: s}
	if hash != "" {
		r.Data = &struct {
			Hash string `json:"hash"`
		}{Hash: hash}
	}
	return r
}

var settleCfg = config.SettlementConfig{Interval: time.Millisecond, NotFoundThreshold: 3}

func TestSettlementNotFoundThreeTimes(t *testing.T) {
	s := &scriptedStatus{responses: []relay.StatusResult{
		status(relay.StatusNotFoundOrNotValid, ""),
		status(relay.StatusNotFoundOrNotValid, ""),
		status(relay.StatusNotFoundOrNotValid, ""),
		status(relay.StatusSettled, "never"),
	}}
	res := WaitForSettlement(context.Background(), s, "ih", settleCfg, nil)
	if res.Status != SettlementNotValid || s.calls != 3 {
		t.Fatalf("result = %+v after %d calls", res, s.calls)
	}
}

func TestSettlementNotFoundThenSettled(t *testing.T) {
	s := &scriptedStatus{responses: []relay.StatusResult{
		status(relay.StatusNotFoundOrNotValid, ""),
		status(relay.StatusSettled, "0xabc"),
	}}
	res := WaitForSettlement(context.Background(), s, "ih", settleCfg, nil)
	if res.Status != SettlementSettled || res.TxHash != "0xabc" {
		t.Fatalf("result = %+v", res)
	}
}

func TestSettlementIntermediateStatusResetsCount(t *testing.T) {
	s := &scriptedStatus{responses: []relay.StatusResult{
		status(relay.StatusNotFoundOrNotValid, ""),
		status(relay.StatusNotFoundOrNotValid, ""),
		status(relay.StatusPending, ""),
		status(relay.StatusNotFoundOrNotValid, ""),
		status(relay.StatusNotFoundOrNotValid, ""),
		status(relay.StatusTxBroadcasted, "0xdef"),
		status(relay.StatusSettled, ""),
	}}
	res := WaitForSettlement(context.Background(), s, "ih", settleCfg, nil)
	if res.Status != SettlementSettled {
		t.Fatalf("result = %+v", res)
	}
	if res.TxHash != "0xdef" {
		t.Errorf("broadcast tx hash lost: %+v", res)
	}
}

func TestSettlementSurvivesRequestErrors(t *testing.T) {
	s := &scriptedStatus{
		responses: []relay.StatusResult{status(relay.StatusSettled, "h"), status(relay.StatusSettled, "h"), status(relay.StatusSettled, "h")},
		errs:      map[int]error{0: errors.New("502"), 1: errors.New("502")},
	}
	res := WaitForSettlement(context.Background(), s, "ih", settleCfg, nil)
	if res.Status != SettlementSettled || s.calls != 3 {
		t.Fatalf("result = %+v after %d calls", res, s.calls)
	}
}

func TestSettlementCancelled(t *testing.T) {
	s := &scriptedStatus{responses: []relay.StatusResult{status(relay.StatusPending, "")}}
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	res := WaitForSettlement(ctx, s, "ih", settleCfg, nil)
	if res.Status != SettlementCancelled {
		t.Fatalf("result = %+v", res)
	}
}
