package balance

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"near-intents/pkg/tokens"
)

var (
	tokA = tokens.BaseToken{DefuseAssetID: "nep141:a.near", Symbol: "A", Decimals: 6, ChainName: "near"}
	tokB = tokens.BaseToken{DefuseAssetID: "nep141:b.near", Symbol: "B", Decimals: 8, ChainName: "near"}
	tokC = tokens.BaseToken{DefuseAssetID: "nep141:c.near", Symbol: "C", Decimals: 18, ChainName: "near"}
)

type fakeReader struct {
	mu     sync.Mutex
	values map[string]*big.Int
	fail   map[string]error
	calls  int
}

func (f *fakeReader) Read(_ context.Context, tok tokens.BaseToken, _ string) (*big.Int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if err := f.fail[tok.DefuseAssetID]; err != nil {
		return nil, err
	}
	v, ok := f.values[tok.DefuseAssetID]
	if !ok {
		return nil, nil
	}
	return new(big.Int).Set(v), nil
}

func (f *fakeReader) set(id string, v int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.values[id] = big.NewInt(v)
}

func (f *fakeReader) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func TestFetchReportsOnlyChangedKeys(t *testing.T) {
	r := &fakeReader{values: map[string]*big.Int{
		tokA.DefuseAssetID: big.NewInt(100),
		tokB.DefuseAssetID: big.NewInt(200),
	}}
	agg := NewAggregator(r, Config{Concurrency: 5}, nil)
	ctx := context.Background()
	list := []tokens.BaseToken{tokA, tokB, tokC}

	changed, err := agg.Fetch(ctx, "alice.near", list)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(changed.Keys) != 2 {
		t.Fatalf("first fetch keys = %v", changed.Keys)
	}
	if _, known := changed.Balances.Get(tokC.DefuseAssetID); known {
		t.Errorf("unknown balance should stay absent")
	}

	changed, err = agg.Fetch(ctx, "alice.near", list)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(changed.Keys) != 0 {
		t.Errorf("no-op refresh reported %v", changed.Keys)
	}

	// balances are not monotonic
	r.set(tokA.DefuseAssetID, 40)
	changed, err = agg.Fetch(ctx, "alice.near", list)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(changed.Keys) != 1 || changed.Keys[0] != tokA.DefuseAssetID {
		t.Errorf("keys = %v", changed.Keys)
	}
	if got := agg.Balances()[tokA.DefuseAssetID].Int64(); got != 40 {
		t.Errorf("balance = %d", got)
	}
}

func TestFetchKeepsPreviousValueOnError(t *testing.T) {
	r := &fakeReader{values: map[string]*big.Int{tokA.DefuseAssetID: big.NewInt(5)}, fail: map[string]error{}}
	agg := NewAggregator(r, Config{Concurrency: 2}, nil)
	ctx := context.Background()

	if _, err := agg.Fetch(ctx, "bob", []tokens.BaseToken{tokA}); err != nil {
		t.Fatal(err)
	}
	r.fail[tokA.DefuseAssetID] = errors.New("rpc down")

	changed, err := agg.Fetch(ctx, "bob", []tokens.BaseToken{tokA})
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(changed.Keys) != 0 {
		t.Errorf("keys = %v", changed.Keys)
	}
	if agg.Balances()[tokA.DefuseAssetID].Int64() != 5 {
		t.Errorf("previous value lost")
	}
}

func TestFetchDedupesTokens(t *testing.T) {
	r := &fakeReader{values: map[string]*big.Int{tokA.DefuseAssetID: big.NewInt(1)}}
	agg := NewAggregator(r, Config{Concurrency: 1}, nil)
	if _, err := agg.Fetch(context.Background(), "x", []tokens.BaseToken{tokA, tokA, tokA}); err != nil {
		t.Fatal(err)
	}
	if r.calls != 1 {
		t.Errorf("reader called %d times", r.calls)
	}
}

func TestDiff(t *testing.T) {
	prev := Mapping{"a": big.NewInt(1), "b": big.NewInt(2), "gone": big.NewInt(3)}
	next := Mapping{"a": big.NewInt(1), "b": big.NewInt(5), "new": big.NewInt(0)}
	got := Diff(prev, next)
	want := []string{"b", "gone", "new"}
	if len(got) != len(want) {
		t.Fatalf("Diff = %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Diff[%d] = %s, want %s", i, got[i], want[i])
		}
	}
}

func TestLimiterCapsConcurrency(t *testing.T) {
	l := NewLimiter(2, 0)
	var inFlight, peak int32
	var wg sync.WaitGroup

	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := l.Acquire(context.Background()); err != nil {
				t.Error(err)
				return
			}
			n := atomic.AddInt32(&inFlight, 1)
			for {
				p := atomic.LoadInt32(&peak)
				if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			atomic.AddInt32(&inFlight, -1)
			l.Release()
		}()
	}
	wg.Wait()

	if peak > 2 {
		t.Errorf("peak concurrency %d", peak)
	}
}

func TestLimiterSpacesReleases(t *testing.T) {
	spacing := 40 * time.Millisecond
	l := NewLimiter(1, spacing)
	ctx := context.Background()

	if err := l.Acquire(ctx); err != nil {
		t.Fatal(err)
	}
	l.Release() // first release is immediate

	if err := l.Acquire(ctx); err != nil {
		t.Fatal(err)
	}
	start := time.Now()
	l.Release()
	if err := l.Acquire(ctx); err != nil {
		t.Fatal(err)
	}
	if elapsed := time.Since(start); elapsed < spacing/2 {
		t.Errorf("second release not spaced: %v", elapsed)
	}
	l.Release()
}

func TestLimiterAdmitsWaitersInOrder(t *testing.T) {
	spacing := 30 * time.Millisecond
	l := NewLimiter(1, spacing)
	ctx := context.Background()

	if err := l.Acquire(ctx); err != nil {
		t.Fatal(err)
	}

	const waiters = 5
	var mu sync.Mutex
	var order []int
	var admitted []time.Time
	var wg sync.WaitGroup

	for i := 0; i < waiters; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if err := l.Acquire(ctx); err != nil {
				t.Error(err)
				return
			}
			mu.Lock()
			order = append(order, i)
			admitted = append(admitted, time.Now())
			mu.Unlock()
			l.Release()
		}(i)
		// let waiter i queue up before the next one
		time.Sleep(10 * time.Millisecond)
	}

	l.Release()
	wg.Wait()

	if len(order) != waiters {
		t.Fatalf("admitted %d of %d", len(order), waiters)
	}
	for i, got := range order {
		if got != i {
			t.Fatalf("admission order = %v", order)
		}
	}
	for i := 1; i < len(admitted); i++ {
		if gap := admitted[i].Sub(admitted[i-1]); gap < spacing/2 {
			t.Errorf("waiter %d admitted %v after waiter %d", i, gap, i-1)
		}
	}
}

func TestLimiterAcquireHonoursContext(t *testing.T) {
	l := NewLimiter(1, 0)
	if err := l.Acquire(context.Background()); err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := l.Acquire(ctx); err == nil {
		t.Fatal("expected context error")
	}
}

func TestRunEmitsChanges(t *testing.T) {
	r := &fakeReader{values: map[string]*big.Int{tokA.DefuseAssetID: big.NewInt(1)}}
	agg := NewAggregator(r, Config{Concurrency: 1}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		_ = agg.Run(ctx, "x", []tokens.BaseToken{tokA}, time.Hour)
		close(done)
	}()

	select {
	case c := <-agg.Changes():
		if len(c.Keys) != 1 {
			t.Errorf("keys = %v", c.Keys)
		}
	case <-time.After(time.Second):
		t.Fatal("no change emitted")
	}

	r.set(tokA.DefuseAssetID, 2)
	agg.RequestRefresh()
	select {
	case c := <-agg.Changes():
		if c.Balances[tokA.DefuseAssetID].Int64() != 2 {
			t.Errorf("balance = %v", c.Balances[tokA.DefuseAssetID])
		}
	case <-time.After(time.Second):
		t.Fatal("no change emitted after refresh")
	}

	cancel()
	<-done
}

func TestRunSilentOnNoopRefresh(t *testing.T) {
	r := &fakeReader{values: map[string]*big.Int{tokA.DefuseAssetID: big.NewInt(7)}}
	agg := NewAggregator(r, Config{Concurrency: 1}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() { _ = agg.Run(ctx, "x", []tokens.BaseToken{tokA}, time.Hour) }()

	select {
	case <-agg.Changes():
	case <-time.After(time.Second):
		t.Fatal("no initial change emitted")
	}

	agg.RequestRefresh()
	deadline := time.After(time.Second)
	for r.callCount() < 2 {
		select {
		case <-deadline:
			t.Fatal("refresh did not run")
		case <-time.After(5 * time.Millisecond):
		}
	}
	agg.RequestRefresh()

	select {
	case c := <-agg.Changes():
		t.Fatalf("unchanged balances emitted %v", c.Keys)
	case <-time.After(100 * time.Millisecond):
	}
	if got := agg.Balances()[tokA.DefuseAssetID].Int64(); got != 7 {
		t.Errorf("balance = %d", got)
	}
}
