package feed

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/rmarchant/polyscout/internal/book"
	"github.com/rmarchant/polyscout/internal/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// scriptConn serves a fixed update script, then signals exhaustion and either
// fails with err or blocks until ctx cancellation.
type scriptConn struct {
	updates []domain.BookUpdate
	err     error

	mu        sync.Mutex
	i         int
	once      sync.Once
	exhausted chan struct{}
}

func newScriptConn(err error, updates ...domain.BookUpdate) *scriptConn {
	return &scriptConn{updates: updates, err: err, exhausted: make(chan struct{})}
}

func (c *scriptConn) Next(ctx context.Context) (domain.BookUpdate, error) {
	c.mu.Lock()
	if c.i < len(c.updates) {
		u := c.updates[c.i]
		c.i++
		c.mu.Unlock()
		return u, nil
	}
	c.mu.Unlock()

	c.once.Do(func() { close(c.exhausted) })
	if c.err != nil {
		return domain.BookUpdate{}, c.err
	}
	<-ctx.Done()
	return domain.BookUpdate{}, ctx.Err()
}

func (c *scriptConn) Close() error {
	c.once.Do(func() { close(c.exhausted) })
	return nil
}

// scriptDialer hands out conns in order; once exhausted it blocks on ctx.
type scriptDialer struct {
	mu    sync.Mutex
	conns []Conn
	dials int
}

func (d *scriptDialer) Dial(ctx context.Context, tokenIDs []string) (Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dials++
	if len(d.conns) == 0 {
		return nil, errors.New("no more conns")
	}
	conn := d.conns[0]
	d.conns = d.conns[1:]
	return conn, nil
}

// fakeSnaps serves canned snapshots and counts fetches per token.
type fakeSnaps struct {
	mu      sync.Mutex
	snaps   map[string]domain.BookSnapshot
	fetches map[string]int
}

func newFakeSnaps() *fakeSnaps {
	return &fakeSnaps{
		snaps:   make(map[string]domain.BookSnapshot),
		fetches: make(map[string]int),
	}
}

func (f *fakeSnaps) set(token string, ask float64, seq uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.snaps[token] = domain.BookSnapshot{TokenID: token, BestAsk: ask, Seq: seq, At: time.Now()}
}

func (f *fakeSnaps) FetchBook(ctx context.Context, tokenID string) (domain.BookSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetches[tokenID]++
	snap, ok := f.snaps[tokenID]
	if !ok {
		return domain.BookSnapshot{}, domain.ErrNotFound
	}
	return snap, nil
}

func (f *fakeSnaps) fetchCount(token string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fetches[token]
}

func delta(token string, ask float64, seq uint64) domain.BookUpdate {
	return domain.BookUpdate{Kind: domain.BookUpdateDelta, TokenID: token, BestAsk: ask, Seq: seq, At: time.Now()}
}

func testConfig() Config {
	return Config{
		ReconnectBaseWait: 5 * time.Millisecond,
		ReconnectMaxWait:  20 * time.Millisecond,
		SnapshotTimeout:   time.Second,
	}
}

func twoTokenSet() domain.OutcomeSet {
	return domain.OutcomeSet{
		ID:      "ev1:m1",
		EventID: "ev1",
		Outcomes: []domain.Outcome{
			{TokenID: "tok-a", Label: "A"},
			{TokenID: "tok-b", Label: "B"},
		},
	}
}

func waitFor(t *testing.T, ch <-chan struct{}, what string) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for %s", what)
	}
}

func TestSubscriptionSeedsAndAppliesDeltas(t *testing.T) {
	cache := book.NewCache()
	snaps := newFakeSnaps()
	snaps.set("tok-a", 0.50, 4)
	snaps.set("tok-b", 0.50, 4)

	conn := newScriptConn(nil,
		delta("tok-a", 0.48, 5),
		delta("tok-b", 0.47, 5),
	)
	dialer := &scriptDialer{conns: []Conn{conn}}

	var mu sync.Mutex
	var changed []string
	onChange := func(tokenID string) {
		mu.Lock()
		changed = append(changed, tokenID)
		mu.Unlock()
	}

	sup := NewSupervisor(dialer, snaps, cache, onChange, testConfig(), discardLogger())
	defer sup.Close()

	sup.Subscribe(twoTokenSet())
	waitFor(t, conn.exhausted, "script drain")
	sup.Close()

	a, ok := cache.Read("tok-a")
	if !ok || a.BestAsk != 0.48 || a.Seq != 5 {
		t.Errorf("tok-a = %+v, want ask 0.48 seq 5", a)
	}
	b, _ := cache.Read("tok-b")
	if b.BestAsk != 0.47 {
		t.Errorf("tok-b = %+v, want ask 0.47", b)
	}

	mu.Lock()
	defer mu.Unlock()
	// 2 seeds + 2 deltas.
	if len(changed) != 4 {
		t.Errorf("onChange calls = %d (%v), want 4", len(changed), changed)
	}
}

func TestSubscriptionResyncsAfterGap(t *testing.T) {
	cache := book.NewCache()
	snaps := newFakeSnaps()
	snaps.set("tok-a", 0.50, 4)
	snaps.set("tok-b", 0.50, 4)

	// Delta at seq 9 is a gap; the resync snapshot carries the true state.
	conn := newScriptConn(nil, delta("tok-a", 0.60, 9))
	dialer := &scriptDialer{conns: []Conn{conn}}

	sup := NewSupervisor(dialer, snaps, cache, nil, testConfig(), discardLogger())

	sup.Subscribe(twoTokenSet())
	waitFor(t, conn.exhausted, "script drain")

	// The gap fetches tok-a again: seed once + resync once.
	deadline := time.Now().Add(2 * time.Second)
	for snaps.fetchCount("tok-a") < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	sup.Close()

	if got := snaps.fetchCount("tok-a"); got != 2 {
		t.Errorf("tok-a fetches = %d, want 2 (seed + resync)", got)
	}
	a, _ := cache.Read("tok-a")
	if a.Desynced {
		t.Errorf("tok-a still desynced after resync: %+v", a)
	}
	if a.BestAsk != 0.50 || a.Seq != 4 {
		t.Errorf("tok-a = %+v, want the resync snapshot state", a)
	}
}

func TestSubscriptionReconnects(t *testing.T) {
	cache := book.NewCache()
	snaps := newFakeSnaps()
	snaps.set("tok-a", 0.50, 4)
	snaps.set("tok-b", 0.50, 4)

	first := newScriptConn(errors.New("connection reset"))
	second := newScriptConn(nil, delta("tok-a", 0.45, 5))
	dialer := &scriptDialer{conns: []Conn{first, second}}

	sup := NewSupervisor(dialer, snaps, cache, nil, testConfig(), discardLogger())

	sup.Subscribe(twoTokenSet())
	waitFor(t, second.exhausted, "second conn drain")
	sup.Close()

	dialer.mu.Lock()
	dials := dialer.dials
	dialer.mu.Unlock()
	if dials < 2 {
		t.Errorf("dials = %d, want >= 2", dials)
	}

	a, _ := cache.Read("tok-a")
	if a.BestAsk != 0.45 {
		t.Errorf("tok-a = %+v, want ask 0.45 from second conn", a)
	}
}

func TestUnsubscribeEvictsTokens(t *testing.T) {
	cache := book.NewCache()
	snaps := newFakeSnaps()
	snaps.set("tok-a", 0.50, 4)
	snaps.set("tok-b", 0.50, 4)

	conn := newScriptConn(nil)
	dialer := &scriptDialer{conns: []Conn{conn}}

	sup := NewSupervisor(dialer, snaps, cache, nil, testConfig(), discardLogger())
	defer sup.Close()

	sup.Subscribe(twoTokenSet())
	waitFor(t, conn.exhausted, "seed")

	sup.Unsubscribe("ev1:m1")
	sup.Unsubscribe("ev1:m1") // idempotent

	if _, ok := cache.Read("tok-a"); ok {
		t.Error("tok-a still cached after unsubscribe")
	}
	if len(sup.Subscribed()) != 0 {
		t.Errorf("subscribed = %v, want empty", sup.Subscribed())
	}
}

func TestSubscribeDuplicateIsNoop(t *testing.T) {
	cache := book.NewCache()
	snaps := newFakeSnaps()
	snaps.set("tok-a", 0.50, 4)
	snaps.set("tok-b", 0.50, 4)

	conn := newScriptConn(nil)
	dialer := &scriptDialer{conns: []Conn{conn}}

	sup := NewSupervisor(dialer, snaps, cache, nil, testConfig(), discardLogger())
	defer sup.Close()

	sup.Subscribe(twoTokenSet())
	sup.Subscribe(twoTokenSet())
	waitFor(t, conn.exhausted, "seed")

	dialer.mu.Lock()
	dials := dialer.dials
	dialer.mu.Unlock()
	if dials != 1 {
		t.Errorf("dials = %d, want 1", dials)
	}
}
