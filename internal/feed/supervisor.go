// Package feed maintains the live price subscriptions: one connection per
// watched outcome set, seeded from REST snapshots, kept consistent through
// per-token sequence checking, and resynced after gaps or disconnects.
package feed

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/rmarchant/polyscout/internal/domain"
)

// SnapshotFetcher serves REST book snapshots, used to seed a fresh
// subscription and to resync a token after a sequence gap.
type SnapshotFetcher interface {
	FetchBook(ctx context.Context, tokenID string) (domain.BookSnapshot, error)
}

// Conn is one live feed connection delivering book updates for a fixed token
// set until it fails or is closed.
type Conn interface {
	Next(ctx context.Context) (domain.BookUpdate, error)
	Close() error
}

// Dialer opens feed connections.
type Dialer interface {
	Dial(ctx context.Context, tokenIDs []string) (Conn, error)
}

// DialerFunc adapts a function to the Dialer interface.
type DialerFunc func(ctx context.Context, tokenIDs []string) (Conn, error)

func (f DialerFunc) Dial(ctx context.Context, tokenIDs []string) (Conn, error) {
	return f(ctx, tokenIDs)
}

// BookWriter is the cache surface the feed mutates.
type BookWriter interface {
	ApplySnapshot(domain.BookSnapshot)
	ApplyDelta(domain.BookDelta) error
	Evict(tokenIDs ...string)
}

// ChangeHandler is called after every applied cache mutation with the token
// that changed. The detector hangs off this hook.
type ChangeHandler func(tokenID string)

// Config carries the supervisor's reconnect and snapshot tuning.
type Config struct {
	ReconnectBaseWait time.Duration
	ReconnectMaxWait  time.Duration
	SnapshotTimeout   time.Duration
}

// Supervisor owns one subscription goroutine per watched outcome set.
// Failures stay scoped to their subscription: a dropped connection or a bad
// token on one set never touches the others.
type Supervisor struct {
	dialer   Dialer
	snaps    SnapshotFetcher
	books    BookWriter
	onChange ChangeHandler
	cfg      Config
	logger   *slog.Logger

	mu     sync.Mutex
	subs   map[string]*subscription
	closed bool
}

// NewSupervisor creates a supervisor. onChange may be nil.
func NewSupervisor(dialer Dialer, snaps SnapshotFetcher, books BookWriter, onChange ChangeHandler, cfg Config, logger *slog.Logger) *Supervisor {
	if cfg.SnapshotTimeout <= 0 {
		cfg.SnapshotTimeout = 10 * time.Second
	}
	return &Supervisor{
		dialer:   dialer,
		snaps:    snaps,
		books:    books,
		onChange: onChange,
		cfg:      cfg,
		logger:   logger.With(slog.String("component", "feed_supervisor")),
		subs:     make(map[string]*subscription),
	}
}

// Subscribe starts a subscription for the set's tokens. Subscribing an
// already-subscribed set id is a no-op.
func (s *Supervisor) Subscribe(set domain.OutcomeSet) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	if _, exists := s.subs[set.ID]; exists {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	sub := newSubscription(set.ID, set.TokenIDs(), s, cancel)
	s.subs[set.ID] = sub
	go sub.run(ctx)

	s.logger.Info("subscribed",
		slog.String("set_id", set.ID),
		slog.Int("tokens", len(set.Outcomes)),
	)
}

// Unsubscribe tears a subscription down and releases its cached tokens.
// Best-effort and idempotent: it does not wait for the goroutine to drain.
func (s *Supervisor) Unsubscribe(setID string) {
	s.mu.Lock()
	sub, ok := s.subs[setID]
	if ok {
		delete(s.subs, setID)
	}
	s.mu.Unlock()

	if !ok {
		return
	}

	sub.cancel()
	s.books.Evict(sub.tokens...)
	s.logger.Info("unsubscribed", slog.String("set_id", setID))
}

// Subscribed returns the currently subscribed set ids, for the discovery
// cycle's watch-set diff.
func (s *Supervisor) Subscribed() map[string]struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]struct{}, len(s.subs))
	for id := range s.subs {
		out[id] = struct{}{}
	}
	return out
}

// States returns a snapshot of per-set subscription states for health logs.
func (s *Supervisor) States() map[string]domain.SubscriptionState {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]domain.SubscriptionState, len(s.subs))
	for id, sub := range s.subs {
		out[id] = sub.state()
	}
	return out
}

// Close stops every subscription. The supervisor accepts no new work after.
func (s *Supervisor) Close() {
	s.mu.Lock()
	s.closed = true
	subs := make([]*subscription, 0, len(s.subs))
	for _, sub := range s.subs {
		subs = append(subs, sub)
	}
	s.subs = make(map[string]*subscription)
	s.mu.Unlock()

	for _, sub := range subs {
		sub.cancel()
	}
	for _, sub := range subs {
		<-sub.done
	}
}
