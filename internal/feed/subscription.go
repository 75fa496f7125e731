package feed

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/rmarchant/polyscout/internal/domain"
)

// subscription is the per-set feed worker. Its lifecycle:
//
//	Connecting -> Synced -> (Degraded -> Synced)* -> Reconnecting -> ... -> Closed
//
// It is the only writer for its tokens' cache entries.
type subscription struct {
	setID  string
	tokens []string
	sup    *Supervisor
	logger *slog.Logger

	st     atomic.Int32
	cancel context.CancelFunc
	done   chan struct{}
}

func newSubscription(setID string, tokens []string, sup *Supervisor, cancel context.CancelFunc) *subscription {
	return &subscription{
		setID:  setID,
		tokens: tokens,
		sup:    sup,
		logger: sup.logger.With(slog.String("set_id", setID)),
		cancel: cancel,
		done:   make(chan struct{}),
	}
}

func (sub *subscription) state() domain.SubscriptionState {
	return domain.SubscriptionState(sub.st.Load())
}

func (sub *subscription) setState(s domain.SubscriptionState) {
	old := domain.SubscriptionState(sub.st.Swap(int32(s)))
	if old != s {
		sub.logger.Debug("subscription state",
			slog.String("from", old.String()),
			slog.String("to", s.String()),
		)
	}
}

// run is the subscription goroutine: dial, seed, consume, and on any failure
// back off and start over. Returns only when ctx is cancelled.
func (sub *subscription) run(ctx context.Context) {
	defer close(sub.done)
	defer sub.setState(domain.SubStateClosed)

	wait := newBackoff(sub.sup.cfg.ReconnectBaseWait, sub.sup.cfg.ReconnectMaxWait)

	for {
		sub.setState(domain.SubStateConnecting)

		conn, err := sub.sup.dialer.Dial(ctx, sub.tokens)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			sub.logger.Warn("dial failed", slog.String("error", err.Error()))
			sub.setState(domain.SubStateReconnecting)
			if !sub.sleep(ctx, wait.Next()) {
				return
			}
			continue
		}

		if !sub.seed(ctx) {
			conn.Close()
			if ctx.Err() != nil {
				return
			}
			sub.setState(domain.SubStateReconnecting)
			if !sub.sleep(ctx, wait.Next()) {
				return
			}
			continue
		}

		wait.Reset()
		sub.setState(domain.SubStateSynced)

		if !sub.consume(ctx, conn) {
			conn.Close()
			return
		}
		conn.Close()

		sub.setState(domain.SubStateReconnecting)
		if !sub.sleep(ctx, wait.Next()) {
			return
		}
	}
}

// seed fetches a REST snapshot for every token. All tokens must seed before
// deltas are trusted; a single failing token fails the attempt.
func (sub *subscription) seed(ctx context.Context) bool {
	for _, tokenID := range sub.tokens {
		if !sub.resync(ctx, tokenID) {
			return false
		}
	}
	return true
}

// resync fetches and applies one token's snapshot, clearing any desync.
func (sub *subscription) resync(ctx context.Context, tokenID string) bool {
	sctx, cancel := context.WithTimeout(ctx, sub.sup.cfg.SnapshotTimeout)
	defer cancel()

	snap, err := sub.sup.snaps.FetchBook(sctx, tokenID)
	if err != nil {
		sub.logger.Warn("snapshot fetch failed",
			slog.String("token_id", tokenID),
			slog.String("error", err.Error()),
		)
		return false
	}

	sub.sup.books.ApplySnapshot(snap)
	sub.notify(tokenID)
	return true
}

// consume drains the connection, applying updates to the cache. Returns
// false when the subscription should stop for good (ctx cancelled), true
// when the connection dropped and a reconnect is wanted.
func (sub *subscription) consume(ctx context.Context, conn Conn) bool {
	for {
		update, err := conn.Next(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, domain.ErrClosed) {
				return false
			}
			sub.logger.Warn("feed dropped", slog.String("error", err.Error()))
			return true
		}
		sub.apply(ctx, update)
	}
}

// apply routes one update into the cache and drives the Synced/Degraded
// transitions around sequence gaps.
func (sub *subscription) apply(ctx context.Context, update domain.BookUpdate) {
	if update.Kind == domain.BookUpdateSnapshot {
		sub.sup.books.ApplySnapshot(domain.BookSnapshot{
			TokenID: update.TokenID,
			BestAsk: update.BestAsk,
			Seq:     update.Seq,
			At:      update.At,
		})
		sub.notify(update.TokenID)
		return
	}

	err := sub.sup.books.ApplyDelta(domain.BookDelta{
		TokenID: update.TokenID,
		BestAsk: update.BestAsk,
		Seq:     update.Seq,
		At:      update.At,
	})
	switch {
	case err == nil:
		sub.notify(update.TokenID)

	case errors.Is(err, domain.ErrStaleDelta):
		// Old news, nothing to do.

	case errors.Is(err, domain.ErrSequenceGap):
		sub.setState(domain.SubStateDegraded)
		sub.logger.Warn("sequence gap, resyncing", slog.String("token_id", update.TokenID))
		if sub.resync(ctx, update.TokenID) {
			sub.setState(domain.SubStateSynced)
		}

	case errors.Is(err, domain.ErrNotFound):
		// Delta for a token we never seeded; seed it now.
		if sub.resync(ctx, update.TokenID) {
			sub.setState(domain.SubStateSynced)
		}

	default:
		sub.logger.Error("delta apply failed",
			slog.String("token_id", update.TokenID),
			slog.String("error", err.Error()),
		)
	}
}

func (sub *subscription) notify(tokenID string) {
	if sub.sup.onChange != nil {
		sub.sup.onChange(tokenID)
	}
}

// sleep waits d or until ctx cancellation; false means stop.
func (sub *subscription) sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
