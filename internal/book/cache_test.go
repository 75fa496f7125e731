package book

import (
	"errors"
	"testing"
	"time"

	"github.com/rmarchant/polyscout/internal/domain"
)

func snap(token string, ask float64, seq uint64) domain.BookSnapshot {
	return domain.BookSnapshot{TokenID: token, BestAsk: ask, Seq: seq, At: time.Now()}
}

func delta(token string, ask float64, seq uint64) domain.BookDelta {
	return domain.BookDelta{TokenID: token, BestAsk: ask, Seq: seq, At: time.Now()}
}

func TestApplyDeltaInOrder(t *testing.T) {
	c := NewCache()
	c.ApplySnapshot(snap("tok", 0.50, 4))

	for i, d := range []domain.BookDelta{
		delta("tok", 0.51, 5),
		delta("tok", 0.52, 6),
		delta("tok", 0.49, 7),
	} {
		if err := c.ApplyDelta(d); err != nil {
			t.Fatalf("delta %d: %v", i, err)
		}
	}

	entry, ok := c.Read("tok")
	if !ok {
		t.Fatal("entry missing")
	}
	if entry.BestAsk != 0.49 || entry.Seq != 7 {
		t.Errorf("entry = %+v, want ask 0.49 seq 7", entry)
	}
	if entry.Desynced {
		t.Error("in-order deltas must not desync")
	}
}

func TestApplyDeltaOutOfOrder(t *testing.T) {
	c := NewCache()
	c.ApplySnapshot(snap("tok", 0.50, 4))

	// 5 applies.
	if err := c.ApplyDelta(delta("tok", 0.51, 5)); err != nil {
		t.Fatalf("seq 5: %v", err)
	}

	// 7 is a gap: price rejected, entry flagged desynced, sequence advances.
	err := c.ApplyDelta(delta("tok", 0.53, 7))
	if !errors.Is(err, domain.ErrSequenceGap) {
		t.Fatalf("seq 7 err = %v, want ErrSequenceGap", err)
	}
	entry, _ := c.Read("tok")
	if !entry.Desynced {
		t.Error("gap must flag entry desynced")
	}
	if entry.BestAsk != 0.51 {
		t.Errorf("gap must not apply price: entry = %+v", entry)
	}

	// 6 arrives late: behind the stream position, dropped silently.
	err = c.ApplyDelta(delta("tok", 0.52, 6))
	if !errors.Is(err, domain.ErrStaleDelta) {
		t.Fatalf("seq 6 err = %v, want ErrStaleDelta", err)
	}
	entry, _ = c.Read("tok")
	if entry.BestAsk != 0.51 || !entry.Desynced {
		t.Errorf("late straggler must not apply: entry = %+v", entry)
	}

	// Deltas after the gap keep being rejected until a snapshot resyncs.
	err = c.ApplyDelta(delta("tok", 0.54, 8))
	if !errors.Is(err, domain.ErrSequenceGap) {
		t.Fatalf("seq 8 err = %v, want ErrSequenceGap while desynced", err)
	}
	entry, _ = c.Read("tok")
	if entry.BestAsk != 0.51 {
		t.Errorf("desynced entry must keep frozen price: entry = %+v", entry)
	}
}

func TestApplyDeltaUnseededToken(t *testing.T) {
	c := NewCache()
	err := c.ApplyDelta(delta("ghost", 0.5, 1))
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestSnapshotClearsDesync(t *testing.T) {
	c := NewCache()
	c.ApplySnapshot(snap("tok", 0.50, 4))
	_ = c.ApplyDelta(delta("tok", 0.60, 9)) // gap

	entry, _ := c.Read("tok")
	if !entry.Desynced {
		t.Fatal("precondition: entry should be desynced")
	}

	c.ApplySnapshot(snap("tok", 0.55, 10))
	entry, _ = c.Read("tok")
	if entry.Desynced {
		t.Error("snapshot must clear desync flag")
	}
	if entry.BestAsk != 0.55 || entry.Seq != 10 {
		t.Errorf("entry = %+v", entry)
	}
}

func TestReadUnknownToken(t *testing.T) {
	c := NewCache()
	if _, ok := c.Read("nothing"); ok {
		t.Error("uninitialized token must read as unknown")
	}
}

func TestEvictIdempotent(t *testing.T) {
	c := NewCache()
	c.ApplySnapshot(snap("tok", 0.5, 1))
	c.Evict("tok", "never-there")
	c.Evict("tok")

	if _, ok := c.Read("tok"); ok {
		t.Error("evicted token still readable")
	}
	if c.Len() != 0 {
		t.Errorf("len = %d, want 0", c.Len())
	}
}
