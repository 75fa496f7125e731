// Package book holds the in-process best-ask cache that the feed writes and
// the detector reads. The cache is deliberately not backed by any external
// store: detector reads sit on the hot path of every feed message and must
// never block on network I/O.
package book

import (
	"fmt"
	"sync"

	"github.com/rmarchant/polyscout/internal/domain"
)

// Cache maps token id to the latest known best-ask state. Writes come from
// exactly one subscription goroutine per token; reads come from the detector
// and from diagnostics. A RWMutex is enough under that discipline.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]*domain.BookEntry
}

// NewCache creates an empty cache.
func NewCache() *Cache {
	return &Cache{
		entries: make(map[string]*domain.BookEntry),
	}
}

// ApplySnapshot unconditionally replaces the token's state and clears any
// desync flag. Used at subscription start and after a resync.
func (c *Cache) ApplySnapshot(snap domain.BookSnapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[snap.TokenID] = &domain.BookEntry{
		TokenID:   snap.TokenID,
		BestAsk:   snap.BestAsk,
		Seq:       snap.Seq,
		UpdatedAt: snap.At,
	}
}

// ApplyDelta applies an incremental update. The delta lands only when its
// sequence number is exactly one past the stored one:
//
//   - seq <= stored: stale, dropped silently (domain.ErrStaleDelta);
//   - seq == stored+1 on a healthy entry: applied;
//   - seq > stored+1: a gap; the entry is flagged desynced, the sequence
//     advances so later stragglers read as stale, and the price is NOT
//     applied (domain.ErrSequenceGap) until a fresh snapshot arrives.
//
// A delta for a token never seeded by a snapshot returns domain.ErrNotFound.
func (c *Cache) ApplyDelta(d domain.BookDelta) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[d.TokenID]
	if !ok {
		return fmt.Errorf("book: delta for unseeded token %s: %w", d.TokenID, domain.ErrNotFound)
	}

	switch {
	case d.Seq <= entry.Seq:
		return domain.ErrStaleDelta
	case entry.Desynced:
		// Track the stream position but keep the price frozen until a fresh
		// snapshot re-establishes a trusted baseline.
		entry.Seq = d.Seq
		return fmt.Errorf("book: token %s desynced, dropping delta seq %d: %w",
			d.TokenID, d.Seq, domain.ErrSequenceGap)
	case d.Seq == entry.Seq+1:
		entry.BestAsk = d.BestAsk
		entry.Seq = d.Seq
		entry.UpdatedAt = d.At
		return nil
	default:
		// Gap: remember where the stream is so anything older than the gap
		// reads as stale, but do not trust the price.
		stored := entry.Seq
		entry.Seq = d.Seq
		entry.Desynced = true
		return fmt.Errorf("book: token %s at seq %d got delta seq %d: %w",
			d.TokenID, stored, d.Seq, domain.ErrSequenceGap)
	}
}

// Read returns the token's current state. ok is false when the token was
// never initialized; callers must treat that, and Desynced entries, as an
// unknown price.
func (c *Cache) Read(tokenID string) (domain.BookEntry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[tokenID]
	if !ok {
		return domain.BookEntry{}, false
	}
	return *entry, true
}

// Evict drops the given tokens, releasing state for unsubscribed sets.
// Idempotent: evicting an absent token is a no-op.
func (c *Cache) Evict(tokenIDs ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, id := range tokenIDs {
		delete(c.entries, id)
	}
}

// Len returns the number of cached tokens, for logs and health reporting.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
