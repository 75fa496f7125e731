package domain

import (
	"context"
	"io"
	"time"
)

// EventStore persists the discovery catalog snapshot: events, their tag
// memberships, and the outcome sets built from them. Written once per
// discovery cycle for audit; never read back by the monitoring path.
type EventStore interface {
	UpsertEvent(ctx context.Context, e Event) error
	UpsertOutcomeSet(ctx context.Context, s OutcomeSet) error
}

// OpportunityStore appends detected opportunities to the audit log.
type OpportunityStore interface {
	Insert(ctx context.Context, opp Opportunity) error
	ListSince(ctx context.Context, since time.Time, limit int) ([]Opportunity, error)
}

// CatalogCache holds the most recent discovery snapshot so external consumers
// can read the current watch catalog without touching Postgres.
type CatalogCache interface {
	SetLatest(ctx context.Context, payload []byte) error
	GetLatest(ctx context.Context) ([]byte, error)
}

// SignalBus is the pub/sub channel decoupling the detector from notification
// delivery. Publish must be short and bounded; Subscribe returns a channel
// that closes when ctx is cancelled.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
}

// BlobWriter uploads data to object storage. Used for the optional per-cycle
// catalog export.
type BlobWriter interface {
	Put(ctx context.Context, path string, data io.Reader, contentType string) error
}
