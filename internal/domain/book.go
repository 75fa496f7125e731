package domain

import "time"

// BookEntry is the cached best-ask state for one token. Entries are owned
// exclusively by the book cache; the best ask is the only field other
// components read for pricing.
type BookEntry struct {
	TokenID   string
	BestAsk   float64 // in [0,1]
	Seq       uint64
	UpdatedAt time.Time
	// Desynced is set when a sequence gap was detected for this token. The
	// detector treats a desynced entry as unknown until a fresh snapshot
	// clears the flag.
	Desynced bool
}

// BookSnapshot is a full best-ask snapshot for one token, served by the CLOB
// REST book endpoint and by the feed's subscribe-time book message. Applying
// a snapshot unconditionally replaces the token's cached state.
type BookSnapshot struct {
	TokenID string
	BestAsk float64
	Seq     uint64
	At      time.Time
}

// BookDelta is one incremental best-ask update from the push feed. Deltas
// carry a per-token sequence number one greater than the state they follow.
type BookDelta struct {
	TokenID string
	BestAsk float64
	Seq     uint64
	At      time.Time
}

// BookUpdateKind distinguishes the two message shapes the push feed delivers.
type BookUpdateKind int

const (
	BookUpdateSnapshot BookUpdateKind = iota
	BookUpdateDelta
)

// BookUpdate is the feed-neutral form of a push message after boundary
// conversion: either a full snapshot or an incremental delta for one token.
type BookUpdate struct {
	Kind    BookUpdateKind
	TokenID string
	BestAsk float64
	Seq     uint64
	At      time.Time
}

// SubscriptionState is the lifecycle state of one feed subscription.
type SubscriptionState int32

const (
	SubStateConnecting SubscriptionState = iota
	SubStateSynced
	SubStateDegraded
	SubStateReconnecting
	SubStateClosed
)

// String returns the state name used in logs.
func (s SubscriptionState) String() string {
	switch s {
	case SubStateConnecting:
		return "connecting"
	case SubStateSynced:
		return "synced"
	case SubStateDegraded:
		return "degraded"
	case SubStateReconnecting:
		return "reconnecting"
	case SubStateClosed:
		return "closed"
	default:
		return "invalid"
	}
}
