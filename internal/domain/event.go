// Package domain defines the core types shared by every layer of polyscout:
// the discovery catalog (events, markets, outcomes), the live book state, and
// the opportunities the detector emits. Platform packages convert external
// API shapes into these types at the boundary; nothing inward of the boundary
// handles raw API payloads.
package domain

import (
	"sort"
	"time"
)

// MarketKind is the closed set of market shapes polyscout understands.
// Anything the Gamma API returns that does not parse into one of these is
// quarantined as MarketKindUnknown and skipped by the outcome-set builder.
type MarketKind int

const (
	MarketKindUnknown MarketKind = iota
	// MarketKindBinary is a two-outcome market: either a Yes/No question or a
	// two-sided moneyline market whose outcomes are the competing sides.
	MarketKindBinary
	// MarketKindNWay is a single market with N>=3 mutually exclusive outcomes,
	// e.g. a three-way soccer result market.
	MarketKindNWay
)

// String returns the kind name used in logs and exports.
func (k MarketKind) String() string {
	switch k {
	case MarketKindBinary:
		return "binary"
	case MarketKindNWay:
		return "nway"
	default:
		return "unknown"
	}
}

// Event is a real-world event grouping one or more markets. Events are
// rebuilt from scratch each discovery cycle and never mutated in place; the
// only merge operation is the tag-set union performed by the deduplicator.
type Event struct {
	ID      string
	Title   string
	Slug    string
	EndAt   time.Time
	TagIDs  map[string]struct{}
	Markets []Market
}

// AddTags unions the given tag ids into the event's tag set. The set only
// ever grows; tags are never removed from a merged event.
func (e *Event) AddTags(tagIDs ...string) {
	if e.TagIDs == nil {
		e.TagIDs = make(map[string]struct{}, len(tagIDs))
	}
	for _, id := range tagIDs {
		if id != "" {
			e.TagIDs[id] = struct{}{}
		}
	}
}

// HasTag reports whether the event was discovered under the given tag id.
func (e *Event) HasTag(tagID string) bool {
	_, ok := e.TagIDs[tagID]
	return ok
}

// TagList returns the tag ids in sorted order, for deterministic logs,
// exports, and store writes.
func (e *Event) TagList() []string {
	tags := make([]string, 0, len(e.TagIDs))
	for id := range e.TagIDs {
		tags = append(tags, id)
	}
	sort.Strings(tags)
	return tags
}

// Market is a single tradable question within an event.
type Market struct {
	ID       string
	EventID  string
	Question string
	Kind     MarketKind
	// NegRisk marks the market as a member of the event's neg-risk partition:
	// a set of sibling binary markets whose Yes outcomes are jointly
	// exhaustive and mutually exclusive under the event's rules.
	NegRisk bool
	// Role is the market's role within the event partition (e.g. the side it
	// represents), taken from event-level metadata. Pairing of sibling binary
	// markets is driven by Role, never by outcome-label matching.
	Role string
	// SportsMarketType carries the Gamma sports classification ("moneyline",
	// "spread", ...) when present. Only moneyline-style markets participate
	// in outcome-set building for sports events.
	SportsMarketType string
	Outcomes         []Outcome
}

// Outcome is one tradable side of a market, identified by its CLOB token id.
type Outcome struct {
	TokenID  string
	Label    string
	MarketID string
}
