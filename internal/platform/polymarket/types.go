package polymarket

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/rmarchant/polyscout/internal/domain"
)

// flexBool unmarshals from JSON bool or string ("true"/"false") so Gamma API
// responses work whether "closed" is sent as bool or string.
type flexBool bool

func (f *flexBool) UnmarshalJSON(data []byte) error {
	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		*f = flexBool(b)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*f = flexBool(strings.EqualFold(s, "true") || s == "1")
	return nil
}

// stringList unmarshals Gamma's double-encoded array fields: the API sends
// `"[\"Yes\",\"No\"]"` (a JSON string containing a JSON array) for fields
// like "outcomes" and "clobTokenIds". A plain array is accepted too.
type stringList []string

func (l *stringList) UnmarshalJSON(data []byte) error {
	var direct []string
	if err := json.Unmarshal(data, &direct); err == nil {
		*l = direct
		return nil
	}
	var inner string
	if err := json.Unmarshal(data, &inner); err != nil {
		return err
	}
	if inner == "" {
		*l = nil
		return nil
	}
	var decoded []string
	if err := json.Unmarshal([]byte(inner), &decoded); err != nil {
		return err
	}
	*l = decoded
	return nil
}

// --------------------------------------------------------------------------
// Gamma API DTOs
// --------------------------------------------------------------------------

// APITag is a tag entry attached to a Gamma event.
type APITag struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	Slug  string `json:"slug"`
}

// APIEvent represents an event as returned by the Polymarket Gamma API.
// An event groups one or more related markets.
type APIEvent struct {
	ID      string      `json:"id"`
	Title   string      `json:"title"`
	Slug    string      `json:"slug"`
	EndDate string      `json:"endDate"`
	Closed  flexBool    `json:"closed"`
	NegRisk flexBool    `json:"negRisk"`
	Tags    []APITag    `json:"tags"`
	Markets []APIMarket `json:"markets"`
}

// APIMarket represents a market nested inside a Gamma event response.
type APIMarket struct {
	ID               string     `json:"id"`
	Question         string     `json:"question"`
	Active           flexBool   `json:"active"`
	Closed           flexBool   `json:"closed"`
	NegRisk          flexBool   `json:"negRisk"`
	GroupItemTitle   string     `json:"groupItemTitle"`
	SportsMarketType string     `json:"sportsMarketType"`
	EnableOrderBook  flexBool   `json:"enableOrderBook"`
	Outcomes         stringList `json:"outcomes"`
	ClobTokenIDs     stringList `json:"clobTokenIds"`
}

// ToDomainEvent converts an APIEvent to a domain.Event tagged with the tag id
// the event was discovered under. Markets that are closed, inactive, or whose
// outcome and token lists disagree in length are dropped.
func (e *APIEvent) ToDomainEvent(discoveredTag string) domain.Event {
	ev := domain.Event{
		ID:     e.ID,
		Title:  e.Title,
		Slug:   e.Slug,
		TagIDs: make(map[string]struct{}),
	}
	ev.TagIDs[discoveredTag] = struct{}{}
	for _, t := range e.Tags {
		if t.ID != "" {
			ev.TagIDs[t.ID] = struct{}{}
		}
	}
	if t, err := time.Parse(time.RFC3339, e.EndDate); err == nil {
		ev.EndAt = t
	}

	for i := range e.Markets {
		m := &e.Markets[i]
		if bool(m.Closed) || !bool(m.Active) {
			continue
		}
		if len(m.Outcomes) == 0 || len(m.Outcomes) != len(m.ClobTokenIDs) {
			continue
		}
		ev.Markets = append(ev.Markets, m.toDomainMarket(e.ID, bool(e.NegRisk)))
	}
	return ev
}

// toDomainMarket converts a nested APIMarket. eventNegRisk is the parent
// event's negRisk flag; Polymarket sets it on the event, the market, or both.
func (m *APIMarket) toDomainMarket(eventID string, eventNegRisk bool) domain.Market {
	dm := domain.Market{
		ID:               m.ID,
		EventID:          eventID,
		Question:         m.Question,
		NegRisk:          bool(m.NegRisk) || eventNegRisk,
		Role:             m.GroupItemTitle,
		SportsMarketType: m.SportsMarketType,
	}

	switch {
	case len(m.Outcomes) >= 3:
		dm.Kind = domain.MarketKindNWay
	case len(m.Outcomes) == 2:
		dm.Kind = domain.MarketKindBinary
	default:
		dm.Kind = domain.MarketKindUnknown
	}

	dm.Outcomes = make([]domain.Outcome, 0, len(m.Outcomes))
	for i, label := range m.Outcomes {
		dm.Outcomes = append(dm.Outcomes, domain.Outcome{
			TokenID:  m.ClobTokenIDs[i],
			Label:    label,
			MarketID: m.ID,
		})
	}
	return dm
}

// --------------------------------------------------------------------------
// CLOB API DTOs
// --------------------------------------------------------------------------

// PriceLevel is a single bid/ask level in book data, REST and WebSocket alike.
type PriceLevel struct {
	Price string `json:"price"`
	Size  string `json:"size"`
}

// APIBook is the CLOB REST /book response for one token. Asks arrive sorted
// worst-to-best, so the best (lowest) ask is the last entry.
type APIBook struct {
	Market    string       `json:"market"`
	AssetID   string       `json:"asset_id"`
	Timestamp string       `json:"timestamp"`
	Hash      string       `json:"hash"`
	Seq       uint64       `json:"seq"`
	Bids      []PriceLevel `json:"bids"`
	Asks      []PriceLevel `json:"asks"`
}

// ToDomainSnapshot converts an APIBook to a domain.BookSnapshot. A book with
// no asks yields a BestAsk of 1.0: nothing is for sale, so buying the outcome
// costs the full dollar and can never be an arb leg.
func (b *APIBook) ToDomainSnapshot() domain.BookSnapshot {
	return domain.BookSnapshot{
		TokenID: b.AssetID,
		BestAsk: bestAskOf(b.Asks),
		Seq:     b.Seq,
		At:      parseStampMillis(b.Timestamp),
	}
}

// bestAskOf returns the best ask from a CLOB asks array, which arrives sorted
// worst-to-best: the last entry is the lowest price.
func bestAskOf(asks []PriceLevel) float64 {
	if len(asks) == 0 {
		return 1.0
	}
	p, err := strconv.ParseFloat(asks[len(asks)-1].Price, 64)
	if err != nil {
		return 1.0
	}
	return p
}

// parseStampMillis parses CLOB timestamps, which are Unix milliseconds as a
// string. Falls back to RFC3339 and finally to time.Now.
func parseStampMillis(s string) time.Time {
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.UnixMilli(ms)
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t
	}
	return time.Now()
}

// --------------------------------------------------------------------------
// WebSocket DTOs
// --------------------------------------------------------------------------

// WSCommand is the JSON payload sent to the market channel WebSocket on
// connect. Type is "market"; AssetsIDs lists the token ids to stream.
type WSCommand struct {
	AssetsIDs []string `json:"assets_ids"`
	Type      string   `json:"type"`
}

// WSEnvelope is the minimal outer shape of every frame, used for routing.
type WSEnvelope struct {
	EventType string `json:"event_type"` // "book", "price_change", "last_trade_price"
}

// WSBookMessage is a full orderbook snapshot pushed on the market channel.
type WSBookMessage struct {
	EventType string       `json:"event_type"`
	AssetID   string       `json:"asset_id"`
	Market    string       `json:"market"`
	Bids      []PriceLevel `json:"bids"`
	Asks      []PriceLevel `json:"asks"`
	Timestamp string       `json:"timestamp"`
	Hash      string       `json:"hash"`
	Seq       uint64       `json:"seq"`
}

// ToDomainUpdate converts a pushed book snapshot to a domain.BookUpdate.
func (b *WSBookMessage) ToDomainUpdate() domain.BookUpdate {
	return domain.BookUpdate{
		Kind:    domain.BookUpdateSnapshot,
		TokenID: b.AssetID,
		BestAsk: bestAskOf(b.Asks),
		Seq:     b.Seq,
		At:      parseStampMillis(b.Timestamp),
	}
}

// WSPriceChange is one per-asset entry inside a price_change frame. The
// best_bid/best_ask fields carry the asset's new top of book after the change.
type WSPriceChange struct {
	AssetID string `json:"asset_id"`
	Price   string `json:"price"`
	Size    string `json:"size"`
	Side    string `json:"side"`
	BestAsk string `json:"best_ask"`
	BestBid string `json:"best_bid"`
	Hash    string `json:"hash"`
}

// WSPriceChangeMessage is an incremental update frame on the market channel.
type WSPriceChangeMessage struct {
	EventType string          `json:"event_type"`
	Market    string          `json:"market"`
	Changes   []WSPriceChange `json:"price_changes"`
	Timestamp string          `json:"timestamp"`
	Seq       uint64          `json:"seq"`
}

// ToDomainUpdates converts a price_change frame to deltas, one per asset that
// reported a new best ask. Changes without a best_ask field are skipped; the
// next full book frame for that asset re-establishes its price.
func (p *WSPriceChangeMessage) ToDomainUpdates() []domain.BookUpdate {
	at := parseStampMillis(p.Timestamp)
	out := make([]domain.BookUpdate, 0, len(p.Changes))
	for _, c := range p.Changes {
		ask, err := strconv.ParseFloat(c.BestAsk, 64)
		if err != nil {
			continue
		}
		out = append(out, domain.BookUpdate{
			Kind:    domain.BookUpdateDelta,
			TokenID: c.AssetID,
			BestAsk: ask,
			Seq:     p.Seq,
			At:      at,
		})
	}
	return out
}
