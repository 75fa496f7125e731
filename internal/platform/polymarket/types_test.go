package polymarket

import (
	"encoding/json"
	"testing"

	"github.com/rmarchant/polyscout/internal/domain"
)

func TestStringListDoubleEncoded(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{"double-encoded", `"[\"Yes\",\"No\"]"`, []string{"Yes", "No"}},
		{"plain array", `["Yes","No"]`, []string{"Yes", "No"}},
		{"empty string", `""`, nil},
		{"empty array", `"[]"`, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got stringList
			if err := json.Unmarshal([]byte(tt.input), &got); err != nil {
				t.Fatalf("unmarshal %s: %v", tt.input, err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("got[%d] = %q, want %q", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestFlexBool(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{`true`, true},
		{`false`, false},
		{`"true"`, true},
		{`"True"`, true},
		{`"false"`, false},
		{`"1"`, true},
	}

	for _, tt := range tests {
		var got flexBool
		if err := json.Unmarshal([]byte(tt.input), &got); err != nil {
			t.Fatalf("unmarshal %s: %v", tt.input, err)
		}
		if bool(got) != tt.want {
			t.Errorf("flexBool(%s) = %v, want %v", tt.input, bool(got), tt.want)
		}
	}
}

func TestToDomainEvent(t *testing.T) {
	raw := `{
		"id": "ev1",
		"title": "Lakers vs. Celtics",
		"slug": "lakers-celtics",
		"endDate": "2026-09-01T00:00:00Z",
		"closed": false,
		"negRisk": false,
		"tags": [{"id": "100639", "label": "Games"}, {"id": "745", "label": "NBA"}],
		"markets": [
			{
				"id": "m1",
				"question": "Lakers vs. Celtics",
				"active": "true",
				"closed": false,
				"sportsMarketType": "moneyline",
				"outcomes": "[\"Lakers\",\"Celtics\"]",
				"clobTokenIds": "[\"tok-a\",\"tok-b\"]"
			},
			{
				"id": "m2",
				"question": "Closed market",
				"active": true,
				"closed": true,
				"outcomes": "[\"Yes\",\"No\"]",
				"clobTokenIds": "[\"tok-c\",\"tok-d\"]"
			},
			{
				"id": "m3",
				"question": "Mismatched lists",
				"active": true,
				"closed": false,
				"outcomes": "[\"Yes\",\"No\"]",
				"clobTokenIds": "[\"tok-e\"]"
			}
		]
	}`

	var api APIEvent
	if err := json.Unmarshal([]byte(raw), &api); err != nil {
		t.Fatalf("unmarshal event: %v", err)
	}

	ev := api.ToDomainEvent("745")

	if ev.ID != "ev1" {
		t.Errorf("ID = %q, want ev1", ev.ID)
	}
	if !ev.HasTag("100639") || !ev.HasTag("745") {
		t.Errorf("tags = %v, want 100639 and 745", ev.TagList())
	}
	if ev.EndAt.IsZero() {
		t.Error("EndAt not parsed")
	}
	if len(ev.Markets) != 1 {
		t.Fatalf("markets = %d, want 1 (closed and mismatched dropped)", len(ev.Markets))
	}

	m := ev.Markets[0]
	if m.Kind != domain.MarketKindBinary {
		t.Errorf("kind = %v, want binary", m.Kind)
	}
	if m.SportsMarketType != "moneyline" {
		t.Errorf("sportsMarketType = %q", m.SportsMarketType)
	}
	if m.Outcomes[0].TokenID != "tok-a" || m.Outcomes[1].Label != "Celtics" {
		t.Errorf("outcomes = %+v", m.Outcomes)
	}
	if m.EventID != "ev1" {
		t.Errorf("EventID = %q, want ev1", m.EventID)
	}
}

func TestBestAskIsLastEntry(t *testing.T) {
	asks := []PriceLevel{
		{Price: "0.99", Size: "10"},
		{Price: "0.55", Size: "20"},
		{Price: "0.52", Size: "5"},
	}
	if got := bestAskOf(asks); got != 0.52 {
		t.Errorf("bestAskOf = %v, want 0.52", got)
	}
	if got := bestAskOf(nil); got != 1.0 {
		t.Errorf("bestAskOf(empty) = %v, want 1.0", got)
	}
}

func TestParseFrame(t *testing.T) {
	// Array frame with a book snapshot and a price change.
	raw := []byte(`[
		{
			"event_type": "book",
			"asset_id": "tok-a",
			"bids": [],
			"asks": [{"price": "0.60", "size": "1"}, {"price": "0.48", "size": "2"}],
			"timestamp": "1756300000000",
			"seq": 7
		},
		{
			"event_type": "price_change",
			"price_changes": [
				{"asset_id": "tok-b", "price": "0.51", "size": "3", "side": "SELL", "best_ask": "0.51"}
			],
			"timestamp": "1756300000500",
			"seq": 8
		},
		{"event_type": "last_trade_price", "asset_id": "tok-a"}
	]`)

	updates := parseFrame(raw)
	if len(updates) != 2 {
		t.Fatalf("updates = %d, want 2", len(updates))
	}

	if updates[0].Kind != domain.BookUpdateSnapshot || updates[0].TokenID != "tok-a" {
		t.Errorf("first update = %+v", updates[0])
	}
	if updates[0].BestAsk != 0.48 {
		t.Errorf("snapshot best ask = %v, want 0.48", updates[0].BestAsk)
	}
	if updates[0].Seq != 7 {
		t.Errorf("snapshot seq = %d, want 7", updates[0].Seq)
	}

	if updates[1].Kind != domain.BookUpdateDelta || updates[1].TokenID != "tok-b" {
		t.Errorf("second update = %+v", updates[1])
	}
	if updates[1].BestAsk != 0.51 {
		t.Errorf("delta best ask = %v, want 0.51", updates[1].BestAsk)
	}

	// Single-object frame.
	single := []byte(`{"event_type": "book", "asset_id": "tok-c", "asks": [{"price": "0.30", "size": "1"}], "timestamp": "0", "seq": 1}`)
	updates = parseFrame(single)
	if len(updates) != 1 || updates[0].TokenID != "tok-c" {
		t.Fatalf("single frame updates = %+v", updates)
	}

	// Garbage is dropped.
	if got := parseFrame([]byte(`not json`)); len(got) != 0 {
		t.Errorf("garbage frame yielded %d updates", len(got))
	}
}
