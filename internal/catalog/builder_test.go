package catalog

import (
	"testing"

	"github.com/rmarchant/polyscout/internal/domain"
)

func binaryMarket(id, question string, labels [2]string, tokens [2]string) domain.Market {
	return domain.Market{
		ID:       id,
		EventID:  "ev1",
		Question: question,
		Kind:     domain.MarketKindBinary,
		Outcomes: []domain.Outcome{
			{TokenID: tokens[0], Label: labels[0], MarketID: id},
			{TokenID: tokens[1], Label: labels[1], MarketID: id},
		},
	}
}

func TestBuildStandaloneBinary(t *testing.T) {
	ev := domain.Event{
		ID:    "ev1",
		Title: "Lakers vs. Celtics",
		Markets: []domain.Market{
			binaryMarket("m1", "Lakers vs. Celtics", [2]string{"Lakers", "Celtics"}, [2]string{"tok-a", "tok-b"}),
		},
	}

	sets := NewBuilder(discardLogger()).Build(ev)
	if len(sets) != 1 {
		t.Fatalf("sets = %d, want 1", len(sets))
	}
	set := sets[0]
	if set.ID != "ev1:m1" {
		t.Errorf("set ID = %q, want ev1:m1", set.ID)
	}
	if len(set.Outcomes) != 2 {
		t.Fatalf("legs = %d, want 2", len(set.Outcomes))
	}
	if set.Outcomes[0].TokenID != "tok-a" || set.Outcomes[1].TokenID != "tok-b" {
		t.Errorf("tokens = %v", set.TokenIDs())
	}
}

func TestBuildNWayMarket(t *testing.T) {
	ev := domain.Event{
		ID:    "ev1",
		Title: "Arsenal vs. Chelsea",
		Markets: []domain.Market{
			{
				ID:       "m1",
				EventID:  "ev1",
				Question: "Match result",
				Kind:     domain.MarketKindNWay,
				Outcomes: []domain.Outcome{
					{TokenID: "tok-home", Label: "Arsenal", MarketID: "m1"},
					{TokenID: "tok-draw", Label: "Draw", MarketID: "m1"},
					{TokenID: "tok-away", Label: "Chelsea", MarketID: "m1"},
				},
			},
		},
	}

	sets := NewBuilder(discardLogger()).Build(ev)
	if len(sets) != 1 {
		t.Fatalf("sets = %d, want 1", len(sets))
	}
	if len(sets[0].Outcomes) != 3 {
		t.Errorf("legs = %d, want 3", len(sets[0].Outcomes))
	}
}

func TestBuildNegRiskPartition(t *testing.T) {
	home := binaryMarket("m1", "Will the Lakers win?", [2]string{"Yes", "No"}, [2]string{"tok-ly", "tok-ln"})
	home.NegRisk = true
	home.Role = "Lakers"
	away := binaryMarket("m2", "Will the Celtics win?", [2]string{"Yes", "No"}, [2]string{"tok-cy", "tok-cn"})
	away.NegRisk = true
	away.Role = "Celtics"

	ev := domain.Event{
		ID:      "ev1",
		Title:   "Lakers vs. Celtics",
		Markets: []domain.Market{home, away},
	}

	sets := NewBuilder(discardLogger()).Build(ev)
	if len(sets) != 1 {
		t.Fatalf("sets = %d, want 1 partition set", len(sets))
	}
	set := sets[0]
	if set.ID != "ev1:negrisk" {
		t.Errorf("set ID = %q", set.ID)
	}
	if len(set.Outcomes) != 2 {
		t.Fatalf("legs = %d, want 2", len(set.Outcomes))
	}
	// Partition pairs the Yes tokens and relabels legs by role.
	if set.Outcomes[0].TokenID != "tok-ly" || set.Outcomes[1].TokenID != "tok-cy" {
		t.Errorf("tokens = %v, want Yes tokens", set.TokenIDs())
	}
	if set.Outcomes[0].Label != "Lakers" || set.Outcomes[1].Label != "Celtics" {
		t.Errorf("labels = %q, %q", set.Outcomes[0].Label, set.Outcomes[1].Label)
	}
}

func TestBuildUngroupablePartition(t *testing.T) {
	lone := binaryMarket("m1", "Will the Lakers win?", [2]string{"Yes", "No"}, [2]string{"tok-ly", "tok-ln"})
	lone.NegRisk = true
	lone.Role = "Lakers"

	ev := domain.Event{ID: "ev1", Title: "Lakers vs. Celtics", Markets: []domain.Market{lone}}
	if sets := NewBuilder(discardLogger()).Build(ev); len(sets) != 0 {
		t.Errorf("single-member partition produced %d sets, want 0", len(sets))
	}

	// Duplicate roles are equally ungroupable.
	dup := binaryMarket("m2", "Will the Lakers win? (dup)", [2]string{"Yes", "No"}, [2]string{"tok-dy", "tok-dn"})
	dup.NegRisk = true
	dup.Role = "Lakers"
	ev.Markets = append(ev.Markets, dup)
	if sets := NewBuilder(discardLogger()).Build(ev); len(sets) != 0 {
		t.Errorf("duplicate-role partition produced %d sets, want 0", len(sets))
	}
}

func TestBuildSkipsUnknownKind(t *testing.T) {
	ev := domain.Event{
		ID:    "ev1",
		Title: "Odd event",
		Markets: []domain.Market{
			{ID: "m1", Kind: domain.MarketKindUnknown},
			binaryMarket("m2", "Will it rain?", [2]string{"Yes", "No"}, [2]string{"tok-y", "tok-n"}),
		},
	}

	sets := NewBuilder(discardLogger()).Build(ev)
	if len(sets) != 1 || sets[0].ID != "ev1:m2" {
		t.Fatalf("sets = %+v, want only ev1:m2", sets)
	}
}
