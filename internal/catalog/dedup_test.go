package catalog

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/rmarchant/polyscout/internal/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func taggedEvent(id, title string, tags ...string) domain.Event {
	ev := domain.Event{
		ID:     id,
		Title:  title,
		EndAt:  time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC),
		TagIDs: map[string]struct{}{},
	}
	ev.AddTags(tags...)
	return ev
}

func TestMergeUnionsTags(t *testing.T) {
	pairs := []TagEvents{
		{TagID: "745", Events: []domain.Event{taggedEvent("ev1", "Lakers vs. Celtics", "745")}},
		{TagID: "100639", Events: []domain.Event{taggedEvent("ev1", "Lakers vs. Celtics", "100639")}},
	}

	merged := Merge(pairs, discardLogger())
	if len(merged) != 1 {
		t.Fatalf("merged = %d events, want 1", len(merged))
	}
	ev := merged[0]
	if !ev.HasTag("745") || !ev.HasTag("100639") {
		t.Errorf("tags = %v, want union of 745 and 100639", ev.TagList())
	}
}

func TestMergeOrderIndependent(t *testing.T) {
	a := TagEvents{TagID: "745", Events: []domain.Event{
		taggedEvent("ev2", "Event Two", "745"),
		taggedEvent("ev1", "Event One", "745"),
	}}
	b := TagEvents{TagID: "100639", Events: []domain.Event{
		taggedEvent("ev1", "Event One", "100639"),
	}}

	forward := Merge([]TagEvents{a, b}, discardLogger())
	reversed := Merge([]TagEvents{b, a}, discardLogger())

	if len(forward) != len(reversed) {
		t.Fatalf("lengths differ: %d vs %d", len(forward), len(reversed))
	}
	for i := range forward {
		if forward[i].ID != reversed[i].ID {
			t.Errorf("order differs at %d: %s vs %s", i, forward[i].ID, reversed[i].ID)
		}
		ft, rt := forward[i].TagList(), reversed[i].TagList()
		if len(ft) != len(rt) {
			t.Errorf("tag sets differ for %s: %v vs %v", forward[i].ID, ft, rt)
		}
	}
}

func TestMergeFirstSeenWinsOnDivergence(t *testing.T) {
	pairs := []TagEvents{
		{TagID: "745", Events: []domain.Event{taggedEvent("ev1", "Original Title", "745")}},
		{TagID: "746", Events: []domain.Event{taggedEvent("ev1", "Renamed Title", "746")}},
	}

	merged := Merge(pairs, discardLogger())
	if len(merged) != 1 {
		t.Fatalf("merged = %d events, want 1", len(merged))
	}
	if merged[0].Title != "Original Title" {
		t.Errorf("title = %q, want first-seen value", merged[0].Title)
	}
	if !merged[0].HasTag("746") {
		t.Error("divergent duplicate should still contribute its tag")
	}
}
