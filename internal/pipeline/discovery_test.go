package pipeline

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/rmarchant/polyscout/internal/catalog"
	"github.com/rmarchant/polyscout/internal/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeSource serves a fixed event list for every tag.
type fakeSource struct {
	mu     sync.Mutex
	events []domain.Event
}

func (f *fakeSource) EventsByTag(ctx context.Context, tagID string, endDateMin time.Time, limit int) ([]domain.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.events, nil
}

func (f *fakeSource) setEvents(events []domain.Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = events
}

// fakeWatch records Watch/Unwatch reconciliation.
type fakeWatch struct {
	watched map[string]struct{}
}

func newFakeWatch() *fakeWatch {
	return &fakeWatch{watched: make(map[string]struct{})}
}

func (f *fakeWatch) Watch(set domain.OutcomeSet) { f.watched[set.ID] = struct{}{} }
func (f *fakeWatch) Unwatch(setID string)        { delete(f.watched, setID) }
func (f *fakeWatch) Watched() map[string]struct{} {
	out := make(map[string]struct{}, len(f.watched))
	for id := range f.watched {
		out[id] = struct{}{}
	}
	return out
}

// fakeSubs mirrors fakeWatch for the subscription side.
type fakeSubs struct {
	subscribed map[string]struct{}
}

func newFakeSubs() *fakeSubs {
	return &fakeSubs{subscribed: make(map[string]struct{})}
}

func (f *fakeSubs) Subscribe(set domain.OutcomeSet) { f.subscribed[set.ID] = struct{}{} }
func (f *fakeSubs) Unsubscribe(setID string)        { delete(f.subscribed, setID) }
func (f *fakeSubs) Subscribed() map[string]struct{} {
	out := make(map[string]struct{}, len(f.subscribed))
	for id := range f.subscribed {
		out[id] = struct{}{}
	}
	return out
}

func fixtureEvent(id, title string, endAt time.Time) domain.Event {
	ev := domain.Event{
		ID:     id,
		Title:  title,
		EndAt:  endAt,
		TagIDs: map[string]struct{}{},
		Markets: []domain.Market{
			{
				ID:               id + "-m1",
				EventID:          id,
				Question:         title,
				Kind:             domain.MarketKindBinary,
				SportsMarketType: "moneyline",
				Outcomes: []domain.Outcome{
					{TokenID: id + "-tok-a", Label: "Home", MarketID: id + "-m1"},
					{TokenID: id + "-tok-b", Label: "Away", MarketID: id + "-m1"},
				},
			},
		},
	}
	ev.AddTags("100639")
	return ev
}

func newTestDiscovery(src *fakeSource, watch *fakeWatch, subs *fakeSubs, now time.Time) *Discovery {
	logger := discardLogger()
	fetcher := catalog.NewFetcher(src, []string{"745"}, 100, time.Second, logger)
	builder := catalog.NewBuilder(logger)

	d := NewDiscovery(fetcher, builder, watch, subs, nil, nil, nil, DiscoveryConfig{
		GameTagID: "100639",
		Horizon:   12 * time.Hour,
		Interval:  time.Minute,
	}, logger)
	d.now = func() time.Time { return now }
	return d
}

func TestRunCycleSubscribesNewSets(t *testing.T) {
	now := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)
	src := &fakeSource{events: []domain.Event{
		fixtureEvent("ev1", "Lakers vs. Celtics", now.Add(3*time.Hour)),
	}}
	watch := newFakeWatch()
	subs := newFakeSubs()

	d := newTestDiscovery(src, watch, subs, now)
	d.RunCycle(context.Background())

	if _, ok := watch.watched["ev1:ev1-m1"]; !ok {
		t.Errorf("watched = %v, want ev1:ev1-m1", watch.Watched())
	}
	if _, ok := subs.subscribed["ev1:ev1-m1"]; !ok {
		t.Errorf("subscribed = %v, want ev1:ev1-m1", subs.Subscribed())
	}
}

func TestRunCycleUnsubscribesVanishedSets(t *testing.T) {
	now := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)
	src := &fakeSource{events: []domain.Event{
		fixtureEvent("ev1", "Lakers vs. Celtics", now.Add(3*time.Hour)),
		fixtureEvent("ev2", "Heat vs. Knicks", now.Add(4*time.Hour)),
	}}
	watch := newFakeWatch()
	subs := newFakeSubs()

	d := newTestDiscovery(src, watch, subs, now)
	d.RunCycle(context.Background())
	if len(watch.watched) != 2 {
		t.Fatalf("watched = %d sets, want 2", len(watch.watched))
	}

	// ev1 disappears from the catalog on the next cycle.
	src.setEvents([]domain.Event{fixtureEvent("ev2", "Heat vs. Knicks", now.Add(4*time.Hour))})
	d.RunCycle(context.Background())

	if _, ok := watch.watched["ev1:ev1-m1"]; ok {
		t.Error("vanished set still watched")
	}
	if _, ok := subs.subscribed["ev1:ev1-m1"]; ok {
		t.Error("vanished set still subscribed")
	}
	if _, ok := subs.subscribed["ev2:ev2-m1"]; !ok {
		t.Error("surviving set dropped")
	}
}

func TestRunCycleFiltersOutsideWindowAndUntagged(t *testing.T) {
	now := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)

	farFuture := fixtureEvent("ev-far", "Next week's game", now.Add(72*time.Hour))
	noGameTag := fixtureEvent("ev-future", "Championship winner", now.Add(3*time.Hour))
	noGameTag.TagIDs = map[string]struct{}{"745": {}}

	src := &fakeSource{events: []domain.Event{
		farFuture,
		noGameTag,
		fixtureEvent("ev1", "Lakers vs. Celtics", now.Add(3*time.Hour)),
	}}
	watch := newFakeWatch()
	subs := newFakeSubs()

	d := newTestDiscovery(src, watch, subs, now)
	d.RunCycle(context.Background())

	if len(watch.watched) != 1 {
		t.Fatalf("watched = %v, want only the in-window game", watch.Watched())
	}
	if _, ok := watch.watched["ev1:ev1-m1"]; !ok {
		t.Errorf("watched = %v, want ev1:ev1-m1", watch.Watched())
	}
}

func TestRunCycleIdempotent(t *testing.T) {
	now := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)
	src := &fakeSource{events: []domain.Event{
		fixtureEvent("ev1", "Lakers vs. Celtics", now.Add(3*time.Hour)),
	}}
	watch := newFakeWatch()
	subs := newFakeSubs()

	d := newTestDiscovery(src, watch, subs, now)
	d.RunCycle(context.Background())
	d.RunCycle(context.Background())

	if len(watch.watched) != 1 || len(subs.subscribed) != 1 {
		t.Errorf("watched=%d subscribed=%d, want 1/1 after repeat cycle",
			len(watch.watched), len(subs.subscribed))
	}
}
