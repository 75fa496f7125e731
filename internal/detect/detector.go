// Package detect evaluates watched outcome sets against the book cache and
// emits an opportunity whenever buying every outcome of a set costs less than
// the profit threshold.
package detect

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rmarchant/polyscout/internal/domain"
)

// BookReader is the slice of the book cache the detector needs.
type BookReader interface {
	Read(tokenID string) (domain.BookEntry, bool)
}

// Sink receives emitted opportunities. It runs on the feed goroutine that
// triggered the evaluation, so implementations must be fast and non-blocking;
// anything slow belongs behind the signal bus.
type Sink func(domain.Opportunity)

// setState is the per-set debounce memory.
type setState struct {
	set      domain.OutcomeSet
	below    bool
	lastEmit time.Time
}

// Detector owns the watch set and the arbitrage rule: an outcome set is an
// opportunity when the sum of its legs' best asks drops below the threshold.
// Exactly one of the set's outcomes pays out a dollar, so a below-threshold
// basket locks in the difference.
type Detector struct {
	books     BookReader
	sink      Sink
	threshold float64
	reAlert   time.Duration
	logger    *slog.Logger

	mu     sync.Mutex
	states map[string]*setState   // set id -> debounce state
	index  map[string][]string    // token id -> set ids containing it

	// now is swapped in tests to drive the debounce clock.
	now func() time.Time
}

// New creates a detector. threshold is the maximum basket cost that counts
// as an opportunity (e.g. 0.98 with a 2% winnings fee); reAlert is how long
// a set stays quiet after an emit while remaining below threshold.
func New(books BookReader, sink Sink, threshold float64, reAlert time.Duration, logger *slog.Logger) *Detector {
	return &Detector{
		books:     books,
		sink:      sink,
		threshold: threshold,
		reAlert:   reAlert,
		logger:    logger.With(slog.String("component", "detector")),
		states:    make(map[string]*setState),
		index:     make(map[string][]string),
		now:       time.Now,
	}
}

// Watch adds a set to the watch list. Re-watching a known set id refreshes
// its definition and resets its debounce state.
func (d *Detector) Watch(set domain.OutcomeSet) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, known := d.states[set.ID]; known {
		d.removeFromIndexLocked(set.ID)
	}
	d.states[set.ID] = &setState{set: set}
	for _, tokenID := range set.TokenIDs() {
		d.index[tokenID] = append(d.index[tokenID], set.ID)
	}
}

// Unwatch removes a set. Idempotent; in-flight cache mutations for a removed
// set are simply never evaluated again.
func (d *Detector) Unwatch(setID string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, known := d.states[setID]; !known {
		return
	}
	d.removeFromIndexLocked(setID)
	delete(d.states, setID)
}

// Watched returns the currently watched set ids, for the discovery diff.
func (d *Detector) Watched() map[string]struct{} {
	d.mu.Lock()
	defer d.mu.Unlock()

	out := make(map[string]struct{}, len(d.states))
	for id := range d.states {
		out[id] = struct{}{}
	}
	return out
}

// OnBookChange re-evaluates every watched set containing the token. Called by
// the feed path after each cache mutation.
func (d *Detector) OnBookChange(tokenID string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, setID := range d.index[tokenID] {
		state, ok := d.states[setID]
		if !ok {
			continue
		}
		d.evaluateLocked(state)
	}
}

// evaluateLocked prices one set and emits through the sink when it is an
// opportunity that is not debounced. A set with any unknown or desynced leg
// is skipped with state untouched; prices may be mid-resync and a verdict
// either way would be junk.
func (d *Detector) evaluateLocked(state *setState) {
	legs := make([]domain.OpportunityLeg, 0, len(state.set.Outcomes))
	sum := 0.0
	for _, o := range state.set.Outcomes {
		entry, ok := d.books.Read(o.TokenID)
		if !ok || entry.Desynced {
			return
		}
		sum += entry.BestAsk
		legs = append(legs, domain.OpportunityLeg{
			TokenID: o.TokenID,
			Label:   o.Label,
			BestAsk: entry.BestAsk,
		})
	}

	now := d.now()

	if sum >= d.threshold {
		// Re-arm: the next dip below threshold alerts immediately.
		state.below = false
		return
	}

	if state.below && now.Sub(state.lastEmit) < d.reAlert {
		return
	}

	opp := domain.Opportunity{
		ID:         uuid.NewString(),
		SetID:      state.set.ID,
		EventID:    state.set.EventID,
		EventTitle: state.set.EventTitle,
		SetLabel:   state.set.Label,
		Legs:       legs,
		Sum:        sum,
		Threshold:  d.threshold,
		Margin:     d.threshold - sum,
		DetectedAt: now,
	}

	state.below = true
	state.lastEmit = now

	d.logger.Info("arbitrage opportunity",
		slog.String("set_id", opp.SetID),
		slog.String("event", opp.EventTitle),
		slog.Float64("sum", opp.Sum),
		slog.Float64("margin", opp.Margin),
	)

	if d.sink != nil {
		d.sink(opp)
	}
}

// removeFromIndexLocked drops setID from every token bucket it appears in.
func (d *Detector) removeFromIndexLocked(setID string) {
	state, ok := d.states[setID]
	if !ok {
		return
	}
	for _, tokenID := range state.set.TokenIDs() {
		bucket := d.index[tokenID]
		kept := bucket[:0]
		for _, id := range bucket {
			if id != setID {
				kept = append(kept, id)
			}
		}
		if len(kept) == 0 {
			delete(d.index, tokenID)
		} else {
			d.index[tokenID] = kept
		}
	}
}
