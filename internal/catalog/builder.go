package catalog

import (
	"log/slog"

	"github.com/rmarchant/polyscout/internal/domain"
)

// Builder turns one event's markets into the outcome sets the detector
// watches. Grouping is driven entirely by market metadata: the market kind,
// the neg-risk flag, and the partition role. Outcome labels are display text
// and never participate in grouping decisions.
type Builder struct {
	logger *slog.Logger
}

// NewBuilder creates a builder.
func NewBuilder(logger *slog.Logger) *Builder {
	return &Builder{
		logger: logger.With(slog.String("component", "set_builder")),
	}
}

// Build produces the event's outcome sets:
//
//   - an n-way market is one set covering all of its outcomes;
//   - neg-risk binary siblings with partition roles pair their Yes tokens
//     into one set spanning the event;
//   - any other binary market is its own two-leg set (its Yes and No tokens
//     partition the market by construction).
//
// Markets that cannot be grouped are skipped with a diagnostic; a bad market
// never blocks the rest of the event.
func (b *Builder) Build(ev domain.Event) []domain.OutcomeSet {
	var sets []domain.OutcomeSet
	var siblings []domain.Market

	for _, m := range ev.Markets {
		switch {
		case m.Kind == domain.MarketKindNWay:
			sets = append(sets, domain.OutcomeSet{
				ID:         ev.ID + ":" + m.ID,
				EventID:    ev.ID,
				EventTitle: ev.Title,
				Label:      m.Question,
				Outcomes:   m.Outcomes,
			})

		case m.Kind == domain.MarketKindBinary && m.NegRisk && m.Role != "":
			siblings = append(siblings, m)

		case m.Kind == domain.MarketKindBinary:
			sets = append(sets, domain.OutcomeSet{
				ID:         ev.ID + ":" + m.ID,
				EventID:    ev.ID,
				EventTitle: ev.Title,
				Label:      m.Question,
				Outcomes:   m.Outcomes,
			})

		default:
			b.logger.Debug("skipping market of unknown kind",
				slog.String("event_id", ev.ID),
				slog.String("market_id", m.ID),
			)
		}
	}

	if len(siblings) > 0 {
		if set, ok := b.buildPartition(ev, siblings); ok {
			sets = append(sets, set)
		}
	}

	return sets
}

// buildPartition pairs neg-risk sibling markets into one set of their Yes
// tokens. The partition is usable only when at least two siblings parsed and
// every sibling claims a distinct role; otherwise the whole partition is
// skipped as ungroupable.
func (b *Builder) buildPartition(ev domain.Event, siblings []domain.Market) (domain.OutcomeSet, bool) {
	if len(siblings) < 2 {
		b.logger.Warn("ungroupable neg-risk partition",
			slog.String("event_id", ev.ID),
			slog.Int("members", len(siblings)),
			slog.String("error", domain.ErrUngroupable.Error()),
		)
		return domain.OutcomeSet{}, false
	}

	seenRoles := make(map[string]struct{}, len(siblings))
	legs := make([]domain.Outcome, 0, len(siblings))
	for _, m := range siblings {
		if _, dup := seenRoles[m.Role]; dup {
			b.logger.Warn("ungroupable neg-risk partition",
				slog.String("event_id", ev.ID),
				slog.String("duplicate_role", m.Role),
				slog.String("error", domain.ErrUngroupable.Error()),
			)
			return domain.OutcomeSet{}, false
		}
		seenRoles[m.Role] = struct{}{}

		yes, ok := yesOutcome(m)
		if !ok {
			b.logger.Warn("ungroupable neg-risk partition",
				slog.String("event_id", ev.ID),
				slog.String("market_id", m.ID),
				slog.String("error", domain.ErrUngroupable.Error()),
			)
			return domain.OutcomeSet{}, false
		}
		// The partition leg is labeled by the sibling's role, not the
		// market-local "Yes".
		yes.Label = m.Role
		legs = append(legs, yes)
	}

	return domain.OutcomeSet{
		ID:         ev.ID + ":negrisk",
		EventID:    ev.ID,
		EventTitle: ev.Title,
		Label:      ev.Title + ": partition",
		Outcomes:   legs,
	}, true
}

// yesOutcome returns the market's Yes-side outcome. Gamma lists the Yes
// outcome first for binary markets; the label check guards against reversed
// listings.
func yesOutcome(m domain.Market) (domain.Outcome, bool) {
	if len(m.Outcomes) != 2 {
		return domain.Outcome{}, false
	}
	for _, o := range m.Outcomes {
		if o.Label == "Yes" {
			return o, true
		}
	}
	return m.Outcomes[0], true
}
