package catalog

import (
	"time"

	"github.com/rmarchant/polyscout/internal/domain"
)

// WithinWindow keeps events whose end time falls in the half-open interval
// [now, now+horizon). Events that already ended are gone, and events far in
// the future are not worth a live subscription yet; they re-enter the window
// on a later discovery cycle.
func WithinWindow(events []domain.Event, now time.Time, horizon time.Duration) []domain.Event {
	cutoff := now.Add(horizon)
	out := make([]domain.Event, 0, len(events))
	for _, ev := range events {
		if ev.EndAt.Before(now) || !ev.EndAt.Before(cutoff) {
			continue
		}
		out = append(out, ev)
	}
	return out
}

// GamesOnly keeps events carrying the games tag. Polymarket tags individual
// fixtures (as opposed to season-long futures) with a dedicated tag id.
func GamesOnly(events []domain.Event, gameTagID string) []domain.Event {
	out := make([]domain.Event, 0, len(events))
	for i := range events {
		if events[i].HasTag(gameTagID) {
			out = append(out, events[i])
		}
	}
	return out
}

// MoneylineOnly returns a copy of the event keeping only markets that are
// moneyline-typed or carry no sports classification at all. Derivative
// sports markets (spread, totals) price the same fixture under different
// rules and never form an exhaustive partition with the moneyline outcomes.
func MoneylineOnly(ev domain.Event) domain.Event {
	kept := make([]domain.Market, 0, len(ev.Markets))
	for _, m := range ev.Markets {
		if m.SportsMarketType != "" && m.SportsMarketType != "moneyline" {
			continue
		}
		kept = append(kept, m)
	}
	ev.Markets = kept
	return ev
}
