package catalog

import (
	"log/slog"
	"sort"

	"github.com/rmarchant/polyscout/internal/domain"
)

// Merge collapses per-tag fetch results into one event list. The same event
// commonly appears under several tags (an NBA game carries both the sport tag
// and the games tag); the first occurrence establishes the record and later
// occurrences only union their tag ids into it. Output is sorted by event id
// so the result is identical regardless of tag iteration order.
//
// Fields other than the tag set are assumed identical across sources. When
// they diverge the first-seen value wins; divergence is a data-quality signal
// logged at debug, never an error.
func Merge(pairs []TagEvents, logger *slog.Logger) []domain.Event {
	byID := make(map[string]*domain.Event)

	for _, pair := range pairs {
		for i := range pair.Events {
			ev := pair.Events[i]
			existing, seen := byID[ev.ID]
			if !seen {
				copied := ev
				copied.AddTags(pair.TagID)
				byID[ev.ID] = &copied
				continue
			}

			existing.AddTags(ev.TagList()...)
			existing.AddTags(pair.TagID)

			if existing.Title != ev.Title || !existing.EndAt.Equal(ev.EndAt) {
				logger.Debug("duplicate event fields diverge",
					slog.String("event_id", ev.ID),
					slog.String("kept_title", existing.Title),
					slog.String("dropped_title", ev.Title),
				)
			}
		}
	}

	out := make([]domain.Event, 0, len(byID))
	for _, ev := range byID {
		out = append(out, *ev)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
