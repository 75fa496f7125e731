// Package catalog implements the discovery side of polyscout: fetching open
// events from the Gamma API per tag, merging duplicates across tags, trimming
// to the monitoring window, and building the outcome sets the detector
// watches.
package catalog

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rmarchant/polyscout/internal/domain"
)

// EventSource is the slice of the Gamma API the fetcher consumes.
type EventSource interface {
	EventsByTag(ctx context.Context, tagID string, endDateMin time.Time, limit int) ([]domain.Event, error)
}

// TagEvents is one tag's fetch result, input to the deduplicator.
type TagEvents struct {
	TagID  string
	Events []domain.Event
}

// Fetcher pulls the event catalog for a configured set of tags. Tags are
// fetched concurrently; a failing tag is logged and skipped so one slow or
// broken tag never empties the whole cycle.
type Fetcher struct {
	source    EventSource
	tagIDs    []string
	pageLimit int
	timeout   time.Duration
	logger    *slog.Logger
}

// NewFetcher creates a fetcher over the given source and tag ids.
func NewFetcher(source EventSource, tagIDs []string, pageLimit int, timeout time.Duration, logger *slog.Logger) *Fetcher {
	return &Fetcher{
		source:    source,
		tagIDs:    tagIDs,
		pageLimit: pageLimit,
		timeout:   timeout,
		logger:    logger.With(slog.String("component", "catalog_fetcher")),
	}
}

// FetchAll fetches every configured tag concurrently and returns the per-tag
// results that succeeded. endDateMin is passed through to the API so events
// that already ended are excluded server-side.
func (f *Fetcher) FetchAll(ctx context.Context, endDateMin time.Time) []TagEvents {
	results := make([]TagEvents, len(f.tagIDs))
	ok := make([]bool, len(f.tagIDs))

	g, gctx := errgroup.WithContext(ctx)
	for i, tagID := range f.tagIDs {
		i, tagID := i, tagID
		g.Go(func() error {
			tctx, cancel := context.WithTimeout(gctx, f.timeout)
			defer cancel()

			events, err := f.source.EventsByTag(tctx, tagID, endDateMin, f.pageLimit)
			if err != nil {
				// Per-tag failure is transient: log and move on.
				f.logger.Warn("tag fetch failed",
					slog.String("tag_id", tagID),
					slog.String("error", err.Error()),
				)
				return nil
			}

			results[i] = TagEvents{TagID: tagID, Events: events}
			ok[i] = true
			return nil
		})
	}
	_ = g.Wait()

	out := make([]TagEvents, 0, len(results))
	for i := range results {
		if ok[i] {
			out = append(out, results[i])
		}
	}

	f.logger.Info("catalog fetch complete",
		slog.Int("tags_requested", len(f.tagIDs)),
		slog.Int("tags_fetched", len(out)),
	)
	return out
}
