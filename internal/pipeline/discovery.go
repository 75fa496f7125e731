// Package pipeline ties discovery to live monitoring: the periodic catalog
// cycle fetches, merges, filters, and groups events, then diffs the resulting
// watch set against what is already subscribed and reconciles detector and
// feed supervisor accordingly.
package pipeline

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/rmarchant/polyscout/internal/catalog"
	"github.com/rmarchant/polyscout/internal/domain"
)

// WatchSet is the detector surface the discovery cycle reconciles.
type WatchSet interface {
	Watch(set domain.OutcomeSet)
	Unwatch(setID string)
	Watched() map[string]struct{}
}

// SubscriptionSet is the feed supervisor surface the discovery cycle
// reconciles.
type SubscriptionSet interface {
	Subscribe(set domain.OutcomeSet)
	Unsubscribe(setID string)
	Subscribed() map[string]struct{}
}

// DiscoveryConfig carries the cycle's tuning.
type DiscoveryConfig struct {
	// GameTagID gates discovery to individual fixtures when non-empty.
	GameTagID string
	Horizon   time.Duration
	Interval  time.Duration
}

// Discovery runs the periodic catalog cycle. Store, cache, and exporter are
// optional; a nil store skips audit persistence, a nil cache skips the latest-
// snapshot publish, a nil exporter skips the blob export.
type Discovery struct {
	fetcher  *catalog.Fetcher
	builder  *catalog.Builder
	watch    WatchSet
	subs     SubscriptionSet
	store    domain.EventStore
	cache    domain.CatalogCache
	exporter *Exporter
	cfg      DiscoveryConfig
	logger   *slog.Logger

	now func() time.Time
}

// NewDiscovery creates a discovery pipeline.
func NewDiscovery(
	fetcher *catalog.Fetcher,
	builder *catalog.Builder,
	watch WatchSet,
	subs SubscriptionSet,
	store domain.EventStore,
	cache domain.CatalogCache,
	exporter *Exporter,
	cfg DiscoveryConfig,
	logger *slog.Logger,
) *Discovery {
	return &Discovery{
		fetcher:  fetcher,
		builder:  builder,
		watch:    watch,
		subs:     subs,
		store:    store,
		cache:    cache,
		exporter: exporter,
		cfg:      cfg,
		logger:   logger.With(slog.String("component", "discovery")),
		now:      time.Now,
	}
}

// RunCycle executes one discovery pass: fetch, merge, filter, build, and
// reconcile. Persistence and export failures are logged and do not fail the
// cycle; the live watch set is already reconciled by then.
func (d *Discovery) RunCycle(ctx context.Context) {
	started := d.now()

	pairs := d.fetcher.FetchAll(ctx, started)
	events := catalog.Merge(pairs, d.logger)
	events = catalog.WithinWindow(events, started, d.cfg.Horizon)
	if d.cfg.GameTagID != "" {
		events = catalog.GamesOnly(events, d.cfg.GameTagID)
	}

	sets := make([]domain.OutcomeSet, 0, len(events))
	for i := range events {
		ev := catalog.MoneylineOnly(events[i])
		sets = append(sets, d.builder.Build(ev)...)
	}

	d.reconcile(sets)
	d.persist(ctx, events, sets)
	d.cacheLatest(ctx, started, events, sets)
	d.export(ctx, started, events, sets)

	d.logger.Info("discovery cycle complete",
		slog.Int("events", len(events)),
		slog.Int("sets", len(sets)),
		slog.Duration("took", d.now().Sub(started)),
	)
}

// RunLoop runs a cycle immediately and then every configured interval until
// ctx is cancelled.
func (d *Discovery) RunLoop(ctx context.Context) error {
	d.RunCycle(ctx)

	ticker := time.NewTicker(d.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			d.RunCycle(ctx)
		}
	}
}

// reconcile diffs the freshly built sets against the current watch set. New
// sets are watched before their subscription starts so the first cache write
// already evaluates; removed sets are unwatched before their subscription is
// torn down so an in-flight mutation of an evicted token is never evaluated.
func (d *Discovery) reconcile(sets []domain.OutcomeSet) {
	fresh := make(map[string]domain.OutcomeSet, len(sets))
	for _, set := range sets {
		fresh[set.ID] = set
	}

	watched := d.watch.Watched()

	added, removed := 0, 0
	for id, set := range fresh {
		if _, ok := watched[id]; ok {
			continue
		}
		d.watch.Watch(set)
		d.subs.Subscribe(set)
		added++
	}
	for id := range watched {
		if _, ok := fresh[id]; ok {
			continue
		}
		d.watch.Unwatch(id)
		d.subs.Unsubscribe(id)
		removed++
	}

	if added > 0 || removed > 0 {
		d.logger.Info("watch set reconciled",
			slog.Int("added", added),
			slog.Int("removed", removed),
			slog.Int("total", len(fresh)),
		)
	}
}

// persist writes the cycle's catalog to the audit store.
func (d *Discovery) persist(ctx context.Context, events []domain.Event, sets []domain.OutcomeSet) {
	if d.store == nil {
		return
	}

	for i := range events {
		if err := d.store.UpsertEvent(ctx, events[i]); err != nil {
			d.logger.Warn("event persist failed",
				slog.String("event_id", events[i].ID),
				slog.String("error", err.Error()),
			)
		}
	}
	for i := range sets {
		if err := d.store.UpsertOutcomeSet(ctx, sets[i]); err != nil {
			d.logger.Warn("outcome set persist failed",
				slog.String("set_id", sets[i].ID),
				slog.String("error", err.Error()),
			)
		}
	}
}

// cacheLatest publishes the cycle snapshot as the current catalog.
func (d *Discovery) cacheLatest(ctx context.Context, at time.Time, events []domain.Event, sets []domain.OutcomeSet) {
	if d.cache == nil {
		return
	}
	payload, err := json.Marshal(newSnapshot(at, events, sets))
	if err != nil {
		d.logger.Warn("catalog snapshot marshal failed", slog.String("error", err.Error()))
		return
	}
	if err := d.cache.SetLatest(ctx, payload); err != nil {
		d.logger.Warn("catalog cache update failed", slog.String("error", err.Error()))
	}
}

// export uploads the cycle snapshot to blob storage.
func (d *Discovery) export(ctx context.Context, at time.Time, events []domain.Event, sets []domain.OutcomeSet) {
	if d.exporter == nil {
		return
	}
	if err := d.exporter.Export(ctx, at, events, sets); err != nil {
		d.logger.Warn("catalog export failed", slog.String("error", err.Error()))
	}
}
