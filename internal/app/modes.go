package app

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rmarchant/polyscout/internal/book"
	"github.com/rmarchant/polyscout/internal/cache/redis"
	"github.com/rmarchant/polyscout/internal/catalog"
	"github.com/rmarchant/polyscout/internal/detect"
	"github.com/rmarchant/polyscout/internal/domain"
	"github.com/rmarchant/polyscout/internal/feed"
	"github.com/rmarchant/polyscout/internal/notify"
	"github.com/rmarchant/polyscout/internal/pipeline"
	"github.com/rmarchant/polyscout/internal/platform/polymarket"
)

// feedHealthInterval is how often subscription states are summarized into the
// log while the live path runs.
const feedHealthInterval = time.Minute

// monitoring bundles the live detection path: the book cache, the detector
// evaluating it, the feed supervisor mutating it, and the discovery pipeline
// reconciling both against the catalog.
type monitoring struct {
	books      *book.Cache
	detector   *detect.Detector
	supervisor *feed.Supervisor
	discovery  *pipeline.Discovery
}

// MonitorMode runs live arbitrage detection without persistence: discovery
// cycles keep the watch set fresh, the feed keeps the book cache current, and
// detected opportunities flow through the signal bus to notification channels.
func (a *App) MonitorMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting monitor mode")

	g, ctx := errgroup.WithContext(ctx)

	live := a.buildMonitoring(ctx, deps)
	defer live.supervisor.Close()

	g.Go(func() error {
		return live.discovery.RunLoop(ctx)
	})
	g.Go(func() error {
		return a.runOpportunityRelay(ctx, deps)
	})
	g.Go(func() error {
		return a.runFeedHealthLog(ctx, live.supervisor)
	})

	return g.Wait()
}

// DiscoverMode runs a single discovery cycle and exits. It never opens feed
// connections; when Postgres or the export target are wired the cycle's
// catalog lands there, otherwise the run is a dry inspection of what would be
// watched.
func (a *App) DiscoverMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting discover mode")

	rec := newStaticSet()
	disc := a.buildDiscovery(deps, rec, rec)
	disc.RunCycle(ctx)

	a.logger.InfoContext(ctx, "discover mode finished",
		slog.Int("sets", len(rec.ids)),
	)
	return nil
}

// FullMode is monitor mode plus persistence: discovered catalogs are upserted
// to Postgres, cycle snapshots are exported to blob storage when enabled, and
// every relayed opportunity is appended to the audit store.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting full mode")

	g, ctx := errgroup.WithContext(ctx)

	live := a.buildMonitoring(ctx, deps)
	defer live.supervisor.Close()

	g.Go(func() error {
		return live.discovery.RunLoop(ctx)
	})
	g.Go(func() error {
		return a.runOpportunityRelay(ctx, deps)
	})
	g.Go(func() error {
		return a.runFeedHealthLog(ctx, live.supervisor)
	})

	return g.Wait()
}

// buildMonitoring constructs the live path. The detector's sink publishes to
// the signal bus so the feed goroutine that triggered the evaluation never
// waits on notification delivery.
func (a *App) buildMonitoring(ctx context.Context, deps *Dependencies) *monitoring {
	books := book.NewCache()

	bus := deps.SignalBus
	sink := func(opp domain.Opportunity) {
		payload, err := json.Marshal(opp)
		if err != nil {
			a.logger.ErrorContext(ctx, "opportunity marshal failed",
				slog.String("opportunity_id", opp.ID),
				slog.String("error", err.Error()),
			)
			return
		}
		if err := bus.Publish(ctx, redis.OpportunityChannel, payload); err != nil {
			a.logger.WarnContext(ctx, "opportunity publish failed",
				slog.String("opportunity_id", opp.ID),
				slog.String("error", err.Error()),
			)
		}
	}

	detector := detect.New(
		books,
		sink,
		a.cfg.Detector.EffectiveThreshold(),
		a.cfg.Detector.ReAlertInterval.Duration,
		a.logger,
	)

	wsDialer := polymarket.NewWSDialer(a.cfg.Polymarket.WsHost)
	dialer := feed.DialerFunc(func(ctx context.Context, tokenIDs []string) (feed.Conn, error) {
		return wsDialer.Dial(ctx, tokenIDs)
	})
	clob := polymarket.NewClobClient(a.cfg.Polymarket.ClobHost, a.cfg.Feed.SnapshotTimeout.Duration)

	supervisor := feed.NewSupervisor(dialer, clob, books, detector.OnBookChange, feed.Config{
		ReconnectBaseWait: a.cfg.Feed.ReconnectBaseWait.Duration,
		ReconnectMaxWait:  a.cfg.Feed.ReconnectMaxWait.Duration,
		SnapshotTimeout:   a.cfg.Feed.SnapshotTimeout.Duration,
	}, a.logger)

	return &monitoring{
		books:      books,
		detector:   detector,
		supervisor: supervisor,
		discovery:  a.buildDiscovery(deps, detector, supervisor),
	}
}

// buildDiscovery constructs the catalog pipeline around the given watch and
// subscription surfaces.
func (a *App) buildDiscovery(deps *Dependencies, watch pipeline.WatchSet, subs pipeline.SubscriptionSet) *pipeline.Discovery {
	gamma := polymarket.NewGammaClient(a.cfg.Polymarket.GammaHost, a.cfg.Discovery.RequestTimeout.Duration)
	fetcher := catalog.NewFetcher(
		gamma,
		a.cfg.Discovery.TagIDs,
		a.cfg.Discovery.PageLimit,
		a.cfg.Discovery.RequestTimeout.Duration,
		a.logger,
	)
	builder := catalog.NewBuilder(a.logger)

	var exporter *pipeline.Exporter
	if deps.BlobWriter != nil {
		exporter = pipeline.NewExporter(deps.BlobWriter, a.cfg.Export.Prefix)
	}

	return pipeline.NewDiscovery(fetcher, builder, watch, subs, deps.EventStore, deps.CatalogCache, exporter, pipeline.DiscoveryConfig{
		GameTagID: a.cfg.Discovery.GameTagID,
		Horizon:   a.cfg.Discovery.Horizon.Duration,
		Interval:  a.cfg.Discovery.Interval.Duration,
	}, a.logger)
}

// runOpportunityRelay consumes detected opportunities off the signal bus and
// fans them out: notification channels always, the audit store when wired.
// Everything slow lives here, on the far side of the bus from the detector.
func (a *App) runOpportunityRelay(ctx context.Context, deps *Dependencies) error {
	ch, err := deps.SignalBus.Subscribe(ctx, redis.OpportunityChannel)
	if err != nil {
		return fmt.Errorf("opportunity relay: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case payload, ok := <-ch:
			if !ok {
				return nil
			}

			var opp domain.Opportunity
			if err := json.Unmarshal(payload, &opp); err != nil {
				a.logger.WarnContext(ctx, "opportunity relay: bad payload",
					slog.String("error", err.Error()),
				)
				continue
			}

			title, message := notify.FormatOpportunity(opp)
			if err := deps.Notifier.Notify(ctx, notify.EventOpportunity, title, message); err != nil {
				a.logger.WarnContext(ctx, "opportunity relay: notify failed",
					slog.String("opportunity_id", opp.ID),
					slog.String("error", err.Error()),
				)
			}

			if deps.OpportunityStore != nil {
				if err := deps.OpportunityStore.Insert(ctx, opp); err != nil {
					a.logger.WarnContext(ctx, "opportunity relay: store insert failed",
						slog.String("opportunity_id", opp.ID),
						slog.String("error", err.Error()),
					)
				}
			}
		}
	}
}

// runFeedHealthLog periodically summarizes subscription states so a degraded
// or flapping feed is visible without debug logging.
func (a *App) runFeedHealthLog(ctx context.Context, sup *feed.Supervisor) error {
	ticker := time.NewTicker(feedHealthInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			counts := make(map[domain.SubscriptionState]int)
			for _, st := range sup.States() {
				counts[st]++
			}
			a.logger.InfoContext(ctx, "feed health",
				slog.Int("synced", counts[domain.SubStateSynced]),
				slog.Int("degraded", counts[domain.SubStateDegraded]),
				slog.Int("reconnecting", counts[domain.SubStateReconnecting]),
				slog.Int("connecting", counts[domain.SubStateConnecting]),
			)
		}
	}
}

// staticSet records reconciliation without starting any live machinery. The
// one-shot discover mode uses it for both the watch and subscription sides.
type staticSet struct {
	ids map[string]struct{}
}

func newStaticSet() *staticSet {
	return &staticSet{ids: make(map[string]struct{})}
}

func (s *staticSet) Watch(set domain.OutcomeSet)     { s.ids[set.ID] = struct{}{} }
func (s *staticSet) Subscribe(set domain.OutcomeSet) {}
func (s *staticSet) Unwatch(id string)               { delete(s.ids, id) }
func (s *staticSet) Unsubscribe(id string)           {}
func (s *staticSet) Watched() map[string]struct{}    { return s.ids }
func (s *staticSet) Subscribed() map[string]struct{} { return s.ids }
