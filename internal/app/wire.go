package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	s3blob "github.com/rmarchant/polyscout/internal/blob/s3"
	"github.com/rmarchant/polyscout/internal/cache/redis"
	"github.com/rmarchant/polyscout/internal/config"
	"github.com/rmarchant/polyscout/internal/domain"
	"github.com/rmarchant/polyscout/internal/notify"
	"github.com/rmarchant/polyscout/internal/store/postgres"
)

// Dependencies bundles every domain-level dependency that the application
// modes need to operate. It is constructed by Wire and torn down by the
// returned cleanup function. EventStore, OpportunityStore, and BlobWriter are
// nil in modes that do not persist or export.
type Dependencies struct {
	EventStore       domain.EventStore
	OpportunityStore domain.OpportunityStore
	SignalBus        domain.SignalBus
	CatalogCache     domain.CatalogCache
	BlobWriter       domain.BlobWriter
	Notifier         *notify.Notifier
}

// needsPostgres returns true for modes that write the audit stores.
func needsPostgres(mode string) bool {
	return strings.EqualFold(mode, "full")
}

// needsRedis returns true for modes that run the live detection path; the
// one-shot discover mode has no detector and therefore no bus.
func needsRedis(mode string) bool {
	switch strings.ToLower(mode) {
	case "monitor", "full":
		return true
	default:
		return false
	}
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that should
// be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config) (*Dependencies, func(), error) {
	logger := slog.Default()

	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}

	// --- PostgreSQL (only for modes that persist) ---
	if needsPostgres(cfg.Mode) {
		pgClient, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:      cfg.Postgres.DSN,
			Host:     cfg.Postgres.Host,
			Port:     cfg.Postgres.Port,
			Database: cfg.Postgres.Database,
			User:     cfg.Postgres.User,
			Password: cfg.Postgres.Password,
			SSLMode:  cfg.Postgres.SSLMode,
			MaxConns: cfg.Postgres.PoolMaxConns,
			MinConns: cfg.Postgres.PoolMinConns,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres: %w", err)
		}
		closers = append(closers, pgClient.Close)

		if cfg.Postgres.RunMigrations {
			if err := pgClient.RunMigrations(ctx); err != nil {
				cleanup()
				return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
			}
		}

		pool := pgClient.Pool()
		deps.EventStore = postgres.NewEventStore(pool)
		deps.OpportunityStore = postgres.NewOpportunityStore(pool)
	}

	// --- Redis signal bus ---
	if needsRedis(cfg.Mode) {
		redisClient, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: redis: %w", err)
		}
		closers = append(closers, func() { _ = redisClient.Close() })

		deps.SignalBus = redis.NewSignalBus(redisClient)
		deps.CatalogCache = redis.NewCatalogCache(redisClient)
	}

	// --- S3 blob storage (only when the catalog export is enabled) ---
	if cfg.Export.Enabled {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.Export.Endpoint,
			Region:         cfg.Export.Region,
			Bucket:         cfg.Export.Bucket,
			AccessKey:      cfg.Export.AccessKey,
			SecretKey:      cfg.Export.SecretKey,
			UseSSL:         cfg.Export.UseSSL,
			ForcePathStyle: cfg.Export.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}
		closers = append(closers, func() { _ = s3Client.Close() })

		deps.BlobWriter = s3blob.NewWriter(s3Client)
	}

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(
			cfg.Notify.TelegramToken,
			cfg.Notify.TelegramChatID,
		))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)

	return deps, cleanup, nil
}
