// Package config defines the top-level configuration for polyscout and
// provides validation helpers. The config is built once at startup and passed
// into component constructors; nothing reads configuration from ambient state
// after that.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a
// TOML file and then optionally overridden by POLYSCOUT_* environment
// variables.
type Config struct {
	Polymarket PolymarketConfig `toml:"polymarket"`
	Discovery  DiscoveryConfig  `toml:"discovery"`
	Feed       FeedConfig       `toml:"feed"`
	Detector   DetectorConfig   `toml:"detector"`
	Postgres   PostgresConfig   `toml:"postgres"`
	Redis      RedisConfig      `toml:"redis"`
	Export     ExportConfig     `toml:"export"`
	Notify     NotifyConfig     `toml:"notify"`
	Mode       string           `toml:"mode"`
	LogLevel   string           `toml:"log_level"`
}

// PolymarketConfig holds Polymarket API endpoints.
type PolymarketConfig struct {
	GammaHost string `toml:"gamma_host"`
	ClobHost  string `toml:"clob_host"`
	WsHost    string `toml:"ws_host"`
}

// DiscoveryConfig holds catalog discovery parameters.
type DiscoveryConfig struct {
	// TagIDs are the Gamma topic tags fetched each cycle. Tags may overlap;
	// the deduplicator merges events discovered under multiple tags.
	TagIDs []string `toml:"tag_ids"`
	// GameTagID gates events to live games; events without this tag are
	// dropped before windowing. Empty disables the gate.
	GameTagID string `toml:"game_tag_id"`
	// Horizon is the monitoring lookahead: only events resolving within
	// [now, now+horizon) are watched.
	Horizon duration `toml:"horizon"`
	// Interval is the period between discovery cycles.
	Interval duration `toml:"interval"`
	// RequestTimeout bounds each per-tag catalog request.
	RequestTimeout duration `toml:"request_timeout"`
	// PageLimit is the per-tag event page size requested from Gamma.
	PageLimit int `toml:"page_limit"`
}

// FeedConfig holds push-feed subscription parameters.
type FeedConfig struct {
	ReconnectBaseWait duration `toml:"reconnect_base_wait"`
	ReconnectMaxWait  duration `toml:"reconnect_max_wait"`
	// SnapshotTimeout bounds each REST book snapshot request used for the
	// initial sync and for resynchronization after a sequence gap.
	SnapshotTimeout duration `toml:"snapshot_timeout"`
}

// DetectorConfig holds arb detection parameters.
type DetectorConfig struct {
	// WinningsFeeBps is the exchange fee on winnings, in basis points. The
	// detection threshold defaults to 1 - fee when Threshold is zero.
	WinningsFeeBps int `toml:"winnings_fee_bps"`
	// Threshold overrides the derived threshold when set (> 0).
	Threshold float64 `toml:"threshold"`
	// ReAlertInterval is the minimum time before the detector re-emits for an
	// outcome set whose sum stayed below threshold the whole time.
	ReAlertInterval duration `toml:"re_alert_interval"`
}

// EffectiveThreshold returns the configured threshold, deriving it from the
// winnings fee when no explicit override is set.
func (d DetectorConfig) EffectiveThreshold() float64 {
	if d.Threshold > 0 {
		return d.Threshold
	}
	return 1.0 - float64(d.WinningsFeeBps)/10000.0
}

// PostgresConfig holds PostgreSQL connection parameters for the audit stores.
type PostgresConfig struct {
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters for the signal bus.
type RedisConfig struct {
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// ExportConfig holds S3-compatible object storage parameters for the
// per-cycle catalog export.
type ExportConfig struct {
	Enabled        bool   `toml:"enabled"`
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
	// Prefix is the object key prefix for catalog exports.
	Prefix string `toml:"prefix"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// duration is a wrapper around time.Duration that supports TOML string
// decoding (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with reasonable default values.
// These match the values in config.example.toml.
func Defaults() Config {
	return Config{
		Polymarket: PolymarketConfig{
			GammaHost: "https://gamma-api.polymarket.com",
			ClobHost:  "https://clob.polymarket.com",
			WsHost:    "wss://ws-subscriptions-clob.polymarket.com/ws/market",
		},
		Discovery: DiscoveryConfig{
			TagIDs:         []string{},
			GameTagID:      "100639",
			Horizon:        duration{12 * time.Hour},
			Interval:       duration{5 * time.Minute},
			RequestTimeout: duration{10 * time.Second},
			PageLimit:      50,
		},
		Feed: FeedConfig{
			ReconnectBaseWait: duration{2 * time.Second},
			ReconnectMaxWait:  duration{60 * time.Second},
			SnapshotTimeout:   duration{10 * time.Second},
		},
		Detector: DetectorConfig{
			WinningsFeeBps:  200,
			Threshold:       0,
			ReAlertInterval: duration{2 * time.Minute},
		},
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "polyscout",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			DB:         0,
			PoolSize:   20,
			MaxRetries: 3,
			TLSEnabled: false,
		},
		Export: ExportConfig{
			Enabled:        false,
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "polyscout-data",
			UseSSL:         false,
			ForcePathStyle: true,
			Prefix:         "catalog",
		},
		Notify: NotifyConfig{
			Events: []string{"opportunity"},
		},
		Mode:     "monitor",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"monitor":  true,
	"discover": true,
	"full":     true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks Config for obviously invalid or missing values and returns
// a combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: monitor, discover, full)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Polymarket endpoints
	if c.Polymarket.GammaHost == "" {
		errs = append(errs, "polymarket: gamma_host must not be empty")
	}
	if c.Polymarket.ClobHost == "" {
		errs = append(errs, "polymarket: clob_host must not be empty")
	}
	if c.Polymarket.WsHost == "" && !strings.EqualFold(c.Mode, "discover") {
		errs = append(errs, "polymarket: ws_host must not be empty for mode "+c.Mode)
	}

	// Discovery
	if len(c.Discovery.TagIDs) == 0 {
		errs = append(errs, "discovery: tag_ids must list at least one tag")
	}
	if c.Discovery.Horizon.Duration <= 0 {
		errs = append(errs, "discovery: horizon must be positive")
	}
	if c.Discovery.Interval.Duration <= 0 {
		errs = append(errs, "discovery: interval must be positive")
	}
	if c.Discovery.RequestTimeout.Duration <= 0 {
		errs = append(errs, "discovery: request_timeout must be positive")
	}
	if c.Discovery.PageLimit < 1 {
		errs = append(errs, "discovery: page_limit must be >= 1")
	}

	// Feed
	if c.Feed.ReconnectBaseWait.Duration <= 0 {
		errs = append(errs, "feed: reconnect_base_wait must be positive")
	}
	if c.Feed.ReconnectMaxWait.Duration < c.Feed.ReconnectBaseWait.Duration {
		errs = append(errs, "feed: reconnect_max_wait must be >= reconnect_base_wait")
	}
	if c.Feed.SnapshotTimeout.Duration <= 0 {
		errs = append(errs, "feed: snapshot_timeout must be positive")
	}

	// Detector
	threshold := c.Detector.EffectiveThreshold()
	if threshold <= 0 || threshold >= 1 {
		errs = append(errs, fmt.Sprintf("detector: effective threshold must be in (0,1), got %v", threshold))
	}
	if c.Detector.ReAlertInterval.Duration <= 0 {
		errs = append(errs, "detector: re_alert_interval must be positive")
	}

	// Postgres — only required by modes that persist.
	if strings.EqualFold(c.Mode, "full") {
		if strings.TrimSpace(c.Postgres.DSN) == "" {
			if c.Postgres.Host == "" {
				errs = append(errs, "postgres: host must not be empty (or set postgres.dsn)")
			}
			if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
				errs = append(errs, fmt.Sprintf("postgres: port must be 1-65535, got %d", c.Postgres.Port))
			}
			if c.Postgres.Database == "" {
				errs = append(errs, "postgres: database must not be empty")
			}
		}
		if c.Postgres.PoolMaxConns < 1 {
			errs = append(errs, "postgres: pool_max_conns must be >= 1")
		}
		if c.Postgres.PoolMinConns < 0 {
			errs = append(errs, "postgres: pool_min_conns must be >= 0")
		}
		if c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
			errs = append(errs, "postgres: pool_min_conns must not exceed pool_max_conns")
		}
	}

	// Redis
	if c.Redis.Addr == "" {
		errs = append(errs, "redis: addr must not be empty")
	}
	if c.Redis.PoolSize < 1 {
		errs = append(errs, "redis: pool_size must be >= 1")
	}

	// Export
	if c.Export.Enabled {
		if c.Export.Endpoint == "" {
			errs = append(errs, "export: endpoint must not be empty when enabled")
		}
		if c.Export.Bucket == "" {
			errs = append(errs, "export: bucket must not be empty when enabled")
		}
		if c.Export.Region == "" {
			errs = append(errs, "export: region must not be empty when enabled")
		}
	}

	// Notify — token and chat id must be set together.
	tok := c.Notify.TelegramToken != ""
	chat := c.Notify.TelegramChatID != ""
	if tok != chat {
		errs = append(errs, "notify: telegram_token and telegram_chat_id must be set together")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
