package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies POLYSCOUT_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known POLYSCOUT_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject secrets at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Polymarket ──
	setStr(&cfg.Polymarket.GammaHost, "POLYSCOUT_POLYMARKET_GAMMA_HOST")
	setStr(&cfg.Polymarket.ClobHost, "POLYSCOUT_POLYMARKET_CLOB_HOST")
	setStr(&cfg.Polymarket.WsHost, "POLYSCOUT_POLYMARKET_WS_HOST")

	// ── Discovery ──
	setStringSlice(&cfg.Discovery.TagIDs, "POLYSCOUT_DISCOVERY_TAG_IDS")
	setStr(&cfg.Discovery.GameTagID, "POLYSCOUT_DISCOVERY_GAME_TAG_ID")
	setDuration(&cfg.Discovery.Horizon, "POLYSCOUT_DISCOVERY_HORIZON")
	setDuration(&cfg.Discovery.Interval, "POLYSCOUT_DISCOVERY_INTERVAL")
	setDuration(&cfg.Discovery.RequestTimeout, "POLYSCOUT_DISCOVERY_REQUEST_TIMEOUT")
	setInt(&cfg.Discovery.PageLimit, "POLYSCOUT_DISCOVERY_PAGE_LIMIT")

	// ── Feed ──
	setDuration(&cfg.Feed.ReconnectBaseWait, "POLYSCOUT_FEED_RECONNECT_BASE_WAIT")
	setDuration(&cfg.Feed.ReconnectMaxWait, "POLYSCOUT_FEED_RECONNECT_MAX_WAIT")
	setDuration(&cfg.Feed.SnapshotTimeout, "POLYSCOUT_FEED_SNAPSHOT_TIMEOUT")

	// ── Detector ──
	setInt(&cfg.Detector.WinningsFeeBps, "POLYSCOUT_DETECTOR_WINNINGS_FEE_BPS")
	setFloat64(&cfg.Detector.Threshold, "POLYSCOUT_DETECTOR_THRESHOLD")
	setDuration(&cfg.Detector.ReAlertInterval, "POLYSCOUT_DETECTOR_RE_ALERT_INTERVAL")

	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "POLYSCOUT_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "POLYSCOUT_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "POLYSCOUT_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "POLYSCOUT_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "POLYSCOUT_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "POLYSCOUT_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "POLYSCOUT_POSTGRES_SSL_MODE")
	setInt(&cfg.Postgres.PoolMaxConns, "POLYSCOUT_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "POLYSCOUT_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "POLYSCOUT_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "POLYSCOUT_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "POLYSCOUT_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "POLYSCOUT_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "POLYSCOUT_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "POLYSCOUT_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "POLYSCOUT_REDIS_TLS_ENABLED")

	// ── Export ──
	setBool(&cfg.Export.Enabled, "POLYSCOUT_EXPORT_ENABLED")
	setStr(&cfg.Export.Endpoint, "POLYSCOUT_EXPORT_ENDPOINT")
	setStr(&cfg.Export.Region, "POLYSCOUT_EXPORT_REGION")
	setStr(&cfg.Export.Bucket, "POLYSCOUT_EXPORT_BUCKET")
	setStr(&cfg.Export.AccessKey, "POLYSCOUT_EXPORT_ACCESS_KEY")
	setStr(&cfg.Export.SecretKey, "POLYSCOUT_EXPORT_SECRET_KEY")
	setBool(&cfg.Export.UseSSL, "POLYSCOUT_EXPORT_USE_SSL")
	setBool(&cfg.Export.ForcePathStyle, "POLYSCOUT_EXPORT_FORCE_PATH_STYLE")
	setStr(&cfg.Export.Prefix, "POLYSCOUT_EXPORT_PREFIX")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "POLYSCOUT_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "POLYSCOUT_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "POLYSCOUT_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "POLYSCOUT_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.Mode, "POLYSCOUT_MODE")
	setStr(&cfg.LogLevel, "POLYSCOUT_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
