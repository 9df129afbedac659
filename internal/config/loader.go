package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies SCOUT_* environment variable overrides, and
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

// applyEnvOverrides reads well-known SCOUT_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject secrets at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Catalog ──
	setStr(&cfg.Catalog.GammaHost, "SCOUT_CATALOG_GAMMA_HOST")
	setStr(&cfg.Catalog.WsHost, "SCOUT_CATALOG_WS_HOST")
	setInt(&cfg.Catalog.PageSize, "SCOUT_CATALOG_PAGE_SIZE")
	setInt(&cfg.Catalog.MaxPages, "SCOUT_CATALOG_MAX_PAGES")

	// ── Research backend ──
	setStr(&cfg.Research.BaseURL, "SCOUT_RESEARCH_BASE_URL")
	setStr(&cfg.Research.ApiKey, "SCOUT_RESEARCH_API_KEY")
	setInt(&cfg.Research.MaxRetries, "SCOUT_RESEARCH_MAX_RETRIES")

	// ── Budget ──
	setFloat64(&cfg.Budget.DailyCeiling, "SCOUT_BUDGET_DAILY_CEILING")

	// ── Pipeline ──
	setInt(&cfg.Pipeline.Concurrency, "SCOUT_PIPELINE_CONCURRENCY")
	setInt(&cfg.Pipeline.MaxCandidates, "SCOUT_PIPELINE_MAX_CANDIDATES")
	setInt(&cfg.Pipeline.MaxDeepResearch, "SCOUT_PIPELINE_MAX_DEEP_RESEARCH")
	setStr(&cfg.Pipeline.DailyCron, "SCOUT_PIPELINE_DAILY_CRON")

	// ── Sizing ──
	setStr(&cfg.Sizing.Strategy, "SCOUT_SIZING_STRATEGY")
	setFloat64(&cfg.Sizing.SafetyFactor, "SCOUT_SIZING_SAFETY_FACTOR")

	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "SCOUT_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "SCOUT_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "SCOUT_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "SCOUT_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "SCOUT_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "SCOUT_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "SCOUT_POSTGRES_SSLMODE")
	setBool(&cfg.Postgres.RunMigrations, "SCOUT_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "SCOUT_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "SCOUT_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "SCOUT_REDIS_DB")
	setBool(&cfg.Redis.TLSEnabled, "SCOUT_REDIS_TLS_ENABLED")

	// ── S3 ──
	setStr(&cfg.S3.Endpoint, "SCOUT_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "SCOUT_S3_REGION")
	setStr(&cfg.S3.Bucket, "SCOUT_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "SCOUT_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "SCOUT_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "SCOUT_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "SCOUT_S3_FORCE_PATH_STYLE")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "SCOUT_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "SCOUT_SERVER_PORT")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "SCOUT_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "SCOUT_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "SCOUT_NOTIFY_DISCORD_WEBHOOK_URL")

	// ── Top level ──
	setStr(&cfg.Mode, "SCOUT_MODE")
	setStr(&cfg.LogLevel, "SCOUT_LOG_LEVEL")
}

func setStr(dst *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}
