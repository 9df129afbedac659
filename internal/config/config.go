// Package config defines the top-level configuration for the opportunity
// scout and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/edgescout/edgescout/internal/domain"
)

// Config is the root configuration structure. Fields are populated from a
// TOML file and then optionally overridden by SCOUT_* environment variables.
// Every threshold the pipeline consults lives here; there are no module-level
// tuning constants.
type Config struct {
	Catalog  CatalogConfig  `toml:"catalog"`
	Research ResearchConfig `toml:"research"`
	Filter   FilterConfig   `toml:"filter"`
	Screen   ScreenConfig   `toml:"screen"`
	Deep     DeepConfig     `toml:"deep"`
	Score    ScoreConfig    `toml:"score"`
	Sizing   SizingConfig   `toml:"sizing"`
	Budget   BudgetConfig   `toml:"budget"`
	Pipeline PipelineConfig `toml:"pipeline"`
	Postgres PostgresConfig `toml:"postgres"`
	Redis    RedisConfig    `toml:"redis"`
	S3       S3Config       `toml:"s3"`
	Server   ServerConfig   `toml:"server"`
	Notify   NotifyConfig   `toml:"notify"`
	Mode     string         `toml:"mode"`
	LogLevel string         `toml:"log_level"`
}

// CatalogConfig holds market-catalog API endpoints and paging parameters.
type CatalogConfig struct {
	GammaHost string `toml:"gamma_host"`
	WsHost    string `toml:"ws_host"`
	PageSize  int    `toml:"page_size"`
	MaxPages  int    `toml:"max_pages"`
}

// ResearchConfig holds research-backend connection parameters shared by both
// tiers.
type ResearchConfig struct {
	BaseURL    string   `toml:"base_url"`
	ApiKey     string   `toml:"api_key"`
	Timeout    duration `toml:"timeout"`
	MaxRetries int      `toml:"max_retries"`
}

// FilterConfig holds the five candidate-filter predicates.
type FilterConfig struct {
	MinVolume         float64  `toml:"min_volume"`
	MinLiquidity      float64  `toml:"min_liquidity"`
	MinResolutionDays float64  `toml:"min_resolution_days"`
	MaxResolutionDays float64  `toml:"max_resolution_days"`
	Categories        []string `toml:"categories"`
	MaxOutcomes       int      `toml:"max_outcomes"`
	MinAgeDays        float64  `toml:"min_age_days"`
	MaxAgeDays        float64  `toml:"max_age_days"`
}

// ScreenConfig holds Tier-1 screening parameters.
type ScreenConfig struct {
	Queries        int     `toml:"queries"`
	MaxFindings    int     `toml:"max_findings"`
	MinCredibility int     `toml:"min_credibility"`
	MinEdge        float64 `toml:"min_edge"`
	EstimatedCost  float64 `toml:"estimated_cost"`
}

// DeepConfig holds Tier-2 deep-research parameters.
type DeepConfig struct {
	Queries       int     `toml:"queries"`
	MaxFindings   int     `toml:"max_findings"`
	EstimatedCost float64 `toml:"estimated_cost"`
}

// ScoreConfig holds the opportunity-scoring weights and thresholds. The five
// weights should sum to 1; Validate enforces a small tolerance.
type ScoreConfig struct {
	SourceQualityWeight     float64 `toml:"source_quality_weight"`
	RecencyWeight           float64 `toml:"recency_weight"`
	ConsensusWeight         float64 `toml:"consensus_weight"`
	BaseRateWeight          float64 `toml:"base_rate_weight"`
	ReasoningClarityWeight  float64 `toml:"reasoning_clarity_weight"`
	MinEdge                 float64 `toml:"min_edge"`
	MinConfidence           float64 `toml:"min_confidence"`
	MinOpportunityScore     float64 `toml:"min_opportunity_score"`
	ReferenceLiquidity      float64 `toml:"reference_liquidity"`
	RecentMoveThreshold     float64 `toml:"recent_move_threshold"`
	RecentMoveWindowHours   int     `toml:"recent_move_window_hours"`
	MinResolutionDaysNoFlag float64 `toml:"min_resolution_days_no_flag"`
}

// SizingConfig selects the magnitude-recommendation strategy.
type SizingConfig struct {
	Strategy     string  `toml:"strategy"` // conservative, balanced, aggressive
	SafetyFactor float64 `toml:"safety_factor"`
	MaxMagnitude float64 `toml:"max_magnitude"`
}

// BudgetConfig bounds daily research spend and cache retention.
type BudgetConfig struct {
	DailyCeiling float64  `toml:"daily_ceiling"`
	CacheTTL     duration `toml:"cache_ttl"`
}

// PipelineConfig holds run-level orchestration parameters.
type PipelineConfig struct {
	Concurrency     int      `toml:"concurrency"`
	RunDeadline     duration `toml:"run_deadline"`
	CallTimeout     duration `toml:"call_timeout"`
	MaxCandidates   int      `toml:"max_candidates"`
	MaxDeepResearch int      `toml:"max_deep_research"`
	DailyCron       string   `toml:"daily_cron"`
}

// PostgresConfig holds PostgreSQL connection parameters.
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

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// S3Config holds S3-compatible object storage parameters for run archival.
type S3Config struct {
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// ServerConfig holds HTTP status server parameters.
type ServerConfig struct {
	Enabled     bool     `toml:"enabled"`
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
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
		Catalog: CatalogConfig{
			GammaHost: "https://gamma-api.polymarket.com",
			WsHost:    "wss://ws-subscriptions-clob.polymarket.com/ws/market",
			PageSize:  100,
			MaxPages:  20,
		},
		Research: ResearchConfig{
			BaseURL:    "https://api.tavily.com",
			Timeout:    duration{30 * time.Second},
			MaxRetries: 2,
		},
		Filter: FilterConfig{
			MinVolume:         10_000,
			MinLiquidity:      5_000,
			MinResolutionDays: 7,
			MaxResolutionDays: 30,
			Categories:        []string{"Politics", "Business", "Technology", "Regulatory"},
			MaxOutcomes:       2,
			MinAgeDays:        1,
			MaxAgeDays:        14,
		},
		Screen: ScreenConfig{
			Queries:        3,
			MaxFindings:    10,
			MinCredibility: 3,
			MinEdge:        0.10,
			EstimatedCost:  0.005,
		},
		Deep: DeepConfig{
			Queries:       8,
			MaxFindings:   20,
			EstimatedCost: 0.05,
		},
		Score: ScoreConfig{
			SourceQualityWeight:     0.25,
			RecencyWeight:           0.20,
			ConsensusWeight:         0.20,
			BaseRateWeight:          0.20,
			ReasoningClarityWeight:  0.15,
			MinEdge:                 0.05,
			MinConfidence:           0.5,
			MinOpportunityScore:     0.03,
			ReferenceLiquidity:      10_000,
			RecentMoveThreshold:     0.10,
			RecentMoveWindowHours:   24,
			MinResolutionDaysNoFlag: 7,
		},
		Sizing: SizingConfig{
			Strategy:     "balanced",
			SafetyFactor: 0.5,
			MaxMagnitude: 100,
		},
		Budget: BudgetConfig{
			DailyCeiling: 50.0,
			CacheTTL:     duration{24 * time.Hour},
		},
		Pipeline: PipelineConfig{
			Concurrency:     5,
			RunDeadline:     duration{45 * time.Minute},
			CallTimeout:     duration{90 * time.Second},
			MaxCandidates:   25,
			MaxDeepResearch: 8,
			DailyCron:       "0 8 * * *",
		},
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "postgres",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			PoolSize:   20,
			MaxRetries: 3,
		},
		S3: S3Config{
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "scout-runs",
			UseSSL:         false,
			ForcePathStyle: true,
		},
		Server: ServerConfig{
			Enabled:     true,
			Port:        8000,
			CORSOrigins: []string{"http://localhost:3000"},
		},
		Notify: NotifyConfig{
			Events: []string{"run_complete", "opportunity", "error"},
		},
		Mode:     "run",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"run":    true,
	"daily":  true,
	"server": true,
	"full":   true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// validSizing enumerates the accepted sizing strategy names.
var validSizing = map[string]bool{
	"conservative": true,
	"balanced":     true,
	"aggressive":   true,
}

// Validate checks Config for obviously invalid or missing values and returns
// a combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: run, daily, server, full)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Catalog
	if c.Catalog.GammaHost == "" {
		errs = append(errs, "catalog: gamma_host must not be empty")
	}
	if c.Catalog.PageSize < 1 {
		errs = append(errs, "catalog: page_size must be >= 1")
	}

	// Research backend
	if c.Research.BaseURL == "" {
		errs = append(errs, "research: base_url must not be empty")
	}
	if c.Research.Timeout.Duration <= 0 {
		errs = append(errs, "research: timeout must be positive")
	}

	// Filter
	if c.Filter.MinVolume < 0 {
		errs = append(errs, "filter: min_volume must be >= 0")
	}
	if c.Filter.MinLiquidity < 0 {
		errs = append(errs, "filter: min_liquidity must be >= 0")
	}
	if c.Filter.MinResolutionDays > c.Filter.MaxResolutionDays {
		errs = append(errs, "filter: min_resolution_days must not exceed max_resolution_days")
	}
	if c.Filter.MinAgeDays > c.Filter.MaxAgeDays {
		errs = append(errs, "filter: min_age_days must not exceed max_age_days")
	}
	if len(c.Filter.Categories) == 0 {
		errs = append(errs, "filter: categories must not be empty")
	}
	if c.Filter.MaxOutcomes < 2 {
		errs = append(errs, "filter: max_outcomes must be >= 2")
	}

	// Screen
	if c.Screen.Queries < 1 {
		errs = append(errs, "screen: queries must be >= 1")
	}
	if c.Screen.MinCredibility < 1 || c.Screen.MinCredibility > 5 {
		errs = append(errs, fmt.Sprintf("screen: min_credibility must be 1-5, got %d", c.Screen.MinCredibility))
	}
	if c.Screen.MinEdge < 0 || c.Screen.MinEdge > 1 {
		errs = append(errs, "screen: min_edge must be within [0,1]")
	}

	// Deep
	if c.Deep.Queries < 1 {
		errs = append(errs, "deep: queries must be >= 1")
	}

	// Score weights must sum to 1 within tolerance.
	weightSum := c.Score.SourceQualityWeight + c.Score.RecencyWeight +
		c.Score.ConsensusWeight + c.Score.BaseRateWeight + c.Score.ReasoningClarityWeight
	if weightSum < 0.999 || weightSum > 1.001 {
		errs = append(errs, fmt.Sprintf("score: weights must sum to 1, got %.3f", weightSum))
	}
	if c.Score.ReferenceLiquidity <= 0 {
		errs = append(errs, "score: reference_liquidity must be > 0")
	}
	if c.Score.MinConfidence < 0 || c.Score.MinConfidence > 1 {
		errs = append(errs, "score: min_confidence must be within [0,1]")
	}

	// Sizing
	if !validSizing[strings.ToLower(c.Sizing.Strategy)] {
		errs = append(errs, fmt.Sprintf("sizing: unknown strategy %q (valid: conservative, balanced, aggressive)", c.Sizing.Strategy))
	}
	if c.Sizing.SafetyFactor <= 0 || c.Sizing.SafetyFactor > 1 {
		errs = append(errs, "sizing: safety_factor must be within (0,1]")
	}
	if c.Sizing.MaxMagnitude <= 0 {
		errs = append(errs, "sizing: max_magnitude must be > 0")
	}

	// Budget
	if c.Budget.DailyCeiling <= 0 {
		errs = append(errs, "budget: daily_ceiling must be > 0")
	}
	if c.Budget.CacheTTL.Duration <= 0 {
		errs = append(errs, "budget: cache_ttl must be positive")
	}

	// Pipeline
	if c.Pipeline.Concurrency < 1 {
		errs = append(errs, "pipeline: concurrency must be >= 1")
	}
	if c.Pipeline.RunDeadline.Duration <= 0 {
		errs = append(errs, "pipeline: run_deadline must be positive")
	}
	if c.Pipeline.CallTimeout.Duration <= 0 {
		errs = append(errs, "pipeline: call_timeout must be positive")
	}
	if c.Pipeline.MaxCandidates < 1 {
		errs = append(errs, "pipeline: max_candidates must be >= 1")
	}
	if c.Pipeline.MaxDeepResearch < 1 {
		errs = append(errs, "pipeline: max_deep_research must be >= 1")
	}

	// Postgres
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
	if c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
		errs = append(errs, "postgres: pool_min_conns must not exceed pool_max_conns")
	}

	// Redis
	if c.Redis.Addr == "" {
		errs = append(errs, "redis: addr must not be empty")
	}
	if c.Redis.PoolSize < 1 {
		errs = append(errs, "redis: pool_size must be >= 1")
	}

	// S3
	if c.S3.Endpoint == "" {
		errs = append(errs, "s3: endpoint must not be empty")
	}
	if c.S3.Bucket == "" {
		errs = append(errs, "s3: bucket must not be empty")
	}

	// Server
	if c.Server.Enabled {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config: %w:\n  - %s", domain.ErrInvalidConfig, strings.Join(errs, "\n  - "))
	}
	return nil
}
