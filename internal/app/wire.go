package app

import (
	"context"
	"fmt"
	"log/slog"

	s3blob "github.com/edgescout/edgescout/internal/blob/s3"
	"github.com/edgescout/edgescout/internal/cache/redis"
	"github.com/edgescout/edgescout/internal/catalog"
	"github.com/edgescout/edgescout/internal/config"
	"github.com/edgescout/edgescout/internal/domain"
	"github.com/edgescout/edgescout/internal/filter"
	"github.com/edgescout/edgescout/internal/governor"
	"github.com/edgescout/edgescout/internal/metrics"
	"github.com/edgescout/edgescout/internal/notify"
	"github.com/edgescout/edgescout/internal/pipeline"
	"github.com/edgescout/edgescout/internal/report"
	"github.com/edgescout/edgescout/internal/research"
	"github.com/edgescout/edgescout/internal/score"
	"github.com/edgescout/edgescout/internal/screen"
	"github.com/edgescout/edgescout/internal/sizing"
	"github.com/edgescout/edgescout/internal/store/postgres"
)

// Dependencies bundles everything the operating modes need. Wire constructs
// it; the returned cleanup function tears it down.
type Dependencies struct {
	Catalog   domain.CatalogSource
	PriceFeed *catalog.PriceFeed // nil when the feed could not connect

	RunStore         domain.RunStore
	OpportunityStore domain.OpportunityStore

	Cache    domain.ResearchCache
	Locks    domain.LockManager
	Governor *governor.Governor

	Orchestrator *pipeline.Orchestrator
	Renderer     *report.Renderer
	Archiver     domain.RunArchiver
	Archive      *s3blob.Reader
	Notifier     *notify.Notifier
	Metrics      *metrics.PipelineMetrics

	Health map[string]func(context.Context) error
}

// Wire constructs every concrete dependency from the configuration. The
// price feed is the only best-effort component; all other failures abort
// startup.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{
		Metrics: metrics.Default(),
		Health:  map[string]func(context.Context) error{},
	}

	// PostgreSQL.
	pgClient, err := postgres.New(ctx, cfg.Postgres)
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
	deps.RunStore = postgres.NewRunStore(pgClient)
	deps.OpportunityStore = postgres.NewOpportunityStore(pgClient)
	deps.Health["postgres"] = func(ctx context.Context) error {
		return pgClient.Pool().Ping(ctx)
	}

	// Redis.
	redisClient, err := redis.New(ctx, cfg.Redis)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: redis: %w", err)
	}
	closers = append(closers, func() { _ = redisClient.Close() })
	deps.Cache = redis.NewResearchCache(redisClient)
	deps.Locks = redis.NewLockManager(redisClient)
	deps.Health["redis"] = redisClient.Health

	// Object storage for run archival.
	s3Client, err := s3blob.New(ctx, cfg.S3)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: s3: %w", err)
	}
	deps.Renderer = report.NewRenderer()
	deps.Archiver = s3blob.NewRunArchiver(s3blob.NewWriter(s3Client), deps.Renderer)
	deps.Archive = s3blob.NewReader(s3Client)
	deps.Health["s3"] = s3Client.Health

	// Budget governor on top of the research cache.
	deps.Governor = governor.New(cfg.Budget.DailyCeiling, deps.Cache, cfg.Budget.CacheTTL.Duration, logger).
		WithCacheObserver(deps.Metrics.RecordCacheLookup)

	// Market catalog and live price feed.
	gamma := catalog.NewGammaClient(cfg.Catalog.GammaHost, cfg.Catalog.PageSize, cfg.Catalog.MaxPages)
	deps.Catalog = gamma

	var history domain.PriceHistory
	feed := catalog.NewPriceFeed(cfg.Catalog.WsHost)
	if err := feed.Connect(ctx); err != nil {
		logger.Warn("price feed unavailable, recent-move checks disabled",
			slog.String("error", err.Error()))
	} else {
		closers = append(closers, func() { _ = feed.Close() })
		deps.PriceFeed = feed
		history = feed
	}

	// Research stages.
	backend := research.NewTavilyClient(
		cfg.Research.BaseURL,
		cfg.Research.ApiKey,
		cfg.Research.Timeout.Duration,
		cfg.Research.MaxRetries,
		logger,
	)
	screener := screen.New(backend, deps.Governor, cfg.Screen, logger)
	researcher := research.NewDeepResearcher(backend, deps.Governor, cfg.Deep, logger)

	sizer, err := sizing.FromConfig(cfg.Sizing)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: sizing: %w", err)
	}
	engine := score.NewEngine(cfg.Score, history, sizer)

	deps.Orchestrator = pipeline.NewOrchestrator(
		deps.Catalog,
		filter.New(cfg.Filter),
		screener,
		researcher,
		engine,
		deps.Governor,
		cfg.Pipeline,
		logger,
	).WithMetrics(deps.Metrics)
	if deps.PriceFeed != nil {
		deps.Orchestrator.WithPriceFeed(deps.PriceFeed)
	}

	// Notifications.
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(cfg.Notify.TelegramToken, cfg.Notify.TelegramChatID))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	deps.Notifier = notify.New(senders, cfg.Notify.Events, logger)

	return deps, cleanup, nil
}
