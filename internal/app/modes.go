package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"

	"github.com/edgescout/edgescout/internal/domain"
	"github.com/edgescout/edgescout/internal/notify"
	"github.com/edgescout/edgescout/internal/server"
	"github.com/edgescout/edgescout/internal/server/handler"
)

// runLockKey serializes pipeline runs across processes.
const runLockKey = "pipeline-run"

// RunMode executes a single pipeline run and exits.
func (a *App) RunMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting run mode")
	return a.executeRun(ctx, deps)
}

// DailyMode schedules one run per day according to the configured cron
// expression and blocks until cancelled.
func (a *App) DailyMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting daily mode",
		slog.String("cron", a.cfg.Pipeline.DailyCron))

	c := cron.New()
	_, err := c.AddFunc(a.cfg.Pipeline.DailyCron, func() {
		if err := a.executeRun(ctx, deps); err != nil {
			a.logger.Error("scheduled run failed", slog.String("error", err.Error()))
		}
	})
	if err != nil {
		return fmt.Errorf("app: cron schedule %q: %w", a.cfg.Pipeline.DailyCron, err)
	}
	c.Start()
	defer c.Stop()

	<-ctx.Done()
	return ctx.Err()
}

// ServerMode serves the status API. Runs happen only on explicit trigger
// requests.
func (a *App) ServerMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting server mode")

	g, ctx := errgroup.WithContext(ctx)
	triggerCh := make(chan struct{}, 1)

	a.startHTTPServer(ctx, g, deps, triggerCh)
	g.Go(func() error {
		return a.triggerLoop(ctx, deps, triggerCh)
	})

	return g.Wait()
}

// FullMode combines the daily schedule with the status API.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting full mode",
		slog.String("cron", a.cfg.Pipeline.DailyCron))

	g, ctx := errgroup.WithContext(ctx)
	triggerCh := make(chan struct{}, 1)

	c := cron.New()
	_, err := c.AddFunc(a.cfg.Pipeline.DailyCron, func() {
		select {
		case triggerCh <- struct{}{}:
		default:
			// a run is already pending
		}
	})
	if err != nil {
		return fmt.Errorf("app: cron schedule %q: %w", a.cfg.Pipeline.DailyCron, err)
	}
	c.Start()
	defer c.Stop()

	if a.cfg.Server.Enabled {
		a.startHTTPServer(ctx, g, deps, triggerCh)
	}
	g.Go(func() error {
		return a.triggerLoop(ctx, deps, triggerCh)
	})

	return g.Wait()
}

// triggerLoop executes one run per trigger signal until cancelled. Failed
// runs are logged, never fatal to the loop.
func (a *App) triggerLoop(ctx context.Context, deps *Dependencies, triggerCh <-chan struct{}) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-triggerCh:
			if err := a.executeRun(ctx, deps); err != nil {
				a.logger.Error("triggered run failed", slog.String("error", err.Error()))
			}
		}
	}
}

// executeRun performs one locked pipeline run: orchestrate, persist, archive,
// notify. A run already in progress elsewhere turns this call into a no-op.
func (a *App) executeRun(ctx context.Context, deps *Dependencies) error {
	lockTTL := a.cfg.Pipeline.RunDeadline.Duration + 10*time.Minute
	unlock, err := deps.Locks.Acquire(ctx, runLockKey, lockTTL)
	if err != nil {
		if errors.Is(err, domain.ErrLockHeld) {
			a.logger.Warn("another run is in progress, skipping")
			return nil
		}
		return fmt.Errorf("app: acquire run lock: %w", err)
	}
	defer unlock()

	record, runErr := deps.Orchestrator.Run(ctx)
	a.persistRun(ctx, deps, record)

	if deps.Governor.Exhausted(a.cfg.Screen.EstimatedCost) {
		a.logger.Warn("budget ceiling reached, further runs will screen nothing",
			slog.Float64("spent", deps.Governor.Spent()),
			slog.Float64("ceiling", a.cfg.Budget.DailyCeiling))
	}

	if runErr != nil {
		if err := deps.Notifier.Notify(ctx, notify.EventError,
			"Scout run failed", runErr.Error()); err != nil {
			a.logger.Warn("failure notification failed", slog.String("error", err.Error()))
		}
		return fmt.Errorf("app: pipeline run: %w", runErr)
	}

	title, message := notify.RunDigest(record)
	if err := deps.Notifier.Notify(ctx, notify.EventRunComplete, title, message); err != nil {
		a.logger.Warn("run notification failed", slog.String("error", err.Error()))
	}
	if len(record.Opportunities) > 0 {
		title, message := notify.OpportunityAlert(record.Opportunities[0])
		if err := deps.Notifier.Notify(ctx, notify.EventOpportunity, title, message); err != nil {
			a.logger.Warn("opportunity notification failed", slog.String("error", err.Error()))
		}
	}
	return nil
}

// persistRun stores and archives a sealed record. Persistence failures are
// logged and swallowed; the run itself already succeeded or failed on its
// own terms.
func (a *App) persistRun(ctx context.Context, deps *Dependencies, record domain.RunRecord) {
	if err := deps.RunStore.Insert(ctx, record); err != nil {
		a.logger.Error("persist run failed",
			slog.String("run_id", record.ID),
			slog.String("error", err.Error()))
	} else if err := deps.OpportunityStore.InsertBatch(ctx, record.ID, record.Opportunities); err != nil {
		a.logger.Error("persist opportunities failed",
			slog.String("run_id", record.ID),
			slog.String("error", err.Error()))
	}

	if err := deps.Archiver.ArchiveRun(ctx, record); err != nil {
		a.logger.Error("archive run failed",
			slog.String("run_id", record.ID),
			slog.String("error", err.Error()))
	}
}

// startHTTPServer registers the API handlers and runs the server under the
// group, shutting it down when the context ends.
func (a *App) startHTTPServer(ctx context.Context, g *errgroup.Group, deps *Dependencies, triggerCh chan<- struct{}) {
	components := make(map[string]handler.Pinger, len(deps.Health))
	for name, fn := range deps.Health {
		components[name] = handler.PingerFunc(fn)
	}

	handlers := server.Handlers{
		Health: handler.NewHealthHandler(components, a.logger),
		Runs: handler.NewRunHandler(deps.RunStore, deps.Renderer, a.logger).
			WithArchive(deps.Archive),
		Opportunities: handler.NewOpportunityHandler(deps.OpportunityStore, a.logger),
		Trigger:       handler.NewTriggerHandler(a.logger).WithTriggerChannel(triggerCh),
	}

	srv := server.NewServer(server.Config{
		Port:        a.cfg.Server.Port,
		CORSOrigins: a.cfg.Server.CORSOrigins,
	}, handlers, deps.Metrics.Registry(), a.logger)

	g.Go(srv.Start)
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
}
