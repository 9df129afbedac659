// Package pipeline implements the run orchestrator: the single component
// that knows every stage and threads candidates through fetching, filtering,
// screening, research, and scoring, sealing a RunRecord at the end.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/edgescout/edgescout/internal/config"
	"github.com/edgescout/edgescout/internal/domain"
	"github.com/edgescout/edgescout/internal/filter"
	"github.com/edgescout/edgescout/internal/governor"
	"github.com/edgescout/edgescout/internal/metrics"
	"github.com/edgescout/edgescout/internal/research"
	"github.com/edgescout/edgescout/internal/score"
	"github.com/edgescout/edgescout/internal/screen"
)

// Orchestrator drives one full pipeline run. It is the only component aware
// of all stages; every stage is stateless given its inputs plus the governor.
type Orchestrator struct {
	catalog    domain.CatalogSource
	filter     *filter.Filter
	screener   *screen.Screener
	researcher *research.DeepResearcher
	engine     *score.Engine
	gov        *governor.Governor
	cfg        config.PipelineConfig
	logger     *slog.Logger
	metrics    *metrics.PipelineMetrics // optional
	feed       PriceSubscriber          // optional
	now        func() time.Time
}

// PriceSubscriber follows live prices for the selected candidates so the
// recent-move check has history by the time scoring runs.
type PriceSubscriber interface {
	Subscribe(contractIDs []string) error
}

// NewOrchestrator wires the pipeline stages together.
func NewOrchestrator(
	catalog domain.CatalogSource,
	f *filter.Filter,
	screener *screen.Screener,
	researcher *research.DeepResearcher,
	engine *score.Engine,
	gov *governor.Governor,
	cfg config.PipelineConfig,
	logger *slog.Logger,
) *Orchestrator {
	return &Orchestrator{
		catalog:    catalog,
		filter:     f,
		screener:   screener,
		researcher: researcher,
		engine:     engine,
		gov:        gov,
		cfg:        cfg,
		logger:     logger.With(slog.String("component", "orchestrator")),
		now:        time.Now,
	}
}

// WithMetrics attaches a Prometheus collector. Without one, recording is a
// no-op.
func (o *Orchestrator) WithMetrics(m *metrics.PipelineMetrics) *Orchestrator {
	o.metrics = m
	return o
}

// WithPriceFeed attaches a live price subscription for selected candidates.
func (o *Orchestrator) WithPriceFeed(feed PriceSubscriber) *Orchestrator {
	o.feed = feed
	return o
}

// collector gathers per-candidate results from concurrent workers.
type collector struct {
	mu            sync.Mutex
	outcomes      []domain.CandidateOutcome
	errors        []domain.StageError
	screens       []screenedCandidate
	opportunities []domain.Opportunity
	researched    int
}

type screenedCandidate struct {
	contract domain.Contract
	price    float64
	result   domain.ScreenResult
}

func (c *collector) skip(id string, stage domain.Stage, reason string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.outcomes = append(c.outcomes, domain.CandidateOutcome{
		ContractID: id, Kind: domain.OutcomeSkipped, Stage: stage, Reason: reason,
	})
}

func (c *collector) fail(id string, stage domain.Stage, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.outcomes = append(c.outcomes, domain.CandidateOutcome{
		ContractID: id, Kind: domain.OutcomeFailed, Stage: stage, Reason: err.Error(),
	})
	c.errors = append(c.errors, domain.StageError{
		ContractID: id, Stage: stage, Message: err.Error(),
	})
}

func (c *collector) reject(id string, reason string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.outcomes = append(c.outcomes, domain.CandidateOutcome{
		ContractID: id, Kind: domain.OutcomeRejected, Stage: domain.StageScore, Reason: reason,
	})
}

func (c *collector) scored(opp domain.Opportunity) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.outcomes = append(c.outcomes, domain.CandidateOutcome{
		ContractID: opp.ContractID, Kind: domain.OutcomeScored, Stage: domain.StageScore,
	})
	c.opportunities = append(c.opportunities, opp)
}

func (c *collector) addScreen(sc screenedCandidate) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.screens = append(c.screens, sc)
}

func (c *collector) markResearched() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.researched++
}

// Run executes one full pipeline run and returns the sealed record. Only an
// empty catalog or a catalog fetch failure aborts the run; everything else
// degrades to per-candidate outcomes. The run deadline stops new candidates
// from starting; calls already in flight are allowed to finish.
func (o *Orchestrator) Run(ctx context.Context) (domain.RunRecord, error) {
	started := o.now()
	deadline := started.Add(o.cfg.RunDeadline.Duration)
	spentBefore := o.gov.Spent()

	record := domain.RunRecord{
		ID:        uuid.NewString(),
		StartedAt: started,
	}

	o.logger.Info("run starting",
		slog.String("run_id", record.ID),
		slog.Time("deadline", deadline))

	// Fetching.
	contracts, err := o.fetchCatalog(ctx)
	if err != nil {
		record.EndedAt = o.now()
		record.Termination = domain.TerminationFatal
		record.Errors = append(record.Errors, domain.StageError{
			Stage: domain.StageFetch, Message: err.Error(),
		})
		return record, err
	}
	record.Funnel.Fetched = len(contracts)

	// Filtering.
	candidates := o.filter.Apply(contracts, started)
	record.Funnel.Filtered = len(candidates)

	col := &collector{}
	candidates = o.capByVolume(candidates, col)
	o.subscribePrices(candidates)

	o.logger.Info("candidates selected",
		slog.String("run_id", record.ID),
		slog.Int("fetched", record.Funnel.Fetched),
		slog.Int("filtered", record.Funnel.Filtered),
		slog.Int("capped_to", len(candidates)))

	// Screening.
	o.screenAll(ctx, candidates, deadline, col)
	record.Funnel.Screened = len(col.screens)

	budgetSkips := countSkips(col.outcomes, domain.SkipReasonBudget)

	// Researching and scoring, escalated candidates only.
	escalated := o.selectEscalated(col)
	record.Funnel.Escalated = len(escalated)
	o.researchAndScoreAll(ctx, escalated, deadline, col)

	// Sealing.
	record.EndedAt = o.now()
	record.Funnel.Researched = col.researched
	record.Outcomes = col.outcomes
	record.Errors = append(record.Errors, col.errors...)
	record.Opportunities = col.opportunities
	record.TotalCost = o.gov.Spent() - spentBefore
	tallyFunnel(&record.Funnel, col.outcomes)

	sort.SliceStable(record.Opportunities, func(i, j int) bool {
		a, b := record.Opportunities[i], record.Opportunities[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.Confidence.Overall != b.Confidence.Overall {
			return a.Confidence.Overall > b.Confidence.Overall
		}
		return a.ContractID < b.ContractID
	})

	if record.Funnel.Screened == 0 && budgetSkips > 0 {
		record.Termination = domain.TerminationBudgetExhausted
	} else {
		record.Termination = domain.TerminationCompleted
	}

	o.recordMetrics(record)

	o.logger.Info("run sealed",
		slog.String("run_id", record.ID),
		slog.String("termination", string(record.Termination)),
		slog.Int("opportunities", len(record.Opportunities)),
		slog.Float64("cost", record.TotalCost),
		slog.Duration("elapsed", record.EndedAt.Sub(record.StartedAt)))

	return record, nil
}

func (o *Orchestrator) fetchCatalog(ctx context.Context) ([]domain.Contract, error) {
	cctx, cancel := context.WithTimeout(ctx, o.cfg.CallTimeout.Duration)
	defer cancel()

	contracts, err := o.catalog.ListActiveContracts(cctx)
	if err != nil {
		return nil, fmt.Errorf("pipeline: catalog fetch: %w", err)
	}
	if len(contracts) == 0 {
		return nil, fmt.Errorf("pipeline: catalog fetch: %w", domain.ErrEmptyCatalog)
	}
	return contracts, nil
}

// capByVolume keeps the highest-volume candidates up to the configured cap
// and records the rest as capped skips.
func (o *Orchestrator) capByVolume(candidates []domain.Contract, col *collector) []domain.Contract {
	if len(candidates) <= o.cfg.MaxCandidates {
		return candidates
	}
	sorted := make([]domain.Contract, len(candidates))
	copy(sorted, candidates)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Volume > sorted[j].Volume
	})
	for _, dropped := range sorted[o.cfg.MaxCandidates:] {
		col.skip(dropped.ID, domain.StageFilter, domain.SkipReasonCapped)
	}
	return sorted[:o.cfg.MaxCandidates]
}

// screenAll runs Tier-1 over all candidates with bounded parallelism.
func (o *Orchestrator) screenAll(ctx context.Context, candidates []domain.Contract, deadline time.Time, col *collector) {
	g := &errgroup.Group{}
	g.SetLimit(o.cfg.Concurrency)

	for _, contract := range candidates {
		g.Go(func() error {
			if o.now().After(deadline) || ctx.Err() != nil {
				col.skip(contract.ID, domain.StageScreen, domain.SkipReasonDeadline)
				return nil
			}

			price := o.livePrice(ctx, contract)

			cctx, cancel := context.WithTimeout(ctx, o.cfg.CallTimeout.Duration)
			defer cancel()
			defer o.observeStage(domain.StageScreen, o.now())
			result, err := o.screener.Screen(cctx, contract, price)
			if err != nil {
				o.recordSearch("tier1", err)
				col.fail(contract.ID, domain.StageScreen, err)
				return nil
			}
			if result.Reason == screen.ReasonBudgetSkipped {
				col.skip(contract.ID, domain.StageScreen, domain.SkipReasonBudget)
				return nil
			}
			o.recordSearch("tier1", nil)
			col.addScreen(screenedCandidate{contract: contract, price: price, result: result})
			return nil
		})
	}
	g.Wait()
}

// selectEscalated orders escalated candidates by preliminary edge and caps
// them at the deep-research limit. Non-escalating screens become rejections.
func (o *Orchestrator) selectEscalated(col *collector) []screenedCandidate {
	var escalated []screenedCandidate
	for _, sc := range col.screens {
		if sc.result.Escalate {
			escalated = append(escalated, sc)
		} else {
			col.reject(sc.contract.ID, "not escalated: "+sc.result.Reason)
		}
	}

	sort.SliceStable(escalated, func(i, j int) bool {
		return escalated[i].result.PreliminaryEdge > escalated[j].result.PreliminaryEdge
	})

	if len(escalated) > o.cfg.MaxDeepResearch {
		for _, dropped := range escalated[o.cfg.MaxDeepResearch:] {
			col.skip(dropped.contract.ID, domain.StageResearch, domain.SkipReasonCapped)
		}
		escalated = escalated[:o.cfg.MaxDeepResearch]
	}
	return escalated
}

// researchAndScoreAll runs Tier-2 plus scoring per escalated candidate.
// Within one candidate the stages are sequential; candidates run in parallel
// up to the concurrency limit.
func (o *Orchestrator) researchAndScoreAll(ctx context.Context, escalated []screenedCandidate, deadline time.Time, col *collector) {
	g := &errgroup.Group{}
	g.SetLimit(o.cfg.Concurrency)

	for _, sc := range escalated {
		g.Go(func() error {
			if o.now().After(deadline) || ctx.Err() != nil {
				col.skip(sc.contract.ID, domain.StageResearch, domain.SkipReasonDeadline)
				return nil
			}

			price := o.livePrice(ctx, sc.contract)

			cctx, cancel := context.WithTimeout(ctx, o.cfg.CallTimeout.Duration)
			defer cancel()
			defer o.observeStage(domain.StageResearch, o.now())
			report, err := o.researcher.Research(cctx, sc.contract, price)
			if err != nil {
				if errors.Is(err, domain.ErrBudgetExceeded) {
					col.skip(sc.contract.ID, domain.StageResearch, domain.SkipReasonBudget)
					return nil
				}
				o.recordSearch("tier2", err)
				col.fail(sc.contract.ID, domain.StageResearch, err)
				return nil
			}
			o.recordSearch("tier2", nil)
			col.markResearched()

			result, err := o.engine.Score(sc.contract, report, price, o.now())
			if err != nil {
				col.fail(sc.contract.ID, domain.StageScore, err)
				return nil
			}
			if result.Rejected {
				col.reject(sc.contract.ID, result.Reason)
				return nil
			}
			col.scored(result.Opportunity)
			return nil
		})
	}
	g.Wait()
}

// subscribePrices starts live tracking for the selected candidates. A feed
// failure costs only the recent-move check, never the run.
func (o *Orchestrator) subscribePrices(candidates []domain.Contract) {
	if o.feed == nil || len(candidates) == 0 {
		return
	}
	ids := make([]string, 0, len(candidates))
	for _, c := range candidates {
		ids = append(ids, c.ID)
	}
	if err := o.feed.Subscribe(ids); err != nil {
		o.logger.Warn("price feed subscribe failed",
			slog.Int("contracts", len(ids)),
			slog.String("error", err.Error()))
	}
}

func (o *Orchestrator) recordMetrics(record domain.RunRecord) {
	if o.metrics == nil {
		return
	}
	elapsed := record.EndedAt.Sub(record.StartedAt).Seconds()
	o.metrics.RecordRun(string(record.Termination), elapsed, record.TotalCost)
	o.metrics.BudgetSpent.Set(o.gov.Spent())
	for _, out := range record.Outcomes {
		o.metrics.RecordOutcome(string(out.Kind))
	}
	for _, opp := range record.Opportunities {
		o.metrics.RecordOpportunity(opp.Score, opp.Edge)
	}
}

// recordSearch tallies one research-backend invocation. Budget skips never
// reach the backend and are not counted.
func (o *Orchestrator) recordSearch(tier string, err error) {
	if o.metrics == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	o.metrics.RecordSearch(tier, status)
}

// observeStage reports a per-candidate stage duration when metrics are on.
func (o *Orchestrator) observeStage(stage domain.Stage, start time.Time) {
	if o.metrics == nil {
		return
	}
	o.metrics.RecordStage(string(stage), o.now().Sub(start).Seconds())
}

// livePrice refreshes the contract price; the catalog snapshot price is the
// fallback when the refresh fails.
func (o *Orchestrator) livePrice(ctx context.Context, contract domain.Contract) float64 {
	cctx, cancel := context.WithTimeout(ctx, o.cfg.CallTimeout.Duration)
	defer cancel()

	price, err := o.catalog.CurrentPrice(cctx, contract.ID)
	if err != nil {
		o.logger.Warn("price refresh failed, using snapshot",
			slog.String("contract_id", contract.ID),
			slog.String("error", err.Error()))
		return contract.Price
	}
	return price
}

func countSkips(outcomes []domain.CandidateOutcome, reason string) int {
	n := 0
	for _, out := range outcomes {
		if out.Kind == domain.OutcomeSkipped && out.Reason == reason {
			n++
		}
	}
	return n
}

// tallyFunnel derives the terminal counts from the outcome tags.
func tallyFunnel(funnel *domain.FunnelCounts, outcomes []domain.CandidateOutcome) {
	for _, out := range outcomes {
		switch out.Kind {
		case domain.OutcomeScored:
			funnel.Scored++
		case domain.OutcomeRejected:
			funnel.Rejected++
		case domain.OutcomeSkipped:
			funnel.Skipped++
		case domain.OutcomeFailed:
			funnel.Failed++
		}
	}
}
