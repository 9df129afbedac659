package research

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/edgescout/edgescout/internal/config"
	"github.com/edgescout/edgescout/internal/domain"
	"github.com/edgescout/edgescout/internal/governor"
)

// DeepResearcher runs the expensive multi-query research pass for contracts
// that survived screening. Each call consults the governor for cache and
// budget before touching the backend.
type DeepResearcher struct {
	backend domain.ResearchBackend
	gov     *governor.Governor
	cfg     config.DeepConfig
	logger  *slog.Logger
	now     func() time.Time
}

// NewDeepResearcher creates a Tier-2 researcher.
func NewDeepResearcher(backend domain.ResearchBackend, gov *governor.Governor, cfg config.DeepConfig, logger *slog.Logger) *DeepResearcher {
	return &DeepResearcher{
		backend: backend,
		gov:     gov,
		cfg:     cfg,
		logger:  logger.With(slog.String("component", "deep_researcher")),
		now:     time.Now,
	}
}

// Research produces a structured report for one escalated contract. The
// marketPrice is the live price at research time, used to anchor the
// probability synthesis. A budget denial surfaces as domain.ErrBudgetExceeded
// so the caller can record a skip instead of a failure.
func (r *DeepResearcher) Research(ctx context.Context, contract domain.Contract, marketPrice float64) (domain.ResearchReport, error) {
	plans := DeepQueries(contract, r.cfg.Queries)
	fp := governor.Fingerprint(contract.ID, "deep", joinQueries(plans))

	var cached domain.ResearchReport
	if r.gov.Lookup(ctx, fp, &cached) {
		r.logger.Debug("deep research cache hit", slog.String("contract_id", contract.ID))
		return cached, nil
	}

	if err := r.gov.Reserve(fp, r.cfg.EstimatedCost); err != nil {
		return domain.ResearchReport{}, fmt.Errorf("research: deep %s: %w", contract.ID, err)
	}

	findings, searchErrs := r.gather(ctx, plans)
	if len(findings) == 0 && searchErrs > 0 {
		// Every query failed. Release the reservation so the budget is not
		// charged for work that produced nothing.
		r.gov.Release(fp)
		return domain.ResearchReport{}, fmt.Errorf("research: deep %s: all %d queries failed", contract.ID, searchErrs)
	}

	r.gov.Commit(fp, r.cfg.EstimatedCost)

	report := synthesizeReport(contract, marketPrice, findings, r.cfg.EstimatedCost, r.now())
	if err := report.Validate(); err != nil {
		return domain.ResearchReport{}, fmt.Errorf("research: deep %s: %w", contract.ID, err)
	}

	r.gov.Store(ctx, fp, report)

	r.logger.Info("deep research complete",
		slog.String("contract_id", contract.ID),
		slog.Int("findings", len(report.Findings)),
		slog.Float64("estimate", report.Estimate),
		slog.String("quality", string(report.Quality)))

	return report, nil
}

// gather runs every query plan, deduplicates by URL, and keeps the strongest
// findings. Individual query failures degrade the result instead of failing
// the research pass.
func (r *DeepResearcher) gather(ctx context.Context, plans []QueryPlan) ([]domain.Finding, int) {
	var all []domain.Finding
	seen := make(map[string]bool)
	failures := 0

	for _, plan := range plans {
		found, err := r.backend.Search(ctx, plan.Query, plan.Window)
		if err != nil {
			failures++
			r.logger.Warn("deep query failed",
				slog.String("query", plan.Query),
				slog.String("error", err.Error()))
			continue
		}
		for _, f := range found {
			if seen[f.SourceURL] {
				continue
			}
			seen[f.SourceURL] = true
			all = append(all, f)
		}
	}

	now := r.now()
	sort.SliceStable(all, func(i, j int) bool {
		if all[i].Credibility != all[j].Credibility {
			return all[i].Credibility > all[j].Credibility
		}
		di, dj := all[i].RecencyDays(now), all[j].RecencyDays(now)
		if di < 0 {
			di = 1e9
		}
		if dj < 0 {
			dj = 1e9
		}
		return di < dj
	})

	if r.cfg.MaxFindings > 0 && len(all) > r.cfg.MaxFindings {
		all = all[:r.cfg.MaxFindings]
	}
	return all, failures
}

func joinQueries(plans []QueryPlan) string {
	parts := make([]string, len(plans))
	for i, p := range plans {
		parts[i] = p.Query + "@" + string(p.Window)
	}
	return strings.Join(parts, "|")
}
