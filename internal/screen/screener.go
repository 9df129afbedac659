// Package screen implements the cheap Tier-1 pass that decides which
// candidates deserve deep research.
package screen

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/edgescout/edgescout/internal/config"
	"github.com/edgescout/edgescout/internal/domain"
	"github.com/edgescout/edgescout/internal/governor"
	"github.com/edgescout/edgescout/internal/research"
)

// ReasonBudgetSkipped marks a screen result produced without any paid call
// because the governor denied the reservation.
const ReasonBudgetSkipped = "budget-skipped"

// recentTerms indicate a material development in a claim's text.
var recentTerms = []string{
	"announced", "breaking", "confirmed", "just ", "today", "yesterday",
	"new ", "latest",
}

// Screener runs the Tier-1 screen for one contract at a time. It consults
// the governor for cache and budget before every paid call and never fails
// the surrounding run on its own.
type Screener struct {
	backend domain.ResearchBackend
	gov     *governor.Governor
	cfg     config.ScreenConfig
	logger  *slog.Logger
	now     func() time.Time
}

// New creates a Tier-1 screener.
func New(backend domain.ResearchBackend, gov *governor.Governor, cfg config.ScreenConfig, logger *slog.Logger) *Screener {
	return &Screener{
		backend: backend,
		gov:     gov,
		cfg:     cfg,
		logger:  logger.With(slog.String("component", "screener")),
		now:     time.Now,
	}
}

// Screen produces a ScreenResult for one contract. marketPrice is the live
// price at screening time. A budget denial returns a non-escalating result
// with ReasonBudgetSkipped and a nil error; a research-backend failure
// returns an error the caller records against this contract only.
func (s *Screener) Screen(ctx context.Context, contract domain.Contract, marketPrice float64) (domain.ScreenResult, error) {
	plans := research.ScreenQueries(contract, s.cfg.Queries)
	fp := governor.Fingerprint(contract.ID, "screen", joinQueries(plans))

	var cached domain.ScreenResult
	if s.gov.Lookup(ctx, fp, &cached) {
		s.logger.Debug("screen cache hit", slog.String("contract_id", contract.ID))
		return cached, nil
	}

	if err := s.gov.Reserve(fp, s.cfg.EstimatedCost); err != nil {
		if errors.Is(err, domain.ErrBudgetExceeded) {
			return domain.ScreenResult{
				ContractID: contract.ID,
				Summary:    "screening skipped: daily budget exhausted",
				Escalate:   false,
				Reason:     ReasonBudgetSkipped,
				ScreenedAt: s.now(),
			}, nil
		}
		return domain.ScreenResult{}, fmt.Errorf("screen: %s: %w", contract.ID, err)
	}

	findings, failures := s.gather(ctx, plans)
	if len(findings) == 0 && failures > 0 {
		s.gov.Release(fp)
		return domain.ScreenResult{}, fmt.Errorf("screen: %s: all %d queries failed", contract.ID, failures)
	}

	s.gov.Commit(fp, s.cfg.EstimatedCost)

	result := s.decide(contract, marketPrice, findings)
	s.gov.Store(ctx, fp, result)

	s.logger.Info("screen complete",
		slog.String("contract_id", contract.ID),
		slog.Bool("escalate", result.Escalate),
		slog.Float64("preliminary_edge", result.PreliminaryEdge),
		slog.Int("sources", result.SourceCount))

	return result, nil
}

func (s *Screener) gather(ctx context.Context, plans []research.QueryPlan) ([]domain.Finding, int) {
	var all []domain.Finding
	seen := make(map[string]bool)
	failures := 0

	for _, plan := range plans {
		found, err := s.backend.Search(ctx, plan.Query, plan.Window)
		if err != nil {
			failures++
			s.logger.Warn("screen query failed",
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

	sort.SliceStable(all, func(i, j int) bool {
		return all[i].Credibility > all[j].Credibility
	})
	if s.cfg.MaxFindings > 0 && len(all) > s.cfg.MaxFindings {
		all = all[:s.cfg.MaxFindings]
	}
	return all, failures
}

// decide applies the three-part escalation rule: a material development, at
// least one credible source, and a preliminary edge above the threshold.
func (s *Screener) decide(contract domain.Contract, marketPrice float64, findings []domain.Finding) domain.ScreenResult {
	now := s.now()

	credible := 0
	for _, f := range findings {
		if f.Credibility >= s.cfg.MinCredibility {
			credible++
		}
	}

	estimate := research.PreliminaryEstimate(marketPrice, findings, now)
	edge := math.Abs(estimate - marketPrice)
	material := hasMaterialDevelopment(findings, now)

	var reasons []string
	escalate := true

	if !material {
		escalate = false
		reasons = append(reasons, "no recent material development")
	} else {
		reasons = append(reasons, "recent material development detected")
	}
	if credible == 0 {
		escalate = false
		reasons = append(reasons, "no source met the credibility bar")
	} else {
		reasons = append(reasons, fmt.Sprintf("%d credible sources", credible))
	}
	if edge < s.cfg.MinEdge {
		escalate = false
		reasons = append(reasons, fmt.Sprintf("preliminary edge %.2f below threshold %.2f", edge, s.cfg.MinEdge))
	} else {
		reasons = append(reasons, fmt.Sprintf("preliminary edge %.2f", edge))
	}

	return domain.ScreenResult{
		ContractID:      contract.ID,
		Summary:         buildSummary(contract, findings),
		SourceCount:     len(findings),
		Escalate:        escalate,
		Reason:          strings.Join(reasons, "; "),
		PreliminaryEdge: edge,
		Cost:            s.cfg.EstimatedCost,
		ScreenedAt:      now,
	}
}

// hasMaterialDevelopment checks for a fresh finding or development language
// in the claims.
func hasMaterialDevelopment(findings []domain.Finding, now time.Time) bool {
	for _, f := range findings {
		if age := f.RecencyDays(now); age >= 0 && age <= 2 {
			return true
		}
		lower := strings.ToLower(f.Claim)
		for _, term := range recentTerms {
			if strings.Contains(lower, term) {
				return true
			}
		}
	}
	return false
}

func buildSummary(contract domain.Contract, findings []domain.Finding) string {
	if len(findings) == 0 {
		return fmt.Sprintf("no findings for %q", contract.Question)
	}
	top := findings[0].Claim
	if len(top) > 200 {
		top = top[:200]
	}
	return fmt.Sprintf("%d findings; strongest: %s", len(findings), top)
}

func joinQueries(plans []research.QueryPlan) string {
	parts := make([]string, len(plans))
	for i, p := range plans {
		parts[i] = p.Query + "@" + string(p.Window)
	}
	return strings.Join(parts, "|")
}
