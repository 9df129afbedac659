// Package score implements the deterministic opportunity scoring engine:
// pure functions from a contract and its research report to a ranked, flagged
// opportunity. Scoring the same inputs twice yields identical output.
package score

import (
	"fmt"
	"math"
	"time"

	"github.com/edgescout/edgescout/internal/config"
	"github.com/edgescout/edgescout/internal/domain"
)

// Sizer converts an opportunity score and an overall confidence into a
// recommended position magnitude. Implementations are pure; the engine never
// inspects the result beyond attaching it.
type Sizer interface {
	Recommend(opportunityScore, confidence float64) float64
}

// Result is the outcome of scoring one candidate. A rejected result still
// carries the computed Opportunity for logging; it is counted in the funnel
// but never reported.
type Result struct {
	Opportunity domain.Opportunity
	Rejected    bool
	Reason      string
}

// Engine scores escalated candidates. The price history collaborator is
// optional; when nil the recent-move red flag check is skipped.
type Engine struct {
	cfg     config.ScoreConfig
	history domain.PriceHistory
	sizer   Sizer
}

// NewEngine creates a scoring engine.
func NewEngine(cfg config.ScoreConfig, history domain.PriceHistory, sizer Sizer) *Engine {
	return &Engine{cfg: cfg, history: history, sizer: sizer}
}

// Score evaluates one contract against its research report. marketPrice is
// the live market-implied probability at scoring time. An invalid report is
// an error; threshold misses are rejections, not errors.
func (e *Engine) Score(contract domain.Contract, report domain.ResearchReport, marketPrice float64, now time.Time) (Result, error) {
	if err := report.Validate(); err != nil {
		return Result{}, fmt.Errorf("score: %w", err)
	}

	edge := math.Abs(report.Estimate - marketPrice)
	confidence := e.confidence(report)
	liquidityFactor := math.Min(1, contract.Liquidity/e.cfg.ReferenceLiquidity)
	opportunityScore := edge * confidence.Overall * liquidityFactor

	direction := domain.DirectionAgainst
	if report.Estimate > marketPrice {
		direction = domain.DirectionFor
	}

	var magnitude float64
	if e.sizer != nil {
		magnitude = e.sizer.Recommend(opportunityScore, confidence.Overall)
	}

	opp := domain.Opportunity{
		ContractID:        contract.ID,
		Question:          contract.Question,
		Category:          contract.Category,
		MarketProbability: marketPrice,
		ModelProbability:  report.Estimate,
		Edge:              edge,
		Confidence:        confidence,
		LiquidityFactor:   liquidityFactor,
		Score:             opportunityScore,
		RedFlags:          e.redFlags(contract, report, now),
		GreenFlags:        e.greenFlags(report, edge, now),
		Direction:         direction,
		Magnitude:         magnitude,
	}

	switch {
	case edge < e.cfg.MinEdge:
		return Result{Opportunity: opp, Rejected: true,
			Reason: fmt.Sprintf("edge %.3f below minimum %.3f", edge, e.cfg.MinEdge)}, nil
	case confidence.Overall < e.cfg.MinConfidence:
		return Result{Opportunity: opp, Rejected: true,
			Reason: fmt.Sprintf("confidence %.3f below minimum %.3f", confidence.Overall, e.cfg.MinConfidence)}, nil
	case opportunityScore < e.cfg.MinOpportunityScore:
		return Result{Opportunity: opp, Rejected: true,
			Reason: fmt.Sprintf("opportunity score %.3f below minimum %.3f", opportunityScore, e.cfg.MinOpportunityScore)}, nil
	}

	return Result{Opportunity: opp}, nil
}
