package score

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edgescout/edgescout/internal/config"
	"github.com/edgescout/edgescout/internal/domain"
)

var now = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

// framedReasoning walks the full analytical frame so clarity scores 1.
const framedReasoning = "Current state: strong coverage. Evidence balance: 4 supporting, 0 opposing. " +
	"Market prices the outcome at 0.40; evidence-adjusted estimate 0.65. Contrarian note: none surfaced."

type fixedSizer struct{ factor float64 }

func (s fixedSizer) Recommend(score, confidence float64) float64 { return score * s.factor }

type fakeHistory struct {
	delta float64
	ok    bool
}

func (h fakeHistory) RecentMove(string, time.Duration) (float64, bool) { return h.delta, h.ok }

func testEngine(history domain.PriceHistory) *Engine {
	return NewEngine(config.Defaults().Score, history, fixedSizer{factor: 10})
}

func contractFixture() domain.Contract {
	return domain.Contract{
		ID:         "c-1",
		Question:   "Will the acquisition be approved by June?",
		Category:   "Business",
		Liquidity:  20_000,
		ResolvesAt: now.Add(14 * 24 * time.Hour),
	}
}

func supportiveFinding(host string, age time.Duration) domain.Finding {
	ts := now.Add(-age)
	return domain.Finding{
		Claim:       "Regulator confirmed the deal is approved and on track",
		SourceURL:   "https://" + host + "/a",
		SourceName:  host,
		Credibility: 5,
		PublishedAt: &ts,
	}
}

func strongReport() domain.ResearchReport {
	return domain.ResearchReport{
		ContractID:   "c-1",
		Estimate:     0.65,
		IntervalLow:  0.55,
		IntervalHigh: 0.75,
		Findings: []domain.Finding{
			supportiveFinding("reuters.com", 2*time.Hour),
			supportiveFinding("apnews.com", 5*time.Hour),
			supportiveFinding("bloomberg.com", 8*time.Hour),
			supportiveFinding("ft.com", 20*time.Hour),
		},
		Reasoning:    framedReasoning,
		Quality:      domain.QualityHigh,
		ResearchedAt: now,
	}
}

func TestScoreStrongOpportunity(t *testing.T) {
	result, err := testEngine(nil).Score(contractFixture(), strongReport(), 0.40, now)
	require.NoError(t, err)
	require.False(t, result.Rejected, result.Reason)

	opp := result.Opportunity
	assert.InDelta(t, 0.25, opp.Edge, 1e-9)
	assert.InDelta(t, 1.0, opp.LiquidityFactor, 1e-9)
	assert.GreaterOrEqual(t, opp.Confidence.Overall, 0.8)
	assert.GreaterOrEqual(t, opp.Score, 0.20)
	assert.Equal(t, domain.DirectionFor, opp.Direction)
	assert.Contains(t, opp.GreenFlags, GreenFlagFreshFinding)
	assert.Contains(t, opp.GreenFlags, GreenFlagConsensus)
	assert.Empty(t, opp.RedFlags)
	assert.InDelta(t, opp.Score*10, opp.Magnitude, 1e-9)
}

func TestScoreFlagsNearResolutionAndThinSources(t *testing.T) {
	contract := contractFixture()
	contract.ResolvesAt = now.Add(3 * 24 * time.Hour)

	report := strongReport()
	report.Findings = report.Findings[:1]

	result, err := testEngine(nil).Score(contract, report, 0.35, now)
	require.NoError(t, err)

	opp := result.Opportunity
	assert.InDelta(t, 0.30, opp.Edge, 1e-9)
	assert.Contains(t, opp.RedFlags, RedFlagNearResolution)
	assert.Contains(t, opp.RedFlags, RedFlagFewSources)
	assert.Positive(t, opp.Score, "flagged opportunities are still computed")
}

func TestScoreRecentMoveFlag(t *testing.T) {
	moved := testEngine(fakeHistory{delta: 0.15, ok: true})
	result, err := moved.Score(contractFixture(), strongReport(), 0.40, now)
	require.NoError(t, err)
	assert.Contains(t, result.Opportunity.RedFlags, RedFlagRecentMove)

	// No data for the contract: the check is skipped, not failed.
	noData := testEngine(fakeHistory{ok: false})
	result, err = noData.Score(contractFixture(), strongReport(), 0.40, now)
	require.NoError(t, err)
	assert.NotContains(t, result.Opportunity.RedFlags, RedFlagRecentMove)
}

func TestScoreDirectionAgainst(t *testing.T) {
	report := strongReport()
	report.Estimate = 0.30
	report.IntervalLow = 0.20
	report.IntervalHigh = 0.40

	result, err := testEngine(nil).Score(contractFixture(), report, 0.55, now)
	require.NoError(t, err)
	assert.Equal(t, domain.DirectionAgainst, result.Opportunity.Direction)
}

func TestScoreRejections(t *testing.T) {
	engine := testEngine(nil)

	// Edge below minimum.
	report := strongReport()
	report.Estimate = 0.42
	report.IntervalLow = 0.35
	report.IntervalHigh = 0.50
	result, err := engine.Score(contractFixture(), report, 0.40, now)
	require.NoError(t, err)
	assert.True(t, result.Rejected)
	assert.Contains(t, result.Reason, "edge")

	// Confidence below minimum: no findings, no reasoning.
	thin := domain.ResearchReport{
		ContractID:   "c-1",
		Estimate:     0.65,
		IntervalLow:  0.45,
		IntervalHigh: 0.85,
		Quality:      domain.QualityLow,
		ResearchedAt: now,
	}
	result, err = engine.Score(contractFixture(), thin, 0.40, now)
	require.NoError(t, err)
	assert.True(t, result.Rejected)
	assert.Contains(t, result.Reason, "confidence")
}

func TestScoreInvalidReportIsError(t *testing.T) {
	report := strongReport()
	report.IntervalLow = 0.70 // does not bracket the estimate

	_, err := testEngine(nil).Score(contractFixture(), report, 0.40, now)
	require.Error(t, err)
}

func TestScoreMonotonicInEdge(t *testing.T) {
	engine := testEngine(nil)
	report := strongReport()

	prev := -1.0
	for _, market := range []float64{0.60, 0.55, 0.50, 0.45, 0.40, 0.35, 0.30} {
		result, err := engine.Score(contractFixture(), report, market, now)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, result.Opportunity.Score, prev,
			"score must not decrease as edge grows")
		prev = result.Opportunity.Score
	}
}

func TestScoreIdempotent(t *testing.T) {
	engine := testEngine(nil)
	a, err := engine.Score(contractFixture(), strongReport(), 0.40, now)
	require.NoError(t, err)
	b, err := engine.Score(contractFixture(), strongReport(), 0.40, now)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestConsensusSubScore(t *testing.T) {
	agree := []domain.Finding{
		{Claim: "launch confirmed"}, {Claim: "launch is on track"},
	}
	assert.InDelta(t, 1.0, consensus(agree), 1e-9)

	split := []domain.Finding{
		{Claim: "launch confirmed"}, {Claim: "launch delayed"},
	}
	assert.InDelta(t, 0.0, consensus(split), 1e-9)

	neutral := []domain.Finding{{Claim: "a retrospective"}}
	assert.InDelta(t, 0.5, consensus(neutral), 1e-9)
}

func TestBaseRateAlignment(t *testing.T) {
	report := domain.ResearchReport{Estimate: 0.65, BaseRate: "68% (reuters.com)"}
	assert.Greater(t, baseRateAlignment(report), 0.9)

	report.BaseRate = ""
	assert.InDelta(t, baseRateUncited, baseRateAlignment(report), 1e-9)

	report.BaseRate = "10% (reuters.com)"
	assert.Less(t, baseRateAlignment(report), 0.5)
}
