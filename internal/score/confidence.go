package score

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/edgescout/edgescout/internal/domain"
	"github.com/edgescout/edgescout/internal/research"
)

// baseRateUncited is the sub-score when the report cites no base rate at
// all: worse than a consistent citation, better than a contradicting one.
const baseRateUncited = 0.3

var percentPattern = regexp.MustCompile(`(\d{1,3}(?:\.\d+)?)%`)

// confidence computes the five structural sub-scores and their weighted sum.
// Nothing here consults the research backend; every input is already inside
// the report.
func (e *Engine) confidence(report domain.ResearchReport) domain.ConfidenceBreakdown {
	b := domain.ConfidenceBreakdown{
		SourceQuality:     sourceQuality(report.Findings),
		Recency:           recency(report),
		Consensus:         consensus(report.Findings),
		BaseRateAlignment: baseRateAlignment(report),
		ReasoningClarity:  reasoningClarity(report.Reasoning),
	}
	b.Overall = e.cfg.SourceQualityWeight*b.SourceQuality +
		e.cfg.RecencyWeight*b.Recency +
		e.cfg.ConsensusWeight*b.Consensus +
		e.cfg.BaseRateWeight*b.BaseRateAlignment +
		e.cfg.ReasoningClarityWeight*b.ReasoningClarity
	return b
}

// sourceQuality is the mean declared credibility, normalized to [0,1].
func sourceQuality(findings []domain.Finding) float64 {
	if len(findings) == 0 {
		return 0
	}
	sum := 0
	for _, f := range findings {
		sum += f.Credibility
	}
	return float64(sum) / float64(len(findings)) / 5
}

// recency averages a per-finding freshness weight relative to the research
// timestamp. Findings without a date count as stale.
func recency(report domain.ResearchReport) float64 {
	if len(report.Findings) == 0 {
		return 0
	}
	var total float64
	for _, f := range report.Findings {
		age := f.RecencyDays(report.ResearchedAt)
		switch {
		case age >= 0 && age <= 1:
			total += 1.0
		case age >= 0 && age <= 7:
			total += 0.7
		case age >= 0 && age <= 30:
			total += 0.4
		default:
			total += 0.1
		}
	}
	return total / float64(len(report.Findings))
}

// consensus measures directional agreement among the polar claims: 1 when
// every polar claim points the same way, 0 when they split evenly. Reports
// with no polar claims sit at the neutral midpoint.
func consensus(findings []domain.Finding) float64 {
	support, oppose := 0, 0
	for _, f := range findings {
		switch research.ClaimPolarity(f.Claim) {
		case 1:
			support++
		case -1:
			oppose++
		}
	}
	polar := support + oppose
	if polar == 0 {
		return 0.5
	}
	diff := support - oppose
	if diff < 0 {
		diff = -diff
	}
	return float64(diff) / float64(polar)
}

// baseRateAlignment rewards an explicitly cited base rate that is consistent
// with the point estimate.
func baseRateAlignment(report domain.ResearchReport) float64 {
	rate, ok := parseBaseRate(report.BaseRate)
	if !ok {
		return baseRateUncited
	}
	gap := rate - report.Estimate
	if gap < 0 {
		gap = -gap
	}
	if gap >= 0.5 {
		return 0
	}
	return 1 - gap/0.5
}

// parseBaseRate extracts the probability from a base-rate citation like
// "68% (reuters.com)".
func parseBaseRate(s string) (float64, bool) {
	m := percentPattern.FindStringSubmatch(s)
	if m == nil {
		return 0, false
	}
	pct, err := strconv.ParseFloat(m[1], 64)
	if err != nil || pct < 0 || pct > 100 {
		return 0, false
	}
	return pct / 100, true
}

// clarityMarkers are the sections of the analytical frame a clear report
// walks through.
var clarityMarkers = []string{
	"current state", "evidence balance", "market prices", "contrarian",
}

// reasoningClarity scores the share of analytical-frame sections present in
// the reasoning text.
func reasoningClarity(reasoning string) float64 {
	if strings.TrimSpace(reasoning) == "" {
		return 0
	}
	lower := strings.ToLower(reasoning)
	hits := 0
	for _, marker := range clarityMarkers {
		if strings.Contains(lower, marker) {
			hits++
		}
	}
	return float64(hits) / float64(len(clarityMarkers))
}
