package research

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/edgescout/edgescout/internal/domain"
)

// maxEstimateShift bounds how far the evidence can move the estimate away
// from the market price. Even unanimous findings leave residual uncertainty.
const maxEstimateShift = 0.25

// Interval half-widths per information quality grade.
var intervalHalfWidth = map[domain.InfoQuality]float64{
	domain.QualityHigh:   0.08,
	domain.QualityMedium: 0.12,
	domain.QualityLow:    0.20,
}

var supportTerms = []string{
	"will ", "likely", "expected", "on track", "confirmed", "approved",
	"announced", "leads", "ahead", "poised", "set to", "momentum",
}

var opposeTerms = []string{
	"unlikely", "will not", "won't", "delayed", "rejected", "denied",
	"blocked", "behind", "doubt", "fails", "falling short", "stalled",
	"collapse", "setback",
}

var percentPattern = regexp.MustCompile(`\d{1,3}(?:\.\d+)?%`)

// synthesizeReport builds a ResearchReport from findings alone, with no
// model in the loop. The estimate anchors on the market price and shifts by
// the credibility- and recency-weighted balance of supporting versus opposing
// claims, so re-running on identical findings yields an identical report.
func synthesizeReport(contract domain.Contract, marketPrice float64, findings []domain.Finding, cost float64, now time.Time) domain.ResearchReport {
	quality := assessQuality(findings)
	net := evidenceBalance(findings, now)

	estimate := clamp(marketPrice+net*maxEstimateShift, 0.02, 0.98)

	half := intervalHalfWidth[quality]
	low := clamp(estimate-half, 0.01, estimate)
	high := clamp(estimate+half, estimate, 0.99)

	return domain.ResearchReport{
		ContractID:   contract.ID,
		Estimate:     estimate,
		IntervalLow:  low,
		IntervalHigh: high,
		Findings:     findings,
		BaseRate:     extractBaseRate(findings),
		Risks:        extractRisks(findings),
		Reasoning:    buildReasoning(contract, marketPrice, estimate, findings, net, quality),
		Quality:      quality,
		Cost:         cost,
		ResearchedAt: now,
	}
}

// assessQuality grades the information base on average credibility and
// source diversity.
func assessQuality(findings []domain.Finding) domain.InfoQuality {
	if len(findings) == 0 {
		return domain.QualityLow
	}

	sum := 0
	hosts := make(map[string]bool)
	for _, f := range findings {
		sum += f.Credibility
		hosts[f.SourceName] = true
	}
	avg := float64(sum) / float64(len(findings))

	switch {
	case avg >= 4 && len(hosts) >= 5:
		return domain.QualityHigh
	case avg >= 3 && len(hosts) >= 3:
		return domain.QualityMedium
	default:
		return domain.QualityLow
	}
}

// evidenceBalance returns the weighted net support in [-1, 1]. Each claim is
// classified as supporting, opposing, or neutral and weighted by credibility
// and recency. Neutral claims contribute weight but no direction, damping
// the shift.
func evidenceBalance(findings []domain.Finding, now time.Time) float64 {
	var netWeight, totalWeight float64
	for _, f := range findings {
		w := float64(f.Credibility) / 5 * recencyFactor(f.RecencyDays(now))
		totalWeight += w
		netWeight += w * float64(claimPolarity(f.Claim))
	}
	if totalWeight == 0 {
		return 0
	}
	return netWeight / totalWeight
}

// claimPolarity classifies a claim as supporting (+1), opposing (-1), or
// neutral (0). Opposing terms win ties because negations usually embed the
// affirmative phrasing.
func claimPolarity(claim string) int {
	lower := strings.ToLower(claim)
	for _, term := range opposeTerms {
		if strings.Contains(lower, term) {
			return -1
		}
	}
	for _, term := range supportTerms {
		if strings.Contains(lower, term) {
			return 1
		}
	}
	return 0
}

// recencyFactor discounts stale findings. Age -1 means unknown and gets the
// stale discount.
func recencyFactor(ageDays float64) float64 {
	switch {
	case ageDays >= 0 && ageDays <= 1:
		return 1.0
	case ageDays >= 0 && ageDays <= 7:
		return 0.8
	case ageDays >= 0 && ageDays <= 30:
		return 0.5
	default:
		return 0.3
	}
}

// extractBaseRate pulls the first percentage cited alongside historical
// language out of the findings. Empty when nothing qualifies.
func extractBaseRate(findings []domain.Finding) string {
	for _, f := range findings {
		lower := strings.ToLower(f.Claim)
		if !strings.Contains(lower, "historical") &&
			!strings.Contains(lower, "base rate") &&
			!strings.Contains(lower, "precedent") &&
			!strings.Contains(lower, "past ") {
			continue
		}
		if pct := percentPattern.FindString(f.Claim); pct != "" {
			return fmt.Sprintf("%s (%s)", pct, f.SourceName)
		}
	}
	return ""
}

// extractRisks collects the strongest opposing claims as risks to the thesis.
func extractRisks(findings []domain.Finding) []string {
	var risks []string
	for _, f := range findings {
		if claimPolarity(f.Claim) != -1 {
			continue
		}
		claim := f.Claim
		if len(claim) > 200 {
			claim = claim[:200]
		}
		risks = append(risks, fmt.Sprintf("%s (%s)", claim, f.SourceName))
		if len(risks) == 5 {
			break
		}
	}
	return risks
}

// buildReasoning renders the analytical frame as text: current state, the
// evidence balance, and the contrarian note.
func buildReasoning(contract domain.Contract, marketPrice, estimate float64, findings []domain.Finding, net float64, quality domain.InfoQuality) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Current state: %d findings gathered for %q, information quality %s.",
		len(findings), contract.Question, quality)

	support, oppose := 0, 0
	for _, f := range findings {
		switch claimPolarity(f.Claim) {
		case 1:
			support++
		case -1:
			oppose++
		}
	}
	fmt.Fprintf(&b, " Evidence balance: %d supporting, %d opposing, %d neutral claims (weighted net %+.2f).",
		support, oppose, len(findings)-support-oppose, net)

	fmt.Fprintf(&b, " Market prices the outcome at %.2f; evidence-adjusted estimate %.2f.",
		marketPrice, estimate)

	if oppose > 0 {
		b.WriteString(" Contrarian note: opposing findings are present and listed as risks; the estimate discounts them by credibility and recency rather than ignoring them.")
	} else {
		b.WriteString(" Contrarian note: no opposing findings surfaced, which may itself indicate thin coverage of the downside case.")
	}

	return b.String()
}

// ClaimPolarity classifies a claim as supporting (+1), opposing (-1), or
// neutral (0) toward the question's affirmative outcome.
func ClaimPolarity(claim string) int {
	return claimPolarity(claim)
}

// PreliminaryEstimate is the cheap screening-time probability: the live
// market price shifted by the evidence balance, without the full report
// synthesis. Screening uses it to compute a preliminary edge.
func PreliminaryEstimate(marketPrice float64, findings []domain.Finding, now time.Time) float64 {
	return clamp(marketPrice+evidenceBalance(findings, now)*maxEstimateShift, 0.02, 0.98)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
