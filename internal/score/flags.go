package score

import (
	"time"

	"github.com/edgescout/edgescout/internal/domain"
	"github.com/edgescout/edgescout/internal/research"
)

// Flag labels. These are fixed checklist items, never free text.
const (
	RedFlagNearResolution = "resolves <7 days"
	RedFlagFewSources     = "insufficient source diversity"
	RedFlagDisagreement   = "expert disagreement in findings"
	RedFlagRecentMove     = "large recent price move"

	GreenFlagFreshFinding = "recent unreflected finding"
	GreenFlagConsensus    = "high source consensus"
	GreenFlagBaseRate     = "base rate cited and consistent"
)

// redFlags runs the red checklist. The recent-move check needs the price
// history collaborator; without one (or without data for this contract) it
// is skipped, not failed.
func (e *Engine) redFlags(contract domain.Contract, report domain.ResearchReport, now time.Time) []string {
	var flags []string

	if contract.DaysToResolution(now) < e.cfg.MinResolutionDaysNoFlag {
		flags = append(flags, RedFlagNearResolution)
	}
	if independentHosts(report.Findings) < 2 {
		flags = append(flags, RedFlagFewSources)
	}
	if hasDisagreement(report.Findings) {
		flags = append(flags, RedFlagDisagreement)
	}
	if e.history != nil {
		window := time.Duration(e.cfg.RecentMoveWindowHours) * time.Hour
		if delta, ok := e.history.RecentMove(contract.ID, window); ok && delta >= e.cfg.RecentMoveThreshold {
			flags = append(flags, RedFlagRecentMove)
		}
	}
	return flags
}

// greenFlags runs the green checklist.
func (e *Engine) greenFlags(report domain.ResearchReport, edge float64, now time.Time) []string {
	var flags []string

	if hasFreshUnreflected(report, edge, e.cfg.MinEdge, now) {
		flags = append(flags, GreenFlagFreshFinding)
	}
	if credibleConsensusCount(report.Findings) >= 3 {
		flags = append(flags, GreenFlagConsensus)
	}
	if baseRateAlignment(report) >= 0.6 && report.BaseRate != "" {
		flags = append(flags, GreenFlagBaseRate)
	}
	return flags
}

func independentHosts(findings []domain.Finding) int {
	hosts := make(map[string]bool, len(findings))
	for _, f := range findings {
		if f.SourceName != "" {
			hosts[f.SourceName] = true
		}
	}
	return len(hosts)
}

// hasDisagreement reports whether the findings contain both supporting and
// opposing claims.
func hasDisagreement(findings []domain.Finding) bool {
	support, oppose := false, false
	for _, f := range findings {
		switch research.ClaimPolarity(f.Claim) {
		case 1:
			support = true
		case -1:
			oppose = true
		}
	}
	return support && oppose
}

// hasFreshUnreflected checks for a finding published within 24 hours while
// the market still diverges from the estimate, i.e. the news has not yet
// moved the price.
func hasFreshUnreflected(report domain.ResearchReport, edge, minEdge float64, now time.Time) bool {
	if edge < minEdge {
		return false
	}
	for _, f := range report.Findings {
		if age := f.RecencyDays(now); age >= 0 && age <= 1 {
			return true
		}
	}
	return false
}

// credibleConsensusCount counts independent higher-credibility sources whose
// claims all point the same direction.
func credibleConsensusCount(findings []domain.Finding) int {
	hostsByDir := map[int]map[string]bool{1: {}, -1: {}}
	for _, f := range findings {
		if f.Credibility < 4 {
			continue
		}
		dir := research.ClaimPolarity(f.Claim)
		if dir == 0 {
			continue
		}
		hostsByDir[dir][f.SourceName] = true
	}
	if len(hostsByDir[1]) > 0 && len(hostsByDir[-1]) > 0 {
		return 0 // credible sources disagree
	}
	if n := len(hostsByDir[1]); n > 0 {
		return n
	}
	return len(hostsByDir[-1])
}
