package domain

import (
	"fmt"
	"time"
)

// RecencyWindow restricts a research query to sources published within the
// given window.
type RecencyWindow string

const (
	WindowDay   RecencyWindow = "day"
	WindowWeek  RecencyWindow = "week"
	WindowMonth RecencyWindow = "month"
	WindowAll   RecencyWindow = "all"
)

// Finding is a single ranked research result returned by the research
// backend: a claim, where it came from, and how much to trust it.
type Finding struct {
	Claim       string
	SourceURL   string
	SourceName  string
	Credibility int // 1-5, source-declared
	PublishedAt *time.Time
}

// RecencyDays returns the age of the finding in days relative to now, or -1
// when the backend did not supply a publication date.
func (f Finding) RecencyDays(now time.Time) float64 {
	if f.PublishedAt == nil {
		return -1
	}
	return now.Sub(*f.PublishedAt).Hours() / 24
}

// ScreenResult is the Tier-1 output for one contract: a short signal and the
// escalation decision. Created once, never updated.
type ScreenResult struct {
	ContractID      string
	Summary         string
	SourceCount     int
	Escalate        bool
	Reason          string
	PreliminaryEdge float64
	Cost            float64
	ScreenedAt      time.Time
}

// InfoQuality grades the overall information base behind a ResearchReport.
type InfoQuality string

const (
	QualityHigh   InfoQuality = "high"
	QualityMedium InfoQuality = "medium"
	QualityLow    InfoQuality = "low"
)

// ResearchReport is the Tier-2 output for one escalated contract. The
// confidence interval must bracket the point estimate; a report with zero
// findings is valid but always carries QualityLow.
type ResearchReport struct {
	ContractID   string
	Estimate     float64 // 0-1
	IntervalLow  float64
	IntervalHigh float64
	Findings     []Finding
	BaseRate     string // empty when no base rate was identified
	Risks        []string
	Reasoning    string
	Quality      InfoQuality
	Cost         float64
	ResearchedAt time.Time
}

// Validate checks the structural invariants of the report. Reports that fail
// validation are rejected before scoring.
func (r ResearchReport) Validate() error {
	if r.Estimate < 0 || r.Estimate > 1 {
		return fmt.Errorf("research report %s: estimate %.3f outside [0,1]", r.ContractID, r.Estimate)
	}
	if r.IntervalLow > r.Estimate || r.IntervalHigh < r.Estimate {
		return fmt.Errorf("research report %s: interval [%.3f, %.3f] does not bracket estimate %.3f",
			r.ContractID, r.IntervalLow, r.IntervalHigh, r.Estimate)
	}
	if r.IntervalLow < 0 || r.IntervalHigh > 1 {
		return fmt.Errorf("research report %s: interval [%.3f, %.3f] outside [0,1]",
			r.ContractID, r.IntervalLow, r.IntervalHigh)
	}
	if len(r.Findings) == 0 && r.Quality != QualityLow {
		return fmt.Errorf("research report %s: zero findings requires low information quality", r.ContractID)
	}
	return nil
}
