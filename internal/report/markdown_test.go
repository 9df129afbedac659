package report

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/edgescout/edgescout/internal/domain"
)

func sampleRun() domain.RunRecord {
	started := time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)
	return domain.RunRecord{
		ID:          "run-1",
		StartedAt:   started,
		EndedAt:     started.Add(9 * time.Minute),
		TotalCost:   0.37,
		Termination: domain.TerminationCompleted,
		Funnel:      domain.FunnelCounts{Fetched: 90, Filtered: 12, Screened: 12, Escalated: 4, Researched: 4, Scored: 2, Rejected: 10},
		Opportunities: []domain.Opportunity{
			{
				ContractID: "c-1", Question: "Will the senate pass the bill by April?",
				Category: "Politics", Direction: domain.DirectionFor,
				MarketProbability: 0.40, ModelProbability: 0.65, Edge: 0.25,
				Score: 0.215, Magnitude: 21.5,
				Confidence: domain.ConfidenceBreakdown{Overall: 0.86},
				GreenFlags: []string{"recent unreflected finding"},
			},
			{
				ContractID: "c-2", Question: "Will the merger be approved by June?",
				Category: "Business", Direction: domain.DirectionAgainst,
				MarketProbability: 0.55, ModelProbability: 0.45, Edge: 0.10,
				Score: 0.05,
				RedFlags: []string{"insufficient source diversity"},
			},
		},
		Errors: []domain.StageError{
			{ContractID: "c-9", Stage: domain.StageResearch, Message: "timeout"},
		},
	}
}

func TestRenderSections(t *testing.T) {
	out := NewRenderer().Render(sampleRun())

	assert.Contains(t, out, "# Opportunity Scout Report")
	assert.Contains(t, out, "| Fetched | 90 |")
	assert.Contains(t, out, "$0.37")
	assert.Contains(t, out, "## High Priority")
	assert.Contains(t, out, "## Watchlist")
	assert.Contains(t, out, "Will the senate pass the bill by April?")
	assert.Contains(t, out, "Green flags: recent unreflected finding")
	assert.Contains(t, out, "Red flags: insufficient source diversity")
	assert.Contains(t, out, "## Candidate Errors")
	assert.Contains(t, out, "`c-9` at research: timeout")
	assert.Contains(t, out, "runtime 9m0s")

	// High-priority opportunity appears before the watchlist entry.
	assert.Less(t, strings.Index(out, "c-1"), strings.Index(out, "c-2"))
}

func TestRenderEmptyRun(t *testing.T) {
	run := sampleRun()
	run.Opportunities = nil
	run.Errors = nil

	out := NewRenderer().Render(run)
	assert.Contains(t, out, "No opportunities cleared the reporting thresholds")
	assert.NotContains(t, out, "## Candidate Errors")
}
