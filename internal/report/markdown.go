// Package report renders sealed run records into human-readable documents.
package report

import (
	"fmt"
	"strings"
	"time"

	"github.com/edgescout/edgescout/internal/domain"
)

// Renderer produces the Markdown run report handed to delivery channels and
// cold storage.
type Renderer struct {
	// HighPriorityScore splits opportunities into the high-priority section.
	HighPriorityScore float64
}

// NewRenderer creates a renderer with the default priority split.
func NewRenderer() *Renderer {
	return &Renderer{HighPriorityScore: 0.10}
}

// Render writes the full run report.
func (r *Renderer) Render(run domain.RunRecord) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Opportunity Scout Report\n\n")
	fmt.Fprintf(&b, "Run `%s` | %s | termination: %s\n\n",
		run.ID, run.StartedAt.Format(time.RFC3339), run.Termination)

	r.summary(&b, run)

	high, low := r.split(run.Opportunities)
	if len(high) > 0 {
		b.WriteString("## High Priority\n\n")
		for _, opp := range high {
			r.opportunity(&b, opp)
		}
	}
	if len(low) > 0 {
		b.WriteString("## Watchlist\n\n")
		for _, opp := range low {
			r.opportunity(&b, opp)
		}
	}
	if len(run.Opportunities) == 0 {
		b.WriteString("No opportunities cleared the reporting thresholds this run.\n\n")
	}

	r.errorsSection(&b, run.Errors)
	r.footer(&b, run)

	return b.String()
}

func (r *Renderer) summary(b *strings.Builder, run domain.RunRecord) {
	f := run.Funnel
	b.WriteString("## Summary\n\n")
	fmt.Fprintf(b, "| Stage | Count |\n|---|---|\n")
	fmt.Fprintf(b, "| Fetched | %d |\n", f.Fetched)
	fmt.Fprintf(b, "| Filtered | %d |\n", f.Filtered)
	fmt.Fprintf(b, "| Screened | %d |\n", f.Screened)
	fmt.Fprintf(b, "| Escalated | %d |\n", f.Escalated)
	fmt.Fprintf(b, "| Researched | %d |\n", f.Researched)
	fmt.Fprintf(b, "| Scored | %d |\n", f.Scored)
	fmt.Fprintf(b, "| Rejected | %d |\n", f.Rejected)
	fmt.Fprintf(b, "| Skipped | %d |\n", f.Skipped)
	fmt.Fprintf(b, "| Failed | %d |\n\n", f.Failed)
	fmt.Fprintf(b, "Research spend: $%.2f\n\n", run.TotalCost)
}

func (r *Renderer) split(opps []domain.Opportunity) (high, low []domain.Opportunity) {
	for _, opp := range opps {
		if opp.Score >= r.HighPriorityScore {
			high = append(high, opp)
		} else {
			low = append(low, opp)
		}
	}
	return high, low
}

func (r *Renderer) opportunity(b *strings.Builder, opp domain.Opportunity) {
	fmt.Fprintf(b, "### %s\n\n", opp.Question)
	fmt.Fprintf(b, "- Contract: `%s` (%s)\n", opp.ContractID, opp.Category)
	fmt.Fprintf(b, "- Direction: **%s** | Score: **%.3f** | Magnitude: %.1f\n",
		opp.Direction, opp.Score, opp.Magnitude)
	fmt.Fprintf(b, "- Market %.1f%% vs model %.1f%% (edge %.1f pts)\n",
		opp.MarketProbability*100, opp.ModelProbability*100, opp.Edge*100)
	fmt.Fprintf(b, "- Confidence %.2f (sources %.2f, recency %.2f, consensus %.2f, base rate %.2f, clarity %.2f)\n",
		opp.Confidence.Overall, opp.Confidence.SourceQuality, opp.Confidence.Recency,
		opp.Confidence.Consensus, opp.Confidence.BaseRateAlignment, opp.Confidence.ReasoningClarity)
	fmt.Fprintf(b, "- Liquidity factor %.2f\n", opp.LiquidityFactor)

	if len(opp.GreenFlags) > 0 {
		fmt.Fprintf(b, "- Green flags: %s\n", strings.Join(opp.GreenFlags, "; "))
	}
	if len(opp.RedFlags) > 0 {
		fmt.Fprintf(b, "- Red flags: %s\n", strings.Join(opp.RedFlags, "; "))
	}
	b.WriteString("\n")
}

func (r *Renderer) errorsSection(b *strings.Builder, errs []domain.StageError) {
	if len(errs) == 0 {
		return
	}
	b.WriteString("## Candidate Errors\n\n")
	for _, e := range errs {
		fmt.Fprintf(b, "- `%s` at %s: %s\n", e.ContractID, e.Stage, e.Message)
	}
	b.WriteString("\n")
}

func (r *Renderer) footer(b *strings.Builder, run domain.RunRecord) {
	fmt.Fprintf(b, "---\nGenerated %s | runtime %s\n",
		run.EndedAt.Format(time.RFC3339),
		run.EndedAt.Sub(run.StartedAt).Round(time.Second))
}
