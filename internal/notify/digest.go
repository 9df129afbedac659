package notify

import (
	"fmt"
	"strings"

	"github.com/edgescout/edgescout/internal/domain"
)

// digestMaxOpportunities bounds the digest body; the full list lives in the
// run report.
const digestMaxOpportunities = 5

// RunDigest renders a sealed run into a short chat-friendly summary.
func RunDigest(run domain.RunRecord) (title, message string) {
	title = fmt.Sprintf("Scout run %s: %d opportunities",
		shortID(run.ID), len(run.Opportunities))

	var b strings.Builder
	fmt.Fprintf(&b, "Termination: %s | Cost: $%.2f | Elapsed: %s\n",
		run.Termination, run.TotalCost, run.EndedAt.Sub(run.StartedAt).Round(1e9))
	fmt.Fprintf(&b, "Funnel: %d fetched, %d filtered, %d screened, %d escalated, %d researched, %d scored\n",
		run.Funnel.Fetched, run.Funnel.Filtered, run.Funnel.Screened,
		run.Funnel.Escalated, run.Funnel.Researched, run.Funnel.Scored)

	if len(run.Errors) > 0 {
		fmt.Fprintf(&b, "Errors: %d candidate failure(s)\n", len(run.Errors))
	}

	for i, opp := range run.Opportunities {
		if i == digestMaxOpportunities {
			fmt.Fprintf(&b, "... and %d more\n", len(run.Opportunities)-digestMaxOpportunities)
			break
		}
		b.WriteString(opportunityLine(opp))
	}

	return title, b.String()
}

// OpportunityAlert renders the single best opportunity of a run for the
// dedicated opportunity event channel.
func OpportunityAlert(opp domain.Opportunity) (title, message string) {
	title = fmt.Sprintf("Opportunity %.3f: %s", opp.Score, truncateQuestion(opp.Question))
	return title, opportunityLine(opp)
}

// opportunityLine is one compact row per opportunity.
func opportunityLine(opp domain.Opportunity) string {
	flags := ""
	if len(opp.RedFlags) > 0 {
		flags = fmt.Sprintf(" [%d red flags]", len(opp.RedFlags))
	}
	return fmt.Sprintf("%.3f %s %q: market %.2f vs model %.2f (edge %.2f)%s\n",
		opp.Score, opp.Direction, truncateQuestion(opp.Question),
		opp.MarketProbability, opp.ModelProbability, opp.Edge, flags)
}

func truncateQuestion(q string) string {
	if len(q) > 60 {
		return q[:60] + "..."
	}
	return q
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
