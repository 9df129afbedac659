package research

import (
	"strings"

	"github.com/edgescout/edgescout/internal/domain"
)

// QueryPlan pairs a search query with the recency window it should run
// against.
type QueryPlan struct {
	Query  string
	Window domain.RecencyWindow
}

// ScreenQueries derives the cheap Tier-1 queries for a contract: the question
// itself plus news and analysis variants, all biased toward the last week.
func ScreenQueries(c domain.Contract, n int) []QueryPlan {
	base := normalizeQuestion(c.Question)

	plans := []QueryPlan{
		{Query: base, Window: domain.WindowWeek},
		{Query: base + " latest news", Window: domain.WindowWeek},
		{Query: base + " expert analysis", Window: domain.WindowWeek},
	}
	if n > 0 && n < len(plans) {
		plans = plans[:n]
	}
	return plans
}

// DeepQueries derives the Tier-2 query set: multiple angles across multiple
// recency windows, always including a contrarian framing that searches for
// evidence against the leading hypothesis.
func DeepQueries(c domain.Contract, n int) []QueryPlan {
	base := normalizeQuestion(c.Question)

	plans := []QueryPlan{
		{Query: base, Window: domain.WindowDay},
		{Query: base + " latest developments", Window: domain.WindowWeek},
		{Query: base + " official announcement statement", Window: domain.WindowWeek},
		{Query: base + " expert analysis forecast", Window: domain.WindowMonth},
		{Query: base + " historical precedent base rate", Window: domain.WindowAll},
		{Query: contrarianQuery(base), Window: domain.WindowMonth},
		{Query: base + " statistics data trends", Window: domain.WindowMonth},
		{Query: base + " odds probability prediction", Window: domain.WindowWeek},
	}
	if n > 0 && n < len(plans) {
		// The contrarian query must survive truncation.
		kept := plans[:n]
		if !hasContrarian(kept) {
			kept[n-1] = plans[5]
		}
		return kept
	}
	return plans
}

// contrarianQuery reframes the question to surface evidence against it.
func contrarianQuery(question string) string {
	q := strings.TrimSuffix(strings.ToLower(question), "?")
	q = strings.TrimPrefix(q, "will ")
	return "why " + q + " will not happen obstacles"
}

func hasContrarian(plans []QueryPlan) bool {
	for _, p := range plans {
		if strings.HasPrefix(p.Query, "why ") {
			return true
		}
	}
	return false
}

// normalizeQuestion strips punctuation that degrades search relevance.
func normalizeQuestion(q string) string {
	q = strings.TrimSpace(q)
	q = strings.TrimSuffix(q, "?")
	return q
}
