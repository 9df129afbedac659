package research

import "strings"

// credibilityTiers maps source hosts to a declared 1-5 credibility score.
// Wire services, government and official statistics sites rank highest;
// unknown hosts get the neutral default.
var credibilityTiers = map[string]int{
	"reuters.com":       5,
	"apnews.com":        5,
	"bloomberg.com":     5,
	"ft.com":            5,
	"economist.com":     5,
	"bbc.com":           4,
	"bbc.co.uk":         4,
	"nytimes.com":       4,
	"wsj.com":           4,
	"washingtonpost.com": 4,
	"theguardian.com":   4,
	"cnbc.com":          4,
	"politico.com":      4,
	"axios.com":         4,
	"forbes.com":        3,
	"businessinsider.com": 3,
	"thehill.com":       3,
	"yahoo.com":         2,
	"medium.com":        2,
	"substack.com":      2,
	"reddit.com":        1,
	"x.com":             1,
	"twitter.com":       1,
}

const defaultCredibility = 3

// credibilityFor scores a source URL 1-5 from its host. Government and
// academic domains score 5 regardless of the tier table.
func credibilityFor(rawURL string) int {
	host := hostOf(rawURL)

	if strings.HasSuffix(host, ".gov") || strings.HasSuffix(host, ".edu") {
		return 5
	}

	if score, ok := credibilityTiers[host]; ok {
		return score
	}
	// Subdomains inherit the parent's tier (e.g. news.yahoo.com).
	for domain, score := range credibilityTiers {
		if strings.HasSuffix(host, "."+domain) {
			return score
		}
	}
	return defaultCredibility
}
