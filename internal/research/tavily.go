// Package research provides the web research backend client, query
// derivation, and the deep researcher that turns raw findings into a
// structured report.
package research

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/edgescout/edgescout/internal/domain"
)

// TavilyClient talks to the Tavily search API and maps its results onto
// domain findings.
type TavilyClient struct {
	client *resty.Client
	apiKey string
	logger *slog.Logger
}

// NewTavilyClient creates a research backend client.
func NewTavilyClient(baseURL, apiKey string, timeout time.Duration, maxRetries int, logger *slog.Logger) *TavilyClient {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetRetryCount(maxRetries).
		SetRetryWaitTime(500 * time.Millisecond)

	return &TavilyClient{
		client: client,
		apiKey: apiKey,
		logger: logger.With(slog.String("component", "research_backend")),
	}
}

type searchRequest struct {
	APIKey      string `json:"api_key"`
	Query       string `json:"query"`
	SearchDepth string `json:"search_depth"`
	Topic       string `json:"topic"`
	Days        int    `json:"days,omitempty"`
	MaxResults  int    `json:"max_results"`
}

type searchResult struct {
	Title         string  `json:"title"`
	URL           string  `json:"url"`
	Content       string  `json:"content"`
	Score         float64 `json:"score"`
	PublishedDate string  `json:"published_date"`
}

type searchResponse struct {
	Results []searchResult `json:"results"`
}

// Search runs one query against the backend and returns ranked findings.
// It implements domain.ResearchBackend.
func (t *TavilyClient) Search(ctx context.Context, query string, window domain.RecencyWindow) ([]domain.Finding, error) {
	req := searchRequest{
		APIKey:      t.apiKey,
		Query:       query,
		SearchDepth: "basic",
		Topic:       "general",
		MaxResults:  5,
	}

	switch window {
	case domain.WindowDay:
		req.Topic = "news"
		req.Days = 1
	case domain.WindowWeek:
		req.Topic = "news"
		req.Days = 7
	case domain.WindowMonth:
		req.Topic = "news"
		req.Days = 30
	}

	var out searchResponse
	resp, err := t.client.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&out).
		Post("/search")
	if err != nil {
		return nil, fmt.Errorf("research: search %q: %w", query, err)
	}
	if resp.StatusCode() != 200 {
		return nil, fmt.Errorf("research: search %q: status %d: %s",
			query, resp.StatusCode(), truncate(resp.String(), 200))
	}

	findings := make([]domain.Finding, 0, len(out.Results))
	for _, r := range out.Results {
		if r.URL == "" {
			continue
		}
		f := domain.Finding{
			Claim:       buildClaim(r.Title, r.Content),
			SourceURL:   r.URL,
			SourceName:  hostOf(r.URL),
			Credibility: credibilityFor(r.URL),
		}
		if ts, err := parsePublished(r.PublishedDate); err == nil {
			f.PublishedAt = &ts
		}
		findings = append(findings, f)
	}

	t.logger.Debug("search complete",
		slog.String("query", query),
		slog.String("window", string(window)),
		slog.Int("findings", len(findings)))

	return findings, nil
}

func buildClaim(title, content string) string {
	content = strings.TrimSpace(content)
	if len(content) > 500 {
		content = content[:500]
	}
	if title == "" {
		return content
	}
	if content == "" {
		return title
	}
	return title + ": " + content
}

// parsePublished handles the date formats Tavily emits.
func parsePublished(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("research: empty published date")
	}
	for _, layout := range []string{
		time.RFC3339,
		"Mon, 02 Jan 2006 15:04:05 GMT",
		"2006-01-02",
	} {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("research: unparseable published date %q", s)
}

func hostOf(rawURL string) string {
	s := rawURL
	if i := strings.Index(s, "://"); i >= 0 {
		s = s[i+3:]
	}
	if i := strings.IndexByte(s, '/'); i >= 0 {
		s = s[:i]
	}
	return strings.TrimPrefix(s, "www.")
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// Compile-time interface check.
var _ domain.ResearchBackend = (*TavilyClient)(nil)
