package research

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edgescout/edgescout/internal/config"
	"github.com/edgescout/edgescout/internal/domain"
	"github.com/edgescout/edgescout/internal/governor"
)

func testContract() domain.Contract {
	return domain.Contract{
		ID:       "c-1",
		Question: "Will the central bank cut rates in October?",
		Category: "Business",
		Price:    0.40,
	}
}

func TestScreenQueriesCountAndWindow(t *testing.T) {
	plans := ScreenQueries(testContract(), 3)
	require.Len(t, plans, 3)
	for _, p := range plans {
		assert.Equal(t, domain.WindowWeek, p.Window)
		assert.NotContains(t, p.Query, "?")
	}
	assert.Equal(t, "Will the central bank cut rates in October", plans[0].Query)
}

func TestDeepQueriesKeepContrarianUnderTruncation(t *testing.T) {
	plans := DeepQueries(testContract(), 4)
	require.Len(t, plans, 4)
	assert.True(t, hasContrarian(plans), "contrarian query must survive truncation")

	full := DeepQueries(testContract(), 8)
	require.Len(t, full, 8)
	assert.True(t, hasContrarian(full))

	windows := make(map[domain.RecencyWindow]bool)
	for _, p := range full {
		windows[p.Window] = true
	}
	assert.True(t, windows[domain.WindowDay])
	assert.True(t, windows[domain.WindowAll])
}

func TestContrarianQueryReframes(t *testing.T) {
	q := contrarianQuery("Will the merger close by December?")
	assert.Equal(t, "why the merger close by december will not happen obstacles", q)
}

func TestCredibilityFor(t *testing.T) {
	tests := []struct {
		url  string
		want int
	}{
		{"https://www.reuters.com/markets/story", 5},
		{"https://data.census.gov/table", 5},
		{"https://news.yahoo.com/article", 2},
		{"https://www.nytimes.com/2026/01/01/story.html", 4},
		{"https://someblog.example.com/post", 3},
		{"https://reddit.com/r/thread", 1},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, credibilityFor(tt.url), tt.url)
	}
}

func findingAt(claim, host string, cred int, age time.Duration, now time.Time) domain.Finding {
	ts := now.Add(-age)
	return domain.Finding{
		Claim:       claim,
		SourceURL:   "https://" + host + "/a",
		SourceName:  host,
		Credibility: cred,
		PublishedAt: &ts,
	}
}

func TestSynthesizeReportBracketsEstimate(t *testing.T) {
	now := time.Now()
	findings := []domain.Finding{
		findingAt("Regulator confirmed the deal is approved", "reuters.com", 5, 2*time.Hour, now),
		findingAt("Sources say the vote is on track", "apnews.com", 5, 5*time.Hour, now),
		findingAt("Analysts doubt the timeline holds", "bloomberg.com", 5, 20*time.Hour, now),
	}

	r := synthesizeReport(testContract(), 0.40, findings, 0.05, now)
	require.NoError(t, r.Validate())
	assert.LessOrEqual(t, r.IntervalLow, r.Estimate)
	assert.GreaterOrEqual(t, r.IntervalHigh, r.Estimate)
	assert.NotEmpty(t, r.Reasoning)
}

func TestSynthesizeReportZeroFindingsIsLowQuality(t *testing.T) {
	r := synthesizeReport(testContract(), 0.40, nil, 0.05, time.Now())
	assert.Equal(t, domain.QualityLow, r.Quality)
	assert.InDelta(t, 0.40, r.Estimate, 1e-9, "no evidence leaves the market price unchanged")
	require.NoError(t, r.Validate())
}

func TestSynthesizeReportDeterministic(t *testing.T) {
	now := time.Now()
	findings := []domain.Finding{
		findingAt("The bill is expected to pass", "politico.com", 4, 3*time.Hour, now),
		findingAt("Opposition has blocked prior attempts", "thehill.com", 3, 48*time.Hour, now),
	}
	a := synthesizeReport(testContract(), 0.55, findings, 0.05, now)
	b := synthesizeReport(testContract(), 0.55, findings, 0.05, now)
	assert.Equal(t, a, b)
}

func TestEvidenceBalancePolarity(t *testing.T) {
	now := time.Now()
	support := []domain.Finding{
		findingAt("Launch confirmed for next week", "reuters.com", 5, time.Hour, now),
	}
	oppose := []domain.Finding{
		findingAt("Launch delayed indefinitely", "reuters.com", 5, time.Hour, now),
	}
	assert.Positive(t, evidenceBalance(support, now))
	assert.Negative(t, evidenceBalance(oppose, now))
	assert.Zero(t, evidenceBalance(nil, now))
}

func TestExtractBaseRate(t *testing.T) {
	now := time.Now()
	findings := []domain.Finding{
		findingAt("Historically, incumbents won 68% of comparable races", "fivethirtyeight.example", 3, 0, now),
	}
	assert.Equal(t, "68% (fivethirtyeight.example)", extractBaseRate(findings))
	assert.Empty(t, extractBaseRate(nil))
}

func TestAssessQuality(t *testing.T) {
	now := time.Now()
	high := []domain.Finding{
		findingAt("a", "h1.com", 5, 0, now),
		findingAt("b", "h2.com", 4, 0, now),
		findingAt("c", "h3.com", 4, 0, now),
		findingAt("d", "h4.com", 4, 0, now),
		findingAt("e", "h5.com", 4, 0, now),
	}
	assert.Equal(t, domain.QualityHigh, assessQuality(high))

	medium := []domain.Finding{
		findingAt("a", "h1.com", 3, 0, now),
		findingAt("b", "h2.com", 3, 0, now),
		findingAt("c", "h3.com", 3, 0, now),
	}
	assert.Equal(t, domain.QualityMedium, assessQuality(medium))

	assert.Equal(t, domain.QualityLow, assessQuality(nil))
}

// fakeBackend returns canned findings per query and counts calls.
type fakeBackend struct {
	mu       sync.Mutex
	calls    int
	findings []domain.Finding
	err      error
}

func (f *fakeBackend) Search(_ context.Context, _ string, _ domain.RecencyWindow) ([]domain.Finding, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.findings, nil
}

// memCache is an in-memory domain.ResearchCache for governor wiring.
type memCache struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMemCache() *memCache { return &memCache{data: make(map[string][]byte)} }

func (m *memCache) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	raw, ok := m.data[key]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return raw, nil
}

func (m *memCache) Set(_ context.Context, key string, data []byte, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = data
	return nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(testWriter{}, &slog.HandlerOptions{Level: slog.LevelError}))
}

type testWriter struct{}

func (testWriter) Write(p []byte) (int, error) { return len(p), nil }

func deepCfg() config.DeepConfig {
	return config.DeepConfig{Queries: 4, MaxFindings: 10, EstimatedCost: 0.05}
}

func TestDeepResearcherCachesAndCommits(t *testing.T) {
	now := time.Now()
	backend := &fakeBackend{findings: []domain.Finding{
		findingAt("Deal confirmed by regulator", "reuters.com", 5, time.Hour, now),
	}}
	gov := governor.New(10, newMemCache(), time.Hour, discardLogger())
	r := NewDeepResearcher(backend, gov, deepCfg(), discardLogger())

	report, err := r.Research(context.Background(), testContract(), 0.40)
	require.NoError(t, err)
	assert.Equal(t, "c-1", report.ContractID)
	assert.InDelta(t, 0.05, gov.Spent(), 1e-9)
	firstCalls := backend.calls

	// Second pass hits the cache: no new backend calls, no new spend.
	again, err := r.Research(context.Background(), testContract(), 0.40)
	require.NoError(t, err)
	assert.Equal(t, report.Estimate, again.Estimate)
	assert.Equal(t, firstCalls, backend.calls)
	assert.InDelta(t, 0.05, gov.Spent(), 1e-9)
}

func TestDeepResearcherBudgetDenied(t *testing.T) {
	backend := &fakeBackend{}
	gov := governor.New(0.01, newMemCache(), time.Hour, discardLogger())
	r := NewDeepResearcher(backend, gov, deepCfg(), discardLogger())

	_, err := r.Research(context.Background(), testContract(), 0.40)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrBudgetExceeded)
	assert.Zero(t, backend.calls, "no paid call after a denial")
}

func TestDeepResearcherAllQueriesFailedReleasesBudget(t *testing.T) {
	backend := &fakeBackend{err: errors.New("upstream 503")}
	gov := governor.New(10, newMemCache(), time.Hour, discardLogger())
	r := NewDeepResearcher(backend, gov, deepCfg(), discardLogger())

	_, err := r.Research(context.Background(), testContract(), 0.40)
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "queries failed"))
	assert.Zero(t, gov.Spent(), "failed research must not consume budget")
}
