package screen

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edgescout/edgescout/internal/config"
	"github.com/edgescout/edgescout/internal/domain"
	"github.com/edgescout/edgescout/internal/governor"
)

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

type nopWriter struct{}

func (nopWriter) Write(p []byte) (int, error) { return len(p), nil }

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(nopWriter{}, &slog.HandlerOptions{Level: slog.LevelError}))
}

func testContract() domain.Contract {
	return domain.Contract{
		ID:       "c-1",
		Question: "Will the merger be approved by June?",
		Category: "Business",
		Price:    0.40,
	}
}

func strongFindings(now time.Time) []domain.Finding {
	mk := func(claim, host string, age time.Duration) domain.Finding {
		ts := now.Add(-age)
		return domain.Finding{
			Claim:       claim,
			SourceURL:   "https://" + host + "/a",
			SourceName:  host,
			Credibility: 5,
			PublishedAt: &ts,
		}
	}
	return []domain.Finding{
		mk("Regulator announced the merger is approved and on track", "reuters.com", 3*time.Hour),
		mk("Deal confirmed by both boards, closing expected", "apnews.com", 6*time.Hour),
		mk("Shareholder vote set to pass with clear momentum", "bloomberg.com", 12*time.Hour),
	}
}

func newScreener(backend domain.ResearchBackend, ceiling float64) (*Screener, *governor.Governor) {
	gov := governor.New(ceiling, newMemCache(), time.Hour, quietLogger())
	return New(backend, gov, config.Defaults().Screen, quietLogger()), gov
}

func TestScreenEscalatesOnStrongSignal(t *testing.T) {
	backend := &fakeBackend{findings: strongFindings(time.Now())}
	s, gov := newScreener(backend, 10)

	result, err := s.Screen(context.Background(), testContract(), 0.40)
	require.NoError(t, err)

	assert.True(t, result.Escalate, result.Reason)
	assert.Equal(t, 3, result.SourceCount)
	assert.GreaterOrEqual(t, result.PreliminaryEdge, 0.10)
	assert.InDelta(t, 0.005, gov.Spent(), 1e-9)
}

func TestScreenNoFindingsDoesNotEscalate(t *testing.T) {
	backend := &fakeBackend{findings: nil}
	s, _ := newScreener(backend, 10)

	result, err := s.Screen(context.Background(), testContract(), 0.40)
	require.NoError(t, err)

	assert.False(t, result.Escalate)
	assert.Zero(t, result.SourceCount)
}

func TestScreenBudgetDeniedSkipsWithoutError(t *testing.T) {
	backend := &fakeBackend{findings: strongFindings(time.Now())}
	s, _ := newScreener(backend, 0.001)

	result, err := s.Screen(context.Background(), testContract(), 0.40)
	require.NoError(t, err, "budget denial must not fail the candidate")

	assert.False(t, result.Escalate)
	assert.Equal(t, ReasonBudgetSkipped, result.Reason)
	assert.Zero(t, backend.calls, "no paid call after a denial")
}

func TestScreenBackendFailureReturnsError(t *testing.T) {
	backend := &fakeBackend{err: errors.New("connection reset")}
	s, gov := newScreener(backend, 10)

	_, err := s.Screen(context.Background(), testContract(), 0.40)
	require.Error(t, err)
	assert.Zero(t, gov.Spent(), "failed screen must not consume budget")
}

func TestScreenSecondCallHitsCache(t *testing.T) {
	backend := &fakeBackend{findings: strongFindings(time.Now())}
	s, gov := newScreener(backend, 10)

	first, err := s.Screen(context.Background(), testContract(), 0.40)
	require.NoError(t, err)
	calls := backend.calls

	second, err := s.Screen(context.Background(), testContract(), 0.40)
	require.NoError(t, err)

	assert.Equal(t, first.Escalate, second.Escalate)
	assert.Equal(t, calls, backend.calls)
	assert.InDelta(t, 0.005, gov.Spent(), 1e-9, "cache hit adds no spend")
}

func TestHasMaterialDevelopment(t *testing.T) {
	now := time.Now()
	old := now.Add(-10 * 24 * time.Hour)

	stale := []domain.Finding{{Claim: "a quiet retrospective", PublishedAt: &old}}
	assert.False(t, hasMaterialDevelopment(stale, now))

	keyword := []domain.Finding{{Claim: "Company announced a recall", PublishedAt: &old}}
	assert.True(t, hasMaterialDevelopment(keyword, now))

	fresh := now.Add(-time.Hour)
	recent := []domain.Finding{{Claim: "a quiet retrospective", PublishedAt: &fresh}}
	assert.True(t, hasMaterialDevelopment(recent, now))
}
