package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edgescout/edgescout/internal/config"
	"github.com/edgescout/edgescout/internal/domain"
	"github.com/edgescout/edgescout/internal/filter"
	"github.com/edgescout/edgescout/internal/governor"
	"github.com/edgescout/edgescout/internal/metrics"
	"github.com/edgescout/edgescout/internal/research"
	"github.com/edgescout/edgescout/internal/score"
	"github.com/edgescout/edgescout/internal/screen"
	"github.com/edgescout/edgescout/internal/sizing"
)

var now = time.Now().UTC()

type fakeCatalog struct {
	contracts []domain.Contract
	err       error
	prices    map[string]float64
}

func (f *fakeCatalog) ListActiveContracts(context.Context) ([]domain.Contract, error) {
	return f.contracts, f.err
}

func (f *fakeCatalog) CurrentPrice(_ context.Context, id string) (float64, error) {
	if p, ok := f.prices[id]; ok {
		return p, nil
	}
	return 0, fmt.Errorf("no price for %s", id)
}

type fakeBackend struct {
	mu       sync.Mutex
	findings []domain.Finding
	err      error
}

func (f *fakeBackend) Search(context.Context, string, domain.RecencyWindow) ([]domain.Finding, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.findings, f.err
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

func passingContract(id string, volume float64) domain.Contract {
	return domain.Contract{
		ID:           id,
		Question:     "Will the senate pass the bill by April?",
		Category:     "Politics",
		Price:        0.40,
		Volume:       volume,
		Liquidity:    20_000,
		OutcomeCount: 2,
		CreatedAt:    now.Add(-5 * 24 * time.Hour),
		ResolvesAt:   now.Add(14 * 24 * time.Hour),
	}
}

func strongFindings() []domain.Finding {
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
		mk("Vote confirmed and on track to pass", "reuters.com", 2*time.Hour),
		mk("Leadership announced the bill is approved in committee", "apnews.com", 5*time.Hour),
		mk("Whip count shows clear momentum, passage expected", "bloomberg.com", 10*time.Hour),
		mk("Analysts say the measure is set to clear the floor", "ft.com", 20*time.Hour),
		mk("Backers confirmed the schedule holds", "politico.com", 22*time.Hour),
	}
}

type env struct {
	orch    *Orchestrator
	gov     *governor.Governor
	catalog *fakeCatalog
	backend *fakeBackend
}

func newEnv(cfg config.Config, catalog *fakeCatalog, backend *fakeBackend) *env {
	logger := quietLogger()
	gov := governor.New(cfg.Budget.DailyCeiling, newMemCache(), cfg.Budget.CacheTTL.Duration, logger)

	sizer, err := sizing.FromConfig(cfg.Sizing)
	if err != nil {
		panic(err)
	}

	orch := NewOrchestrator(
		catalog,
		filter.New(cfg.Filter),
		screen.New(backend, gov, cfg.Screen, logger),
		research.NewDeepResearcher(backend, gov, cfg.Deep, logger),
		score.NewEngine(cfg.Score, nil, sizer),
		gov,
		cfg.Pipeline,
		logger,
	)
	orch.now = func() time.Time { return time.Now() }
	return &env{orch: orch, gov: gov, catalog: catalog, backend: backend}
}

func TestRunHappyPath(t *testing.T) {
	catalog := &fakeCatalog{
		contracts: []domain.Contract{passingContract("c-1", 15_000), passingContract("c-2", 16_000)},
		prices:    map[string]float64{"c-1": 0.40, "c-2": 0.40},
	}
	backend := &fakeBackend{findings: strongFindings()}
	e := newEnv(config.Defaults(), catalog, backend)

	record, err := e.orch.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, domain.TerminationCompleted, record.Termination)
	assert.Equal(t, 2, record.Funnel.Fetched)
	assert.Equal(t, 2, record.Funnel.Filtered)
	assert.Equal(t, 2, record.Funnel.Screened)
	assert.Equal(t, 2, record.Funnel.Escalated)
	assert.Equal(t, 2, record.Funnel.Researched)
	assert.Equal(t, 2, record.Funnel.Scored)
	assert.Len(t, record.Opportunities, 2)
	assert.Empty(t, record.Errors)
	assert.Positive(t, record.TotalCost)

	// Opportunities are ordered by score.
	for i := 1; i < len(record.Opportunities); i++ {
		assert.GreaterOrEqual(t, record.Opportunities[i-1].Score, record.Opportunities[i].Score)
	}
}

func TestRunRecordsSearchCalls(t *testing.T) {
	catalog := &fakeCatalog{
		contracts: []domain.Contract{passingContract("c-1", 15_000)},
		prices:    map[string]float64{"c-1": 0.40},
	}
	e := newEnv(config.Defaults(), catalog, &fakeBackend{findings: strongFindings()})
	m := metrics.New()
	e.orch.WithMetrics(m)

	record, err := e.orch.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, record.Funnel.Researched)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.SearchCalls.WithLabelValues("tier1", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SearchCalls.WithLabelValues("tier2", "ok")))
	assert.Zero(t, testutil.ToFloat64(m.SearchCalls.WithLabelValues("tier1", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RunsTotal.WithLabelValues(string(domain.TerminationCompleted))))
}

func TestRunEmptyCatalogAborts(t *testing.T) {
	e := newEnv(config.Defaults(), &fakeCatalog{}, &fakeBackend{})

	record, err := e.orch.Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrEmptyCatalog)
	assert.Equal(t, domain.TerminationFatal, record.Termination)
	assert.Zero(t, record.Funnel.Screened, "no stage beyond fetching runs")
}

func TestRunCatalogFailureAborts(t *testing.T) {
	e := newEnv(config.Defaults(), &fakeCatalog{err: errors.New("gateway timeout")}, &fakeBackend{})

	record, err := e.orch.Run(context.Background())
	require.Error(t, err)
	assert.Equal(t, domain.TerminationFatal, record.Termination)
	require.Len(t, record.Errors, 1)
	assert.Equal(t, domain.StageFetch, record.Errors[0].Stage)
}

func TestRunBudgetExhaustedBeforeAnyScreen(t *testing.T) {
	catalog := &fakeCatalog{
		contracts: []domain.Contract{passingContract("c-1", 15_000), passingContract("c-2", 16_000)},
		prices:    map[string]float64{"c-1": 0.40, "c-2": 0.40},
	}
	cfg := config.Defaults()
	cfg.Budget.DailyCeiling = 0.0001 // below a single screen's estimated cost
	e := newEnv(cfg, catalog, &fakeBackend{findings: strongFindings()})

	record, err := e.orch.Run(context.Background())
	require.NoError(t, err, "budget exhaustion is not a run error")

	assert.Equal(t, domain.TerminationBudgetExhausted, record.Termination)
	assert.Equal(t, 2, record.Funnel.Skipped)
	for _, out := range record.Outcomes {
		assert.Equal(t, domain.OutcomeSkipped, out.Kind)
		assert.Equal(t, domain.SkipReasonBudget, out.Reason)
	}
}

func TestRunBudgetRunsOutMidRunStillCompletes(t *testing.T) {
	// Ceiling covers both screens but no deep research, so escalated
	// candidates are budget-skipped and the run still completes.
	catalog := &fakeCatalog{
		contracts: []domain.Contract{passingContract("c-1", 15_000), passingContract("c-2", 16_000)},
		prices:    map[string]float64{"c-1": 0.40, "c-2": 0.40},
	}
	cfg := config.Defaults()
	cfg.Budget.DailyCeiling = 0.011 // two screens at 0.005, no room for deep at 0.05
	e := newEnv(cfg, catalog, &fakeBackend{findings: strongFindings()})

	record, err := e.orch.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, domain.TerminationCompleted, record.Termination)
	assert.Equal(t, 2, record.Funnel.Screened)
	assert.Equal(t, 2, record.Funnel.Escalated)
	assert.Zero(t, record.Funnel.Researched)
	assert.Equal(t, 2, countSkips(record.Outcomes, domain.SkipReasonBudget))
}

func TestRunSingleCandidateFailureDoesNotAbort(t *testing.T) {
	catalog := &fakeCatalog{
		contracts: []domain.Contract{passingContract("c-1", 15_000)},
		prices:    map[string]float64{"c-1": 0.40},
	}
	backend := &fakeBackend{err: errors.New("connection reset")}
	e := newEnv(config.Defaults(), catalog, backend)

	record, err := e.orch.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, domain.TerminationCompleted, record.Termination)
	assert.Equal(t, 1, record.Funnel.Failed)
	require.Len(t, record.Errors, 1)
	assert.Equal(t, domain.StageScreen, record.Errors[0].Stage)
	assert.Equal(t, "c-1", record.Errors[0].ContractID)
	assert.Zero(t, e.gov.Spent(), "failed calls must not consume budget")
}

func TestRunDeadlineSkipsUnstartedCandidates(t *testing.T) {
	catalog := &fakeCatalog{
		contracts: []domain.Contract{passingContract("c-1", 15_000), passingContract("c-2", 16_000)},
		prices:    map[string]float64{"c-1": 0.40, "c-2": 0.40},
	}
	cfg := config.Defaults()
	e := newEnv(cfg, catalog, &fakeBackend{findings: strongFindings()})

	// The clock jumps past the deadline right after the run starts, so every
	// candidate is skipped before its first paid call.
	base := time.Now()
	var mu sync.Mutex
	calls := 0
	e.orch.now = func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		calls++
		if calls == 1 {
			return base
		}
		return base.Add(cfg.Pipeline.RunDeadline.Duration + time.Minute)
	}

	record, err := e.orch.Run(context.Background())
	require.NoError(t, err, "deadline seals the run normally")

	assert.Equal(t, domain.TerminationCompleted, record.Termination)
	assert.Equal(t, 2, countSkips(record.Outcomes, domain.SkipReasonDeadline))
	assert.Zero(t, e.gov.Spent())
}

func TestRunCapsCandidatesByVolume(t *testing.T) {
	cfg := config.Defaults()
	cfg.Pipeline.MaxCandidates = 2

	contracts := []domain.Contract{
		passingContract("low", 11_000),
		passingContract("high", 90_000),
		passingContract("mid", 50_000),
	}
	catalog := &fakeCatalog{
		contracts: contracts,
		prices:    map[string]float64{"low": 0.40, "high": 0.40, "mid": 0.40},
	}
	e := newEnv(cfg, catalog, &fakeBackend{findings: strongFindings()})

	record, err := e.orch.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, record.Funnel.Screened)
	capped := 0
	for _, out := range record.Outcomes {
		if out.Kind == domain.OutcomeSkipped && out.Reason == domain.SkipReasonCapped {
			capped++
			assert.Equal(t, "low", out.ContractID, "lowest-volume candidate is dropped")
		}
	}
	assert.Equal(t, 1, capped)
}

func TestRunNonEscalatedCandidatesAreRejected(t *testing.T) {
	catalog := &fakeCatalog{
		contracts: []domain.Contract{passingContract("c-1", 15_000)},
		prices:    map[string]float64{"c-1": 0.40},
	}
	// No findings: screening commits but never escalates.
	e := newEnv(config.Defaults(), catalog, &fakeBackend{})

	record, err := e.orch.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, record.Funnel.Screened)
	assert.Zero(t, record.Funnel.Escalated)
	assert.Equal(t, 1, record.Funnel.Rejected)
}

func TestFunnelCountsMatchOutcomeTags(t *testing.T) {
	catalog := &fakeCatalog{
		contracts: []domain.Contract{passingContract("c-1", 15_000), passingContract("c-2", 16_000)},
		prices:    map[string]float64{"c-1": 0.40, "c-2": 0.40},
	}
	e := newEnv(config.Defaults(), catalog, &fakeBackend{findings: strongFindings()})

	record, err := e.orch.Run(context.Background())
	require.NoError(t, err)

	var scored, rejected, skipped, failed int
	for _, out := range record.Outcomes {
		switch out.Kind {
		case domain.OutcomeScored:
			scored++
		case domain.OutcomeRejected:
			rejected++
		case domain.OutcomeSkipped:
			skipped++
		case domain.OutcomeFailed:
			failed++
		}
	}
	assert.Equal(t, scored, record.Funnel.Scored)
	assert.Equal(t, rejected, record.Funnel.Rejected)
	assert.Equal(t, skipped, record.Funnel.Skipped)
	assert.Equal(t, failed, record.Funnel.Failed)
}
