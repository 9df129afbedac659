package filter

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/edgescout/edgescout/internal/config"
	"github.com/edgescout/edgescout/internal/domain"
)

var now = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func baseContract() domain.Contract {
	return domain.Contract{
		ID:           "c-1",
		Question:     "Will the senate pass the bill by April?",
		Category:     "Politics",
		Price:        0.5,
		Volume:       15_000,
		Liquidity:    8_000,
		OutcomeCount: 2,
		CreatedAt:    now.Add(-5 * 24 * time.Hour),
		ResolvesAt:   now.Add(14 * 24 * time.Hour),
	}
}

func testFilter() *Filter {
	return New(config.Defaults().Filter)
}

func TestPassesBaseline(t *testing.T) {
	assert.True(t, testFilter().Passes(baseContract(), now))
}

func TestPredicates(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*domain.Contract)
		pass   bool
	}{
		{"volume below minimum", func(c *domain.Contract) { c.Volume = 9_999 }, false},
		{"volume at minimum", func(c *domain.Contract) { c.Volume = 10_000 }, true},
		{"liquidity below minimum", func(c *domain.Contract) { c.Liquidity = 4_999 }, false},
		{"resolves too soon", func(c *domain.Contract) { c.ResolvesAt = now.Add(3 * 24 * time.Hour) }, false},
		{"resolves too late", func(c *domain.Contract) { c.ResolvesAt = now.Add(45 * 24 * time.Hour) }, false},
		{"resolution at lower bound", func(c *domain.Contract) { c.ResolvesAt = now.Add(7 * 24 * time.Hour) }, true},
		{"category not allowed", func(c *domain.Contract) { c.Category = "Sports" }, false},
		{"category case insensitive", func(c *domain.Contract) { c.Category = "politics" }, true},
		{"sports keyword in question", func(c *domain.Contract) {
			c.Question = "Will the team win the championship game?"
		}, false},
		{"too many outcomes", func(c *domain.Contract) { c.OutcomeCount = 5 }, false},
		{"single outcome", func(c *domain.Contract) { c.OutcomeCount = 1 }, false},
		{"non-binary question shape", func(c *domain.Contract) {
			c.Question = "Which candidate leads the primary?"
		}, false},
		{"subjective question", func(c *domain.Contract) {
			c.Question = "Will this be the best product launch of 2026?"
		}, false},
		{"too new", func(c *domain.Contract) { c.CreatedAt = now.Add(-6 * time.Hour) }, false},
		{"too old", func(c *domain.Contract) { c.CreatedAt = now.Add(-30 * 24 * time.Hour) }, false},
		{"age at lower bound", func(c *domain.Contract) { c.CreatedAt = now.Add(-24 * time.Hour) }, true},
	}

	f := testFilter()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := baseContract()
			tt.mutate(&c)
			assert.Equal(t, tt.pass, f.Passes(c, now))
		})
	}
}

func TestApplyPreservesOrderAndSubset(t *testing.T) {
	a := baseContract()
	a.ID = "a"
	b := baseContract()
	b.ID = "b"
	b.Volume = 0 // fails
	c := baseContract()
	c.ID = "c"

	out := testFilter().Apply([]domain.Contract{a, b, c}, now)
	assert.Len(t, out, 2)
	assert.Equal(t, "a", out[0].ID)
	assert.Equal(t, "c", out[1].ID)

	f := testFilter()
	for _, kept := range out {
		assert.True(t, f.Passes(kept, now), "every retained contract passes all predicates")
	}
}

func TestApplyEmptyInput(t *testing.T) {
	assert.Empty(t, testFilter().Apply(nil, now))
}
