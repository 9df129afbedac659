package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edgescout/edgescout/internal/domain"
)

func TestValidateDefaults(t *testing.T) {
	cfg := Defaults()
	assert.NoError(t, cfg.Validate())
}

func TestValidateCollectsAllProblems(t *testing.T) {
	cfg := Defaults()
	cfg.Budget.DailyCeiling = 0
	cfg.Pipeline.Concurrency = 0

	err := cfg.Validate()
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInvalidConfig)
	assert.Contains(t, err.Error(), "budget: daily_ceiling")
	assert.Contains(t, err.Error(), "pipeline: concurrency")
}

func TestValidateWeightSum(t *testing.T) {
	cfg := Defaults()
	cfg.Score.RecencyWeight += 0.1

	err := cfg.Validate()
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInvalidConfig)
	assert.Contains(t, err.Error(), "score: weights must sum to 1")
}

func TestRedactedConfig(t *testing.T) {
	cfg := Defaults()
	cfg.Research.ApiKey = "tvly-secret"
	cfg.Postgres.Password = "hunter2"
	cfg.Notify.TelegramToken = "123:abc"

	red := RedactedConfig(&cfg)

	assert.Equal(t, "***", red.Research.ApiKey)
	assert.Equal(t, "***", red.Postgres.Password)
	assert.Equal(t, "***", red.Notify.TelegramToken)
	assert.Equal(t, cfg.Budget.DailyCeiling, red.Budget.DailyCeiling)

	// Empty secrets stay empty rather than becoming placeholders.
	assert.Empty(t, red.Redis.Password)

	// The redacted copy owns its slices.
	if len(red.Filter.Categories) > 0 {
		red.Filter.Categories[0] = "mutated"
		assert.NotEqual(t, "mutated", cfg.Filter.Categories[0])
	}
}
