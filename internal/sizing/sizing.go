// Package sizing implements the pluggable magnitude-recommendation
// strategies the scoring engine parameterizes. All strategies share one
// Kelly-style formula and differ only in their safety factor, so the three
// named variants are presets of the same engine.
package sizing

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"

	"github.com/edgescout/edgescout/internal/config"
)

// Strategy recommends a position magnitude from an opportunity score and an
// overall confidence. Implementations are pure and safe for concurrent use.
type Strategy interface {
	Name() string
	Recommend(opportunityScore, confidence float64) float64
}

// KellyStrategy scales magnitude monotonically with the opportunity score,
// damped by confidence and the safety factor, capped at MaxMagnitude.
type KellyStrategy struct {
	name         string
	safetyFactor float64
	maxMagnitude float64
}

// NewKellyStrategy builds a strategy with an explicit safety factor.
func NewKellyStrategy(name string, safetyFactor, maxMagnitude float64) *KellyStrategy {
	return &KellyStrategy{name: name, safetyFactor: safetyFactor, maxMagnitude: maxMagnitude}
}

// Name returns the strategy's registry name.
func (k *KellyStrategy) Name() string { return k.name }

// Recommend computes the fractional-Kelly magnitude. Zero score or zero
// confidence recommends zero.
func (k *KellyStrategy) Recommend(opportunityScore, confidence float64) float64 {
	if opportunityScore <= 0 || confidence <= 0 {
		return 0
	}
	raw := opportunityScore * confidence * k.safetyFactor * k.maxMagnitude
	return math.Min(raw, k.maxMagnitude)
}

// Safety factors for the named presets.
const (
	conservativeFactor = 0.25
	balancedFactor     = 0.50
	aggressiveFactor   = 0.75
)

// Registry manages named sizing strategies. Safe for concurrent use.
type Registry struct {
	mu         sync.RWMutex
	strategies map[string]Strategy
}

// NewRegistry returns a registry preloaded with the three standard presets.
func NewRegistry(maxMagnitude float64) *Registry {
	r := &Registry{strategies: make(map[string]Strategy)}
	r.Register(NewKellyStrategy("conservative", conservativeFactor, maxMagnitude))
	r.Register(NewKellyStrategy("balanced", balancedFactor, maxMagnitude))
	r.Register(NewKellyStrategy("aggressive", aggressiveFactor, maxMagnitude))
	return r
}

// Register adds a strategy, replacing any existing one of the same name.
func (r *Registry) Register(s Strategy) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.strategies[strings.ToLower(s.Name())] = s
}

// Get retrieves a strategy by name.
func (r *Registry) Get(name string) (Strategy, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.strategies[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("sizing: strategy %q not registered", name)
	}
	return s, nil
}

// List returns registered strategy names in sorted order.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.strategies))
	for n := range r.strategies {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// FromConfig resolves the configured strategy. A custom safety factor that
// differs from the preset overrides it with an ad-hoc strategy of the same
// name.
func FromConfig(cfg config.SizingConfig) (Strategy, error) {
	reg := NewRegistry(cfg.MaxMagnitude)
	s, err := reg.Get(cfg.Strategy)
	if err != nil {
		return nil, err
	}
	preset, ok := s.(*KellyStrategy)
	if ok && cfg.SafetyFactor > 0 && cfg.SafetyFactor != preset.safetyFactor {
		return NewKellyStrategy(preset.name, cfg.SafetyFactor, cfg.MaxMagnitude), nil
	}
	return s, nil
}
