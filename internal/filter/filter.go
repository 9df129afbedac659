// Package filter implements the candidate filter: a pure, deterministic
// conjunction of predicates over the fetched contract catalog. No network or
// paid calls happen here.
package filter

import (
	"strings"
	"time"

	"github.com/edgescout/edgescout/internal/config"
	"github.com/edgescout/edgescout/internal/domain"
)

// binaryPrefixes mark questions with a factual yes/no structure.
var binaryPrefixes = []string{
	"will ", "is ", "are ", "does ", "do ", "can ", "has ", "have ", "wins ",
}

// subjectiveTerms exclude questions that resolve by opinion rather than fact.
var subjectiveTerms = []string{
	"best ", "worst ", "favorite", "greatest", "most popular", "funniest",
}

// sportsTerms exclude sports and esports markets that slip through category
// tagging.
var sportsTerms = []string{
	" vs.", " vs ", "championship", "playoff", "tournament", "league",
	"football", "baseball", "basketball", "soccer", "hockey", "tennis",
	"golf", "boxing", " ufc", " mma", "esports",
}

// Filter retains contracts that pass all five predicates. Input order is
// preserved; identifiers are assumed unique upstream.
type Filter struct {
	cfg     config.FilterConfig
	allowed map[string]bool
}

// New builds a Filter from configuration.
func New(cfg config.FilterConfig) *Filter {
	allowed := make(map[string]bool, len(cfg.Categories))
	for _, c := range cfg.Categories {
		allowed[strings.ToLower(c)] = true
	}
	return &Filter{cfg: cfg, allowed: allowed}
}

// Apply returns the subset of contracts passing every predicate, in input
// order.
func (f *Filter) Apply(contracts []domain.Contract, now time.Time) []domain.Contract {
	out := make([]domain.Contract, 0, len(contracts))
	for _, c := range contracts {
		if f.Passes(c, now) {
			out = append(out, c)
		}
	}
	return out
}

// Passes reports whether a single contract survives the full conjunction.
func (f *Filter) Passes(c domain.Contract, now time.Time) bool {
	return f.activityOK(c) &&
		f.resolutionOK(c, now) &&
		f.categoryOK(c) &&
		f.binaryFactualOK(c) &&
		f.ageOK(c, now)
}

func (f *Filter) activityOK(c domain.Contract) bool {
	return c.Volume >= f.cfg.MinVolume && c.Liquidity >= f.cfg.MinLiquidity
}

func (f *Filter) resolutionOK(c domain.Contract, now time.Time) bool {
	days := c.DaysToResolution(now)
	return days >= f.cfg.MinResolutionDays && days <= f.cfg.MaxResolutionDays
}

func (f *Filter) categoryOK(c domain.Contract) bool {
	if !f.allowed[strings.ToLower(c.Category)] {
		return false
	}
	question := strings.ToLower(c.Question)
	for _, term := range sportsTerms {
		if strings.Contains(question, term) {
			return false
		}
	}
	return true
}

// binaryFactualOK is a cheap structural check: a bounded outcome count plus a
// yes/no question shape with no subjective resolution language.
func (f *Filter) binaryFactualOK(c domain.Contract) bool {
	if c.OutcomeCount < 2 || c.OutcomeCount > f.cfg.MaxOutcomes {
		return false
	}

	question := strings.ToLower(strings.TrimSpace(c.Question))
	for _, term := range subjectiveTerms {
		if strings.Contains(question, term) {
			return false
		}
	}
	for _, prefix := range binaryPrefixes {
		if strings.HasPrefix(question, prefix) {
			return true
		}
	}
	return false
}

func (f *Filter) ageOK(c domain.Contract, now time.Time) bool {
	age := c.AgeDays(now)
	return age >= f.cfg.MinAgeDays && age <= f.cfg.MaxAgeDays
}
