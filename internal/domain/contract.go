package domain

import "time"

// Contract is an immutable snapshot of a single tradeable proposition,
// fetched once per run from the catalog source. Price is the market-implied
// probability of the primary outcome.
type Contract struct {
	ID           string
	Question     string
	Description  string
	Category     string
	Price        float64 // 0-1
	Volume       float64
	Liquidity    float64
	OutcomeCount int
	CreatedAt    time.Time
	ResolvesAt   time.Time
}

// DaysToResolution returns the number of days until the contract resolves,
// relative to now. Negative values mean the resolution time has passed.
func (c Contract) DaysToResolution(now time.Time) float64 {
	return c.ResolvesAt.Sub(now).Hours() / 24
}

// AgeDays returns the age of the contract in days, relative to now.
func (c Contract) AgeDays(now time.Time) float64 {
	return now.Sub(c.CreatedAt).Hours() / 24
}
