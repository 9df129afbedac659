package catalog

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/edgescout/edgescout/internal/domain"
)

// flexBool unmarshals from JSON bool or string ("true"/"false") so Gamma API
// responses work whether "active" is sent as bool or string.
type flexBool bool

func (f *flexBool) UnmarshalJSON(data []byte) error {
	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		*f = flexBool(b)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*f = flexBool(strings.EqualFold(s, "true") || s == "1")
	return nil
}

// flexFloat unmarshals from a JSON number or a numeric string, both of which
// the Gamma API emits for volume and liquidity fields.
type flexFloat float64

func (f *flexFloat) UnmarshalJSON(data []byte) error {
	var n float64
	if err := json.Unmarshal(data, &n); err == nil {
		*f = flexFloat(n)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	n, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return err
	}
	*f = flexFloat(n)
	return nil
}

// APIContract represents a market as returned by the Gamma catalog API.
type APIContract struct {
	ID            string    `json:"id"`
	Question      string    `json:"question"`
	Description   string    `json:"description"`
	Category      string    `json:"category"`
	Active        flexBool  `json:"active"`
	Closed        bool      `json:"closed"`
	Outcomes      string    `json:"outcomes"`      // JSON-encoded: e.g. "[\"Yes\",\"No\"]"
	OutcomePrices string    `json:"outcomePrices"` // JSON-encoded: e.g. "[\"0.5\",\"0.5\"]"
	Volume        flexFloat `json:"volume"`
	Liquidity     flexFloat `json:"liquidity"`
	EndDateISO    string    `json:"endDate"`
	CreatedAt     string    `json:"createdAt"`
}

// ToDomainContract converts an APIContract to a domain.Contract snapshot.
// The price of the primary (first) outcome becomes the contract's implied
// probability; unparseable prices default to 0.5 so the filter can still see
// the contract.
func (a *APIContract) ToDomainContract() domain.Contract {
	c := domain.Contract{
		ID:          a.ID,
		Question:    a.Question,
		Description: a.Description,
		Category:    a.Category,
		Price:       0.5,
		Volume:      float64(a.Volume),
		Liquidity:   float64(a.Liquidity),
	}

	var outcomes []string
	if err := json.Unmarshal([]byte(a.Outcomes), &outcomes); err == nil {
		c.OutcomeCount = len(outcomes)
	}

	var prices []string
	if err := json.Unmarshal([]byte(a.OutcomePrices), &prices); err == nil && len(prices) > 0 {
		if p, err := strconv.ParseFloat(prices[0], 64); err == nil {
			c.Price = p
		}
	}

	if t, err := time.Parse(time.RFC3339, a.EndDateISO); err == nil {
		c.ResolvesAt = t
	}
	if t, err := time.Parse(time.RFC3339, a.CreatedAt); err == nil {
		c.CreatedAt = t
	}

	return c
}
