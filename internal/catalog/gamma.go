// Package catalog implements the market-data collaborators: a REST client
// for the Gamma catalog API and a WebSocket price feed for recent price
// history.
package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/edgescout/edgescout/internal/domain"
)

// GammaClient is the REST client for the Gamma catalog API, which provides
// contract discovery and live pricing.
type GammaClient struct {
	baseURL    string
	pageSize   int
	maxPages   int
	httpClient *http.Client
}

// NewGammaClient creates a new catalog client.
//
// baseURL is the Gamma API root, e.g. "https://gamma-api.polymarket.com".
// pageSize and maxPages bound the pagination loop of ListActiveContracts.
func NewGammaClient(baseURL string, pageSize, maxPages int) *GammaClient {
	return &GammaClient{
		baseURL:  baseURL,
		pageSize: pageSize,
		maxPages: maxPages,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// ListActiveContracts pages through the catalog and returns every active,
// unresolved contract as a flattened sequence. Pagination stops at the first
// short page or after maxPages pages.
func (g *GammaClient) ListActiveContracts(ctx context.Context) ([]domain.Contract, error) {
	var contracts []domain.Contract

	for page := 0; page < g.maxPages; page++ {
		params := url.Values{}
		params.Set("active", "true")
		params.Set("closed", "false")
		params.Set("limit", strconv.Itoa(g.pageSize))
		params.Set("offset", strconv.Itoa(page*g.pageSize))

		body, err := g.doGet(ctx, "/markets?"+params.Encode())
		if err != nil {
			return nil, fmt.Errorf("catalog: list contracts page %d: %w", page, err)
		}

		var apiContracts []APIContract
		if err := json.Unmarshal(body, &apiContracts); err != nil {
			return nil, fmt.Errorf("catalog: decode contracts page %d: %w", page, err)
		}

		for i := range apiContracts {
			contracts = append(contracts, apiContracts[i].ToDomainContract())
		}

		if len(apiContracts) < g.pageSize {
			break
		}
	}

	return contracts, nil
}

// CurrentPrice returns the live market-implied probability of the primary
// outcome for the given contract.
func (g *GammaClient) CurrentPrice(ctx context.Context, contractID string) (float64, error) {
	body, err := g.doGet(ctx, "/markets/"+url.PathEscape(contractID))
	if err != nil {
		return 0, fmt.Errorf("catalog: get price %s: %w", contractID, err)
	}

	var apiContract APIContract
	if err := json.Unmarshal(body, &apiContract); err != nil {
		return 0, fmt.Errorf("catalog: decode contract %s: %w", contractID, err)
	}

	c := apiContract.ToDomainContract()
	return c.Price, nil
}

func (g *GammaClient) doGet(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, truncate(body, 200))
	}

	return body, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}

// Compile-time interface check.
var _ domain.CatalogSource = (*GammaClient)(nil)
