package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/edgescout/edgescout/internal/domain"
)

// OpportunityStore persists the scored opportunities of a run, preserving
// rank order. The confidence breakdown is stored as JSONB, the flag lists as
// text arrays.
type OpportunityStore struct {
	pool *pgxpool.Pool
}

var _ domain.OpportunityStore = (*OpportunityStore)(nil)

func NewOpportunityStore(client *Client) *OpportunityStore {
	return &OpportunityStore{pool: client.Pool()}
}

func (s *OpportunityStore) InsertBatch(ctx context.Context, runID string, opps []domain.Opportunity) error {
	if len(opps) == 0 {
		return nil
	}

	const query = `
		INSERT INTO opportunities (run_id, rank, contract_id, question, category,
			market_prob, model_prob, edge, confidence, liquidity_factor, score,
			red_flags, green_flags, direction, magnitude)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin opportunity batch for run %s: %w", runID, err)
	}
	defer tx.Rollback(ctx)

	for rank, opp := range opps {
		confidence, err := json.Marshal(opp.Confidence)
		if err != nil {
			return fmt.Errorf("postgres: marshal confidence for %s: %w", opp.ContractID, err)
		}
		_, err = tx.Exec(ctx, query,
			runID, rank+1, opp.ContractID, opp.Question, opp.Category,
			opp.MarketProbability, opp.ModelProbability, opp.Edge, confidence,
			opp.LiquidityFactor, opp.Score, opp.RedFlags, opp.GreenFlags,
			string(opp.Direction), opp.Magnitude)
		if err != nil {
			return fmt.Errorf("postgres: insert opportunity %s for run %s: %w", opp.ContractID, runID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: commit opportunity batch for run %s: %w", runID, err)
	}
	return nil
}

func (s *OpportunityStore) ListByRun(ctx context.Context, runID string) ([]domain.Opportunity, error) {
	const query = `
		SELECT contract_id, question, category, market_prob, model_prob, edge,
			confidence, liquidity_factor, score, red_flags, green_flags, direction, magnitude
		FROM opportunities
		WHERE run_id = $1
		ORDER BY rank ASC`

	rows, err := s.pool.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("postgres: list opportunities for run %s: %w", runID, err)
	}
	defer rows.Close()

	return collectOpportunities(rows)
}

func (s *OpportunityStore) ListRecent(ctx context.Context, limit int) ([]domain.Opportunity, error) {
	const query = `
		SELECT contract_id, question, category, market_prob, model_prob, edge,
			confidence, liquidity_factor, score, red_flags, green_flags, direction, magnitude
		FROM opportunities
		ORDER BY created_at DESC, rank ASC
		LIMIT $1`

	rows, err := s.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: list recent opportunities: %w", err)
	}
	defer rows.Close()

	return collectOpportunities(rows)
}

func collectOpportunities(rows pgx.Rows) ([]domain.Opportunity, error) {
	var opps []domain.Opportunity
	for rows.Next() {
		var (
			opp        domain.Opportunity
			confidence []byte
			direction  string
		)
		err := rows.Scan(&opp.ContractID, &opp.Question, &opp.Category,
			&opp.MarketProbability, &opp.ModelProbability, &opp.Edge,
			&confidence, &opp.LiquidityFactor, &opp.Score,
			&opp.RedFlags, &opp.GreenFlags, &direction, &opp.Magnitude)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan opportunity row: %w", err)
		}
		if err := json.Unmarshal(confidence, &opp.Confidence); err != nil {
			return nil, fmt.Errorf("postgres: unmarshal confidence: %w", err)
		}
		opp.Direction = domain.Direction(direction)
		opps = append(opps, opp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: iterate opportunities: %w", err)
	}
	return opps, nil
}
