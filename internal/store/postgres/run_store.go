package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/edgescout/edgescout/internal/domain"
)

// RunStore persists sealed run records. Funnel counts, candidate outcomes and
// stage errors are stored as JSONB; opportunities live in their own table and
// are not duplicated here.
type RunStore struct {
	pool *pgxpool.Pool
}

var _ domain.RunStore = (*RunStore)(nil)

func NewRunStore(client *Client) *RunStore {
	return &RunStore{pool: client.Pool()}
}

func (s *RunStore) Insert(ctx context.Context, run domain.RunRecord) error {
	funnel, err := json.Marshal(run.Funnel)
	if err != nil {
		return fmt.Errorf("postgres: marshal funnel for run %s: %w", run.ID, err)
	}
	outcomes, err := json.Marshal(run.Outcomes)
	if err != nil {
		return fmt.Errorf("postgres: marshal outcomes for run %s: %w", run.ID, err)
	}
	stageErrs, err := json.Marshal(run.Errors)
	if err != nil {
		return fmt.Errorf("postgres: marshal errors for run %s: %w", run.ID, err)
	}

	const query = `
		INSERT INTO runs (id, started_at, ended_at, termination, total_cost, funnel, outcomes, errors)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err = s.pool.Exec(ctx, query,
		run.ID, run.StartedAt, run.EndedAt, string(run.Termination),
		run.TotalCost, funnel, outcomes, stageErrs)
	if err != nil {
		return fmt.Errorf("postgres: insert run %s: %w", run.ID, err)
	}
	return nil
}

func (s *RunStore) Get(ctx context.Context, id string) (domain.RunRecord, error) {
	const query = `
		SELECT id, started_at, ended_at, termination, total_cost, funnel, outcomes, errors
		FROM runs
		WHERE id = $1`

	run, err := scanRun(s.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.RunRecord{}, fmt.Errorf("postgres: run %s: %w", id, domain.ErrNotFound)
		}
		return domain.RunRecord{}, fmt.Errorf("postgres: get run %s: %w", id, err)
	}
	return run, nil
}

func (s *RunStore) ListRecent(ctx context.Context, limit int) ([]domain.RunRecord, error) {
	const query = `
		SELECT id, started_at, ended_at, termination, total_cost, funnel, outcomes, errors
		FROM runs
		ORDER BY started_at DESC
		LIMIT $1`

	rows, err := s.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: list recent runs: %w", err)
	}
	defer rows.Close()

	var runs []domain.RunRecord
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan run row: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: iterate runs: %w", err)
	}
	return runs, nil
}

func scanRun(row pgx.Row) (domain.RunRecord, error) {
	var (
		run         domain.RunRecord
		termination string
		funnel      []byte
		outcomes    []byte
		stageErrs   []byte
	)
	err := row.Scan(&run.ID, &run.StartedAt, &run.EndedAt, &termination,
		&run.TotalCost, &funnel, &outcomes, &stageErrs)
	if err != nil {
		return domain.RunRecord{}, err
	}
	run.Termination = domain.TerminationReason(termination)
	if err := json.Unmarshal(funnel, &run.Funnel); err != nil {
		return domain.RunRecord{}, fmt.Errorf("unmarshal funnel: %w", err)
	}
	if err := json.Unmarshal(outcomes, &run.Outcomes); err != nil {
		return domain.RunRecord{}, fmt.Errorf("unmarshal outcomes: %w", err)
	}
	if err := json.Unmarshal(stageErrs, &run.Errors); err != nil {
		return domain.RunRecord{}, fmt.Errorf("unmarshal errors: %w", err)
	}
	return run, nil
}
