package postgres

import (
	"context"
	_ "embed"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"marginScope/internal/model"
)

//go:embed schema.sql
var schema string

// Store provides Postgres persistence for evaluations.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// Migrate creates the evaluation table if it does not exist.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

const upsertEvaluationSQL = `
	INSERT INTO margin_evaluations (
		chain_id, borrower, block_number, token0, token1, sqrt_price_x96, price, sigma, positions,
		fixed0, fixed1, fluid0_current, fluid1_current, token0_share,
		solvent_at_lower, solvent_at_upper, lower_threshold, upper_threshold, computed_at,
		created_at, updated_at
	) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,now(),now())
	ON CONFLICT (chain_id, borrower, block_number)
	DO UPDATE SET
		sqrt_price_x96 = EXCLUDED.sqrt_price_x96,
		price = EXCLUDED.price,
		sigma = EXCLUDED.sigma,
		positions = EXCLUDED.positions,
		fixed0 = EXCLUDED.fixed0,
		fixed1 = EXCLUDED.fixed1,
		fluid0_current = EXCLUDED.fluid0_current,
		fluid1_current = EXCLUDED.fluid1_current,
		token0_share = EXCLUDED.token0_share,
		solvent_at_lower = EXCLUDED.solvent_at_lower,
		solvent_at_upper = EXCLUDED.solvent_at_upper,
		lower_threshold = EXCLUDED.lower_threshold,
		upper_threshold = EXCLUDED.upper_threshold,
		computed_at = EXCLUDED.computed_at,
		updated_at = now()
`

// UpsertEvaluations inserts or replaces one row per (chain, borrower, block).
func (s *Store) UpsertEvaluations(ctx context.Context, evaluations []model.Evaluation) error {
	if len(evaluations) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, e := range evaluations {
		batch.Queue(upsertEvaluationSQL, evaluationArgs(e)...)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range evaluations {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// PutEvaluations lets the store act as a publishing sink.
func (s *Store) PutEvaluations(ctx context.Context, evaluations []model.Evaluation) error {
	return s.UpsertEvaluations(ctx, evaluations)
}

// LatestBlock returns the newest block evaluated for a borrower.
func (s *Store) LatestBlock(ctx context.Context, chainID uint64, borrower string) (uint64, bool, error) {
	if borrower == "" {
		return 0, false, fmt.Errorf("borrower required")
	}
	var block int64
	row := s.pool.QueryRow(ctx, `
		SELECT block_number FROM margin_evaluations
		WHERE chain_id = $1 AND borrower = $2
		ORDER BY block_number DESC LIMIT 1
	`, int64(chainID), borrower)
	if err := row.Scan(&block); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, err
	}
	return uint64(block), true, nil
}

// evaluationArgs flattens an evaluation in column order. Decimals travel as text into NUMERIC columns.
func evaluationArgs(e model.Evaluation) []interface{} {
	return []interface{}{
		int64(e.ChainID),
		e.Borrower,
		int64(e.BlockNumber),
		e.Token0.Address,
		e.Token1.Address,
		e.SqrtPriceX96,
		e.Price.String(),
		e.Sigma.String(),
		e.Positions,
		e.Assets.Fixed0.String(),
		e.Assets.Fixed1.String(),
		e.Assets.Fluid0AtCurrent.String(),
		e.Assets.Fluid1AtCurrent.String(),
		e.Token0Share.String(),
		e.Solvency.SolventAtLower,
		e.Solvency.SolventAtUpper,
		e.Thresholds.Lower.String(),
		e.Thresholds.Upper.String(),
		e.ComputedAt,
	}
}
