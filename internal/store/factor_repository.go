package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/chronos/internal/contracts"
)

// FactorRepository implements contracts.FactorStore on PostgreSQL.
// Combinations are stored as JSONB; per-date factor values live in a
// (stock, date, name) keyed table so snapshots can be assembled for
// any historical date.
type FactorRepository struct {
	pool *pgxpool.Pool
}

// NewFactorRepository creates a new factor repository.
func NewFactorRepository(pool *pgxpool.Pool) *FactorRepository {
	return &FactorRepository{pool: pool}
}

// SaveCombination validates and upserts a factor combination.
func (r *FactorRepository) SaveCombination(ctx context.Context, c *contracts.FactorCombination) error {
	if err := c.Validate(); err != nil {
		return err
	}

	factors, err := json.Marshal(c.Factors)
	if err != nil {
		return fmt.Errorf("failed to marshal factors: %w", err)
	}

	query := `
		INSERT INTO factor_combinations (id, name, factors, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			factors = EXCLUDED.factors
	`
	_, err = r.pool.Exec(ctx, query, c.ID, c.Name, factors, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to save combination: %w", err)
	}
	return nil
}

// GetCombinationByID retrieves one combination.
func (r *FactorRepository) GetCombinationByID(ctx context.Context, id string) (*contracts.FactorCombination, error) {
	query := `SELECT id, name, factors FROM factor_combinations WHERE id = $1`

	var c contracts.FactorCombination
	var factors []byte
	err := r.pool.QueryRow(ctx, query, id).Scan(&c.ID, &c.Name, &factors)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("combination %s not found", id)
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(factors, &c.Factors); err != nil {
		return nil, fmt.Errorf("failed to decode factors: %w", err)
	}
	return &c, nil
}

// ListCombinations returns all stored combinations.
func (r *FactorRepository) ListCombinations(ctx context.Context) ([]*contracts.FactorCombination, error) {
	query := `SELECT id, name, factors FROM factor_combinations ORDER BY created_at ASC`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var combinations []*contracts.FactorCombination
	for rows.Next() {
		var c contracts.FactorCombination
		var factors []byte
		if err := rows.Scan(&c.ID, &c.Name, &factors); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(factors, &c.Factors); err != nil {
			return nil, fmt.Errorf("failed to decode factors: %w", err)
		}
		combinations = append(combinations, &c)
	}
	return combinations, rows.Err()
}

// GetFactorValues returns the requested factors for one stock as they
// were knowable on date. Names without a stored value are omitted from
// the map, never zero-filled.
func (r *FactorRepository) GetFactorValues(ctx context.Context, stockCode string, date time.Time, names []string) (map[string]float64, error) {
	query := `
		SELECT factor_name, value
		FROM factor_values
		WHERE stock_code = $1 AND trade_date = $2 AND factor_name = ANY($3)
	`

	rows, err := r.pool.Query(ctx, query, stockCode, date, names)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	values := make(map[string]float64, len(names))
	for rows.Next() {
		var name string
		var value float64
		if err := rows.Scan(&name, &value); err != nil {
			return nil, err
		}
		values[name] = value
	}
	return values, rows.Err()
}

// SaveFactorValue upserts one factor value for a stock and date.
func (r *FactorRepository) SaveFactorValue(ctx context.Context, stockCode string, date time.Time, name string, value float64) error {
	query := `
		INSERT INTO factor_values (stock_code, trade_date, factor_name, value)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (stock_code, trade_date, factor_name) DO UPDATE SET value = EXCLUDED.value
	`
	_, err := r.pool.Exec(ctx, query, stockCode, date, name, value)
	return err
}
