package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/riverbasin-labs/ejindex-cli/internal/db"
	"github.com/riverbasin-labs/ejindex-cli/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool db.Pool
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: connect")
	}
	return &PostgresStore{pool: pool}, nil
}

// NewPostgresFromPool wraps an existing pool; used by tests.
func NewPostgresFromPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id         UUID PRIMARY KEY,
	region     TEXT NOT NULL,
	quantile   DOUBLE PRECISION NOT NULL,
	status     TEXT NOT NULL DEFAULT 'running',
	summary    JSONB,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS index_rows (
	run_id            UUID NOT NULL REFERENCES runs(id),
	geoid             TEXT NOT NULL,
	tract             TEXT NOT NULL,
	state             TEXT NOT NULL,
	low_income_pct    DOUBLE PRECISION,
	ling_iso_pct      DOUBLE PRECISION,
	less_hs_pct       DOUBLE PRECISION,
	unemployment_pct  DOUBLE PRECISION,
	life_expectancy   DOUBLE PRECISION,
	life_negated      DOUBLE PRECISION,
	p_low_income      DOUBLE PRECISION,
	p_ling_iso        DOUBLE PRECISION,
	p_less_hs         DOUBLE PRECISION,
	p_unemployment    DOUBLE PRECISION,
	p_life_negated    DOUBLE PRECISION,
	index_raw         DOUBLE PRECISION,
	index_pctile_5    DOUBLE PRECISION,
	index_pctile_4    DOUBLE PRECISION,
	index_pctile_best DOUBLE PRECISION,
	pca_index         DOUBLE PRECISION,
	pca_pctile_index  DOUBLE PRECISION,
	in_region         BOOLEAN NOT NULL DEFAULT false,
	PRIMARY KEY (run_id, geoid)
);

CREATE INDEX IF NOT EXISTS idx_index_rows_region ON index_rows(run_id, in_region);

CREATE TABLE IF NOT EXISTS geometries (
	geoid TEXT PRIMARY KEY,
	wkb   BYTEA NOT NULL
);
`

// Migrate creates the schema if it does not exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, postgresMigration); err != nil {
		return eris.Wrap(err, "postgres: migrate")
	}
	return nil
}

// CreateRun inserts a new running run.
func (s *PostgresStore) CreateRun(ctx context.Context, region string, quantile float64) (*model.Run, error) {
	now := time.Now().UTC()
	run := &model.Run{
		ID:        uuid.NewString(),
		Region:    region,
		Quantile:  quantile,
		Status:    model.RunRunning,
		CreatedAt: now,
		UpdatedAt: now,
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO runs (id, region, quantile, status, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		run.ID, run.Region, run.Quantile, string(run.Status), run.CreatedAt, run.UpdatedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create run")
	}
	return run, nil
}

// CompleteRun records the final status and summary of a run.
func (s *PostgresStore) CompleteRun(ctx context.Context, runID string, status model.RunStatus, summary *model.Summary) error {
	var summaryJSON any
	if summary != nil {
		data, err := json.Marshal(summary)
		if err != nil {
			return eris.Wrap(err, "postgres: marshal summary")
		}
		summaryJSON = data
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE runs SET status = $1, summary = $2, updated_at = $3 WHERE id = $4`,
		string(status), summaryJSON, time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrap(err, "postgres: complete run")
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("postgres: run %s not found", runID)
	}
	return nil
}

// GetRun fetches a run by id.
func (s *PostgresStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, region, quantile, status, summary, created_at, updated_at FROM runs WHERE id = $1`, runID)
	return scanPostgresRun(row)
}

// LatestRun fetches the most recently created run.
func (s *PostgresStore) LatestRun(ctx context.Context) (*model.Run, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, region, quantile, status, summary, created_at, updated_at FROM runs ORDER BY created_at DESC, id DESC LIMIT 1`)
	return scanPostgresRun(row)
}

func scanPostgresRun(row pgx.Row) (*model.Run, error) {
	var run model.Run
	var status string
	var summaryJSON []byte

	err := row.Scan(&run.ID, &run.Region, &run.Quantile, &status, &summaryJSON, &run.CreatedAt, &run.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrap(err, "postgres: run not found")
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: scan run")
	}

	run.Status = model.RunStatus(status)
	if len(summaryJSON) > 0 {
		var summary model.Summary
		if err := json.Unmarshal(summaryJSON, &summary); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal summary")
		}
		run.Summary = &summary
	}
	return &run, nil
}

// ListRuns returns runs matching the filter, newest first.
func (s *PostgresStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	query := `SELECT id, region, quantile, status, summary, created_at, updated_at FROM runs`
	var args []any
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		query += ` WHERE status = $1`
	}
	query += ` ORDER BY created_at DESC, id DESC LIMIT 100`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		run, err := scanPostgresRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: list runs")
}

// SaveIndexRows bulk-inserts derived rows using COPY.
func (s *PostgresStore) SaveIndexRows(ctx context.Context, runID string, indexRows []model.IndexRow) (int64, error) {
	rows := make([][]any, len(indexRows))
	for i, r := range indexRows {
		rows[i] = indexRowValues(runID, r)
	}
	return db.CopyFrom(ctx, s.pool, "index_rows", indexColumns, rows)
}

// IndexRow fetches one derived record by run and identifier.
func (s *PostgresStore) IndexRow(ctx context.Context, runID, geoid string) (*model.IndexRow, error) {
	var r model.IndexRow
	err := s.pool.QueryRow(ctx,
		`SELECT `+selectIndexColumns+` FROM index_rows WHERE run_id = $1 AND geoid = $2`,
		runID, geoid,
	).Scan(indexRowDests(&r)...)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(err, "postgres: row %s not found", geoid)
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: scan index row")
	}
	return &r, nil
}

// RegionRows returns the regional records of a run ordered by the best
// available composite, worst first.
func (s *PostgresStore) RegionRows(ctx context.Context, runID string, limit int) ([]model.IndexRow, error) {
	query := `SELECT ` + selectIndexColumns + ` FROM index_rows
WHERE run_id = $1 AND in_region
ORDER BY index_pctile_best DESC NULLS LAST`
	args := []any{runID}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: region rows")
	}
	defer rows.Close()

	var out []model.IndexRow
	for rows.Next() {
		var r model.IndexRow
		if err := rows.Scan(indexRowDests(&r)...); err != nil {
			return nil, eris.Wrap(err, "postgres: scan region row")
		}
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "postgres: region rows")
}

// SaveGeometries bulk-inserts block-group polygons using COPY.
func (s *PostgresStore) SaveGeometries(ctx context.Context, geoms []model.Geometry) (int64, error) {
	rows := make([][]any, len(geoms))
	for i, g := range geoms {
		rows[i] = []any{g.GEOID, g.WKB}
	}
	return db.CopyFrom(ctx, s.pool, "geometries", []string{"geoid", "wkb"}, rows)
}

// Close releases the connection pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
