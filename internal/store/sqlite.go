package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/riverbasin-labs/ejindex-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id         TEXT PRIMARY KEY,
	region     TEXT NOT NULL,
	quantile   REAL NOT NULL,
	status     TEXT NOT NULL DEFAULT 'running',
	summary    TEXT,
	created_at DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS index_rows (
	run_id            TEXT NOT NULL REFERENCES runs(id),
	geoid             TEXT NOT NULL,
	tract             TEXT NOT NULL,
	state             TEXT NOT NULL,
	low_income_pct    REAL,
	ling_iso_pct      REAL,
	less_hs_pct       REAL,
	unemployment_pct  REAL,
	life_expectancy   REAL,
	life_negated      REAL,
	p_low_income      REAL,
	p_ling_iso        REAL,
	p_less_hs         REAL,
	p_unemployment    REAL,
	p_life_negated    REAL,
	index_raw         REAL,
	index_pctile_5    REAL,
	index_pctile_4    REAL,
	index_pctile_best REAL,
	pca_index         REAL,
	pca_pctile_index  REAL,
	in_region         INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (run_id, geoid)
);

CREATE INDEX IF NOT EXISTS idx_index_rows_region ON index_rows(run_id, in_region);

CREATE TABLE IF NOT EXISTS geometries (
	geoid TEXT PRIMARY KEY,
	wkb   BLOB NOT NULL
);
`

// Migrate creates the schema if it does not exist.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, sqliteMigration); err != nil {
		return eris.Wrap(err, "sqlite: migrate")
	}
	return nil
}

// CreateRun inserts a new running run.
func (s *SQLiteStore) CreateRun(ctx context.Context, region string, quantile float64) (*model.Run, error) {
	now := time.Now().UTC()
	run := &model.Run{
		ID:        uuid.NewString(),
		Region:    region,
		Quantile:  quantile,
		Status:    model.RunRunning,
		CreatedAt: now,
		UpdatedAt: now,
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, region, quantile, status, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		run.ID, run.Region, run.Quantile, string(run.Status), run.CreatedAt, run.UpdatedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: create run")
	}
	return run, nil
}

// CompleteRun records the final status and summary of a run.
func (s *SQLiteStore) CompleteRun(ctx context.Context, runID string, status model.RunStatus, summary *model.Summary) error {
	var summaryJSON any
	if summary != nil {
		data, err := json.Marshal(summary)
		if err != nil {
			return eris.Wrap(err, "sqlite: marshal summary")
		}
		summaryJSON = string(data)
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, summary = ?, updated_at = ? WHERE id = ?`,
		string(status), summaryJSON, time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrap(err, "sqlite: complete run")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return eris.Errorf("sqlite: run %s not found", runID)
	}
	return nil
}

// GetRun fetches a run by id.
func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, region, quantile, status, summary, created_at, updated_at FROM runs WHERE id = ?`, runID)
	return scanSQLiteRun(row)
}

// LatestRun fetches the most recently created run.
func (s *SQLiteStore) LatestRun(ctx context.Context) (*model.Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, region, quantile, status, summary, created_at, updated_at FROM runs ORDER BY created_at DESC, id DESC LIMIT 1`)
	return scanSQLiteRun(row)
}

type sqliteRowScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteRun(row sqliteRowScanner) (*model.Run, error) {
	var run model.Run
	var status string
	var summaryJSON sql.NullString

	err := row.Scan(&run.ID, &run.Region, &run.Quantile, &status, &summaryJSON, &run.CreatedAt, &run.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, eris.Wrap(err, "sqlite: run not found")
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan run")
	}

	run.Status = model.RunStatus(status)
	if summaryJSON.Valid {
		var summary model.Summary
		if err := json.Unmarshal([]byte(summaryJSON.String), &summary); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal summary")
		}
		run.Summary = &summary
	}
	return &run, nil
}

// ListRuns returns runs matching the filter, newest first.
func (s *SQLiteStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	query := `SELECT id, region, quantile, status, summary, created_at, updated_at FROM runs`
	var args []any
	if filter.Status != "" {
		query += ` WHERE status = ?`
		args = append(args, string(filter.Status))
	}
	query += ` ORDER BY created_at DESC, id DESC`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}
	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		run, err := scanSQLiteRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: list runs")
}

// SaveIndexRows inserts derived rows for a run inside one transaction.
func (s *SQLiteStore) SaveIndexRows(ctx context.Context, runID string, indexRows []model.IndexRow) (int64, error) {
	if len(indexRows) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin")
	}
	defer tx.Rollback()

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(indexColumns)), ", ")
	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(
		`INSERT OR REPLACE INTO index_rows (%s) VALUES (%s)`,
		strings.Join(indexColumns, ", "), placeholders,
	))
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: prepare insert")
	}
	defer stmt.Close()

	var n int64
	for _, r := range indexRows {
		if _, err := stmt.ExecContext(ctx, indexRowValues(runID, r)...); err != nil {
			return n, eris.Wrapf(err, "sqlite: insert row %s", r.GEOID)
		}
		n++
	}

	if err := tx.Commit(); err != nil {
		return n, eris.Wrap(err, "sqlite: commit")
	}
	return n, nil
}

// IndexRow fetches one derived record by run and identifier.
func (s *SQLiteStore) IndexRow(ctx context.Context, runID, geoid string) (*model.IndexRow, error) {
	var r model.IndexRow
	err := s.db.QueryRowContext(ctx,
		`SELECT `+selectIndexColumns+` FROM index_rows WHERE run_id = ? AND geoid = ?`,
		runID, geoid,
	).Scan(indexRowDests(&r)...)
	if err == sql.ErrNoRows {
		return nil, eris.Wrapf(err, "sqlite: row %s not found", geoid)
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan index row")
	}
	return &r, nil
}

// RegionRows returns the regional records of a run ordered by the best
// available composite, worst first.
func (s *SQLiteStore) RegionRows(ctx context.Context, runID string, limit int) ([]model.IndexRow, error) {
	query := `SELECT ` + selectIndexColumns + ` FROM index_rows
WHERE run_id = ? AND in_region = 1
ORDER BY index_pctile_best DESC`
	args := []any{runID}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: region rows")
	}
	defer rows.Close()

	var out []model.IndexRow
	for rows.Next() {
		var r model.IndexRow
		if err := rows.Scan(indexRowDests(&r)...); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan region row")
		}
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: region rows")
}

// SaveGeometries upserts block-group polygons.
func (s *SQLiteStore) SaveGeometries(ctx context.Context, geoms []model.Geometry) (int64, error) {
	if len(geoms) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin")
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT OR REPLACE INTO geometries (geoid, wkb) VALUES (?, ?)`)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: prepare geometry insert")
	}
	defer stmt.Close()

	var n int64
	for _, g := range geoms {
		if _, err := stmt.ExecContext(ctx, g.GEOID, g.WKB); err != nil {
			return n, eris.Wrapf(err, "sqlite: insert geometry %s", g.GEOID)
		}
		n++
	}

	if err := tx.Commit(); err != nil {
		return n, eris.Wrap(err, "sqlite: commit")
	}
	return n, nil
}

// Close releases the database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
