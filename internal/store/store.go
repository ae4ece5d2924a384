// Package store persists pipeline runs, derived index rows, and
// block-group geometries. Two backends: SQLite for single-operator use
// and Postgres for shared deployments.
package store

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/riverbasin-labs/ejindex-cli/internal/config"
	"github.com/riverbasin-labs/ejindex-cli/internal/model"
)

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Status model.RunStatus `json:"status,omitempty"`
	Limit  int             `json:"limit,omitempty"`
	Offset int             `json:"offset,omitempty"`
}

// Store defines the persistence interface for the index pipeline.
type Store interface {
	// Runs
	CreateRun(ctx context.Context, region string, quantile float64) (*model.Run, error)
	CompleteRun(ctx context.Context, runID string, status model.RunStatus, summary *model.Summary) error
	GetRun(ctx context.Context, runID string) (*model.Run, error)
	LatestRun(ctx context.Context) (*model.Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error)

	// Derived rows
	SaveIndexRows(ctx context.Context, runID string, rows []model.IndexRow) (int64, error)
	IndexRow(ctx context.Context, runID, geoid string) (*model.IndexRow, error)
	RegionRows(ctx context.Context, runID string, limit int) ([]model.IndexRow, error)

	// Geometries
	SaveGeometries(ctx context.Context, geoms []model.Geometry) (int64, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// New opens the store selected by configuration.
func New(ctx context.Context, cfg config.StoreConfig) (Store, error) {
	switch cfg.Driver {
	case "sqlite":
		return NewSQLite(cfg.SQLitePath)
	case "postgres":
		return NewPostgres(ctx, cfg.DatabaseURL)
	default:
		return nil, eris.Errorf("store: unknown driver %q", cfg.Driver)
	}
}

// indexColumns is the canonical column order of the index_rows table,
// shared by both backends.
var indexColumns = []string{
	"run_id", "geoid", "tract", "state",
	"low_income_pct", "ling_iso_pct", "less_hs_pct", "unemployment_pct",
	"life_expectancy", "life_negated",
	"p_low_income", "p_ling_iso", "p_less_hs", "p_unemployment", "p_life_negated",
	"index_raw", "index_pctile_5", "index_pctile_4", "index_pctile_best",
	"pca_index", "pca_pctile_index", "in_region",
}

func indexRowValues(runID string, r model.IndexRow) []any {
	return []any{
		runID, r.GEOID, r.Tract, r.State,
		r.LowIncomePct, r.LingIsoPct, r.LessHSPct, r.UnemploymentPct,
		r.LifeExpectancy, r.LifeNegated,
		r.PctLowIncome, r.PctLingIso, r.PctLessHS, r.PctUnemployment, r.PctLifeNegated,
		r.IndexRaw, r.IndexPctile5, r.IndexPctile4, r.IndexPctileBest,
		r.PCAIndex, r.PCAPctileIndex, r.InRegion,
	}
}

func indexRowDests(r *model.IndexRow) []any {
	return []any{
		&r.GEOID, &r.Tract, &r.State,
		&r.LowIncomePct, &r.LingIsoPct, &r.LessHSPct, &r.UnemploymentPct,
		&r.LifeExpectancy, &r.LifeNegated,
		&r.PctLowIncome, &r.PctLingIso, &r.PctLessHS, &r.PctUnemployment, &r.PctLifeNegated,
		&r.IndexRaw, &r.IndexPctile5, &r.IndexPctile4, &r.IndexPctileBest,
		&r.PCAIndex, &r.PCAPctileIndex, &r.InRegion,
	}
}

// selectIndexColumns is indexColumns minus run_id, for reads.
const selectIndexColumns = `geoid, tract, state,
low_income_pct, ling_iso_pct, less_hs_pct, unemployment_pct,
life_expectancy, life_negated,
p_low_income, p_ling_iso, p_less_hs, p_unemployment, p_life_negated,
index_raw, index_pctile_5, index_pctile_4, index_pctile_best,
pca_index, pca_pctile_index, in_region`
