package store

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/riverbasin-labs/ejindex-cli/internal/config"
	"github.com/riverbasin-labs/ejindex-cli/internal/model"
)

func configFor(driver string) config.StoreConfig {
	return config.StoreConfig{
		Driver:     driver,
		SQLitePath: ":memory:",
	}
}

func now() time.Time { return time.Now().UTC() }

func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return NewPostgresFromPool(mock), mock
}

func TestPostgresCreateRun(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec("INSERT INTO runs").
		WithArgs(pgxmock.AnyArg(), "Little Miami", 0.8, "running", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	run, err := s.CreateRun(context.Background(), "Little Miami", 0.8)
	require.NoError(t, err)
	assert.NotEmpty(t, run.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresCompleteRun(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec("UPDATE runs SET status").
		WithArgs("complete", pgxmock.AnyArg(), pgxmock.AnyArg(), "run-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err := s.CompleteRun(context.Background(), "run-1", model.RunComplete,
		&model.Summary{RowsTotal: 10})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresCompleteRunNotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec("UPDATE runs SET status").
		WithArgs("complete", pgxmock.AnyArg(), pgxmock.AnyArg(), "missing").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := s.CompleteRun(context.Background(), "missing", model.RunComplete, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestPostgresGetRun(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	summary := []byte(`{"rows_total":5,"rows_region":2,"rows_linked":4,"pca_skipped":false,"exceedances":[]}`)
	mock.ExpectQuery("SELECT id, region, quantile, status, summary").
		WithArgs("run-1").
		WillReturnRows(pgxmock.NewRows(
			[]string{"id", "region", "quantile", "status", "summary", "created_at", "updated_at"},
		).AddRow("run-1", "r", 0.8, "complete", summary, now(), now()))

	run, err := s.GetRun(context.Background(), "run-1")
	require.NoError(t, err)
	assert.Equal(t, model.RunComplete, run.Status)
	require.NotNil(t, run.Summary)
	assert.Equal(t, 5, run.Summary.RowsTotal)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresGetRunNoRows(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery("SELECT id, region, quantile, status, summary").
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	_, err := s.GetRun(context.Background(), "missing")
	require.Error(t, err)
}

func TestPostgresSaveIndexRows(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectCopyFrom(pgx.Identifier{"index_rows"}, indexColumns).WillReturnResult(2)

	rows := []model.IndexRow{
		sampleRow("390170111041", 90, true),
		sampleRow("390170111042", 55, false),
	}
	n, err := s.SaveIndexRows(context.Background(), "run-1", rows)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresSaveGeometries(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectCopyFrom(pgx.Identifier{"geometries"}, []string{"geoid", "wkb"}).WillReturnResult(1)

	n, err := s.SaveGeometries(context.Background(), []model.Geometry{
		{GEOID: "390170111041", WKB: []byte{0x01}},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresMigrate(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS runs").
		WillReturnResult(pgxmock.NewResult("CREATE", 0))

	require.NoError(t, s.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}
