//go:build !integration

package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/riverbasin-labs/ejindex-cli/internal/model"
	"github.com/riverbasin-labs/ejindex-cli/internal/store"
)

func newTestStore(t *testing.T) store.Store {
	t.Helper()
	st, err := store.NewSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func seedRun(t *testing.T, st store.Store) *model.Run {
	t.Helper()
	ctx := context.Background()

	run, err := st.CreateRun(ctx, "great-miami", 0.8)
	require.NoError(t, err)

	best := 92.5
	_, err = st.SaveIndexRows(ctx, run.ID, []model.IndexRow{
		{GEOID: "390170101001", Tract: "39017010100", State: "Ohio",
			IndexPctileBest: &best, InRegion: true},
	})
	require.NoError(t, err)

	summary := &model.Summary{RowsTotal: 1, RowsRegion: 1}
	require.NoError(t, st.CompleteRun(ctx, run.ID, model.RunComplete, summary))
	return run
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestAPIHealth(t *testing.T) {
	h := apiRouter(newTestStore(t))

	rec := get(t, h, "/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
}

func TestAPIRunsAndSummary(t *testing.T) {
	st := newTestStore(t)
	run := seedRun(t, st)
	h := apiRouter(st)

	rec := get(t, h, "/api/runs")
	require.Equal(t, http.StatusOK, rec.Code)
	var runs []model.Run
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &runs))
	require.Len(t, runs, 1)
	assert.Equal(t, run.ID, runs[0].ID)

	rec = get(t, h, "/api/runs/"+run.ID)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = get(t, h, "/api/runs/does-not-exist")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = get(t, h, "/api/summary")
	require.Equal(t, http.StatusOK, rec.Code)
	var payload struct {
		Run     model.Run      `json:"run"`
		Summary *model.Summary `json:"summary"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	assert.Equal(t, run.ID, payload.Run.ID)
	require.NotNil(t, payload.Summary)
	assert.Equal(t, 1, payload.Summary.RowsRegion)
}

func TestAPIBlockGroups(t *testing.T) {
	st := newTestStore(t)
	run := seedRun(t, st)
	h := apiRouter(st)

	rec := get(t, h, "/api/blockgroups/390170101001")
	require.Equal(t, http.StatusOK, rec.Code)
	var row model.IndexRow
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &row))
	assert.Equal(t, "39017010100", row.Tract)
	assert.True(t, row.InRegion)

	rec = get(t, h, "/api/blockgroups/390170101001?run="+run.ID)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = get(t, h, "/api/blockgroups/999999999999")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
