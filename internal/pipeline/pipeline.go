// Package pipeline orchestrates one batch run: load, link, derive
// composite indexes, compute threshold exceedances, write the output
// table, and persist results.
package pipeline

import (
	"context"
	"math"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/riverbasin-labs/ejindex-cli/internal/config"
	"github.com/riverbasin-labs/ejindex-cli/internal/dataset"
	"github.com/riverbasin-labs/ejindex-cli/internal/geoid"
	"github.com/riverbasin-labs/ejindex-cli/internal/index"
	"github.com/riverbasin-labs/ejindex-cli/internal/model"
	"github.com/riverbasin-labs/ejindex-cli/internal/region"
	"github.com/riverbasin-labs/ejindex-cli/internal/store"
)

// IndexNames lists every composite index in reporting order.
var IndexNames = []string{
	"index_raw",
	"index_pctile_5",
	"index_pctile_4",
	"index_pctile_best",
	"pca_index",
	"pca_pctile_index",
}

// Result is the outcome of one pipeline run.
type Result struct {
	Run         *model.Run
	Summary     model.Summary
	Exceedances []index.Exceedance
	Rows        []model.IndexRow
	OutputPath  string
}

// Run executes the full pipeline. The store may be nil, in which case
// nothing is persisted beyond the output CSV.
func Run(ctx context.Context, cfg *config.Config, st store.Store) (*Result, error) {
	log := zap.L().With(zap.String("component", "pipeline"))
	ind := cfg.Indicators

	reg, err := region.Load(cfg.Inputs.RegionFile)
	if err != nil {
		return nil, err
	}

	// Load and link the two input tables.
	ejSchema := dataset.EJScreenSchema(ind.IDColumn, ind.StateColumn,
		[]string{ind.LowIncome, ind.LingIso, ind.LessHS, ind.Unemployment},
		[]string{ind.PctLowIncome, ind.PctLingIso, ind.PctLessHS, ind.PctUnemployment},
	)
	df, err := dataset.LoadCSV(cfg.Inputs.EJScreenCSV, ejSchema, dataset.LoadOptions{Latin1: cfg.Inputs.Latin1})
	if err != nil {
		return nil, err
	}

	life, err := dataset.LoadCSV(cfg.Inputs.LifeCSV, dataset.LifeSchema(ind.LifeIDColumn, ind.LifeColumn), dataset.LoadOptions{})
	if err != nil {
		return nil, err
	}
	life = life.
		Rename(geoid.TractColumn, ind.LifeIDColumn).
		Rename("life_expectancy", ind.LifeColumn)
	if life.Err != nil {
		return nil, eris.Wrap(life.Err, "pipeline: rename life columns")
	}

	df, err = geoid.LinkLifeExpectancy(df, life, ind.IDColumn)
	if err != nil {
		return nil, err
	}

	ids := df.Col(ind.IDColumn).Records()
	states := df.Col(ind.StateColumn).Records()
	tracts := df.Col(geoid.TractColumn).Records()

	// Derived indicator columns, all on 0-100 disadvantage units.
	lowInc := index.Scale(df.Col(ind.LowIncome).Float(), ind.PercentScale)
	lingIso := index.Scale(df.Col(ind.LingIso).Float(), ind.PercentScale)
	lessHS := index.Scale(df.Col(ind.LessHS).Float(), ind.PercentScale)
	unemp := index.Scale(df.Col(ind.Unemployment).Float(), ind.PercentScale)
	lifeExp := df.Col("life_expectancy").Float()
	lifeNeg := index.Negate(lifeExp, ind.LifeCeiling)

	pLowInc := df.Col(ind.PctLowIncome).Float()
	pLingIso := df.Col(ind.PctLingIso).Float()
	pLessHS := df.Col(ind.PctLessHS).Float()
	pUnemp := df.Col(ind.PctUnemployment).Float()
	pLifeNeg := index.PercentileRank(lifeNeg)

	// Composite indexes.
	indexRaw := index.MeanAcross(lifeNeg, lowInc, lessHS, lingIso, unemp)
	pctile5 := index.MeanAcross(pLifeNeg, pLowInc, pLessHS, pLingIso, pUnemp)
	pctile4 := index.MeanAcross(pLowInc, pLessHS, pLingIso, pUnemp)
	best := index.BestAvailable(pctile5, pctile4, pLifeNeg)

	cols := map[string][]float64{
		"index_raw":         indexRaw,
		"index_pctile_5":    pctile5,
		"index_pctile_4":    pctile4,
		"index_pctile_best": best,
	}

	summary := model.Summary{
		RowsTotal:  len(ids),
		RowsLinked: countPresent(lifeExp),
	}

	// PCA composites. Failure here is fatal for the PCA columns only;
	// the other composites are still reported.
	rawSet := [][]float64{lifeNeg, lowInc, lessHS, lingIso, unemp}
	pctSet := [][]float64{pLifeNeg, pLowInc, pLessHS, pLingIso, pUnemp}
	for _, p := range []struct {
		name string
		set  [][]float64
	}{
		{name: "pca_index", set: rawSet},
		{name: "pca_pctile_index", set: pctSet},
	} {
		pcaModel, err := index.FitPCA(p.set)
		if err != nil {
			if cfg.Thresholds.StrictPCA {
				return nil, eris.Wrapf(err, "pipeline: %s", p.name)
			}
			log.Error("pca fit failed, skipping column",
				zap.String("index", p.name), zap.Error(err))
			summary.PCASkipped = true
			summary.PCAError = err.Error()
			continue
		}
		scores := pcaModel.Scores(p.set)
		index.AlignSign(scores, indexRaw)
		cols[p.name] = scores
	}

	// Threshold exceedances at the three nested scopes.
	regionMask := reg.Mask(ids)
	stateMask := reg.StateMask(states)
	nationalMask := make([]bool, len(ids))
	for i := range nationalMask {
		nationalMask[i] = true
	}
	summary.RowsRegion = countTrue(regionMask)

	scopes := []index.Scope{
		{Level: index.ScopeNational, Mask: nationalMask},
		{Level: index.ScopeState, Mask: stateMask},
		{Level: index.ScopeRegion, Mask: regionMask},
	}
	exceedances, _, err := index.Exceedances(ctx, IndexNames, cols, scopes, regionMask, cfg.Thresholds.Quantile)
	if err != nil {
		return nil, err
	}
	summary.Exceedances = toSummaryRows(exceedances)

	// Output table; column order is fixed across runs.
	out := dataframe.New(
		series.New(ids, series.String, "geoid"),
		series.New(states, series.String, "state_name"),
		series.New(tracts, series.String, geoid.TractColumn),
		series.New(lowInc, series.Float, "low_income_pct"),
		series.New(lingIso, series.Float, "ling_iso_pct"),
		series.New(lessHS, series.Float, "less_hs_pct"),
		series.New(unemp, series.Float, "unemployment_pct"),
		series.New(lifeExp, series.Float, "life_expectancy"),
		series.New(lifeNeg, series.Float, "life_negated"),
		series.New(pLowInc, series.Float, "p_low_income"),
		series.New(pLingIso, series.Float, "p_ling_iso"),
		series.New(pLessHS, series.Float, "p_less_hs"),
		series.New(pUnemp, series.Float, "p_unemployment"),
		series.New(pLifeNeg, series.Float, "p_life_negated"),
		series.New(indexRaw, series.Float, "index_raw"),
		series.New(pctile5, series.Float, "index_pctile_5"),
		series.New(pctile4, series.Float, "index_pctile_4"),
		series.New(best, series.Float, "index_pctile_best"),
		series.New(colOrNaN(cols, "pca_index", len(ids)), series.Float, "pca_index"),
		series.New(colOrNaN(cols, "pca_pctile_index", len(ids)), series.Float, "pca_pctile_index"),
	)
	if out.Err != nil {
		return nil, eris.Wrap(out.Err, "pipeline: build output table")
	}
	if err := dataset.WriteCSV(out, cfg.Inputs.OutputCSV); err != nil {
		return nil, err
	}

	result := &Result{
		Summary:     summary,
		Exceedances: exceedances,
		OutputPath:  cfg.Inputs.OutputCSV,
	}

	// Model rows for persistence and export.
	rows := make([]model.IndexRow, len(ids))
	for i := range ids {
		rows[i] = model.IndexRow{
			GEOID:           ids[i],
			Tract:           tracts[i],
			State:           states[i],
			LowIncomePct:    fptr(lowInc[i]),
			LingIsoPct:      fptr(lingIso[i]),
			LessHSPct:       fptr(lessHS[i]),
			UnemploymentPct: fptr(unemp[i]),
			LifeExpectancy:  fptr(lifeExp[i]),
			LifeNegated:     fptr(lifeNeg[i]),
			PctLowIncome:    fptr(pLowInc[i]),
			PctLingIso:      fptr(pLingIso[i]),
			PctLessHS:       fptr(pLessHS[i]),
			PctUnemployment: fptr(pUnemp[i]),
			PctLifeNegated:  fptr(pLifeNeg[i]),
			IndexRaw:        fptr(indexRaw[i]),
			IndexPctile5:    fptr(pctile5[i]),
			IndexPctile4:    fptr(pctile4[i]),
			IndexPctileBest: fptr(best[i]),
			PCAIndex:        colPtr(cols, "pca_index", i),
			PCAPctileIndex:  colPtr(cols, "pca_pctile_index", i),
			InRegion:        regionMask[i],
		}
	}
	result.Rows = rows

	if st != nil {
		run, err := persist(ctx, st, reg.Name, cfg.Thresholds.Quantile, rows, &summary)
		if err != nil {
			return nil, err
		}
		result.Run = run
	}

	log.Info("pipeline complete",
		zap.Int("rows", summary.RowsTotal),
		zap.Int("region_rows", summary.RowsRegion),
		zap.Int("linked_rows", summary.RowsLinked),
		zap.Bool("pca_skipped", summary.PCASkipped),
		zap.String("output", cfg.Inputs.OutputCSV),
	)
	return result, nil
}

func persist(ctx context.Context, st store.Store, regionName string, quantile float64, rows []model.IndexRow, summary *model.Summary) (*model.Run, error) {
	run, err := st.CreateRun(ctx, regionName, quantile)
	if err != nil {
		return nil, err
	}

	if _, err := st.SaveIndexRows(ctx, run.ID, rows); err != nil {
		_ = st.CompleteRun(ctx, run.ID, model.RunFailed, nil)
		return nil, err
	}
	if err := st.CompleteRun(ctx, run.ID, model.RunComplete, summary); err != nil {
		return nil, err
	}

	run.Status = model.RunComplete
	run.Summary = summary
	return run, nil
}

func toSummaryRows(exceedances []index.Exceedance) []model.ExceedanceRow {
	out := make([]model.ExceedanceRow, len(exceedances))
	for i, e := range exceedances {
		out[i] = model.ExceedanceRow{
			Index:      e.Index,
			Scope:      string(e.Scope),
			Threshold:  fptr(e.Threshold),
			Count:      e.Count,
			Evaluated:  e.Evaluated,
			Applicable: e.Applicable,
		}
	}
	return out
}

// fptr converts NaN to nil and anything else to a pointer.
func fptr(v float64) *float64 {
	if math.IsNaN(v) {
		return nil
	}
	return &v
}

func colPtr(cols map[string][]float64, name string, i int) *float64 {
	col, ok := cols[name]
	if !ok {
		return nil
	}
	return fptr(col[i])
}

func colOrNaN(cols map[string][]float64, name string, n int) []float64 {
	if col, ok := cols[name]; ok {
		return col
	}
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}

func countPresent(values []float64) int {
	n := 0
	for _, v := range values {
		if !math.IsNaN(v) {
			n++
		}
	}
	return n
}

func countTrue(mask []bool) int {
	n := 0
	for _, b := range mask {
		if b {
			n++
		}
	}
	return n
}
