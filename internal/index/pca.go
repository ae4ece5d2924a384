package index

import (
	"math"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// signAmbiguityThreshold is the absolute correlation below which the
// sign of the first principal component cannot be anchored reliably.
const signAmbiguityThreshold = 0.05

// PCAModel is an immutable first-principal-component fit. Loadings are
// estimated once over complete-case rows of standardized indicators and
// then applied to every row with complete inputs.
type PCAModel struct {
	mean    []float64
	std     []float64
	loading []float64
	nFit    int
}

// FitPCA fits a PCA over the complete-case rows of the given indicator
// columns. Fitting fails explicitly when fewer than two complete-case
// rows exist or when an indicator has zero variance among them.
func FitPCA(cols [][]float64) (*PCAModel, error) {
	if len(cols) == 0 {
		return nil, eris.New("pca: no indicator columns")
	}
	n := len(cols[0])
	for _, c := range cols[1:] {
		if len(c) != n {
			return nil, eris.New("pca: indicator columns differ in length")
		}
	}

	complete := completeRows(cols)
	if len(complete) < 2 {
		return nil, eris.Errorf("pca: %d complete-case rows, need at least 2", len(complete))
	}

	d := len(cols)
	mean := make([]float64, d)
	std := make([]float64, d)
	for j, col := range cols {
		xs := make([]float64, 0, len(complete))
		for _, i := range complete {
			xs = append(xs, col[i])
		}
		m, s := stat.MeanStdDev(xs, nil)
		if s == 0 || math.IsNaN(s) {
			return nil, eris.Errorf("pca: indicator %d has zero variance over complete cases", j)
		}
		mean[j] = m
		std[j] = s
	}

	// Standardized complete-case matrix, rows × indicators.
	data := mat.NewDense(len(complete), d, nil)
	for r, i := range complete {
		for j, col := range cols {
			data.Set(r, j, (col[i]-mean[j])/std[j])
		}
	}

	var pc stat.PC
	if ok := pc.PrincipalComponents(data, nil); !ok {
		return nil, eris.New("pca: principal component decomposition failed")
	}

	var vecs mat.Dense
	pc.VectorsTo(&vecs)

	loading := make([]float64, d)
	for j := 0; j < d; j++ {
		loading[j] = vecs.At(j, 0)
	}

	return &PCAModel{mean: mean, std: std, loading: loading, nFit: len(complete)}, nil
}

// NFit reports how many complete-case rows the model was fitted on.
func (m *PCAModel) NFit() int { return m.nFit }

// Loadings returns a copy of the first-component loading vector.
func (m *PCAModel) Loadings() []float64 {
	out := make([]float64, len(m.loading))
	copy(out, m.loading)
	return out
}

// Scores projects every row onto the fitted first component. Rows with
// any missing input receive NaN, never an imputed score.
func (m *PCAModel) Scores(cols [][]float64) []float64 {
	n := len(cols[0])
	out := make([]float64, n)

	for i := 0; i < n; i++ {
		score := 0.0
		missing := false
		for j, col := range cols {
			if math.IsNaN(col[i]) {
				missing = true
				break
			}
			score += m.loading[j] * (col[i] - m.mean[j]) / m.std[j]
		}
		if missing {
			out[i] = math.NaN()
		} else {
			out[i] = score
		}
	}
	return out
}

// AlignSign normalizes the reflection ambiguity of the first component:
// when the Pearson correlation between scores and ref over rows where
// both are present is negative, all scores are negated in place. The
// correlation is returned; a magnitude below signAmbiguityThreshold
// leaves the fitted sign and logs a warning.
func AlignSign(scores, ref []float64) float64 {
	var xs, ys []float64
	for i := range scores {
		if !math.IsNaN(scores[i]) && !math.IsNaN(ref[i]) {
			xs = append(xs, scores[i])
			ys = append(ys, ref[i])
		}
	}
	if len(xs) < 2 {
		return math.NaN()
	}

	r := stat.Correlation(xs, ys, nil)
	if math.Abs(r) < signAmbiguityThreshold {
		zap.L().Warn("pca sign indeterminate, keeping fitted orientation",
			zap.Float64("correlation", r),
		)
		return r
	}
	if r < 0 {
		for i, v := range scores {
			if !math.IsNaN(v) {
				scores[i] = -v
			}
		}
	}
	return r
}

// completeRows returns the indexes of rows with no missing value in any
// of the given columns.
func completeRows(cols [][]float64) []int {
	var rows []int
	for i := range cols[0] {
		ok := true
		for _, col := range cols {
			if math.IsNaN(col[i]) {
				ok = false
				break
			}
		}
		if ok {
			rows = append(rows, i)
		}
	}
	return rows
}
