package index

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Ten national rows, five of which form a state, two of which form the
// region. One composite column with hand-computable 80th percentiles.
func scopedFixture() ([]string, map[string][]float64, []Scope, []bool) {
	col := []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	national := []bool{true, true, true, true, true, true, true, true, true, true}
	state := []bool{false, false, false, false, false, true, true, true, true, true}
	region := []bool{false, false, false, false, false, false, false, false, true, true}

	scopes := []Scope{
		{Level: ScopeNational, Mask: national},
		{Level: ScopeState, Mask: state},
		{Level: ScopeRegion, Mask: region},
	}
	return []string{"idx"}, map[string][]float64{"idx": col}, scopes, region
}

func TestExceedancesPerScopeThresholds(t *testing.T) {
	names, cols, scopes, region := scopedFixture()

	results, flags, err := Exceedances(context.Background(), names, cols, scopes, region, 0.8)
	require.NoError(t, err)
	require.Len(t, results, 3)

	byScope := map[ScopeLevel]Exceedance{}
	for _, r := range results {
		byScope[r.Scope] = r
	}

	// Each threshold is computed only from its own scope's rows.
	assert.InDelta(t, 8, byScope[ScopeNational].Threshold, 1e-9) // p80 of 1..10
	assert.InDelta(t, 9, byScope[ScopeState].Threshold, 1e-9)    // p80 of 6..10
	assert.InDelta(t, 9.6, byScope[ScopeRegion].Threshold, 1e-9) // p80 of {9,10}

	// Regional rows are 9 and 10.
	assert.Equal(t, 2, byScope[ScopeNational].Count) // both exceed 8
	assert.Equal(t, 1, byScope[ScopeState].Count)    // only 10 exceeds 9
	assert.Equal(t, 1, byScope[ScopeRegion].Count)   // only 10 exceeds 9.6

	for _, r := range results {
		assert.True(t, r.Applicable)
		assert.Equal(t, 2, r.Evaluated)
	}

	natFlags := flags["idx"][ScopeNational]
	assert.Equal(t, []bool{true, true}, natFlags.Exceeds)
	assert.Equal(t, []bool{true, true}, natFlags.Known)
}

func TestExceedancesMissingValuesNotCounted(t *testing.T) {
	col := []float64{1, 2, 3, 4, math.NaN()}
	all := []bool{true, true, true, true, true}
	region := []bool{false, false, false, true, true}

	results, flags, err := Exceedances(context.Background(),
		[]string{"idx"}, map[string][]float64{"idx": col},
		[]Scope{{Level: ScopeNational, Mask: all}}, region, 0.8)
	require.NoError(t, err)
	require.Len(t, results, 1)

	r := results[0]
	assert.True(t, r.Applicable)
	assert.Equal(t, 1, r.Evaluated, "missing comparison must not be counted")
	assert.Equal(t, 1, r.Count)

	fl := flags["idx"][ScopeNational]
	assert.Equal(t, []bool{true, false}, fl.Known)
}

func TestExceedancesEmptyScopeNotApplicable(t *testing.T) {
	col := []float64{1, 2, 3}
	empty := []bool{false, false, false}
	region := []bool{true, true, true}

	results, _, err := Exceedances(context.Background(),
		[]string{"idx"}, map[string][]float64{"idx": col},
		[]Scope{{Level: ScopeState, Mask: empty}}, region, 0.8)
	require.NoError(t, err)

	r := results[0]
	assert.False(t, r.Applicable)
	assert.True(t, math.IsNaN(r.Threshold), "empty population yields missing, not zero")
	assert.Equal(t, 0, r.Count)
}

func TestExceedancesAbsentColumn(t *testing.T) {
	all := []bool{true, true}

	results, _, err := Exceedances(context.Background(),
		[]string{"pca_index"}, map[string][]float64{},
		[]Scope{{Level: ScopeNational, Mask: all}}, all, 0.8)
	require.NoError(t, err)

	r := results[0]
	assert.False(t, r.Applicable)
	assert.True(t, math.IsNaN(r.Threshold))
}

func TestExceedancesAllPairs(t *testing.T) {
	n := 12
	mask := make([]bool, n)
	col := make([]float64, n)
	for i := range mask {
		mask[i] = true
		col[i] = float64(i)
	}

	names := []string{"a", "b", "c", "d", "e", "f"}
	cols := map[string][]float64{}
	for _, name := range names {
		cols[name] = col
	}
	scopes := []Scope{
		{Level: ScopeNational, Mask: mask},
		{Level: ScopeState, Mask: mask},
		{Level: ScopeRegion, Mask: mask},
	}

	results, _, err := Exceedances(context.Background(), names, cols, scopes, mask, 0.8)
	require.NoError(t, err)
	assert.Len(t, results, 18, "3 scales x 6 indexes")
}
