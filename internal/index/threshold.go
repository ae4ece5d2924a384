package index

import (
	"context"
	"math"

	"golang.org/x/sync/errgroup"
)

// ScopeLevel names one of the three nested threshold populations.
type ScopeLevel string

const (
	ScopeNational ScopeLevel = "national"
	ScopeState    ScopeLevel = "state"
	ScopeRegion   ScopeLevel = "region"
)

// Scope selects the rows belonging to a threshold population. Mask is
// parallel to the index columns.
type Scope struct {
	Level ScopeLevel
	Mask  []bool
}

// Exceedance is the threshold result for one (scope, index) pair:
// the quantile cutoff over the scope's rows and the count of regional
// records strictly above it. Applicable is false when the scope holds
// no rows with a non-missing index value.
type Exceedance struct {
	Index      string     `json:"index"`
	Scope      ScopeLevel `json:"scope"`
	Threshold  float64    `json:"threshold"`
	Count      int        `json:"count"`
	Evaluated  int        `json:"evaluated"`
	Applicable bool       `json:"applicable"`
}

// Flags reports, per regional record, whether its index value strictly
// exceeds a threshold. Missing index values are neither true nor false;
// they are excluded from counts.
type Flags struct {
	Exceeds []bool
	Known   []bool
}

// Exceedances computes the quantile threshold and exceedance count for
// every (scope, index) pair. Each pair reads only its own scope's rows
// of an immutable column, so all pairs run concurrently.
//
// Regional records are identified by the region scope's mask; flags and
// counts always compare regional records against each scope's cutoff.
func Exceedances(ctx context.Context, names []string, cols map[string][]float64, scopes []Scope, region []bool, q float64) ([]Exceedance, map[string]map[ScopeLevel]Flags, error) {
	type pair struct {
		scope Scope
		name  string
	}
	var pairs []pair
	for _, s := range scopes {
		for _, name := range names {
			pairs = append(pairs, pair{scope: s, name: name})
		}
	}

	results := make([]Exceedance, len(pairs))
	flagged := make([]Flags, len(pairs))

	g, _ := errgroup.WithContext(ctx)
	for i, p := range pairs {
		g.Go(func() error {
			col, ok := cols[p.name]
			if !ok {
				// Index column absent for this run (e.g. PCA skipped).
				results[i] = Exceedance{Index: p.name, Scope: p.scope.Level, Threshold: math.NaN()}
				return nil
			}
			results[i], flagged[i] = exceedanceFor(p.name, col, p.scope, region, q)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	flags := make(map[string]map[ScopeLevel]Flags, len(names))
	for i, p := range pairs {
		if _, ok := flags[p.name]; !ok {
			flags[p.name] = make(map[ScopeLevel]Flags, len(scopes))
		}
		flags[p.name][p.scope.Level] = flagged[i]
	}
	return results, flags, nil
}

func exceedanceFor(name string, col []float64, scope Scope, region []bool, q float64) (Exceedance, Flags) {
	scoped := make([]float64, 0, len(col))
	for i, v := range col {
		if scope.Mask[i] {
			scoped = append(scoped, v)
		}
	}

	cutoff := Quantile(scoped, q)
	ex := Exceedance{
		Index:     name,
		Scope:     scope.Level,
		Threshold: cutoff,
	}
	if math.IsNaN(cutoff) {
		// Empty (or all-missing) population: not applicable, never zero.
		return ex, Flags{}
	}
	ex.Applicable = true

	fl := Flags{
		Exceeds: make([]bool, 0, len(col)),
		Known:   make([]bool, 0, len(col)),
	}
	for i, v := range col {
		if !region[i] {
			continue
		}
		if math.IsNaN(v) {
			fl.Exceeds = append(fl.Exceeds, false)
			fl.Known = append(fl.Known, false)
			continue
		}
		over := v > cutoff
		fl.Exceeds = append(fl.Exceeds, over)
		fl.Known = append(fl.Known, true)
		ex.Evaluated++
		if over {
			ex.Count++
		}
	}
	return ex, fl
}
