package model

// IndexRow is the full derived record for one census block group.
// Nullable metrics are pointers; nil means missing, never zero.
type IndexRow struct {
	GEOID string `json:"geoid"`
	Tract string `json:"tract"`
	State string `json:"state"`

	LowIncomePct    *float64 `json:"low_income_pct"`
	LingIsoPct      *float64 `json:"ling_iso_pct"`
	LessHSPct       *float64 `json:"less_hs_pct"`
	UnemploymentPct *float64 `json:"unemployment_pct"`
	LifeExpectancy  *float64 `json:"life_expectancy"`
	LifeNegated     *float64 `json:"life_negated"`

	PctLowIncome    *float64 `json:"p_low_income"`
	PctLingIso      *float64 `json:"p_ling_iso"`
	PctLessHS       *float64 `json:"p_less_hs"`
	PctUnemployment *float64 `json:"p_unemployment"`
	PctLifeNegated  *float64 `json:"p_life_negated"`

	IndexRaw        *float64 `json:"index_raw"`
	IndexPctile5    *float64 `json:"index_pctile_5"`
	IndexPctile4    *float64 `json:"index_pctile_4"`
	IndexPctileBest *float64 `json:"index_pctile_best"`
	PCAIndex        *float64 `json:"pca_index"`
	PCAPctileIndex  *float64 `json:"pca_pctile_index"`

	InRegion bool `json:"in_region"`
}

// Geometry is a census polygon keyed by its identifier, encoded as EWKB.
type Geometry struct {
	GEOID string `json:"geoid"`
	WKB   []byte `json:"-"`
}
