// Package model holds the persisted entities of the index pipeline.
package model

import "time"

// RunStatus is the lifecycle state of a pipeline run.
type RunStatus string

const (
	RunRunning  RunStatus = "running"
	RunComplete RunStatus = "complete"
	RunFailed   RunStatus = "failed"
)

// Run is one batch execution of the index pipeline.
type Run struct {
	ID        string     `json:"id"`
	Region    string     `json:"region"`
	Quantile  float64    `json:"quantile"`
	Status    RunStatus  `json:"status"`
	Summary   *Summary   `json:"summary,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// Summary is the run-level result persisted alongside the run row.
type Summary struct {
	RowsTotal   int             `json:"rows_total"`
	RowsRegion  int             `json:"rows_region"`
	RowsLinked  int             `json:"rows_linked"`
	PCASkipped  bool            `json:"pca_skipped"`
	PCAError    string          `json:"pca_error,omitempty"`
	Exceedances []ExceedanceRow `json:"exceedances"`
}

// ExceedanceRow is one (scope, index) threshold result. Threshold is nil
// when the scope population was empty and the pair is not applicable.
type ExceedanceRow struct {
	Index      string   `json:"index"`
	Scope      string   `json:"scope"`
	Threshold  *float64 `json:"threshold"`
	Count      int      `json:"count"`
	Evaluated  int      `json:"evaluated"`
	Applicable bool     `json:"applicable"`
}
