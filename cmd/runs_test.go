//go:build !integration

package main

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/riverbasin-labs/ejindex-cli/internal/model"
)

func TestFormatRunsList(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 30, 0, 0, time.UTC)
	runs := []model.Run{
		{
			ID:       "abc12345-6789-0000-0000-000000000000",
			Region:   "great-miami",
			Quantile: 0.8,
			Status:   model.RunComplete,
			Summary: &model.Summary{
				RowsTotal:  5423,
				RowsRegion: 312,
			},
			CreatedAt: now,
			UpdatedAt: now.Add(2 * time.Minute),
		},
		{
			ID:        "def12345-6789-0000-0000-000000000000",
			Region:    "little-miami",
			Status:    model.RunFailed,
			CreatedAt: now.Add(-1 * time.Hour),
			UpdatedAt: now.Add(-59 * time.Minute),
		},
	}

	var buf bytes.Buffer
	formatRunsList(&buf, runs)

	output := buf.String()
	assert.Contains(t, output, "ID")
	assert.Contains(t, output, "REGION")
	assert.Contains(t, output, "abc12345")
	assert.Contains(t, output, "great-miami")
	assert.Contains(t, output, "complete")
	assert.Contains(t, output, "5423")
	assert.Contains(t, output, "312")
	assert.Contains(t, output, "failed")
	assert.Contains(t, output, "2026-03-01 10:30")
	// Failed run has no summary; counts render as dashes.
	assert.Contains(t, output, "-")
}

func TestTruncateID(t *testing.T) {
	assert.Equal(t, "abc12345", truncateID("abc12345-6789-0000-0000-000000000000"))
	assert.Equal(t, "short", truncateID("short"))
}
