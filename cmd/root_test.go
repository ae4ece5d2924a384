//go:build !integration

package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/riverbasin-labs/ejindex-cli/internal/config"
)

func TestCommandsRegistered(t *testing.T) {
	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}

	for _, want := range []string{"run", "runs", "fetch", "export", "serve", "shapes"} {
		assert.True(t, names[want], "command %q not registered", want)
	}
}

func TestApplyRunFlags(t *testing.T) {
	orig := cfg
	t.Cleanup(func() { cfg = orig })

	cfg = &config.Config{}
	cfg.Thresholds.Quantile = 0.8

	require.NoError(t, runCmd.Flags().Set("ejscreen", "ej.csv"))
	require.NoError(t, runCmd.Flags().Set("quantile", "0.9"))
	t.Cleanup(func() {
		_ = runCmd.Flags().Set("ejscreen", "")
		_ = runCmd.Flags().Set("quantile", "0")
	})

	require.NoError(t, applyRunFlags(runCmd, nil))

	assert.Equal(t, "ej.csv", cfg.Inputs.EJScreenCSV)
	assert.Equal(t, 0.9, cfg.Thresholds.Quantile)
	// Unset flags leave config values alone.
	assert.Equal(t, "", cfg.Inputs.LifeCSV)
}
