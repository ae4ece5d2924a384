package main

import (
	"encoding/json"
	"os"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/riverbasin-labs/ejindex-cli/internal/pipeline"
	"github.com/riverbasin-labs/ejindex-cli/internal/store"
)

var runSave bool

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the full index pipeline",
	Long:  "Loads the EJSCREEN and USALEEP tables, links on tract, derives the composite indexes, computes threshold exceedances, and writes the output table.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate("run"); err != nil {
			return err
		}

		var st store.Store
		if runSave {
			var err error
			st, err = initStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close() //nolint:errcheck
		}

		result, err := pipeline.Run(ctx, cfg, st)
		if err != nil {
			return eris.Wrap(err, "pipeline run")
		}

		zap.L().Info("run complete",
			zap.Int("rows", result.Summary.RowsTotal),
			zap.Int("region_rows", result.Summary.RowsRegion),
			zap.String("output", result.OutputPath),
		)

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result.Summary)
	},
}

func init() {
	runCmd.Flags().StringVar(&cfgEJScreen, "ejscreen", "", "EJSCREEN block-group CSV path")
	runCmd.Flags().StringVar(&cfgLife, "life", "", "USALEEP tract life-expectancy CSV path")
	runCmd.Flags().StringVar(&cfgRegion, "region", "", "region definition YAML path")
	runCmd.Flags().StringVar(&cfgOut, "out", "", "output CSV path")
	runCmd.Flags().Float64Var(&cfgQuantile, "quantile", 0, "threshold quantile (default from config)")
	runCmd.Flags().BoolVar(&cfgStrictPCA, "strict-pca", false, "fail the run when PCA cannot be fit")
	runCmd.Flags().BoolVar(&cfgLatin1, "latin1", false, "decode the EJSCREEN CSV as Latin-1")
	runCmd.Flags().BoolVar(&runSave, "save", false, "persist the run and its rows to the store")

	runCmd.PreRunE = applyRunFlags
	rootCmd.AddCommand(runCmd)
}

// Flag values overriding the config file. Cobra parses flags after the
// config is loaded, so they are applied in PreRunE.
var (
	cfgEJScreen  string
	cfgLife      string
	cfgRegion    string
	cfgOut       string
	cfgQuantile  float64
	cfgStrictPCA bool
	cfgLatin1    bool
)

func applyRunFlags(cmd *cobra.Command, _ []string) error {
	if cfgEJScreen != "" {
		cfg.Inputs.EJScreenCSV = cfgEJScreen
	}
	if cfgLife != "" {
		cfg.Inputs.LifeCSV = cfgLife
	}
	if cfgRegion != "" {
		cfg.Inputs.RegionFile = cfgRegion
	}
	if cfgOut != "" {
		cfg.Inputs.OutputCSV = cfgOut
	}
	if cmd.Flags().Changed("quantile") {
		cfg.Thresholds.Quantile = cfgQuantile
	}
	if cmd.Flags().Changed("strict-pca") {
		cfg.Thresholds.StrictPCA = cfgStrictPCA
	}
	if cmd.Flags().Changed("latin1") {
		cfg.Inputs.Latin1 = cfgLatin1
	}
	return nil
}
