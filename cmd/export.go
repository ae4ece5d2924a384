package main

import (
	"context"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/riverbasin-labs/ejindex-cli/internal/model"
	"github.com/riverbasin-labs/ejindex-cli/internal/report"
	"github.com/riverbasin-labs/ejindex-cli/internal/shape"
	"github.com/riverbasin-labs/ejindex-cli/internal/store"
)

var (
	exportRunID     string
	exportFormat    string
	exportOut       string
	exportTopN      int
	exportShapefile string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export a stored run as an XLSX workbook or shapefile",
	Long:  "Exports the region rows of a stored run. xlsx writes a summary workbook; shp joins the rows to a block-group shapefile and writes the indexes as attributes.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		run, err := resolveRun(ctx, st, exportRunID)
		if err != nil {
			return err
		}
		if run.Summary == nil {
			return eris.Errorf("run %s has no summary (status %s)", run.ID, run.Status)
		}

		rows, err := st.RegionRows(ctx, run.ID, 0)
		if err != nil {
			return eris.Wrap(err, "export: load region rows")
		}

		log := zap.L().With(
			zap.String("command", "export"),
			zap.String("run_id", run.ID),
			zap.String("format", exportFormat),
		)

		switch exportFormat {
		case "xlsx":
			if err := report.WriteWorkbook(exportOut, run, *run.Summary, rows, exportTopN); err != nil {
				return err
			}
		case "shp":
			if exportShapefile == "" {
				return eris.New("export: --shapefile is required for shp format")
			}
			groups, err := shape.ReadBlockGroups(exportShapefile)
			if err != nil {
				return err
			}
			if err := shape.WriteIndexShapefile(exportOut, groups, rows); err != nil {
				return err
			}
		default:
			return eris.Errorf("export: unknown format %q (xlsx, shp)", exportFormat)
		}

		log.Info("export complete", zap.String("out", exportOut), zap.Int("rows", len(rows)))
		cmd.Println(exportOut)
		return nil
	},
}

// resolveRun loads the named run, or the latest complete run when id is
// empty.
func resolveRun(ctx context.Context, st store.Store, id string) (*model.Run, error) {
	if id != "" {
		run, err := st.GetRun(ctx, id)
		return run, eris.Wrapf(err, "export: load run %s", id)
	}
	run, err := st.LatestRun(ctx)
	return run, eris.Wrap(err, "export: load latest run")
}

func init() {
	exportCmd.Flags().StringVar(&exportRunID, "run", "", "run ID to export (default: latest)")
	exportCmd.Flags().StringVar(&exportFormat, "format", "xlsx", "export format: xlsx or shp")
	exportCmd.Flags().StringVar(&exportOut, "out", "", "output path (required)")
	exportCmd.Flags().IntVar(&exportTopN, "top", 25, "rows on the top block groups sheet (0 = all)")
	exportCmd.Flags().StringVar(&exportShapefile, "shapefile", "", "block-group shapefile to join for shp format")
	_ = exportCmd.MarkFlagRequired("out")
	rootCmd.AddCommand(exportCmd)
}
