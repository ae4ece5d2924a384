package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/riverbasin-labs/ejindex-cli/internal/model"
	"github.com/riverbasin-labs/ejindex-cli/internal/shape"
)

var shapesCmd = &cobra.Command{
	Use:   "shapes",
	Short: "Manage block-group geometries",
}

var shapesLoadCmd = &cobra.Command{
	Use:   "load <shapefile>",
	Short: "Load block-group polygons into the store as EWKB",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		groups, err := shape.ReadBlockGroups(args[0])
		if err != nil {
			return err
		}

		log := zap.L().With(zap.String("command", "shapes"))

		geoms := make([]model.Geometry, 0, len(groups))
		skipped := 0
		for _, g := range groups {
			wkb, err := shape.EncodeWKB(g.Shape)
			if err != nil || wkb == nil {
				skipped++
				continue
			}
			geoms = append(geoms, model.Geometry{GEOID: g.GEOID, WKB: wkb})
		}

		n, err := st.SaveGeometries(ctx, geoms)
		if err != nil {
			return err
		}

		log.Info("geometries loaded",
			zap.String("shapefile", args[0]),
			zap.Int64("saved", n),
			zap.Int("skipped", skipped),
		)
		return nil
	},
}

func init() {
	shapesCmd.AddCommand(shapesLoadCmd)
	rootCmd.AddCommand(shapesCmd)
}
