package shape

import (
	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/riverbasin-labs/ejindex-cli/internal/model"
)

// indexFields are the DBF attributes written alongside each polygon.
// Names stay within the 10-character DBF limit.
var indexFields = []shp.Field{
	shp.StringField("GEOID", 12),
	shp.StringField("TRACT", 11),
	shp.StringField("STATE", 24),
	shp.FloatField("IDX_RAW", 19, 6),
	shp.FloatField("IDX_P5", 19, 6),
	shp.FloatField("IDX_P4", 19, 6),
	shp.FloatField("IDX_BEST", 19, 6),
	shp.FloatField("PCA_IDX", 19, 6),
	shp.FloatField("PCA_PCT", 19, 6),
}

// WriteIndexShapefile joins computed index rows to their block-group
// polygons and writes a polygon shapefile with the composite indexes as
// attributes. Rows without a matching polygon are skipped.
func WriteIndexShapefile(path string, groups []BlockGroup, rows []model.IndexRow) error {
	polys := make(map[string]*shp.Polygon, len(groups))
	for _, g := range groups {
		polys[g.GEOID] = g.Shape
	}

	writer, err := shp.Create(path, shp.POLYGON)
	if err != nil {
		return eris.Wrapf(err, "shape: create shapefile %s", path)
	}
	defer writer.Close()

	writer.SetFields(indexFields)

	row := 0
	skipped := 0
	for _, r := range rows {
		poly, ok := polys[r.GEOID]
		if !ok {
			skipped++
			continue
		}

		writer.Write(poly)

		values := []any{r.GEOID, r.Tract, r.State}
		for _, v := range []*float64{
			r.IndexRaw, r.IndexPctile5, r.IndexPctile4,
			r.IndexPctileBest, r.PCAIndex, r.PCAPctileIndex,
		} {
			if v == nil {
				values = append(values, nil)
			} else {
				values = append(values, *v)
			}
		}

		for field, v := range values {
			if v == nil {
				continue
			}
			if err := writer.WriteAttribute(row, field, v); err != nil {
				return eris.Wrapf(err, "shape: write attribute %d for %s", field, r.GEOID)
			}
		}
		row++
	}

	if skipped > 0 {
		zap.L().Warn("shape: rows without matching polygon",
			zap.String("path", path),
			zap.Int("skipped", skipped),
		)
	}

	return nil
}
