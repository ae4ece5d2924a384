// Package shape reads and writes census block-group shapefiles and
// encodes their polygons as EWKB for persistence.
package shape

import (
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// GEOIDField is the attribute holding the block-group identifier in
// TIGER/Line block-group shapefiles.
const GEOIDField = "GEOID"

// BlockGroup is one shapefile record: the block-group identifier plus
// its polygon.
type BlockGroup struct {
	GEOID string
	Shape *shp.Polygon
}

// ReadBlockGroups reads a block-group shapefile and returns its records
// keyed by GEOID. Records without a GEOID attribute or without a polygon
// are skipped.
func ReadBlockGroups(shpPath string) ([]BlockGroup, error) {
	reader, err := shp.Open(shpPath)
	if err != nil {
		return nil, eris.Wrapf(err, "shape: open shapefile %s", shpPath)
	}
	defer func() { _ = reader.Close() }()

	fields := reader.Fields()
	geoidIdx := -1
	for i, f := range fields {
		name := strings.TrimRight(f.String(), "\x00")
		if strings.EqualFold(name, GEOIDField) {
			geoidIdx = i
			break
		}
	}
	if geoidIdx < 0 {
		return nil, eris.Errorf("shape: %s has no %s field", shpPath, GEOIDField)
	}

	var groups []BlockGroup
	var skipped int

	for reader.Next() {
		_, s := reader.Shape()

		geoid := strings.TrimSpace(strings.TrimRight(reader.Attribute(geoidIdx), "\x00"))
		poly, ok := s.(*shp.Polygon)
		if geoid == "" || !ok || len(poly.Points) == 0 {
			skipped++
			continue
		}

		groups = append(groups, BlockGroup{GEOID: geoid, Shape: poly})
	}

	if skipped > 0 {
		zap.L().Debug("shape: skipped shapefile records",
			zap.String("path", shpPath),
			zap.Int("skipped", skipped),
		)
	}

	return groups, nil
}
