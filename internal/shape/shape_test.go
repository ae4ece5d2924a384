package shape

import (
	"path/filepath"
	"testing"

	"github.com/jonas-p/go-shp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/ewkb"

	"github.com/riverbasin-labs/ejindex-cli/internal/model"
)

func squarePolygon(x, y float64) *shp.Polygon {
	return &shp.Polygon{
		NumParts:  1,
		NumPoints: 5,
		Parts:     []int32{0},
		Points: []shp.Point{
			{X: x, Y: y},
			{X: x, Y: y + 1},
			{X: x + 1, Y: y + 1},
			{X: x + 1, Y: y},
			{X: x, Y: y}, // closed ring
		},
	}
}

func TestEncodeWKB_Polygon(t *testing.T) {
	wkb, err := EncodeWKB(squarePolygon(-84.0, 39.0))
	require.NoError(t, err)
	require.NotNil(t, wkb)

	g, err := ewkb.Unmarshal(wkb)
	require.NoError(t, err)

	mp, ok := g.(*geom.MultiPolygon)
	require.True(t, ok, "expected MultiPolygon, got %T", g)
	assert.Equal(t, 4326, mp.SRID())
	assert.Equal(t, 1, mp.NumPolygons())
}

func TestEncodeWKB_Point(t *testing.T) {
	wkb, err := EncodeWKB(&shp.Point{X: -84.5, Y: 39.1})
	require.NoError(t, err)
	require.NotNil(t, wkb)

	g, err := ewkb.Unmarshal(wkb)
	require.NoError(t, err)
	pt, ok := g.(*geom.Point)
	require.True(t, ok)
	assert.InDelta(t, -84.5, pt.X(), 1e-12)
	assert.InDelta(t, 39.1, pt.Y(), 1e-12)
}

func TestEncodeWKB_MultiPartPolygon(t *testing.T) {
	poly := &shp.Polygon{
		NumParts: 2,
		Parts:    []int32{0, 5},
		Points:   append(squarePolygon(-84.0, 39.0).Points, squarePolygon(-85.0, 39.5).Points...),
	}

	wkb, err := EncodeWKB(poly)
	require.NoError(t, err)

	g, err := ewkb.Unmarshal(wkb)
	require.NoError(t, err)
	mp := g.(*geom.MultiPolygon)
	assert.Equal(t, 2, mp.NumPolygons())
}

func TestEncodeWKB_NilAndEmpty(t *testing.T) {
	wkb, err := EncodeWKB(nil)
	require.NoError(t, err)
	assert.Nil(t, wkb)

	wkb, err = EncodeWKB(&shp.Polygon{})
	require.NoError(t, err)
	assert.Nil(t, wkb)
}

func fptr(v float64) *float64 { return &v }

func TestWriteReadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.shp")

	groups := []BlockGroup{
		{GEOID: "390170101001", Shape: squarePolygon(-84.0, 39.0)},
		{GEOID: "390170101002", Shape: squarePolygon(-85.0, 39.5)},
	}
	rows := []model.IndexRow{
		{
			GEOID: "390170101001", Tract: "39017010100", State: "Ohio",
			IndexRaw:        fptr(37.16),
			IndexPctileBest: fptr(80),
		},
		{
			GEOID: "390170101002", Tract: "39017010100", State: "Ohio",
			IndexRaw: fptr(12.5),
		},
		// No polygon for this one; it must be skipped, not fail.
		{GEOID: "210150903001", Tract: "21015090300", State: "Kentucky"},
	}

	require.NoError(t, WriteIndexShapefile(path, groups, rows))

	got, err := ReadBlockGroups(path)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "390170101001", got[0].GEOID)
	assert.Equal(t, "390170101002", got[1].GEOID)
	assert.Len(t, got[0].Shape.Points, 5)
}

func TestReadBlockGroupsMissingGEOIDField(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plain.shp")

	writer, err := shp.Create(path, shp.POLYGON)
	require.NoError(t, err)
	writer.SetFields([]shp.Field{shp.StringField("NAME", 10)})
	writer.Write(squarePolygon(0, 0))
	writer.Close()

	_, err = ReadBlockGroups(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "GEOID")
}

func TestReadBlockGroupsMissingFile(t *testing.T) {
	_, err := ReadBlockGroups(filepath.Join(t.TempDir(), "nope.shp"))
	require.Error(t, err)
}
