package dataset

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-gota/gota/series"
	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeCSVFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "input.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func testSchema() Schema {
	return Schema{Fields: []Field{
		{Name: "ID", Type: series.String},
		{Name: "LOWINCPCT", Type: series.Float},
	}}
}

func TestLoadCSV(t *testing.T) {
	path := writeCSVFile(t, "ID,STATE_NAME,LOWINCPCT\n010730059033,Alabama,0.25\n390170111041,Ohio,0.5\n")

	df, err := LoadCSV(path, testSchema(), LoadOptions{})
	require.NoError(t, err)

	assert.Equal(t, 2, df.Nrow())
	assert.Equal(t, []string{"ID", "LOWINCPCT"}, df.Names(), "only schema columns survive")
	assert.Equal(t, "010730059033", df.Col("ID").Records()[0], "leading zeros preserved")
	assert.InDelta(t, 0.25, df.Col("LOWINCPCT").Float()[0], 1e-12)
}

func TestLoadCSVMissingValues(t *testing.T) {
	path := writeCSVFile(t, "ID,LOWINCPCT\na,NA\nb,0.5\nc,\n")

	df, err := LoadCSV(path, testSchema(), LoadOptions{})
	require.NoError(t, err)

	vals := df.Col("LOWINCPCT").Float()
	assert.True(t, math.IsNaN(vals[0]))
	assert.InDelta(t, 0.5, vals[1], 1e-12)
	assert.True(t, math.IsNaN(vals[2]))
}

func TestLoadCSVMissingColumnIsSchemaError(t *testing.T) {
	path := writeCSVFile(t, "ID,OTHER\na,1\n")

	_, err := LoadCSV(path, testSchema(), LoadOptions{})
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrSchema), "missing column must surface as schema violation")
	assert.Contains(t, err.Error(), "LOWINCPCT")
}

func TestLoadCSVMissingFile(t *testing.T) {
	_, err := LoadCSV(filepath.Join(t.TempDir(), "absent.csv"), testSchema(), LoadOptions{})
	require.Error(t, err)
}

func TestLoadCSVLatin1(t *testing.T) {
	// "Española" with the Latin-1 byte 0xF1 for ñ.
	raw := []byte("ID,STATE_NAME,LOWINCPCT\nx,Espa\xf1ola,0.1\n")
	path := filepath.Join(t.TempDir(), "latin1.csv")
	require.NoError(t, os.WriteFile(path, raw, 0o644))

	schema := Schema{Fields: []Field{
		{Name: "ID", Type: series.String},
		{Name: "STATE_NAME", Type: series.String},
	}}
	df, err := LoadCSV(path, schema, LoadOptions{Latin1: true})
	require.NoError(t, err)
	assert.Equal(t, "Española", df.Col("STATE_NAME").Records()[0])
}

func TestWriteCSVRoundTrip(t *testing.T) {
	// 33.333... exercises digits beyond gota's fixed 6-decimal writer.
	path := writeCSVFile(t, "ID,LOWINCPCT\na,0.123456789123\nb,0.5\nc,33.333333333333336\nd,NA\n")

	df, err := LoadCSV(path, testSchema(), LoadOptions{})
	require.NoError(t, err)

	out := filepath.Join(t.TempDir(), "out.csv")
	require.NoError(t, WriteCSV(df, out))

	df2, err := LoadCSV(out, testSchema(), LoadOptions{})
	require.NoError(t, err)

	a := df.Col("LOWINCPCT").Float()
	b := df2.Col("LOWINCPCT").Float()
	require.Equal(t, len(a), len(b))
	for i := range a {
		if math.IsNaN(a[i]) {
			assert.True(t, math.IsNaN(b[i]), "missing values stay missing")
			continue
		}
		assert.Equal(t, a[i], b[i], "round trip must reproduce the value bit-for-bit")
		assert.InEpsilon(t, a[i], b[i], 1e-9, "round trip must not lose precision")
	}
	assert.Equal(t, 100.0/3.0, b[2])
}

func TestSchemaBuilders(t *testing.T) {
	ej := EJScreenSchema("ID", "STATE_NAME",
		[]string{"LOWINCPCT", "LINGISOPCT"},
		[]string{"P_LWINCPCT", "P_LNGISPCT"})
	assert.Equal(t,
		[]string{"ID", "STATE_NAME", "LOWINCPCT", "LINGISOPCT", "P_LWINCPCT", "P_LNGISPCT"},
		ej.Names())
	assert.Equal(t, series.Float, ej.Types()["P_LWINCPCT"])
	assert.Equal(t, series.String, ej.Types()["STATE_NAME"])

	life := LifeSchema("Tract ID", "e(0)")
	assert.Equal(t, []string{"Tract ID", "e(0)"}, life.Names())
}
