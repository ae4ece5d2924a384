package dataset

import (
	"encoding/csv"
	"io"
	"os"
	"strconv"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"
)

// missingTokens are the input strings treated as missing values.
var missingTokens = []string{"", "NA", "NaN", "None", "N/A"}

// LoadOptions tunes CSV parsing.
type LoadOptions struct {
	// Latin1 decodes the file as ISO 8859-1 before parsing. EJSCREEN
	// extracts ship with Latin-1 place names.
	Latin1 bool
}

// LoadCSV reads a delimited file, validates it against the schema, and
// returns only the schema's columns, typed. Identifier columns are kept
// as strings so leading zeros survive.
func LoadCSV(path string, schema Schema, opts LoadOptions) (dataframe.DataFrame, error) {
	f, err := os.Open(path)
	if err != nil {
		return dataframe.DataFrame{}, eris.Wrapf(err, "dataset: open %s", path)
	}
	defer func() { _ = f.Close() }()

	var r io.Reader = f
	if opts.Latin1 {
		r = transform.NewReader(f, charmap.ISO8859_1.NewDecoder())
	}

	df := dataframe.ReadCSV(r,
		dataframe.HasHeader(true),
		dataframe.DetectTypes(false),
		dataframe.DefaultType(series.String),
		dataframe.WithTypes(schema.Types()),
		dataframe.NaNValues(missingTokens),
	)
	if df.Err != nil {
		return dataframe.DataFrame{}, eris.Wrapf(df.Err, "dataset: parse %s", path)
	}

	if err := schema.Validate(df); err != nil {
		return dataframe.DataFrame{}, eris.Wrapf(err, "dataset: %s", path)
	}

	selected := df.Select(schema.Names())
	if selected.Err != nil {
		return dataframe.DataFrame{}, eris.Wrapf(selected.Err, "dataset: select %s", path)
	}

	zap.L().Debug("loaded table",
		zap.String("path", path),
		zap.Int("rows", selected.Nrow()),
		zap.Int("cols", selected.Ncol()),
	)
	return selected, nil
}

// WriteCSV writes the table to path with a header row. Column order is
// the frame's order, which the pipeline keeps stable across runs. Float
// cells are formatted shortest-round-trip; gota's own writer fixes
// precision at six decimals, which loses reloaded values.
func WriteCSV(df dataframe.DataFrame, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "dataset: create %s", path)
	}
	defer func() { _ = f.Close() }()

	names := df.Names()
	types := df.Types()
	cols := make([][]string, len(names))
	for i, name := range names {
		if types[i] == series.Float {
			vals := df.Col(name).Float()
			rec := make([]string, len(vals))
			for j, v := range vals {
				rec[j] = strconv.FormatFloat(v, 'g', -1, 64)
			}
			cols[i] = rec
		} else {
			cols[i] = df.Col(name).Records()
		}
	}

	w := csv.NewWriter(f)
	if err := w.Write(names); err != nil {
		return eris.Wrapf(err, "dataset: write header %s", path)
	}
	row := make([]string, len(names))
	for j := 0; j < df.Nrow(); j++ {
		for i := range names {
			row[i] = cols[i][j]
		}
		if err := w.Write(row); err != nil {
			return eris.Wrapf(err, "dataset: write row %d of %s", j, path)
		}
	}
	w.Flush()
	return eris.Wrapf(w.Error(), "dataset: flush %s", path)
}
