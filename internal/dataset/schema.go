// Package dataset loads and writes the pipeline's tabular inputs with
// explicit, checked schemas. A schema violation is fatal before any
// computation starts.
package dataset

import (
	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"github.com/rotisserie/eris"
)

// ErrSchema is the sentinel for fatal schema violations: a required
// column is absent or carries the wrong type.
var ErrSchema = eris.New("dataset: schema violation")

// Field is one named, typed column of an input table.
type Field struct {
	Name string
	Type series.Type
}

// Schema is the fixed column subset an input table must provide.
type Schema struct {
	Fields []Field
}

// Names returns the schema's column names in declaration order.
func (s Schema) Names() []string {
	names := make([]string, len(s.Fields))
	for i, f := range s.Fields {
		names[i] = f.Name
	}
	return names
}

// Types returns the column-type map used to force typed parsing.
func (s Schema) Types() map[string]series.Type {
	types := make(map[string]series.Type, len(s.Fields))
	for _, f := range s.Fields {
		types[f.Name] = f.Type
	}
	return types
}

// Validate checks that every schema column is present with its declared
// type. Violations wrap ErrSchema.
func (s Schema) Validate(df dataframe.DataFrame) error {
	have := make(map[string]series.Type, df.Ncol())
	names := df.Names()
	types := df.Types()
	for i, name := range names {
		have[name] = types[i]
	}

	for _, f := range s.Fields {
		got, ok := have[f.Name]
		if !ok {
			return eris.Wrapf(ErrSchema, "missing column %q", f.Name)
		}
		if got != f.Type {
			return eris.Wrapf(ErrSchema, "column %q is %s, want %s", f.Name, got, f.Type)
		}
	}
	return nil
}

// EJScreenSchema builds the demographic-table schema from configured
// column names: identifier, state, four raw indicators, and their
// precomputed national percentiles.
func EJScreenSchema(id, state string, raw, pctile []string) Schema {
	fields := []Field{
		{Name: id, Type: series.String},
		{Name: state, Type: series.String},
	}
	for _, name := range raw {
		fields = append(fields, Field{Name: name, Type: series.Float})
	}
	for _, name := range pctile {
		fields = append(fields, Field{Name: name, Type: series.Float})
	}
	return Schema{Fields: fields}
}

// LifeSchema builds the life-expectancy table schema: tract identifier
// plus expectancy years.
func LifeSchema(id, life string) Schema {
	return Schema{Fields: []Field{
		{Name: id, Type: series.String},
		{Name: life, Type: series.Float},
	}}
}
