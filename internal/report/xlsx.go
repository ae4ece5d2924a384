// Package report writes run summaries as XLSX workbooks.
package report

import (
	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/riverbasin-labs/ejindex-cli/internal/model"
)

// WriteWorkbook writes a three-sheet summary workbook: run metadata,
// per-scope thresholds and exceedance counts, and the top region block
// groups by best-available percentile index. rows are expected in
// descending index order; at most topN are written (0 means all).
func WriteWorkbook(path string, run *model.Run, summary model.Summary, rows []model.IndexRow, topN int) error {
	f := xlsx.NewFile()

	if err := addRunSheet(f, run, summary); err != nil {
		return err
	}
	if err := addThresholdSheet(f, summary); err != nil {
		return err
	}
	if err := addTopSheet(f, rows, topN); err != nil {
		return err
	}

	return eris.Wrapf(f.Save(path), "report: save workbook %s", path)
}

func addRunSheet(f *xlsx.File, run *model.Run, summary model.Summary) error {
	sheet, err := f.AddSheet("Run")
	if err != nil {
		return eris.Wrap(err, "report: add run sheet")
	}

	kv := func(key string, set func(c *xlsx.Cell)) {
		row := sheet.AddRow()
		row.AddCell().SetString(key)
		set(row.AddCell())
	}

	if run != nil {
		kv("Run ID", func(c *xlsx.Cell) { c.SetString(run.ID) })
		kv("Region", func(c *xlsx.Cell) { c.SetString(run.Region) })
		kv("Quantile", func(c *xlsx.Cell) { c.SetFloat(run.Quantile) })
		kv("Status", func(c *xlsx.Cell) { c.SetString(string(run.Status)) })
		kv("Created", func(c *xlsx.Cell) { c.SetString(run.CreatedAt.Format("2006-01-02 15:04:05 MST")) })
	}
	kv("Block groups", func(c *xlsx.Cell) { c.SetInt(summary.RowsTotal) })
	kv("Region block groups", func(c *xlsx.Cell) { c.SetInt(summary.RowsRegion) })
	kv("Linked to life expectancy", func(c *xlsx.Cell) { c.SetInt(summary.RowsLinked) })
	if summary.PCASkipped {
		kv("PCA skipped", func(c *xlsx.Cell) { c.SetString(summary.PCAError) })
	}

	return nil
}

func addThresholdSheet(f *xlsx.File, summary model.Summary) error {
	sheet, err := f.AddSheet("Thresholds")
	if err != nil {
		return eris.Wrap(err, "report: add thresholds sheet")
	}

	header := sheet.AddRow()
	for _, h := range []string{"Index", "Scope", "Threshold", "Exceeding", "Evaluated", "Applicable"} {
		header.AddCell().SetString(h)
	}

	for _, e := range summary.Exceedances {
		row := sheet.AddRow()
		row.AddCell().SetString(e.Index)
		row.AddCell().SetString(e.Scope)
		if e.Threshold != nil {
			row.AddCell().SetFloat(*e.Threshold)
		} else {
			row.AddCell().SetString("")
		}
		row.AddCell().SetInt(e.Count)
		row.AddCell().SetInt(e.Evaluated)
		row.AddCell().SetBool(e.Applicable)
	}

	return nil
}

func addTopSheet(f *xlsx.File, rows []model.IndexRow, topN int) error {
	sheet, err := f.AddSheet("Top Block Groups")
	if err != nil {
		return eris.Wrap(err, "report: add top sheet")
	}

	header := sheet.AddRow()
	for _, h := range []string{
		"GEOID", "Tract", "State",
		"Raw Index", "Percentile Index (5)", "Percentile Index (4)",
		"Best Available", "PCA Index", "PCA Percentile Index",
	} {
		header.AddCell().SetString(h)
	}

	if topN <= 0 || topN > len(rows) {
		topN = len(rows)
	}

	for _, r := range rows[:topN] {
		row := sheet.AddRow()
		row.AddCell().SetString(r.GEOID)
		row.AddCell().SetString(r.Tract)
		row.AddCell().SetString(r.State)
		for _, v := range []*float64{
			r.IndexRaw, r.IndexPctile5, r.IndexPctile4,
			r.IndexPctileBest, r.PCAIndex, r.PCAPctileIndex,
		} {
			if v != nil {
				row.AddCell().SetFloat(*v)
			} else {
				row.AddCell().SetString("")
			}
		}
	}

	return nil
}
