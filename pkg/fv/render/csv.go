package render

import (
	"io"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/komsit37/fv/pkg/fv/columns"
	"github.com/komsit37/fv/pkg/fv/types"
)

// CSVRenderer writes the selected columns as CSV, one row per report.
type CSVRenderer struct{}

func NewCSVRenderer() *CSVRenderer { return &CSVRenderer{} }

func (r *CSVRenderer) Render(w io.Writer, reports []types.Report, opts RenderOptions) error {
	cols, err := columns.Compute(opts.Columns, reports)
	if err != nil {
		return err
	}
	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	hdr := make(table.Row, len(cols))
	for i, c := range cols {
		hdr[i] = c
	}
	tw.AppendHeader(hdr)
	for _, rep := range reports {
		row := make(table.Row, len(cols))
		for i, c := range cols {
			row[i] = columns.RenderValue(c, rep)
		}
		tw.AppendRow(row)
	}
	tw.RenderCSV()
	return nil
}
