package render

import (
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/komsit37/fv/pkg/fv/columns"
	"github.com/komsit37/fv/pkg/fv/types"
	"github.com/komsit37/fv/pkg/fv/valuation"
)

// numeric columns are right aligned
var rightAligned = map[string]bool{
	"metric": true, "growth%": true, "years": true, "multiple": true, "rate%": true,
	"price": true, "fair": true, "future": true, "implied%": true, "margin%": true,
	"sum_pv": true, "terminal": true, "pv_terminal": true,
}

var moneyColumns = map[string]bool{
	"price": true, "fair": true, "future": true, "sum_pv": true, "terminal": true, "pv_terminal": true,
}

type TableRenderer struct{}

func NewTableRenderer() *TableRenderer { return &TableRenderer{} }

func (r *TableRenderer) Render(w io.Writer, reports []types.Report, opts RenderOptions) error {
	cols, err := columns.Compute(opts.Columns, reports)
	if err != nil {
		return err
	}

	tw := newWriter(w, opts)
	hdr := make(table.Row, len(cols))
	for i, c := range cols {
		h := strings.ToUpper(c)
		if opts.Currency != "" && moneyColumns[c] {
			h += " (" + opts.Currency + ")"
		}
		hdr[i] = h
	}
	tw.AppendHeader(hdr)
	tw.SetColumnConfigs(columnConfigs(cols, opts))

	for _, rep := range reports {
		row := make(table.Row, len(cols))
		for i, c := range cols {
			v := columns.RenderValue(c, rep)
			if opts.Color {
				v = colorize(c, v, rep)
			}
			row[i] = v
		}
		tw.AppendRow(row)
	}
	tw.Render()

	if opts.Series {
		for _, rep := range reports {
			if !rep.OK() {
				continue
			}
			fmt.Fprintln(w)
			fmt.Fprintln(w, title(rep, opts))
			switch {
			case rep.Multiple != nil:
				renderPriceSeries(w, rep, opts)
			case rep.DCF != nil:
				renderDCFRows(w, rep, opts)
			}
		}
	}

	return renderNotes(w, reports, opts)
}

func newWriter(w io.Writer, opts RenderOptions) table.Writer {
	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	if opts.Color {
		tw.SetStyle(table.StyleColoredDark)
	} else {
		tw.SetStyle(table.StyleLight)
	}
	tw.Style().Options.DrawBorder = false
	tw.Style().Options.SeparateRows = false
	tw.Style().Options.SeparateColumns = false
	return tw
}

func columnConfigs(cols []string, opts RenderOptions) []table.ColumnConfig {
	maxWidth := opts.MaxColWidth
	if maxWidth <= 0 {
		maxWidth = 40
	}
	cfgs := make([]table.ColumnConfig, 0, len(cols))
	for i, c := range cols {
		cfg := table.ColumnConfig{Number: i + 1, WidthMax: maxWidth}
		if rightAligned[c] {
			cfg.Align = text.AlignRight
			cfg.AlignHeader = text.AlignRight
		}
		cfgs = append(cfgs, cfg)
	}
	return cfgs
}

// colorize marks returns against the target and the valuation status.
func colorize(col, v string, rep types.Report) string {
	if v == "" {
		return v
	}
	switch col {
	case "implied%":
		if rep.Multiple != nil && rep.Multiple.MeetsTarget {
			return text.Colors{text.FgGreen}.Sprint(v)
		}
		return text.Colors{text.FgRed}.Sprint(v)
	case "margin%":
		if strings.HasPrefix(v, "-") {
			return text.Colors{text.FgRed}.Sprint(v)
		}
		return text.Colors{text.FgGreen}.Sprint(v)
	case "status":
		switch v {
		case columns.StatusUnderpriced:
			return text.Colors{text.FgGreen}.Sprint(v)
		case columns.StatusOverpriced, columns.StatusError:
			return text.Colors{text.FgRed}.Sprint(v)
		}
	}
	return v
}

func title(rep types.Report, opts RenderOptions) string {
	name := strings.ToUpper(rep.Scenario.Name)
	a := rep.Scenario.Assumptions
	s := fmt.Sprintf("%s: %d-year projection", name, a.Years)
	if rep.Scenario.MetricLabel != "" {
		s += " of " + rep.Scenario.MetricLabel
	}
	if opts.Color {
		return text.Bold.Sprint(s)
	}
	return s
}

func renderPriceSeries(w io.Writer, rep types.Report, opts RenderOptions) {
	tw := newWriter(w, opts)
	metric := strings.ToUpper(rep.Scenario.MetricLabel)
	if metric == "" {
		metric = "METRIC"
	}
	tw.AppendHeader(table.Row{"YEAR", metric, "PRICE", "KIND"})
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignRight},
		{Number: 2, Align: text.AlignRight, AlignHeader: text.AlignRight},
		{Number: 3, Align: text.AlignRight, AlignHeader: text.AlignRight},
	})
	for _, p := range rep.Multiple.Series {
		m := ""
		if p.Kind == valuation.KindProjected {
			m = columns.FormatMoney(p.Metric)
		}
		tw.AppendRow(table.Row{p.Year, m, columns.FormatMoney(p.Price), string(p.Kind)})
	}
	tw.AppendFooter(table.Row{"", "FAIR VALUE", columns.FormatMoney(rep.Multiple.FairValue), ""})
	tw.Render()
}

func renderDCFRows(w io.Writer, rep types.Report, opts RenderOptions) {
	d := rep.DCF
	tw := newWriter(w, opts)
	tw.AppendHeader(table.Row{"YEAR", "CASH FLOW", "DISCOUNT", "PRESENT VALUE"})
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignRight},
		{Number: 2, Align: text.AlignRight, AlignHeader: text.AlignRight},
		{Number: 3, Align: text.AlignRight, AlignHeader: text.AlignRight},
		{Number: 4, Align: text.AlignRight, AlignHeader: text.AlignRight},
	})
	for _, row := range d.Rows {
		tw.AppendRow(table.Row{
			row.Year,
			columns.FormatMoney(row.CashFlow),
			columns.FormatFloat(row.DiscountFactor, 4),
			columns.FormatMoney(row.PresentValue),
		})
	}
	tw.AppendFooter(table.Row{"", "", "SUM PV", columns.FormatMoney(d.SumPV)})
	tw.AppendFooter(table.Row{"", "", "PV TERMINAL", columns.FormatMoney(d.PVTerminal)})
	tw.AppendFooter(table.Row{"", "", "INTRINSIC", columns.FormatMoney(d.IntrinsicValue)})
	tw.Render()
}

// renderNotes lists failures below the tables.
func renderNotes(w io.Writer, reports []types.Report, opts RenderOptions) error {
	var notes []string
	for _, rep := range reports {
		if rep.Err != nil {
			notes = append(notes, fmt.Sprintf("%s: %v", rep.Scenario.Name, rep.Err))
		}
		if rep.QuoteErr != nil {
			notes = append(notes, fmt.Sprintf("%s: price unavailable (%v)", rep.Scenario.Name, rep.QuoteErr))
		}
	}
	if len(notes) == 0 {
		return nil
	}
	if _, err := fmt.Fprintln(w); err != nil {
		return err
	}
	for _, n := range notes {
		if opts.Color {
			n = text.Colors{text.FgYellow}.Sprint(n)
		}
		if _, err := fmt.Fprintln(w, "! "+n); err != nil {
			return err
		}
	}
	return nil
}
