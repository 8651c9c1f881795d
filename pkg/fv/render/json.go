package render

import (
	"encoding/json"
	"io"

	"github.com/komsit37/fv/pkg/fv/columns"
	"github.com/komsit37/fv/pkg/fv/projection"
	"github.com/komsit37/fv/pkg/fv/types"
	"github.com/komsit37/fv/pkg/fv/valuation"
)

// jsonModel is the output shape for JSONRenderer.
type jsonModel struct {
	Name        string                    `json:"name"`
	Sym         string                    `json:"sym,omitempty"`
	Company     string                    `json:"company,omitempty"`
	Method      valuation.Method          `json:"method"`
	MetricLabel string                    `json:"metric_label,omitempty"`
	Assumptions *valuation.Assumptions    `json:"assumptions,omitempty"`
	Multiple    *valuation.MultipleResult `json:"multiple,omitempty"`
	DCF         *valuation.DCFResult      `json:"dcf,omitempty"`
	Status      string                    `json:"status,omitempty"`
	Fields      map[string]string         `json:"fields,omitempty"`
	QuoteError  string                    `json:"quote_error,omitempty"`
	Error       string                    `json:"error,omitempty"`
}

type JSONRenderer struct{}

func NewJSONRenderer() *JSONRenderer { return &JSONRenderer{} }

// Render writes one object per report. Selected columns are added as
// formatted fields next to the raw numbers.
func (r *JSONRenderer) Render(w io.Writer, reports []types.Report, opts RenderOptions) error {
	var cols []string
	if len(opts.Columns) > 0 {
		var err error
		if cols, err = columns.Compute(opts.Columns, reports); err != nil {
			return err
		}
	}

	out := make([]jsonModel, 0, len(reports))
	for _, rep := range reports {
		m := jsonModel{
			Name:        rep.Scenario.Name,
			Sym:         rep.Scenario.Sym,
			Company:     rep.Quote.Name,
			Method:      rep.Scenario.Method,
			MetricLabel: rep.Scenario.MetricLabel,
			Status:      columns.Status(rep),
		}
		// non-finite inputs have no JSON form; the error explains them
		if a := rep.Scenario.Assumptions; projection.Finite(a.BaseMetric, a.GrowthRate, a.Multiple, a.Rate, a.CurrentPrice) {
			m.Assumptions = &a
		}
		if rep.Err != nil {
			m.Error = rep.Err.Error()
		} else {
			m.Multiple = rep.Multiple
			m.DCF = rep.DCF
		}
		if rep.QuoteErr != nil {
			m.QuoteError = rep.QuoteErr.Error()
		}
		if len(cols) > 0 {
			m.Fields = make(map[string]string, len(cols))
			for _, c := range cols {
				m.Fields[c] = columns.RenderValue(c, rep)
			}
		}
		out = append(out, m)
	}
	enc := json.NewEncoder(w)
	if opts.PrettyJSON {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(out)
}
