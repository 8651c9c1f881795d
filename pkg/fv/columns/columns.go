package columns

import (
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/komsit37/fv/pkg/fv/projection"
	"github.com/komsit37/fv/pkg/fv/types"
	"github.com/komsit37/fv/pkg/fv/valuation"
)

// Resolver renders one column of a report. Undefined values render as "".
type Resolver func(r types.Report) string

// Registry maps column keys to resolvers.
var Registry = map[string]Resolver{}

// Status values of the "status" column.
const (
	StatusUnderpriced = "Underpriced"
	StatusOverpriced  = "Overpriced"
	StatusError       = "Error"
)

func init() {
	Registry["name"] = func(r types.Report) string { return r.Scenario.Name }
	Registry["sym"] = func(r types.Report) string { return r.Scenario.Sym }
	Registry["company"] = func(r types.Report) string { return r.Quote.Name }
	Registry["method"] = func(r types.Report) string { return string(r.Scenario.Method) }
	Registry["metric"] = func(r types.Report) string {
		a := r.Scenario.Assumptions
		if a.BaseMetric == 0 {
			return r.Scenario.MetricLabel
		}
		return strings.TrimSpace(r.Scenario.MetricLabel + " " + FormatMoney(a.BaseMetric))
	}
	Registry["growth%"] = func(r types.Report) string { return FormatPct(r.Scenario.Assumptions.GrowthRate * 100) }
	Registry["years"] = func(r types.Report) string { return strconv.Itoa(r.Scenario.Assumptions.Years) }
	Registry["multiple"] = func(r types.Report) string { return FormatFloat(r.Scenario.Assumptions.Multiple, 1) }
	// desired return or discount rate, depending on the method
	Registry["rate%"] = func(r types.Report) string { return FormatPct(r.Scenario.Assumptions.Rate * 100) }
	Registry["price"] = func(r types.Report) string {
		if r.Scenario.Assumptions.CurrentPrice <= 0 {
			return ""
		}
		return FormatMoney(r.Scenario.Assumptions.CurrentPrice)
	}
	Registry["fair"] = func(r types.Report) string {
		v, ok := r.Value()
		if !ok {
			return ""
		}
		return FormatMoney(v)
	}
	Registry["future"] = func(r types.Report) string {
		if r.Err == nil && r.Multiple != nil {
			return FormatMoney(r.Multiple.FuturePrice)
		}
		return ""
	}
	Registry["implied%"] = func(r types.Report) string {
		if r.Err != nil || r.Multiple == nil || !r.Multiple.HasImpliedReturn {
			return ""
		}
		return FormatPct(r.Multiple.ImpliedReturnPct)
	}
	Registry["margin%"] = func(r types.Report) string {
		switch {
		case r.Err != nil:
			return ""
		case r.Multiple != nil && r.Multiple.HasMargin:
			return FormatPct(r.Multiple.MarginOfSafetyPct)
		case r.DCF != nil && r.DCF.HasUpside:
			return FormatPct(r.DCF.UpsidePct)
		}
		return ""
	}
	Registry["sum_pv"] = func(r types.Report) string {
		if r.Err == nil && r.DCF != nil {
			return FormatMoney(r.DCF.SumPV)
		}
		return ""
	}
	Registry["terminal"] = func(r types.Report) string {
		if r.Err == nil && r.DCF != nil {
			return FormatMoney(r.DCF.TerminalValue)
		}
		return ""
	}
	Registry["pv_terminal"] = func(r types.Report) string {
		if r.Err == nil && r.DCF != nil {
			return FormatMoney(r.DCF.PVTerminal)
		}
		return ""
	}
	Registry["status"] = Status
	Registry["error"] = func(r types.Report) string {
		if r.Err != nil {
			return r.Err.Error()
		}
		if r.QuoteErr != nil {
			return r.QuoteErr.Error()
		}
		return ""
	}
}

// Status compares the estimate with the current price.
func Status(r types.Report) string {
	if r.Err != nil {
		return StatusError
	}
	v, ok := r.Value()
	price := r.Scenario.Assumptions.CurrentPrice
	if !ok || price <= 0 {
		return ""
	}
	if price < v {
		return StatusUnderpriced
	}
	return StatusOverpriced
}

// Compute determines the final column list. Explicit entries may name
// columns or sets; with none, the set matching the reports' methods is
// used.
func Compute(explicit []string, reports []types.Report) ([]string, error) {
	if len(explicit) == 0 {
		explicit = []string{defaultSet(reports)}
	}
	seen := map[string]struct{}{}
	out := make([]string, 0, len(explicit))
	add := func(k string) {
		if _, ok := seen[k]; ok {
			return
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	for _, k := range explicit {
		k = strings.TrimSpace(k)
		if k == "" {
			continue
		}
		if _, ok := Sets[k]; ok {
			cols, err := ExpandSets([]string{k})
			if err != nil {
				return nil, err
			}
			for _, c := range cols {
				add(c)
			}
			continue
		}
		if _, ok := Registry[k]; !ok {
			return nil, &UnknownColumnError{Name: k}
		}
		add(k)
	}
	return out, nil
}

func defaultSet(reports []types.Report) string {
	var multiple, dcf bool
	for _, r := range reports {
		switch r.Scenario.Method {
		case valuation.MethodDCF:
			dcf = true
		default:
			multiple = true
		}
	}
	switch {
	case multiple && !dcf:
		return "exit-multiple"
	case dcf && !multiple:
		return "dcf"
	}
	return "summary"
}

// RenderValue calls the resolver for the given column.
func RenderValue(col string, r types.Report) string {
	if res, ok := Registry[col]; ok {
		return res(r)
	}
	return ""
}

// UnknownColumnError reports a column key missing from Registry.
type UnknownColumnError struct {
	Name string
}

func (e *UnknownColumnError) Error() string {
	return "unknown column: " + e.Name
}

// FormatMoney rounds half away from zero to cents and groups thousands.
// NaN and infinities render as "".
func FormatMoney(v float64) string {
	return FormatFloat(v, 2)
}

// FormatPct renders a percentage with two decimals.
func FormatPct(v float64) string {
	if !projection.Finite(v) {
		return ""
	}
	return decimal.NewFromFloat(v).StringFixed(2) + "%"
}

// FormatFloat renders v with a fixed number of decimals and grouped thousands.
func FormatFloat(v float64, decimals int32) string {
	if !projection.Finite(v) {
		return ""
	}
	return groupThousands(decimal.NewFromFloat(v).StringFixed(decimals))
}

// groupThousands inserts comma separators into the integer part of s.
func groupThousands(s string) string {
	sign := ""
	if strings.HasPrefix(s, "-") || strings.HasPrefix(s, "+") {
		sign, s = s[:1], s[1:]
	}
	intPart, fracPart := s, ""
	if dot := strings.IndexByte(s, '.'); dot >= 0 {
		intPart, fracPart = s[:dot], s[dot:]
	}
	n := len(intPart)
	if n <= 3 {
		return sign + intPart + fracPart
	}
	out := make([]byte, 0, n+n/3)
	rem := n % 3
	if rem == 0 {
		rem = 3
	}
	out = append(out, intPart[:rem]...)
	for i := rem; i < n; i += 3 {
		out = append(out, ',')
		out = append(out, intPart[i:i+3]...)
	}
	return sign + string(out) + fracPart
}
