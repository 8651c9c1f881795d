package types

import (
	"time"

	"github.com/komsit37/fv/pkg/fv/valuation"
)

// Scenario is a named set of assumptions for one security.
type Scenario struct {
	Name        string
	Sym         string
	Method      valuation.Method
	MetricLabel string // display label of BaseMetric, e.g. "EPS" or "FCF/share"
	Assumptions valuation.Assumptions
}

// Quote is what a provider knows about a symbol. Metric is nil when the
// provider has no per-share metric for it.
type Quote struct {
	Sym       string
	Name      string
	Price     float64
	Metric    *float64
	Currency  string
	FetchedAt time.Time
}

// Report is one evaluated scenario.
// QuoteErr records a provider failure that was absorbed; Err records an
// input error or a degenerate calculation. Exactly one of Multiple and DCF
// is set when Err is nil.
type Report struct {
	Scenario Scenario
	Quote    Quote
	QuoteErr error
	Multiple *valuation.MultipleResult
	DCF      *valuation.DCFResult
	Err      error
}

// OK reports whether the scenario was evaluated.
func (r Report) OK() bool { return r.Err == nil && (r.Multiple != nil || r.DCF != nil) }

// Value is the headline estimate: fair value or intrinsic value.
func (r Report) Value() (float64, bool) {
	switch {
	case r.Err != nil:
		return 0, false
	case r.Multiple != nil:
		return r.Multiple.FairValue, true
	case r.DCF != nil:
		return r.DCF.IntrinsicValue, true
	}
	return 0, false
}
