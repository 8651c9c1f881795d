package valuation

import (
	"math"
	"sort"

	"github.com/komsit37/fv/pkg/fv/projection"
)

// PointKind tags a point of a price series.
type PointKind string

const (
	KindProjected PointKind = "projected"
	KindCurrent   PointKind = "current"
	KindTarget    PointKind = "target"
)

// SeriesPoint is one point of the chart series of the multiple method.
// Marker points (current, target) carry a zero Metric.
type SeriesPoint struct {
	Year   int       `json:"year"`
	Metric float64   `json:"metric"`
	Price  float64   `json:"price"`
	Kind   PointKind `json:"kind"`
}

// MultipleResult is the outcome of EvaluateMultiple.
type MultipleResult struct {
	FutureMetric float64 `json:"future_metric"`
	FuturePrice  float64 `json:"future_price"`
	FairValue    float64 `json:"fair_value"`

	// ImpliedReturnPct is the annualized return, in percent, of buying at
	// the current price and selling at FuturePrice. It is only set when
	// HasImpliedReturn is true; otherwise it is 0 and means "unknown".
	ImpliedReturnPct float64 `json:"implied_return_pct"`
	HasImpliedReturn bool    `json:"has_implied_return"`
	// MeetsTarget is true when the implied return reaches the desired return.
	MeetsTarget bool `json:"meets_target"`

	MarginOfSafetyPct float64 `json:"margin_of_safety_pct"`
	HasMargin         bool    `json:"has_margin"`

	Series []SeriesPoint `json:"series"`
}

// EvaluateMultiple values a stock by applying a.Multiple to the metric
// projected a.Years ahead and discounting that target price at the desired
// return a.Rate.
//
// When no finite answer exists (a zero horizon with a known price, a -100%
// desired return, overflow) the zero MultipleResult is returned together
// with an error wrapping ErrDegenerate.
func EvaluateMultiple(a Assumptions) (MultipleResult, error) {
	if a.Years < 0 {
		return MultipleResult{}, degenerate("negative horizon")
	}
	n := float64(a.Years)

	futureMetric := projection.Compound(a.BaseMetric, a.GrowthRate, a.Years)
	futurePrice := futureMetric * a.Multiple
	fair := futurePrice * projection.DiscountFactor(a.Rate, a.Years)
	if !projection.Finite(futureMetric, futurePrice, fair) {
		return MultipleResult{}, degenerate("fair value")
	}

	res := MultipleResult{
		FutureMetric: futureMetric,
		FuturePrice:  futurePrice,
		FairValue:    fair,
	}

	if a.CurrentPrice > 0 {
		if a.Years == 0 {
			return MultipleResult{}, degenerate("implied return over a zero-year horizon")
		}
		implied := (math.Pow(futurePrice/a.CurrentPrice, 1/n) - 1) * 100
		margin := (fair - a.CurrentPrice) / a.CurrentPrice * 100
		if !projection.Finite(implied, margin) {
			return MultipleResult{}, degenerate("implied return")
		}
		res.ImpliedReturnPct = implied
		res.HasImpliedReturn = true
		res.MeetsTarget = implied >= a.Rate*100
		res.MarginOfSafetyPct = margin
		res.HasMargin = true
	}

	res.Series = priceSeries(a, futurePrice)
	return res, nil
}

// priceSeries merges the projected prices with the current and target
// markers, ordered by year.
func priceSeries(a Assumptions, futurePrice float64) []SeriesPoint {
	pts := projection.Project(a.BaseMetric, a.GrowthRate, a.Years)
	out := make([]SeriesPoint, 0, len(pts)+2)
	for _, p := range pts {
		out = append(out, SeriesPoint{
			Year:   p.Year,
			Metric: p.Metric,
			Price:  p.Metric * a.Multiple,
			Kind:   KindProjected,
		})
	}
	if a.CurrentPrice > 0 {
		out = append(out, SeriesPoint{Year: 0, Price: a.CurrentPrice, Kind: KindCurrent})
	}
	out = append(out, SeriesPoint{Year: a.Years, Price: futurePrice, Kind: KindTarget})
	sort.SliceStable(out, func(i, j int) bool { return out[i].Year < out[j].Year })
	return out
}
