package valuation

import (
	"gonum.org/v1/gonum/floats"

	"github.com/komsit37/fv/pkg/fv/projection"
)

// DCFRow is one projected year of a discounted cash flow model.
type DCFRow struct {
	Year           int     `json:"year"`
	CashFlow       float64 `json:"cash_flow"`
	DiscountFactor float64 `json:"discount_factor"`
	PresentValue   float64 `json:"present_value"`
}

// DCFResult is the outcome of EvaluateDCF.
type DCFResult struct {
	Rows           []DCFRow `json:"rows"`
	SumPV          float64  `json:"sum_pv"`
	TerminalValue  float64  `json:"terminal_value"`
	PVTerminal     float64  `json:"pv_terminal"`
	IntrinsicValue float64  `json:"intrinsic_value"`

	// UpsidePct compares IntrinsicValue with the current price when known.
	UpsidePct float64 `json:"upside_pct"`
	HasUpside bool    `json:"has_upside"`
}

// EvaluateDCF discounts a.Years of cash flows grown from a.BaseMetric at the
// discount rate a.Rate and adds a terminal value of a.Multiple times the
// final year's cash flow, also discounted.
//
// A zero discount rate is valid. A rate of -100% or any overflow returns
// the zero DCFResult and an error wrapping ErrDegenerate.
func EvaluateDCF(a Assumptions) (DCFResult, error) {
	if a.Years < 0 {
		return DCFResult{}, degenerate("negative horizon")
	}

	rows := make([]DCFRow, 0, a.Years)
	pvs := make([]float64, 0, a.Years)
	for y := 1; y <= a.Years; y++ {
		cf := projection.Compound(a.BaseMetric, a.GrowthRate, y)
		df := projection.DiscountFactor(a.Rate, y)
		pv := cf * df
		rows = append(rows, DCFRow{Year: y, CashFlow: cf, DiscountFactor: df, PresentValue: pv})
		pvs = append(pvs, pv)
	}

	finalCF := projection.Compound(a.BaseMetric, a.GrowthRate, a.Years)
	terminal := finalCF * a.Multiple
	pvTerminal := terminal * projection.DiscountFactor(a.Rate, a.Years)
	sum := floats.Sum(pvs)
	intrinsic := sum + pvTerminal
	if !projection.Finite(sum, terminal, pvTerminal, intrinsic) {
		return DCFResult{}, degenerate("intrinsic value")
	}

	res := DCFResult{
		Rows:           rows,
		SumPV:          sum,
		TerminalValue:  terminal,
		PVTerminal:     pvTerminal,
		IntrinsicValue: intrinsic,
	}
	if a.CurrentPrice > 0 {
		res.UpsidePct = (intrinsic - a.CurrentPrice) / a.CurrentPrice * 100
		res.HasUpside = true
	}
	return res, nil
}
