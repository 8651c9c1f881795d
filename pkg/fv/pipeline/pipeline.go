// Package pipeline wires scenario sources, quote lookups, the valuation
// models and renderers together.
package pipeline

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/komsit37/fv/pkg/fv/columns"
	"github.com/komsit37/fv/pkg/fv/filter"
	"github.com/komsit37/fv/pkg/fv/quote"
	"github.com/komsit37/fv/pkg/fv/render"
	"github.com/komsit37/fv/pkg/fv/source"
	"github.com/komsit37/fv/pkg/fv/types"
	"github.com/komsit37/fv/pkg/fv/valuation"
)

type Runner struct {
	Source   source.Source
	Quotes   quote.Provider // nil means manual prices only
	Renderer render.Renderer
	Writer   io.Writer
	Log      zerolog.Logger
	Timeout  time.Duration // per quote lookup; 0 means no extra deadline
}

type ExecuteOptions struct {
	Columns         []string
	Filter          filter.Filter
	Color           bool
	PrettyJSON      bool
	Series          bool
	Currency        string
	MaxColWidth     int
	OnlyUnderpriced bool
}

// Execute loads, filters, evaluates and renders scenarios. Individual
// scenario failures end up on their reports; only load and render errors
// are returned.
func (r *Runner) Execute(ctx context.Context, spec any, opts ExecuteOptions) ([]types.Report, error) {
	scenarios, err := r.Source.Load(ctx, spec)
	if err != nil {
		return nil, err
	}
	scenarios = filter.Apply(opts.Filter, scenarios)
	r.Log.Debug().Int("scenarios", len(scenarios)).Msg("loaded")

	reports := r.EvaluateAll(ctx, scenarios)
	if opts.OnlyUnderpriced {
		kept := reports[:0]
		for _, rep := range reports {
			if columns.Status(rep) == columns.StatusUnderpriced {
				kept = append(kept, rep)
			}
		}
		reports = kept
	}

	err = r.Renderer.Render(r.Writer, reports, render.RenderOptions{
		Columns:     opts.Columns,
		Color:       opts.Color,
		PrettyJSON:  opts.PrettyJSON,
		Series:      opts.Series,
		Currency:    opts.Currency,
		MaxColWidth: opts.MaxColWidth,
	})
	return reports, err
}

// EvaluateAll evaluates scenarios in order.
func (r *Runner) EvaluateAll(ctx context.Context, scenarios []types.Scenario) []types.Report {
	out := make([]types.Report, 0, len(scenarios))
	for _, sc := range scenarios {
		out = append(out, r.Evaluate(ctx, sc))
	}
	return out
}

// Evaluate runs a single scenario. A missing price, and a missing EPS for
// EPS scenarios, are fetched from the quote provider first. Provider
// failures are recorded on Report.QuoteErr and the scenario continues with
// what it has.
func (r *Runner) Evaluate(ctx context.Context, sc types.Scenario) types.Report {
	rep := types.Report{Scenario: sc}
	a := sc.Assumptions

	need := quote.NeedNone
	if a.CurrentPrice <= 0 {
		need |= quote.NeedPrice
	}
	if a.BaseMetric <= 0 && fetchableMetric(sc) {
		need |= quote.NeedMetric
	}
	if need != quote.NeedNone && sc.Sym != "" && r.Quotes != nil {
		res := r.lookup(ctx, sc.Sym, need)
		rep.Quote = res.Quote
		if res.Err != nil {
			rep.QuoteErr = res.Err
			r.Log.Warn().Err(res.Err).Str("scenario", sc.Name).Msg("quote unavailable, continuing without it")
		}
		if need&quote.NeedPrice != 0 && res.HasPrice() {
			a.CurrentPrice = res.Quote.Price
		}
		if need&quote.NeedMetric != 0 && res.HasMetric() {
			a.BaseMetric = *res.Quote.Metric
		}
	}
	rep.Scenario.Assumptions = a

	if err := valuation.Validate(sc.Method, a); err != nil {
		rep.Err = err
		r.Log.Debug().Err(err).Str("scenario", sc.Name).Msg("invalid input")
		return rep
	}

	switch sc.Method {
	case valuation.MethodDCF:
		res, err := valuation.EvaluateDCF(a)
		if err != nil {
			rep.Err = err
			break
		}
		rep.DCF = &res
	default:
		res, err := valuation.EvaluateMultiple(a)
		if err != nil {
			rep.Err = err
			break
		}
		rep.Multiple = &res
	}
	if rep.Err != nil && errors.Is(rep.Err, valuation.ErrDegenerate) {
		r.Log.Warn().Err(rep.Err).Str("scenario", sc.Name).Msg("no finite valuation")
	}
	return rep
}

func (r *Runner) lookup(ctx context.Context, sym string, need quote.Need) quote.Result {
	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}
	start := time.Now()
	res := quote.Lookup(ctx, r.Quotes, sym, need)
	r.Log.Debug().Str("sym", res.Quote.Sym).Dur("took", time.Since(start)).Bool("price", res.HasPrice()).Msg("quote")
	return res
}

// Providers only know EPS, so other metrics are never filled from quotes.
func fetchableMetric(sc types.Scenario) bool {
	switch strings.ToUpper(strings.TrimSpace(sc.MetricLabel)) {
	case "", "EPS":
		return sc.Method != valuation.MethodDCF
	}
	return false
}
