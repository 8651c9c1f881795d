package pipeline

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/komsit37/fv/pkg/fv/filter"
	"github.com/komsit37/fv/pkg/fv/quote"
	"github.com/komsit37/fv/pkg/fv/render"
	"github.com/komsit37/fv/pkg/fv/source"
	"github.com/komsit37/fv/pkg/fv/types"
	"github.com/komsit37/fv/pkg/fv/valuation"
)

type recordingRenderer struct {
	reports []types.Report
	opts    render.RenderOptions
}

func (r *recordingRenderer) Render(_ io.Writer, reports []types.Report, opts render.RenderOptions) error {
	r.reports = reports
	r.opts = opts
	return nil
}

type countingProvider struct {
	quote.Provider
	calls []quote.Need
}

func (c *countingProvider) Fetch(ctx context.Context, sym string, need quote.Need) (types.Quote, error) {
	c.calls = append(c.calls, need)
	return c.Provider.Fetch(ctx, sym, need)
}

type slowProvider struct{}

func (slowProvider) Fetch(ctx context.Context, _ string, _ quote.Need) (types.Quote, error) {
	<-ctx.Done()
	return types.Quote{}, ctx.Err()
}

func eps(v float64) *float64 { return &v }

var scenarioA = types.Scenario{
	Name:        "apple-eps",
	Sym:         "aapl",
	Method:      valuation.MethodMultiple,
	MetricLabel: "EPS",
	Assumptions: valuation.Assumptions{BaseMetric: 7.5, GrowthRate: 0.10, Years: 5, Multiple: 20, Rate: 0.15},
}

var scenarioB = types.Scenario{
	Name:        "ko-dcf",
	Sym:         "KO",
	Method:      valuation.MethodDCF,
	MetricLabel: "FCF/share",
	Assumptions: valuation.Assumptions{BaseMetric: 2, GrowthRate: 0.05, Years: 3, Multiple: 10, Rate: 0.10},
}

func TestEvaluateFillsPrice(t *testing.T) {
	p := &countingProvider{Provider: quote.StaticProvider{"AAPL": {Sym: "AAPL", Name: "Apple Inc.", Price: 100}}}
	r := &Runner{Quotes: p, Log: zerolog.Nop()}

	rep := r.Evaluate(context.Background(), scenarioA)
	require.NoError(t, rep.Err)
	require.NoError(t, rep.QuoteErr)
	require.NotNil(t, rep.Multiple)
	assert.Equal(t, []quote.Need{quote.NeedPrice}, p.calls)
	assert.Equal(t, 100.0, rep.Scenario.Assumptions.CurrentPrice)
	assert.Equal(t, "Apple Inc.", rep.Quote.Name)
	assert.True(t, rep.Multiple.HasMargin)
	assert.InDelta(t, 20.106, rep.Multiple.MarginOfSafetyPct, 1e-2)
}

func TestEvaluateManualPriceSkipsProvider(t *testing.T) {
	p := &countingProvider{Provider: quote.StaticProvider{}}
	r := &Runner{Quotes: p, Log: zerolog.Nop()}

	sc := scenarioA
	sc.Assumptions.CurrentPrice = 150
	rep := r.Evaluate(context.Background(), sc)
	require.NoError(t, rep.Err)
	assert.Empty(t, p.calls)
	assert.InDelta(t, 10.0, rep.Multiple.ImpliedReturnPct, 1e-9)
}

func TestEvaluateFillsEPS(t *testing.T) {
	p := &countingProvider{Provider: quote.StaticProvider{"AAPL": {Price: 150, Metric: eps(7.5)}}}
	r := &Runner{Quotes: p, Log: zerolog.Nop()}

	sc := scenarioA
	sc.Assumptions.BaseMetric = 0
	rep := r.Evaluate(context.Background(), sc)
	require.NoError(t, rep.Err)
	assert.Equal(t, []quote.Need{quote.NeedPrice | quote.NeedMetric}, p.calls)
	assert.Equal(t, 7.5, rep.Scenario.Assumptions.BaseMetric)
	assert.InDelta(t, 120.106, rep.Multiple.FairValue, 1e-3)
}

func TestEvaluateNeverFillsFCFFromQuote(t *testing.T) {
	p := &countingProvider{Provider: quote.StaticProvider{"KO": {Price: 25, Metric: eps(3)}}}
	r := &Runner{Quotes: p, Log: zerolog.Nop()}

	sc := scenarioB
	sc.Assumptions.BaseMetric = 0
	rep := r.Evaluate(context.Background(), sc)
	assert.Equal(t, []quote.Need{quote.NeedPrice}, p.calls)
	assert.ErrorIs(t, rep.Err, valuation.ErrInvalidInput)
	assert.Equal(t, 25.0, rep.Scenario.Assumptions.CurrentPrice)
}

func TestEvaluateAbsorbsProviderFailure(t *testing.T) {
	var logs bytes.Buffer
	r := &Runner{Quotes: quote.StaticProvider{}, Log: zerolog.New(&logs)}

	rep := r.Evaluate(context.Background(), scenarioA)
	require.NoError(t, rep.Err)
	require.Error(t, rep.QuoteErr)
	assert.ErrorIs(t, rep.QuoteErr, quote.ErrNotFound)
	require.NotNil(t, rep.Multiple)
	assert.False(t, rep.Multiple.HasImpliedReturn)
	assert.InDelta(t, 120.106, rep.Multiple.FairValue, 1e-3)
	assert.Contains(t, logs.String(), "quote unavailable")
}

func TestEvaluateTimeout(t *testing.T) {
	r := &Runner{Quotes: slowProvider{}, Log: zerolog.Nop(), Timeout: 10 * time.Millisecond}

	rep := r.Evaluate(context.Background(), scenarioB)
	require.NoError(t, rep.Err)
	assert.ErrorIs(t, rep.QuoteErr, context.DeadlineExceeded)
	require.NotNil(t, rep.DCF)
	assert.False(t, rep.DCF.HasUpside)
	assert.InDelta(t, 22.8657, rep.DCF.IntrinsicValue, 1e-3)
}

func TestEvaluateInvalidAndDegenerate(t *testing.T) {
	r := &Runner{Log: zerolog.Nop()}

	bad := scenarioA
	bad.Assumptions.Multiple = 0
	rep := r.Evaluate(context.Background(), bad)
	assert.ErrorIs(t, rep.Err, valuation.ErrInvalidInput)
	assert.Nil(t, rep.Multiple)

	flat := scenarioA
	flat.Assumptions.Years = 0
	flat.Assumptions.CurrentPrice = 150
	rep = r.Evaluate(context.Background(), flat)
	assert.ErrorIs(t, rep.Err, valuation.ErrDegenerate)
	assert.False(t, rep.OK())
}

func TestExecute(t *testing.T) {
	broken := types.Scenario{Name: "broken", Method: valuation.MethodMultiple}
	cheap := scenarioA
	cheap.Name = "cheap"
	cheap.Sym = ""
	cheap.Assumptions.CurrentPrice = 90

	rr := &recordingRenderer{}
	r := &Runner{
		Source:   source.Static{scenarioA, scenarioB, broken, cheap},
		Quotes:   quote.StaticProvider{"AAPL": {Price: 150}, "KO": {Price: 20}},
		Renderer: rr,
		Log:      zerolog.Nop(),
	}

	f, err := filter.Parse("apple-eps,KO,broken,cheap")
	require.NoError(t, err)
	reports, err := r.Execute(context.Background(), nil, ExecuteOptions{Filter: f, Columns: []string{"summary"}, Series: true})
	require.NoError(t, err)
	require.Len(t, reports, 4)
	assert.Equal(t, reports, rr.reports)
	assert.Equal(t, []string{"summary"}, rr.opts.Columns)
	assert.True(t, rr.opts.Series)

	assert.True(t, reports[0].OK())
	assert.True(t, reports[1].OK())
	assert.Error(t, reports[2].Err, "failure does not abort the batch")
	assert.True(t, reports[3].OK())

	// KO at 20 and the manual 90 are below their estimates
	reports, err = r.Execute(context.Background(), nil, ExecuteOptions{OnlyUnderpriced: true})
	require.NoError(t, err)
	names := []string{}
	for _, rep := range reports {
		names = append(names, rep.Scenario.Name)
	}
	assert.Equal(t, []string{"ko-dcf", "cheap"}, names)
}

func TestExecuteErrors(t *testing.T) {
	loadErr := errors.New("boom")
	r := &Runner{Source: failingSource{loadErr}, Renderer: &recordingRenderer{}, Log: zerolog.Nop()}
	_, err := r.Execute(context.Background(), nil, ExecuteOptions{})
	assert.ErrorIs(t, err, loadErr)
}

type failingSource struct{ err error }

func (f failingSource) Load(context.Context, any) ([]types.Scenario, error) { return nil, f.err }
