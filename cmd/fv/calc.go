package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/komsit37/fv/pkg/fv/quote"
	"github.com/komsit37/fv/pkg/fv/source"
	"github.com/komsit37/fv/pkg/fv/types"
	"github.com/komsit37/fv/pkg/fv/valuation"
)

type calcFlags struct {
	base, growth, multiple, rate, price float64
	years                               int
	metric                              string
}

// newCalcCmd builds one of the single-scenario calculators. Preset values
// come from the config and are overridden by flags that were set.
func newCalcCmd(a *app, preset string, method valuation.Method, short string) *cobra.Command {
	var f calcFlags
	multipleHelp, rateHelp := "exit multiple", "desired annual return in percent"
	if method == valuation.MethodDCF {
		multipleHelp, rateHelp = "terminal multiple", "discount rate (WACC) in percent"
	}

	cmd := &cobra.Command{
		Use:   preset + " [SYM]",
		Short: short,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, ok := a.cfg.Preset(preset)
			if !ok {
				return fmt.Errorf("no preset %q", preset)
			}
			fs := cmd.Flags()
			if fs.Changed("base") {
				p.Base = f.base
			}
			if fs.Changed("growth") {
				p.Growth = f.growth
			}
			if fs.Changed("multiple") {
				p.Multiple = f.multiple
			}
			if fs.Changed("rate") {
				p.Rate = f.rate
			}
			if fs.Changed("years") {
				p.Years = f.years
			}
			if fs.Changed("metric") {
				p.Metric = f.metric
			}

			sc := types.Scenario{
				Name:        preset,
				Method:      method,
				MetricLabel: p.Metric,
				Assumptions: p.Assumptions(),
			}
			sc.Assumptions.CurrentPrice = f.price
			if len(args) == 1 {
				sc.Sym = quote.Normalize(args[0])
				sc.Name = strings.ToLower(sc.Sym) + "-" + preset
			}

			r, err := a.runner(cmd.OutOrStdout())
			if err != nil {
				return err
			}
			r.Source = source.Static{sc}
			opts := a.executeOptions(cmd.OutOrStdout())
			if !changed(cmd.Flags(), "series") && !a.v.InConfig("series") {
				opts.Series = true
			}
			reports, err := r.Execute(cmd.Context(), nil, opts)
			if err != nil {
				return err
			}
			return checkReports(reports)
		},
	}

	fl := cmd.Flags()
	fl.Float64Var(&f.base, "base", 0, "base metric per share at year 0; 0 fetches EPS from the provider")
	fl.Float64Var(&f.growth, "growth", 0, "annual growth rate in percent")
	fl.Float64Var(&f.multiple, "multiple", 0, multipleHelp)
	fl.Float64Var(&f.rate, "rate", 0, rateHelp)
	fl.IntVar(&f.years, "years", 0, "projection horizon in years")
	fl.Float64Var(&f.price, "price", 0, "current price; fetched from the provider when omitted")
	fl.StringVar(&f.metric, "metric", "", "label of the base metric")
	return cmd
}

