package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"github.com/komsit37/fv/pkg/fv/columns"
	"github.com/komsit37/fv/pkg/fv/quote"
)

func newQuoteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "quote SYM...",
		Short: "Fetch current prices and EPS from the quote provider",
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return errNoSymbols
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.quotes == nil {
				return fmt.Errorf("provider %q does not fetch quotes", a.cfg.Provider)
			}
			results := make([]quote.Result, 0, len(args))
			failed := 0
			for _, sym := range args {
				res := a.lookup(cmd, sym)
				if res.Err != nil {
					failed++
					a.log.Warn().Err(res.Err).Msg("quote failed")
				}
				results = append(results, res)
			}

			w := cmd.OutOrStdout()
			var err error
			if strings.EqualFold(a.cfg.Format, "json") {
				err = writeQuotesJSON(w, results)
			} else {
				err = writeQuotesTable(w, results, a.executeOptions(w).Color)
			}
			if err != nil {
				return err
			}
			if failed == len(results) {
				return fmt.Errorf("no quotes fetched")
			}
			return nil
		},
	}
}

func (a *app) lookup(cmd *cobra.Command, sym string) quote.Result {
	ctx, cancel := context.WithTimeout(cmd.Context(), a.cfg.Timeout)
	defer cancel()
	return quote.Lookup(ctx, a.quotes, sym, quote.NeedPrice|quote.NeedMetric)
}

type quoteJSON struct {
	Sym      string   `json:"sym"`
	Name     string   `json:"name,omitempty"`
	Price    float64  `json:"price,omitempty"`
	EPS      *float64 `json:"eps,omitempty"`
	Currency string   `json:"currency,omitempty"`
	Error    string   `json:"error,omitempty"`
}

func writeQuotesJSON(w io.Writer, results []quote.Result) error {
	out := make([]quoteJSON, 0, len(results))
	for _, r := range results {
		q := quoteJSON{Sym: r.Quote.Sym, Name: r.Quote.Name, Price: r.Quote.Price, EPS: r.Quote.Metric, Currency: r.Quote.Currency}
		if r.Err != nil {
			q.Error = r.Err.Error()
		}
		out = append(out, q)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func writeQuotesTable(w io.Writer, results []quote.Result, color bool) error {
	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	if color {
		tw.SetStyle(table.StyleColoredDark)
	} else {
		tw.SetStyle(table.StyleLight)
	}
	tw.Style().Options.DrawBorder = false
	tw.Style().Options.SeparateRows = false
	tw.Style().Options.SeparateColumns = false
	tw.AppendHeader(table.Row{"SYM", "NAME", "PRICE", "EPS", "CCY", "ERROR"})
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 3, Align: text.AlignRight, AlignHeader: text.AlignRight},
		{Number: 4, Align: text.AlignRight, AlignHeader: text.AlignRight},
	})
	for _, r := range results {
		price, eps, errMsg := "", "", ""
		if r.HasPrice() {
			price = columns.FormatMoney(r.Quote.Price)
		}
		if r.Quote.Metric != nil {
			eps = columns.FormatMoney(*r.Quote.Metric)
		}
		if r.Err != nil {
			errMsg = r.Err.Error()
			if color {
				errMsg = text.Colors{text.FgRed}.Sprint(errMsg)
			}
		}
		tw.AppendRow(table.Row{r.Quote.Sym, r.Quote.Name, price, eps, r.Quote.Currency, errMsg})
	}
	tw.Render()
	return nil
}
