package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/komsit37/fv/pkg/fv/config"
	"github.com/komsit37/fv/pkg/fv/logger"
	"github.com/komsit37/fv/pkg/fv/pipeline"
	"github.com/komsit37/fv/pkg/fv/quote"
	"github.com/komsit37/fv/pkg/fv/render"
	"github.com/komsit37/fv/pkg/fv/types"
	"github.com/komsit37/fv/pkg/fv/valuation"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// app carries the resolved configuration shared by all subcommands.
type app struct {
	v       *viper.Viper
	cfgFile string
	cfg     *config.Config
	log     zerolog.Logger
	quotes  quote.Provider
}

// flag name -> config key
var persistentBindings = map[string]string{
	"format":    "format",
	"columns":   "columns",
	"series":    "series",
	"currency":  "currency",
	"provider":  "provider",
	"api-key":   "api_key",
	"timeout":   "timeout",
	"cache-ttl": "cache_ttl",
	"log-level": "log_level",
}

func newRootCmd() *cobra.Command {
	a := &app{v: viper.New()}

	root := &cobra.Command{
		Use:          "fv",
		Short:        "Estimate the fair value of a stock with exit-multiple and DCF models",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init(cmd)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.cfgFile, "config", "", "config file (default ./fv.yaml or $HOME/.config/fv/fv.yaml)")
	pf.String("format", "table", "output format: table, json, csv or syms")
	pf.StringSlice("columns", nil, "columns or column sets (summary, exit-multiple, dcf)")
	pf.Bool("series", false, "show the year-by-year projection")
	pf.Bool("no-color", false, "disable colored output")
	pf.String("currency", "", "currency label for money columns")
	pf.String("provider", "yahoo", "quote provider: yahoo, alphavantage or none")
	pf.String("api-key", "", "API key for providers that need one")
	pf.Duration("timeout", 10*time.Second, "quote request timeout")
	pf.Duration("cache-ttl", time.Hour, "quote cache lifetime, 0 disables the cache")
	pf.String("log-level", "warn", "log level: debug, info, warn, error or off")
	for flag, key := range persistentBindings {
		if err := a.v.BindPFlag(key, pf.Lookup(flag)); err != nil {
			panic(err)
		}
	}

	root.AddCommand(
		newCalcCmd(a, "eps", valuation.MethodMultiple, "Value a stock from projected earnings per share and a P/E exit multiple"),
		newCalcCmd(a, "fcf", valuation.MethodMultiple, "Value a stock from projected free cash flow per share and a P/FCF exit multiple"),
		newCalcCmd(a, "dcf", valuation.MethodDCF, "Value a stock by discounting projected free cash flow per share"),
		newQuoteCmd(a),
		newRunCmd(a),
	)
	return root
}

func (a *app) init(cmd *cobra.Command) error {
	cfg, err := config.Load(a.v, config.Options{ConfigFile: a.cfgFile})
	if err != nil {
		return err
	}
	if noColor, _ := cmd.Flags().GetBool("no-color"); noColor {
		cfg.Color = false
	}
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		cfg.Color = false
	}
	a.cfg = cfg
	a.log = logger.New(logger.Config{Level: cfg.LogLevel, Pretty: cfg.LogPretty, Out: cmd.ErrOrStderr()})

	a.quotes, err = quote.Open(cfg.Provider, quote.Options{
		APIKey:    cfg.APIKey,
		Timeout:   cfg.Timeout,
		CacheTTL:  cfg.CacheTTL,
		CacheSize: cfg.CacheSize,
		RateLimit: cfg.RateLimit,
		Log:       a.log,
	})
	if err != nil {
		return err
	}
	a.log.Debug().Str("provider", cfg.Provider).Str("format", cfg.Format).Msg("configured")
	return nil
}

func (a *app) runner(w io.Writer) (*pipeline.Runner, error) {
	r, err := render.New(a.cfg.Format)
	if err != nil {
		return nil, err
	}
	return &pipeline.Runner{
		Quotes:   a.quotes,
		Renderer: r,
		Writer:   w,
		Log:      a.log,
		Timeout:  a.cfg.Timeout,
	}, nil
}

func (a *app) executeOptions(w io.Writer) pipeline.ExecuteOptions {
	opts := pipeline.ExecuteOptions{
		Columns:    a.cfg.Columns,
		Color:      a.cfg.Color,
		PrettyJSON: true,
		Series:     a.cfg.Series,
		Currency:   a.cfg.Currency,
	}
	f, ok := w.(*os.File)
	if !ok {
		opts.Color = false
		return opts
	}
	width, tty := terminalWidth(f)
	if !tty {
		opts.Color = false
		opts.PrettyJSON = false
	}
	if width > 0 {
		opts.MaxColWidth = max(12, width/3)
	}
	return opts
}

// checkReports turns scenario failures into a command error once the
// output has been written.
func checkReports(reports []types.Report) error {
	failed := 0
	var first error
	for _, r := range reports {
		if r.Err != nil {
			failed++
			if first == nil {
				first = r.Err
			}
		}
	}
	switch {
	case failed == 0:
		return nil
	case failed == 1 && len(reports) == 1:
		return first
	}
	return fmt.Errorf("%d of %d scenarios failed: %w", failed, len(reports), first)
}

// changed reports whether any of the named flags was set explicitly.
func changed(fs *pflag.FlagSet, names ...string) bool {
	for _, n := range names {
		if fs.Changed(n) {
			return true
		}
	}
	return false
}

var errNoSymbols = errors.New("requires at least one symbol")
