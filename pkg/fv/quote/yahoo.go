package quote

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	yfgo "github.com/komsit37/yf-go"

	"github.com/komsit37/fv/pkg/fv/types"
)

// YFProvider fetches prices from Yahoo Finance using yf-go. The per-share
// metric is trailing EPS, derived from the price and the trailing P/E.
type YFProvider struct {
	client  *yfgo.Client
	timeout time.Duration
	log     zerolog.Logger
}

func NewYFProvider(timeout time.Duration, log zerolog.Logger) *YFProvider {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &YFProvider{
		client:  yfgo.NewClient(),
		timeout: timeout,
		log:     log.With().Str("provider", "yahoo").Logger(),
	}
}

func (p *YFProvider) Fetch(ctx context.Context, sym string, need Need) (types.Quote, error) {
	if sym == "" {
		return types.Quote{}, nil
	}

	cctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	res, err := p.client.QuoteSummaryTyped(cctx, sym, []yfgo.QuoteSummaryModule{yfgo.ModulePrice})
	if err != nil {
		return types.Quote{Sym: sym}, err
	}
	q, err := quoteFromPrice(sym, res.Price, need)
	if err != nil {
		return q, err
	}
	q.FetchedAt = time.Now()

	if need&NeedMetric != 0 && q.Metric == nil {
		p.log.Debug().Str("sym", sym).Msg("no trailing P/E, EPS unavailable")
	}
	p.log.Debug().Str("sym", sym).Float64("price", q.Price).Msg("Fetched quote")
	return q, nil
}

// quoteFromPrice converts the Yahoo price module into a Quote.
func quoteFromPrice(sym string, pm *yfgo.PriceModule, need Need) (types.Quote, error) {
	q := types.Quote{Sym: sym}
	if pm == nil {
		return q, fmt.Errorf("%w: no price module for %s", ErrNotFound, sym)
	}

	// Prefer the raw value; fall back to parsing the formatted one.
	rp := pm.RegularMarketPrice
	switch {
	case rp.Raw != nil:
		q.Price = *rp.Raw
	case rp.Fmt != "":
		v, err := strconv.ParseFloat(strings.ReplaceAll(rp.Fmt, ",", ""), 64)
		if err != nil {
			return q, fmt.Errorf("%w: price %q", ErrMalformed, rp.Fmt)
		}
		q.Price = v
	default:
		return q, fmt.Errorf("%w: empty price for %s", ErrNotFound, sym)
	}

	if pm.ShortName != "" {
		q.Name = pm.ShortName
	} else if pm.LongName != "" {
		q.Name = pm.LongName
	}
	q.Currency = pm.Currency

	if need&NeedMetric != 0 && q.Price > 0 {
		if pe := pm.TrailingPE.Raw; pe != nil && *pe > 0 {
			eps := q.Price / *pe
			q.Metric = &eps
		}
	}
	return q, nil
}
