// Package quote fetches market prices and per-share metrics for symbols.
//
// Providers return typed errors. Callers on the valuation path go through
// Lookup, which never fails: provider errors come back as data in Result
// so a calculation can always proceed in manual-entry mode.
package quote

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/komsit37/fv/pkg/fv/types"
)

// Need declares which data is required for a fetch.
type Need uint8

const (
	NeedNone  Need = 0
	NeedPrice Need = 1 << iota // market price
	NeedMetric                 // per-share metric (EPS)
)

// Provider fetches a quote for a symbol.
type Provider interface {
	Fetch(ctx context.Context, sym string, need Need) (types.Quote, error)
}

var (
	// ErrNotFound is returned when the provider does not know the symbol.
	ErrNotFound = errors.New("symbol not found")
	// ErrMalformed is returned when a provider response cannot be decoded.
	ErrMalformed = errors.New("malformed response")
)

// APIError is a non-200 response or an error payload from a provider.
type APIError struct {
	StatusCode int
	Message    string
	Endpoint   string
}

func (e *APIError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: status %d: %s", e.Endpoint, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Endpoint, e.Message)
}

// RateLimitError is returned when the provider or the local limiter
// refuses a request.
type RateLimitError struct {
	Message string
}

func (e *RateLimitError) Error() string {
	if e.Message == "" {
		return "rate limited"
	}
	return "rate limited: " + e.Message
}

// Normalize trims and upper-cases a ticker symbol.
func Normalize(sym string) string {
	return strings.ToUpper(strings.TrimSpace(sym))
}

// Result is the outcome of Lookup. Quote may be partially filled even when
// Err is set.
type Result struct {
	Quote types.Quote
	Err   error
}

// HasPrice reports whether a usable market price is known.
func (r Result) HasPrice() bool { return r.Quote.Price > 0 }

// HasMetric reports whether the provider supplied a positive metric.
func (r Result) HasMetric() bool { return r.Quote.Metric != nil && *r.Quote.Metric > 0 }

// Lookup fetches sym from p and absorbs every failure into Result.Err.
// A nil provider or an empty symbol yields an empty Result.
func Lookup(ctx context.Context, p Provider, sym string, need Need) (res Result) {
	sym = Normalize(sym)
	res.Quote.Sym = sym
	if p == nil || sym == "" {
		return res
	}
	defer func() {
		if r := recover(); r != nil {
			res = Result{Quote: types.Quote{Sym: sym}, Err: fmt.Errorf("quote %s: provider panic: %v", sym, r)}
		}
	}()
	q, err := p.Fetch(ctx, sym, need)
	if q.Sym == "" {
		q.Sym = sym
	}
	if err != nil {
		return Result{Quote: q, Err: fmt.Errorf("quote %s: %w", sym, err)}
	}
	return Result{Quote: q}
}

// StaticProvider serves quotes from memory. It backs manual price entry.
type StaticProvider map[string]types.Quote

func (s StaticProvider) Fetch(_ context.Context, sym string, _ Need) (types.Quote, error) {
	q, ok := s[Normalize(sym)]
	if !ok {
		return types.Quote{}, ErrNotFound
	}
	return q, nil
}

// Options configures Open.
type Options struct {
	APIKey    string
	Timeout   time.Duration
	CacheTTL  time.Duration
	CacheSize int
	RateLimit int // requests per minute; 0 keeps the provider default
	Log       zerolog.Logger
}

// Open builds the named provider ("yahoo", "alphavantage" or "none"),
// wrapped in a cache when CacheTTL is positive. "none" returns nil, which
// Lookup treats as manual mode.
func Open(name string, opts Options) (Provider, error) {
	var p Provider
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "yahoo", "yf":
		p = NewYFProvider(opts.Timeout, opts.Log)
	case "alphavantage", "av":
		if opts.APIKey == "" {
			return nil, errors.New("alphavantage provider requires an API key")
		}
		avOpts := []AlphaVantageOption{WithLogger(opts.Log), WithTimeout(opts.Timeout)}
		if opts.RateLimit > 0 {
			avOpts = append(avOpts, WithRateLimit(opts.RateLimit))
		}
		p = NewAlphaVantage(opts.APIKey, avOpts...)
	case "none", "manual":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown quote provider %q", name)
	}
	if opts.CacheTTL > 0 {
		p = NewCache(p, opts.CacheTTL, opts.CacheSize)
	}
	return p, nil
}
