package quote

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/komsit37/fv/pkg/fv/types"
)

const (
	// DefaultAlphaVantageURL is the Alpha Vantage query endpoint.
	DefaultAlphaVantageURL = "https://www.alphavantage.co/query"

	// DefaultAlphaVantageTimeout bounds a single HTTP call.
	DefaultAlphaVantageTimeout = 10 * time.Second

	// DefaultAlphaVantagePerMinute matches the free tier.
	DefaultAlphaVantagePerMinute = 5
)

// AlphaVantage fetches prices (GLOBAL_QUOTE) and EPS (OVERVIEW).
type AlphaVantage struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	timeout    time.Duration // per request
	limiter    *rate.Limiter
	log        zerolog.Logger
}

// AlphaVantageOption configures an AlphaVantage provider.
type AlphaVantageOption func(*AlphaVantage)

// WithBaseURL sets a custom endpoint.
func WithBaseURL(baseURL string) AlphaVantageOption {
	return func(a *AlphaVantage) {
		a.baseURL = baseURL
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) AlphaVantageOption {
	return func(a *AlphaVantage) {
		a.httpClient = c
	}
}

// WithTimeout bounds each request. Non-positive values are ignored. The
// HTTP client itself is left untouched.
func WithTimeout(d time.Duration) AlphaVantageOption {
	return func(a *AlphaVantage) {
		if d > 0 {
			a.timeout = d
		}
	}
}

// WithLogger sets a logger.
func WithLogger(log zerolog.Logger) AlphaVantageOption {
	return func(a *AlphaVantage) {
		a.log = log.With().Str("provider", "alphavantage").Logger()
	}
}

// WithRateLimit sets the number of requests allowed per minute.
func WithRateLimit(perMinute int) AlphaVantageOption {
	return func(a *AlphaVantage) {
		if perMinute <= 0 {
			a.limiter = rate.NewLimiter(rate.Inf, 0)
			return
		}
		a.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), perMinute)
	}
}

// NewAlphaVantage creates a provider for the given API key.
func NewAlphaVantage(apiKey string, opts ...AlphaVantageOption) *AlphaVantage {
	a := &AlphaVantage{
		baseURL:    DefaultAlphaVantageURL,
		apiKey:     apiKey,
		httpClient: &http.Client{},
		timeout:    DefaultAlphaVantageTimeout,
		limiter:    rate.NewLimiter(rate.Every(time.Minute/DefaultAlphaVantagePerMinute), DefaultAlphaVantagePerMinute),
		log:        zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

type globalQuoteResponse struct {
	GlobalQuote map[string]string `json:"Global Quote"`
}

type overviewResponse struct {
	Symbol   string `json:"Symbol"`
	Name     string `json:"Name"`
	Currency string `json:"Currency"`
	EPS      string `json:"EPS"`
}

// Fetch implements Provider. A failed OVERVIEW call after a successful
// GLOBAL_QUOTE returns the priced quote together with the error.
func (a *AlphaVantage) Fetch(ctx context.Context, sym string, need Need) (types.Quote, error) {
	q := types.Quote{Sym: sym}
	if sym == "" {
		return q, nil
	}
	if need == NeedNone {
		need = NeedPrice
	}

	if need&NeedPrice != 0 {
		var gq globalQuoteResponse
		if err := a.get(ctx, "GLOBAL_QUOTE", sym, &gq); err != nil {
			return q, err
		}
		if len(gq.GlobalQuote) == 0 {
			return q, ErrNotFound
		}
		raw := gq.GlobalQuote["05. price"]
		price, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err != nil {
			return q, fmt.Errorf("%w: price %q", ErrMalformed, raw)
		}
		q.Price = price
	}

	if need&NeedMetric != 0 {
		var ov overviewResponse
		if err := a.get(ctx, "OVERVIEW", sym, &ov); err != nil {
			return q, err
		}
		if ov.Symbol == "" {
			return q, ErrNotFound
		}
		q.Name = ov.Name
		q.Currency = ov.Currency
		// "None" and "-" are used for missing values.
		if eps, err := strconv.ParseFloat(strings.TrimSpace(ov.EPS), 64); err == nil {
			q.Metric = &eps
		}
	}

	q.FetchedAt = time.Now()
	a.log.Debug().Str("sym", sym).Float64("price", q.Price).Bool("metric", q.Metric != nil).Msg("Fetched quote")
	return q, nil
}

// get performs one query and decodes the JSON body into out.
func (a *AlphaVantage) get(ctx context.Context, function, sym string, out any) error {
	if err := a.limiter.Wait(ctx); err != nil {
		return &RateLimitError{Message: err.Error()}
	}

	params := url.Values{}
	params.Set("function", function)
	params.Set("symbol", sym)
	params.Set("apikey", a.apiKey)
	reqURL := a.baseURL + "?" + params.Encode()

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	a.log.Debug().Str("function", function).Str("sym", sym).Msg("Alpha Vantage request")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode == http.StatusTooManyRequests {
		return &RateLimitError{Message: resp.Status}
	}
	if resp.StatusCode != http.StatusOK {
		return &APIError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(body)), Endpoint: function}
	}

	// Errors arrive as 200 responses carrying a single message key.
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(body, &probe); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if msg, ok := messageField(probe, "Error Message"); ok {
		return &APIError{Message: msg, Endpoint: function}
	}
	for _, k := range []string{"Note", "Information"} {
		if msg, ok := messageField(probe, k); ok {
			return &RateLimitError{Message: msg}
		}
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return nil
}

func messageField(m map[string]json.RawMessage, key string) (string, bool) {
	raw, ok := m[key]
	if !ok {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return string(raw), true
	}
	return s, true
}
