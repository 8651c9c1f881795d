package quote

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/komsit37/fv/pkg/fv/types"
)

// countingProvider records calls and serves a fixed answer.
type countingProvider struct {
	calls int32
	q     types.Quote
	err   error
	panic bool
}

func (p *countingProvider) Fetch(_ context.Context, sym string, _ Need) (types.Quote, error) {
	atomic.AddInt32(&p.calls, 1)
	if p.panic {
		panic("boom")
	}
	q := p.q
	q.Sym = sym
	return q, p.err
}

func TestLookupAbsorbsErrors(t *testing.T) {
	p := &countingProvider{err: &RateLimitError{Message: "slow down"}}

	res := Lookup(context.Background(), p, " aapl ", NeedPrice)
	require.Error(t, res.Err)
	var rl *RateLimitError
	assert.ErrorAs(t, res.Err, &rl)
	assert.Equal(t, "AAPL", res.Quote.Sym)
	assert.False(t, res.HasPrice())
}

func TestLookupRecoversPanics(t *testing.T) {
	p := &countingProvider{panic: true}

	res := Lookup(context.Background(), p, "MSFT", NeedPrice)
	require.Error(t, res.Err)
	assert.Contains(t, res.Err.Error(), "panic")
	assert.Equal(t, "MSFT", res.Quote.Sym)
}

func TestLookupManualMode(t *testing.T) {
	res := Lookup(context.Background(), nil, "AAPL", NeedPrice)
	assert.NoError(t, res.Err)
	assert.False(t, res.HasPrice())

	p := &countingProvider{}
	res = Lookup(context.Background(), p, "   ", NeedPrice)
	assert.NoError(t, res.Err)
	assert.Zero(t, p.calls)
}

func TestStaticProvider(t *testing.T) {
	eps := 6.1
	p := StaticProvider{"AAPL": {Sym: "AAPL", Price: 190, Metric: &eps}}

	res := Lookup(context.Background(), p, "aapl", NeedPrice|NeedMetric)
	require.NoError(t, res.Err)
	assert.True(t, res.HasPrice())
	assert.True(t, res.HasMetric())

	res = Lookup(context.Background(), p, "IBM", NeedPrice)
	assert.ErrorIs(t, res.Err, ErrNotFound)
}

func TestCacheHitAndExpiry(t *testing.T) {
	p := &countingProvider{q: types.Quote{Price: 100}}
	c := NewCache(p, time.Hour, 10)
	now := time.Date(2026, 1, 2, 15, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }
	ctx := context.Background()

	_, err := c.Fetch(ctx, "AAPL", NeedPrice)
	require.NoError(t, err)
	_, err = c.Fetch(ctx, "aapl", NeedPrice)
	require.NoError(t, err)
	assert.EqualValues(t, 1, p.calls)

	// A different need is a different key.
	_, err = c.Fetch(ctx, "AAPL", NeedPrice|NeedMetric)
	require.NoError(t, err)
	assert.EqualValues(t, 2, p.calls)

	now = now.Add(time.Hour + time.Second)
	q, err := c.Fetch(ctx, "AAPL", NeedPrice)
	require.NoError(t, err)
	assert.Equal(t, 100.0, q.Price)
	assert.EqualValues(t, 3, p.calls)
}

func TestCacheDoesNotStoreErrors(t *testing.T) {
	p := &countingProvider{err: errors.New("network down")}
	c := NewCache(p, time.Hour, 10)

	for i := 0; i < 3; i++ {
		_, err := c.Fetch(context.Background(), "AAPL", NeedPrice)
		assert.Error(t, err)
	}
	assert.EqualValues(t, 3, p.calls)
	assert.Zero(t, c.Len())
}

func TestCacheEvictsLeastRecentlyUsed(t *testing.T) {
	p := &countingProvider{q: types.Quote{Price: 1}}
	c := NewCache(p, time.Hour, 2)
	ctx := context.Background()

	for _, s := range []string{"A", "B", "A", "C"} {
		_, err := c.Fetch(ctx, s, NeedPrice)
		require.NoError(t, err)
	}
	assert.Equal(t, 2, c.Len())
	assert.EqualValues(t, 3, p.calls)

	// A was touched after B, so B was evicted.
	_, _ = c.Fetch(ctx, "A", NeedPrice)
	assert.EqualValues(t, 3, p.calls)
	_, _ = c.Fetch(ctx, "B", NeedPrice)
	assert.EqualValues(t, 4, p.calls)
	assert.Equal(t, 2, c.Len())
}

func newAVServer(t *testing.T, handler func(w http.ResponseWriter, r *http.Request)) *AlphaVantage {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(handler))
	t.Cleanup(srv.Close)
	return NewAlphaVantage("test-key",
		WithBaseURL(srv.URL),
		WithRateLimit(0),
		WithLogger(zerolog.Nop()),
	)
}

func TestAlphaVantageFetch(t *testing.T) {
	av := newAVServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-key", r.URL.Query().Get("apikey"))
		assert.Equal(t, "IBM", r.URL.Query().Get("symbol"))
		switch r.URL.Query().Get("function") {
		case "GLOBAL_QUOTE":
			fmt.Fprint(w, `{"Global Quote": {"01. symbol": "IBM", "05. price": "231.4500"}}`)
		case "OVERVIEW":
			fmt.Fprint(w, `{"Symbol": "IBM", "Name": "International Business Machines", "Currency": "USD", "EPS": "6.42"}`)
		default:
			http.NotFound(w, r)
		}
	})

	q, err := av.Fetch(context.Background(), "IBM", NeedPrice|NeedMetric)
	require.NoError(t, err)
	assert.Equal(t, 231.45, q.Price)
	require.NotNil(t, q.Metric)
	assert.Equal(t, 6.42, *q.Metric)
	assert.Equal(t, "USD", q.Currency)
	assert.Equal(t, "International Business Machines", q.Name)
	assert.False(t, q.FetchedAt.IsZero())
}

func TestAlphaVantageMissingEPS(t *testing.T) {
	av := newAVServer(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"Symbol": "IBM", "Name": "IBM", "EPS": "None"}`)
	})

	q, err := av.Fetch(context.Background(), "IBM", NeedMetric)
	require.NoError(t, err)
	assert.Nil(t, q.Metric)
	assert.Zero(t, q.Price)
}

func TestAlphaVantageErrors(t *testing.T) {
	tests := []struct {
		name  string
		body  string
		code  int
		check func(t *testing.T, err error)
	}{
		{
			name: "unknown symbol",
			body: `{"Global Quote": {}}`,
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, ErrNotFound)
			},
		},
		{
			name: "error message",
			body: `{"Error Message": "Invalid API call."}`,
			check: func(t *testing.T, err error) {
				var apiErr *APIError
				require.ErrorAs(t, err, &apiErr)
				assert.Equal(t, "Invalid API call.", apiErr.Message)
			},
		},
		{
			name: "rate limit note",
			body: `{"Note": "Thank you for using Alpha Vantage! Our standard API call frequency is 5 calls per minute."}`,
			check: func(t *testing.T, err error) {
				var rl *RateLimitError
				assert.ErrorAs(t, err, &rl)
			},
		},
		{
			name: "http 429",
			body: `slow down`,
			code: http.StatusTooManyRequests,
			check: func(t *testing.T, err error) {
				var rl *RateLimitError
				assert.ErrorAs(t, err, &rl)
			},
		},
		{
			name: "http 500",
			body: `oops`,
			code: http.StatusInternalServerError,
			check: func(t *testing.T, err error) {
				var apiErr *APIError
				require.ErrorAs(t, err, &apiErr)
				assert.Equal(t, http.StatusInternalServerError, apiErr.StatusCode)
			},
		},
		{
			name: "malformed json",
			body: `<html>`,
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, ErrMalformed)
			},
		},
		{
			name: "malformed price",
			body: `{"Global Quote": {"05. price": "n/a"}}`,
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, ErrMalformed)
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			av := newAVServer(t, func(w http.ResponseWriter, r *http.Request) {
				if tt.code != 0 {
					w.WriteHeader(tt.code)
				}
				fmt.Fprint(w, tt.body)
			})
			_, err := av.Fetch(context.Background(), "IBM", NeedPrice)
			require.Error(t, err)
			tt.check(t, err)
		})
	}
}

func TestAlphaVantageTimeout(t *testing.T) {
	av := newAVServer(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	})
	WithTimeout(50 * time.Millisecond)(av)

	res := Lookup(context.Background(), av, "IBM", NeedPrice)
	assert.Error(t, res.Err)
	assert.False(t, res.HasPrice())
}

func TestAlphaVantageTimeoutLeavesClientAlone(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	t.Cleanup(srv.Close)

	shared := &http.Client{}
	// option order must not matter
	av := NewAlphaVantage("test-key",
		WithTimeout(50*time.Millisecond),
		WithHTTPClient(shared),
		WithBaseURL(srv.URL),
		WithRateLimit(0),
	)

	_, err := av.Fetch(context.Background(), "IBM", NeedPrice)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Zero(t, shared.Timeout)
}

func TestOpen(t *testing.T) {
	p, err := Open("none", Options{})
	require.NoError(t, err)
	assert.Nil(t, p)

	_, err = Open("alphavantage", Options{})
	assert.Error(t, err)

	p, err = Open("alphavantage", Options{APIKey: "k", CacheTTL: time.Hour, Log: zerolog.Nop()})
	require.NoError(t, err)
	assert.IsType(t, &Cache{}, p)

	p, err = Open("yahoo", Options{Log: zerolog.Nop()})
	require.NoError(t, err)
	assert.IsType(t, &YFProvider{}, p)

	_, err = Open("bloomberg", Options{})
	assert.Error(t, err)
}
