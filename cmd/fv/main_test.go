package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/komsit37/fv/pkg/fv/valuation"
)

func run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(append([]string{"--provider", "none", "--log-level", "off"}, args...))
	err := cmd.Execute()
	return out.String(), errOut.String(), err
}

func TestEPSDefaultsJSON(t *testing.T) {
	out, _, err := run(t, "eps", "--price", "150", "--format", "json")
	require.NoError(t, err)

	var got []struct {
		Name     string `json:"name"`
		Multiple struct {
			FairValue        float64 `json:"fair_value"`
			ImpliedReturnPct float64 `json:"implied_return_pct"`
			Series           []any   `json:"series"`
		} `json:"multiple"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	require.Len(t, got, 1)
	assert.Equal(t, "eps", got[0].Name)
	assert.InDelta(t, 120.106, got[0].Multiple.FairValue, 1e-3)
	assert.InDelta(t, 10.0, got[0].Multiple.ImpliedReturnPct, 1e-9)
	assert.Len(t, got[0].Multiple.Series, 8)
}

func TestDCFFlagsCSV(t *testing.T) {
	out, _, err := run(t, "dcf", "--base", "2", "--growth", "5", "--years", "3",
		"--multiple", "10", "--rate", "10", "--price", "25",
		"--format", "csv", "--columns", "name,sum_pv,fair,status")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "dcf,5.47,22.87,Overpriced", lines[1])
}

func TestFCFTable(t *testing.T) {
	out, _, err := run(t, "fcf", "--no-color")
	require.NoError(t, err)
	assert.Contains(t, out, "FCF/SHARE")
	assert.Contains(t, out, "5-year projection")
	assert.NotContains(t, out, "\x1b[")
}

func TestInvalidInputFails(t *testing.T) {
	out, errOut, err := run(t, "eps", "--base", "-1", "--format", "csv", "--columns", "name,error")
	require.Error(t, err)
	assert.ErrorIs(t, err, valuation.ErrInvalidInput)
	assert.Contains(t, out, "base metric")
	assert.Contains(t, errOut, "Error:")
}

func TestNonFiniteFlagsFailCleanly(t *testing.T) {
	var (
		out string
		err error
	)
	require.NotPanics(t, func() {
		out, _, err = run(t, "eps", "--growth", "NaN", "--price", "150", "--columns", "name,growth%,price,status,error")
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, valuation.ErrInvalidInput)
	assert.Contains(t, out, "assumptions: must be finite numbers")
	assert.NotContains(t, out, "NaN")
}

func TestHorizonTooLong(t *testing.T) {
	out, _, err := run(t, "dcf", "--years", "2000000000", "--format", "csv", "--columns", "name,status,error")
	require.Error(t, err)
	assert.ErrorIs(t, err, valuation.ErrInvalidInput)
	assert.Contains(t, out, "years: must not exceed 100")
}

func TestRunNonFiniteScenarioFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "inf.yaml")
	doc := `
- name: inf-price
  base_metric: 7.5
  growth_rate: .nan
  years: 5
  multiple: 20
  rate: 0.15
  current_price: .inf
- name: fine
  base_metric: 7.5
  growth_rate: 0.10
  years: 5
  multiple: 20
  rate: 0.15
  current_price: 150
`
	require.NoError(t, os.WriteFile(file, []byte(doc), 0o644))

	var (
		out string
		err error
	)
	require.NotPanics(t, func() {
		out, _, err = run(t, "run", file, "--format", "csv", "--columns", "name,price,fair,status")
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, valuation.ErrInvalidInput)
	assert.Contains(t, out, "inf-price,,,Error")
	assert.Contains(t, out, "fine,150.00,120.11,Overpriced")
}

func TestRunBatch(t *testing.T) {
	dir := t.TempDir()
	doc := `
defaults:
  years: 5
  rate: 0.15
scenarios:
  - name: apple-eps
    method: multiple
    base_metric: 7.5
    growth_rate: 0.10
    multiple: 20
    current_price: 150
  - name: ko-dcf
    method: dcf
    base_metric: 2
    growth_rate: 0.05
    years: 3
    multiple: 10
    rate: 0.10
    current_price: 20
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "list.yaml"), []byte(doc), 0o644))

	out, _, err := run(t, "run", dir, "--format", "csv", "--columns", "name,fair,status")
	require.NoError(t, err)
	assert.Contains(t, out, "list/apple-eps,120.11,Overpriced")
	assert.Contains(t, out, "list/ko-dcf,22.87,Underpriced")

	out, _, err = run(t, "run", dir, "--format", "syms", "--filter", "/dcf$/")
	require.NoError(t, err)
	assert.Equal(t, "\n", out, "scenarios without symbols")

	out, _, err = run(t, "run", dir, "--format", "csv", "--columns", "name", "--only-underpriced")
	require.NoError(t, err)
	assert.NotContains(t, out, "apple-eps")
	assert.Contains(t, out, "ko-dcf")

	_, _, err = run(t, "run", filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}

func TestQuoteNeedsProvider(t *testing.T) {
	_, _, err := run(t, "quote", "AAPL")
	assert.ErrorContains(t, err, "does not fetch quotes")

	_, _, err = run(t, "quote")
	assert.ErrorIs(t, err, errNoSymbols)
}

func TestBadConfig(t *testing.T) {
	_, _, err := run(t, "eps", "--format", "xml")
	assert.ErrorContains(t, err, "format")

	_, _, err = run(t, "eps", "--provider", "bloomberg")
	assert.Error(t, err)
}
