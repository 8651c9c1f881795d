// Package valuation prices a stock from growth and discounting assumptions.
//
// Two models are provided. EvaluateMultiple applies an exit multiple to the
// projected metric and discounts the resulting target price at a desired
// return. EvaluateDCF sums discounted yearly cash flows and a discounted
// terminal value. Both are pure: the same Assumptions always produce the
// same result.
package valuation

import (
	"errors"
	"fmt"
	"strings"

	"github.com/komsit37/fv/pkg/fv/projection"
)

// MaxYears is the longest projection horizon Validate accepts. Every model
// materializes one row per year.
const MaxYears = 100

// Method selects a valuation model.
type Method string

const (
	MethodMultiple Method = "multiple"
	MethodDCF      Method = "dcf"
)

// ParseMethod accepts the method names used in scenario files and flags.
func ParseMethod(s string) (Method, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "multiple", "exit", "pe", "eps", "fcf":
		return MethodMultiple, nil
	case "dcf":
		return MethodDCF, nil
	}
	return "", fmt.Errorf("unknown method %q", s)
}

// Assumptions is the input of one calculation.
//
// Multiple and Rate are read per method: for MethodMultiple they are the
// exit multiple and the desired annual return, for MethodDCF the terminal
// multiple and the discount rate. Rates are fractions (0.10 for 10%).
// CurrentPrice of 0 means the market price is unknown.
type Assumptions struct {
	BaseMetric   float64 `json:"base_metric" yaml:"base_metric"`
	GrowthRate   float64 `json:"growth_rate" yaml:"growth_rate"`
	Years        int     `json:"years" yaml:"years"`
	Multiple     float64 `json:"multiple" yaml:"multiple"`
	Rate         float64 `json:"rate" yaml:"rate"`
	CurrentPrice float64 `json:"current_price,omitempty" yaml:"current_price,omitempty"`
}

var (
	// ErrInvalidInput is wrapped by every InputError.
	ErrInvalidInput = errors.New("invalid input")
	// ErrDegenerate marks a calculation that has no finite answer.
	ErrDegenerate = errors.New("degenerate calculation")
)

// InputError reports the first assumption that failed validation.
type InputError struct {
	Field  string
	Reason string
}

func (e *InputError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e *InputError) Unwrap() error { return ErrInvalidInput }

// Validate checks a for the given method. The returned error is an
// *InputError or nil.
func Validate(m Method, a Assumptions) error {
	if m != MethodMultiple && m != MethodDCF {
		return &InputError{Field: "method", Reason: fmt.Sprintf("unknown method %q", m)}
	}
	if !projection.Finite(a.BaseMetric, a.GrowthRate, a.Multiple, a.Rate, a.CurrentPrice) {
		return &InputError{Field: "assumptions", Reason: "must be finite numbers"}
	}
	multiple, rate := "exit multiple", "desired return"
	if m == MethodDCF {
		multiple, rate = "terminal multiple", "discount rate"
	}
	switch {
	case a.BaseMetric <= 0:
		return &InputError{Field: "base metric", Reason: "must be greater than zero"}
	case a.GrowthRate <= -1:
		return &InputError{Field: "growth rate", Reason: "must be greater than -100%"}
	case a.Years < 0:
		return &InputError{Field: "years", Reason: "must not be negative"}
	case a.Years > MaxYears:
		return &InputError{Field: "years", Reason: fmt.Sprintf("must not exceed %d", MaxYears)}
	case a.Multiple <= 0:
		return &InputError{Field: multiple, Reason: "must be greater than zero"}
	case a.Rate <= -1:
		return &InputError{Field: rate, Reason: "must be greater than -100%"}
	case a.CurrentPrice < 0:
		return &InputError{Field: "current price", Reason: "must not be negative"}
	}
	return nil
}

// InputsValid is the predicate form of Validate.
func InputsValid(m Method, a Assumptions) bool {
	return Validate(m, a) == nil
}

func degenerate(what string) error {
	return fmt.Errorf("%s: %w", what, ErrDegenerate)
}
