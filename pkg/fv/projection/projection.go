// Package projection compounds a per-share metric over a horizon.
package projection

import "math"

// Point is one year of a projected metric series.
type Point struct {
	Year   int     `json:"year" yaml:"year"`
	Metric float64 `json:"metric" yaml:"metric"`
}

// Project returns base compounded at growth for year 0..years inclusive.
// years must be >= 0; a negative horizon yields nil.
func Project(base, growth float64, years int) []Point {
	if years < 0 {
		return nil
	}
	out := make([]Point, 0, years+1)
	for y := 0; y <= years; y++ {
		out = append(out, Point{Year: y, Metric: Compound(base, growth, y)})
	}
	return out
}

// Compound returns v*(1+rate)^n.
func Compound(v, rate float64, n int) float64 {
	if n == 0 {
		return v
	}
	return v * math.Pow(1+rate, float64(n))
}

// DiscountFactor returns 1/(1+rate)^n. It is +Inf when rate is -1 and n > 0.
func DiscountFactor(rate float64, n int) float64 {
	if n == 0 {
		return 1
	}
	return 1 / math.Pow(1+rate, float64(n))
}

// Finite reports whether none of vs is NaN or infinite.
func Finite(vs ...float64) bool {
	for _, v := range vs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
