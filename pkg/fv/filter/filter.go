package filter

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/komsit37/fv/pkg/fv/types"
)

// Filter selects scenarios.
type Filter interface {
	Match(sc types.Scenario) bool
}

// Parse builds a filter from an expression. Each form is tried against
// both the scenario name and its symbol:
// - Comma-separated exact values: "apple-eps,MSFT"
// - Glob: "us/tech/*"
// - Regex: "/-dcf$/"
// - Anything else: case-insensitive substring
func Parse(expr string) (Filter, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return Always(true), nil
	}
	if strings.HasPrefix(expr, "/") && strings.HasSuffix(expr, "/") && len(expr) > 2 {
		re, err := regexp.Compile(expr[1 : len(expr)-1])
		if err != nil {
			return nil, fmt.Errorf("filter %q: %w", expr, err)
		}
		return Regex{re: re}, nil
	}
	if strings.Contains(expr, ",") {
		set := map[string]struct{}{}
		for _, p := range strings.Split(expr, ",") {
			p = strings.TrimSpace(p)
			if p == "" {
				continue
			}
			set[p] = struct{}{}
		}
		return ExactSet{set: set}, nil
	}
	if strings.ContainsAny(expr, "*?[") {
		if _, err := filepath.Match(expr, ""); err != nil {
			return nil, fmt.Errorf("filter %q: %w", expr, err)
		}
		return Glob{pattern: expr}, nil
	}
	return SubstrCI{needle: expr}, nil
}

// Apply returns the scenarios that f matches, preserving order.
func Apply(f Filter, list []types.Scenario) []types.Scenario {
	if f == nil {
		f = Always(true)
	}
	out := make([]types.Scenario, 0, len(list))
	for _, sc := range list {
		if f.Match(sc) {
			out = append(out, sc)
		}
	}
	return out
}

func keys(sc types.Scenario) []string {
	if sc.Sym == "" {
		return []string{sc.Name}
	}
	return []string{sc.Name, sc.Sym}
}

type Always bool

func (a Always) Match(types.Scenario) bool { return bool(a) }

type ExactSet struct{ set map[string]struct{} }

func (e ExactSet) Match(sc types.Scenario) bool {
	for _, k := range keys(sc) {
		if _, ok := e.set[k]; ok {
			return true
		}
	}
	return false
}

type Glob struct{ pattern string }

func (g Glob) Match(sc types.Scenario) bool {
	for _, k := range keys(sc) {
		if ok, _ := filepath.Match(g.pattern, k); ok {
			return true
		}
	}
	return false
}

func (g Glob) String() string { return fmt.Sprintf("glob:%s", g.pattern) }

type Regex struct{ re *regexp.Regexp }

func (r Regex) Match(sc types.Scenario) bool {
	for _, k := range keys(sc) {
		if r.re.MatchString(k) {
			return true
		}
	}
	return false
}

// SubstrCI matches if the name or symbol contains needle, case-insensitively.
type SubstrCI struct{ needle string }

func (s SubstrCI) Match(sc types.Scenario) bool {
	n := strings.ToLower(s.needle)
	for _, k := range keys(sc) {
		if strings.Contains(strings.ToLower(k), n) {
			return true
		}
	}
	return false
}

func (s SubstrCI) String() string { return fmt.Sprintf("substr-ci:%s", s.needle) }
