package render

import (
	"fmt"
	"io"
	"strings"

	"github.com/komsit37/fv/pkg/fv/types"
)

// Renderer renders evaluated scenarios to an output writer.
type Renderer interface {
	Render(w io.Writer, reports []types.Report, opts RenderOptions) error
}

type RenderOptions struct {
	Columns     []string
	Color       bool
	PrettyJSON  bool
	Series      bool   // include the year-by-year projection of each report
	Currency    string // shown next to money headers, e.g. "€"
	MaxColWidth int
}

// New returns the renderer for a format name.
func New(format string) (Renderer, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", "table":
		return NewTableRenderer(), nil
	case "json":
		return NewJSONRenderer(), nil
	case "csv":
		return NewCSVRenderer(), nil
	case "syms":
		return NewSymsRenderer(), nil
	}
	return nil, fmt.Errorf("unknown format %q (want table, json, csv or syms)", format)
}
