package render

import (
	"fmt"
	"io"
	"strings"

	"github.com/komsit37/fv/pkg/fv/types"
)

// symsRenderer prints the distinct symbols of the reports in a single
// comma-separated line.
type symsRenderer struct{}

func NewSymsRenderer() Renderer {
	return symsRenderer{}
}

func (symsRenderer) Render(w io.Writer, reports []types.Report, _ RenderOptions) error {
	symbols := make([]string, 0, len(reports))
	seen := map[string]struct{}{}
	for _, rep := range reports {
		sym := strings.ToUpper(strings.TrimSpace(rep.Scenario.Sym))
		if sym == "" {
			continue
		}
		if _, ok := seen[sym]; ok {
			continue
		}
		seen[sym] = struct{}{}
		symbols = append(symbols, sym)
	}
	_, err := fmt.Fprintln(w, strings.Join(symbols, ","))
	return err
}
