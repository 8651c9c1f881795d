package source

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/komsit37/fv/pkg/fv/types"
	"github.com/komsit37/fv/pkg/fv/valuation"
)

// YAMLSource loads scenarios from a YAML file or a directory of them.
type YAMLSource struct{}

// scenarioDoc is one scenario as written in a file.
type scenarioDoc struct {
	Name                  string `yaml:"name,omitempty"`
	Sym                   string `yaml:"sym,omitempty"`
	Method                string `yaml:"method,omitempty"`
	Metric                string `yaml:"metric,omitempty"`
	valuation.Assumptions `yaml:",inline"`
}

type fileDoc struct {
	Defaults  scenarioDoc   `yaml:"defaults"`
	Scenarios []scenarioDoc `yaml:"scenarios"`
}

// Load expects spec to be a string filepath.
func (YAMLSource) Load(ctx context.Context, spec any) ([]types.Scenario, error) { //nolint:revive // ctx reserved for future use
	path, ok := spec.(string)
	if !ok {
		return nil, fmt.Errorf("yaml source expects filepath string spec")
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}

	if !info.IsDir() {
		data, err := readFile(path)
		if err != nil {
			return nil, err
		}
		base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		return Parse(data, base)
	}

	// Recursively load all YAML files in the directory and combine.
	var files []string
	err = filepath.WalkDir(path, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(d.Name()))
		if ext == ".yaml" || ext == ".yml" {
			files = append(files, p)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(files)

	var all []types.Scenario
	for _, full := range files {
		data, err := readFile(full)
		if err != nil {
			return nil, err
		}
		// Prefix names with the relative path (without extension), using forward slashes.
		rel, err := filepath.Rel(path, full)
		if err != nil {
			rel = filepath.Base(full)
		}
		prefix := filepath.ToSlash(strings.TrimSuffix(rel, filepath.Ext(rel)))
		list, err := Parse(data, prefix)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", full, err)
		}
		for i := range list {
			if list[i].Name != prefix {
				list[i].Name = prefix + "/" + list[i].Name
			}
		}
		all = append(all, list...)
	}
	return all, nil
}

func readFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

// Parse decodes a scenario document. Two shapes are accepted: a map with
// optional "defaults" and a "scenarios" list, or a bare list of scenarios.
// fallbackName names a lone scenario that has neither name nor symbol.
func Parse(data []byte, fallbackName string) ([]types.Scenario, error) {
	var doc fileDoc
	if err := decodeStrict(data, &doc); err != nil {
		var list []scenarioDoc
		if err2 := decodeStrict(data, &list); err2 != nil {
			return nil, fmt.Errorf("parse yaml: %w", err)
		}
		doc = fileDoc{Scenarios: list}
	}
	if len(doc.Scenarios) == 0 {
		return nil, errors.New("invalid yaml: no scenarios")
	}

	out := make([]types.Scenario, 0, len(doc.Scenarios))
	seen := map[string]int{}
	for i, sd := range doc.Scenarios {
		sd = withDefaults(sd, doc.Defaults)
		m, err := valuation.ParseMethod(sd.Method)
		if err != nil {
			return nil, fmt.Errorf("scenario %d: %w", i+1, err)
		}
		sc := types.Scenario{
			Name:        strings.TrimSpace(sd.Name),
			Sym:         strings.ToUpper(strings.TrimSpace(sd.Sym)),
			Method:      m,
			MetricLabel: sd.Metric,
			Assumptions: sd.Assumptions,
		}
		if sc.MetricLabel == "" {
			sc.MetricLabel = defaultMetricLabel(strings.ToLower(strings.TrimSpace(sd.Method)), m)
		}
		if sc.Name == "" {
			sc.Name = deriveName(sc, fallbackName)
		}
		// Keep names unique so filters and reports stay unambiguous.
		if n := seen[sc.Name]; n > 0 {
			seen[sc.Name] = n + 1
			sc.Name = fmt.Sprintf("%s#%d", sc.Name, n+1)
		} else {
			seen[sc.Name] = 1
		}
		out = append(out, sc)
	}
	return out, nil
}

func decodeStrict(data []byte, v any) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("empty document")
		}
		return err
	}
	return nil
}

// withDefaults fills zero fields of sd from def.
func withDefaults(sd, def scenarioDoc) scenarioDoc {
	if sd.Method == "" {
		sd.Method = def.Method
	}
	if sd.Metric == "" {
		sd.Metric = def.Metric
	}
	a, d := &sd.Assumptions, def.Assumptions
	if a.BaseMetric == 0 {
		a.BaseMetric = d.BaseMetric
	}
	if a.GrowthRate == 0 {
		a.GrowthRate = d.GrowthRate
	}
	if a.Years == 0 {
		a.Years = d.Years
	}
	if a.Multiple == 0 {
		a.Multiple = d.Multiple
	}
	if a.Rate == 0 {
		a.Rate = d.Rate
	}
	if a.CurrentPrice == 0 {
		a.CurrentPrice = d.CurrentPrice
	}
	return sd
}

func defaultMetricLabel(method string, m valuation.Method) string {
	switch {
	case method == "fcf" || m == valuation.MethodDCF:
		return "FCF/share"
	default:
		return "EPS"
	}
}

func deriveName(sc types.Scenario, fallback string) string {
	if sc.Sym != "" {
		return strings.ToLower(sc.Sym) + "-" + string(sc.Method)
	}
	if fallback != "" {
		return fallback
	}
	return string(sc.Method)
}
