package impact

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Kind selects the formula a scenario is computed with.
type Kind string

const (
	KindValue     Kind = "value"
	KindPotential Kind = "potential"
)

// Option is a named, computed course of action.
type Option struct {
	Name  string  `json:"name" yaml:"name"`
	Kind  Kind    `json:"kind" yaml:"kind"`
	Value float64 `json:"value" yaml:"value"`
}

// Scenario describes one option to compute. Only the input matching Kind
// is used.
type Scenario struct {
	Name      string         `json:"name" yaml:"name"`
	Kind      Kind           `json:"kind" yaml:"kind"`
	Value     ValueInput     `json:"value,omitempty" yaml:"value,omitempty"`
	Potential PotentialInput `json:"potential,omitempty" yaml:"potential,omitempty"`
}

// Best returns the option with the highest value. The first one wins ties.
func Best(options []Option) (Option, bool) {
	if len(options) == 0 {
		return Option{}, false
	}
	best := options[0]
	for _, o := range options[1:] {
		if o.Value > best.Value {
			best = o
		}
	}
	return best, true
}

// Compute evaluates every scenario in order.
func Compute(scenarios []Scenario) ([]Option, error) {
	list := make([]Option, 0, len(scenarios))
	for i, s := range scenarios {
		var (
			v   float64
			err error
		)
		switch s.Kind {
		case KindValue:
			v, err = ValueImpact(s.Value)
		case KindPotential:
			v, err = HumanPotential(s.Potential)
		default:
			return nil, fmt.Errorf("scenario[%d] %q: %w: unknown kind %q", i, s.Name, ErrInvalidInput, s.Kind)
		}
		if err != nil {
			return nil, fmt.Errorf("scenario[%d] %q: %w", i, s.Name, err)
		}

		name := s.Name
		if name == "" {
			name = fmt.Sprintf("option %d", i+1)
		}
		list = append(list, Option{Name: name, Kind: s.Kind, Value: v})
	}
	return list, nil
}

// LoadScenarios reads a list of scenarios from a YAML (or JSON) file.
func LoadScenarios(path string) ([]Scenario, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: scenario file path required", ErrInvalidInput)
	}

	b, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("error reading scenario file %s: %w", path, err)
	}

	// YAML is a superset of JSON
	var list []Scenario
	if err := yaml.Unmarshal(b, &list); err != nil {
		return nil, fmt.Errorf("%w: error parsing scenario file %s: %v", ErrInvalidInput, path, err)
	}
	for i := range list {
		list[i].Kind = Kind(strings.ToLower(strings.TrimSpace(string(list[i].Kind))))
	}
	return list, nil
}
