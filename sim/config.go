package sim

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// AttrSpec describes one user attribute as a distribution identifier
// plus its parameters, written in YAML as a sequence: [n, 5, 0.2].
type AttrSpec struct {
	Ident  string
	Params []float64
}

// UnmarshalYAML decodes the [identifier, params...] sequence form.
func (a *AttrSpec) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.SequenceNode || len(value.Content) == 0 {
		return fmt.Errorf("attribute spec must be a sequence [identifier, params...]")
	}
	if err := value.Content[0].Decode(&a.Ident); err != nil {
		return fmt.Errorf("attribute spec identifier: %w", err)
	}
	a.Params = make([]float64, 0, len(value.Content)-1)
	for _, n := range value.Content[1:] {
		var p float64
		if err := n.Decode(&p); err != nil {
			return fmt.Errorf("attribute spec parameter: %w", err)
		}
		a.Params = append(a.Params, p)
	}
	return nil
}

// DemandSpec is the per-stage demand. A scalar means a machining stage
// consuming Count items. A sequence means an assembly stage: either
// [main, [c1, c2, ...]] or the shorthand [c1, c2, ...] with an implicit
// main count of 1.
type DemandSpec struct {
	Count      int
	Components []int
}

// UnmarshalYAML decodes the scalar and sequence demand forms.
func (d *DemandSpec) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		d.Components = nil
		return value.Decode(&d.Count)
	case yaml.SequenceNode:
		d.Count = 1
		d.Components = nil
		for i, n := range value.Content {
			switch n.Kind {
			case yaml.ScalarNode:
				var c int
				if err := n.Decode(&c); err != nil {
					return fmt.Errorf("demand entry %d: %w", i, err)
				}
				if i == 0 && len(value.Content) == 2 && value.Content[1].Kind == yaml.SequenceNode {
					d.Count = c
				} else {
					d.Components = append(d.Components, c)
				}
			case yaml.SequenceNode:
				var cs []int
				if err := n.Decode(&cs); err != nil {
					return fmt.Errorf("demand entry %d: %w", i, err)
				}
				d.Components = append(d.Components, cs...)
			default:
				return fmt.Errorf("demand entry %d: unsupported node", i)
			}
		}
		return nil
	default:
		return fmt.Errorf("demand must be an integer or a sequence")
	}
}

// IsAssembly reports whether the demand describes an assembly stage.
func (d DemandSpec) IsAssembly() bool { return d.Components != nil }

// OrderSpec is the document form of one order (item type). Priority is
// a pointer so an explicit non-positive value in the document is
// rejected rather than mistaken for the absent-field default.
type OrderSpec struct {
	Name       string              `yaml:"name"`
	Priority   *int                `yaml:"priority,omitempty"`
	Storage    int                 `yaml:"storage,omitempty"`
	Source     string              `yaml:"source"`
	Sink       string              `yaml:"sink,omitempty"`
	Stations   []string            `yaml:"station,omitempty"`
	Functions  []string            `yaml:"function,omitempty"`
	Demand     []DemandSpec        `yaml:"demand,omitempty"`
	Components [][]string          `yaml:"component,omitempty"`
	Attributes map[string]AttrSpec `yaml:"attribute,omitempty"`
}

// StationSpec is the document form of one station.
type StationSpec struct {
	Name        string              `yaml:"name"`
	Capacity    int                 `yaml:"capacity,omitempty"`
	Storage     int                 `yaml:"storage,omitempty"`
	Measurement bool                `yaml:"measurement,omitempty"`
	Attributes  map[string]AttrSpec `yaml:"attribute,omitempty"`
}

// FactorySpec is the document form of the global factory state.
type FactorySpec struct {
	Functions  []string            `yaml:"function,omitempty"`
	Attributes map[string]AttrSpec `yaml:"attribute,omitempty"`
}

// ProcessSpec is the top-level structural configuration document.
type ProcessSpec struct {
	Orders   []OrderSpec   `yaml:"orders"`
	Stations []StationSpec `yaml:"stations"`
	Factory  *FactorySpec  `yaml:"factory,omitempty"`
}

// LoadProcessSpec reads and decodes a YAML process document. Validation
// is a separate step because it needs the behavior registry.
func LoadProcessSpec(path string) (*ProcessSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading process document: %w", err)
	}
	var spec ProcessSpec
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return nil, fmt.Errorf("decoding process document: %w", err)
	}
	return &spec, nil
}

// normalize applies documented defaults in place: priority 10, station
// capacity 1, demand 1 per stage, empty component lists.
func (spec *ProcessSpec) normalize() {
	for i := range spec.Orders {
		o := &spec.Orders[i]
		if o.Priority == nil {
			def := 10
			o.Priority = &def
		}
		if len(o.Demand) == 0 && len(o.Stations) > 0 {
			o.Demand = make([]DemandSpec, len(o.Stations))
			for k := range o.Demand {
				o.Demand[k] = DemandSpec{Count: 1}
			}
		}
		if len(o.Components) == 0 && len(o.Stations) > 0 {
			o.Components = make([][]string, len(o.Stations))
		}
	}
	for i := range spec.Stations {
		st := &spec.Stations[i]
		if st.Capacity == 0 {
			st.Capacity = 1
		}
	}
}

// Validate normalizes the document and checks required fields, value
// ranges and cross-references against the registry. All problems are
// reported together, not just the first.
func (spec *ProcessSpec) Validate(reg *Registry) error {
	spec.normalize()
	return errors.Join(spec.problems(reg)...)
}

func (spec *ProcessSpec) problems(reg *Registry) []error {
	var errs []error
	bad := func(component, format string, args ...any) {
		errs = append(errs, &ConfigError{Component: component, Reason: fmt.Sprintf(format, args...)})
	}

	stations := make(map[string]bool)
	for _, st := range spec.Stations {
		if st.Name == "" {
			bad("", "station without a name")
			continue
		}
		if stations[st.Name] {
			bad(st.Name, "duplicate station name")
		}
		stations[st.Name] = true
		if st.Capacity < 1 {
			bad(st.Name, "capacity must be at least 1, got %d", st.Capacity)
		}
		if st.Storage < 0 {
			bad(st.Name, "storage must not be negative, got %d", st.Storage)
		}
		for name, as := range st.Attributes {
			if _, err := newSampler(as, reg); err != nil {
				bad(st.Name, "attribute %q: %v", name, err)
			}
		}
	}

	orders := make(map[string]bool)
	for _, o := range spec.Orders {
		if o.Name == "" {
			bad("", "order without a name")
			continue
		}
		if orders[o.Name] {
			bad(o.Name, "duplicate order name")
		}
		orders[o.Name] = true
	}

	for _, o := range spec.Orders {
		if o.Name == "" {
			continue
		}
		if *o.Priority < 1 {
			bad(o.Name, "priority must be a positive integer, got %d", *o.Priority)
		}
		if o.Storage < 0 {
			bad(o.Name, "storage must not be negative, got %d", o.Storage)
		}
		if o.Source == "" {
			bad(o.Name, "source function is required")
		} else if _, ok := reg.FlowFunc(o.Source); !ok {
			bad(o.Name, "source function %q is not registered", o.Source)
		}
		if o.Sink != "" {
			if _, ok := reg.FlowFunc(o.Sink); !ok {
				bad(o.Name, "sink function %q is not registered", o.Sink)
			}
		}
		if len(o.Functions) != len(o.Stations) {
			bad(o.Name, "function list has %d entries for %d stations",
				len(o.Functions), len(o.Stations))
		}
		if len(o.Demand) != len(o.Stations) {
			bad(o.Name, "demand list has %d entries for %d stations",
				len(o.Demand), len(o.Stations))
		}
		if len(o.Components) != len(o.Stations) {
			bad(o.Name, "component list has %d entries for %d stations",
				len(o.Components), len(o.Stations))
		}
		for name, as := range o.Attributes {
			if _, err := newSampler(as, reg); err != nil {
				bad(o.Name, "attribute %q: %v", name, err)
			}
		}
		for k, stName := range o.Stations {
			if !stations[stName] {
				bad(o.Name, "stage %d references undefined station %q", k, stName)
			}
			if k < len(o.Functions) {
				if _, ok := reg.ProcessFunc(o.Functions[k]); !ok {
					bad(o.Name, "stage %d function %q is not registered", k, o.Functions[k])
				}
			}
			if k >= len(o.Demand) || k >= len(o.Components) {
				continue
			}
			d, comps := o.Demand[k], o.Components[k]
			if d.Count < 1 {
				bad(o.Name, "stage %d demand must be at least 1, got %d", k, d.Count)
			}
			if len(comps) == 0 {
				if d.IsAssembly() {
					bad(o.Name, "stage %d has component demands but no component list", k)
				}
				continue
			}
			if len(d.Components) != len(comps) {
				bad(o.Name, "stage %d has %d component demands for %d components",
					k, len(d.Components), len(comps))
			}
			for ci, compName := range comps {
				if compName == o.Name {
					bad(o.Name, "stage %d assembles the order into itself", k)
				}
				if !orders[compName] {
					bad(o.Name, "stage %d references undefined component order %q", k, compName)
				}
				if ci < len(d.Components) && d.Components[ci] < 1 {
					bad(o.Name, "stage %d component %q demand must be at least 1", k, compName)
				}
			}
		}
	}

	if spec.Factory != nil {
		for _, name := range spec.Factory.Functions {
			if _, ok := reg.ControllerFunc(name); !ok {
				bad("factory", "controller function %q is not registered", name)
			}
		}
		for name, as := range spec.Factory.Attributes {
			if _, err := newSampler(as, reg); err != nil {
				bad("factory", "attribute %q: %v", name, err)
			}
		}
	}

	return errs
}
