package sim

import (
	"fmt"
	"math/rand"
	"sort"
)

// Machine is one concurrent server instance within a Station. It owns
// independently sampled attribute values and is mutable only by the
// process function currently holding it.
type Machine struct {
	StationName string
	Nr          int
	Attrs       map[string]float64
}

// Station is a named group of interchangeable machines sharing one input
// buffer and one machine pool.
type Station struct {
	Name        string
	Capacity    int
	Measurement bool

	// id is the station's creation index, recorded in snapshots.
	id int

	Buffer   *Store
	Pool     *Resource
	Machines []*Machine

	free []int // free machine indices, ascending
}

// ID returns the station's creation index.
func (st *Station) ID() int { return st.id }

// takeMachine claims the lowest free machine index. Callers hold a Pool
// grant, so a free machine always exists.
func (st *Station) takeMachine() *Machine {
	nr := st.free[0]
	st.free = st.free[1:]
	return st.Machines[nr]
}

// releaseMachine returns a machine to the free set.
func (st *Station) releaseMachine(m *Machine) {
	st.free = append(st.free, m.Nr)
	sort.Ints(st.free)
}

// ComponentDemand names an order whose final store feeds an assembly
// stage, with the number of its items consumed per firing.
type ComponentDemand struct {
	Order *Order
	Count int
}

// Stage is one step of an order's routing.
type Stage struct {
	Station  *Station
	FuncName string
	Fn       ProcessFunc

	// Demand is the number of main items consumed per firing: the batch
	// size for a machining stage, the main-item count (normally 1) for
	// an assembly stage.
	Demand int

	// Components is non-empty exactly for assembly stages.
	Components []ComponentDemand
}

// IsAssembly reports whether the stage combines items of several orders.
func (sg *Stage) IsAssembly() bool { return len(sg.Components) > 0 }

// compiledAttr is one attribute with its compiled sampler. Attributes
// are sampled in sorted-name order so runs are reproducible.
type compiledAttr struct {
	name    string
	sampler Sampler
}

func compileAttrs(specs map[string]AttrSpec, reg *Registry) ([]compiledAttr, error) {
	names := make([]string, 0, len(specs))
	for name := range specs {
		names = append(names, name)
	}
	sort.Strings(names)
	out := make([]compiledAttr, 0, len(names))
	for _, name := range names {
		s, err := newSampler(specs[name], reg)
		if err != nil {
			return nil, fmt.Errorf("attribute %q: %w", name, err)
		}
		out = append(out, compiledAttr{name: name, sampler: s})
	}
	return out, nil
}

func sampleAttrs(attrs []compiledAttr, rng *rand.Rand) map[string]float64 {
	out := make(map[string]float64, len(attrs))
	for _, a := range attrs {
		out[a.name] = a.sampler.Sample(rng)
	}
	return out
}

// Order is the immutable template and routing definition for a class of
// items.
type Order struct {
	Name     string
	Priority int
	Stages   []*Stage

	SourceName string
	SinkName   string
	Source     FlowFunc
	Sink       FlowFunc // nil = default sink

	// FinalStore holds items that completed the routing, feeding either
	// the sink or downstream assembly pulls.
	FinalStore *Store

	attrs []compiledAttr
	rng   *rand.Rand

	// assembled marks orders consumed as components by another order's
	// routing; such orders run no default sink.
	assembled bool

	// counters[k] counts items admitted into stage k, for batching
	// stage activations by demand.
	counters []int
}

// Assembled reports whether this order's items become components of
// another order.
func (o *Order) Assembled() bool { return o.assembled }

// Factory is the process-wide shared state: global attribute values
// sampled once at start, mutable by any process while it holds control.
type Factory struct {
	Attrs map[string]float64

	ControllerNames []string
	Controllers     []ControllerFunc
}

// Model is the instantiated entity graph of one simulation run.
type Model struct {
	Orders   []*Order
	Stations []*Station
	Factory  *Factory

	ordersByName   map[string]*Order
	stationsByName map[string]*Station

	rng        *PartitionedRNG
	nextItemID int64
}

// OrderByName returns the named order, or nil.
func (m *Model) OrderByName(name string) *Order { return m.ordersByName[name] }

// StationByName returns the named station, or nil.
func (m *Model) StationByName(name string) *Station { return m.stationsByName[name] }

// ItemsCreated returns how many items have been built so far.
func (m *Model) ItemsCreated() int64 { return m.nextItemID }

// buildItem creates a workpiece of the given order with freshly sampled
// attributes. Item ids are unique and monotonically increasing for the
// lifetime of the run.
func (m *Model) buildItem(o *Order) *Item {
	id := m.nextItemID
	m.nextItemID++
	return newItem(id, o, sampleAttrs(o.attrs, o.rng))
}

// buildModel instantiates the entity graph from a validated process
// document. Cross-references are assumed resolved; Validate reports
// them before the kernel starts.
func buildModel(env *Environment, spec *ProcessSpec, reg *Registry, rng *PartitionedRNG) (*Model, error) {
	m := &Model{
		ordersByName:   make(map[string]*Order),
		stationsByName: make(map[string]*Station),
		rng:            rng,
	}

	for i, ss := range spec.Stations {
		attrs, err := compileAttrs(ss.Attributes, reg)
		if err != nil {
			return nil, &ConfigError{Component: ss.Name, Reason: err.Error()}
		}
		st := &Station{
			Name:        ss.Name,
			Capacity:    ss.Capacity,
			Measurement: ss.Measurement,
			id:          i,
			Buffer:      NewStore(env, ss.Name+".buffer", ss.Storage),
			Pool:        NewResource(env, ss.Capacity),
		}
		stream := rng.Stream("station:" + ss.Name)
		for nr := 0; nr < ss.Capacity; nr++ {
			st.Machines = append(st.Machines, &Machine{
				StationName: ss.Name,
				Nr:          nr,
				Attrs:       sampleAttrs(attrs, stream),
			})
			st.free = append(st.free, nr)
		}
		m.Stations = append(m.Stations, st)
		m.stationsByName[ss.Name] = st
	}

	for _, os := range spec.Orders {
		attrs, err := compileAttrs(os.Attributes, reg)
		if err != nil {
			return nil, &ConfigError{Component: os.Name, Reason: err.Error()}
		}
		source, _ := reg.FlowFunc(os.Source)
		o := &Order{
			Name:       os.Name,
			Priority:   *os.Priority,
			SourceName: os.Source,
			SinkName:   os.Sink,
			Source:     source,
			FinalStore: NewStore(env, os.Name+".store", os.Storage),
			attrs:      attrs,
			rng:        rng.Stream("order:" + os.Name),
			counters:   make([]int, len(os.Stations)),
		}
		if os.Sink != "" {
			o.Sink, _ = reg.FlowFunc(os.Sink)
		}
		m.Orders = append(m.Orders, o)
		m.ordersByName[os.Name] = o
	}

	// Stages are wired in a second pass so component references can
	// point at any order regardless of declaration order.
	for i, os := range spec.Orders {
		o := m.Orders[i]
		for k, stName := range os.Stations {
			fn, _ := reg.ProcessFunc(os.Functions[k])
			sg := &Stage{
				Station:  m.stationsByName[stName],
				FuncName: os.Functions[k],
				Fn:       fn,
				Demand:   os.Demand[k].Count,
			}
			for ci, compName := range os.Components[k] {
				comp := m.ordersByName[compName]
				comp.assembled = true
				sg.Components = append(sg.Components, ComponentDemand{
					Order: comp,
					Count: os.Demand[k].Components[ci],
				})
			}
			o.Stages = append(o.Stages, sg)
		}
	}

	fac := &Factory{Attrs: map[string]float64{}}
	if spec.Factory != nil {
		attrs, err := compileAttrs(spec.Factory.Attributes, reg)
		if err != nil {
			return nil, &ConfigError{Component: "factory", Reason: err.Error()}
		}
		fac.Attrs = sampleAttrs(attrs, rng.Stream("factory"))
		for _, name := range spec.Factory.Functions {
			fn, _ := reg.ControllerFunc(name)
			fac.ControllerNames = append(fac.ControllerNames, name)
			fac.Controllers = append(fac.Controllers, fn)
		}
	}
	m.Factory = fac

	return m, nil
}
