package sim

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/prodflow/prodflow/sim/trace"
)

// Options configure a simulation run.
type Options struct {
	// Horizon is the simulation end time. The run stops when the clock
	// reaches it or no events remain.
	Horizon float64

	// Seed initializes the partitioned random source. Runs with the
	// same definition and seed produce identical traces.
	Seed int64

	// Track selects the components (order, station and factory names)
	// whose snapshots are recorded. Nil tracks everything.
	Track []string

	// Recorder receives snapshots; nil discards them.
	Recorder trace.Recorder

	// EventBudget bounds the number of executed events; 0 means
	// unlimited. The Inspector uses it for its dry run.
	EventBudget int

	// capture collects contract violations instead of aborting on the
	// first one. Inspector use only.
	capture bool
}

// Simulator drives a production flow: it wires sources, station visits,
// assembly pulls, sinks and controllers to the event core and records
// component snapshots as the flow progresses.
type Simulator struct {
	env   *Environment
	model *Model
	rec   trace.Recorder

	horizon float64
	tracked map[string]bool // nil tracks everything

	capture  bool
	captured []*ContractError
}

// NewSimulator validates the process definition, builds the runtime
// model and returns a Simulator ready to Run.
func NewSimulator(spec *ProcessSpec, reg *Registry, opts Options) (*Simulator, error) {
	if reg == nil {
		reg = DefaultRegistry
	}
	if err := spec.Validate(reg); err != nil {
		return nil, err
	}
	env := NewEnvironment()
	env.eventBudget = opts.EventBudget
	model, err := buildModel(env, spec, reg, NewPartitionedRNG(opts.Seed))
	if err != nil {
		return nil, err
	}
	rec := opts.Recorder
	if rec == nil {
		rec = trace.Discard{}
	}
	var tracked map[string]bool
	if opts.Track != nil {
		tracked = make(map[string]bool, len(opts.Track))
		for _, name := range opts.Track {
			tracked[name] = true
		}
	}
	return &Simulator{
		env:     env,
		model:   model,
		rec:     rec,
		horizon: opts.Horizon,
		tracked: tracked,
		capture: opts.capture,
	}, nil
}

// Env exposes the underlying environment, mainly for tests.
func (s *Simulator) Env() *Environment { return s.env }

// Model exposes the runtime model built from the process definition.
func (s *Simulator) Model() *Model { return s.model }

// Run starts every source, sink and controller and executes events
// until the horizon. It returns the first fatal error, or nil.
func (s *Simulator) Run() error {
	logrus.WithFields(logrus.Fields{
		"orders":   len(s.model.Orders),
		"stations": len(s.model.Stations),
		"horizon":  s.horizon,
	}).Info("starting simulation")
	for i, fn := range s.model.Factory.Controllers {
		name := s.model.Factory.ControllerNames[i]
		s.spawn("factory:"+name, "factory", name, s.controllerProc(name, fn))
	}
	for _, o := range s.model.Orders {
		s.spawn("order:"+o.Name+":source", o.Name, o.SourceName, s.sourceProc(o))
		s.spawn("order:"+o.Name+":sink", o.Name, o.SinkName, s.sinkProc(o))
	}
	err := s.env.Run(s.horizon)
	if err != nil {
		logrus.WithError(err).Error("simulation aborted")
		return err
	}
	logrus.WithField("time", s.env.Now()).Info("simulation finished")
	return nil
}

// captured reports the contract violations collected in capture mode.
func (s *Simulator) capturedViolations() []*ContractError { return s.captured }

func (s *Simulator) isTracked(name string) bool {
	return s.tracked == nil || s.tracked[name]
}

// spawn starts a process whose contract violations are attributed to
// the given component and behavior function. In capture mode a
// violation terminates only the offending process; otherwise it aborts
// the run.
func (s *Simulator) spawn(name, component, function string, body func(*Proc)) {
	s.env.Process(name, func(p *Proc) {
		defer func() {
			r := recover()
			if r == nil {
				return
			}
			if _, stopped := r.(stopSignal); stopped {
				panic(r)
			}
			ce := asContractError(r, component, function)
			if s.capture {
				s.captured = append(s.captured, ce)
				return
			}
			panic(ce)
		}()
		body(p)
	})
}

func asContractError(r any, component, function string) *ContractError {
	if ce, ok := r.(*ContractError); ok {
		if ce.Component == "" {
			ce.Component = component
		}
		if ce.Function == "" {
			ce.Function = function
		}
		return ce
	}
	return &ContractError{
		Kind:      BehaviorPanic,
		Component: component,
		Function:  function,
		Detail:    fmt.Sprint(r),
	}
}

// matchOrderStep selects items of the given order whose last entered
// stage is step. Station buffers are shared, so every stage pull
// filters this way.
func matchOrderStep(o *Order, step int) func(*Item) bool {
	return func(it *Item) bool {
		return it.order == o && it.step == step
	}
}

// sourceProc runs an order's source function in a loop. Each iteration
// returns a batch size; the source creates that many items, records
// their birth snapshot and places them into the first stage's buffer
// (or straight into the final store for stageless orders).
func (s *Simulator) sourceProc(o *Order) func(*Proc) {
	return func(p *Proc) {
		target := o.FinalStore
		if len(o.Stages) > 0 {
			target = o.Stages[0].Station.Buffer
		}
		for {
			p.waits = 0
			n := o.Source(p, s.model.Factory)
			if n < 1 {
				panic(&ContractError{
					Kind:   BadYield,
					Detail: fmt.Sprintf("source returned batch size %d", n),
				})
			}
			if p.waits == 0 && target.Cap() == 0 {
				panic(&ContractError{
					Kind:   InfiniteLoop,
					Detail: "source never suspends and its target store is unbounded",
				})
			}
			for i := 0; i < n; i++ {
				it := s.model.buildItem(o)
				s.snapshotItem(it, -1, -1)
				target.Put(p, it, o.Priority)
				if len(o.Stages) > 0 {
					s.admit(o, 0)
				}
			}
		}
	}
}

// admit counts an item arriving at stage k and, once a full processing
// batch has accumulated, starts the process that will serve it.
func (s *Simulator) admit(o *Order, k int) {
	o.counters[k]++
	sg := o.Stages[k]
	if o.counters[k]%sg.Demand != 0 {
		return
	}
	name := fmt.Sprintf("order:%s:stage%d", o.Name, k)
	if sg.IsAssembly() {
		s.spawn(name, o.Name, sg.FuncName, s.assemblyProc(o, k))
	} else {
		s.spawn(name, o.Name, sg.FuncName, s.machiningProc(o, k))
	}
}

// machiningProc serves one batch at a machining stage: claim station
// capacity, pull the batch from the shared buffer, run the process
// function on a machine, then forward survivors downstream.
func (s *Simulator) machiningProc(o *Order, k int) func(*Proc) {
	return func(p *Proc) {
		sg := o.Stages[k]
		st := sg.Station
		st.Pool.Acquire(p, o.Priority)
		items := st.Buffer.Get(p, sg.Demand, matchOrderStep(o, k-1), o.Priority)
		for _, it := range items {
			it.step = k
		}
		m := st.takeMachine()
		s.invokeBehavior(p, o, sg, items, m)
		s.finishStage(p, o, k, st, m, items)
	}
}

// assemblyProc serves one batch at an assembly stage. It suspends until
// the main batch and every component batch are simultaneously
// available, claims station capacity, re-checks availability (a
// competing stage may have consumed a part while the claim was
// pending), then pulls everything atomically and mounts the components
// onto the first main item.
func (s *Simulator) assemblyProc(o *Order, k int) func(*Proc) {
	return func(p *Proc) {
		sg := o.Stages[k]
		st := sg.Station
		demands := make([]StoreDemand, 0, len(sg.Components)+1)
		demands = append(demands, StoreDemand{
			Store: st.Buffer,
			Count: sg.Demand,
			Match: matchOrderStep(o, k-1),
		})
		for _, cd := range sg.Components {
			demands = append(demands, StoreDemand{Store: cd.Order.FinalStore, Count: cd.Count})
		}
		for {
			for !AllAvailable(demands) {
				WaitAny(p, demands)
			}
			st.Pool.Acquire(p, o.Priority)
			if AllAvailable(demands) {
				break
			}
			st.Pool.Release()
		}
		batches := TakeAll(demands)
		mains := batches[0]
		for _, it := range mains {
			it.step = k
		}
		main := mains[0]
		for ci, cd := range sg.Components {
			for _, child := range batches[ci+1] {
				logrus.WithFields(logrus.Fields{
					"parent": main.ID(),
					"child":  child.ID(),
					"type":   cd.Order.Name,
				}).Debug("assembling component")
				main.Assemble(child)
			}
		}
		m := st.takeMachine()
		s.invokeBehavior(p, o, sg, mains, m)
		s.finishStage(p, o, k, st, m, mains)
	}
}

// invokeBehavior runs a stage's process function. A contract violation
// aborts the run (or is captured); any other panic rejects the batch
// and lets the flow continue.
func (s *Simulator) invokeBehavior(p *Proc, o *Order, sg *Stage, items []*Item, m *Machine) {
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		if _, stopped := r.(stopSignal); stopped {
			panic(r)
		}
		if ce, ok := r.(*ContractError); ok {
			panic(asContractError(ce, o.Name, sg.FuncName))
		}
		logrus.WithFields(logrus.Fields{
			"order":    o.Name,
			"station":  sg.Station.Name,
			"function": sg.FuncName,
			"panic":    fmt.Sprint(r),
		}).Error("process function failed, rejecting batch")
		for _, it := range items {
			it.MarkReject()
		}
	}()
	sg.Fn(p, items, m, s.model.Factory)
}

// finishStage records the stage's snapshots, forwards surviving items
// to the next buffer (final store after the last stage) and releases
// the machine and station capacity. Rejected items are dropped here.
func (s *Simulator) finishStage(p *Proc, o *Order, k int, st *Station, m *Machine, items []*Item) {
	if s.isTracked(st.Name) {
		s.snapshotMachine(st, m)
	}
	if !st.Measurement {
		for _, it := range items {
			s.snapshotItem(it, st.id, -1)
		}
	}
	last := k == len(o.Stages)-1
	next := o.FinalStore
	if !last {
		next = o.Stages[k+1].Station.Buffer
	}
	forwarded := 0
	for _, it := range items {
		if it.Rejected() {
			logrus.WithFields(logrus.Fields{
				"order":   o.Name,
				"item":    it.ID(),
				"station": st.Name,
			}).Debug("dropping rejected item")
			continue
		}
		next.Put(p, it, o.Priority)
		forwarded++
	}
	st.releaseMachine(m)
	st.Pool.Release()
	if !last {
		for i := 0; i < forwarded; i++ {
			s.admit(o, k+1)
		}
	}
}

// sinkProc drains an order's final store. Without a user sink function
// one item is removed per activation as soon as it arrives; assembled
// component orders get no default sink, their parts leave through the
// consuming order's assembly pull. A user sink returns how many items
// to remove per iteration.
func (s *Simulator) sinkProc(o *Order) func(*Proc) {
	return func(p *Proc) {
		if o.Sink == nil {
			if o.assembled {
				return
			}
			for {
				o.FinalStore.Get(p, 1, nil, o.Priority)
			}
		}
		for {
			p.waits = 0
			n := o.Sink(p, s.model.Factory)
			if n < 1 {
				panic(&ContractError{
					Kind:   BadYield,
					Detail: fmt.Sprintf("sink returned batch size %d", n),
				})
			}
			for i := 0; i < n; i++ {
				o.FinalStore.Get(p, 1, nil, o.Priority)
			}
		}
	}
}

// controllerProc runs a global control function in a loop. Every
// iteration must advance time, otherwise the clock could never move
// past the controller.
func (s *Simulator) controllerProc(name string, fn ControllerFunc) func(*Proc) {
	return func(p *Proc) {
		for {
			p.waits = 0
			fn(p, s.model.Factory)
			if p.waits == 0 {
				panic(&ContractError{
					Kind:   NonSuspending,
					Detail: "controller iteration performed no wait",
				})
			}
			if s.isTracked("factory") {
				s.snapshotFactory()
			}
		}
	}
}

// snapshotItem records an order row for the item and, recursively, for
// every assembled child with the parent's id as origin.
func (s *Simulator) snapshotItem(it *Item, stationID int, origin int64) {
	if s.isTracked(it.order.Name) {
		s.rec.Record(trace.Snapshot{
			Component: it.order.Name,
			Kind:      trace.KindOrder,
			Time:      s.env.Now(),
			ItemID:    it.ID(),
			Origin:    origin,
			StationID: stationID,
			MachineNr: -1,
			Attrs:     copyAttrs(it.Attrs),
		})
	}
	for _, key := range it.ChildKeys() {
		s.snapshotItem(it.children[key], stationID, it.ID())
	}
}

func (s *Simulator) snapshotMachine(st *Station, m *Machine) {
	s.rec.Record(trace.Snapshot{
		Component: st.Name,
		Kind:      trace.KindStation,
		Time:      s.env.Now(),
		ItemID:    -1,
		Origin:    -1,
		StationID: st.id,
		MachineNr: m.Nr,
		Attrs:     copyAttrs(m.Attrs),
	})
}

func (s *Simulator) snapshotFactory() {
	s.rec.Record(trace.Snapshot{
		Component: "factory",
		Kind:      trace.KindFactory,
		Time:      s.env.Now(),
		ItemID:    -1,
		Origin:    -1,
		StationID: -1,
		MachineNr: -1,
		Attrs:     copyAttrs(s.model.Factory.Attrs),
	})
}

// copyAttrs freezes attribute values at snapshot time; behavior
// functions keep mutating the live maps afterwards.
func copyAttrs(attrs map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(attrs))
	for k, v := range attrs {
		out[k] = v
	}
	return out
}
