package sim

import (
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
)

// Severity grades an Inspector finding.
type Severity string

const (
	// Fatal findings make a run abort or hang; the definition must be
	// fixed before simulating.
	Fatal Severity = "fatal"
	// Advisory findings are suspicious but may be intentional.
	Advisory Severity = "advisory"
)

// Finding is one problem the Inspector located.
type Finding struct {
	Severity  Severity
	Component string
	Function  string
	Kind      ContractKind // empty for structural findings
	Detail    string
}

func (f Finding) String() string {
	loc := f.Component
	if f.Function != "" {
		loc += "/" + f.Function
	}
	return fmt.Sprintf("%-8s %s: %s", strings.ToUpper(string(f.Severity)), loc, f.Detail)
}

// Report is the Inspector's verdict over a process definition.
type Report struct {
	Findings []Finding
}

// FatalCount returns the number of fatal findings.
func (r *Report) FatalCount() int { return r.count(Fatal) }

// AdvisoryCount returns the number of advisory findings.
func (r *Report) AdvisoryCount() int { return r.count(Advisory) }

func (r *Report) count(sev Severity) int {
	n := 0
	for _, f := range r.Findings {
		if f.Severity == sev {
			n++
		}
	}
	return n
}

// ByComponent returns the findings attributed to one component.
func (r *Report) ByComponent(name string) []Finding {
	var out []Finding
	for _, f := range r.Findings {
		if f.Component == name {
			out = append(out, f)
		}
	}
	return out
}

func (r *Report) String() string {
	if len(r.Findings) == 0 {
		return "no findings"
	}
	lines := make([]string, 0, len(r.Findings)+1)
	for _, f := range r.Findings {
		lines = append(lines, f.String())
	}
	lines = append(lines, fmt.Sprintf("%d fatal, %d advisory", r.FatalCount(), r.AdvisoryCount()))
	return strings.Join(lines, "\n")
}

// Inspector checks a process definition without running the full
// simulation: structural validation, isolated behavior probes and a
// bounded dry run. No Inspector step runs unbounded user code.
type Inspector struct {
	spec *ProcessSpec
	reg  *Registry

	// waitBudget bounds suspensions per probe, eventBudget bounds the
	// dry run's event loop and horizon its clock.
	waitBudget  int
	eventBudget int
	horizon     float64
}

// NewInspector returns an Inspector with default probe budgets.
func NewInspector(spec *ProcessSpec, reg *Registry) *Inspector {
	if reg == nil {
		reg = DefaultRegistry
	}
	return &Inspector{
		spec:        spec,
		reg:         reg,
		waitBudget:  1000,
		eventBudget: 20000,
		horizon:     1000,
	}
}

// Inspect runs all phases and returns the accumulated findings. The
// dry run is skipped when earlier phases already found fatal problems.
func (ins *Inspector) Inspect() *Report {
	rep := &Report{}
	ins.structural(rep)
	if rep.FatalCount() == 0 {
		ins.probeBehaviors(rep)
	}
	if rep.FatalCount() == 0 {
		ins.dryRun(rep)
	}
	for _, f := range rep.Findings {
		if f.Severity == Advisory {
			logrus.Warn(f.String())
		}
	}
	logrus.WithFields(logrus.Fields{
		"fatal":    rep.FatalCount(),
		"advisory": rep.AdvisoryCount(),
	}).Info("inspection finished")
	return rep
}

// structural reports definition errors and unused stations.
func (ins *Inspector) structural(rep *Report) {
	ins.spec.normalize()
	for _, err := range ins.spec.problems(ins.reg) {
		f := Finding{Severity: Fatal, Detail: err.Error()}
		if ce, ok := err.(*ConfigError); ok {
			f.Component = ce.Component
			f.Detail = ce.Reason
		}
		rep.Findings = append(rep.Findings, f)
	}
	used := make(map[string]bool)
	for _, os := range ins.spec.Orders {
		for _, name := range os.Stations {
			used[name] = true
		}
	}
	for _, ss := range ins.spec.Stations {
		if !used[ss.Name] {
			rep.Findings = append(rep.Findings, Finding{
				Severity:  Advisory,
				Component: ss.Name,
				Detail:    "station is not referenced by any order",
			})
		}
	}
}

// probeResult captures one isolated behavior invocation.
type probeResult struct {
	waits     int
	batch     int
	violation *ContractError
	panicked  string
}

// runProbe executes body once as a process in a throwaway environment,
// bounded by the probe budgets, and reports how it behaved.
func (ins *Inspector) runProbe(body func(p *Proc) int) probeResult {
	var res probeResult
	env := NewEnvironment()
	env.eventBudget = ins.eventBudget
	p := env.Process("probe", func(p *Proc) {
		defer func() {
			res.waits = p.waits
			r := recover()
			if r == nil {
				return
			}
			if _, stopped := r.(stopSignal); stopped {
				panic(r)
			}
			if ce, ok := r.(*ContractError); ok {
				res.violation = ce
				return
			}
			res.panicked = fmt.Sprint(r)
		}()
		res.batch = body(p)
	})
	p.waitBudget = ins.waitBudget
	if err := env.Run(ins.horizon); err != nil {
		if ce, ok := err.(*ContractError); ok && res.violation == nil {
			res.violation = ce
		}
	}
	return res
}

// probeBehaviors runs every referenced source, sink, controller and
// process function once in isolation.
func (ins *Inspector) probeBehaviors(rep *Report) {
	factory := ins.probeFactory()
	rng := NewPartitionedRNG(0)
	for i := range ins.spec.Orders {
		os := &ins.spec.Orders[i]
		ins.probeFlow(rep, os, os.Source, "source", factory)
		if os.Sink != "" {
			ins.probeFlow(rep, os, os.Sink, "sink", factory)
		}
		for k, fname := range os.Functions {
			ins.probeProcess(rep, os, k, fname, factory, rng)
		}
	}
	if ins.spec.Factory != nil {
		for _, cname := range ins.spec.Factory.Functions {
			ins.probeController(rep, cname, factory)
		}
	}
}

// probeFactory builds the factory state the probes run against.
func (ins *Inspector) probeFactory() *Factory {
	f := &Factory{Attrs: map[string]float64{}}
	if ins.spec.Factory == nil {
		return f
	}
	compiled, err := compileAttrs(ins.spec.Factory.Attributes, ins.reg)
	if err != nil {
		return f
	}
	f.Attrs = sampleAttrs(compiled, NewPartitionedRNG(0).Stream("factory"))
	return f
}

func (ins *Inspector) probeFlow(rep *Report, os *OrderSpec, fname, role string, factory *Factory) {
	fn, ok := ins.reg.FlowFunc(fname)
	if !ok {
		return
	}
	res := ins.runProbe(func(p *Proc) int {
		return fn(p, factory)
	})
	switch {
	case res.violation != nil:
		rep.Findings = append(rep.Findings, Finding{
			Severity: Fatal, Component: os.Name, Function: fname,
			Kind: res.violation.Kind, Detail: res.violation.Detail,
		})
	case res.panicked != "":
		rep.Findings = append(rep.Findings, Finding{
			Severity: Advisory, Component: os.Name, Function: fname,
			Kind: BehaviorPanic, Detail: "probe panicked: " + res.panicked,
		})
	case res.batch < 1:
		rep.Findings = append(rep.Findings, Finding{
			Severity: Fatal, Component: os.Name, Function: fname,
			Kind: BadYield, Detail: fmt.Sprintf("%s returned batch size %d", role, res.batch),
		})
	case res.waits == 0 && role == "source":
		sev := Advisory
		detail := "source iteration performed no wait; it can only block on a full target store"
		if ins.sourceTargetUnbounded(os) {
			sev = Fatal
			detail = "source never suspends and its target store is unbounded"
		}
		rep.Findings = append(rep.Findings, Finding{
			Severity: sev, Component: os.Name, Function: fname,
			Kind: InfiniteLoop, Detail: detail,
		})
	}
}

// sourceTargetUnbounded reports whether the store the source feeds has
// no capacity limit, which turns a zero-wait source into a live-lock.
func (ins *Inspector) sourceTargetUnbounded(os *OrderSpec) bool {
	if len(os.Stations) == 0 {
		return os.Storage == 0
	}
	for _, ss := range ins.spec.Stations {
		if ss.Name == os.Stations[0] {
			return ss.Storage == 0
		}
	}
	return false
}

func (ins *Inspector) probeController(rep *Report, cname string, factory *Factory) {
	fn, ok := ins.reg.ControllerFunc(cname)
	if !ok {
		return
	}
	res := ins.runProbe(func(p *Proc) int {
		fn(p, factory)
		return 1
	})
	switch {
	case res.violation != nil:
		rep.Findings = append(rep.Findings, Finding{
			Severity: Fatal, Component: "factory", Function: cname,
			Kind: res.violation.Kind, Detail: res.violation.Detail,
		})
	case res.panicked != "":
		rep.Findings = append(rep.Findings, Finding{
			Severity: Advisory, Component: "factory", Function: cname,
			Kind: BehaviorPanic, Detail: "probe panicked: " + res.panicked,
		})
	case res.waits == 0:
		rep.Findings = append(rep.Findings, Finding{
			Severity: Fatal, Component: "factory", Function: cname,
			Kind: NonSuspending, Detail: "controller iteration performed no wait",
		})
	}
}

func (ins *Inspector) probeProcess(rep *Report, os *OrderSpec, k int, fname string, factory *Factory, rng *PartitionedRNG) {
	fn, ok := ins.reg.ProcessFunc(fname)
	if !ok {
		return
	}
	compiled, err := compileAttrs(os.Attributes, ins.reg)
	if err != nil {
		return
	}
	order := &Order{Name: os.Name, Priority: *os.Priority}
	stream := rng.Stream("probe:" + os.Name)
	count := 1
	if k < len(os.Demand) {
		count = os.Demand[k].Count
	}
	items := make([]*Item, count)
	for i := range items {
		items[i] = newItem(int64(i), order, sampleAttrs(compiled, stream))
	}
	machine := &Machine{StationName: os.Stations[k], Nr: 0, Attrs: map[string]float64{}}
	res := ins.runProbe(func(p *Proc) int {
		fn(p, items, machine, factory)
		return 1
	})
	switch {
	case res.violation != nil:
		rep.Findings = append(rep.Findings, Finding{
			Severity: Fatal, Component: os.Name, Function: fname,
			Kind: res.violation.Kind, Detail: res.violation.Detail,
		})
	case res.panicked != "":
		rep.Findings = append(rep.Findings, Finding{
			Severity: Advisory, Component: os.Name, Function: fname,
			Kind: BehaviorPanic, Detail: "probe panicked: " + res.panicked,
		})
	case res.waits == 0:
		rep.Findings = append(rep.Findings, Finding{
			Severity: Advisory, Component: os.Name, Function: fname,
			Detail: "process function performed no wait; zero service time",
		})
	}
}

// dryRun executes a bounded capture-mode simulation; violations that
// only show up with real flow interactions surface here.
func (ins *Inspector) dryRun(rep *Report) {
	s, err := NewSimulator(ins.spec, ins.reg, Options{
		Horizon:     ins.horizon,
		EventBudget: ins.eventBudget,
		capture:     true,
	})
	if err != nil {
		rep.Findings = append(rep.Findings, Finding{Severity: Fatal, Detail: err.Error()})
		return
	}
	if err := s.Run(); err != nil {
		f := Finding{Severity: Fatal, Detail: err.Error()}
		if ce, ok := err.(*ContractError); ok {
			f.Component = ce.Component
			f.Function = ce.Function
			f.Kind = ce.Kind
			f.Detail = ce.Detail
		}
		rep.Findings = append(rep.Findings, f)
	}
	for _, ce := range s.capturedViolations() {
		rep.Findings = append(rep.Findings, Finding{
			Severity:  Fatal,
			Component: ce.Component,
			Function:  ce.Function,
			Kind:      ce.Kind,
			Detail:    ce.Detail,
		})
	}
}
