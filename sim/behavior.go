package sim

import (
	"fmt"
	"math/rand"
)

// ProcessFunc is user logic executed during a station visit. It receives
// the items withdrawn for the stage (one unless the stage demand is
// larger), the machine the visit runs on, and the shared factory state.
// It may suspend any number of times via p.Wait; completion is implicit
// at the function's natural end.
type ProcessFunc func(p *Proc, items []*Item, m *Machine, f *Factory)

// FlowFunc is user source or sink logic. Each iteration may suspend via
// p.Wait and terminates by returning the batch size for this iteration
// (must be >= 1). The runtime re-enters the function fresh for the next
// iteration; state that must survive iterations belongs in the Factory.
type FlowFunc func(p *Proc, f *Factory) int

// ControllerFunc is user logic updating global factory state. The
// runtime loops it forever; every iteration must perform at least one
// time advance or the run aborts (possible infinite loop).
type ControllerFunc func(p *Proc, f *Factory)

// DistFunc is a user-defined attribute distribution: given an RNG stream
// and the parameters from the attribute spec, it returns one sample.
type DistFunc func(rng *rand.Rand, params []float64) float64

// Registry holds the role-tagged behavior bindings referenced by name
// from the process document. Roles are checked once at load time, never
// per call.
type Registry struct {
	process     map[string]ProcessFunc
	flow        map[string]FlowFunc
	controllers map[string]ControllerFunc
	dists       map[string]DistFunc
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		process:     make(map[string]ProcessFunc),
		flow:        make(map[string]FlowFunc),
		controllers: make(map[string]ControllerFunc),
		dists:       make(map[string]DistFunc),
	}
}

// RegisterProcessFunc binds a station-visit function.
func (r *Registry) RegisterProcessFunc(name string, fn ProcessFunc) {
	r.process[name] = fn
}

// RegisterFlowFunc binds a source or sink function.
func (r *Registry) RegisterFlowFunc(name string, fn FlowFunc) {
	r.flow[name] = fn
}

// RegisterControllerFunc binds a global controller function.
func (r *Registry) RegisterControllerFunc(name string, fn ControllerFunc) {
	r.controllers[name] = fn
}

// RegisterDistribution binds a user-defined distribution identifier.
// Identifiers of the predefined catalog cannot be shadowed.
func (r *Registry) RegisterDistribution(ident string, fn DistFunc) error {
	if _, blocked := paramCount[ident]; blocked {
		return fmt.Errorf("identifier %q is predefined and cannot be reused", ident)
	}
	r.dists[ident] = fn
	return nil
}

// ProcessFunc looks up a station-visit binding.
func (r *Registry) ProcessFunc(name string) (ProcessFunc, bool) {
	fn, ok := r.process[name]
	return fn, ok
}

// FlowFunc looks up a source/sink binding.
func (r *Registry) FlowFunc(name string) (FlowFunc, bool) {
	fn, ok := r.flow[name]
	return fn, ok
}

// ControllerFunc looks up a controller binding.
func (r *Registry) ControllerFunc(name string) (ControllerFunc, bool) {
	fn, ok := r.controllers[name]
	return fn, ok
}

// Distribution looks up a user distribution binding.
func (r *Registry) Distribution(ident string) (DistFunc, bool) {
	fn, ok := r.dists[ident]
	return fn, ok
}

// DefaultRegistry is the registry the CLI binds against. Library users
// typically populate it from init functions in their behavior packages.
var DefaultRegistry = NewRegistry()

// RegisterProcessFunc binds a station-visit function in DefaultRegistry.
func RegisterProcessFunc(name string, fn ProcessFunc) {
	DefaultRegistry.RegisterProcessFunc(name, fn)
}

// RegisterFlowFunc binds a source or sink function in DefaultRegistry.
func RegisterFlowFunc(name string, fn FlowFunc) {
	DefaultRegistry.RegisterFlowFunc(name, fn)
}

// RegisterControllerFunc binds a global control function in DefaultRegistry.
func RegisterControllerFunc(name string, fn ControllerFunc) {
	DefaultRegistry.RegisterControllerFunc(name, fn)
}

// RegisterDistribution binds a user distribution in DefaultRegistry.
func RegisterDistribution(ident string, fn DistFunc) error {
	return DefaultRegistry.RegisterDistribution(ident, fn)
}
