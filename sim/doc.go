// Package sim provides a discrete-event simulation kernel for
// production flows: orders move through station routings, get processed
// by machines, assembled from component parts and drained by sinks.
//
// # Reading Guide
//
// Start with these three files to understand the kernel:
//   - env.go: the event queue, the clock and the run loop
//   - process.go: suspendable processes and the scheduler handshake
//   - simulator.go: sources, station visits, assembly pulls, sinks and controllers
//
// # Architecture
//
// The kernel is single-threaded in the logical sense: processes run on
// goroutines but the scheduler activates exactly one at a time, so a
// process owns all shared state between two suspension points. The
// building blocks are:
//   - Resource: counted station capacity with priority queueing
//   - Store: buffers and final stores with filtered, batched retrieval
//   - Item / Order / Station / Factory: the entity model (model.go, item.go)
//   - Registry: user behavior functions and distributions (behavior.go)
//   - Inspector: static and probe-based checks before a real run (inspector.go)
//
// Process definitions are YAML documents (config.go); run output is a
// stream of trace.Snapshot values, collected and written as CSV by the
// sim/trace sub-package.
//
// Runs are deterministic: every (definition, seed) pair produces the
// same event order and the same trace, because random sampling is
// partitioned per component (rng.go) and simultaneous events fire in
// scheduling order.
package sim
