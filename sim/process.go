package sim

import "fmt"

// stopSignal unwinds a suspended process during environment shutdown.
// It must never be swallowed by recover blocks in process bodies.
type stopSignal struct{}

// Proc is a suspendable unit of control: a station visit, a source, a
// sink or a global controller. A Proc runs on its own goroutine but is
// strictly interleaved with the scheduler through a channel handshake,
// so no two processes ever execute concurrently.
//
// Suspension happens only inside Wait and the Resource/Store acquisition
// calls; a process never loses control mid-mutation of shared state.
type Proc struct {
	env  *Environment
	name string

	resume  chan bool
	yielded chan struct{}

	finished    bool
	pendingWake bool
	err         error

	// waits counts time-advance suspensions in the current iteration.
	// Source, sink and controller loops reset it; the runtime reads it
	// to enforce the suspension contracts.
	waits int

	// waitBudget bounds waits per iteration for Inspector probes;
	// 0 means unlimited.
	waitBudget int
}

// Process spawns a new process executing body. The first activation is
// scheduled at the current simulation time.
func (env *Environment) Process(name string, body func(*Proc)) *Proc {
	p := &Proc{
		env:     env,
		name:    name,
		resume:  make(chan bool),
		yielded: make(chan struct{}),
	}
	env.procs = append(env.procs, p)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				if _, stopped := r.(stopSignal); !stopped {
					if err, ok := r.(error); ok {
						p.err = err
					} else {
						p.err = fmt.Errorf("%s: panic: %v", p.name, r)
					}
				}
			}
			p.finished = true
			p.yielded <- struct{}{}
		}()
		if !<-p.resume {
			panic(stopSignal{})
		}
		body(p)
	}()
	env.schedule(env.now, p.activate)
	return p
}

// activate hands control to the process and blocks until it suspends or
// finishes. Runs on the scheduler side of the handshake.
func (p *Proc) activate() {
	if p.finished {
		return
	}
	p.resume <- true
	<-p.yielded
	if p.finished && p.err != nil {
		p.env.fail(p.err)
	}
}

// yield suspends the calling process until the scheduler resumes it.
// Runs on the process side of the handshake.
func (p *Proc) yield() {
	p.yielded <- struct{}{}
	if !<-p.resume {
		panic(stopSignal{})
	}
}

// Wait suspends the calling process for d time units. A duration of
// exactly zero still yields control once so equal-time competitors can
// proceed. Negative durations are a contract violation.
func (p *Proc) Wait(d float64) {
	if d < 0 {
		panic(&ContractError{
			Kind:   BadDelay,
			Detail: fmt.Sprintf("negative delay %v", d),
		})
	}
	p.waits++
	if p.waitBudget > 0 && p.waits > p.waitBudget {
		panic(&ContractError{
			Kind:   InfiniteLoop,
			Detail: fmt.Sprintf("iteration exceeded %d suspensions", p.waitBudget),
		})
	}
	p.env.wake(p, d)
	p.yield()
}

// Now returns the current simulation time.
func (p *Proc) Now() float64 {
	return p.env.now
}

// Env returns the owning environment.
func (p *Proc) Env() *Environment {
	return p.env
}

// Name returns the process name used in diagnostics.
func (p *Proc) Name() string {
	return p.name
}
