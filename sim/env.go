package sim

import (
	"container/heap"

	"github.com/sirupsen/logrus"
)

// event is one scheduled continuation. Ordering is (time, seq): events at
// distinct timestamps execute in timestamp order; events at equal
// timestamps execute in the order they were scheduled. The FIFO tie-break
// is part of the engine's contract, not an implementation accident.
type event struct {
	time float64
	seq  int64
	fire func()
}

// eventQueue implements heap.Interface over scheduled events.
// See canonical Golang example here: https://pkg.go.dev/container/heap
type eventQueue []*event

func (eq eventQueue) Len() int { return len(eq) }

func (eq eventQueue) Less(i, j int) bool {
	if eq[i].time != eq[j].time {
		return eq[i].time < eq[j].time
	}
	return eq[i].seq < eq[j].seq
}

func (eq eventQueue) Swap(i, j int) { eq[i], eq[j] = eq[j], eq[i] }

func (eq *eventQueue) Push(x any) {
	*eq = append(*eq, x.(*event))
}

func (eq *eventQueue) Pop() any {
	old := *eq
	n := len(old)
	item := old[n-1]
	*eq = old[0 : n-1]
	return item
}

// Environment owns the simulation clock and the event queue, and
// multiplexes all processes onto a single logical thread of control.
// Exactly one process runs at a time; the scheduler hands control to a
// process and blocks until that process suspends or finishes, so shared
// state mutations are atomic with respect to other processes.
type Environment struct {
	now   float64
	seq   int64
	queue eventQueue
	procs []*Proc

	failure  error
	executed int

	// eventBudget bounds the number of executed events; 0 means
	// unlimited. The Inspector uses this for its dry-run mode.
	eventBudget int
}

// NewEnvironment creates an empty simulation environment at time 0.
func NewEnvironment() *Environment {
	return &Environment{queue: make(eventQueue, 0)}
}

// Now returns the current simulation time.
func (env *Environment) Now() float64 {
	return env.now
}

// ScheduleAfter schedules fn to run after delay time units. A negative
// delay is a programming error in user behavior and is reported rather
// than clamped.
func (env *Environment) ScheduleAfter(delay float64, fn func()) error {
	if delay < 0 {
		return &ContractError{Kind: BadDelay, Detail: "negative delay"}
	}
	env.schedule(env.now+delay, fn)
	return nil
}

// schedule enqueues fn at absolute time t with the next sequence number.
func (env *Environment) schedule(t float64, fire func()) {
	env.seq++
	heap.Push(&env.queue, &event{time: t, seq: env.seq, fire: fire})
}

// nextSeq hands out arrival sequence numbers for resource and store
// waiter disciplines, shared with event scheduling so that arrival order
// and schedule order agree.
func (env *Environment) nextSeq() int64 {
	env.seq++
	return env.seq
}

// wake schedules a suspended process to resume after delay. At most one
// wakeup is pending per process; multi-store watchers rely on this
// dedupe when several puts land in the same tick.
func (env *Environment) wake(p *Proc, delay float64) {
	if p.pendingWake || p.finished {
		return
	}
	p.pendingWake = true
	env.schedule(env.now+delay, func() {
		p.pendingWake = false
		p.activate()
	})
}

// fail records the first fatal error; the run loop stops on it.
func (env *Environment) fail(err error) {
	if env.failure == nil {
		env.failure = err
		logrus.Errorf("simulation aborted: %v", err)
	}
}

// Run drives the event loop until the queue drains, the horizon is
// passed, or a fatal error occurs. The horizon is inclusive: an event
// scheduled at exactly until still fires, later events stay queued. On
// return all remaining processes have been unwound; the environment
// cannot be reused.
func (env *Environment) Run(until float64) error {
	for env.queue.Len() > 0 && env.failure == nil {
		if env.eventBudget > 0 && env.executed >= env.eventBudget {
			break
		}
		if env.queue[0].time > until {
			env.now = until
			break
		}
		ev := heap.Pop(&env.queue).(*event)
		env.now = ev.time
		env.executed++
		ev.fire()
	}
	if env.failure == nil && env.queue.Len() == 0 && env.now < until {
		env.now = until
	}
	env.shutdown()
	logrus.Debugf("[t %.3f] simulation ended", env.now)
	return env.failure
}

// Budget-limited runs report whether the budget was exhausted.
func (env *Environment) budgetExhausted() bool {
	return env.eventBudget > 0 && env.executed >= env.eventBudget
}

// shutdown unwinds every process that is still suspended so no
// goroutines outlive the run.
func (env *Environment) shutdown() {
	for _, p := range env.procs {
		if !p.finished {
			p.resume <- false
			<-p.yielded
		}
	}
}
