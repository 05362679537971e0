package sim

import "container/heap"

// waiter is one queued acquisition request. Requests are served ordered
// by (priority ascending, arrival sequence), the same discipline Stores
// use for their waiters.
type waiter struct {
	p        *Proc
	priority int
	seq      int64
	granted  bool
	parked   bool
}

// waiterQueue implements heap.Interface ordered by (priority, seq).
type waiterQueue []*waiter

func (wq waiterQueue) Len() int { return len(wq) }

func (wq waiterQueue) Less(i, j int) bool {
	if wq[i].priority != wq[j].priority {
		return wq[i].priority < wq[j].priority
	}
	return wq[i].seq < wq[j].seq
}

func (wq waiterQueue) Swap(i, j int) { wq[i], wq[j] = wq[j], wq[i] }

func (wq *waiterQueue) Push(x any) {
	*wq = append(*wq, x.(*waiter))
}

func (wq *waiterQueue) Pop() any {
	old := *wq
	n := len(old)
	item := old[n-1]
	*wq = old[0 : n-1]
	return item
}

// Resource is a capacity-N concurrency gate, used as the machine pool of
// a Station. Acquisition requests queue by (item priority ascending,
// request arrival); when a unit frees, the highest-priority waiting
// request is granted.
type Resource struct {
	env      *Environment
	capacity int
	inUse    int
	waiters  waiterQueue
}

// NewResource creates a resource with the given capacity (must be > 0).
func NewResource(env *Environment, capacity int) *Resource {
	return &Resource{env: env, capacity: capacity}
}

// Capacity returns the configured capacity.
func (r *Resource) Capacity() int { return r.capacity }

// InUse returns the number of currently granted units.
func (r *Resource) InUse() int { return r.inUse }

// Acquire obtains one unit, suspending the caller while the resource is
// saturated or while higher-priority requests are queued.
func (r *Resource) Acquire(p *Proc, priority int) {
	w := &waiter{p: p, priority: priority, seq: r.env.nextSeq()}
	heap.Push(&r.waiters, w)
	r.dispatch()
	for !w.granted {
		w.parked = true
		p.yield()
	}
	w.parked = false
}

// Release returns one unit and grants the next queued request.
func (r *Resource) Release() {
	r.inUse--
	r.dispatch()
}

// dispatch grants queued requests while units are free. Granted procs
// are woken at the current time; a grant to the running caller (from its
// own Acquire) needs no wakeup since it has not yielded yet.
func (r *Resource) dispatch() {
	for r.inUse < r.capacity && r.waiters.Len() > 0 {
		w := heap.Pop(&r.waiters).(*waiter)
		r.inUse++
		w.granted = true
		if w.parked {
			r.env.wake(w.p, 0)
		}
	}
}
