package sim

import "container/heap"

// getWaiter is a queued withdrawal request against one store.
type getWaiter struct {
	p        *Proc
	count    int
	match    func(*Item) bool
	priority int
	seq      int64
	granted  []*Item
	done     bool
	parked   bool
}

type getQueue []*getWaiter

func (gq getQueue) Len() int { return len(gq) }

func (gq getQueue) Less(i, j int) bool {
	if gq[i].priority != gq[j].priority {
		return gq[i].priority < gq[j].priority
	}
	return gq[i].seq < gq[j].seq
}

func (gq getQueue) Swap(i, j int) { gq[i], gq[j] = gq[j], gq[i] }

func (gq *getQueue) Push(x any) { *gq = append(*gq, x.(*getWaiter)) }

func (gq *getQueue) Pop() any {
	old := *gq
	n := len(old)
	item := old[n-1]
	*gq = old[0 : n-1]
	return item
}

// putWaiter is a queued insertion blocked on free capacity.
type putWaiter struct {
	p        *Proc
	item     *Item
	priority int
	seq      int64
	done     bool
	parked   bool
}

type putQueue []*putWaiter

func (pq putQueue) Len() int { return len(pq) }

func (pq putQueue) Less(i, j int) bool {
	if pq[i].priority != pq[j].priority {
		return pq[i].priority < pq[j].priority
	}
	return pq[i].seq < pq[j].seq
}

func (pq putQueue) Swap(i, j int) { pq[i], pq[j] = pq[j], pq[i] }

func (pq *putQueue) Push(x any) { *pq = append(*pq, x.(*putWaiter)) }

func (pq *putQueue) Pop() any {
	old := *pq
	n := len(old)
	item := old[n-1]
	*pq = old[0 : n-1]
	return item
}

// Store is a bounded FIFO buffer of Items with filtered withdrawal.
// Producers suspend while the store is full; consumers suspend while
// fewer than the requested number of matching items are held. Waiters on
// both sides are served by (priority ascending, arrival) among the
// currently satisfiable requests.
type Store struct {
	env      *Environment
	name     string
	capacity int // 0 = unbounded
	items    []*Item
	getters  getQueue
	putters  putQueue

	// watchers are processes parked in WaitAny; every successful
	// insertion wakes them so multi-store withdrawals can re-check.
	watchers []*Proc
}

// NewStore creates a store. A capacity of 0 means unbounded.
func NewStore(env *Environment, name string, capacity int) *Store {
	return &Store{env: env, name: name, capacity: capacity}
}

// Name returns the store name used in diagnostics.
func (s *Store) Name() string { return s.name }

// Cap returns the configured capacity (0 = unbounded).
func (s *Store) Cap() int { return s.capacity }

// Len returns the number of items currently held.
func (s *Store) Len() int { return len(s.items) }

// Full reports whether the store is at capacity.
func (s *Store) Full() bool {
	return s.capacity > 0 && len(s.items) >= s.capacity
}

// Items returns the held items for inspection. Callers must not mutate
// the returned slice.
func (s *Store) Items() []*Item { return s.items }

// countMatch counts held items accepted by match.
func (s *Store) countMatch(match func(*Item) bool) int {
	if match == nil {
		return len(s.items)
	}
	n := 0
	for _, it := range s.items {
		if match(it) {
			n++
		}
	}
	return n
}

// CanSatisfy reports whether a Get for count items matching match would
// complete without suspending.
func (s *Store) CanSatisfy(count int, match func(*Item) bool) bool {
	return s.countMatch(match) >= count
}

// take removes the first count matching items. Callers must have checked
// CanSatisfy; removal and the preceding check run without suspension, so
// the pair is atomic with respect to other processes.
func (s *Store) take(count int, match func(*Item) bool) []*Item {
	out := make([]*Item, 0, count)
	kept := s.items[:0]
	for _, it := range s.items {
		if len(out) < count && (match == nil || match(it)) {
			out = append(out, it)
		} else {
			kept = append(kept, it)
		}
	}
	s.items = kept
	return out
}

// insert appends an item and wakes multi-store watchers.
func (s *Store) insert(it *Item) {
	s.items = append(s.items, it)
	for _, w := range s.watchers {
		s.env.wake(w, 0)
	}
}

// Put inserts item, suspending the caller while the store is full or
// while earlier blocked producers are still queued.
func (s *Store) Put(p *Proc, item *Item, priority int) {
	w := &putWaiter{p: p, item: item, priority: priority, seq: s.env.nextSeq()}
	heap.Push(&s.putters, w)
	s.dispatch()
	for !w.done {
		w.parked = true
		p.yield()
	}
	w.parked = false
}

// Get withdraws count items accepted by match (nil matches everything),
// suspending the caller until enough matching items are held.
func (s *Store) Get(p *Proc, count int, match func(*Item) bool, priority int) []*Item {
	w := &getWaiter{p: p, count: count, match: match, priority: priority, seq: s.env.nextSeq()}
	heap.Push(&s.getters, w)
	s.dispatch()
	for !w.done {
		w.parked = true
		p.yield()
	}
	w.parked = false
	return w.granted
}

// dispatch moves the store to a fixpoint: admit blocked producers while
// capacity allows, then grant satisfiable withdrawals in (priority,
// arrival) order, repeating while either side makes progress. Granted
// waiters are woken at the current time; the running caller's own
// request is completed in place without a wakeup.
func (s *Store) dispatch() {
	for {
		progress := false

		for s.putters.Len() > 0 && !s.Full() {
			w := heap.Pop(&s.putters).(*putWaiter)
			s.insert(w.item)
			w.done = true
			if w.parked {
				s.env.wake(w.p, 0)
			}
			progress = true
		}

		// Grant satisfiable getters in discipline order; unsatisfiable
		// ones stay queued and are skipped.
		var kept getQueue
		for s.getters.Len() > 0 {
			w := heap.Pop(&s.getters).(*getWaiter)
			if s.CanSatisfy(w.count, w.match) {
				w.granted = s.take(w.count, w.match)
				w.done = true
				if w.parked {
					s.env.wake(w.p, 0)
				}
				progress = true
			} else {
				kept = append(kept, w)
			}
		}
		for _, w := range kept {
			heap.Push(&s.getters, w)
		}

		if !progress {
			return
		}
	}
}

// addWatcher registers p to be woken on every insertion.
func (s *Store) addWatcher(p *Proc) {
	s.watchers = append(s.watchers, p)
}

// removeWatcher deregisters p.
func (s *Store) removeWatcher(p *Proc) {
	for i, w := range s.watchers {
		if w == p {
			s.watchers = append(s.watchers[:i], s.watchers[i+1:]...)
			return
		}
	}
}

// StoreDemand pairs a store with a withdrawal demand, for all-or-nothing
// multi-store pulls at assembly stages.
type StoreDemand struct {
	Store *Store
	Count int
	Match func(*Item) bool
}

// AllAvailable reports whether every demand could be satisfied right now.
func AllAvailable(demands []StoreDemand) bool {
	for _, d := range demands {
		if !d.Store.CanSatisfy(d.Count, d.Match) {
			return false
		}
	}
	return true
}

// TakeAll withdraws every demand in one step. Callers must have checked
// AllAvailable without suspending in between; partial withdrawal is
// impossible because the check-withdraw pair runs within one activation.
func TakeAll(demands []StoreDemand) [][]*Item {
	out := make([][]*Item, len(demands))
	for i, d := range demands {
		out[i] = d.Store.take(d.Count, d.Match)
	}
	for _, d := range demands {
		d.Store.dispatch()
	}
	return out
}

// WaitAny parks the caller until any of the stores receives an item.
func WaitAny(p *Proc, demands []StoreDemand) {
	for _, d := range demands {
		d.Store.addWatcher(p)
	}
	p.yield()
	for _, d := range demands {
		d.Store.removeWatcher(p)
	}
}

// GetAll withdraws from every store atomically: the calling process
// suspends until all demands are satisfiable in the same instant, then
// takes everything in one step.
func GetAll(p *Proc, demands []StoreDemand) [][]*Item {
	for !AllAvailable(demands) {
		WaitAny(p, demands)
	}
	return TakeAll(demands)
}
