package sim

import (
	"testing"
)

func TestResource_CapacityBound(t *testing.T) {
	// GIVEN a capacity-2 resource and three holders
	env := NewEnvironment()
	r := NewResource(env, 2)
	maxInUse := 0
	for i := 0; i < 3; i++ {
		env.Process("holder", func(p *Proc) {
			r.Acquire(p, 10)
			if r.InUse() > maxInUse {
				maxInUse = r.InUse()
			}
			p.Wait(5)
			r.Release()
		})
	}

	if err := env.Run(100); err != nil {
		t.Fatalf("Run: %v", err)
	}

	// THEN no more than two held it at once and all finished
	if maxInUse != 2 {
		t.Errorf("max in use = %d, want 2", maxInUse)
	}
	if r.InUse() != 0 {
		t.Errorf("in use after run = %d, want 0", r.InUse())
	}
}

func TestResource_PriorityOrder(t *testing.T) {
	// GIVEN a busy capacity-1 resource with waiters of differing priority
	env := NewEnvironment()
	r := NewResource(env, 1)
	var grants []string
	env.Process("initial", func(p *Proc) {
		r.Acquire(p, 10)
		p.Wait(10)
		r.Release()
	})
	claim := func(name string, at float64, priority int) {
		env.Process(name, func(p *Proc) {
			p.Wait(at)
			r.Acquire(p, priority)
			grants = append(grants, name)
			p.Wait(1)
			r.Release()
		})
	}
	claim("low", 1, 20)
	claim("high", 2, 1)
	claim("mid", 3, 10)

	if err := env.Run(100); err != nil {
		t.Fatalf("Run: %v", err)
	}

	// THEN release at t=10 served waiters by ascending priority value
	want := []string{"high", "mid", "low"}
	if len(grants) != len(want) {
		t.Fatalf("grants = %v, want %v", grants, want)
	}
	for i, w := range want {
		if grants[i] != w {
			t.Errorf("grant[%d]: got %s, want %s", i, grants[i], w)
		}
	}
}

func TestResource_EqualPriorityArrivalOrder(t *testing.T) {
	// GIVEN equal-priority waiters queueing while the resource is busy
	env := NewEnvironment()
	r := NewResource(env, 1)
	var grants []string
	env.Process("initial", func(p *Proc) {
		r.Acquire(p, 10)
		p.Wait(10)
		r.Release()
	})
	for _, name := range []string{"first", "second", "third"} {
		name := name
		env.Process(name, func(p *Proc) {
			r.Acquire(p, 10)
			grants = append(grants, name)
			p.Wait(1)
			r.Release()
		})
	}

	if err := env.Run(100); err != nil {
		t.Fatalf("Run: %v", err)
	}

	// THEN ties broke by arrival order
	want := []string{"first", "second", "third"}
	for i, w := range want {
		if grants[i] != w {
			t.Errorf("grant[%d]: got %s, want %s", i, grants[i], w)
		}
	}
}
