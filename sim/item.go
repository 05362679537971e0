package sim

import (
	"fmt"
	"sort"
)

// Item is a concrete workpiece flowing through the process. Items are
// created by an order's source, carry attribute values sampled from the
// order's distribution catalog, and may own assembled sub-items.
type Item struct {
	id    int64
	order *Order

	// Attrs holds the user-defined attribute values. Process functions
	// may read and overwrite them freely while holding control.
	Attrs map[string]float64

	rejected bool
	step     int // index of the routing stage last entered; -1 before the first

	parent     *Item
	children   map[string]*Item
	childCount map[string]int
}

func newItem(id int64, order *Order, attrs map[string]float64) *Item {
	return &Item{
		id:    id,
		order: order,
		Attrs: attrs,
		step:  -1,
	}
}

// ID returns the run-unique, monotonically increasing item id.
func (it *Item) ID() int64 { return it.id }

// Order returns the item's type template.
func (it *Item) Order() *Order { return it.order }

// Step returns the index of the routing stage the item last entered,
// -1 before the first stage.
func (it *Item) Step() int { return it.step }

// Rejected reports whether the item was rejected by process logic.
func (it *Item) Rejected() bool { return it.rejected }

// MarkReject flags the item as rejected. The flag is one-way: once set
// it never clears, and the item is dropped instead of being forwarded
// past the station that set it.
func (it *Item) MarkReject() { it.rejected = true }

// Assemble mounts child as an owned sub-item. The first child of a type
// is keyed by the type name; further children of the same type get keys
// "_<name>2", "_<name>3" and so on, matching the per-stage
// disambiguation of the composition model. A child can belong to at most
// one parent.
func (it *Item) Assemble(child *Item) {
	if child.parent != nil {
		panic(fmt.Sprintf("item %d is already assembled into item %d",
			child.id, child.parent.id))
	}
	if it.children == nil {
		it.children = make(map[string]*Item)
		it.childCount = make(map[string]int)
	}
	name := child.order.Name
	n := it.childCount[name]
	key := name
	if n > 0 {
		key = fmt.Sprintf("_%s%d", name, n+1)
	}
	it.childCount[name] = n + 1
	it.children[key] = child
	child.parent = it
}

// Child returns the assembled sub-item under the given key, or nil.
func (it *Item) Child(key string) *Item {
	return it.children[key]
}

// ChildKeys returns the composition keys in sorted order, for
// deterministic iteration over the assembly tree.
func (it *Item) ChildKeys() []string {
	if len(it.children) == 0 {
		return nil
	}
	keys := make([]string, 0, len(it.children))
	for k := range it.children {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
