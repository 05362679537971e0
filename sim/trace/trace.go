package trace

// Collector accumulates snapshots in memory, preserving record order
// globally and per component.
type Collector struct {
	Snapshots []Snapshot

	byComponent map[string][]Snapshot
}

// NewCollector creates an empty Collector.
func NewCollector() *Collector {
	return &Collector{byComponent: make(map[string][]Snapshot)}
}

// Record implements Recorder.
func (c *Collector) Record(s Snapshot) {
	c.Snapshots = append(c.Snapshots, s)
	c.byComponent[s.Component] = append(c.byComponent[s.Component], s)
}

// Component returns all snapshots recorded for the named component, in
// record order.
func (c *Collector) Component(name string) []Snapshot {
	return c.byComponent[name]
}

// Components returns the names of all components with recorded
// snapshots.
func (c *Collector) Components() []string {
	names := make([]string, 0, len(c.byComponent))
	for name := range c.byComponent {
		names = append(names, name)
	}
	return names
}

// Len returns the total number of recorded snapshots.
func (c *Collector) Len() int {
	return len(c.Snapshots)
}
