// Package trace provides attribute-snapshot recording for simulation
// runs. It stores pure data types and has no dependency on the kernel;
// the orchestrator feeds it through the Recorder interface.
package trace

// Kind names the component class a snapshot belongs to.
type Kind string

const (
	// KindOrder rows carry one item's attribute values.
	KindOrder Kind = "order"
	// KindStation rows carry one machine's attribute values.
	KindStation Kind = "station"
	// KindFactory rows carry the global attribute values.
	KindFactory Kind = "factory"
)

// Snapshot is one recorded attribute state. Which of the id fields are
// meaningful depends on Kind; unused ids are -1.
type Snapshot struct {
	Component string // order, station or factory name
	Kind      Kind
	Time      float64

	ItemID int64 // order rows: the item's id
	Origin int64 // order rows of assembled children: owning parent's item id

	// StationID is the creation index of the station the row was
	// recorded at; -1 for the creation snapshot before the first stage.
	StationID int

	MachineNr int // station rows: the machine's index

	Attrs map[string]float64
}

// Recorder receives ordered snapshots during a run. The kernel is
// agnostic to what the implementation does with them.
type Recorder interface {
	Record(Snapshot)
}

// Discard is a Recorder that drops everything.
type Discard struct{}

// Record implements Recorder.
func (Discard) Record(Snapshot) {}
