package sim

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

// testRegistry returns a registry with the behavior names the document
// fixtures reference.
func testRegistry() *Registry {
	reg := NewRegistry()
	reg.RegisterFlowFunc("arrive", func(p *Proc, f *Factory) int {
		p.Wait(1)
		return 1
	})
	reg.RegisterFlowFunc("drain", func(p *Proc, f *Factory) int {
		p.Wait(1)
		return 1
	})
	reg.RegisterProcessFunc("machine", func(p *Proc, items []*Item, m *Machine, f *Factory) {
		p.Wait(1)
	})
	reg.RegisterControllerFunc("supervise", func(p *Proc, f *Factory) {
		p.Wait(10)
	})
	return reg
}

const validDocument = `
orders:
  - name: screw
    source: arrive
    station: [lathe]
    function: [machine]
    attribute:
      length: [n, 5, 0.2]
  - name: frame
    priority: 2
    source: arrive
    sink: drain
    station: [press, mount]
    function: [machine, machine]
    demand: [2, [1, [3]]]
    component: [[], [screw]]
stations:
  - name: lathe
    capacity: 2
    storage: 10
  - name: press
  - name: mount
    measurement: true
factory:
  function: [supervise]
  attribute:
    temperature: [f, 21]
`

func TestLoadProcessSpec_ValidDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "process.yaml")
	require.NoError(t, os.WriteFile(path, []byte(validDocument), 0o644))

	spec, err := LoadProcessSpec(path)
	require.NoError(t, err)
	require.NoError(t, spec.Validate(testRegistry()))

	assert.Len(t, spec.Orders, 2)
	assert.Len(t, spec.Stations, 3)

	screw := spec.Orders[0]
	assert.Equal(t, "screw", screw.Name)
	require.NotNil(t, screw.Priority)
	assert.Equal(t, 10, *screw.Priority, "default priority applies")
	assert.Equal(t, AttrSpec{Ident: "n", Params: []float64{5, 0.2}}, screw.Attributes["length"])

	frame := spec.Orders[1]
	require.NotNil(t, frame.Priority)
	assert.Equal(t, 2, *frame.Priority)
	assert.Equal(t, DemandSpec{Count: 2}, frame.Demand[0])
	assert.Equal(t, DemandSpec{Count: 1, Components: []int{3}}, frame.Demand[1])
	assert.Equal(t, []string{"screw"}, frame.Components[1])

	assert.Equal(t, 1, spec.Stations[1].Capacity, "default capacity applies")
	assert.True(t, spec.Stations[2].Measurement)
}

func TestDemandSpec_UnmarshalForms(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want DemandSpec
	}{
		{"scalar machining", "3", DemandSpec{Count: 3}},
		{"main and components", "[2, [1, 4]]", DemandSpec{Count: 2, Components: []int{1, 4}}},
		{"implicit main", "[1, 4]", DemandSpec{Count: 1, Components: []int{1, 4}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got DemandSpec
			require.NoError(t, yaml.Unmarshal([]byte(tt.in), &got))
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestValidate_ExplicitZeroPriorityRejected(t *testing.T) {
	// GIVEN a document spelling out priority: 0 instead of omitting it
	doc := `
orders:
  - name: screw
    priority: 0
    source: arrive
`
	var spec ProcessSpec
	require.NoError(t, yaml.Unmarshal([]byte(doc), &spec))

	err := spec.Validate(testRegistry())

	// THEN the value is rejected, not replaced with the default
	require.Error(t, err)
	assert.Contains(t, err.Error(), "priority must be a positive integer, got 0")
}

func TestValidate_UndefinedStation(t *testing.T) {
	spec := &ProcessSpec{
		Orders: []OrderSpec{{
			Name:      "screw",
			Source:    "arrive",
			Stations:  []string{"ghost"},
			Functions: []string{"machine"},
		}},
	}

	err := spec.Validate(testRegistry())

	require.Error(t, err)
	assert.Contains(t, err.Error(), `undefined station "ghost"`)
}

func TestValidate_UnregisteredFunctions(t *testing.T) {
	spec := &ProcessSpec{
		Orders: []OrderSpec{{
			Name:      "screw",
			Source:    "nope",
			Stations:  []string{"lathe"},
			Functions: []string{"missing"},
		}},
		Stations: []StationSpec{{Name: "lathe"}},
	}

	err := spec.Validate(testRegistry())

	require.Error(t, err)
	assert.Contains(t, err.Error(), `source function "nope" is not registered`)
	assert.Contains(t, err.Error(), `function "missing" is not registered`)
}

func TestValidate_ListLengthMismatch(t *testing.T) {
	spec := &ProcessSpec{
		Orders: []OrderSpec{{
			Name:      "screw",
			Source:    "arrive",
			Stations:  []string{"lathe", "press"},
			Functions: []string{"machine"},
		}},
		Stations: []StationSpec{{Name: "lathe"}, {Name: "press"}},
	}

	err := spec.Validate(testRegistry())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "function list has 1 entries for 2 stations")
}

func TestValidate_SelfAssembly(t *testing.T) {
	spec := &ProcessSpec{
		Orders: []OrderSpec{{
			Name:       "frame",
			Source:     "arrive",
			Stations:   []string{"mount"},
			Functions:  []string{"machine"},
			Demand:     []DemandSpec{{Count: 1, Components: []int{1}}},
			Components: [][]string{{"frame"}},
		}},
		Stations: []StationSpec{{Name: "mount"}},
	}

	err := spec.Validate(testRegistry())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "assembles the order into itself")
}

func TestValidate_BadAttributeSpec(t *testing.T) {
	spec := &ProcessSpec{
		Orders: []OrderSpec{{
			Name:       "screw",
			Source:     "arrive",
			Attributes: map[string]AttrSpec{"length": {Ident: "n", Params: []float64{5}}},
		}},
	}

	err := spec.Validate(testRegistry())

	require.Error(t, err)
	assert.Contains(t, err.Error(), `attribute "length"`)
}

func TestValidate_CollectsAllProblems(t *testing.T) {
	spec := &ProcessSpec{
		Orders: []OrderSpec{
			{Name: "a", Source: "nope"},
			{Name: "b"},
		},
	}

	err := spec.Validate(testRegistry())

	require.Error(t, err)
	assert.Contains(t, err.Error(), `"nope" is not registered`)
	assert.Contains(t, err.Error(), "source function is required")
}
