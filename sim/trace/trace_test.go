package trace

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollector_RecordOrderPreserved(t *testing.T) {
	c := NewCollector()
	c.Record(Snapshot{Component: "screw", Kind: KindOrder, Time: 1, ItemID: 0, Origin: -1, StationID: -1})
	c.Record(Snapshot{Component: "lathe", Kind: KindStation, Time: 2, ItemID: -1, Origin: -1, MachineNr: 0})
	c.Record(Snapshot{Component: "screw", Kind: KindOrder, Time: 3, ItemID: 0, Origin: -1, StationID: 0})

	assert.Equal(t, 3, c.Len())
	screws := c.Component("screw")
	require.Len(t, screws, 2)
	assert.Equal(t, []float64{1, 3}, []float64{screws[0].Time, screws[1].Time})
	assert.ElementsMatch(t, []string{"screw", "lathe"}, c.Components())
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return rows
}

func TestWriteCSV_OrderColumns(t *testing.T) {
	c := NewCollector()
	c.Record(Snapshot{
		Component: "screw", Kind: KindOrder, Time: 1.5,
		ItemID: 4, Origin: -1, StationID: 0, MachineNr: -1,
		Attrs: map[string]float64{"length": 5.25, "diameter": 2},
	})
	dir := t.TempDir()

	require.NoError(t, WriteCSV(c, dir))

	rows := readCSV(t, filepath.Join(dir, "screw.csv"))
	require.Len(t, rows, 2)
	// sorted attributes first, then the predefined order columns
	assert.Equal(t, []string{"diameter", "length", "item_id", "station_id", "time"}, rows[0])
	assert.Equal(t, []string{"2", "5.25", "4", "0", "1.5"}, rows[1])
}

func TestWriteCSV_CompColumnOnlyForAssembledChildren(t *testing.T) {
	c := NewCollector()
	c.Record(Snapshot{Component: "bolt", Kind: KindOrder, Time: 1, ItemID: 1, Origin: -1, StationID: -1})
	c.Record(Snapshot{Component: "bolt", Kind: KindOrder, Time: 2, ItemID: 1, Origin: 0, StationID: 3})
	dir := t.TempDir()

	require.NoError(t, WriteCSV(c, dir))

	rows := readCSV(t, filepath.Join(dir, "bolt.csv"))
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"item_id", "comp", "station_id", "time"}, rows[0])
	assert.Equal(t, []string{"1", "-1", "-1", "1"}, rows[1])
	assert.Equal(t, []string{"1", "0", "3", "2"}, rows[2])
}

func TestWriteCSV_StationAndFactoryColumns(t *testing.T) {
	c := NewCollector()
	c.Record(Snapshot{
		Component: "lathe", Kind: KindStation, Time: 4,
		ItemID: -1, Origin: -1, StationID: 0, MachineNr: 1,
		Attrs: map[string]float64{"wear": 0.5},
	})
	c.Record(Snapshot{
		Component: "factory", Kind: KindFactory, Time: 10,
		ItemID: -1, Origin: -1, StationID: -1, MachineNr: -1,
		Attrs: map[string]float64{"temperature": 21},
	})
	dir := t.TempDir()

	require.NoError(t, WriteCSV(c, dir))

	lathe := readCSV(t, filepath.Join(dir, "lathe.csv"))
	assert.Equal(t, []string{"wear", "machine_nr", "time"}, lathe[0])
	assert.Equal(t, []string{"0.5", "1", "4"}, lathe[1])

	factory := readCSV(t, filepath.Join(dir, "factory.csv"))
	assert.Equal(t, []string{"temperature", "time"}, factory[0])
	assert.Equal(t, []string{"21", "10"}, factory[1])
}

func TestWriteCSV_MissingAttributeDefaultsToZero(t *testing.T) {
	// rows recorded before an attribute appears get a zero cell
	c := NewCollector()
	c.Record(Snapshot{Component: "part", Kind: KindOrder, Time: 1, ItemID: 0, Origin: -1, StationID: -1})
	c.Record(Snapshot{
		Component: "part", Kind: KindOrder, Time: 2, ItemID: 0, Origin: -1, StationID: 0,
		Attrs: map[string]float64{"grade": 3},
	})
	dir := t.TempDir()

	require.NoError(t, WriteCSV(c, dir))

	rows := readCSV(t, filepath.Join(dir, "part.csv"))
	assert.Equal(t, []string{"grade", "item_id", "station_id", "time"}, rows[0])
	assert.Equal(t, "0", rows[1][0])
	assert.Equal(t, "3", rows[2][0])
}
