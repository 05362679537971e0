package trace

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
)

// WriteCSV exports the collector's snapshots as one CSV file per
// component under dir (created if missing). Columns are the sorted
// user-attribute names followed by the predefined columns of the
// component class: item_id[, comp], station_id, time for orders;
// machine_nr, time for stations; time for factories. The comp column is
// present only when the component recorded assembled-child rows.
func WriteCSV(c *Collector, dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}
	names := c.Components()
	sort.Strings(names)
	for _, name := range names {
		if err := writeComponentCSV(c.Component(name), name, dir); err != nil {
			return err
		}
	}
	return nil
}

func writeComponentCSV(rows []Snapshot, name, dir string) error {
	if len(rows) == 0 {
		return nil
	}
	kind := rows[0].Kind

	attrSet := make(map[string]bool)
	hasOrigin := false
	for _, s := range rows {
		for a := range s.Attrs {
			attrSet[a] = true
		}
		if s.Origin >= 0 {
			hasOrigin = true
		}
	}
	attrs := make([]string, 0, len(attrSet))
	for a := range attrSet {
		attrs = append(attrs, a)
	}
	sort.Strings(attrs)

	header := append([]string{}, attrs...)
	switch kind {
	case KindOrder:
		header = append(header, "item_id")
		if hasOrigin {
			header = append(header, "comp")
		}
		header = append(header, "station_id")
	case KindStation:
		header = append(header, "machine_nr")
	}
	header = append(header, "time")

	f, err := os.Create(filepath.Join(dir, name+".csv"))
	if err != nil {
		return fmt.Errorf("creating csv for %s: %w", name, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		return err
	}
	rec := make([]string, 0, len(header))
	for _, s := range rows {
		rec = rec[:0]
		for _, a := range attrs {
			rec = append(rec, formatFloat(s.Attrs[a]))
		}
		switch kind {
		case KindOrder:
			rec = append(rec, strconv.FormatInt(s.ItemID, 10))
			if hasOrigin {
				rec = append(rec, strconv.FormatInt(s.Origin, 10))
			}
			rec = append(rec, strconv.Itoa(s.StationID))
		case KindStation:
			rec = append(rec, strconv.Itoa(s.MachineNr))
		}
		rec = append(rec, formatFloat(s.Time))
		if err := w.Write(rec); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
