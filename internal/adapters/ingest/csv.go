package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// WaypointRows holds waypoint names and their stop durations in file order.
type WaypointRows struct {
	Names       []string
	StopMinutes []int
}

// ReadWaypointsCSV parses rows of the form `name..., stopMinutes`.
//
// The last field of a row is the stop duration in minutes; a blank value
// means no stop. Every earlier field belongs to the name, so unquoted
// addresses containing commas survive. Rows with fewer than two fields are
// skipped.
func ReadWaypointsCSV(r io.Reader) (WaypointRows, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.TrimLeadingSpace = true

	var out WaypointRows
	for line := 1; ; line++ {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return WaypointRows{}, fmt.Errorf("read waypoints csv: %w", err)
		}

		if len(record) < 2 {
			continue
		}

		last := len(record) - 1
		name := strings.TrimSpace(strings.Join(record[:last], ","))

		stop := 0
		if s := strings.TrimSpace(record[last]); s != "" {
			stop, err = strconv.Atoi(s)
			if err != nil || stop < 0 {
				return WaypointRows{}, fmt.Errorf("read waypoints csv: line %d: stop minutes %q must be a non-negative integer", line, s)
			}
		}

		out.Names = append(out.Names, name)
		out.StopMinutes = append(out.StopMinutes, stop)
	}

	return out, nil
}
