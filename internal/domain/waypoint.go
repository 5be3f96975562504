package domain

import (
	"errors"
	"fmt"
	"strings"
)

var ErrInvalidWaypoints = errors.New("invalid waypoints")

// Represents a named location to visit.
// Index is assigned at ingestion time and is stable for the lifetime of a
// computation; index 0 is the fixed origin of every route.
type Waypoint struct {
	Index       int
	Name        string
	StopMinutes int
}

// Build index-aligned waypoints from parallel name and stop-duration slices.
func NewWaypoints(names []string, stopMinutes []int) ([]Waypoint, error) {
	if len(names) == 0 {
		return nil, fmt.Errorf("new waypoints: %w: at least one waypoint is required", ErrInvalidWaypoints)
	}

	if len(names) != len(stopMinutes) {
		return nil, fmt.Errorf(
			"new waypoints: %w: names and stop durations differ in length (names=%d stops=%d)",
			ErrInvalidWaypoints, len(names), len(stopMinutes),
		)
	}

	out := make([]Waypoint, 0, len(names))
	for i, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			return nil, fmt.Errorf("new waypoints: %w: waypoint %d has an empty name", ErrInvalidWaypoints, i)
		}

		if stopMinutes[i] < 0 {
			return nil, fmt.Errorf("new waypoints: %w: waypoint %d (%q) has negative stop duration %d", ErrInvalidWaypoints, i, name, stopMinutes[i])
		}

		out = append(out, Waypoint{Index: i, Name: name, StopMinutes: stopMinutes[i]})
	}

	return out, nil
}

// Return the waypoint names in index order.
func WaypointNames(waypoints []Waypoint) []string {
	names := make([]string, len(waypoints))
	for i, w := range waypoints {
		names[i] = w.Name
	}
	return names
}
