package domain

import (
	"slices"
	"strconv"
	"strings"
)

// Route is an ordered visiting sequence of waypoint indices.
// A valid route is a permutation of 0..N-1 with the origin (0) at position 0.
// Routes are value objects: two routes are equal when their sequences are.
type Route []int

// Key returns a canonical string form of the sequence, used for deduplication.
func (r Route) Key() string {
	var b strings.Builder
	for i, idx := range r {
		if i > 0 {
			b.WriteByte('-')
		}
		b.WriteString(strconv.Itoa(idx))
	}
	return b.String()
}

func (r Route) Equal(other Route) bool { return slices.Equal(r, other) }

func (r Route) Clone() Route { return slices.Clone(r) }

// Valid reports whether r visits every index of an n-waypoint set exactly once
// starting from the origin.
func (r Route) Valid(n int) bool {
	if len(r) != n || n == 0 || r[0] != 0 {
		return false
	}

	seen := make([]bool, n)
	for _, idx := range r {
		if idx < 0 || idx >= n || seen[idx] {
			return false
		}
		seen[idx] = true
	}
	return true
}

// A route together with its total cost under the optimizer's metric.
type RankedRoute struct {
	Route Route
	Cost  float64
}

// Represents the output of route optimization.
// Best is the lowest-cost route found across all runs. Top holds up to the
// configured number of distinct routes ordered by non-decreasing cost; it may
// hold fewer when fewer distinct routes were discovered.
type RankedRouteSet struct {
	Best RankedRoute
	Top  []RankedRoute
}
