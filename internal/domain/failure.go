package domain

// Waypoints that could not be resolved by any successful oracle query.
// Points are sorted ascending.
type FailureReport struct {
	Points []int
}

func (r FailureReport) Empty() bool { return len(r.Points) == 0 }

// Return the names of the reported waypoints.
func (r FailureReport) Names(waypoints []Waypoint) []string {
	names := make([]string, 0, len(r.Points))
	for _, p := range r.Points {
		if p >= 0 && p < len(waypoints) {
			names = append(names, waypoints[p].Name)
		}
	}
	return names
}
