package services

import (
	"errors"
	"route-optimizer-service/internal/domain"
)

// NearestNeighborRoute builds a greedy route from the origin, always moving to
// the cheapest unvisited waypoint. Ties go to the lower index so the result is
// deterministic.
//
// It does not attempt global optimization. Plans report it next to the
// annealed routes as a baseline.
func (o *RouteOptimizer) NearestNeighborRoute() (domain.RankedRoute, error) {
	if o.n == 0 {
		return domain.RankedRoute{}, errors.New("nearest neighbor route: no waypoints")
	}

	visited := make([]bool, o.n)
	visited[0] = true

	route := make(domain.Route, 1, o.n)
	total := 0.0

	current := 0
	for len(route) < o.n {
		best := -1
		for next := 1; next < o.n; next++ {
			if visited[next] {
				continue
			}
			if best < 0 || o.cost[current][next] < o.cost[current][best] {
				best = next
			}
		}

		visited[best] = true
		total += o.cost[current][best]
		route = append(route, best)
		current = best
	}

	return domain.RankedRoute{Route: route, Cost: total}, nil
}
