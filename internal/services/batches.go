package services

import (
	"errors"
	"fmt"
	"route-optimizer-service/internal/domain"
)

// DefaultBatchSize is the most waypoints sent to the routing oracle in one call.
const DefaultBatchSize = 40

// A star sequence needs at least pivot, other, pivot.
const minBatchSize = 3

var (
	ErrBatchSizeTooSmall = errors.New("batch size must be at least 3")
	ErrNoWaypoints       = errors.New("at least one waypoint is required")
)

// BatchQuery is one oracle call: a star sequence pivot, j1, pivot, j2, pivot, ...
// Each adjacent pair in Indices is one ordered pair resolved by the call.
type BatchQuery struct {
	Pivot   int
	Indices []int
}

// Pairs returns the ordered pairs the query resolves, in response order.
func (q BatchQuery) Pairs() []domain.PairKey {
	if len(q.Indices) < 2 {
		return nil
	}

	pairs := make([]domain.PairKey, 0, len(q.Indices)-1)
	for k := 0; k+1 < len(q.Indices); k++ {
		pairs = append(pairs, domain.PairKey{From: q.Indices[k], To: q.Indices[k+1]})
	}
	return pairs
}

// PartitionBatches splits the N²−N ordered pairs of n waypoints into bounded
// oracle calls.
//
// For every pivot i in [0, n-2] the pairs with every j > i are visited as
// i → j → i, so one sequence yields both (i, j) and (j, i). A sequence is closed
// before the next j, i step would exceed batchSize, and the next one reopens at
// the pivot. Every ordered pair appears in exactly one batch.
func PartitionBatches(n int, batchSize int) ([]BatchQuery, error) {
	if n < 1 {
		return nil, fmt.Errorf("partition batches: %w", ErrNoWaypoints)
	}

	if batchSize < minBatchSize {
		return nil, fmt.Errorf("partition batches: size %d: %w", batchSize, ErrBatchSizeTooSmall)
	}

	perPivot := (batchSize - 1) / 2
	batches := make([]BatchQuery, 0, n*(n-1)/2/perPivot+n)

	for i := 0; i < n-1; i++ {
		current := []int{i}

		for j := i + 1; j < n; j++ {
			if len(current)+2 > batchSize {
				batches = append(batches, BatchQuery{Pivot: i, Indices: current})
				current = []int{i}
			}
			current = append(current, j, i)
		}

		if len(current) > 1 {
			batches = append(batches, BatchQuery{Pivot: i, Indices: current})
		}
	}

	return batches, nil
}
