package services

import (
	"route-optimizer-service/internal/domain"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPartitionBatchesCoversEveryPairOnce(t *testing.T) {
	cases := []struct {
		n, size int
	}{
		{2, 3},
		{3, 3},
		{5, 4},
		{5, 40},
		{41, 40},
		{41, 7},
	}

	for _, tc := range cases {
		batches, err := PartitionBatches(tc.n, tc.size)
		require.NoError(t, err)

		seen := make(map[domain.PairKey]int)
		for _, b := range batches {
			require.LessOrEqual(t, len(b.Indices), tc.size)
			require.GreaterOrEqual(t, len(b.Indices), 3)
			require.Equal(t, b.Pivot, b.Indices[0])

			for _, p := range b.Pairs() {
				require.NotEqual(t, p.From, p.To)
				seen[p]++
			}
		}

		require.Len(t, seen, tc.n*tc.n-tc.n, "n=%d size=%d", tc.n, tc.size)
		for p, count := range seen {
			require.Equal(t, 1, count, "pair %s", p)
		}
	}
}

func TestPartitionBatchesStarShape(t *testing.T) {
	batches, err := PartitionBatches(4, 5)
	require.NoError(t, err)

	require.Equal(t, []BatchQuery{
		{Pivot: 0, Indices: []int{0, 1, 0, 2, 0}},
		{Pivot: 0, Indices: []int{0, 3, 0}},
		{Pivot: 1, Indices: []int{1, 2, 1, 3, 1}},
		{Pivot: 2, Indices: []int{2, 3, 2}},
	}, batches)
}

func TestPartitionBatchesEdgeCases(t *testing.T) {
	batches, err := PartitionBatches(1, 40)
	require.NoError(t, err)
	require.Empty(t, batches)

	_, err = PartitionBatches(0, 40)
	require.ErrorIs(t, err, ErrNoWaypoints)

	_, err = PartitionBatches(3, 2)
	require.ErrorIs(t, err, ErrBatchSizeTooSmall)
}
