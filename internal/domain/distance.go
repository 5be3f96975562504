package domain

import "fmt"

// Ordered pair of waypoint indices, From != To.
type PairKey struct {
	From int
	To   int
}

func (k PairKey) String() string { return fmt.Sprintf("%d-%d", k.From, k.To) }

// Resolved travel facts for one ordered waypoint pair.
type PairDistance struct {
	LengthMeters float64
	TimeSeconds  float64
}

// DistanceMatrix is the sparse mapping of resolved pair distances for N waypoints.
//
// Each key is populated at most once. The matrix is owned by the builder that
// fills it and must be treated as read-only once it has been handed over.
type DistanceMatrix struct {
	size    int
	entries map[PairKey]PairDistance
}

func NewDistanceMatrix(size int) *DistanceMatrix {
	return &DistanceMatrix{
		size:    size,
		entries: make(map[PairKey]PairDistance, size*size-size),
	}
}

// Number of waypoints the matrix covers.
func (m *DistanceMatrix) Size() int { return m.size }

// Number of ordered pairs a complete matrix holds (N² − N).
func (m *DistanceMatrix) Required() int { return m.size*m.size - m.size }

// Number of resolved pairs.
func (m *DistanceMatrix) Len() int { return len(m.entries) }

func (m *DistanceMatrix) Complete() bool { return len(m.entries) == m.Required() }

// Record a pair distance. It reports false, leaving the matrix unchanged,
// when the key is out of range, a self-pair, or already populated.
func (m *DistanceMatrix) Set(k PairKey, d PairDistance) bool {
	if !m.validKey(k) {
		return false
	}

	if _, ok := m.entries[k]; ok {
		return false
	}

	m.entries[k] = d
	return true
}

func (m *DistanceMatrix) Get(from, to int) (PairDistance, bool) {
	d, ok := m.entries[PairKey{From: from, To: to}]
	return d, ok
}

// Return the required pairs that have not been resolved, in row-major order.
func (m *DistanceMatrix) Missing() []PairKey {
	missing := make([]PairKey, 0, m.Required()-len(m.entries))
	for i := 0; i < m.size; i++ {
		for j := 0; j < m.size; j++ {
			if i == j {
				continue
			}
			k := PairKey{From: i, To: j}
			if _, ok := m.entries[k]; !ok {
				missing = append(missing, k)
			}
		}
	}
	return missing
}

func (m *DistanceMatrix) Clone() *DistanceMatrix {
	out := NewDistanceMatrix(m.size)
	for k, v := range m.entries {
		out.entries[k] = v
	}
	return out
}

func (m *DistanceMatrix) validKey(k PairKey) bool {
	return k.From != k.To &&
		k.From >= 0 && k.From < m.size &&
		k.To >= 0 && k.To < m.size
}
