package salvator

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Proximity decides whether a candidate hit is close enough to a seed to be
// part of the same gamma ray.
type Proximity interface {
	Near(seed, candidate *Hit) bool
}

// DistanceProximity accepts hits whose interaction points are closer than Max.
type DistanceProximity struct {
	Max float64
}

func (p DistanceProximity) Near(seed, candidate *Hit) bool {
	return r3.Norm(r3.Sub(candidate.Pos, seed.Pos)) < p.Max
}

// AngleProximity accepts hits whose interaction points, seen from Vertex,
// are separated by less than Max degrees.
type AngleProximity struct {
	Max    float64
	Vertex r3.Vec
}

func (p AngleProximity) Near(seed, candidate *Hit) bool {
	a := r3.Sub(seed.Pos, p.Vertex)
	b := r3.Sub(candidate.Pos, p.Vertex)
	norms := r3.Norm(a) * r3.Norm(b)
	if norms == 0 {
		return false
	}
	cos := math.Max(-1, math.Min(1, r3.Dot(a, b)/norms))
	return math.Acos(cos)*180/math.Pi < p.Max
}

// NeighborTable accepts explicitly listed crystal pairs. Pairs are symmetric.
type NeighborTable struct {
	pairs map[[2]int]struct{}
}

func NewNeighborTable(pairs [][2]int) NeighborTable {
	t := NeighborTable{pairs: make(map[[2]int]struct{}, 2*len(pairs))}
	for _, p := range pairs {
		t.pairs[p] = struct{}{}
		t.pairs[[2]int{p[1], p[0]}] = struct{}{}
	}
	return t
}

func (t NeighborTable) Near(seed, candidate *Hit) bool {
	_, ok := t.pairs[[2]int{seed.ID, candidate.ID}]
	return ok
}

type never struct{}

func (never) Near(*Hit, *Hit) bool { return false }

// Merger groups hits that belong to the same Compton-scattered gamma ray.
// A zero TimeWindow disables the timing condition.
type Merger struct {
	Proximity  Proximity
	TimeWindow float64
}

// NewMerger builds the merger selected by s.AddbackType.
func NewMerger(s Settings) (*Merger, error) {
	var p Proximity
	switch s.AddbackType {
	case AddbackDistance:
		if s.AddbackDistance <= 0 {
			return nil, &ConfigError{Field: "addback_distance", Reason: "must be positive"}
		}
		p = DistanceProximity{Max: s.AddbackDistance}
	case AddbackAngle:
		if s.AddbackAngle <= 0 {
			return nil, &ConfigError{Field: "addback_angle", Reason: "must be positive"}
		}
		p = AngleProximity{Max: s.AddbackAngle, Vertex: s.VertexVec()}
	case AddbackTable:
		for _, pair := range s.AddbackNeighbors {
			for _, id := range pair {
				if id < 0 || id >= s.NCrystals {
					return nil, &UnknownCrystalError{ID: id, N: s.NCrystals}
				}
			}
		}
		p = NewNeighborTable(s.AddbackNeighbors)
	case AddbackNone:
		p = never{}
	default:
		return nil, &ConfigError{Field: "addback_type", Reason: fmt.Sprintf("unknown type %q", s.AddbackType)}
	}
	return &Merger{Proximity: p, TimeWindow: s.AddbackTimeWindow}, nil
}

func (m *Merger) ShouldMerge(a, b *Hit) bool {
	if !m.Proximity.Near(a, b) {
		return false
	}
	if m.TimeWindow > 0 && math.Abs(a.Time-b.Time) >= m.TimeWindow {
		return false
	}
	return true
}

// Addback merges hits greedily. Hits are visited from the highest energy
// down; each hit not yet taken becomes a seed and absorbs every later free
// hit that ShouldMerge accepts against the seed. Absorbed hits never act as
// anchors themselves, so the grouping is not transitive. The merged hit keeps
// identity, position and time of the seed and carries the summed energies.
func (m *Merger) Addback(hits []Hit) []Hit {
	sorted := SortDescending(hits)
	taken := make([]bool, len(sorted))
	merged := make([]Hit, 0, len(sorted))
	for i := range sorted {
		if taken[i] {
			continue
		}
		taken[i] = true
		group := sorted[i]
		for j := i + 1; j < len(sorted); j++ {
			if taken[j] || !m.ShouldMerge(&sorted[i], &sorted[j]) {
				continue
			}
			taken[j] = true
			group.Energy += sorted[j].Energy
			group.DCEnergy += sorted[j].DCEnergy
			group.Nadded += sorted[j].Nadded
		}
		merged = append(merged, group)
	}
	return SortDescending(merged)
}
