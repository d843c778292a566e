package mesh

import (
	"errors"
	gomath "math"

	"github.com/google/uuid"

	"github.com/Faultbox/proxisense/pkg/math"
)

// DefaultCellSize is the edge length of a spatial hash cell in world units.
const DefaultCellSize = 1.0

// ErrInvalidFragment is returned for fragments with a nil ID or non-finite geometry.
var ErrInvalidFragment = errors.New("invalid mesh fragment")

// Metrics describes the store contents and its lifetime activity.
type Metrics struct {
	Fragments int
	Vertices  int

	Upserts  uint64
	Removals uint64
	Clears   uint64
	Filtered uint64
}

type slot struct {
	frag   Fragment
	center math.Vec3
	cell   cellKey
	live   bool
}

type cellKey struct {
	X, Y, Z int32
}

// Store is an identifier-indexed, spatially hashed collection of fragments.
// Iteration follows first-insertion order. Removed slots are tombstoned and
// compacted once they outnumber the live ones.
//
// Store is not safe for concurrent use; callers serialize all access.
type Store struct {
	slots    []slot
	index    map[uuid.UUID]int
	cells    map[cellKey]map[uuid.UUID]struct{}
	cellSize float32

	live     int
	vertices int
	revision uint64
	metrics  Metrics
}

// NewStore creates an empty store. A non-positive cellSize uses DefaultCellSize.
func NewStore(cellSize float32) *Store {
	if !(cellSize > 0) {
		cellSize = DefaultCellSize
	}
	return &Store{
		index:    make(map[uuid.UUID]int),
		cells:    make(map[cellKey]map[uuid.UUID]struct{}),
		cellSize: cellSize,
	}
}

// Len returns the number of fragments.
func (s *Store) Len() int {
	return s.live
}

// Metrics returns current totals and lifetime counters.
func (s *Store) Metrics() Metrics {
	m := s.metrics
	m.Fragments = s.live
	m.Vertices = s.vertices
	return m
}

// Get returns the fragment with the given ID.
func (s *Store) Get(id uuid.UUID) (Fragment, bool) {
	i, ok := s.index[id]
	if !ok {
		return Fragment{}, false
	}
	return s.slots[i].frag, true
}

// Upsert inserts f or replaces the fragment with the same ID in place.
// The stored copy gets a fresh Revision, which is returned.
func (s *Store) Upsert(f Fragment) (uint64, error) {
	if !f.valid() {
		return 0, ErrInvalidFragment
	}
	center := f.Center()
	if !center.IsFinite() {
		return 0, ErrInvalidFragment
	}

	s.revision++
	f.Revision = s.revision
	cell := s.cellOf(center)
	s.metrics.Upserts++

	if i, ok := s.index[f.ID]; ok {
		sl := &s.slots[i]
		s.vertices += f.VertexCount - sl.frag.VertexCount
		if sl.cell != cell {
			s.unbucket(f.ID, sl.cell)
			s.bucket(f.ID, cell)
		}
		sl.frag = f
		sl.center = center
		sl.cell = cell
		return f.Revision, nil
	}

	s.index[f.ID] = len(s.slots)
	s.slots = append(s.slots, slot{frag: f, center: center, cell: cell, live: true})
	s.bucket(f.ID, cell)
	s.live++
	s.vertices += f.VertexCount
	return f.Revision, nil
}

// Remove deletes the fragment with the given ID. It reports whether a
// fragment was present.
func (s *Store) Remove(id uuid.UUID) bool {
	i, ok := s.index[id]
	if !ok {
		return false
	}
	s.removeAt(i)
	s.metrics.Removals++
	s.maybeCompact()
	return true
}

// Clear removes every fragment and resets the fragment and vertex totals.
func (s *Store) Clear() {
	s.slots = nil
	s.index = make(map[uuid.UUID]int)
	s.cells = make(map[cellKey]map[uuid.UUID]struct{})
	s.live = 0
	s.vertices = 0
	s.metrics.Clears++
}

// FilterByDistance removes every fragment whose center is farther than
// maxDistance from origin and returns how many were removed.
func (s *Store) FilterByDistance(origin math.Vec3, maxDistance float32) int {
	maxSq := maxDistance * maxDistance
	removed := 0
	for i := range s.slots {
		sl := &s.slots[i]
		if !sl.live {
			continue
		}
		if sl.center.DistanceSquared(origin) > maxSq {
			s.removeAt(i)
			removed++
		}
	}
	s.metrics.Filtered += uint64(removed)
	s.maybeCompact()
	return removed
}

// Nearest returns the fragment whose center is closest to origin within
// maxDistance. Equal distances resolve to the most recently updated fragment.
func (s *Store) Nearest(origin math.Vec3, maxDistance float32) (Fragment, bool) {
	var (
		best     Fragment
		bestDist float32
		found    bool
	)
	s.Within(origin, maxDistance, func(f Fragment, center math.Vec3, dist float32) bool {
		if !found || dist < bestDist || (dist == bestDist && f.Revision > best.Revision) {
			best, bestDist, found = f, dist, true
		}
		return true
	})
	return best, found
}

// Each calls fn for every fragment in insertion order until fn returns false.
func (s *Store) Each(fn func(Fragment) bool) {
	for i := range s.slots {
		if s.slots[i].live && !fn(s.slots[i].frag) {
			return
		}
	}
}

// Within calls fn for every fragment whose center lies within radius of
// origin, passing the center and its distance, until fn returns false.
// The spatial hash is used when it touches fewer cells than there are
// fragments; otherwise the slots are scanned directly.
func (s *Store) Within(origin math.Vec3, radius float32, fn func(f Fragment, center math.Vec3, dist float32) bool) {
	if s.live == 0 || !(radius >= 0) || !origin.IsFinite() {
		return
	}
	radiusSq := radius * radius

	visit := func(sl *slot) bool {
		dSq := sl.center.DistanceSquared(origin)
		if dSq > radiusSq {
			return true
		}
		return fn(sl.frag, sl.center, float32(gomath.Sqrt(float64(dSq))))
	}

	span := float64(radius / s.cellSize)
	if span > 1024 {
		span = 1024
	}
	reach := int32(gomath.Ceil(span))
	side := float64(2*reach + 1)
	if side*side*side >= float64(s.live) {
		for i := range s.slots {
			if s.slots[i].live && !visit(&s.slots[i]) {
				return
			}
		}
		return
	}

	c := s.cellOf(origin)
	for x := c.X - reach; x <= c.X+reach; x++ {
		for y := c.Y - reach; y <= c.Y+reach; y++ {
			for z := c.Z - reach; z <= c.Z+reach; z++ {
				for id := range s.cells[cellKey{x, y, z}] {
					if !visit(&s.slots[s.index[id]]) {
						return
					}
				}
			}
		}
	}
}

func (s *Store) removeAt(i int) {
	sl := &s.slots[i]
	id := sl.frag.ID
	s.unbucket(id, sl.cell)
	delete(s.index, id)
	s.vertices -= sl.frag.VertexCount
	s.live--
	*sl = slot{}
}

// maybeCompact drops tombstones once they make up more than half the slots.
func (s *Store) maybeCompact() {
	dead := len(s.slots) - s.live
	if dead < 16 || dead <= s.live {
		return
	}
	kept := s.slots[:0]
	for _, sl := range s.slots {
		if sl.live {
			s.index[sl.frag.ID] = len(kept)
			kept = append(kept, sl)
		}
	}
	for i := len(kept); i < len(s.slots); i++ {
		s.slots[i] = slot{}
	}
	s.slots = kept
}

func (s *Store) cellOf(v math.Vec3) cellKey {
	return cellKey{
		X: int32(gomath.Floor(float64(v.X / s.cellSize))),
		Y: int32(gomath.Floor(float64(v.Y / s.cellSize))),
		Z: int32(gomath.Floor(float64(v.Z / s.cellSize))),
	}
}

func (s *Store) bucket(id uuid.UUID, c cellKey) {
	set, ok := s.cells[c]
	if !ok {
		set = make(map[uuid.UUID]struct{})
		s.cells[c] = set
	}
	set[id] = struct{}{}
}

func (s *Store) unbucket(id uuid.UUID, c cellKey) {
	set, ok := s.cells[c]
	if !ok {
		return
	}
	delete(set, id)
	if len(set) == 0 {
		delete(s.cells, c)
	}
}
