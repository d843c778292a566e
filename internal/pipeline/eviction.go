package pipeline

import (
	"github.com/Faultbox/proxisense/pkg/math"
)

// ResetReason says why the mesh cache was cleared.
type ResetReason int

const (
	ResetManual ResetReason = iota
	ResetPeriodic
	ResetMovement
	ResetMemory
)

func (r ResetReason) String() string {
	switch r {
	case ResetManual:
		return "manual"
	case ResetPeriodic:
		return "periodic"
	case ResetMovement:
		return "movement"
	case ResetMemory:
		return "memory"
	default:
		return "unknown"
	}
}

// ResetCounts counts cache resets per reason.
type ResetCounts struct {
	Manual   uint64
	Periodic uint64
	Movement uint64
	Memory   uint64
}

// Total returns the sum over all reasons.
func (c ResetCounts) Total() uint64 {
	return c.Manual + c.Periodic + c.Movement + c.Memory
}

func (c *ResetCounts) add(r ResetReason) {
	switch r {
	case ResetManual:
		c.Manual++
	case ResetPeriodic:
		c.Periodic++
	case ResetMovement:
		c.Movement++
	case ResetMemory:
		c.Memory++
	}
}

// eviction tracks the per-frame eviction triggers: displacement since the
// last reset and the distance-filter cadence.
type eviction struct {
	anchor   math.Vec3
	anchored bool
	frames   uint64 // Valid frames since start, drives the filter cadence
	resets   ResetCounts
}

// moved reports whether pos is more than threshold away from the anchor.
// The first position seen becomes the anchor. A zero threshold disables it.
func (e *eviction) moved(pos math.Vec3, threshold float32) bool {
	if !e.anchored {
		e.anchorAt(pos)
		return false
	}
	if threshold <= 0 {
		return false
	}
	return pos.DistanceSquared(e.anchor) > threshold*threshold
}

func (e *eviction) anchorAt(pos math.Vec3) {
	e.anchor = pos
	e.anchored = true
}

// rearm drops the anchor so the next valid frame starts a new leg.
func (e *eviction) rearm() {
	e.anchored = false
}

// filterDue advances the frame counter and reports whether this frame
// should run the distance filter.
func (e *eviction) filterDue(every int) bool {
	e.frames++
	if every < 1 {
		every = 1
	}
	return e.frames%uint64(every) == 0
}
