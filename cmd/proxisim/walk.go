package main

import (
	gomath "math"
	"time"

	"github.com/google/uuid"

	"github.com/Faultbox/proxisense/internal/mesh"
	"github.com/Faultbox/proxisense/internal/sensor"
	"github.com/Faultbox/proxisense/pkg/math"
)

const (
	wallHalfWidth = 2.0
	wallSpacing   = 0.5
	stopDistance  = 0.15
	gapEvery      = 45 // Every Nth frame loses tracking
	revealRange   = 4.5
)

// walk is a straight walk along +Z toward a wall of mesh fragments. The
// wall is revealed column by column as it comes into sensing range, and
// the head sways slowly from side to side.
type walk struct {
	fps         int
	speed       float32
	wallZ       float32
	frame       int
	interruptAt int

	pending []mesh.Fragment
	seen    int
}

func newWalk(wallDistance, speed float32, fps int) *walk {
	if fps < 1 {
		fps = 30
	}
	if !(speed > 0) {
		speed = 0.6
	}
	w := &walk{fps: fps, speed: speed, wallZ: wallDistance}
	for x := float32(-wallHalfWidth); x <= wallHalfWidth; x += wallSpacing {
		for y := float32(-1); y <= 1; y += wallSpacing {
			w.pending = append(w.pending, mesh.Fragment{
				ID:          uuid.New(),
				Position:    math.Vec3{X: x, Y: y, Z: wallDistance},
				Extent:      math.Vec3{X: wallSpacing / 2, Y: wallSpacing / 2, Z: 0.02},
				VertexCount: 64,
			})
		}
	}
	travel := wallDistance - stopDistance
	w.interruptAt = int(travel/speed*float32(fps)) / 2
	return w
}

func (w *walk) elapsed() time.Duration {
	return time.Duration(w.frame) * time.Second / time.Duration(w.fps)
}

func (w *walk) position() math.Vec3 {
	z := w.speed * float32(w.elapsed().Seconds())
	if limit := w.wallZ - stopDistance; z > limit {
		z = limit
	}
	return math.Vec3{Z: z}
}

func (w *walk) done() bool {
	return w.position().Z >= w.wallZ-stopDistance
}

// next builds the following sensor frame.
func (w *walk) next(start time.Time) *sensor.Frame {
	w.frame++
	pos := w.position()
	f := &sensor.Frame{
		Timestamp: start.Add(w.elapsed()),
		Tracking:  sensor.TrackingNormal,
		Head: sensor.HeadPose{
			Yaw:       0.3 * float32(gomath.Sin(w.elapsed().Seconds())),
			Available: true,
		},
	}

	// Reveal fragments that came into range this frame.
	for _, frag := range w.pending[w.seen:] {
		if frag.Position.Distance(pos) > revealRange {
			continue
		}
		f.MeshEvents = append(f.MeshEvents, sensor.MeshEvent{Kind: sensor.MeshAdded, Fragment: frag})
	}
	w.markRevealed(pos)

	if w.frame%gapEvery == 0 {
		f.Tracking = sensor.TrackingLimited
		return f
	}
	pose := sensor.PoseFromOrientation(pos, math.QuatIdentity())
	f.Pose = &pose
	return f
}

// markRevealed moves fragments now in range to the front of the pending
// slice so each one is announced exactly once.
func (w *walk) markRevealed(pos math.Vec3) {
	for i := w.seen; i < len(w.pending); i++ {
		if w.pending[i].Position.Distance(pos) <= revealRange {
			w.pending[w.seen], w.pending[i] = w.pending[i], w.pending[w.seen]
			w.seen++
		}
	}
}
