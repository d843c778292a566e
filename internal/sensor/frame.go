// Package sensor defines the per-frame values supplied by the depth and
// mesh front end.
package sensor

import (
	"time"

	"github.com/Faultbox/proxisense/internal/mesh"
	"github.com/Faultbox/proxisense/pkg/math"
)

// TrackingState mirrors the front end's confidence in the camera pose.
type TrackingState int

const (
	TrackingNormal TrackingState = iota
	TrackingLimited
	TrackingNotAvailable
)

func (s TrackingState) String() string {
	switch s {
	case TrackingNormal:
		return "normal"
	case TrackingLimited:
		return "limited"
	default:
		return "not_available"
	}
}

// CameraPose is the device camera in world space for a single frame.
type CameraPose struct {
	Position math.Vec3
	Forward  math.Vec3 // Unit length
}

// PoseFromOrientation builds a pose from a position and camera rotation,
// taking +Z in camera space as forward.
func PoseFromOrientation(pos math.Vec3, q math.Quat) CameraPose {
	return CameraPose{Position: pos, Forward: q.Normalize().Rotate(math.Forward).Normalize()}
}

// Valid reports whether the pose is usable for obstacle selection.
func (p CameraPose) Valid() bool {
	if !p.Position.IsFinite() || !p.Forward.IsFinite() {
		return false
	}
	l := p.Forward.LengthSquared()
	return l > 0.81 && l < 1.21
}

// HeadPose is the listener's head orientation reported by head-tracking
// headphones, relative to the device.
type HeadPose struct {
	Yaw       float32 // Radians, positive turns right
	Available bool
}

// MeshEventKind identifies how a fragment changed.
type MeshEventKind int

const (
	MeshAdded MeshEventKind = iota
	MeshUpdated
	MeshRemoved
)

func (k MeshEventKind) String() string {
	switch k {
	case MeshAdded:
		return "added"
	case MeshUpdated:
		return "updated"
	case MeshRemoved:
		return "removed"
	default:
		return "unknown"
	}
}

// MeshEvent is one add/update/remove notification for a surface fragment.
// For removals only Fragment.ID is meaningful.
type MeshEvent struct {
	Kind     MeshEventKind
	Fragment mesh.Fragment
}

// Frame is everything the front end delivers for one sensor callback.
type Frame struct {
	Timestamp  time.Time
	Tracking   TrackingState
	Pose       *CameraPose // nil when the front end has no pose
	Head       HeadPose
	Depth      *DepthFrame
	MeshEvents []MeshEvent
}

// HasValidPose reports whether obstacle selection can run on this frame.
// Frames without it are sensing gaps: feedback holds its previous state.
func (f *Frame) HasValidPose() bool {
	return f.Tracking == TrackingNormal && f.Pose != nil && f.Pose.Valid()
}
