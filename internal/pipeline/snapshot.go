package pipeline

import (
	"time"

	"github.com/Faultbox/proxisense/internal/mesh"
	"github.com/Faultbox/proxisense/internal/obstacle"
	"github.com/Faultbox/proxisense/internal/proximity"
	"github.com/Faultbox/proxisense/internal/sensor"
)

// Snapshot is an immutable view of the engine for presentation. A new value
// is published after every mutation; readers never see a partial update.
type Snapshot struct {
	At       time.Time
	Paused   bool
	Tracking sensor.TrackingState

	Level       proximity.Level
	Distance    float32 // +Inf when the path is clear
	Obstacle    obstacle.Point
	HasObstacle bool

	CenterDepth      float32 // Center pixel of the last depth frame
	CenterDepthValid bool

	Mesh    mesh.Metrics
	Resets  ResetCounts
	Frames  FrameStats
	Alerts  uint64
	Sent    uint64
	Dropped uint64
}
