// Package obstacle picks the surface point that matters for feedback.
package obstacle

import (
	"github.com/google/uuid"

	"github.com/Faultbox/proxisense/internal/mesh"
	"github.com/Faultbox/proxisense/internal/sensor"
	"github.com/Faultbox/proxisense/pkg/math"
)

// DefaultFOVCosine keeps a forward cone of roughly 150 degrees. Peripheral
// surfaces stay in; anything clearly behind the user drops out.
const DefaultFOVCosine = -0.5

// Point is the nearest relevant surface point for one frame.
type Point struct {
	Position   math.Vec3
	Distance   float32
	FragmentID uuid.UUID
}

// Source is the read side of the mesh store used for selection.
type Source interface {
	Within(origin math.Vec3, radius float32, fn func(f mesh.Fragment, center math.Vec3, dist float32) bool)
}

// Select returns the closest fragment center within maxDistance of the
// camera whose direction from the camera has a dot product with the camera
// forward vector strictly greater than fovCosine. Equal distances resolve to
// the most recently updated fragment. A center at the camera position is
// always included since its direction is undefined.
func Select(src Source, pose sensor.CameraPose, maxDistance, fovCosine float32) (Point, bool) {
	forward := pose.Forward.Normalize()

	var (
		best    Point
		bestRev uint64
		found   bool
	)
	src.Within(pose.Position, maxDistance, func(f mesh.Fragment, center math.Vec3, dist float32) bool {
		if dist > 0 {
			dir := center.Sub(pose.Position).Scale(1 / dist)
			if dir.Dot(forward) <= fovCosine {
				return true
			}
		}
		if !found || dist < best.Distance || (dist == best.Distance && f.Revision > bestRev) {
			best = Point{Position: center, Distance: dist, FragmentID: f.ID}
			bestRev = f.Revision
			found = true
		}
		return true
	})
	return best, found
}
