// Package mesh keeps the bounded set of observed surface fragments that
// obstacle selection runs against.
package mesh

import (
	"github.com/google/uuid"

	"github.com/Faultbox/proxisense/pkg/math"
)

// Fragment is an observed patch of real-world surface.
type Fragment struct {
	ID          uuid.UUID
	Position    math.Vec3 // Anchor origin in world space
	Orientation math.Quat // Zero value means identity
	LocalCenter math.Vec3 // Bounding box center in anchor space
	Extent      math.Vec3 // Bounding box half size
	VertexCount int

	// Revision is stamped by the Store on every upsert; higher is newer.
	Revision uint64
}

// Center returns the fragment's bounding box center in world space.
func (f Fragment) Center() math.Vec3 {
	if f.Orientation.IsZero() {
		return f.Position.Add(f.LocalCenter)
	}
	return f.Position.Add(f.Orientation.Rotate(f.LocalCenter))
}

func (f Fragment) valid() bool {
	return f.ID != uuid.Nil && f.Position.IsFinite() && f.LocalCenter.IsFinite() && f.VertexCount >= 0
}
