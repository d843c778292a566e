package math

import (
	"math"
	"testing"
)

func TestQuatIdentity(t *testing.T) {
	q := QuatIdentity()
	if q.X != 0 || q.Y != 0 || q.Z != 0 || q.W != 1 {
		t.Errorf("Identity quaternion should be (0,0,0,1), got (%v,%v,%v,%v)", q.X, q.Y, q.Z, q.W)
	}
	if q.IsZero() {
		t.Error("identity should not report IsZero")
	}
}

func TestQuatNormalize(t *testing.T) {
	q := Quat{X: 1, Y: 2, Z: 3, W: 4}
	n := q.Normalize()

	length := float32(math.Sqrt(float64(n.X*n.X + n.Y*n.Y + n.Z*n.Z + n.W*n.W)))
	if math.Abs(float64(length-1.0)) > 0.0001 {
		t.Errorf("Normalized quaternion length should be 1, got %v", length)
	}
}

func TestQuatRotateMatchesRotateY(t *testing.T) {
	v := Vec3{X: 0.3, Y: 1.2, Z: -2}
	for _, yaw := range []float32{0, 0.4, -1.1, math.Pi / 2, 3} {
		got := QuatFromYaw(yaw).Rotate(v)
		want := v.RotateY(yaw)
		if !near(got.X, want.X) || !near(got.Y, want.Y) || !near(got.Z, want.Z) {
			t.Errorf("yaw %v: Rotate = %v, RotateY = %v", yaw, got, want)
		}
	}
}

func TestQuatYaw(t *testing.T) {
	for _, yaw := range []float32{0, 0.5, -0.5, 1.5, -2.5} {
		got := QuatFromYaw(yaw).Yaw()
		if !near(got, yaw) {
			t.Errorf("QuatFromYaw(%v).Yaw() = %v", yaw, got)
		}
	}
}

func TestQuatMul(t *testing.T) {
	a := QuatFromYaw(0.3)
	b := QuatFromYaw(0.4)
	got := a.Mul(b).Yaw()
	if !near(got, 0.7) {
		t.Errorf("composed yaw = %v, want 0.7", got)
	}
}
