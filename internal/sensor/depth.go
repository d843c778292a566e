package sensor

import (
	"errors"
	"math"
)

// ErrDepthShape is returned when a depth buffer does not match its dimensions.
var ErrDepthShape = errors.New("depth buffer size does not match width*height")

// DepthFrame is a row-major grid of scalar distances in meters.
type DepthFrame struct {
	Width  int
	Height int
	Values []float32
}

// NewDepthFrame validates and wraps a depth buffer.
func NewDepthFrame(width, height int, values []float32) (*DepthFrame, error) {
	if width <= 0 || height <= 0 || len(values) != width*height {
		return nil, ErrDepthShape
	}
	return &DepthFrame{Width: width, Height: height, Values: values}, nil
}

// At returns the depth at column x, row y.
func (d *DepthFrame) At(x, y int) (float32, bool) {
	if d == nil || x < 0 || y < 0 || x >= d.Width || y >= d.Height {
		return 0, false
	}
	idx := y*d.Width + x
	if idx >= len(d.Values) {
		return 0, false
	}
	return d.Values[idx], true
}

// CenterDistance returns the depth at the center pixel. Invalid readings
// (zero, negative, NaN, Inf) report false.
func (d *DepthFrame) CenterDistance() (float32, bool) {
	if d == nil {
		return 0, false
	}
	v, ok := d.At(d.Width/2, d.Height/2)
	if !ok {
		return 0, false
	}
	f := float64(v)
	if v <= 0 || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return v, true
}
