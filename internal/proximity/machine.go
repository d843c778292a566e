// Package proximity turns a continuous obstacle distance into discrete
// safety levels with hysteresis.
package proximity

import (
	gomath "math"
	"time"
)

// Level is a discrete safety level. Higher values are more urgent.
type Level int

const (
	Safe Level = iota
	Medium
	Near
	TooClose
)

func (l Level) String() string {
	switch l {
	case Safe:
		return "safe"
	case Medium:
		return "medium"
	case Near:
		return "near"
	case TooClose:
		return "too_close"
	default:
		return "unknown"
	}
}

// Thresholds are the level boundaries in world units. Hysteresis is the
// fraction of each threshold used as a dead band on either side.
type Thresholds struct {
	TooClose   float32
	Near       float32
	Medium     float32
	Hysteresis float32
	AlertRearm time.Duration
}

// State is the machine's current output.
type State struct {
	Level     Level
	Distance  float32 // +Inf when the path is clear
	ChangedAt time.Time
}

// Transition describes the result of one Update.
type Transition struct {
	From  Level
	To    Level
	Alert bool // One-shot too-close alert should fire
}

// Changed reports whether the level moved.
func (t Transition) Changed() bool {
	return t.From != t.To
}

// Machine classifies distances into levels. It is not safe for concurrent use.
type Machine struct {
	th        Thresholds
	state     State
	lastAlert time.Time
	alerted   bool
}

// NewMachine creates a machine starting at Safe.
func NewMachine(th Thresholds) *Machine {
	return &Machine{
		th:    th,
		state: State{Level: Safe, Distance: float32(gomath.Inf(1))},
	}
}

// State returns the current state.
func (m *Machine) State() State {
	return m.state
}

// Thresholds returns the active thresholds.
func (m *Machine) Thresholds() Thresholds {
	return m.th
}

// SetThresholds swaps thresholds. The current level is kept and re-evaluated
// on the next Update.
func (m *Machine) SetThresholds(th Thresholds) {
	m.th = th
}

// Classify maps a distance to a level with no hysteresis.
func (th Thresholds) Classify(distance float32) Level {
	return th.classifyScaled(distance, 1)
}

func (th Thresholds) classifyScaled(distance, scale float32) Level {
	switch {
	case distance < th.TooClose*scale:
		return TooClose
	case distance < th.Near*scale:
		return Near
	case distance < th.Medium*scale:
		return Medium
	default:
		return Safe
	}
}

// Next returns the level that follows prev for the given distance. Moving to
// a more urgent level needs the distance to be below threshold*(1-h); moving
// back needs it at or above threshold*(1+h). Inside the band prev holds.
func (th Thresholds) Next(prev Level, distance float32) Level {
	if gomath.IsNaN(float64(distance)) {
		return prev
	}
	h := th.Hysteresis
	escalated := th.classifyScaled(distance, 1-h)
	relaxed := th.classifyScaled(distance, 1+h)
	switch {
	case escalated > prev:
		return escalated
	case relaxed < prev:
		return relaxed
	default:
		return prev
	}
}

// Update feeds a new distance observed at now.
func (m *Machine) Update(distance float32, now time.Time) Transition {
	from := m.state.Level
	to := m.th.Next(from, distance)

	tr := Transition{From: from, To: to}
	if to != from {
		m.state.ChangedAt = now
	}
	if to == TooClose && from != TooClose {
		if !m.alerted || now.Sub(m.lastAlert) >= m.th.AlertRearm {
			tr.Alert = true
			m.alerted = true
			m.lastAlert = now
		}
	}

	m.state.Level = to
	m.state.Distance = distance
	return tr
}

// Clear records that no obstacle is in view, which relaxes straight to Safe.
func (m *Machine) Clear(now time.Time) Transition {
	return m.Update(float32(gomath.Inf(1)), now)
}

// Reset returns to Safe without touching the alert re-arm timer, so a pause
// and resume cannot be used to flood alerts.
func (m *Machine) Reset(now time.Time) {
	if m.state.Level != Safe {
		m.state.ChangedAt = now
	}
	m.state.Level = Safe
	m.state.Distance = float32(gomath.Inf(1))
}
