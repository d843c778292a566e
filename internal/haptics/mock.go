package haptics

import (
	"errors"
	"sync"
)

// ErrMockFault is the error injected by MockActuator.
var ErrMockFault = errors.New("mock actuator fault")

// MockActuator records calls and can inject faults. It backs the simulator
// and tests.
type MockActuator struct {
	mu sync.Mutex

	Running    bool
	Starts     int
	Stops      int
	Patterns   [][]Pulse
	Players    []*MockPlayer
	FailStarts int // Number of upcoming Start calls that fail
	FailSets   int // Number of upcoming SetParameters calls that fail

	// OnChange, if set, is called after every state change. It must not
	// call back into the actuator.
	OnChange func(event string, p Parameters)
}

// NewMockActuator creates an idle mock.
func NewMockActuator() *MockActuator {
	return &MockActuator{}
}

// Start implements Actuator.
func (m *MockActuator) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailStarts > 0 {
		m.FailStarts--
		return ErrMockFault
	}
	if !m.Running {
		m.Running = true
		m.Starts++
		m.notify("engine_start", Parameters{})
	}
	return nil
}

// Stop implements Actuator.
func (m *MockActuator) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Running = false
	m.Stops++
	for _, p := range m.Players {
		p.playing = false
	}
	m.notify("engine_stop", Parameters{})
	return nil
}

// Interrupt simulates a device-level stop without going through the Controller.
func (m *MockActuator) Interrupt() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Running = false
	for _, p := range m.Players {
		p.playing = false
	}
}

// PlayContinuous implements Actuator.
func (m *MockActuator) PlayContinuous(p Parameters) (Player, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.Running {
		return nil, ErrMockFault
	}
	pl := &MockPlayer{owner: m, playing: true, params: p}
	m.Players = append(m.Players, pl)
	m.notify("pattern_start", p)
	return pl, nil
}

// PlayPattern implements Actuator.
func (m *MockActuator) PlayPattern(pulses []Pulse) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.Running {
		return ErrMockFault
	}
	cp := make([]Pulse, len(pulses))
	copy(cp, pulses)
	m.Patterns = append(m.Patterns, cp)
	m.notify("burst", Parameters{Intensity: 1, Sharpness: 1})
	return nil
}

// Current returns the parameters of the playing continuous pattern.
func (m *MockActuator) Current() (Parameters, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.Players) - 1; i >= 0; i-- {
		if p := m.Players[i]; p.playing {
			return p.params, true
		}
	}
	return Parameters{}, false
}

// Bursts returns how many alert bursts were played.
func (m *MockActuator) Bursts() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Patterns)
}

func (m *MockActuator) notify(event string, p Parameters) {
	if m.OnChange != nil {
		m.OnChange(event, p)
	}
}

// MockPlayer is the Player returned by MockActuator.
type MockPlayer struct {
	owner   *MockActuator
	playing bool
	params  Parameters
	updates int
}

// SetParameters implements Player.
func (p *MockPlayer) SetParameters(params Parameters) error {
	m := p.owner
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailSets > 0 {
		m.FailSets--
		return ErrMockFault
	}
	if !p.playing {
		return ErrMockFault
	}
	p.params = params
	p.updates++
	m.notify("pattern_update", params)
	return nil
}

// Stop implements Player.
func (p *MockPlayer) Stop() error {
	m := p.owner
	m.mu.Lock()
	defer m.mu.Unlock()
	p.playing = false
	m.notify("pattern_stop", Parameters{})
	return nil
}

// Updates returns how many in-place parameter updates the player received.
func (p *MockPlayer) Updates() int {
	p.owner.mu.Lock()
	defer p.owner.mu.Unlock()
	return p.updates
}
