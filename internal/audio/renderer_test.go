package audio

import (
	gomath "math"
	"testing"

	"github.com/Faultbox/proxisense/internal/config"
	"github.com/Faultbox/proxisense/internal/tone"
	"github.com/Faultbox/proxisense/pkg/math"
)

func pull(r *Renderer, n int) [][2]float64 {
	out := make([][2]float64, 0, n)
	buf := make([][2]float64, 512)
	for len(out) < n {
		k, ok := r.Stream(buf)
		if !ok || k != len(buf) {
			panic("renderer stream ended")
		}
		out = append(out, buf[:k]...)
	}
	return out[:n]
}

func peak(samples [][2]float64, ch int) float64 {
	var m float64
	for _, s := range samples {
		m = gomath.Max(m, gomath.Abs(s[ch]))
	}
	return m
}

func crossings(samples [][2]float64, ch int) int {
	n := 0
	for i := 1; i < len(samples); i++ {
		if (samples[i-1][ch] < 0) != (samples[i][ch] < 0) {
			n++
		}
	}
	return n
}

func command(band tone.Band, vol float32, offset math.Vec3) tone.Command {
	a := config.Default().Audio
	return tone.Command{
		Band:         band,
		Frequency:    tone.Frequency(band, a),
		Offset:       offset,
		Volume:       vol,
		Rate:         band.Rate(),
		BufferSwitch: true,
	}
}

var ahead = math.Vec3{Z: 1}

func TestSilentUntilFirstCommand(t *testing.T) {
	r := NewRenderer(DefaultSampleRate)
	s := pull(r, 2048)
	if p := peak(s, 0) + peak(s, 1); p != 0 {
		t.Errorf("peak = %f, want silence", p)
	}
}

func TestVolumeScalesAmplitude(t *testing.T) {
	tests := []struct {
		vol float32
	}{
		{1.0},
		{0.5},
		{0.1},
	}
	for _, tt := range tests {
		r := NewRenderer(DefaultSampleRate)
		if err := r.Apply(command(tone.BandLow, tt.vol, ahead)); err != nil {
			t.Fatalf("Apply: %v", err)
		}
		p := peak(pull(r, 4096), 0)
		if p < float64(tt.vol)*0.8 || p > float64(tt.vol)*1.05 {
			t.Errorf("volume %.1f: peak = %f", tt.vol, p)
		}
	}
}

func TestPanFollowsBearing(t *testing.T) {
	r := NewRenderer(DefaultSampleRate)
	if err := r.Apply(command(tone.BandMedium, 0.5, math.Vec3{X: 2})); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	s := pull(r, 4096)
	if l := peak(s, 0); l > 1e-9 {
		t.Errorf("left peak = %f for a source hard right", l)
	}
	if rp := peak(s, 1); rp == 0 {
		t.Error("right channel silent for a source hard right")
	}
	if got := r.State().Pan; got != 1 {
		t.Errorf("Pan = %f, want 1", got)
	}
}

func TestPanFor(t *testing.T) {
	tests := []struct {
		offset math.Vec3
		want   float64
	}{
		{math.Vec3{Z: 1}, 0},
		{math.Vec3{X: 1}, 1},
		{math.Vec3{X: -3}, -1},
		{math.Vec3{X: 1, Z: 1}, gomath.Sqrt2 / 2},
		{math.Vec3{Y: 2}, 0},
	}
	for _, tt := range tests {
		if got := panFor(tt.offset); gomath.Abs(got-tt.want) > 1e-6 {
			t.Errorf("panFor(%v) = %f, want %f", tt.offset, got, tt.want)
		}
	}
}

func TestGain(t *testing.T) {
	tests := []struct {
		vol    float32
		exp    float64
		silent bool
	}{
		{1, 0, false},
		{0.5, -1, false},
		{0.25, -2, false},
		{2, 0, false},
		{0, 0, true},
		{-1, 0, true},
	}
	for _, tt := range tests {
		exp, silent := gain(tt.vol)
		if silent != tt.silent || gomath.Abs(exp-tt.exp) > 1e-9 {
			t.Errorf("gain(%f) = %f, %v; want %f, %v", tt.vol, exp, silent, tt.exp, tt.silent)
		}
	}
}

func TestHighBandPlaysFaster(t *testing.T) {
	low := NewRenderer(DefaultSampleRate)
	high := NewRenderer(DefaultSampleRate)
	if err := low.Apply(command(tone.BandLow, 1, ahead)); err != nil {
		t.Fatal(err)
	}
	if err := high.Apply(command(tone.BandHigh, 1, ahead)); err != nil {
		t.Fatal(err)
	}

	second := int(DefaultSampleRate)
	lc := crossings(pull(low, second), 0)
	hc := crossings(pull(high, second), 0)
	if hc <= 2*lc {
		t.Errorf("high band crossings %d, low band %d; want high > 2x low", hc, lc)
	}
}

func TestInPlaceUpdateKeepsSource(t *testing.T) {
	r := NewRenderer(DefaultSampleRate)
	cmd := command(tone.BandLow, 0.5, ahead)
	if err := r.Apply(cmd); err != nil {
		t.Fatal(err)
	}
	cmd.BufferSwitch = false
	cmd.Volume = 0.8
	cmd.Offset = math.Vec3{X: -1, Z: 1}
	if err := r.Apply(cmd); err != nil {
		t.Fatal(err)
	}

	if s := r.Stats(); s.Switches != 1 || s.Commands != 2 {
		t.Errorf("stats %+v, want 1 switch over 2 commands", s)
	}
	st := r.State()
	if st.Volume != 0.8 || st.Pan >= 0 {
		t.Errorf("state %+v not updated in place", st)
	}
}

func TestStopSilences(t *testing.T) {
	r := NewRenderer(DefaultSampleRate)
	if err := r.Apply(command(tone.BandHigh, 1, ahead)); err != nil {
		t.Fatal(err)
	}
	pull(r, 1024)
	if err := r.Apply(tone.Command{Stop: true}); err != nil {
		t.Fatal(err)
	}
	s := pull(r, 1024)
	if p := peak(s, 0) + peak(s, 1); p != 0 {
		t.Errorf("peak after stop = %f", p)
	}
	if r.State().Playing {
		t.Error("renderer reports playing after stop")
	}
}

func TestUnplayableFrequency(t *testing.T) {
	r := NewRenderer(DefaultSampleRate)
	cmd := command(tone.BandLow, 1, ahead)
	cmd.Frequency = 30000

	if err := r.Apply(cmd); err == nil {
		t.Fatal("expected error for a frequency above Nyquist")
	}
	if r.State().Playing {
		t.Error("renderer playing after a failed switch")
	}
	if r.Stats().Errors != 1 {
		t.Errorf("Errors = %d, want 1", r.Stats().Errors)
	}
}
