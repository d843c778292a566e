package pipeline

import (
	gomath "math"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/Faultbox/proxisense/internal/config"
	"github.com/Faultbox/proxisense/internal/haptics"
	"github.com/Faultbox/proxisense/internal/mesh"
	"github.com/Faultbox/proxisense/internal/proximity"
	"github.com/Faultbox/proxisense/internal/sensor"
	"github.com/Faultbox/proxisense/internal/tone"
	"github.com/Faultbox/proxisense/pkg/math"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newEngine(cfg *config.Config) *Engine {
	if cfg == nil {
		cfg = config.Default()
	}
	return New(cfg, WithClock(func() time.Time { return t0 }))
}

func fragmentAt(x, y, z float32) mesh.Fragment {
	return mesh.Fragment{
		ID:          uuid.New(),
		Position:    math.Vec3{X: x, Y: y, Z: z},
		VertexCount: 12,
	}
}

func added(f mesh.Fragment) sensor.MeshEvent {
	return sensor.MeshEvent{Kind: sensor.MeshAdded, Fragment: f}
}

func moved(f mesh.Fragment, z float32) sensor.MeshEvent {
	f.Position.Z = z
	return sensor.MeshEvent{Kind: sensor.MeshUpdated, Fragment: f}
}

func frame(at time.Time, pos math.Vec3, events ...sensor.MeshEvent) *sensor.Frame {
	pose := sensor.CameraPose{Position: pos, Forward: math.Vec3{Z: 1}}
	return &sensor.Frame{
		Timestamp:  at,
		Tracking:   sensor.TrackingNormal,
		Pose:       &pose,
		MeshEvents: events,
	}
}

func pending(e *Engine) []Command {
	var out []Command
	for {
		select {
		case c := <-e.Commands():
			out = append(out, c)
		default:
			return out
		}
	}
}

func split(cmds []Command) (tones []tone.Command, haps []haptics.Command) {
	for _, c := range cmds {
		switch c.Kind {
		case ToneOutput:
			tones = append(tones, c.Tone)
		case HapticOutput:
			haps = append(haps, c.Haptic)
		}
	}
	return tones, haps
}

func countAlerts(haps []haptics.Command) int {
	n := 0
	for _, h := range haps {
		if h.Kind == haptics.Alert {
			n++
		}
	}
	return n
}

func TestNearObstacleWithoutAlert(t *testing.T) {
	e := newEngine(nil)
	e.ProcessFrame(frame(t0, math.Vec3{}, added(fragmentAt(0, 0, 0.3))))

	snap := e.Snapshot()
	if !snap.HasObstacle || gomath.Abs(float64(snap.Obstacle.Distance-0.3)) > 1e-6 {
		t.Fatalf("obstacle = %+v (found %v), want distance 0.3", snap.Obstacle, snap.HasObstacle)
	}
	if snap.Level != proximity.Near {
		t.Errorf("Level = %v, want near", snap.Level)
	}

	tones, haps := split(pending(e))
	if len(tones) != 1 || tones[0].Band != tone.BandHigh || !tones[0].BufferSwitch {
		t.Errorf("tones = %+v, want one high band switch", tones)
	}
	if len(haps) != 1 || haps[0].Kind != haptics.Start {
		t.Errorf("haptics = %+v, want a single start", haps)
	}
	if n := countAlerts(haps); n != 0 || snap.Alerts != 0 {
		t.Errorf("alerts fired for a near obstacle: %d", n)
	}
}

func TestTooCloseAlertFiresOnce(t *testing.T) {
	e := newEngine(nil)
	e.ProcessFrame(frame(t0, math.Vec3{}, added(fragmentAt(0, 0, 0.1))))

	if lvl := e.Snapshot().Level; lvl != proximity.TooClose {
		t.Fatalf("Level = %v, want too close", lvl)
	}
	_, haps := split(pending(e))
	if n := countAlerts(haps); n != 1 {
		t.Fatalf("alerts on entry = %d, want 1", n)
	}

	e.ProcessFrame(frame(t0.Add(100*time.Millisecond), math.Vec3{}))
	_, haps = split(pending(e))
	if n := countAlerts(haps); n != 0 {
		t.Errorf("alert re-fired within re-arm window")
	}
	if got := e.Snapshot().Alerts; got != 1 {
		t.Errorf("Alerts = %d, want 1", got)
	}
}

func TestAlertRearm(t *testing.T) {
	e := newEngine(nil)
	f := fragmentAt(0, 0, 0.1)
	origin := math.Vec3{}

	steps := []struct {
		at    time.Duration
		z     float32
		alert bool
	}{
		{0, 0.1, true},
		{50 * time.Millisecond, 0.5, false},
		{100 * time.Millisecond, 0.1, false}, // inside re-arm window
		{400 * time.Millisecond, 0.5, false},
		{450 * time.Millisecond, 0.1, true},
	}
	for i, s := range steps {
		ev := moved(f, s.z)
		if i == 0 {
			ev = added(f)
		}
		e.ProcessFrame(frame(t0.Add(s.at), origin, ev))
		_, haps := split(pending(e))
		if got := countAlerts(haps) == 1; got != s.alert {
			t.Errorf("step %d (%v, z=%.1f): alert = %v, want %v", i, s.at, s.z, got, s.alert)
		}
	}
}

func TestMovementResetClearsStore(t *testing.T) {
	e := newEngine(nil)
	e.ProcessFrame(frame(t0, math.Vec3{},
		added(fragmentAt(0, 0, 2)),
		added(fragmentAt(1, 0, 3)),
		added(fragmentAt(-1, 0, 4))))
	if n := e.Snapshot().Mesh.Fragments; n != 3 {
		t.Fatalf("Fragments = %d, want 3", n)
	}

	e.ProcessFrame(frame(t0.Add(time.Second), math.Vec3{Z: 60}, added(fragmentAt(0, 0, 62))))

	snap := e.Snapshot()
	if snap.Resets.Movement != 1 {
		t.Errorf("movement resets = %d, want 1", snap.Resets.Movement)
	}
	if snap.Mesh.Fragments != 1 {
		t.Errorf("Fragments = %d, want only the one seen at the new location", snap.Mesh.Fragments)
	}
	if !snap.HasObstacle || gomath.Abs(float64(snap.Obstacle.Distance-2)) > 1e-6 {
		t.Errorf("obstacle = %+v, want the new fragment 2 ahead", snap.Obstacle)
	}
}

func TestMovementBelowThresholdKeepsStore(t *testing.T) {
	e := newEngine(nil)
	e.ProcessFrame(frame(t0, math.Vec3{}, added(fragmentAt(0, 0, 2))))
	e.ProcessFrame(frame(t0, math.Vec3{Z: 30}))
	e.ProcessFrame(frame(t0, math.Vec3{Z: 50}))

	if got := e.Snapshot().Resets.Movement; got != 0 {
		t.Errorf("movement resets = %d, want 0 at exactly the threshold", got)
	}
}

func TestSensingGapHoldsFeedback(t *testing.T) {
	e := newEngine(nil)
	f := fragmentAt(0, 0, 0.6)
	e.ProcessFrame(frame(t0, math.Vec3{}, added(f)))
	pending(e)

	gap := frame(t0.Add(time.Second), math.Vec3{}, sensor.MeshEvent{Kind: sensor.MeshRemoved, Fragment: f})
	gap.Tracking = sensor.TrackingLimited
	e.ProcessFrame(gap)
	e.ProcessFrame(&sensor.Frame{Timestamp: t0.Add(2 * time.Second), Tracking: sensor.TrackingNormal})

	if cmds := pending(e); len(cmds) != 0 {
		t.Errorf("sensing gaps produced %d commands", len(cmds))
	}
	snap := e.Snapshot()
	if snap.Level != proximity.Near {
		t.Errorf("Level = %v, want near held through the gap", snap.Level)
	}
	if snap.Frames.Gaps != 2 {
		t.Errorf("Gaps = %d, want 2", snap.Frames.Gaps)
	}
	if snap.Mesh.Fragments != 0 {
		t.Errorf("mesh events not applied during a gap")
	}
	if snap.Tracking != sensor.TrackingNormal {
		t.Errorf("Tracking = %v, want last reported state", snap.Tracking)
	}
}

func TestClearPathPlaysAmbient(t *testing.T) {
	e := newEngine(nil)
	e.ProcessFrame(frame(t0, math.Vec3{}))
	e.ProcessFrame(frame(t0.Add(time.Second/30), math.Vec3{}))

	tones, haps := split(pending(e))
	if len(tones) != 1 {
		t.Fatalf("got %d tone commands, want 1 (duplicates suppressed)", len(tones))
	}
	if !tones[0].Ambient || tones[0].Volume != 0.1 {
		t.Errorf("tone = %+v, want ambient at 0.1", tones[0])
	}
	if len(haps) != 0 {
		t.Errorf("haptics = %+v, want none on a clear path", haps)
	}
	if lvl := e.Snapshot().Level; lvl != proximity.Safe {
		t.Errorf("Level = %v, want safe", lvl)
	}
}

func TestObstacleBehindIgnored(t *testing.T) {
	e := newEngine(nil)
	e.ProcessFrame(frame(t0, math.Vec3{},
		added(fragmentAt(0, 0, -0.1)),
		added(fragmentAt(0, 0, 2))))

	snap := e.Snapshot()
	if gomath.Abs(float64(snap.Obstacle.Distance-2)) > 1e-6 {
		t.Errorf("Distance = %v, want 2", snap.Obstacle.Distance)
	}
	if snap.Level != proximity.Safe {
		t.Errorf("Level = %v, want safe at distance 2", snap.Level)
	}
}

func TestPauseAndResume(t *testing.T) {
	e := newEngine(nil)
	e.ProcessFrame(frame(t0, math.Vec3{}, added(fragmentAt(0, 0, 0.6))))
	pending(e)

	e.Pause()
	tones, haps := split(pending(e))
	if len(tones) != 1 || !tones[0].Stop {
		t.Errorf("tones on pause = %+v, want one stop", tones)
	}
	if len(haps) != 1 || haps[0].Kind != haptics.Stop {
		t.Errorf("haptics on pause = %+v, want one stop", haps)
	}
	snap := e.Snapshot()
	if !snap.Paused || snap.Level != proximity.Safe {
		t.Errorf("snapshot after pause: paused=%v level=%v", snap.Paused, snap.Level)
	}

	e.Pause()
	e.ProcessFrame(frame(t0.Add(time.Second), math.Vec3{}))
	if cmds := pending(e); len(cmds) != 0 {
		t.Errorf("paused engine produced %d commands", len(cmds))
	}

	e.Resume()
	e.ProcessFrame(frame(t0.Add(2*time.Second), math.Vec3{}))
	tones, haps = split(pending(e))
	if len(tones) != 1 || !tones[0].BufferSwitch {
		t.Errorf("tones after resume = %+v, want a buffer switch", tones)
	}
	if len(haps) != 1 || haps[0].Kind != haptics.Start {
		t.Errorf("haptics after resume = %+v, want start", haps)
	}
}

func TestStopAll(t *testing.T) {
	e := newEngine(nil)
	e.ProcessFrame(frame(t0, math.Vec3{}, added(fragmentAt(0, 0, 0.6))))
	pending(e)

	e.StopAll()
	tones, haps := split(pending(e))
	if len(tones) != 1 || !tones[0].Stop || len(haps) != 1 || haps[0].Kind != haptics.Stop {
		t.Errorf("StopAll emitted tones=%+v haptics=%+v", tones, haps)
	}
	if !e.Paused() {
		t.Error("engine not paused after StopAll")
	}

	e.StopAll()
	if cmds := pending(e); len(cmds) != 0 {
		t.Errorf("second StopAll emitted %d commands", len(cmds))
	}
}

func TestApplyConfigTakesEffectNextFrame(t *testing.T) {
	e := newEngine(nil)
	f := fragmentAt(0, 0, 0.3)
	e.ProcessFrame(frame(t0, math.Vec3{}, added(f)))
	pending(e)

	cfg := config.Default()
	cfg.Proximity.TooCloseDistance = 0.4
	e.ApplyConfig(cfg)
	if cmds := pending(e); len(cmds) != 0 {
		t.Errorf("ApplyConfig emitted %d commands before the next frame", len(cmds))
	}

	e.ProcessFrame(frame(t0.Add(time.Second), math.Vec3{}))
	if lvl := e.Snapshot().Level; lvl != proximity.TooClose {
		t.Errorf("Level = %v, want too close under new thresholds", lvl)
	}
	tones, haps := split(pending(e))
	if len(tones) != 1 || !tones[0].BufferSwitch {
		t.Errorf("tones = %+v, want a forced buffer switch", tones)
	}
	if countAlerts(haps) != 1 {
		t.Errorf("haptics = %+v, want one alert", haps)
	}
}

func TestApplyConfigDisablesOutputs(t *testing.T) {
	e := newEngine(nil)
	e.ProcessFrame(frame(t0, math.Vec3{}, added(fragmentAt(0, 0, 0.6))))
	pending(e)

	cfg := config.Default()
	cfg.Audio.Enabled = false
	cfg.Haptics.Enabled = false
	e.ApplyConfig(cfg)

	e.ProcessFrame(frame(t0.Add(time.Second), math.Vec3{}))
	tones, haps := split(pending(e))
	if len(tones) != 1 || !tones[0].Stop {
		t.Errorf("tones = %+v, want one stop", tones)
	}
	if len(haps) != 1 || haps[0].Kind != haptics.Stop {
		t.Errorf("haptics = %+v, want one stop", haps)
	}

	e.ProcessFrame(frame(t0.Add(2*time.Second), math.Vec3{}))
	if cmds := pending(e); len(cmds) != 0 {
		t.Errorf("disabled outputs produced %d commands", len(cmds))
	}
}

func TestHaltAfterApplyConfig(t *testing.T) {
	tests := []struct {
		name string
		halt func(*Engine)
	}{
		{"pause", (*Engine).Pause},
		{"stop all", (*Engine).StopAll},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEngine(nil)
			e.ProcessFrame(frame(t0, math.Vec3{}, added(fragmentAt(0, 0, 0.6))))
			e.ApplyConfig(config.Default())
			pending(e)

			tt.halt(e)
			tones, haps := split(pending(e))
			if len(tones) != 1 || !tones[0].Stop {
				t.Errorf("tones = %+v, want one stop", tones)
			}
			if len(haps) != 1 || haps[0].Kind != haptics.Stop {
				t.Errorf("haptics = %+v, want one stop", haps)
			}
		})
	}
}

func TestToneOffsetFollowsCameraHeading(t *testing.T) {
	e := newEngine(nil)
	pose := sensor.CameraPose{Forward: math.Vec3{X: 1}}
	e.ProcessFrame(&sensor.Frame{
		Timestamp:  t0,
		Tracking:   sensor.TrackingNormal,
		Pose:       &pose,
		MeshEvents: []sensor.MeshEvent{added(fragmentAt(0.6, 0, 0))},
	})

	tones, _ := split(pending(e))
	if len(tones) != 1 {
		t.Fatalf("tones = %+v, want one", tones)
	}
	if off := tones[0].Offset; gomath.Abs(float64(off.X)) > 1e-4 || off.Z <= 0 {
		t.Errorf("Offset = %v, want straight ahead of the listener", off)
	}
}

func TestApplyConfigClamps(t *testing.T) {
	e := newEngine(nil)
	cfg := config.Default()
	cfg.Proximity.Hysteresis = -1
	cfg.Haptics.Exponent = 0
	e.ApplyConfig(cfg)

	got := e.Config()
	if got.Proximity.Hysteresis != 0 {
		t.Errorf("Hysteresis = %v, want 0", got.Proximity.Hysteresis)
	}
	if got.Haptics.Exponent != 0.1 {
		t.Errorf("Exponent = %v, want 0.1", got.Haptics.Exponent)
	}
	if cfg.Proximity.Hysteresis != -1 {
		t.Error("ApplyConfig modified the caller's config")
	}
}

func TestQueueOverflowNeverBlocks(t *testing.T) {
	cfg := config.Default()
	cfg.Pipeline.CommandQueueSize = 8
	e := newEngine(cfg)

	f := fragmentAt(0, 0, 2.5)
	e.ProcessFrame(frame(t0, math.Vec3{}, added(f)))
	for i := 1; i <= 20; i++ {
		e.ProcessFrame(frame(t0.Add(time.Duration(i)*time.Second/30), math.Vec3{}, moved(f, 2.5-float32(i)*0.05)))
	}

	snap := e.Snapshot()
	if snap.Dropped == 0 {
		t.Fatal("expected dropped commands with a stalled consumer")
	}
	if got := len(pending(e)); got != 8 {
		t.Errorf("pending = %d, want a full queue of 8", got)
	}
	if snap.Sent != 8 {
		t.Errorf("Sent = %d, want 8", snap.Sent)
	}
}

func TestDistanceFilterCadence(t *testing.T) {
	cfg := config.Default()
	cfg.Eviction.FilterEveryFrames = 2
	e := newEngine(cfg)

	e.ProcessFrame(frame(t0, math.Vec3{},
		added(fragmentAt(0, 0, 1)),
		added(fragmentAt(0, 0, 20))))
	if n := e.Snapshot().Mesh.Fragments; n != 2 {
		t.Fatalf("Fragments = %d after first frame, want 2", n)
	}

	e.ProcessFrame(frame(t0, math.Vec3{}))
	m := e.Snapshot().Mesh
	if m.Fragments != 1 || m.Filtered != 1 {
		t.Errorf("after filter frame: %+v, want 1 fragment and 1 filtered", m)
	}
}

func TestResetCacheReasons(t *testing.T) {
	e := newEngine(nil)
	e.ProcessFrame(frame(t0, math.Vec3{}, added(fragmentAt(0, 0, 1))))

	e.ResetCache(ResetManual)
	if n := e.Snapshot().Mesh.Fragments; n != 0 {
		t.Errorf("Fragments = %d after manual reset", n)
	}
	e.HandleMemoryWarning()
	e.ResetCache(ResetPeriodic)

	want := ResetCounts{Manual: 1, Periodic: 1, Memory: 1}
	if got := e.Snapshot().Resets; got != want {
		t.Errorf("Resets = %+v, want %+v", got, want)
	}
	if want.Total() != 3 {
		t.Errorf("Total = %d, want 3", want.Total())
	}
}

func TestCenterDepthReadout(t *testing.T) {
	e := newEngine(nil)
	d, err := sensor.NewDepthFrame(3, 3, []float32{9, 9, 9, 9, 1.5, 9, 9, 9, 9})
	if err != nil {
		t.Fatal(err)
	}
	f := frame(t0, math.Vec3{})
	f.Depth = d
	e.ProcessFrame(f)

	snap := e.Snapshot()
	if !snap.CenterDepthValid || snap.CenterDepth != 1.5 {
		t.Errorf("center depth = %v (valid %v), want 1.5", snap.CenterDepth, snap.CenterDepthValid)
	}

	e.ProcessFrame(frame(t0, math.Vec3{}))
	if e.Snapshot().CenterDepthValid {
		t.Error("center depth still valid on a frame without depth")
	}
}

func TestFrameStatsCounted(t *testing.T) {
	e := newEngine(nil)
	for i := 0; i < 5; i++ {
		e.ProcessFrame(frame(t0, math.Vec3{}))
	}
	fs := e.Snapshot().Frames
	if fs.Frames != 5 || fs.Samples != 5 {
		t.Errorf("frame stats %+v, want 5 frames and 5 samples", fs)
	}
	if fs.P95 > fs.Max || fs.Mean > fs.Max {
		t.Errorf("inconsistent summary %+v", fs)
	}
}

func TestNilFrameIgnored(t *testing.T) {
	e := newEngine(nil)
	e.ProcessFrame(nil)
	if n := e.Snapshot().Frames.Frames; n != 0 {
		t.Errorf("Frames = %d, want 0", n)
	}
}
