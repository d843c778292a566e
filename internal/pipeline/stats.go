package pipeline

import (
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"
)

// FrameStats summarizes frame processing over the recent window.
type FrameStats struct {
	Frames  uint64 // All frames received
	Gaps    uint64 // Frames without a usable pose
	Samples int    // Timings in the window
	Mean    time.Duration
	StdDev  time.Duration
	P95     time.Duration
	Max     time.Duration
}

// frameTimer is a fixed-size ring of processing times in seconds.
type frameTimer struct {
	samples []float64
	next    int
	full    bool
}

func newFrameTimer(window int) *frameTimer {
	if window < 1 {
		window = 1
	}
	return &frameTimer{samples: make([]float64, window)}
}

func (t *frameTimer) record(d time.Duration) {
	t.samples[t.next] = d.Seconds()
	t.next++
	if t.next == len(t.samples) {
		t.next = 0
		t.full = true
	}
}

func (t *frameTimer) window() []float64 {
	if t.full {
		return t.samples
	}
	return t.samples[:t.next]
}

// resize keeps the most recent samples that fit in the new window.
func (t *frameTimer) resize(window int) {
	if window < 1 || window == len(t.samples) {
		return
	}
	ordered := make([]float64, 0, len(t.samples))
	if t.full {
		ordered = append(ordered, t.samples[t.next:]...)
	}
	ordered = append(ordered, t.samples[:t.next]...)
	if len(ordered) > window {
		ordered = ordered[len(ordered)-window:]
	}
	nt := newFrameTimer(window)
	for _, s := range ordered {
		nt.record(time.Duration(s * float64(time.Second)))
	}
	*t = *nt
}

func (t *frameTimer) summarize(frames, gaps uint64) FrameStats {
	fs := FrameStats{Frames: frames, Gaps: gaps}
	w := t.window()
	if len(w) == 0 {
		return fs
	}
	sorted := make([]float64, len(w))
	copy(sorted, w)
	sort.Float64s(sorted)

	fs.Samples = len(sorted)
	fs.Mean = seconds(stat.Mean(sorted, nil))
	if len(sorted) > 1 {
		fs.StdDev = seconds(stat.StdDev(sorted, nil))
	}
	fs.P95 = seconds(stat.Quantile(0.95, stat.Empirical, sorted, nil))
	fs.Max = seconds(sorted[len(sorted)-1])
	return fs
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
