package audio

import (
	"fmt"
	"sync"
	"time"

	"github.com/gopxl/beep/v2/speaker"
)

// Output plays a Renderer on the system speaker.
type Output struct {
	mu   sync.Mutex
	open bool
}

// Open initializes the speaker and starts pulling samples from r.
func Open(r *Renderer) (*Output, error) {
	sr := r.SampleRate()
	if err := speaker.Init(sr, sr.N(time.Second/30)); err != nil {
		return nil, fmt.Errorf("init speaker: %w", err)
	}
	speaker.Play(r)
	return &Output{open: true}, nil
}

// Close stops playback and releases the device. Safe to call twice.
func (o *Output) Close() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.open {
		return
	}
	speaker.Clear()
	speaker.Close()
	o.open = false
}
