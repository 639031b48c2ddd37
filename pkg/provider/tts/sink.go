package tts

import (
	"context"
	"time"
)

var _ Sink = Pacer{}

// Pacer is a Sink for deployments where another component owns the output
// device (the browser page, a platform media player). Play blocks for the
// audio's duration without touching any hardware, so the caller's mute
// window still covers the full playback.
type Pacer struct{}

// Play waits for the playback duration of audio or until ctx is cancelled.
func (Pacer) Play(ctx context.Context, audio Audio) error {
	d := time.Duration(audio.Duration() * float64(time.Second))
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
