// Package mock provides in-memory tts implementations for tests.
package mock

import (
	"context"
	"sync"
	"time"

	"github.com/voicemate/voicemate/pkg/provider/tts"
)

var _ tts.Speaker = (*Speaker)(nil)

// Speaker is a scriptable tts.Speaker that records everything it was asked
// to say. An optional Delay simulates playback time, which is what the
// coordinator's mute-for-playback tests need.
type Speaker struct {
	// Delay is how long each Speak call blocks, simulating playback.
	Delay time.Duration

	// Err, when set, is returned by every Speak call.
	Err error

	mu     sync.Mutex
	spoken []string
}

// NewSpeaker returns an empty mock speaker.
func NewSpeaker() *Speaker {
	return &Speaker{}
}

// Speak records the utterance, then blocks for Delay or until ctx ends.
func (s *Speaker) Speak(ctx context.Context, text string) error {
	if s.Err != nil {
		return s.Err
	}
	s.mu.Lock()
	s.spoken = append(s.spoken, text)
	s.mu.Unlock()

	if s.Delay <= 0 {
		return ctx.Err()
	}
	select {
	case <-time.After(s.Delay):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Spoken returns every utterance spoken so far, in order.
func (s *Speaker) Spoken() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.spoken...)
}

var _ tts.Provider = (*Provider)(nil)

// Provider is a mock tts.Provider returning fixed audio.
type Provider struct {
	// Audio is returned by every Synthesize call.
	Audio tts.Audio

	// Err, when set, is returned by every call.
	Err error

	mu    sync.Mutex
	texts []string
}

// Synthesize records the text and returns the fixed audio.
func (p *Provider) Synthesize(ctx context.Context, text string, _ tts.Voice) (tts.Audio, error) {
	if p.Err != nil {
		return tts.Audio{}, p.Err
	}
	if err := ctx.Err(); err != nil {
		return tts.Audio{}, err
	}
	p.mu.Lock()
	p.texts = append(p.texts, text)
	p.mu.Unlock()
	return p.Audio, nil
}

// ListVoices returns a single fixed voice.
func (p *Provider) ListVoices(context.Context) ([]tts.Voice, error) {
	if p.Err != nil {
		return nil, p.Err
	}
	return []tts.Voice{{ID: "mock", Name: "Mock", Language: "en"}}, nil
}

// Texts returns every synthesised text so far, in order.
func (p *Provider) Texts() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.texts...)
}

var _ tts.Sink = (*Sink)(nil)

// Sink is a mock tts.Sink recording played audio.
type Sink struct {
	mu     sync.Mutex
	played []tts.Audio
}

// Play records the audio and returns immediately.
func (s *Sink) Play(ctx context.Context, audio tts.Audio) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	s.played = append(s.played, audio)
	s.mu.Unlock()
	return nil
}

// Played returns every audio played so far, in order.
func (s *Sink) Played() []tts.Audio {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]tts.Audio(nil), s.played...)
}
