// Package tts defines the Provider interface for speech-synthesis backends
// and the Speaker abstraction the session coordinator drives.
//
// A Provider turns one utterance of text into PCM audio. A Speaker goes one
// step further and plays it, returning only when playback has finished —
// that blocking contract is what lets the coordinator keep the microphone
// muted for exactly the duration of the announcement.
//
// Implementations must be safe for concurrent use.
package tts

import "context"

// Voice identifies a synthesis voice profile.
type Voice struct {
	// ID is the provider-specific voice identifier.
	ID string

	// Name is the human-readable voice name.
	Name string

	// Language is the BCP-47 language tag of the voice.
	Language string
}

// Audio is one synthesised utterance of raw PCM.
type Audio struct {
	// PCM is 16-bit signed little-endian audio.
	PCM []byte

	// SampleRate is the sample rate in Hz.
	SampleRate int

	// Channels is the channel count. 1 = mono.
	Channels int
}

// Duration returns the playback length of the audio in seconds.
func (a Audio) Duration() float64 {
	bytesPerSecond := a.SampleRate * a.Channels * 2
	if bytesPerSecond <= 0 {
		return 0
	}
	return float64(len(a.PCM)) / float64(bytesPerSecond)
}

// Provider is the abstraction over any synthesis backend.
type Provider interface {
	// Synthesize renders one utterance. A zero Voice uses the provider's
	// default voice.
	Synthesize(ctx context.Context, text string, voice Voice) (Audio, error)

	// ListVoices returns the provider's current voice catalogue.
	ListVoices(ctx context.Context) ([]Voice, error)
}

// Sink plays synthesised audio on an output device, returning when playback
// has completed or ctx is cancelled.
type Sink interface {
	Play(ctx context.Context, audio Audio) error
}

// Speaker speaks one utterance and returns when playback has finished. The
// session coordinator holds the microphone muted for the whole call.
type Speaker interface {
	Speak(ctx context.Context, text string) error
}

var _ Speaker = (*Player)(nil)

// Player implements Speaker by synthesising through a Provider and playing
// through a Sink.
type Player struct {
	provider Provider
	sink     Sink
	voice    Voice
}

// PlayerOption is a functional option for configuring a Player.
type PlayerOption func(*Player)

// WithVoice sets the voice every utterance is rendered with.
func WithVoice(v Voice) PlayerOption {
	return func(p *Player) { p.voice = v }
}

// NewPlayer returns a Player speaking through the given provider and sink.
func NewPlayer(provider Provider, sink Sink, opts ...PlayerOption) *Player {
	p := &Player{provider: provider, sink: sink}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Speak synthesises text and blocks until the sink finished playing it.
func (p *Player) Speak(ctx context.Context, text string) error {
	audio, err := p.provider.Synthesize(ctx, text, p.voice)
	if err != nil {
		return err
	}
	return p.sink.Play(ctx, audio)
}
