// Package asr defines the Provider interface for speech-recognition backends.
//
// An ASR provider wraps a recognition engine (the on-device whisper.cpp
// bindings, or the browser's Web Speech API reached over a WebSocket bridge)
// and exposes a uniform streaming interface. The central abstraction is
// SessionHandle: once opened, a session accepts raw PCM audio frames and
// emits two streams of Transcript values — low-latency partials for UI
// feedback and authoritative finals for the resolver.
//
// Implementations must be safe for concurrent use.
package asr

import (
	"context"
	"errors"
	"time"
)

// ErrNotSupported is returned by optional operations an engine cannot
// perform, such as keyword boosting on whisper.cpp.
var ErrNotSupported = errors.New("asr: operation not supported by this engine")

// ErrPermissionDenied reports that the user or platform denied microphone
// access. Sessions ending with this error are surfaced to the UI layer and
// never restarted automatically.
var ErrPermissionDenied = errors.New("asr: microphone permission denied")

// Transcript is a recognition result. Both partial (interim) and final
// transcripts use this type.
type Transcript struct {
	// Text is the recognized speech content.
	Text string

	// IsFinal indicates whether this is a final (authoritative) or partial
	// (interim) transcript. Only finals reach the resolver.
	IsFinal bool

	// Confidence is the engine's overall confidence (0.0–1.0). Zero when the
	// engine does not report confidence.
	Confidence float64

	// Timestamp marks when the utterance started, relative to session start.
	Timestamp time.Duration

	// Duration is the length of the utterance.
	Duration time.Duration
}

// KeywordBoost is a vocabulary hint that raises recognition probability for
// a domain word (piece names, "castle", "resign").
type KeywordBoost struct {
	// Keyword is the text to boost.
	Keyword string

	// Boost is the intensity on the engine's own scale.
	Boost float64
}

// StreamConfig describes the audio format and recognition hints for a new
// session.
type StreamConfig struct {
	// SampleRate is the audio sample rate in Hz. 16000 is what whisper.cpp
	// expects; the browser bridge resamples on the client side.
	SampleRate int

	// Channels is the number of audio channels. 1 = mono. Implementations
	// may downmix multi-channel input internally.
	Channels int

	// Language is the BCP-47 language tag ("en", "de"). Empty lets the
	// engine auto-detect, if supported.
	Language string

	// Keywords is the chess vocabulary boost list. Engines without keyword
	// support ignore it.
	Keywords []KeywordBoost
}

// SessionHandle is an open recognition session. It is an interface so tests
// can substitute mocks for a live engine.
//
// Callers must call Close when the session is no longer needed; failing to
// do so leaks the engine's goroutines. All methods are safe for concurrent
// use.
type SessionHandle interface {
	// SendAudio delivers a chunk of raw 16-bit little-endian signed PCM
	// audio for recognition. The chunk must match the StreamConfig format.
	// Calling SendAudio after Close returns an error.
	SendAudio(chunk []byte) error

	// Partials returns a read-only channel of interim transcripts, suitable
	// for a listening indicator but never for the resolver. Closed when the
	// session ends.
	Partials() <-chan Transcript

	// Finals returns a read-only channel of authoritative transcripts.
	// These are the values handed to the resolver. Closed when the session
	// ends.
	Finals() <-chan Transcript

	// SetKeywords replaces the active keyword boost list without restarting
	// the session. Engines without keyword support return ErrNotSupported.
	SetKeywords(keywords []KeywordBoost) error

	// Err returns the terminal error that ended the session, or nil while
	// the session is open or after a deliberate Close. It is meaningful once
	// Partials and Finals are closed; a permission failure is reported as an
	// error wrapping ErrPermissionDenied.
	Err() error

	// Close terminates the session, flushes pending audio, and releases all
	// resources. After Close returns, Partials and Finals are closed.
	// Calling Close more than once is safe and returns nil.
	Close() error
}

// Provider is the abstraction over any recognition engine. Multiple sessions
// may be open simultaneously, though the session coordinator normally holds
// exactly one.
type Provider interface {
	// StartStream opens a new streaming recognition session. The returned
	// SessionHandle accepts audio immediately. The caller owns the handle
	// and must call Close when done.
	StartStream(ctx context.Context, cfg StreamConfig) (SessionHandle, error)
}
