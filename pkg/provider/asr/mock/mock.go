// Package mock provides an in-memory asr.Provider for tests.
package mock

import (
	"context"
	"errors"
	"sync"

	"github.com/voicemate/voicemate/pkg/provider/asr"
)

var _ asr.Provider = (*Provider)(nil)

// Provider is a scriptable asr.Provider. Tests push transcripts into open
// sessions and inspect the audio the code under test sent.
type Provider struct {
	// StartErr, when set, is returned by StartStream.
	StartErr error

	mu       sync.Mutex
	sessions []*Session
}

// New returns an empty mock provider.
func New() *Provider {
	return &Provider{}
}

// StartStream opens a new mock session, unless StartErr is set.
func (p *Provider) StartStream(ctx context.Context, cfg asr.StreamConfig) (asr.SessionHandle, error) {
	if p.StartErr != nil {
		return nil, p.StartErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s := &Session{
		Config:   cfg,
		partials: make(chan asr.Transcript, 16),
		finals:   make(chan asr.Transcript, 16),
	}
	p.mu.Lock()
	p.sessions = append(p.sessions, s)
	p.mu.Unlock()
	return s, nil
}

// Sessions returns every session opened so far, in order.
func (p *Provider) Sessions() []*Session {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*Session(nil), p.sessions...)
}

// LastSession returns the most recently opened session, or nil.
func (p *Provider) LastSession() *Session {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.sessions) == 0 {
		return nil
	}
	return p.sessions[len(p.sessions)-1]
}

var _ asr.SessionHandle = (*Session)(nil)

// Session is a mock asr.SessionHandle.
type Session struct {
	// Config is the StreamConfig the session was opened with.
	Config asr.StreamConfig

	mu       sync.Mutex
	audio    [][]byte
	keywords []asr.KeywordBoost
	closed   bool
	err      error

	partials chan asr.Transcript
	finals   chan asr.Transcript
}

// SendAudio records the chunk.
func (s *Session) SendAudio(chunk []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errors.New("mock: session is closed")
	}
	c := append([]byte(nil), chunk...)
	s.audio = append(s.audio, c)
	return nil
}

func (s *Session) Partials() <-chan asr.Transcript { return s.partials }

func (s *Session) Finals() <-chan asr.Transcript { return s.finals }

// SetKeywords records the boost list.
func (s *Session) SetKeywords(keywords []asr.KeywordBoost) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errors.New("mock: session is closed")
	}
	s.keywords = append([]asr.KeywordBoost(nil), keywords...)
	return nil
}

// Close closes both transcript channels. Safe to call more than once.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	close(s.partials)
	close(s.finals)
	return nil
}

// Fail ends the session with err, closing both transcript channels. A no-op
// when the session is already closed.
func (s *Session) Fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.err = err
	close(s.partials)
	close(s.finals)
}

// Err returns the error set by Fail, or nil.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// EmitFinal pushes a final transcript to the session's consumers.
func (s *Session) EmitFinal(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.finals <- asr.Transcript{Text: text, IsFinal: true, Confidence: 1}
}

// EmitPartial pushes a partial transcript to the session's consumers.
func (s *Session) EmitPartial(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.partials <- asr.Transcript{Text: text}
}

// Audio returns the chunks sent so far.
func (s *Session) Audio() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([][]byte(nil), s.audio...)
}

// Keywords returns the last boost list set on the session.
func (s *Session) Keywords() []asr.KeywordBoost {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]asr.KeywordBoost(nil), s.keywords...)
}

// Closed reports whether Close has been called.
func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
