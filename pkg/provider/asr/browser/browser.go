// Package browser provides the fallback ASR provider backed by the browser's
// own speech recognition, reached over a WebSocket bridge.
//
// Recognition runs client-side: the page captures the microphone, feeds the
// Web Speech API, and pushes transcript events over the socket as JSON. The
// bridge therefore never receives audio — SendAudio reports ErrNotSupported
// and the session coordinator knows to skip audio routing for this engine.
//
// The Bridge is an http.Handler; mount it wherever the UI is served:
//
//	b := browser.NewBridge()
//	mux.Handle("/asr/bridge", b)
//	handle, err := b.StartStream(ctx, cfg)
package browser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/voicemate/voicemate/pkg/provider/asr"
)

var _ asr.Provider = (*Bridge)(nil)
var _ http.Handler = (*Bridge)(nil)

// event is the wire format the page sends for each recognition result. A
// non-empty Error carries the Web Speech API error code ("not-allowed",
// "audio-capture") and ends the active session.
type event struct {
	Text       string  `json:"text"`
	Final      bool    `json:"final"`
	Confidence float64 `json:"confidence,omitempty"`
	Error      string  `json:"error,omitempty"`
}

// control is the wire format the bridge sends to the page: session start and
// stop, and phrase hints for engines that accept them.
type control struct {
	Action   string   `json:"action"` // "start", "stop", "keywords"
	Language string   `json:"language,omitempty"`
	Keywords []string `json:"keywords,omitempty"`
}

// Option is a functional option for configuring a Bridge.
type Option func(*Bridge)

// WithLogger sets the logger. Default: [slog.Default].
func WithLogger(log *slog.Logger) Option {
	return func(b *Bridge) { b.log = log }
}

// WithOriginPatterns sets the allowed WebSocket origins. Default allows only
// same-origin connections.
func WithOriginPatterns(patterns ...string) Option {
	return func(b *Bridge) { b.origins = patterns }
}

// Bridge accepts one WebSocket connection from the UI page and exposes it as
// an asr.Provider. At most one recognition session is active at a time; a
// second StartStream fails until the first handle is closed.
type Bridge struct {
	log     *slog.Logger
	origins []string

	mu      sync.Mutex
	conn    *websocket.Conn
	connCtx context.Context
	active  *bridgeSession
}

// NewBridge returns a Bridge with no page connected yet.
func NewBridge(opts ...Option) *Bridge {
	b := &Bridge{log: slog.Default()}
	for _, o := range opts {
		o(b)
	}
	return b
}

// ServeHTTP upgrades the request to a WebSocket and pumps recognition events
// into the active session until the page disconnects. A new connection
// replaces a previous one.
func (b *Bridge) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: b.origins,
	})
	if err != nil {
		b.log.Warn("browser bridge accept failed", "error", err)
		return
	}

	ctx := r.Context()
	b.mu.Lock()
	if b.conn != nil {
		b.conn.Close(websocket.StatusPolicyViolation, "replaced by new connection")
	}
	b.conn = conn
	b.connCtx = ctx
	b.mu.Unlock()

	b.log.Info("browser bridge connected", "remote", r.RemoteAddr)
	defer func() {
		b.mu.Lock()
		if b.conn == conn {
			b.conn = nil
			b.connCtx = nil
		}
		b.mu.Unlock()
		conn.Close(websocket.StatusNormalClosure, "")
		b.log.Info("browser bridge disconnected", "remote", r.RemoteAddr)
	}()

	for {
		var ev event
		if err := wsjson.Read(ctx, conn, &ev); err != nil {
			if websocket.CloseStatus(err) == websocket.StatusNormalClosure ||
				errors.Is(err, context.Canceled) {
				return
			}
			b.log.Warn("browser bridge read failed", "error", err)
			return
		}
		b.dispatch(ev)
	}
}

// dispatch forwards one recognition event to the active session, dropping it
// when no session is open or its buffers are full. The send happens under
// b.mu so it cannot race a concurrent Close of the session's channels.
func (b *Bridge) dispatch(ev event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	s := b.active
	if s == nil {
		return
	}

	if ev.Error != "" {
		err := recognitionError(ev.Error)
		b.log.Warn("browser recognition failed", "code", ev.Error, "error", err)
		b.detachLocked(s, err, false)
		return
	}

	t := asr.Transcript{
		Text:       ev.Text,
		IsFinal:    ev.Final,
		Confidence: ev.Confidence,
	}
	if ev.Final {
		select {
		case s.finals <- t:
		default:
		}
		return
	}
	select {
	case s.partials <- t:
	default:
	}
}

// StartStream opens a recognition session over the connected page. It fails
// when no page is connected or another session is already active.
func (b *Bridge) StartStream(ctx context.Context, cfg asr.StreamConfig) (asr.SessionHandle, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("browser: context already cancelled: %w", err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.conn == nil {
		return nil, errors.New("browser: no page connected to the bridge")
	}
	if b.active != nil {
		return nil, errors.New("browser: a recognition session is already active")
	}

	msg := control{Action: "start", Language: cfg.Language}
	for _, k := range cfg.Keywords {
		msg.Keywords = append(msg.Keywords, k.Keyword)
	}
	if err := b.writeControlLocked(msg); err != nil {
		return nil, fmt.Errorf("browser: start recognition: %w", err)
	}

	s := &bridgeSession{
		bridge:   b,
		partials: make(chan asr.Transcript, 64),
		finals:   make(chan asr.Transcript, 64),
	}
	b.active = s
	return s, nil
}

// writeControlLocked sends a control message to the page. Callers hold b.mu.
func (b *Bridge) writeControlLocked(msg control) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal control: %w", err)
	}
	ctx, cancel := context.WithTimeout(b.connCtx, 5*time.Second)
	defer cancel()
	return b.conn.Write(ctx, websocket.MessageText, data)
}

// recognitionError maps a Web Speech API error code to a session error.
func recognitionError(code string) error {
	switch code {
	case "not-allowed", "service-not-allowed", "permission-denied":
		return fmt.Errorf("browser: recognition error %q: %w", code, asr.ErrPermissionDenied)
	}
	return fmt.Errorf("browser: recognition error %q", code)
}

// detachLocked ends a session exactly once: it records the terminal error,
// frees the active slot, and closes the transcript channels. Closing under
// b.mu keeps dispatch from sending on a closed channel. When sendStop is set
// and the page is still connected, it is told to stop recognizing. Callers
// hold b.mu.
func (b *Bridge) detachLocked(s *bridgeSession, err error, sendStop bool) {
	if s.detached {
		return
	}
	s.detached = true
	s.err = err
	if b.active == s {
		b.active = nil
		if sendStop && b.conn != nil {
			if werr := b.writeControlLocked(control{Action: "stop"}); werr != nil {
				b.log.Warn("browser bridge stop failed", "error", werr)
			}
		}
	}
	close(s.partials)
	close(s.finals)
}

var _ asr.SessionHandle = (*bridgeSession)(nil)

type bridgeSession struct {
	bridge   *Bridge
	partials chan asr.Transcript
	finals   chan asr.Transcript

	// detached and err are guarded by bridge.mu.
	detached bool
	err      error
}

// SendAudio always fails: recognition runs in the browser, which captures
// the microphone itself.
func (s *bridgeSession) SendAudio(_ []byte) error {
	return fmt.Errorf("browser: audio input: %w", asr.ErrNotSupported)
}

func (s *bridgeSession) Partials() <-chan asr.Transcript { return s.partials }

func (s *bridgeSession) Finals() <-chan asr.Transcript { return s.finals }

// SetKeywords pushes a fresh phrase-hint list to the page.
func (s *bridgeSession) SetKeywords(keywords []asr.KeywordBoost) error {
	s.bridge.mu.Lock()
	defer s.bridge.mu.Unlock()
	if s.bridge.conn == nil {
		return errors.New("browser: no page connected to the bridge")
	}
	msg := control{Action: "keywords"}
	for _, k := range keywords {
		msg.Keywords = append(msg.Keywords, k.Keyword)
	}
	return s.bridge.writeControlLocked(msg)
}

// Err returns the error that ended the session, or nil. A microphone
// permission failure reported by the page wraps asr.ErrPermissionDenied.
func (s *bridgeSession) Err() error {
	s.bridge.mu.Lock()
	defer s.bridge.mu.Unlock()
	return s.err
}

// Close stops recognition on the page and closes both transcript channels.
// Safe to call more than once, and after the page has already ended the
// session.
func (s *bridgeSession) Close() error {
	s.bridge.mu.Lock()
	defer s.bridge.mu.Unlock()
	s.bridge.detachLocked(s, nil, true)
	return nil
}
