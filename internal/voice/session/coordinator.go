// Package session implements the voice session coordinator: the single owner
// of the shared microphone/recognition session.
//
// The coordinator arbitrates exclusive access across screens ("lanes"),
// keeps the capture session hot across screen transitions, and mutes instead
// of stopping during speech playback — restarting on-device capture after
// every announcement has material latency, muting only gates whether
// transcripts are forwarded.
//
// All operations serialize on one mutex, so state transitions form a single
// ordered stream per coordinator. Explicit Stop is the only operation that
// tears capture down.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/voicemate/voicemate/internal/observe"
	"github.com/voicemate/voicemate/pkg/provider/asr"
	"github.com/voicemate/voicemate/pkg/provider/tts"
)

// minTranscriptChars is the minimum transcript length to process; shorter
// transcripts are capture noise and are dropped silently.
const minTranscriptChars = 2

// ErrStopping is returned by Start while a teardown is in flight.
var ErrStopping = errors.New("session: stop in progress")

// Transcript is one recognized utterance delivered to the owning screen.
type Transcript struct {
	// Text is the raw transcript, before normalization.
	Text string

	// Confidence is the engine's confidence, when reported.
	Confidence float64

	// Lane is the lane that owned the session when the utterance arrived.
	Lane string
}

// Option is a functional option for configuring a [Coordinator].
type Option func(*Coordinator)

// WithFallback sets the fallback recognition provider, tried exactly once
// per coordinator when the primary engine fails to start.
func WithFallback(p asr.Provider) Option {
	return func(c *Coordinator) { c.fallback = p }
}

// WithStreamConfig sets the recognition stream configuration.
func WithStreamConfig(cfg asr.StreamConfig) Option {
	return func(c *Coordinator) { c.streamCfg = cfg }
}

// WithLogger sets the logger. Default: [slog.Default].
func WithLogger(log *slog.Logger) Option {
	return func(c *Coordinator) { c.log = log }
}

// WithMetrics sets the metrics instance. Default: [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(c *Coordinator) { c.metrics = m }
}

// Coordinator owns the recognition session. All exported methods are safe
// for concurrent use.
type Coordinator struct {
	provider  asr.Provider
	fallback  asr.Provider
	speaker   tts.Speaker
	streamCfg asr.StreamConfig
	log       *slog.Logger
	metrics   *observe.Metrics

	// speakMu serializes spoken utterances so two playback requests never
	// overlap on the output device.
	speakMu sync.Mutex

	mu           sync.Mutex
	state        State
	failErr      error
	lane         *lane
	handle       asr.SessionHandle
	engine       string
	usedFallback bool
	settle       chan struct{} // closed when an in-flight Start resolves
	pumpCancel   context.CancelFunc

	transcripts chan Transcript
	partials    chan Transcript
}

// New returns an Idle coordinator capturing through primary and speaking
// through speaker.
func New(primary asr.Provider, speaker tts.Speaker, opts ...Option) *Coordinator {
	c := &Coordinator{
		provider: primary,
		speaker:  speaker,
		streamCfg: asr.StreamConfig{
			SampleRate: 16000,
			Channels:   1,
		},
		log:         slog.Default(),
		transcripts: make(chan Transcript, 16),
		partials:    make(chan Transcript, 16),
	}
	for _, o := range opts {
		o(c)
	}
	if c.metrics == nil {
		c.metrics = observe.DefaultMetrics()
	}
	return c
}

// State returns the current session state.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// FailReason returns the error behind a Failed state, or nil.
func (c *Coordinator) FailReason() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.failErr
}

// Lane returns the id of the owning lane, or "" when none is registered.
func (c *Coordinator) Lane() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.lane == nil {
		return ""
	}
	return c.lane.id
}

// Transcripts returns the channel of recognized utterances. Only finals of
// at least two characters arrive here, and only while Listening.
func (c *Coordinator) Transcripts() <-chan Transcript { return c.transcripts }

// Partials returns the channel of interim transcripts for UI feedback.
func (c *Coordinator) Partials() <-chan Transcript { return c.partials }

// RegisterLane makes the given screen context the session owner. It never
// starts or stops capture. Registering over a protected lane fails with
// [ErrLaneProtected] unless the registration is a takeover; re-registering
// the same lane id always succeeds and refreshes its options.
func (c *Coordinator) RegisterLane(id string, opts ...LaneOption) (*LaneHandle, error) {
	var o laneOptions
	for _, opt := range opts {
		opt(&o)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.lane != nil && c.lane.protected && c.lane.id != id && !o.takeover {
		return nil, fmt.Errorf("%w: lane %q holds the session", ErrLaneProtected, c.lane.id)
	}

	prev := ""
	if c.lane != nil {
		prev = c.lane.id
	}
	c.lane = &lane{id: id, protected: o.protected}
	c.log.Info("lane registered",
		"lane", id, "protected", o.protected, "takeover", o.takeover, "replaced", prev)

	return &LaneHandle{c: c, id: id}, nil
}

// ClearProtectedLane removes protection from the current lane so a
// subsequent RegisterLane from another screen is not treated as a hostile
// takeover. The capture session is untouched.
func (c *Coordinator) ClearProtectedLane() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.lane != nil && c.lane.protected {
		c.lane.protected = false
		c.log.Debug("lane protection cleared", "lane", c.lane.id)
	}
}

// Start brings the session to Listening. It is idempotent: a no-op when
// already Listening or Muted, and a caller racing an in-flight Start waits
// for that attempt to settle instead of issuing a second one.
//
// On engine failure the fallback provider is tried exactly once per
// coordinator; if that also fails the state is Failed and the error is
// returned.
func (c *Coordinator) Start(ctx context.Context) error {
	c.mu.Lock()
	switch c.state {
	case Listening, Muted:
		c.mu.Unlock()
		return nil
	case Stopping:
		c.mu.Unlock()
		return ErrStopping
	case Starting:
		settle := c.settle
		c.mu.Unlock()
		select {
		case <-settle:
		case <-ctx.Done():
			return ctx.Err()
		}
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.state.active() {
			return nil
		}
		return c.failErr
	}

	// Idle or Failed: this caller performs the start.
	c.setStateLocked(Starting)
	c.failErr = nil
	c.settle = make(chan struct{})
	settle := c.settle

	tryFallback := false
	if c.fallback != nil && !c.usedFallback {
		tryFallback = true
	}
	c.mu.Unlock()

	began := time.Now()
	handle, engine, err := c.open(ctx, tryFallback)

	c.mu.Lock()
	defer func() {
		close(settle)
		c.mu.Unlock()
	}()

	if err != nil {
		c.failErr = err
		c.setStateLocked(Failed)
		return err
	}

	c.handle = handle
	c.engine = engine
	c.setStateLocked(Listening)
	c.metrics.RecordSessionStart(ctx, engine, time.Since(began))
	c.metrics.ActiveSessions.Add(ctx, 1)

	pumpCtx, cancel := context.WithCancel(context.Background())
	c.pumpCancel = cancel
	go c.pump(pumpCtx, handle)

	c.log.Info("session listening", "engine", engine)
	return nil
}

// open starts a recognition stream on the primary engine, falling back once
// when permitted. Called without the lock held.
func (c *Coordinator) open(ctx context.Context, tryFallback bool) (asr.SessionHandle, string, error) {
	handle, err := c.provider.StartStream(ctx, c.streamCfg)
	if err == nil {
		return handle, "primary", nil
	}

	c.log.Error("primary recognition engine failed to start", "error", err)
	c.metrics.RecordEngineError(ctx, "primary", "start")

	if !tryFallback {
		return nil, "", fmt.Errorf("session: start recognition: %w", err)
	}

	c.mu.Lock()
	c.usedFallback = true
	c.mu.Unlock()

	c.log.Warn("falling back to secondary recognition engine")
	fbHandle, fbErr := c.fallback.StartStream(ctx, c.streamCfg)
	if fbErr != nil {
		c.metrics.RecordEngineError(ctx, "fallback", "start")
		return nil, "", fmt.Errorf("session: start recognition: primary: %w; fallback: %w", err, fbErr)
	}
	return fbHandle, "fallback", nil
}

// Stop tears the capture session down: Stopping → Idle. Only called on
// explicit game end or app backgrounding, never implicitly between turns.
// Stopping an Idle coordinator is a no-op.
func (c *Coordinator) Stop(ctx context.Context) error {
	c.mu.Lock()

	// A racing Start settles first so we never close a half-open handle.
	for c.state == Starting {
		settle := c.settle
		c.mu.Unlock()
		select {
		case <-settle:
		case <-ctx.Done():
			return ctx.Err()
		}
		c.mu.Lock()
	}

	switch c.state {
	case Idle:
		c.mu.Unlock()
		return nil
	case Failed:
		c.failErr = nil
		c.setStateLocked(Idle)
		c.mu.Unlock()
		return nil
	}

	c.setStateLocked(Stopping)
	handle := c.handle
	cancel := c.pumpCancel
	wasActive := handle != nil
	c.handle = nil
	c.pumpCancel = nil
	c.engine = ""
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	var closeErr error
	if handle != nil {
		closeErr = handle.Close()
	}

	c.mu.Lock()
	c.setStateLocked(Idle)
	c.mu.Unlock()

	if wasActive {
		c.metrics.ActiveSessions.Add(ctx, -1)
	}
	if closeErr != nil {
		return fmt.Errorf("session: close recognition stream: %w", closeErr)
	}
	c.log.Info("session stopped")
	return nil
}

// MuteForPlayback speaks the utterance and suppresses transcript delivery
// for exactly that long. The capture session stays hot — only forwarding is
// gated — and delivery resumes automatically once playback completes.
// Utterances are serialized; concurrent callers queue.
func (c *Coordinator) MuteForPlayback(ctx context.Context, utterance string) error {
	c.speakMu.Lock()
	defer c.speakMu.Unlock()

	c.mu.Lock()
	wasListening := c.state == Listening
	if wasListening {
		c.setStateLocked(Muted)
	}
	c.mu.Unlock()

	muteBegan := time.Now()
	speakErr := c.speaker.Speak(ctx, utterance)
	c.metrics.RecordSpeak(ctx, time.Since(muteBegan))

	if wasListening {
		c.mu.Lock()
		// A concurrent Stop may have moved the state on; only un-mute an
		// intact mute.
		if c.state == Muted {
			c.setStateLocked(Listening)
		}
		c.mu.Unlock()
		c.metrics.RecordMute(ctx, time.Since(muteBegan))
	}

	if speakErr != nil {
		c.metrics.RecordEngineError(ctx, "tts", "speak")
		return fmt.Errorf("session: speak: %w", speakErr)
	}
	return nil
}

// pump forwards the handle's transcripts to the coordinator's channels,
// applying the noise floor and the mute gate. It exits when the handle's
// streams close or the session is torn down.
func (c *Coordinator) pump(ctx context.Context, handle asr.SessionHandle) {
	finals := handle.Finals()
	partials := handle.Partials()

	for {
		select {
		case <-ctx.Done():
			return

		case t, ok := <-partials:
			if !ok {
				partials = nil
				continue
			}
			c.forward(ctx, t, c.partials)

		case t, ok := <-finals:
			if !ok {
				// The engine ended the stream on its own; a deliberate Stop
				// cancels ctx before closing the handle.
				c.streamEnded(handle)
				return
			}
			c.forward(ctx, t, c.transcripts)
		}
	}
}

// forward applies the delivery gates to one transcript and sends it.
func (c *Coordinator) forward(ctx context.Context, t asr.Transcript, out chan Transcript) {
	text := strings.TrimSpace(t.Text)
	if len(text) < minTranscriptChars {
		if t.IsFinal {
			c.metrics.RecordTranscript(ctx, "dropped_short")
		}
		return
	}

	c.mu.Lock()
	state := c.state
	laneID := ""
	if c.lane != nil {
		laneID = c.lane.id
	}
	c.mu.Unlock()

	if state != Listening {
		if t.IsFinal {
			c.metrics.RecordTranscript(ctx, "dropped_muted")
			c.log.Debug("transcript suppressed", "state", state.String(), "len", len(text))
		}
		return
	}

	select {
	case out <- Transcript{Text: text, Confidence: t.Confidence, Lane: laneID}:
		if t.IsFinal {
			c.metrics.RecordTranscript(ctx, "delivered")
		}
	case <-ctx.Done():
	}
}

// streamEnded marks the session Failed after an unexpected engine stream
// closure, carrying the engine's terminal error (a denied microphone
// permission, for one) into FailReason for the UI layer.
func (c *Coordinator) streamEnded(handle asr.SessionHandle) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.handle != handle || !c.state.active() {
		return
	}
	c.handle = nil
	c.pumpCancel = nil
	if err := handle.Err(); err != nil {
		c.failErr = fmt.Errorf("session: recognition stream failed: %w", err)
	} else {
		c.failErr = errors.New("session: recognition stream ended unexpectedly")
	}
	c.setStateLocked(Failed)
	c.log.Error("recognition stream ended", "engine", c.engine, "error", c.failErr)
	c.metrics.ActiveSessions.Add(context.Background(), -1)
}

// setStateLocked transitions the state and records the transition. Callers
// hold c.mu.
func (c *Coordinator) setStateLocked(to State) {
	from := c.state
	if from == to {
		return
	}
	c.state = to
	c.metrics.RecordStateTransition(context.Background(), from.String(), to.String())
	c.log.Debug("session state", "from", from.String(), "to", to.String())
}
