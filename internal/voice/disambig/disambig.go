// Package disambig owns the lifecycle of an outstanding move disambiguation:
// the window between the resolver reporting an ambiguous candidate set and
// the speaker either narrowing it down or letting it expire.
//
// The controller is a two-state machine (idle, pending). It hands the
// resolver a read-only snapshot of the pending set and guarantees that a
// late timeout can never clear a newer pending set.
package disambig

import (
	"log/slog"
	"sync"
	"time"

	"github.com/voicemate/voicemate/internal/voice/resolve"
)

// DefaultTimeout is how long a pending disambiguation stays open before it
// expires and the original utterance is discarded.
const DefaultTimeout = 10 * time.Second

// Option is a functional option for configuring a [Controller].
type Option func(*Controller)

// WithTimeout overrides [DefaultTimeout].
func WithTimeout(d time.Duration) Option {
	return func(c *Controller) { c.timeout = d }
}

// WithLogger sets the logger. Default: [slog.Default].
func WithLogger(log *slog.Logger) Option {
	return func(c *Controller) { c.log = log }
}

// WithOnExpire registers a callback invoked when a pending disambiguation
// times out. The callback runs on the timer goroutine, after the pending set
// has already been cleared; screens use it to announce the expiry.
func WithOnExpire(fn func(resolve.Pending)) Option {
	return func(c *Controller) { c.onExpire = fn }
}

// Controller tracks at most one pending disambiguation.
// All methods are safe for concurrent use.
type Controller struct {
	timeout  time.Duration
	log      *slog.Logger
	onExpire func(resolve.Pending)

	mu      sync.Mutex
	pending *resolve.Pending
	timer   *time.Timer
	gen     uint64 // incremented on every Begin/clear; stale timers check it
}

// New returns an idle Controller.
func New(opts ...Option) *Controller {
	c := &Controller{
		timeout: DefaultTimeout,
		log:     slog.Default(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Begin opens a disambiguation window for the given ambiguous outcome,
// replacing any previous one. The prior window's timer is stopped; its
// expiry callback will not fire.
func (c *Controller) Begin(out resolve.Outcome) {
	if out.Kind != resolve.Ambiguous {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	c.stopTimerLocked()
	c.gen++
	gen := c.gen
	c.pending = &resolve.Pending{
		Candidates: out.Candidates,
		Piece:      out.Piece,
		Square:     out.Square,
	}
	c.timer = time.AfterFunc(c.timeout, func() { c.expire(gen) })

	c.log.Debug("disambiguation opened",
		"candidates", out.Candidates,
		"piece", out.Piece.String(),
		"square", string(out.Square),
		"timeout", c.timeout)
}

// Pending returns a copy of the outstanding candidate set, or nil when the
// controller is idle. The copy is safe to pass to the resolver.
func (c *Controller) Pending() *resolve.Pending {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pending == nil {
		return nil
	}
	p := *c.pending
	return &p
}

// Clear closes the window, if one is open. Called when the speaker resolved
// the ambiguity or issued an unrelated command that supersedes it.
func (c *Controller) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pending == nil {
		return
	}
	c.stopTimerLocked()
	c.gen++
	c.pending = nil
	c.log.Debug("disambiguation cleared")
}

// expire is the timer callback. The generation check makes a late firing
// against a newer window a no-op.
func (c *Controller) expire(gen uint64) {
	c.mu.Lock()
	if c.gen != gen || c.pending == nil {
		c.mu.Unlock()
		return
	}
	p := *c.pending
	c.pending = nil
	c.timer = nil
	c.gen++
	c.mu.Unlock()

	c.log.Info("disambiguation expired", "candidates", p.Candidates)
	if c.onExpire != nil {
		c.onExpire(p)
	}
}

func (c *Controller) stopTimerLocked() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}
