// Package screens contains the screen adapters that sit between the voice
// session coordinator and the embedding application: the live game, the
// post-game board reconstruction, and the training drills.
//
// Each screen owns a lane id, a resolver carrying its extra command set, and
// a disambiguation window. Screens are thin: they feed final transcripts
// through the normalizer and resolver, apply resolved moves to the
// application's game surface, and speak answers back through the
// coordinator's mute-for-playback gate. Everything stateful about the
// microphone lives in the coordinator; everything stateful about the game
// lives behind [Surface].
package screens

import (
	"context"
	"log/slog"
	"sync"

	"github.com/voicemate/voicemate/internal/assist"
	"github.com/voicemate/voicemate/internal/history"
	"github.com/voicemate/voicemate/internal/observe"
	"github.com/voicemate/voicemate/internal/voice/disambig"
	"github.com/voicemate/voicemate/internal/voice/normalize"
	"github.com/voicemate/voicemate/internal/voice/resolve"
	"github.com/voicemate/voicemate/internal/voice/session"
	"github.com/voicemate/voicemate/pkg/chess"
)

// Lane ids. Training lanes are derived per drill mode.
const (
	LaneGame           = "game"
	LaneReconstruction = "reconstruction"
	laneTrainingPrefix = "training-"
)

// Announcer speaks an utterance while transcript delivery is suppressed,
// returning when playback completes. *session.Coordinator satisfies it.
type Announcer interface {
	MuteForPlayback(ctx context.Context, utterance string) error
}

// Surface is the embedding application's game state backing a screen: the
// read-only position plus move application. Apply returns an error when the
// rules engine rejects the move.
type Surface interface {
	chess.Position
	Apply(san string) error
}

// ClockSource is an optional Surface extension answering clock queries.
type ClockSource interface {
	// ClockRemaining describes the side-to-move's remaining time, already
	// phrased for speech ("four minutes twenty seconds").
	ClockRemaining() string
}

// MoveLog is an optional Surface extension answering last-move queries.
type MoveLog interface {
	// LastMove returns the most recent move in SAN, or "" at game start.
	LastMove() string
}

// Evaluator is an optional Surface extension answering evaluation queries.
type Evaluator interface {
	// Evaluation describes the engine's assessment, phrased for speech.
	Evaluation() string
}

// Handler is the per-screen surface the app's transcript loop dispatches to.
type Handler interface {
	// Lane returns the screen's lane id.
	Lane() string

	// HandleTranscript processes one final transcript delivered while this
	// screen owned the session.
	HandleTranscript(ctx context.Context, t session.Transcript)

	// Close tears the screen down: the pending disambiguation is cancelled.
	// The capture session is untouched.
	Close()
}

// Option is a functional option shared by all screen constructors.
type Option func(*pipeline)

// WithLogger sets the logger. Default: [slog.Default].
func WithLogger(log *slog.Logger) Option {
	return func(p *pipeline) { p.log = log }
}

// WithMetrics sets the metrics instance. Default: [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(p *pipeline) { p.metrics = m }
}

// WithHistory enables the utterance audit log.
func WithHistory(store history.Store) Option {
	return func(p *pipeline) { p.store = store }
}

// WithAssist enables the LLM pass for utterances the resolver cannot match.
func WithAssist(c *assist.Corrector) Option {
	return func(p *pipeline) { p.helper = c }
}

// WithSessionID tags history entries with the given session id.
// Default: "default".
func WithSessionID(id string) Option {
	return func(p *pipeline) { p.session = id }
}

// WithMetaHook registers a callback for a game-flow action (resign, peek,
// clear board, ...). Repeat is handled internally and never reaches a hook.
func WithMetaHook(kind resolve.MetaKind, fn func()) Option {
	return func(p *pipeline) { p.hooks[kind] = fn }
}

// WithDisambigOptions passes extra options to the screen's disambiguation
// window, e.g. a shorter timeout in tests.
func WithDisambigOptions(opts ...disambig.Option) Option {
	return func(p *pipeline) { p.windowOpts = append(p.windowOpts, opts...) }
}

// pipeline is the plumbing shared by every screen: normalizer, resolver,
// disambiguation window, announcements, and the optional history/assist
// stages.
type pipeline struct {
	lane     string
	session  string
	norm     *normalize.Normalizer
	resolver *resolve.Resolver
	window   *disambig.Controller
	announce Announcer
	store    history.Store
	helper   *assist.Corrector
	metrics  *observe.Metrics
	log      *slog.Logger
	hooks    map[resolve.MetaKind]func()

	windowOpts []disambig.Option

	mu       sync.Mutex
	lastSaid string
}

// newPipeline wires the shared plumbing. patterns extend the base command
// grammar for this screen.
func newPipeline(lane string, announce Announcer, norm *normalize.Normalizer, patterns []resolve.Pattern, opts ...Option) *pipeline {
	p := &pipeline{
		lane:     lane,
		session:  "default",
		norm:     norm,
		announce: announce,
		log:      slog.Default(),
		hooks:    make(map[resolve.MetaKind]func()),
	}
	for _, o := range opts {
		o(p)
	}
	if p.metrics == nil {
		p.metrics = observe.DefaultMetrics()
	}
	p.resolver = resolve.New(resolve.WithPatterns(patterns...))
	windowOpts := append([]disambig.Option{
		disambig.WithLogger(p.log),
		disambig.WithOnExpire(func(pend resolve.Pending) {
			p.metrics.RecordDisambiguation(context.Background(), "expired")
			p.say(context.Background(), "Move cancelled.")
		}),
	}, p.windowOpts...)
	p.window = disambig.New(windowOpts...)
	return p
}

// Lane returns the screen's lane id.
func (p *pipeline) Lane() string { return p.lane }

// Close cancels the pending disambiguation. The lane and capture session are
// the coordinator's concern.
func (p *pipeline) Close() {
	p.window.Clear()
}

// process runs one transcript through normalize → resolve and handles the
// ambiguous and unmatched outcomes. It returns a command only on resolution;
// everything else is announced here and reported as ok=false.
func (p *pipeline) process(ctx context.Context, t session.Transcript, legal []string) (resolve.Command, bool) {
	tokens := p.norm.Normalize(t.Text)
	pending := p.window.Pending()
	out := p.resolver.Resolve(tokens, legal, pending)

	p.metrics.RecordResolution(ctx, out.Kind.String(), p.lane)
	p.record(ctx, t, out)

	switch out.Kind {
	case resolve.Resolved:
		if pending != nil {
			p.metrics.RecordDisambiguation(ctx, "resolved")
		}
		p.window.Clear()
		return out.Command, true

	case resolve.Ambiguous:
		p.window.Begin(out)
		p.metrics.RecordDisambiguation(ctx, "opened")
		p.say(ctx, ambiguityPrompt(out))
		return resolve.Command{}, false
	}

	// Unmatched.
	if pending != nil {
		// The window stays open; the timeout decides its fate.
		p.say(ctx, "Say the file or rank of the piece to move.")
		return resolve.Command{}, false
	}
	if p.helper != nil {
		san, ok, err := p.helper.Suggest(ctx, t.Text, legal)
		if err != nil {
			p.log.Warn("assist pass failed", "error", err)
		} else if ok {
			p.log.Info("assist pass matched", "transcript", t.Text, "san", san)
			return resolve.MoveCommand(san), true
		}
	}
	p.say(ctx, "Sorry, I didn't catch that.")
	return resolve.Command{}, false
}

// record appends the utterance to the history store, when one is configured.
func (p *pipeline) record(ctx context.Context, t session.Transcript, out resolve.Outcome) {
	if p.store == nil {
		return
	}
	e := history.Entry{
		Session: p.session,
		Lane:    p.lane,
		RawText: t.Text,
		Outcome: out.Kind.String(),
	}
	if out.Kind == resolve.Resolved && out.Command.Kind == resolve.KindMove {
		e.SAN = out.Command.Move
	}
	if err := p.store.Record(ctx, e); err != nil {
		p.log.Warn("history record failed", "error", err)
	}
}

// say speaks text through the announcer and remembers it for "repeat that".
func (p *pipeline) say(ctx context.Context, text string) {
	p.mu.Lock()
	p.lastSaid = text
	p.mu.Unlock()
	if err := p.announce.MuteForPlayback(ctx, text); err != nil {
		p.log.Warn("announcement failed", "error", err)
	}
}

// handleMeta dispatches a game-flow action to its registered hook. Repeat is
// served from the last announcement.
func (p *pipeline) handleMeta(ctx context.Context, kind resolve.MetaKind) {
	if kind == resolve.MetaRepeat {
		p.mu.Lock()
		last := p.lastSaid
		p.mu.Unlock()
		if last == "" {
			last = "Nothing to repeat yet."
		}
		if err := p.announce.MuteForPlayback(ctx, last); err != nil {
			p.log.Warn("announcement failed", "error", err)
		}
		return
	}
	if fn, ok := p.hooks[kind]; ok {
		fn()
	}
}

// answerQuery speaks the answer to a read-only game-state question.
func (p *pipeline) answerQuery(ctx context.Context, pos chess.Position, cmd resolve.Command) {
	switch cmd.Query {
	case resolve.QueryMaterialBalance:
		p.say(ctx, materialSummary(pos))

	case resolve.QueryPieceLocation:
		p.say(ctx, pieceLocations(pos, cmd.Piece))

	case resolve.QuerySquareContents:
		p.say(ctx, squareContents(pos, cmd.Square))

	case resolve.QueryLegalMovesFor:
		p.say(ctx, legalMovesFor(pos, cmd.Piece))

	case resolve.QueryClockRemaining:
		if c, ok := pos.(ClockSource); ok {
			p.say(ctx, c.ClockRemaining())
		} else {
			p.say(ctx, "There is no clock in this game.")
		}

	case resolve.QueryLastMove:
		if l, ok := pos.(MoveLog); ok {
			if m := l.LastMove(); m != "" {
				p.say(ctx, SpokenMove(m))
				return
			}
		}
		p.say(ctx, "No moves have been played yet.")

	case resolve.QueryEvaluation:
		if e, ok := pos.(Evaluator); ok {
			p.say(ctx, e.Evaluation())
		} else {
			p.say(ctx, "Evaluation is not available here.")
		}
	}
}
