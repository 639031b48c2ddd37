// Package app wires configuration, providers, the session coordinator, and
// the voice screens into one runnable subsystem.
//
// The wiring order mirrors the dependency chain: recognition engines first,
// then speech output, then the shared stores, then the coordinator that
// consumes all of them, and finally the screens that consume the
// coordinator.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	anyllmlib "github.com/mozilla-ai/any-llm-go"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/voicemate/voicemate/internal/assist"
	"github.com/voicemate/voicemate/internal/config"
	"github.com/voicemate/voicemate/internal/health"
	"github.com/voicemate/voicemate/internal/history"
	"github.com/voicemate/voicemate/internal/observe"
	"github.com/voicemate/voicemate/internal/resilience"
	"github.com/voicemate/voicemate/internal/screens"
	"github.com/voicemate/voicemate/internal/vocab"
	"github.com/voicemate/voicemate/internal/voice/normalize"
	"github.com/voicemate/voicemate/internal/voice/session"
	"github.com/voicemate/voicemate/pkg/provider/asr"
	"github.com/voicemate/voicemate/pkg/provider/asr/browser"
	"github.com/voicemate/voicemate/pkg/provider/asr/whisper"
	"github.com/voicemate/voicemate/pkg/provider/llm/anyllm"
	"github.com/voicemate/voicemate/pkg/provider/tts"
	"github.com/voicemate/voicemate/pkg/provider/tts/piper"
)

// httpShutdownTimeout bounds the drain of in-flight HTTP requests once the
// run context is cancelled.
const httpShutdownTimeout = 5 * time.Second

// Providers carries pre-built external dependencies. Nil fields are
// constructed from configuration in [New]; tests inject mocks here.
type Providers struct {
	// ASR overrides the primary recognition engine.
	ASR asr.Provider

	// Fallback overrides the fallback recognition engine.
	Fallback asr.Provider

	// Speaker overrides the speech output path. When nil, a piper-backed
	// player is built from the TTS config.
	Speaker tts.Speaker

	// Sink is the playback device for the built-in player. Defaults to
	// [tts.Pacer].
	Sink tts.Sink

	// Surface is the rules engine the game screen plays on. Required.
	Surface screens.Surface

	// History overrides the utterance store.
	History history.Store

	// Assist overrides the LLM correction stage.
	Assist *assist.Corrector
}

// Option is a functional option for configuring an [App].
type Option func(*App)

// WithLogger sets the logger. Default: [slog.Default].
func WithLogger(log *slog.Logger) Option {
	return func(a *App) { a.log = log }
}

// WithSessionID sets the history session identifier. Default: a
// timestamp-derived id.
func WithSessionID(id string) Option {
	return func(a *App) { a.sessionID = id }
}

// App owns the assembled subsystem: the coordinator, the screens, and the
// HTTP surface. Build with [New], drive with [App.Run], tear down with
// [App.Shutdown].
type App struct {
	cfg       *config.Config
	log       *slog.Logger
	metrics   *observe.Metrics
	sessionID string

	coord  *session.Coordinator
	bridge *browser.Bridge
	store  history.Store
	helper *assist.Corrector

	mu       sync.Mutex
	handlers map[string]screens.Handler

	closers  []func() error
	stopOnce sync.Once
	stopErr  error
}

// New assembles an App from cfg, filling every nil field of providers from
// configuration. cfg must already be validated.
func New(ctx context.Context, cfg *config.Config, providers Providers, opts ...Option) (*App, error) {
	a := &App{
		cfg:       cfg,
		log:       slog.Default(),
		metrics:   observe.DefaultMetrics(),
		sessionID: fmt.Sprintf("session-%d", time.Now().Unix()),
		handlers:  make(map[string]screens.Handler),
	}
	for _, o := range opts {
		o(a)
	}

	if providers.Surface == nil {
		return nil, errors.New("app: a board surface is required")
	}

	// 1. Recognition engines. The primary gets a circuit breaker so an
	// engine that keeps failing to open sessions is not re-probed on every
	// Start; the fallback stays bare because the coordinator tries it once.
	primary := providers.ASR
	if primary == nil {
		engine, err := a.buildEngine(cfg.ASR.Engine)
		if err != nil {
			a.close()
			return nil, err
		}
		primary = engine
	}
	primary = resilience.NewASRFailover(primary, string(cfg.ASR.Engine), resilience.FallbackConfig{})

	fallback := providers.Fallback
	if fallback == nil && cfg.ASR.Fallback != "" {
		engine, err := a.buildEngine(cfg.ASR.Fallback)
		if err != nil {
			a.close()
			return nil, err
		}
		fallback = engine
	}

	// 2. Speech output.
	speaker := providers.Speaker
	if speaker == nil {
		synth, err := piper.New(cfg.TTS.URL)
		if err != nil {
			a.close()
			return nil, fmt.Errorf("app: piper: %w", err)
		}
		sink := providers.Sink
		if sink == nil {
			sink = tts.Pacer{}
		}
		var popts []tts.PlayerOption
		if cfg.TTS.Voice != "" {
			popts = append(popts, tts.WithVoice(tts.Voice{ID: cfg.TTS.Voice}))
		}
		speaker = resilience.NewSpeakerFailover(tts.NewPlayer(synth, sink, popts...), "piper", resilience.FallbackConfig{})
	}

	// 3. Utterance history.
	a.store = providers.History
	if a.store == nil {
		if cfg.History.PostgresDSN != "" {
			pg, err := history.NewPostgresStore(ctx, cfg.History.PostgresDSN)
			if err != nil {
				a.close()
				return nil, fmt.Errorf("app: history store: %w", err)
			}
			a.closers = append(a.closers, func() error { pg.Close(); return nil })
			a.store = pg
		} else {
			a.store = history.NewMemoryStore()
		}
	}

	// 4. LLM assist, when configured.
	a.helper = providers.Assist
	if a.helper == nil && cfg.Assist.Provider != "" {
		var lopts []anyllmlib.Option
		if cfg.Assist.APIKey != "" {
			lopts = append(lopts, anyllmlib.WithAPIKey(cfg.Assist.APIKey))
		}
		if cfg.Assist.BaseURL != "" {
			lopts = append(lopts, anyllmlib.WithBaseURL(cfg.Assist.BaseURL))
		}
		lp, err := anyllm.New(cfg.Assist.Provider, cfg.Assist.Model, lopts...)
		if err != nil {
			a.close()
			return nil, fmt.Errorf("app: assist provider: %w", err)
		}
		a.helper = assist.New(lp)
	}

	// 5. Session coordinator.
	copts := []session.Option{
		session.WithLogger(a.log),
		session.WithMetrics(a.metrics),
		session.WithStreamConfig(streamConfig(cfg)),
	}
	if fallback != nil {
		copts = append(copts, session.WithFallback(fallback))
	}
	a.coord = session.New(primary, speaker, copts...)

	// 6. The game screen is always present. Callers register further
	// screens with AddScreen before Run.
	game := screens.NewGame(a.coord, providers.Surface, normalize.New(), a.screenOptions()...)
	a.handlers[game.Lane()] = game

	return a, nil
}

// buildEngine constructs one recognition engine from configuration. The
// browser bridge is shared between primary and fallback duty.
func (a *App) buildEngine(engine config.Engine) (asr.Provider, error) {
	switch engine {
	case config.EngineWhisper:
		var wopts []whisper.Option
		if a.cfg.ASR.Language != "" {
			wopts = append(wopts, whisper.WithLanguage(a.cfg.ASR.Language))
		}
		if a.cfg.ASR.SampleRate > 0 {
			wopts = append(wopts, whisper.WithSampleRate(a.cfg.ASR.SampleRate))
		}
		p, err := whisper.New(a.cfg.ASR.ModelPath, wopts...)
		if err != nil {
			return nil, fmt.Errorf("app: load whisper model: %w", err)
		}
		a.closers = append(a.closers, p.Close)
		return p, nil

	case config.EngineBrowser:
		if a.bridge == nil {
			a.bridge = browser.NewBridge(browser.WithLogger(a.log))
		}
		return a.bridge, nil
	}
	return nil, fmt.Errorf("app: unknown recognition engine %q", engine)
}

// screenOptions returns the options every screen is built with.
func (a *App) screenOptions() []screens.Option {
	opts := []screens.Option{
		screens.WithLogger(a.log),
		screens.WithMetrics(a.metrics),
		screens.WithHistory(a.store),
		screens.WithSessionID(a.sessionID),
	}
	if a.helper != nil {
		opts = append(opts, screens.WithAssist(a.helper))
	}
	return opts
}

// streamConfig translates the ASR config into the coordinator's stream
// settings, including the chess vocabulary boost list for engines that take
// recognition hints.
func streamConfig(cfg *config.Config) asr.StreamConfig {
	sc := asr.StreamConfig{
		SampleRate: cfg.ASR.SampleRate,
		Channels:   1,
		Language:   cfg.ASR.Language,
	}
	if sc.SampleRate == 0 {
		sc.SampleRate = 16000
	}
	for _, hint := range vocab.Default().KeywordHints() {
		sc.Keywords = append(sc.Keywords, asr.KeywordBoost{Keyword: hint, Boost: 1})
	}
	return sc
}

// Coordinator exposes the session coordinator so UI layers can switch lanes
// and observe session state.
func (a *App) Coordinator() *session.Coordinator { return a.coord }

// History exposes the utterance store.
func (a *App) History() history.Store { return a.store }

// ScreenOptions returns the shared options for building additional screens
// (reconstruction, training drills) on this App's stores.
func (a *App) ScreenOptions() []screens.Option { return a.screenOptions() }

// AddScreen registers a screen as the transcript handler for its lane.
// Registering a lane twice replaces the handler.
func (a *App) AddScreen(h screens.Handler) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.handlers[h.Lane()] = h
}

// handler returns the registered handler for a lane, or nil.
func (a *App) handler(lane string) screens.Handler {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.handlers[lane]
}

// Run starts the capture session and blocks serving transcripts (and HTTP,
// when configured) until ctx is cancelled or a component fails. Cancellation
// is a clean exit; call [App.Shutdown] afterwards.
func (a *App) Run(ctx context.Context) error {
	if _, err := a.coord.RegisterLane(screens.LaneGame); err != nil {
		return fmt.Errorf("app: register game lane: %w", err)
	}
	if err := a.coord.Start(ctx); err != nil {
		return fmt.Errorf("app: start capture: %w", err)
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return a.dispatch(ctx) })
	g.Go(func() error { return a.drainPartials(ctx) })

	if a.cfg.Server.ListenAddr != "" {
		srv := a.newHTTPServer()
		g.Go(func() error {
			a.log.Info("http server listening", "addr", srv.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("app: http server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			sctx, cancel := context.WithTimeout(context.Background(), httpShutdownTimeout)
			defer cancel()
			return srv.Shutdown(sctx)
		})
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// dispatch routes final transcripts to the screen owning their lane.
func (a *App) dispatch(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case t := <-a.coord.Transcripts():
			h := a.handler(t.Lane)
			if h == nil {
				a.log.Warn("transcript for unregistered lane", "lane", t.Lane, "len", len(t.Text))
				continue
			}
			h.HandleTranscript(ctx, t)
		}
	}
}

// drainPartials consumes interim transcripts so the coordinator's partial
// channel never backs up. UIs that render live captions would tap in here.
func (a *App) drainPartials(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case t := <-a.coord.Partials():
			a.log.Debug("partial transcript", "lane", t.Lane, "len", len(t.Text))
		}
	}
}

// newHTTPServer builds the HTTP surface: Prometheus metrics, liveness and
// readiness probes, and the browser bridge endpoint when that engine is
// configured.
func (a *App) newHTTPServer() *http.Server {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", promhttp.Handler())
	health.New(a.checkers()...).Register(mux)
	if a.bridge != nil {
		mux.Handle("/asr", a.bridge)
	}
	return &http.Server{
		Addr:              a.cfg.Server.ListenAddr,
		Handler:           observe.Middleware(a.metrics)(mux),
		ReadHeaderTimeout: httpShutdownTimeout,
	}
}

// checkers returns the readiness checks for /readyz.
func (a *App) checkers() []health.Checker {
	return []health.Checker{
		{
			Name: "session",
			Check: func(context.Context) error {
				return a.coord.FailReason()
			},
		},
		{
			Name: "history",
			Check: func(ctx context.Context) error {
				_, err := a.store.Recent(ctx, a.sessionID, 1)
				return err
			},
		},
	}
}

// Shutdown stops capture, closes every screen, and releases providers in
// reverse construction order. Safe to call more than once.
func (a *App) Shutdown(ctx context.Context) error {
	a.stopOnce.Do(func() {
		var errs []error
		if a.coord != nil {
			if err := a.coord.Stop(ctx); err != nil {
				errs = append(errs, err)
			}
		}
		a.mu.Lock()
		for _, h := range a.handlers {
			h.Close()
		}
		a.mu.Unlock()
		if err := a.close(); err != nil {
			errs = append(errs, err)
		}
		a.stopErr = errors.Join(errs...)
	})
	return a.stopErr
}

// close runs the accumulated closers in reverse order.
func (a *App) close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
