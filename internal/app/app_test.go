package app_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/voicemate/voicemate/internal/app"
	"github.com/voicemate/voicemate/internal/config"
	"github.com/voicemate/voicemate/internal/history"
	"github.com/voicemate/voicemate/internal/screens"
	"github.com/voicemate/voicemate/internal/voice/normalize"
	"github.com/voicemate/voicemate/internal/voice/resolve"
	asrmock "github.com/voicemate/voicemate/pkg/provider/asr/mock"
	ttsmock "github.com/voicemate/voicemate/pkg/provider/tts/mock"

	chessmock "github.com/voicemate/voicemate/pkg/chess/mock"
)

// surface is a chess mock position that records applied moves.
type surface struct {
	*chessmock.Position

	mu      sync.Mutex
	applied []string
}

func newSurface(moves ...string) *surface {
	return &surface{Position: chessmock.New(moves...)}
}

func (s *surface) Apply(san string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.applied = append(s.applied, san)
	return nil
}

func (s *surface) Applied() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.applied...)
}

func testConfig() *config.Config {
	return &config.Config{
		ASR: config.ASRConfig{Engine: config.EngineWhisper, ModelPath: "/unused.bin"},
		TTS: config.TTSConfig{URL: "http://localhost:5000"},
	}
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		if cond() {
			return
		}
		select {
		case <-deadline:
			t.Fatal(msg)
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestNew_RequiresSurface(t *testing.T) {
	t.Parallel()

	_, err := app.New(context.Background(), testConfig(), app.Providers{
		ASR:     asrmock.New(),
		Speaker: ttsmock.NewSpeaker(),
		History: history.NewMemoryStore(),
	})
	if err == nil {
		t.Fatal("New accepted a nil surface")
	}
}

func TestApp_TranscriptRoutedToGameScreen(t *testing.T) {
	t.Parallel()

	asrProv := asrmock.New()
	speaker := ttsmock.NewSpeaker()
	sf := newSurface("Nf3", "Nc3")

	a, err := app.New(context.Background(), testConfig(), app.Providers{
		ASR:     asrProv,
		Speaker: speaker,
		Surface: sf,
		History: history.NewMemoryStore(),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	waitFor(t, func() bool { return asrProv.LastSession() != nil },
		"capture session never opened")
	asrProv.LastSession().EmitFinal("knight to f3")

	waitFor(t, func() bool {
		got := sf.Applied()
		return len(got) == 1 && got[0] == "Nf3"
	}, "spoken move never reached the game screen")
	waitFor(t, func() bool {
		for _, s := range speaker.Spoken() {
			if s == "knight to f3" {
				return true
			}
		}
		return false
	}, "confirmation never spoken")

	cancel()
	if err := <-done; err != nil {
		t.Errorf("Run: %v", err)
	}
	if err := a.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown: %v", err)
	}
	if !asrProv.LastSession().Closed() {
		t.Error("capture session left open after Shutdown")
	}
}

func TestApp_SessionOpensWithVocabularyHints(t *testing.T) {
	t.Parallel()

	asrProv := asrmock.New()

	a, err := app.New(context.Background(), testConfig(), app.Providers{
		ASR:     asrProv,
		Speaker: ttsmock.NewSpeaker(),
		Surface: newSurface(),
		History: history.NewMemoryStore(),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer a.Shutdown(context.Background())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	waitFor(t, func() bool { return asrProv.LastSession() != nil },
		"capture session never opened")

	// The engine must receive the chess vocabulary as keyword boosts so
	// phrase-hint-capable backends favour "knight" over "night at".
	keywords := asrProv.LastSession().Config.Keywords
	if len(keywords) == 0 {
		t.Fatal("session opened without keyword hints")
	}
	found := map[string]bool{}
	for _, k := range keywords {
		found[k.Keyword] = true
	}
	for _, want := range []string{"knight", "castle", "resign"} {
		if !found[want] {
			t.Errorf("keyword hints missing %q", want)
		}
	}

	cancel()
	<-done
}

func TestApp_LaneSwitchRoutesToAddedScreen(t *testing.T) {
	t.Parallel()

	asrProv := asrmock.New()
	speaker := ttsmock.NewSpeaker()

	a, err := app.New(context.Background(), testConfig(), app.Providers{
		ASR:     asrProv,
		Speaker: speaker,
		Surface: newSurface(),
		History: history.NewMemoryStore(),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer a.Shutdown(context.Background())

	cleared := make(chan struct{}, 1)
	opts := append(a.ScreenOptions(),
		screens.WithMetaHook(resolve.MetaClearBoard, func() { cleared <- struct{}{} }))
	rec := screens.NewReconstruction(a.Coordinator(), newSurface(), normalize.New(), opts...)
	a.AddScreen(rec)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	waitFor(t, func() bool { return asrProv.LastSession() != nil },
		"capture session never opened")
	if _, err := a.Coordinator().RegisterLane(screens.LaneReconstruction); err != nil {
		t.Fatalf("RegisterLane: %v", err)
	}
	asrProv.LastSession().EmitFinal("clear the board")

	select {
	case <-cleared:
	case <-time.After(2 * time.Second):
		t.Fatal("clear-board command never reached the reconstruction screen")
	}

	cancel()
	if err := <-done; err != nil {
		t.Errorf("Run: %v", err)
	}
}

func TestApp_FallbackEngineServesTranscripts(t *testing.T) {
	t.Parallel()

	primary := asrmock.New()
	primary.StartErr = context.DeadlineExceeded
	secondary := asrmock.New()
	speaker := ttsmock.NewSpeaker()
	sf := newSurface("e4")

	a, err := app.New(context.Background(), testConfig(), app.Providers{
		ASR:      primary,
		Fallback: secondary,
		Speaker:  speaker,
		Surface:  sf,
		History:  history.NewMemoryStore(),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer a.Shutdown(context.Background())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	waitFor(t, func() bool { return secondary.LastSession() != nil },
		"fallback session never opened")
	secondary.LastSession().EmitFinal("pawn to e4")

	waitFor(t, func() bool {
		got := sf.Applied()
		return len(got) == 1 && got[0] == "e4"
	}, "move from the fallback engine never applied")

	cancel()
	if err := <-done; err != nil {
		t.Errorf("Run: %v", err)
	}
}

func TestApp_HistoryRecordsUtterances(t *testing.T) {
	t.Parallel()

	asrProv := asrmock.New()
	store := history.NewMemoryStore()
	sf := newSurface("Nf3")

	a, err := app.New(context.Background(), testConfig(), app.Providers{
		ASR:     asrProv,
		Speaker: ttsmock.NewSpeaker(),
		Surface: sf,
		History: store,
	}, app.WithSessionID("s1"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer a.Shutdown(context.Background())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	waitFor(t, func() bool { return asrProv.LastSession() != nil },
		"capture session never opened")
	asrProv.LastSession().EmitFinal("knight f3")

	waitFor(t, func() bool {
		entries, err := store.Recent(context.Background(), "s1", 0)
		return err == nil && len(entries) == 1 && entries[0].SAN == "Nf3"
	}, "utterance never recorded")

	cancel()
	<-done
}
