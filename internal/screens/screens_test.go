package screens_test

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/voicemate/voicemate/internal/history"
	"github.com/voicemate/voicemate/internal/screens"
	"github.com/voicemate/voicemate/internal/voice/disambig"
	"github.com/voicemate/voicemate/internal/voice/normalize"
	"github.com/voicemate/voicemate/internal/voice/resolve"
	"github.com/voicemate/voicemate/internal/voice/session"
	"github.com/voicemate/voicemate/pkg/chess"
	chessmock "github.com/voicemate/voicemate/pkg/chess/mock"
)

// announcer records everything spoken through the mute gate.
type announcer struct {
	mu   sync.Mutex
	said []string
}

func (a *announcer) MuteForPlayback(ctx context.Context, utterance string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.said = append(a.said, utterance)
	return nil
}

func (a *announcer) Said() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.said...)
}

func (a *announcer) last() string {
	s := a.Said()
	if len(s) == 0 {
		return ""
	}
	return s[len(s)-1]
}

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

func transcript(text string) session.Transcript {
	return session.Transcript{Text: text, Confidence: 1, Lane: "game"}
}

func TestGame_MovePlayedAndConfirmed(t *testing.T) {
	t.Parallel()

	a := &announcer{}
	sf := newSurface("Nf3", "Nc3")
	g := screens.NewGame(a, sf, normalize.New())
	defer g.Close()

	g.HandleTranscript(context.Background(), transcript("knight to f3"))

	if got := sf.Applied(); len(got) != 1 || got[0] != "Nf3" {
		t.Fatalf("applied = %v, want [Nf3]", got)
	}
	if got := a.last(); got != "knight to f3" {
		t.Errorf("announced %q", got)
	}
}

func TestGame_AmbiguousThenDisambiguated(t *testing.T) {
	t.Parallel()

	a := &announcer{}
	sf := newSurface("Rad1", "Rfd1")
	g := screens.NewGame(a, sf, normalize.New())
	defer g.Close()
	ctx := context.Background()

	g.HandleTranscript(ctx, transcript("rook d one"))
	if got := sf.Applied(); len(got) != 0 {
		t.Fatalf("ambiguous utterance applied %v", got)
	}
	if got := a.last(); !strings.Contains(got, "rook") || !strings.Contains(got, "d1") {
		t.Fatalf("prompt %q does not name the ambiguity", got)
	}

	g.HandleTranscript(ctx, transcript("the one on a"))
	if got := sf.Applied(); len(got) != 1 || got[0] != "Rad1" {
		t.Fatalf("applied = %v, want [Rad1]", got)
	}
}

func TestGame_DisambiguationTimeout(t *testing.T) {
	t.Parallel()

	a := &announcer{}
	sf := newSurface("Rad1", "Rfd1")
	g := screens.NewGame(a, sf, normalize.New(),
		screens.WithDisambigOptions(disambig.WithTimeout(20*time.Millisecond)))
	defer g.Close()

	g.HandleTranscript(context.Background(), transcript("rook d one"))

	deadline := time.After(2 * time.Second)
	for {
		cancelled := false
		for _, s := range a.Said() {
			if s == "Move cancelled." {
				cancelled = true
			}
		}
		if cancelled {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("timeout never announced; said %v", a.Said())
		case <-time.After(5 * time.Millisecond):
		}
	}

	// The next utterance starts fresh: "a" alone means nothing now.
	g.HandleTranscript(context.Background(), transcript("knight a3"))
	if len(sf.Applied()) != 0 {
		t.Errorf("stale disambiguation consumed a fresh utterance: %v", sf.Applied())
	}
}

func TestGame_QuerySquareContents(t *testing.T) {
	t.Parallel()

	a := &announcer{}
	sf := newSurface("e4")
	sf.Place("e4", chess.Piece{Type: chess.Pawn, Color: chess.White})
	g := screens.NewGame(a, sf, normalize.New())
	defer g.Close()

	g.HandleTranscript(context.Background(), transcript("whats on e four"))

	if got := a.last(); got != "There is a white pawn on e4." {
		t.Errorf("announced %q", got)
	}
}

func TestGame_UnmatchedAnnounced(t *testing.T) {
	t.Parallel()

	a := &announcer{}
	sf := newSurface("e4")
	g := screens.NewGame(a, sf, normalize.New())
	defer g.Close()

	g.HandleTranscript(context.Background(), transcript("pizza delivery"))

	if got := sf.Applied(); len(got) != 0 {
		t.Fatalf("unmatched utterance applied %v", got)
	}
	if got := a.last(); got != "Sorry, I didn't catch that." {
		t.Errorf("announced %q", got)
	}
}

func TestGame_ResignHook(t *testing.T) {
	t.Parallel()

	a := &announcer{}
	sf := newSurface("e4")
	resigned := false
	g := screens.NewGame(a, sf, normalize.New(),
		screens.WithMetaHook(resolve.MetaResign, func() { resigned = true }))
	defer g.Close()

	g.HandleTranscript(context.Background(), transcript("i resign"))

	if !resigned {
		t.Error("resign hook not called")
	}
	if got := a.Said(); len(got) == 0 || got[0] != "You resigned." {
		t.Errorf("announced %v", got)
	}
}

func TestGame_RepeatThat(t *testing.T) {
	t.Parallel()

	a := &announcer{}
	sf := newSurface("Nf3")
	g := screens.NewGame(a, sf, normalize.New())
	defer g.Close()
	ctx := context.Background()

	g.HandleTranscript(ctx, transcript("knight f3"))
	g.HandleTranscript(ctx, transcript("repeat that"))

	said := a.Said()
	if len(said) != 2 || said[0] != said[1] {
		t.Errorf("repeat did not re-announce: %v", said)
	}
}

func TestGame_HistoryRecorded(t *testing.T) {
	t.Parallel()

	a := &announcer{}
	sf := newSurface("Nf3")
	store := history.NewMemoryStore()
	g := screens.NewGame(a, sf, normalize.New(),
		screens.WithHistory(store), screens.WithSessionID("s1"))
	defer g.Close()

	g.HandleTranscript(context.Background(), transcript("knight f3"))

	entries, err := store.Recent(context.Background(), "s1", 0)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("recorded %d entries, want 1", len(entries))
	}
	e := entries[0]
	if e.Lane != "game" || e.Outcome != "resolved" || e.SAN != "Nf3" || e.RawText != "knight f3" {
		t.Errorf("entry = %+v", e)
	}
}

func TestReconstruction_ExtraCommands(t *testing.T) {
	t.Parallel()

	a := &announcer{}
	sf := newSurface()
	cleared := false
	r := screens.NewReconstruction(a, sf, normalize.New(),
		screens.WithMetaHook(resolve.MetaClearBoard, func() { cleared = true }))
	defer r.Close()

	r.HandleTranscript(context.Background(), transcript("clear the board"))

	if !cleared {
		t.Error("clear-board hook not called")
	}
	if got := a.last(); got != "Board cleared." {
		t.Errorf("announced %q", got)
	}
	if r.Lane() != screens.LaneReconstruction {
		t.Errorf("lane = %q", r.Lane())
	}
}

func TestTraining_Drill(t *testing.T) {
	t.Parallel()

	a := &announcer{}
	sf := newSurface("e4", "d4")
	tr := screens.NewTraining("openings", a, sf, normalize.New(), []string{"e4"})
	defer tr.Close()
	ctx := context.Background()

	if tr.Lane() != "training-openings" {
		t.Fatalf("lane = %q", tr.Lane())
	}

	tr.HandleTranscript(ctx, transcript("d4"))
	if got := a.last(); !strings.Contains(got, "Try again") {
		t.Errorf("miss announced %q", got)
	}
	if got := sf.Applied(); len(got) != 0 {
		t.Fatalf("miss applied %v", got)
	}

	tr.HandleTranscript(ctx, transcript("e4"))
	if got := sf.Applied(); len(got) != 1 || got[0] != "e4" {
		t.Fatalf("applied = %v, want [e4]", got)
	}
	if got := a.last(); got != "Correct. Drill complete." {
		t.Errorf("announced %q", got)
	}
	if correct, attempts := tr.Progress(); correct != 1 || attempts != 2 {
		t.Errorf("progress = (%d, %d), want (1, 2)", correct, attempts)
	}
}
