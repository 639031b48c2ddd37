package session_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/voicemate/voicemate/internal/voice/session"
	"github.com/voicemate/voicemate/pkg/provider/asr"
	asrmock "github.com/voicemate/voicemate/pkg/provider/asr/mock"
	ttsmock "github.com/voicemate/voicemate/pkg/provider/tts/mock"
)

func newCoordinator(t *testing.T, opts ...session.Option) (*session.Coordinator, *asrmock.Provider, *ttsmock.Speaker) {
	t.Helper()
	provider := asrmock.New()
	speaker := ttsmock.NewSpeaker()
	c := session.New(provider, speaker, opts...)
	t.Cleanup(func() { _ = c.Stop(context.Background()) })
	return c, provider, speaker
}

// waitState polls until the coordinator reaches want or the deadline passes.
func waitState(t *testing.T, c *session.Coordinator, want session.State) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if c.State() == want {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("state = %v, want %v", c.State(), want)
}

// recvTranscript waits for one transcript or fails.
func recvTranscript(t *testing.T, c *session.Coordinator) session.Transcript {
	t.Helper()
	select {
	case tr := <-c.Transcripts():
		return tr
	case <-time.After(2 * time.Second):
		t.Fatal("no transcript delivered")
		return session.Transcript{}
	}
}

func TestStart_Idempotent(t *testing.T) {
	t.Parallel()

	c, provider, _ := newCoordinator(t)
	ctx := context.Background()

	if err := c.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if got := c.State(); got != session.Listening {
		t.Fatalf("state = %v, want Listening", got)
	}

	// Second Start while Listening is a no-op.
	if err := c.Start(ctx); err != nil {
		t.Fatalf("second Start: %v", err)
	}
	if got := len(provider.Sessions()); got != 1 {
		t.Fatalf("engine sessions opened = %d, want 1", got)
	}
}

func TestStart_MutualExclusion(t *testing.T) {
	t.Parallel()

	c, provider, _ := newCoordinator(t)
	ctx := context.Background()

	// Many racing callers must never produce two engine sessions.
	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := c.Start(ctx); err != nil {
				t.Errorf("Start: %v", err)
			}
		}()
	}
	wg.Wait()

	if got := len(provider.Sessions()); got != 1 {
		t.Fatalf("engine sessions opened = %d, want 1", got)
	}
	if got := c.State(); got != session.Listening {
		t.Fatalf("state = %v, want Listening", got)
	}
}

func TestStartStop_Lifecycle(t *testing.T) {
	t.Parallel()

	c, provider, _ := newCoordinator(t)
	ctx := context.Background()

	if err := c.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := c.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if got := c.State(); got != session.Idle {
		t.Fatalf("state = %v, want Idle", got)
	}
	if !provider.LastSession().Closed() {
		t.Fatal("engine session not closed by Stop")
	}

	// Stop on Idle is a no-op.
	if err := c.Stop(ctx); err != nil {
		t.Fatalf("Stop on Idle: %v", err)
	}

	// Restart opens a fresh engine session.
	if err := c.Start(ctx); err != nil {
		t.Fatalf("restart: %v", err)
	}
	if got := len(provider.Sessions()); got != 2 {
		t.Fatalf("engine sessions opened = %d, want 2", got)
	}
}

func TestTranscriptDelivery(t *testing.T) {
	t.Parallel()

	c, provider, _ := newCoordinator(t)
	ctx := context.Background()

	if _, err := c.RegisterLane("game"); err != nil {
		t.Fatalf("RegisterLane: %v", err)
	}
	if err := c.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	provider.LastSession().EmitFinal("knight to f3")
	tr := recvTranscript(t, c)
	if tr.Text != "knight to f3" {
		t.Errorf("Text = %q", tr.Text)
	}
	if tr.Lane != "game" {
		t.Errorf("Lane = %q, want game", tr.Lane)
	}
}

func TestTranscript_TooShortDropped(t *testing.T) {
	t.Parallel()

	c, provider, _ := newCoordinator(t)
	ctx := context.Background()

	if err := c.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	s := provider.LastSession()
	s.EmitFinal("")
	s.EmitFinal("e")
	s.EmitFinal("  a  ") // trims to one character
	s.EmitFinal("e4")

	tr := recvTranscript(t, c)
	if tr.Text != "e4" {
		t.Fatalf("delivered %q, want the first transcript of processable length", tr.Text)
	}
}

func TestMuteForPlayback(t *testing.T) {
	t.Parallel()

	c, provider, speaker := newCoordinator(t)
	speaker.Delay = 80 * time.Millisecond
	ctx := context.Background()

	if err := c.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- c.MuteForPlayback(ctx, "knight takes f3, check") }()

	waitState(t, c, session.Muted)

	// A transcript arriving mid-playback is suppressed, and the engine
	// session stays alive.
	provider.LastSession().EmitFinal("rook d one")
	select {
	case tr := <-c.Transcripts():
		t.Fatalf("transcript %q delivered while muted", tr.Text)
	case <-time.After(20 * time.Millisecond):
	}
	if provider.LastSession().Closed() {
		t.Fatal("mute must not close the engine session")
	}

	if err := <-done; err != nil {
		t.Fatalf("MuteForPlayback: %v", err)
	}
	waitState(t, c, session.Listening)

	if got := speaker.Spoken(); len(got) != 1 || got[0] != "knight takes f3, check" {
		t.Errorf("spoken = %v", got)
	}

	// Delivery resumes after playback.
	provider.LastSession().EmitFinal("rook a d one")
	if tr := recvTranscript(t, c); tr.Text != "rook a d one" {
		t.Errorf("Text = %q", tr.Text)
	}
}

func TestFallback_UsedOnceOnPrimaryFailure(t *testing.T) {
	t.Parallel()

	primary := asrmock.New()
	primary.StartErr = errors.New("native engine unavailable")
	fallback := asrmock.New()
	speaker := ttsmock.NewSpeaker()

	c := session.New(primary, speaker, session.WithFallback(fallback))
	t.Cleanup(func() { _ = c.Stop(context.Background()) })
	ctx := context.Background()

	if err := c.Start(ctx); err != nil {
		t.Fatalf("Start with fallback: %v", err)
	}
	if got := len(fallback.Sessions()); got != 1 {
		t.Fatalf("fallback sessions = %d, want 1", got)
	}
	if got := c.State(); got != session.Listening {
		t.Fatalf("state = %v, want Listening", got)
	}

	// The fallback is a one-time decision: after a stop, a failing primary
	// is not silently papered over again.
	if err := c.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if err := c.Start(ctx); err == nil {
		t.Fatal("expected error on restart with failing primary and spent fallback")
	}
	if got := c.State(); got != session.Failed {
		t.Fatalf("state = %v, want Failed", got)
	}
	if c.FailReason() == nil {
		t.Fatal("FailReason = nil")
	}
}

func TestStart_FailsWithoutFallback(t *testing.T) {
	t.Parallel()

	primary := asrmock.New()
	primary.StartErr = errors.New("native engine unavailable")
	c := session.New(primary, ttsmock.NewSpeaker())

	err := c.Start(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}
	if got := c.State(); got != session.Failed {
		t.Fatalf("state = %v, want Failed", got)
	}

	// Stop clears the failure back to Idle.
	if err := c.Stop(context.Background()); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if got := c.State(); got != session.Idle {
		t.Fatalf("state = %v, want Idle", got)
	}
}

func TestLaneProtection(t *testing.T) {
	t.Parallel()

	c, _, _ := newCoordinator(t)

	h, err := c.RegisterLane("game", session.WithProtection())
	if err != nil {
		t.Fatalf("RegisterLane(game): %v", err)
	}

	// Another screen's registration bounces off the protection.
	if _, err := c.RegisterLane("reconstruction"); !errors.Is(err, session.ErrLaneProtected) {
		t.Fatalf("err = %v, want ErrLaneProtected", err)
	}
	if got := c.Lane(); got != "game" {
		t.Fatalf("lane = %q, want game", got)
	}

	// Re-registering the same lane is always fine.
	if _, err := c.RegisterLane("game", session.WithProtection()); err != nil {
		t.Fatalf("re-register: %v", err)
	}

	// An explicit takeover replaces even a protected lane.
	if _, err := c.RegisterLane("training-tactics", session.WithTakeover()); err != nil {
		t.Fatalf("takeover: %v", err)
	}
	if got := c.Lane(); got != "training-tactics" {
		t.Fatalf("lane = %q, want training-tactics", got)
	}

	// The old handle no longer owns the lane; its Release is a no-op.
	if h.Owned() {
		t.Fatal("stale handle still owns the lane")
	}
	h.Release()
	if got := c.Lane(); got != "training-tactics" {
		t.Fatalf("lane = %q after stale Release, want training-tactics", got)
	}
}

func TestClearProtectedLane(t *testing.T) {
	t.Parallel()

	c, _, _ := newCoordinator(t)
	ctx := context.Background()

	if _, err := c.RegisterLane("game", session.WithProtection()); err != nil {
		t.Fatalf("RegisterLane: %v", err)
	}
	if err := c.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	c.ClearProtectedLane()
	if _, err := c.RegisterLane("reconstruction"); err != nil {
		t.Fatalf("RegisterLane after clear: %v", err)
	}

	// Lane churn never touches the capture session.
	if got := c.State(); got != session.Listening {
		t.Fatalf("state = %v, want Listening", got)
	}
}

func TestStreamEnded_MarksFailed(t *testing.T) {
	t.Parallel()

	c, provider, _ := newCoordinator(t)
	ctx := context.Background()

	if err := c.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	// The engine dying closes its channels; the coordinator must notice.
	provider.LastSession().Close()
	waitState(t, c, session.Failed)
	if c.FailReason() == nil {
		t.Fatal("FailReason = nil")
	}
}

func TestStreamEnded_PermissionDeniedSurfaced(t *testing.T) {
	t.Parallel()

	c, provider, _ := newCoordinator(t)
	ctx := context.Background()

	if err := c.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	// The engine reports a denied microphone; the coordinator must carry the
	// cause into FailReason so the UI layer can show it instead of retrying.
	provider.LastSession().Fail(fmt.Errorf("browser: recognition error: %w", asr.ErrPermissionDenied))
	waitState(t, c, session.Failed)
	if err := c.FailReason(); !errors.Is(err, asr.ErrPermissionDenied) {
		t.Fatalf("FailReason = %v, want ErrPermissionDenied", err)
	}
}

func TestLaneRelease(t *testing.T) {
	t.Parallel()

	c, _, _ := newCoordinator(t)

	h, err := c.RegisterLane("game")
	if err != nil {
		t.Fatalf("RegisterLane: %v", err)
	}
	if !h.Owned() {
		t.Fatal("fresh handle does not own the lane")
	}
	h.Release()
	if got := c.Lane(); got != "" {
		t.Fatalf("lane = %q after Release, want empty", got)
	}
}
