package resilience

import (
	"context"
	"errors"
	"testing"

	ttsmock "github.com/voicemate/voicemate/pkg/provider/tts/mock"
)

func TestSpeakerFailover_PrimaryHealthy(t *testing.T) {
	primary := ttsmock.NewSpeaker()
	secondary := ttsmock.NewSpeaker()

	f := NewSpeakerFailover(primary, "piper", FallbackConfig{})
	f.AddFallback("backup", secondary)

	if err := f.Speak(context.Background(), "check"); err != nil {
		t.Fatalf("Speak: %v", err)
	}
	if got := primary.Spoken(); len(got) != 1 || got[0] != "check" {
		t.Fatalf("primary spoke %v", got)
	}
	if len(secondary.Spoken()) != 0 {
		t.Fatalf("secondary spoke %v, want nothing", secondary.Spoken())
	}
}

func TestSpeakerFailover_FallsBack(t *testing.T) {
	primary := ttsmock.NewSpeaker()
	primary.Err = errors.New("synthesis server down")
	secondary := ttsmock.NewSpeaker()

	f := NewSpeakerFailover(primary, "piper", FallbackConfig{})
	f.AddFallback("backup", secondary)

	if err := f.Speak(context.Background(), "move cancelled"); err != nil {
		t.Fatalf("Speak: %v", err)
	}
	if got := secondary.Spoken(); len(got) != 1 || got[0] != "move cancelled" {
		t.Fatalf("secondary spoke %v", got)
	}
}

func TestSpeakerFailover_AllFail(t *testing.T) {
	primary := ttsmock.NewSpeaker()
	primary.Err = errors.New("down")
	secondary := ttsmock.NewSpeaker()
	secondary.Err = errors.New("also down")

	f := NewSpeakerFailover(primary, "piper", FallbackConfig{})
	f.AddFallback("backup", secondary)

	if err := f.Speak(context.Background(), "check"); !errors.Is(err, ErrAllFailed) {
		t.Fatalf("err = %v, want ErrAllFailed", err)
	}
}
