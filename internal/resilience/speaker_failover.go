package resilience

import (
	"context"

	"github.com/voicemate/voicemate/pkg/provider/tts"
)

// SpeakerFailover implements [tts.Speaker] with automatic failover across
// synthesis backends. A spoken announcement that cannot be rendered by the
// primary voice falls through to the next one instead of leaving the player
// without feedback.
type SpeakerFailover struct {
	group *FallbackGroup[tts.Speaker]
}

var _ tts.Speaker = (*SpeakerFailover)(nil)

// NewSpeakerFailover creates a [SpeakerFailover] with primary as the
// preferred speaker.
func NewSpeakerFailover(primary tts.Speaker, primaryName string, cfg FallbackConfig) *SpeakerFailover {
	return &SpeakerFailover{
		group: NewFallbackGroup(primary, primaryName, cfg),
	}
}

// AddFallback registers an additional speaker. Fallbacks are tried in
// registration order.
func (f *SpeakerFailover) AddFallback(name string, speaker tts.Speaker) {
	f.group.AddFallback(name, speaker)
}

// Speak renders the utterance through the first healthy speaker, blocking
// until playback completes.
func (f *SpeakerFailover) Speak(ctx context.Context, text string) error {
	return f.group.Execute(func(s tts.Speaker) error {
		return s.Speak(ctx, text)
	})
}
