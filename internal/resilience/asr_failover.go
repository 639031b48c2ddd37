package resilience

import (
	"context"

	"github.com/voicemate/voicemate/pkg/provider/asr"
)

// ASRFailover implements [asr.Provider] with automatic failover across
// recognition engines. Each engine has its own circuit breaker, so a whisper
// model that keeps failing to open sessions stops being probed for a while
// and the browser bridge takes over directly.
type ASRFailover struct {
	group *FallbackGroup[asr.Provider]
}

var _ asr.Provider = (*ASRFailover)(nil)

// NewASRFailover creates an [ASRFailover] with primary as the preferred
// engine.
func NewASRFailover(primary asr.Provider, primaryName string, cfg FallbackConfig) *ASRFailover {
	return &ASRFailover{
		group: NewFallbackGroup(primary, primaryName, cfg),
	}
}

// AddFallback registers an additional recognition engine. Fallbacks are
// tried in registration order.
func (f *ASRFailover) AddFallback(name string, provider asr.Provider) {
	f.group.AddFallback(name, provider)
}

// StartStream opens a recognition session against the first healthy engine.
func (f *ASRFailover) StartStream(ctx context.Context, cfg asr.StreamConfig) (asr.SessionHandle, error) {
	return ExecuteWithResult(f.group, func(p asr.Provider) (asr.SessionHandle, error) {
		return p.StartStream(ctx, cfg)
	})
}
