package resilience

import (
	"context"

	"github.com/glimmervoice/glimmer/pkg/audio"
	"github.com/glimmervoice/glimmer/pkg/provider/stt"
)

// STTFallback implements [stt.Provider] with automatic failover across
// multiple transcription backends. Each backend has its own circuit breaker.
type STTFallback struct {
	group *FallbackGroup[stt.Provider]
}

var _ stt.Provider = (*STTFallback)(nil)

// NewSTTFallback creates an [STTFallback] with primary as the preferred
// backend.
func NewSTTFallback(primary stt.Provider, primaryName string, cfg FallbackConfig) *STTFallback {
	return &STTFallback{
		group: NewFallbackGroup(primary, primaryName, cfg),
	}
}

// AddFallback registers an additional transcription provider as a fallback.
func (f *STTFallback) AddFallback(name string, provider stt.Provider) {
	f.group.AddFallback(name, provider)
}

// Transcribe sends the clip to the first healthy backend. A backend failure
// moves on to the next; the whole turn fails only when every backend does.
func (f *STTFallback) Transcribe(ctx context.Context, clip *audio.Clip) (string, error) {
	return ExecuteWithResult(f.group, func(p stt.Provider) (string, error) {
		return p.Transcribe(ctx, clip)
	})
}
