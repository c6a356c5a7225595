package resilience

import (
	"context"

	"github.com/glimmervoice/glimmer/pkg/provider/tts"
)

// TTSFallback implements [tts.Provider] with automatic failover across
// multiple synthesis backends. Each backend has its own circuit breaker.
//
// As with models, failover applies to opening the synthesis stream: once a
// backend is speaking, an in-stream failure ends the turn.
type TTSFallback struct {
	group *FallbackGroup[tts.Provider]
}

var _ tts.Provider = (*TTSFallback)(nil)

// NewTTSFallback creates a [TTSFallback] with primary as the preferred
// backend.
func NewTTSFallback(primary tts.Provider, primaryName string, cfg FallbackConfig) *TTSFallback {
	return &TTSFallback{
		group: NewFallbackGroup(primary, primaryName, cfg),
	}
}

// AddFallback registers an additional synthesis provider as a fallback.
func (f *TTSFallback) AddFallback(name string, provider tts.Provider) {
	f.group.AddFallback(name, provider)
}

// SynthesizeStream opens a synthesis session on the first healthy backend.
func (f *TTSFallback) SynthesizeStream(ctx context.Context, text <-chan string, voice tts.VoiceProfile) (tts.Stream, error) {
	return ExecuteWithResult(f.group, func(p tts.Provider) (tts.Stream, error) {
		return p.SynthesizeStream(ctx, text, voice)
	})
}

// ListVoices queries the first healthy backend for its voice catalogue.
func (f *TTSFallback) ListVoices(ctx context.Context) ([]tts.VoiceProfile, error) {
	return ExecuteWithResult(f.group, func(p tts.Provider) ([]tts.VoiceProfile, error) {
		return p.ListVoices(ctx)
	})
}
