// Package tts defines the Provider interface for text-to-speech backends.
//
// A TTS provider wraps a speech synthesis service and presents a uniform
// streaming interface. The primary entry point is SynthesizeStream, which
// accepts a channel of text fragments and returns a stream of encoded audio
// frames as they become available, enabling low-latency pipelining between
// LLM token output and audio playback.
package tts

import "context"

// VoiceProfile describes a synthesis voice configuration.
type VoiceProfile struct {
	// ID is the provider-specific voice identifier.
	ID string

	// Name is the human-readable voice name.
	Name string

	// Provider identifies which TTS provider this voice belongs to.
	Provider string

	// Stability controls consistency of delivery (0–1). Zero means the
	// provider default.
	Stability float64

	// SimilarityBoost controls adherence to the reference voice (0–1). Zero
	// means the provider default.
	SimilarityBoost float64

	// Metadata holds provider-specific voice attributes (gender, accent,
	// category, etc.).
	Metadata map[string]string
}

// Stream is a live synthesis session. Frames yields encoded audio frames in
// synthesis order; the channel is closed when the service has delivered all
// audio for the submitted text or the session failed. After the channel
// closes, Err reports how the session ended.
type Stream interface {
	// Frames returns the channel of encoded audio frames. The caller must
	// drain it; an undrained stream blocks the provider's reader.
	Frames() <-chan []byte

	// Err returns the terminal session error, or nil for a clean finish.
	// Only valid after the Frames channel has closed.
	Err() error
}

// Provider is the abstraction over any TTS backend.
//
// Implementations must be safe for concurrent use; multiple synthesis
// sessions may run in parallel.
type Provider interface {
	// SynthesizeStream opens a synthesis session for the given voice. Text
	// fragments are consumed from text as they arrive and forwarded to the
	// service immediately, partial sentences included; closing text signals
	// the end of input and flushes any audio the service is still holding.
	//
	// Returns an error only if the session cannot be started. Failures during
	// synthesis surface through the returned stream's Err.
	SynthesizeStream(ctx context.Context, text <-chan string, voice VoiceProfile) (Stream, error)

	// ListVoices returns the provider's current voice catalogue.
	ListVoices(ctx context.Context) ([]VoiceProfile, error)
}
