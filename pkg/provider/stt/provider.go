// Package stt defines the Provider interface for speech-to-text backends.
//
// Providers transcribe one finished utterance at a time. The conversation
// loop records a complete clip between two push-to-talk edges and hands it
// off as a single request; there is no streaming partial-transcript path.
package stt

import (
	"context"

	"github.com/glimmervoice/glimmer/pkg/audio"
)

// Provider is the abstraction over any batch transcription backend.
//
// Implementations must be safe for concurrent use.
type Provider interface {
	// Transcribe converts one captured utterance to text. Implementations
	// honour ctx cancellation and deadlines.
	Transcribe(ctx context.Context, clip *audio.Clip) (string, error)
}
