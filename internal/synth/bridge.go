// Package synth connects a TTS synthesis stream to the playback buffer.
package synth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/glimmervoice/glimmer/pkg/audio"
	"github.com/glimmervoice/glimmer/pkg/provider/tts"
)

// Bridge pumps audio frames from a TTS provider into a FrameBuffer. One
// bridge serves one turn; create a new bridge per synthesis session.
type Bridge struct {
	tts   tts.Provider
	voice tts.VoiceProfile

	dropped atomic.Int64
}

// NewBridge creates a bridge synthesising with the given provider and voice.
func NewBridge(provider tts.Provider, voice tts.VoiceProfile) *Bridge {
	return &Bridge{tts: provider, voice: voice}
}

// Run opens a synthesis stream for the text channel and pushes every
// received frame into fb until the stream ends. Undecodable frames are
// dropped and counted; they are expected during live chunked delivery and do
// not end the session. Any other push failure is terminal.
//
// Run returns when the provider has delivered all audio for the text (the
// caller still drains fb afterwards), reporting the stream's terminal error
// if the session failed.
func (b *Bridge) Run(ctx context.Context, text <-chan string, fb *audio.FrameBuffer) error {
	stream, err := b.tts.SynthesizeStream(ctx, text, b.voice)
	if err != nil {
		return fmt.Errorf("synth: start stream: %w", err)
	}

	for frame := range stream.Frames() {
		if err := fb.Push(frame); err != nil {
			if errors.Is(err, audio.ErrDecode) {
				b.dropped.Add(1)
				slog.Debug("dropping undecodable audio frame", "bytes", len(frame), "err", err)
				continue
			}
			// Drain the stream so the provider's reader can exit, then
			// surface the terminal error.
			for range stream.Frames() {
			}
			return fmt.Errorf("synth: push frame: %w", err)
		}
	}
	if err := stream.Err(); err != nil {
		return fmt.Errorf("synth: stream: %w", err)
	}
	return nil
}

// Dropped returns the number of frames discarded as undecodable so far.
func (b *Bridge) Dropped() int64 {
	return b.dropped.Load()
}
