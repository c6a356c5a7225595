// Package mock provides a scriptable in-memory tts.Provider for tests.
package mock

import (
	"context"
	"sync"

	"github.com/glimmervoice/glimmer/pkg/provider/tts"
)

// Stream is the mock synthesis session returned by Provider.
type Stream struct {
	frames chan []byte
	err    error
}

// Frames implements tts.Stream.
func (s *Stream) Frames() <-chan []byte { return s.frames }

// Err implements tts.Stream.
func (s *Stream) Err() error { return s.err }

// Provider implements tts.Provider. For every text fragment received it
// emits the frames produced by Synth (or one frame echoing the fragment
// bytes when Synth is nil), then closes the stream after the text channel
// closes.
type Provider struct {
	// Synth maps a text fragment to the audio frames it synthesises to.
	Synth func(fragment string) [][]byte

	// TailFrames are emitted after the text channel closes, before the
	// stream closes. Models audio the service flushes at end of input.
	TailFrames [][]byte

	// StartErr, when non-nil, is returned by SynthesizeStream.
	StartErr error

	// FinalErr, when non-nil, is reported by the stream's Err after the
	// frame channel closes.
	FinalErr error

	// Voices is returned by ListVoices.
	Voices []tts.VoiceProfile

	mu        sync.Mutex
	voice     tts.VoiceProfile
	fragments []string
}

// SynthesizeStream implements tts.Provider.
func (p *Provider) SynthesizeStream(ctx context.Context, text <-chan string, voice tts.VoiceProfile) (tts.Stream, error) {
	if p.StartErr != nil {
		return nil, p.StartErr
	}
	p.mu.Lock()
	p.voice = voice
	p.mu.Unlock()

	s := &Stream{frames: make(chan []byte, 64)}
	go func() {
		defer close(s.frames)
		for {
			select {
			case fragment, ok := <-text:
				if !ok {
					for _, f := range p.TailFrames {
						s.frames <- f
					}
					s.err = p.FinalErr
					return
				}
				p.mu.Lock()
				p.fragments = append(p.fragments, fragment)
				p.mu.Unlock()
				if p.Synth != nil {
					for _, f := range p.Synth(fragment) {
						s.frames <- f
					}
				} else {
					s.frames <- []byte(fragment)
				}
			case <-ctx.Done():
				s.err = ctx.Err()
				return
			}
		}
	}()
	return s, nil
}

// ListVoices implements tts.Provider.
func (p *Provider) ListVoices(_ context.Context) ([]tts.VoiceProfile, error) {
	return p.Voices, nil
}

// Fragments returns the text fragments received so far, in order.
func (p *Provider) Fragments() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.fragments...)
}

// Voice returns the profile passed to the last SynthesizeStream call.
func (p *Provider) Voice() tts.VoiceProfile {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.voice
}

var _ tts.Provider = (*Provider)(nil)
