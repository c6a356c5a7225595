package synth

import (
	"context"
	"errors"
	"testing"

	"github.com/glimmervoice/glimmer/pkg/audio"
	audiomock "github.com/glimmervoice/glimmer/pkg/audio/mock"
	"github.com/glimmervoice/glimmer/pkg/provider/tts"
	ttsmock "github.com/glimmervoice/glimmer/pkg/provider/tts/mock"
)

var bridgeFormat = audio.Format{SampleRate: 22050, Channels: 1}

func feedText(fragments ...string) <-chan string {
	ch := make(chan string, len(fragments))
	for _, f := range fragments {
		ch <- f
	}
	close(ch)
	return ch
}

func TestBridgePushesAllFrames(t *testing.T) {
	provider := &ttsmock.Provider{
		Synth: func(fragment string) [][]byte {
			return [][]byte{audio.Int16sToBytes(make([]int16, len(fragment)))}
		},
	}
	fb := audio.NewFrameBuffer(&audiomock.Decoder{Format: bridgeFormat}, audio.BufferConfig{})

	b := NewBridge(provider, tts.VoiceProfile{ID: "v1"})
	if err := b.Run(context.Background(), feedText("Hello", " world"), fb); err != nil {
		t.Fatalf("Run: %v", err)
	}

	// 5 + 6 int16 samples, 4 native bytes each.
	if got := fb.Remaining(); got != 44 {
		t.Errorf("buffered %d bytes, want 44", got)
	}
	frags := provider.Fragments()
	if len(frags) != 2 || frags[0] != "Hello" {
		t.Errorf("fragments forwarded = %v", frags)
	}
}

func TestBridgeSkipsUndecodableFrames(t *testing.T) {
	bad := []byte{0xBD}
	provider := &ttsmock.Provider{
		Synth: func(fragment string) [][]byte {
			return [][]byte{audio.Int16sToBytes([]int16{1, 2}), bad}
		},
	}
	dec := &audiomock.Decoder{
		Format: bridgeFormat,
		Fail:   func(frame []byte) bool { return len(frame) == 1 },
	}
	fb := audio.NewFrameBuffer(dec, audio.BufferConfig{})

	b := NewBridge(provider, tts.VoiceProfile{ID: "v1"})
	if err := b.Run(context.Background(), feedText("hi"), fb); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := b.Dropped(); got != 1 {
		t.Errorf("Dropped = %d, want 1", got)
	}
	if got := fb.Remaining(); got != 8 {
		t.Errorf("buffered %d bytes, want 8", got)
	}
}

func TestBridgeTerminalOnClosedBuffer(t *testing.T) {
	provider := &ttsmock.Provider{}
	fb := audio.NewFrameBuffer(&audiomock.Decoder{Format: bridgeFormat}, audio.BufferConfig{})
	fb.Close()

	b := NewBridge(provider, tts.VoiceProfile{ID: "v1"})
	err := b.Run(context.Background(), feedText("hello"), fb)
	if !errors.Is(err, audio.ErrBufferClosed) {
		t.Fatalf("Run = %v, want ErrBufferClosed", err)
	}
}

func TestBridgeStartError(t *testing.T) {
	startErr := errors.New("dial refused")
	provider := &ttsmock.Provider{StartErr: startErr}
	fb := audio.NewFrameBuffer(&audiomock.Decoder{Format: bridgeFormat}, audio.BufferConfig{})

	b := NewBridge(provider, tts.VoiceProfile{ID: "v1"})
	if err := b.Run(context.Background(), feedText(), fb); !errors.Is(err, startErr) {
		t.Fatalf("Run = %v, want wrapped start error", err)
	}
}

func TestBridgeReportsStreamError(t *testing.T) {
	finalErr := errors.New("service dropped the connection")
	provider := &ttsmock.Provider{FinalErr: finalErr}
	fb := audio.NewFrameBuffer(&audiomock.Decoder{Format: bridgeFormat}, audio.BufferConfig{})

	b := NewBridge(provider, tts.VoiceProfile{ID: "v1"})
	if err := b.Run(context.Background(), feedText("hi"), fb); !errors.Is(err, finalErr) {
		t.Fatalf("Run = %v, want wrapped stream error", err)
	}
}
