package codec

import (
	"testing"

	"github.com/glimmervoice/glimmer/pkg/audio"
)

func TestS16LEDecode(t *testing.T) {
	format := audio.Format{SampleRate: 44100, Channels: 1}
	dec, err := NewS16LE(format)
	if err != nil {
		t.Fatalf("NewS16LE: %v", err)
	}

	// 0x0100 = 1, 0xFFFF = -1
	pcm, f, err := dec.Decode([]byte{0x01, 0x00, 0xFF, 0xFF})
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if f != format {
		t.Errorf("format = %s, want %s", f, format)
	}
	if len(pcm) != 2 || pcm[0] != 1 || pcm[1] != -1 {
		t.Errorf("pcm = %v, want [1 -1]", pcm)
	}
}

func TestS16LEDecodeOddLength(t *testing.T) {
	dec, err := NewS16LE(audio.Format{SampleRate: 22050, Channels: 1})
	if err != nil {
		t.Fatalf("NewS16LE: %v", err)
	}
	if _, _, err := dec.Decode([]byte{0x01, 0x00, 0xFF}); err == nil {
		t.Error("expected error for odd-length frame, got nil")
	}
}

func TestS16LEInvalidFormat(t *testing.T) {
	if _, err := NewS16LE(audio.Format{}); err == nil {
		t.Error("expected error for zero format, got nil")
	}
	if _, err := NewS16LE(audio.Format{SampleRate: -1, Channels: 1}); err == nil {
		t.Error("expected error for negative sample rate, got nil")
	}
}

func TestS16LEDecodeEmpty(t *testing.T) {
	dec, err := NewS16LE(audio.Format{SampleRate: 44100, Channels: 2})
	if err != nil {
		t.Fatalf("NewS16LE: %v", err)
	}
	pcm, _, err := dec.Decode(nil)
	if err != nil {
		t.Fatalf("Decode(nil): %v", err)
	}
	if len(pcm) != 0 {
		t.Errorf("pcm = %v, want empty", pcm)
	}
}
