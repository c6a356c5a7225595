package resilience_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/glimmervoice/glimmer/internal/resilience"
	"github.com/glimmervoice/glimmer/pkg/audio"
	"github.com/glimmervoice/glimmer/pkg/provider/llm"
	llmmock "github.com/glimmervoice/glimmer/pkg/provider/llm/mock"
	sttmock "github.com/glimmervoice/glimmer/pkg/provider/stt/mock"
	"github.com/glimmervoice/glimmer/pkg/provider/tts"
	ttsmock "github.com/glimmervoice/glimmer/pkg/provider/tts/mock"
)

func TestSTTFallback_FailsOver(t *testing.T) {
	primary := &sttmock.Provider{Err: errors.New("unavailable")}
	backup := &sttmock.Provider{Text: "hello"}

	f := resilience.NewSTTFallback(primary, "primary", resilience.FallbackConfig{})
	f.AddFallback("backup", backup)

	clip := &audio.Clip{WAV: []byte("RIFF"), Duration: time.Second}
	got, err := f.Transcribe(context.Background(), clip)
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if got != "hello" {
		t.Errorf("text = %q, want hello", got)
	}
	if len(primary.Clips()) != 1 || len(backup.Clips()) != 1 {
		t.Errorf("clip routing: primary=%d backup=%d", len(primary.Clips()), len(backup.Clips()))
	}
}

func TestSTTFallback_AllFail(t *testing.T) {
	primary := &sttmock.Provider{Err: errors.New("down")}
	f := resilience.NewSTTFallback(primary, "primary", resilience.FallbackConfig{})

	_, err := f.Transcribe(context.Background(), &audio.Clip{})
	if !errors.Is(err, resilience.ErrAllFailed) {
		t.Errorf("error = %v, want ErrAllFailed", err)
	}
}

func TestLLMFallback_StreamFailsOver(t *testing.T) {
	primary := &llmmock.Provider{StartErr: errors.New("rate limited")}
	backup := &llmmock.Provider{Chunks: []llm.Chunk{{Text: "hi", FinishReason: "stop"}}}

	f := resilience.NewLLMFallback(primary, "primary", resilience.FallbackConfig{})
	f.AddFallback("backup", backup)

	ch, err := f.StreamCompletion(context.Background(), llm.CompletionRequest{})
	if err != nil {
		t.Fatalf("StreamCompletion: %v", err)
	}
	var text string
	for c := range ch {
		text += c.Text
	}
	if text != "hi" {
		t.Errorf("streamed text = %q", text)
	}
}

func TestLLMFallback_Complete(t *testing.T) {
	primary := &llmmock.Provider{Chunks: []llm.Chunk{{Text: "pong", FinishReason: "stop"}}}
	f := resilience.NewLLMFallback(primary, "primary", resilience.FallbackConfig{})

	resp, err := f.Complete(context.Background(), llm.CompletionRequest{})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if resp.Content != "pong" {
		t.Errorf("content = %q", resp.Content)
	}
}

func TestTTSFallback_SynthesizeFailsOver(t *testing.T) {
	primary := &ttsmock.Provider{StartErr: errors.New("refused")}
	backup := &ttsmock.Provider{}

	f := resilience.NewTTSFallback(primary, "primary", resilience.FallbackConfig{})
	f.AddFallback("backup", backup)

	text := make(chan string, 1)
	text <- "hello"
	close(text)

	stream, err := f.SynthesizeStream(context.Background(), text, tts.VoiceProfile{ID: "v1"})
	if err != nil {
		t.Fatalf("SynthesizeStream: %v", err)
	}
	var frames int
	for range stream.Frames() {
		frames++
	}
	if frames != 1 {
		t.Errorf("frames = %d, want 1", frames)
	}
	if backup.Voice().ID != "v1" {
		t.Errorf("backup voice = %q", backup.Voice().ID)
	}
}

func TestTTSFallback_ListVoices(t *testing.T) {
	primary := &ttsmock.Provider{Voices: []tts.VoiceProfile{{ID: "a"}, {ID: "b"}}}
	f := resilience.NewTTSFallback(primary, "primary", resilience.FallbackConfig{})

	voices, err := f.ListVoices(context.Background())
	if err != nil {
		t.Fatalf("ListVoices: %v", err)
	}
	if len(voices) != 2 {
		t.Errorf("voices = %d, want 2", len(voices))
	}
}
