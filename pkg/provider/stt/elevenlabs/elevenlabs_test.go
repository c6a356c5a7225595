package elevenlabs

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/glimmervoice/glimmer/pkg/audio"
)

func testClip() *audio.Clip {
	pcm := audio.Int16sToBytes(make([]int16, 4410))
	return &audio.Clip{
		WAV:    audio.EncodeWAV(pcm, 44100, 1),
		Format: audio.Format{SampleRate: 44100, Channels: 1},
	}
}

func TestNew_EmptyAPIKey(t *testing.T) {
	if _, err := New(""); err == nil {
		t.Error("expected error for empty API key")
	}
}

func TestTranscribe(t *testing.T) {
	var gotKey, gotModel string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("xi-api-key")
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatalf("parse multipart: %v", err)
		}
		gotModel = r.FormValue("model_id")
		if _, _, err := r.FormFile("file"); err != nil {
			t.Fatalf("form file: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"language_code":"en","text":"What is the meaning of life?"}`)
	}))
	defer srv.Close()

	p, err := New("secret", WithEndpoint(srv.URL))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	text, err := p.Transcribe(context.Background(), testClip())
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if text != "What is the meaning of life?" {
		t.Errorf("text = %q", text)
	}
	if gotKey != "secret" {
		t.Errorf("xi-api-key = %q, want secret", gotKey)
	}
	if gotModel != defaultModel {
		t.Errorf("model_id = %q, want %q", gotModel, defaultModel)
	}
}

func TestTranscribe_Unauthorized(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "invalid api key", http.StatusUnauthorized)
	}))
	defer srv.Close()

	p, err := New("bad-key", WithEndpoint(srv.URL))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := p.Transcribe(context.Background(), testClip()); err == nil {
		t.Error("expected error for HTTP 401")
	}
}

func TestTranscribe_EmptyClip(t *testing.T) {
	p, err := New("key")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := p.Transcribe(context.Background(), nil); err == nil {
		t.Error("expected error for nil clip")
	}
}
