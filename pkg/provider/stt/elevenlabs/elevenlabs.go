// Package elevenlabs provides an ElevenLabs-backed STT provider using the
// speech-to-text REST API. It implements the stt.Provider interface.
package elevenlabs

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/glimmervoice/glimmer/pkg/audio"
	"github.com/glimmervoice/glimmer/pkg/provider/stt"
)

const (
	defaultEndpoint = "https://api.elevenlabs.io/v1/speech-to-text"
	defaultModel    = "scribe_v1"
)

// Option is a functional option for configuring the ElevenLabs Provider.
type Option func(*Provider)

// WithModel sets the transcription model ID. Defaults to "scribe_v1".
func WithModel(model string) Option {
	return func(p *Provider) {
		p.model = model
	}
}

// WithEndpoint overrides the API endpoint, for tests or proxies.
func WithEndpoint(url string) Option {
	return func(p *Provider) {
		p.endpoint = url
	}
}

// Provider implements stt.Provider backed by the ElevenLabs speech-to-text API.
type Provider struct {
	apiKey     string
	model      string
	endpoint   string
	httpClient *http.Client
}

// New creates a new ElevenLabs Provider. apiKey must be non-empty.
func New(apiKey string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, errors.New("elevenlabs: apiKey must not be empty")
	}
	p := &Provider{
		apiKey:     apiKey,
		model:      defaultModel,
		endpoint:   defaultEndpoint,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// Transcribe uploads the clip's WAV as multipart/form-data and returns the
// transcribed text with surrounding whitespace trimmed.
func (p *Provider) Transcribe(ctx context.Context, clip *audio.Clip) (string, error) {
	if clip == nil || len(clip.WAV) == 0 {
		return "", errors.New("elevenlabs: empty clip")
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", "audio.wav")
	if err != nil {
		return "", fmt.Errorf("elevenlabs: create form file: %w", err)
	}
	if _, err := fw.Write(clip.WAV); err != nil {
		return "", fmt.Errorf("elevenlabs: write wav data: %w", err)
	}
	if err := mw.WriteField("model_id", p.model); err != nil {
		return "", fmt.Errorf("elevenlabs: write model_id field: %w", err)
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("elevenlabs: close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, &body)
	if err != nil {
		return "", fmt.Errorf("elevenlabs: create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("xi-api-key", p.apiKey)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("elevenlabs: http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("elevenlabs: server returned HTTP %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("elevenlabs: read response body: %w", err)
	}
	var result struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(data, &result); err != nil {
		return "", fmt.Errorf("elevenlabs: parse JSON response: %w", err)
	}
	return strings.TrimSpace(result.Text), nil
}

var _ stt.Provider = (*Provider)(nil)
