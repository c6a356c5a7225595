// Package elevenlabs provides an ElevenLabs-backed TTS provider using the
// ElevenLabs streaming WebSocket API. It implements the tts.Provider interface.
package elevenlabs

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync/atomic"

	"github.com/coder/websocket"

	"github.com/glimmervoice/glimmer/pkg/provider/tts"
)

const (
	wsEndpointFmt  = "wss://api.elevenlabs.io/v1/text-to-speech/%s/stream-input?model_id=%s"
	voicesEndpoint = "https://api.elevenlabs.io/v1/voices"
	defaultModel   = "eleven_flash_v2_5"

	// defaultOutputFmt requests raw 16-bit PCM so frames go straight to the
	// playback buffer without a codec.
	defaultOutputFmt = "pcm_22050"

	defaultStability  = 0.5
	defaultSimilarity = 0.8
)

// Option is a functional option for configuring the ElevenLabs Provider.
type Option func(*Provider)

// WithModel sets the ElevenLabs model ID (e.g., "eleven_flash_v2_5").
func WithModel(model string) Option {
	return func(p *Provider) {
		p.model = model
	}
}

// WithOutputFormat sets the audio output format (e.g., "pcm_22050", "pcm_44100").
func WithOutputFormat(format string) Option {
	return func(p *Provider) {
		p.outputFormat = format
	}
}

// Provider implements tts.Provider backed by the ElevenLabs streaming API.
type Provider struct {
	apiKey       string
	model        string
	outputFormat string
	httpClient   *http.Client
}

// New creates a new ElevenLabs Provider. apiKey must be non-empty.
func New(apiKey string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, errors.New("elevenlabs: apiKey must not be empty")
	}
	p := &Provider{
		apiKey:       apiKey,
		model:        defaultModel,
		outputFormat: defaultOutputFmt,
		httpClient:   &http.Client{},
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// OutputFormat returns the configured audio output format identifier.
func (p *Provider) OutputFormat() string {
	return p.outputFormat
}

// ---- WebSocket message types ----

// textMessage is the JSON payload sent to ElevenLabs for each text fragment.
// TryTriggerGeneration asks the service to start synthesising without waiting
// for more context; it trades a little naturalness for latency.
type textMessage struct {
	Text                 string         `json:"text"`
	TryTriggerGeneration bool           `json:"try_trigger_generation,omitempty"`
	VoiceSettings        *voiceSettings `json:"voice_settings,omitempty"`
}

// voiceSettings mirrors the ElevenLabs voice_settings object.
type voiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
}

// audioResponse is the JSON message received from ElevenLabs over the WebSocket.
type audioResponse struct {
	Audio   string `json:"audio"` // base64-encoded audio frame
	IsFinal bool   `json:"isFinal"`
	Error   string `json:"error,omitempty"`
	Message string `json:"message,omitempty"`
}

// boiMessage is used for the initial "begin of input" handshake.
type boiMessage struct {
	Text          string         `json:"text"`
	VoiceSettings *voiceSettings `json:"voice_settings,omitempty"`
	XiAPIKey      string         `json:"xi_api_key"`
	OutputFormat  string         `json:"output_format,omitempty"`
}

// session implements tts.Stream for one WebSocket synthesis run.
type session struct {
	frames chan []byte
	err    atomic.Pointer[error]
}

func (s *session) Frames() <-chan []byte { return s.frames }

func (s *session) Err() error {
	if e := s.err.Load(); e != nil {
		return *e
	}
	return nil
}

// setErr records the first terminal error; later calls are ignored.
func (s *session) setErr(err error) {
	if err == nil {
		return
	}
	s.err.CompareAndSwap(nil, &err)
}

// SynthesizeStream opens a WebSocket to ElevenLabs, forwards text fragments
// as they arrive on the text channel, and returns a stream of raw audio
// frames. Each fragment is sent immediately with try_trigger_generation so
// synthesis starts before the sentence is complete. Closing the text channel
// sends the flush command; the stream then stays open until the service
// confirms the final audio chunk with isFinal.
func (p *Provider) SynthesizeStream(ctx context.Context, text <-chan string, voice tts.VoiceProfile) (tts.Stream, error) {
	if voice.ID == "" {
		return nil, errors.New("elevenlabs: voice.ID must not be empty")
	}

	wsURL := buildURLForVoice(voice.ID, p.model)
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: dial: %w", err)
	}

	vs := settingsForVoice(voice)

	// The BOI message authenticates and configures the stream. ElevenLabs
	// requires a non-empty first text value.
	boi := boiMessage{
		Text:          " ",
		VoiceSettings: vs,
		XiAPIKey:      p.apiKey,
		OutputFormat:  p.outputFormat,
	}
	boiBytes, _ := json.Marshal(boi)
	if err := conn.Write(ctx, websocket.MessageText, boiBytes); err != nil {
		conn.Close(websocket.StatusInternalError, "failed to send BOI")
		return nil, fmt.Errorf("elevenlabs: send BOI: %w", err)
	}

	s := &session{frames: make(chan []byte, 256)}
	go s.run(ctx, conn, text)
	return s, nil
}

// run owns the connection for the lifetime of the session.
func (s *session) run(ctx context.Context, conn *websocket.Conn, text <-chan string) {
	defer close(s.frames)
	defer conn.Close(websocket.StatusNormalClosure, "done")

	// The reader drains audio until the service marks the stream final.
	readDone := make(chan struct{})
	go func() {
		defer close(readDone)
		for {
			_, msg, err := conn.Read(ctx)
			if err != nil {
				if ctx.Err() != nil {
					s.setErr(ctx.Err())
				} else if websocket.CloseStatus(err) != websocket.StatusNormalClosure {
					s.setErr(fmt.Errorf("elevenlabs: read: %w", err))
				}
				return
			}
			var resp audioResponse
			if err := json.Unmarshal(msg, &resp); err != nil {
				continue
			}
			if resp.Error != "" {
				s.setErr(fmt.Errorf("elevenlabs: service error: %s (%s)", resp.Error, resp.Message))
				return
			}
			if resp.Audio != "" {
				frame, err := base64.StdEncoding.DecodeString(resp.Audio)
				if err == nil {
					select {
					case s.frames <- frame:
					case <-ctx.Done():
						s.setErr(ctx.Err())
						return
					}
				}
			}
			if resp.IsFinal {
				return
			}
		}
	}()

	for {
		select {
		case fragment, ok := <-text:
			if !ok {
				// End of input. The empty-text flush makes the service emit
				// whatever it is still holding, then isFinal.
				flushBytes, _ := buildWSMessage("", false)
				if err := conn.Write(ctx, websocket.MessageText, flushBytes); err != nil {
					s.setErr(fmt.Errorf("elevenlabs: send flush: %w", err))
					return
				}
				select {
				case <-readDone:
				case <-ctx.Done():
					s.setErr(ctx.Err())
				}
				return
			}
			if fragment == "" {
				continue
			}
			msgBytes, _ := buildWSMessage(fragment, true)
			if err := conn.Write(ctx, websocket.MessageText, msgBytes); err != nil {
				s.setErr(fmt.Errorf("elevenlabs: send text: %w", err))
				return
			}
		case <-readDone:
			// Reader quit early: service error or broken connection.
			return
		case <-ctx.Done():
			s.setErr(ctx.Err())
			return
		}
	}
}

// settingsForVoice maps a profile to the wire voice_settings, filling in the
// service defaults for unset values.
func settingsForVoice(voice tts.VoiceProfile) *voiceSettings {
	vs := &voiceSettings{
		Stability:       voice.Stability,
		SimilarityBoost: voice.SimilarityBoost,
	}
	if vs.Stability == 0 {
		vs.Stability = defaultStability
	}
	if vs.SimilarityBoost == 0 {
		vs.SimilarityBoost = defaultSimilarity
	}
	return vs
}

// ---- ListVoices ----

// voicesResponse is the top-level response from GET /v1/voices.
type voicesResponse struct {
	Voices []elevenLabsVoice `json:"voices"`
}

// elevenLabsVoice is a single voice entry from the ElevenLabs API.
type elevenLabsVoice struct {
	VoiceID  string            `json:"voice_id"`
	Name     string            `json:"name"`
	Category string            `json:"category"`
	Labels   map[string]string `json:"labels"`
}

// ListVoices returns all voices available from ElevenLabs for the configured API key.
func (p *Provider) ListVoices(ctx context.Context) ([]tts.VoiceProfile, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, voicesEndpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: list voices: %w", err)
	}
	req.Header.Set("xi-api-key", p.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: list voices HTTP: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("elevenlabs: list voices: unexpected status %d", resp.StatusCode)
	}

	body := json.NewDecoder(resp.Body)
	var vr voicesResponse
	if err := body.Decode(&vr); err != nil {
		return nil, fmt.Errorf("elevenlabs: list voices decode: %w", err)
	}
	return voicesToProfiles(vr), nil
}

// ---- helpers ----

// buildWSMessage constructs the JSON text payload for a single text fragment.
// Used by tests to verify the payload shape without opening a real connection.
func buildWSMessage(text string, trigger bool) ([]byte, error) {
	return json.Marshal(textMessage{Text: text, TryTriggerGeneration: trigger})
}

// buildURLForVoice constructs the WebSocket URL for a given voice and model.
func buildURLForVoice(voiceID, model string) string {
	return fmt.Sprintf(wsEndpointFmt, voiceID, model)
}

// voicesToProfiles maps the ElevenLabs catalogue response to voice profiles.
func voicesToProfiles(vr voicesResponse) []tts.VoiceProfile {
	profiles := make([]tts.VoiceProfile, 0, len(vr.Voices))
	for _, v := range vr.Voices {
		meta := make(map[string]string, len(v.Labels)+1)
		for k, val := range v.Labels {
			meta[k] = val
		}
		if v.Category != "" {
			meta["category"] = v.Category
		}
		profiles = append(profiles, tts.VoiceProfile{
			ID:       v.VoiceID,
			Name:     v.Name,
			Provider: "elevenlabs",
			Metadata: meta,
		})
	}
	return profiles
}

var _ tts.Provider = (*Provider)(nil)
