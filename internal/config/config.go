// Package config provides the configuration schema, loader, and provider
// registry for the Glimmer voice pipeline.
package config

import (
	"time"

	"github.com/glimmervoice/glimmer/pkg/audio"
)

// LogLevel controls log verbosity for the Glimmer process.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Config is the root configuration structure for Glimmer.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server       ServerConfig       `yaml:"server"`
	Providers    ProvidersConfig    `yaml:"providers"`
	Audio        AudioConfig        `yaml:"audio"`
	Conversation ConversationConfig `yaml:"conversation"`
}

// ServerConfig holds network and logging settings for the operational HTTP
// surface (metrics and health endpoints).
type ServerConfig struct {
	// ListenAddr is the TCP address the server listens on (e.g., ":8080").
	// Empty disables the HTTP surface entirely.
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`

	// TLS configures TLS for the server. When nil, the server runs plain HTTP.
	TLS *TLSConfig `yaml:"tls"`
}

// TLSConfig holds TLS certificate paths for enabling HTTPS.
type TLSConfig struct {
	// CertFile is the path to the PEM-encoded TLS certificate.
	CertFile string `yaml:"cert_file"`

	// KeyFile is the path to the PEM-encoded TLS private key.
	KeyFile string `yaml:"key_file"`
}

// ProvidersConfig declares which provider implementation to use for each
// pipeline stage. Each field selects a named provider registered in the
// [Registry].
type ProvidersConfig struct {
	LLM ProviderEntry `yaml:"llm"`
	STT ProviderEntry `yaml:"stt"`
	TTS ProviderEntry `yaml:"tts"`
}

// ProviderEntry is the common configuration block shared by all provider
// types. The Name field is used to look up the constructor in the [Registry].
type ProviderEntry struct {
	// Name selects the registered provider implementation (e.g., "openai",
	// "elevenlabs").
	Name string `yaml:"name"`

	// APIKey is the authentication key for the provider's API if any.
	APIKey string `yaml:"api_key"`

	// BaseURL overrides the provider's default API endpoint.
	// Leave empty to use the provider's built-in default.
	BaseURL string `yaml:"base_url"`

	// Model selects a specific model within the provider (e.g., "gpt-4o-mini",
	// "scribe_v1", "eleven_flash_v2_5").
	Model string `yaml:"model"`

	// Options holds provider-specific configuration values not covered by the
	// standard fields above. Values may be strings, numbers, or booleans.
	Options map[string]any `yaml:"options"`

	// Fallbacks lists backends tried in order when this one fails or its
	// circuit breaker is open. Fallback entries may not nest further.
	Fallbacks []ProviderEntry `yaml:"fallbacks"`
}

// AudioConfig tunes capture and playback. Zero values select the defaults of
// the audio package.
type AudioConfig struct {
	// PreBufferBytes is the playback lead banked before the first sample
	// reaches the speaker.
	PreBufferBytes int `yaml:"pre_buffer_bytes"`

	// CompactAfterBytes bounds playback buffer growth on long replies.
	CompactAfterBytes int `yaml:"compact_after_bytes"`

	// ResidualBytes is the level below which a reply counts as played out.
	ResidualBytes int `yaml:"residual_bytes"`

	// PollInterval is the drain sampling cadence.
	PollInterval time.Duration `yaml:"poll_interval"`

	// Settle is how long the buffer must stay drained before playback ends.
	Settle time.Duration `yaml:"settle"`

	// BlockFrames is the per-callback device block size, in frames.
	BlockFrames int `yaml:"block_frames"`

	// Capture is the microphone format.
	Capture CaptureConfig `yaml:"capture"`
}

// CaptureConfig is the microphone sample format.
type CaptureConfig struct {
	SampleRate int `yaml:"sample_rate"`
	Channels   int `yaml:"channels"`
}

// BufferConfig converts the audio settings to the playback buffer's config.
func (a AudioConfig) BufferConfig() audio.BufferConfig {
	return audio.BufferConfig{
		PreBufferBytes:    a.PreBufferBytes,
		CompactAfterBytes: a.CompactAfterBytes,
		ResidualBytes:     a.ResidualBytes,
		PollInterval:      a.PollInterval,
		Settle:            a.Settle,
	}
}

// Format converts the capture settings to an audio format. The zero value
// yields an invalid format, which downstream code replaces with the capture
// default.
func (c CaptureConfig) Format() audio.Format {
	return audio.Format{SampleRate: c.SampleRate, Channels: c.Channels}
}

// ConversationConfig describes the assistant's persona and decoding settings.
type ConversationConfig struct {
	// SystemPrompt is injected ahead of the history on every completion.
	SystemPrompt string `yaml:"system_prompt"`

	// MaxTokens caps each model reply. Zero selects the default (1000).
	MaxTokens int `yaml:"max_tokens"`

	// Temperature is forwarded verbatim to the model; 0 is greedy decoding.
	Temperature float64 `yaml:"temperature"`

	// HistoryLimit bounds the history sent to the model, in messages.
	HistoryLimit int `yaml:"history_limit"`

	// Voice configures the synthesis voice.
	Voice VoiceConfig `yaml:"voice"`
}

// VoiceConfig specifies the synthesis voice parameters.
type VoiceConfig struct {
	// VoiceID is the provider-specific voice identifier. Empty selects the
	// provider's first available voice.
	VoiceID string `yaml:"voice_id"`

	// Stability adjusts voice consistency in the range [0, 1]. 0 means the
	// provider default.
	Stability float64 `yaml:"stability"`

	// SimilarityBoost adjusts voice fidelity in the range [0, 1]. 0 means the
	// provider default.
	SimilarityBoost float64 `yaml:"similarity_boost"`
}
