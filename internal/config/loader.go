package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// ValidProviderNames lists known provider names per provider kind.
// Used by [Validate] to warn about unrecognised provider names.
var ValidProviderNames = map[string][]string{
	"llm": {"openai", "anthropic", "gemini", "ollama", "deepseek", "mistral", "groq", "llamacpp", "llamafile"},
	"stt": {"elevenlabs", "whisper"},
	"tts": {"elevenlabs"},
}

// Load reads the YAML configuration file at path and returns a validated
// [Config]. It is a convenience wrapper around [LoadFromReader] and [Validate].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r and validates the result.
// Useful in tests where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if tls := cfg.Server.TLS; tls != nil {
		if tls.CertFile == "" || tls.KeyFile == "" {
			errs = append(errs, errors.New("server.tls requires both cert_file and key_file"))
		}
	}

	// Provider name validation: warn for unknown provider names.
	validateProviderName("llm", cfg.Providers.LLM.Name)
	validateProviderName("stt", cfg.Providers.STT.Name)
	validateProviderName("tts", cfg.Providers.TTS.Name)

	// Fallback entries are flat: one level of failover, each with a name.
	for _, stage := range []struct {
		kind  string
		entry ProviderEntry
	}{
		{"llm", cfg.Providers.LLM},
		{"stt", cfg.Providers.STT},
		{"tts", cfg.Providers.TTS},
	} {
		for i, fb := range stage.entry.Fallbacks {
			if fb.Name == "" {
				errs = append(errs, fmt.Errorf("providers.%s.fallbacks[%d].name is required", stage.kind, i))
			}
			if len(fb.Fallbacks) > 0 {
				errs = append(errs, fmt.Errorf("providers.%s.fallbacks[%d] may not declare its own fallbacks", stage.kind, i))
			}
			validateProviderName(stage.kind, fb.Name)
		}
	}

	// The cascaded pipeline needs all three stages.
	if cfg.Providers.LLM.Name == "" {
		errs = append(errs, errors.New("providers.llm.name is required"))
	}
	if cfg.Providers.STT.Name == "" {
		errs = append(errs, errors.New("providers.stt.name is required"))
	}
	if cfg.Providers.TTS.Name == "" {
		errs = append(errs, errors.New("providers.tts.name is required"))
	}

	// Audio thresholds
	a := cfg.Audio
	if a.PreBufferBytes < 0 {
		errs = append(errs, fmt.Errorf("audio.pre_buffer_bytes %d is negative", a.PreBufferBytes))
	}
	if a.CompactAfterBytes < 0 {
		errs = append(errs, fmt.Errorf("audio.compact_after_bytes %d is negative", a.CompactAfterBytes))
	}
	if a.ResidualBytes < 0 {
		errs = append(errs, fmt.Errorf("audio.residual_bytes %d is negative", a.ResidualBytes))
	}
	if a.PollInterval < 0 {
		errs = append(errs, fmt.Errorf("audio.poll_interval %s is negative", a.PollInterval))
	}
	if a.Settle < 0 {
		errs = append(errs, fmt.Errorf("audio.settle %s is negative", a.Settle))
	}
	if a.BlockFrames < 0 {
		errs = append(errs, fmt.Errorf("audio.block_frames %d is negative", a.BlockFrames))
	}
	if c := a.Capture; c.SampleRate != 0 || c.Channels != 0 {
		if c.SampleRate <= 0 {
			errs = append(errs, fmt.Errorf("audio.capture.sample_rate %d is invalid", c.SampleRate))
		}
		if c.Channels < 1 || c.Channels > 2 {
			errs = append(errs, fmt.Errorf("audio.capture.channels %d is out of range [1, 2]", c.Channels))
		}
	}

	// Conversation
	conv := cfg.Conversation
	if conv.MaxTokens < 0 {
		errs = append(errs, fmt.Errorf("conversation.max_tokens %d is negative", conv.MaxTokens))
	}
	if conv.Temperature < 0 || conv.Temperature > 2 {
		errs = append(errs, fmt.Errorf("conversation.temperature %.2f is out of range [0, 2]", conv.Temperature))
	}
	if conv.HistoryLimit < 0 {
		errs = append(errs, fmt.Errorf("conversation.history_limit %d is negative", conv.HistoryLimit))
	}
	if v := conv.Voice.Stability; v < 0 || v > 1 {
		errs = append(errs, fmt.Errorf("conversation.voice.stability %.2f is out of range [0, 1]", v))
	}
	if v := conv.Voice.SimilarityBoost; v < 0 || v > 1 {
		errs = append(errs, fmt.Errorf("conversation.voice.similarity_boost %.2f is out of range [0, 1]", v))
	}

	if conv.Voice.VoiceID == "" {
		slog.Warn("conversation.voice.voice_id is empty; the first voice reported by the TTS provider will be used")
	}

	return errors.Join(errs...)
}

// validateProviderName logs a warning if name is non-empty and not found in
// the [ValidProviderNames] list for the given kind.
func validateProviderName(kind, name string) {
	if name == "" {
		return
	}
	known, ok := ValidProviderNames[kind]
	if !ok {
		return
	}
	if slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown provider name, may be a typo or third-party provider",
		"kind", kind,
		"name", name,
		"known", known,
	)
}
