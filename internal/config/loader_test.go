package config_test

import (
	"strings"
	"testing"
	"time"

	"github.com/glimmervoice/glimmer/internal/config"
)

const validYAML = `
server:
  listen_addr: ":8080"
  log_level: info
providers:
  llm:
    name: openai
    api_key: sk-test
    model: gpt-4o-mini
  stt:
    name: elevenlabs
    api_key: el-test
  tts:
    name: elevenlabs
    api_key: el-test
    options:
      output_format: pcm_22050
audio:
  pre_buffer_bytes: 8192
  compact_after_bytes: 100000
  residual_bytes: 1000
  poll_interval: 100ms
  settle: 500ms
  block_frames: 2048
  capture:
    sample_rate: 44100
    channels: 1
conversation:
  system_prompt: "You are a concise voice assistant."
  max_tokens: 1000
  temperature: 0
  history_limit: 40
  voice:
    voice_id: "21m00Tcm4TlvDq8ikWAM"
    stability: 0.5
    similarity_boost: 0.8
`

func TestLoadFromReader_Valid(t *testing.T) {
	cfg, err := config.LoadFromReader(strings.NewReader(validYAML))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}

	if cfg.Server.ListenAddr != ":8080" {
		t.Errorf("listen_addr = %q", cfg.Server.ListenAddr)
	}
	if cfg.Server.LogLevel != config.LogInfo {
		t.Errorf("log_level = %q", cfg.Server.LogLevel)
	}
	if cfg.Providers.LLM.Name != "openai" || cfg.Providers.LLM.Model != "gpt-4o-mini" {
		t.Errorf("llm entry = %+v", cfg.Providers.LLM)
	}
	if got := cfg.Providers.TTS.Options["output_format"]; got != "pcm_22050" {
		t.Errorf("tts output_format option = %v", got)
	}
	if cfg.Audio.PollInterval != 100*time.Millisecond {
		t.Errorf("poll_interval = %s", cfg.Audio.PollInterval)
	}
	if cfg.Audio.Settle != 500*time.Millisecond {
		t.Errorf("settle = %s", cfg.Audio.Settle)
	}
	if cfg.Conversation.Voice.Stability != 0.5 {
		t.Errorf("stability = %v", cfg.Conversation.Voice.Stability)
	}
}

func TestLoadFromReader_BufferConfigConversion(t *testing.T) {
	cfg, err := config.LoadFromReader(strings.NewReader(validYAML))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}
	bc := cfg.Audio.BufferConfig()
	if bc.PreBufferBytes != 8192 || bc.ResidualBytes != 1000 || bc.Settle != 500*time.Millisecond {
		t.Errorf("buffer config = %+v", bc)
	}
	f := cfg.Audio.Capture.Format()
	if f.SampleRate != 44100 || f.Channels != 1 {
		t.Errorf("capture format = %s", f)
	}
}

func TestLoadFromReader_UnknownFieldRejected(t *testing.T) {
	yaml := strings.Replace(validYAML, "system_prompt:", "system_promt:", 1)
	if _, err := config.LoadFromReader(strings.NewReader(yaml)); err == nil {
		t.Fatal("misspelled field should be rejected")
	}
}

func TestValidate_JoinsAllFailures(t *testing.T) {
	cfg := &config.Config{}
	cfg.Server.LogLevel = "verbose"
	cfg.Conversation.Temperature = 3
	cfg.Conversation.Voice.Stability = 1.5

	err := config.Validate(cfg)
	if err == nil {
		t.Fatal("expected validation errors")
	}
	for _, want := range []string{"log_level", "temperature", "stability", "providers.llm.name"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %s", err, want)
		}
	}
}

func TestValidate_CaptureRanges(t *testing.T) {
	cfg, err := config.LoadFromReader(strings.NewReader(validYAML))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}

	cfg.Audio.Capture.Channels = 3
	if err := config.Validate(cfg); err == nil || !strings.Contains(err.Error(), "channels") {
		t.Errorf("3-channel capture: err = %v", err)
	}

	cfg.Audio.Capture = config.CaptureConfig{}
	if err := config.Validate(cfg); err != nil {
		t.Errorf("zero capture config should validate (defaults apply downstream): %v", err)
	}
}

func TestValidate_Fallbacks(t *testing.T) {
	cfg, err := config.LoadFromReader(strings.NewReader(validYAML))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}

	cfg.Providers.LLM.Fallbacks = []config.ProviderEntry{{Name: "ollama", Model: "llama3.2"}}
	if err := config.Validate(cfg); err != nil {
		t.Errorf("valid fallback rejected: %v", err)
	}

	cfg.Providers.LLM.Fallbacks[0].Name = ""
	if err := config.Validate(cfg); err == nil || !strings.Contains(err.Error(), "fallbacks[0].name") {
		t.Errorf("nameless fallback: err = %v", err)
	}

	cfg.Providers.LLM.Fallbacks[0] = config.ProviderEntry{
		Name:      "ollama",
		Fallbacks: []config.ProviderEntry{{Name: "groq"}},
	}
	if err := config.Validate(cfg); err == nil || !strings.Contains(err.Error(), "may not declare") {
		t.Errorf("nested fallback: err = %v", err)
	}
}

func TestValidate_TLSRequiresBothFiles(t *testing.T) {
	cfg, err := config.LoadFromReader(strings.NewReader(validYAML))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}
	cfg.Server.TLS = &config.TLSConfig{CertFile: "cert.pem"}
	if err := config.Validate(cfg); err == nil || !strings.Contains(err.Error(), "tls") {
		t.Errorf("partial TLS config: err = %v", err)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := config.Load("/nonexistent/glimmer.yaml"); err == nil {
		t.Fatal("expected error for missing file")
	}
}
