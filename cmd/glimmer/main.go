// Command glimmer is a push-to-talk voice assistant: it records an utterance
// from the microphone, transcribes it, streams a model completion through
// speech synthesis, and plays the reply while the model is still generating.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	anyllmlib "github.com/mozilla-ai/any-llm-go"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/glimmervoice/glimmer/internal/config"
	"github.com/glimmervoice/glimmer/internal/convo"
	"github.com/glimmervoice/glimmer/internal/health"
	"github.com/glimmervoice/glimmer/internal/observe"
	"github.com/glimmervoice/glimmer/internal/resilience"
	"github.com/glimmervoice/glimmer/pkg/audio"
	"github.com/glimmervoice/glimmer/pkg/audio/codec"
	padevice "github.com/glimmervoice/glimmer/pkg/audio/portaudio"
	"github.com/glimmervoice/glimmer/pkg/provider/llm"
	"github.com/glimmervoice/glimmer/pkg/provider/llm/anyllm"
	oaillm "github.com/glimmervoice/glimmer/pkg/provider/llm/openai"
	"github.com/glimmervoice/glimmer/pkg/provider/stt"
	sttel "github.com/glimmervoice/glimmer/pkg/provider/stt/elevenlabs"
	"github.com/glimmervoice/glimmer/pkg/provider/stt/whisper"
	"github.com/glimmervoice/glimmer/pkg/provider/tts"
	"github.com/glimmervoice/glimmer/pkg/provider/tts/elevenlabs"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "glimmer: config file %q not found; copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "glimmer: %v\n", err)
		}
		return 1
	}

	logger, logLevel := newLogger(cfg.Server.LogLevel)
	slog.SetDefault(logger)

	slog.Info("glimmer starting",
		"config", *configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Telemetry providers; the Prometheus exporter feeds /metrics.
	otelShutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{ServiceName: "glimmer"})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := otelShutdown(shutdownCtx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()
	metrics := observe.DefaultMetrics()

	// Provider registry and instantiation.
	reg := config.NewRegistry()
	registerBuiltinProviders(reg)

	llmP, err := buildLLM(reg, cfg.Providers.LLM)
	if err != nil {
		slog.Error("failed to create llm provider", "name", cfg.Providers.LLM.Name, "err", err)
		return 1
	}
	sttP, err := buildSTT(reg, cfg.Providers.STT)
	if err != nil {
		slog.Error("failed to create stt provider", "name", cfg.Providers.STT.Name, "err", err)
		return 1
	}
	ttsP, err := buildTTS(reg, cfg.Providers.TTS)
	if err != nil {
		slog.Error("failed to create tts provider", "name", cfg.Providers.TTS.Name, "err", err)
		return 1
	}

	voice, err := resolveVoice(ctx, ttsP, cfg.Conversation.Voice)
	if err != nil {
		slog.Error("failed to resolve voice", "err", err)
		return 1
	}
	slog.Info("voice selected", "voice_id", voice.ID, "name", voice.Name)

	newDecoder, err := decoderFactory(ttsP)
	if err != nil {
		slog.Error("unsupported synthesis output format", "err", err)
		return 1
	}

	// Audio hardware.
	if err := padevice.Initialize(); err != nil {
		slog.Error("failed to initialise audio subsystem", "err", err)
		return 1
	}
	defer func() {
		if err := padevice.Terminate(); err != nil {
			slog.Warn("audio subsystem shutdown error", "err", err)
		}
	}()

	orch, err := convo.New(sttP, llmP, ttsP, &padevice.InputDevice{}, &padevice.OutputDevice{}, metrics, convo.Config{
		SystemPrompt:  cfg.Conversation.SystemPrompt,
		MaxTokens:     cfg.Conversation.MaxTokens,
		Temperature:   cfg.Conversation.Temperature,
		Voice:         voice,
		CaptureFormat: cfg.Audio.Capture.Format(),
		Buffer:        cfg.Audio.BufferConfig(),
		BlockFrames:   cfg.Audio.BlockFrames,
		HistoryLimit:  cfg.Conversation.HistoryLimit,
		NewDecoder:    newDecoder,
	})
	if err != nil {
		slog.Error("failed to initialise conversation", "err", err)
		return 1
	}

	// Watch the config file so persona, decoding, voice, and log level
	// changes apply without a restart.
	watcher, err := config.NewWatcher(*configPath, func(old, next *config.Config) {
		applyReload(orch, logLevel, config.Diff(old, next), next, voice)
	})
	if err != nil {
		slog.Warn("config reload disabled", "err", err)
	} else {
		defer watcher.Stop()
	}

	// Operational HTTP surface: probes and metrics.
	var httpShutdown func(context.Context) error
	if cfg.Server.ListenAddr != "" {
		httpShutdown = serveHTTP(cfg.Server, metrics, orch, ttsP)
	}

	printStartupSummary(cfg, voice)
	slog.Info("ready, press Ctrl+C to quit")

	runLoop(ctx, orch)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if httpShutdown != nil {
		if err := httpShutdown(shutdownCtx); err != nil {
			slog.Warn("http shutdown error", "err", err)
		}
	}
	slog.Info("goodbye")
	return 0
}

// applyReload pushes hot-reloadable config changes into the running process.
// The resolved voice keeps its ID when the new config leaves voice_id empty.
func applyReload(orch *convo.Orchestrator, logLevel *slog.LevelVar, d config.ConfigDiff, next *config.Config, resolved tts.VoiceProfile) {
	if d.LogLevelChanged {
		logLevel.Set(slogLevel(d.NewLogLevel))
		slog.Info("log level changed", "level", d.NewLogLevel)
	}
	if d.ConversationChanged || d.VoiceChanged {
		conv := next.Conversation
		voice := tts.VoiceProfile{
			ID:              conv.Voice.VoiceID,
			Stability:       conv.Voice.Stability,
			SimilarityBoost: conv.Voice.SimilarityBoost,
		}
		if voice.ID == "" {
			voice.ID = resolved.ID
			voice.Name = resolved.Name
		}
		orch.UpdateSettings(convo.Settings{
			SystemPrompt: conv.SystemPrompt,
			MaxTokens:    conv.MaxTokens,
			Temperature:  conv.Temperature,
			HistoryLimit: conv.HistoryLimit,
			Voice:        voice,
		})
		slog.Info("conversation settings reloaded")
	}
	if d.RestartRequired {
		slog.Warn("provider, audio, or server settings changed; restart to apply them")
	}
}

// runLoop runs conversation turns until the context ends.
func runLoop(ctx context.Context, orch *convo.Orchestrator) {
	trigger := &stdinTrigger{in: bufio.NewReader(os.Stdin)}
	for {
		turn, err := orch.RunTurn(ctx, trigger)
		switch {
		case err == nil:
			fmt.Printf("\nyou:       %s\n", turn.User)
			fmt.Printf("assistant: %s\n", turn.Assistant)
			if turn.TimeToFirstAudio > 0 {
				fmt.Printf("first audio after %s\n", turn.TimeToFirstAudio.Round(time.Millisecond))
			}
		case errors.Is(err, convo.ErrNoSpeech):
			fmt.Println("\n(no speech detected, try again)")
		case ctx.Err() != nil:
			return
		default:
			slog.Error("turn failed", "err", err)
		}
	}
}

// stdinTrigger is the push-to-talk control: Enter starts the recording,
// Enter again ends it.
type stdinTrigger struct {
	in *bufio.Reader
}

func (t *stdinTrigger) AwaitStart(ctx context.Context) error {
	fmt.Print("\npress Enter to talk... ")
	return t.readLine(ctx)
}

func (t *stdinTrigger) AwaitStop(ctx context.Context) error {
	fmt.Print("recording, press Enter to stop... ")
	return t.readLine(ctx)
}

// readLine waits for a newline on stdin or context cancellation. The blocked
// read cannot be interrupted; on cancellation it is abandoned.
func (t *stdinTrigger) readLine(ctx context.Context) error {
	done := make(chan error, 1)
	go func() {
		_, err := t.in.ReadString('\n')
		done <- err
	}()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// serveHTTP starts the probe/metrics server and returns its shutdown func.
func serveHTTP(cfg config.ServerConfig, metrics *observe.Metrics, orch *convo.Orchestrator, ttsP tts.Provider) func(context.Context) error {
	probes := health.New(
		func() any { return orch.Stats() },
		health.Checker{Name: "tts", Check: func(ctx context.Context) error {
			_, err := ttsP.ListVoices(ctx)
			return err
		}},
	)

	mux := http.NewServeMux()
	probes.Register(mux)
	mux.Handle("GET /metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           observe.Middleware(metrics)(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		var err error
		if cfg.TLS != nil {
			err = srv.ListenAndServeTLS(cfg.TLS.CertFile, cfg.TLS.KeyFile)
		} else {
			err = srv.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("http server error", "err", err)
		}
	}()
	slog.Info("http server listening", "addr", cfg.ListenAddr, "tls", cfg.TLS != nil)
	return srv.Shutdown
}

// resolveVoice builds the synthesis voice profile from config, falling back
// to the provider's first available voice when none is configured.
func resolveVoice(ctx context.Context, p tts.Provider, vc config.VoiceConfig) (tts.VoiceProfile, error) {
	profile := tts.VoiceProfile{
		ID:              vc.VoiceID,
		Stability:       vc.Stability,
		SimilarityBoost: vc.SimilarityBoost,
	}
	if profile.ID != "" {
		return profile, nil
	}

	voices, err := p.ListVoices(ctx)
	if err != nil {
		return tts.VoiceProfile{}, fmt.Errorf("list voices: %w", err)
	}
	if len(voices) == 0 {
		return tts.VoiceProfile{}, errors.New("provider reported no voices; set conversation.voice.voice_id")
	}
	first := voices[0]
	first.Stability = vc.Stability
	first.SimilarityBoost = vc.SimilarityBoost
	return first, nil
}

// decoderFactory returns a per-turn decoder constructor matching the
// synthesis provider's wire format. Raw PCM and Opus formats are supported;
// every turn gets a fresh decoder because Opus carries codec state across
// packets.
func decoderFactory(p tts.Provider) (func() (audio.Decoder, error), error) {
	name := "pcm_22050"
	if ep, ok := p.(*elevenlabs.Provider); ok {
		name = ep.OutputFormat()
	}
	kind, rate, err := parseOutputFormat(name)
	if err != nil {
		return nil, err
	}
	switch kind {
	case "pcm":
		f := audio.Format{SampleRate: rate, Channels: 1}
		return func() (audio.Decoder, error) {
			return codec.NewS16LE(f)
		}, nil
	default: // "opus"
		return func() (audio.Decoder, error) {
			return codec.NewOpus(rate, 1)
		}, nil
	}
}

// parseOutputFormat splits a synthesis output format name into its codec and
// sample rate. The service names formats "pcm_22050", "opus_48000_64" and so
// on; a trailing bitrate is irrelevant to decoding and is ignored.
func parseOutputFormat(name string) (kind string, rate int, err error) {
	parts := strings.SplitN(name, "_", 3)
	if len(parts) < 2 {
		return "", 0, fmt.Errorf("output format %q has no sample rate", name)
	}
	if parts[0] != "pcm" && parts[0] != "opus" {
		return "", 0, fmt.Errorf("output format %q is not supported; use a pcm_* or opus_* format", name)
	}
	hz, err := strconv.Atoi(parts[1])
	if err != nil || hz <= 0 {
		return "", 0, fmt.Errorf("output format %q has an invalid sample rate", name)
	}
	return parts[0], hz, nil
}

// buildLLM creates the configured model provider. When fallbacks are declared
// the result is wrapped in a failover group with per-backend circuit breakers.
func buildLLM(reg *config.Registry, entry config.ProviderEntry) (llm.Provider, error) {
	primary, err := reg.CreateLLM(entry)
	if err != nil {
		return nil, err
	}
	if len(entry.Fallbacks) == 0 {
		return primary, nil
	}
	group := resilience.NewLLMFallback(primary, entry.Name, resilience.FallbackConfig{})
	for _, fb := range entry.Fallbacks {
		p, err := reg.CreateLLM(fb)
		if err != nil {
			return nil, fmt.Errorf("fallback %q: %w", fb.Name, err)
		}
		group.AddFallback(fb.Name, p)
		slog.Info("llm fallback registered", "name", fb.Name, "model", fb.Model)
	}
	return group, nil
}

// buildSTT creates the configured transcription provider, wrapped for
// failover when fallbacks are declared.
func buildSTT(reg *config.Registry, entry config.ProviderEntry) (stt.Provider, error) {
	primary, err := reg.CreateSTT(entry)
	if err != nil {
		return nil, err
	}
	if len(entry.Fallbacks) == 0 {
		return primary, nil
	}
	group := resilience.NewSTTFallback(primary, entry.Name, resilience.FallbackConfig{})
	for _, fb := range entry.Fallbacks {
		p, err := reg.CreateSTT(fb)
		if err != nil {
			return nil, fmt.Errorf("fallback %q: %w", fb.Name, err)
		}
		group.AddFallback(fb.Name, p)
		slog.Info("stt fallback registered", "name", fb.Name, "model", fb.Model)
	}
	return group, nil
}

// buildTTS creates the configured synthesis provider, wrapped for failover
// when fallbacks are declared. Note that fallback voices are provider-specific:
// a voice ID resolved against the primary will not exist on a different
// backend, so fallbacks are most useful between accounts of the same service.
func buildTTS(reg *config.Registry, entry config.ProviderEntry) (tts.Provider, error) {
	primary, err := reg.CreateTTS(entry)
	if err != nil {
		return nil, err
	}
	if len(entry.Fallbacks) == 0 {
		return primary, nil
	}
	group := resilience.NewTTSFallback(primary, entry.Name, resilience.FallbackConfig{})
	for _, fb := range entry.Fallbacks {
		p, err := reg.CreateTTS(fb)
		if err != nil {
			return nil, fmt.Errorf("fallback %q: %w", fb.Name, err)
		}
		group.AddFallback(fb.Name, p)
		slog.Info("tts fallback registered", "name", fb.Name, "model", fb.Model)
	}
	return group, nil
}

// registerBuiltinProviders wires all built-in provider factories into reg.
func registerBuiltinProviders(reg *config.Registry) {
	// The openai name binds the native client; the remaining model services
	// share the any-llm backend with optional APIKey and BaseURL.
	reg.RegisterLLM("openai", func(entry config.ProviderEntry) (llm.Provider, error) {
		var opts []oaillm.Option
		if entry.BaseURL != "" {
			opts = append(opts, oaillm.WithBaseURL(entry.BaseURL))
		}
		if org := optString(entry.Options, "organization"); org != "" {
			opts = append(opts, oaillm.WithOrganization(org))
		}
		return oaillm.New(entry.APIKey, entry.Model, opts...)
	})
	for _, providerName := range []string{
		"anthropic", "gemini", "deepseek", "mistral", "groq", "llamacpp", "llamafile",
	} {
		reg.RegisterLLM(providerName, func(entry config.ProviderEntry) (llm.Provider, error) {
			var opts []anyllmlib.Option
			if entry.APIKey != "" {
				opts = append(opts, anyllmlib.WithAPIKey(entry.APIKey))
			}
			if entry.BaseURL != "" {
				opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
			}
			return anyllm.New(providerName, entry.Model, opts...)
		})
	}

	// ollama is a local server; it uses BaseURL for the address, not an API key.
	reg.RegisterLLM("ollama", func(entry config.ProviderEntry) (llm.Provider, error) {
		var opts []anyllmlib.Option
		if entry.BaseURL != "" {
			opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
		}
		return anyllm.NewOllama(entry.Model, opts...)
	})

	reg.RegisterSTT("elevenlabs", func(entry config.ProviderEntry) (stt.Provider, error) {
		var opts []sttel.Option
		if entry.Model != "" {
			opts = append(opts, sttel.WithModel(entry.Model))
		}
		if entry.BaseURL != "" {
			opts = append(opts, sttel.WithEndpoint(entry.BaseURL))
		}
		return sttel.New(entry.APIKey, opts...)
	})
	reg.RegisterSTT("whisper", func(entry config.ProviderEntry) (stt.Provider, error) {
		var opts []whisper.Option
		if entry.Model != "" {
			opts = append(opts, whisper.WithModel(entry.Model))
		}
		if lang := optString(entry.Options, "language"); lang != "" {
			opts = append(opts, whisper.WithLanguage(lang))
		}
		return whisper.New(entry.BaseURL, opts...)
	})

	reg.RegisterTTS("elevenlabs", func(entry config.ProviderEntry) (tts.Provider, error) {
		var opts []elevenlabs.Option
		if entry.Model != "" {
			opts = append(opts, elevenlabs.WithModel(entry.Model))
		}
		if outputFmt := optString(entry.Options, "output_format"); outputFmt != "" {
			opts = append(opts, elevenlabs.WithOutputFormat(outputFmt))
		}
		return elevenlabs.New(entry.APIKey, opts...)
	})
}

func printStartupSummary(cfg *config.Config, voice tts.VoiceProfile) {
	fmt.Println("╔═══════════════════════════════════════╗")
	fmt.Println("║         Glimmer — startup summary     ║")
	fmt.Println("╠═══════════════════════════════════════╣")
	printProvider("LLM", cfg.Providers.LLM.Name, cfg.Providers.LLM.Model)
	printProvider("STT", cfg.Providers.STT.Name, cfg.Providers.STT.Model)
	printProvider("TTS", cfg.Providers.TTS.Name, cfg.Providers.TTS.Model)
	printProvider("Voice", voice.ID, "")
	if cfg.Server.ListenAddr != "" {
		fmt.Printf("║  Listen addr  : %-22s ║\n", cfg.Server.ListenAddr)
	}
	fmt.Println("╚═══════════════════════════════════════╝")
}

func printProvider(kind, name, model string) {
	value := name
	if value == "" {
		value = "(not configured)"
	} else if model != "" {
		value = name + " / " + model
	}
	if len(value) > 22 {
		value = value[:19] + "…"
	}
	fmt.Printf("║  %-12s : %-22s ║\n", kind, value)
}

// newLogger builds the process logger. The returned LevelVar allows the
// verbosity to be changed at runtime on config reload.
func newLogger(level config.LogLevel) (*slog.Logger, *slog.LevelVar) {
	lvl := new(slog.LevelVar)
	lvl.Set(slogLevel(level))
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})), lvl
}

func slogLevel(level config.LogLevel) slog.Level {
	switch level {
	case config.LogDebug:
		return slog.LevelDebug
	case config.LogWarn:
		return slog.LevelWarn
	case config.LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// optString extracts a string value from a provider Options map.
// Returns "" if the map is nil, the key is absent, or the value is not a string.
func optString(opts map[string]any, key string) string {
	if opts == nil {
		return ""
	}
	s, _ := opts[key].(string)
	return s
}
