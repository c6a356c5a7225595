// Package convo runs the voice conversation loop: capture an utterance,
// transcribe it, stream a model completion into speech synthesis, and play
// the result while measuring the silence the user actually experiences.
package convo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/glimmervoice/glimmer/internal/observe"
	"github.com/glimmervoice/glimmer/internal/synth"
	"github.com/glimmervoice/glimmer/pkg/audio"
	"github.com/glimmervoice/glimmer/pkg/provider/llm"
	"github.com/glimmervoice/glimmer/pkg/provider/stt"
	"github.com/glimmervoice/glimmer/pkg/provider/tts"
)

const (
	// defaultHistoryLimit bounds the conversation history passed to the
	// model, in messages (user and assistant combined).
	defaultHistoryLimit = 40

	defaultMaxTokens = 1000
)

var (
	// ErrTurnActive is returned by RunTurn while another turn is in flight.
	ErrTurnActive = errors.New("convo: turn already active")

	// ErrNoSpeech is returned when transcription produced no text. The turn
	// is abandoned without contacting the model.
	ErrNoSpeech = errors.New("convo: no speech detected")
)

// Trigger supplies the utterance boundaries. AwaitStart blocks until the
// user wants to begin speaking, AwaitStop until they are done.
type Trigger interface {
	AwaitStart(ctx context.Context) error
	AwaitStop(ctx context.Context) error
}

// Config tunes a conversation.
type Config struct {
	// SystemPrompt is injected ahead of the history on every completion.
	SystemPrompt string

	// MaxTokens caps each model reply. Zero selects the default (1000).
	MaxTokens int

	// Temperature is forwarded verbatim to the model; 0 is greedy decoding.
	Temperature float64

	// Voice selects the synthesis voice.
	Voice tts.VoiceProfile

	// CaptureFormat is the microphone format. Zero selects the capture
	// default (44.1 kHz mono).
	CaptureFormat audio.Format

	// Buffer tunes the playback buffer. The zero value selects the
	// package defaults.
	Buffer audio.BufferConfig

	// BlockFrames overrides the device callback block size when positive.
	BlockFrames int

	// HistoryLimit bounds the history sent to the model, in messages.
	// Zero selects the default (40).
	HistoryLimit int

	// NewDecoder returns a fresh frame decoder per turn. Decoders carry
	// codec state, so they are never shared across turns.
	NewDecoder func() (audio.Decoder, error)
}

// Settings are the conversation parameters that may change between turns.
type Settings struct {
	SystemPrompt string
	MaxTokens    int
	Temperature  float64
	HistoryLimit int
	Voice        tts.VoiceProfile
}

// Turn is one completed exchange.
type Turn struct {
	// User is the transcribed utterance.
	User string

	// Assistant is the model's full reply text.
	Assistant string

	// TimeToFirstAudio is the delay between the end of capture and the
	// first synthesized sample reaching the output device. Zero when the
	// reply produced no audio.
	TimeToFirstAudio time.Duration
}

// Orchestrator drives complete conversation turns over injected providers
// and devices. Safe for concurrent use, but only one turn may be in flight
// at a time; concurrent RunTurn calls beyond the first fail fast.
type Orchestrator struct {
	stt     stt.Provider
	llm     llm.Provider
	tts     tts.Provider
	input   audio.InputDevice
	output  audio.OutputDevice
	metrics *observe.Metrics
	cfg     Config

	active atomic.Bool

	mu      sync.Mutex
	history []llm.Message
	stats   Stats
}

// Stats is a snapshot of conversation progress, served on the status
// endpoint.
type Stats struct {
	// Turns is the number of completed exchanges.
	Turns int `json:"turns"`

	// LastTimeToFirstAudio is the latency of the most recent reply that
	// produced audio.
	LastTimeToFirstAudio time.Duration `json:"last_time_to_first_audio"`

	// TurnActive reports whether a turn is in flight right now.
	TurnActive bool `json:"turn_active"`
}

// New creates an Orchestrator. All providers, both devices, and
// cfg.NewDecoder are required.
func New(sttP stt.Provider, llmP llm.Provider, ttsP tts.Provider, input audio.InputDevice, output audio.OutputDevice, metrics *observe.Metrics, cfg Config) (*Orchestrator, error) {
	switch {
	case sttP == nil:
		return nil, errors.New("convo: stt provider is required")
	case llmP == nil:
		return nil, errors.New("convo: llm provider is required")
	case ttsP == nil:
		return nil, errors.New("convo: tts provider is required")
	case input == nil:
		return nil, errors.New("convo: input device is required")
	case output == nil:
		return nil, errors.New("convo: output device is required")
	case cfg.NewDecoder == nil:
		return nil, errors.New("convo: decoder factory is required")
	}
	if metrics == nil {
		metrics = observe.DefaultMetrics()
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = defaultMaxTokens
	}
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = defaultHistoryLimit
	}
	return &Orchestrator{
		stt:     sttP,
		llm:     llmP,
		tts:     ttsP,
		input:   input,
		output:  output,
		metrics: metrics,
		cfg:     cfg,
	}, nil
}

// UpdateSettings replaces the prompt, decoding, and voice settings. The new
// values apply from the next turn onward; a turn in flight keeps the settings
// it started with.
func (o *Orchestrator) UpdateSettings(s Settings) {
	if s.MaxTokens <= 0 {
		s.MaxTokens = defaultMaxTokens
	}
	if s.HistoryLimit <= 0 {
		s.HistoryLimit = defaultHistoryLimit
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	o.cfg.SystemPrompt = s.SystemPrompt
	o.cfg.MaxTokens = s.MaxTokens
	o.cfg.Temperature = s.Temperature
	o.cfg.HistoryLimit = s.HistoryLimit
	o.cfg.Voice = s.Voice
}

// settings snapshots the reloadable parameters for one turn.
func (o *Orchestrator) settings() Settings {
	o.mu.Lock()
	defer o.mu.Unlock()
	return Settings{
		SystemPrompt: o.cfg.SystemPrompt,
		MaxTokens:    o.cfg.MaxTokens,
		Temperature:  o.cfg.Temperature,
		HistoryLimit: o.cfg.HistoryLimit,
		Voice:        o.cfg.Voice,
	}
}

// RunTurn executes one full turn: wait for the trigger edges while recording,
// transcribe, stream the completion through synthesis, and play the reply to
// the end. It returns the completed exchange, or ErrNoSpeech when the
// recording transcribed to nothing.
func (o *Orchestrator) RunTurn(ctx context.Context, trigger Trigger) (*Turn, error) {
	if !o.active.CompareAndSwap(false, true) {
		return nil, ErrTurnActive
	}
	defer o.active.Store(false)

	o.metrics.ActiveTurns.Add(ctx, 1)
	defer o.metrics.ActiveTurns.Add(ctx, -1)

	clip, err := o.capture(ctx, trigger)
	if err != nil {
		o.metrics.RecordTurn(ctx, "error")
		return nil, err
	}
	captureDone := time.Now()

	sttStart := time.Now()
	userText, err := o.stt.Transcribe(ctx, clip)
	o.metrics.STTDuration.Record(ctx, time.Since(sttStart).Seconds())
	if err != nil {
		o.metrics.RecordTurn(ctx, "error")
		return nil, fmt.Errorf("convo: transcribe: %w", err)
	}
	if strings.TrimSpace(userText) == "" {
		o.metrics.RecordTurn(ctx, "no_speech")
		return nil, ErrNoSpeech
	}
	slog.Info("utterance transcribed",
		"chars", len(userText),
		"clip_duration", clip.Duration,
		"stt_duration", time.Since(sttStart),
	)

	turn, err := o.respond(ctx, userText, captureDone, o.settings())
	if err != nil {
		status := "error"
		if errors.Is(err, context.Canceled) {
			status = "cancelled"
		}
		o.metrics.RecordTurn(ctx, status)
		return nil, err
	}

	o.metrics.TurnDuration.Record(ctx, time.Since(captureDone).Seconds())
	o.metrics.RecordTurn(ctx, "ok")
	o.remember(turn)
	return turn, nil
}

// capture records one utterance between the trigger's start and stop edges.
func (o *Orchestrator) capture(ctx context.Context, trigger Trigger) (*audio.Clip, error) {
	if err := trigger.AwaitStart(ctx); err != nil {
		return nil, fmt.Errorf("convo: await start: %w", err)
	}

	sess := audio.NewCaptureSession(o.input, o.cfg.CaptureFormat)
	if err := sess.Start(); err != nil {
		return nil, fmt.Errorf("convo: start capture: %w", err)
	}

	if err := trigger.AwaitStop(ctx); err != nil {
		sess.Stop()
		return nil, fmt.Errorf("convo: await stop: %w", err)
	}
	clip, err := sess.Stop()
	if err != nil {
		return nil, fmt.Errorf("convo: stop capture: %w", err)
	}
	return clip, nil
}

// respond streams the model's reply through synthesis and plays it out.
func (o *Orchestrator) respond(ctx context.Context, userText string, captureDone time.Time, set Settings) (*Turn, error) {
	dec, err := o.cfg.NewDecoder()
	if err != nil {
		return nil, fmt.Errorf("convo: create decoder: %w", err)
	}
	fb := audio.NewFrameBuffer(dec, o.cfg.Buffer)

	var engOpts []audio.EngineOption
	if o.cfg.BlockFrames > 0 {
		engOpts = append(engOpts, audio.WithBlockFrames(o.cfg.BlockFrames))
	}
	eng := audio.NewEngine(o.output, fb, engOpts...)
	eng.Prepare()

	bridge := synth.NewBridge(o.tts, set.Voice)
	textCh := make(chan string, 64)

	var reply strings.Builder
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer close(textCh)
		return o.forwardCompletion(gctx, userText, set, textCh, &reply)
	})
	g.Go(func() error {
		return bridge.Run(gctx, textCh, fb)
	})
	err = g.Wait()
	o.metrics.RecordDroppedFrames(ctx, bridge.Dropped())
	if err != nil {
		// Abort playback before surfacing the failure so a half-buffered
		// reply does not keep playing underneath the error.
		eng.Close()
		return nil, err
	}

	if err := eng.Drain(ctx); err != nil {
		return nil, fmt.Errorf("convo: drain playback: %w", err)
	}

	turn := &Turn{User: userText, Assistant: reply.String()}
	if at, ok := eng.FirstAudio(); ok {
		turn.TimeToFirstAudio = at.Sub(captureDone)
		o.metrics.TimeToFirstAudio.Record(ctx, turn.TimeToFirstAudio.Seconds())
		slog.Info("reply played",
			"time_to_first_audio", turn.TimeToFirstAudio,
			"reply_chars", reply.Len(),
			"dropped_frames", bridge.Dropped(),
		)
	} else {
		slog.Info("reply produced no audio", "reply_chars", reply.Len())
	}
	return turn, nil
}

// forwardCompletion streams the model's reply, forwarding each chunk's text
// to out the moment it arrives. Partial sentences are intentional: the
// synthesis service begins speaking before the model has finished thinking.
func (o *Orchestrator) forwardCompletion(ctx context.Context, userText string, set Settings, out chan<- string, reply *strings.Builder) error {
	req := llm.CompletionRequest{
		SystemPrompt: set.SystemPrompt,
		Messages:     append(o.snapshotHistory(), llm.Message{Role: "user", Content: userText}),
		Temperature:  set.Temperature,
		MaxTokens:    set.MaxTokens,
	}

	chunks, err := o.llm.StreamCompletion(ctx, req)
	if err != nil {
		return fmt.Errorf("convo: start completion: %w", err)
	}

	for chunk := range chunks {
		if chunk.FinishReason == "error" {
			return fmt.Errorf("convo: completion failed: %s", chunk.Text)
		}
		if chunk.Text == "" {
			continue
		}
		reply.WriteString(chunk.Text)
		select {
		case out <- chunk.Text:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// remember appends the exchange to the bounded history.
func (o *Orchestrator) remember(turn *Turn) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.stats.Turns++
	if turn.TimeToFirstAudio > 0 {
		o.stats.LastTimeToFirstAudio = turn.TimeToFirstAudio
	}
	o.history = append(o.history,
		llm.Message{Role: "user", Content: turn.User},
		llm.Message{Role: "assistant", Content: turn.Assistant},
	)
	if over := len(o.history) - o.cfg.HistoryLimit; over > 0 {
		o.history = append(o.history[:0], o.history[over:]...)
	}
}

// snapshotHistory returns a copy of the current history.
func (o *Orchestrator) snapshotHistory() []llm.Message {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]llm.Message(nil), o.history...)
}

// History returns the conversation so far as alternating user/assistant
// messages, oldest first.
func (o *Orchestrator) History() []llm.Message {
	return o.snapshotHistory()
}

// Stats returns a snapshot of conversation progress.
func (o *Orchestrator) Stats() Stats {
	o.mu.Lock()
	s := o.stats
	o.mu.Unlock()
	s.TurnActive = o.active.Load()
	return s
}
