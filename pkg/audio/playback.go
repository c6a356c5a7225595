package audio

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultBlockFrames is the per-callback block size requested from the
// output device, in frames (samples per channel).
const DefaultBlockFrames = 2048

// ErrNotPrepared is returned by Drain when the engine was never armed.
var ErrNotPrepared = errors.New("audio: playback engine not prepared")

// State is the playback engine lifecycle state.
type State int32

const (
	StateIdle State = iota
	StatePreBuffering
	StatePlaying
	StateDraining
	StateStopped
)

// String returns the human-readable name of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StatePreBuffering:
		return "PRE_BUFFERING"
	case StatePlaying:
		return "PLAYING"
	case StateDraining:
		return "DRAINING"
	case StateStopped:
		return "STOPPED"
	default:
		return "UNKNOWN"
	}
}

// PullFunc fills out with little-endian float32 sample bytes. It is invoked
// by the output device on its own real-time thread and must not block.
type PullFunc func(out []byte)

// OutputDevice opens playback streams on an audio output.
//
// Implementations wrap a platform audio subsystem (see audio/portaudio) or a
// test double (see audio/mock).
type OutputDevice interface {
	// Open prepares a playback stream at the given format. The device calls
	// pull at a fixed cadence with a buffer of blockFrames frames once the
	// stream is started.
	Open(format Format, blockFrames int, pull PullFunc) (OutputStream, error)
}

// OutputStream is an open playback stream on an [OutputDevice].
type OutputStream interface {
	// Start begins invoking the pull callback.
	Start() error

	// Stop halts callback invocations. The stream may be restarted.
	Stop() error

	// Close releases the stream. Stop/Close are idempotent.
	Close() error
}

// Engine drives a [FrameBuffer] to an [OutputDevice] at the stream's native
// rate, discovered from the buffer's first decoded frame.
//
// Lifecycle: Idle → PreBuffering ([Engine.Prepare]) → Playing (the buffer
// write that crosses the pre-buffer threshold) → Draining → Stopped
// ([Engine.Drain]). The engine never closes the device on its own; draining
// is always an explicit caller action so the last buffered audio is not cut
// off. [Engine.Close] is the abort path.
type Engine struct {
	dev         OutputDevice
	fb          *FrameBuffer
	blockFrames int

	mu       sync.Mutex
	state    State
	stream   OutputStream
	startErr error

	firstPlayed atomic.Bool
	firstAt     atomic.Int64 // UnixNano, valid once firstPlayed is true
}

// EngineOption configures an [Engine].
type EngineOption func(*Engine)

// WithBlockFrames overrides the device callback block size.
// Default is [DefaultBlockFrames].
func WithBlockFrames(n int) EngineOption {
	return func(e *Engine) {
		if n > 0 {
			e.blockFrames = n
		}
	}
}

// NewEngine creates an Engine that plays fb through dev. The engine
// registers itself as fb's ready callback; fb must not have another one.
func NewEngine(dev OutputDevice, fb *FrameBuffer, opts ...EngineOption) *Engine {
	e := &Engine{
		dev:         dev,
		fb:          fb,
		blockFrames: DefaultBlockFrames,
		state:       StateIdle,
	}
	for _, o := range opts {
		o(e)
	}
	fb.OnReady(e.begin)
	return e
}

// Prepare arms the engine: Idle → PreBuffering. Until the buffer banks the
// pre-buffer threshold no device is opened and no audio plays.
func (e *Engine) Prepare() {
	e.mu.Lock()
	if e.state == StateIdle {
		e.state = StatePreBuffering
	}
	e.mu.Unlock()
}

// begin runs synchronously on whichever goroutine's buffer write crossed the
// pre-buffer threshold. It opens and starts the output stream exactly once.
func (e *Engine) begin(f Format) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != StatePreBuffering {
		return
	}

	stream, err := e.dev.Open(f, e.blockFrames, e.pull)
	if err != nil {
		e.startErr = fmt.Errorf("audio: open output device (%s): %w", f, err)
		return
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		e.startErr = fmt.Errorf("audio: start output stream: %w", err)
		return
	}
	e.stream = stream
	e.state = StatePlaying
}

// pull is the device callback. Steady state it allocates nothing and never
// blocks beyond the buffer's copy-sized critical section.
func (e *Engine) pull(out []byte) {
	if e.firstPlayed.CompareAndSwap(false, true) {
		e.firstAt.Store(time.Now().UnixNano())
	}
	e.fb.ReadInto(out)
}

// FirstAudio returns the wall-clock time of the first callback invocation,
// the moment the first sample went to the hardware, and whether it has
// happened yet.
func (e *Engine) FirstAudio() (time.Time, bool) {
	if !e.firstPlayed.Load() {
		return time.Time{}, false
	}
	return time.Unix(0, e.firstAt.Load()), true
}

// State returns the current lifecycle state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Err returns the device error recorded when the play transition failed, or
// nil. Device errors are fatal and never retried.
func (e *Engine) Err() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.startErr
}

// Drain waits for the buffer to play out (per the buffer's residual/settle
// policy), then stops and closes the output stream: Playing → Draining →
// Stopped. If the engine never left PreBuffering because the producer
// finished without banking the threshold, Drain just tears the session down.
//
// Returns the recorded device error, ctx.Err() on cancellation, or nil.
func (e *Engine) Drain(ctx context.Context) error {
	e.mu.Lock()
	switch e.state {
	case StateIdle:
		e.mu.Unlock()
		return ErrNotPrepared
	case StateStopped:
		e.mu.Unlock()
		return nil
	case StatePreBuffering:
		err := e.startErr
		e.state = StateStopped
		e.mu.Unlock()
		e.fb.Close()
		return err
	}
	e.state = StateDraining
	e.mu.Unlock()

	if err := e.fb.WaitUntilDone(ctx); err != nil {
		e.Close()
		return err
	}
	return e.Close()
}

// Close immediately stops and closes the output stream and closes the
// buffer against further writes. Safe to call multiple times and from any
// state; the abort path for cancelled or failed turns.
func (e *Engine) Close() error {
	e.mu.Lock()
	stream := e.stream
	e.stream = nil
	e.state = StateStopped
	e.mu.Unlock()

	e.fb.Close()
	if stream == nil {
		return nil
	}
	if err := stream.Stop(); err != nil {
		stream.Close()
		return fmt.Errorf("audio: stop output stream: %w", err)
	}
	if err := stream.Close(); err != nil {
		return fmt.Errorf("audio: close output stream: %w", err)
	}
	return nil
}
