package audio

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

const (
	// DefaultPreBufferBytes is the minimum banked lead before playback may
	// start. Starting earlier causes audible pops from underruns.
	DefaultPreBufferBytes = 8192

	// DefaultCompactAfterBytes is how far the read cursor may advance before
	// consumed bytes are discarded to bound memory on long streams.
	DefaultCompactAfterBytes = 100_000

	// DefaultResidualBytes is the remaining-byte level below which the stream
	// counts as effectively played out. Not zero: the final frame may carry
	// padding that never aligns with a block boundary.
	DefaultResidualBytes = 1000

	// DefaultPollInterval is the cadence at which WaitUntilDone samples the
	// remaining-byte level.
	DefaultPollInterval = 100 * time.Millisecond

	// DefaultSettle is how long the remaining-byte level must stay below the
	// residual threshold before WaitUntilDone returns. It covers audio still
	// rendering from the device driver's own internal buffer.
	DefaultSettle = 500 * time.Millisecond
)

var (
	// ErrDecode wraps codec failures on individual frames. Such frames are
	// expected during live chunked streaming and are safe to drop.
	ErrDecode = errors.New("audio: undecodable frame")

	// ErrFormatChange is returned when a frame decodes to a different sample
	// rate or channel count than the stream was locked to. Fatal: the buffer
	// never resamples silently.
	ErrFormatChange = errors.New("audio: stream format changed mid-session")

	// ErrBufferClosed is returned by Push after Close. It rejects writes from
	// a stale synthesis bridge whose playback session was already torn down.
	ErrBufferClosed = errors.New("audio: buffer closed")
)

// BufferConfig tunes a [FrameBuffer]. The zero value selects the defaults
// above; all thresholds are in bytes of the native float32 representation.
type BufferConfig struct {
	PreBufferBytes    int
	CompactAfterBytes int
	ResidualBytes     int
	PollInterval      time.Duration
	Settle            time.Duration
}

func (c BufferConfig) withDefaults() BufferConfig {
	if c.PreBufferBytes <= 0 {
		c.PreBufferBytes = DefaultPreBufferBytes
	}
	if c.CompactAfterBytes <= 0 {
		c.CompactAfterBytes = DefaultCompactAfterBytes
	}
	if c.ResidualBytes <= 0 {
		c.ResidualBytes = DefaultResidualBytes
	}
	if c.PollInterval <= 0 {
		c.PollInterval = DefaultPollInterval
	}
	if c.Settle <= 0 {
		c.Settle = DefaultSettle
	}
	return c
}

// FrameBuffer is a growable PCM buffer with an independent read cursor,
// written by the synthesis bridge and drained by the playback callback.
//
// The byte buffer and the read cursor form one composite value guarded by a
// single mutex; they are never observable in a torn state. Decoding happens
// outside the lock; the critical sections are append-bytes and
// copy-and-advance only.
//
// A FrameBuffer serves exactly one playback session and is discarded after
// [FrameBuffer.Close].
type FrameBuffer struct {
	dec Decoder
	cfg BufferConfig

	mu      sync.Mutex
	buf     []byte
	readPos int
	format  Format
	locked  bool // format fixed by the first decoded frame
	closed  bool
	ready   bool // pre-buffer threshold already crossed
	onReady func(Format)
}

// NewFrameBuffer creates a FrameBuffer that decodes incoming frames with dec.
func NewFrameBuffer(dec Decoder, cfg BufferConfig) *FrameBuffer {
	return &FrameBuffer{dec: dec, cfg: cfg.withDefaults()}
}

// OnReady registers fn to be called exactly once, synchronously from the
// Push call whose write brings the unread byte count to the pre-buffer
// threshold. fn receives the stream format locked by the first decoded
// frame. Must be set before the first Push.
func (b *FrameBuffer) OnReady(fn func(Format)) {
	b.mu.Lock()
	b.onReady = fn
	b.mu.Unlock()
}

// Push decodes one encoded frame and appends the resulting samples.
//
// Errors come in two classes. An [ErrDecode] means this frame was malformed
// or partial; nothing was appended and the stream remains healthy, so callers
// log and continue. [ErrFormatChange] and [ErrBufferClosed] are terminal for
// the session.
func (b *FrameBuffer) Push(frame []byte) error {
	pcm, f, err := b.dec.Decode(frame)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if !f.Valid() {
		return fmt.Errorf("%w: decoder reported %s", ErrDecode, f)
	}
	data := Int16ToFloat32LE(pcm)

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return ErrBufferClosed
	}
	if !b.locked {
		b.format = f
		b.locked = true
	} else if f != b.format {
		b.mu.Unlock()
		return fmt.Errorf("%w: %s -> %s", ErrFormatChange, b.format, f)
	}
	b.buf = append(b.buf, data...)

	var fire func(Format)
	if !b.ready && len(b.buf)-b.readPos >= b.cfg.PreBufferBytes {
		b.ready = true
		fire = b.onReady
	}
	format := b.format
	b.mu.Unlock()

	// Outside the lock: the callback opens the output device, which must not
	// serialise against the playback callback's reads.
	if fire != nil {
		fire(format)
	}
	return nil
}

// ReadInto fills dst from the read cursor, advancing it by the number of
// bytes available, and zero-fills any shortfall. It never blocks beyond the
// copy-sized critical section and never fails; it is the playback callback's
// entry point and allocates nothing.
//
// Returns the number of real (non-padding) bytes copied.
func (b *FrameBuffer) ReadInto(dst []byte) int {
	b.mu.Lock()
	avail := len(b.buf) - b.readPos
	n := len(dst)
	if avail < n {
		n = avail
	}
	if n > 0 {
		copy(dst, b.buf[b.readPos:b.readPos+n])
		b.readPos += n
		if b.readPos > b.cfg.CompactAfterBytes {
			b.buf = append(b.buf[:0], b.buf[b.readPos:]...)
			b.readPos = 0
		}
	}
	b.mu.Unlock()

	clear(dst[n:])
	return n
}

// Read returns exactly n bytes starting at the read cursor, zero-padded past
// the available data. Convenience wrapper over [FrameBuffer.ReadInto] for
// callers outside the real-time path.
func (b *FrameBuffer) Read(n int) []byte {
	dst := make([]byte, n)
	b.ReadInto(dst)
	return dst
}

// Remaining reports the number of unread bytes currently buffered.
func (b *FrameBuffer) Remaining() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.buf) - b.readPos
}

// Len reports the total byte length of the backing buffer, including
// already-consumed bytes not yet compacted.
func (b *FrameBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.buf)
}

// Format returns the stream format and whether it has been locked by a first
// successfully decoded frame yet.
func (b *FrameBuffer) Format() (Format, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.format, b.locked
}

// WaitUntilDone blocks until the unread byte count has stayed below the
// residual threshold for the full settle window, sampling at the poll
// interval. A transient dip below the threshold followed by more audio
// resets the window. Returns ctx.Err() if the context ends first.
//
// Completion is an emergent condition of the buffer, not an event the
// playback engine signals, hence the poll.
func (b *FrameBuffer) WaitUntilDone(ctx context.Context) error {
	ticker := time.NewTicker(b.cfg.PollInterval)
	defer ticker.Stop()

	var belowSince time.Time
	for {
		if b.Remaining() < b.cfg.ResidualBytes {
			now := time.Now()
			if belowSince.IsZero() {
				belowSince = now
			}
			if now.Sub(belowSince) >= b.cfg.Settle {
				return nil
			}
		} else {
			belowSince = time.Time{}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Close marks the buffer as torn down. Subsequent Push calls return
// [ErrBufferClosed]; reads keep returning silence. Safe to call more than
// once.
func (b *FrameBuffer) Close() {
	b.mu.Lock()
	b.closed = true
	b.mu.Unlock()
}
