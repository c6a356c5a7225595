// Package mock provides in-memory test doubles for the audio device and
// decoder interfaces. The devices expose the registered callbacks so tests
// can act as the hardware clock, invoking them deterministically.
package mock

import (
	"errors"
	"sync"

	"github.com/glimmervoice/glimmer/pkg/audio"
)

// ErrClosed is returned by stream operations after Close.
var ErrClosed = errors.New("mock: stream closed")

// OutputDevice implements audio.OutputDevice. Pump drives the registered
// pull callback as a real device clock would.
type OutputDevice struct {
	// OpenErr, when non-nil, is returned by Open.
	OpenErr error

	mu      sync.Mutex
	streams []*OutputStream
}

// Open implements audio.OutputDevice.
func (d *OutputDevice) Open(format audio.Format, blockFrames int, pull audio.PullFunc) (audio.OutputStream, error) {
	if d.OpenErr != nil {
		return nil, d.OpenErr
	}
	s := &OutputStream{Format: format, BlockFrames: blockFrames, pull: pull}
	d.mu.Lock()
	d.streams = append(d.streams, s)
	d.mu.Unlock()
	return s, nil
}

// Streams returns every stream opened so far.
func (d *OutputDevice) Streams() []*OutputStream {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]*OutputStream(nil), d.streams...)
}

// Last returns the most recently opened stream, or nil.
func (d *OutputDevice) Last() *OutputStream {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.streams) == 0 {
		return nil
	}
	return d.streams[len(d.streams)-1]
}

// OutputStream records lifecycle calls and lets tests pump the pull
// callback manually.
type OutputStream struct {
	Format      audio.Format
	BlockFrames int

	pull audio.PullFunc

	mu      sync.Mutex
	started bool
	stopped bool
	closed  bool
	pulled  [][]byte
}

// Start implements audio.OutputStream.
func (s *OutputStream) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.started = true
	return nil
}

// Stop implements audio.OutputStream.
func (s *OutputStream) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	return nil
}

// Close implements audio.OutputStream.
func (s *OutputStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Pump invokes the pull callback n times with a block-sized buffer, the way
// the device clock would, and records each filled block. Returns the blocks
// from this call in order.
func (s *OutputStream) Pump(n int) [][]byte {
	blockBytes := s.BlockFrames * s.Format.Channels * audio.BytesPerSample
	out := make([][]byte, 0, n)
	for range n {
		buf := make([]byte, blockBytes)
		s.pull(buf)
		out = append(out, buf)
	}
	s.mu.Lock()
	s.pulled = append(s.pulled, out...)
	s.mu.Unlock()
	return out
}

// Started reports whether Start was called.
func (s *OutputStream) Started() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.started
}

// Stopped reports whether Stop was called.
func (s *OutputStream) Stopped() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopped
}

// Closed reports whether Close was called.
func (s *OutputStream) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// InputDevice implements audio.InputDevice. Feed delivers capture blocks to
// the registered callback.
type InputDevice struct {
	// OpenErr, when non-nil, is returned by Open.
	OpenErr error

	mu     sync.Mutex
	stream *InputStream
}

// Open implements audio.InputDevice.
func (d *InputDevice) Open(format audio.Format, blockFrames int, cb audio.CaptureFunc) (audio.InputStream, error) {
	if d.OpenErr != nil {
		return nil, d.OpenErr
	}
	s := &InputStream{Format: format, BlockFrames: blockFrames, cb: cb}
	d.mu.Lock()
	d.stream = s
	d.mu.Unlock()
	return s, nil
}

// Stream returns the open input stream, or nil.
func (d *InputDevice) Stream() *InputStream {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.stream
}

// InputStream records lifecycle calls and lets tests push capture blocks.
type InputStream struct {
	Format      audio.Format
	BlockFrames int

	// StopErr, when non-nil, is returned by Stop.
	StopErr error

	cb audio.CaptureFunc

	mu      sync.Mutex
	started bool
	closed  bool
}

// Start implements audio.InputStream.
func (s *InputStream) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.started = true
	return nil
}

// Stop implements audio.InputStream.
func (s *InputStream) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.started = false
	return s.StopErr
}

// Close implements audio.InputStream.
func (s *InputStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Closed reports whether Close was called.
func (s *InputStream) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Feed delivers one block of float32-LE sample bytes to the capture
// callback, as the device would.
func (s *InputStream) Feed(block []byte) {
	s.cb(block)
}

// Decoder implements audio.Decoder for tests. It treats each frame as raw
// little-endian int16 PCM in a fixed format, no real codec involved.
type Decoder struct {
	// Format is reported for every decoded frame.
	Format audio.Format

	// Fail, when set, marks frames as undecodable.
	Fail func(frame []byte) bool

	// FormatFor, when set, overrides Format per frame (for format-change
	// tests).
	FormatFor func(frame []byte) audio.Format
}

// Decode implements audio.Decoder.
func (d *Decoder) Decode(frame []byte) ([]int16, audio.Format, error) {
	if d.Fail != nil && d.Fail(frame) {
		return nil, audio.Format{}, errors.New("mock: bad frame")
	}
	f := d.Format
	if d.FormatFor != nil {
		f = d.FormatFor(frame)
	}
	return audio.BytesToInt16s(frame), f, nil
}
