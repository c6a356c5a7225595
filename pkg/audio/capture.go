package audio

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// DefaultCaptureFormat matches the pipeline's microphone configuration:
// 44.1 kHz mono.
var DefaultCaptureFormat = Format{SampleRate: 44100, Channels: 1}

var (
	// ErrCaptureActive is returned by Start when the session already runs.
	ErrCaptureActive = errors.New("audio: capture already started")

	// ErrCaptureNotStarted is returned by Stop before Start.
	ErrCaptureNotStarted = errors.New("audio: capture not started")
)

// CaptureFunc delivers a block of little-endian float32 sample bytes from
// the input device. The slice is only valid for the duration of the call.
type CaptureFunc func(in []byte)

// InputDevice opens capture streams on an audio input.
type InputDevice interface {
	// Open prepares a capture stream at the given format. The device calls
	// cb with blockFrames frames per invocation once the stream is started.
	Open(format Format, blockFrames int, cb CaptureFunc) (InputStream, error)
}

// InputStream is an open capture stream on an [InputDevice].
type InputStream interface {
	Start() error
	Stop() error
	Close() error
}

// Clip is one finite captured utterance, packaged for transcription.
type Clip struct {
	// WAV is the utterance as a 16-bit PCM RIFF/WAV file.
	WAV []byte

	// Format is the capture sample rate and channel count.
	Format Format

	// Duration is the audible length of the clip.
	Duration time.Duration
}

// CaptureSession records microphone input between two explicit edges: Start
// begins accumulating blocks in memory, Stop ends the recording and packages
// it as a [Clip]. One session records one utterance; create a new session
// per turn.
//
// Single producer (the device callback), single consumer (Stop); no
// real-time constraint on the read side.
type CaptureSession struct {
	dev         InputDevice
	format      Format
	blockFrames int

	mu      sync.Mutex
	chunks  [][]byte
	stream  InputStream
	started bool
	stopped bool
}

// NewCaptureSession creates a session recording at the given format.
// A zero format selects [DefaultCaptureFormat].
func NewCaptureSession(dev InputDevice, format Format) *CaptureSession {
	if !format.Valid() {
		format = DefaultCaptureFormat
	}
	return &CaptureSession{
		dev:         dev,
		format:      format,
		blockFrames: DefaultBlockFrames,
	}
}

// Start opens the input device and begins buffering audio blocks.
func (s *CaptureSession) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return ErrCaptureActive
	}

	stream, err := s.dev.Open(s.format, s.blockFrames, s.record)
	if err != nil {
		return fmt.Errorf("audio: open input device (%s): %w", s.format, err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		return fmt.Errorf("audio: start input stream: %w", err)
	}
	s.stream = stream
	s.started = true
	return nil
}

// record is the device callback; it copies the block because the device owns
// the slice it passes in.
func (s *CaptureSession) record(in []byte) {
	chunk := make([]byte, len(in))
	copy(chunk, in)

	s.mu.Lock()
	if s.started && !s.stopped {
		s.chunks = append(s.chunks, chunk)
	}
	s.mu.Unlock()
}

// Stop ends the recording, converts the accumulated float32 samples to
// 16-bit PCM, and returns them wrapped in a WAV container ready for the
// transcription service.
func (s *CaptureSession) Stop() (*Clip, error) {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return nil, ErrCaptureNotStarted
	}
	if s.stopped {
		s.mu.Unlock()
		return nil, ErrCaptureNotStarted
	}
	s.stopped = true
	stream := s.stream
	chunks := s.chunks
	s.chunks = nil
	s.mu.Unlock()

	if err := stream.Stop(); err != nil {
		stream.Close()
		return nil, fmt.Errorf("audio: stop input stream: %w", err)
	}
	if err := stream.Close(); err != nil {
		return nil, fmt.Errorf("audio: close input stream: %w", err)
	}

	total := 0
	for _, c := range chunks {
		total += len(c)
	}
	raw := make([]byte, 0, total)
	for _, c := range chunks {
		raw = append(raw, c...)
	}

	pcm := Float32LEToInt16(raw)
	samples := len(pcm) / s.format.Channels
	return &Clip{
		WAV:      EncodeWAV(Int16sToBytes(pcm), s.format.SampleRate, s.format.Channels),
		Format:   s.format,
		Duration: time.Duration(samples) * time.Second / time.Duration(s.format.SampleRate),
	}, nil
}
