// Package portaudio adapts the PortAudio default devices to the audio
// package's device interfaces. It is the hardware backend for the pipeline;
// tests use audio/mock instead.
//
// Callers must bracket all device use with [Initialize] and [Terminate].
package portaudio

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/gordonklaus/portaudio"

	"github.com/glimmervoice/glimmer/pkg/audio"
)

// Initialize sets up the PortAudio runtime. Call once at startup.
func Initialize() error {
	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("portaudio: initialize: %w", err)
	}
	return nil
}

// Terminate tears down the PortAudio runtime. Call once at shutdown, after
// all streams are closed.
func Terminate() error {
	if err := portaudio.Terminate(); err != nil {
		return fmt.Errorf("portaudio: terminate: %w", err)
	}
	return nil
}

// OutputDevice opens playback streams on the system default output.
type OutputDevice struct{}

var _ audio.OutputDevice = (*OutputDevice)(nil)

// Open implements audio.OutputDevice. The pull callback runs on PortAudio's
// stream thread.
func (*OutputDevice) Open(format audio.Format, blockFrames int, pull audio.PullFunc) (audio.OutputStream, error) {
	if !format.Valid() {
		return nil, fmt.Errorf("portaudio: invalid output format %s", format)
	}
	if blockFrames <= 0 {
		blockFrames = audio.DefaultBlockFrames
	}

	// Scratch block reused across callbacks; the callback must not allocate.
	buf := make([]byte, blockFrames*format.Channels*audio.BytesPerSample)
	stream, err := portaudio.OpenDefaultStream(0, format.Channels, float64(format.SampleRate), blockFrames,
		func(out []float32) {
			pull(buf[:len(out)*audio.BytesPerSample])
			for i := range out {
				out[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*audio.BytesPerSample:]))
			}
		})
	if err != nil {
		return nil, fmt.Errorf("portaudio: open output stream (%s): %w", format, err)
	}
	return &outputStream{stream: stream}, nil
}

type outputStream struct {
	stream *portaudio.Stream
}

var _ audio.OutputStream = (*outputStream)(nil)

func (s *outputStream) Start() error {
	if err := s.stream.Start(); err != nil {
		return fmt.Errorf("portaudio: start output stream: %w", err)
	}
	return nil
}

func (s *outputStream) Stop() error {
	if err := s.stream.Stop(); err != nil {
		return fmt.Errorf("portaudio: stop output stream: %w", err)
	}
	return nil
}

func (s *outputStream) Close() error {
	if err := s.stream.Close(); err != nil {
		return fmt.Errorf("portaudio: close output stream: %w", err)
	}
	return nil
}

// InputDevice opens capture streams on the system default input.
type InputDevice struct{}

var _ audio.InputDevice = (*InputDevice)(nil)

// Open implements audio.InputDevice. The capture callback runs on PortAudio's
// stream thread; the block it receives is only valid for the call.
func (*InputDevice) Open(format audio.Format, blockFrames int, cb audio.CaptureFunc) (audio.InputStream, error) {
	if !format.Valid() {
		return nil, fmt.Errorf("portaudio: invalid capture format %s", format)
	}
	if blockFrames <= 0 {
		blockFrames = audio.DefaultBlockFrames
	}

	buf := make([]byte, blockFrames*format.Channels*audio.BytesPerSample)
	stream, err := portaudio.OpenDefaultStream(format.Channels, 0, float64(format.SampleRate), blockFrames,
		func(in []float32) {
			block := buf[:len(in)*audio.BytesPerSample]
			for i, v := range in {
				binary.LittleEndian.PutUint32(block[i*audio.BytesPerSample:], math.Float32bits(v))
			}
			cb(block)
		})
	if err != nil {
		return nil, fmt.Errorf("portaudio: open input stream (%s): %w", format, err)
	}
	return &inputStream{stream: stream}, nil
}

type inputStream struct {
	stream *portaudio.Stream
}

var _ audio.InputStream = (*inputStream)(nil)

func (s *inputStream) Start() error {
	if err := s.stream.Start(); err != nil {
		return fmt.Errorf("portaudio: start input stream: %w", err)
	}
	return nil
}

func (s *inputStream) Stop() error {
	if err := s.stream.Stop(); err != nil {
		return fmt.Errorf("portaudio: stop input stream: %w", err)
	}
	return nil
}

func (s *inputStream) Close() error {
	if err := s.stream.Close(); err != nil {
		return fmt.Errorf("portaudio: close input stream: %w", err)
	}
	return nil
}
