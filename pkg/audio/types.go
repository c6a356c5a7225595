// Package audio implements the real-time playback core of the Glimmer
// pipeline: a lock-guarded PCM frame buffer, a pull-driven playback engine,
// and an edge-triggered capture session.
//
// The buffer decouples the bursty, network-paced arrival of decoded audio
// from the fixed, clock-paced consumption of the output device. Hardware
// access is abstracted behind the narrow [OutputDevice] and [InputDevice]
// interfaces so that the core stays testable; platform adapter packages
// (e.g., audio/portaudio) provide the real bindings.
package audio

import "fmt"

// BytesPerSample is the size of one sample in the buffer's native
// representation: 32-bit little-endian IEEE float, normalised to [-1, 1].
const BytesPerSample = 4

// Format describes the sample rate and channel count of an audio stream.
type Format struct {
	SampleRate int
	Channels   int
}

// Valid reports whether f describes a playable format.
func (f Format) Valid() bool {
	return f.SampleRate > 0 && (f.Channels == 1 || f.Channels == 2)
}

// String returns a human-readable description, e.g. "44100Hz stereo".
func (f Format) String() string {
	ch := "mono"
	if f.Channels == 2 {
		ch = "stereo"
	} else if f.Channels > 2 {
		ch = fmt.Sprintf("%dch", f.Channels)
	}
	return fmt.Sprintf("%dHz %s", f.SampleRate, ch)
}

// Decoder turns one encoded network frame into interleaved int16 PCM
// samples. Implementations (see audio/codec) keep whatever codec state they
// need between frames; a Decoder instance belongs to a single stream and is
// not safe for concurrent use.
type Decoder interface {
	// Decode returns the PCM samples of frame and the format they were
	// decoded at. Malformed or partial frames return an error and no samples;
	// callers decide whether that is fatal (see FrameBuffer.Push).
	Decode(frame []byte) (pcm []int16, format Format, err error)
}
