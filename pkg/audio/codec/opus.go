package codec

import (
	"fmt"

	"layeh.com/gopus"

	"github.com/glimmervoice/glimmer/pkg/audio"
)

// opusFrameMs is the packet duration the synthesis services emit. Opus
// packets do not declare their duration, so the decoder must know it.
const opusFrameMs = 20

// opus decodes Opus packets into interleaved int16 PCM. A decoder carries
// codec state across consecutive packets, so each stream needs its own
// instance; decoders are not safe for concurrent use.
type opus struct {
	dec       *gopus.Decoder
	format    audio.Format
	frameSize int // samples per channel per packet
}

// NewOpus returns a decoder for an Opus stream at the given sample rate and
// channel count.
func NewOpus(sampleRate, channels int) (audio.Decoder, error) {
	f := audio.Format{SampleRate: sampleRate, Channels: channels}
	if !f.Valid() {
		return nil, fmt.Errorf("codec: invalid opus format %s", f)
	}
	dec, err := gopus.NewDecoder(sampleRate, channels)
	if err != nil {
		return nil, fmt.Errorf("codec: create opus decoder: %w", err)
	}
	return &opus{
		dec:       dec,
		format:    f,
		frameSize: sampleRate * opusFrameMs / 1000,
	}, nil
}

// Decode implements audio.Decoder.
func (d *opus) Decode(frame []byte) ([]int16, audio.Format, error) {
	pcm, err := d.dec.Decode(frame, d.frameSize, false)
	if err != nil {
		return nil, audio.Format{}, fmt.Errorf("codec: opus decode: %w", err)
	}
	return pcm, d.format, nil
}

var _ audio.Decoder = (*opus)(nil)
