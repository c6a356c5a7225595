// Package codec provides [audio.Decoder] implementations for the frame
// encodings the synthesis providers emit.
package codec

import (
	"fmt"

	"github.com/glimmervoice/glimmer/pkg/audio"
)

// s16le decodes raw signed 16-bit little-endian PCM frames. This is what the
// speech synthesis API delivers when asked for a pcm_* output format, and it
// is the cheapest path: no codec state, no cgo.
type s16le struct {
	format audio.Format
}

// NewS16LE returns a decoder for raw 16-bit little-endian PCM at the given
// format. The format must be known up front because raw PCM carries no
// header.
func NewS16LE(format audio.Format) (audio.Decoder, error) {
	if !format.Valid() {
		return nil, fmt.Errorf("codec: invalid pcm format %s", format)
	}
	return &s16le{format: format}, nil
}

// Decode implements audio.Decoder.
func (d *s16le) Decode(frame []byte) ([]int16, audio.Format, error) {
	if len(frame)%2 != 0 {
		return nil, audio.Format{}, fmt.Errorf("codec: pcm frame of %d bytes is not sample-aligned", len(frame))
	}
	return audio.BytesToInt16s(frame), d.format, nil
}

var _ audio.Decoder = (*s16le)(nil)
