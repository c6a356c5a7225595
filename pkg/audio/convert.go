package audio

import "math"

// Int16ToFloat32LE converts int16 PCM samples to the buffer's native
// representation: little-endian float32 bytes normalised to [-1, 1].
func Int16ToFloat32LE(pcm []int16) []byte {
	out := make([]byte, len(pcm)*BytesPerSample)
	for i, s := range pcm {
		bits := math.Float32bits(float32(s) / 32768.0)
		out[i*4] = byte(bits)
		out[i*4+1] = byte(bits >> 8)
		out[i*4+2] = byte(bits >> 16)
		out[i*4+3] = byte(bits >> 24)
	}
	return out
}

// Float32LEToInt16 converts little-endian float32 sample bytes back to int16
// PCM, clamping out-of-range values. Trailing bytes that do not form a whole
// sample are ignored.
func Float32LEToInt16(b []byte) []int16 {
	n := len(b) / BytesPerSample
	out := make([]int16, n)
	for i := range n {
		bits := uint32(b[i*4]) | uint32(b[i*4+1])<<8 | uint32(b[i*4+2])<<16 | uint32(b[i*4+3])<<24
		v := float64(math.Float32frombits(bits)) * 32768.0
		if v > 32767 {
			v = 32767
		} else if v < -32768 {
			v = -32768
		}
		out[i] = int16(v)
	}
	return out
}

// Int16sToBytes converts a slice of int16 PCM samples to little-endian bytes.
func Int16sToBytes(pcm []int16) []byte {
	b := make([]byte, len(pcm)*2)
	for i, s := range pcm {
		b[i*2] = byte(s)
		b[i*2+1] = byte(s >> 8)
	}
	return b
}

// BytesToInt16s converts little-endian bytes to a slice of int16 PCM samples.
func BytesToInt16s(b []byte) []int16 {
	pcm := make([]int16, len(b)/2)
	for i := range pcm {
		pcm[i] = int16(b[i*2]) | int16(b[i*2+1])<<8
	}
	return pcm
}
