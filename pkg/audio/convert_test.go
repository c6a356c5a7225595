package audio

import (
	"encoding/binary"
	"math"
	"testing"
)

func TestInt16Float32RoundTrip(t *testing.T) {
	in := []int16{0, 1, -1, 100, -100, 16384, -16384, 32767, -32768}
	got := Float32LEToInt16(Int16ToFloat32LE(in))
	if len(got) != len(in) {
		t.Fatalf("round trip length = %d, want %d", len(got), len(in))
	}
	for i := range in {
		if got[i] != in[i] {
			t.Errorf("sample %d: round trip %d -> %d", i, in[i], got[i])
		}
	}
}

func TestFloat32LEToInt16Clamps(t *testing.T) {
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint32(buf[0:4], math.Float32bits(1.5))
	binary.LittleEndian.PutUint32(buf[4:8], math.Float32bits(-1.5))

	got := Float32LEToInt16(buf)
	if got[0] != 32767 {
		t.Errorf("over-range sample = %d, want 32767", got[0])
	}
	if got[1] != -32768 {
		t.Errorf("under-range sample = %d, want -32768", got[1])
	}
}

func TestFloat32LEToInt16IgnoresTrailingBytes(t *testing.T) {
	buf := make([]byte, 6) // one whole sample plus two stray bytes
	if got := Float32LEToInt16(buf); len(got) != 1 {
		t.Errorf("got %d samples, want 1", len(got))
	}
}

func TestInt16BytesRoundTrip(t *testing.T) {
	in := []int16{0, 259, -259, 32767, -32768}
	got := BytesToInt16s(Int16sToBytes(in))
	for i := range in {
		if got[i] != in[i] {
			t.Errorf("sample %d: round trip %d -> %d", i, in[i], got[i])
		}
	}
}

func TestEncodeWAVHeader(t *testing.T) {
	pcm := Int16sToBytes([]int16{1, 2, 3, 4})
	wav := EncodeWAV(pcm, 44100, 1)

	if len(wav) != 44+len(pcm) {
		t.Fatalf("wav length = %d, want %d", len(wav), 44+len(pcm))
	}
	if string(wav[0:4]) != "RIFF" || string(wav[8:12]) != "WAVE" || string(wav[36:40]) != "data" {
		t.Fatal("missing RIFF/WAVE/data markers")
	}
	if got := binary.LittleEndian.Uint32(wav[4:8]); got != uint32(36+len(pcm)) {
		t.Errorf("riff size = %d, want %d", got, 36+len(pcm))
	}
	if got := binary.LittleEndian.Uint16(wav[22:24]); got != 1 {
		t.Errorf("channels = %d, want 1", got)
	}
	if got := binary.LittleEndian.Uint32(wav[24:28]); got != 44100 {
		t.Errorf("sample rate = %d, want 44100", got)
	}
	if got := binary.LittleEndian.Uint32(wav[28:32]); got != 88200 {
		t.Errorf("byte rate = %d, want 88200", got)
	}
	if got := binary.LittleEndian.Uint16(wav[34:36]); got != 16 {
		t.Errorf("bits per sample = %d, want 16", got)
	}
	if got := binary.LittleEndian.Uint32(wav[40:44]); got != uint32(len(pcm)) {
		t.Errorf("data size = %d, want %d", got, len(pcm))
	}
}
