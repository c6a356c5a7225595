package audio_test

import (
	"encoding/binary"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/glimmervoice/glimmer/pkg/audio"
	"github.com/glimmervoice/glimmer/pkg/audio/mock"
)

func TestCaptureSessionRecordsClip(t *testing.T) {
	dev := &mock.InputDevice{}
	sess := audio.NewCaptureSession(dev, audio.Format{SampleRate: 8000, Channels: 1})
	if err := sess.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	stream := dev.Stream()
	if stream == nil {
		t.Fatal("input device not opened")
	}
	if stream.Format != (audio.Format{SampleRate: 8000, Channels: 1}) {
		t.Errorf("capture format = %s", stream.Format)
	}

	// Feed 4000 half-scale samples: one half second at 8 kHz.
	pcm := make([]int16, 4000)
	for i := range pcm {
		pcm[i] = 16384
	}
	stream.Feed(audio.Int16ToFloat32LE(pcm[:2000]))
	stream.Feed(audio.Int16ToFloat32LE(pcm[2000:]))

	clip, err := sess.Stop()
	if err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if clip.Duration != 500*time.Millisecond {
		t.Errorf("Duration = %v, want 500ms", clip.Duration)
	}
	if len(clip.WAV) != 44+4000*2 {
		t.Fatalf("WAV length = %d, want %d", len(clip.WAV), 44+4000*2)
	}
	if string(clip.WAV[0:4]) != "RIFF" || string(clip.WAV[8:12]) != "WAVE" {
		t.Error("clip is not a RIFF/WAVE container")
	}
	if rate := binary.LittleEndian.Uint32(clip.WAV[24:28]); rate != 8000 {
		t.Errorf("WAV sample rate = %d, want 8000", rate)
	}
	if got := int16(binary.LittleEndian.Uint16(clip.WAV[44:46])); got != 16384 {
		t.Errorf("first WAV sample = %d, want 16384", got)
	}
}

func TestCaptureSessionLifecycleErrors(t *testing.T) {
	dev := &mock.InputDevice{}
	sess := audio.NewCaptureSession(dev, audio.Format{})

	if _, err := sess.Stop(); !errors.Is(err, audio.ErrCaptureNotStarted) {
		t.Fatalf("Stop before Start = %v, want ErrCaptureNotStarted", err)
	}
	if err := sess.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := sess.Start(); !errors.Is(err, audio.ErrCaptureActive) {
		t.Fatalf("second Start = %v, want ErrCaptureActive", err)
	}
	if _, err := sess.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if _, err := sess.Stop(); !errors.Is(err, audio.ErrCaptureNotStarted) {
		t.Fatalf("second Stop = %v, want ErrCaptureNotStarted", err)
	}
}

func TestCaptureSessionDefaultsFormat(t *testing.T) {
	dev := &mock.InputDevice{}
	sess := audio.NewCaptureSession(dev, audio.Format{})
	if err := sess.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if got := dev.Stream().Format; got != audio.DefaultCaptureFormat {
		t.Errorf("format = %s, want %s", got, audio.DefaultCaptureFormat)
	}
}

func TestCaptureSessionStopError(t *testing.T) {
	dev := &mock.InputDevice{}
	sess := audio.NewCaptureSession(dev, audio.Format{})
	if err := sess.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	stream := dev.Stream()
	stream.StopErr = errors.New("stream underflow")

	if _, err := sess.Stop(); err == nil || !strings.Contains(err.Error(), "stream underflow") {
		t.Fatalf("Stop = %v, want the device error", err)
	}
	if !stream.Closed() {
		t.Error("stream left open after a failing Stop")
	}
}

func TestCaptureSessionOpenError(t *testing.T) {
	dev := &mock.InputDevice{OpenErr: errors.New("device busy")}
	sess := audio.NewCaptureSession(dev, audio.Format{})
	if err := sess.Start(); err == nil {
		t.Fatal("Start succeeded with a failing device")
	}
}
