package stt

import (
	"encoding/binary"
	"errors"
	"io"
	"math"
	"time"
)

// FrameDuration is the voice-activity analysis window.
const FrameDuration = 20 * time.Millisecond

const frameSamples = SampleRate * int(FrameDuration/time.Millisecond) / 1000

// DefaultEnergyThreshold is the frame RMS above which a frame counts as
// speech.
const DefaultEnergyThreshold = 0.015

// frameReader reads fixed-size PCM frames as float32 samples in [-1, 1].
type frameReader struct {
	r   io.Reader
	raw []byte
}

func newFrameReader(r io.Reader) *frameReader {
	return &frameReader{r: r, raw: make([]byte, frameSamples*bytesPerSample)}
}

// next returns the next frame. A short final frame is io.EOF.
func (f *frameReader) next() ([]float32, error) {
	if _, err := io.ReadFull(f.r, f.raw); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, io.EOF
		}
		return nil, err
	}
	out := make([]float32, frameSamples)
	for i := range out {
		v := int16(binary.LittleEndian.Uint16(f.raw[i*bytesPerSample:]))
		out[i] = float32(v) / 32768
	}
	return out, nil
}

func frameRMS(f []float32) float64 {
	if len(f) == 0 {
		return 0
	}
	var s float64
	for _, x := range f {
		s += float64(x) * float64(x)
	}
	return math.Sqrt(s / float64(len(f)))
}

func framesIn(d time.Duration) int {
	n := int(d / FrameDuration)
	if n < 1 {
		n = 1
	}
	return n
}
