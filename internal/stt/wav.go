package stt

import (
	"fmt"
	"io"
	"math"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// encodeWAV writes samples as a 16-bit mono WAV file.
func encodeWAV(w io.WriteSeeker, samples []float32) error {
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: 1, SampleRate: SampleRate},
		Data:           make([]int, len(samples)),
		SourceBitDepth: 16,
	}
	for i, s := range samples {
		buf.Data[i] = int(math.Round(float64(clampSample(s)) * 32767))
	}

	enc := wav.NewEncoder(w, SampleRate, 16, 1, 1)
	if err := enc.Write(buf); err != nil {
		return fmt.Errorf("writing wav samples: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("finalizing wav: %w", err)
	}
	return nil
}

func clampSample(s float32) float32 {
	if s > 1 {
		return 1
	}
	if s < -1 {
		return -1
	}
	return s
}
