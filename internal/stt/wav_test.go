package stt

import (
	"fmt"
	"io"

	"github.com/go-audio/wav"
)

// decodeWAV reads a mono 16-bit WAV file back into samples.
func decodeWAV(r io.ReadSeeker) ([]float32, error) {
	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		return nil, fmt.Errorf("invalid wav")
	}
	pcm, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("decoding wav: %w", err)
	}
	out := make([]float32, len(pcm.Data))
	for i, v := range pcm.Data {
		out[i] = float32(v) / 32768
	}
	return out, nil
}
