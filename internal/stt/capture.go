// Package stt captures speech from the microphone and transcribes it.
package stt

import (
	"context"
	"fmt"
	"io"
	"os/exec"
	"strconv"
)

// Audio format of captured speech: mono signed 16-bit little-endian PCM.
const (
	SampleRate     = 16000
	bytesPerSample = 2
)

// Capture opens a live stream of raw PCM in the capture format.
type Capture interface {
	Stream(ctx context.Context) (io.ReadCloser, error)
}

// Arecord captures through ALSA's arecord tool.
type Arecord struct {
	// Device is the ALSA device name. Empty uses the default device.
	Device string
}

// Stream starts arecord. Closing the stream stops it.
func (a Arecord) Stream(ctx context.Context) (io.ReadCloser, error) {
	args := []string{"-q", "-t", "raw", "-f", "S16_LE", "-c", "1", "-r", strconv.Itoa(SampleRate)}
	if a.Device != "" {
		args = append(args, "-D", a.Device)
	}
	cmd := exec.CommandContext(ctx, "arecord", args...)
	out, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("arecord stdout: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("starting arecord: %w", err)
	}
	return &procStream{ReadCloser: out, cmd: cmd}, nil
}

type procStream struct {
	io.ReadCloser
	cmd *exec.Cmd
}

func (p *procStream) Close() error {
	if p.cmd.Process != nil {
		p.cmd.Process.Kill()
	}
	p.ReadCloser.Close()
	p.cmd.Wait()
	return nil
}
