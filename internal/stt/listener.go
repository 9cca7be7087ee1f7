package stt

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"
)

// DefaultSilence is how much quiet ends a phrase.
const DefaultSilence = 600 * time.Millisecond

// Listener records one phrase at a time with an energy-based voice
// activity detector and hands it to a Transcriber.
type Listener struct {
	capture     Capture
	transcriber Transcriber
	threshold   float64
	silence     time.Duration
	tempDir     string
	logger      *slog.Logger
}

// ListenerOptions tune voice activity detection. Zero values take defaults.
type ListenerOptions struct {
	EnergyThreshold float64
	Silence         time.Duration
	// TempDir holds recordings while they are transcribed.
	TempDir string
}

func NewListener(c Capture, t Transcriber, opts ListenerOptions) *Listener {
	if opts.EnergyThreshold <= 0 {
		opts.EnergyThreshold = DefaultEnergyThreshold
	}
	if opts.Silence <= 0 {
		opts.Silence = DefaultSilence
	}
	return &Listener{
		capture:     c,
		transcriber: t,
		threshold:   opts.EnergyThreshold,
		silence:     opts.Silence,
		tempDir:     opts.TempDir,
		logger:      slog.Default().With("component", "stt"),
	}
}

// Listen waits up to timeout for speech to start, records until the speaker
// pauses or phraseLimit is reached, and transcribes the phrase. ok is false
// when nobody spoke or the transcription came back empty.
func (l *Listener) Listen(ctx context.Context, timeout, phraseLimit time.Duration) (string, bool, error) {
	samples, err := l.record(ctx, timeout, phraseLimit)
	if err != nil {
		return "", false, err
	}
	if len(samples) == 0 {
		return "", false, nil
	}

	text, err := l.transcribe(ctx, samples)
	if err != nil {
		return "", false, err
	}
	if text == "" {
		return "", false, nil
	}
	l.logger.Debug("phrase transcribed", "chars", len(text), "seconds", float64(len(samples))/SampleRate)
	return text, true, nil
}

func (l *Listener) record(ctx context.Context, timeout, phraseLimit time.Duration) ([]float32, error) {
	stream, err := l.capture.Stream(ctx)
	if err != nil {
		return nil, fmt.Errorf("opening microphone: %w", err)
	}
	defer stream.Close()

	frames := newFrameReader(stream)
	waitFrames := framesIn(timeout)
	maxFrames := framesIn(phraseLimit)
	quietFrames := framesIn(l.silence)

	var (
		waited, quiet, recorded int
		samples                 []float32
		speechActive            bool
	)
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		frame, err := frames.next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, fmt.Errorf("reading microphone: %w", err)
		}

		loud := frameRMS(frame) >= l.threshold
		if !speechActive {
			if !loud {
				waited++
				if waited >= waitFrames {
					return nil, nil
				}
				continue
			}
			speechActive = true
		}

		samples = append(samples, frame...)
		recorded++
		if loud {
			quiet = 0
		} else {
			quiet++
		}
		if quiet >= quietFrames || recorded >= maxFrames {
			break
		}
	}
	return samples, nil
}

func (l *Listener) transcribe(ctx context.Context, samples []float32) (string, error) {
	f, err := os.CreateTemp(l.tempDir, "buddy-speech-*.wav")
	if err != nil {
		return "", fmt.Errorf("creating recording file: %w", err)
	}
	defer os.Remove(f.Name())
	defer f.Close()

	if err := encodeWAV(f, samples); err != nil {
		return "", err
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return "", fmt.Errorf("rewinding recording: %w", err)
	}
	text, err := l.transcriber.Transcribe(ctx, f)
	if err != nil {
		return "", fmt.Errorf("transcribing: %w", err)
	}
	return text, nil
}

// IsSpeaking samples the microphone for d and reports whether any frame
// crossed the energy threshold. Capture failures read as silence.
func (l *Listener) IsSpeaking(ctx context.Context, d time.Duration) bool {
	stream, err := l.capture.Stream(ctx)
	if err != nil {
		l.logger.Debug("interrupt probe failed", "error", err)
		return false
	}
	defer stream.Close()

	frames := newFrameReader(stream)
	for i := 0; i < framesIn(d); i++ {
		frame, err := frames.next()
		if err != nil {
			return false
		}
		if frameRMS(frame) >= l.threshold {
			return true
		}
	}
	return false
}
