package tts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

const (
	DefaultVoice = "en_US-lessac-medium"
	DefaultSpeed = 1.2

	// DefaultPollInterval is how often the interrupt predicate is checked
	// during playback.
	DefaultPollInterval = 100 * time.Millisecond

	synthTimeout = 30 * time.Second
	espeakWPM    = 175
)

// Options configure a Speaker. Zero values take defaults.
type Options struct {
	// Voice is a piper voice name or path to an .onnx model.
	Voice string
	// Speed scales the speaking rate; 1.0 is the voice's natural pace.
	Speed float64
	// VoicesDir is searched for <Voice>.onnx before passing Voice to piper
	// unchanged.
	VoicesDir    string
	TempDir      string
	PollInterval time.Duration
	Runner       Runner
}

// Speaker synthesizes text with piper and plays the result. When piper is
// unavailable it speaks through espeak directly.
type Speaker struct {
	voice     string
	speed     float64
	voicesDir string
	tempDir   string
	poll      time.Duration
	runner    Runner
	logger    *slog.Logger

	noPiper     atomic.Bool
	speaking    atomic.Bool
	interrupted atomic.Bool

	mu      sync.Mutex
	current Process
}

func New(opts Options) *Speaker {
	if opts.Voice == "" {
		opts.Voice = DefaultVoice
	}
	if opts.Speed <= 0 {
		opts.Speed = DefaultSpeed
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.Runner == nil {
		opts.Runner = ExecRunner{}
	}
	return &Speaker{
		voice:     opts.Voice,
		speed:     opts.Speed,
		voicesDir: opts.VoicesDir,
		tempDir:   opts.TempDir,
		poll:      opts.PollInterval,
		runner:    opts.Runner,
		logger:    slog.Default().With("component", "tts"),
	}
}

// Speak plays text and blocks until playback ends, ctx is done or interrupt
// returns true. A nil interrupt is never consulted.
func (s *Speaker) Speak(ctx context.Context, text string, interrupt func() bool) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	s.interrupted.Store(false)
	s.speaking.Store(true)
	defer s.speaking.Store(false)

	proc, cleanup, err := s.start(ctx, text)
	if err != nil {
		return err
	}
	defer cleanup()
	return s.wait(ctx, proc, interrupt)
}

// Stop cuts the current playback. It is a no-op when nothing is playing.
func (s *Speaker) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return
	}
	s.interrupted.Store(true)
	s.current.Kill()
}

func (s *Speaker) IsSpeaking() bool { return s.speaking.Load() }

// Interrupted reports whether the last Speak was cut short.
func (s *Speaker) Interrupted() bool { return s.interrupted.Load() }

func (s *Speaker) start(ctx context.Context, text string) (Process, func(), error) {
	if !s.noPiper.Load() {
		wav, err := s.synthesize(ctx, text)
		if err == nil {
			name, args := player(wav)
			proc, err := s.runner.Start(ctx, name, args...)
			if err == nil {
				return proc, func() { os.Remove(wav) }, nil
			}
			os.Remove(wav)
			s.logger.Warn("audio playback failed, using espeak", "error", err)
		} else {
			if errors.Is(err, exec.ErrNotFound) {
				s.noPiper.Store(true)
			}
			s.logger.Warn("piper synthesis failed, using espeak", "error", err)
		}
	}

	proc, err := s.runner.Start(ctx, "espeak", "-s", strconv.Itoa(s.wordsPerMinute()), text)
	if err != nil {
		return nil, nil, fmt.Errorf("no speech engine available: %w", err)
	}
	return proc, func() {}, nil
}

func (s *Speaker) synthesize(ctx context.Context, text string) (string, error) {
	f, err := os.CreateTemp(s.tempDir, "buddy-tts-*.wav")
	if err != nil {
		return "", fmt.Errorf("creating speech file: %w", err)
	}
	path := f.Name()
	f.Close()

	ctx, cancel := context.WithTimeout(ctx, synthTimeout)
	defer cancel()
	err = s.runner.Run(ctx, text, "piper",
		"--model", s.model(),
		"--output_file", path,
		"--length_scale", s.lengthScale(),
	)
	if err != nil {
		os.Remove(path)
		return "", err
	}
	return path, nil
}

func (s *Speaker) wait(ctx context.Context, proc Process, interrupt func() bool) error {
	done := make(chan error, 1)
	go func() { done <- proc.Wait() }()

	s.mu.Lock()
	s.current = proc
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.current = nil
		s.mu.Unlock()
	}()

	tick := time.NewTicker(s.poll)
	defer tick.Stop()
	for {
		select {
		case err := <-done:
			if err != nil && !s.interrupted.Load() {
				return fmt.Errorf("playback: %w", err)
			}
			return nil
		case <-ctx.Done():
			proc.Kill()
			<-done
			return ctx.Err()
		case <-tick.C:
			if interrupt != nil && interrupt() {
				s.interrupted.Store(true)
				proc.Kill()
				<-done
				return nil
			}
		}
	}
}

func (s *Speaker) model() string {
	if s.voicesDir != "" {
		p := filepath.Join(s.voicesDir, s.voice+".onnx")
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return s.voice
}

// lengthScale is piper's inverse speed.
func (s *Speaker) lengthScale() string {
	return strconv.FormatFloat(1/s.speed, 'f', 2, 64)
}

func (s *Speaker) wordsPerMinute() int {
	return int(math.Round(espeakWPM * s.speed))
}

func player(wav string) (string, []string) {
	if runtime.GOOS == "darwin" {
		return "afplay", []string{wav}
	}
	return "aplay", []string{"-q", wav}
}
