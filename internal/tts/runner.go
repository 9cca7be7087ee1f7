// Package tts speaks replies aloud through piper, falling back to espeak.
package tts

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// Process is a started playback command.
type Process interface {
	Wait() error
	Kill() error
}

// Runner executes the external speech tools.
type Runner interface {
	// Run executes name to completion with stdin as its input.
	Run(ctx context.Context, stdin, name string, args ...string) error
	// Start launches name without waiting for it.
	Start(ctx context.Context, name string, args ...string) (Process, error)
}

// ExecRunner runs real binaries from PATH.
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, stdin, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdin = strings.NewReader(stdin)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return fmt.Errorf("%s: %w: %s", name, err, msg)
		}
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}

func (ExecRunner) Start(ctx context.Context, name string, args ...string) (Process, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("starting %s: %w", name, err)
	}
	return cmdProcess{cmd}, nil
}

type cmdProcess struct{ cmd *exec.Cmd }

func (p cmdProcess) Wait() error { return p.cmd.Wait() }
func (p cmdProcess) Kill() error { return p.cmd.Process.Kill() }
