// Package router picks the backend for each turn and falls back across
// backends when one fails.
package router

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kalambet/buddy/internal/llm"
)

// Mode is the configured backend selection policy.
type Mode string

const (
	ModeAuto   Mode = "auto"
	ModeLocal  Mode = "local"
	ModeGroq   Mode = "groq"
	ModeGemini Mode = "gemini"
)

// Modes lists every valid mode.
var Modes = []Mode{ModeAuto, ModeLocal, ModeGroq, ModeGemini}

// ParseMode validates s as a mode. Matching ignores case.
func ParseMode(s string) (Mode, error) {
	m := Mode(strings.ToLower(strings.TrimSpace(s)))
	for _, v := range Modes {
		if v == m {
			return m, nil
		}
	}
	return "", fmt.Errorf("invalid mode %q: must be one of auto, local, groq, gemini", s)
}

// ModeStore persists explicit mode switches.
type ModeStore interface {
	SaveMode(mode string) error
}

// Prober reports whether the network is reachable.
type Prober interface {
	Online(ctx context.Context) bool
}

// DialProber probes connectivity with a TCP dial.
type DialProber struct {
	Addr    string
	Timeout time.Duration
}

// DefaultProber dials a public DNS server with a short timeout.
var DefaultProber = DialProber{Addr: "8.8.8.8:53", Timeout: 3 * time.Second}

func (p DialProber) Online(ctx context.Context) bool {
	d := net.Dialer{Timeout: p.Timeout}
	conn, err := d.DialContext(ctx, "tcp", p.Addr)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}

// Options configures a Selector.
type Options struct {
	Mode Mode
	// CloudPriority orders cloud backends for auto selection and fallback.
	CloudPriority []llm.ID
	PreferOnline  bool
	AutoFallback  bool
	Prober        Prober
	Store         ModeStore
}

// Selector holds the process-wide mode and resolves it to backends.
type Selector struct {
	local        llm.Backend
	clouds       []llm.Backend
	preferOnline bool
	autoFallback bool
	prober       Prober
	store        ModeStore

	mode atomic.Value // Mode
	last atomic.Value // llm.ID

	// writeMu serializes switches so the persisted mode matches the live one.
	writeMu sync.Mutex
}

// NewSelector builds a selector. local is required; clouds holds the
// configured cloud backends in any order and is arranged by
// opts.CloudPriority. Cloud backends missing from the priority list are
// tried last.
func NewSelector(local llm.Backend, clouds []llm.Backend, opts Options) *Selector {
	s := &Selector{
		local:        local,
		clouds:       orderClouds(clouds, opts.CloudPriority),
		preferOnline: opts.PreferOnline,
		autoFallback: opts.AutoFallback,
		prober:       opts.Prober,
		store:        opts.Store,
	}
	if s.prober == nil {
		s.prober = DefaultProber
	}
	mode := opts.Mode
	if _, err := ParseMode(string(mode)); err != nil {
		mode = ModeAuto
	}
	s.mode.Store(mode)
	s.last.Store(llm.ID(""))
	return s
}

func orderClouds(clouds []llm.Backend, priority []llm.ID) []llm.Backend {
	ordered := make([]llm.Backend, 0, len(clouds))
	used := make(map[llm.ID]bool)
	for _, id := range priority {
		for _, b := range clouds {
			if b.ID() == id && !used[id] {
				ordered = append(ordered, b)
				used[id] = true
			}
		}
	}
	for _, b := range clouds {
		if !used[b.ID()] {
			ordered = append(ordered, b)
			used[b.ID()] = true
		}
	}
	return ordered
}

// Mode returns the current mode.
func (s *Selector) Mode() Mode {
	return s.mode.Load().(Mode)
}

// Last returns the backend that produced the most recent successful reply,
// or "" before the first one.
func (s *Selector) Last() llm.ID {
	return s.last.Load().(llm.ID)
}

func (s *Selector) setLast(id llm.ID) {
	s.last.Store(id)
}

// SetMode switches the mode and persists it. A persistence failure is
// returned but the switch stays in effect.
func (s *Selector) SetMode(m Mode) error {
	m, err := ParseMode(string(m))
	if err != nil {
		return err
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	prev := s.Mode()
	s.mode.Store(m)
	slog.Info("backend mode switched", "from", prev, "to", m)
	if s.store != nil {
		if err := s.store.SaveMode(string(m)); err != nil {
			return fmt.Errorf("persisting mode: %w", err)
		}
	}
	return nil
}

// Backends returns every configured backend, local first then clouds in
// priority order.
func (s *Selector) Backends() []llm.Backend {
	return append([]llm.Backend{s.local}, s.clouds...)
}

func (s *Selector) cloud(id llm.ID) llm.Backend {
	for _, b := range s.clouds {
		if b.ID() == id {
			return b
		}
	}
	return nil
}

// Select returns the backend for this turn. Auto mode is evaluated on every
// call.
func (s *Selector) Select(ctx context.Context) llm.Backend {
	switch mode := s.Mode(); mode {
	case ModeLocal:
		return s.local
	case ModeGroq, ModeGemini:
		if b := s.cloud(llm.ID(mode)); b != nil {
			return b
		}
		slog.Warn("selected backend not configured, using local", "mode", mode)
		return s.local
	default:
		if !s.preferOnline || len(s.clouds) == 0 {
			return s.local
		}
		if !s.prober.Online(ctx) {
			slog.Debug("offline, using local backend")
			return s.local
		}
		return s.clouds[0]
	}
}

// Candidates returns the fallback chain to try after active failed: every
// cloud backend in priority order when local failed, local alone when a
// cloud backend failed, nothing when fallback is disabled.
func (s *Selector) Candidates(active llm.ID) []llm.Backend {
	if !s.autoFallback {
		return nil
	}
	if active == llm.IDLocal {
		return append([]llm.Backend(nil), s.clouds...)
	}
	return []llm.Backend{s.local}
}
