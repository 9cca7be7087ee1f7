// Package api exposes the companion over a local HTTP API and MCP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/kalambet/buddy/internal/action"
	"github.com/kalambet/buddy/internal/companion"
	"github.com/kalambet/buddy/internal/events"
	"github.com/kalambet/buddy/internal/llm"
	"github.com/kalambet/buddy/internal/router"
	"github.com/kalambet/buddy/internal/storage"
)

const maxRequestBodySize = 1 << 20 // 1MB

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 200
)

// Chatter runs one text turn through the companion.
type Chatter interface {
	Submit(ctx context.Context, text string) (companion.Turn, error)
}

// Backends reads and switches the backend selection mode.
type Backends interface {
	Mode() router.Mode
	SetMode(m router.Mode) error
	Last() llm.ID
	Backends() []llm.Backend
}

// History lists the chat log.
type History interface {
	RecentMessages(ctx context.Context, limit int) ([]storage.Message, error)
}

type AppDeps struct {
	Chat     Chatter
	Backends Backends
	History  History
	Bus      *events.Bus
	Token    string
}

type ChatRequest struct {
	Message string `json:"message"`
}

type BackendRequest struct {
	Mode string `json:"mode"`
}

type BackendInfo struct {
	ID    llm.ID `json:"id"`
	Label string `json:"label"`
	Model string `json:"model"`
}

type BackendStatus struct {
	Mode     router.Mode   `json:"mode"`
	Last     llm.ID        `json:"last,omitempty"`
	Backends []BackendInfo `json:"backends"`
	// Warning is set when a switch took effect but could not be saved.
	Warning string `json:"warning,omitempty"`
}

func NewAppHandler(deps AppDeps) http.Handler {
	r := chi.NewRouter()

	r.Get("/health", handleHealth(deps))

	r.Group(func(r chi.Router) {
		r.Use(BearerAuth(deps.Token))
		r.Post("/chat", handleChat(deps))
		r.Get("/backend", handleGetBackend(deps))
		r.Put("/backend", handlePutBackend(deps))
		r.Get("/history", handleHistory(deps))
		r.Get("/events", handleEvents(deps))
	})

	return r
}

func handleHealth(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := map[string]string{"status": "ok"}
		if deps.Backends != nil {
			resp["mode"] = string(deps.Backends.Mode())
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func handleChat(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		var req ChatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if strings.TrimSpace(req.Message) == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "message is required")
			return
		}

		turn, err := deps.Chat.Submit(r.Context(), req.Message)
		if errors.Is(err, companion.ErrWorkerStopped) {
			httpError(w, http.StatusServiceUnavailable, "api_error", "companion is shutting down")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "chat failed: %v", err)
			return
		}
		if turn.Actions == nil {
			turn.Actions = []action.Action{}
		}
		writeJSON(w, http.StatusOK, turn)
	}
}

func handleGetBackend(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, backendStatus(deps.Backends))
	}
}

func handlePutBackend(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		var req BackendRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		mode, err := router.ParseMode(req.Mode)
		if err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", err)
			return
		}

		saveErr := deps.Backends.SetMode(mode)
		status := backendStatus(deps.Backends)
		if saveErr != nil {
			status.Warning = fmt.Sprintf("switched for this session but not saved: %v", saveErr)
		}
		writeJSON(w, http.StatusOK, status)
	}
}

func handleHistory(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := parseIntParam(r, "limit", defaultHistoryLimit, maxHistoryLimit)
		msgs, err := deps.History.RecentMessages(r.Context(), limit)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to list history: %v", err)
			return
		}
		if msgs == nil {
			msgs = []storage.Message{}
		}
		writeJSON(w, http.StatusOK, msgs)
	}
}

func backendStatus(b Backends) BackendStatus {
	st := BackendStatus{Mode: b.Mode(), Last: b.Last(), Backends: []BackendInfo{}}
	for _, be := range b.Backends() {
		st.Backends = append(st.Backends, BackendInfo{ID: be.ID(), Label: be.ID().Label(), Model: be.Model()})
	}
	return st
}

func parseIntParam(r *http.Request, key string, defaultVal, maxVal int) int {
	s := r.URL.Query().Get(key)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil || v <= 0 {
		return defaultVal
	}
	if maxVal > 0 && v > maxVal {
		return maxVal
	}
	return v
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	writeJSON(w, code, map[string]any{
		"error": map[string]any{
			"message": fmt.Sprintf(format, args...),
			"type":    errType,
		},
	})
}
