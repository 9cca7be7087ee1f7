package api

import (
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/gorilla/websocket"
)

const (
	eventsWriteWait  = 10 * time.Second
	eventsPongWait   = 60 * time.Second
	eventsPingPeriod = eventsPongWait * 9 / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     localOrigin,
}

// localOrigin admits non-browser clients and pages served from this machine.
func localOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	switch u.Hostname() {
	case "localhost", "127.0.0.1", "::1":
		return true
	}
	return false
}

// handleEvents streams bus events to a websocket client as JSON messages.
func handleEvents(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if deps.Bus == nil {
			httpError(w, http.StatusServiceUnavailable, "api_error", "event stream not available")
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			// Upgrade has already written the HTTP error.
			slog.Debug("websocket upgrade failed", "error", err)
			return
		}
		defer conn.Close()

		events, unsubscribe := deps.Bus.Subscribe()
		defer unsubscribe()

		// Reader: handles pongs and notices when the client goes away.
		closed := make(chan struct{})
		conn.SetReadDeadline(time.Now().Add(eventsPongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(eventsPongWait))
		})
		go func() {
			defer close(closed)
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()

		ping := time.NewTicker(eventsPingPeriod)
		defer ping.Stop()
		for {
			select {
			case <-closed:
				return
			case <-r.Context().Done():
				return
			case e, ok := <-events:
				if !ok {
					return
				}
				conn.SetWriteDeadline(time.Now().Add(eventsWriteWait))
				if err := conn.WriteJSON(e); err != nil {
					slog.Debug("event stream write failed", "error", err)
					return
				}
			case <-ping.C:
				conn.SetWriteDeadline(time.Now().Add(eventsWriteWait))
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			}
		}
	}
}
