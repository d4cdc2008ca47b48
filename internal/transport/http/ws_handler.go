package http

import (
	"log/slog"
	"net/http"

	"github.com/daiyabarus/FAC/internal/websocket"
)

// WSHandler upgrades clients onto the run event stream.
type WSHandler struct {
	hub    *websocket.Hub
	logger *slog.Logger
}

// NewWSHandler creates a websocket handler over the hub.
func NewWSHandler(hub *websocket.Hub, logger *slog.Logger) *WSHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &WSHandler{
		hub:    hub,
		logger: logger.With(slog.String("handler", "ws")),
	}
}

// Serve handles GET /ws.
func (h *WSHandler) Serve(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error response.
		h.logger.WarnContext(r.Context(), "websocket upgrade failed",
			slog.String("error", err.Error()),
			slog.String("remote_addr", r.RemoteAddr),
		)
		return
	}
	websocket.ServeWS(h.hub, conn)
}
