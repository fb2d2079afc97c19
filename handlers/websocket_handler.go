package handlers

import (
	"log/slog"
	"net/http"

	"github.com/Tomkoooo/tdarts/brackets"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Tournament views are public read-only streams, any origin may watch.
		return true
	},
}

type WebSocketHandler struct {
	hub *brackets.Hub
}

func NewWebSocketHandler(hub *brackets.Hub) *WebSocketHandler {
	return &WebSocketHandler{hub: hub}
}

// ServeWs upgrades GET /ws/tournaments/{code} and joins the client to the
// tournament's room. Rooms are keyed by tournament code.
func (h *WebSocketHandler) ServeWs(w http.ResponseWriter, r *http.Request) {
	code, err := getCodeFromURL(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("websocket upgrade failed", slog.String("code", code), slog.Any("error", err))
		return
	}

	client := &brackets.Client{
		Hub:  h.hub,
		Conn: conn,
		Send: make(chan []byte, 256),
		Room: code,
	}
	client.Hub.Register <- client

	go client.WritePump()
	go client.ReadPump()

	slog.Debug("viewer joined tournament room", slog.String("code", code))
}
