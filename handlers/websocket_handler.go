package handlers

import (
	"log"
	"net/http"
	"strconv"

	"github.com/Dosada05/ladder-system/events"
	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// В продакшене здесь должна быть проверка Origin.
		return true
	},
}

type WebSocketHandler struct {
	hub *events.Hub
}

func NewWebSocketHandler(hub *events.Hub) *WebSocketHandler {
	return &WebSocketHandler{hub: hub}
}

// ServeWs подписывает клиента на события конкретной лестницы.
// Клиент подключается к /ws/ladders/{ladderID}.
func (h *WebSocketHandler) ServeWs(w http.ResponseWriter, r *http.Request) {
	ladderID, err := strconv.Atoi(chi.URLParam(r, "ladderID"))
	if err != nil || ladderID < 1 {
		http.Error(w, "Invalid ladderID", http.StatusBadRequest)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("Failed to upgrade connection for ladder %d: %v", ladderID, err)
		return
	}

	client := &events.Client{
		Hub:  h.hub,
		Conn: conn,
		Send: make(chan []byte, 256),
		Room: events.LadderRoomID(ladderID),
	}
	client.Hub.Register <- client

	go client.WritePump()
	go client.ReadPump()
}
