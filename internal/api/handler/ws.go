package handler

import (
	"net/http"

	"roomsync/backend/internal/chathub"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// rooms are open to any origin; there is no authentication to protect
	CheckOrigin: func(r *http.Request) bool { return true },
}

// ServeWebSocket оновлює з'єднання до WebSocket і передає його хабу.
func (h *Handler) ServeWebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade has already written the HTTP error
		log.Warn().Err(err).Str("module", "api").Msg("websocket upgrade failed")
		return
	}

	connID := uuid.NewString()
	client := chathub.NewWebSocketClient(h.Hub, conn, connID, h.Cfg)

	if !h.Hub.Register(client) {
		conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
		conn.Close()
		return
	}

	log.Debug().Str("module", "api").Str("conn", connID).Str("remote", c.ClientIP()).Msg("websocket connected")
	client.Run()
}
