package chathub

import (
	"sync"
	"time"

	"roomsync/backend/internal/config"
	"roomsync/backend/internal/models"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const writeWait = 10 * time.Second

// WebSocketClient implements Client over a gorilla websocket connection.
type WebSocketClient struct {
	ConnID string
	Conn   *websocket.Conn
	Hub    *ManagerService
	Send   chan models.OutboundEvent

	readLimit  int64
	pingPeriod time.Duration
	closeOnce  sync.Once
}

func NewWebSocketClient(hub *ManagerService, conn *websocket.Conn, connID string, cfg *config.Config) *WebSocketClient {
	c := &WebSocketClient{
		ConnID:     connID,
		Conn:       conn,
		Hub:        hub,
		Send:       make(chan models.OutboundEvent, config.DefaultSendBuffer),
		readLimit:  config.DefaultReadLimit,
		pingPeriod: config.DefaultPingPeriod,
	}
	if cfg != nil {
		c.Send = make(chan models.OutboundEvent, cfg.SendBuffer)
		c.readLimit = cfg.ReadLimit
		c.pingPeriod = cfg.PingPeriod
	}
	return c
}

func (c *WebSocketClient) GetConnID() string                           { return c.ConnID }
func (c *WebSocketClient) GetSendChannel() chan<- models.OutboundEvent { return c.Send }

// Run starts the pumps.
func (c *WebSocketClient) Run() {
	go c.writePump()
	go c.readPump()
}

// Close closes Send, which makes writePump send a close frame and hang up.
// Only the hub sends on Send, and it forgets the client before calling Close.
func (c *WebSocketClient) Close() {
	c.closeOnce.Do(func() { close(c.Send) })
}

// pongWait is how long the peer has to answer a ping.
func (c *WebSocketClient) pongWait() time.Duration {
	return c.pingPeriod * 10 / 9
}

func (c *WebSocketClient) readPump() {
	defer func() {
		select {
		case c.Hub.UnregisterCh <- c:
		case <-c.Hub.Done():
		}
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(c.readLimit)
	c.Conn.SetReadDeadline(time.Now().Add(c.pongWait()))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(c.pongWait()))
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn().Err(err).Str("module", "gateway").Str("conn", c.ConnID).Msg("unexpected close")
			}
			return
		}

		ev, err := DecodeEvent(message)
		if err != nil {
			log.Warn().Err(err).Str("module", "gateway").Str("conn", c.ConnID).Msg("dropping malformed event")
			continue
		}

		select {
		case c.Hub.IncomingCh <- Inbound{ConnID: c.ConnID, Event: ev}:
		case <-c.Hub.Done():
			return
		}
	}
}

// writePump writes one JSON text frame per queued event and keeps the peer alive with pings.
func (c *WebSocketClient) writePump() {
	ticker := time.NewTicker(c.pingPeriod)

	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case ev, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// the hub closed the channel
				c.Conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.Conn.WriteJSON(ev); err != nil {
				log.Debug().Err(err).Str("module", "gateway").Str("conn", c.ConnID).Msg("write failed")
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
