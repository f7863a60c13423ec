package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"roomsync/backend/internal/chathub"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

const probeTimeout = 2 * time.Second

// Health is the liveness probe. It never touches the store.
func (h *Handler) Health(c *gin.Context) {
	resp := gin.H{"status": "ok"}

	ctx, cancel := context.WithTimeout(c.Request.Context(), probeTimeout)
	defer cancel()
	if stats, err := h.Hub.Stats(ctx); err == nil {
		resp["hub"] = stats
	}
	c.JSON(http.StatusOK, resp)
}

// Ready reports whether the durable store answers.
func (h *Handler) Ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), probeTimeout)
	defer cancel()

	if err := h.Store.Ping(ctx); err != nil {
		log.Warn().Err(err).Str("module", "api").Msg("readiness check failed")
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// GetRoom returns the live view of a room held by the hub.
func (h *Handler) GetRoom(c *gin.Context) {
	roomID := c.Param("roomId")

	ctx, cancel := context.WithTimeout(c.Request.Context(), probeTimeout)
	defer cancel()

	snap, found, err := h.Hub.Room(ctx, roomID)
	switch {
	case errors.Is(err, chathub.ErrHubStopped):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	case err != nil:
		c.JSON(http.StatusGatewayTimeout, gin.H{"error": err.Error()})
		return
	case !found:
		c.JSON(http.StatusNotFound, gin.H{"error": "room is not live"})
		return
	}
	c.JSON(http.StatusOK, snap)
}
