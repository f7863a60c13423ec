package handler

import (
	"roomsync/backend/internal/chathub"
	"roomsync/backend/internal/config"
	"roomsync/backend/internal/storage"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// Handler holds what the HTTP routes need: the hub and the store.
type Handler struct {
	Hub   *chathub.ManagerService
	Store storage.Store
	Cfg   *config.Config
}

func NewHandler(hub *chathub.ManagerService, store storage.Store, cfg *config.Config) *Handler {
	return &Handler{Hub: hub, Store: store, Cfg: cfg}
}

// SetupRouter wires every route onto a fresh gin engine.
func SetupRouter(h *Handler) *gin.Engine {
	mode := "release"
	if h.Cfg != nil && h.Cfg.Mode != "" {
		mode = h.Cfg.Mode
	}
	if mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	r.GET("/health", h.Health)
	r.GET("/ready", h.Ready)
	r.GET("/rooms/:roomId", h.GetRoom)
	r.GET("/ws", h.ServeWebSocket)

	log.Info().Str("module", "api").Str("mode", mode).Msg("router setup")
	return r
}
