package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/weiawesome/wes-io-live/liveroom/internal/hub"
	"github.com/weiawesome/wes-io-live/liveroom/internal/service"
	"github.com/weiawesome/wes-io-live/liveroom/pkg/log"
	"github.com/weiawesome/wes-io-live/liveroom/pkg/middleware"
	"github.com/weiawesome/wes-io-live/liveroom/pkg/response"
)

// Handler serves the HTTP surface: health, the websocket endpoint and session
// inspection.
type Handler struct {
	hub            *hub.Hub
	service        service.LiveRoomService
	ws             *WSHandler
	authMiddleware *middleware.AuthMiddleware
}

// NewHandler creates a new HTTP handler.
func NewHandler(h *hub.Hub, svc service.LiveRoomService, authMiddleware *middleware.AuthMiddleware) *Handler {
	return &Handler{
		hub:            h,
		service:        svc,
		ws:             NewWSHandler(h, svc),
		authMiddleware: authMiddleware,
	}
}

// RegisterRoutes registers all routes.
func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/health", h.Health)
	r.GET("/ws", h.ws.HandleWebSocket)

	api := r.Group("/api/v1")
	{
		sessions := api.Group("/sessions")
		{
			sessions.GET("/:id", h.authMiddleware.RequireAuth(), h.GetSession)
		}
	}
}

// Health reports liveness and hub occupancy.
func (h *Handler) Health(c *gin.Context) {
	clients, rooms := h.hub.Stats()
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"clients": clients,
		"rooms":   rooms,
	})
}

// GetSession returns the coordinator state of one of the caller's sessions.
func (h *Handler) GetSession(c *gin.Context) {
	ctx := c.Request.Context()
	l := log.Ctx(ctx)

	state, err := h.service.SessionState(ctx, c.Param("id"))
	if err != nil {
		if errors.Is(err, service.ErrSessionNotFound) {
			response.NotFound(c, "session not found")
			return
		}
		l.Error().Err(err).Msg("failed to read session state")
		response.InternalError(c, "failed to read session state")
		return
	}

	// Other users' sessions are reported as missing.
	if state.UserID != middleware.GetUserID(c) {
		response.NotFound(c, "session not found")
		return
	}

	response.Success(c, state)
}
