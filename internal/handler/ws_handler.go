package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/weiawesome/wes-io-live/liveroom/internal/domain"
	"github.com/weiawesome/wes-io-live/liveroom/internal/hub"
	"github.com/weiawesome/wes-io-live/liveroom/internal/service"
	pkglog "github.com/weiawesome/wes-io-live/liveroom/pkg/log"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for development
	},
}

// WSHandler handles WebSocket connections.
type WSHandler struct {
	hub     *hub.Hub
	service service.LiveRoomService
}

// NewWSHandler creates a new WebSocket handler.
func NewWSHandler(h *hub.Hub, svc service.LiveRoomService) *WSHandler {
	return &WSHandler{
		hub:     h,
		service: svc,
	}
}

// HandleWebSocket upgrades the connection and starts the client pumps.
func (h *WSHandler) HandleWebSocket(c *gin.Context) {
	l := pkglog.L()

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		l.Error().Err(err).Msg("websocket upgrade failed")
		return
	}

	client := hub.NewClient(uuid.New().String(), h.hub, conn)

	// Leaving the room ends any call the session holds.
	client.SetDisconnectHandler(func(c *hub.Client) {
		if err := h.service.HandleDisconnect(context.Background(), c); err != nil {
			l.Error().Err(err).Str(pkglog.FieldClientID, c.ID).Msg("disconnect handler error")
		}
	})

	h.hub.Register(client)

	go client.WritePump()
	go client.ReadPump(h.handleMessage)
}

func (h *WSHandler) handleMessage(client *hub.Client, message []byte) {
	l := pkglog.L().With().Str(pkglog.FieldClientID, client.ID).Logger()

	var base domain.BaseMessage
	if err := json.Unmarshal(message, &base); err != nil {
		client.SendMessage(domain.NewErrorMessage(domain.ErrCodeBadRequest, "Invalid message format"))
		return
	}

	ctx := pkglog.WithLogger(context.Background(), l)

	switch base.Type {
	case domain.MsgTypeAuth:
		var msg domain.AuthMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			client.SendMessage(domain.NewErrorMessage(domain.ErrCodeBadRequest, "Invalid auth message"))
			return
		}
		if err := h.service.HandleAuth(ctx, client, msg.Token); err != nil {
			l.Warn().Err(err).Msg("auth failed")
		}

	case domain.MsgTypeJoinRoom:
		var msg domain.RoomMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			client.SendMessage(domain.NewErrorMessage(domain.ErrCodeBadRequest, "Invalid join_room message"))
			return
		}
		if err := h.service.HandleJoinRoom(ctx, client, msg.RoomID); err != nil {
			l.Error().Err(err).Str(pkglog.FieldRoomID, msg.RoomID).Msg("join room failed")
		}

	case domain.MsgTypeLeaveRoom:
		var msg domain.RoomMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			client.SendMessage(domain.NewErrorMessage(domain.ErrCodeBadRequest, "Invalid leave_room message"))
			return
		}
		if err := h.service.HandleLeaveRoom(ctx, client, msg.RoomID); err != nil {
			l.Error().Err(err).Str(pkglog.FieldRoomID, msg.RoomID).Msg("leave room failed")
		}

	case domain.MsgTypePing:
		client.SendMessage(&domain.BaseMessage{Type: domain.MsgTypePong})

	default:
		if err := h.service.HandleCommand(ctx, client, base.Type, message); err != nil {
			l.Error().Err(err).Str("type", base.Type).Msg("command failed")
		}
	}
}
