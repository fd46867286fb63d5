package service

import (
	"context"
	"errors"

	"github.com/weiawesome/wes-io-live/liveroom/internal/coordinator"
	"github.com/weiawesome/wes-io-live/liveroom/internal/domain"
	"github.com/weiawesome/wes-io-live/liveroom/internal/hub"
	"github.com/weiawesome/wes-io-live/liveroom/pkg/jwt"
)

// ErrSessionNotFound is returned for unknown or finished sessions.
var ErrSessionNotFound = errors.New("session not found")

// LiveRoomService hosts one coordinator per websocket connection that joined
// a room.
type LiveRoomService interface {
	// HandleAuth verifies the access token and binds the identity to the
	// connection.
	HandleAuth(ctx context.Context, client *hub.Client, token string) error

	// HandleJoinRoom fetches the room snapshot and starts a coordinator.
	HandleJoinRoom(ctx context.Context, client *hub.Client, roomID string) error

	// HandleLeaveRoom ends the active call, if any, and stops the coordinator.
	HandleLeaveRoom(ctx context.Context, client *hub.Client, roomID string) error

	// HandleCommand forwards a user gesture to the client's coordinator.
	HandleCommand(ctx context.Context, client *hub.Client, msgType string, raw []byte) error

	// HandleDisconnect cleans up after a closed connection.
	HandleDisconnect(ctx context.Context, client *hub.Client) error

	// SessionState returns the coordinator state of a session.
	SessionState(ctx context.Context, sessionID string) (coordinator.State, error)

	// Start subscribes to the push events of every room.
	Start(ctx context.Context) error

	// Stop stops the event router and every session.
	Stop() error
}

// TokenVerifier validates access tokens.
type TokenVerifier interface {
	Verify(token string) (*jwt.Claims, error)
}

// SnapshotSource returns room-entry snapshots.
type SnapshotSource interface {
	GetSnapshot(ctx context.Context, roomID string) (*domain.RoomSnapshot, error)
}

// MuteStore loads and saves mute preferences.
type MuteStore interface {
	coordinator.MuteSaver
	LoadMute(ctx context.Context, userID string) (domain.MuteState, error)
}
