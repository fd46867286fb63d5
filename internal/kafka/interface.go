package kafka

import "context"

// SessionEvent records a change of a room's video mode, emitted by the owner's
// session.
type SessionEvent struct {
	Type      string `json:"type"`
	RoomID    string `json:"room_id"`
	UserID    string `json:"user_id"`
	PeerID    string `json:"peer_id,omitempty"`    // co-host user for call events
	PKRoomID  string `json:"pk_room_id,omitempty"` // opposing room for PK events
	Result    string `json:"result,omitempty"`     // "win" | "draw" | "lose"
	Timestamp int64  `json:"timestamp"`
}

// Event types
const (
	EventCallStarted = "call_started"
	EventCallEnded   = "call_ended"
	EventPKStarted   = "pk_started"
	EventPKEnded     = "pk_ended"
)

// SessionEventProducer defines the interface for producing session events.
type SessionEventProducer interface {
	ProduceSessionEvent(ctx context.Context, event *SessionEvent) error
	Close() error
}
