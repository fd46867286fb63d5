package pubsub

import (
	"context"
	"encoding/json"
	"time"
)

// Event is the envelope carried on every channel: requests flowing from room
// sessions to the live-room backend and push events flowing back.
type Event struct {
	Type   string `json:"type"`
	RoomID string `json:"room_id"`
	// UserID narrows a push event to one user (peer messages such as seat
	// invitations). Empty means every session in the room.
	UserID    string          `json:"user_id,omitempty"`
	Payload   json.RawMessage `json:"payload"`
	Timestamp time.Time       `json:"timestamp"`
}

// NewEvent creates a room-wide event stamped with the current time.
func NewEvent(eventType, roomID string, payload interface{}) (*Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &Event{
		Type:      eventType,
		RoomID:    roomID,
		Payload:   data,
		Timestamp: time.Now(),
	}, nil
}

// NewPeerEvent creates an event addressed to a single user in a room.
func NewPeerEvent(eventType, roomID, userID string, payload interface{}) (*Event, error) {
	e, err := NewEvent(eventType, roomID, payload)
	if err != nil {
		return nil, err
	}
	e.UserID = userID
	return e, nil
}

// UnmarshalPayload unmarshals the event payload into v.
func (e *Event) UnmarshalPayload(v interface{}) error {
	return json.Unmarshal(e.Payload, v)
}

// Addressed reports whether the event should reach userID.
func (e *Event) Addressed(userID string) bool {
	return e.UserID == "" || e.UserID == userID
}

// Publisher publishes events to the event bus.
type Publisher interface {
	Publish(ctx context.Context, channel string, event *Event) error
}

// Subscriber subscribes to events from the event bus.
type Subscriber interface {
	Subscribe(ctx context.Context, channel string) (<-chan *Event, error)
	SubscribePattern(ctx context.Context, pattern string) (<-chan *Event, error)
	Unsubscribe(ctx context.Context, channel string) error
}

// PubSub combines Publisher and Subscriber interfaces.
type PubSub interface {
	Publisher
	Subscriber
	Close() error
}
