package pubsub

import "fmt"

// Channel naming for the live room system. Every channel follows
// {prefix}:room:{roomID}:to_{target} so the Kafka driver can derive a topic
// and a partition key from it.
const (
	// Room sessions -> live-room backend (seat, PK, product requests).
	ChannelClientToServer = "client:room:%s:to_server"

	// Live-room backend -> room sessions (push events, responses).
	ChannelServerToClient = "server:room:%s:to_client"

	// PatternServerToClient matches the push channel of every room.
	PatternServerToClient = "server:room:*:to_client"
)

// Request kinds published on the client -> server channel.
const (
	RequestEnterRoom          = "enter_room"
	RequestLeaveRoom          = "leave_room"
	RequestSeatInteraction    = "seat_interaction"
	RequestPKInteraction      = "pk_interaction"
	RequestPKRoomList         = "pk_room_list"
	RequestProductInteraction = "product_interaction"
)

// Push event types published on the server -> client channel.
const (
	EventRoomEntrySnapshot       = "room_entry_snapshot"
	EventSeatStateChanged        = "seat_state_changed"
	EventPKEvent                 = "pk_event"
	EventProductStateChanged     = "product_state_changed"
	EventProductPurchased        = "product_purchased"
	EventRoomClosed              = "room_closed"
	EventSeatInvited             = "seat_invited"
	EventSeatApplied             = "seat_applied"
	EventSeatApplicationAccepted = "seat_application_accepted"
	EventSeatInvitationAccepted  = "seat_invitation_accepted"
	EventSeatApplicationRejected = "seat_application_rejected"
	EventSeatInvitationRejected  = "seat_invitation_rejected"
	EventPKInvitationReceived    = "pk_invitation_received"
	EventPKInvitationAccepted    = "pk_invitation_accepted"
	EventPKInvitationRejected    = "pk_invitation_rejected"
	EventPKRoomList              = "pk_room_list"
	EventProductList             = "product_list"
	EventProductStateResult      = "product_state_result"
	EventProductPurchaseResult   = "product_purchase_result"
)

// ClientToServerChannel returns the request channel of a room.
func ClientToServerChannel(roomID string) string {
	return fmt.Sprintf(ChannelClientToServer, roomID)
}

// ServerToClientChannel returns the push channel of a room.
func ServerToClientChannel(roomID string) string {
	return fmt.Sprintf(ChannelServerToClient, roomID)
}
