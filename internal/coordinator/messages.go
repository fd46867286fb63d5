package coordinator

import (
	"errors"
	"fmt"

	"github.com/weiawesome/wes-io-live/liveroom/internal/domain"
	"github.com/weiawesome/wes-io-live/liveroom/pkg/pubsub"
)

// Message is anything the coordinator loop consumes: inbound push events,
// user commands, and its own timer and query messages.
type Message interface {
	message()
}

// Inbound push events.

type RoomEntered struct{ Snapshot domain.RoomSnapshot }
type SeatStateChanged struct{ Seats []domain.SeatInfo }
type PKEvent struct{ domain.PKEventPayload }
type SeatInvited struct{ Peer domain.SeatPeerPayload }
type SeatApplied struct{ Peer domain.SeatPeerPayload }
type SeatApplicationAccepted struct{ Peer domain.SeatPeerPayload }
type SeatInvitationAccepted struct{ Peer domain.SeatPeerPayload }
type SeatApplicationRejected struct{ Peer domain.SeatPeerPayload }
type SeatInvitationRejected struct{ Peer domain.SeatPeerPayload }
type PKInvitationReceived struct{ Peer domain.PKPeerPayload }
type PKInvitationAccepted struct{ Peer domain.PKPeerPayload }
type PKInvitationRejected struct{ Peer domain.PKPeerPayload }
type PKRoomListReceived struct{ domain.PKRoomListPayload }
type ProductStateChanged struct{ domain.ProductStatePayload }
type ProductPurchased struct{ domain.ProductPurchasePayload }
type ProductListReceived struct{ Products []domain.Product }
type ProductStateResult struct{ domain.ProductStatePayload }
type ProductPurchaseResult struct{ domain.ProductPurchasePayload }
type RoomClosed struct{ Reason string }

// User commands.

type RequestCoHost struct{}
type InviteCoHost struct{ UserID, UserName string }
type AcceptInvite struct {
	OwnerID string
	SeatNo  int
}
type RejectInvite struct {
	OwnerID string
	SeatNo  int
}
type AcceptApply struct {
	UserID   string
	UserName string
	SeatNo   int
}
type RejectApply struct {
	UserID string
	SeatNo int
}
type ForceEndCall struct{}
type ListPKRooms struct{ NextID string }
type InvitePK struct{ RoomID string }
type AcceptPK struct{ RoomID string }
type RejectPK struct{ RoomID string }
type ToggleAudio struct{}
type ToggleVideo struct{}
type ListProducts struct{}
type ChangeProductState struct {
	ProductID string
	State     domain.ProductState
}
type PurchaseProduct struct {
	ProductID string
	Quantity  int
}
type Leave struct{}

// Internal.

type applyConfirmed struct{}
type pkRevert struct{ gen uint64 }
type stateQuery struct{ reply chan State }
type shutdown struct{}

func (RoomEntered) message()             {}
func (SeatStateChanged) message()        {}
func (PKEvent) message()                 {}
func (SeatInvited) message()             {}
func (SeatApplied) message()             {}
func (SeatApplicationAccepted) message() {}
func (SeatInvitationAccepted) message()  {}
func (SeatApplicationRejected) message() {}
func (SeatInvitationRejected) message()  {}
func (PKInvitationReceived) message()    {}
func (PKInvitationAccepted) message()    {}
func (PKInvitationRejected) message()    {}
func (PKRoomListReceived) message()      {}
func (ProductStateChanged) message()     {}
func (ProductPurchased) message()        {}
func (ProductListReceived) message()     {}
func (ProductStateResult) message()      {}
func (ProductPurchaseResult) message()   {}
func (RoomClosed) message()              {}
func (RequestCoHost) message()           {}
func (InviteCoHost) message()            {}
func (AcceptInvite) message()            {}
func (RejectInvite) message()            {}
func (AcceptApply) message()             {}
func (RejectApply) message()             {}
func (ForceEndCall) message()            {}
func (ListPKRooms) message()             {}
func (InvitePK) message()                {}
func (AcceptPK) message()                {}
func (RejectPK) message()                {}
func (ToggleAudio) message()             {}
func (ToggleVideo) message()             {}
func (ListProducts) message()            {}
func (ChangeProductState) message()      {}
func (PurchaseProduct) message()         {}
func (Leave) message()                   {}
func (applyConfirmed) message()          {}
func (pkRevert) message()                {}
func (stateQuery) message()              {}
func (shutdown) message()                {}

// ErrUnknownEvent is returned by DecodeEvent for event types the coordinator
// does not consume.
var ErrUnknownEvent = errors.New("unknown event type")

// DecodeEvent turns a push event into the matching message.
func DecodeEvent(ev *pubsub.Event) (Message, error) {
	var (
		msg Message
		err error
	)

	switch ev.Type {
	case pubsub.EventRoomEntrySnapshot:
		var m RoomEntered
		err = ev.UnmarshalPayload(&m.Snapshot)
		msg = m
	case pubsub.EventSeatStateChanged:
		var p domain.SeatStateChangedPayload
		err = ev.UnmarshalPayload(&p)
		msg = SeatStateChanged{Seats: p.Seats}
	case pubsub.EventPKEvent:
		var m PKEvent
		err = ev.UnmarshalPayload(&m.PKEventPayload)
		msg = m
	case pubsub.EventSeatInvited:
		var m SeatInvited
		err = ev.UnmarshalPayload(&m.Peer)
		msg = m
	case pubsub.EventSeatApplied:
		var m SeatApplied
		err = ev.UnmarshalPayload(&m.Peer)
		msg = m
	case pubsub.EventSeatApplicationAccepted:
		var m SeatApplicationAccepted
		err = ev.UnmarshalPayload(&m.Peer)
		msg = m
	case pubsub.EventSeatInvitationAccepted:
		var m SeatInvitationAccepted
		err = ev.UnmarshalPayload(&m.Peer)
		msg = m
	case pubsub.EventSeatApplicationRejected:
		var m SeatApplicationRejected
		err = ev.UnmarshalPayload(&m.Peer)
		msg = m
	case pubsub.EventSeatInvitationRejected:
		var m SeatInvitationRejected
		err = ev.UnmarshalPayload(&m.Peer)
		msg = m
	case pubsub.EventPKInvitationReceived:
		var m PKInvitationReceived
		err = ev.UnmarshalPayload(&m.Peer)
		msg = m
	case pubsub.EventPKInvitationAccepted:
		var m PKInvitationAccepted
		err = ev.UnmarshalPayload(&m.Peer)
		msg = m
	case pubsub.EventPKInvitationRejected:
		var m PKInvitationRejected
		err = ev.UnmarshalPayload(&m.Peer)
		msg = m
	case pubsub.EventPKRoomList:
		var m PKRoomListReceived
		err = ev.UnmarshalPayload(&m.PKRoomListPayload)
		msg = m
	case pubsub.EventProductStateChanged:
		var m ProductStateChanged
		err = ev.UnmarshalPayload(&m.ProductStatePayload)
		msg = m
	case pubsub.EventProductPurchased:
		var m ProductPurchased
		err = ev.UnmarshalPayload(&m.ProductPurchasePayload)
		msg = m
	case pubsub.EventProductList:
		var p domain.ProductListPayload
		err = ev.UnmarshalPayload(&p)
		msg = ProductListReceived{Products: p.Products}
	case pubsub.EventProductStateResult:
		var m ProductStateResult
		err = ev.UnmarshalPayload(&m.ProductStatePayload)
		msg = m
	case pubsub.EventProductPurchaseResult:
		var m ProductPurchaseResult
		err = ev.UnmarshalPayload(&m.ProductPurchasePayload)
		msg = m
	case pubsub.EventRoomClosed:
		var p domain.RoomClosedPayload
		if len(ev.Payload) > 0 {
			err = ev.UnmarshalPayload(&p)
		}
		msg = RoomClosed{Reason: p.Reason}
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownEvent, ev.Type)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to decode %s payload: %w", ev.Type, err)
	}
	return msg, nil
}
