package coordinator

import (
	"context"
	"time"

	"github.com/weiawesome/wes-io-live/liveroom/internal/domain"
	"github.com/weiawesome/wes-io-live/liveroom/internal/kafka"
)

// Shell renders the session. Calls are fire-and-forget.
type Shell interface {
	AttachLocalCapture(surface domain.Surface)
	DetachLocalCapture()
	AttachRemoteSink(surface domain.Surface, participantID int) domain.SinkHandle
	DetachSink(handle domain.SinkHandle)
	SetLayout(layout domain.Layout)
	ShowPKScores(local, remote int)
	ShowPKResult(result domain.PKResult)
	ClearPKResult()
	// ShowModalChoice asks the user to accept or reject. Either callback may
	// be nil. They may be invoked from any goroutine, at most one of them once.
	ShowModalChoice(title, message string, onAccept, onReject func())
	ShowNotice(message string)
	ShowProducts(products []domain.Product)
	// ShowPKRooms lists rooms the owner can challenge. nextID pages further.
	ShowPKRooms(rooms []domain.PKRoom, nextID string)
}

// Media controls the local media engine.
type Media interface {
	SetBroadcaster(enabled bool)
	MuteLocal(state domain.MuteState)
	StartRelay(cfg domain.RelayConfig)
	StopRelay()
}

// SeatRequester sends seat interactions.
type SeatRequester interface {
	Invite(ctx context.Context, roomID, userID string, seatNo int)
	Apply(ctx context.Context, roomID, userID string, seatNo int)
	OwnerAccept(ctx context.Context, roomID, userID string, seatNo int)
	OwnerReject(ctx context.Context, roomID, userID string, seatNo int)
	AudienceAccept(ctx context.Context, roomID, userID string, seatNo int)
	AudienceReject(ctx context.Context, roomID, userID string, seatNo int)
	ForceLeave(ctx context.Context, roomID, userID string, seatNo int)
	HostLeave(ctx context.Context, roomID, userID string, seatNo int)
}

// PKRequester sends PK interactions.
type PKRequester interface {
	Invite(ctx context.Context, localRoomID, remoteRoomID string)
	Accept(ctx context.Context, localRoomID, remoteRoomID string)
	Reject(ctx context.Context, localRoomID, remoteRoomID string)
	RequestRoomList(ctx context.Context, localRoomID, nextID string)
}

// ProductRequester sends catalog requests.
type ProductRequester interface {
	RequestList(ctx context.Context, roomID string)
	RequestChangeState(ctx context.Context, roomID, productID string, state domain.ProductState)
	RequestPurchase(ctx context.Context, roomID, productID string, quantity int)
}

// MuteSaver persists the user's mute preference.
type MuteSaver interface {
	SaveMute(ctx context.Context, userID string, state domain.MuteState) error
}

// EventProducer records room mode transitions.
type EventProducer interface {
	ProduceSessionEvent(ctx context.Context, event *kafka.SessionEvent) error
}

// Task is a scheduled single-shot callback. *time.Timer satisfies it.
type Task interface {
	Stop() bool
}

// Scheduler runs f once after d unless the returned task is stopped first.
type Scheduler interface {
	AfterFunc(d time.Duration, f func()) Task
}

type clockScheduler struct{}

func (clockScheduler) AfterFunc(d time.Duration, f func()) Task {
	return time.AfterFunc(d, f)
}

// ClockScheduler schedules on the wall clock.
func ClockScheduler() Scheduler {
	return clockScheduler{}
}
