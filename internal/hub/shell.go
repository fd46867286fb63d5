package hub

import (
	"errors"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/weiawesome/wes-io-live/liveroom/internal/coordinator"
	"github.com/weiawesome/wes-io-live/liveroom/internal/domain"
	pkglog "github.com/weiawesome/wes-io-live/liveroom/pkg/log"
)

// Sender delivers a message to the websocket peer.
type Sender interface {
	SendMessage(message interface{}) error
}

type modalChoice struct {
	onAccept func()
	onReject func()
}

// ClientShell renders a coordinator on the websocket peer: every presentation
// and media call becomes one message. Modal answers come back through
// AnswerModal.
type ClientShell struct {
	sender   Sender
	logger   zerolog.Logger
	nextSink atomic.Int64

	mu         sync.Mutex
	modals     map[string]modalChoice
	onOverflow func()
	overflow   sync.Once
}

var (
	_ coordinator.Shell = (*ClientShell)(nil)
	_ coordinator.Media = (*ClientShell)(nil)
)

// NewClientShell creates a shell writing to sender.
func NewClientShell(sender Sender, clientID string) *ClientShell {
	return &ClientShell{
		sender: sender,
		logger: pkglog.L().With().Str(pkglog.FieldClientID, clientID).Logger(),
		modals: make(map[string]modalChoice),
	}
}

// OnOverflow sets f to run once when the peer stops keeping up. Every message
// after the first dropped one is suspect, so the session should be rebuilt.
func (s *ClientShell) OnOverflow(f func()) {
	s.mu.Lock()
	s.onOverflow = f
	s.mu.Unlock()
}

func (s *ClientShell) send(msg interface{}) {
	err := s.sender.SendMessage(msg)
	switch {
	case err == nil:
	case errors.Is(err, ErrSendBufferFull):
		s.overflow.Do(func() {
			s.logger.Warn().Err(err).Msg("presentation message dropped, view out of sync")
			s.mu.Lock()
			f := s.onOverflow
			s.mu.Unlock()
			if f != nil {
				f()
			}
		})
	default:
		s.logger.Warn().Err(err).Msg("failed to send presentation message")
	}
}

func (s *ClientShell) AttachLocalCapture(surface domain.Surface) {
	s.send(&domain.SurfaceMessage{Type: domain.MsgTypeAttachLocalCapture, Surface: surface})
}

func (s *ClientShell) DetachLocalCapture() {
	s.send(&domain.SurfaceMessage{Type: domain.MsgTypeDetachLocalCapture})
}

// AttachRemoteSink names the sink so the peer can detach it later.
func (s *ClientShell) AttachRemoteSink(surface domain.Surface, participantID int) domain.SinkHandle {
	handle := domain.SinkHandle(s.nextSink.Add(1))
	s.send(&domain.SurfaceMessage{
		Type:          domain.MsgTypeAttachRemoteSink,
		Surface:       surface,
		ParticipantID: participantID,
		SinkID:        handle,
	})
	return handle
}

func (s *ClientShell) DetachSink(handle domain.SinkHandle) {
	s.send(&domain.SurfaceMessage{Type: domain.MsgTypeDetachSink, SinkID: handle})
}

func (s *ClientShell) SetLayout(layout domain.Layout) {
	s.send(&domain.LayoutMessage{Type: domain.MsgTypeSetLayout, Layout: layout})
}

func (s *ClientShell) ShowPKScores(local, remote int) {
	s.send(&domain.PKScoresMessage{Type: domain.MsgTypePKScores, Local: local, Remote: remote})
}

func (s *ClientShell) ShowPKResult(result domain.PKResult) {
	s.send(&domain.PKResultMessage{Type: domain.MsgTypePKResult, Result: result})
}

func (s *ClientShell) ClearPKResult() {
	s.send(&domain.BaseMessage{Type: domain.MsgTypeClearPKResult})
}

// ShowModalChoice registers the callbacks under a fresh modal id.
func (s *ClientShell) ShowModalChoice(title, message string, onAccept, onReject func()) {
	id := uuid.NewString()

	s.mu.Lock()
	s.modals[id] = modalChoice{onAccept: onAccept, onReject: onReject}
	s.mu.Unlock()

	s.send(&domain.ModalMessage{Type: domain.MsgTypeModal, ModalID: id, Title: title, Message: message})
}

func (s *ClientShell) ShowNotice(message string) {
	s.send(&domain.NoticeMessage{Type: domain.MsgTypeNotice, Message: message})
}

func (s *ClientShell) ShowProducts(products []domain.Product) {
	s.send(&domain.ProductsMessage{Type: domain.MsgTypeProducts, Products: products})
}

func (s *ClientShell) ShowPKRooms(rooms []domain.PKRoom, nextID string) {
	s.send(&domain.PKRoomsMessage{Type: domain.MsgTypePKRooms, Rooms: rooms, NextID: nextID})
}

func (s *ClientShell) SetBroadcaster(enabled bool) {
	s.send(&domain.BroadcasterMessage{Type: domain.MsgTypeSetBroadcaster, Enabled: enabled})
}

func (s *ClientShell) MuteLocal(state domain.MuteState) {
	s.send(&domain.MuteMessage{Type: domain.MsgTypeMuteLocal, Mute: state})
}

func (s *ClientShell) StartRelay(cfg domain.RelayConfig) {
	s.send(&domain.RelayMessage{Type: domain.MsgTypeStartRelay, Config: &cfg})
}

func (s *ClientShell) StopRelay() {
	s.send(&domain.RelayMessage{Type: domain.MsgTypeStopRelay})
}

// AnswerModal runs the callback chosen for modalID. Each modal answers once;
// it reports false for unknown or already answered ids.
func (s *ClientShell) AnswerModal(modalID string, accept bool) bool {
	s.mu.Lock()
	choice, ok := s.modals[modalID]
	delete(s.modals, modalID)
	s.mu.Unlock()

	if !ok {
		return false
	}

	cb := choice.onReject
	if accept {
		cb = choice.onAccept
	}
	if cb != nil {
		cb()
	}
	return true
}

// DropModals forgets every open modal.
func (s *ClientShell) DropModals() {
	s.mu.Lock()
	s.modals = make(map[string]modalChoice)
	s.mu.Unlock()
}
