package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/weiawesome/wes-io-live/liveroom/internal/audit"
	"github.com/weiawesome/wes-io-live/liveroom/internal/client"
	"github.com/weiawesome/wes-io-live/liveroom/internal/config"
	"github.com/weiawesome/wes-io-live/liveroom/internal/coordinator"
	"github.com/weiawesome/wes-io-live/liveroom/internal/domain"
	"github.com/weiawesome/wes-io-live/liveroom/internal/gateway"
	"github.com/weiawesome/wes-io-live/liveroom/internal/hub"
	"github.com/weiawesome/wes-io-live/liveroom/internal/profile"
	pkglog "github.com/weiawesome/wes-io-live/liveroom/pkg/log"
	"github.com/weiawesome/wes-io-live/liveroom/pkg/pubsub"
)

const leaveTimeout = 5 * time.Second

// Deps are the collaborators of the service. Profiles, Events and Scheduler
// are optional.
type Deps struct {
	Hub         *hub.Hub
	Verifier    TokenVerifier
	Rooms       SnapshotSource
	PubSub      pubsub.PubSub
	Profiles    MuteStore
	Events      coordinator.EventProducer
	Scheduler   coordinator.Scheduler
	Coordinator config.CoordinatorConfig
}

// roomSession is one connection's presence in a room.
type roomSession struct {
	client    *hub.Client
	roomID    string
	userID    string
	coord     *coordinator.Coordinator
	shell     *hub.ClientShell
	transport *gateway.PubSubTransport
}

type liveRoomService struct {
	deps Deps

	sessions map[string]*roomSession            // clientID -> session
	rooms    map[string]map[string]*roomSession // roomID -> clientID -> session
	mu       sync.RWMutex

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewLiveRoomService creates a new LiveRoomService instance.
func NewLiveRoomService(deps Deps) LiveRoomService {
	return &liveRoomService{
		deps:     deps,
		sessions: make(map[string]*roomSession),
		rooms:    make(map[string]map[string]*roomSession),
	}
}

func (s *liveRoomService) HandleAuth(ctx context.Context, c *hub.Client, token string) error {
	claims, err := s.deps.Verifier.Verify(token)
	if err != nil {
		c.SendMessage(&domain.AuthResultMessage{
			Type:    domain.MsgTypeAuthResult,
			Success: false,
			Message: "Invalid token",
		})
		return fmt.Errorf("invalid token: %w", err)
	}

	c.Session.Authenticate(claims.UserID, claims.Username, token)

	return c.SendMessage(&domain.AuthResultMessage{
		Type:     domain.MsgTypeAuthResult,
		Success:  true,
		UserID:   claims.UserID,
		Username: claims.Username,
	})
}

func (s *liveRoomService) HandleJoinRoom(ctx context.Context, c *hub.Client, roomID string) error {
	if !c.Session.IsAuthenticated() {
		return c.SendMessage(domain.NewErrorMessage(domain.ErrCodeUnauthorized, "Not authenticated"))
	}
	if roomID == "" {
		return c.SendMessage(domain.NewErrorMessage(domain.ErrCodeBadRequest, "room_id is required"))
	}

	snap, err := s.deps.Rooms.GetSnapshot(ctx, roomID)
	if err != nil {
		switch {
		case errors.Is(err, client.ErrRoomNotFound):
			return c.SendMessage(domain.NewErrorMessage(domain.ErrCodeNotFound, "Room not found"))
		case errors.Is(err, client.ErrRoomClosed):
			return c.SendMessage(domain.NewErrorMessage(domain.ErrCodeNotFound, "Room is closed"))
		}
		c.SendMessage(domain.NewErrorMessage(domain.ErrCodeInternalError, "Failed to get room"))
		return fmt.Errorf("failed to get room snapshot: %w", err)
	}

	// Leave current room if any
	if current := c.Session.GetCurrentRoom(); current != "" {
		s.endSession(ctx, c, current, false)
	}

	userID := c.Session.GetUserID()
	sess := s.startSession(ctx, c, roomID, userID)

	sess.transport.Send(ctx, roomID, pubsub.RequestEnterRoom, &domain.EnterRoomRequest{RoomID: roomID})

	audit.Log(pkglog.WithLogger(ctx, pkglog.L().With().Str(pkglog.FieldUserID, userID).Logger()),
		audit.ActionSessionJoin, roomID, "session joined room")

	// room_joined goes out before the first render.
	err = c.SendMessage(&domain.RoomJoinedMessage{
		Type:      domain.MsgTypeRoomJoined,
		RoomID:    roomID,
		SessionID: c.ID,
		IsOwner:   snap.Owner.UserID == userID,
	})
	sess.coord.Post(coordinator.RoomEntered{Snapshot: *snap})
	return err
}

func (s *liveRoomService) startSession(ctx context.Context, c *hub.Client, roomID, userID string) *roomSession {
	l := pkglog.L().With().
		Str(pkglog.FieldClientID, c.ID).
		Str(pkglog.FieldRoomID, roomID).
		Str(pkglog.FieldUserID, userID).
		Logger()

	var initial domain.MuteState
	if s.deps.Profiles != nil {
		m, err := s.deps.Profiles.LoadMute(ctx, userID)
		switch {
		case err == nil:
			initial = m
		case !errors.Is(err, profile.ErrNotFound):
			l.Warn().Err(err).Msg("failed to load mute preference")
		}
	}

	creds := gateway.CredentialFunc(c.Session.GetToken)
	transport := gateway.NewPubSubTransport(s.deps.PubSub, userID, creds)
	shell := hub.NewClientShell(c, c.ID)
	shell.OnOverflow(func() {
		l.Warn().Msg("client cannot keep up, ending session")
		// Runs on the coordinator loop, which endSession waits for.
		go func() {
			s.endSession(context.Background(), c, roomID, false)
			c.Close()
		}()
	})

	deps := coordinator.Deps{
		Shell:     shell,
		Media:     shell,
		Seats:     gateway.NewSeatGateway(transport, creds),
		PK:        gateway.NewPKGateway(transport),
		Products:  gateway.NewProductGateway(transport),
		Events:    s.deps.Events,
		Scheduler: s.deps.Scheduler,
		Logger:    &l,
	}
	if s.deps.Profiles != nil {
		deps.Prefs = s.deps.Profiles
	}

	coord := coordinator.New(coordinator.Config{
		SessionID:     c.ID,
		RoomID:        roomID,
		UserID:        userID,
		SeatNo:        s.deps.Coordinator.SeatNo,
		PKResultDelay: s.deps.Coordinator.PKResultDelay,
		InboxSize:     s.deps.Coordinator.InboxSize,
		InitialMute:   initial,
	}, deps)

	sess := &roomSession{
		client:    c,
		roomID:    roomID,
		userID:    userID,
		coord:     coord,
		shell:     shell,
		transport: transport,
	}

	s.mu.Lock()
	s.sessions[c.ID] = sess
	if _, ok := s.rooms[roomID]; !ok {
		s.rooms[roomID] = make(map[string]*roomSession)
	}
	s.rooms[roomID][c.ID] = sess
	s.mu.Unlock()

	if s.deps.Hub != nil {
		s.deps.Hub.JoinRoom(c, roomID)
	}
	c.Session.JoinRoom(roomID)

	go coord.Run()
	s.wg.Add(1)
	go s.watch(sess)

	return sess
}

// watch cleans up a session whose coordinator stopped on its own, such as
// when the room closed.
func (s *liveRoomService) watch(sess *roomSession) {
	defer s.wg.Done()
	<-sess.coord.Done()

	if s.removeSession(sess) {
		s.release(sess)
		sess.client.SendMessage(&domain.RoomMessage{Type: domain.MsgTypeRoomLeft, RoomID: sess.roomID})
	}
}

// removeSession unlinks sess and reports whether it was still linked.
func (s *liveRoomService) removeSession(sess *roomSession) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.sessions[sess.client.ID] != sess {
		return false
	}
	delete(s.sessions, sess.client.ID)
	if roomSessions, ok := s.rooms[sess.roomID]; ok {
		delete(roomSessions, sess.client.ID)
		if len(roomSessions) == 0 {
			delete(s.rooms, sess.roomID)
		}
	}
	return true
}

func (s *liveRoomService) release(sess *roomSession) {
	ctx := context.Background()
	sess.transport.Send(ctx, sess.roomID, pubsub.RequestLeaveRoom, &domain.EnterRoomRequest{RoomID: sess.roomID})
	sess.transport.Close()
	sess.shell.DropModals()

	if s.deps.Hub != nil {
		s.deps.Hub.LeaveRoom(sess.client, sess.roomID)
	}
	if sess.client.Session.GetCurrentRoom() == sess.roomID {
		sess.client.Session.LeaveRoom()
	}
}

func (s *liveRoomService) session(clientID string) *roomSession {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sessions[clientID]
}

// endSession leaves the room through the coordinator, which ends an active
// call first, and waits for it to stop.
func (s *liveRoomService) endSession(ctx context.Context, c *hub.Client, roomID string, notify bool) {
	sess := s.session(c.ID)
	if sess == nil || sess.roomID != roomID {
		return
	}
	if !s.removeSession(sess) {
		return
	}

	l := pkglog.L().With().Str(pkglog.FieldClientID, c.ID).Str(pkglog.FieldRoomID, roomID).Logger()
	sess.coord.Post(coordinator.Leave{})
	select {
	case <-sess.coord.Done():
	case <-time.After(leaveTimeout):
		l.Warn().Msg("coordinator did not stop in time")
	}
	s.release(sess)

	audit.Log(pkglog.WithLogger(ctx, l), audit.ActionSessionLeave, roomID, "session left room")

	if notify {
		c.SendMessage(&domain.RoomMessage{Type: domain.MsgTypeRoomLeft, RoomID: roomID})
	}
}

func (s *liveRoomService) HandleLeaveRoom(ctx context.Context, c *hub.Client, roomID string) error {
	if c.Session.GetCurrentRoom() != roomID {
		return nil
	}
	s.endSession(ctx, c, roomID, true)
	return nil
}

func (s *liveRoomService) HandleDisconnect(ctx context.Context, c *hub.Client) error {
	roomID := c.Session.GetCurrentRoom()
	if roomID == "" {
		return nil
	}
	s.endSession(ctx, c, roomID, false)
	return nil
}

func (s *liveRoomService) HandleCommand(ctx context.Context, c *hub.Client, msgType string, raw []byte) error {
	if !c.Session.IsAuthenticated() {
		return c.SendMessage(domain.NewErrorMessage(domain.ErrCodeUnauthorized, "Not authenticated"))
	}
	sess := s.session(c.ID)
	if sess == nil {
		return c.SendMessage(domain.NewErrorMessage(domain.ErrCodeBadRequest, "Not in a room"))
	}

	var msg coordinator.Message
	switch msgType {
	case domain.MsgTypeRequestCoHost:
		msg = coordinator.RequestCoHost{}
	case domain.MsgTypeEndCall:
		msg = coordinator.ForceEndCall{}
	case domain.MsgTypeToggleAudio:
		msg = coordinator.ToggleAudio{}
	case domain.MsgTypeToggleVideo:
		msg = coordinator.ToggleVideo{}
	case domain.MsgTypeListProducts:
		msg = coordinator.ListProducts{}

	case domain.MsgTypeInviteCoHost:
		var m domain.InviteCoHostMessage
		if err := json.Unmarshal(raw, &m); err != nil || m.UserID == "" {
			return c.SendMessage(domain.NewErrorMessage(domain.ErrCodeBadRequest, "Invalid invite_co_host message"))
		}
		msg = coordinator.InviteCoHost{UserID: m.UserID, UserName: m.UserName}

	case domain.MsgTypeListPKRooms:
		var m domain.ListPKRoomsMessage
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &m); err != nil {
				return c.SendMessage(domain.NewErrorMessage(domain.ErrCodeBadRequest, "Invalid list_pk_rooms message"))
			}
		}
		msg = coordinator.ListPKRooms{NextID: m.NextID}

	case domain.MsgTypeInvitePK:
		var m domain.InvitePKMessage
		if err := json.Unmarshal(raw, &m); err != nil || m.RoomID == "" {
			return c.SendMessage(domain.NewErrorMessage(domain.ErrCodeBadRequest, "Invalid invite_pk message"))
		}
		if m.RoomID == sess.roomID {
			return c.SendMessage(domain.NewErrorMessage(domain.ErrCodeBadRequest, "Cannot PK with your own room"))
		}
		msg = coordinator.InvitePK{RoomID: m.RoomID}

	case domain.MsgTypeChangeProductState:
		var m domain.ChangeProductStateMessage
		if err := json.Unmarshal(raw, &m); err != nil || m.ProductID == "" || !m.State.Valid() {
			return c.SendMessage(domain.NewErrorMessage(domain.ErrCodeBadRequest, "Invalid change_product_state message"))
		}
		msg = coordinator.ChangeProductState{ProductID: m.ProductID, State: m.State}

	case domain.MsgTypePurchaseProduct:
		var m domain.PurchaseProductMessage
		if err := json.Unmarshal(raw, &m); err != nil || m.ProductID == "" || m.Quantity <= 0 {
			return c.SendMessage(domain.NewErrorMessage(domain.ErrCodeBadRequest, "Invalid purchase_product message"))
		}
		msg = coordinator.PurchaseProduct{ProductID: m.ProductID, Quantity: m.Quantity}

	case domain.MsgTypeModalAnswer:
		var m domain.ModalAnswerMessage
		if err := json.Unmarshal(raw, &m); err != nil || m.ModalID == "" {
			return c.SendMessage(domain.NewErrorMessage(domain.ErrCodeBadRequest, "Invalid modal_answer message"))
		}
		if !sess.shell.AnswerModal(m.ModalID, m.Accept) {
			return c.SendMessage(domain.NewErrorMessage(domain.ErrCodeNotFound, "Unknown modal"))
		}
		return nil

	default:
		return c.SendMessage(domain.NewErrorMessage(domain.ErrCodeBadRequest, "Unknown message type"))
	}

	if !sess.coord.Post(msg) {
		return c.SendMessage(domain.NewErrorMessage(domain.ErrCodeConflict, "Session closed"))
	}
	return nil
}

func (s *liveRoomService) SessionState(ctx context.Context, sessionID string) (coordinator.State, error) {
	sess := s.session(sessionID)
	if sess == nil {
		return coordinator.State{}, ErrSessionNotFound
	}
	state, err := sess.coord.Snapshot(ctx)
	if errors.Is(err, coordinator.ErrClosed) {
		return coordinator.State{}, ErrSessionNotFound
	}
	return state, err
}

func (s *liveRoomService) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	eventCh, err := s.deps.PubSub.SubscribePattern(ctx, pubsub.PatternServerToClient)
	if err != nil {
		cancel()
		return fmt.Errorf("failed to subscribe to room events: %w", err)
	}

	s.wg.Add(1)
	go s.routeEvents(ctx, eventCh)

	l := pkglog.L()
	l.Info().Str("pattern", pubsub.PatternServerToClient).Msg("live room service started")
	return nil
}

func (s *liveRoomService) Stop() error {
	if s.cancel != nil {
		s.cancel()
	}

	s.mu.RLock()
	sessions := make([]*roomSession, 0, len(s.sessions))
	for _, sess := range s.sessions {
		sessions = append(sessions, sess)
	}
	s.mu.RUnlock()

	for _, sess := range sessions {
		if s.removeSession(sess) {
			sess.coord.Close()
			s.release(sess)
		}
	}

	s.wg.Wait()
	return nil
}

func (s *liveRoomService) routeEvents(ctx context.Context, eventCh <-chan *pubsub.Event) {
	defer s.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-eventCh:
			if !ok {
				return
			}
			s.routeEvent(event)
		}
	}
}

// routeEvent decodes a push event once and posts it to every session of the
// room it is addressed to.
func (s *liveRoomService) routeEvent(event *pubsub.Event) {
	l := pkglog.L().With().
		Str(pkglog.FieldEventType, event.Type).
		Str(pkglog.FieldRoomID, event.RoomID).
		Logger()

	s.mu.RLock()
	targets := make([]*roomSession, 0, len(s.rooms[event.RoomID]))
	for _, sess := range s.rooms[event.RoomID] {
		if event.Addressed(sess.userID) {
			targets = append(targets, sess)
		}
	}
	s.mu.RUnlock()

	if len(targets) == 0 {
		return
	}

	msg, err := coordinator.DecodeEvent(event)
	if err != nil {
		if errors.Is(err, coordinator.ErrUnknownEvent) {
			l.Debug().Msg("ignoring event")
			return
		}
		l.Warn().Err(err).Msg("dropping malformed event")
		return
	}

	for _, sess := range targets {
		sess.coord.Post(msg)
	}
}
