// Package coordinator owns the seat, call and PK state of one live room
// session and drives the presentation and media as that state changes.
//
// All state lives on a single goroutine (Run). Push events, user commands,
// modal answers and timer fires are all delivered as messages to its inbox.
package coordinator

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/weiawesome/wes-io-live/liveroom/internal/domain"
	pkglog "github.com/weiawesome/wes-io-live/liveroom/pkg/log"
)

const (
	DefaultPKResultDelay = 2000 * time.Millisecond
	defaultInboxSize     = 64
)

// Config identifies the session.
type Config struct {
	SessionID     string
	RoomID        string
	UserID        string
	SeatNo        int
	PKResultDelay time.Duration
	InboxSize     int
	// InitialMute is the persisted preference, used until the room snapshot
	// arrives.
	InitialMute domain.MuteState
}

// Deps are the collaborators of a coordinator. Prefs, Events and Scheduler
// are optional.
type Deps struct {
	Shell     Shell
	Media     Media
	Seats     SeatRequester
	PK        PKRequester
	Products  ProductRequester
	Prefs     MuteSaver
	Events    EventProducer
	Scheduler Scheduler
	Logger    *zerolog.Logger
}

// Coordinator is the state machine of one session.
type Coordinator struct {
	cfg  Config
	deps Deps

	logger zerolog.Logger
	ctx    context.Context

	inbox chan Message
	done  chan struct{}

	// Owned by the loop goroutine.
	entered   bool
	owner     bool
	roomOwner domain.User
	call      CallSlot
	pk        PKSession
	mute      domain.MuteState
	prePKMute domain.MuteState
	pending   map[pendingKey]PendingInteraction
	closed    bool

	revert        Task
	revertGen     uint64
	deferredStart *domain.PKEventPayload

	prefs *muteWriter

	view    view
	sinks   map[domain.Surface]sink
	applied appliedMedia
}

// New creates a coordinator. Run must be started for it to process messages.
func New(cfg Config, deps Deps) *Coordinator {
	if cfg.SeatNo <= 0 {
		cfg.SeatNo = domain.CallSeatNo
	}
	if cfg.PKResultDelay <= 0 {
		cfg.PKResultDelay = DefaultPKResultDelay
	}
	if cfg.InboxSize <= 0 {
		cfg.InboxSize = defaultInboxSize
	}
	if deps.Scheduler == nil {
		deps.Scheduler = ClockScheduler()
	}

	base := pkglog.L()
	if deps.Logger != nil {
		base = *deps.Logger
	}
	logger := pkglog.Session(base, cfg.SessionID, cfg.RoomID, cfg.UserID)

	c := &Coordinator{
		cfg:     cfg,
		deps:    deps,
		logger:  logger,
		ctx:     pkglog.WithLogger(context.Background(), logger),
		inbox:   make(chan Message, cfg.InboxSize),
		done:    make(chan struct{}),
		mute:    cfg.InitialMute,
		pending: make(map[pendingKey]PendingInteraction),
		sinks:   make(map[domain.Surface]sink),
	}
	if deps.Prefs != nil {
		c.prefs = newMuteWriter(c.ctx, deps.Prefs, cfg.UserID)
	}
	return c
}

// Run processes messages until the session is torn down. Queued mute
// preferences are written before Done is closed.
func (c *Coordinator) Run() {
	defer close(c.done)
	if c.prefs != nil {
		defer c.prefs.Close()
	}
	for msg := range c.inbox {
		c.handle(msg)
		if c.closed {
			return
		}
	}
}

// Post delivers msg to the loop. It blocks while the inbox is full and
// returns false once the session is closed.
func (c *Coordinator) Post(msg Message) bool {
	select {
	case <-c.done:
		return false
	default:
	}

	select {
	case c.inbox <- msg:
		return true
	case <-c.done:
		return false
	}
}

// Snapshot returns the current state once every message posted before it has
// been processed.
func (c *Coordinator) Snapshot(ctx context.Context) (State, error) {
	reply := make(chan State, 1)
	if !c.Post(stateQuery{reply: reply}) {
		return State{}, ErrClosed
	}

	select {
	case s := <-reply:
		return s, nil
	case <-c.done:
		return State{}, ErrClosed
	case <-ctx.Done():
		return State{}, ctx.Err()
	}
}

// Close tears the session down without leave requests and waits for the loop
// to exit.
func (c *Coordinator) Close() {
	c.Post(shutdown{})
	<-c.done
}

// Done is closed when the loop has exited.
func (c *Coordinator) Done() <-chan struct{} {
	return c.done
}

func (c *Coordinator) handle(msg Message) {
	switch m := msg.(type) {
	case RoomEntered:
		c.onRoomEntered(m.Snapshot)
	case SeatStateChanged:
		c.onSeatStateChanged(m.Seats)
	case PKEvent:
		c.onPKEvent(m.PKEventPayload)
	case pkRevert:
		c.onPKRevert(m.gen)

	case SeatInvited:
		c.onSeatInvited(m.Peer)
	case SeatApplied:
		c.onSeatApplied(m.Peer)
	case SeatApplicationAccepted:
		c.onSeatAnswered(m.Peer, PendingAudienceApply, "your co-host application was accepted")
	case SeatInvitationAccepted:
		c.onSeatAnswered(m.Peer, PendingOwnerInvite, m.Peer.UserName+" accepted your invitation")
	case SeatApplicationRejected:
		c.onSeatAnswered(m.Peer, PendingAudienceApply, m.Peer.UserName+" rejected your application")
	case SeatInvitationRejected:
		c.onSeatAnswered(m.Peer, PendingOwnerInvite, m.Peer.UserName+" rejected your invitation")
	case PKInvitationReceived:
		c.onPKInvitationReceived(m.Peer)
	case PKInvitationAccepted:
		c.onPKInvitationAnswered(m.Peer, true)
	case PKInvitationRejected:
		c.onPKInvitationAnswered(m.Peer, false)
	case PKRoomListReceived:
		c.onPKRoomList(m.PKRoomListPayload)

	case ProductStateChanged:
		c.onProductStateChanged(m.ProductStatePayload)
	case ProductPurchased:
		c.deps.Products.RequestList(c.ctx, c.cfg.RoomID)
	case ProductListReceived:
		c.deps.Shell.ShowProducts(m.Products)
	case ProductStateResult:
		c.onProductStateResult(m.ProductStatePayload)
	case ProductPurchaseResult:
		if m.Success {
			c.deps.Shell.ShowNotice("purchase succeeded")
		} else {
			c.deps.Shell.ShowNotice("purchase failed")
		}
	case RoomClosed:
		c.logger.Info().Str("reason", m.Reason).Msg("room closed")
		c.deps.Shell.ShowNotice("the live room has ended")
		c.teardown()

	case RequestCoHost:
		c.requestCoHost()
	case applyConfirmed:
		c.applyForSeat()
	case InviteCoHost:
		c.inviteCoHost(m.UserID, m.UserName)
	case AcceptInvite:
		c.acceptInvite(m.OwnerID, m.SeatNo)
	case RejectInvite:
		c.rejectInvite(m.OwnerID, m.SeatNo)
	case AcceptApply:
		c.acceptApply(m.UserID, m.UserName, m.SeatNo)
	case RejectApply:
		c.rejectApply(m.UserID, m.SeatNo)
	case ForceEndCall:
		c.endCall()
	case ListPKRooms:
		c.listPKRooms(m.NextID)
	case InvitePK:
		c.invitePK(m.RoomID)
	case AcceptPK:
		c.acceptPK(m.RoomID)
	case RejectPK:
		c.rejectPK(m.RoomID)
	case ToggleAudio:
		c.toggleMute(true)
	case ToggleVideo:
		c.toggleMute(false)
	case ListProducts:
		c.deps.Products.RequestList(c.ctx, c.cfg.RoomID)
	case ChangeProductState:
		c.changeProductState(m.ProductID, m.State)
	case PurchaseProduct:
		c.deps.Products.RequestPurchase(c.ctx, c.cfg.RoomID, m.ProductID, m.Quantity)
	case Leave:
		c.leave()

	case stateQuery:
		m.reply <- c.state()
	case shutdown:
		c.teardown()

	default:
		c.logger.Warn().Str("message", typeName(msg)).Msg("unhandled message")
	}
}

func (c *Coordinator) state() State {
	s := State{
		SessionID:       c.cfg.SessionID,
		RoomID:          c.cfg.RoomID,
		UserID:          c.cfg.UserID,
		Entered:         c.entered,
		Role:            c.role(),
		Call:            c.call,
		PK:              c.pk,
		Mute:            c.mute,
		Layout:          c.view.layout,
		Pending:         sortedPending(c.pending),
		DeferredPKStart: c.deferredStart != nil,
	}
	if c.pk.Result != nil {
		r := *c.pk.Result
		s.PK.Result = &r
	}
	return s
}

// role reports Host while the local user holds the seat.
func (c *Coordinator) role() domain.Role {
	switch {
	case c.owner:
		return domain.RoleOwner
	case c.isHost():
		return domain.RoleHost
	default:
		return domain.RoleAudience
	}
}

func (c *Coordinator) isHost() bool {
	return !c.owner && c.call.Occupied && c.call.UserID == c.cfg.UserID
}

func (c *Coordinator) notice(err error) {
	c.logger.Info().Err(err).Msg("action refused")
	c.deps.Shell.ShowNotice(err.Error())
}

func (c *Coordinator) teardown() {
	if c.closed {
		return
	}
	c.closed = true

	if c.revert != nil {
		c.revert.Stop()
		c.revert = nil
	}
	c.revertGen++
	c.deferredStart = nil

	c.stopRelay()
	c.detachAll()
	c.pending = make(map[pendingKey]PendingInteraction)

	c.logger.Info().Msg("session torn down")
}

func typeName(v interface{}) string {
	return fmt.Sprintf("%T", v)
}
