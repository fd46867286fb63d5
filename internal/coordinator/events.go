package coordinator

import (
	"github.com/weiawesome/wes-io-live/liveroom/internal/domain"
	"github.com/weiawesome/wes-io-live/liveroom/internal/kafka"
	pkglog "github.com/weiawesome/wes-io-live/liveroom/pkg/log"
)

// onRoomEntered reconciles local state with the room-entry snapshot. Applying
// the same snapshot twice has no further effect.
func (c *Coordinator) onRoomEntered(snap domain.RoomSnapshot) {
	c.entered = true
	c.roomOwner = snap.Owner

	// The owner role sticks even if a later snapshot is stale.
	if snap.Owner.UserID == c.cfg.UserID {
		c.owner = true
	} else if c.owner {
		c.logger.Warn().Str("snapshot_owner", snap.Owner.UserID).Msg("snapshot names another owner, keeping owner role")
	}

	seat, taken := c.findTakenSeat(snap.CoVideoSeats)

	switch {
	case c.owner:
		c.mute = snap.Owner.Mute()
	case taken && seat.User.UserID == c.cfg.UserID:
		c.mute = seat.User.Mute()
	default:
		c.mute = domain.FullyMuted
	}

	switch {
	case snap.PK.State == domain.PKStateInPK && c.pk.Phase != PKEnding:
		if !c.pk.Active() {
			c.prePKMute = c.mute
		}
		c.pk.Phase = PKActive
		c.pk.RemoteRoomID = snap.PK.RemoteRoom.RoomID
		c.pk.RemoteOwnerName = snap.PK.RemoteRoom.Owner.UserName
		c.pk.CountDown = snap.PK.CountDown
		c.pk.LocalScore = snap.PK.LocalRank
		c.pk.RemoteScore = snap.PK.RemoteRank
		c.pk.Relay = snap.PK.RelayConfig
		c.pk.Result = nil
	case snap.PK.State != domain.PKStateInPK && c.pk.Phase == PKActive:
		c.logger.Info().Msg("snapshot shows no PK, leaving stale PK")
		c.pk = PKSession{}
		c.stopRelay()
	case snap.PK.State == domain.PKStateNone && c.pk.Phase != PKInactive && !c.pk.Active():
		// Negotiation the backend no longer knows about.
		c.logger.Info().
			Str("phase", c.pk.Phase.String()).
			Str(pkglog.FieldPKRoomID, c.pk.RemoteRoomID).
			Msg("snapshot shows no PK, dropping pk negotiation")
		c.pk = PKSession{}
	}

	switch {
	case taken && c.pk.Active():
		c.logger.Warn().
			Str(pkglog.FieldTargetID, seat.User.UserID).
			Msg("snapshot has both PK and a taken seat, keeping PK")
		c.call = CallSlot{}
	case taken:
		c.call = occupiedBy(seat.Seat.No, *seat.User)
		c.dropPendingFor(seat.User.UserID)
	default:
		c.call = CallSlot{}
	}

	c.render()
	if c.pk.Active() {
		if c.owner {
			c.startRelay(c.pk.Relay)
		}
		c.showScores()
	}

	c.logger.Info().
		Str("role", c.role().String()).
		Bool("calling", c.call.Occupied).
		Str("pk", c.pk.Phase.String()).
		Msg("room entry reconciled")
}

// findTakenSeat returns the call seat when it is taken by a known user.
func (c *Coordinator) findTakenSeat(seats []domain.SeatInfo) (domain.SeatInfo, bool) {
	for _, s := range seats {
		if s.Seat.No != c.cfg.SeatNo {
			continue
		}
		if s.Seat.State == domain.SeatTaken && s.User != nil && s.User.UserID != "" {
			return s, true
		}
		return s, false
	}
	return domain.SeatInfo{}, false
}

func (c *Coordinator) onSeatStateChanged(seats []domain.SeatInfo) {
	var (
		info  domain.SeatInfo
		found bool
	)
	for _, s := range seats {
		if s.Seat.No == c.cfg.SeatNo {
			info, found = s, true
			break
		}
	}
	if !found {
		return
	}
	taken := info.Seat.State == domain.SeatTaken && info.User != nil && info.User.UserID != ""

	switch {
	case taken && !c.call.Occupied:
		if c.pk.Active() {
			c.logger.Warn().Str(pkglog.FieldTargetID, info.User.UserID).Msg("seat taken during PK, ignored")
			c.notice(ErrPKActive)
			return
		}
		if c.pk.Phase == PKAccepted {
			// The seat is authoritative; a PK that has not started yields.
			c.logger.Info().
				Str("phase", c.pk.Phase.String()).
				Str(pkglog.FieldPKRoomID, c.pk.RemoteRoomID).
				Msg("seat taken before pk started, dropping pk negotiation")
			c.pk = PKSession{}
		}
		c.call = occupiedBy(info.Seat.No, *info.User)
		c.dropPendingFor(info.User.UserID)
		if c.isHost() {
			c.mute = info.User.Mute()
		}
		c.render()
		c.record(kafka.EventCallStarted, info.User.UserID, "")

	case taken && c.call.UserID == info.User.UserID:
		// Echo of an optimistic accept or a repeat: refresh details only.
		if c.call.UID == info.User.UID && c.call.UserName == info.User.UserName {
			return
		}
		c.call.UID = info.User.UID
		c.call.UserName = info.User.UserName
		c.render()

	case taken:
		c.logger.Warn().
			Str("current", c.call.UserID).
			Str("incoming", info.User.UserID).
			Msg("seat taken by another user while occupied, ignored")

	case c.call.Occupied:
		wasHost := c.isHost()
		peer := c.call.UserID
		c.call = CallSlot{}
		if wasHost {
			c.mute = domain.FullyMuted
		}
		c.render()
		c.record(kafka.EventCallEnded, peer, "")
	}
}

func (c *Coordinator) onPKEvent(ev domain.PKEventPayload) {
	switch ev.Event {
	case domain.PKEventStart:
		c.onPKStart(ev)
	case domain.PKEventRankChanged:
		c.onPKRank(ev.LocalRank, ev.RemoteRank)
	case domain.PKEventEnd:
		c.onPKEnd(ev.Result)
	default:
		c.logger.Warn().Int("event", int(ev.Event)).Msg("unknown pk event")
	}
}

func (c *Coordinator) onPKStart(ev domain.PKEventPayload) {
	if c.call.Occupied {
		c.logger.Warn().Str(pkglog.FieldPKRoomID, ev.RemoteRoom.RoomID).Msg("pk start while calling, refused")
		if !c.pk.Active() {
			c.pk = PKSession{}
		}
		c.notice(ErrCallActive)
		return
	}

	switch c.pk.Phase {
	case PKEnding:
		// Replayed once the previous result has been shown.
		c.deferredStart = &ev
		c.logger.Info().Str(pkglog.FieldPKRoomID, ev.RemoteRoom.RoomID).Msg("pk start deferred until reversion")
		return
	case PKActive:
		if ev.RemoteRoom.RoomID != c.pk.RemoteRoomID {
			c.logger.Warn().
				Str(pkglog.FieldPKRoomID, c.pk.RemoteRoomID).
				Str("incoming", ev.RemoteRoom.RoomID).
				Msg("pk start names another room while in PK, treated as score update")
		}
		c.onPKRank(ev.LocalRank, ev.RemoteRank)
		return
	}

	c.prePKMute = c.mute
	c.pk = PKSession{
		Phase:           PKActive,
		RemoteRoomID:    ev.RemoteRoom.RoomID,
		RemoteOwnerName: ev.RemoteRoom.Owner.UserName,
		CountDown:       ev.CountDown,
		LocalScore:      ev.LocalRank,
		RemoteScore:     ev.RemoteRank,
		Relay:           ev.RelayConfig,
	}
	c.render()
	if c.owner {
		c.startRelay(ev.RelayConfig)
	}
	c.showScores()
	c.record(kafka.EventPKStarted, "", ev.RemoteRoom.RoomID)
}

func (c *Coordinator) onPKRank(local, remote int) {
	switch c.pk.Phase {
	case PKActive:
		c.pk.LocalScore = local
		c.pk.RemoteScore = remote
		c.showScores()
	case PKEnding:
		if c.deferredStart != nil {
			c.deferredStart.LocalRank = local
			c.deferredStart.RemoteRank = remote
		}
	}
}

func (c *Coordinator) onPKEnd(result domain.PKResult) {
	if c.pk.Phase == PKAccepted {
		c.logger.Info().Str(pkglog.FieldPKRoomID, c.pk.RemoteRoomID).Msg("pk ended before it started")
		c.pk = PKSession{}
		return
	}
	if c.pk.Phase != PKActive {
		if c.deferredStart != nil {
			c.logger.Info().Msg("pk ended before deferred start replayed, discarding it")
			c.deferredStart = nil
		}
		return
	}

	c.pk.Phase = PKEnding
	c.pk.Result = &result
	c.deps.Shell.ShowPKResult(result)
	c.deps.Shell.ShowNotice("PK ended")

	c.revertGen++
	gen := c.revertGen
	c.revert = c.deps.Scheduler.AfterFunc(c.cfg.PKResultDelay, func() {
		c.Post(pkRevert{gen: gen})
	})
	c.record(kafka.EventPKEnded, "", c.pk.RemoteRoomID, result.String())
}

// onPKRevert ends the result display and returns to the solo view with the
// mute state from before the PK.
func (c *Coordinator) onPKRevert(gen uint64) {
	if gen != c.revertGen || c.pk.Phase != PKEnding {
		return
	}
	c.revert = nil

	c.stopRelay()
	c.pk = PKSession{}
	c.deps.Shell.ClearPKResult()
	c.applied.scoresShown = false
	c.mute = c.prePKMute
	c.render()

	if next := c.deferredStart; next != nil {
		c.deferredStart = nil
		c.onPKStart(*next)
	}
}

func (c *Coordinator) dropPendingFor(userID string) {
	for k := range c.pending {
		if k.userID == userID {
			delete(c.pending, k)
		}
	}
}

// record emits a session event. Only the owner's session reports so each
// transition is recorded once per room.
func (c *Coordinator) record(eventType, peerID, pkRoomID string, result ...string) {
	if c.deps.Events == nil || !c.owner {
		return
	}
	ev := &kafka.SessionEvent{
		Type:     eventType,
		RoomID:   c.cfg.RoomID,
		UserID:   c.cfg.UserID,
		PeerID:   peerID,
		PKRoomID: pkRoomID,
	}
	if len(result) > 0 {
		ev.Result = result[0]
	}
	if err := c.deps.Events.ProduceSessionEvent(c.ctx, ev); err != nil {
		c.logger.Warn().Err(err).Str(pkglog.FieldEventType, eventType).Msg("failed to record session event")
	}
}
