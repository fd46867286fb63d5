package coordinator

import (
	"fmt"

	"github.com/weiawesome/wes-io-live/liveroom/internal/domain"
	"github.com/weiawesome/wes-io-live/liveroom/internal/kafka"
	pkglog "github.com/weiawesome/wes-io-live/liveroom/pkg/log"
)

func (c *Coordinator) requestCoHost() {
	if err := c.checkApply(); err != nil {
		c.notice(err)
		return
	}
	c.deps.Shell.ShowModalChoice("Go on seat",
		fmt.Sprintf("Apply to co-host with %s?", c.roomOwner.UserName),
		func() { c.Post(applyConfirmed{}) },
		nil)
}

func (c *Coordinator) checkApply() error {
	switch {
	case c.owner:
		return ErrIsOwner
	case c.call.Occupied:
		return ErrSeatTaken
	}
	return checkCoHost(c.pk)
}

// applyForSeat sends the application once the user confirmed it. The guards
// run again since state may have moved while the modal was open.
func (c *Coordinator) applyForSeat() {
	if err := c.checkApply(); err != nil {
		c.notice(err)
		return
	}
	p := PendingInteraction{
		RoomID:   c.cfg.RoomID,
		UserID:   c.roomOwner.UserID,
		UserName: c.roomOwner.UserName,
		SeatNo:   c.cfg.SeatNo,
		Kind:     PendingAudienceApply,
	}
	if _, ok := c.pending[p.key()]; ok {
		return
	}
	c.deps.Seats.Apply(c.ctx, c.cfg.RoomID, c.roomOwner.UserID, c.cfg.SeatNo)
	c.pending[p.key()] = p
}

func (c *Coordinator) inviteCoHost(userID, userName string) {
	switch {
	case !c.owner:
		c.notice(ErrNotOwner)
		return
	case c.call.Occupied:
		c.notice(ErrSeatTaken)
		return
	}
	if err := checkCoHost(c.pk); err != nil {
		c.notice(err)
		return
	}

	c.deps.Seats.Invite(c.ctx, c.cfg.RoomID, userID, c.cfg.SeatNo)
	p := PendingInteraction{
		RoomID:   c.cfg.RoomID,
		UserID:   userID,
		UserName: userName,
		SeatNo:   c.cfg.SeatNo,
		Kind:     PendingOwnerInvite,
	}
	c.pending[p.key()] = p
}

// acceptInvite takes the seat the owner offered. The seat is occupied
// optimistically; the seat echo only refreshes it.
func (c *Coordinator) acceptInvite(ownerID string, seatNo int) {
	key := pendingKey{roomID: c.cfg.RoomID, userID: ownerID, seatNo: seatNo, kind: PendingInvitedByOwner}
	if _, ok := c.pending[key]; !ok {
		c.logger.Debug().Str(pkglog.FieldTargetID, ownerID).Msg("no pending invitation to accept")
		return
	}
	delete(c.pending, key)

	if err := checkCoHost(c.pk); err != nil {
		c.notice(err)
		c.deps.Seats.AudienceReject(c.ctx, c.cfg.RoomID, ownerID, seatNo)
		return
	}
	if c.call.Occupied {
		c.notice(ErrSeatTaken)
		c.deps.Seats.AudienceReject(c.ctx, c.cfg.RoomID, ownerID, seatNo)
		return
	}

	c.deps.Seats.AudienceAccept(c.ctx, c.cfg.RoomID, ownerID, seatNo)
	c.call = CallSlot{Occupied: true, SeatNo: seatNo, UserID: c.cfg.UserID}
	c.mute = domain.MuteState{}
	c.render()
}

func (c *Coordinator) rejectInvite(ownerID string, seatNo int) {
	key := pendingKey{roomID: c.cfg.RoomID, userID: ownerID, seatNo: seatNo, kind: PendingInvitedByOwner}
	if _, ok := c.pending[key]; !ok {
		return
	}
	delete(c.pending, key)
	c.deps.Seats.AudienceReject(c.ctx, c.cfg.RoomID, ownerID, seatNo)
}

// acceptApply puts the applicant on the seat. Their stream id is unknown
// until the seat echo, so their sink is attached then.
func (c *Coordinator) acceptApply(userID, userName string, seatNo int) {
	key := pendingKey{roomID: c.cfg.RoomID, userID: userID, seatNo: seatNo, kind: PendingAppliedByAudience}
	if _, ok := c.pending[key]; !ok {
		c.logger.Debug().Str(pkglog.FieldTargetID, userID).Msg("no pending application to accept")
		return
	}
	delete(c.pending, key)

	if err := checkCoHost(c.pk); err != nil {
		c.notice(err)
		c.deps.Seats.OwnerReject(c.ctx, c.cfg.RoomID, userID, seatNo)
		return
	}
	if c.call.Occupied {
		c.notice(ErrSeatTaken)
		c.deps.Seats.OwnerReject(c.ctx, c.cfg.RoomID, userID, seatNo)
		return
	}

	c.deps.Seats.OwnerAccept(c.ctx, c.cfg.RoomID, userID, seatNo)
	c.call = CallSlot{Occupied: true, SeatNo: seatNo, UserID: userID, UserName: userName}
	c.render()
	c.record(kafka.EventCallStarted, userID, "")
}

func (c *Coordinator) rejectApply(userID string, seatNo int) {
	key := pendingKey{roomID: c.cfg.RoomID, userID: userID, seatNo: seatNo, kind: PendingAppliedByAudience}
	if _, ok := c.pending[key]; !ok {
		return
	}
	delete(c.pending, key)
	c.deps.Seats.OwnerReject(c.ctx, c.cfg.RoomID, userID, seatNo)
}

// endCall asks the backend to end the current call. The seat is released
// when the seat echo arrives.
func (c *Coordinator) endCall() bool {
	if !c.call.Occupied {
		return false
	}
	switch {
	case c.owner:
		c.deps.Seats.ForceLeave(c.ctx, c.cfg.RoomID, c.call.UserID, c.call.SeatNo)
	case c.isHost():
		c.deps.Seats.HostLeave(c.ctx, c.cfg.RoomID, c.roomOwner.UserID, c.call.SeatNo)
	default:
		return false
	}
	return true
}

// listPKRooms asks for rooms to challenge. Refused when a PK could not be
// started anyway.
func (c *Coordinator) listPKRooms(nextID string) {
	if !c.owner {
		c.notice(ErrNotOwner)
		return
	}
	if err := checkPK(c.call, c.pk); err != nil {
		c.notice(err)
		return
	}
	c.deps.PK.RequestRoomList(c.ctx, c.cfg.RoomID, nextID)
}

func (c *Coordinator) invitePK(remoteRoomID string) {
	if !c.owner {
		c.notice(ErrNotOwner)
		return
	}
	if err := checkPK(c.call, c.pk); err != nil {
		c.notice(err)
		return
	}
	if c.pk.Phase == PKInviting {
		c.logger.Info().
			Str("previous", c.pk.RemoteRoomID).
			Str(pkglog.FieldPKRoomID, remoteRoomID).
			Msg("unanswered pk invitation replaced")
	}

	c.deps.PK.Invite(c.ctx, c.cfg.RoomID, remoteRoomID)
	c.pk = PKSession{Phase: PKInviting, RemoteRoomID: remoteRoomID}
}

func (c *Coordinator) acceptPK(remoteRoomID string) {
	if c.pk.Phase != PKInvited || c.pk.RemoteRoomID != remoteRoomID {
		c.logger.Debug().Str(pkglog.FieldPKRoomID, remoteRoomID).Msg("no pending pk invitation to accept")
		return
	}
	if c.call.Occupied {
		c.notice(ErrCallActive)
		c.deps.PK.Reject(c.ctx, c.cfg.RoomID, remoteRoomID)
		c.pk = PKSession{}
		return
	}

	c.deps.PK.Accept(c.ctx, c.cfg.RoomID, remoteRoomID)
	c.pk.Phase = PKAccepted
}

func (c *Coordinator) rejectPK(remoteRoomID string) {
	if c.pk.Phase != PKInvited || c.pk.RemoteRoomID != remoteRoomID {
		return
	}
	c.deps.PK.Reject(c.ctx, c.cfg.RoomID, remoteRoomID)
	c.pk = PKSession{}
}

// toggleMute flips audio or video while the local user publishes.
func (c *Coordinator) toggleMute(audio bool) {
	if !c.view.broadcaster {
		c.logger.Debug().Msg("not publishing, mute toggle ignored")
		return
	}
	if audio {
		c.mute.AudioMuted = !c.mute.AudioMuted
	} else {
		c.mute.VideoMuted = !c.mute.VideoMuted
	}
	c.applyMute()
	c.saveMute()
}

func (c *Coordinator) saveMute() {
	if c.prefs == nil {
		return
	}
	c.prefs.Save(c.mute)
}

func (c *Coordinator) changeProductState(productID string, state domain.ProductState) {
	if !c.owner {
		c.notice(ErrNotOwner)
		return
	}
	c.deps.Products.RequestChangeState(c.ctx, c.cfg.RoomID, productID, state)
}

// leave ends an active call first, then tears the session down.
func (c *Coordinator) leave() {
	if c.endCall() {
		c.logger.Info().Str(pkglog.FieldTargetID, c.call.UserID).Msg("call ended on leave")
	}
	c.teardown()
}
