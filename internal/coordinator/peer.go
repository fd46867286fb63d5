package coordinator

import (
	"fmt"

	"github.com/weiawesome/wes-io-live/liveroom/internal/domain"
	pkglog "github.com/weiawesome/wes-io-live/liveroom/pkg/log"
)

func (c *Coordinator) onSeatInvited(peer domain.SeatPeerPayload) {
	if c.owner {
		return
	}
	p := PendingInteraction{
		RoomID:   c.cfg.RoomID,
		UserID:   peer.UserID,
		UserName: peer.UserName,
		SeatNo:   peer.SeatNo,
		Kind:     PendingInvitedByOwner,
	}
	if _, ok := c.pending[p.key()]; ok {
		return
	}
	c.pending[p.key()] = p

	c.deps.Shell.ShowModalChoice("Co-host invitation",
		fmt.Sprintf("%s invites you to co-host", peer.UserName),
		func() { c.Post(AcceptInvite{OwnerID: peer.UserID, SeatNo: peer.SeatNo}) },
		func() { c.Post(RejectInvite{OwnerID: peer.UserID, SeatNo: peer.SeatNo}) })
}

func (c *Coordinator) onSeatApplied(peer domain.SeatPeerPayload) {
	if !c.owner {
		return
	}
	p := PendingInteraction{
		RoomID:   c.cfg.RoomID,
		UserID:   peer.UserID,
		UserName: peer.UserName,
		SeatNo:   peer.SeatNo,
		Kind:     PendingAppliedByAudience,
	}
	if _, ok := c.pending[p.key()]; ok {
		return
	}
	c.pending[p.key()] = p

	c.deps.Shell.ShowModalChoice("Co-host application",
		fmt.Sprintf("%s wants to co-host with you", peer.UserName),
		func() { c.Post(AcceptApply{UserID: peer.UserID, UserName: peer.UserName, SeatNo: peer.SeatNo}) },
		func() { c.Post(RejectApply{UserID: peer.UserID, SeatNo: peer.SeatNo}) })
}

// onSeatAnswered closes our own invitation or application once the
// counterpart answered it.
func (c *Coordinator) onSeatAnswered(peer domain.SeatPeerPayload, kind PendingKind, notice string) {
	key := pendingKey{roomID: c.cfg.RoomID, userID: peer.UserID, seatNo: peer.SeatNo, kind: kind}
	delete(c.pending, key)
	c.deps.Shell.ShowNotice(notice)
}

func (c *Coordinator) onPKInvitationReceived(peer domain.PKPeerPayload) {
	if !c.owner {
		return
	}
	l := c.logger.With().Str(pkglog.FieldPKRoomID, peer.PKRoomID).Logger()

	if c.call.Occupied {
		l.Info().Msg("pk invitation while calling, rejected")
		c.deps.PK.Reject(c.ctx, c.cfg.RoomID, peer.PKRoomID)
		c.notice(ErrCallActive)
		return
	}
	if c.pk.Phase != PKInactive {
		l.Info().Str("phase", c.pk.Phase.String()).Msg("pk invitation while busy, rejected")
		c.deps.PK.Reject(c.ctx, c.cfg.RoomID, peer.PKRoomID)
		return
	}

	c.pk = PKSession{Phase: PKInvited, RemoteRoomID: peer.PKRoomID, RemoteOwnerName: peer.UserName}
	c.deps.Shell.ShowModalChoice("PK invitation",
		fmt.Sprintf("%s invites you to a PK", peer.UserName),
		func() { c.Post(AcceptPK{RoomID: peer.PKRoomID}) },
		func() { c.Post(RejectPK{RoomID: peer.PKRoomID}) })
}

func (c *Coordinator) onPKInvitationAnswered(peer domain.PKPeerPayload, accepted bool) {
	if accepted {
		c.deps.Shell.ShowNotice("PK invitation accepted")
		if c.pk.Phase == PKInviting && c.pk.RemoteRoomID == peer.PKRoomID {
			c.pk.Phase = PKAccepted
			c.pk.RemoteOwnerName = peer.UserName
		}
		return
	}

	c.deps.Shell.ShowNotice("PK invitation rejected")
	if c.pk.Phase == PKInviting && c.pk.RemoteRoomID == peer.PKRoomID {
		c.pk = PKSession{}
	}
}

// onPKRoomList shows a page of PK candidates to the owner, leaving out this
// room.
func (c *Coordinator) onPKRoomList(p domain.PKRoomListPayload) {
	if !c.owner {
		return
	}
	rooms := make([]domain.PKRoom, 0, len(p.Rooms))
	for _, r := range p.Rooms {
		if r.RoomID == "" || r.RoomID == c.cfg.RoomID {
			continue
		}
		rooms = append(rooms, r)
	}
	c.deps.Shell.ShowPKRooms(rooms, p.NextID)
}

func (c *Coordinator) onProductStateChanged(p domain.ProductStatePayload) {
	if !c.owner && p.State == domain.ProductLaunched {
		c.deps.Shell.ShowNotice("a new product is on the shelf")
	}
	c.deps.Products.RequestList(c.ctx, c.cfg.RoomID)
}

func (c *Coordinator) onProductStateResult(p domain.ProductStatePayload) {
	switch {
	case !p.Success:
		c.deps.Shell.ShowNotice("failed to change product state")
	case p.State == domain.ProductLaunched:
		c.deps.Shell.ShowNotice("product launched")
	case p.State == domain.ProductUnavailable:
		c.deps.Shell.ShowNotice("product unlisted")
	}
	c.deps.Products.RequestList(c.ctx, c.cfg.RoomID)
}
