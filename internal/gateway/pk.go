package gateway

import (
	"context"

	"github.com/weiawesome/wes-io-live/liveroom/internal/audit"
	"github.com/weiawesome/wes-io-live/liveroom/internal/domain"
	pkglog "github.com/weiawesome/wes-io-live/liveroom/pkg/log"
	"github.com/weiawesome/wes-io-live/liveroom/pkg/pubsub"
)

// PKRoomPageSize is the number of PK candidates requested per page.
const PKRoomPageSize = 10

// PKGateway turns PK intents into pk_interaction requests. The credential is
// stamped by the transport.
type PKGateway struct {
	transport Transport
}

// NewPKGateway creates a PK gateway.
func NewPKGateway(transport Transport) *PKGateway {
	return &PKGateway{transport: transport}
}

// Invite challenges remoteRoomID.
func (g *PKGateway) Invite(ctx context.Context, localRoomID, remoteRoomID string) {
	g.send(ctx, localRoomID, remoteRoomID, domain.PKInvite)
}

// Accept accepts a challenge from remoteRoomID.
func (g *PKGateway) Accept(ctx context.Context, localRoomID, remoteRoomID string) {
	g.send(ctx, localRoomID, remoteRoomID, domain.PKAccept)
}

// Reject declines a challenge from remoteRoomID.
func (g *PKGateway) Reject(ctx context.Context, localRoomID, remoteRoomID string) {
	g.send(ctx, localRoomID, remoteRoomID, domain.PKReject)
}

// RequestRoomList asks for a page of rooms open to a challenge, starting after
// nextID. An empty nextID asks for the first page.
func (g *PKGateway) RequestRoomList(ctx context.Context, localRoomID, nextID string) {
	req := &domain.PKRoomListRequest{
		RoomID: localRoomID,
		NextID: nextID,
		Count:  PKRoomPageSize,
	}
	if err := g.transport.Send(ctx, localRoomID, pubsub.RequestPKRoomList, req); err != nil {
		l := pkglog.Ctx(ctx)
		l.Error().Err(err).
			Str(pkglog.FieldRoomID, localRoomID).
			Str("next_id", nextID).
			Msg("failed to request pk room list")
	}
}

func (g *PKGateway) send(ctx context.Context, localRoomID, remoteRoomID string, kind domain.PKInteraction) {
	req := &domain.PKInteractionRequest{
		RoomID:       localRoomID,
		TargetRoomID: remoteRoomID,
		Type:         kind,
	}
	if err := g.transport.Send(ctx, localRoomID, pubsub.RequestPKInteraction, req); err != nil {
		l := pkglog.Ctx(ctx)
		l.Error().Err(err).
			Str(pkglog.FieldRoomID, localRoomID).
			Str(pkglog.FieldPKRoomID, remoteRoomID).
			Msg("failed to send pk interaction")
		return
	}

	audit.LogWithDetail(ctx, audit.ActionPKInteraction, localRoomID, kind.String()+":"+remoteRoomID, "pk interaction sent")
}
