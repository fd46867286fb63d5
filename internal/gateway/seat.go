package gateway

import (
	"context"

	"github.com/weiawesome/wes-io-live/liveroom/internal/audit"
	"github.com/weiawesome/wes-io-live/liveroom/internal/domain"
	pkglog "github.com/weiawesome/wes-io-live/liveroom/pkg/log"
	"github.com/weiawesome/wes-io-live/liveroom/pkg/pubsub"
)

// SeatGateway turns seat intents into seat_interaction requests. Every
// operation requires a credential; without one the request is dropped and
// only logged.
type SeatGateway struct {
	transport Transport
	creds     CredentialSource
}

// NewSeatGateway creates a seat gateway.
func NewSeatGateway(transport Transport, creds CredentialSource) *SeatGateway {
	return &SeatGateway{transport: transport, creds: creds}
}

// Invite asks an audience member to take the seat.
func (g *SeatGateway) Invite(ctx context.Context, roomID, userID string, seatNo int) {
	g.send(ctx, roomID, userID, seatNo, domain.SeatOwnerInvite, "seat owner invite token invalid")
}

// Apply asks the owner for the seat.
func (g *SeatGateway) Apply(ctx context.Context, roomID, userID string, seatNo int) {
	g.send(ctx, roomID, userID, seatNo, domain.SeatAudienceApply, "seat audience apply token invalid")
}

// OwnerAccept accepts an audience application.
func (g *SeatGateway) OwnerAccept(ctx context.Context, roomID, userID string, seatNo int) {
	g.send(ctx, roomID, userID, seatNo, domain.SeatOwnerAccept, "seat owner accept token invalid")
}

// OwnerReject rejects an audience application.
func (g *SeatGateway) OwnerReject(ctx context.Context, roomID, userID string, seatNo int) {
	g.send(ctx, roomID, userID, seatNo, domain.SeatOwnerReject, "seat owner reject token invalid")
}

// AudienceAccept accepts an owner invitation.
func (g *SeatGateway) AudienceAccept(ctx context.Context, roomID, userID string, seatNo int) {
	g.send(ctx, roomID, userID, seatNo, domain.SeatAudienceAccept, "seat audience accept token invalid")
}

// AudienceReject rejects an owner invitation.
func (g *SeatGateway) AudienceReject(ctx context.Context, roomID, userID string, seatNo int) {
	g.send(ctx, roomID, userID, seatNo, domain.SeatAudienceReject, "seat audience reject token invalid")
}

// ForceLeave removes the host from the seat.
func (g *SeatGateway) ForceLeave(ctx context.Context, roomID, userID string, seatNo int) {
	g.send(ctx, roomID, userID, seatNo, domain.SeatOwnerForceLeave, "seat force leave token invalid")
}

// HostLeave gives up the seat.
func (g *SeatGateway) HostLeave(ctx context.Context, roomID, userID string, seatNo int) {
	g.send(ctx, roomID, userID, seatNo, domain.SeatHostLeave, "seat host leave token invalid")
}

func (g *SeatGateway) send(ctx context.Context, roomID, userID string, seatNo int, kind domain.SeatInteraction, invalidToken string) {
	l := pkglog.Ctx(ctx)

	var token string
	if g.creds != nil {
		token = g.creds.Token()
	}
	if token == "" {
		l.Error().
			Str(pkglog.FieldRoomID, roomID).
			Str(pkglog.FieldTargetID, userID).
			Int(pkglog.FieldSeatNo, seatNo).
			Msg(invalidToken)
		return
	}

	req := &domain.SeatInteractionRequest{
		Token:  token,
		RoomID: roomID,
		UserID: userID,
		SeatNo: seatNo,
		Type:   kind,
	}
	if err := g.transport.Send(ctx, roomID, pubsub.RequestSeatInteraction, req); err != nil {
		l.Error().Err(err).
			Str(pkglog.FieldRoomID, roomID).
			Str(pkglog.FieldTargetID, userID).
			Msg("failed to send seat interaction")
		return
	}

	audit.LogWithDetail(ctx, audit.ActionSeatInteraction, roomID, kind.String(), "seat interaction sent")
}
