package gateway

import (
	"context"

	"github.com/weiawesome/wes-io-live/liveroom/internal/audit"
	"github.com/weiawesome/wes-io-live/liveroom/internal/domain"
	pkglog "github.com/weiawesome/wes-io-live/liveroom/pkg/log"
	"github.com/weiawesome/wes-io-live/liveroom/pkg/pubsub"
)

// ProductGateway turns catalog intents into product_interaction requests.
type ProductGateway struct {
	transport Transport
}

// NewProductGateway creates a product gateway.
func NewProductGateway(transport Transport) *ProductGateway {
	return &ProductGateway{transport: transport}
}

// RequestList asks for the room's catalog.
func (g *ProductGateway) RequestList(ctx context.Context, roomID string) {
	g.send(ctx, &domain.ProductInteractionRequest{
		RoomID: roomID,
		Action: domain.ProductActionList,
	})
}

// RequestChangeState launches or unlists a product.
func (g *ProductGateway) RequestChangeState(ctx context.Context, roomID, productID string, state domain.ProductState) {
	if !state.Valid() {
		l := pkglog.Ctx(ctx)
		l.Warn().Str(pkglog.FieldProductID, productID).Int("state", int(state)).Msg("unknown product state, request dropped")
		return
	}
	if g.send(ctx, &domain.ProductInteractionRequest{
		RoomID:    roomID,
		Action:    domain.ProductActionChangeState,
		ProductID: productID,
		State:     state,
	}) {
		audit.LogWithDetail(ctx, audit.ActionProductChangeState, roomID, productID, "product state change requested")
	}
}

// RequestPurchase buys quantity units of a product.
func (g *ProductGateway) RequestPurchase(ctx context.Context, roomID, productID string, quantity int) {
	if quantity <= 0 {
		l := pkglog.Ctx(ctx)
		l.Warn().Str(pkglog.FieldProductID, productID).Int("quantity", quantity).Msg("invalid purchase quantity, request dropped")
		return
	}
	if g.send(ctx, &domain.ProductInteractionRequest{
		RoomID:    roomID,
		Action:    domain.ProductActionPurchase,
		ProductID: productID,
		Quantity:  quantity,
	}) {
		audit.LogWithDetail(ctx, audit.ActionProductPurchase, roomID, productID, "product purchase requested")
	}
}

func (g *ProductGateway) send(ctx context.Context, req *domain.ProductInteractionRequest) bool {
	if err := g.transport.Send(ctx, req.RoomID, pubsub.RequestProductInteraction, req); err != nil {
		l := pkglog.Ctx(ctx)
		l.Error().Err(err).
			Str(pkglog.FieldRoomID, req.RoomID).
			Str("action", string(req.Action)).
			Msg("failed to send product interaction")
		return false
	}
	return true
}
