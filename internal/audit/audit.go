package audit

import (
	"context"

	"github.com/weiawesome/wes-io-live/liveroom/pkg/log"
)

// Audit actions for liveroom-service.
const (
	ActionSeatInteraction    = "seat.interaction"
	ActionPKInteraction      = "pk.interaction"
	ActionProductChangeState = "product.change_state"
	ActionProductPurchase    = "product.purchase"
	ActionSessionJoin        = "session.join"
	ActionSessionLeave       = "session.leave"
)

// Field constants for audit entries.
const (
	FieldAction = "action"
	FieldDetail = "detail"
)

// Log emits a structured audit log entry via the context logger. The context
// logger is expected to carry the acting user.
func Log(ctx context.Context, action string, roomID string, msg string) {
	l := log.Ctx(ctx)
	l.Info().
		Str(log.FieldLogType, log.LogTypeAudit).
		Str(FieldAction, action).
		Str(log.FieldRoomID, roomID).
		Msg(msg)
}

// LogWithDetail emits an audit log with extra detail field.
func LogWithDetail(ctx context.Context, action string, roomID string, detail string, msg string) {
	l := log.Ctx(ctx)
	l.Info().
		Str(log.FieldLogType, log.LogTypeAudit).
		Str(FieldAction, action).
		Str(log.FieldRoomID, roomID).
		Str(FieldDetail, detail).
		Msg(msg)
}
