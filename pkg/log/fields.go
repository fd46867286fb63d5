package log

const (
	// Request
	FieldRequestID = "request_id"
	FieldMethod    = "method"
	FieldPath      = "path"
	FieldStatus    = "status"
	FieldLatency   = "latency_ms"
	FieldClientIP  = "client_ip"

	// Actor
	FieldUserID   = "user_id"
	FieldUsername = "username"

	// Service
	FieldService = "service"

	// Live room
	FieldSessionID = "session_id"
	FieldClientID  = "client_id"
	FieldRoomID    = "room_id"
	FieldSeatNo    = "seat_no"
	FieldTargetID  = "target_user_id"
	FieldPKRoomID  = "pk_room_id"
	FieldEventType = "event_type"
	FieldRequest   = "request_kind"
	FieldProductID = "product_id"

	// Log type (for audit log)
	FieldLogType = "log_type"
	LogTypeAudit = "audit"
)
