package domain

// WebSocket message types from client.
const (
	MsgTypeAuth               = "auth"
	MsgTypeJoinRoom           = "join_room"
	MsgTypeLeaveRoom          = "leave_room"
	MsgTypePing               = "ping"
	MsgTypeRequestCoHost      = "request_co_host"
	MsgTypeInviteCoHost       = "invite_co_host"
	MsgTypeEndCall            = "end_call"
	MsgTypeInvitePK           = "invite_pk"
	MsgTypeListPKRooms        = "list_pk_rooms"
	MsgTypeToggleAudio        = "toggle_audio"
	MsgTypeToggleVideo        = "toggle_video"
	MsgTypeListProducts       = "list_products"
	MsgTypeChangeProductState = "change_product_state"
	MsgTypePurchaseProduct    = "purchase_product"
	MsgTypeModalAnswer        = "modal_answer"
)

// WebSocket message types to client.
const (
	MsgTypeAuthResult         = "auth_result"
	MsgTypeRoomJoined         = "room_joined"
	MsgTypeRoomLeft           = "room_left"
	MsgTypeError              = "error"
	MsgTypePong               = "pong"
	MsgTypeAttachLocalCapture = "attach_local_capture"
	MsgTypeDetachLocalCapture = "detach_local_capture"
	MsgTypeAttachRemoteSink   = "attach_remote_sink"
	MsgTypeDetachSink         = "detach_sink"
	MsgTypeSetLayout          = "set_layout"
	MsgTypePKScores           = "pk_scores"
	MsgTypePKResult           = "pk_result"
	MsgTypeClearPKResult      = "clear_pk_result"
	MsgTypeModal              = "modal"
	MsgTypeNotice             = "notice"
	MsgTypeProducts           = "products"
	MsgTypePKRooms            = "pk_rooms"
	MsgTypeSetBroadcaster     = "set_broadcaster"
	MsgTypeMuteLocal          = "mute_local"
	MsgTypeStartRelay         = "start_relay"
	MsgTypeStopRelay          = "stop_relay"
)

// BaseMessage is the base structure for all WebSocket messages.
type BaseMessage struct {
	Type string `json:"type"`
}

// Client -> Server messages

// AuthMessage is sent by client to authenticate.
type AuthMessage struct {
	Type  string `json:"type"`
	Token string `json:"token"`
}

// RoomMessage is sent by client to join or leave a room.
type RoomMessage struct {
	Type   string `json:"type"`
	RoomID string `json:"room_id"`
}

// InviteCoHostMessage is sent by the owner to invite an audience member.
type InviteCoHostMessage struct {
	Type     string `json:"type"`
	UserID   string `json:"user_id"`
	UserName string `json:"user_name"`
}

// InvitePKMessage is sent by the owner to challenge another room.
type InvitePKMessage struct {
	Type   string `json:"type"`
	RoomID string `json:"room_id"`
}

// ListPKRoomsMessage asks for a page of rooms to challenge. An empty NextID
// starts from the first page.
type ListPKRoomsMessage struct {
	Type   string `json:"type"`
	NextID string `json:"next_id,omitempty"`
}

// ChangeProductStateMessage launches or unlists a product.
type ChangeProductStateMessage struct {
	Type      string       `json:"type"`
	ProductID string       `json:"product_id"`
	State     ProductState `json:"state"`
}

// PurchaseProductMessage buys a product.
type PurchaseProductMessage struct {
	Type      string `json:"type"`
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

// ModalAnswerMessage answers a modal choice shown earlier.
type ModalAnswerMessage struct {
	Type    string `json:"type"`
	ModalID string `json:"modal_id"`
	Accept  bool   `json:"accept"`
}

// Server -> Client messages

// AuthResultMessage is sent to client after authentication.
type AuthResultMessage struct {
	Type     string `json:"type"`
	Success  bool   `json:"success"`
	UserID   string `json:"user_id,omitempty"`
	Username string `json:"username,omitempty"`
	Message  string `json:"message,omitempty"`
}

// RoomJoinedMessage is sent when client successfully joins a room.
type RoomJoinedMessage struct {
	Type      string `json:"type"`
	RoomID    string `json:"room_id"`
	SessionID string `json:"session_id"`
	IsOwner   bool   `json:"is_owner"`
}

// SurfaceMessage attaches or detaches video on a surface.
type SurfaceMessage struct {
	Type          string     `json:"type"`
	Surface       Surface    `json:"surface,omitempty"`
	ParticipantID int        `json:"participant_id,omitempty"`
	SinkID        SinkHandle `json:"sink_id,omitempty"`
}

// LayoutMessage switches the presentation layout.
type LayoutMessage struct {
	Type   string `json:"type"`
	Layout Layout `json:"layout"`
}

// PKScoresMessage updates the PK score bar.
type PKScoresMessage struct {
	Type   string `json:"type"`
	Local  int    `json:"local"`
	Remote int    `json:"remote"`
}

// PKResultMessage shows the PK outcome.
type PKResultMessage struct {
	Type   string   `json:"type"`
	Result PKResult `json:"result"`
}

// ModalMessage asks the user to accept or reject.
type ModalMessage struct {
	Type    string `json:"type"`
	ModalID string `json:"modal_id"`
	Title   string `json:"title"`
	Message string `json:"message"`
}

// NoticeMessage is a transient user-visible notice.
type NoticeMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// ProductsMessage carries the product catalog.
type ProductsMessage struct {
	Type     string    `json:"type"`
	Products []Product `json:"products"`
}

// PKRoomsMessage carries one page of PK candidates.
type PKRoomsMessage struct {
	Type   string   `json:"type"`
	Rooms  []PKRoom `json:"rooms"`
	NextID string   `json:"next_id,omitempty"`
}

// BroadcasterMessage switches the media role.
type BroadcasterMessage struct {
	Type    string `json:"type"`
	Enabled bool   `json:"enabled"`
}

// MuteMessage sets the outgoing media state.
type MuteMessage struct {
	Type string    `json:"type"`
	Mute MuteState `json:"mute"`
}

// RelayMessage starts or stops the cross-room media relay.
type RelayMessage struct {
	Type   string       `json:"type"`
	Config *RelayConfig `json:"config,omitempty"`
}

// ErrorMessage is sent when an error occurs.
type ErrorMessage struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error codes
const (
	ErrCodeUnauthorized  = "UNAUTHORIZED"
	ErrCodeNotFound      = "NOT_FOUND"
	ErrCodeBadRequest    = "BAD_REQUEST"
	ErrCodeConflict      = "CONFLICT"
	ErrCodeInternalError = "INTERNAL_ERROR"
)

// NewErrorMessage creates a new error message.
func NewErrorMessage(code, message string) *ErrorMessage {
	return &ErrorMessage{
		Type:    MsgTypeError,
		Code:    code,
		Message: message,
	}
}
