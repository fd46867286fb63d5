package domain

// User is a room participant as described by the live-room backend.
type User struct {
	UserID      string `json:"user_id"`
	UserName    string `json:"user_name"`
	UID         int    `json:"uid"` // media stream id
	EnableAudio bool   `json:"enable_audio"`
	EnableVideo bool   `json:"enable_video"`
}

// Mute derives the outgoing media state from the user's enable flags.
func (u User) Mute() MuteState {
	return MuteState{AudioMuted: !u.EnableAudio, VideoMuted: !u.EnableVideo}
}

// Seat is the position and state of a co-video seat.
type Seat struct {
	No    int       `json:"no"`
	State SeatState `json:"state"`
}

// SeatInfo pairs a seat with its occupant, if any.
type SeatInfo struct {
	Seat Seat  `json:"seat"`
	User *User `json:"user,omitempty"`
}

// RelayInfo is one leg of a cross-room media relay.
type RelayInfo struct {
	ChannelName string `json:"channel_name,omitempty"`
	Token       string `json:"token,omitempty"`
	UID         int    `json:"uid"`
}

// RelayConfig carries the media relay parameters of a PK session.
type RelayConfig struct {
	Local  RelayInfo `json:"local"`
	Proxy  RelayInfo `json:"proxy"`
	Remote RelayInfo `json:"remote"`
}

// RemoteRoom is the opposing room of a PK.
type RemoteRoom struct {
	RoomID string `json:"room_id"`
	Owner  User   `json:"owner"`
}

// PKInfo is the PK section of a room snapshot.
type PKInfo struct {
	State       PKState     `json:"state"`
	CountDown   int64       `json:"count_down"` // milliseconds remaining
	RemoteRoom  RemoteRoom  `json:"remote_room"`
	RelayConfig RelayConfig `json:"relay_config"`
	LocalRank   int         `json:"local_rank"`
	RemoteRank  int         `json:"remote_rank"`
}

// RoomSnapshot is the room-entry response.
type RoomSnapshot struct {
	RoomID       string     `json:"room_id"`
	RoomName     string     `json:"room_name"`
	Owner        User       `json:"owner"`
	PK           PKInfo     `json:"pk"`
	CoVideoSeats []SeatInfo `json:"co_video_seats"`
}

// SeatStateChangedPayload is the payload of a seat_state_changed push.
type SeatStateChangedPayload struct {
	Seats []SeatInfo `json:"seats"`
}

// PKEventPayload is the payload of a pk_event push.
type PKEventPayload struct {
	Event       PKEventType `json:"event"`
	CountDown   int64       `json:"count_down"`
	RemoteRoom  RemoteRoom  `json:"remote_room"`
	RelayConfig RelayConfig `json:"relay_config"`
	LocalRank   int         `json:"local_rank"`
	RemoteRank  int         `json:"remote_rank"`
	Result      PKResult    `json:"result"`
}

// SeatPeerPayload names the counterpart of a seat invitation or application.
type SeatPeerPayload struct {
	UserID   string `json:"user_id"`
	UserName string `json:"user_name"`
	SeatNo   int    `json:"seat_no"`
}

// PKPeerPayload names the counterpart of a PK invitation.
type PKPeerPayload struct {
	UserID   string `json:"user_id"`
	UserName string `json:"user_name"`
	PKRoomID string `json:"pk_room_id"`
}

// PKRoom is a live room that can be challenged to a PK.
type PKRoom struct {
	RoomID       string `json:"room_id"`
	RoomName     string `json:"room_name"`
	Owner        User   `json:"owner"`
	CurrentUsers int    `json:"current_users"`
}

// PKRoomListPayload is one page of the response to a pk_room_list request.
// An empty NextID means there are no more pages.
type PKRoomListPayload struct {
	Rooms  []PKRoom `json:"rooms"`
	NextID string   `json:"next_id,omitempty"`
}

// Product is a catalog entry of a shopping room.
type Product struct {
	ProductID string       `json:"product_id"`
	Name      string       `json:"name"`
	Price     float64      `json:"price"`
	Thumbnail string       `json:"thumbnail,omitempty"`
	State     ProductState `json:"state"`
}

// ProductListPayload is the response to a list request.
type ProductListPayload struct {
	Products []Product `json:"products"`
}

// ProductStatePayload is the payload of product_state_changed and
// product_state_result pushes. Success is only set on results.
type ProductStatePayload struct {
	ProductID string       `json:"product_id"`
	State     ProductState `json:"state"`
	Success   bool         `json:"success,omitempty"`
}

// ProductPurchasePayload is the payload of product_purchased and
// product_purchase_result pushes.
type ProductPurchasePayload struct {
	ProductID string `json:"product_id"`
	Count     int    `json:"count,omitempty"`
	Success   bool   `json:"success,omitempty"`
}

// RoomClosedPayload is the payload of a room_closed push.
type RoomClosedPayload struct {
	Reason string `json:"reason,omitempty"`
}
