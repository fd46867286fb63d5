package domain

// RequestEnvelope wraps every request published to the live-room backend.
type RequestEnvelope struct {
	Token string      `json:"token,omitempty"`
	Data  interface{} `json:"data"`
}

// EnterRoomRequest announces the session to the backend.
type EnterRoomRequest struct {
	RoomID string `json:"room_id"`
}

// SeatInteractionRequest is the body of a seat_interaction request.
type SeatInteractionRequest struct {
	Token  string          `json:"token"`
	RoomID string          `json:"room_id"`
	UserID string          `json:"user_id"`
	SeatNo int             `json:"seat_no"`
	Type   SeatInteraction `json:"type"`
}

// PKInteractionRequest is the body of a pk_interaction request.
type PKInteractionRequest struct {
	RoomID       string        `json:"room_id"`
	TargetRoomID string        `json:"target_room_id"`
	Type         PKInteraction `json:"type"`
}

// PKRoomListRequest asks for a page of rooms open to a PK challenge.
type PKRoomListRequest struct {
	RoomID string `json:"room_id"`
	NextID string `json:"next_id,omitempty"`
	Count  int    `json:"count"`
}

// ProductInteractionRequest is the body of a product_interaction request.
type ProductInteractionRequest struct {
	RoomID    string        `json:"room_id"`
	Action    ProductAction `json:"action"`
	ProductID string        `json:"product_id,omitempty"`
	State     ProductState  `json:"state"`
	Quantity  int           `json:"quantity,omitempty"`
}
