package domain

import "fmt"

// Role is the local participant's role in a room.
type Role int

const (
	RoleAudience Role = iota
	// RoleHost is an overlay on RoleAudience while the local user holds the
	// co-host seat. It is never persisted as a base role.
	RoleHost
	RoleOwner
)

func (r Role) String() string {
	switch r {
	case RoleOwner:
		return "owner"
	case RoleHost:
		return "host"
	case RoleAudience:
		return "audience"
	default:
		return fmt.Sprintf("role(%d)", int(r))
	}
}

// MarshalText renders the role by name.
func (r Role) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// SeatState is the wire state of a co-video seat.
type SeatState int

const (
	SeatEmpty  SeatState = 0
	SeatTaken  SeatState = 1
	SeatClosed SeatState = 2
)

// CallSeatNo is the only co-host seat the room uses.
const CallSeatNo = 1

// PKEventType tags a pk_event push.
type PKEventType int

const (
	PKEventEnd         PKEventType = 0
	PKEventStart       PKEventType = 1
	PKEventRankChanged PKEventType = 2
)

func (t PKEventType) String() string {
	switch t {
	case PKEventEnd:
		return "end"
	case PKEventStart:
		return "start"
	case PKEventRankChanged:
		return "rank_changed"
	default:
		return fmt.Sprintf("pk_event(%d)", int(t))
	}
}

// PKState is the PK sub-state carried by a room snapshot.
type PKState int

const (
	PKStateNone     PKState = 0
	PKStateInviting PKState = 1
	PKStateInvited  PKState = 2
	PKStateInPK     PKState = 3
)

// PKResult is the outcome shown when a PK ends.
type PKResult int

const (
	PKResultWin  PKResult = 0
	PKResultDraw PKResult = 1
	PKResultLose PKResult = 2
)

func (r PKResult) String() string {
	switch r {
	case PKResultWin:
		return "win"
	case PKResultDraw:
		return "draw"
	case PKResultLose:
		return "lose"
	default:
		return fmt.Sprintf("pk_result(%d)", int(r))
	}
}

// SeatInteraction is the type tag of a seat_interaction request.
type SeatInteraction int

const (
	SeatOwnerInvite     SeatInteraction = 1
	SeatAudienceApply   SeatInteraction = 2
	SeatOwnerAccept     SeatInteraction = 3
	SeatOwnerReject     SeatInteraction = 4
	SeatAudienceAccept  SeatInteraction = 5
	SeatAudienceReject  SeatInteraction = 6
	SeatOwnerForceLeave SeatInteraction = 7
	SeatHostLeave       SeatInteraction = 8
)

func (s SeatInteraction) String() string {
	switch s {
	case SeatOwnerInvite:
		return "invite"
	case SeatAudienceApply:
		return "apply"
	case SeatOwnerAccept:
		return "owner_accept"
	case SeatOwnerReject:
		return "owner_reject"
	case SeatAudienceAccept:
		return "audience_accept"
	case SeatAudienceReject:
		return "audience_reject"
	case SeatOwnerForceLeave:
		return "force_leave"
	case SeatHostLeave:
		return "host_leave"
	default:
		return fmt.Sprintf("seat_interaction(%d)", int(s))
	}
}

// PKInteraction is the type tag of a pk_interaction request.
type PKInteraction int

const (
	PKInvite PKInteraction = 1
	PKAccept PKInteraction = 2
	PKReject PKInteraction = 3
)

func (p PKInteraction) String() string {
	switch p {
	case PKInvite:
		return "invite"
	case PKAccept:
		return "accept"
	case PKReject:
		return "reject"
	default:
		return fmt.Sprintf("pk_interaction(%d)", int(p))
	}
}

// ProductState is the catalog state of a product.
type ProductState int

const (
	ProductAvailable   ProductState = 0
	ProductLaunched    ProductState = 1
	ProductUnavailable ProductState = 2
)

// Valid reports whether s is a known product state.
func (s ProductState) Valid() bool {
	return s >= ProductAvailable && s <= ProductUnavailable
}

// ProductAction selects the operation of a product_interaction request.
type ProductAction string

const (
	ProductActionList        ProductAction = "list"
	ProductActionChangeState ProductAction = "change_state"
	ProductActionPurchase    ProductAction = "purchase"
)

// Surface names a video slot of the presentation.
type Surface string

const (
	SurfaceMain    Surface = "main"
	SurfaceCall    Surface = "call"
	SurfacePKLeft  Surface = "pk_left"
	SurfacePKRight Surface = "pk_right"
)

// Layout is the arrangement of surfaces the presentation shows.
type Layout string

const (
	LayoutSolo       Layout = "solo"
	LayoutCall       Layout = "call"
	LayoutCallViewer Layout = "call_viewer"
	LayoutPK         Layout = "pk"
)

// SinkHandle identifies an attached remote video sink.
type SinkHandle int64

// MuteState is the local participant's outgoing media state.
type MuteState struct {
	AudioMuted bool `json:"audio_muted"`
	VideoMuted bool `json:"video_muted"`
}

// FullyMuted is the state of a participant that does not publish.
var FullyMuted = MuteState{AudioMuted: true, VideoMuted: true}
