package coordinator

import (
	"errors"
	"fmt"
	"sort"

	"github.com/weiawesome/wes-io-live/liveroom/internal/domain"
)

// Refusals surfaced to the user as notices.
var (
	ErrPKActive    = errors.New("cannot call while PK")
	ErrCallActive  = errors.New("cannot PK while calling")
	ErrAlreadyInPK = errors.New("already in PK")
	ErrPKPending   = errors.New("PK invitation pending")
	ErrSeatTaken   = errors.New("call seat already taken")
	ErrNotOwner    = errors.New("only the room owner can do this")
	ErrIsOwner     = errors.New("the room owner cannot apply for the seat")
	ErrClosed      = errors.New("session closed")
)

// PKPhase is the progress of a PK battle as seen by this session.
type PKPhase int

const (
	PKInactive PKPhase = iota
	PKInviting         // our invitation is out
	PKInvited          // an invitation is waiting for our answer
	PKAccepted         // we accepted, waiting for start
	PKActive
	PKEnding // result shown, reversion scheduled
)

func (p PKPhase) String() string {
	switch p {
	case PKInactive:
		return "inactive"
	case PKInviting:
		return "inviting"
	case PKInvited:
		return "invited"
	case PKAccepted:
		return "accepted"
	case PKActive:
		return "active"
	case PKEnding:
		return "ending"
	default:
		return fmt.Sprintf("pk_phase(%d)", int(p))
	}
}

// MarshalText renders the phase by name.
func (p PKPhase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// CallSlot is the single co-host seat.
type CallSlot struct {
	Occupied bool   `json:"occupied"`
	SeatNo   int    `json:"seat_no,omitempty"`
	UserID   string `json:"user_id,omitempty"`
	UID      int    `json:"uid,omitempty"` // 0 until the seat echo names the stream
	UserName string `json:"user_name,omitempty"`
}

func occupiedBy(seatNo int, u domain.User) CallSlot {
	return CallSlot{
		Occupied: true,
		SeatNo:   seatNo,
		UserID:   u.UserID,
		UID:      u.UID,
		UserName: u.UserName,
	}
}

// PKSession is the cross-room battle state.
type PKSession struct {
	Phase           PKPhase            `json:"phase"`
	RemoteRoomID    string             `json:"remote_room_id,omitempty"`
	RemoteOwnerName string             `json:"remote_owner_name,omitempty"`
	CountDown       int64              `json:"count_down,omitempty"`
	LocalScore      int                `json:"local_score"`
	RemoteScore     int                `json:"remote_score"`
	Relay           domain.RelayConfig `json:"-"`
	Result          *domain.PKResult   `json:"result,omitempty"`
}

// Active reports whether the battle occupies the room's video.
func (p PKSession) Active() bool {
	return p.Phase == PKActive || p.Phase == PKEnding
}

// Busy reports whether the room is committed to a battle.
func (p PKSession) Busy() bool {
	return p.Phase == PKAccepted || p.Active()
}

// PendingKind says who started a seat interaction and in which direction.
type PendingKind string

const (
	PendingOwnerInvite       PendingKind = "owner_invite"        // we invited
	PendingAudienceApply     PendingKind = "audience_apply"      // we applied
	PendingInvitedByOwner    PendingKind = "invited_by_owner"    // invitation awaiting our answer
	PendingAppliedByAudience PendingKind = "applied_by_audience" // application awaiting our answer
)

// PendingInteraction is an in-flight seat invitation or application.
type PendingInteraction struct {
	RoomID   string      `json:"room_id"`
	UserID   string      `json:"user_id"`
	UserName string      `json:"user_name,omitempty"`
	SeatNo   int         `json:"seat_no"`
	Kind     PendingKind `json:"kind"`
}

type pendingKey struct {
	roomID string
	userID string
	seatNo int
	kind   PendingKind
}

func (p PendingInteraction) key() pendingKey {
	return pendingKey{roomID: p.RoomID, userID: p.UserID, seatNo: p.SeatNo, kind: p.Kind}
}

// State is a point-in-time copy of a coordinator's state.
type State struct {
	SessionID       string               `json:"session_id"`
	RoomID          string               `json:"room_id"`
	UserID          string               `json:"user_id"`
	Entered         bool                 `json:"entered"`
	Role            domain.Role          `json:"role"`
	Call            CallSlot             `json:"call"`
	PK              PKSession            `json:"pk"`
	Mute            domain.MuteState     `json:"mute"`
	Layout          domain.Layout        `json:"layout,omitempty"`
	Pending         []PendingInteraction `json:"pending"`
	DeferredPKStart bool                 `json:"deferred_pk_start"`
}

// checkCoHost refuses seat changes while the room is committed to a PK.
func checkCoHost(pk PKSession) error {
	if pk.Busy() {
		return ErrPKActive
	}
	return nil
}

// checkPK refuses a new PK while calling, while another PK is in progress or
// while an incoming invitation awaits an answer. An unanswered outgoing
// invitation does not block; the new one replaces it.
func checkPK(call CallSlot, pk PKSession) error {
	switch {
	case call.Occupied:
		return ErrCallActive
	case pk.Busy():
		return ErrAlreadyInPK
	case pk.Phase == PKInvited:
		return ErrPKPending
	}
	return nil
}

func sortedPending(m map[pendingKey]PendingInteraction) []PendingInteraction {
	out := make([]PendingInteraction, 0, len(m))
	for _, p := range m {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Kind != out[j].Kind {
			return out[i].Kind < out[j].Kind
		}
		return out[i].UserID < out[j].UserID
	})
	return out
}
