package coordinator

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weiawesome/wes-io-live/liveroom/internal/domain"
	"github.com/weiawesome/wes-io-live/liveroom/internal/gateway"
	"github.com/weiawesome/wes-io-live/liveroom/internal/kafka"
)

func (h *harness) enter(snap domain.RoomSnapshot) {
	h.t.Helper()
	h.post(RoomEntered{Snapshot: snap})
	h.reset()
}

func TestOwnerEntersEmptyRoom(t *testing.T) {
	h := newHarness(t, ownerID)
	h.post(RoomEntered{Snapshot: snapshot()})

	s := h.state()
	assert.True(t, s.Entered)
	assert.Equal(t, domain.RoleOwner, s.Role)
	assert.Equal(t, domain.LayoutSolo, s.Layout)
	assert.False(t, s.Call.Occupied)
	assert.Equal(t, PKInactive, s.PK.Phase)
	assert.Equal(t, domain.MuteState{}, s.Mute)

	assert.Equal(t, []string{"layout:solo", "attach_local:main"}, h.shell.take())
	assert.Equal(t, []string{"broadcaster:true", "mute:audio=false,video=false"}, h.media.take())
}

func TestAudienceEntersEmptyRoom(t *testing.T) {
	h := newHarness(t, "viewer")
	h.post(RoomEntered{Snapshot: snapshot()})

	s := h.state()
	assert.Equal(t, domain.RoleAudience, s.Role)
	assert.Equal(t, domain.FullyMuted, s.Mute)
	assert.Equal(t, []string{"layout:solo", "attach_sink:main:100"}, h.shell.take())
	assert.Equal(t, []string{"broadcaster:false", "mute:audio=true,video=true"}, h.media.take())
}

func TestRoomEntryIsIdempotent(t *testing.T) {
	guest := user("guest", 201)
	inPK := snapshot()
	inPK.PK = domain.PKInfo{
		State:       domain.PKStateInPK,
		RemoteRoom:  domain.RemoteRoom{RoomID: "R2", Owner: user("rival", remoteUID)},
		RelayConfig: relayTo("R2"),
		LocalRank:   2,
		RemoteRank:  4,
	}
	withSeat := snapshot()
	withSeat.CoVideoSeats = seat(domain.SeatTaken, &guest)

	tests := []struct {
		name   string
		userID string
		snap   domain.RoomSnapshot
		shell  []string
		media  []string
	}{
		{
			name:   "owner solo",
			userID: ownerID,
			snap:   snapshot(),
			shell:  []string{"layout:solo", "attach_local:main"},
			media:  []string{"broadcaster:true", "mute:audio=false,video=false"},
		},
		{
			name:   "owner calling",
			userID: ownerID,
			snap:   withSeat,
			shell:  []string{"layout:call", "attach_local:main", "attach_sink:call:201"},
			media:  []string{"broadcaster:true", "mute:audio=false,video=false"},
		},
		{
			name:   "owner in pk",
			userID: ownerID,
			snap:   inPK,
			shell:  []string{"layout:pk", "attach_local:pk_left", "attach_sink:pk_right:300", "scores:2-4"},
			media:  []string{"broadcaster:true", "mute:audio=false,video=false", "start_relay:R2"},
		},
		{
			name:   "audience watching a call",
			userID: "viewer",
			snap:   withSeat,
			shell:  []string{"layout:call_viewer", "attach_sink:main:100", "attach_sink:call:201"},
			media:  []string{"broadcaster:false", "mute:audio=true,video=true"},
		},
		{
			name:   "audience watching a pk",
			userID: "viewer",
			snap:   inPK,
			shell:  []string{"layout:pk", "attach_sink:pk_left:100", "attach_sink:pk_right:300", "scores:2-4"},
			media:  []string{"broadcaster:false", "mute:audio=true,video=true"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, tt.userID)
			h.post(RoomEntered{Snapshot: tt.snap})
			first := h.state()
			assert.Equal(t, tt.shell, h.shell.take())
			assert.Equal(t, tt.media, h.media.take())

			h.post(RoomEntered{Snapshot: tt.snap})
			second := h.state()
			assert.Empty(t, h.shell.take())
			assert.Empty(t, h.media.take())
			assert.Equal(t, first, second)
			assert.Empty(t, h.shell.problems())
		})
	}
}

func TestOwnerRoleSurvivesStaleSnapshot(t *testing.T) {
	h := newHarness(t, ownerID)
	h.enter(snapshot())

	stale := snapshot()
	stale.Owner = user("someone-else", 555)
	h.post(RoomEntered{Snapshot: stale})

	assert.Equal(t, domain.RoleOwner, h.state().Role)
}

func TestHostEntryTakesMuteFromSeat(t *testing.T) {
	me := user("viewer", 201)
	me.EnableVideo = false
	snap := snapshot()
	snap.CoVideoSeats = seat(domain.SeatTaken, &me)

	h := newHarness(t, "viewer")
	h.post(RoomEntered{Snapshot: snap})

	s := h.state()
	assert.Equal(t, domain.RoleHost, s.Role)
	assert.Equal(t, domain.MuteState{VideoMuted: true}, s.Mute)
	assert.Equal(t, domain.LayoutCall, s.Layout)
	assert.Equal(t, []string{"layout:call", "attach_local:call", "attach_sink:main:100"}, h.shell.take())
}

func TestSnapshotWithPKAndSeatKeepsPK(t *testing.T) {
	guest := user("guest", 201)
	snap := snapshot()
	snap.CoVideoSeats = seat(domain.SeatTaken, &guest)
	snap.PK = domain.PKInfo{
		State:       domain.PKStateInPK,
		RemoteRoom:  domain.RemoteRoom{RoomID: "R2"},
		RelayConfig: relayTo("R2"),
	}

	h := newHarness(t, ownerID)
	h.post(RoomEntered{Snapshot: snap})

	s := h.state()
	assert.Equal(t, PKActive, s.PK.Phase)
	assert.False(t, s.Call.Occupied)
	assert.Equal(t, domain.LayoutPK, s.Layout)
}

func TestOwnerSeatTakenAndReleased(t *testing.T) {
	h := newHarness(t, ownerID)
	h.enter(snapshot())

	h.post(taken(user("guest", 201)))
	s := h.state()
	assert.True(t, s.Call.Occupied)
	assert.Equal(t, "guest", s.Call.UserID)
	assert.Equal(t, 201, s.Call.UID)
	assert.Equal(t, domain.LayoutCall, s.Layout)
	assert.Equal(t, []string{"layout:call", "attach_sink:call:201"}, h.shell.take())
	assert.Empty(t, h.media.take())

	// Repeated push of the same occupant changes nothing.
	h.post(taken(user("guest", 201)))
	h.state()
	assert.Empty(t, h.shell.take())

	h.post(released())
	s = h.state()
	assert.False(t, s.Call.Occupied)
	assert.Equal(t, domain.LayoutSolo, s.Layout)
	assert.Equal(t, []string{"detach_sink:call:201", "layout:solo"}, h.shell.take())

	assert.Equal(t, []string{kafka.EventCallStarted, kafka.EventCallEnded}, h.events.types())
	assert.Empty(t, h.shell.problems())
}

func TestSeatPushesForOtherSeatsAreIgnored(t *testing.T) {
	h := newHarness(t, ownerID)
	h.enter(snapshot())

	guest := user("guest", 201)
	h.post(
		SeatStateChanged{Seats: []domain.SeatInfo{{Seat: domain.Seat{No: 2, State: domain.SeatTaken}, User: &guest}}},
		SeatStateChanged{},
	)
	s := h.state()
	assert.False(t, s.Call.Occupied)
	assert.Empty(t, h.shell.take())
}

func TestSeatTakenByAnotherUserWhileOccupiedIsIgnored(t *testing.T) {
	h := newHarness(t, ownerID)
	h.enter(snapshot())

	h.post(taken(user("guest", 201)), taken(user("intruder", 202)))
	s := h.state()
	assert.Equal(t, "guest", s.Call.UserID)
	assert.Equal(t, []string{"layout:call", "attach_sink:call:201"}, h.shell.take())
}

func TestHostViewAndRelease(t *testing.T) {
	h := newHarness(t, "viewer")
	h.enter(snapshot())

	h.post(taken(user("viewer", 201)))
	s := h.state()
	assert.Equal(t, domain.RoleHost, s.Role)
	assert.Equal(t, domain.MuteState{}, s.Mute)
	assert.Equal(t, []string{"layout:call", "attach_local:call"}, h.shell.take())
	assert.Equal(t, []string{"broadcaster:true", "mute:audio=false,video=false"}, h.media.take())

	h.post(released())
	s = h.state()
	assert.Equal(t, domain.RoleAudience, s.Role)
	assert.Equal(t, domain.FullyMuted, s.Mute)
	assert.Equal(t, []string{"detach_local", "layout:solo"}, h.shell.take())
	assert.Equal(t, []string{"broadcaster:false", "mute:audio=true,video=true"}, h.media.take())

	// Only the owner's session reports session events.
	assert.Empty(t, h.events.types())
}

func TestBystanderWatchesCall(t *testing.T) {
	h := newHarness(t, "viewer")
	h.enter(snapshot())

	h.post(taken(user("guest", 201)))
	s := h.state()
	assert.Equal(t, domain.LayoutCallViewer, s.Layout)
	assert.Equal(t, []string{"layout:call_viewer", "attach_sink:call:201"}, h.shell.take())
	assert.Empty(t, h.media.take())
}

func TestPKLifecycle(t *testing.T) {
	h := newHarness(t, ownerID)
	h.enter(snapshot())

	h.post(pkStart("R2", 1, 2))
	s := h.state()
	assert.Equal(t, PKActive, s.PK.Phase)
	assert.Equal(t, "R2", s.PK.RemoteRoomID)
	assert.Equal(t, domain.LayoutPK, s.Layout)
	assert.Equal(t, []string{
		"detach_local", "layout:pk", "attach_local:pk_left", "attach_sink:pk_right:300", "scores:1-2",
	}, h.shell.take())
	assert.Equal(t, []string{"start_relay:R2"}, h.media.take())

	h.post(pkRank(3, 5), pkRank(3, 5))
	s = h.state()
	assert.Equal(t, 3, s.PK.LocalScore)
	assert.Equal(t, 5, s.PK.RemoteScore)
	assert.Equal(t, []string{"scores:3-5"}, h.shell.take())

	h.post(ToggleAudio{})
	h.state()
	assert.Equal(t, []string{"mute:audio=true,video=false"}, h.media.take())

	h.post(pkEnd(domain.PKResultWin))
	s = h.state()
	assert.Equal(t, PKEnding, s.PK.Phase)
	require.NotNil(t, s.PK.Result)
	assert.Equal(t, domain.PKResultWin, *s.PK.Result)
	assert.Equal(t, []string{"result:win", "notice:PK ended"}, h.shell.take())

	tasks := h.sched.all()
	require.Len(t, tasks, 1)
	assert.Equal(t, DefaultPKResultDelay, tasks[0].delay)

	// Scores arriving while the result shows are dropped.
	h.post(pkRank(9, 9))
	h.state()
	assert.Empty(t, h.shell.take())

	require.Equal(t, 1, h.sched.fire())
	s = h.state()
	assert.Equal(t, PKInactive, s.PK.Phase)
	assert.Nil(t, s.PK.Result)
	assert.Equal(t, domain.LayoutSolo, s.Layout)
	assert.Equal(t, domain.MuteState{}, s.Mute, "pre-PK mute restored")
	assert.Equal(t, []string{
		"clear_result", "detach_local", "detach_sink:pk_right:300", "layout:solo", "attach_local:main",
	}, h.shell.take())
	assert.Equal(t, []string{"stop_relay", "mute:audio=false,video=false"}, h.media.take())

	assert.Equal(t, []string{kafka.EventPKStarted, kafka.EventPKEnded}, h.events.types())
	assert.Empty(t, h.shell.problems())
}

func TestAudiencePKView(t *testing.T) {
	h := newHarness(t, "viewer")
	h.enter(snapshot())

	h.post(pkStart("R2", 1, 2))
	h.state()
	assert.Equal(t, []string{
		"detach_sink:main:100", "layout:pk", "attach_sink:pk_left:100", "attach_sink:pk_right:300", "scores:1-2",
	}, h.shell.take())
	assert.Empty(t, h.media.take(), "audience never relays")
}

func TestPKStartRefusedWhileCalling(t *testing.T) {
	h := newHarness(t, ownerID)
	h.enter(snapshot())
	h.post(taken(user("guest", 201)))
	h.reset()

	h.post(pkStart("R2", 0, 0))
	s := h.state()
	assert.Equal(t, PKInactive, s.PK.Phase)
	assert.True(t, s.Call.Occupied)
	assert.Equal(t, []string{"notice:" + ErrCallActive.Error()}, h.shell.take())
	assert.Empty(t, h.media.take())
}

func TestInvitePKRefusedWhileCalling(t *testing.T) {
	h := newHarness(t, ownerID)
	h.enter(snapshot())
	h.post(taken(user("guest", 201)))
	h.reset()

	h.post(InvitePK{RoomID: "R2"})
	s := h.state()
	assert.Equal(t, PKInactive, s.PK.Phase)
	assert.Equal(t, []string{"notice:" + ErrCallActive.Error()}, h.shell.take())
	assert.Empty(t, h.transport.pkRequests())
}

func TestSeatTakenDuringPKIsRefused(t *testing.T) {
	h := newHarness(t, ownerID)
	h.enter(snapshot())
	h.post(pkStart("R2", 0, 0))
	h.reset()

	h.post(taken(user("guest", 201)))
	s := h.state()
	assert.False(t, s.Call.Occupied)
	assert.Equal(t, PKActive, s.PK.Phase)
	assert.Equal(t, []string{"notice:" + ErrPKActive.Error()}, h.shell.take())
}

func TestRequestCoHostRefusedDuringPK(t *testing.T) {
	h := newHarness(t, "viewer")
	h.enter(snapshot())
	h.post(pkStart("R2", 0, 0))
	h.reset()

	h.post(RequestCoHost{})
	h.state()
	assert.Equal(t, []string{"notice:" + ErrPKActive.Error()}, h.shell.take())
	assert.Empty(t, h.transport.seatRequests())
}

func TestDeferredPKStartReplaysAfterReversion(t *testing.T) {
	h := newHarness(t, ownerID)
	h.enter(snapshot())

	h.post(pkStart("R2", 1, 1), pkEnd(domain.PKResultLose), pkStart("R3", 4, 4))
	s := h.state()
	assert.Equal(t, PKEnding, s.PK.Phase)
	assert.True(t, s.DeferredPKStart)

	h.post(pkRank(6, 7))
	h.state()

	require.Equal(t, 1, h.sched.fire())
	s = h.state()
	assert.False(t, s.DeferredPKStart)
	assert.Equal(t, PKActive, s.PK.Phase)
	assert.Equal(t, "R3", s.PK.RemoteRoomID)
	assert.Equal(t, 6, s.PK.LocalScore)
	assert.Equal(t, 7, s.PK.RemoteScore)
	assert.Equal(t, domain.LayoutPK, s.Layout)

	media := h.media.take()
	assert.Equal(t, []string{"start_relay:R2", "stop_relay", "start_relay:R3"}, media)
	assert.Empty(t, h.shell.problems())
}

func TestPKEndDiscardsDeferredStart(t *testing.T) {
	h := newHarness(t, ownerID)
	h.enter(snapshot())

	h.post(pkStart("R2", 1, 1), pkEnd(domain.PKResultDraw), pkStart("R3", 0, 0), pkEnd(domain.PKResultWin))
	s := h.state()
	assert.False(t, s.DeferredPKStart)
	require.NotNil(t, s.PK.Result)
	assert.Equal(t, domain.PKResultDraw, *s.PK.Result)

	require.Equal(t, 1, h.sched.fire())
	s = h.state()
	assert.Equal(t, PKInactive, s.PK.Phase)
	assert.Equal(t, domain.LayoutSolo, s.Layout)
}

func TestStaleRevertIsIgnored(t *testing.T) {
	h := newHarness(t, ownerID)
	h.enter(snapshot())
	h.post(pkStart("R2", 0, 0), pkEnd(domain.PKResultWin))
	h.state()

	h.post(pkRevert{gen: 999})
	assert.Equal(t, PKEnding, h.state().PK.Phase)
}

func TestLeaveCancelsPendingReversion(t *testing.T) {
	h := newHarness(t, ownerID)
	h.enter(snapshot())
	h.post(pkStart("R2", 0, 0), pkEnd(domain.PKResultWin))
	h.state()

	h.post(Leave{})
	h.waitClosed()

	tasks := h.sched.all()
	require.Len(t, tasks, 1)
	assert.True(t, tasks[0].stopped)
	assert.Equal(t, 0, h.sched.fire())

	local, sinks := h.shell.live()
	assert.False(t, local)
	assert.Zero(t, sinks)
	assert.Contains(t, h.media.take(), "stop_relay")
	assert.False(t, h.c.Post(ToggleAudio{}))
	assert.Empty(t, h.shell.problems())
}

func TestCallAndPKNeverOverlap(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	guest := user("guest", 201)

	h := newHarness(t, ownerID)
	h.enter(snapshot())

	steps := []func(){
		func() { h.post(taken(guest)) },
		func() { h.post(released()) },
		func() { h.post(pkStart("R2", rng.Intn(10), rng.Intn(10))) },
		func() { h.post(pkRank(rng.Intn(10), rng.Intn(10))) },
		func() { h.post(pkEnd(domain.PKResult(rng.Intn(3)))) },
		func() { h.sched.fire() },
		func() { h.post(InvitePK{RoomID: "R2"}) },
		func() { h.post(PKInvitationRejected{Peer: domain.PKPeerPayload{PKRoomID: "R2"}}) },
		func() { h.post(InviteCoHost{UserID: "guest", UserName: "g"}) },
		func() { h.post(ToggleVideo{}) },
	}

	for i := 0; i < 500; i++ {
		steps[rng.Intn(len(steps))]()
		s := h.state()
		require.False(t, s.Call.Occupied && s.PK.Active(), "call and pk both active at step %d", i)
		local, sinks := h.shell.live()
		require.True(t, local, "owner always publishes")
		require.LessOrEqual(t, sinks, 2)
	}
	assert.Empty(t, h.shell.problems())
}

func TestAudienceAcceptsInvitation(t *testing.T) {
	h := newHarness(t, "viewer")
	h.enter(snapshot())

	h.post(SeatInvited{Peer: domain.SeatPeerPayload{UserID: ownerID, UserName: "Olivia", SeatNo: 1}})
	s := h.state()
	require.Len(t, s.Pending, 1)
	assert.Equal(t, PendingInvitedByOwner, s.Pending[0].Kind)
	assert.Equal(t, []string{"modal:Co-host invitation"}, h.shell.take())

	h.shell.lastModal(t).accept()
	s = h.state()
	assert.Empty(t, s.Pending)
	assert.Equal(t, domain.RoleHost, s.Role)
	assert.Zero(t, s.Call.UID)
	assert.Equal(t, []string{"layout:call", "attach_local:call"}, h.shell.take())

	reqs := h.transport.seatRequests()
	require.Len(t, reqs, 1)
	assert.Equal(t, domain.SeatAudienceAccept, reqs[0].Type)
	assert.Equal(t, ownerID, reqs[0].UserID)
	assert.Equal(t, "tok", reqs[0].Token)

	// The echo names our stream id; nothing on screen changes for the host.
	h.post(taken(user("viewer", 201)))
	s = h.state()
	assert.Equal(t, 201, s.Call.UID)
	assert.Empty(t, h.shell.take())
}

func TestAudienceRejectsInvitation(t *testing.T) {
	h := newHarness(t, "viewer")
	h.enter(snapshot())

	h.post(SeatInvited{Peer: domain.SeatPeerPayload{UserID: ownerID, UserName: "Olivia", SeatNo: 1}})
	h.state()
	h.shell.lastModal(t).reject()

	s := h.state()
	assert.Empty(t, s.Pending)
	assert.Equal(t, domain.RoleAudience, s.Role)
	reqs := h.transport.seatRequests()
	require.Len(t, reqs, 1)
	assert.Equal(t, domain.SeatAudienceReject, reqs[0].Type)
}

func TestOwnerAcceptsApplication(t *testing.T) {
	h := newHarness(t, ownerID)
	h.enter(snapshot())

	h.post(SeatApplied{Peer: domain.SeatPeerPayload{UserID: "guest", UserName: "Gus", SeatNo: 1}})
	h.state()
	assert.Equal(t, []string{"modal:Co-host application"}, h.shell.take())

	h.shell.lastModal(t).accept()
	s := h.state()
	assert.True(t, s.Call.Occupied)
	assert.Equal(t, "guest", s.Call.UserID)
	assert.Zero(t, s.Call.UID)
	assert.Equal(t, []string{"layout:call"}, h.shell.take(), "no sink until the stream id is known")

	h.post(taken(user("guest", 201)))
	h.state()
	assert.Equal(t, []string{"attach_sink:call:201"}, h.shell.take())

	reqs := h.transport.seatRequests()
	require.Len(t, reqs, 1)
	assert.Equal(t, domain.SeatOwnerAccept, reqs[0].Type)
	assert.Equal(t, "guest", reqs[0].UserID)
	assert.Equal(t, []string{kafka.EventCallStarted}, h.events.types())
}

func TestAcceptApplyRefusedOnceSeatTaken(t *testing.T) {
	h := newHarness(t, ownerID)
	h.enter(snapshot())

	h.post(
		SeatApplied{Peer: domain.SeatPeerPayload{UserID: "late", UserName: "Late", SeatNo: 1}},
		taken(user("guest", 201)),
	)
	h.state()
	h.shell.lastModal(t).accept()
	s := h.state()
	assert.Equal(t, "guest", s.Call.UserID)

	reqs := h.transport.seatRequests()
	require.Len(t, reqs, 1)
	assert.Equal(t, domain.SeatOwnerReject, reqs[0].Type)
	assert.Equal(t, "late", reqs[0].UserID)
}

func TestAudienceApplicationRejected(t *testing.T) {
	h := newHarness(t, "viewer")
	h.enter(snapshot())

	h.post(RequestCoHost{})
	h.state()
	assert.Equal(t, []string{"modal:Go on seat"}, h.shell.take())

	h.shell.lastModal(t).accept()
	s := h.state()
	require.Len(t, s.Pending, 1)
	assert.Equal(t, PendingAudienceApply, s.Pending[0].Kind)

	reqs := h.transport.seatRequests()
	require.Len(t, reqs, 1)
	assert.Equal(t, domain.SeatAudienceApply, reqs[0].Type)
	assert.Equal(t, ownerID, reqs[0].UserID)

	h.post(SeatApplicationRejected{Peer: domain.SeatPeerPayload{UserID: ownerID, UserName: "Olivia", SeatNo: 1}})
	s = h.state()
	assert.Empty(t, s.Pending)
	assert.Equal(t, []string{"notice:Olivia rejected your application"}, h.shell.take())
}

func TestOwnerCannotApply(t *testing.T) {
	h := newHarness(t, ownerID)
	h.enter(snapshot())

	h.post(RequestCoHost{})
	h.state()
	assert.Equal(t, []string{"notice:" + ErrIsOwner.Error()}, h.shell.take())
}

func TestPKInvitationAccepted(t *testing.T) {
	h := newHarness(t, ownerID)
	h.enter(snapshot())

	h.post(PKInvitationReceived{Peer: domain.PKPeerPayload{UserID: "rival", UserName: "Rita", PKRoomID: "R2"}})
	s := h.state()
	assert.Equal(t, PKInvited, s.PK.Phase)
	assert.Equal(t, []string{"modal:PK invitation"}, h.shell.take())

	h.shell.lastModal(t).accept()
	s = h.state()
	assert.Equal(t, PKAccepted, s.PK.Phase)

	reqs := h.transport.pkRequests()
	require.Len(t, reqs, 1)
	assert.Equal(t, domain.PKAccept, reqs[0].Type)
	assert.Equal(t, "R2", reqs[0].TargetRoomID)

	// Accepted is already busy: no co-host invitations.
	h.post(InviteCoHost{UserID: "guest"})
	h.state()
	assert.Contains(t, h.shell.take(), "notice:"+ErrPKActive.Error())
}

func TestPKInvitationRejected(t *testing.T) {
	h := newHarness(t, ownerID)
	h.enter(snapshot())

	h.post(PKInvitationReceived{Peer: domain.PKPeerPayload{UserID: "rival", PKRoomID: "R2"}})
	h.state()
	h.shell.lastModal(t).reject()

	assert.Equal(t, PKInactive, h.state().PK.Phase)
	reqs := h.transport.pkRequests()
	require.Len(t, reqs, 1)
	assert.Equal(t, domain.PKReject, reqs[0].Type)
}

func TestPKInvitationAutoRejectedWhileCalling(t *testing.T) {
	h := newHarness(t, ownerID)
	h.enter(snapshot())
	h.post(taken(user("guest", 201)))
	h.reset()

	h.post(PKInvitationReceived{Peer: domain.PKPeerPayload{UserID: "rival", PKRoomID: "R2"}})
	s := h.state()
	assert.Equal(t, PKInactive, s.PK.Phase)
	assert.Equal(t, []string{"notice:" + ErrCallActive.Error()}, h.shell.take())

	reqs := h.transport.pkRequests()
	require.Len(t, reqs, 1)
	assert.Equal(t, domain.PKReject, reqs[0].Type)
}

func TestOutgoingPKInvitation(t *testing.T) {
	h := newHarness(t, ownerID)
	h.enter(snapshot())

	h.post(InvitePK{RoomID: "R2"})
	assert.Equal(t, PKInviting, h.state().PK.Phase)

	// R2 never answers; inviting R3 replaces it.
	h.post(InvitePK{RoomID: "R3"})
	s := h.state()
	assert.Equal(t, PKInviting, s.PK.Phase)
	assert.Equal(t, "R3", s.PK.RemoteRoomID)
	assert.Empty(t, h.shell.take())

	// A late answer to the replaced invitation is ignored.
	h.post(PKInvitationAccepted{Peer: domain.PKPeerPayload{UserName: "Rob", PKRoomID: "R2"}})
	s = h.state()
	assert.Equal(t, PKInviting, s.PK.Phase)
	assert.Equal(t, "R3", s.PK.RemoteRoomID)

	h.post(PKInvitationAccepted{Peer: domain.PKPeerPayload{UserName: "Rita", PKRoomID: "R3"}})
	s = h.state()
	assert.Equal(t, PKAccepted, s.PK.Phase)
	assert.Equal(t, "Rita", s.PK.RemoteOwnerName)

	h.post(InvitePK{RoomID: "R4"})
	h.state()
	assert.Contains(t, h.shell.take(), "notice:"+ErrAlreadyInPK.Error())

	reqs := h.transport.pkRequests()
	require.Len(t, reqs, 2)
	assert.Equal(t, domain.PKInvite, reqs[0].Type)
	assert.Equal(t, "R2", reqs[0].TargetRoomID)
	assert.Equal(t, domain.PKInvite, reqs[1].Type)
	assert.Equal(t, "R3", reqs[1].TargetRoomID)
}

func TestInviteRefusedWhileIncomingInvitationPending(t *testing.T) {
	h := newHarness(t, ownerID)
	h.enter(snapshot())

	h.post(PKInvitationReceived{Peer: domain.PKPeerPayload{UserID: "rival", UserName: "Rita", PKRoomID: "R2"}})
	h.state()
	h.shell.take()

	h.post(InvitePK{RoomID: "R3"})
	s := h.state()
	assert.Equal(t, PKInvited, s.PK.Phase)
	assert.Equal(t, "R2", s.PK.RemoteRoomID)
	assert.Equal(t, []string{"notice:" + ErrPKPending.Error()}, h.shell.take())
	assert.Empty(t, h.transport.pkRequests())
}

func TestSnapshotClearsUnansweredPKInvitation(t *testing.T) {
	h := newHarness(t, ownerID)
	h.enter(snapshot())

	h.post(InvitePK{RoomID: "R2"})
	assert.Equal(t, PKInviting, h.state().PK.Phase)

	h.enter(snapshot())
	assert.Equal(t, PKInactive, h.state().PK.Phase)

	h.post(InvitePK{RoomID: "R3"})
	s := h.state()
	assert.Equal(t, PKInviting, s.PK.Phase)
	assert.Equal(t, "R3", s.PK.RemoteRoomID)
	assert.Empty(t, h.shell.notices())
	require.Len(t, h.transport.pkRequests(), 2)
}

func TestSnapshotClearsAcceptedPKAndSeatIsTaken(t *testing.T) {
	h := newHarness(t, ownerID)
	h.enter(snapshot())

	h.post(InvitePK{RoomID: "R2"}, PKInvitationAccepted{Peer: domain.PKPeerPayload{UserName: "Rita", PKRoomID: "R2"}})
	assert.Equal(t, PKAccepted, h.state().PK.Phase)

	// The backend never started the PK.
	h.enter(snapshot())
	assert.Equal(t, PKInactive, h.state().PK.Phase)
	h.reset()

	h.post(taken(user("guest", 201)))
	s := h.state()
	assert.True(t, s.Call.Occupied)
	assert.Equal(t, "guest", s.Call.UserID)
	assert.Empty(t, h.shell.notices())

	h.post(InviteCoHost{UserID: "other"})
	h.state()
	assert.NotContains(t, h.shell.notices(), "notice:"+ErrPKActive.Error())
}

func TestSeatTakenWhilePKAcceptedDropsPK(t *testing.T) {
	h := newHarness(t, ownerID)
	h.enter(snapshot())

	h.post(InvitePK{RoomID: "R2"}, PKInvitationAccepted{Peer: domain.PKPeerPayload{UserName: "Rita", PKRoomID: "R2"}})
	h.state()
	h.reset()

	h.post(taken(user("guest", 201)))
	s := h.state()
	assert.True(t, s.Call.Occupied)
	assert.Equal(t, PKInactive, s.PK.Phase)
	assert.Empty(t, h.shell.notices())
}

func TestPKEndBeforeStartClearsAcceptedPK(t *testing.T) {
	h := newHarness(t, ownerID)
	h.enter(snapshot())

	h.post(InvitePK{RoomID: "R2"}, PKInvitationAccepted{Peer: domain.PKPeerPayload{PKRoomID: "R2"}})
	h.state()
	h.reset()

	h.post(pkEnd(domain.PKResultWin))
	s := h.state()
	assert.Equal(t, PKInactive, s.PK.Phase)
	assert.Empty(t, h.shell.take())
	assert.Empty(t, h.sched.all())
}

func TestPKStartForAnotherRoomWhileActive(t *testing.T) {
	var logs lockedBuffer
	h := newHarness(t, ownerID, withLogOutput(&logs))
	h.enter(snapshot())
	h.post(pkStart("R2", 1, 1))
	h.reset()

	h.post(pkStart("R3", 4, 6))
	s := h.state()
	assert.Equal(t, PKActive, s.PK.Phase)
	assert.Equal(t, "R2", s.PK.RemoteRoomID)
	assert.Equal(t, 4, s.PK.LocalScore)
	assert.Equal(t, 6, s.PK.RemoteScore)
	assert.Equal(t, []string{"scores:4-6"}, h.shell.take())
	assert.Empty(t, h.media.take())

	out := logs.String()
	assert.Contains(t, out, "pk start names another room while in PK")
	assert.Contains(t, out, `"incoming":"R3"`)
}

func TestPKRoomPicker(t *testing.T) {
	h := newHarness(t, ownerID)
	h.enter(snapshot())

	h.post(ListPKRooms{}, ListPKRooms{NextID: "r10"})
	h.state()
	reqs := h.transport.roomListRequests()
	require.Len(t, reqs, 2)
	assert.Equal(t, domain.PKRoomListRequest{RoomID: roomID, Count: gateway.PKRoomPageSize}, reqs[0])
	assert.Equal(t, "r10", reqs[1].NextID)

	h.post(PKRoomListReceived{PKRoomListPayload: domain.PKRoomListPayload{
		Rooms:  []domain.PKRoom{{RoomID: "R2"}, {RoomID: roomID}, {RoomID: "R3"}},
		NextID: "r20",
	}})
	h.state()
	assert.Equal(t, []string{"pk_rooms:R2,R3:r20"}, h.shell.take())

	// Picking a listed room invites it.
	h.post(InvitePK{RoomID: "R3"})
	assert.Equal(t, "R3", h.state().PK.RemoteRoomID)
}

func TestPKRoomPickerRefused(t *testing.T) {
	viewer := newHarness(t, "viewer")
	viewer.enter(snapshot())
	viewer.post(ListPKRooms{}, PKRoomListReceived{PKRoomListPayload: domain.PKRoomListPayload{Rooms: []domain.PKRoom{{RoomID: "R2"}}}})
	viewer.state()
	assert.Equal(t, []string{"notice:" + ErrNotOwner.Error()}, viewer.shell.take())
	assert.Empty(t, viewer.transport.roomListRequests())

	h := newHarness(t, ownerID)
	h.enter(snapshot())
	h.post(taken(user("guest", 201)))
	h.reset()
	h.post(ListPKRooms{})
	h.state()
	assert.Equal(t, []string{"notice:" + ErrCallActive.Error()}, h.shell.take())
	assert.Empty(t, h.transport.roomListRequests())
}

func TestAudienceCannotInvite(t *testing.T) {
	h := newHarness(t, "viewer")
	h.enter(snapshot())

	h.post(InvitePK{RoomID: "R2"}, InviteCoHost{UserID: "guest"}, ChangeProductState{ProductID: "p1", State: domain.ProductLaunched})
	h.state()
	assert.Equal(t, []string{
		"notice:" + ErrNotOwner.Error(),
		"notice:" + ErrNotOwner.Error(),
		"notice:" + ErrNotOwner.Error(),
	}, h.shell.take())
	assert.Empty(t, h.transport.pkRequests())
	assert.Empty(t, h.transport.seatRequests())
	assert.Empty(t, h.transport.productRequests())
}

func TestOwnerLeaveEndsCall(t *testing.T) {
	h := newHarness(t, ownerID)
	h.enter(snapshot())
	h.post(taken(user("guest", 201)), Leave{})
	h.waitClosed()

	reqs := h.transport.seatRequests()
	require.Len(t, reqs, 1)
	assert.Equal(t, domain.SeatOwnerForceLeave, reqs[0].Type)
	assert.Equal(t, "guest", reqs[0].UserID)
	assert.Equal(t, 1, reqs[0].SeatNo)

	local, sinks := h.shell.live()
	assert.False(t, local)
	assert.Zero(t, sinks)
}

func TestHostLeaveGivesUpSeat(t *testing.T) {
	h := newHarness(t, "viewer")
	h.enter(snapshot())
	h.post(taken(user("viewer", 201)), Leave{})
	h.waitClosed()

	reqs := h.transport.seatRequests()
	require.Len(t, reqs, 1)
	assert.Equal(t, domain.SeatHostLeave, reqs[0].Type)
	assert.Equal(t, ownerID, reqs[0].UserID)
}

func TestForceEndCallWaitsForEcho(t *testing.T) {
	h := newHarness(t, ownerID)
	h.enter(snapshot())
	h.post(taken(user("guest", 201)), ForceEndCall{})

	assert.True(t, h.state().Call.Occupied)
	h.post(released())
	assert.False(t, h.state().Call.Occupied)
}

func TestSeatRequestWithoutCredentialIsDropped(t *testing.T) {
	h := newHarness(t, ownerID, withToken(""))
	h.enter(snapshot())

	h.post(InviteCoHost{UserID: "guest", UserName: "Gus"})
	h.state()
	assert.Empty(t, h.transport.seatRequests())
}

func TestRoomClosedTearsDown(t *testing.T) {
	h := newHarness(t, "viewer")
	h.enter(snapshot())

	h.post(RoomClosed{Reason: "ended"})
	h.waitClosed()

	assert.Equal(t, []string{"notice:the live room has ended", "detach_sink:main:100"}, h.shell.take())
	assert.False(t, h.c.Post(RequestCoHost{}))

	_, err := h.c.Snapshot(context.Background())
	assert.ErrorIs(t, err, ErrClosed)
}

func TestToggleMutePersists(t *testing.T) {
	h := newHarness(t, ownerID)
	h.enter(snapshot())

	h.post(ToggleVideo{})
	h.state()
	assert.Equal(t, []string{"mute:audio=false,video=true"}, h.media.take())

	require.Eventually(t, func() bool { return len(h.prefs.all()) == 1 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, domain.MuteState{VideoMuted: true}, h.prefs.all()[0])
}

func TestMuteSavesLandInToggleOrder(t *testing.T) {
	h := newHarness(t, ownerID, withSlowFirstSave())
	h.enter(snapshot())

	h.post(ToggleAudio{})
	<-h.prefs.held

	// Queued behind the slow save; only the latest is written.
	h.post(ToggleAudio{}, ToggleVideo{})
	s := h.state()
	assert.Equal(t, domain.MuteState{VideoMuted: true}, s.Mute)

	close(h.prefs.hold)
	require.Eventually(t, func() bool { return len(h.prefs.all()) == 2 }, 2*time.Second, 5*time.Millisecond)

	saved := h.prefs.all()
	assert.Equal(t, domain.MuteState{AudioMuted: true}, saved[0])
	assert.Equal(t, s.Mute, saved[len(saved)-1])
}

func TestQueuedMuteSaveFlushedOnClose(t *testing.T) {
	h := newHarness(t, ownerID, withSlowFirstSave())
	h.enter(snapshot())

	h.post(ToggleAudio{})
	<-h.prefs.held
	h.post(ToggleVideo{}, Leave{})
	close(h.prefs.hold)
	h.waitClosed()

	// Done is closed only after the queued save is written.
	assert.Equal(t, []domain.MuteState{
		{AudioMuted: true},
		{AudioMuted: true, VideoMuted: true},
	}, h.prefs.all())
}

func TestAudienceToggleIsIgnored(t *testing.T) {
	h := newHarness(t, "viewer")
	h.enter(snapshot())

	h.post(ToggleAudio{})
	s := h.state()
	assert.Equal(t, domain.FullyMuted, s.Mute)
	assert.Empty(t, h.media.take())
	assert.Empty(t, h.prefs.all())
}

func TestProductCommands(t *testing.T) {
	h := newHarness(t, ownerID)
	h.enter(snapshot())

	h.post(
		ListProducts{},
		ChangeProductState{ProductID: "p1", State: domain.ProductLaunched},
		PurchaseProduct{ProductID: "p1", Quantity: 2},
		ProductListReceived{Products: []domain.Product{{ProductID: "p1"}, {ProductID: "p2"}}},
		ProductPurchaseResult{ProductPurchasePayload: domain.ProductPurchasePayload{ProductID: "p1", Count: 2, Success: true}},
	)
	h.state()

	reqs := h.transport.productRequests()
	require.Len(t, reqs, 3)
	assert.Equal(t, domain.ProductActionList, reqs[0].Action)
	assert.Equal(t, domain.ProductActionChangeState, reqs[1].Action)
	assert.Equal(t, domain.ProductLaunched, reqs[1].State)
	assert.Equal(t, domain.ProductActionPurchase, reqs[2].Action)
	assert.Equal(t, 2, reqs[2].Quantity)

	assert.Equal(t, []string{"products:2", "notice:purchase succeeded"}, h.shell.take())
}

func TestProductStateChangeRefreshesList(t *testing.T) {
	h := newHarness(t, "viewer")
	h.enter(snapshot())

	h.post(ProductStateChanged{ProductStatePayload: domain.ProductStatePayload{ProductID: "p1", State: domain.ProductLaunched}})
	h.state()
	assert.Equal(t, []string{"notice:a new product is on the shelf"}, h.shell.take())

	reqs := h.transport.productRequests()
	require.Len(t, reqs, 1)
	assert.Equal(t, domain.ProductActionList, reqs[0].Action)
}
