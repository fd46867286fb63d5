package coordinator

import "github.com/weiawesome/wes-io-live/liveroom/internal/domain"

// surfaceOrder fixes the order sinks are attached in.
var surfaceOrder = []domain.Surface{
	domain.SurfaceMain,
	domain.SurfaceCall,
	domain.SurfacePKLeft,
	domain.SurfacePKRight,
}

// view is what the presentation should show: one layout, at most one local
// capture and a remote participant per surface.
type view struct {
	layout      domain.Layout
	local       domain.Surface
	remote      map[domain.Surface]int
	broadcaster bool
}

type sink struct {
	participant int
	handle      domain.SinkHandle
}

// appliedMedia remembers what was last pushed to Media so repeated renders of
// the same state are silent.
type appliedMedia struct {
	broadcasterSet bool
	broadcaster    bool
	muteSet        bool
	mute           domain.MuteState
	relay          bool
	relayConfig    domain.RelayConfig
	scoresShown    bool
	scores         [2]int
}

// desiredView derives the view from role, call slot and PK session. PK wins
// over the call slot; the two are never both set.
func (c *Coordinator) desiredView() view {
	v := view{remote: make(map[domain.Surface]int)}
	ownerUID := c.roomOwner.UID

	setRemote := func(s domain.Surface, uid int) {
		if uid != 0 {
			v.remote[s] = uid
		}
	}

	switch {
	case c.pk.Active():
		v.layout = domain.LayoutPK
		if c.owner {
			v.local = domain.SurfacePKLeft
			v.broadcaster = true
		} else {
			setRemote(domain.SurfacePKLeft, ownerUID)
		}
		setRemote(domain.SurfacePKRight, c.pk.Relay.Remote.UID)

	case c.call.Occupied && c.owner:
		v.layout = domain.LayoutCall
		v.local = domain.SurfaceMain
		v.broadcaster = true
		setRemote(domain.SurfaceCall, c.call.UID)

	case c.isHost():
		v.layout = domain.LayoutCall
		v.local = domain.SurfaceCall
		v.broadcaster = true
		setRemote(domain.SurfaceMain, ownerUID)

	case c.call.Occupied:
		v.layout = domain.LayoutCallViewer
		setRemote(domain.SurfaceMain, ownerUID)
		setRemote(domain.SurfaceCall, c.call.UID)

	default:
		v.layout = domain.LayoutSolo
		if c.owner {
			v.local = domain.SurfaceMain
			v.broadcaster = true
		} else {
			setRemote(domain.SurfaceMain, ownerUID)
		}
	}
	return v
}

// render moves the presentation to the desired view. Everything no longer
// wanted is detached before anything new is attached.
func (c *Coordinator) render() {
	if c.closed || !c.entered {
		return
	}
	next := c.desiredView()
	shell := c.deps.Shell

	if c.view.local != "" && c.view.local != next.local {
		shell.DetachLocalCapture()
	}
	for _, s := range surfaceOrder {
		cur, ok := c.sinks[s]
		if !ok {
			continue
		}
		if uid, want := next.remote[s]; !want || uid != cur.participant {
			shell.DetachSink(cur.handle)
			delete(c.sinks, s)
		}
	}

	if next.layout != c.view.layout {
		shell.SetLayout(next.layout)
	}
	c.setBroadcaster(next.broadcaster)

	if next.local != "" && next.local != c.view.local {
		shell.AttachLocalCapture(next.local)
	}
	for _, s := range surfaceOrder {
		uid, want := next.remote[s]
		if !want {
			continue
		}
		if _, ok := c.sinks[s]; ok {
			continue
		}
		c.sinks[s] = sink{participant: uid, handle: shell.AttachRemoteSink(s, uid)}
	}

	c.view = next
	c.applyMute()
}

// detachAll releases every surface.
func (c *Coordinator) detachAll() {
	if c.view.local != "" {
		c.deps.Shell.DetachLocalCapture()
	}
	for _, s := range surfaceOrder {
		if cur, ok := c.sinks[s]; ok {
			c.deps.Shell.DetachSink(cur.handle)
			delete(c.sinks, s)
		}
	}
	c.view = view{}
}

func (c *Coordinator) setBroadcaster(enabled bool) {
	if c.applied.broadcasterSet && c.applied.broadcaster == enabled {
		return
	}
	c.applied.broadcasterSet = true
	c.applied.broadcaster = enabled
	c.deps.Media.SetBroadcaster(enabled)
}

// applyMute pushes the mute state to Media when it changed.
func (c *Coordinator) applyMute() {
	if c.applied.muteSet && c.applied.mute == c.mute {
		return
	}
	c.applied.muteSet = true
	c.applied.mute = c.mute
	c.deps.Media.MuteLocal(c.mute)
}

func (c *Coordinator) startRelay(cfg domain.RelayConfig) {
	if c.applied.relay && c.applied.relayConfig == cfg {
		return
	}
	if c.applied.relay {
		c.deps.Media.StopRelay()
	}
	c.applied.relay = true
	c.applied.relayConfig = cfg
	c.deps.Media.StartRelay(cfg)
}

func (c *Coordinator) stopRelay() {
	if !c.applied.relay {
		return
	}
	c.applied.relay = false
	c.deps.Media.StopRelay()
}

func (c *Coordinator) showScores() {
	scores := [2]int{c.pk.LocalScore, c.pk.RemoteScore}
	if c.applied.scoresShown && c.applied.scores == scores {
		return
	}
	c.applied.scoresShown = true
	c.applied.scores = scores
	c.deps.Shell.ShowPKScores(scores[0], scores[1])
}
