package coordinator

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/weiawesome/wes-io-live/liveroom/internal/domain"
	"github.com/weiawesome/wes-io-live/liveroom/internal/gateway"
	"github.com/weiawesome/wes-io-live/liveroom/internal/kafka"
	pkglog "github.com/weiawesome/wes-io-live/liveroom/pkg/log"
)

type modalCall struct {
	title    string
	message  string
	onAccept func()
	onReject func()
}

func (m modalCall) accept() {
	if m.onAccept != nil {
		m.onAccept()
	}
}

func (m modalCall) reject() {
	if m.onReject != nil {
		m.onReject()
	}
}

// fakeShell records presentation calls and tracks live video resources.
type fakeShell struct {
	mu         sync.Mutex
	calls      []string
	modals     []modalCall
	local      bool
	sinks      map[domain.SinkHandle]string
	next       domain.SinkHandle
	maxSinks   int
	violations []string
}

func newFakeShell() *fakeShell {
	return &fakeShell{sinks: make(map[domain.SinkHandle]string)}
}

func (s *fakeShell) record(format string, args ...interface{}) {
	s.calls = append(s.calls, fmt.Sprintf(format, args...))
}

func (s *fakeShell) AttachLocalCapture(surface domain.Surface) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.local {
		s.violations = append(s.violations, "local capture attached twice")
	}
	s.local = true
	s.record("attach_local:%s", surface)
}

func (s *fakeShell) DetachLocalCapture() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.local {
		s.violations = append(s.violations, "local capture detached while not attached")
	}
	s.local = false
	s.record("detach_local")
}

func (s *fakeShell) AttachRemoteSink(surface domain.Surface, participantID int) domain.SinkHandle {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.next++
	name := fmt.Sprintf("%s:%d", surface, participantID)
	for _, existing := range s.sinks {
		if existing == name {
			s.violations = append(s.violations, "duplicate sink "+name)
		}
	}
	s.sinks[s.next] = name
	if len(s.sinks) > s.maxSinks {
		s.maxSinks = len(s.sinks)
	}
	s.record("attach_sink:%s", name)
	return s.next
}

func (s *fakeShell) DetachSink(handle domain.SinkHandle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	name, ok := s.sinks[handle]
	if !ok {
		s.violations = append(s.violations, fmt.Sprintf("unknown sink %d detached", handle))
		return
	}
	delete(s.sinks, handle)
	s.record("detach_sink:%s", name)
}

func (s *fakeShell) SetLayout(layout domain.Layout) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("layout:%s", layout)
}

func (s *fakeShell) ShowPKScores(local, remote int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("scores:%d-%d", local, remote)
}

func (s *fakeShell) ShowPKResult(result domain.PKResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("result:%s", result)
}

func (s *fakeShell) ClearPKResult() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("clear_result")
}

func (s *fakeShell) ShowModalChoice(title, message string, onAccept, onReject func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.modals = append(s.modals, modalCall{title: title, message: message, onAccept: onAccept, onReject: onReject})
	s.record("modal:%s", title)
}

func (s *fakeShell) ShowNotice(message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("notice:%s", message)
}

func (s *fakeShell) ShowProducts(products []domain.Product) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("products:%d", len(products))
}

func (s *fakeShell) ShowPKRooms(rooms []domain.PKRoom, nextID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(rooms))
	for _, r := range rooms {
		ids = append(ids, r.RoomID)
	}
	s.record("pk_rooms:%s:%s", strings.Join(ids, ","), nextID)
}

// take returns the calls recorded since the previous take.
func (s *fakeShell) take() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.calls
	s.calls = nil
	return out
}

// notices returns the notices recorded since the previous take and drops the
// other calls.
func (s *fakeShell) notices() []string {
	var out []string
	for _, c := range s.take() {
		if strings.HasPrefix(c, "notice:") {
			out = append(out, c)
		}
	}
	return out
}

func (s *fakeShell) lastModal(t *testing.T) modalCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	require.NotEmpty(t, s.modals, "no modal shown")
	return s.modals[len(s.modals)-1]
}

func (s *fakeShell) live() (local bool, sinks int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.local, len(s.sinks)
}

func (s *fakeShell) problems() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.violations...)
}

type fakeMedia struct {
	mu    sync.Mutex
	calls []string
}

func (m *fakeMedia) SetBroadcaster(enabled bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, fmt.Sprintf("broadcaster:%t", enabled))
}

func (m *fakeMedia) MuteLocal(state domain.MuteState) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, fmt.Sprintf("mute:audio=%t,video=%t", state.AudioMuted, state.VideoMuted))
}

func (m *fakeMedia) StartRelay(cfg domain.RelayConfig) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, "start_relay:"+cfg.Proxy.ChannelName)
}

func (m *fakeMedia) StopRelay() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, "stop_relay")
}

func (m *fakeMedia) take() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := m.calls
	m.calls = nil
	return out
}

type sentRequest struct {
	roomID  string
	kind    string
	payload interface{}
}

type recordingTransport struct {
	mu   sync.Mutex
	sent []sentRequest
}

func (r *recordingTransport) Send(_ context.Context, roomID, kind string, payload interface{}) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, sentRequest{roomID: roomID, kind: kind, payload: payload})
	return nil
}

func (r *recordingTransport) seatRequests() []domain.SeatInteractionRequest {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.SeatInteractionRequest
	for _, s := range r.sent {
		if req, ok := s.payload.(*domain.SeatInteractionRequest); ok {
			out = append(out, *req)
		}
	}
	return out
}

func (r *recordingTransport) pkRequests() []domain.PKInteractionRequest {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.PKInteractionRequest
	for _, s := range r.sent {
		if req, ok := s.payload.(*domain.PKInteractionRequest); ok {
			out = append(out, *req)
		}
	}
	return out
}

func (r *recordingTransport) roomListRequests() []domain.PKRoomListRequest {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.PKRoomListRequest
	for _, s := range r.sent {
		if req, ok := s.payload.(*domain.PKRoomListRequest); ok {
			out = append(out, *req)
		}
	}
	return out
}

func (r *recordingTransport) productRequests() []domain.ProductInteractionRequest {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.ProductInteractionRequest
	for _, s := range r.sent {
		if req, ok := s.payload.(*domain.ProductInteractionRequest); ok {
			out = append(out, *req)
		}
	}
	return out
}

type manualTask struct {
	mu      sync.Mutex
	delay   time.Duration
	f       func()
	stopped bool
	fired   bool
}

func (t *manualTask) Stop() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	pending := !t.stopped && !t.fired
	t.stopped = true
	return pending
}

// manualScheduler runs tasks only when the test fires them.
type manualScheduler struct {
	mu    sync.Mutex
	tasks []*manualTask
}

func (s *manualScheduler) AfterFunc(d time.Duration, f func()) Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := &manualTask{delay: d, f: f}
	s.tasks = append(s.tasks, t)
	return t
}

// fire runs every task that is neither stopped nor fired and returns how many
// ran.
func (s *manualScheduler) fire() int {
	s.mu.Lock()
	tasks := append([]*manualTask(nil), s.tasks...)
	s.mu.Unlock()

	n := 0
	for _, t := range tasks {
		t.mu.Lock()
		run := !t.stopped && !t.fired
		t.fired = t.fired || run
		t.mu.Unlock()
		if run {
			t.f()
			n++
		}
	}
	return n
}

func (s *manualScheduler) all() []*manualTask {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*manualTask(nil), s.tasks...)
}

type fakeProducer struct {
	mu     sync.Mutex
	events []kafka.SessionEvent
}

func (p *fakeProducer) ProduceSessionEvent(_ context.Context, ev *kafka.SessionEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, *ev)
	return nil
}

func (p *fakeProducer) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []string
	for _, ev := range p.events {
		out = append(out, ev.Type)
	}
	return out
}

// fakePrefs records every save in order. When hold is set the first save
// blocks until it is closed.
type fakePrefs struct {
	mu    sync.Mutex
	saved []domain.MuteState
	hold  chan struct{}
	held  chan struct{}
}

func (p *fakePrefs) SaveMute(ctx context.Context, _ string, state domain.MuteState) error {
	p.mu.Lock()
	first := len(p.saved) == 0
	p.saved = append(p.saved, state)
	hold := p.hold
	p.mu.Unlock()

	if first && hold != nil {
		close(p.held)
		select {
		case <-hold:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (p *fakePrefs) all() []domain.MuteState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]domain.MuteState(nil), p.saved...)
}

func withSlowFirstSave() harnessOption {
	return func(_ *Config, d *Deps, _ *string) {
		p := d.Prefs.(*fakePrefs)
		p.hold = make(chan struct{})
		p.held = make(chan struct{})
	}
}

// lockedBuffer is a log sink safe to read while the loop writes.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func withLogOutput(out *lockedBuffer) harnessOption {
	return func(_ *Config, d *Deps, _ *string) {
		l := pkglog.New(pkglog.Config{Level: "debug", Output: out})
		d.Logger = &l
	}
}

const (
	roomID    = "R1"
	ownerID   = "owner"
	ownerUID  = 100
	remoteUID = 300
)

type harness struct {
	t         *testing.T
	c         *Coordinator
	shell     *fakeShell
	media     *fakeMedia
	transport *recordingTransport
	sched     *manualScheduler
	events    *fakeProducer
	prefs     *fakePrefs
}

type harnessOption func(*Config, *Deps, *string)

func withToken(token string) harnessOption {
	return func(_ *Config, _ *Deps, tok *string) { *tok = token }
}

func newHarness(t *testing.T, userID string, opts ...harnessOption) *harness {
	t.Helper()

	h := &harness{
		t:         t,
		shell:     newFakeShell(),
		media:     &fakeMedia{},
		transport: &recordingTransport{},
		sched:     &manualScheduler{},
		events:    &fakeProducer{},
		prefs:     &fakePrefs{},
	}

	token := "tok"
	cfg := Config{SessionID: "s1", RoomID: roomID, UserID: userID}
	logger := pkglog.Nop()
	deps := Deps{
		Shell:     h.shell,
		Media:     h.media,
		PK:        gateway.NewPKGateway(h.transport),
		Products:  gateway.NewProductGateway(h.transport),
		Prefs:     h.prefs,
		Events:    h.events,
		Scheduler: h.sched,
		Logger:    &logger,
	}
	for _, opt := range opts {
		opt(&cfg, &deps, &token)
	}
	deps.Seats = gateway.NewSeatGateway(h.transport, gateway.CredentialFunc(func() string { return token }))

	h.c = New(cfg, deps)
	go h.c.Run()
	t.Cleanup(h.c.Close)
	return h
}

func (h *harness) post(msgs ...Message) {
	h.t.Helper()
	for _, m := range msgs {
		require.True(h.t, h.c.Post(m), "coordinator closed")
	}
}

// state waits for every posted message and returns the resulting state.
func (h *harness) state() State {
	h.t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	s, err := h.c.Snapshot(ctx)
	require.NoError(h.t, err)
	return s
}

// reset drops recorded shell and media calls.
func (h *harness) reset() {
	h.state()
	h.shell.take()
	h.media.take()
}

func (h *harness) waitClosed() {
	h.t.Helper()
	select {
	case <-h.c.Done():
	case <-time.After(2 * time.Second):
		h.t.Fatal("coordinator did not close")
	}
}

func owner() domain.User {
	return domain.User{UserID: ownerID, UserName: "Olivia", UID: ownerUID, EnableAudio: true, EnableVideo: true}
}

func user(id string, uid int) domain.User {
	return domain.User{UserID: id, UserName: "name-" + id, UID: uid, EnableAudio: true, EnableVideo: true}
}

func snapshot() domain.RoomSnapshot {
	return domain.RoomSnapshot{RoomID: roomID, Owner: owner()}
}

func seat(state domain.SeatState, u *domain.User) []domain.SeatInfo {
	return []domain.SeatInfo{{Seat: domain.Seat{No: 1, State: state}, User: u}}
}

func taken(u domain.User) SeatStateChanged {
	return SeatStateChanged{Seats: seat(domain.SeatTaken, &u)}
}

func released() SeatStateChanged {
	return SeatStateChanged{Seats: seat(domain.SeatEmpty, nil)}
}

func relayTo(remoteRoom string) domain.RelayConfig {
	return domain.RelayConfig{
		Local:  domain.RelayInfo{ChannelName: roomID, UID: ownerUID},
		Proxy:  domain.RelayInfo{ChannelName: remoteRoom, UID: ownerUID},
		Remote: domain.RelayInfo{UID: remoteUID},
	}
}

func pkStart(remoteRoom string, local, remote int) PKEvent {
	return PKEvent{PKEventPayload: domain.PKEventPayload{
		Event:       domain.PKEventStart,
		CountDown:   60000,
		RemoteRoom:  domain.RemoteRoom{RoomID: remoteRoom, Owner: user("rival", remoteUID)},
		RelayConfig: relayTo(remoteRoom),
		LocalRank:   local,
		RemoteRank:  remote,
	}}
}

func pkRank(local, remote int) PKEvent {
	return PKEvent{PKEventPayload: domain.PKEventPayload{Event: domain.PKEventRankChanged, LocalRank: local, RemoteRank: remote}}
}

func pkEnd(result domain.PKResult) PKEvent {
	return PKEvent{PKEventPayload: domain.PKEventPayload{Event: domain.PKEventEnd, Result: result}}
}
