package gateway

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/weiawesome/wes-io-live/liveroom/internal/domain"
	pkglog "github.com/weiawesome/wes-io-live/liveroom/pkg/log"
	"github.com/weiawesome/wes-io-live/liveroom/pkg/pubsub"
)

var (
	ErrTransportClosed = errors.New("transport closed")
	ErrQueueFull       = errors.New("transport queue full")
)

// Transport delivers typed requests to the live-room backend.
type Transport interface {
	Send(ctx context.Context, roomID, kind string, payload interface{}) error
}

// CredentialSource yields the current session credential. An empty string
// means no credential is available.
type CredentialSource interface {
	Token() string
}

// CredentialFunc adapts a function to CredentialSource.
type CredentialFunc func() string

// Token implements CredentialSource.
func (f CredentialFunc) Token() string { return f() }

const (
	defaultQueueSize      = 64
	defaultPublishTimeout = 5 * time.Second
)

// PubSubTransport publishes requests on the room's client-to-server channel.
// Send only enqueues; a single worker publishes in order so callers never
// wait on the broker.
type PubSubTransport struct {
	publisher pubsub.Publisher
	userID    string
	creds     CredentialSource
	timeout   time.Duration

	queue  chan outbound
	done   chan struct{}
	mu     sync.RWMutex
	closed bool
}

type outbound struct {
	ctx     context.Context
	channel string
	event   *pubsub.Event
}

// NewPubSubTransport creates a transport for one session and starts its
// publish worker.
func NewPubSubTransport(publisher pubsub.Publisher, userID string, creds CredentialSource) *PubSubTransport {
	t := &PubSubTransport{
		publisher: publisher,
		userID:    userID,
		creds:     creds,
		timeout:   defaultPublishTimeout,
		queue:     make(chan outbound, defaultQueueSize),
		done:      make(chan struct{}),
	}
	go t.run()
	return t
}

// Send stamps the session credential on payload and queues it for publishing.
func (t *PubSubTransport) Send(ctx context.Context, roomID, kind string, payload interface{}) error {
	envelope := &domain.RequestEnvelope{Data: payload}
	if t.creds != nil {
		envelope.Token = t.creds.Token()
	}

	event, err := pubsub.NewPeerEvent(kind, roomID, t.userID, envelope)
	if err != nil {
		return fmt.Errorf("failed to build %s request: %w", kind, err)
	}

	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.closed {
		return ErrTransportClosed
	}

	select {
	case t.queue <- outbound{ctx: ctx, channel: pubsub.ClientToServerChannel(roomID), event: event}:
		return nil
	default:
		return ErrQueueFull
	}
}

func (t *PubSubTransport) run() {
	defer close(t.done)
	for out := range t.queue {
		ctx, cancel := context.WithTimeout(context.Background(), t.timeout)
		err := t.publisher.Publish(ctx, out.channel, out.event)
		cancel()
		if err != nil {
			l := pkglog.Ctx(out.ctx)
			l.Error().Err(err).
				Str(pkglog.FieldRequest, out.event.Type).
				Str(pkglog.FieldRoomID, out.event.RoomID).
				Msg("failed to publish request")
		}
	}
}

// Close drains queued requests and stops the worker.
func (t *PubSubTransport) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	close(t.queue)
	t.mu.Unlock()

	<-t.done
	return nil
}
