package coordinator

import (
	"context"
	"sync"
	"time"

	"github.com/weiawesome/wes-io-live/liveroom/internal/domain"
	pkglog "github.com/weiawesome/wes-io-live/liveroom/pkg/log"
)

const defaultSaveTimeout = 5 * time.Second

// muteWriter persists mute preferences off the loop goroutine. Saves run one
// at a time in toggle order; a state queued behind a running save replaces any
// older queued state, so the last write always carries the latest toggle.
type muteWriter struct {
	saver   MuteSaver
	ctx     context.Context
	userID  string
	timeout time.Duration

	mu      sync.Mutex
	pending *domain.MuteState

	wake chan struct{}
	stop chan struct{}
	done chan struct{}
}

func newMuteWriter(ctx context.Context, saver MuteSaver, userID string) *muteWriter {
	w := &muteWriter{
		saver:   saver,
		ctx:     ctx,
		userID:  userID,
		timeout: defaultSaveTimeout,
		wake:    make(chan struct{}, 1),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	go w.run()
	return w
}

// Save queues state without blocking.
func (w *muteWriter) Save(state domain.MuteState) {
	w.mu.Lock()
	w.pending = &state
	w.mu.Unlock()

	select {
	case w.wake <- struct{}{}:
	default:
	}
}

// Close flushes the queued state and stops the worker.
func (w *muteWriter) Close() {
	select {
	case <-w.stop:
	default:
		close(w.stop)
	}
	<-w.done
}

func (w *muteWriter) run() {
	defer close(w.done)
	for {
		select {
		case <-w.wake:
			w.flush()
		case <-w.stop:
			w.flush()
			return
		}
	}
}

func (w *muteWriter) flush() {
	w.mu.Lock()
	state := w.pending
	w.pending = nil
	w.mu.Unlock()
	if state == nil {
		return
	}

	ctx, cancel := context.WithTimeout(w.ctx, w.timeout)
	defer cancel()
	if err := w.saver.SaveMute(ctx, w.userID, *state); err != nil {
		l := pkglog.Ctx(w.ctx)
		l.Warn().Err(err).Msg("failed to save mute preference")
	}
}
