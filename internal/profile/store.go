// Package profile persists per-user preferences that outlive a session.
package profile

import (
	"context"
	"errors"
	"sync"

	"github.com/weiawesome/wes-io-live/liveroom/internal/domain"
)

// ErrNotFound is returned when the user has no stored preference.
var ErrNotFound = errors.New("profile not found")

// Store persists mute preferences.
type Store interface {
	LoadMute(ctx context.Context, userID string) (domain.MuteState, error)
	SaveMute(ctx context.Context, userID string, state domain.MuteState) error
}

// MemoryStore keeps preferences in process. Used when no Redis is configured.
type MemoryStore struct {
	mu    sync.RWMutex
	mutes map[string]domain.MuteState
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{mutes: make(map[string]domain.MuteState)}
}

func (s *MemoryStore) LoadMute(_ context.Context, userID string) (domain.MuteState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	state, ok := s.mutes[userID]
	if !ok {
		return domain.MuteState{}, ErrNotFound
	}
	return state, nil
}

func (s *MemoryStore) SaveMute(_ context.Context, userID string, state domain.MuteState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mutes[userID] = state
	return nil
}
