package profile

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/weiawesome/wes-io-live/liveroom/internal/config"
	"github.com/weiawesome/wes-io-live/liveroom/internal/domain"
)

const (
	fieldAudioMuted = "audio_muted"
	fieldVideoMuted = "video_muted"
	fieldUpdatedAt  = "updated_at"
)

// RedisStore keeps one hash per user.
type RedisStore struct {
	client    *redis.Client
	keyPrefix string
}

// NewRedisStore connects to the profile Redis.
func NewRedisStore(cfg config.ProfileConfig) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return NewRedisStoreFromClient(client, cfg.KeyPrefix), nil
}

// NewRedisStoreFromClient wraps an existing client.
func NewRedisStoreFromClient(client *redis.Client, keyPrefix string) *RedisStore {
	return &RedisStore{client: client, keyPrefix: keyPrefix}
}

func (s *RedisStore) key(userID string) string {
	return s.keyPrefix + userID
}

// LoadMute returns the stored mute state of userID.
func (s *RedisStore) LoadMute(ctx context.Context, userID string) (domain.MuteState, error) {
	values, err := s.client.HGetAll(ctx, s.key(userID)).Result()
	if err != nil {
		return domain.MuteState{}, fmt.Errorf("failed to load profile from redis: %w", err)
	}
	if len(values) == 0 {
		return domain.MuteState{}, ErrNotFound
	}

	audio, err := strconv.ParseBool(values[fieldAudioMuted])
	if err != nil {
		return domain.MuteState{}, fmt.Errorf("invalid %s: %w", fieldAudioMuted, err)
	}
	video, err := strconv.ParseBool(values[fieldVideoMuted])
	if err != nil {
		return domain.MuteState{}, fmt.Errorf("invalid %s: %w", fieldVideoMuted, err)
	}
	return domain.MuteState{AudioMuted: audio, VideoMuted: video}, nil
}

// SaveMute stores the mute state of userID.
func (s *RedisStore) SaveMute(ctx context.Context, userID string, state domain.MuteState) error {
	err := s.client.HSet(ctx, s.key(userID),
		fieldAudioMuted, strconv.FormatBool(state.AudioMuted),
		fieldVideoMuted, strconv.FormatBool(state.VideoMuted),
		fieldUpdatedAt, time.Now().Unix(),
	).Err()
	if err != nil {
		return fmt.Errorf("failed to save profile to redis: %w", err)
	}
	return nil
}

// Close closes the Redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
