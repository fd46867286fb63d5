package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/weiawesome/wes-io-live/liveroom/internal/domain"
)

var (
	ErrRoomNotFound = errors.New("room not found")
	ErrRoomClosed   = errors.New("room closed")
)

// RoomClient fetches room-entry snapshots from the live-room backend.
// Concurrent fetches of the same room share one request.
type RoomClient struct {
	baseURL    string
	httpClient *http.Client
	group      singleflight.Group
}

// SnapshotResponse is the backend's response envelope.
type SnapshotResponse struct {
	Success bool                 `json:"success"`
	Data    *domain.RoomSnapshot `json:"data"`
	Error   string               `json:"error,omitempty"`
}

// NewRoomClient creates a room client.
func NewRoomClient(baseURL string, timeout time.Duration) *RoomClient {
	return &RoomClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// GetSnapshot returns the current snapshot of roomID.
func (c *RoomClient) GetSnapshot(ctx context.Context, roomID string) (*domain.RoomSnapshot, error) {
	v, err, _ := c.group.Do(roomID, func() (interface{}, error) {
		return c.fetch(ctx, roomID)
	})
	if err != nil {
		return nil, err
	}

	// Callers own their copy; seats are the only shared slice.
	snap := *v.(*domain.RoomSnapshot)
	snap.CoVideoSeats = append([]domain.SeatInfo(nil), snap.CoVideoSeats...)
	return &snap, nil
}

func (c *RoomClient) fetch(ctx context.Context, roomID string) (*domain.RoomSnapshot, error) {
	u := fmt.Sprintf("%s/api/v1/rooms/%s/snapshot", c.baseURL, url.PathEscape(roomID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch room snapshot: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, ErrRoomNotFound
	case http.StatusGone:
		return nil, ErrRoomClosed
	default:
		return nil, fmt.Errorf("room service returned status: %d", resp.StatusCode)
	}

	var body SnapshotResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if !body.Success || body.Data == nil {
		return nil, fmt.Errorf("room service error: %s", body.Error)
	}
	if body.Data.RoomID == "" {
		body.Data.RoomID = roomID
	}
	return body.Data, nil
}
