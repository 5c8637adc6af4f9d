package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/jwebster45206/station-engine/pkg/dialog"
	"github.com/jwebster45206/station-engine/pkg/gm"
	"github.com/jwebster45206/station-engine/pkg/world"
)

const defaultGMTimeout = 60 * time.Second

// HTTPGMService implements gm.Service against a remote generator over
// HTTP. Every failure surfaces as gm.ErrUnavailable so callers degrade
// instead of propagating transport details.
type HTTPGMService struct {
	baseURL    string
	httpClient *http.Client
}

var _ gm.Service = (*HTTPGMService)(nil)

// NewHTTPGMService creates a generator client for the given base URL.
func NewHTTPGMService(baseURL string) *HTTPGMService {
	return &HTTPGMService{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: defaultGMTimeout,
		},
	}
}

// PrefetchRoomRequest is the wire request for speculative room generation.
type PrefetchRoomRequest struct {
	RoomID     string       `json:"room_id"`
	FromRoomID string       `json:"from_room_id"`
	Snapshot   *gm.Snapshot `json:"snapshot"`
}

// PrefetchRoomResponse carries the generated room. A null room with
// ready=false means generation has not finished yet.
type PrefetchRoomResponse struct {
	Ready bool        `json:"ready"`
	Room  *world.Room `json:"room,omitempty"`
}

// DialogOptionsRequest is the wire request for injected dialog options.
type DialogOptionsRequest struct {
	NPCID    string       `json:"npc_id"`
	Snapshot *gm.Snapshot `json:"snapshot"`
	History  []string     `json:"history,omitempty"`
}

type DialogOptionsResponse struct {
	Options []dialog.Option `json:"options"`
}

// StationRequest is the wire request for a free-form station reply.
type StationRequest struct {
	Message  string       `json:"message"`
	Snapshot *gm.Snapshot `json:"snapshot"`
}

type StationResponse struct {
	Node *dialog.Node `json:"node"`
}

func (s *HTTPGMService) PrefetchRoom(ctx context.Context, roomID, fromRoomID string, snap *gm.Snapshot) (*world.Room, error) {
	var resp PrefetchRoomResponse
	err := s.post(ctx, "/v1/rooms/generate", PrefetchRoomRequest{
		RoomID:     roomID,
		FromRoomID: fromRoomID,
		Snapshot:   snap,
	}, &resp)
	if err != nil {
		return nil, err
	}
	if !resp.Ready {
		return nil, nil
	}
	return resp.Room, nil
}

func (s *HTTPGMService) GenerateDialogOptions(ctx context.Context, npcID string, snap *gm.Snapshot, history []string) ([]dialog.Option, error) {
	var resp DialogOptionsResponse
	err := s.post(ctx, "/v1/dialog/options", DialogOptionsRequest{
		NPCID:    npcID,
		Snapshot: snap,
		History:  history,
	}, &resp)
	if err != nil {
		return nil, err
	}
	return resp.Options, nil
}

func (s *HTTPGMService) GenerateStationResponse(ctx context.Context, snap *gm.Snapshot, playerMessage string) (*dialog.Node, error) {
	var resp StationResponse
	err := s.post(ctx, "/v1/station/respond", StationRequest{
		Message:  playerMessage,
		Snapshot: snap,
	}, &resp)
	if err != nil {
		return nil, err
	}
	return resp.Node, nil
}

func (s *HTTPGMService) post(ctx context.Context, path string, payload interface{}, out interface{}) error {
	reqBody, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", s.baseURL+path, bytes.NewBuffer(reqBody))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", gm.ErrUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: failed to read response body: %v", gm.ErrUnavailable, err)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: status %d: %s", gm.ErrUnavailable, resp.StatusCode, string(body))
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%w: failed to parse response: %v", gm.ErrUnavailable, err)
	}
	return nil
}
