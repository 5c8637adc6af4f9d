package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/jwebster45206/station-engine/pkg/dialog"
	"github.com/jwebster45206/station-engine/pkg/gm"
	"github.com/jwebster45206/station-engine/pkg/save"
	"github.com/jwebster45206/station-engine/pkg/storage"
	"github.com/jwebster45206/station-engine/pkg/world"
)

func testConnection(client *http.Client, baseURL string) bool {
	resp, err := client.Get(baseURL + "/health")
	if err != nil {
		return false
	}
	defer func() {
		_ = resp.Body.Close() // Ignore error in defer
	}()
	return resp.StatusCode == http.StatusOK
}

// apiStorage implements the Storage interface against the engine API, so
// the console runs the same session logic as any other embedder.
type apiStorage struct {
	client  *http.Client
	baseURL string
}

var _ storage.Storage = (*apiStorage)(nil)

func newAPIStorage(client *http.Client, baseURL string) *apiStorage {
	return &apiStorage{
		client:  client,
		baseURL: baseURL,
	}
}

func (a *apiStorage) Ping(ctx context.Context) error {
	if !testConnection(a.client, a.baseURL) {
		return fmt.Errorf("api is not reachable")
	}
	return nil
}

func (a *apiStorage) Close() error {
	return nil
}

func (a *apiStorage) LoadSave(ctx context.Context, slot string) (*save.Save, error) {
	var s save.Save
	if err := a.get(ctx, "/v1/saves/"+slot, &s); err != nil {
		return nil, fmt.Errorf("failed to load save: %w", err)
	}
	return &s, nil
}

func (a *apiStorage) ReplaceSave(ctx context.Context, slot string, s *save.Save) error {
	return a.do(ctx, http.MethodPut, "/v1/saves/"+slot, s, nil)
}

func (a *apiStorage) PatchSave(ctx context.Context, slot string, p *save.Patch) (uint64, error) {
	jsonData, err := json.Marshal(p)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal patch: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, a.baseURL+"/v1/saves/"+slot, bytes.NewBuffer(jsonData))
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("failed to send request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close() // Ignore error in defer
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode == http.StatusConflict {
		var conflictResp struct {
			ClientSeq uint64 `json:"client_seq"`
			ServerSeq uint64 `json:"server_seq"`
		}
		if err := json.Unmarshal(body, &conflictResp); err != nil {
			return 0, fmt.Errorf("API returned status 409: %s", string(body))
		}
		return 0, &storage.ConflictError{ClientSeq: conflictResp.ClientSeq, ServerSeq: conflictResp.ServerSeq}
	}
	if resp.StatusCode != http.StatusOK {
		return 0, apiError(resp.StatusCode, body)
	}

	var patchResp struct {
		Seq uint64 `json:"seq"`
	}
	if err := json.Unmarshal(body, &patchResp); err != nil {
		return 0, fmt.Errorf("failed to parse response: %w", err)
	}
	return patchResp.Seq, nil
}

func (a *apiStorage) AppendLog(ctx context.Context, slot string, entries []save.LogEntry) (uint64, error) {
	return a.PatchSave(ctx, slot, &save.Patch{AppendLog: entries})
}

func (a *apiStorage) GetLog(ctx context.Context, slot string, tags []string) ([]save.LogEntry, error) {
	path := "/v1/saves/" + slot + "/log"
	if len(tags) > 0 {
		path += "?tags="
		for i, tag := range tags {
			if i > 0 {
				path += ","
			}
			path += tag
		}
	}

	var entries []save.LogEntry
	if err := a.get(ctx, path, &entries); err != nil {
		return nil, fmt.Errorf("failed to get log: %w", err)
	}
	return entries, nil
}

func (a *apiStorage) ListSaves(ctx context.Context) ([]save.Summary, error) {
	var summaries []save.Summary
	if err := a.get(ctx, "/v1/saves", &summaries); err != nil {
		return nil, fmt.Errorf("failed to list saves: %w", err)
	}
	return summaries, nil
}

func (a *apiStorage) DeleteSave(ctx context.Context, slot string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, a.baseURL+"/v1/saves/"+slot, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close() // Ignore error in defer
	}()

	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("slot %q: %w", slot, storage.ErrNotFound)
	}
	if resp.StatusCode != http.StatusNoContent {
		body, _ := io.ReadAll(resp.Body)
		return apiError(resp.StatusCode, body)
	}
	return nil
}

func (a *apiStorage) GetRoom(ctx context.Context, id string) (*world.Room, error) {
	var room world.Room
	if err := a.get(ctx, "/v1/rooms/"+id, &room); err != nil {
		return nil, fmt.Errorf("failed to get room: %w", err)
	}
	return &room, nil
}

func (a *apiStorage) ListRooms(ctx context.Context) ([]*world.Room, error) {
	var rooms []*world.Room
	if err := a.get(ctx, "/v1/rooms", &rooms); err != nil {
		return nil, fmt.Errorf("failed to list rooms: %w", err)
	}
	return rooms, nil
}

func (a *apiStorage) get(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close() // Ignore error in defer
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode == http.StatusNotFound {
		return storage.ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return apiError(resp.StatusCode, body)
	}

	return json.Unmarshal(body, out)
}

func (a *apiStorage) do(ctx context.Context, method, path string, payload, out interface{}) error {
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, a.baseURL+path, bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close() // Ignore error in defer
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return apiError(resp.StatusCode, body)
	}
	if out != nil {
		return json.Unmarshal(body, out)
	}
	return nil
}

// enqueuePrefetch reports an unformed room to the engine API, which
// enqueues durable generation work for the worker.
func (a *apiStorage) enqueuePrefetch(ctx context.Context, slot, roomID, fromRoomID string) error {
	payload := map[string]string{
		"slot":         slot,
		"room_id":      roomID,
		"from_room_id": fromRoomID,
	}
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/v1/prefetch", bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close() // Ignore error in defer
	}()

	if resp.StatusCode != http.StatusAccepted {
		body, _ := io.ReadAll(resp.Body)
		return apiError(resp.StatusCode, body)
	}
	return nil
}

// apiGM routes generation through the engine API's durable queue. A
// prefetch enqueues work for the worker and reports "not yet available";
// once the worker has persisted the room, a later attempt finds it in
// the save and returns it. Dialog and station generation need a direct
// GM endpoint and are unavailable on this path.
type apiGM struct {
	store *apiStorage
	slot  string
}

var _ gm.Service = (*apiGM)(nil)

func newAPIGM(store *apiStorage, slot string) *apiGM {
	return &apiGM{
		store: store,
		slot:  slot,
	}
}

func (g *apiGM) PrefetchRoom(ctx context.Context, roomID, fromRoomID string, snap *gm.Snapshot) (*world.Room, error) {
	s, err := g.store.LoadSave(ctx, g.slot)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", gm.ErrUnavailable, err)
	}
	if overlay := s.Rooms[roomID]; overlay != nil && overlay.Replace != nil {
		return overlay.Replace, nil
	}

	if err := g.store.enqueuePrefetch(ctx, g.slot, roomID, fromRoomID); err != nil {
		return nil, fmt.Errorf("%w: %v", gm.ErrUnavailable, err)
	}
	return nil, nil
}

func (g *apiGM) GenerateDialogOptions(ctx context.Context, npcID string, snap *gm.Snapshot, history []string) ([]dialog.Option, error) {
	return nil, gm.ErrUnavailable
}

func (g *apiGM) GenerateStationResponse(ctx context.Context, snap *gm.Snapshot, playerMessage string) (*dialog.Node, error) {
	return nil, gm.ErrUnavailable
}

func apiError(status int, body []byte) error {
	var errorResp ErrorResponse
	if err := json.Unmarshal(body, &errorResp); err != nil || errorResp.Error == "" {
		return fmt.Errorf("API returned status %d: %s", status, string(body))
	}
	return fmt.Errorf("API error: %s", errorResp.Error)
}
