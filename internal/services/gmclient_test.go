package services

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jwebster45206/station-engine/pkg/dialog"
	"github.com/jwebster45206/station-engine/pkg/gm"
	"github.com/jwebster45206/station-engine/pkg/world"
)

func TestHTTPGMService_PrefetchRoom(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/rooms/generate" {
			t.Errorf("Unexpected path %s", r.URL.Path)
		}

		var req PrefetchRoomRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("Failed to decode request: %v", err)
		}
		if req.RoomID != "cargo_hold" || req.FromRoomID != "arrival_bay" {
			t.Errorf("Unexpected request: %+v", req)
		}
		if req.Snapshot == nil || req.Snapshot.RoomID != "arrival_bay" {
			t.Errorf("Expected snapshot with current room, got %+v", req.Snapshot)
		}

		_ = json.NewEncoder(w).Encode(PrefetchRoomResponse{
			Ready: true,
			Room:  &world.Room{ID: "cargo_hold", Name: "Cargo Hold"},
		})
	}))
	defer srv.Close()

	svc := NewHTTPGMService(srv.URL)
	room, err := svc.PrefetchRoom(context.Background(), "cargo_hold", "arrival_bay", &gm.Snapshot{RoomID: "arrival_bay"})
	if err != nil {
		t.Fatalf("Failed to prefetch room: %v", err)
	}
	if room == nil || room.ID != "cargo_hold" {
		t.Errorf("Unexpected room: %+v", room)
	}
}

func TestHTTPGMService_PrefetchRoomNotReady(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(PrefetchRoomResponse{Ready: false})
	}))
	defer srv.Close()

	svc := NewHTTPGMService(srv.URL)
	room, err := svc.PrefetchRoom(context.Background(), "cargo_hold", "arrival_bay", &gm.Snapshot{})
	if err != nil {
		t.Fatalf("Expected no error for not-ready response, got %v", err)
	}
	if room != nil {
		t.Errorf("Expected nil room for not-ready response, got %+v", room)
	}
}

func TestHTTPGMService_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "internal error", http.StatusInternalServerError)
	}))
	defer srv.Close()

	svc := NewHTTPGMService(srv.URL)
	_, err := svc.PrefetchRoom(context.Background(), "cargo_hold", "arrival_bay", &gm.Snapshot{})
	if !errors.Is(err, gm.ErrUnavailable) {
		t.Errorf("Expected ErrUnavailable, got %v", err)
	}
}

func TestHTTPGMService_TransportError(t *testing.T) {
	// Server that is already closed
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	svc := NewHTTPGMService(srv.URL)
	_, err := svc.GenerateStationResponse(context.Background(), &gm.Snapshot{}, "hello?")
	if !errors.Is(err, gm.ErrUnavailable) {
		t.Errorf("Expected ErrUnavailable, got %v", err)
	}
}

func TestHTTPGMService_GenerateDialogOptions(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/dialog/options" {
			t.Errorf("Unexpected path %s", r.URL.Path)
		}
		_ = json.NewEncoder(w).Encode(DialogOptionsResponse{
			Options: []dialog.Option{{Text: "Ask about the blackout.", End: true}},
		})
	}))
	defer srv.Close()

	svc := NewHTTPGMService(srv.URL)
	opts, err := svc.GenerateDialogOptions(context.Background(), "warden", &gm.Snapshot{}, []string{"hello"})
	if err != nil {
		t.Fatalf("Failed to generate options: %v", err)
	}
	if len(opts) != 1 || opts[0].Text != "Ask about the blackout." {
		t.Errorf("Unexpected options: %+v", opts)
	}
}

func TestHTTPGMService_GenerateStationResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/station/respond" {
			t.Errorf("Unexpected path %s", r.URL.Path)
		}
		_ = json.NewEncoder(w).Encode(StationResponse{
			Node: &dialog.Node{ID: "resp", Text: "Acknowledged."},
		})
	}))
	defer srv.Close()

	svc := NewHTTPGMService(srv.URL)
	node, err := svc.GenerateStationResponse(context.Background(), &gm.Snapshot{}, "hello?")
	if err != nil {
		t.Fatalf("Failed to generate station response: %v", err)
	}
	if node == nil || node.Text != "Acknowledged." {
		t.Errorf("Unexpected node: %+v", node)
	}
}
