package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jwebster45206/station-engine/pkg/storage"
	"github.com/jwebster45206/station-engine/pkg/world"
)

func TestRoomHandler_List(t *testing.T) {
	mockStorage := storage.NewMockStorage()
	mockStorage.AddRoom(&world.Room{ID: "arrival_bay", Name: "Arrival Bay"})
	mockStorage.AddRoom(&world.Room{ID: "corridor_a", Name: "Corridor A"})
	handler := NewRoomHandler(testLogger(), mockStorage)

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/rooms", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d. Response body: %s", rr.Code, rr.Body.String())
	}

	var rooms []*world.Room
	if err := json.NewDecoder(rr.Body).Decode(&rooms); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if len(rooms) != 2 {
		t.Fatalf("Expected 2 rooms, got %d", len(rooms))
	}
	// Rooms are normalized on the way out.
	if rooms[0].Act != 1 {
		t.Errorf("Expected normalized act 1, got %d", rooms[0].Act)
	}
}

func TestRoomHandler_Read(t *testing.T) {
	mockStorage := storage.NewMockStorage()
	mockStorage.AddRoom(&world.Room{ID: "arrival_bay", Name: "Arrival Bay"})
	handler := NewRoomHandler(testLogger(), mockStorage)

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/rooms/arrival_bay", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rr.Code)
	}

	var room world.Room
	if err := json.NewDecoder(rr.Body).Decode(&room); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if room.ID != "arrival_bay" || room.Name != "Arrival Bay" {
		t.Errorf("Unexpected room: %+v", room)
	}
}

func TestRoomHandler_NotFound(t *testing.T) {
	handler := NewRoomHandler(testLogger(), storage.NewMockStorage())

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/rooms/void", nil))
	if rr.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", rr.Code)
	}
}

func TestRoomHandler_MethodNotAllowed(t *testing.T) {
	handler := NewRoomHandler(testLogger(), storage.NewMockStorage())

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/v1/rooms", nil))
	if rr.Code != http.StatusMethodNotAllowed {
		t.Errorf("Expected status 405, got %d", rr.Code)
	}
}
