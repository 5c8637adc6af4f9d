package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/jwebster45206/station-engine/pkg/storage"
	"github.com/jwebster45206/station-engine/pkg/world"
)

type RoomHandler struct {
	storage storage.Storage
	logger  *slog.Logger
}

func NewRoomHandler(logger *slog.Logger, storage storage.Storage) *RoomHandler {
	return &RoomHandler{
		storage: storage,
		logger:  logger,
	}
}

// ServeHTTP handles HTTP requests for authored room content
// Routes:
// GET /v1/rooms        - List authored rooms
// GET /v1/rooms/{id}   - Read a single room
func (h *RoomHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		if err := json.NewEncoder(w).Encode(ErrorResponse{Error: "Method not allowed. Supported methods: GET"}); err != nil {
			h.logger.Error("Failed to encode error response", "error", err)
		}
		return
	}

	id := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/rooms"), "/")
	if id == "" {
		h.handleList(w, r)
		return
	}
	h.handleRead(w, r, id)
}

func (h *RoomHandler) handleList(w http.ResponseWriter, r *http.Request) {
	rooms, err := h.storage.ListRooms(r.Context())
	if err != nil {
		h.logger.Error("Failed to list rooms", "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		_ = json.NewEncoder(w).Encode(ErrorResponse{Error: "Failed to list rooms"})
		return
	}

	normalized := make([]*world.Room, 0, len(rooms))
	for _, raw := range rooms {
		room, err := world.Normalize(raw)
		if err != nil {
			h.logger.Warn("Skipping malformed room document", "error", err)
			continue
		}
		normalized = append(normalized, room)
	}

	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(normalized); err != nil {
		h.logger.Error("Failed to encode rooms response", "error", err)
	}
}

func (h *RoomHandler) handleRead(w http.ResponseWriter, r *http.Request, id string) {
	raw, err := h.storage.GetRoom(r.Context(), id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			w.WriteHeader(http.StatusNotFound)
			_ = json.NewEncoder(w).Encode(ErrorResponse{Error: "Room not found"})
			return
		}
		h.logger.Error("Failed to get room", "id", id, "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		_ = json.NewEncoder(w).Encode(ErrorResponse{Error: "Failed to get room"})
		return
	}

	room, err := world.Normalize(raw)
	if err != nil {
		h.logger.Error("Malformed room document", "id", id, "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		_ = json.NewEncoder(w).Encode(ErrorResponse{Error: "Malformed room document"})
		return
	}

	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(room); err != nil {
		h.logger.Error("Failed to encode room response", "error", err)
	}
}
