package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/jwebster45206/station-engine/internal/services/queue"
	queuePkg "github.com/jwebster45206/station-engine/pkg/queue"
)

// PrefetchRequest asks for speculative generation of an unformed room.
type PrefetchRequest struct {
	Slot       string `json:"slot"`
	RoomID     string `json:"room_id"`
	FromRoomID string `json:"from_room_id,omitempty"`
}

// PrefetchResponse acknowledges an accepted prefetch request. Enqueued
// is false when a request for the same slot and room is already in
// flight; either way the room will form (or not) asynchronously.
type PrefetchResponse struct {
	Enqueued  bool   `json:"enqueued"`
	RequestID string `json:"request_id,omitempty"`
}

// PrefetchHandler is the gameplay producer for the durable generation
// queue: clients report an unformed exit here and the worker picks the
// request up.
type PrefetchHandler struct {
	queue  *queue.PrefetchQueue
	logger *slog.Logger
}

func NewPrefetchHandler(logger *slog.Logger, q *queue.PrefetchQueue) *PrefetchHandler {
	return &PrefetchHandler{
		queue:  q,
		logger: logger,
	}
}

// ServeHTTP handles HTTP requests for room prefetching
// Routes:
// POST /v1/prefetch - Enqueue generation of an unformed room
func (h *PrefetchHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodPost {
		h.writeError(w, http.StatusMethodNotAllowed, "Method not allowed. Supported methods: POST")
		return
	}

	var body PrefetchRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid JSON in request body")
		return
	}
	if body.Slot == "" || body.RoomID == "" {
		h.writeError(w, http.StatusBadRequest, "slot and room_id are required")
		return
	}

	req := &queuePkg.Request{
		RequestID:  uuid.New().String(),
		Type:       queuePkg.RequestTypePrefetchRoom,
		Slot:       body.Slot,
		RoomID:     body.RoomID,
		FromRoomID: body.FromRoomID,
		EnqueuedAt: time.Now().UTC(),
	}

	enqueued, err := h.queue.Enqueue(r.Context(), req)
	if err != nil {
		h.logger.Error("Failed to enqueue prefetch request",
			"slot", body.Slot, "room_id", body.RoomID, "error", err)
		h.writeError(w, http.StatusInternalServerError, "Failed to enqueue prefetch request")
		return
	}

	resp := PrefetchResponse{Enqueued: enqueued}
	if enqueued {
		resp.RequestID = req.RequestID
		h.logger.Debug("Prefetch request enqueued",
			"slot", body.Slot, "room_id", body.RoomID, "request_id", req.RequestID)
	}
	h.writeJSON(w, http.StatusAccepted, resp)
}

func (h *PrefetchHandler) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("Failed to encode response", "error", err)
	}
}

func (h *PrefetchHandler) writeError(w http.ResponseWriter, status int, msg string) {
	h.writeJSON(w, status, ErrorResponse{Error: msg})
}
