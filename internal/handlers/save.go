package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/jwebster45206/station-engine/pkg/save"
	"github.com/jwebster45206/station-engine/pkg/storage"
)

type ErrorResponse struct {
	Error string `json:"error"`
}

// ConflictResponse is returned for a rejected optimistic-concurrency
// patch, carrying both sequence numbers so the client can reload.
type ConflictResponse struct {
	Error     string `json:"error"`
	ClientSeq uint64 `json:"client_seq"`
	ServerSeq uint64 `json:"server_seq"`
}

// PatchResponse acknowledges an accepted patch with the new sequence
// number.
type PatchResponse struct {
	OK  bool   `json:"ok"`
	Seq uint64 `json:"seq"`
}

type SaveHandler struct {
	storage storage.Storage
	logger  *slog.Logger
}

func NewSaveHandler(logger *slog.Logger, storage storage.Storage) *SaveHandler {
	return &SaveHandler{
		storage: storage,
		logger:  logger,
	}
}

// ServeHTTP handles HTTP requests for save operations
// Routes:
// GET /v1/saves              - List save summaries
// GET /v1/saves/{slot}       - Read save (auto-creates unknown slots)
// PUT /v1/saves/{slot}       - Replace save unconditionally
// PATCH /v1/saves/{slot}     - Merge a diff, optionally sequence-checked
// DELETE /v1/saves/{slot}    - Delete save
// GET /v1/saves/{slot}/log   - Read event log, filtered by ?tags=a,b
func (h *SaveHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/saves"), "/")
	parts := []string{}
	if path != "" {
		parts = strings.Split(path, "/")
	}

	switch {
	case len(parts) == 0:
		if r.Method != http.MethodGet {
			h.writeError(w, http.StatusMethodNotAllowed, "Method not allowed. Supported methods: GET")
			return
		}
		h.handleList(w, r)

	case len(parts) == 1:
		slot := parts[0]
		switch r.Method {
		case http.MethodGet:
			h.handleRead(w, r, slot)
		case http.MethodPut:
			h.handleReplace(w, r, slot)
		case http.MethodPatch:
			h.handlePatch(w, r, slot)
		case http.MethodDelete:
			h.handleDelete(w, r, slot)
		default:
			h.writeError(w, http.StatusMethodNotAllowed, "Method not allowed. Supported methods: GET, PUT, PATCH, DELETE")
		}

	case len(parts) == 2 && parts[1] == "log":
		if r.Method != http.MethodGet {
			h.writeError(w, http.StatusMethodNotAllowed, "Method not allowed. Supported methods: GET")
			return
		}
		h.handleLog(w, r, parts[0])

	default:
		h.writeError(w, http.StatusNotFound, "Not found")
	}
}

func (h *SaveHandler) handleList(w http.ResponseWriter, r *http.Request) {
	summaries, err := h.storage.ListSaves(r.Context())
	if err != nil {
		h.logger.Error("Failed to list saves", "error", err)
		h.writeError(w, http.StatusInternalServerError, "Failed to list saves")
		return
	}
	h.writeJSON(w, http.StatusOK, summaries)
}

func (h *SaveHandler) handleRead(w http.ResponseWriter, r *http.Request, slot string) {
	s, err := h.storage.LoadSave(r.Context(), slot)
	if err != nil {
		h.logger.Error("Failed to load save", "slot", slot, "error", err)
		h.writeError(w, http.StatusInternalServerError, "Failed to load save")
		return
	}
	h.writeJSON(w, http.StatusOK, s)
}

func (h *SaveHandler) handleReplace(w http.ResponseWriter, r *http.Request, slot string) {
	var s save.Save
	if err := json.NewDecoder(r.Body).Decode(&s); err != nil {
		h.logger.Warn("Invalid save body", "slot", slot, "error", err)
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := h.storage.ReplaceSave(r.Context(), slot, &s); err != nil {
		h.logger.Error("Failed to replace save", "slot", slot, "error", err)
		h.writeError(w, http.StatusInternalServerError, "Failed to replace save")
		return
	}
	h.writeJSON(w, http.StatusOK, &s)
}

func (h *SaveHandler) handlePatch(w http.ResponseWriter, r *http.Request, slot string) {
	var p save.Patch
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		h.logger.Warn("Invalid patch body", "slot", slot, "error", err)
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	newSeq, err := h.storage.PatchSave(r.Context(), slot, &p)
	if err != nil {
		if conflict, ok := storage.IsConflict(err); ok {
			h.logger.Warn("Patch rejected on concurrency conflict",
				"slot", slot, "client_seq", conflict.ClientSeq, "server_seq", conflict.ServerSeq)
			h.writeJSON(w, http.StatusConflict, ConflictResponse{
				Error:     "concurrency_conflict",
				ClientSeq: conflict.ClientSeq,
				ServerSeq: conflict.ServerSeq,
			})
			return
		}
		h.logger.Error("Failed to patch save", "slot", slot, "error", err)
		h.writeError(w, http.StatusInternalServerError, "Failed to patch save")
		return
	}

	h.writeJSON(w, http.StatusOK, PatchResponse{OK: true, Seq: newSeq})
}

func (h *SaveHandler) handleDelete(w http.ResponseWriter, r *http.Request, slot string) {
	if err := h.storage.DeleteSave(r.Context(), slot); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			h.writeError(w, http.StatusNotFound, "Save not found")
			return
		}
		h.logger.Error("Failed to delete save", "slot", slot, "error", err)
		h.writeError(w, http.StatusInternalServerError, "Failed to delete save")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *SaveHandler) handleLog(w http.ResponseWriter, r *http.Request, slot string) {
	var tags []string
	if raw := r.URL.Query().Get("tags"); raw != "" {
		tags = strings.Split(raw, ",")
	}

	entries, err := h.storage.GetLog(r.Context(), slot, tags)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			h.writeError(w, http.StatusNotFound, "Save not found")
			return
		}
		h.logger.Error("Failed to get log", "slot", slot, "error", err)
		h.writeError(w, http.StatusInternalServerError, "Failed to get log")
		return
	}
	h.writeJSON(w, http.StatusOK, entries)
}

func (h *SaveHandler) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("Failed to encode response", "error", err)
	}
}

func (h *SaveHandler) writeError(w http.ResponseWriter, status int, msg string) {
	h.writeJSON(w, status, ErrorResponse{Error: msg})
}
