package queue

import (
	"encoding/json"
	"time"
)

// RequestType identifies the type of request in the queue.
type RequestType string

const (
	// RequestTypePrefetchRoom asks the GM to generate a not-yet-formed
	// room ahead of the player's arrival.
	RequestTypePrefetchRoom RequestType = "prefetch_room"
)

// Request is one unit of GM work in the queue.
type Request struct {
	RequestID string      `json:"request_id"`
	Type      RequestType `json:"type"`
	Slot      string      `json:"slot"`

	// Prefetch-specific fields
	RoomID     string `json:"room_id,omitempty"`
	FromRoomID string `json:"from_room_id,omitempty"`

	EnqueuedAt time.Time `json:"enqueued_at"`
}

// ToJSON converts the request to JSON bytes for Redis.
func (r *Request) ToJSON() ([]byte, error) {
	return json.Marshal(r)
}

// FromJSON parses a request from JSON bytes.
func FromJSON(data []byte) (*Request, error) {
	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, err
	}
	return &req, nil
}
