package save

import (
	"time"

	"github.com/jwebster45206/station-engine/pkg/world"
)

// Player is the player's durable sub-state within a save.
type Player struct {
	RoomID    string          `json:"room_id"`
	Act       int             `json:"act"`
	Flags     map[string]bool `json:"flags,omitempty"`
	Inventory []string        `json:"inventory,omitempty"`
	Visited   map[string]bool `json:"visited,omitempty"`
}

// Save is the durable aggregate for one play session. Seq is the
// monotonic counter the optimistic-concurrency protocol checks; it is
// advanced only by the store, never by callers.
type Save struct {
	Slot      string                    `json:"slot"`
	Seq       uint64                    `json:"seq"`
	Player    Player                    `json:"player"`
	Rooms     map[string]*world.Overlay `json:"rooms,omitempty"`
	Log       []LogEntry                `json:"log,omitempty"`
	CreatedAt time.Time                 `json:"created_at"`
	UpdatedAt time.Time                 `json:"updated_at"`
}

// New returns the fixed initial state for a fresh slot: act 1, the
// starting room, empty flags and inventory, empty log, seq 0.
func New(slot string) *Save {
	now := time.Now().UTC()
	return &Save{
		Slot: slot,
		Seq:  0,
		Player: Player{
			RoomID:    world.StartingRoom,
			Act:       1,
			Flags:     make(map[string]bool),
			Inventory: make([]string, 0),
			Visited:   map[string]bool{world.StartingRoom: true},
		},
		Rooms:     make(map[string]*world.Overlay),
		Log:       make([]LogEntry, 0),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Summary is the listing view of a save.
type Summary struct {
	Slot      string    `json:"slot"`
	UpdatedAt time.Time `json:"updated_at"`
	Act       int       `json:"act"`
	RoomID    string    `json:"current_room_id"`
}

// Summarize builds the listing view.
func (s *Save) Summarize() Summary {
	return Summary{
		Slot:      s.Slot,
		UpdatedAt: s.UpdatedAt,
		Act:       s.Player.Act,
		RoomID:    s.Player.RoomID,
	}
}
