package gm

import (
	"context"
	"errors"

	"github.com/jwebster45206/station-engine/pkg/dialog"
	"github.com/jwebster45206/station-engine/pkg/world"
)

// SpeakerStation is the reserved speaker identity for station responses.
const SpeakerStation = "station"

// ErrUnavailable marks a GM call that failed or timed out. Calling flows
// proceed without the generated content; an unresolved neighboring room
// simply stays unformed.
var ErrUnavailable = errors.New("generator unavailable")

// Snapshot is the state view supplied with every GM call.
type Snapshot struct {
	RoomID    string             `json:"room_id"`
	RoomName  string             `json:"room_name"`
	Act       int                `json:"act"`
	Flags     map[string]bool    `json:"flags,omitempty"`
	Inventory []string           `json:"inventory,omitempty"`
	Rooms     []world.IndexEntry `json:"rooms,omitempty"`
}

// Service is the external content generator consumed by the engine.
// Every operation is asynchronous from the engine's point of view and
// returns data shaped like authored content. Provenance tags on returned
// content are stamped by the engine, never trusted from the service.
type Service interface {
	// PrefetchRoom speculatively generates the room with the given id,
	// reached from fromRoomID. A nil room with a nil error means "not
	// yet available".
	PrefetchRoom(ctx context.Context, roomID, fromRoomID string, snap *Snapshot) (*world.Room, error)

	// GenerateDialogOptions produces extra options for an NPC's entry
	// node, given recent dialog history.
	GenerateDialogOptions(ctx context.Context, npcID string, snap *Snapshot, history []string) ([]dialog.Option, error)

	// GenerateStationResponse produces a single node spoken by the
	// station itself in reply to a free-form player message.
	GenerateStationResponse(ctx context.Context, snap *Snapshot, playerMessage string) (*dialog.Node, error)
}
