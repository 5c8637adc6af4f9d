package storage

import (
	"context"

	"github.com/jwebster45206/station-engine/pkg/save"
	"github.com/jwebster45206/station-engine/pkg/world"
)

// Storage defines a unified interface for all storage operations:
// save persistence (Redis) plus authored room content (filesystem).
type Storage interface {
	// Health and lifecycle
	Ping(ctx context.Context) error
	Close() error

	// LoadSave returns the save for a slot, atomically creating and
	// persisting the fixed initial state when the slot is unknown.
	LoadSave(ctx context.Context, slot string) (*save.Save, error)

	// ReplaceSave unconditionally overwrites a slot. Used for slot-wide
	// operations (new game, act transition); it does not participate in
	// the optimistic-concurrency check, and callers must not race
	// themselves.
	ReplaceSave(ctx context.Context, slot string, s *save.Save) error

	// PatchSave merges a diff into a slot. When p.Seq is set and does
	// not match the stored sequence number, the patch is rejected with
	// a *ConflictError and no field is merged. On success the sequence
	// number increments by exactly one and the new value is returned.
	// Unknown slots are initialized first, then patched.
	PatchSave(ctx context.Context, slot string, p *save.Patch) (uint64, error)

	// AppendLog is sugar for a patch containing only log entries.
	AppendLog(ctx context.Context, slot string, entries []save.LogEntry) (uint64, error)

	// GetLog returns the slot's event log, conjunctively filtered by
	// tags when any are supplied.
	GetLog(ctx context.Context, slot string, tags []string) ([]save.LogEntry, error)

	// ListSaves returns a summary of every known slot.
	ListSaves(ctx context.Context) ([]save.Summary, error)

	// DeleteSave removes a slot entirely. Returns ErrNotFound for an
	// unknown slot. The next load re-initializes from scratch.
	DeleteSave(ctx context.Context, slot string) error

	// Authored room content (filesystem-backed)
	GetRoom(ctx context.Context, id string) (*world.Room, error)
	ListRooms(ctx context.Context) ([]*world.Room, error)
}
