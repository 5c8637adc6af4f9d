package storage

import (
	"context"
	"errors"
	"testing"

	"github.com/jwebster45206/station-engine/pkg/save"
	"github.com/jwebster45206/station-engine/pkg/world"
)

func TestMockStorage_LoadAutoCreates(t *testing.T) {
	store := NewMockStorage()
	ctx := context.Background()

	s, err := store.LoadSave(ctx, "slot_9")
	if err != nil {
		t.Fatalf("Failed to load save: %v", err)
	}
	if s.Seq != 0 {
		t.Errorf("Expected seq 0, got %d", s.Seq)
	}
	if s.Player.RoomID != "arrival_bay" {
		t.Errorf("Expected arrival_bay, got %q", s.Player.RoomID)
	}
	if len(s.Log) != 0 {
		t.Errorf("Expected empty log, got %d entries", len(s.Log))
	}

	// A second load returns the persisted save unchanged.
	again, err := store.LoadSave(ctx, "slot_9")
	if err != nil {
		t.Fatalf("Failed to reload save: %v", err)
	}
	if again.Seq != 0 || again.Player.RoomID != "arrival_bay" {
		t.Errorf("Expected unchanged save on reload, got %+v", again.Player)
	}
}

func TestMockStorage_PatchConcurrency(t *testing.T) {
	store := NewMockStorage()
	ctx := context.Background()

	if _, err := store.LoadSave(ctx, "slot_1"); err != nil {
		t.Fatalf("Failed to load save: %v", err)
	}

	expected := uint64(0)
	newSeq, err := store.PatchSave(ctx, "slot_1", &save.Patch{
		Player: &save.PlayerPatch{Flags: map[string]bool{"a": true}},
		Seq:    &expected,
	})
	if err != nil {
		t.Fatalf("Expected first patch to succeed: %v", err)
	}
	if newSeq != 1 {
		t.Errorf("Expected seq 1, got %d", newSeq)
	}

	// Second patch against the stale sequence number must be rejected.
	stale := uint64(0)
	_, err = store.PatchSave(ctx, "slot_1", &save.Patch{
		Player: &save.PlayerPatch{Flags: map[string]bool{"b": true}},
		Seq:    &stale,
	})
	if err == nil {
		t.Fatal("Expected conflict for stale patch")
	}
	conflict, ok := IsConflict(err)
	if !ok {
		t.Fatalf("Expected ConflictError, got %T", err)
	}
	if conflict.ClientSeq != 0 || conflict.ServerSeq != 1 {
		t.Errorf("Expected client 0 / server 1, got %+v", conflict)
	}

	// The rejected patch must not have merged anything.
	s, err := store.LoadSave(ctx, "slot_1")
	if err != nil {
		t.Fatalf("Failed to load save: %v", err)
	}
	if s.Player.Flags["b"] {
		t.Error("Rejected patch leaked state")
	}
	if !s.Player.Flags["a"] {
		t.Error("Accepted patch missing state")
	}
}

func TestMockStorage_PatchWithoutSeqAlwaysMerges(t *testing.T) {
	store := NewMockStorage()
	ctx := context.Background()

	seq1, err := store.PatchSave(ctx, "slot_1", &save.Patch{
		Player: &save.PlayerPatch{Inventory: []string{"x"}},
	})
	if err != nil {
		t.Fatalf("Patch failed: %v", err)
	}
	seq2, err := store.PatchSave(ctx, "slot_1", &save.Patch{
		Player: &save.PlayerPatch{Inventory: []string{"x", "y"}},
	})
	if err != nil {
		t.Fatalf("Patch failed: %v", err)
	}
	if seq2 != seq1+1 {
		t.Errorf("Expected seq to increment by one, got %d then %d", seq1, seq2)
	}

	s, _ := store.LoadSave(ctx, "slot_1")
	if len(s.Player.Inventory) != 2 {
		t.Errorf("Expected inventory [x y], got %v", s.Player.Inventory)
	}
}

func TestMockStorage_DeleteThenReinitialize(t *testing.T) {
	store := NewMockStorage()
	ctx := context.Background()

	if _, err := store.PatchSave(ctx, "slot_1", &save.Patch{
		Player: &save.PlayerPatch{RoomID: "corridor_a"},
	}); err != nil {
		t.Fatalf("Patch failed: %v", err)
	}

	if err := store.DeleteSave(ctx, "slot_1"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if err := store.DeleteSave(ctx, "slot_1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound for double delete, got %v", err)
	}

	s, err := store.LoadSave(ctx, "slot_1")
	if err != nil {
		t.Fatalf("Load after delete failed: %v", err)
	}
	if s.Seq != 0 || s.Player.RoomID != "arrival_bay" {
		t.Errorf("Expected fresh save after delete, got seq=%d room=%q", s.Seq, s.Player.RoomID)
	}
}

func TestMockStorage_GetLogTagFilter(t *testing.T) {
	store := NewMockStorage()
	ctx := context.Background()

	entries := []save.LogEntry{
		save.NewLogEntry(save.EventGMRoomGenerated, 1, nil, "room:a", "gm_action"),
		save.NewLogEntry(save.EventRoomEntered, 1, nil, "room:a"),
	}
	if _, err := store.AppendLog(ctx, "slot_1", entries); err != nil {
		t.Fatalf("AppendLog failed: %v", err)
	}

	got, err := store.GetLog(ctx, "slot_1", []string{"room:a", "gm_action"})
	if err != nil {
		t.Fatalf("GetLog failed: %v", err)
	}
	if len(got) != 1 || got[0].Type != save.EventGMRoomGenerated {
		t.Errorf("Expected only the gm entry, got %v", got)
	}

	if _, err := store.GetLog(ctx, "unknown", nil); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound for unknown slot, got %v", err)
	}
}

func TestMockStorage_ReturnedStateDoesNotAliasStore(t *testing.T) {
	store := NewMockStorage()
	ctx := context.Background()

	entries := []save.LogEntry{
		save.NewLogEntry(save.EventRoomEntered, 1,
			map[string]interface{}{"room_id": "corridor_a"}, "room:corridor_a"),
	}
	if _, err := store.AppendLog(ctx, "slot_1", entries); err != nil {
		t.Fatalf("AppendLog failed: %v", err)
	}

	// Mutating a returned log entry must not touch stored state.
	got, err := store.GetLog(ctx, "slot_1", nil)
	if err != nil {
		t.Fatalf("GetLog failed: %v", err)
	}
	got[0].Type = save.EventActChanged
	got[0].Payload["room_id"] = "tampered"

	again, err := store.GetLog(ctx, "slot_1", nil)
	if err != nil {
		t.Fatalf("GetLog failed: %v", err)
	}
	if again[0].Type != save.EventRoomEntered {
		t.Errorf("Stored log entry type mutated through returned slice: %v", again[0].Type)
	}
	if again[0].Payload["room_id"] != "corridor_a" {
		t.Errorf("Stored log payload mutated through returned slice: %v", again[0].Payload)
	}

	// Mutating a patch after the call must not touch stored state.
	p := &save.Patch{Player: &save.PlayerPatch{Flags: map[string]bool{"sealed": true}}}
	if _, err := store.PatchSave(ctx, "slot_1", p); err != nil {
		t.Fatalf("PatchSave failed: %v", err)
	}
	p.Player.Flags["tampered"] = true

	s, err := store.LoadSave(ctx, "slot_1")
	if err != nil {
		t.Fatalf("LoadSave failed: %v", err)
	}
	if !s.Player.Flags["sealed"] {
		t.Error("Accepted patch missing state")
	}
	if s.Player.Flags["tampered"] {
		t.Error("Stored save aliases the caller's patch")
	}
}

func TestMockStorage_ListAndRooms(t *testing.T) {
	store := NewMockStorage()
	ctx := context.Background()

	store.AddRoom(&world.Room{ID: "arrival_bay", Name: "Arrival Bay"})
	if _, err := store.LoadSave(ctx, "slot_b"); err != nil {
		t.Fatal(err)
	}
	if _, err := store.LoadSave(ctx, "slot_a"); err != nil {
		t.Fatal(err)
	}

	summaries, err := store.ListSaves(ctx)
	if err != nil {
		t.Fatalf("ListSaves failed: %v", err)
	}
	if len(summaries) != 2 || summaries[0].Slot != "slot_a" {
		t.Errorf("Expected sorted summaries, got %v", summaries)
	}

	room, err := store.GetRoom(ctx, "arrival_bay")
	if err != nil || room.Name != "Arrival Bay" {
		t.Errorf("Expected arrival bay room, got %v, %v", room, err)
	}
	if _, err := store.GetRoom(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}
