package save

import (
	"reflect"
	"testing"

	"github.com/jwebster45206/station-engine/pkg/dialog"
	"github.com/jwebster45206/station-engine/pkg/world"
)

func TestNew_InitialState(t *testing.T) {
	s := New("slot_9")

	if s.Slot != "slot_9" {
		t.Errorf("Expected slot 'slot_9', got %q", s.Slot)
	}
	if s.Seq != 0 {
		t.Errorf("Expected seq 0, got %d", s.Seq)
	}
	if s.Player.RoomID != world.StartingRoom {
		t.Errorf("Expected starting room %q, got %q", world.StartingRoom, s.Player.RoomID)
	}
	if s.Player.Act != 1 {
		t.Errorf("Expected act 1, got %d", s.Player.Act)
	}
	if len(s.Player.Flags) != 0 || len(s.Player.Inventory) != 0 {
		t.Error("Expected empty flags and inventory")
	}
	if len(s.Log) != 0 {
		t.Error("Expected empty log")
	}
}

func TestApply_FlagsUnion(t *testing.T) {
	s := New("slot_1")

	s.Apply(&Patch{Player: &PlayerPatch{Flags: map[string]bool{"a": true}}})
	s.Apply(&Patch{Player: &PlayerPatch{Flags: map[string]bool{"b": true}}})

	want := map[string]bool{"a": true, "b": true}
	if !reflect.DeepEqual(s.Player.Flags, want) {
		t.Errorf("Expected flags %v, got %v", want, s.Player.Flags)
	}
}

func TestApply_FlagsMonotone(t *testing.T) {
	s := New("slot_1")
	s.Apply(&Patch{Player: &PlayerPatch{Flags: map[string]bool{"a": true}}})
	// A false value in a diff cannot unset an established flag.
	s.Apply(&Patch{Player: &PlayerPatch{Flags: map[string]bool{"a": false}}})
	if !s.Player.Flags["a"] {
		t.Error("Expected flag 'a' to stay set")
	}
}

func TestApply_InventorySetUnion(t *testing.T) {
	s := New("slot_1")

	s.Apply(&Patch{Player: &PlayerPatch{Inventory: []string{"x"}}})
	s.Apply(&Patch{Player: &PlayerPatch{Inventory: []string{"x", "y"}}})

	want := []string{"x", "y"}
	if !reflect.DeepEqual(s.Player.Inventory, want) {
		t.Errorf("Expected inventory %v, got %v", want, s.Player.Inventory)
	}
}

func TestApply_ScalarShallowMerge(t *testing.T) {
	s := New("slot_1")

	s.Apply(&Patch{Player: &PlayerPatch{RoomID: "corridor_a", Act: 2}})
	if s.Player.RoomID != "corridor_a" || s.Player.Act != 2 {
		t.Errorf("Expected scalar fields merged, got %+v", s.Player)
	}

	// Absent scalars leave existing values alone.
	s.Apply(&Patch{Player: &PlayerPatch{Flags: map[string]bool{"seen": true}}})
	if s.Player.RoomID != "corridor_a" || s.Player.Act != 2 {
		t.Errorf("Expected absent scalars untouched, got %+v", s.Player)
	}
}

func TestApply_RoomOverlaysMergedPerRoom(t *testing.T) {
	s := New("slot_1")

	s.Apply(&Patch{Rooms: map[string]*world.Overlay{
		"deck": {AddNPCs: []world.NPC{{ID: "drone", Name: "Drone"}}},
	}})
	s.Apply(&Patch{Rooms: map[string]*world.Overlay{
		"deck": {AddNPCs: []world.NPC{{ID: "drone", Name: "Drone"}, {ID: "stowaway", Name: "Stowaway"}}},
	}})

	overlay := s.Rooms["deck"]
	if overlay == nil {
		t.Fatal("Expected overlay for deck")
	}
	if len(overlay.AddNPCs) != 2 {
		t.Errorf("Expected NPC union by id, got %d entries", len(overlay.AddNPCs))
	}
}

func TestApply_LogAppendedVerbatim(t *testing.T) {
	s := New("slot_1")

	e1 := NewLogEntry(EventRoomEntered, 1, map[string]interface{}{"room_id": "corridor_a"}, "room:corridor_a")
	e2 := NewLogEntry(EventFlagSet, 1, map[string]interface{}{"flag": "power_restored"}, "flag", "flag")

	s.Apply(&Patch{AppendLog: []LogEntry{e1}})
	s.Apply(&Patch{AppendLog: []LogEntry{e2}})

	if len(s.Log) != 2 {
		t.Fatalf("Expected 2 log entries, got %d", len(s.Log))
	}
	if s.Log[0].Type != EventRoomEntered || s.Log[1].Type != EventFlagSet {
		t.Error("Expected entries appended in order")
	}
	if len(s.Log[1].Tags) != 1 {
		t.Errorf("Expected tags deduplicated, got %v", s.Log[1].Tags)
	}
}

func TestApply_EmptyPatch(t *testing.T) {
	s := New("slot_1")
	before := *s
	s.Apply(nil)
	s.Apply(&Patch{})
	if s.Player.RoomID != before.Player.RoomID || len(s.Log) != 0 {
		t.Error("Expected empty patch to change nothing")
	}
}

func TestFilterLog_Conjunctive(t *testing.T) {
	entries := []LogEntry{
		NewLogEntry(EventGMRoomGenerated, 1, nil, "room:a", "gm_action"),
		NewLogEntry(EventRoomEntered, 1, nil, "room:a"),
	}

	got := FilterLog(entries, []string{"room:a", "gm_action"})
	if len(got) != 1 {
		t.Fatalf("Expected 1 entry matching both tags, got %d", len(got))
	}
	if got[0].Type != EventGMRoomGenerated {
		t.Errorf("Expected gm_room_generated entry, got %s", got[0].Type)
	}

	if got := FilterLog(entries, nil); len(got) != 2 {
		t.Errorf("Expected empty filter to return all entries, got %d", len(got))
	}
	if got := FilterLog(entries, []string{"room:b"}); len(got) != 0 {
		t.Errorf("Expected no matches for unknown tag, got %d", len(got))
	}
}

func TestApply_InjectedDialogAccumulates(t *testing.T) {
	s := New("slot_1")

	batch1 := &Patch{Rooms: map[string]*world.Overlay{
		"deck": {InjectDialog: map[string][]dialog.Option{
			"warden": {{Text: "Ask about the signal.", Source: dialog.SourceGenerated, End: true}},
		}},
	}}
	batch2 := &Patch{Rooms: map[string]*world.Overlay{
		"deck": {InjectDialog: map[string][]dialog.Option{
			"warden": {{Text: "Ask about the breach.", Source: dialog.SourceGenerated, End: true}},
		}},
	}}

	s.Apply(batch1)
	s.Apply(batch1) // re-delivery of the same batch
	s.Apply(batch2)

	opts := s.Rooms["deck"].InjectDialog["warden"]
	if len(opts) != 2 {
		t.Fatalf("Expected 2 options (no duplicate from re-delivery), got %d", len(opts))
	}
	if opts[0].Text != "Ask about the signal." || opts[1].Text != "Ask about the breach." {
		t.Errorf("Expected batch order preserved, got %v", opts)
	}
}
