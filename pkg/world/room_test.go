package world

import (
	"errors"
	"reflect"
	"testing"

	"github.com/jwebster45206/station-engine/pkg/dialog"
)

func TestNormalize_Defaults(t *testing.T) {
	raw := &Room{
		ID:   "cargo_hold",
		Name: "Cargo Hold",
	}

	room, err := Normalize(raw)
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}

	if room.Act != 1 {
		t.Errorf("Expected default act 1, got %d", room.Act)
	}
	if room.Source != dialog.SourceAuthored {
		t.Errorf("Expected authored source, got %q", room.Source)
	}
	if room.Exits == nil || room.NPCs == nil || room.Interactables == nil || room.Dialog == nil {
		t.Error("Expected all collections non-nil after normalize")
	}
}

func TestNormalize_GeneratedSource(t *testing.T) {
	raw := &Room{ID: "annex", Name: "Annex", Generated: true}
	room, err := Normalize(raw)
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	if room.Source != dialog.SourceGenerated {
		t.Errorf("Expected generated source, got %q", room.Source)
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	raw := &Room{
		ID:   "mess_hall",
		Name: "Mess Hall",
		Act:  2,
		Exits: map[string]Exit{
			"aft": {To: "corridor_a", RequiresFlag: "power_restored", LockedMessage: "The door won't budge."},
		},
		NPCs: []NPC{{ID: "cook", Name: "Cook", Dialog: "cook_greet"}},
		Dialog: map[string]dialog.Node{
			"cook_greet": {Speaker: "cook", Text: "Soup's on.", Options: []dialog.Option{
				{Text: "Thanks.", End: true},
			}},
		},
	}

	once, err := Normalize(raw)
	if err != nil {
		t.Fatalf("First normalize failed: %v", err)
	}
	twice, err := Normalize(once)
	if err != nil {
		t.Fatalf("Second normalize failed: %v", err)
	}

	if !reflect.DeepEqual(once, twice) {
		t.Errorf("Normalize not idempotent:\nonce:  %+v\ntwice: %+v", once, twice)
	}
}

func TestNormalize_NodeIDFromKey(t *testing.T) {
	raw := &Room{
		ID:   "lab",
		Name: "Lab",
		Dialog: map[string]dialog.Node{
			"intro": {Speaker: "scientist", Text: "Careful with that."},
		},
	}
	room, err := Normalize(raw)
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	if room.Dialog["intro"].ID != "intro" {
		t.Errorf("Expected node id synced from key, got %q", room.Dialog["intro"].ID)
	}
}

func TestNormalize_Malformed(t *testing.T) {
	cases := []struct {
		name string
		raw  *Room
	}{
		{"nil document", nil},
		{"missing id", &Room{Name: "No ID"}},
		{"missing name", &Room{ID: "no_name"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Normalize(tc.raw)
			if err == nil {
				t.Fatal("Expected error for malformed document")
			}
			var malformed *MalformedError
			if !errors.As(err, &malformed) {
				t.Errorf("Expected MalformedError, got %T", err)
			}
		})
	}
}

func TestNormalize_DoesNotMutateInput(t *testing.T) {
	raw := &Room{ID: "vault", Name: "Vault"}
	if _, err := Normalize(raw); err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	if raw.Act != 0 || raw.Source != "" {
		t.Error("Normalize mutated its input")
	}
}

func TestRegistry_PendingLifecycle(t *testing.T) {
	reg := NewRegistry(nil)

	if !reg.MarkPending("corridor_a") {
		t.Fatal("Expected first MarkPending to succeed")
	}
	if reg.MarkPending("corridor_a") {
		t.Error("Expected duplicate MarkPending to fail")
	}
	if !reg.IsPending("corridor_a") {
		t.Error("Expected corridor_a pending")
	}

	room, err := Normalize(&Room{ID: "corridor_a", Name: "Corridor A", Generated: true})
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	reg.Register(room)

	if reg.IsPending("corridor_a") {
		t.Error("Expected pending marker cleared on register")
	}
	if reg.MarkPending("corridor_a") {
		t.Error("Expected MarkPending to fail for a registered room")
	}
	if got := reg.Get("corridor_a"); got == nil || got.Name != "Corridor A" {
		t.Errorf("Expected registered room, got %+v", got)
	}
}

func TestRegistry_Index(t *testing.T) {
	reg := NewRegistry(nil)
	for _, r := range []*Room{
		{ID: "b_room", Name: "B", Exits: map[string]Exit{"forward": {To: "a_room"}}},
		{ID: "a_room", Name: "A", Generated: true},
	} {
		room, err := Normalize(r)
		if err != nil {
			t.Fatalf("Normalize failed: %v", err)
		}
		reg.Register(room)
	}

	index := reg.Index(map[string]bool{"a_room": true})
	if len(index) != 2 {
		t.Fatalf("Expected 2 entries, got %d", len(index))
	}
	if index[0].ID != "a_room" || index[1].ID != "b_room" {
		t.Errorf("Expected sorted index, got %v, %v", index[0].ID, index[1].ID)
	}
	if !index[0].Visited || index[1].Visited {
		t.Error("Visited flags not carried from the supplied set")
	}
	if !index[0].Generated {
		t.Error("Expected a_room marked generated")
	}
	if len(index[1].Exits) != 1 || index[1].Exits[0] != "forward" {
		t.Errorf("Expected exit directions in index, got %v", index[1].Exits)
	}
}
