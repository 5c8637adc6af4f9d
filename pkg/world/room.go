package world

import (
	"fmt"

	"github.com/jwebster45206/station-engine/pkg/dialog"
)

// StartingRoom is where every new save begins.
const StartingRoom = "arrival_bay"

// Exit connects a room to a neighbor. RequiresFlag gates passage; when
// the flag is unset the exit is blocked and LockedMessage (or a generic
// fallback) explains why.
type Exit struct {
	To            string `json:"to"`
	RequiresFlag  string `json:"requires_flag,omitempty"`
	LockedMessage string `json:"locked_message,omitempty"`
}

// NPC is a character in a room. Dialog names the entry node of its
// conversation in the room's dialog mapping.
type NPC struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Dialog      string `json:"dialog,omitempty"`
	Source      string `json:"source,omitempty"`
}

// Interactable is a usable object in a room.
type Interactable struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	UseText     string `json:"use_text,omitempty"`
	SetsFlag    string `json:"sets_flag,omitempty"`
	GivesItem   string `json:"gives_item,omitempty"`
	Source      string `json:"source,omitempty"`
}

// Room is a navigable location. Authored rooms come from the data dir;
// generated rooms arrive through the GM boundary. Both are normalized
// into this shape before entering the registry.
type Room struct {
	ID            string                 `json:"id"`
	Name          string                 `json:"name"`
	Act           int                    `json:"act"`
	Description   string                 `json:"description,omitempty"`
	Exits         map[string]Exit        `json:"exits"`
	NPCs          []NPC                  `json:"npcs"`
	Interactables []Interactable         `json:"interactables"`
	Dialog        map[string]dialog.Node `json:"dialog"`
	Generated     bool                   `json:"generated,omitempty"`
	Source        string                 `json:"source,omitempty"`
}

// MalformedError marks a room or dialog document missing required
// fields. Content loading skips the document with a diagnostic rather
// than failing as a whole.
type MalformedError struct {
	ID     string
	Reason string
}

func (e *MalformedError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("malformed room document: %s", e.Reason)
	}
	return fmt.Sprintf("malformed room document %q: %s", e.ID, e.Reason)
}

// Normalize fills every optional field of a raw room document with its
// default so downstream consumers never branch on absence. It is
// idempotent: Normalize(Normalize(r)) == Normalize(r). The input is not
// mutated.
func Normalize(raw *Room) (*Room, error) {
	if raw == nil {
		return nil, &MalformedError{Reason: "nil document"}
	}
	if raw.ID == "" {
		return nil, &MalformedError{Reason: "missing id"}
	}
	if raw.Name == "" {
		return nil, &MalformedError{ID: raw.ID, Reason: "missing name"}
	}

	r := *raw
	if r.Act <= 0 {
		r.Act = 1
	}
	if r.Source == "" {
		if r.Generated {
			r.Source = dialog.SourceGenerated
		} else {
			r.Source = dialog.SourceAuthored
		}
	}

	r.Exits = make(map[string]Exit, len(raw.Exits))
	for dir, exit := range raw.Exits {
		r.Exits[dir] = exit
	}

	r.NPCs = make([]NPC, 0, len(raw.NPCs))
	for _, npc := range raw.NPCs {
		if npc.ID == "" {
			continue
		}
		if npc.Source == "" {
			npc.Source = r.Source
		}
		r.NPCs = append(r.NPCs, npc)
	}

	r.Interactables = make([]Interactable, 0, len(raw.Interactables))
	for _, it := range raw.Interactables {
		if it.ID == "" {
			continue
		}
		if it.Source == "" {
			it.Source = r.Source
		}
		r.Interactables = append(r.Interactables, it)
	}

	r.Dialog = make(map[string]dialog.Node, len(raw.Dialog))
	for id, node := range raw.Dialog {
		// The map key is authoritative for the node id.
		node.ID = id
		if node.Source == "" {
			node.Source = r.Source
		}
		if node.Options == nil {
			node.Options = make([]dialog.Option, 0)
		}
		opts := make([]dialog.Option, len(node.Options))
		for i, opt := range node.Options {
			if opt.Source == "" {
				opt.Source = node.Source
			}
			opts[i] = opt
		}
		node.Options = opts
		r.Dialog[id] = node
	}

	return &r, nil
}
