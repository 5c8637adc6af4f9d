package world

import (
	"github.com/jwebster45206/station-engine/pkg/dialog"
)

// Overlay is a sparse, GM-authored patch on top of an authored room.
// Overlays accumulate in the save; MergeOverlay combines them and
// ApplyOverlay derives the playable room.
type Overlay struct {
	// Replace wins outright: when set, no other field is consulted and
	// later partial overlays are evaluated against the replacement.
	Replace *Room `json:"replace,omitempty"`

	Description      string         `json:"description,omitempty"`
	AddNPCs          []NPC          `json:"add_npcs,omitempty"`
	AddInteractables []Interactable `json:"add_interactables,omitempty"`

	// InjectDialog maps NPC id to options appended to that NPC's entry node.
	InjectDialog map[string][]dialog.Option `json:"inject_dialog,omitempty"`
}

// IsEmpty reports whether the overlay changes anything.
func (o *Overlay) IsEmpty() bool {
	return o == nil || (o.Replace == nil &&
		o.Description == "" &&
		len(o.AddNPCs) == 0 &&
		len(o.AddInteractables) == 0 &&
		len(o.InjectDialog) == 0)
}

// MergeOverlay combines incoming onto existing and returns the result.
// Neither input is mutated. Rules:
//   - a full-replacement room in incoming is terminal: the result is that
//     replacement and nothing of existing survives;
//   - a full-replacement room in existing absorbs incoming partials: they
//     are applied to the replacement itself and the result stays
//     pure-Replace, so partials arriving after a replacement are
//     evaluated against the replacement, not the original base;
//   - scalar fields: incoming wins when present;
//   - list fields: union by id, existing order preserved, new ids
//     appended in incoming order;
//   - injected dialog: per NPC key, incoming options append after
//     existing ones. Options already present verbatim are skipped so a
//     re-delivered batch cannot duplicate choices the player has seen.
func MergeOverlay(existing, incoming *Overlay) *Overlay {
	if incoming == nil {
		return cloneOverlay(existing)
	}
	if incoming.Replace != nil {
		return &Overlay{Replace: incoming.Replace}
	}
	if existing != nil && existing.Replace != nil {
		return &Overlay{Replace: ApplyOverlay(existing.Replace, incoming)}
	}
	if existing == nil {
		existing = &Overlay{}
	}

	out := cloneOverlay(existing)

	if incoming.Description != "" {
		out.Description = incoming.Description
	}
	out.AddNPCs = mergeNPCs(out.AddNPCs, incoming.AddNPCs)
	out.AddInteractables = mergeInteractables(out.AddInteractables, incoming.AddInteractables)

	if len(incoming.InjectDialog) > 0 {
		if out.InjectDialog == nil {
			out.InjectDialog = make(map[string][]dialog.Option, len(incoming.InjectDialog))
		}
		for npcID, opts := range incoming.InjectDialog {
			merged := out.InjectDialog[npcID]
			for _, opt := range opts {
				if containsOption(merged, opt) {
					continue
				}
				merged = append(merged, opt)
			}
			out.InjectDialog[npcID] = merged
		}
	}

	return out
}

// ApplyOverlay derives the playable room from an authored base and its
// accumulated overlay. The base is not mutated. Injected dialog options
// are spliced into the NPC's entry node immediately before the last
// existing option, so generated choices appear mid-list instead of
// displacing the conversation's natural exit.
func ApplyOverlay(base *Room, o *Overlay) *Room {
	if o.IsEmpty() {
		return base
	}
	if o.Replace != nil {
		r := *o.Replace
		return &r
	}
	if base == nil {
		return nil
	}

	r := *base
	if o.Description != "" {
		r.Description = o.Description
	}
	r.NPCs = mergeNPCs(base.NPCs, o.AddNPCs)
	r.Interactables = mergeInteractables(base.Interactables, o.AddInteractables)

	if len(o.InjectDialog) > 0 {
		r.Dialog = make(map[string]dialog.Node, len(base.Dialog))
		for id, node := range base.Dialog {
			r.Dialog[id] = node
		}
		for npcID, opts := range o.InjectDialog {
			entryID := npcEntryNode(r.NPCs, npcID)
			if entryID == "" {
				continue
			}
			node, ok := r.Dialog[entryID]
			if !ok {
				continue
			}
			node.Options = spliceOptions(node.Options, opts)
			r.Dialog[entryID] = node
		}
	}

	return &r
}

// spliceOptions inserts injected options immediately before the last
// existing option. With no existing options the injected ones stand
// alone.
func spliceOptions(existing, injected []dialog.Option) []dialog.Option {
	if len(injected) == 0 {
		return existing
	}
	out := make([]dialog.Option, 0, len(existing)+len(injected))
	if len(existing) == 0 {
		return append(out, injected...)
	}
	out = append(out, existing[:len(existing)-1]...)
	out = append(out, injected...)
	out = append(out, existing[len(existing)-1])
	return out
}

func npcEntryNode(npcs []NPC, npcID string) string {
	for _, npc := range npcs {
		if npc.ID == npcID {
			return npc.Dialog
		}
	}
	return ""
}

func mergeNPCs(existing, incoming []NPC) []NPC {
	if len(incoming) == 0 {
		return existing
	}
	seen := make(map[string]bool, len(existing))
	out := make([]NPC, 0, len(existing)+len(incoming))
	for _, npc := range existing {
		seen[npc.ID] = true
		out = append(out, npc)
	}
	for _, npc := range incoming {
		if seen[npc.ID] {
			continue
		}
		seen[npc.ID] = true
		out = append(out, npc)
	}
	return out
}

func mergeInteractables(existing, incoming []Interactable) []Interactable {
	if len(incoming) == 0 {
		return existing
	}
	seen := make(map[string]bool, len(existing))
	out := make([]Interactable, 0, len(existing)+len(incoming))
	for _, it := range existing {
		seen[it.ID] = true
		out = append(out, it)
	}
	for _, it := range incoming {
		if seen[it.ID] {
			continue
		}
		seen[it.ID] = true
		out = append(out, it)
	}
	return out
}

func containsOption(opts []dialog.Option, opt dialog.Option) bool {
	for _, o := range opts {
		if o == opt {
			return true
		}
	}
	return false
}

func cloneOverlay(o *Overlay) *Overlay {
	if o == nil {
		return &Overlay{}
	}
	out := &Overlay{
		Replace:     o.Replace,
		Description: o.Description,
	}
	if len(o.AddNPCs) > 0 {
		out.AddNPCs = append([]NPC(nil), o.AddNPCs...)
	}
	if len(o.AddInteractables) > 0 {
		out.AddInteractables = append([]Interactable(nil), o.AddInteractables...)
	}
	if len(o.InjectDialog) > 0 {
		out.InjectDialog = make(map[string][]dialog.Option, len(o.InjectDialog))
		for k, v := range o.InjectDialog {
			out.InjectDialog[k] = append([]dialog.Option(nil), v...)
		}
	}
	return out
}
