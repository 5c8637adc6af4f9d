package save

import (
	"github.com/jwebster45206/station-engine/pkg/world"
)

// PlayerPatch is a sparse diff of the player sub-state. Scalar fields
// are shallow-merged when present; Flags union in key-wise (flags are
// monotone, there is no unset); Inventory and Visited union as sets.
type PlayerPatch struct {
	RoomID    string          `json:"room_id,omitempty"`
	Act       int             `json:"act,omitempty"`
	Flags     map[string]bool `json:"flags,omitempty"`
	Inventory []string        `json:"inventory,omitempty"`
	Visited   []string        `json:"visited,omitempty"`
}

// Patch is one client-accumulated diff against a save. Seq, when set, is
// the caller's expected sequence number; the store rejects the whole
// patch on mismatch without merging any field.
type Patch struct {
	Player    *PlayerPatch              `json:"player,omitempty"`
	Rooms     map[string]*world.Overlay `json:"rooms,omitempty"`
	AppendLog []LogEntry                `json:"append_log,omitempty"`
	Seq       *uint64                   `json:"seq,omitempty"`
}

// IsEmpty reports whether the patch changes anything.
func (p *Patch) IsEmpty() bool {
	return p == nil || (p.Player == nil && len(p.Rooms) == 0 && len(p.AppendLog) == 0)
}

// Apply merges the patch into the save. Sequence checking and
// incrementing are the store's job, not Apply's.
func (s *Save) Apply(p *Patch) {
	if p == nil {
		return
	}

	if p.Player != nil {
		if p.Player.RoomID != "" {
			s.Player.RoomID = p.Player.RoomID
		}
		if p.Player.Act != 0 {
			s.Player.Act = p.Player.Act
		}
		if len(p.Player.Flags) > 0 {
			if s.Player.Flags == nil {
				s.Player.Flags = make(map[string]bool, len(p.Player.Flags))
			}
			for k, v := range p.Player.Flags {
				if v {
					s.Player.Flags[k] = true
				}
			}
		}
		if len(p.Player.Inventory) > 0 {
			s.Player.Inventory = unionItems(s.Player.Inventory, p.Player.Inventory)
		}
		if len(p.Player.Visited) > 0 {
			if s.Player.Visited == nil {
				s.Player.Visited = make(map[string]bool, len(p.Player.Visited))
			}
			for _, id := range p.Player.Visited {
				s.Player.Visited[id] = true
			}
		}
	}

	if len(p.Rooms) > 0 {
		if s.Rooms == nil {
			s.Rooms = make(map[string]*world.Overlay, len(p.Rooms))
		}
		for roomID, overlay := range p.Rooms {
			s.Rooms[roomID] = world.MergeOverlay(s.Rooms[roomID], overlay)
		}
	}

	if len(p.AppendLog) > 0 {
		for _, entry := range p.AppendLog {
			entry.Tags = dedupeTags(entry.Tags)
			s.Log = append(s.Log, entry)
		}
	}
}

// unionItems unions two item lists as sets, keeping first-insertion
// order stable.
func unionItems(existing, incoming []string) []string {
	seen := make(map[string]bool, len(existing))
	out := make([]string, 0, len(existing)+len(incoming))
	for _, item := range existing {
		if item == "" || seen[item] {
			continue
		}
		seen[item] = true
		out = append(out, item)
	}
	for _, item := range incoming {
		if item == "" || seen[item] {
			continue
		}
		seen[item] = true
		out = append(out, item)
	}
	return out
}
