package save

import (
	"time"
)

// EventType is the closed set of event log entry types.
type EventType string

const (
	EventRoomEntered      EventType = "room_entered"
	EventDialogStarted    EventType = "dialog_started"
	EventDialogChosen     EventType = "dialog_chosen"
	EventDialogEnded      EventType = "dialog_ended"
	EventInteractableUsed EventType = "interactable_used"
	EventFlagSet          EventType = "flag_set"
	EventItemTaken        EventType = "item_taken"
	EventGMRoomGenerated  EventType = "gm_room_generated"
	EventGMOptionsInject  EventType = "gm_options_injected"
	EventGMDescriptionSet EventType = "gm_description_set"
	EventGMNPCAdded       EventType = "gm_npc_added"
	EventActChanged       EventType = "act_changed"
)

// LogEntry is one append-only record in a save's event log. Entries are
// never mutated or removed once written.
type LogEntry struct {
	Timestamp time.Time              `json:"ts"`
	Type      EventType              `json:"type"`
	Tags      []string               `json:"tags,omitempty"`
	Payload   map[string]interface{} `json:"payload,omitempty"`
	Act       int                    `json:"act"`
}

// NewLogEntry stamps an entry with the current time and deduplicated
// tags.
func NewLogEntry(t EventType, act int, payload map[string]interface{}, tags ...string) LogEntry {
	return LogEntry{
		Timestamp: time.Now().UTC(),
		Type:      t,
		Tags:      dedupeTags(tags),
		Payload:   payload,
		Act:       act,
	}
}

// HasTags reports whether the entry's tag set is a superset of want.
func (e LogEntry) HasTags(want []string) bool {
	for _, w := range want {
		found := false
		for _, tag := range e.Tags {
			if tag == w {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// FilterLog returns the entries whose tag set contains every requested
// tag (conjunctive filter). An empty filter returns all entries.
func FilterLog(entries []LogEntry, tags []string) []LogEntry {
	if len(tags) == 0 {
		return entries
	}
	out := make([]LogEntry, 0, len(entries))
	for _, e := range entries {
		if e.HasTags(tags) {
			out = append(out, e)
		}
	}
	return out
}

func dedupeTags(tags []string) []string {
	if len(tags) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(tags))
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		if tag == "" || seen[tag] {
			continue
		}
		seen[tag] = true
		out = append(out, tag)
	}
	return out
}
