package world

import (
	"log/slog"
	"sort"
	"sync"
)

// Registry is the in-memory source of truth for rooms during a session.
// It also tracks the pending-prefetch set: room ids that have been
// requested from the GM but not yet registered. Only the content
// resolution path writes rooms; everything else reads.
type Registry struct {
	mu      sync.RWMutex
	rooms   map[string]*Room
	pending map[string]bool
	log     *slog.Logger
}

// IndexEntry is the lightweight per-room view included in GM state
// snapshots.
type IndexEntry struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	Visited   bool     `json:"visited"`
	Exits     []string `json:"exits,omitempty"`
	Generated bool     `json:"generated,omitempty"`
}

// NewRegistry creates an empty registry.
func NewRegistry(log *slog.Logger) *Registry {
	if log == nil {
		log = slog.Default()
	}
	return &Registry{
		rooms:   make(map[string]*Room),
		pending: make(map[string]bool),
		log:     log,
	}
}

// Register stores a normalized room and clears its pending marker.
// Registration is last-write-wins: a generated room may replace an
// authored one with the same id. The replacement is deliberate policy
// for full-replacement overlays, but it is never silent.
func (r *Registry) Register(room *Room) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if prev, ok := r.rooms[room.ID]; ok && prev.Source != room.Source {
		r.log.Warn("room replaced with different provenance",
			"room_id", room.ID, "previous_source", prev.Source, "source", room.Source)
	}
	r.rooms[room.ID] = room
	delete(r.pending, room.ID)
}

// Get returns the room with the given id, or nil if unregistered.
func (r *Registry) Get(id string) *Room {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.rooms[id]
}

// Has reports whether a room id is registered.
func (r *Registry) Has(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.rooms[id]
	return ok
}

// MarkPending records that a prefetch for id is in flight. It returns
// false if the room is already registered or already pending, so callers
// dispatch at most one request per unresolved room id.
func (r *Registry) MarkPending(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rooms[id]; ok {
		return false
	}
	if r.pending[id] {
		return false
	}
	r.pending[id] = true
	return true
}

// IsPending reports whether a prefetch for id is in flight.
func (r *Registry) IsPending(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.pending[id]
}

// ClearPending drops a pending marker without registering a room. Used
// when a prefetch fails outright so the next navigation can retry.
func (r *Registry) ClearPending(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.pending, id)
}

// Len returns the number of registered rooms.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms)
}

// Index returns a sorted lightweight view of every registered room.
// Visited flags are filled in from the supplied set.
func (r *Registry) Index(visited map[string]bool) []IndexEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entries := make([]IndexEntry, 0, len(r.rooms))
	for id, room := range r.rooms {
		dirs := make([]string, 0, len(room.Exits))
		for dir := range room.Exits {
			dirs = append(dirs, dir)
		}
		sort.Strings(dirs)
		entries = append(entries, IndexEntry{
			ID:        id,
			Name:      room.Name,
			Visited:   visited[id],
			Exits:     dirs,
			Generated: room.Generated,
		})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].ID < entries[j].ID })
	return entries
}
