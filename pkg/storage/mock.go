package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/jwebster45206/station-engine/pkg/save"
	"github.com/jwebster45206/station-engine/pkg/world"
)

// MockStorage is an in-memory Storage for testing. It implements the
// full patch semantics, including the optimistic-concurrency check, so
// handler and session tests exercise real store behavior.
type MockStorage struct {
	mu    sync.Mutex
	saves map[string]*save.Save
	rooms map[string]*world.Room

	// Optional overrides for failure injection
	PatchSaveFunc func(ctx context.Context, slot string, p *save.Patch) (uint64, error)
	LoadSaveFunc  func(ctx context.Context, slot string) (*save.Save, error)
}

var _ Storage = (*MockStorage)(nil)

// NewMockStorage creates an empty mock store.
func NewMockStorage() *MockStorage {
	return &MockStorage{
		saves: make(map[string]*save.Save),
		rooms: make(map[string]*world.Room),
	}
}

func (m *MockStorage) Ping(ctx context.Context) error { return nil }
func (m *MockStorage) Close() error                   { return nil }

// AddRoom registers an authored room for GetRoom/ListRooms.
func (m *MockStorage) AddRoom(room *world.Room) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rooms[room.ID] = room
}

func (m *MockStorage) LoadSave(ctx context.Context, slot string) (*save.Save, error) {
	if m.LoadSaveFunc != nil {
		return m.LoadSaveFunc(ctx, slot)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.saves[slot]
	if !ok {
		s = save.New(slot)
		m.saves[slot] = s
	}
	return cloneSave(s)
}

func (m *MockStorage) ReplaceSave(ctx context.Context, slot string, s *save.Save) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	clone, err := cloneSave(s)
	if err != nil {
		return err
	}
	clone.Slot = slot
	clone.UpdatedAt = time.Now().UTC()
	m.saves[slot] = clone
	return nil
}

func (m *MockStorage) PatchSave(ctx context.Context, slot string, p *save.Patch) (uint64, error) {
	if m.PatchSaveFunc != nil {
		return m.PatchSaveFunc(ctx, slot, p)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.saves[slot]
	if !ok {
		s = save.New(slot)
		m.saves[slot] = s
	}

	if p.Seq != nil && *p.Seq != s.Seq {
		return 0, &ConflictError{ClientSeq: *p.Seq, ServerSeq: s.Seq}
	}

	// Merge into a clone so stored state never aliases the caller's
	// patch and is never mutated in place.
	clone, err := cloneSave(s)
	if err != nil {
		return 0, err
	}
	clone.Apply(p)
	clone.Seq++
	clone.UpdatedAt = time.Now().UTC()
	m.saves[slot] = clone
	return clone.Seq, nil
}

func (m *MockStorage) AppendLog(ctx context.Context, slot string, entries []save.LogEntry) (uint64, error) {
	return m.PatchSave(ctx, slot, &save.Patch{AppendLog: entries})
}

func (m *MockStorage) GetLog(ctx context.Context, slot string, tags []string) ([]save.LogEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.saves[slot]
	if !ok {
		return nil, fmt.Errorf("slot %q: %w", slot, ErrNotFound)
	}
	clone, err := cloneSave(s)
	if err != nil {
		return nil, err
	}
	return save.FilterLog(clone.Log, tags), nil
}

func (m *MockStorage) ListSaves(ctx context.Context) ([]save.Summary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	summaries := make([]save.Summary, 0, len(m.saves))
	for _, s := range m.saves {
		summaries = append(summaries, s.Summarize())
	}
	sort.Slice(summaries, func(i, j int) bool { return summaries[i].Slot < summaries[j].Slot })
	return summaries, nil
}

func (m *MockStorage) DeleteSave(ctx context.Context, slot string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.saves[slot]; !ok {
		return fmt.Errorf("slot %q: %w", slot, ErrNotFound)
	}
	delete(m.saves, slot)
	return nil
}

func (m *MockStorage) GetRoom(ctx context.Context, id string) (*world.Room, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	room, ok := m.rooms[id]
	if !ok {
		return nil, fmt.Errorf("room %q: %w", id, ErrNotFound)
	}
	return room, nil
}

func (m *MockStorage) ListRooms(ctx context.Context) ([]*world.Room, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rooms := make([]*world.Room, 0, len(m.rooms))
	for _, room := range m.rooms {
		rooms = append(rooms, room)
	}
	sort.Slice(rooms, func(i, j int) bool { return rooms[i].ID < rooms[j].ID })
	return rooms, nil
}

// cloneSave returns a deep copy so callers never alias stored state.
func cloneSave(s *save.Save) (*save.Save, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("failed to clone save: %w", err)
	}
	var out save.Save
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("failed to clone save: %w", err)
	}
	return &out, nil
}
