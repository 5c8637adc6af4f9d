package gm

import (
	"context"
	"sync"

	"github.com/jwebster45206/station-engine/pkg/dialog"
	"github.com/jwebster45206/station-engine/pkg/world"
)

// MockService is a mock implementation of Service for testing.
type MockService struct {
	PrefetchRoomFunc            func(ctx context.Context, roomID, fromRoomID string, snap *Snapshot) (*world.Room, error)
	GenerateDialogOptionsFunc   func(ctx context.Context, npcID string, snap *Snapshot, history []string) ([]dialog.Option, error)
	GenerateStationResponseFunc func(ctx context.Context, snap *Snapshot, playerMessage string) (*dialog.Node, error)

	// Track calls for testing
	PrefetchCalls []PrefetchCall
	OptionsCalls  []OptionsCall
	StationCalls  []StationCall

	mu sync.Mutex // protects all fields above
}

type PrefetchCall struct {
	RoomID     string
	FromRoomID string
}

type OptionsCall struct {
	NPCID   string
	History []string
}

type StationCall struct {
	Message string
}

var _ Service = (*MockService)(nil)

// NewMockService creates a new mock GM service.
func NewMockService() *MockService {
	return &MockService{
		PrefetchCalls: make([]PrefetchCall, 0),
		OptionsCalls:  make([]OptionsCall, 0),
		StationCalls:  make([]StationCall, 0),
	}
}

func (m *MockService) PrefetchRoom(ctx context.Context, roomID, fromRoomID string, snap *Snapshot) (*world.Room, error) {
	m.mu.Lock()
	m.PrefetchCalls = append(m.PrefetchCalls, PrefetchCall{RoomID: roomID, FromRoomID: fromRoomID})
	fn := m.PrefetchRoomFunc
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, roomID, fromRoomID, snap)
	}

	// Default behavior: a minimal generated room
	return &world.Room{
		ID:        roomID,
		Name:      "Generated " + roomID,
		Generated: true,
	}, nil
}

func (m *MockService) GenerateDialogOptions(ctx context.Context, npcID string, snap *Snapshot, history []string) ([]dialog.Option, error) {
	m.mu.Lock()
	m.OptionsCalls = append(m.OptionsCalls, OptionsCall{NPCID: npcID, History: history})
	fn := m.GenerateDialogOptionsFunc
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, npcID, snap, history)
	}

	return []dialog.Option{
		{Text: "Mock generated option", End: true},
	}, nil
}

func (m *MockService) GenerateStationResponse(ctx context.Context, snap *Snapshot, playerMessage string) (*dialog.Node, error) {
	m.mu.Lock()
	m.StationCalls = append(m.StationCalls, StationCall{Message: playerMessage})
	fn := m.GenerateStationResponseFunc
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, snap, playerMessage)
	}

	return &dialog.Node{
		ID:      "station_response",
		Speaker: SpeakerStation,
		Text:    "Mock station response",
	}, nil
}

// SetUnavailable makes every operation fail with ErrUnavailable.
func (m *MockService) SetUnavailable() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.PrefetchRoomFunc = func(ctx context.Context, roomID, fromRoomID string, snap *Snapshot) (*world.Room, error) {
		return nil, ErrUnavailable
	}
	m.GenerateDialogOptionsFunc = func(ctx context.Context, npcID string, snap *Snapshot, history []string) ([]dialog.Option, error) {
		return nil, ErrUnavailable
	}
	m.GenerateStationResponseFunc = func(ctx context.Context, snap *Snapshot, playerMessage string) (*dialog.Node, error) {
		return nil, ErrUnavailable
	}
}

// GetPrefetchCalls returns a copy of the tracked prefetch calls.
func (m *MockService) GetPrefetchCalls() []PrefetchCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	calls := make([]PrefetchCall, len(m.PrefetchCalls))
	copy(calls, m.PrefetchCalls)
	return calls
}

// Reset clears all call tracking.
func (m *MockService) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.PrefetchCalls = make([]PrefetchCall, 0)
	m.OptionsCalls = make([]OptionsCall, 0)
	m.StationCalls = make([]StationCall, 0)
}
