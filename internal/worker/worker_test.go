package worker

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"github.com/jwebster45206/station-engine/internal/services/queue"
	"github.com/jwebster45206/station-engine/pkg/gm"
	queuePkg "github.com/jwebster45206/station-engine/pkg/queue"
	"github.com/jwebster45206/station-engine/pkg/save"
	"github.com/jwebster45206/station-engine/pkg/storage"
	"github.com/jwebster45206/station-engine/pkg/world"
)

func setupWorker(t *testing.T, gms gm.Service, store storage.Storage) (*Worker, *queue.PrefetchQueue) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	client, err := queue.NewClient("redis://"+mr.Addr(), logger)
	if err != nil {
		t.Fatalf("Failed to create queue client: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })

	pq := queue.NewPrefetchQueue(client)
	w := New(pq, gms, store, client.GetRedisClient(), logger, "test-worker")
	t.Cleanup(w.Stop)

	return w, pq
}

func enqueuePrefetch(t *testing.T, pq *queue.PrefetchQueue, slot, roomID, fromRoomID string) {
	t.Helper()

	enqueued, err := pq.Enqueue(context.Background(), &queuePkg.Request{
		RequestID:  "req-1",
		Type:       queuePkg.RequestTypePrefetchRoom,
		Slot:       slot,
		RoomID:     roomID,
		FromRoomID: fromRoomID,
		EnqueuedAt: time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("Failed to enqueue: %v", err)
	}
	if !enqueued {
		t.Fatal("Expected request to enqueue")
	}
}

func TestWorker_ProcessPrefetch(t *testing.T) {
	store := storage.NewMockStorage()
	store.AddRoom(&world.Room{ID: world.StartingRoom, Name: "Arrival Bay"})

	gms := gm.NewMockService()
	gms.PrefetchRoomFunc = func(ctx context.Context, roomID, fromRoomID string, snap *gm.Snapshot) (*world.Room, error) {
		if snap.RoomID != world.StartingRoom {
			t.Errorf("Expected snapshot at starting room, got %q", snap.RoomID)
		}
		return &world.Room{Name: "Cargo Hold"}, nil
	}

	w, pq := setupWorker(t, gms, store)
	enqueuePrefetch(t, pq, "slot1", "cargo_hold", world.StartingRoom)

	if err := w.processNextRequest(); err != nil {
		t.Fatalf("Failed to process request: %v", err)
	}

	s, err := store.LoadSave(context.Background(), "slot1")
	if err != nil {
		t.Fatalf("Failed to load save: %v", err)
	}
	overlay := s.Rooms["cargo_hold"]
	if overlay == nil || overlay.Replace == nil {
		t.Fatal("Expected full-replacement overlay for generated room")
	}
	if overlay.Replace.ID != "cargo_hold" || !overlay.Replace.Generated {
		t.Errorf("Unexpected generated room: %+v", overlay.Replace)
	}

	entries, err := store.GetLog(context.Background(), "slot1", []string{"gm_action"})
	if err != nil {
		t.Fatalf("Failed to get log: %v", err)
	}
	if len(entries) != 1 || entries[0].Type != save.EventGMRoomGenerated {
		t.Errorf("Expected one gm_room_generated entry, got %+v", entries)
	}

	pending, err := pq.IsPending(context.Background(), "slot1", "cargo_hold")
	if err != nil {
		t.Fatalf("Failed to check pending: %v", err)
	}
	if pending {
		t.Error("Expected pending marker cleared after processing")
	}
}

func TestWorker_PrefetchNotReady(t *testing.T) {
	store := storage.NewMockStorage()
	gms := gm.NewMockService()
	gms.PrefetchRoomFunc = func(ctx context.Context, roomID, fromRoomID string, snap *gm.Snapshot) (*world.Room, error) {
		return nil, nil
	}

	w, pq := setupWorker(t, gms, store)
	enqueuePrefetch(t, pq, "slot1", "cargo_hold", world.StartingRoom)

	if err := w.processNextRequest(); err != nil {
		t.Fatalf("Expected not-ready to be clean: %v", err)
	}

	s, _ := store.LoadSave(context.Background(), "slot1")
	if s.Rooms["cargo_hold"] != nil {
		t.Error("Expected no overlay for not-ready room")
	}

	pending, _ := pq.IsPending(context.Background(), "slot1", "cargo_hold")
	if pending {
		t.Error("Expected pending marker cleared so a later attempt retries")
	}
}

func TestWorker_SkipsAlreadyGeneratedRoom(t *testing.T) {
	store := storage.NewMockStorage()
	ctx := context.Background()

	_, err := store.PatchSave(ctx, "slot1", &save.Patch{
		Rooms: map[string]*world.Overlay{
			"cargo_hold": {Replace: &world.Room{ID: "cargo_hold", Name: "Cargo Hold", Generated: true}},
		},
	})
	if err != nil {
		t.Fatalf("Failed to seed save: %v", err)
	}

	gms := gm.NewMockService()
	w, pq := setupWorker(t, gms, store)
	enqueuePrefetch(t, pq, "slot1", "cargo_hold", world.StartingRoom)

	if err := w.processNextRequest(); err != nil {
		t.Fatalf("Failed to process request: %v", err)
	}

	if len(gms.GetPrefetchCalls()) != 0 {
		t.Error("Expected generator not called for an already generated room")
	}
	pending, _ := pq.IsPending(ctx, "slot1", "cargo_hold")
	if pending {
		t.Error("Expected pending marker cleared")
	}
}

func TestWorker_PersistRetriesOnConflict(t *testing.T) {
	store := storage.NewMockStorage()
	conflicted := false
	store.PatchSaveFunc = func(ctx context.Context, slot string, p *save.Patch) (uint64, error) {
		if !conflicted {
			conflicted = true
			return 0, &storage.ConflictError{ClientSeq: *p.Seq, ServerSeq: *p.Seq}
		}
		store.PatchSaveFunc = nil
		return store.PatchSave(ctx, slot, p)
	}

	gms := gm.NewMockService()
	w, pq := setupWorker(t, gms, store)
	enqueuePrefetch(t, pq, "slot1", "cargo_hold", world.StartingRoom)

	if err := w.processNextRequest(); err != nil {
		t.Fatalf("Failed to process request: %v", err)
	}
	if !conflicted {
		t.Fatal("Expected a conflict on first persist attempt")
	}

	s, _ := store.LoadSave(context.Background(), "slot1")
	if s.Rooms["cargo_hold"] == nil {
		t.Error("Expected generated room persisted after retry")
	}
	pending, _ := pq.IsPending(context.Background(), "slot1", "cargo_hold")
	if pending {
		t.Error("Expected pending marker cleared")
	}
}
