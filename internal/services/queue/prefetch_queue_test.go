package queue

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"

	queuePkg "github.com/jwebster45206/station-engine/pkg/queue"
)

func setupTestRedis(t *testing.T) (*Client, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	client, err := NewClient("redis://"+mr.Addr(), logger)
	if err != nil {
		t.Fatalf("Failed to create queue client: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })

	return client, mr
}

func newRequest(slot, roomID, fromRoomID string) *queuePkg.Request {
	return &queuePkg.Request{
		RequestID:  uuid.New().String(),
		Type:       queuePkg.RequestTypePrefetchRoom,
		Slot:       slot,
		RoomID:     roomID,
		FromRoomID: fromRoomID,
		EnqueuedAt: time.Now().UTC(),
	}
}

func TestPrefetchQueue_EnqueueDequeue(t *testing.T) {
	client, _ := setupTestRedis(t)
	q := NewPrefetchQueue(client)
	ctx := context.Background()

	enqueued, err := q.Enqueue(ctx, newRequest("slot1", "cargo_hold", "arrival_bay"))
	if err != nil {
		t.Fatalf("Failed to enqueue: %v", err)
	}
	if !enqueued {
		t.Fatal("Expected first enqueue to succeed")
	}

	depth, err := q.Depth(ctx)
	if err != nil {
		t.Fatalf("Failed to get depth: %v", err)
	}
	if depth != 1 {
		t.Errorf("Expected depth 1, got %d", depth)
	}

	req, err := q.DequeueRequest(ctx)
	if err != nil {
		t.Fatalf("Failed to dequeue: %v", err)
	}
	if req == nil {
		t.Fatal("Expected request")
	}
	if req.RoomID != "cargo_hold" || req.Slot != "slot1" {
		t.Errorf("Unexpected request: %+v", req)
	}
	if req.Type != queuePkg.RequestTypePrefetchRoom {
		t.Errorf("Unexpected type: %s", req.Type)
	}
}

func TestPrefetchQueue_EnqueueDedup(t *testing.T) {
	client, _ := setupTestRedis(t)
	q := NewPrefetchQueue(client)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		enqueued, err := q.Enqueue(ctx, newRequest("slot1", "cargo_hold", "arrival_bay"))
		if err != nil {
			t.Fatalf("Failed to enqueue: %v", err)
		}
		if (i == 0) != enqueued {
			t.Errorf("Attempt %d: expected enqueued=%v, got %v", i, i == 0, enqueued)
		}
	}

	// A different room for the same slot is independent.
	enqueued, err := q.Enqueue(ctx, newRequest("slot1", "maintenance_shaft", "arrival_bay"))
	if err != nil {
		t.Fatalf("Failed to enqueue: %v", err)
	}
	if !enqueued {
		t.Error("Expected distinct room to enqueue")
	}

	depth, _ := q.Depth(ctx)
	if depth != 2 {
		t.Errorf("Expected depth 2, got %d", depth)
	}
}

func TestPrefetchQueue_ClearPendingAllowsRetry(t *testing.T) {
	client, _ := setupTestRedis(t)
	q := NewPrefetchQueue(client)
	ctx := context.Background()

	if _, err := q.Enqueue(ctx, newRequest("slot1", "cargo_hold", "arrival_bay")); err != nil {
		t.Fatalf("Failed to enqueue: %v", err)
	}

	pending, err := q.IsPending(ctx, "slot1", "cargo_hold")
	if err != nil {
		t.Fatalf("Failed to check pending: %v", err)
	}
	if !pending {
		t.Error("Expected pending marker")
	}

	if err := q.ClearPending(ctx, "slot1", "cargo_hold"); err != nil {
		t.Fatalf("Failed to clear pending: %v", err)
	}

	enqueued, err := q.Enqueue(ctx, newRequest("slot1", "cargo_hold", "arrival_bay"))
	if err != nil {
		t.Fatalf("Failed to re-enqueue: %v", err)
	}
	if !enqueued {
		t.Error("Expected re-enqueue after clear")
	}
}

func TestPrefetchQueue_DequeueEmpty(t *testing.T) {
	client, _ := setupTestRedis(t)
	q := NewPrefetchQueue(client)

	req, err := q.DequeueRequest(context.Background())
	if err != nil {
		t.Fatalf("Expected empty dequeue to be clean: %v", err)
	}
	if req != nil {
		t.Errorf("Expected nil request, got %+v", req)
	}
}
