package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/jwebster45206/station-engine/internal/services/queue"
	"github.com/jwebster45206/station-engine/pkg/dialog"
	"github.com/jwebster45206/station-engine/pkg/gm"
	queuePkg "github.com/jwebster45206/station-engine/pkg/queue"
	"github.com/jwebster45206/station-engine/pkg/save"
	"github.com/jwebster45206/station-engine/pkg/storage"
	"github.com/jwebster45206/station-engine/pkg/world"
)

const (
	workerTimeout = 5 * time.Second

	// maxPersistRetries bounds sequence-conflict retries when writing a
	// generated room back to the save. Generated content must not be
	// lost to a gameplay patch racing ahead.
	maxPersistRetries = 5
)

// Worker drains the GM request queue: it asks the generator for each
// requested room and persists the result as a full-replacement overlay.
type Worker struct {
	id          string
	queue       *queue.PrefetchQueue
	gms         gm.Service
	store       storage.Storage
	redisClient *redis.Client
	log         *slog.Logger
	ctx         context.Context
	cancel      context.CancelFunc
}

// New creates a new worker instance
func New(prefetchQueue *queue.PrefetchQueue, gms gm.Service, store storage.Storage, redisClient *redis.Client, log *slog.Logger, workerID string) *Worker {
	ctx, cancel := context.WithCancel(context.Background())

	if workerID == "" {
		workerID = fmt.Sprintf("worker-%s", uuid.New().String()[:8])
	}

	return &Worker{
		id:          workerID,
		queue:       prefetchQueue,
		gms:         gms,
		store:       store,
		redisClient: redisClient,
		log:         log,
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Start begins processing requests from the queue
func (w *Worker) Start() error {
	w.log.Info("Worker starting", "worker_id", w.id)

	for {
		select {
		case <-w.ctx.Done():
			w.log.Info("Worker shutting down", "worker_id", w.id)
			return nil
		default:
			if err := w.processNextRequest(); err != nil {
				w.log.Error("Error processing request", "error", err, "worker_id", w.id)
				// Continue processing even on error
				time.Sleep(1 * time.Second)
			}
		}
	}
}

// Stop gracefully shuts down the worker
func (w *Worker) Stop() {
	w.log.Info("Worker stop requested", "worker_id", w.id)
	w.cancel()
}

// processNextRequest pulls the next request from the queue and processes it
func (w *Worker) processNextRequest() error {
	ctx, cancel := context.WithTimeout(w.ctx, workerTimeout)
	defer cancel()

	req, err := w.queue.BlockingDequeueRequest(ctx, workerTimeout)
	if err != nil {
		if w.ctx.Err() != nil || ctx.Err() != nil {
			// Shutdown or poll timeout, not a failure.
			return nil
		}
		return fmt.Errorf("failed to dequeue request: %w", err)
	}

	if req == nil {
		return nil
	}

	w.log.Info("Received request from queue",
		"worker_id", w.id,
		"request_id", req.RequestID,
		"type", req.Type,
		"slot", req.Slot,
	)

	// Try to acquire the slot lock
	locked, err := w.acquireSlotLock(req.Slot)
	if err != nil {
		return fmt.Errorf("failed to acquire slot lock: %w", err)
	}
	if !locked {
		// Another worker is writing this slot. Re-queue at the end and
		// try the next request.
		w.log.Info("Slot already locked, re-queueing request",
			"worker_id", w.id,
			"request_id", req.RequestID,
			"slot", req.Slot,
		)
		w.requeue(req)
		return nil
	}

	defer w.releaseSlotLock(req.Slot)
	return w.processRequest(req)
}

// requeue pushes a request back without touching its pending marker.
func (w *Worker) requeue(req *queuePkg.Request) {
	if err := w.queue.ClearPending(w.ctx, req.Slot, req.RoomID); err != nil {
		w.log.Error("Failed to clear pending marker for re-queue", "error", err)
	}
	if _, err := w.queue.Enqueue(w.ctx, req); err != nil {
		w.log.Error("Failed to re-queue request", "error", err, "request_id", req.RequestID)
	}
}

// acquireSlotLock attempts to acquire a lock for a save slot.
// Returns true if lock was acquired, false if already locked.
func (w *Worker) acquireSlotLock(slot string) (bool, error) {
	lockKey := "save-lock:" + slot

	result, err := w.redisClient.SetNX(w.ctx, lockKey, w.id, 30*time.Second).Result()
	if err != nil {
		return false, err
	}

	return result, nil
}

// releaseSlotLock releases the lock for a save slot.
func (w *Worker) releaseSlotLock(slot string) {
	lockKey := "save-lock:" + slot

	// Only delete if we own the lock
	script := redis.NewScript(`
		if redis.call("get", KEYS[1]) == ARGV[1] then
			return redis.call("del", KEYS[1])
		else
			return 0
		end
	`)

	if err := script.Run(w.ctx, w.redisClient, []string{lockKey}, w.id).Err(); err != nil {
		w.log.Error("Failed to release slot lock", "error", err, "slot", slot)
	}
}

// processRequest handles a single generation request.
func (w *Worker) processRequest(req *queuePkg.Request) error {
	switch req.Type {
	case queuePkg.RequestTypePrefetchRoom:
		return w.processPrefetch(req)
	default:
		w.clearPending(req)
		return fmt.Errorf("unknown request type: %s", req.Type)
	}
}

func (w *Worker) processPrefetch(req *queuePkg.Request) error {
	start := time.Now()

	s, err := w.store.LoadSave(w.ctx, req.Slot)
	if err != nil {
		w.clearPending(req)
		return fmt.Errorf("failed to load save: %w", err)
	}

	if overlay := s.Rooms[req.RoomID]; overlay != nil && overlay.Replace != nil {
		// Already generated by an earlier request.
		w.clearPending(req)
		return nil
	}

	snap, err := w.buildSnapshot(s)
	if err != nil {
		w.clearPending(req)
		return err
	}

	raw, err := w.gms.PrefetchRoom(w.ctx, req.RoomID, req.FromRoomID, snap)
	if err != nil {
		w.clearPending(req)
		return fmt.Errorf("generator failed for room %q: %w", req.RoomID, err)
	}
	if raw == nil {
		// Not ready. Clear the marker so the next navigation retries;
		// the room stays unformed until then.
		w.clearPending(req)
		w.log.Debug("Room not yet available", "room_id", req.RoomID, "slot", req.Slot)
		return nil
	}

	raw2 := *raw
	raw2.ID = req.RoomID
	raw2.Generated = true
	raw2.Source = dialog.SourceGenerated
	room, err := world.Normalize(&raw2)
	if err != nil {
		w.clearPending(req)
		return fmt.Errorf("generated room rejected: %w", err)
	}

	if err := w.persistRoom(req.Slot, req.FromRoomID, room, s.Player.Act); err != nil {
		w.clearPending(req)
		return err
	}

	w.clearPending(req)
	w.log.Info("Generated room persisted",
		"worker_id", w.id,
		"slot", req.Slot,
		"room_id", room.ID,
		"duration", time.Since(start),
	)
	return nil
}

// persistRoom writes a generated room as a full-replacement overlay,
// retrying on sequence conflicts with the freshly observed number.
func (w *Worker) persistRoom(slot, fromRoomID string, room *world.Room, act int) error {
	entry := save.NewLogEntry(save.EventGMRoomGenerated, act,
		map[string]interface{}{"room_id": room.ID, "from": fromRoomID},
		"room:"+room.ID, "gm_action")

	patch := &save.Patch{
		Rooms:     map[string]*world.Overlay{room.ID: {Replace: room}},
		AppendLog: []save.LogEntry{entry},
	}

	s, err := w.store.LoadSave(w.ctx, slot)
	if err != nil {
		return fmt.Errorf("failed to load save: %w", err)
	}
	seq := s.Seq

	for attempt := 0; attempt < maxPersistRetries; attempt++ {
		patch.Seq = &seq
		if _, err := w.store.PatchSave(w.ctx, slot, patch); err != nil {
			if conflict, ok := storage.IsConflict(err); ok {
				seq = conflict.ServerSeq
				continue
			}
			return fmt.Errorf("failed to persist generated room: %w", err)
		}
		return nil
	}

	return fmt.Errorf("generated room for slot %q abandoned after %d conflicts", slot, maxPersistRetries)
}

// buildSnapshot assembles the GM state view from a save and the
// authored room index.
func (w *Worker) buildSnapshot(s *save.Save) (*gm.Snapshot, error) {
	snap := &gm.Snapshot{
		RoomID:    s.Player.RoomID,
		Act:       s.Player.Act,
		Flags:     s.Player.Flags,
		Inventory: s.Player.Inventory,
	}

	rooms, err := w.store.ListRooms(w.ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list rooms for snapshot: %w", err)
	}

	seen := make(map[string]bool, len(rooms))
	for _, room := range rooms {
		seen[room.ID] = true
		if room.ID == s.Player.RoomID {
			snap.RoomName = room.Name
		}
		snap.Rooms = append(snap.Rooms, indexEntry(room, s.Player.Visited))
	}
	for id, overlay := range s.Rooms {
		if overlay == nil || overlay.Replace == nil || seen[id] {
			continue
		}
		if id == s.Player.RoomID {
			snap.RoomName = overlay.Replace.Name
		}
		snap.Rooms = append(snap.Rooms, indexEntry(overlay.Replace, s.Player.Visited))
	}
	return snap, nil
}

func indexEntry(room *world.Room, visited map[string]bool) world.IndexEntry {
	dirs := make([]string, 0, len(room.Exits))
	for dir := range room.Exits {
		dirs = append(dirs, dir)
	}
	return world.IndexEntry{
		ID:        room.ID,
		Name:      room.Name,
		Visited:   visited[room.ID],
		Exits:     dirs,
		Generated: room.Generated,
	}
}

func (w *Worker) clearPending(req *queuePkg.Request) {
	if err := w.queue.ClearPending(w.ctx, req.Slot, req.RoomID); err != nil {
		w.log.Error("Failed to clear pending marker", "error", err, "request_id", req.RequestID)
	}
}
