package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/jwebster45206/station-engine/pkg/dialog"
	"github.com/jwebster45206/station-engine/pkg/gm"
	"github.com/jwebster45206/station-engine/pkg/save"
	"github.com/jwebster45206/station-engine/pkg/storage"
	"github.com/jwebster45206/station-engine/pkg/world"
)

const (
	// maxPatchRetries bounds conflict retries for awaited writes
	// (GM results, act transitions).
	maxPatchRetries = 5

	genericLockedMessage = "The way is sealed."
)

// Outcome classifies the result of a movement attempt.
type Outcome string

const (
	OutcomeMoved    Outcome = "moved"
	OutcomeBlocked  Outcome = "blocked"
	OutcomeUnformed Outcome = "unformed"
	OutcomeInvalid  Outcome = "invalid"
)

// MoveResult reports a movement attempt. RoomID is the room the player
// is in afterward (the new room when moved, otherwise unchanged).
type MoveResult struct {
	Outcome Outcome `json:"outcome"`
	RoomID  string  `json:"room_id"`
	Reason  string  `json:"reason,omitempty"`
}

// Session is the single mutable state container for one play session:
// the room registry, the working copy of player state and overlays, and
// the boundaries (store, GM, task dispatcher). The store is the durable
// mirror; the session is the working copy.
type Session struct {
	mu       sync.Mutex
	log      *slog.Logger
	registry *world.Registry
	store    storage.Storage
	gms      gm.Service
	tasks    *Dispatcher
	resolver *dialog.Resolver

	slot     string
	player   save.Player
	overlays map[string]*world.Overlay
	seq      uint64
}

// New loads (or lazily creates) the save for a slot, seeds the registry
// with authored rooms plus previously generated replacements, and
// returns a ready session.
func New(ctx context.Context, slot string, store storage.Storage, gms gm.Service, log *slog.Logger) (*Session, error) {
	if log == nil {
		log = slog.Default()
	}

	s, err := store.LoadSave(ctx, slot)
	if err != nil {
		return nil, fmt.Errorf("failed to load save for slot %q: %w", slot, err)
	}

	registry := world.NewRegistry(log)

	authored, err := store.ListRooms(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load authored rooms: %w", err)
	}
	for _, raw := range authored {
		room, err := world.Normalize(raw)
		if err != nil {
			// Malformed authored content is skipped, never fatal.
			log.Warn("skipping malformed room document", "error", err)
			continue
		}
		registry.Register(room)
	}

	sess := &Session{
		log:      log.With("slot", slot),
		registry: registry,
		store:    store,
		gms:      gms,
		tasks:    NewDispatcher(2, 32, log),
		resolver: dialog.NewResolver(log),
		slot:     slot,
		player:   s.Player,
		overlays: make(map[string]*world.Overlay, len(s.Rooms)),
		seq:      s.Seq,
	}

	// Re-register rooms the GM generated in earlier sessions.
	for roomID, overlay := range s.Rooms {
		sess.overlays[roomID] = overlay
		if overlay != nil && overlay.Replace != nil {
			room, err := world.Normalize(overlay.Replace)
			if err != nil {
				log.Warn("skipping malformed generated room", "room_id", roomID, "error", err)
				continue
			}
			registry.Register(room)
		}
	}

	return sess, nil
}

// Close stops background task processing.
func (s *Session) Close() {
	s.tasks.Close()
}

// Registry exposes the room registry for the presentation boundary.
func (s *Session) Registry() *world.Registry {
	return s.registry
}

// Player returns a copy of the working player state.
func (s *Session) Player() save.Player {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.player
	p.Flags = copyBoolMap(s.player.Flags)
	p.Visited = copyBoolMap(s.player.Visited)
	p.Inventory = append([]string(nil), s.player.Inventory...)
	return p
}

// Seq returns the last sequence number this session observed.
func (s *Session) Seq() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seq
}

// CurrentRoom returns the player's room with its accumulated overlay
// applied, or nil when the current room is not registered.
func (s *Session) CurrentRoom() *world.Room {
	s.mu.Lock()
	roomID := s.player.RoomID
	s.mu.Unlock()
	return s.RoomView(roomID)
}

// RoomView returns a room with its overlay applied.
func (s *Session) RoomView(roomID string) *world.Room {
	base := s.registry.Get(roomID)
	if base == nil {
		return nil
	}
	s.mu.Lock()
	overlay := s.overlays[roomID]
	s.mu.Unlock()
	if overlay.IsEmpty() {
		return base
	}
	return world.ApplyOverlay(base, overlay)
}

// Snapshot builds the GM state view: player position and state plus a
// lightweight index of every registered room.
func (s *Session) Snapshot() *gm.Snapshot {
	s.mu.Lock()
	snap := &gm.Snapshot{
		RoomID:    s.player.RoomID,
		Act:       s.player.Act,
		Flags:     copyBoolMap(s.player.Flags),
		Inventory: append([]string(nil), s.player.Inventory...),
	}
	visited := copyBoolMap(s.player.Visited)
	s.mu.Unlock()

	if room := s.registry.Get(snap.RoomID); room != nil {
		snap.RoomName = room.Name
	}
	snap.Rooms = s.registry.Index(visited)
	return snap
}

// AttemptMove resolves a navigation attempt in the given direction.
// Outcomes: invalid (no current room, or no exit that way), blocked
// (gating flag unset), unformed (target not yet generated), moved.
// Unformed is always reported distinctly from blocked.
func (s *Session) AttemptMove(ctx context.Context, direction string) MoveResult {
	s.mu.Lock()
	currentID := s.player.RoomID
	s.mu.Unlock()

	view := s.RoomView(currentID)
	if view == nil {
		return MoveResult{Outcome: OutcomeInvalid, RoomID: currentID, Reason: "current room is not registered"}
	}

	exit, ok := view.Exits[direction]
	if !ok {
		return MoveResult{Outcome: OutcomeInvalid, RoomID: currentID, Reason: fmt.Sprintf("no exit %s", direction)}
	}

	if exit.RequiresFlag != "" {
		s.mu.Lock()
		open := s.player.Flags[exit.RequiresFlag]
		s.mu.Unlock()
		if !open {
			reason := exit.LockedMessage
			if reason == "" {
				reason = genericLockedMessage
			}
			return MoveResult{Outcome: OutcomeBlocked, RoomID: currentID, Reason: reason}
		}
	}

	if !s.registry.Has(exit.To) {
		// The space beyond has not been generated yet. Make sure a
		// prefetch is in flight, but report the attempt distinctly.
		s.ensurePrefetch(exit.To, currentID)
		return MoveResult{Outcome: OutcomeUnformed, RoomID: currentID, Reason: "that space has not formed yet"}
	}

	s.mu.Lock()
	s.player.RoomID = exit.To
	if s.player.Visited == nil {
		s.player.Visited = make(map[string]bool)
	}
	s.player.Visited[exit.To] = true
	act := s.player.Act
	s.mu.Unlock()

	entry := save.NewLogEntry(save.EventRoomEntered, act,
		map[string]interface{}{"room_id": exit.To, "from": currentID, "direction": direction},
		"room:"+exit.To)
	s.patchAsync(&save.Patch{
		Player:    &save.PlayerPatch{RoomID: exit.To, Visited: []string{exit.To}},
		AppendLog: []save.LogEntry{entry},
	})

	// Speculative generation for every unformed neighbor of the room
	// just entered.
	if next := s.RoomView(exit.To); next != nil {
		for _, nextExit := range next.Exits {
			if !s.registry.Has(nextExit.To) {
				s.ensurePrefetch(nextExit.To, exit.To)
			}
		}
	}

	return MoveResult{Outcome: OutcomeMoved, RoomID: exit.To}
}

// ensurePrefetch dispatches at most one prefetch task per unresolved
// room id. The pending marker is cleared only when the room registers,
// or when the request fails outright so a later attempt can retry.
func (s *Session) ensurePrefetch(roomID, fromRoomID string) {
	if !s.registry.MarkPending(roomID) {
		return
	}

	snap := s.Snapshot()
	submitted := s.tasks.Submit(Task{
		Name: "prefetch:" + roomID,
		Run: func(ctx context.Context) {
			room, err := s.gms.PrefetchRoom(ctx, roomID, fromRoomID, snap)
			if err != nil {
				s.log.Warn("room prefetch failed", "room_id", roomID, "error", err)
				s.registry.ClearPending(roomID)
				return
			}
			if room == nil {
				// Not yet available; stays unformed until retried.
				s.log.Debug("room not yet available from gm", "room_id", roomID)
				s.registry.ClearPending(roomID)
				return
			}
			if err := s.AcceptGeneratedRoom(ctx, room, fromRoomID); err != nil {
				s.log.Error("failed to accept generated room", "room_id", roomID, "error", err)
			}
		},
	})
	if !submitted {
		s.registry.ClearPending(roomID)
	}
}

// AcceptGeneratedRoom normalizes a GM-produced room, registers it
// (clearing its pending marker), and persists it as a full-replacement
// overlay. The durable write is awaited and retried on conflict; GM
// results must not be lost.
func (s *Session) AcceptGeneratedRoom(ctx context.Context, raw *world.Room, fromRoomID string) error {
	raw2 := *raw
	raw2.Generated = true
	raw2.Source = dialog.SourceGenerated
	room, err := world.Normalize(&raw2)
	if err != nil {
		s.registry.ClearPending(raw.ID)
		return fmt.Errorf("generated room rejected: %w", err)
	}

	s.registry.Register(room)

	s.mu.Lock()
	s.overlays[room.ID] = world.MergeOverlay(s.overlays[room.ID], &world.Overlay{Replace: room})
	act := s.player.Act
	s.mu.Unlock()

	entry := save.NewLogEntry(save.EventGMRoomGenerated, act,
		map[string]interface{}{"room_id": room.ID, "from": fromRoomID},
		"room:"+room.ID, "gm_action")
	err = s.patchAwaited(ctx, &save.Patch{
		Rooms:     map[string]*world.Overlay{room.ID: {Replace: room}},
		AppendLog: []save.LogEntry{entry},
	})
	if err != nil {
		return fmt.Errorf("failed to persist generated room %q: %w", room.ID, err)
	}

	s.log.Info("generated room registered", "room_id", room.ID, "from", fromRoomID)
	return nil
}

// StartDialog resolves an NPC's dialog entry into a fully inlined tree.
func (s *Session) StartDialog(ctx context.Context, npcID string) (*dialog.ResolvedNode, error) {
	view := s.CurrentRoom()
	if view == nil {
		return nil, fmt.Errorf("current room is not registered")
	}

	var entryID string
	for _, npc := range view.NPCs {
		if npc.ID == npcID {
			entryID = npc.Dialog
			break
		}
	}
	if entryID == "" {
		return nil, fmt.Errorf("npc %q: %w", npcID, storage.ErrNotFound)
	}

	tree := s.resolver.Resolve(view.Dialog, entryID)
	if tree == nil {
		return nil, nil
	}

	s.mu.Lock()
	act := s.player.Act
	s.mu.Unlock()
	s.patchAsync(&save.Patch{AppendLog: []save.LogEntry{
		save.NewLogEntry(save.EventDialogStarted, act,
			map[string]interface{}{"npc_id": npcID, "node_id": entryID},
			"room:"+view.ID, "npc:"+npcID),
	}})

	return tree, nil
}

// ChooseOption applies a chosen option's side effects to the working
// state and records the choice. Terminal options also end the dialog.
func (s *Session) ChooseOption(ctx context.Context, npcID string, opt dialog.ResolvedOption) {
	s.mu.Lock()
	act := s.player.Act
	roomID := s.player.RoomID
	entries := []save.LogEntry{
		save.NewLogEntry(save.EventDialogChosen, act,
			map[string]interface{}{"npc_id": npcID, "text": opt.Text},
			"room:"+roomID, "npc:"+npcID),
	}
	patch := &save.Patch{Player: &save.PlayerPatch{}}

	if opt.SetFlag != "" && !s.player.Flags[opt.SetFlag] {
		if s.player.Flags == nil {
			s.player.Flags = make(map[string]bool)
		}
		s.player.Flags[opt.SetFlag] = true
		patch.Player.Flags = map[string]bool{opt.SetFlag: true}
		entries = append(entries, save.NewLogEntry(save.EventFlagSet, act,
			map[string]interface{}{"flag": opt.SetFlag}, "room:"+roomID))
	}
	if opt.GiveItem != "" && !containsItem(s.player.Inventory, opt.GiveItem) {
		s.player.Inventory = append(s.player.Inventory, opt.GiveItem)
		patch.Player.Inventory = []string{opt.GiveItem}
		entries = append(entries, save.NewLogEntry(save.EventItemTaken, act,
			map[string]interface{}{"item": opt.GiveItem}, "room:"+roomID))
	}
	if opt.Next == nil {
		entries = append(entries, save.NewLogEntry(save.EventDialogEnded, act,
			map[string]interface{}{"npc_id": npcID}, "room:"+roomID, "npc:"+npcID))
	}
	s.mu.Unlock()

	patch.AppendLog = entries
	s.patchAsync(patch)
}

// UseInteractable applies an interactable's effects to the working
// state and records the use.
func (s *Session) UseInteractable(ctx context.Context, id string) (string, error) {
	view := s.CurrentRoom()
	if view == nil {
		return "", fmt.Errorf("current room is not registered")
	}

	var found *world.Interactable
	for i := range view.Interactables {
		if view.Interactables[i].ID == id {
			found = &view.Interactables[i]
			break
		}
	}
	if found == nil {
		return "", fmt.Errorf("interactable %q: %w", id, storage.ErrNotFound)
	}

	s.mu.Lock()
	act := s.player.Act
	entries := []save.LogEntry{
		save.NewLogEntry(save.EventInteractableUsed, act,
			map[string]interface{}{"interactable_id": id}, "room:"+view.ID),
	}
	patch := &save.Patch{Player: &save.PlayerPatch{}}
	if found.SetsFlag != "" && !s.player.Flags[found.SetsFlag] {
		if s.player.Flags == nil {
			s.player.Flags = make(map[string]bool)
		}
		s.player.Flags[found.SetsFlag] = true
		patch.Player.Flags = map[string]bool{found.SetsFlag: true}
		entries = append(entries, save.NewLogEntry(save.EventFlagSet, act,
			map[string]interface{}{"flag": found.SetsFlag}, "room:"+view.ID))
	}
	if found.GivesItem != "" && !containsItem(s.player.Inventory, found.GivesItem) {
		s.player.Inventory = append(s.player.Inventory, found.GivesItem)
		patch.Player.Inventory = []string{found.GivesItem}
		entries = append(entries, save.NewLogEntry(save.EventItemTaken, act,
			map[string]interface{}{"item": found.GivesItem}, "room:"+view.ID))
	}
	s.mu.Unlock()

	patch.AppendLog = entries
	s.patchAsync(patch)
	return found.UseText, nil
}

// RequestOptions asks the GM for extra dialog options for an NPC and
// persists them as an injected-dialog overlay. Awaited: generated
// options offered to the player must survive a reload.
func (s *Session) RequestOptions(ctx context.Context, npcID string, history []string) ([]dialog.Option, error) {
	opts, err := s.gms.GenerateDialogOptions(ctx, npcID, s.Snapshot(), history)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", gm.ErrUnavailable, err)
	}
	if len(opts) == 0 {
		return nil, nil
	}

	// Provenance is stamped here, never taken from the generator.
	for i := range opts {
		opts[i].Source = dialog.SourceGenerated
	}

	s.mu.Lock()
	roomID := s.player.RoomID
	act := s.player.Act
	overlay := &world.Overlay{InjectDialog: map[string][]dialog.Option{npcID: opts}}
	s.overlays[roomID] = world.MergeOverlay(s.overlays[roomID], overlay)
	s.mu.Unlock()

	entry := save.NewLogEntry(save.EventGMOptionsInject, act,
		map[string]interface{}{"npc_id": npcID, "count": len(opts)},
		"room:"+roomID, "npc:"+npcID, "gm_action")
	if err := s.patchAwaited(ctx, &save.Patch{
		Rooms:     map[string]*world.Overlay{roomID: overlay},
		AppendLog: []save.LogEntry{entry},
	}); err != nil {
		return nil, err
	}

	return opts, nil
}

// AskStation requests a response from the station itself. The speaker
// identity is reserved and always overwritten.
func (s *Session) AskStation(ctx context.Context, message string) (*dialog.Node, error) {
	node, err := s.gms.GenerateStationResponse(ctx, s.Snapshot(), message)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", gm.ErrUnavailable, err)
	}
	if node == nil {
		return nil, nil
	}
	node.Speaker = gm.SpeakerStation
	node.Source = dialog.SourceStation
	return node, nil
}

// AdvanceAct transitions the save to a new act with an unconditional
// replace. Slot-wide by design; the caller is responsible for not
// racing itself.
func (s *Session) AdvanceAct(ctx context.Context, act int) error {
	loaded, err := s.store.LoadSave(ctx, s.slot)
	if err != nil {
		return fmt.Errorf("failed to load save for act transition: %w", err)
	}

	s.mu.Lock()
	s.player.Act = act
	loaded.Player = s.player
	s.mu.Unlock()

	loaded.Log = append(loaded.Log, save.NewLogEntry(save.EventActChanged, act,
		map[string]interface{}{"act": act}, "act"))

	if err := s.store.ReplaceSave(ctx, s.slot, loaded); err != nil {
		return fmt.Errorf("failed to replace save for act transition: %w", err)
	}

	s.mu.Lock()
	s.seq = loaded.Seq
	s.mu.Unlock()
	return nil
}

// patchAsync submits a fire-and-forget gameplay patch. A conflict means
// another writer advanced the slot first; the patch is dropped with a
// loud diagnostic and gameplay continues.
func (s *Session) patchAsync(p *save.Patch) {
	s.mu.Lock()
	seq := s.seq
	s.mu.Unlock()
	p.Seq = &seq

	s.tasks.Submit(Task{
		Name: "patch:" + s.slot,
		Run: func(ctx context.Context) {
			newSeq, err := s.store.PatchSave(ctx, s.slot, p)
			if err != nil {
				if conflict, ok := storage.IsConflict(err); ok {
					s.log.Error("gameplay patch dropped on concurrency conflict",
						"client_seq", conflict.ClientSeq, "server_seq", conflict.ServerSeq)
					s.observeSeq(conflict.ServerSeq)
					return
				}
				s.log.Error("gameplay patch failed", "error", err)
				return
			}
			s.observeSeq(newSeq)
		},
	})
}

// patchAwaited applies a must-not-be-lost patch, reloading the sequence
// number and retrying on conflict.
func (s *Session) patchAwaited(ctx context.Context, p *save.Patch) error {
	for attempt := 0; attempt < maxPatchRetries; attempt++ {
		s.mu.Lock()
		seq := s.seq
		s.mu.Unlock()
		p.Seq = &seq

		newSeq, err := s.store.PatchSave(ctx, s.slot, p)
		if err == nil {
			s.observeSeq(newSeq)
			return nil
		}
		if conflict, ok := storage.IsConflict(err); ok {
			s.observeSeq(conflict.ServerSeq)
			continue
		}
		return err
	}
	return fmt.Errorf("patch for slot %q abandoned after %d conflicts", s.slot, maxPatchRetries)
}

func (s *Session) observeSeq(seq uint64) {
	s.mu.Lock()
	if seq > s.seq {
		s.seq = seq
	}
	s.mu.Unlock()
}

func copyBoolMap(m map[string]bool) map[string]bool {
	out := make(map[string]bool, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func containsItem(items []string, item string) bool {
	for _, i := range items {
		if i == item {
			return true
		}
	}
	return false
}
