package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/jwebster45206/station-engine/pkg/storage"
	"github.com/jwebster45206/station-engine/pkg/world"
)

// Authored room content (filesystem-backed)

func (r *RedisStorage) GetRoom(ctx context.Context, id string) (*world.Room, error) {
	path := filepath.Join(r.dataDir, "rooms", id+".json")

	file, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("room %q: %w", id, storage.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to read room file: %w", err)
	}

	var room world.Room
	if err := json.Unmarshal(file, &room); err != nil {
		return nil, fmt.Errorf("failed to unmarshal room %q: %w", id, err)
	}
	if room.ID == "" {
		room.ID = id
	}
	return &room, nil
}

// ListRooms returns every parseable authored room. Unreadable files are
// skipped with a warning; one bad document never takes down the station.
func (r *RedisStorage) ListRooms(ctx context.Context) ([]*world.Room, error) {
	roomsDir := filepath.Join(r.dataDir, "rooms")
	rooms := make([]*world.Room, 0)

	err := filepath.WalkDir(roomsDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || filepath.Ext(path) != ".json" {
			return nil
		}

		file, err := os.ReadFile(path)
		if err != nil {
			r.logger.Warn("Failed to read room file", "path", path, "error", err)
			return nil
		}

		var room world.Room
		if err := json.Unmarshal(file, &room); err != nil {
			r.logger.Warn("Failed to unmarshal room file", "path", path, "error", err)
			return nil
		}
		if room.ID == "" {
			base := filepath.Base(path)
			room.ID = base[:len(base)-len(".json")]
		}
		rooms = append(rooms, &room)
		return nil
	})

	if err != nil {
		r.logger.Error("Failed to walk rooms directory", "error", err)
		return nil, fmt.Errorf("failed to list rooms: %w", err)
	}

	sort.Slice(rooms, func(i, j int) bool { return rooms[i].ID < rooms[j].ID })
	return rooms, nil
}
