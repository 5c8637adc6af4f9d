package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jwebster45206/station-engine/pkg/save"
	"github.com/jwebster45206/station-engine/pkg/storage"
)

const (
	savePrefix   = "save:"
	saveIndexKey = "saves"

	// maxTxRetries bounds WATCH retries when another writer touches the
	// key mid-transaction. Distinct from the sequence check: a WATCH
	// retry re-reads and re-applies; a sequence mismatch is a hard
	// conflict returned to the caller.
	maxTxRetries = 10
)

// RedisStorage implements the Storage interface using Redis for saves
// and the filesystem for authored room content.
type RedisStorage struct {
	client  *redis.Client
	logger  *slog.Logger
	dataDir string
}

var _ storage.Storage = (*RedisStorage)(nil)

// NewRedisStorage creates a new Redis storage instance.
func NewRedisStorage(redisURL string, dataDir string, logger *slog.Logger) (*RedisStorage, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}

	if dataDir == "" {
		dataDir = "./data"
	}

	return &RedisStorage{
		client:  redis.NewClient(opt),
		logger:  logger,
		dataDir: dataDir,
	}, nil
}

func (r *RedisStorage) Ping(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}

func (r *RedisStorage) Close() error {
	if err := r.client.Close(); err != nil {
		r.logger.Error("Failed to close Redis connection", "error", err)
		return err
	}
	return nil
}

// WaitForConnection blocks until Redis responds to ping, for container
// startup ordering.
func (r *RedisStorage) WaitForConnection(ctx context.Context) error {
	maxRetries := 30
	retryDelay := 2 * time.Second

	for i := 0; i < maxRetries; i++ {
		if err := r.Ping(ctx); err != nil {
			r.logger.Debug("Redis not ready yet", "error", err, "attempt", i+1)

			select {
			case <-ctx.Done():
				return fmt.Errorf("context cancelled while waiting for redis: %w", ctx.Err())
			case <-time.After(retryDelay):
				continue
			}
		}

		r.logger.Info("Redis connection established")
		return nil
	}

	return fmt.Errorf("redis did not become available after %d attempts", maxRetries)
}

func saveKey(slot string) string {
	return savePrefix + slot
}

// LoadSave returns the save for a slot, atomically creating the fixed
// initial state when the slot is unknown.
func (r *RedisStorage) LoadSave(ctx context.Context, slot string) (*save.Save, error) {
	key := saveKey(slot)
	var result *save.Save

	for attempt := 0; attempt < maxTxRetries; attempt++ {
		err := r.client.Watch(ctx, func(tx *redis.Tx) error {
			data, err := tx.Get(ctx, key).Result()
			if err == nil {
				var s save.Save
				if err := json.Unmarshal([]byte(data), &s); err != nil {
					return fmt.Errorf("failed to unmarshal save: %w", err)
				}
				result = &s
				return nil
			}
			if !errors.Is(err, redis.Nil) {
				return fmt.Errorf("failed to load save: %w", err)
			}

			// Unknown slot: persist the initial state inside the watch
			// so two first-loaders cannot both initialize.
			s := save.New(slot)
			payload, err := json.Marshal(s)
			if err != nil {
				return fmt.Errorf("failed to marshal save: %w", err)
			}
			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, key, payload, 0)
				pipe.SAdd(ctx, saveIndexKey, slot)
				return nil
			})
			if err != nil {
				return err
			}
			result = s
			return nil
		}, key)

		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return result, nil
	}

	return nil, fmt.Errorf("failed to load save for slot %q: too much contention", slot)
}

// ReplaceSave unconditionally overwrites a slot.
func (r *RedisStorage) ReplaceSave(ctx context.Context, slot string, s *save.Save) error {
	s.Slot = slot
	s.UpdatedAt = time.Now().UTC()

	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to marshal save: %w", err)
	}

	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, saveKey(slot), data, 0)
		pipe.SAdd(ctx, saveIndexKey, slot)
		return nil
	})
	if err != nil {
		r.logger.Error("Failed to replace save", "slot", slot, "error", err)
		return fmt.Errorf("failed to replace save: %w", err)
	}
	return nil
}

// PatchSave merges a diff into a slot under WATCH. A sequence mismatch
// is rejected immediately with *ConflictError and is never retried; only
// WATCH contention (another writer won the race for the key) re-reads
// and re-applies.
func (r *RedisStorage) PatchSave(ctx context.Context, slot string, p *save.Patch) (uint64, error) {
	key := saveKey(slot)
	var newSeq uint64

	for attempt := 0; attempt < maxTxRetries; attempt++ {
		err := r.client.Watch(ctx, func(tx *redis.Tx) error {
			s, err := readOrInitSave(ctx, tx, slot)
			if err != nil {
				return err
			}

			if p.Seq != nil && *p.Seq != s.Seq {
				return &storage.ConflictError{ClientSeq: *p.Seq, ServerSeq: s.Seq}
			}

			s.Apply(p)
			s.Seq++
			s.UpdatedAt = time.Now().UTC()

			data, err := json.Marshal(s)
			if err != nil {
				return fmt.Errorf("failed to marshal save: %w", err)
			}

			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, key, data, 0)
				pipe.SAdd(ctx, saveIndexKey, slot)
				return nil
			})
			if err != nil {
				return err
			}
			newSeq = s.Seq
			return nil
		}, key)

		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return 0, err
		}
		return newSeq, nil
	}

	return 0, fmt.Errorf("failed to patch save for slot %q: too much contention", slot)
}

// readOrInitSave reads a slot inside a watched transaction, returning
// the fixed initial state for an unknown slot.
func readOrInitSave(ctx context.Context, tx *redis.Tx, slot string) (*save.Save, error) {
	data, err := tx.Get(ctx, saveKey(slot)).Result()
	if errors.Is(err, redis.Nil) {
		return save.New(slot), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load save: %w", err)
	}

	var s save.Save
	if err := json.Unmarshal([]byte(data), &s); err != nil {
		return nil, fmt.Errorf("failed to unmarshal save: %w", err)
	}
	return &s, nil
}

func (r *RedisStorage) AppendLog(ctx context.Context, slot string, entries []save.LogEntry) (uint64, error) {
	return r.PatchSave(ctx, slot, &save.Patch{AppendLog: entries})
}

func (r *RedisStorage) GetLog(ctx context.Context, slot string, tags []string) ([]save.LogEntry, error) {
	data, err := r.client.Get(ctx, saveKey(slot)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("slot %q: %w", slot, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load save: %w", err)
	}

	var s save.Save
	if err := json.Unmarshal([]byte(data), &s); err != nil {
		return nil, fmt.Errorf("failed to unmarshal save: %w", err)
	}
	return save.FilterLog(s.Log, tags), nil
}

func (r *RedisStorage) ListSaves(ctx context.Context) ([]save.Summary, error) {
	slots, err := r.client.SMembers(ctx, saveIndexKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list saves: %w", err)
	}

	summaries := make([]save.Summary, 0, len(slots))
	for _, slot := range slots {
		data, err := r.client.Get(ctx, saveKey(slot)).Result()
		if errors.Is(err, redis.Nil) {
			// Stale index entry; drop it.
			r.client.SRem(ctx, saveIndexKey, slot)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to load save for slot %q: %w", slot, err)
		}

		var s save.Save
		if err := json.Unmarshal([]byte(data), &s); err != nil {
			r.logger.Warn("Skipping unreadable save", "slot", slot, "error", err)
			continue
		}
		summaries = append(summaries, s.Summarize())
	}

	sort.Slice(summaries, func(i, j int) bool { return summaries[i].Slot < summaries[j].Slot })
	return summaries, nil
}

func (r *RedisStorage) DeleteSave(ctx context.Context, slot string) error {
	deleted, err := r.client.Del(ctx, saveKey(slot)).Result()
	if err != nil {
		return fmt.Errorf("failed to delete save: %w", err)
	}
	r.client.SRem(ctx, saveIndexKey, slot)

	if deleted == 0 {
		return fmt.Errorf("slot %q: %w", slot, storage.ErrNotFound)
	}
	return nil
}
