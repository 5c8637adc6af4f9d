package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	queuePkg "github.com/jwebster45206/station-engine/pkg/queue"
)

const (
	requestsKey = "gm-requests"

	// pendingTTL caps how long a prefetch marker can linger if its
	// request is lost. After expiry the room can be requested again.
	pendingTTL = 10 * time.Minute
)

// PrefetchQueue manages the global queue of GM generation requests.
// A pending marker per slot and room id keeps enqueue at-most-once
// while a request is in flight.
type PrefetchQueue struct {
	client *Client
}

func NewPrefetchQueue(client *Client) *PrefetchQueue {
	return &PrefetchQueue{
		client: client,
	}
}

func pendingKey(slot, roomID string) string {
	return fmt.Sprintf("prefetch-pending:%s:%s", slot, roomID)
}

// Enqueue adds a prefetch request unless one for the same slot and room
// is already pending. Returns true if the request was enqueued.
func (q *PrefetchQueue) Enqueue(ctx context.Context, req *queuePkg.Request) (bool, error) {
	fresh, err := q.client.rdb.SetNX(ctx, pendingKey(req.Slot, req.RoomID), req.RequestID, pendingTTL).Result()
	if err != nil {
		return false, fmt.Errorf("failed to mark prefetch pending: %w", err)
	}
	if !fresh {
		return false, nil
	}

	data, err := req.ToJSON()
	if err != nil {
		q.client.rdb.Del(ctx, pendingKey(req.Slot, req.RoomID))
		return false, fmt.Errorf("failed to serialize request: %w", err)
	}

	if err := q.client.rdb.RPush(ctx, requestsKey, data).Err(); err != nil {
		q.client.rdb.Del(ctx, pendingKey(req.Slot, req.RoomID))
		return false, fmt.Errorf("failed to enqueue request: %w", err)
	}
	return true, nil
}

// IsPending reports whether a prefetch for the slot and room is in flight.
func (q *PrefetchQueue) IsPending(ctx context.Context, slot, roomID string) (bool, error) {
	count, err := q.client.rdb.Exists(ctx, pendingKey(slot, roomID)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check pending marker: %w", err)
	}
	return count > 0, nil
}

// ClearPending drops the pending marker so a later enqueue can retry.
func (q *PrefetchQueue) ClearPending(ctx context.Context, slot, roomID string) error {
	if err := q.client.rdb.Del(ctx, pendingKey(slot, roomID)).Err(); err != nil {
		return fmt.Errorf("failed to clear pending marker: %w", err)
	}
	return nil
}

// DequeueRequest removes and returns the next request from the global queue.
// Returns nil if queue is empty.
func (q *PrefetchQueue) DequeueRequest(ctx context.Context) (*queuePkg.Request, error) {
	result, err := q.client.rdb.LPop(ctx, requestsKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to dequeue request: %w", err)
	}
	return queuePkg.FromJSON([]byte(result))
}

// BlockingDequeueRequest blocks until a request is available, then
// returns it. A zero timeout waits forever.
func (q *PrefetchQueue) BlockingDequeueRequest(ctx context.Context, timeout time.Duration) (*queuePkg.Request, error) {
	result, err := q.client.rdb.BLPop(ctx, timeout, requestsKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to dequeue request: %w", err)
	}

	// BLPop returns [key, value]
	if len(result) != 2 {
		return nil, fmt.Errorf("unexpected BLPop result: %v", result)
	}

	return queuePkg.FromJSON([]byte(result[1]))
}

// Depth returns the number of requests in the global queue.
func (q *PrefetchQueue) Depth(ctx context.Context) (int, error) {
	count, err := q.client.rdb.LLen(ctx, requestsKey).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to get queue depth: %w", err)
	}
	return int(count), nil
}
