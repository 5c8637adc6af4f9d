package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	queuePkg "github.com/jwebster45206/station-engine/pkg/queue"
)

func main() {
	// Connect to Redis
	redisOpts, err := redis.ParseURL("redis://localhost:6379")
	if err != nil {
		log.Fatal("Failed to parse Redis URL:", err)
	}
	client := redis.NewClient(redisOpts)
	defer client.Close()

	ctx := context.Background()

	// Test connection
	if err := client.Ping(ctx).Err(); err != nil {
		log.Fatal("Failed to connect to Redis:", err)
	}

	fmt.Println("Connected to Redis successfully!")

	// Create a test prefetch request
	req := &queuePkg.Request{
		RequestID:  uuid.New().String(),
		Type:       queuePkg.RequestTypePrefetchRoom,
		Slot:       "test-slot",
		RoomID:     "cargo_hold",
		FromRoomID: "arrival_bay",
		EnqueuedAt: time.Now(),
	}

	data, err := req.ToJSON()
	if err != nil {
		log.Fatal("Failed to marshal request:", err)
	}

	if err := client.RPush(ctx, "gm-requests", data).Err(); err != nil {
		log.Fatal("Failed to enqueue request:", err)
	}

	fmt.Printf("Enqueued prefetch request: %s\n", req.RequestID)

	// Check queue depth
	depth, err := client.LLen(ctx, "gm-requests").Result()
	if err != nil {
		log.Fatal("Failed to get queue depth:", err)
	}

	fmt.Printf("Queue depth: %d\n", depth)
}
