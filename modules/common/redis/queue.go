package redis

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

// QueueKey is the list new simulation runs are pushed onto; the worker
// consumes it with BRPOP.
const QueueKey = "simulations:queue"

const gateKeyPrefix = "simulations:running:"

// Queue enqueues scan ids for the background worker.
type Queue struct {
	rdb *redis.Client
}

// NewQueue wraps an existing client.
func NewQueue(rdb *redis.Client) *Queue {
	return &Queue{rdb: rdb}
}

// Enqueue pushes a scan onto the worker queue and returns the queue length.
func (q *Queue) Enqueue(ctx context.Context, scanID string) (int64, error) {
	if err := q.rdb.LPush(ctx, QueueKey, scanID).Err(); err != nil {
		return 0, fmt.Errorf("failed to enqueue scan %s: %w", scanID, err)
	}
	length, err := q.rdb.LLen(ctx, QueueKey).Result()
	if err != nil {
		length = 0
	}
	log.Printf("📥 [Queue] Scan %s enqueued (position: %d)", scanID, length)
	return length, nil
}

// Gate is the per-scan mutual-exclusion gate. The "start if not started"
// check and the queued write are not atomic on their own; SETNX closes the
// window between them. The TTL is a crash backstop only - the owner releases
// on terminal persist.
type Gate struct {
	rdb *redis.Client
}

// NewGate wraps an existing client.
func NewGate(rdb *redis.Client) *Gate {
	return &Gate{rdb: rdb}
}

// TryAcquire claims the run slot for a scan. Returns false when another
// caller already holds it.
func (g *Gate) TryAcquire(ctx context.Context, scanID string, ttl time.Duration) (bool, error) {
	ok, err := g.rdb.SetNX(ctx, gateKeyPrefix+scanID, "1", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to acquire run gate for %s: %w", scanID, err)
	}
	return ok, nil
}

// Release frees the run slot after a terminal status is persisted.
func (g *Gate) Release(ctx context.Context, scanID string) error {
	if err := g.rdb.Del(ctx, gateKeyPrefix+scanID).Err(); err != nil {
		return fmt.Errorf("failed to release run gate for %s: %w", scanID, err)
	}
	return nil
}
