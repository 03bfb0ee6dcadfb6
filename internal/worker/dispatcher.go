package worker

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
)

const QueueLowStock = "jobs:lowstock"

// Job is the generic envelope for all async tasks.
type Job struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// LowStockEvent is emitted when an adjustment leaves a SKU at or below its
// reorder threshold.
type LowStockEvent struct {
	SKU    string `json:"sku"`
	OnHand int64  `json:"on_hand"`
}

// Dispatcher enqueues async jobs into Redis lists.
// The worker pool dequeues them via BRPOP.
type Dispatcher struct {
	rdb *redis.Client
}

func NewDispatcher(rdb *redis.Client) *Dispatcher {
	return &Dispatcher{rdb: rdb}
}

// EnqueueLowStock pushes a low-stock notification job. Best-effort: callers
// treat a failed enqueue as a log line, never as an operation failure.
func (d *Dispatcher) EnqueueLowStock(ctx context.Context, event LowStockEvent) error {
	return d.enqueue(ctx, QueueLowStock, "lowstock", event)
}

func (d *Dispatcher) enqueue(ctx context.Context, queue, jobType string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	job := Job{Type: jobType, Payload: data}
	encoded, err := json.Marshal(job)
	if err != nil {
		return err
	}
	return d.rdb.LPush(ctx, queue, encoded).Err()
}
