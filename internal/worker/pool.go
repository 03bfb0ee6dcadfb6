package worker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// StartWorkerPool launches numWorkers goroutines consuming the low-stock
// queue. Each goroutine blocks on BRPOP — zero CPU when idle.
func StartWorkerPool(ctx context.Context, rdb *redis.Client, numWorkers int) {
	for i := 0; i < numWorkers; i++ {
		go runWorker(ctx, rdb, i)
	}
	log.Info().Msgf("worker pool started with %d workers", numWorkers)
}

func runWorker(ctx context.Context, rdb *redis.Client, id int) {
	for {
		select {
		case <-ctx.Done():
			log.Info().Msgf("worker %d shutting down", id)
			return
		default:
			// Blocking pop — waits up to 5s then loops to check ctx
			result, err := rdb.BRPop(ctx, 5*time.Second, QueueLowStock).Result()
			if err != nil {
				continue // timeout or context cancelled
			}
			if len(result) < 2 {
				continue
			}
			handleJob(id, []byte(result[1]))
		}
	}
}

func handleJob(workerID int, raw []byte) {
	var job Job
	if err := json.Unmarshal(raw, &job); err != nil {
		log.Error().Err(err).Int("worker", workerID).Msg("malformed job payload")
		return
	}
	switch job.Type {
	case "lowstock":
		var event LowStockEvent
		if err := json.Unmarshal(job.Payload, &event); err != nil {
			log.Error().Err(err).Int("worker", workerID).Msg("malformed lowstock event")
			return
		}
		// Notification sink: downstream reorder tooling tails these log lines.
		log.Warn().
			Str("sku", event.SKU).
			Int64("on_hand", event.OnHand).
			Msg("low stock")
	default:
		log.Error().Str("type", job.Type).Int("worker", workerID).Msg("unknown job type")
	}
}
