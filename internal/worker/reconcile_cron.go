package worker

// reconcile_cron.go
// Background goroutines guarding the two durable-state hygiene invariants:
//   - cached on-hand totals must match a full ledger re-sum (drift detection);
//   - reserved idempotency records past expiry must be purged so crashed
//     operations never poison a key.

import (
	"context"
	"time"

	"invcore/internal/cache"
	"invcore/internal/repository"

	"github.com/rs/zerolog/log"
)

const expirySweepInterval = time.Minute

// ReconcilerConfig holds all dependencies for the reconciliation goroutine.
type ReconcilerConfig struct {
	Ledger   repository.StockLedger
	OnHand   *cache.OnHandCache
	Interval time.Duration
}

// StartReconciler launches a goroutine that periodically re-sums the ledger
// and repairs any cached total that drifted. The ledger is the source of
// truth; the cache is only ever corrected toward it.
func StartReconciler(ctx context.Context, cfg ReconcilerConfig) {
	if cfg.Interval <= 0 {
		cfg.Interval = 10 * time.Minute
	}
	go func() {
		ticker := time.NewTicker(cfg.Interval)
		defer ticker.Stop()

		log.Info().Dur("interval", cfg.Interval).Msg("reconciler: started")

		for {
			select {
			case <-ctx.Done():
				log.Info().Msg("reconciler: shutting down")
				return
			case <-ticker.C:
				if _, err := ReconcileOnHand(ctx, cfg.Ledger, cfg.OnHand); err != nil {
					log.Error().Err(err).Msg("reconciler: sweep failed")
				}
			}
		}
	}()
}

// ReconcileOnHand re-sums the whole ledger and overwrites any drifted cached
// total. Returns the number of SKUs whose cache entry was wrong. Also used by
// the one-shot reconcile command.
func ReconcileOnHand(ctx context.Context, ledger repository.StockLedger, onHand *cache.OnHandCache) (int, error) {
	totals, err := ledger.SumAll(ctx)
	if err != nil {
		return 0, err
	}

	drifted := 0
	for sku, total := range totals {
		cached, ok := onHand.Get(ctx, sku)
		if ok && cached != total {
			drifted++
			log.Warn().
				Str("sku", sku).
				Int64("cached", cached).
				Int64("ledger", total).
				Msg("reconciler: on-hand cache drift repaired")
		}
		onHand.Set(ctx, sku, total)
	}
	log.Info().Int("skus", len(totals)).Int("drifted", drifted).Msg("reconciler: sweep complete")
	return drifted, nil
}

// StartExpirySweep launches a goroutine that purges expired idempotency
// reservations every minute.
func StartExpirySweep(ctx context.Context, idem repository.IdempotencyIndex) {
	go func() {
		ticker := time.NewTicker(expirySweepInterval)
		defer ticker.Stop()

		log.Info().Msg("expiry_sweep: started")

		for {
			select {
			case <-ctx.Done():
				log.Info().Msg("expiry_sweep: shutting down")
				return
			case <-ticker.C:
				purged, err := idem.PurgeExpired(ctx, time.Now().UTC())
				if err != nil {
					log.Error().Err(err).Msg("expiry_sweep: purge failed")
					continue
				}
				if purged > 0 {
					log.Info().Int64("purged", purged).Msg("expiry_sweep: stale reservations removed")
				}
			}
		}
	}()
}
