// cmd/reconcile/main.go — one-shot ledger reconciliation sweep.
// Re-sums the stock ledger, repairs any drifted cached on-hand total, and
// exits nonzero when drift was found so a cron wrapper can alert on it.
// Usage: go run ./cmd/reconcile
package main

import (
	"context"
	"os"

	"invcore/internal/cache"
	"invcore/internal/config"
	"invcore/internal/infra"
	"invcore/internal/repository"
	"invcore/internal/worker"

	"github.com/rs/zerolog/log"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	db, err := infra.NewDatabase(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to postgres")
	}

	rdb, err := infra.NewRedis(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}

	drifted, err := worker.ReconcileOnHand(context.Background(),
		repository.NewStockLedger(db), cache.NewOnHandCache(rdb))
	if err != nil {
		log.Fatal().Err(err).Msg("reconciliation failed")
	}
	if drifted > 0 {
		log.Warn().Int("drifted", drifted).Msg("cache drift detected and repaired")
		os.Exit(1)
	}
}
