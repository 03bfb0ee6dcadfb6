//go:build integration

package e2e

// Exercises the idempotency index against real Postgres: atomic reservation,
// expiry reclaim, owner-scoped release, and the purge sweep. These branches
// live in SQL guards, so the stub-backed unit tests cannot reach them.

import (
	"context"
	"testing"
	"time"

	"invcore/internal/config"
	"invcore/internal/infra"
	"invcore/internal/invdomain"
	"invcore/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcPostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
)

func startIdempotencyIndex(t *testing.T) repository.IdempotencyIndex {
	t.Helper()
	ctx := context.Background()

	pgC, err := tcPostgres.RunContainer(ctx,
		testcontainers.WithImage("postgres:15-alpine"),
		tcPostgres.WithDatabase("invcore_test"),
		tcPostgres.WithUsername("invcore"),
		tcPostgres.WithPassword("invcore"),
		tcPostgres.BasicWaitStrategies(),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pgC.Terminate(ctx) })

	dsn, err := pgC.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := infra.NewDatabase(&config.Config{
		DatabaseURL:             dsn,
		DBMaxOpenConns:          5,
		DBMaxIdleConns:          2,
		DBConnectTimeoutSeconds: 10,
	})
	require.NoError(t, err)
	return repository.NewIdempotencyIndex(db)
}

func TestReservationLifecycle(t *testing.T) {
	idx := startIdempotencyIndex(t)
	ctx := context.Background()
	ttl := 150 * time.Millisecond

	res1, err := idx.CheckOrReserve(ctx, "K1", "fp-a", ttl)
	require.NoError(t, err)
	require.Equal(t, repository.Proceed, res1.State)

	// A duplicate while the claim is live fails fast as retryable.
	_, err = idx.CheckOrReserve(ctx, "K1", "fp-a", ttl)
	require.True(t, invdomain.Is(err, invdomain.KindInProgress))
	assert.True(t, invdomain.KindOf(err).Retryable())

	// Same key with different semantics is a caller bug.
	_, err = idx.CheckOrReserve(ctx, "K1", "fp-b", ttl)
	require.True(t, invdomain.Is(err, invdomain.KindIdempotencyConflict))

	// Past the TTL the stale claim is reclaimed by the next caller.
	time.Sleep(200 * time.Millisecond)
	res2, err := idx.CheckOrReserve(ctx, "K1", "fp-a", time.Minute)
	require.NoError(t, err)
	require.Equal(t, repository.Proceed, res2.State)
	assert.True(t, res2.ReservedAt.After(res1.ReservedAt))

	// The evicted claimant releasing on its own failure path must not delete
	// the reclaimed reservation.
	require.NoError(t, idx.Release(ctx, "K1", res1.ReservedAt))
	require.NoError(t, idx.Commit(ctx, "K1", []byte(`{"on_hand":5}`)))

	res3, err := idx.CheckOrReserve(ctx, "K1", "fp-a", time.Minute)
	require.NoError(t, err)
	require.Equal(t, repository.Replay, res3.State)
	assert.JSONEq(t, `{"on_hand":5}`, string(res3.Outcome))
}

func TestPurgeExpiredReservations(t *testing.T) {
	idx := startIdempotencyIndex(t)
	ctx := context.Background()

	// One abandoned reservation, one committed outcome.
	_, err := idx.CheckOrReserve(ctx, "stale", "fp", 50*time.Millisecond)
	require.NoError(t, err)
	_, err = idx.CheckOrReserve(ctx, "done", "fp", time.Minute)
	require.NoError(t, err)
	require.NoError(t, idx.Commit(ctx, "done", []byte(`{}`)))

	time.Sleep(100 * time.Millisecond)
	purged, err := idx.PurgeExpired(ctx, time.Now().UTC())
	require.NoError(t, err)
	assert.Equal(t, int64(1), purged)

	// The purged key is reusable; the committed one still replays.
	res, err := idx.CheckOrReserve(ctx, "stale", "fp", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, repository.Proceed, res.State)

	res, err = idx.CheckOrReserve(ctx, "done", "fp", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, repository.Replay, res.State)
}
