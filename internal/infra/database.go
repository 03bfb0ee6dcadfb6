package infra

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"invcore/internal/config"
	"invcore/internal/model"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NormalizeDatabaseURL rewrites the common DATABASE_URL spellings from ORM
// tooling and legacy providers into the canonical postgresql:// form the
// driver expects.
func NormalizeDatabaseURL(databaseURL string) string {
	switch {
	case strings.HasPrefix(databaseURL, "postgresql+psycopg://"):
		return strings.Replace(databaseURL, "postgresql+psycopg://", "postgresql://", 1)
	case strings.HasPrefix(databaseURL, "postgres+psycopg://"):
		return strings.Replace(databaseURL, "postgres+psycopg://", "postgresql://", 1)
	case strings.HasPrefix(databaseURL, "postgres://"):
		return strings.Replace(databaseURL, "postgres://", "postgresql://", 1)
	}
	return databaseURL
}

// ApplySSLDefaults injects sslmode=require when the deployment mandates TLS.
// Most managed Postgres providers refuse plaintext connections; an explicit
// sslmode in the URL always wins.
func ApplySSLDefaults(databaseURL string, requireSSL bool) (string, error) {
	if !requireSSL {
		return databaseURL, nil
	}
	parsed, err := url.Parse(databaseURL)
	if err != nil {
		return "", fmt.Errorf("parse database url: %w", err)
	}
	query := parsed.Query()
	if query.Get("sslmode") == "" {
		query.Set("sslmode", "require")
	}
	parsed.RawQuery = query.Encode()
	return parsed.String(), nil
}

// NewDatabase establishes a GORM connection, applies pool sizing from config,
// and runs the idempotent schema patches the migrations cannot express.
func NewDatabase(cfg *config.Config) (*gorm.DB, error) {
	dsn := NormalizeDatabaseURL(cfg.DatabaseURL)
	dsn, err := ApplySSLDefaults(dsn, cfg.RequireSSL)
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(cfg.DBMaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.DBMaxIdleConns)
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.DBConnectTimeoutSeconds) * 6 * time.Minute)

	if err := RunMigrations(db); err != nil {
		return nil, fmt.Errorf("migrations: %w", err)
	}

	return db, nil
}

// RunMigrations creates the schema via AutoMigrate and then applies the
// patches AutoMigrate cannot express. Also used by the integration tests.
func RunMigrations(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&model.Item{},
		&model.StockMovement{},
		&model.IdempotencyRecord{},
	); err != nil {
		return fmt.Errorf("automigrate: %w", err)
	}
	return applySchemaPatches(db)
}

// applySchemaPatches runs idempotent DDL that AutoMigrate cannot fully handle.
// Each statement is guarded so re-running on an already-patched DB is a no-op.
func applySchemaPatches(db *gorm.DB) error {
	patches := []string{
		// Ledger reads are always "all movements for one SKU in insert order".
		`DO $$ BEGIN
		  IF NOT EXISTS (SELECT 1 FROM pg_indexes WHERE indexname = 'idx_stock_movements_sku_movement') THEN
		    CREATE INDEX idx_stock_movements_sku_movement
		        ON stock_movements (sku, movement_id);
		  END IF;
		END $$`,
		// Dedup guard for the idempotency key on the ledger itself: at most one
		// movement per external_id, independent of the idempotency_records row.
		`DO $$ BEGIN
		  IF NOT EXISTS (SELECT 1 FROM pg_indexes WHERE indexname = 'uni_stock_movements_external_id') THEN
		    CREATE UNIQUE INDEX uni_stock_movements_external_id
		        ON stock_movements (external_id)
		        WHERE external_id IS NOT NULL;
		  END IF;
		END $$`,
		// Partial index for the reservation-expiry sweep.
		`DO $$ BEGIN
		  IF NOT EXISTS (SELECT 1 FROM pg_indexes WHERE indexname = 'idx_idempotency_reserved_expiry') THEN
		    CREATE INDEX idx_idempotency_reserved_expiry
		        ON idempotency_records (expires_at)
		        WHERE status = 'reserved';
		  END IF;
		END $$`,
	}

	for _, sql := range patches {
		if err := db.Exec(sql).Error; err != nil {
			return fmt.Errorf("patch %q: %w", sql[:min(len(sql), 60)], err)
		}
	}
	return nil
}
