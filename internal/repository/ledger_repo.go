package repository

import (
	"context"
	"errors"
	"time"

	"invcore/internal/invdomain"
	"invcore/internal/model"

	"gorm.io/gorm"
)

// StockLedger is the append-only store of stock movements. Movements are never
// updated or deleted; on-hand quantity for a SKU is the sum of its deltas,
// which makes concurrent writes independent inserts with nothing to race on.
type StockLedger interface {
	AppendTx(tx *gorm.DB, m *model.StockMovement) error
	// OnHandTx sums deltas inside the caller's transaction, so the result is
	// consistent with any row lock the caller holds on the item.
	OnHandTx(tx *gorm.DB, sku string) (int64, error)
	OnHand(ctx context.Context, sku string) (int64, error)
	History(ctx context.Context, sku string, since *time.Time) ([]model.StockMovement, error)
	FindByExternalID(ctx context.Context, externalID string) (*model.StockMovement, error)
	// SumAll returns on-hand per SKU across the whole ledger, for the
	// reconciliation sweep.
	SumAll(ctx context.Context) (map[string]int64, error)
}

type stockLedger struct{ db *gorm.DB }

func NewStockLedger(db *gorm.DB) StockLedger { return &stockLedger{db: db} }

func (l *stockLedger) AppendTx(tx *gorm.DB, m *model.StockMovement) error {
	if err := tx.Create(m).Error; err != nil {
		if isUniqueViolation(err) {
			// The partial unique index on external_id caught a concurrent
			// duplicate that slipped past the idempotency reservation.
			return invdomain.Ef(invdomain.KindInProgress,
				"movement with external_id %q already recorded", deref(m.ExternalID))
		}
		return translateStorageError(err, "append movement")
	}
	return nil
}

func (l *stockLedger) OnHandTx(tx *gorm.DB, sku string) (int64, error) {
	return sumDeltas(tx, sku)
}

func (l *stockLedger) OnHand(ctx context.Context, sku string) (int64, error) {
	return sumDeltas(l.db.WithContext(ctx), sku)
}

func sumDeltas(q *gorm.DB, sku string) (int64, error) {
	var onHand int64
	err := q.Model(&model.StockMovement{}).
		Where("sku = ?", sku).
		Select("COALESCE(SUM(delta), 0)").
		Scan(&onHand).Error
	if err != nil {
		return 0, translateStorageError(err, "sum on-hand")
	}
	return onHand, nil
}

func (l *stockLedger) History(ctx context.Context, sku string, since *time.Time) ([]model.StockMovement, error) {
	q := l.db.WithContext(ctx).Where("sku = ?", sku)
	if since != nil {
		q = q.Where("recorded_at >= ?", *since)
	}
	var movements []model.StockMovement
	if err := q.Order("movement_id ASC").Find(&movements).Error; err != nil {
		return nil, translateStorageError(err, "movement history")
	}
	return movements, nil
}

func (l *stockLedger) FindByExternalID(ctx context.Context, externalID string) (*model.StockMovement, error) {
	var m model.StockMovement
	err := l.db.WithContext(ctx).Where("external_id = ?", externalID).First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, invdomain.Ef(invdomain.KindNotFound, "no movement with external_id %q", externalID)
		}
		return nil, translateStorageError(err, "find movement")
	}
	return &m, nil
}

func (l *stockLedger) SumAll(ctx context.Context) (map[string]int64, error) {
	type row struct {
		SKU    string
		OnHand int64
	}
	var rows []row
	err := l.db.WithContext(ctx).Model(&model.StockMovement{}).
		Select("sku, COALESCE(SUM(delta), 0) AS on_hand").
		Group("sku").
		Scan(&rows).Error
	if err != nil {
		return nil, translateStorageError(err, "sum ledger")
	}
	totals := make(map[string]int64, len(rows))
	for _, r := range rows {
		totals[r.SKU] = r.OnHand
	}
	return totals, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
