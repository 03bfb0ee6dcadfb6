package model

import (
	"time"

	"github.com/google/uuid"
)

// Movement reasons. The set is open — unknown reasons are accepted and treated
// as regular adjustments; the constants below are the ones business rules
// attach to.
const (
	ReasonReceipt       = "receipt"
	ReasonAdjustment    = "adjustment"
	ReasonReservation   = "reservation" // may never drive on-hand below zero
	ReasonRelease       = "release"
	ReasonCorrectionIn  = "correction_in"  // allowed on inactive items
	ReasonCorrectionOut = "correction_out" // allowed on inactive items, may go negative
)

// CorrectionReason reports whether reason is a historical-error correction.
// Corrections are the only movements permitted on inactive items and the only
// non-reservation movements allowed to take on-hand negative.
func CorrectionReason(reason string) bool {
	return reason == ReasonCorrectionIn || reason == ReasonCorrectionOut
}

// StockMovement is one signed quantity change for a SKU. The ledger is
// append-only: rows are never updated or deleted, only superseded by a
// compensating movement. On-hand for a SKU is the sum of its deltas.
//
// MovementID is a global BIGSERIAL: globally monotonic insert order is also
// per-SKU monotonic, without a per-SKU counter row to contend on.
type StockMovement struct {
	MovementID uint64    `gorm:"primaryKey;autoIncrement"`
	ItemID     uuid.UUID `gorm:"type:uuid;not null;index"`
	SKU        string    `gorm:"column:sku;not null;index"`
	Delta      int64     `gorm:"not null"`
	Reason     string    `gorm:"not null"`
	ExternalID *string   `gorm:"index"`
	RecordedAt time.Time `gorm:"not null;autoCreateTime"`

	Item *Item `gorm:"foreignKey:ItemID"`
}

func (StockMovement) TableName() string { return "stock_movements" }
