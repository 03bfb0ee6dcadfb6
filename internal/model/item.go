package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Item statuses. Deletion is not supported — items are deactivated instead,
// so a SKU is never reused.
const (
	StatusActive   = "active"
	StatusInactive = "inactive"
)

// Item is a catalog entry. SKU is the natural key and is immutable once
// created; the uuid primary key exists only for foreign keys and row identity.
// On-hand quantity is intentionally NOT a column here — it is derived from the
// stock ledger (see StockMovement).
type Item struct {
	ID                 uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	SKU                string    `gorm:"column:sku;uniqueIndex;not null"`
	Name               string    `gorm:"index;not null"`
	Unit               string    `gorm:"not null"`
	Category           *string   `gorm:"index"`
	Description        *string
	ReorderThreshold   int              `gorm:"not null;default:0"`
	Cost               *decimal.Decimal `gorm:"type:decimal(12,2)"`
	Currency           *string          `gorm:"type:char(3)"` // ISO-4217, present iff Cost is
	Status             string           `gorm:"not null;default:'active';index"`
	DeactivationReason *string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

func (Item) TableName() string { return "items" }

// Active reports whether the item accepts regular stock movements.
func (i *Item) Active() bool { return i.Status == StatusActive }

// LowStock applies the reorder policy: at or below threshold raises the signal.
func (i *Item) LowStock(onHand int64) bool {
	return onHand <= int64(i.ReorderThreshold)
}
