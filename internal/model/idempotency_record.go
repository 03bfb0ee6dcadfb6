package model

import "time"

// Idempotency record states. A record is born reserved and becomes committed
// exactly once; a reservation that is never committed (crash mid-operation)
// expires at ExpiresAt and the key becomes claimable again.
const (
	IdempotencyReserved  = "reserved"
	IdempotencyCommitted = "committed"
)

// IdempotencyRecord maps a caller-supplied external_id to the outcome of the
// first execution bearing it. Fingerprint is a hash of the operation's
// semantic inputs; a replay with the same key but a different fingerprint is
// a conflict, never a silent replay.
type IdempotencyRecord struct {
	ExternalID  string `gorm:"primaryKey"`
	Fingerprint string `gorm:"not null"`
	Status      string `gorm:"not null;default:'reserved'"`
	// Outcome holds the JSON success payload of the first execution; only
	// committed records carry one.
	Outcome     []byte    `gorm:"type:jsonb"`
	ReservedAt  time.Time `gorm:"not null;autoCreateTime"`
	CommittedAt *time.Time
	ExpiresAt   time.Time `gorm:"not null;index"`
}

func (IdempotencyRecord) TableName() string { return "idempotency_records" }

// Expired reports whether a still-reserved record may be reclaimed.
func (r *IdempotencyRecord) Expired(now time.Time) bool {
	return r.Status == IdempotencyReserved && now.After(r.ExpiresAt)
}
