package repository

import (
	"context"
	"errors"
	"time"

	"invcore/internal/invdomain"
	"invcore/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ReservationState classifies the result of CheckOrReserve.
type ReservationState int

const (
	// Proceed: the key is now reserved by this caller — execute the operation,
	// then Commit or Release exactly once.
	Proceed ReservationState = iota
	// Replay: the operation already committed; Outcome holds the stored result.
	Replay
)

// Reservation is the outcome of an idempotency check.
type Reservation struct {
	State ReservationState
	// ReservedAt identifies this caller's claim on the key; Release requires
	// it so a caller whose expired reservation was reclaimed cannot delete
	// the new claimant's live one. Set only for Proceed.
	ReservedAt time.Time
	Outcome    []byte // committed JSON payload, set only for Replay
}

// IdempotencyIndex maps caller-supplied external_ids to the outcome of the
// first execution bearing them. Reservation is atomic test-and-set: across
// concurrent requests with the same key exactly one proceeds; the rest replay
// the committed outcome or fail with in_progress. Reservations expire so a
// crash mid-operation never poisons a key.
type IdempotencyIndex interface {
	CheckOrReserve(ctx context.Context, externalID, fingerprint string, ttl time.Duration) (*Reservation, error)
	Commit(ctx context.Context, externalID string, outcome []byte) error
	// Release frees a reservation after a failed execution so the caller can
	// retry with a fresh attempt. reservedAt must be the claim timestamp from
	// CheckOrReserve; a stale claimant's release is a no-op.
	Release(ctx context.Context, externalID string, reservedAt time.Time) error
	// PurgeExpired removes reserved records past their expiry; returns the
	// number deleted. Committed records are kept — they are the replay source.
	PurgeExpired(ctx context.Context, now time.Time) (int64, error)
}

type idempotencyIndex struct{ db *gorm.DB }

func NewIdempotencyIndex(db *gorm.DB) IdempotencyIndex { return &idempotencyIndex{db: db} }

func (i *idempotencyIndex) CheckOrReserve(ctx context.Context, externalID, fingerprint string, ttl time.Duration) (*Reservation, error) {
	// Truncated to postgres timestamp precision so the value read back from
	// the row compares equal to the one we hand to the caller.
	now := time.Now().UTC().Truncate(time.Microsecond)
	record := model.IdempotencyRecord{
		ExternalID:  externalID,
		Fingerprint: fingerprint,
		Status:      model.IdempotencyReserved,
		ReservedAt:  now,
		ExpiresAt:   now.Add(ttl),
	}

	// Atomic test-and-set: the insert wins for exactly one concurrent caller.
	res := i.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&record)
	if res.Error != nil {
		return nil, translateStorageError(res.Error, "reserve idempotency key")
	}
	if res.RowsAffected == 1 {
		return &Reservation{State: Proceed, ReservedAt: now}, nil
	}

	// The key already exists — classify it.
	var existing model.IdempotencyRecord
	err := i.db.WithContext(ctx).Where("external_id = ?", externalID).First(&existing).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// Lost a race with a Release between our insert and read.
			return nil, invdomain.E(invdomain.KindInProgress, "idempotency key contested, retry")
		}
		return nil, translateStorageError(err, "read idempotency key")
	}

	if existing.Fingerprint != fingerprint {
		return nil, invdomain.Ef(invdomain.KindIdempotencyConflict,
			"external_id %q was used for a different operation", externalID)
	}

	switch {
	case existing.Status == model.IdempotencyCommitted:
		return &Reservation{State: Replay, Outcome: existing.Outcome}, nil
	case existing.Expired(now):
		// Take over the stale reservation. The guarded UPDATE makes this safe
		// under concurrency: only one caller's claim can match the WHERE.
		claim := i.db.WithContext(ctx).Model(&model.IdempotencyRecord{}).
			Where("external_id = ? AND status = ? AND expires_at < ?",
				externalID, model.IdempotencyReserved, now).
			Updates(map[string]any{
				"reserved_at": now,
				"expires_at":  now.Add(ttl),
			})
		if claim.Error != nil {
			return nil, translateStorageError(claim.Error, "reclaim idempotency key")
		}
		if claim.RowsAffected == 1 {
			return &Reservation{State: Proceed, ReservedAt: now}, nil
		}
		return nil, invdomain.Ef(invdomain.KindInProgress,
			"request with external_id %q is already executing", externalID)
	default:
		return nil, invdomain.Ef(invdomain.KindInProgress,
			"request with external_id %q is already executing", externalID)
	}
}

func (i *idempotencyIndex) Commit(ctx context.Context, externalID string, outcome []byte) error {
	now := time.Now().UTC()
	res := i.db.WithContext(ctx).Model(&model.IdempotencyRecord{}).
		Where("external_id = ? AND status = ?", externalID, model.IdempotencyReserved).
		Updates(map[string]any{
			"status":       model.IdempotencyCommitted,
			"outcome":      outcome,
			"committed_at": now,
		})
	if res.Error != nil {
		return translateStorageError(res.Error, "commit idempotency outcome")
	}
	if res.RowsAffected == 0 {
		return invdomain.Ef(invdomain.KindInternal,
			"no live reservation for external_id %q", externalID)
	}
	return nil
}

func (i *idempotencyIndex) Release(ctx context.Context, externalID string, reservedAt time.Time) error {
	// The reserved_at guard scopes the delete to this caller's own claim: if
	// the reservation expired and another caller reclaimed it, reserved_at no
	// longer matches and the live claim survives.
	err := i.db.WithContext(ctx).
		Where("external_id = ? AND status = ? AND reserved_at = ?",
			externalID, model.IdempotencyReserved, reservedAt).
		Delete(&model.IdempotencyRecord{}).Error
	if err != nil {
		return translateStorageError(err, "release idempotency key")
	}
	return nil
}

func (i *idempotencyIndex) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	res := i.db.WithContext(ctx).
		Where("status = ? AND expires_at < ?", model.IdempotencyReserved, now).
		Delete(&model.IdempotencyRecord{})
	if res.Error != nil {
		return 0, translateStorageError(res.Error, "purge expired reservations")
	}
	return res.RowsAffected, nil
}
