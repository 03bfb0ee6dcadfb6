package service_test

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"invcore/internal/invdomain"
	"invcore/internal/model"
	"invcore/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ── In-memory ItemRepository stub ────────────────────────────────────────────
// DB() returns nil, which puts the service's runTx into direct-call mode.

type stubItemRepo struct {
	mu    sync.Mutex
	items map[string]*model.Item
}

func newStubItemRepo() *stubItemRepo {
	return &stubItemRepo{items: make(map[string]*model.Item)}
}

func (r *stubItemRepo) CreateTx(_ *gorm.DB, item *model.Item) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.items[item.SKU]; exists {
		return invdomain.Ef(invdomain.KindDuplicateSKU, "item %q already exists", item.SKU)
	}
	item.ID = uuid.New()
	now := time.Now().UTC()
	item.CreatedAt = now
	item.UpdatedAt = now
	clone := *item
	r.items[item.SKU] = &clone
	return nil
}

func (r *stubItemRepo) FindBySKU(_ context.Context, sku string) (*model.Item, error) {
	return r.find(sku)
}

func (r *stubItemRepo) FindBySKUTx(_ *gorm.DB, sku string) (*model.Item, error) {
	return r.find(sku)
}

func (r *stubItemRepo) FindBySKUForUpdateTx(_ *gorm.DB, sku string) (*model.Item, error) {
	return r.find(sku)
}

func (r *stubItemRepo) find(sku string) (*model.Item, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	item, ok := r.items[sku]
	if !ok {
		return nil, invdomain.Ef(invdomain.KindNotFound, "item %q not found", sku)
	}
	clone := *item
	return &clone, nil
}

func (r *stubItemRepo) UpdateFieldsTx(_ *gorm.DB, sku string, fields map[string]any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	item, ok := r.items[sku]
	if !ok {
		return invdomain.Ef(invdomain.KindNotFound, "item %q not found", sku)
	}
	for col, val := range fields {
		switch col {
		case "name":
			item.Name = val.(string)
		case "unit":
			item.Unit = val.(string)
		case "category":
			s := val.(string)
			item.Category = &s
		case "description":
			s := val.(string)
			item.Description = &s
		case "reorder_threshold":
			item.ReorderThreshold = val.(int)
		case "cost":
			c := val.(decimal.Decimal)
			item.Cost = &c
		case "currency":
			s := val.(string)
			item.Currency = &s
		case "status":
			item.Status = val.(string)
		case "deactivation_reason":
			item.DeactivationReason = val.(*string)
		}
	}
	item.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *stubItemRepo) SetStatusTx(tx *gorm.DB, sku, status string, deactivationReason *string) error {
	return r.UpdateFieldsTx(tx, sku, map[string]any{
		"status":              status,
		"deactivation_reason": deactivationReason,
	})
}

func (r *stubItemRepo) List(_ context.Context, filter repository.ItemFilter) ([]model.Item, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []model.Item
	for _, item := range r.items {
		switch filter.Status {
		case "inactive":
			if item.Status != model.StatusInactive {
				continue
			}
		case "all":
		default:
			if item.Status != model.StatusActive {
				continue
			}
		}
		if filter.Category != "" && (item.Category == nil || *item.Category != filter.Category) {
			continue
		}
		if filter.Name != "" && !strings.Contains(strings.ToLower(item.Name), strings.ToLower(filter.Name)) {
			continue
		}
		result = append(result, *item)
	}
	sort.Slice(result, func(a, b int) bool {
		less := result[a].SKU < result[b].SKU
		switch filter.SortKey {
		case "name":
			if result[a].Name != result[b].Name {
				less = result[a].Name < result[b].Name
			}
		case "updated_at":
			if !result[a].UpdatedAt.Equal(result[b].UpdatedAt) {
				less = result[a].UpdatedAt.Before(result[b].UpdatedAt)
			}
		}
		if filter.SortDesc {
			return !less
		}
		return less
	})
	return result, int64(len(result)), nil
}

func (r *stubItemRepo) DB() *gorm.DB { return nil }

// ── In-memory StockLedger stub ───────────────────────────────────────────────

type stubLedger struct {
	mu        sync.Mutex
	movements []model.StockMovement
	nextID    uint64

	// One-shot gate: the next AppendTx signals appendEntered, then parks on
	// appendGate. Lets a test hold one caller mid-operation while another
	// races it for the same idempotency key.
	appendGate    chan struct{}
	appendEntered chan struct{}
}

func newStubLedger() *stubLedger { return &stubLedger{nextID: 1} }

// holdNextAppend arms the gate; the returned release function unblocks the
// parked caller.
func (l *stubLedger) holdNextAppend() (entered <-chan struct{}, release func()) {
	l.mu.Lock()
	defer l.mu.Unlock()
	gate := make(chan struct{})
	in := make(chan struct{}, 1)
	l.appendGate = gate
	l.appendEntered = in
	return in, func() { close(gate) }
}

func (l *stubLedger) AppendTx(_ *gorm.DB, m *model.StockMovement) error {
	l.mu.Lock()
	gate, in := l.appendGate, l.appendEntered
	l.appendGate, l.appendEntered = nil, nil
	l.mu.Unlock()
	if gate != nil {
		in <- struct{}{}
		<-gate
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if m.ExternalID != nil {
		for i := range l.movements {
			if l.movements[i].ExternalID != nil && *l.movements[i].ExternalID == *m.ExternalID {
				return invdomain.Ef(invdomain.KindInProgress,
					"movement with external_id %q already recorded", *m.ExternalID)
			}
		}
	}
	m.MovementID = l.nextID
	l.nextID++
	m.RecordedAt = time.Now().UTC()
	l.movements = append(l.movements, *m)
	return nil
}

func (l *stubLedger) OnHandTx(_ *gorm.DB, sku string) (int64, error) {
	return l.sum(sku), nil
}

func (l *stubLedger) OnHand(_ context.Context, sku string) (int64, error) {
	return l.sum(sku), nil
}

func (l *stubLedger) sum(sku string) int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	var total int64
	for i := range l.movements {
		if l.movements[i].SKU == sku {
			total += l.movements[i].Delta
		}
	}
	return total
}

func (l *stubLedger) History(_ context.Context, sku string, since *time.Time) ([]model.StockMovement, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var result []model.StockMovement
	for i := range l.movements {
		m := l.movements[i]
		if m.SKU != sku {
			continue
		}
		if since != nil && m.RecordedAt.Before(*since) {
			continue
		}
		result = append(result, m)
	}
	return result, nil
}

func (l *stubLedger) FindByExternalID(_ context.Context, externalID string) (*model.StockMovement, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i := range l.movements {
		if l.movements[i].ExternalID != nil && *l.movements[i].ExternalID == externalID {
			clone := l.movements[i]
			return &clone, nil
		}
	}
	return nil, invdomain.Ef(invdomain.KindNotFound, "no movement with external_id %q", externalID)
}

func (l *stubLedger) SumAll(_ context.Context) (map[string]int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	totals := make(map[string]int64)
	for i := range l.movements {
		totals[l.movements[i].SKU] += l.movements[i].Delta
	}
	return totals, nil
}

// ── In-memory IdempotencyIndex stub ──────────────────────────────────────────

type stubIdemIndex struct {
	mu      sync.Mutex
	records map[string]*model.IdempotencyRecord
}

func newStubIdemIndex() *stubIdemIndex {
	return &stubIdemIndex{records: make(map[string]*model.IdempotencyRecord)}
}

func (i *stubIdemIndex) CheckOrReserve(_ context.Context, externalID, fingerprint string, ttl time.Duration) (*repository.Reservation, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	now := time.Now().UTC()

	existing, ok := i.records[externalID]
	if !ok {
		i.records[externalID] = &model.IdempotencyRecord{
			ExternalID:  externalID,
			Fingerprint: fingerprint,
			Status:      model.IdempotencyReserved,
			ReservedAt:  now,
			ExpiresAt:   now.Add(ttl),
		}
		return &repository.Reservation{State: repository.Proceed, ReservedAt: now}, nil
	}

	if existing.Fingerprint != fingerprint {
		return nil, invdomain.Ef(invdomain.KindIdempotencyConflict,
			"external_id %q was used for a different operation", externalID)
	}
	if existing.Status == model.IdempotencyCommitted {
		return &repository.Reservation{State: repository.Replay, Outcome: existing.Outcome}, nil
	}
	if existing.Expired(now) {
		existing.ReservedAt = now
		existing.ExpiresAt = now.Add(ttl)
		return &repository.Reservation{State: repository.Proceed, ReservedAt: now}, nil
	}
	return nil, invdomain.Ef(invdomain.KindInProgress,
		"request with external_id %q is already executing", externalID)
}

func (i *stubIdemIndex) Commit(_ context.Context, externalID string, outcome []byte) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	record, ok := i.records[externalID]
	if !ok || record.Status != model.IdempotencyReserved {
		return invdomain.Ef(invdomain.KindInternal, "no live reservation for external_id %q", externalID)
	}
	now := time.Now().UTC()
	record.Status = model.IdempotencyCommitted
	record.Outcome = outcome
	record.CommittedAt = &now
	return nil
}

func (i *stubIdemIndex) Release(_ context.Context, externalID string, reservedAt time.Time) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	record, ok := i.records[externalID]
	if ok && record.Status == model.IdempotencyReserved && record.ReservedAt.Equal(reservedAt) {
		delete(i.records, externalID)
	}
	return nil
}

func (i *stubIdemIndex) PurgeExpired(_ context.Context, now time.Time) (int64, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	var purged int64
	for key, record := range i.records {
		if record.Expired(now) {
			delete(i.records, key)
			purged++
		}
	}
	return purged, nil
}
