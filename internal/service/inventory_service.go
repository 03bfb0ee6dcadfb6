package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"invcore/internal/cache"
	"invcore/internal/dto"
	"invcore/internal/invdomain"
	"invcore/internal/model"
	"invcore/internal/repository"
	"invcore/internal/worker"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// InventoryService is the public façade over the catalog and the stock
// ledger. Every mutating call runs inside one database transaction spanning
// both stores; calls carrying an external_id additionally pass through the
// idempotency envelope (reserve → execute → commit outcome).
type InventoryService interface {
	CreateItem(ctx context.Context, req dto.CreateItemRequest) (*dto.ItemResponse, error)
	UpdateItem(ctx context.Context, sku string, req dto.UpdateItemRequest) (*dto.ItemResponse, error)
	ActivateItem(ctx context.Context, sku string) (*dto.ItemResponse, error)
	DeactivateItem(ctx context.Context, sku string, req dto.DeactivateItemRequest) (*dto.ItemResponse, error)
	AdjustStock(ctx context.Context, sku string, req dto.AdjustStockRequest) (*dto.AdjustStockResponse, error)
	GetItem(ctx context.Context, sku string, includeStats bool) (*dto.ItemResponse, error)
	ListItems(ctx context.Context, filter dto.ItemListFilter) (*dto.ItemListResponse, error)
	MovementHistory(ctx context.Context, sku string, since *time.Time) (*dto.MovementListResponse, error)
}

// Options tune the transactional behavior of the service.
type Options struct {
	// IdempotencyTTL bounds how long a crashed operation can hold a key.
	IdempotencyTTL time.Duration
	// LockTimeout bounds every row-lock wait; exceeding it surfaces as a
	// retryable timeout failure instead of blocking indefinitely.
	LockTimeout time.Duration
}

type inventoryService struct {
	items     repository.ItemRepository
	ledger    repository.StockLedger
	idem      repository.IdempotencyIndex
	lifecycle *lifecycle
	onHand    *cache.OnHandCache
	notifier  *worker.Dispatcher
	opts      Options
}

func NewInventoryService(
	items repository.ItemRepository,
	ledger repository.StockLedger,
	idem repository.IdempotencyIndex,
	onHand *cache.OnHandCache,
	notifier *worker.Dispatcher,
	opts Options,
) InventoryService {
	if opts.IdempotencyTTL <= 0 {
		opts.IdempotencyTTL = 15 * time.Minute
	}
	if opts.LockTimeout <= 0 {
		opts.LockTimeout = 5 * time.Second
	}
	return &inventoryService{
		items:     items,
		ledger:    ledger,
		idem:      idem,
		lifecycle: newLifecycle(items, ledger),
		onHand:    onHand,
		notifier:  notifier,
		opts:      opts,
	}
}

// runTx executes fn inside a GORM transaction when db is available, or calls
// fn(nil) directly when db is nil (unit test mode with stub repositories).
// Lock waits inside the transaction are bounded by LockTimeout.
func (s *inventoryService) runTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	db := s.items.DB()
	if db == nil {
		return fn(nil)
	}
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		timeout := fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", s.opts.LockTimeout.Milliseconds())
		if err := tx.Exec(timeout).Error; err != nil {
			return invdomain.Wrap(invdomain.KindInternal, "set lock timeout", err)
		}
		return fn(tx)
	})
}

// runIdempotent wraps exec in the reserve → execute → commit envelope.
// Without a key it just executes. On a replay the stored outcome is decoded
// into T; on execution failure the reservation is released so the key is
// retryable instead of poisoned.
func runIdempotent[T any](ctx context.Context, s *inventoryService, externalID *string, fp string, exec func() (*T, error)) (*T, error) {
	if externalID == nil || *externalID == "" {
		return exec()
	}

	res, err := s.idem.CheckOrReserve(ctx, *externalID, fp, s.opts.IdempotencyTTL)
	if err != nil {
		return nil, err
	}
	if res.State == repository.Replay {
		out := new(T)
		if err := json.Unmarshal(res.Outcome, out); err != nil {
			return nil, invdomain.Wrap(invdomain.KindInternal, "decode stored outcome", err)
		}
		return out, nil
	}

	result, err := exec()
	if err != nil {
		if relErr := s.idem.Release(ctx, *externalID, res.ReservedAt); relErr != nil {
			log.Warn().Err(relErr).Str("external_id", *externalID).
				Msg("failed to release idempotency reservation")
		}
		return nil, err
	}

	payload, err := json.Marshal(result)
	if err != nil {
		return nil, invdomain.Wrap(invdomain.KindInternal, "encode outcome", err)
	}
	if err := s.idem.Commit(ctx, *externalID, payload); err != nil {
		// The operation itself committed. An adjust retry that finds the
		// record gone replays the movement off the ledger's external_id
		// index (see replayFromLedger).
		log.Warn().Err(err).Str("external_id", *externalID).
			Msg("failed to commit idempotency outcome")
	}
	return result, nil
}

// ── Mutations ────────────────────────────────────────────────────────────────

func (s *inventoryService) CreateItem(ctx context.Context, req dto.CreateItemRequest) (*dto.ItemResponse, error) {
	// Validate before reserving so malformed requests never consume a key.
	if err := validateSKU(req.SKU); err != nil {
		return nil, err
	}
	return runIdempotent(ctx, s, req.ExternalID, fingerprintCreate(req), func() (*dto.ItemResponse, error) {
		var item *model.Item
		err := s.runTx(ctx, func(tx *gorm.DB) error {
			var txErr error
			item, txErr = s.lifecycle.create(tx, req)
			return txErr
		})
		if err != nil {
			return nil, err
		}
		return itemToResponse(item), nil
	})
}

func (s *inventoryService) UpdateItem(ctx context.Context, sku string, req dto.UpdateItemRequest) (*dto.ItemResponse, error) {
	var item *model.Item
	err := s.runTx(ctx, func(tx *gorm.DB) error {
		var txErr error
		item, txErr = s.lifecycle.update(tx, sku, req)
		return txErr
	})
	if err != nil {
		return nil, err
	}
	return itemToResponse(item), nil
}

func (s *inventoryService) ActivateItem(ctx context.Context, sku string) (*dto.ItemResponse, error) {
	var item *model.Item
	err := s.runTx(ctx, func(tx *gorm.DB) error {
		var txErr error
		item, txErr = s.lifecycle.activate(tx, sku)
		return txErr
	})
	if err != nil {
		return nil, err
	}
	return itemToResponse(item), nil
}

func (s *inventoryService) DeactivateItem(ctx context.Context, sku string, req dto.DeactivateItemRequest) (*dto.ItemResponse, error) {
	var (
		item     *model.Item
		residual int64
	)
	err := s.runTx(ctx, func(tx *gorm.DB) error {
		var txErr error
		item, residual, txErr = s.lifecycle.deactivate(tx, sku, req.Reason, req.Force)
		return txErr
	})
	if err != nil {
		return nil, err
	}

	resp := itemToResponse(item)
	if residual != 0 {
		resp.StockWarning = true
		resp.ResidualOnHand = &residual
		log.Warn().Str("sku", sku).Int64("on_hand", residual).Str("reason", req.Reason).
			Msg("item deactivated with nonzero on-hand")
	}
	return resp, nil
}

func (s *inventoryService) AdjustStock(ctx context.Context, sku string, req dto.AdjustStockRequest) (*dto.AdjustStockResponse, error) {
	if err := validateSKU(sku); err != nil {
		return nil, err
	}
	resp, err := runIdempotent(ctx, s, req.ExternalID, fingerprintAdjust(sku, req), func() (*dto.AdjustStockResponse, error) {
		var (
			movement *model.StockMovement
			newTotal int64
			lowStock bool
		)
		err := s.runTx(ctx, func(tx *gorm.DB) error {
			var txErr error
			movement, newTotal, lowStock, txErr = s.lifecycle.adjust(tx, sku, req)
			return txErr
		})
		if err != nil {
			// The ledger's unique index on external_id caught a movement that
			// committed before a crash wiped its idempotency record. The
			// durable movement is the prior success: replay it instead of
			// bouncing the caller forever.
			if req.ExternalID != nil && invdomain.Is(err, invdomain.KindInProgress) {
				return s.replayFromLedger(ctx, sku, *req.ExternalID, err)
			}
			return nil, err
		}

		s.onHand.Invalidate(ctx, sku)
		if lowStock && s.notifier != nil {
			if err := s.notifier.EnqueueLowStock(ctx, worker.LowStockEvent{
				SKU:    sku,
				OnHand: newTotal,
			}); err != nil {
				log.Warn().Err(err).Str("sku", sku).Msg("low-stock enqueue failed")
			}
		}

		return &dto.AdjustStockResponse{
			Movement: movementToResponse(movement),
			OnHand:   newTotal,
			LowStock: lowStock,
		}, nil
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// ── Reads ────────────────────────────────────────────────────────────────────
// Read-only calls bypass the idempotency envelope and run outside any
// row lock.

func (s *inventoryService) GetItem(ctx context.Context, sku string, includeStats bool) (*dto.ItemResponse, error) {
	item, err := s.items.FindBySKU(ctx, sku)
	if err != nil {
		return nil, err
	}
	resp := itemToResponse(item)
	if includeStats {
		onHand, err := s.cachedOnHand(ctx, sku)
		if err != nil {
			return nil, err
		}
		low := item.LowStock(onHand)
		resp.OnHand = &onHand
		resp.LowStock = &low
	}
	return resp, nil
}

func (s *inventoryService) ListItems(ctx context.Context, filter dto.ItemListFilter) (*dto.ItemListResponse, error) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.Limit < 1 {
		filter.Limit = 50
	}
	items, total, err := s.items.List(ctx, repository.ItemFilter{
		Status:   filter.Status,
		Category: filter.Category,
		Name:     filter.Name,
		SortKey:  filter.Sort,
		SortDesc: filter.Desc,
		Page:     filter.Page,
		Limit:    filter.Limit,
	})
	if err != nil {
		return nil, err
	}

	data := make([]dto.ItemResponse, 0, len(items))
	for i := range items {
		data = append(data, *itemToResponse(&items[i]))
	}
	totalPages := int((total + int64(filter.Limit) - 1) / int64(filter.Limit))
	return &dto.ItemListResponse{
		Data:       data,
		Total:      total,
		Page:       filter.Page,
		Limit:      filter.Limit,
		TotalPages: totalPages,
	}, nil
}

func (s *inventoryService) MovementHistory(ctx context.Context, sku string, since *time.Time) (*dto.MovementListResponse, error) {
	if _, err := s.items.FindBySKU(ctx, sku); err != nil {
		return nil, err
	}
	movements, err := s.ledger.History(ctx, sku, since)
	if err != nil {
		return nil, err
	}
	data := make([]dto.MovementResponse, 0, len(movements))
	for i := range movements {
		data = append(data, movementToResponse(&movements[i]))
	}
	return &dto.MovementListResponse{Data: data}, nil
}

// replayFromLedger rebuilds an adjust outcome from a movement already in the
// ledger under the caller's external_id. Returning it re-commits the outcome
// through the idempotency envelope, so later retries replay from the index
// again. appendErr is surfaced unchanged when no such movement exists (a
// genuinely contested key).
func (s *inventoryService) replayFromLedger(ctx context.Context, sku, externalID string, appendErr error) (*dto.AdjustStockResponse, error) {
	movement, err := s.ledger.FindByExternalID(ctx, externalID)
	if err != nil {
		if invdomain.Is(err, invdomain.KindNotFound) {
			return nil, appendErr
		}
		return nil, err
	}
	if movement.SKU != sku {
		return nil, invdomain.Ef(invdomain.KindIdempotencyConflict,
			"external_id %q was used for a movement on sku %q", externalID, movement.SKU)
	}

	item, err := s.items.FindBySKU(ctx, sku)
	if err != nil {
		return nil, err
	}
	onHand, err := s.ledger.OnHand(ctx, sku)
	if err != nil {
		return nil, err
	}
	return &dto.AdjustStockResponse{
		Movement: movementToResponse(movement),
		OnHand:   onHand,
		LowStock: item.LowStock(onHand),
	}, nil
}

// cachedOnHand serves read-path totals from redis when possible, falling back
// to a ledger re-sum. Mutations never consult this cache.
func (s *inventoryService) cachedOnHand(ctx context.Context, sku string) (int64, error) {
	if total, ok := s.onHand.Get(ctx, sku); ok {
		return total, nil
	}
	total, err := s.ledger.OnHand(ctx, sku)
	if err != nil {
		return 0, err
	}
	s.onHand.Set(ctx, sku, total)
	return total, nil
}

// ── Mapping ──────────────────────────────────────────────────────────────────

func itemToResponse(item *model.Item) *dto.ItemResponse {
	return &dto.ItemResponse{
		SKU:              item.SKU,
		Name:             item.Name,
		Unit:             item.Unit,
		Category:         item.Category,
		ReorderThreshold: item.ReorderThreshold,
		Cost:             item.Cost,
		Currency:         item.Currency,
		Description:      item.Description,
		Status:           item.Status,
		CreatedAt:        item.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:        item.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func movementToResponse(m *model.StockMovement) dto.MovementResponse {
	return dto.MovementResponse{
		MovementID: m.MovementID,
		SKU:        m.SKU,
		Delta:      m.Delta,
		Reason:     m.Reason,
		ExternalID: m.ExternalID,
		RecordedAt: m.RecordedAt.UTC().Format(time.RFC3339),
	}
}
