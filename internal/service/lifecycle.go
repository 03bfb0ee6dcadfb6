package service

import (
	"strings"
	"unicode"

	"invcore/internal/dto"
	"invcore/internal/invdomain"
	"invcore/internal/model"
	"invcore/internal/repository"

	"gorm.io/gorm"
)

// lifecycle is the item state machine. Every method runs inside a transaction
// owned by InventoryService and starts by taking a row lock on the item (via
// FindBySKUForUpdateTx), which serializes all mutations for the same SKU.
// Items have two states, active and inactive, each reachable from the other;
// invariants attach to the named transitions, never to raw field assignment.
type lifecycle struct {
	items  repository.ItemRepository
	ledger repository.StockLedger
}

func newLifecycle(items repository.ItemRepository, ledger repository.StockLedger) *lifecycle {
	return &lifecycle{items: items, ledger: ledger}
}

// ── Validation ───────────────────────────────────────────────────────────────

func validateSKU(sku string) error {
	if sku == "" {
		return invdomain.E(invdomain.KindInvalidInput, "sku must not be empty")
	}
	if strings.IndexFunc(sku, unicode.IsSpace) >= 0 {
		return invdomain.E(invdomain.KindInvalidInput, "sku must not contain whitespace")
	}
	return nil
}

// ── create ───────────────────────────────────────────────────────────────────

func (l *lifecycle) create(tx *gorm.DB, req dto.CreateItemRequest) (*model.Item, error) {
	if err := validateSKU(req.SKU); err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.Name) == "" {
		return nil, invdomain.E(invdomain.KindInvalidInput, "name must not be empty")
	}
	if strings.TrimSpace(req.Unit) == "" {
		return nil, invdomain.E(invdomain.KindInvalidInput, "unit must not be empty")
	}
	if req.ReorderThreshold < 0 {
		return nil, invdomain.E(invdomain.KindInvalidInput, "reorder_threshold must not be negative")
	}
	if (req.Cost == nil) != (req.Currency == nil) {
		return nil, invdomain.E(invdomain.KindInvalidCost, "cost and currency must both be provided or both be absent")
	}

	status := model.StatusActive
	if req.Active != nil && !*req.Active {
		status = model.StatusInactive
	}

	item := &model.Item{
		SKU:              req.SKU,
		Name:             req.Name,
		Unit:             req.Unit,
		Category:         req.Category,
		Description:      req.Description,
		ReorderThreshold: req.ReorderThreshold,
		Cost:             req.Cost,
		Currency:         req.Currency,
		Status:           status,
	}
	// No opening movement: a new item starts at zero on-hand because its
	// ledger is empty, not because a zero row was written.
	if err := l.items.CreateTx(tx, item); err != nil {
		return nil, err
	}
	return item, nil
}

// ── update ───────────────────────────────────────────────────────────────────
// Applies only the provided fields. The path SKU is authoritative — nothing in
// the request body can ever rename an item.

func (l *lifecycle) update(tx *gorm.DB, sku string, req dto.UpdateItemRequest) (*model.Item, error) {
	item, err := l.items.FindBySKUForUpdateTx(tx, sku)
	if err != nil {
		return nil, err
	}

	fields := map[string]any{}
	if req.Name != nil {
		if strings.TrimSpace(*req.Name) == "" {
			return nil, invdomain.E(invdomain.KindInvalidInput, "name must not be empty")
		}
		fields["name"] = *req.Name
	}
	if req.Unit != nil {
		if strings.TrimSpace(*req.Unit) == "" {
			return nil, invdomain.E(invdomain.KindInvalidInput, "unit must not be empty")
		}
		fields["unit"] = *req.Unit
	}
	if req.Category != nil {
		fields["category"] = *req.Category
	}
	if req.Description != nil {
		fields["description"] = *req.Description
	}
	if req.ReorderThreshold != nil {
		if *req.ReorderThreshold < 0 {
			return nil, invdomain.E(invdomain.KindInvalidInput, "reorder_threshold must not be negative")
		}
		fields["reorder_threshold"] = *req.ReorderThreshold
	}

	// Cost pairing is checked against the effective post-update values, so a
	// request may set cost alone on an item that already has a currency.
	cost, currency := item.Cost, item.Currency
	if req.Cost != nil {
		cost = req.Cost
		fields["cost"] = *req.Cost
	}
	if req.Currency != nil {
		currency = req.Currency
		fields["currency"] = *req.Currency
	}
	if (cost == nil) != (currency == nil) {
		return nil, invdomain.E(invdomain.KindInvalidCost, "cost and currency must both be provided or both be absent")
	}

	if len(fields) == 0 {
		return item, nil
	}
	if err := l.items.UpdateFieldsTx(tx, sku, fields); err != nil {
		return nil, err
	}
	return l.items.FindBySKUTx(tx, sku)
}

// ── activate / deactivate ────────────────────────────────────────────────────

func (l *lifecycle) activate(tx *gorm.DB, sku string) (*model.Item, error) {
	item, err := l.items.FindBySKUForUpdateTx(tx, sku)
	if err != nil {
		return nil, err
	}
	if item.Active() {
		// Idempotent no-op.
		return item, nil
	}
	if err := l.items.SetStatusTx(tx, sku, model.StatusActive, nil); err != nil {
		return nil, err
	}
	return l.items.FindBySKUTx(tx, sku)
}

// deactivate refuses while stock remains unless forced; a forced deactivation
// reports the residual quantity as a warning rather than dropping it silently.
func (l *lifecycle) deactivate(tx *gorm.DB, sku, reason string, force bool) (item *model.Item, residual int64, err error) {
	if strings.TrimSpace(reason) == "" {
		return nil, 0, invdomain.E(invdomain.KindInvalidInput, "deactivation reason is required")
	}
	item, err = l.items.FindBySKUForUpdateTx(tx, sku)
	if err != nil {
		return nil, 0, err
	}
	if !item.Active() {
		// Idempotent no-op.
		return item, 0, nil
	}

	onHand, err := l.ledger.OnHandTx(tx, sku)
	if err != nil {
		return nil, 0, err
	}
	if onHand != 0 && !force {
		return nil, 0, invdomain.Ef(invdomain.KindNonZeroOnHand,
			"item %q has %d on hand; pass force to deactivate anyway", sku, onHand)
	}

	if err := l.items.SetStatusTx(tx, sku, model.StatusInactive, &reason); err != nil {
		return nil, 0, err
	}
	item, err = l.items.FindBySKUTx(tx, sku)
	if err != nil {
		return nil, 0, err
	}
	return item, onHand, nil
}

// ── adjust ───────────────────────────────────────────────────────────────────

func (l *lifecycle) adjust(tx *gorm.DB, sku string, req dto.AdjustStockRequest) (*model.StockMovement, int64, bool, error) {
	if req.Delta == 0 {
		return nil, 0, false, invdomain.E(invdomain.KindInvalidInput, "delta must be nonzero")
	}
	if strings.TrimSpace(req.Reason) == "" {
		return nil, 0, false, invdomain.E(invdomain.KindInvalidInput, "movement reason is required")
	}

	item, err := l.items.FindBySKUForUpdateTx(tx, sku)
	if err != nil {
		return nil, 0, false, err
	}
	// Corrections stay legal on inactive items so historical errors can be
	// fixed after retirement.
	if !item.Active() && !model.CorrectionReason(req.Reason) {
		return nil, 0, false, invdomain.Ef(invdomain.KindInactiveItem,
			"item %q is inactive and %q is not a correction", sku, req.Reason)
	}

	onHand, err := l.ledger.OnHandTx(tx, sku)
	if err != nil {
		return nil, 0, false, err
	}
	newOnHand := onHand + req.Delta
	// Only corrections may take on-hand negative; reservations and every
	// other reason must leave a non-negative balance.
	if newOnHand < 0 && !model.CorrectionReason(req.Reason) {
		return nil, 0, false, invdomain.Ef(invdomain.KindInvalidDelta,
			"delta %d would take item %q to %d on hand", req.Delta, sku, newOnHand)
	}

	movement := &model.StockMovement{
		ItemID:     item.ID,
		SKU:        sku,
		Delta:      req.Delta,
		Reason:     req.Reason,
		ExternalID: req.ExternalID,
	}
	if err := l.ledger.AppendTx(tx, movement); err != nil {
		return nil, 0, false, err
	}
	return movement, newOnHand, item.LowStock(newOnHand), nil
}
