package repository

import (
	"context"
	"errors"
	"fmt"

	"invcore/internal/invdomain"
	"invcore/internal/model"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ItemFilter defines filters and ordering for listing catalog items.
type ItemFilter struct {
	// Status: "inactive" = inactive only, "all" = everything,
	// anything else = active only (default).
	Status   string
	Category string
	Name     string
	// SortKey: sku | name | category | updated_at. Ties broken by sku ASC.
	SortKey  string
	SortDesc bool
	Page     int
	Limit    int
}

// ItemRepository is the data access contract for catalog items. Services
// depend on this interface, not on the concrete GORM implementation, enabling
// clean unit testing via stubs. The *Tx variants run against a live
// transaction owned by the caller.
type ItemRepository interface {
	CreateTx(tx *gorm.DB, item *model.Item) error
	FindBySKU(ctx context.Context, sku string) (*model.Item, error)
	FindBySKUTx(tx *gorm.DB, sku string) (*model.Item, error)
	// FindBySKUForUpdateTx takes a row lock on the item, serializing all
	// mutations for the same SKU against each other.
	FindBySKUForUpdateTx(tx *gorm.DB, sku string) (*model.Item, error)
	UpdateFieldsTx(tx *gorm.DB, sku string, fields map[string]any) error
	SetStatusTx(tx *gorm.DB, sku, status string, deactivationReason *string) error
	List(ctx context.Context, filter ItemFilter) ([]model.Item, int64, error)

	// DB exposes the underlying *gorm.DB so services can open transactions.
	DB() *gorm.DB
}

type itemRepo struct{ db *gorm.DB }

func NewItemRepository(db *gorm.DB) ItemRepository { return &itemRepo{db: db} }

func (r *itemRepo) CreateTx(tx *gorm.DB, item *model.Item) error {
	if err := tx.Create(item).Error; err != nil {
		if isUniqueViolation(err) {
			return invdomain.Ef(invdomain.KindDuplicateSKU, "item %q already exists", item.SKU)
		}
		return translateStorageError(err, "create item")
	}
	return nil
}

func (r *itemRepo) FindBySKU(ctx context.Context, sku string) (*model.Item, error) {
	return findItem(r.db.WithContext(ctx), sku)
}

func (r *itemRepo) FindBySKUTx(tx *gorm.DB, sku string) (*model.Item, error) {
	return findItem(tx, sku)
}

func (r *itemRepo) FindBySKUForUpdateTx(tx *gorm.DB, sku string) (*model.Item, error) {
	return findItem(tx.Clauses(clause.Locking{Strength: "UPDATE"}), sku)
}

func findItem(q *gorm.DB, sku string) (*model.Item, error) {
	var item model.Item
	err := q.Where("sku = ?", sku).First(&item).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, invdomain.Ef(invdomain.KindNotFound, "item %q not found", sku)
		}
		return nil, translateStorageError(err, "find item")
	}
	return &item, nil
}

// UpdateFieldsTx applies only the provided columns. The SKU column is never
// part of fields — identity is immutable and the caller enforces that.
func (r *itemRepo) UpdateFieldsTx(tx *gorm.DB, sku string, fields map[string]any) error {
	res := tx.Model(&model.Item{}).Where("sku = ?", sku).Updates(fields)
	if res.Error != nil {
		return translateStorageError(res.Error, "update item")
	}
	if res.RowsAffected == 0 {
		return invdomain.Ef(invdomain.KindNotFound, "item %q not found", sku)
	}
	return nil
}

// SetStatusTx transitions the status column. Legality of the transition has
// already been validated by the lifecycle layer.
func (r *itemRepo) SetStatusTx(tx *gorm.DB, sku, status string, deactivationReason *string) error {
	fields := map[string]any{
		"status":              status,
		"deactivation_reason": deactivationReason,
	}
	return r.UpdateFieldsTx(tx, sku, fields)
}

func (r *itemRepo) List(ctx context.Context, filter ItemFilter) ([]model.Item, int64, error) {
	q := r.db.WithContext(ctx).Model(&model.Item{})

	switch filter.Status {
	case "inactive":
		q = q.Where("status = ?", model.StatusInactive)
	case "all":
		// no filter
	default:
		q = q.Where("status = ?", model.StatusActive)
	}
	if filter.Category != "" {
		q = q.Where("category = ?", filter.Category)
	}
	if filter.Name != "" {
		q = q.Where("name ILIKE ?", "%"+filter.Name+"%")
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, translateStorageError(err, "count items")
	}

	page := filter.Page
	limit := filter.Limit
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 500 {
		limit = 100
	}
	offset := (page - 1) * limit

	var items []model.Item
	err := q.Order(orderClause(filter)).Offset(offset).Limit(limit).Find(&items).Error
	if err != nil {
		return nil, 0, translateStorageError(err, "list items")
	}
	return items, total, nil
}

// orderClause builds a safe ORDER BY from the whitelisted sort keys,
// always tie-breaking by sku ascending.
func orderClause(filter ItemFilter) string {
	key := filter.SortKey
	switch key {
	case "name", "category", "updated_at":
	default:
		key = "sku"
	}
	dir := "ASC"
	if filter.SortDesc {
		dir = "DESC"
	}
	if key == "sku" {
		return "sku " + dir
	}
	return fmt.Sprintf("%s %s, sku ASC", key, dir)
}

func (r *itemRepo) DB() *gorm.DB { return r.db }

// ── Storage error translation ────────────────────────────────────────────────
// Raw driver errors never cross the repository boundary (shared by all repos
// in this package).

const (
	pgUniqueViolation   = "23505"
	pgLockNotAvailable  = "55P03"
	pgQueryCanceled     = "57014"
	pgSerializationFail = "40001"
)

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation ||
		errors.Is(err, gorm.ErrDuplicatedKey)
}

func translateStorageError(err error, op string) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgLockNotAvailable, pgQueryCanceled:
			return invdomain.Wrap(invdomain.KindTimeout, op+" timed out", err)
		case pgSerializationFail:
			return invdomain.Wrap(invdomain.KindInProgress, op+" conflicted with a concurrent request", err)
		}
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return invdomain.Wrap(invdomain.KindTimeout, op+" cancelled", err)
	}
	return invdomain.Wrap(invdomain.KindInternal, op+" failed", err)
}
