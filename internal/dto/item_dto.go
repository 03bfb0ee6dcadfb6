package dto

import "github.com/shopspring/decimal"

// ─── Request DTOs ────────────────────────────────────────────────────────────

type CreateItemRequest struct {
	SKU              string           `json:"sku"               validate:"required,max=64"`
	Name             string           `json:"name"              validate:"required,min=1,max=120"`
	Unit             string           `json:"unit"              validate:"required,max=32"`
	Category         *string          `json:"category"`
	ReorderThreshold int              `json:"reorder_threshold" validate:"min=0"`
	Cost             *decimal.Decimal `json:"cost"`
	Currency         *string          `json:"currency"          validate:"omitempty,iso4217"`
	Description      *string          `json:"description"`
	// Active defaults to true when omitted.
	Active     *bool   `json:"active"`
	ExternalID *string `json:"external_id"`
}

type UpdateItemRequest struct {
	Name             *string          `json:"name"              validate:"omitempty,min=1,max=120"`
	Unit             *string          `json:"unit"              validate:"omitempty,min=1,max=32"`
	Category         *string          `json:"category"`
	ReorderThreshold *int             `json:"reorder_threshold" validate:"omitempty,min=0"`
	Cost             *decimal.Decimal `json:"cost"`
	Currency         *string          `json:"currency"          validate:"omitempty,iso4217"`
	Description      *string          `json:"description"`
}

type DeactivateItemRequest struct {
	Reason string `json:"reason" validate:"required,min=1"`
	Force  bool   `json:"force"`
}

// ─── Filter / Pagination ─────────────────────────────────────────────────────

type ItemListFilter struct {
	// Status: "" or "active" (default) | "inactive" | "all"
	Status   string `form:"status"   validate:"omitempty,oneof=active inactive all"`
	Category string `form:"category"`
	Name     string `form:"name"`
	Sort     string `form:"sort,default=sku" validate:"omitempty,oneof=sku name category updated_at"`
	Desc     bool   `form:"desc"`
	Page     int    `form:"page,default=1"   validate:"min=1"`
	Limit    int    `form:"limit,default=50" validate:"min=1,max=500"`
}

// ─── Response DTOs ───────────────────────────────────────────────────────────

type ItemResponse struct {
	SKU              string           `json:"sku"`
	Name             string           `json:"name"`
	Unit             string           `json:"unit"`
	Category         *string          `json:"category"`
	ReorderThreshold int              `json:"reorder_threshold"`
	Cost             *decimal.Decimal `json:"cost"`
	Currency         *string          `json:"currency"`
	Description      *string          `json:"description"`
	Status           string           `json:"status"`
	CreatedAt        string           `json:"created_at"`
	UpdatedAt        string           `json:"updated_at"`

	// Populated only when stats were requested.
	OnHand   *int64 `json:"on_hand,omitempty"`
	LowStock *bool  `json:"low_stock,omitempty"`

	// Set by a forced deactivation that left stock behind.
	StockWarning   bool   `json:"stock_warning,omitempty"`
	ResidualOnHand *int64 `json:"residual_on_hand,omitempty"`
}

type ItemListResponse struct {
	Data       []ItemResponse `json:"data"`
	Total      int64          `json:"total"`
	Page       int            `json:"page"`
	Limit      int            `json:"limit"`
	TotalPages int            `json:"total_pages"`
}
