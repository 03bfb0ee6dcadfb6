package dto

type AdjustStockRequest struct {
	Delta      int64   `json:"delta"`
	Reason     string  `json:"reason" validate:"required,min=1"`
	ExternalID *string `json:"external_id"`
}

type MovementResponse struct {
	MovementID uint64  `json:"movement_id"`
	SKU        string  `json:"sku"`
	Delta      int64   `json:"delta"`
	Reason     string  `json:"reason"`
	ExternalID *string `json:"external_id"`
	RecordedAt string  `json:"recorded_at"`
}

type AdjustStockResponse struct {
	Movement MovementResponse `json:"movement"`
	OnHand   int64            `json:"on_hand"`
	LowStock bool             `json:"low_stock"`
}

type MovementHistoryFilter struct {
	// Since is an RFC 3339 timestamp; empty means full history.
	Since string `form:"since" validate:"omitempty"`
}

type MovementListResponse struct {
	Data []MovementResponse `json:"data"`
}
