package handler

import (
	"net/http"
	"time"

	"invcore/internal/apierror"
	"invcore/internal/dto"
	"invcore/internal/invdomain"
	"invcore/internal/service"

	"github.com/gin-gonic/gin"
)

type StockHandler struct{ svc service.InventoryService }

func NewStockHandler(svc service.InventoryService) *StockHandler {
	return &StockHandler{svc: svc}
}

func (h *StockHandler) Adjust(c *gin.Context) {
	var req dto.AdjustStockRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.AdjustStock(c.Request.Context(), c.Param("sku"), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

func (h *StockHandler) History(c *gin.Context) {
	var since *time.Time
	if raw := c.Query("since"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, apierror.New(string(invdomain.KindInvalidInput),
				"since must be an RFC 3339 timestamp"))
			return
		}
		since = &parsed
	}
	resp, err := h.svc.MovementHistory(c.Request.Context(), c.Param("sku"), since)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
