package handler

import (
	"net/http"

	"invcore/internal/apierror"
	"invcore/internal/dto"
	"invcore/internal/invdomain"
	"invcore/internal/service"

	"github.com/gin-gonic/gin"
)

type ItemsHandler struct{ svc service.InventoryService }

func NewItemsHandler(svc service.InventoryService) *ItemsHandler {
	return &ItemsHandler{svc: svc}
}

func (h *ItemsHandler) Create(c *gin.Context) {
	var req dto.CreateItemRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.CreateItem(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

func (h *ItemsHandler) Get(c *gin.Context) {
	includeStats := c.Query("include_stats") == "true"
	resp, err := h.svc.GetItem(c.Request.Context(), c.Param("sku"), includeStats)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *ItemsHandler) List(c *gin.Context) {
	var filter dto.ItemListFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		c.JSON(http.StatusBadRequest, apierror.New(string(invdomain.KindInvalidInput), err.Error()))
		return
	}
	if err := validate.Struct(&filter); err != nil {
		c.JSON(http.StatusBadRequest, apierror.New(string(invdomain.KindInvalidInput), err.Error()))
		return
	}
	resp, err := h.svc.ListItems(c.Request.Context(), filter)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *ItemsHandler) Update(c *gin.Context) {
	var req dto.UpdateItemRequest
	if !bindAndValidate(c, &req) {
		return
	}
	// The path SKU is authoritative; the body cannot carry one.
	resp, err := h.svc.UpdateItem(c.Request.Context(), c.Param("sku"), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *ItemsHandler) Activate(c *gin.Context) {
	resp, err := h.svc.ActivateItem(c.Request.Context(), c.Param("sku"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *ItemsHandler) Deactivate(c *gin.Context) {
	var req dto.DeactivateItemRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.DeactivateItem(c.Request.Context(), c.Param("sku"), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
