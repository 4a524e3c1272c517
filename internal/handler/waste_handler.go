package handler

import (
	"github.com/DnyaneshwarWantace/Rajdhani-Backend-sub000/internal/repository"
	"github.com/DnyaneshwarWantace/Rajdhani-Backend-sub000/internal/service"
	"github.com/gin-gonic/gin"
)

// WasteHandler 废料记录处理器
type WasteHandler struct {
	svc *service.WasteService
}

func NewWasteHandler(svc *service.WasteService) *WasteHandler {
	return &WasteHandler{svc: svc}
}

// Create 登记废料
func (h *WasteHandler) Create(c *gin.Context) {
	var req service.CreateWasteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	w, err := h.svc.Create(req, GetUserID(c))
	if err != nil {
		Fail(c, err)
		return
	}
	Created(c, w)
}

// Get 废料详情
func (h *WasteHandler) Get(c *gin.Context) {
	w, err := h.svc.GetByID(c.Param("id"))
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, w)
}

// List 废料列表
func (h *WasteHandler) List(c *gin.Context) {
	page, pageSize := GetPagination(c)
	params := repository.WasteListParams{
		BatchID:    c.Query("production_batch_id"),
		MaterialID: c.Query("material_id"),
		Status:     c.Query("status"),
		Page:       page,
		Size:       pageSize,
	}

	items, total, err := h.svc.List(params)
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, ListResponse{Items: items, Pagination: NewPagination(page, pageSize, total)})
}

// Reuse 回用废料（幂等，不会重复回补）
func (h *WasteHandler) Reuse(c *gin.Context) {
	w, err := h.svc.Reuse(c.Param("id"), GetUserID(c))
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, w)
}

// Dispose 废弃处置
func (h *WasteHandler) Dispose(c *gin.Context) {
	w, err := h.svc.Dispose(c.Param("id"), GetUserID(c))
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, w)
}
