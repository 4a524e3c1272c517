package handler

import (
	"github.com/DnyaneshwarWantace/Rajdhani-Backend-sub000/internal/repository"
	"github.com/DnyaneshwarWantace/Rajdhani-Backend-sub000/internal/service"
	"github.com/gin-gonic/gin"
)

// ConsumptionHandler 消耗记录处理器
type ConsumptionHandler struct {
	svc *service.ConsumptionService
}

func NewConsumptionHandler(svc *service.ConsumptionService) *ConsumptionHandler {
	return &ConsumptionHandler{svc: svc}
}

// Record 记录一次消耗
func (h *ConsumptionHandler) Record(c *gin.Context) {
	var req service.RecordConsumptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	rec, err := h.svc.Record(c.Request.Context(), req, GetUserID(c))
	if err != nil {
		Fail(c, err)
		return
	}
	Created(c, rec)
}

// Get 消耗记录详情
func (h *ConsumptionHandler) Get(c *gin.Context) {
	rec, err := h.svc.GetByID(c.Param("id"))
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, rec)
}

// List 消耗记录列表
func (h *ConsumptionHandler) List(c *gin.Context) {
	page, pageSize := GetPagination(c)
	params := repository.ConsumptionListParams{
		BatchID:      c.Query("production_batch_id"),
		MaterialID:   c.Query("material_id"),
		MaterialType: c.Query("material_type"),
		Status:       c.Query("status"),
		Page:         page,
		Size:         pageSize,
	}

	items, total, err := h.svc.List(params)
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, ListResponse{Items: items, Pagination: NewPagination(page, pageSize, total)})
}

type updateConsumptionStatusRequest struct {
	ConsumptionStatus string `json:"consumption_status" binding:"required"`
}

// UpdateStatus 推进原材料消耗状态（不允许回退）
func (h *ConsumptionHandler) UpdateStatus(c *gin.Context) {
	var req updateConsumptionStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	rec, err := h.svc.UpdateStatus(c.Request.Context(), c.Param("id"), req.ConsumptionStatus, GetUserID(c))
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, rec)
}

// Cancel 取消消耗并回补
func (h *ConsumptionHandler) Cancel(c *gin.Context) {
	rec, err := h.svc.Cancel(c.Request.Context(), c.Param("id"), GetUserID(c))
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, rec)
}

// BatchSummary 按批次汇总消耗
func (h *ConsumptionHandler) BatchSummary(c *gin.Context) {
	rows, err := h.svc.BatchSummary(c.Param("batchId"))
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, gin.H{"summary": rows})
}
