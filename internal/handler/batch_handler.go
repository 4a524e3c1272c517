package handler

import (
	"github.com/DnyaneshwarWantace/Rajdhani-Backend-sub000/internal/repository"
	"github.com/DnyaneshwarWantace/Rajdhani-Backend-sub000/internal/service"
	"github.com/gin-gonic/gin"
)

// BatchHandler 生产批次处理器
type BatchHandler struct {
	svc *service.StageService
}

func NewBatchHandler(svc *service.StageService) *BatchHandler {
	return &BatchHandler{svc: svc}
}

// Create 创建生产批次
func (h *BatchHandler) Create(c *gin.Context) {
	var req service.CreateBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	b, err := h.svc.CreateBatch(req, GetUserID(c))
	if err != nil {
		Fail(c, err)
		return
	}
	Created(c, b)
}

// Get 批次详情
func (h *BatchHandler) Get(c *gin.Context) {
	b, err := h.svc.GetBatch(c.Param("id"))
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, b)
}

// List 批次列表
func (h *BatchHandler) List(c *gin.Context) {
	page, pageSize := GetPagination(c)
	params := repository.BatchListParams{
		ProductID: c.Query("product_id"),
		Status:    c.Query("status"),
		Keyword:   c.Query("keyword"),
		Page:      page,
		Size:      pageSize,
	}

	items, total, err := h.svc.ListBatches(params)
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, ListResponse{Items: items, Pagination: NewPagination(page, pageSize, total)})
}

// Stages 批次阶段视图（查询时顺手做一次推断）
func (h *BatchHandler) Stages(c *gin.Context) {
	view, err := h.svc.Stages(c.Param("id"), GetUserID(c))
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, view)
}

// InferStages 手工触发阶段推断
func (h *BatchHandler) InferStages(c *gin.Context) {
	b, err := h.svc.InferBatchStages(c.Param("id"), GetUserID(c))
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, b)
}

type completeWastageRequest struct {
	Wastes []service.WasteItem `json:"wastes"`
}

// CompleteWastage 提交废料并完成废料阶段（允许零废料）
func (h *BatchHandler) CompleteWastage(c *gin.Context) {
	var req completeWastageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	b, err := h.svc.CompleteWastage(c.Param("id"), req.Wastes, GetUserID(c))
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, b)
}

type completeFinalRequest struct {
	ProducedCount int `json:"produced_count" binding:"required,gt=0"`
}

// CompleteFinal 完成最终阶段并生成产出单件
func (h *BatchHandler) CompleteFinal(c *gin.Context) {
	var req completeFinalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	b, err := h.svc.CompleteFinal(c.Param("id"), req.ProducedCount, GetUserID(c))
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, b)
}

// CreateFlowStep 添加工序步骤
func (h *BatchHandler) CreateFlowStep(c *gin.Context) {
	var req service.CreateFlowStepRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	step, err := h.svc.CreateFlowStep(c.Param("id"), req, GetUserID(c))
	if err != nil {
		Fail(c, err)
		return
	}
	Created(c, step)
}

// ListFlowSteps 工序步骤列表
func (h *BatchHandler) ListFlowSteps(c *gin.Context) {
	steps, err := h.svc.ListFlowSteps(c.Param("id"))
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, gin.H{"steps": steps})
}

type updateFlowStepRequest struct {
	Status string `json:"status" binding:"required"`
}

// UpdateFlowStep 推进工序步骤状态
func (h *BatchHandler) UpdateFlowStep(c *gin.Context) {
	var req updateFlowStepRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	step, err := h.svc.UpdateFlowStepStatus(c.Param("stepId"), req.Status, GetUserID(c))
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, step)
}
