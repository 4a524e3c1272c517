package handler

import (
	"github.com/DnyaneshwarWantace/Rajdhani-Backend-sub000/internal/repository"
	"github.com/DnyaneshwarWantace/Rajdhani-Backend-sub000/internal/service"
	"github.com/gin-gonic/gin"
)

// MaterialHandler 物料与库存处理器
type MaterialHandler struct {
	svc      *service.MaterialService
	stockSvc *service.StockService
	unitSvc  *service.UnitService
}

func NewMaterialHandler(svc *service.MaterialService, stockSvc *service.StockService, unitSvc *service.UnitService) *MaterialHandler {
	return &MaterialHandler{svc: svc, stockSvc: stockSvc, unitSvc: unitSvc}
}

// List 物料列表
func (h *MaterialHandler) List(c *gin.Context) {
	page, pageSize := GetPagination(c)
	params := repository.MaterialListParams{
		Type:    c.Query("type"),
		Keyword: c.Query("keyword"),
		Status:  c.Query("stock_status"),
		Page:    page,
		Size:    pageSize,
	}

	items, total, err := h.svc.List(params)
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, ListResponse{Items: items, Pagination: NewPagination(page, pageSize, total)})
}

// Create 创建物料
func (h *MaterialHandler) Create(c *gin.Context) {
	var req service.CreateMaterialRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	m, err := h.svc.Create(req, GetUserID(c))
	if err != nil {
		Fail(c, err)
		return
	}
	Created(c, m)
}

// Get 物料详情（附库存状态）
func (h *MaterialHandler) Get(c *gin.Context) {
	m, err := h.svc.GetByID(c.Param("id"))
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, gin.H{
		"material":     m,
		"stock_status": m.StockStatusOf(),
	})
}

// Update 更新物料主数据
func (h *MaterialHandler) Update(c *gin.Context) {
	var req service.UpdateMaterialRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	m, err := h.svc.Update(c.Param("id"), req)
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, m)
}

// Delete 删除物料
func (h *MaterialHandler) Delete(c *gin.Context) {
	if err := h.svc.Delete(c.Param("id")); err != nil {
		Fail(c, err)
		return
	}
	Success(c, nil)
}

// UploadImage 上传物料图片
func (h *MaterialHandler) UploadImage(c *gin.Context) {
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		BadRequest(c, "缺少上传文件: "+err.Error())
		return
	}
	defer file.Close()

	m, err := h.svc.UploadImage(c.Request.Context(), c.Param("id"),
		header.Filename, file, header.Size, header.Header.Get("Content-Type"))
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, m)
}

type adjustStockRequest struct {
	Delta float64 `json:"delta" binding:"required"`
	Notes string  `json:"notes"`
}

// AdjustStock 手工调整聚合库存
func (h *MaterialHandler) AdjustStock(c *gin.Context) {
	var req adjustStockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	id := c.Param("id")
	if err := h.stockSvc.AdjustStock(id, req.Delta); err != nil {
		Fail(c, err)
		return
	}
	stock, err := h.stockSvc.GetStock(id)
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, gin.H{"material_id": id, "current_stock": stock})
}

// UnitCounts 单件/批次状态分布
func (h *MaterialHandler) UnitCounts(c *gin.Context) {
	counts, err := h.unitSvc.CountByStatus(c.Param("id"))
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, counts)
}

// CreateUnits 批量创建成品单件
func (h *MaterialHandler) CreateUnits(c *gin.Context) {
	var req service.CreateUnitsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	units, err := h.unitSvc.GenerateUnits(c.Param("id"), req, GetUserID(c))
	if err != nil {
		Fail(c, err)
		return
	}
	Created(c, gin.H{"units": units, "count": len(units)})
}

// ListUnits 成品单件清单
func (h *MaterialHandler) ListUnits(c *gin.Context) {
	units, err := h.unitSvc.ListUnits(c.Param("id"), c.Query("status"))
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, gin.H{"units": units})
}

// ReceiveLot 原材料到货入批
func (h *MaterialHandler) ReceiveLot(c *gin.Context) {
	var req service.ReceiveLotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	lot, err := h.unitSvc.ReceiveLot(c.Param("id"), req, GetUserID(c))
	if err != nil {
		Fail(c, err)
		return
	}
	Created(c, lot)
}

// ListLots 原材料批次清单
func (h *MaterialHandler) ListLots(c *gin.Context) {
	lots, err := h.unitSvc.ListLots(c.Param("id"), c.Query("status"))
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, gin.H{"lots": lots})
}
