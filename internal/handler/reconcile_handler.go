package handler

import (
	"github.com/DnyaneshwarWantace/Rajdhani-Backend-sub000/internal/service"
	"github.com/gin-gonic/gin"
)

// ReconcileHandler 库存对账与修复处理器（管理端）
type ReconcileHandler struct {
	svc      *service.ReconcileService
	stageSvc *service.StageService
}

func NewReconcileHandler(svc *service.ReconcileService, stageSvc *service.StageService) *ReconcileHandler {
	return &ReconcileHandler{svc: svc, stageSvc: stageSvc}
}

// ReconcileMaterial 对账单个物料，返回修复前后的库存
func (h *ReconcileHandler) ReconcileMaterial(c *gin.Context) {
	drift, err := h.svc.ReconcileMaterialStock(c.Param("id"))
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, drift)
}

// ReconcileAll 全量对账
func (h *ReconcileHandler) ReconcileAll(c *gin.Context) {
	drifts, err := h.svc.ReconcileAll()
	if err != nil {
		Fail(c, err)
		return
	}

	drifted := 0
	for _, d := range drifts {
		if d.Drifted {
			drifted++
		}
	}
	Success(c, gin.H{"materials": len(drifts), "drifted": drifted, "results": drifts})
}

// BackfillUnitLinks 回填历史消耗记录缺失的单件关联
func (h *ReconcileHandler) BackfillUnitLinks(c *gin.Context) {
	result, err := h.svc.BackfillConsumptionUnitLinks()
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, result)
}

// FixBatchStages 全量批次阶段修复
func (h *ReconcileHandler) FixBatchStages(c *gin.Context) {
	fixed, err := h.stageSvc.FixBatchStages()
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, gin.H{"fixed": fixed})
}
