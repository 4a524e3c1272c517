package handler

import (
	"fmt"
	"net/url"

	"github.com/DnyaneshwarWantace/Rajdhani-Backend-sub000/internal/service"
	"github.com/gin-gonic/gin"
)

// ReportHandler 报表导出处理器
type ReportHandler struct {
	svc *service.ReportService
}

func NewReportHandler(svc *service.ReportService) *ReportHandler {
	return &ReportHandler{svc: svc}
}

// ExportBatchConsumption 导出批次消耗汇总Excel
func (h *ReportHandler) ExportBatchConsumption(c *gin.Context) {
	f, filename, err := h.svc.ExportBatchConsumption(c.Param("id"))
	if err != nil {
		Fail(c, err)
		return
	}

	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Header("Content-Disposition",
		fmt.Sprintf(`attachment; filename="%s"; filename*=UTF-8''%s`, filename, url.QueryEscape(filename)))
	if err := f.Write(c.Writer); err != nil {
		InternalError(c, "导出失败: "+err.Error())
	}
}
