package service

import (
	"fmt"

	"github.com/xuri/excelize/v2"
)

// ReportService 报表导出
type ReportService struct {
	consumptionSvc *ConsumptionService
	stageSvc       *StageService
}

func NewReportService(consumptionSvc *ConsumptionService, stageSvc *StageService) *ReportService {
	return &ReportService{consumptionSvc: consumptionSvc, stageSvc: stageSvc}
}

// ExportBatchConsumption 导出批次消耗汇总为 Excel
func (s *ReportService) ExportBatchConsumption(batchID string) (*excelize.File, string, error) {
	batch, err := s.stageSvc.GetBatch(batchID)
	if err != nil {
		return nil, "", err
	}
	rows, err := s.consumptionSvc.BatchSummary(batchID)
	if err != nil {
		return nil, "", err
	}

	f := excelize.NewFile()
	sheet := "消耗汇总"
	f.SetSheetName("Sheet1", sheet)

	headers := []string{"物料ID", "物料名称", "类型", "单位", "记账用量", "实际用量", "记录数"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheet, cell, h)
	}
	for i, row := range rows {
		values := []interface{}{
			row.MaterialID, row.MaterialName, row.MaterialType, row.Unit,
			row.TotalQuantityUsed, row.TotalActualConsumed, row.RecordCount,
		}
		for j, v := range values {
			cell, _ := excelize.CoordinatesToCellName(j+1, i+2)
			f.SetCellValue(sheet, cell, v)
		}
	}

	filename := fmt.Sprintf("consumption_%s.xlsx", batch.BatchNumber)
	return f, filename, nil
}
