package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/DnyaneshwarWantace/Rajdhani-Backend-sub000/internal/entity"
	"github.com/DnyaneshwarWantace/Rajdhani-Backend-sub000/internal/repository"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	// 单次批量创建单件的上限
	maxBulkUnits = 1000
)

// UnitService 单件/批次注册表
type UnitService struct {
	materialRepo *repository.MaterialRepository
	unitRepo     *repository.UnitRepository
	stockSvc     *StockService
	db           *gorm.DB
	logger       *zap.Logger
}

func NewUnitService(materialRepo *repository.MaterialRepository, unitRepo *repository.UnitRepository, stockSvc *StockService, db *gorm.DB, logger *zap.Logger) *UnitService {
	return &UnitService{materialRepo: materialRepo, unitRepo: unitRepo, stockSvc: stockSvc, db: db, logger: logger}
}

type CreateUnitsRequest struct {
	Count        int    `json:"count" binding:"required"`
	BatchID      string `json:"production_batch_id"`
	QualityGrade string `json:"quality_grade"`
	SerialPrefix string `json:"serial_prefix"`
}

// CreateProductUnits 批量创建成品单件，默认 available
func (s *UnitService) CreateProductUnits(tx *gorm.DB, materialID string, req CreateUnitsRequest, userID string) ([]entity.ProductUnit, error) {
	if req.Count < 1 || req.Count > maxBulkUnits {
		return nil, validationf("单件数量必须在 [1,%d] 之间: %d", maxBulkUnits, req.Count)
	}

	materialRepo := s.materialRepo.WithTx(tx)
	unitRepo := s.unitRepo.WithTx(tx)

	m, err := materialRepo.GetByID(materialID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, notFoundf("物料不存在: %s", materialID)
	}
	if err != nil {
		return nil, err
	}
	if m.Type != entity.MaterialTypeProduct {
		return nil, validationf("物料 %s 不是成品，不能创建单件", materialID)
	}
	if !m.UnitTracking {
		return nil, validationf("物料 %s 未启用单件追踪", materialID)
	}

	prefix := req.SerialPrefix
	if prefix == "" {
		prefix = m.Code
	}
	now := time.Now()
	units := make([]entity.ProductUnit, 0, req.Count)
	for i := 0; i < req.Count; i++ {
		units = append(units, entity.ProductUnit{
			ID:           "PU-" + uuid.New().String()[:18],
			MaterialID:   materialID,
			SerialNo:     fmt.Sprintf("%s-%d-%04d", prefix, now.UnixMilli(), i+1),
			BatchID:      req.BatchID,
			Status:       entity.UnitStatusAvailable,
			QualityGrade: req.QualityGrade,
			ProducedAt:   &now,
		})
	}
	if err := unitRepo.CreateProductUnits(units); err != nil {
		return nil, fmt.Errorf("创建单件失败: %w", err)
	}
	return units, nil
}

// GenerateUnits 独立入库场景下批量创建单件并重算聚合库存
func (s *UnitService) GenerateUnits(materialID string, req CreateUnitsRequest, userID string) ([]entity.ProductUnit, error) {
	var units []entity.ProductUnit
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var err error
		units, err = s.CreateProductUnits(tx, materialID, req, userID)
		if err != nil {
			return err
		}
		_, err = s.stockSvc.RecomputeFromUnits(tx, materialID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return units, nil
}

// ListUnits 某成品的单件清单
func (s *UnitService) ListUnits(materialID, status string) ([]entity.ProductUnit, error) {
	return s.unitRepo.ListProductUnits(materialID, status)
}

// ListLots 某原材料的批次清单
func (s *UnitService) ListLots(materialID, status string) ([]entity.RawMaterialLot, error) {
	return s.unitRepo.ListLots(materialID, status)
}

// TransitionProductUnits 成品单件整件流转，并记状态历史
func (s *UnitService) TransitionProductUnits(tx *gorm.DB, unitIDs []string, newStatus, context, userID string) error {
	if len(unitIDs) == 0 {
		return nil
	}
	unitRepo := s.unitRepo.WithTx(tx)

	units, err := unitRepo.GetProductUnits(unitIDs)
	if err != nil {
		return err
	}
	if len(units) != len(unitIDs) {
		return notFoundf("部分单件不存在: 请求%d个，找到%d个", len(unitIDs), len(units))
	}
	if err := unitRepo.UpdateProductUnitStatus(unitIDs, newStatus); err != nil {
		return err
	}

	logs := make([]entity.UnitStatusLog, 0, len(units))
	for _, u := range units {
		logs = append(logs, entity.UnitStatusLog{
			ID:         "USL-" + uuid.New().String()[:18],
			UnitID:     u.ID,
			UnitType:   "product_unit",
			FromStatus: u.Status,
			ToStatus:   newStatus,
			Context:    context,
			ChangedBy:  userID,
		})
	}
	return unitRepo.CreateStatusLogs(logs)
}

// SplitResult 批次拆分结果
type SplitResult struct {
	Remainder *entity.RawMaterialLot `json:"remainder"`
	Split     *entity.RawMaterialLot `json:"split"`
}

// SplitLot 原材料批次拆分：原批次缩减为 Q-u 保持原状态，消耗部分 u 生成新批次
// 数量守恒 remainder.Quantity + split.Quantity == 原 Quantity，成本按比例重算
func (s *UnitService) SplitLot(tx *gorm.DB, lotID string, amount float64, newStatus string) (*SplitResult, error) {
	if amount <= 0 {
		return nil, validationf("拆分数量必须大于0: %.4f", amount)
	}
	unitRepo := s.unitRepo.WithTx(tx)

	lot, err := unitRepo.GetLot(lotID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, notFoundf("批次不存在: %s", lotID)
	}
	if err != nil {
		return nil, err
	}
	if amount > lot.Quantity {
		return nil, validationf("拆分数量 %.4f 超过批次数量 %.4f", amount, lot.Quantity)
	}

	split := &entity.RawMaterialLot{
		ID:           "LOT-" + uuid.New().String()[:18],
		MaterialID:   lot.MaterialID,
		BatchNo:      lot.BatchNo,
		Quantity:     amount,
		Unit:         lot.Unit,
		UnitCost:     lot.UnitCost,
		TotalCost:    lot.UnitCost * amount,
		SupplierName: lot.SupplierName,
		Status:       newStatus,
		ParentLotID:  lot.ID,
		ReceivedAt:   lot.ReceivedAt,
	}
	if err := unitRepo.CreateLot(split); err != nil {
		return nil, fmt.Errorf("创建拆分批次失败: %w", err)
	}

	lot.Quantity -= amount
	lot.TotalCost = lot.UnitCost * lot.Quantity
	if err := unitRepo.UpdateLot(lot); err != nil {
		return nil, fmt.Errorf("更新原批次失败: %w", err)
	}

	return &SplitResult{Remainder: lot, Split: split}, nil
}

// ConsumedLot 一次消耗动用的批次及数量
type ConsumedLot struct {
	LotID    string  `json:"lot_id"`
	Quantity float64 `json:"quantity"`
}

// ConsumeLots FIFO 消耗原材料批次：最老的先用，末尾批次不够整批时走拆分
// 返回动用的批次明细（整批流转的用原批次ID，拆分的用新批次ID）
func (s *UnitService) ConsumeLots(tx *gorm.DB, materialID string, qty float64, newStatus, context, userID string) ([]ConsumedLot, error) {
	if qty <= 0 {
		return nil, validationf("消耗数量必须大于0: %.4f", qty)
	}
	unitRepo := s.unitRepo.WithTx(tx)

	lots, err := unitRepo.AvailableLotsFIFO(materialID)
	if err != nil {
		return nil, err
	}

	var consumed []ConsumedLot
	var logs []entity.UnitStatusLog
	remaining := qty
	for _, lot := range lots {
		if remaining <= 0 {
			break
		}
		if lot.Quantity <= remaining {
			// 整批流转
			if err := unitRepo.UpdateLotStatus([]string{lot.ID}, newStatus); err != nil {
				return nil, err
			}
			consumed = append(consumed, ConsumedLot{LotID: lot.ID, Quantity: lot.Quantity})
			logs = append(logs, entity.UnitStatusLog{
				ID:         "USL-" + uuid.New().String()[:18],
				UnitID:     lot.ID,
				UnitType:   "raw_lot",
				FromStatus: lot.Status,
				ToStatus:   newStatus,
				Context:    context,
				ChangedBy:  userID,
			})
			remaining -= lot.Quantity
			continue
		}
		// 部分消耗走拆分
		result, err := s.SplitLot(tx, lot.ID, remaining, newStatus)
		if err != nil {
			return nil, err
		}
		consumed = append(consumed, ConsumedLot{LotID: result.Split.ID, Quantity: remaining})
		logs = append(logs, entity.UnitStatusLog{
			ID:         "USL-" + uuid.New().String()[:18],
			UnitID:     result.Split.ID,
			UnitType:   "raw_lot",
			FromStatus: entity.UnitStatusAvailable,
			ToStatus:   newStatus,
			Context:    context,
			ChangedBy:  userID,
		})
		remaining = 0
	}

	if remaining > 0 {
		return nil, insufficientf("物料 %s 批次不足: 还差 %.4f", materialID, remaining)
	}
	if err := unitRepo.CreateStatusLogs(logs); err != nil {
		return nil, err
	}
	return consumed, nil
}

type ReceiveLotRequest struct {
	Quantity     float64 `json:"quantity" binding:"required,gt=0"`
	Unit         string  `json:"unit"`
	UnitCost     float64 `json:"unit_cost"`
	BatchNo      string  `json:"batch_no"`
	SupplierName string  `json:"supplier_name"`
}

// ReceiveLot 原材料到货入批，同步更新聚合库存
func (s *UnitService) ReceiveLot(materialID string, req ReceiveLotRequest, userID string) (*entity.RawMaterialLot, error) {
	m, err := s.materialRepo.GetByID(materialID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, notFoundf("物料不存在: %s", materialID)
	}
	if err != nil {
		return nil, err
	}
	if m.Type != entity.MaterialTypeRaw {
		return nil, validationf("物料 %s 不是原材料，不能入批", materialID)
	}

	now := time.Now()
	unit := req.Unit
	if unit == "" {
		unit = m.Unit
	}
	batchNo := req.BatchNo
	if batchNo == "" {
		batchNo = fmt.Sprintf("%s%03d", now.Format("20060102"), now.UnixNano()%1000)
	}

	lot := &entity.RawMaterialLot{
		ID:           "LOT-" + uuid.New().String()[:18],
		MaterialID:   materialID,
		BatchNo:      batchNo,
		Quantity:     req.Quantity,
		Unit:         unit,
		UnitCost:     req.UnitCost,
		TotalCost:    req.UnitCost * req.Quantity,
		SupplierName: req.SupplierName,
		Status:       entity.UnitStatusAvailable,
		ReceivedAt:   now,
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := s.unitRepo.WithTx(tx).CreateLot(lot); err != nil {
			return fmt.Errorf("创建批次失败: %w", err)
		}
		if m.UnitTracking {
			_, err := s.stockSvc.RecomputeFromUnits(tx, materialID)
			return err
		}
		return s.materialRepo.WithTx(tx).AtomicCredit(materialID, req.Quantity)
	})
	if err != nil {
		return nil, err
	}
	return lot, nil
}

// CountByStatus 单件/批次状态分布：成品计件数，原材料汇总数量
func (s *UnitService) CountByStatus(materialID string) (map[string]float64, error) {
	m, err := s.materialRepo.GetByID(materialID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, notFoundf("物料不存在: %s", materialID)
	}
	if err != nil {
		return nil, err
	}

	result := make(map[string]float64)
	switch m.Type {
	case entity.MaterialTypeProduct:
		counts, err := s.unitRepo.CountProductUnitsByStatus(materialID)
		if err != nil {
			return nil, err
		}
		for status, count := range counts {
			result[status] = float64(count)
		}
	case entity.MaterialTypeRaw:
		sums, err := s.unitRepo.SumLotQuantityByStatus(materialID)
		if err != nil {
			return nil, err
		}
		result = sums
	}
	return result, nil
}
