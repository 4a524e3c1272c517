package service

import (
	"errors"

	"github.com/DnyaneshwarWantace/Rajdhani-Backend-sub000/internal/entity"
	"github.com/DnyaneshwarWantace/Rajdhani-Backend-sub000/internal/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// StockService 聚合库存台账
type StockService struct {
	materialRepo *repository.MaterialRepository
	unitRepo     *repository.UnitRepository
	logger       *zap.Logger
}

func NewStockService(materialRepo *repository.MaterialRepository, unitRepo *repository.UnitRepository, logger *zap.Logger) *StockService {
	return &StockService{materialRepo: materialRepo, unitRepo: unitRepo, logger: logger}
}

func (s *StockService) GetStock(materialID string) (float64, error) {
	m, err := s.materialRepo.GetByID(materialID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, notFoundf("物料不存在: %s", materialID)
	}
	if err != nil {
		return 0, err
	}
	return m.CurrentStock, nil
}

// AdjustStock 聚合库存增减，减库存走条件更新，不允许扣成负数
func (s *StockService) AdjustStock(materialID string, delta float64) error {
	_, err := s.materialRepo.GetByID(materialID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return notFoundf("物料不存在: %s", materialID)
	}
	if err != nil {
		return err
	}
	if delta >= 0 {
		return s.materialRepo.AtomicCredit(materialID, delta)
	}
	ok, err := s.materialRepo.AtomicDeduct(materialID, -delta)
	if err != nil {
		return err
	}
	if !ok {
		return insufficientf("物料 %s 库存不足，无法扣减 %.4f", materialID, -delta)
	}
	return nil
}

// RecomputeFromUnits 从单件/批次记录重算聚合库存，幂等
// 成品：available 单件数；原材料：available + in_production 批次数量合计
// （原材料在 in_production 阶段尚未扣账，重算必须把占用中的批次计入，否则会重复扣减）
func (s *StockService) RecomputeFromUnits(tx *gorm.DB, materialID string) (float64, error) {
	materialRepo := s.materialRepo.WithTx(tx)
	unitRepo := s.unitRepo.WithTx(tx)

	m, err := materialRepo.GetByID(materialID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, notFoundf("物料不存在: %s", materialID)
	}
	if err != nil {
		return 0, err
	}
	if !m.UnitTracking {
		return m.CurrentStock, nil
	}

	var stock float64
	var individualCount int
	switch m.Type {
	case entity.MaterialTypeProduct:
		count, err := unitRepo.CountAvailableProductUnits(materialID)
		if err != nil {
			return 0, err
		}
		stock = float64(count)
		individualCount = int(count)
	case entity.MaterialTypeRaw:
		total, err := unitRepo.SumLotQuantity(materialID,
			[]string{entity.UnitStatusAvailable, entity.UnitStatusInProduction})
		if err != nil {
			return 0, err
		}
		stock = total
	default:
		return 0, validationf("未知物料类型: %s", m.Type)
	}

	if stock < 0 {
		stock = 0
	}
	if err := materialRepo.SetStock(materialID, stock, individualCount); err != nil {
		return 0, err
	}
	return stock, nil
}

// StockStatus 阈值判定
func (s *StockService) StockStatus(materialID string) (string, error) {
	m, err := s.materialRepo.GetByID(materialID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", notFoundf("物料不存在: %s", materialID)
	}
	if err != nil {
		return "", err
	}
	return m.StockStatusOf(), nil
}
