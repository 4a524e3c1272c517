package service

import (
	"context"
	"errors"
	"time"

	"github.com/DnyaneshwarWantace/Rajdhani-Backend-sub000/internal/entity"
	"github.com/DnyaneshwarWantace/Rajdhani-Backend-sub000/internal/repository"
	"github.com/bsm/redislock"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	// 同一物料的消耗串行化锁
	materialLockTTL = 30 * time.Second
)

// ConsumptionService 物料消耗记录，事务核心
type ConsumptionService struct {
	materialRepo    *repository.MaterialRepository
	unitRepo        *repository.UnitRepository
	consumptionRepo *repository.ConsumptionRepository
	batchRepo       *repository.BatchRepository
	stockSvc        *StockService
	unitSvc         *UnitService
	db              *gorm.DB
	locker          *redislock.Client // 可为nil，事务本身是正确性兜底
	logger          *zap.Logger
}

func NewConsumptionService(
	repos *repository.Repositories,
	stockSvc *StockService,
	unitSvc *UnitService,
	db *gorm.DB,
	locker *redislock.Client,
	logger *zap.Logger,
) *ConsumptionService {
	return &ConsumptionService{
		materialRepo:    repos.Material,
		unitRepo:        repos.Unit,
		consumptionRepo: repos.Consumption,
		batchRepo:       repos.Batch,
		stockSvc:        stockSvc,
		unitSvc:         unitSvc,
		db:              db,
		locker:          locker,
		logger:          logger,
	}
}

// lockMaterial 按物料加分布式锁，锁不可用时依赖数据库事务与条件更新兜底
func (s *ConsumptionService) lockMaterial(ctx context.Context, materialID string) (*redislock.Lock, error) {
	if s.locker == nil {
		return nil, nil
	}
	lock, err := s.locker.Obtain(ctx, "consume:"+materialID, materialLockTTL, nil)
	if err == redislock.ErrNotObtained {
		return nil, conflictf("物料 %s 正在被其他请求消耗，请重试", materialID)
	}
	if err != nil {
		s.logger.Warn("获取物料锁失败，降级为仅事务保护",
			zap.String("material_id", materialID), zap.Error(err))
		return nil, nil
	}
	return lock, nil
}

type RecordConsumptionRequest struct {
	ProductionBatchID    string   `json:"production_batch_id" binding:"required"`
	MaterialID           string   `json:"material_id" binding:"required"`
	MaterialName         string   `json:"material_name"`
	MaterialType         string   `json:"material_type" binding:"required"`
	QuantityUsed         float64  `json:"quantity_used" binding:"required,gt=0"`
	ActualConsumedQty    float64  `json:"actual_consumed_quantity"`
	Unit                 string   `json:"unit"`
	IndividualProductIDs []string `json:"individual_product_ids"`
	ConsumptionStatus    string   `json:"consumption_status"`
	DeductNow            *bool    `json:"deduct_now"`
	Notes                string   `json:"notes"`
}

// Record 记录一次消耗，整个序列在一个事务里：校验 → 建记录 → 扣减/占用 → 重算
func (s *ConsumptionService) Record(ctx context.Context, req RecordConsumptionRequest, userID string) (*entity.ConsumptionRecord, error) {
	if req.MaterialType != entity.MaterialTypeProduct && req.MaterialType != entity.MaterialTypeRaw {
		return nil, validationf("无效的物料类型: %s", req.MaterialType)
	}
	if req.QuantityUsed <= 0 {
		return nil, validationf("消耗数量必须大于0: %.4f", req.QuantityUsed)
	}

	m, err := s.materialRepo.GetByID(req.MaterialID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, notFoundf("物料不存在: %s", req.MaterialID)
	}
	if err != nil {
		return nil, err
	}
	if m.Type != req.MaterialType {
		return nil, validationf("物料 %s 类型为 %s，与请求的 %s 不符", m.ID, m.Type, req.MaterialType)
	}
	batch, err := s.batchRepo.GetByID(req.ProductionBatchID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, notFoundf("生产批次不存在: %s", req.ProductionBatchID)
	}
	if err != nil {
		return nil, err
	}

	lock, err := s.lockMaterial(ctx, req.MaterialID)
	if err != nil {
		return nil, err
	}
	if lock != nil {
		defer lock.Release(ctx)
	}

	deductNow := true
	if req.DeductNow != nil {
		deductNow = *req.DeductNow
	}
	consumptionStatus := req.ConsumptionStatus
	if consumptionStatus == "" {
		consumptionStatus = entity.ConsumptionStatusInProduction
	}
	materialName := req.MaterialName
	if materialName == "" {
		materialName = m.Name
	}
	unit := req.Unit
	if unit == "" {
		unit = m.Unit
	}
	actual := req.ActualConsumedQty
	if actual <= 0 {
		actual = req.QuantityUsed
	}

	now := time.Now()
	rec := &entity.ConsumptionRecord{
		ID:                     newBusinessID("MATCONS"),
		ProductionBatchID:      batch.ID,
		MaterialID:             m.ID,
		MaterialName:           materialName,
		MaterialType:           req.MaterialType,
		Unit:                   unit,
		QuantityUsed:           req.QuantityUsed,
		ActualConsumedQuantity: actual,
		ConsumptionStatus:      consumptionStatus,
		Status:                 entity.RecordStatusActive,
		ConsumedAt:             now,
		Notes:                  req.Notes,
		CreatedBy:              userID,
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		materialRepo := s.materialRepo.WithTx(tx)
		consumptionRepo := s.consumptionRepo.WithTx(tx)

		// 计划模式：只记意向，不动库存
		if !deductNow {
			rec.StockDeducted = false
			return consumptionRepo.Create(rec)
		}

		switch req.MaterialType {
		case entity.MaterialTypeProduct:
			if len(req.IndividualProductIDs) > 0 {
				return s.recordProductWithUnits(tx, rec, req, userID)
			}
			// 无单件清单的散装成品：直接条件扣减
			ok, err := materialRepo.AtomicDeduct(m.ID, req.QuantityUsed)
			if err != nil {
				return err
			}
			if !ok {
				return insufficientf("物料 %s 库存不足: 需要%.4f, 可用%.4f", m.ID, req.QuantityUsed, m.CurrentStock)
			}
			rec.StockDeducted = true
			return consumptionRepo.Create(rec)

		case entity.MaterialTypeRaw:
			if consumptionStatus == entity.ConsumptionStatusUsed {
				// 立即扣减 + 批次流转为 used
				ok, err := materialRepo.AtomicDeduct(m.ID, req.QuantityUsed)
				if err != nil {
					return err
				}
				if !ok {
					return insufficientf("物料 %s 库存不足: 需要%.4f, 可用%.4f", m.ID, req.QuantityUsed, m.CurrentStock)
				}
				rec.StockDeducted = true
				if err := consumptionRepo.Create(rec); err != nil {
					return err
				}
				// 非批次追踪的原材料以聚合库存为准，没有批次可占
				if !m.UnitTracking {
					return nil
				}
				return s.markLots(tx, rec, entity.UnitStatusUsed, userID)
			}
			// 两段式：先占用批次，聚合库存等 used 时再扣
			if m.CurrentStock < req.QuantityUsed {
				return insufficientf("物料 %s 库存不足: 需要%.4f, 可用%.4f", m.ID, req.QuantityUsed, m.CurrentStock)
			}
			rec.StockDeducted = false
			if err := consumptionRepo.Create(rec); err != nil {
				return err
			}
			if !m.UnitTracking {
				return nil
			}
			return s.markLots(tx, rec, entity.UnitStatusInProduction, userID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("消耗记录已创建",
		zap.String("id", rec.ID),
		zap.String("batch_id", rec.ProductionBatchID),
		zap.String("material_id", rec.MaterialID),
		zap.Float64("quantity_used", rec.QuantityUsed),
		zap.Bool("stock_deducted", rec.StockDeducted),
	)
	return s.consumptionRepo.GetByID(rec.ID)
}

// recordProductWithUnits 成品按指定单件消耗：扣整件数（len(unit_ids)），配方零头只进 actual
func (s *ConsumptionService) recordProductWithUnits(tx *gorm.DB, rec *entity.ConsumptionRecord, req RecordConsumptionRequest, userID string) error {
	unitRepo := s.unitRepo.WithTx(tx)
	consumptionRepo := s.consumptionRepo.WithTx(tx)

	units, err := unitRepo.GetProductUnits(req.IndividualProductIDs)
	if err != nil {
		return err
	}
	if len(units) != len(req.IndividualProductIDs) {
		return notFoundf("部分单件不存在: 请求%d个，找到%d个", len(req.IndividualProductIDs), len(units))
	}
	for _, u := range units {
		if u.MaterialID != rec.MaterialID {
			return validationf("单件 %s 不属于物料 %s", u.ID, rec.MaterialID)
		}
		if u.Status != entity.UnitStatusAvailable {
			return insufficientf("单件 %s 状态为 %s，不可消耗", u.ID, u.Status)
		}
	}

	// 整件扣减：即使配方需求是小数，也消耗整个物理单件
	rec.QuantityUsed = float64(len(units))
	rec.StockDeducted = true
	if err := consumptionRepo.Create(rec); err != nil {
		return err
	}

	for _, u := range units {
		cu := &entity.ConsumptionUnit{
			ID:            "CU-" + uuid.New().String()[:18],
			ConsumptionID: rec.ID,
			UnitID:        u.ID,
			UnitType:      "product_unit",
			SerialNo:      u.SerialNo,
			Quantity:      1,
		}
		claimed, err := consumptionRepo.AttachUnit(cu)
		if err != nil {
			return err
		}
		if !claimed {
			return conflictf("单件 %s 已被其他消耗记录认领", u.ID)
		}
	}

	if err := s.unitSvc.TransitionProductUnits(tx, req.IndividualProductIDs, entity.UnitStatusInProduction, rec.ID, userID); err != nil {
		return err
	}
	// 单件状态写完后再重算聚合，保持因果序
	_, err = s.stockSvc.RecomputeFromUnits(tx, rec.MaterialID)
	return err
}

// markLots FIFO 占用/消耗原材料批次并建立认领快照
func (s *ConsumptionService) markLots(tx *gorm.DB, rec *entity.ConsumptionRecord, lotStatus, userID string) error {
	consumptionRepo := s.consumptionRepo.WithTx(tx)

	consumed, err := s.unitSvc.ConsumeLots(tx, rec.MaterialID, rec.QuantityUsed, lotStatus, rec.ID, userID)
	if err != nil {
		return err
	}
	for _, cl := range consumed {
		cu := &entity.ConsumptionUnit{
			ID:            "CU-" + uuid.New().String()[:18],
			ConsumptionID: rec.ID,
			UnitID:        cl.LotID,
			UnitType:      "raw_lot",
			Quantity:      cl.Quantity,
		}
		claimed, err := consumptionRepo.AttachUnit(cu)
		if err != nil {
			return err
		}
		if !claimed {
			return conflictf("批次 %s 已被其他消耗记录认领", cl.LotID)
		}
	}
	return nil
}

// UpdateStatus 推进原材料消耗的分段状态；in_production → used 触发一次性延迟扣减
func (s *ConsumptionService) UpdateStatus(ctx context.Context, id, newStatus, userID string) (*entity.ConsumptionRecord, error) {
	switch newStatus {
	case entity.ConsumptionStatusReserved, entity.ConsumptionStatusInProduction,
		entity.ConsumptionStatusUsed, entity.ConsumptionStatusSold:
	default:
		return nil, validationf("无效的消耗状态: %s", newStatus)
	}

	rec, err := s.consumptionRepo.GetByID(id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, notFoundf("消耗记录不存在: %s", id)
	}
	if err != nil {
		return nil, err
	}
	if rec.Status != entity.RecordStatusActive {
		return nil, validationf("消耗记录 %s 已取消，不能变更状态", id)
	}
	if rec.MaterialType != entity.MaterialTypeRaw {
		return nil, validationf("只有原材料消耗记录支持分段状态: %s", id)
	}
	if rank(newStatus) < rank(rec.ConsumptionStatus) {
		return nil, validationf("消耗状态不能回退: %s -> %s", rec.ConsumptionStatus, newStatus)
	}

	lock, err := s.lockMaterial(ctx, rec.MaterialID)
	if err != nil {
		return nil, err
	}
	if lock != nil {
		defer lock.Release(ctx)
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		materialRepo := s.materialRepo.WithTx(tx)
		unitRepo := s.unitRepo.WithTx(tx)
		consumptionRepo := s.consumptionRepo.WithTx(tx)

		// 事务内重读，避免双重扣减竞态
		fresh, err := consumptionRepo.GetByID(id)
		if err != nil {
			return err
		}
		if fresh.ConsumptionStatus == newStatus {
			return nil // 重复调用是空操作
		}

		if newStatus == entity.ConsumptionStatusUsed && !fresh.StockDeducted {
			ok, err := materialRepo.AtomicDeduct(fresh.MaterialID, fresh.QuantityUsed)
			if err != nil {
				return err
			}
			if !ok {
				return insufficientf("物料 %s 库存不足，无法完成延迟扣减 %.4f", fresh.MaterialID, fresh.QuantityUsed)
			}
			fresh.StockDeducted = true
		}

		if newStatus == entity.ConsumptionStatusUsed {
			// 占用中的批次落定为 used
			var lotIDs []string
			for _, cu := range fresh.Units {
				if cu.UnitType == "raw_lot" {
					lotIDs = append(lotIDs, cu.UnitID)
				}
			}
			if err := unitRepo.UpdateLotStatus(lotIDs, entity.UnitStatusUsed); err != nil {
				return err
			}
		}

		fresh.ConsumptionStatus = newStatus
		if err := consumptionRepo.Update(fresh); err != nil {
			return err
		}
		rec = fresh
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("消耗状态已推进",
		zap.String("id", rec.ID),
		zap.String("consumption_status", rec.ConsumptionStatus),
		zap.Bool("stock_deducted", rec.StockDeducted),
	)
	return rec, nil
}

// Cancel 软取消并回补库存，幂等：已取消的记录直接返回
func (s *ConsumptionService) Cancel(ctx context.Context, id, userID string) (*entity.ConsumptionRecord, error) {
	rec, err := s.consumptionRepo.GetByID(id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, notFoundf("消耗记录不存在: %s", id)
	}
	if err != nil {
		return nil, err
	}
	if rec.Status == entity.RecordStatusCancelled {
		return rec, nil
	}

	lock, err := s.lockMaterial(ctx, rec.MaterialID)
	if err != nil {
		return nil, err
	}
	if lock != nil {
		defer lock.Release(ctx)
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		materialRepo := s.materialRepo.WithTx(tx)
		unitRepo := s.unitRepo.WithTx(tx)
		consumptionRepo := s.consumptionRepo.WithTx(tx)

		fresh, err := consumptionRepo.GetByID(id)
		if err != nil {
			return err
		}
		if fresh.Status == entity.RecordStatusCancelled {
			rec = fresh
			return nil
		}

		m, err := materialRepo.GetByID(fresh.MaterialID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			m = nil
		} else if err != nil {
			return err
		}

		// 关联单件/批次回到 available
		var productUnitIDs, lotIDs []string
		for _, cu := range fresh.Units {
			switch cu.UnitType {
			case "product_unit":
				productUnitIDs = append(productUnitIDs, cu.UnitID)
			case "raw_lot":
				lotIDs = append(lotIDs, cu.UnitID)
			}
		}
		if len(productUnitIDs) > 0 {
			if err := s.unitSvc.TransitionProductUnits(tx, productUnitIDs, entity.UnitStatusAvailable, "cancel:"+fresh.ID, userID); err != nil {
				return err
			}
		}
		if err := unitRepo.UpdateLotStatus(lotIDs, entity.UnitStatusAvailable); err != nil {
			return err
		}
		// 释放认领，回到 available 的单件要能再次被消耗
		if err := consumptionRepo.DeleteUnits(fresh.ID); err != nil {
			return err
		}

		now := time.Now()
		fresh.Status = entity.RecordStatusCancelled
		fresh.CancelledAt = &now
		deducted := fresh.StockDeducted
		fresh.StockDeducted = false
		if err := consumptionRepo.Update(fresh); err != nil {
			return err
		}

		if m != nil && m.UnitTracking {
			// 单件追踪物料统一走重算
			if _, err := s.stockSvc.RecomputeFromUnits(tx, fresh.MaterialID); err != nil {
				return err
			}
		} else if deducted {
			if err := materialRepo.AtomicCredit(fresh.MaterialID, fresh.QuantityUsed); err != nil {
				return err
			}
		}
		rec = fresh
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("消耗记录已取消", zap.String("id", rec.ID))
	return rec, nil
}

func (s *ConsumptionService) GetByID(id string) (*entity.ConsumptionRecord, error) {
	rec, err := s.consumptionRepo.GetByID(id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, notFoundf("消耗记录不存在: %s", id)
	}
	return rec, err
}

func (s *ConsumptionService) List(params repository.ConsumptionListParams) ([]entity.ConsumptionRecord, int64, error) {
	return s.consumptionRepo.List(params)
}

// BatchSummary 批次消耗按物料汇总
func (s *ConsumptionService) BatchSummary(batchID string) ([]repository.BatchSummaryRow, error) {
	if _, err := s.batchRepo.GetByID(batchID); errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, notFoundf("生产批次不存在: %s", batchID)
	} else if err != nil {
		return nil, err
	}
	return s.consumptionRepo.SummaryByBatch(batchID)
}

// rank 消耗状态序，用于禁止回退
func rank(status string) int {
	switch status {
	case entity.ConsumptionStatusReserved:
		return 0
	case entity.ConsumptionStatusInProduction:
		return 1
	case entity.ConsumptionStatusUsed:
		return 2
	case entity.ConsumptionStatusSold:
		return 3
	}
	return -1
}
