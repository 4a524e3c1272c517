package service

import (
	"errors"
	"math"
	"time"

	"github.com/DnyaneshwarWantace/Rajdhani-Backend-sub000/internal/entity"
	"github.com/DnyaneshwarWantace/Rajdhani-Backend-sub000/internal/repository"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	// 补挂单件链接的时间窗
	backfillTolerance = 24 * time.Hour
)

// ReconcileService 对账修复：从单件/批次记录重算聚合库存、补挂缺失的单件链接
// 所有操作幂等，可随时离线触发
type ReconcileService struct {
	materialRepo    *repository.MaterialRepository
	unitRepo        *repository.UnitRepository
	consumptionRepo *repository.ConsumptionRepository
	stockSvc        *StockService
	db              *gorm.DB
	logger          *zap.Logger
}

func NewReconcileService(repos *repository.Repositories, stockSvc *StockService, db *gorm.DB, logger *zap.Logger) *ReconcileService {
	return &ReconcileService{
		materialRepo:    repos.Material,
		unitRepo:        repos.Unit,
		consumptionRepo: repos.Consumption,
		stockSvc:        stockSvc,
		db:              db,
		logger:          logger,
	}
}

// StockDrift 单个物料的重算结果
type StockDrift struct {
	MaterialID string  `json:"material_id"`
	Before     float64 `json:"before"`
	After      float64 `json:"after"`
	Drifted    bool    `json:"drifted"`
}

// ReconcileMaterialStock 重算单个物料的聚合库存
func (s *ReconcileService) ReconcileMaterialStock(materialID string) (*StockDrift, error) {
	m, err := s.materialRepo.GetByID(materialID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, notFoundf("物料不存在: %s", materialID)
	}
	if err != nil {
		return nil, err
	}

	before := m.CurrentStock
	var after float64
	err = s.db.Transaction(func(tx *gorm.DB) error {
		var err error
		after, err = s.stockSvc.RecomputeFromUnits(tx, materialID)
		return err
	})
	if err != nil {
		return nil, err
	}

	drift := &StockDrift{
		MaterialID: materialID,
		Before:     before,
		After:      after,
		Drifted:    math.Abs(before-after) > 1e-9,
	}
	if drift.Drifted {
		s.logger.Warn("发现库存漂移",
			zap.String("material_id", materialID),
			zap.Float64("before", before),
			zap.Float64("after", after))
	}
	return drift, nil
}

// ReconcileAll 全量对账，单个物料失败不阻断巡检
func (s *ReconcileService) ReconcileAll() ([]StockDrift, error) {
	ids, err := s.materialRepo.AllIDs()
	if err != nil {
		return nil, err
	}
	var drifts []StockDrift
	for _, id := range ids {
		d, err := s.ReconcileMaterialStock(id)
		if err != nil {
			s.logger.Warn("物料对账失败", zap.String("material_id", id), zap.Error(err))
			continue
		}
		drifts = append(drifts, *d)
	}
	return drifts, nil
}

// BackfillResult 补挂巡检结果
type BackfillResult struct {
	Scanned   int `json:"scanned"`
	Attached  int `json:"attached"`
	Ambiguous int `json:"ambiguous"`
	NoMatch   int `json:"no_match"`
}

// BackfillConsumptionUnitLinks 为缺失单件链接的成品消耗记录补挂候选单件
// 候选：同物料、状态 used、updated_at 落在 consumed_at ±24h 内、未被认领。
// 候选数超过 quantity_used 视为歧义，跳过；挂上的链接带 backfilled 与置信度标记。
// 认领靠 unit_id 唯一索引，先到先得；找不到候选不算失败
func (s *ReconcileService) BackfillConsumptionUnitLinks() (*BackfillResult, error) {
	recs, err := s.consumptionRepo.ProductRecordsWithoutUnits()
	if err != nil {
		return nil, err
	}

	result := &BackfillResult{Scanned: len(recs)}
	for i := range recs {
		rec := &recs[i]
		from := rec.ConsumedAt.Add(-backfillTolerance)
		to := rec.ConsumedAt.Add(backfillTolerance)

		candidates, err := s.unitRepo.UnclaimedUsedUnits(rec.MaterialID, from, to)
		if err != nil {
			s.logger.Warn("补挂查询候选失败",
				zap.String("consumption_id", rec.ID), zap.Error(err))
			continue
		}
		if len(candidates) == 0 {
			result.NoMatch++
			continue
		}

		needed := int(rec.QuantityUsed)
		if needed < 1 {
			needed = 1
		}
		if len(candidates) > needed {
			// 候选多于用量，无法判定归属
			result.Ambiguous++
			s.logger.Warn("补挂候选歧义，跳过",
				zap.String("consumption_id", rec.ID),
				zap.Int("candidates", len(candidates)),
				zap.Int("needed", needed))
			continue
		}

		confidence := entity.BackfillConfidencePartial
		if len(candidates) == needed {
			confidence = entity.BackfillConfidenceExact
		}

		attached := 0
		err = s.db.Transaction(func(tx *gorm.DB) error {
			consumptionRepo := s.consumptionRepo.WithTx(tx)
			for _, u := range candidates {
				claimed, err := consumptionRepo.AttachUnit(&entity.ConsumptionUnit{
					ID:            "CU-" + uuid.New().String()[:18],
					ConsumptionID: rec.ID,
					UnitID:        u.ID,
					UnitType:      "product_unit",
					SerialNo:      u.SerialNo,
					Quantity:      1,
					Backfilled:    true,
					Confidence:    confidence,
				})
				if err != nil {
					return err
				}
				if claimed {
					attached++
				}
			}
			return nil
		})
		if err != nil {
			s.logger.Warn("补挂写入失败",
				zap.String("consumption_id", rec.ID), zap.Error(err))
			continue
		}
		if attached > 0 {
			result.Attached++
			s.logger.Info("已补挂单件链接",
				zap.String("consumption_id", rec.ID),
				zap.Int("units", attached),
				zap.String("confidence", confidence))
		}
	}
	return result, nil
}
