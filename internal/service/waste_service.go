package service

import (
	"errors"
	"time"

	"github.com/DnyaneshwarWantace/Rajdhani-Backend-sub000/internal/entity"
	"github.com/DnyaneshwarWantace/Rajdhani-Backend-sub000/internal/repository"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// WasteService 废料记录与回收
type WasteService struct {
	wasteRepo    *repository.WasteRepository
	materialRepo *repository.MaterialRepository
	unitRepo     *repository.UnitRepository
	batchRepo    *repository.BatchRepository
	stockSvc     *StockService
	db           *gorm.DB
	logger       *zap.Logger
}

func NewWasteService(repos *repository.Repositories, stockSvc *StockService, db *gorm.DB, logger *zap.Logger) *WasteService {
	return &WasteService{
		wasteRepo:    repos.Waste,
		materialRepo: repos.Material,
		unitRepo:     repos.Unit,
		batchRepo:    repos.Batch,
		stockSvc:     stockSvc,
		db:           db,
		logger:       logger,
	}
}

type CreateWasteRequest struct {
	ProductionBatchID string  `json:"production_batch_id" binding:"required"`
	MaterialID        string  `json:"material_id" binding:"required"`
	Quantity          float64 `json:"quantity" binding:"required,gt=0"`
	Unit              string  `json:"unit"`
	CanBeReused       bool    `json:"can_be_reused"`
	Reason            string  `json:"reason"`
}

func (s *WasteService) Create(req CreateWasteRequest, userID string) (*entity.WasteRecord, error) {
	m, err := s.materialRepo.GetByID(req.MaterialID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, notFoundf("物料不存在: %s", req.MaterialID)
	}
	if err != nil {
		return nil, err
	}
	if _, err := s.batchRepo.GetByID(req.ProductionBatchID); errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, notFoundf("生产批次不存在: %s", req.ProductionBatchID)
	} else if err != nil {
		return nil, err
	}

	unit := req.Unit
	if unit == "" {
		unit = m.Unit
	}
	w := &entity.WasteRecord{
		ID:                "WASTE-" + uuid.New().String()[:12],
		ProductionBatchID: req.ProductionBatchID,
		MaterialID:        m.ID,
		MaterialName:      m.Name,
		Quantity:          req.Quantity,
		Unit:              unit,
		CanBeReused:       req.CanBeReused,
		Status:            entity.WasteStatusGenerated,
		Reason:            req.Reason,
		CreatedBy:         userID,
	}
	if err := s.wasteRepo.Create(w); err != nil {
		return nil, err
	}
	return w, nil
}

func (s *WasteService) GetByID(id string) (*entity.WasteRecord, error) {
	w, err := s.wasteRepo.GetByID(id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, notFoundf("废料记录不存在: %s", id)
	}
	return w, err
}

func (s *WasteService) List(params repository.WasteListParams) ([]entity.WasteRecord, int64, error) {
	return s.wasteRepo.List(params)
}

// Reuse 废料回收入库：数量加回聚合库存
// 状态条件更新挡住重复加账——已 reused 的记录再调用不会再次加钱
func (s *WasteService) Reuse(id, userID string) (*entity.WasteRecord, error) {
	w, err := s.GetByID(id)
	if err != nil {
		return nil, err
	}
	if !w.CanBeReused {
		return nil, validationf("废料 %s 不可回收", id)
	}
	if w.Status == entity.WasteStatusDisposed {
		return nil, validationf("废料 %s 已处置，不能回收", id)
	}

	m, err := s.materialRepo.GetByID(w.MaterialID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, notFoundf("物料不存在: %s", w.MaterialID)
	}
	if err != nil {
		return nil, err
	}
	// 单件追踪的成品库存由单件重算得出，散装废料直接加账会被下次重算抹掉
	if m.UnitTracking && m.Type == entity.MaterialTypeProduct {
		return nil, validationf("物料 %s 按单件追踪，废料不能回收为成品库存", m.ID)
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		wasteRepo := s.wasteRepo.WithTx(tx)
		materialRepo := s.materialRepo.WithTx(tx)
		unitRepo := s.unitRepo.WithTx(tx)

		changed, err := wasteRepo.MarkReusedIfNot(w.ID)
		if err != nil {
			return err
		}
		if !changed {
			return nil // 已回收过，空操作
		}

		now := time.Now()
		w.Status = entity.WasteStatusReused
		w.ReusedAt = &now
		if err := wasteRepo.Update(w); err != nil {
			return err
		}

		if m.UnitTracking && m.Type == entity.MaterialTypeRaw {
			// 回收料建一个再生批次，保证重算口径一致
			if err := unitRepo.CreateLot(&entity.RawMaterialLot{
				ID:         "LOT-" + uuid.New().String()[:18],
				MaterialID: m.ID,
				BatchNo:    "RECLAIM-" + now.Format("20060102"),
				Quantity:   w.Quantity,
				Unit:       w.Unit,
				UnitCost:   0, // 回收料不计成本
				Status:     entity.UnitStatusAvailable,
				Reclaimed:  true,
				ReceivedAt: now,
			}); err != nil {
				return err
			}
			_, err := s.stockSvc.RecomputeFromUnits(tx, m.ID)
			return err
		}
		return materialRepo.AtomicCredit(m.ID, w.Quantity)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("废料已回收入库",
		zap.String("waste_id", w.ID),
		zap.String("material_id", w.MaterialID),
		zap.Float64("quantity", w.Quantity))
	return s.GetByID(id)
}

// Dispose 废料处置
func (s *WasteService) Dispose(id, userID string) (*entity.WasteRecord, error) {
	w, err := s.GetByID(id)
	if err != nil {
		return nil, err
	}
	if w.Status == entity.WasteStatusReused {
		return nil, validationf("废料 %s 已回收，不能处置", id)
	}
	if w.Status == entity.WasteStatusDisposed {
		return w, nil
	}
	now := time.Now()
	w.Status = entity.WasteStatusDisposed
	w.DisposedAt = &now
	if err := s.wasteRepo.Update(w); err != nil {
		return nil, err
	}
	return w, nil
}
