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

// StageService 生产批次阶段协调器
type StageService struct {
	batchRepo       *repository.BatchRepository
	consumptionRepo *repository.ConsumptionRepository
	unitRepo        *repository.UnitRepository
	materialRepo    *repository.MaterialRepository
	wasteRepo       *repository.WasteRepository
	stockSvc        *StockService
	unitSvc         *UnitService
	db              *gorm.DB
	logger          *zap.Logger
}

func NewStageService(
	repos *repository.Repositories,
	stockSvc *StockService,
	unitSvc *UnitService,
	db *gorm.DB,
	logger *zap.Logger,
) *StageService {
	return &StageService{
		batchRepo:       repos.Batch,
		consumptionRepo: repos.Consumption,
		unitRepo:        repos.Unit,
		materialRepo:    repos.Material,
		wasteRepo:       repos.Waste,
		stockSvc:        stockSvc,
		unitSvc:         unitSvc,
		db:              db,
		logger:          logger,
	}
}

type CreateBatchRequest struct {
	BatchNumber     string  `json:"batch_number"`
	ProductID       string  `json:"product_id" binding:"required"`
	PlannedQuantity float64 `json:"planned_quantity" binding:"required,gt=0"`
	Notes           string  `json:"notes"`
}

// CreateBatch 创建生产批次，批次号唯一
func (s *StageService) CreateBatch(req CreateBatchRequest, userID string) (*entity.ProductionBatch, error) {
	product, err := s.materialRepo.GetByID(req.ProductID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, notFoundf("产品不存在: %s", req.ProductID)
	}
	if err != nil {
		return nil, err
	}
	if product.Type != entity.MaterialTypeProduct {
		return nil, validationf("物料 %s 不是成品，不能建生产批次", req.ProductID)
	}

	batchNumber := req.BatchNumber
	if batchNumber == "" {
		batchNumber = fmt.Sprintf("BN-%s%04d", time.Now().Format("20060102"), time.Now().UnixNano()%10000)
	}
	if _, err := s.batchRepo.GetByNumber(batchNumber); err == nil {
		return nil, conflictf("批次号已存在: %s", batchNumber)
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	now := time.Now()
	b := &entity.ProductionBatch{
		ID:              "BATCH-" + uuid.New().String()[:12],
		BatchNumber:     batchNumber,
		ProductID:       product.ID,
		ProductName:     product.Name,
		PlannedQuantity: req.PlannedQuantity,
		Status:          entity.BatchStatusPlanned,
		PlanningStage: entity.BatchStage{
			Status:    entity.StageStatusInProgress,
			StartedAt: &now,
			StartedBy: userID,
		},
		Notes:     req.Notes,
		CreatedBy: userID,
	}
	if err := s.batchRepo.Create(b); err != nil {
		return nil, fmt.Errorf("创建批次失败: %w", err)
	}
	return b, nil
}

func (s *StageService) GetBatch(id string) (*entity.ProductionBatch, error) {
	b, err := s.batchRepo.GetByID(id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, notFoundf("生产批次不存在: %s", id)
	}
	return b, err
}

func (s *StageService) ListBatches(params repository.BatchListParams) ([]entity.ProductionBatch, int64, error) {
	return s.batchRepo.List(params)
}

// collectEvidence 汇集阶段推断所需的证据
func (s *StageService) collectEvidence(tx *gorm.DB, b *entity.ProductionBatch) (StageEvidence, error) {
	batchRepo := s.batchRepo.WithTx(tx)
	consumptionRepo := s.consumptionRepo.WithTx(tx)

	active, err := consumptionRepo.CountActiveByBatch(b.ID)
	if err != nil {
		return StageEvidence{}, err
	}
	total, completed, err := batchRepo.MachineStepStats(b.ID)
	if err != nil {
		return StageEvidence{}, err
	}
	outputs, err := batchRepo.CountOutputUnits(b.ID)
	if err != nil {
		return StageEvidence{}, err
	}
	return StageEvidence{
		ActiveConsumptions:    active,
		MachineStepsTotal:     total,
		MachineStepsCompleted: completed,
		// 废料阶段以显式提交为准，零废料也要提交
		WastageSubmitted: b.WastageStage.Completed(),
		OutputUnits:      outputs,
	}, nil
}

// InferBatchStages 推断并落库批次阶段，任何时刻可安全重复调用
func (s *StageService) InferBatchStages(batchID, actor string) (*entity.ProductionBatch, error) {
	b, err := s.GetBatch(batchID)
	if err != nil {
		return nil, err
	}
	err = s.db.Transaction(func(tx *gorm.DB) error {
		return s.applyInference(tx, b, actor)
	})
	if err != nil {
		return nil, err
	}
	return b, nil
}

func (s *StageService) applyInference(tx *gorm.DB, b *entity.ProductionBatch, actor string) error {
	ev, err := s.collectEvidence(tx, b)
	if err != nil {
		return err
	}
	snap := InferStages(StageSnapshot{
		Planning: b.PlanningStage,
		Machine:  b.MachineStage,
		Wastage:  b.WastageStage,
		Final:    b.FinalStage,
	}, ev, time.Now(), actor)

	b.PlanningStage = snap.Planning
	b.MachineStage = snap.Machine
	b.WastageStage = snap.Wastage
	b.FinalStage = snap.Final
	if b.Status == entity.BatchStatusPlanned && snap.Planning.Completed() {
		b.Status = entity.BatchStatusInProgress
	}
	if snap.Final.Completed() {
		b.Status = entity.BatchStatusCompleted
	}
	return s.batchRepo.WithTx(tx).Update(b)
}

type WasteItem struct {
	MaterialID  string  `json:"material_id" binding:"required"`
	Quantity    float64 `json:"quantity" binding:"required,gt=0"`
	Unit        string  `json:"unit"`
	CanBeReused bool    `json:"can_be_reused"`
	Reason      string  `json:"reason"`
}

// CompleteWastage 显式提交废料并完成废料阶段（允许零废料），级联落定消耗：
// 成品消耗的 in_production 单件转 used 并重算库存；
// 原材料消耗推进到 used，触发延迟扣减（至多一次）
func (s *StageService) CompleteWastage(batchID string, wastes []WasteItem, userID string) (*entity.ProductionBatch, error) {
	b, err := s.GetBatch(batchID)
	if err != nil {
		return nil, err
	}
	if !b.MachineStage.Completed() {
		return nil, validationf("机器阶段未完成，不能提交废料: %s", batchID)
	}
	if b.WastageStage.Completed() {
		return b, nil // 单调：重复完成是空操作
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		materialRepo := s.materialRepo.WithTx(tx)
		unitRepo := s.unitRepo.WithTx(tx)
		consumptionRepo := s.consumptionRepo.WithTx(tx)
		wasteRepo := s.wasteRepo.WithTx(tx)

		// 废料记录
		for _, w := range wastes {
			m, err := materialRepo.GetByID(w.MaterialID)
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return notFoundf("废料物料不存在: %s", w.MaterialID)
			}
			if err != nil {
				return err
			}
			unit := w.Unit
			if unit == "" {
				unit = m.Unit
			}
			if err := wasteRepo.Create(&entity.WasteRecord{
				ID:                "WASTE-" + uuid.New().String()[:12],
				ProductionBatchID: b.ID,
				MaterialID:        m.ID,
				MaterialName:      m.Name,
				Quantity:          w.Quantity,
				Unit:              unit,
				CanBeReused:       w.CanBeReused,
				Status:            entity.WasteStatusGenerated,
				Reason:            w.Reason,
				CreatedBy:         userID,
			}); err != nil {
				return err
			}
		}

		// 级联落定本批次的有效消耗
		recs, err := consumptionRepo.ActiveByBatch(b.ID)
		if err != nil {
			return err
		}
		for i := range recs {
			rec := &recs[i]
			switch rec.MaterialType {
			case entity.MaterialTypeProduct:
				var unitIDs []string
				for _, cu := range rec.Units {
					if cu.UnitType == "product_unit" {
						unitIDs = append(unitIDs, cu.UnitID)
					}
				}
				// 只动仍在 in_production 的单件，已 used/available 的不碰
				changed, err := unitRepo.UpdateProductUnitStatusFrom(unitIDs, entity.UnitStatusInProduction, entity.UnitStatusUsed)
				if err != nil {
					return err
				}
				if changed > 0 {
					if _, err := s.stockSvc.RecomputeFromUnits(tx, rec.MaterialID); err != nil {
						return err
					}
				}
			case entity.MaterialTypeRaw:
				if rec.ConsumptionStatus == entity.ConsumptionStatusUsed {
					continue
				}
				if !rec.StockDeducted {
					ok, err := materialRepo.AtomicDeduct(rec.MaterialID, rec.QuantityUsed)
					if err != nil {
						return err
					}
					if !ok {
						s.logger.Warn("废料阶段延迟扣减失败，库存不足",
							zap.String("consumption_id", rec.ID),
							zap.String("material_id", rec.MaterialID),
							zap.Float64("quantity", rec.QuantityUsed))
						continue
					}
					rec.StockDeducted = true
				}
				var lotIDs []string
				for _, cu := range rec.Units {
					if cu.UnitType == "raw_lot" {
						lotIDs = append(lotIDs, cu.UnitID)
					}
				}
				if err := unitRepo.UpdateLotStatus(lotIDs, entity.UnitStatusUsed); err != nil {
					return err
				}
				rec.ConsumptionStatus = entity.ConsumptionStatusUsed
				if err := consumptionRepo.Update(rec); err != nil {
					return err
				}
			}
		}

		// 标记阶段完成并推断
		now := time.Now()
		b.WastageStage.Status = entity.StageStatusCompleted
		if b.WastageStage.StartedAt == nil {
			b.WastageStage.StartedAt = &now
		}
		b.WastageStage.CompletedAt = &now
		b.WastageStage.CompletedBy = userID
		return s.applyInference(tx, b, userID)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("废料阶段已完成",
		zap.String("batch_id", b.ID),
		zap.Int("waste_records", len(wastes)))
	return b, nil
}

// CompleteFinal 末段完工：生成产出单件、记录产出数、批次完结
func (s *StageService) CompleteFinal(batchID string, producedCount int, userID string) (*entity.ProductionBatch, error) {
	b, err := s.GetBatch(batchID)
	if err != nil {
		return nil, err
	}
	if !b.WastageStage.Completed() {
		return nil, validationf("废料阶段未完成，不能完工: %s", batchID)
	}
	if b.FinalStage.Completed() {
		return b, nil
	}
	if producedCount < 1 || producedCount > maxBulkUnits {
		return nil, validationf("产出数量必须在 [1,%d] 之间: %d", maxBulkUnits, producedCount)
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if _, err := s.unitSvc.CreateProductUnits(tx, b.ProductID, CreateUnitsRequest{
			Count:   producedCount,
			BatchID: b.ID,
		}, userID); err != nil {
			return err
		}
		if _, err := s.stockSvc.RecomputeFromUnits(tx, b.ProductID); err != nil {
			return err
		}
		b.ProductsCount = producedCount
		return s.applyInference(tx, b, userID)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("批次完工",
		zap.String("batch_id", b.ID),
		zap.Int("products_count", producedCount))
	return b, nil
}

// FixBatchStages 巡检修复：对所有批次重新推断阶段标记，安全可重复
func (s *StageService) FixBatchStages() (int, error) {
	ids, err := s.batchRepo.AllIDs()
	if err != nil {
		return 0, err
	}
	fixed := 0
	for _, id := range ids {
		b, err := s.batchRepo.GetByID(id)
		if err != nil {
			s.logger.Warn("阶段修复读取批次失败", zap.String("batch_id", id), zap.Error(err))
			continue
		}
		before := [4]string{b.PlanningStage.Status, b.MachineStage.Status, b.WastageStage.Status, b.FinalStage.Status}
		err = s.db.Transaction(func(tx *gorm.DB) error {
			return s.applyInference(tx, b, "stage-repair")
		})
		if err != nil {
			s.logger.Warn("阶段修复失败", zap.String("batch_id", id), zap.Error(err))
			continue
		}
		after := [4]string{b.PlanningStage.Status, b.MachineStage.Status, b.WastageStage.Status, b.FinalStage.Status}
		if before != after {
			fixed++
			s.logger.Info("批次阶段已修复",
				zap.String("batch_id", id),
				zap.Strings("before", before[:]),
				zap.Strings("after", after[:]))
		}
	}
	return fixed, nil
}

// ---- 流程步骤 ----

type CreateFlowStepRequest struct {
	Sequence    int    `json:"sequence"`
	StepType    string `json:"step_type" binding:"required"`
	Name        string `json:"name" binding:"required"`
	MachineName string `json:"machine_name"`
}

func (s *StageService) CreateFlowStep(batchID string, req CreateFlowStepRequest, userID string) (*entity.ProductionFlowStep, error) {
	if req.StepType != entity.StepTypeMachine && req.StepType != entity.StepTypeManual {
		return nil, validationf("无效的步骤类型: %s", req.StepType)
	}
	if _, err := s.GetBatch(batchID); err != nil {
		return nil, err
	}
	step := &entity.ProductionFlowStep{
		ID:          "STEP-" + uuid.New().String()[:12],
		BatchID:     batchID,
		Sequence:    req.Sequence,
		StepType:    req.StepType,
		Name:        req.Name,
		MachineName: req.MachineName,
		Status:      entity.StageStatusPending,
	}
	if err := s.batchRepo.CreateFlowStep(step); err != nil {
		return nil, err
	}
	return step, nil
}

func (s *StageService) ListFlowSteps(batchID string) ([]entity.ProductionFlowStep, error) {
	if _, err := s.GetBatch(batchID); err != nil {
		return nil, err
	}
	return s.batchRepo.ListFlowSteps(batchID)
}

// UpdateFlowStepStatus 步骤状态推进；机器步骤全部完成会连带推断机器阶段
func (s *StageService) UpdateFlowStepStatus(stepID, status, userID string) (*entity.ProductionFlowStep, error) {
	switch status {
	case entity.StageStatusInProgress, entity.StageStatusCompleted:
	default:
		return nil, validationf("无效的步骤状态: %s", status)
	}
	step, err := s.batchRepo.GetFlowStep(stepID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, notFoundf("流程步骤不存在: %s", stepID)
	}
	if err != nil {
		return nil, err
	}
	if step.Status == entity.StageStatusCompleted {
		return step, nil // 不回退
	}

	now := time.Now()
	step.Status = status
	if status == entity.StageStatusInProgress && step.StartedAt == nil {
		step.StartedAt = &now
	}
	if status == entity.StageStatusCompleted {
		if step.StartedAt == nil {
			step.StartedAt = &now
		}
		step.CompletedAt = &now
		step.CompletedBy = userID
	}
	if err := s.batchRepo.UpdateFlowStep(step); err != nil {
		return nil, err
	}

	if status == entity.StageStatusCompleted {
		if _, err := s.InferBatchStages(step.BatchID, userID); err != nil {
			s.logger.Warn("步骤完成后阶段推断失败",
				zap.String("batch_id", step.BatchID), zap.Error(err))
		}
	}
	return step, nil
}

// StagesView 对外的阶段视图
type StagesView struct {
	BatchID      string        `json:"batch_id"`
	CurrentStage string        `json:"current_stage"`
	Snapshot     StageSnapshot `json:"stages"`
	Evidence     StageEvidence `json:"evidence"`
}

// Stages 查询批次阶段（附证据），查询本身会顺手做一次推断落库
func (s *StageService) Stages(batchID, actor string) (*StagesView, error) {
	b, err := s.InferBatchStages(batchID, actor)
	if err != nil {
		return nil, err
	}
	var ev StageEvidence
	err = s.db.Transaction(func(tx *gorm.DB) error {
		var err error
		ev, err = s.collectEvidence(tx, b)
		return err
	})
	if err != nil {
		return nil, err
	}
	snap := StageSnapshot{
		Planning: b.PlanningStage,
		Machine:  b.MachineStage,
		Wastage:  b.WastageStage,
		Final:    b.FinalStage,
	}
	return &StagesView{
		BatchID:      b.ID,
		CurrentStage: CurrentStage(snap),
		Snapshot:     snap,
		Evidence:     ev,
	}, nil
}
