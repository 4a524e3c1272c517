package repository

import (
	"time"

	"github.com/DnyaneshwarWantace/Rajdhani-Backend-sub000/internal/entity"
	"gorm.io/gorm"
)

type BatchRepository struct {
	db *gorm.DB
}

func NewBatchRepository(db *gorm.DB) *BatchRepository {
	return &BatchRepository{db: db}
}

func (r *BatchRepository) WithTx(tx *gorm.DB) *BatchRepository {
	return &BatchRepository{db: tx}
}

func (r *BatchRepository) Create(b *entity.ProductionBatch) error {
	return r.db.Create(b).Error
}

func (r *BatchRepository) GetByID(id string) (*entity.ProductionBatch, error) {
	var b entity.ProductionBatch
	err := r.db.Where("id = ? AND deleted_at IS NULL", id).First(&b).Error
	return &b, err
}

func (r *BatchRepository) GetByNumber(batchNumber string) (*entity.ProductionBatch, error) {
	var b entity.ProductionBatch
	err := r.db.Where("batch_number = ? AND deleted_at IS NULL", batchNumber).First(&b).Error
	return &b, err
}

func (r *BatchRepository) Update(b *entity.ProductionBatch) error {
	return r.db.Save(b).Error
}

func (r *BatchRepository) Delete(id string) error {
	now := time.Now()
	return r.db.Model(&entity.ProductionBatch{}).Where("id = ?", id).Update("deleted_at", &now).Error
}

type BatchListParams struct {
	ProductID string
	Status    string
	Keyword   string
	Page      int
	Size      int
}

func (r *BatchRepository) List(params BatchListParams) ([]entity.ProductionBatch, int64, error) {
	query := r.db.Model(&entity.ProductionBatch{}).Where("deleted_at IS NULL")
	if params.ProductID != "" {
		query = query.Where("product_id = ?", params.ProductID)
	}
	if params.Status != "" {
		query = query.Where("status = ?", params.Status)
	}
	if params.Keyword != "" {
		kw := "%" + params.Keyword + "%"
		query = query.Where("batch_number LIKE ? OR product_name LIKE ?", kw, kw)
	}
	var total int64
	query.Count(&total)
	if params.Page <= 0 {
		params.Page = 1
	}
	if params.Size <= 0 {
		params.Size = 20
	}
	var items []entity.ProductionBatch
	err := query.Order("created_at DESC").
		Offset((params.Page - 1) * params.Size).Limit(params.Size).Find(&items).Error
	return items, total, err
}

// AllIDs 全部批次ID，供阶段修复巡检
func (r *BatchRepository) AllIDs() ([]string, error) {
	var ids []string
	err := r.db.Model(&entity.ProductionBatch{}).Where("deleted_at IS NULL").Pluck("id", &ids).Error
	return ids, err
}

// ---- 流程步骤 ----

func (r *BatchRepository) CreateFlowStep(step *entity.ProductionFlowStep) error {
	return r.db.Create(step).Error
}

func (r *BatchRepository) GetFlowStep(id string) (*entity.ProductionFlowStep, error) {
	var step entity.ProductionFlowStep
	err := r.db.Where("id = ?", id).First(&step).Error
	return &step, err
}

func (r *BatchRepository) UpdateFlowStep(step *entity.ProductionFlowStep) error {
	return r.db.Save(step).Error
}

func (r *BatchRepository) ListFlowSteps(batchID string) ([]entity.ProductionFlowStep, error) {
	var steps []entity.ProductionFlowStep
	err := r.db.Where("production_batch_id = ?", batchID).
		Order("sequence ASC, created_at ASC").Find(&steps).Error
	return steps, err
}

// MachineStepStats 机器步骤总数与完成数，作为机器阶段完成的证据
func (r *BatchRepository) MachineStepStats(batchID string) (total, completed int64, err error) {
	err = r.db.Model(&entity.ProductionFlowStep{}).
		Where("production_batch_id = ? AND step_type = ?", batchID, entity.StepTypeMachine).
		Count(&total).Error
	if err != nil {
		return 0, 0, err
	}
	err = r.db.Model(&entity.ProductionFlowStep{}).
		Where("production_batch_id = ? AND step_type = ? AND status = ?",
			batchID, entity.StepTypeMachine, entity.StageStatusCompleted).
		Count(&completed).Error
	return total, completed, err
}

// CountOutputUnits 批次产出的成品单件数，作为末段完成的证据
func (r *BatchRepository) CountOutputUnits(batchID string) (int64, error) {
	var count int64
	err := r.db.Model(&entity.ProductUnit{}).
		Where("batch_id = ? AND deleted_at IS NULL", batchID).Count(&count).Error
	return count, err
}
