package repository

import (
	"github.com/DnyaneshwarWantace/Rajdhani-Backend-sub000/internal/entity"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ConsumptionRepository struct {
	db *gorm.DB
}

func NewConsumptionRepository(db *gorm.DB) *ConsumptionRepository {
	return &ConsumptionRepository{db: db}
}

func (r *ConsumptionRepository) WithTx(tx *gorm.DB) *ConsumptionRepository {
	return &ConsumptionRepository{db: tx}
}

func (r *ConsumptionRepository) Create(rec *entity.ConsumptionRecord) error {
	return r.db.Create(rec).Error
}

func (r *ConsumptionRepository) GetByID(id string) (*entity.ConsumptionRecord, error) {
	var rec entity.ConsumptionRecord
	err := r.db.Preload("Units").Where("id = ?", id).First(&rec).Error
	return &rec, err
}

func (r *ConsumptionRepository) Update(rec *entity.ConsumptionRecord) error {
	return r.db.Save(rec).Error
}

type ConsumptionListParams struct {
	BatchID      string
	MaterialID   string
	MaterialType string
	Status       string
	Page         int
	Size         int
}

func (r *ConsumptionRepository) List(params ConsumptionListParams) ([]entity.ConsumptionRecord, int64, error) {
	query := r.db.Model(&entity.ConsumptionRecord{})
	if params.BatchID != "" {
		query = query.Where("production_batch_id = ?", params.BatchID)
	}
	if params.MaterialID != "" {
		query = query.Where("material_id = ?", params.MaterialID)
	}
	if params.MaterialType != "" {
		query = query.Where("material_type = ?", params.MaterialType)
	}
	if params.Status != "" {
		query = query.Where("status = ?", params.Status)
	}
	var total int64
	query.Count(&total)
	if params.Page <= 0 {
		params.Page = 1
	}
	if params.Size <= 0 {
		params.Size = 20
	}
	var items []entity.ConsumptionRecord
	err := query.Preload("Units").Order("consumed_at DESC").
		Offset((params.Page - 1) * params.Size).Limit(params.Size).Find(&items).Error
	return items, total, err
}

// ActiveByBatch 批次下的有效消耗记录
func (r *ConsumptionRepository) ActiveByBatch(batchID string) ([]entity.ConsumptionRecord, error) {
	var recs []entity.ConsumptionRecord
	err := r.db.Preload("Units").
		Where("production_batch_id = ? AND status = ?", batchID, entity.RecordStatusActive).
		Find(&recs).Error
	return recs, err
}

func (r *ConsumptionRepository) CountActiveByBatch(batchID string) (int64, error) {
	var count int64
	err := r.db.Model(&entity.ConsumptionRecord{}).
		Where("production_batch_id = ? AND status = ?", batchID, entity.RecordStatusActive).
		Count(&count).Error
	return count, err
}

// BatchSummaryRow 批次消耗汇总行
type BatchSummaryRow struct {
	MaterialID          string  `json:"material_id"`
	MaterialName        string  `json:"material_name"`
	MaterialType        string  `json:"material_type"`
	Unit                string  `json:"unit"`
	TotalQuantityUsed   float64 `json:"total_quantity_used"`
	TotalActualConsumed float64 `json:"total_actual_consumed"`
	RecordCount         int64   `json:"record_count"`
}

// SummaryByBatch 按物料聚合批次消耗
func (r *ConsumptionRepository) SummaryByBatch(batchID string) ([]BatchSummaryRow, error) {
	var rows []BatchSummaryRow
	err := r.db.Raw(`
		SELECT material_id, material_name, material_type, unit,
		       COALESCE(SUM(quantity_used), 0)            as total_quantity_used,
		       COALESCE(SUM(actual_consumed_quantity), 0) as total_actual_consumed,
		       COUNT(*)                                   as record_count
		FROM mfg_consumption_records
		WHERE production_batch_id = ? AND status = ?
		GROUP BY material_id, material_name, material_type, unit
		ORDER BY material_name
	`, batchID, entity.RecordStatusActive).Scan(&rows).Error
	return rows, err
}

// AttachUnit 认领式挂接：unit_id 冲突时静默跳过（先到先得），返回是否认领成功
func (r *ConsumptionRepository) AttachUnit(cu *entity.ConsumptionUnit) (bool, error) {
	res := r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "unit_id"}},
		DoNothing: true,
	}).Create(cu)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *ConsumptionRepository) DeleteUnits(consumptionID string) error {
	return r.db.Where("consumption_id = ?", consumptionID).Delete(&entity.ConsumptionUnit{}).Error
}

// ProductRecordsWithoutUnits 未挂接任何单件的成品消耗记录，供时间窗补挂
func (r *ConsumptionRepository) ProductRecordsWithoutUnits() ([]entity.ConsumptionRecord, error) {
	var recs []entity.ConsumptionRecord
	err := r.db.Where(`material_type = ? AND status = ?
		AND id NOT IN (SELECT DISTINCT consumption_id FROM mfg_consumption_units)`,
		entity.MaterialTypeProduct, entity.RecordStatusActive).
		Find(&recs).Error
	return recs, err
}
