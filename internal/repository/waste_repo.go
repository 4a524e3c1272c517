package repository

import (
	"github.com/DnyaneshwarWantace/Rajdhani-Backend-sub000/internal/entity"
	"gorm.io/gorm"
)

type WasteRepository struct {
	db *gorm.DB
}

func NewWasteRepository(db *gorm.DB) *WasteRepository {
	return &WasteRepository{db: db}
}

func (r *WasteRepository) WithTx(tx *gorm.DB) *WasteRepository {
	return &WasteRepository{db: tx}
}

func (r *WasteRepository) Create(w *entity.WasteRecord) error {
	return r.db.Create(w).Error
}

func (r *WasteRepository) GetByID(id string) (*entity.WasteRecord, error) {
	var w entity.WasteRecord
	err := r.db.Where("id = ?", id).First(&w).Error
	return &w, err
}

func (r *WasteRepository) Update(w *entity.WasteRecord) error {
	return r.db.Save(w).Error
}

// MarkReusedIfNot 状态条件更新：仅当尚未 reused 时置为 reused，返回是否改动
// 重复加账的防线压在这一条 UPDATE 上
func (r *WasteRepository) MarkReusedIfNot(id string) (bool, error) {
	res := r.db.Model(&entity.WasteRecord{}).
		Where("id = ? AND status != ?", id, entity.WasteStatusReused).
		Update("status", entity.WasteStatusReused)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

type WasteListParams struct {
	BatchID    string
	MaterialID string
	Status     string
	Page       int
	Size       int
}

func (r *WasteRepository) List(params WasteListParams) ([]entity.WasteRecord, int64, error) {
	query := r.db.Model(&entity.WasteRecord{})
	if params.BatchID != "" {
		query = query.Where("production_batch_id = ?", params.BatchID)
	}
	if params.MaterialID != "" {
		query = query.Where("material_id = ?", params.MaterialID)
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
	var items []entity.WasteRecord
	err := query.Order("created_at DESC").
		Offset((params.Page - 1) * params.Size).Limit(params.Size).Find(&items).Error
	return items, total, err
}
