package repository

import (
	"time"

	"github.com/DnyaneshwarWantace/Rajdhani-Backend-sub000/internal/entity"
	"gorm.io/gorm"
)

type MaterialRepository struct {
	db *gorm.DB
}

func NewMaterialRepository(db *gorm.DB) *MaterialRepository {
	return &MaterialRepository{db: db}
}

// WithTx 返回绑定到事务的副本
func (r *MaterialRepository) WithTx(tx *gorm.DB) *MaterialRepository {
	return &MaterialRepository{db: tx}
}

func (r *MaterialRepository) GetByID(id string) (*entity.Material, error) {
	var m entity.Material
	err := r.db.Where("id = ? AND deleted_at IS NULL", id).First(&m).Error
	return &m, err
}

func (r *MaterialRepository) Create(m *entity.Material) error {
	return r.db.Create(m).Error
}

func (r *MaterialRepository) Update(m *entity.Material) error {
	return r.db.Save(m).Error
}

func (r *MaterialRepository) Delete(id string) error {
	now := time.Now()
	return r.db.Model(&entity.Material{}).Where("id = ?", id).Update("deleted_at", &now).Error
}

type MaterialListParams struct {
	Type    string
	Keyword string
	Status  string // out-of-stock / low-stock / in-stock / overstock
	Page    int
	Size    int
}

func (r *MaterialRepository) List(params MaterialListParams) ([]entity.Material, int64, error) {
	query := r.db.Model(&entity.Material{}).Where("deleted_at IS NULL")
	if params.Type != "" {
		query = query.Where("type = ?", params.Type)
	}
	if params.Keyword != "" {
		kw := "%" + params.Keyword + "%"
		query = query.Where("code LIKE ? OR name LIKE ?", kw, kw)
	}
	var total int64
	query.Count(&total)
	if params.Page <= 0 {
		params.Page = 1
	}
	if params.Size <= 0 {
		params.Size = 20
	}
	var items []entity.Material
	err := query.Order("updated_at DESC").
		Offset((params.Page - 1) * params.Size).Limit(params.Size).Find(&items).Error
	return items, total, err
}

// AtomicDeduct 条件扣减：库存足够才扣，返回是否扣减成功
// 把检查和扣减压进一条 UPDATE，并发请求不会同时通过库存检查
func (r *MaterialRepository) AtomicDeduct(id string, qty float64) (bool, error) {
	res := r.db.Exec(
		`UPDATE mfg_materials SET current_stock = current_stock - ?, updated_at = ?
		 WHERE id = ? AND deleted_at IS NULL AND current_stock >= ?`,
		qty, time.Now(), id, qty,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// AtomicCredit 聚合库存加账
func (r *MaterialRepository) AtomicCredit(id string, qty float64) error {
	return r.db.Exec(
		`UPDATE mfg_materials SET current_stock = current_stock + ?, updated_at = ?
		 WHERE id = ? AND deleted_at IS NULL`,
		qty, time.Now(), id,
	).Error
}

// SetStock 重算后直接落库存值
func (r *MaterialRepository) SetStock(id string, stock float64, individualCount int) error {
	return r.db.Model(&entity.Material{}).Where("id = ?", id).
		Updates(map[string]interface{}{
			"current_stock":    stock,
			"individual_count": individualCount,
			"updated_at":       time.Now(),
		}).Error
}

// AllIDs 全部物料ID，供对账巡检使用
func (r *MaterialRepository) AllIDs() ([]string, error) {
	var ids []string
	err := r.db.Model(&entity.Material{}).Where("deleted_at IS NULL").Pluck("id", &ids).Error
	return ids, err
}
