package repository

import (
	"time"

	"github.com/DnyaneshwarWantace/Rajdhani-Backend-sub000/internal/entity"
	"gorm.io/gorm"
)

type UnitRepository struct {
	db *gorm.DB
}

func NewUnitRepository(db *gorm.DB) *UnitRepository {
	return &UnitRepository{db: db}
}

func (r *UnitRepository) WithTx(tx *gorm.DB) *UnitRepository {
	return &UnitRepository{db: tx}
}

// ---- 成品单件 ----

func (r *UnitRepository) CreateProductUnits(units []entity.ProductUnit) error {
	if len(units) == 0 {
		return nil
	}
	return r.db.Create(&units).Error
}

func (r *UnitRepository) GetProductUnits(ids []string) ([]entity.ProductUnit, error) {
	var units []entity.ProductUnit
	err := r.db.Where("id IN ? AND deleted_at IS NULL", ids).Find(&units).Error
	return units, err
}

func (r *UnitRepository) GetProductUnit(id string) (*entity.ProductUnit, error) {
	var u entity.ProductUnit
	err := r.db.Where("id = ? AND deleted_at IS NULL", id).First(&u).Error
	return &u, err
}

// AvailableProductUnits 可用单件，limit<=0 时不限
func (r *UnitRepository) AvailableProductUnits(materialID string, limit int) ([]entity.ProductUnit, error) {
	query := r.db.Where("material_id = ? AND status = ? AND deleted_at IS NULL",
		materialID, entity.UnitStatusAvailable).Order("created_at ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	var units []entity.ProductUnit
	err := query.Find(&units).Error
	return units, err
}

func (r *UnitRepository) UpdateProductUnitStatus(ids []string, status string) error {
	if len(ids) == 0 {
		return nil
	}
	return r.db.Model(&entity.ProductUnit{}).Where("id IN ?", ids).
		Updates(map[string]interface{}{"status": status, "updated_at": time.Now()}).Error
}

// UpdateProductUnitStatusFrom 仅当当前状态匹配时流转，返回实际改动行数
func (r *UnitRepository) UpdateProductUnitStatusFrom(ids []string, from, to string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res := r.db.Model(&entity.ProductUnit{}).Where("id IN ? AND status = ?", ids, from).
		Updates(map[string]interface{}{"status": to, "updated_at": time.Now()})
	return res.RowsAffected, res.Error
}

func (r *UnitRepository) CountAvailableProductUnits(materialID string) (int64, error) {
	var count int64
	err := r.db.Model(&entity.ProductUnit{}).
		Where("material_id = ? AND status = ? AND deleted_at IS NULL", materialID, entity.UnitStatusAvailable).
		Count(&count).Error
	return count, err
}

// CountProductUnitsByStatus 按状态统计单件数
func (r *UnitRepository) CountProductUnitsByStatus(materialID string) (map[string]int64, error) {
	var rows []struct {
		Status string
		Count  int64
	}
	err := r.db.Model(&entity.ProductUnit{}).
		Select("status, COUNT(*) as count").
		Where("material_id = ? AND deleted_at IS NULL", materialID).
		Group("status").Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	result := make(map[string]int64, len(rows))
	for _, row := range rows {
		result[row.Status] = row.Count
	}
	return result, nil
}

// UnclaimedUsedUnits 时间窗内流转为 used 且未被任何消耗记录认领的单件
func (r *UnitRepository) UnclaimedUsedUnits(materialID string, from, to time.Time) ([]entity.ProductUnit, error) {
	var units []entity.ProductUnit
	err := r.db.Where(`material_id = ? AND status = ? AND deleted_at IS NULL
		AND updated_at BETWEEN ? AND ?
		AND id NOT IN (SELECT unit_id FROM mfg_consumption_units)`,
		materialID, entity.UnitStatusUsed, from, to).
		Order("updated_at ASC").Find(&units).Error
	return units, err
}

// ListProductUnits 某物料的单件清单，可按状态过滤
func (r *UnitRepository) ListProductUnits(materialID, status string) ([]entity.ProductUnit, error) {
	query := r.db.Where("material_id = ? AND deleted_at IS NULL", materialID)
	if status != "" {
		query = query.Where("status = ?", status)
	}
	var units []entity.ProductUnit
	err := query.Order("created_at DESC").Find(&units).Error
	return units, err
}

// ---- 原材料批次 ----

func (r *UnitRepository) CreateLot(lot *entity.RawMaterialLot) error {
	return r.db.Create(lot).Error
}

func (r *UnitRepository) GetLot(id string) (*entity.RawMaterialLot, error) {
	var lot entity.RawMaterialLot
	err := r.db.Where("id = ? AND deleted_at IS NULL", id).First(&lot).Error
	return &lot, err
}

func (r *UnitRepository) GetLots(ids []string) ([]entity.RawMaterialLot, error) {
	var lots []entity.RawMaterialLot
	err := r.db.Where("id IN ? AND deleted_at IS NULL", ids).Find(&lots).Error
	return lots, err
}

func (r *UnitRepository) UpdateLot(lot *entity.RawMaterialLot) error {
	return r.db.Save(lot).Error
}

func (r *UnitRepository) UpdateLotStatus(ids []string, status string) error {
	if len(ids) == 0 {
		return nil
	}
	return r.db.Model(&entity.RawMaterialLot{}).Where("id IN ?", ids).
		Updates(map[string]interface{}{"status": status, "updated_at": time.Now()}).Error
}

// ListLots 某物料的批次清单，可按状态过滤
func (r *UnitRepository) ListLots(materialID, status string) ([]entity.RawMaterialLot, error) {
	query := r.db.Where("material_id = ? AND deleted_at IS NULL", materialID)
	if status != "" {
		query = query.Where("status = ?", status)
	}
	var lots []entity.RawMaterialLot
	err := query.Order("received_at ASC").Find(&lots).Error
	return lots, err
}

// AvailableLotsFIFO 可用批次，最老的先出
func (r *UnitRepository) AvailableLotsFIFO(materialID string) ([]entity.RawMaterialLot, error) {
	var lots []entity.RawMaterialLot
	err := r.db.Where("material_id = ? AND status = ? AND deleted_at IS NULL",
		materialID, entity.UnitStatusAvailable).
		Order("received_at ASC").Find(&lots).Error
	return lots, err
}

// SumLotQuantity 指定状态集合的批次数量合计
func (r *UnitRepository) SumLotQuantity(materialID string, statuses []string) (float64, error) {
	var result struct{ Total float64 }
	err := r.db.Raw(`
		SELECT COALESCE(SUM(quantity), 0) as total
		FROM mfg_raw_material_lots
		WHERE material_id = ? AND status IN ? AND deleted_at IS NULL
	`, materialID, statuses).Scan(&result).Error
	return result.Total, err
}

// SumLotQuantityByStatus 按状态汇总批次数量
func (r *UnitRepository) SumLotQuantityByStatus(materialID string) (map[string]float64, error) {
	var rows []struct {
		Status string
		Total  float64
	}
	err := r.db.Model(&entity.RawMaterialLot{}).
		Select("status, COALESCE(SUM(quantity), 0) as total").
		Where("material_id = ? AND deleted_at IS NULL", materialID).
		Group("status").Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	result := make(map[string]float64, len(rows))
	for _, row := range rows {
		result[row.Status] = row.Total
	}
	return result, nil
}

// ---- 状态历史 ----

func (r *UnitRepository) CreateStatusLogs(logs []entity.UnitStatusLog) error {
	if len(logs) == 0 {
		return nil
	}
	return r.db.Create(&logs).Error
}
