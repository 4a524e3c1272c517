package entity

import (
	"time"
)

// UnitStatus 单件/批次生命周期状态
const (
	UnitStatusAvailable    = "available"
	UnitStatusReserved     = "reserved"
	UnitStatusInProduction = "in_production"
	UnitStatusUsed         = "used"
	UnitStatusSold         = "sold"
	UnitStatusDamaged      = "damaged"
	UnitStatusReturned     = "returned"
	UnitStatusQualityCheck = "quality_check"
)

// ProductUnit 成品单件（序列化追踪，整件流转，不可拆分）
type ProductUnit struct {
	ID           string     `json:"id" gorm:"primaryKey;size:64"`
	MaterialID   string     `json:"material_id" gorm:"size:64;not null;index"`
	SerialNo     string     `json:"serial_no" gorm:"size:100;index"`
	BatchID      string     `json:"production_batch_id" gorm:"size:64;index"` // 产出该单件的生产批次
	Status       string     `json:"status" gorm:"size:20;not null;default:available;index"`
	QualityGrade string     `json:"quality_grade" gorm:"size:20"`
	ProducedAt   *time.Time `json:"produced_at"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	DeletedAt    *time.Time `json:"deleted_at" gorm:"index"`
}

func (ProductUnit) TableName() string {
	return "mfg_product_units"
}

// RawMaterialLot 原材料批次（带数量，可按消耗拆分）
type RawMaterialLot struct {
	ID           string     `json:"id" gorm:"primaryKey;size:64"`
	MaterialID   string     `json:"material_id" gorm:"size:64;not null;index"`
	BatchNo      string     `json:"batch_no" gorm:"size:50;index"`
	Quantity     float64    `json:"quantity" gorm:"type:decimal(12,4);not null"`
	Unit         string     `json:"unit" gorm:"size:20;not null;default:kg"`
	UnitCost     float64    `json:"unit_cost" gorm:"type:decimal(12,4);default:0"`
	TotalCost    float64    `json:"total_cost" gorm:"type:decimal(12,4);default:0"`
	SupplierName string     `json:"supplier_name" gorm:"size:128"`
	Status       string     `json:"status" gorm:"size:20;not null;default:available;index"`
	// 拆分产生的批次指回原批次
	ParentLotID string     `json:"parent_lot_id" gorm:"size:64;index"`
	Reclaimed   bool       `json:"reclaimed" gorm:"default:false"` // 废料回收入库产生
	ReceivedAt  time.Time  `json:"received_at" gorm:"index"`       // FIFO 排序键
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	DeletedAt   *time.Time `json:"deleted_at" gorm:"index"`
}

func (RawMaterialLot) TableName() string {
	return "mfg_raw_material_lots"
}

// UnitStatusLog 单件状态流转历史
type UnitStatusLog struct {
	ID         string    `json:"id" gorm:"primaryKey;size:64"`
	UnitID     string    `json:"unit_id" gorm:"size:64;not null;index"`
	UnitType   string    `json:"unit_type" gorm:"size:20;not null"` // product_unit / raw_lot
	FromStatus string    `json:"from_status" gorm:"size:20"`
	ToStatus   string    `json:"to_status" gorm:"size:20;not null"`
	Context    string    `json:"context" gorm:"size:255"` // 触发来源：消耗记录ID、批次ID等
	ChangedBy  string    `json:"changed_by" gorm:"size:64"`
	CreatedAt  time.Time `json:"created_at"`
}

func (UnitStatusLog) TableName() string {
	return "mfg_unit_status_logs"
}
