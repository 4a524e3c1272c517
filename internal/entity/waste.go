package entity

import (
	"time"
)

// WasteStatus 废料记录状态
const (
	WasteStatusGenerated        = "generated"
	WasteStatusDisposed         = "disposed"
	WasteStatusReused           = "reused"
	WasteStatusAddedToInventory = "added_to_inventory"
)

// WasteRecord 废料记录
// 回收（reused）会把数量加回物料聚合库存，入口处校验 status != reused 防止重复加账
type WasteRecord struct {
	ID                string     `json:"id" gorm:"primaryKey;size:64"` // WASTE-xxxxxx
	ProductionBatchID string     `json:"production_batch_id" gorm:"size:64;not null;index"`
	MaterialID        string     `json:"material_id" gorm:"size:64;not null;index"`
	MaterialName      string     `json:"material_name" gorm:"size:128"`
	Quantity          float64    `json:"quantity" gorm:"type:decimal(12,4);not null"`
	Unit              string     `json:"unit" gorm:"size:20"`
	CanBeReused       bool       `json:"can_be_reused" gorm:"default:false"`
	Status            string     `json:"status" gorm:"size:30;not null;default:generated;index"`
	Reason            string     `json:"reason" gorm:"size:255"`
	ReusedAt          *time.Time `json:"reused_at"`
	DisposedAt        *time.Time `json:"disposed_at"`
	CreatedBy         string     `json:"created_by" gorm:"size:64"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

func (WasteRecord) TableName() string {
	return "mfg_waste_records"
}
