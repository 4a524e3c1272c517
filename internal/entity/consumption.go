package entity

import (
	"time"
)

// ConsumptionStatus 原材料消耗的分段扣减状态
// in_production 阶段只占用批次，不扣减聚合库存；used 时一次性扣减
const (
	ConsumptionStatusReserved     = "reserved"
	ConsumptionStatusInProduction = "in_production"
	ConsumptionStatusUsed         = "used"
	ConsumptionStatusSold         = "sold"
)

// RecordStatus 消耗记录软删除标记
const (
	RecordStatusActive    = "active"
	RecordStatusCancelled = "cancelled"
	RecordStatusAdjusted  = "adjusted"
)

// BackfillConfidence 补挂单件链接的置信度
const (
	BackfillConfidenceExact   = "exact"
	BackfillConfidencePartial = "partial"
)

// ConsumptionRecord 物料消耗记录
// 每次消耗事件创建一条；consumption_status 推进时原地更新，不重建
type ConsumptionRecord struct {
	ID                string  `json:"id" gorm:"primaryKey;size:64"` // MATCONS-<ms>-<rand>
	ProductionBatchID string  `json:"production_batch_id" gorm:"size:64;not null;index"`
	MaterialID        string  `json:"material_id" gorm:"size:64;not null;index"`
	MaterialName      string  `json:"material_name" gorm:"size:128"`
	MaterialType      string  `json:"material_type" gorm:"size:20;not null"` // product / raw_material
	Unit              string  `json:"unit" gorm:"size:20"`
	QuantityUsed      float64 `json:"quantity_used" gorm:"type:decimal(12,4);not null"`
	// 配方真实用量，成品按整件消耗时可小于 QuantityUsed
	ActualConsumedQuantity float64 `json:"actual_consumed_quantity" gorm:"type:decimal(12,4)"`
	ConsumptionStatus      string  `json:"consumption_status" gorm:"size:20;default:in_production;index"`
	Status                 string  `json:"status" gorm:"size:20;not null;default:active;index"`
	// 聚合库存是否已为本记录扣减过，保证至多扣一次
	StockDeducted bool       `json:"stock_deducted" gorm:"default:false"`
	ConsumedAt    time.Time  `json:"consumed_at" gorm:"index"`
	Notes         string     `json:"notes" gorm:"type:text"`
	CreatedBy     string     `json:"created_by" gorm:"size:64"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
	CancelledAt   *time.Time `json:"cancelled_at"`

	Units []ConsumptionUnit `json:"units,omitempty" gorm:"foreignKey:ConsumptionID"`
}

func (ConsumptionRecord) TableName() string {
	return "mfg_consumption_records"
}

// ConsumptionUnit 消耗记录与单件/批次的关联快照
// UnitID 唯一索引即认领约束：一个单件至多归属一条消耗记录
type ConsumptionUnit struct {
	ID            string  `json:"id" gorm:"primaryKey;size:64"`
	ConsumptionID string  `json:"consumption_id" gorm:"size:64;not null;index"`
	UnitID        string  `json:"unit_id" gorm:"size:64;not null;uniqueIndex"`
	UnitType      string  `json:"unit_type" gorm:"size:20;not null"` // product_unit / raw_lot
	SerialNo      string  `json:"serial_no" gorm:"size:100"`
	Quantity      float64 `json:"quantity" gorm:"type:decimal(12,4);default:1"`
	// 事后按时间窗补挂的链接带置信度标记
	Backfilled bool      `json:"backfilled" gorm:"default:false"`
	Confidence string    `json:"confidence" gorm:"size:20"`
	CreatedAt  time.Time `json:"created_at"`
}

func (ConsumptionUnit) TableName() string {
	return "mfg_consumption_units"
}
