package entity

import (
	"time"
)

// MaterialType 物料类型
const (
	MaterialTypeProduct = "product"      // 成品地毯
	MaterialTypeRaw     = "raw_material" // 原材料
)

// StockStatus 库存状态
const (
	StockStatusOut  = "out-of-stock"
	StockStatusLow  = "low-stock"
	StockStatusIn   = "in-stock"
	StockStatusOver = "overstock"
)

// Material 物料主数据（成品或原材料）
// UnitTracking=true 时 CurrentStock 为派生值，由单件/批次记录重算得出
type Material struct {
	ID           string  `json:"id" gorm:"primaryKey;size:64"`
	Code         string  `json:"code" gorm:"size:64;index"`
	Name         string  `json:"name" gorm:"size:128;not null"`
	Type         string  `json:"type" gorm:"size:20;not null;index"` // product / raw_material
	Unit         string  `json:"unit" gorm:"size:20;not null;default:pcs"`
	CurrentStock float64 `json:"current_stock" gorm:"type:decimal(12,4);not null;default:0"`
	MinThreshold float64 `json:"min_threshold" gorm:"type:decimal(12,4);default:0"`
	MaxCapacity  float64 `json:"max_capacity" gorm:"type:decimal(12,4);default:0"`
	UnitCost     float64 `json:"unit_cost" gorm:"type:decimal(12,4);default:0"`
	UnitTracking bool    `json:"unit_tracking" gorm:"default:false"`
	// 单件追踪成品的可用单件数量，与 CurrentStock 一同重算
	IndividualCount int        `json:"individual_products_count" gorm:"default:0"`
	Color           string     `json:"color" gorm:"size:50"`
	Specification   string     `json:"specification" gorm:"size:255"`
	SupplierName    string     `json:"supplier_name" gorm:"size:128"`
	ImageURL        string     `json:"image_url" gorm:"size:512"`
	CreatedBy       string     `json:"created_by" gorm:"size:64"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
	DeletedAt       *time.Time `json:"deleted_at" gorm:"index"`
}

func (Material) TableName() string {
	return "mfg_materials"
}

// StockStatusOf 按阈值判定库存状态
func (m *Material) StockStatusOf() string {
	switch {
	case m.CurrentStock <= 0:
		return StockStatusOut
	case m.MinThreshold > 0 && m.CurrentStock < m.MinThreshold:
		return StockStatusLow
	case m.MaxCapacity > 0 && m.CurrentStock > m.MaxCapacity:
		return StockStatusOver
	default:
		return StockStatusIn
	}
}
