package repository

import (
	"gorm.io/gorm"
)

// Repositories 数据访问层集合
type Repositories struct {
	Material    *MaterialRepository
	Unit        *UnitRepository
	Consumption *ConsumptionRepository
	Batch       *BatchRepository
	Waste       *WasteRepository
}

func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		Material:    NewMaterialRepository(db),
		Unit:        NewUnitRepository(db),
		Consumption: NewConsumptionRepository(db),
		Batch:       NewBatchRepository(db),
		Waste:       NewWasteRepository(db),
	}
}
