package entity

import "gorm.io/gorm"

// AutoMigrate 自动迁移所有生产域表
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		// 物料与库存
		&Material{},
		&ProductUnit{},
		&RawMaterialLot{},
		&UnitStatusLog{},

		// 消耗
		&ConsumptionRecord{},
		&ConsumptionUnit{},

		// 生产
		&ProductionBatch{},
		&ProductionFlowStep{},

		// 废料
		&WasteRecord{},
	)
}
