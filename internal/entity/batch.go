package entity

import (
	"time"
)

// BatchStatus 生产批次状态
const (
	BatchStatusPlanned    = "planned"
	BatchStatusInProgress = "in_progress"
	BatchStatusCompleted  = "completed"
	BatchStatusPaused     = "paused"
	BatchStatusCancelled  = "cancelled"
)

// StageStatus 批次阶段状态，只能单向推进
const (
	StageStatusPending    = "pending"
	StageStatusInProgress = "in_progress"
	StageStatusCompleted  = "completed"
)

// StageName 四个固定阶段，顺序不可变
const (
	StagePlanning = "planning"
	StageMachine  = "machine"
	StageWastage  = "wastage"
	StageFinal    = "final"
)

// FlowStepType 生产流程步骤类型
const (
	StepTypeMachine = "machine_operation"
	StepTypeManual  = "manual_operation"
)

// BatchStage 批次阶段子对象
type BatchStage struct {
	Status      string     `json:"status" gorm:"size:20;default:pending"`
	StartedAt   *time.Time `json:"started_at"`
	StartedBy   string     `json:"started_by" gorm:"size:64"`
	CompletedAt *time.Time `json:"completed_at"`
	CompletedBy string     `json:"completed_by" gorm:"size:64"`
}

// Completed 阶段是否已完成
func (s BatchStage) Completed() bool {
	return s.Status == StageStatusCompleted
}

// ProductionBatch 生产批次，内嵌四个阶段
type ProductionBatch struct {
	ID              string     `json:"id" gorm:"primaryKey;size:64"` // BATCH-xxxxxx
	BatchNumber     string     `json:"batch_number" gorm:"size:50;not null;uniqueIndex"`
	ProductID       string     `json:"product_id" gorm:"size:64;not null;index"`
	ProductName     string     `json:"product_name" gorm:"size:128"`
	PlannedQuantity float64    `json:"planned_quantity" gorm:"type:decimal(12,4);not null"`
	ProductsCount   int        `json:"products_count" gorm:"default:0"` // 末段产出单件数
	Status          string     `json:"status" gorm:"size:20;not null;default:planned;index"`
	PlanningStage   BatchStage `json:"planning_stage" gorm:"embedded;embeddedPrefix:planning_"`
	MachineStage    BatchStage `json:"machine_stage" gorm:"embedded;embeddedPrefix:machine_"`
	WastageStage    BatchStage `json:"wastage_stage" gorm:"embedded;embeddedPrefix:wastage_"`
	FinalStage      BatchStage `json:"final_stage" gorm:"embedded;embeddedPrefix:final_"`
	Notes           string     `json:"notes" gorm:"type:text"`
	CreatedBy       string     `json:"created_by" gorm:"size:64"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
	DeletedAt       *time.Time `json:"deleted_at" gorm:"index"`

	FlowSteps []ProductionFlowStep `json:"flow_steps,omitempty" gorm:"foreignKey:BatchID"`
}

func (ProductionBatch) TableName() string {
	return "mfg_production_batches"
}

// ProductionFlowStep 生产流程步骤，machine_operation 步骤全部完成即机器阶段完成
type ProductionFlowStep struct {
	ID          string     `json:"id" gorm:"primaryKey;size:64"`
	BatchID     string     `json:"production_batch_id" gorm:"column:production_batch_id;size:64;not null;index"`
	Sequence    int        `json:"sequence" gorm:"not null;default:0"`
	StepType    string     `json:"step_type" gorm:"size:30;not null"` // machine_operation / manual_operation
	Name        string     `json:"name" gorm:"size:128;not null"`
	MachineName string     `json:"machine_name" gorm:"size:128"`
	Status      string     `json:"status" gorm:"size:20;not null;default:pending;index"`
	StartedAt   *time.Time `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at"`
	CompletedBy string     `json:"completed_by" gorm:"size:64"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

func (ProductionFlowStep) TableName() string {
	return "mfg_production_flow_steps"
}
