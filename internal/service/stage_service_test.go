package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DnyaneshwarWantace/Rajdhani-Backend-sub000/internal/entity"
	"github.com/DnyaneshwarWantace/Rajdhani-Backend-sub000/internal/testutil"
)

func TestCreateBatchUniqueNumber(t *testing.T) {
	svc, db := newTestServices(t)

	testutil.SeedMaterial(t, db, "PRD-1", "Carpet", entity.MaterialTypeProduct, 0, true)

	b, err := svc.Stage.CreateBatch(CreateBatchRequest{
		BatchNumber:     "BN-001",
		ProductID:       "PRD-1",
		PlannedQuantity: 10,
	}, "u1")
	if err != nil {
		t.Fatalf("CreateBatch: %v", err)
	}
	if b.Status != entity.BatchStatusPlanned {
		t.Fatalf("expected planned, got %s", b.Status)
	}
	if b.PlanningStage.Status != entity.StageStatusInProgress {
		t.Fatalf("expected planning in_progress, got %s", b.PlanningStage.Status)
	}

	_, err = svc.Stage.CreateBatch(CreateBatchRequest{
		BatchNumber:     "BN-001",
		ProductID:       "PRD-1",
		PlannedQuantity: 5,
	}, "u1")
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("expected conflict on duplicate batch number, got %v", err)
	}
}

func TestCreateBatchRejectsRawMaterial(t *testing.T) {
	svc, db := newTestServices(t)

	testutil.SeedMaterial(t, db, "RM-1", "Yarn", entity.MaterialTypeRaw, 10, false)

	_, err := svc.Stage.CreateBatch(CreateBatchRequest{
		ProductID:       "RM-1",
		PlannedQuantity: 5,
	}, "u1")
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

// 完整走一遍批次生命周期：选料 → 机器 → 废料 → 完工
func TestBatchLifecycle(t *testing.T) {
	svc, db := newTestServices(t)
	ctx := context.Background()

	testutil.SeedMaterial(t, db, "PRD-1", "Carpet", entity.MaterialTypeProduct, 0, true)
	testutil.SeedMaterial(t, db, "RM-1", "Wool Yarn", entity.MaterialTypeRaw, 100, false)
	testutil.SeedLot(t, db, "LOT-1", "RM-1", 100, time.Now())

	b, err := svc.Stage.CreateBatch(CreateBatchRequest{
		ProductID:       "PRD-1",
		PlannedQuantity: 10,
	}, "u1")
	if err != nil {
		t.Fatalf("CreateBatch: %v", err)
	}

	// 机器阶段未完成时不能提交废料
	if _, err := svc.Stage.CompleteWastage(b.ID, nil, "u1"); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected wastage gate error, got %v", err)
	}
	// 废料阶段未完成时不能完工
	if _, err := svc.Stage.CompleteFinal(b.ID, 10, "u1"); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected final gate error, got %v", err)
	}

	// 选料：延迟扣减的原材料消耗
	rec, err := svc.Consumption.Record(ctx, RecordConsumptionRequest{
		ProductionBatchID: b.ID,
		MaterialID:        "RM-1",
		MaterialType:      entity.MaterialTypeRaw,
		QuantityUsed:      40,
	}, "u1")
	if err != nil {
		t.Fatalf("Record: %v", err)
	}

	view, err := svc.Stage.Stages(b.ID, "u1")
	if err != nil {
		t.Fatalf("Stages: %v", err)
	}
	if !view.Snapshot.Planning.Completed() {
		t.Fatalf("expected planning completed after consumption, got %s", view.Snapshot.Planning.Status)
	}
	if view.CurrentStage != entity.StageMachine {
		t.Fatalf("expected current stage machine, got %s", view.CurrentStage)
	}

	// 机器步骤
	step1, err := svc.Stage.CreateFlowStep(b.ID, CreateFlowStepRequest{
		Sequence: 1, StepType: entity.StepTypeMachine, Name: "Tufting", MachineName: "T-100",
	}, "u1")
	if err != nil {
		t.Fatalf("CreateFlowStep: %v", err)
	}
	step2, err := svc.Stage.CreateFlowStep(b.ID, CreateFlowStepRequest{
		Sequence: 2, StepType: entity.StepTypeMachine, Name: "Shearing",
	}, "u1")
	if err != nil {
		t.Fatalf("CreateFlowStep: %v", err)
	}

	if _, err := svc.Stage.UpdateFlowStepStatus(step1.ID, entity.StageStatusCompleted, "u1"); err != nil {
		t.Fatalf("complete step1: %v", err)
	}
	fresh, err := svc.Stage.GetBatch(b.ID)
	if err != nil {
		t.Fatalf("GetBatch: %v", err)
	}
	if fresh.MachineStage.Completed() {
		t.Fatal("machine stage must not complete with one step pending")
	}

	if _, err := svc.Stage.UpdateFlowStepStatus(step2.ID, entity.StageStatusCompleted, "u1"); err != nil {
		t.Fatalf("complete step2: %v", err)
	}
	fresh, _ = svc.Stage.GetBatch(b.ID)
	if !fresh.MachineStage.Completed() {
		t.Fatalf("expected machine completed, got %s", fresh.MachineStage.Status)
	}

	// 废料提交：级联落定原材料延迟扣减
	fresh, err = svc.Stage.CompleteWastage(b.ID, []WasteItem{
		{MaterialID: "RM-1", Quantity: 2, CanBeReused: true, Reason: "edge trim"},
	}, "u1")
	if err != nil {
		t.Fatalf("CompleteWastage: %v", err)
	}
	if !fresh.WastageStage.Completed() {
		t.Fatalf("expected wastage completed, got %s", fresh.WastageStage.Status)
	}
	if got := currentStock(t, db, "RM-1"); got != 60 {
		t.Fatalf("expected deferred deduct to land (stock 60), got %.4f", got)
	}
	recAfter, err := svc.Consumption.GetByID(rec.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if recAfter.ConsumptionStatus != entity.ConsumptionStatusUsed || !recAfter.StockDeducted {
		t.Fatalf("expected used+deducted, got %s deducted=%v",
			recAfter.ConsumptionStatus, recAfter.StockDeducted)
	}

	// 重复提交废料是空操作，不会重复扣减
	if _, err := svc.Stage.CompleteWastage(b.ID, nil, "u1"); err != nil {
		t.Fatalf("repeat CompleteWastage: %v", err)
	}
	if got := currentStock(t, db, "RM-1"); got != 60 {
		t.Fatalf("expected stock unchanged at 60, got %.4f", got)
	}

	// 完工：生成产出单件
	fresh, err = svc.Stage.CompleteFinal(b.ID, 8, "u1")
	if err != nil {
		t.Fatalf("CompleteFinal: %v", err)
	}
	if fresh.Status != entity.BatchStatusCompleted {
		t.Fatalf("expected batch completed, got %s", fresh.Status)
	}
	if fresh.ProductsCount != 8 {
		t.Fatalf("expected products_count 8, got %d", fresh.ProductsCount)
	}

	var unitCount int64
	db.Model(&entity.ProductUnit{}).Where("batch_id = ?", b.ID).Count(&unitCount)
	if unitCount != 8 {
		t.Fatalf("expected 8 output units, got %d", unitCount)
	}
	if got := currentStock(t, db, "PRD-1"); got != 8 {
		t.Fatalf("expected product stock 8, got %.4f", got)
	}

	// 完工幂等
	if _, err := svc.Stage.CompleteFinal(b.ID, 99, "u1"); err != nil {
		t.Fatalf("repeat CompleteFinal: %v", err)
	}
	db.Model(&entity.ProductUnit{}).Where("batch_id = ?", b.ID).Count(&unitCount)
	if unitCount != 8 {
		t.Fatalf("repeat CompleteFinal must not create units, got %d", unitCount)
	}
}

func TestCompleteWastageCascadesProductUnits(t *testing.T) {
	svc, db := newTestServices(t)
	ctx := context.Background()

	testutil.SeedMaterial(t, db, "PRD-1", "Runner Rug", entity.MaterialTypeProduct, 3, true)
	units := testutil.SeedProductUnits(t, db, "PRD-1", 3)
	b := testutil.SeedBatch(t, db, "BATCH-1", "PRD-OUT")
	db.Model(b).Updates(map[string]interface{}{"machine_status": entity.StageStatusCompleted})

	if _, err := svc.Consumption.Record(ctx, RecordConsumptionRequest{
		ProductionBatchID:    b.ID,
		MaterialID:           "PRD-1",
		MaterialType:         entity.MaterialTypeProduct,
		QuantityUsed:         2,
		IndividualProductIDs: []string{units[0].ID, units[1].ID},
	}, "u1"); err != nil {
		t.Fatalf("Record: %v", err)
	}

	if _, err := svc.Stage.CompleteWastage(b.ID, nil, "u1"); err != nil {
		t.Fatalf("CompleteWastage: %v", err)
	}

	var u entity.ProductUnit
	if err := db.First(&u, "id = ?", units[0].ID).Error; err != nil {
		t.Fatalf("load unit: %v", err)
	}
	if u.Status != entity.UnitStatusUsed {
		t.Fatalf("expected unit used after wastage, got %s", u.Status)
	}
	// 第三件没消耗，库存应为 1
	if got := currentStock(t, db, "PRD-1"); got != 1 {
		t.Fatalf("expected stock 1, got %.4f", got)
	}
}

func TestFixBatchStages(t *testing.T) {
	svc, db := newTestServices(t)
	ctx := context.Background()

	testutil.SeedMaterial(t, db, "RM-1", "Yarn", entity.MaterialTypeRaw, 50, false)
	testutil.SeedLot(t, db, "LOT-1", "RM-1", 50, time.Now())
	b := testutil.SeedBatch(t, db, "BATCH-1", "PRD-X")

	if _, err := svc.Consumption.Record(ctx, RecordConsumptionRequest{
		ProductionBatchID: b.ID,
		MaterialID:        "RM-1",
		MaterialType:      entity.MaterialTypeRaw,
		QuantityUsed:      10,
	}, "u1"); err != nil {
		t.Fatalf("Record: %v", err)
	}

	// 人为把阶段改坏
	db.Model(b).Updates(map[string]interface{}{
		"planning_status": entity.StageStatusPending,
		"machine_status":  entity.StageStatusPending,
	})

	fixed, err := svc.Stage.FixBatchStages()
	if err != nil {
		t.Fatalf("FixBatchStages: %v", err)
	}
	if fixed != 1 {
		t.Fatalf("expected 1 batch fixed, got %d", fixed)
	}

	fresh, _ := svc.Stage.GetBatch(b.ID)
	if !fresh.PlanningStage.Completed() {
		t.Fatalf("expected planning repaired to completed, got %s", fresh.PlanningStage.Status)
	}

	// 幂等：再跑一次无需修复
	fixed, err = svc.Stage.FixBatchStages()
	if err != nil {
		t.Fatalf("second FixBatchStages: %v", err)
	}
	if fixed != 0 {
		t.Fatalf("expected 0 fixed on second run, got %d", fixed)
	}
}
