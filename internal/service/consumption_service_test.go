package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DnyaneshwarWantace/Rajdhani-Backend-sub000/internal/entity"
	"github.com/DnyaneshwarWantace/Rajdhani-Backend-sub000/internal/repository"
	"github.com/DnyaneshwarWantace/Rajdhani-Backend-sub000/internal/testutil"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newTestServices(t *testing.T) (*Services, *gorm.DB) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	repos := repository.NewRepositories(db)
	return NewServices(repos, db, nil, nil, "", zap.NewNop()), db
}

func currentStock(t *testing.T, db *gorm.DB, materialID string) float64 {
	t.Helper()
	var m entity.Material
	if err := db.First(&m, "id = ?", materialID).Error; err != nil {
		t.Fatalf("load material: %v", err)
	}
	return m.CurrentStock
}

func TestRecordProductWithUnits(t *testing.T) {
	svc, db := newTestServices(t)
	ctx := context.Background()

	testutil.SeedMaterial(t, db, "PRD-1", "Red Carpet 6x9", entity.MaterialTypeProduct, 5, true)
	testutil.SeedBatch(t, db, "BATCH-1", "PRD-1")
	units := testutil.SeedProductUnits(t, db, "PRD-1", 5)

	rec, err := svc.Consumption.Record(ctx, RecordConsumptionRequest{
		ProductionBatchID:    "BATCH-1",
		MaterialID:           "PRD-1",
		MaterialType:         entity.MaterialTypeProduct,
		QuantityUsed:         1.5,
		IndividualProductIDs: []string{units[0].ID, units[1].ID},
	}, "u1")
	if err != nil {
		t.Fatalf("Record: %v", err)
	}

	// 指定单件时按整件数扣减，配方零头只留在 actual
	if rec.QuantityUsed != 2 {
		t.Fatalf("expected quantity_used 2, got %.4f", rec.QuantityUsed)
	}
	if rec.ActualConsumedQuantity != 1.5 {
		t.Fatalf("expected actual 1.5, got %.4f", rec.ActualConsumedQuantity)
	}
	if len(rec.Units) != 2 {
		t.Fatalf("expected 2 claimed units, got %d", len(rec.Units))
	}

	var u entity.ProductUnit
	if err := db.First(&u, "id = ?", units[0].ID).Error; err != nil {
		t.Fatalf("load unit: %v", err)
	}
	if u.Status != entity.UnitStatusInProduction {
		t.Fatalf("expected unit in_production, got %s", u.Status)
	}

	// 聚合库存重算为剩余可用单件数
	if got := currentStock(t, db, "PRD-1"); got != 3 {
		t.Fatalf("expected stock 3, got %.4f", got)
	}
}

func TestRecordProductUnitAlreadyClaimed(t *testing.T) {
	svc, db := newTestServices(t)
	ctx := context.Background()

	testutil.SeedMaterial(t, db, "PRD-1", "Carpet", entity.MaterialTypeProduct, 3, true)
	testutil.SeedBatch(t, db, "BATCH-1", "PRD-1")
	units := testutil.SeedProductUnits(t, db, "PRD-1", 3)

	req := RecordConsumptionRequest{
		ProductionBatchID:    "BATCH-1",
		MaterialID:           "PRD-1",
		MaterialType:         entity.MaterialTypeProduct,
		QuantityUsed:         1,
		IndividualProductIDs: []string{units[0].ID},
	}
	if _, err := svc.Consumption.Record(ctx, req, "u1"); err != nil {
		t.Fatalf("first Record: %v", err)
	}

	// 同一单件第二次消耗必须失败，单件已不是 available
	if _, err := svc.Consumption.Record(ctx, req, "u2"); err == nil {
		t.Fatal("expected error consuming a claimed unit")
	}
}

func TestRecordRawImmediateDeduct(t *testing.T) {
	svc, db := newTestServices(t)
	ctx := context.Background()

	testutil.SeedMaterial(t, db, "RM-1", "Wool Yarn", entity.MaterialTypeRaw, 100, false)
	testutil.SeedBatch(t, db, "BATCH-1", "PRD-X")
	testutil.SeedLot(t, db, "LOT-1", "RM-1", 100, time.Now())

	rec, err := svc.Consumption.Record(ctx, RecordConsumptionRequest{
		ProductionBatchID: "BATCH-1",
		MaterialID:        "RM-1",
		MaterialType:      entity.MaterialTypeRaw,
		QuantityUsed:      30,
		ConsumptionStatus: entity.ConsumptionStatusUsed,
	}, "u1")
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	if !rec.StockDeducted {
		t.Fatal("expected stock_deducted true for used consumption")
	}
	if got := currentStock(t, db, "RM-1"); got != 70 {
		t.Fatalf("expected stock 70, got %.4f", got)
	}
}

func TestRecordRawDeferredDeduct(t *testing.T) {
	svc, db := newTestServices(t)
	ctx := context.Background()

	testutil.SeedMaterial(t, db, "RM-1", "Wool Yarn", entity.MaterialTypeRaw, 100, false)
	testutil.SeedBatch(t, db, "BATCH-1", "PRD-X")
	testutil.SeedLot(t, db, "LOT-1", "RM-1", 100, time.Now())

	rec, err := svc.Consumption.Record(ctx, RecordConsumptionRequest{
		ProductionBatchID: "BATCH-1",
		MaterialID:        "RM-1",
		MaterialType:      entity.MaterialTypeRaw,
		QuantityUsed:      40,
	}, "u1")
	if err != nil {
		t.Fatalf("Record: %v", err)
	}

	// in_production 阶段只占用批次，聚合库存不动
	if rec.StockDeducted {
		t.Fatal("stock must not be deducted at in_production")
	}
	if got := currentStock(t, db, "RM-1"); got != 100 {
		t.Fatalf("expected stock 100, got %.4f", got)
	}

	// used 时一次性扣减
	rec, err = svc.Consumption.UpdateStatus(ctx, rec.ID, entity.ConsumptionStatusUsed, "u1")
	if err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}
	if !rec.StockDeducted {
		t.Fatal("expected stock_deducted after used")
	}
	if got := currentStock(t, db, "RM-1"); got != 60 {
		t.Fatalf("expected stock 60, got %.4f", got)
	}

	// 重复推进是空操作，不会二次扣减
	if _, err = svc.Consumption.UpdateStatus(ctx, rec.ID, entity.ConsumptionStatusUsed, "u1"); err != nil {
		t.Fatalf("repeat UpdateStatus: %v", err)
	}
	if got := currentStock(t, db, "RM-1"); got != 60 {
		t.Fatalf("expected stock unchanged at 60, got %.4f", got)
	}
}

func TestRecordRawStatusNoRegression(t *testing.T) {
	svc, db := newTestServices(t)
	ctx := context.Background()

	testutil.SeedMaterial(t, db, "RM-1", "Yarn", entity.MaterialTypeRaw, 50, false)
	testutil.SeedBatch(t, db, "BATCH-1", "PRD-X")
	testutil.SeedLot(t, db, "LOT-1", "RM-1", 50, time.Now())

	rec, err := svc.Consumption.Record(ctx, RecordConsumptionRequest{
		ProductionBatchID: "BATCH-1",
		MaterialID:        "RM-1",
		MaterialType:      entity.MaterialTypeRaw,
		QuantityUsed:      10,
		ConsumptionStatus: entity.ConsumptionStatusUsed,
	}, "u1")
	if err != nil {
		t.Fatalf("Record: %v", err)
	}

	_, err = svc.Consumption.UpdateStatus(ctx, rec.ID, entity.ConsumptionStatusInProduction, "u1")
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error on regression, got %v", err)
	}
}

func TestRecordInsufficientStock(t *testing.T) {
	svc, db := newTestServices(t)
	ctx := context.Background()

	testutil.SeedMaterial(t, db, "RM-1", "Yarn", entity.MaterialTypeRaw, 20, false)
	testutil.SeedBatch(t, db, "BATCH-1", "PRD-X")
	testutil.SeedLot(t, db, "LOT-1", "RM-1", 20, time.Now())

	// 正好等于库存：允许
	if _, err := svc.Consumption.Record(ctx, RecordConsumptionRequest{
		ProductionBatchID: "BATCH-1",
		MaterialID:        "RM-1",
		MaterialType:      entity.MaterialTypeRaw,
		QuantityUsed:      20,
		ConsumptionStatus: entity.ConsumptionStatusUsed,
	}, "u1"); err != nil {
		t.Fatalf("exact-stock Record: %v", err)
	}

	// 超出：拒绝
	_, err := svc.Consumption.Record(ctx, RecordConsumptionRequest{
		ProductionBatchID: "BATCH-1",
		MaterialID:        "RM-1",
		MaterialType:      entity.MaterialTypeRaw,
		QuantityUsed:      0.01,
		ConsumptionStatus: entity.ConsumptionStatusUsed,
	}, "u1")
	if !errors.Is(err, ErrInsufficientStock) {
		t.Fatalf("expected insufficient stock error, got %v", err)
	}
	if got := currentStock(t, db, "RM-1"); got != 0 {
		t.Fatalf("expected stock 0, got %.4f", got)
	}
}

func TestRecordPlanOnlyNoDeduct(t *testing.T) {
	svc, db := newTestServices(t)
	ctx := context.Background()

	testutil.SeedMaterial(t, db, "RM-1", "Yarn", entity.MaterialTypeRaw, 50, false)
	testutil.SeedBatch(t, db, "BATCH-1", "PRD-X")

	deduct := false
	rec, err := svc.Consumption.Record(ctx, RecordConsumptionRequest{
		ProductionBatchID: "BATCH-1",
		MaterialID:        "RM-1",
		MaterialType:      entity.MaterialTypeRaw,
		QuantityUsed:      30,
		DeductNow:         &deduct,
	}, "u1")
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	if rec.StockDeducted {
		t.Fatal("plan-only record must not deduct")
	}
	if got := currentStock(t, db, "RM-1"); got != 50 {
		t.Fatalf("expected stock 50, got %.4f", got)
	}
	if len(rec.Units) != 0 {
		t.Fatalf("plan-only record must not claim lots, got %d", len(rec.Units))
	}
}

func TestRecordValidation(t *testing.T) {
	svc, db := newTestServices(t)
	ctx := context.Background()

	testutil.SeedMaterial(t, db, "RM-1", "Yarn", entity.MaterialTypeRaw, 50, false)
	testutil.SeedBatch(t, db, "BATCH-1", "PRD-X")

	cases := []struct {
		name string
		req  RecordConsumptionRequest
		want error
	}{
		{"bad type", RecordConsumptionRequest{ProductionBatchID: "BATCH-1", MaterialID: "RM-1", MaterialType: "widget", QuantityUsed: 1}, ErrValidation},
		{"zero qty", RecordConsumptionRequest{ProductionBatchID: "BATCH-1", MaterialID: "RM-1", MaterialType: entity.MaterialTypeRaw, QuantityUsed: 0}, ErrValidation},
		{"missing material", RecordConsumptionRequest{ProductionBatchID: "BATCH-1", MaterialID: "RM-404", MaterialType: entity.MaterialTypeRaw, QuantityUsed: 1}, ErrNotFound},
		{"missing batch", RecordConsumptionRequest{ProductionBatchID: "BATCH-404", MaterialID: "RM-1", MaterialType: entity.MaterialTypeRaw, QuantityUsed: 1}, ErrNotFound},
		{"type mismatch", RecordConsumptionRequest{ProductionBatchID: "BATCH-1", MaterialID: "RM-1", MaterialType: entity.MaterialTypeProduct, QuantityUsed: 1}, ErrValidation},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := svc.Consumption.Record(ctx, tc.req, "u1"); !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestRecordRawUntrackedAggregateOnly(t *testing.T) {
	svc, db := newTestServices(t)
	ctx := context.Background()

	// 非批次追踪：聚合库存是权威值，没有任何批次行
	testutil.SeedMaterial(t, db, "RM-NL", "Jute Backing", entity.MaterialTypeRaw, 100, false)
	testutil.SeedBatch(t, db, "BATCH-1", "PRD-X")

	rec, err := svc.Consumption.Record(ctx, RecordConsumptionRequest{
		ProductionBatchID: "BATCH-1",
		MaterialID:        "RM-NL",
		MaterialType:      entity.MaterialTypeRaw,
		QuantityUsed:      10,
		ConsumptionStatus: entity.ConsumptionStatusUsed,
	}, "u1")
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	if !rec.StockDeducted {
		t.Fatal("expected stock_deducted true")
	}
	if len(rec.Units) != 0 {
		t.Fatalf("untracked material must not claim lots, got %d", len(rec.Units))
	}
	if got := currentStock(t, db, "RM-NL"); got != 90 {
		t.Fatalf("expected stock 90, got %.4f", got)
	}

	// 两段式同样不依赖批次行
	rec, err = svc.Consumption.Record(ctx, RecordConsumptionRequest{
		ProductionBatchID: "BATCH-1",
		MaterialID:        "RM-NL",
		MaterialType:      entity.MaterialTypeRaw,
		QuantityUsed:      20,
	}, "u1")
	if err != nil {
		t.Fatalf("deferred Record: %v", err)
	}
	if got := currentStock(t, db, "RM-NL"); got != 90 {
		t.Fatalf("expected stock still 90, got %.4f", got)
	}
	if _, err := svc.Consumption.UpdateStatus(ctx, rec.ID, entity.ConsumptionStatusUsed, "u1"); err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}
	if got := currentStock(t, db, "RM-NL"); got != 70 {
		t.Fatalf("expected stock 70, got %.4f", got)
	}
}

func TestRecordRawTrackedClaimsLots(t *testing.T) {
	svc, db := newTestServices(t)
	ctx := context.Background()

	testutil.SeedMaterial(t, db, "RM-T", "Wool Yarn", entity.MaterialTypeRaw, 30, true)
	testutil.SeedBatch(t, db, "BATCH-1", "PRD-X")
	older := time.Now().Add(-time.Hour)
	testutil.SeedLot(t, db, "LOT-A", "RM-T", 10, older)
	testutil.SeedLot(t, db, "LOT-B", "RM-T", 20, time.Now())

	rec, err := svc.Consumption.Record(ctx, RecordConsumptionRequest{
		ProductionBatchID: "BATCH-1",
		MaterialID:        "RM-T",
		MaterialType:      entity.MaterialTypeRaw,
		QuantityUsed:      15,
	}, "u1")
	if err != nil {
		t.Fatalf("Record: %v", err)
	}

	// FIFO：LOT-A 整批占用，LOT-B 拆出 5
	if len(rec.Units) != 2 {
		t.Fatalf("expected 2 claimed lots, got %d", len(rec.Units))
	}
	var lotA entity.RawMaterialLot
	if err := db.First(&lotA, "id = ?", "LOT-A").Error; err != nil {
		t.Fatalf("load lot: %v", err)
	}
	if lotA.Status != entity.UnitStatusInProduction {
		t.Fatalf("expected LOT-A in_production, got %s", lotA.Status)
	}
	if got := currentStock(t, db, "RM-T"); got != 30 {
		t.Fatalf("expected stock 30 before used, got %.4f", got)
	}

	if _, err := svc.Consumption.UpdateStatus(ctx, rec.ID, entity.ConsumptionStatusUsed, "u1"); err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}
	if err := db.First(&lotA, "id = ?", "LOT-A").Error; err != nil {
		t.Fatalf("reload lot: %v", err)
	}
	if lotA.Status != entity.UnitStatusUsed {
		t.Fatalf("expected LOT-A used, got %s", lotA.Status)
	}
	if got := currentStock(t, db, "RM-T"); got != 15 {
		t.Fatalf("expected stock 15, got %.4f", got)
	}
}

func TestCancelRestoresUnits(t *testing.T) {
	svc, db := newTestServices(t)
	ctx := context.Background()

	testutil.SeedMaterial(t, db, "PRD-1", "Carpet", entity.MaterialTypeProduct, 4, true)
	testutil.SeedBatch(t, db, "BATCH-1", "PRD-1")
	units := testutil.SeedProductUnits(t, db, "PRD-1", 4)

	rec, err := svc.Consumption.Record(ctx, RecordConsumptionRequest{
		ProductionBatchID:    "BATCH-1",
		MaterialID:           "PRD-1",
		MaterialType:         entity.MaterialTypeProduct,
		QuantityUsed:         2,
		IndividualProductIDs: []string{units[0].ID, units[1].ID},
	}, "u1")
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	if got := currentStock(t, db, "PRD-1"); got != 2 {
		t.Fatalf("expected stock 2 after consume, got %.4f", got)
	}

	cancelled, err := svc.Consumption.Cancel(ctx, rec.ID, "u1")
	if err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if cancelled.Status != entity.RecordStatusCancelled {
		t.Fatalf("expected cancelled, got %s", cancelled.Status)
	}
	if got := currentStock(t, db, "PRD-1"); got != 4 {
		t.Fatalf("expected stock restored to 4, got %.4f", got)
	}

	var u entity.ProductUnit
	if err := db.First(&u, "id = ?", units[0].ID).Error; err != nil {
		t.Fatalf("load unit: %v", err)
	}
	if u.Status != entity.UnitStatusAvailable {
		t.Fatalf("expected unit available after cancel, got %s", u.Status)
	}

	// 取消幂等，不会二次回补
	if _, err := svc.Consumption.Cancel(ctx, rec.ID, "u1"); err != nil {
		t.Fatalf("repeat Cancel: %v", err)
	}
	if got := currentStock(t, db, "PRD-1"); got != 4 {
		t.Fatalf("expected stock unchanged at 4, got %.4f", got)
	}

	// 认领已释放，同一单件可以再次消耗
	if _, err := svc.Consumption.Record(ctx, RecordConsumptionRequest{
		ProductionBatchID:    "BATCH-1",
		MaterialID:           "PRD-1",
		MaterialType:         entity.MaterialTypeProduct,
		QuantityUsed:         1,
		IndividualProductIDs: []string{units[0].ID},
	}, "u1"); err != nil {
		t.Fatalf("re-consume after cancel: %v", err)
	}
}

func TestCancelRawDeductedCredits(t *testing.T) {
	svc, db := newTestServices(t)
	ctx := context.Background()

	testutil.SeedMaterial(t, db, "RM-1", "Yarn", entity.MaterialTypeRaw, 50, false)
	testutil.SeedBatch(t, db, "BATCH-1", "PRD-X")
	testutil.SeedLot(t, db, "LOT-1", "RM-1", 50, time.Now())

	rec, err := svc.Consumption.Record(ctx, RecordConsumptionRequest{
		ProductionBatchID: "BATCH-1",
		MaterialID:        "RM-1",
		MaterialType:      entity.MaterialTypeRaw,
		QuantityUsed:      20,
		ConsumptionStatus: entity.ConsumptionStatusUsed,
	}, "u1")
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	if got := currentStock(t, db, "RM-1"); got != 30 {
		t.Fatalf("expected stock 30, got %.4f", got)
	}

	if _, err := svc.Consumption.Cancel(ctx, rec.ID, "u1"); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if got := currentStock(t, db, "RM-1"); got != 50 {
		t.Fatalf("expected stock restored to 50, got %.4f", got)
	}
}

func TestBatchSummary(t *testing.T) {
	svc, db := newTestServices(t)
	ctx := context.Background()

	testutil.SeedMaterial(t, db, "RM-1", "Yarn", entity.MaterialTypeRaw, 100, false)
	testutil.SeedBatch(t, db, "BATCH-1", "PRD-X")
	testutil.SeedLot(t, db, "LOT-1", "RM-1", 100, time.Now())

	for i := 0; i < 2; i++ {
		if _, err := svc.Consumption.Record(ctx, RecordConsumptionRequest{
			ProductionBatchID: "BATCH-1",
			MaterialID:        "RM-1",
			MaterialType:      entity.MaterialTypeRaw,
			QuantityUsed:      10,
			ConsumptionStatus: entity.ConsumptionStatusUsed,
		}, "u1"); err != nil {
			t.Fatalf("Record %d: %v", i, err)
		}
	}

	rows, err := svc.Consumption.BatchSummary("BATCH-1")
	if err != nil {
		t.Fatalf("BatchSummary: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected 1 summary row, got %d", len(rows))
	}
	if rows[0].TotalQuantityUsed != 20 {
		t.Fatalf("expected total 20, got %.4f", rows[0].TotalQuantityUsed)
	}
	if rows[0].RecordCount != 2 {
		t.Fatalf("expected 2 records, got %d", rows[0].RecordCount)
	}
}
