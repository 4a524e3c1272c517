package service

import (
	"errors"
	"testing"

	"github.com/DnyaneshwarWantace/Rajdhani-Backend-sub000/internal/entity"
	"github.com/DnyaneshwarWantace/Rajdhani-Backend-sub000/internal/testutil"
)

func seedWaste(t *testing.T, svc *Services, materialID string, qty float64, reusable bool) *entity.WasteRecord {
	t.Helper()
	w, err := svc.Waste.Create(CreateWasteRequest{
		ProductionBatchID: "BATCH-1",
		MaterialID:        materialID,
		Quantity:          qty,
		CanBeReused:       reusable,
		Reason:            "offcut",
	}, "u1")
	if err != nil {
		t.Fatalf("create waste: %v", err)
	}
	return w
}

func TestWasteReuseCreditsOnce(t *testing.T) {
	svc, db := newTestServices(t)

	testutil.SeedMaterial(t, db, "RM-1", "Yarn", entity.MaterialTypeRaw, 40, false)
	testutil.SeedBatch(t, db, "BATCH-1", "PRD-X")
	w := seedWaste(t, svc, "RM-1", 5, true)

	reused, err := svc.Waste.Reuse(w.ID, "u1")
	if err != nil {
		t.Fatalf("Reuse: %v", err)
	}
	if reused.Status != entity.WasteStatusReused {
		t.Fatalf("expected reused, got %s", reused.Status)
	}
	if got := currentStock(t, db, "RM-1"); got != 45 {
		t.Fatalf("expected stock 45, got %.4f", got)
	}

	// 重复回收不会二次加账
	if _, err := svc.Waste.Reuse(w.ID, "u1"); err != nil {
		t.Fatalf("repeat Reuse: %v", err)
	}
	if got := currentStock(t, db, "RM-1"); got != 45 {
		t.Fatalf("expected stock unchanged at 45, got %.4f", got)
	}
}

func TestWasteReuseTrackedCreatesReclaimLot(t *testing.T) {
	svc, db := newTestServices(t)

	testutil.SeedMaterial(t, db, "RM-1", "Yarn", entity.MaterialTypeRaw, 0, true)
	testutil.SeedBatch(t, db, "BATCH-1", "PRD-X")
	w := seedWaste(t, svc, "RM-1", 8, true)

	if _, err := svc.Waste.Reuse(w.ID, "u1"); err != nil {
		t.Fatalf("Reuse: %v", err)
	}

	var lot entity.RawMaterialLot
	if err := db.First(&lot, "material_id = ? AND reclaimed = ?", "RM-1", true).Error; err != nil {
		t.Fatalf("expected reclaim lot: %v", err)
	}
	if lot.Quantity != 8 || lot.UnitCost != 0 {
		t.Fatalf("unexpected reclaim lot: qty=%.4f cost=%.2f", lot.Quantity, lot.UnitCost)
	}
	// 重算口径包含再生批次
	if got := currentStock(t, db, "RM-1"); got != 8 {
		t.Fatalf("expected stock 8, got %.4f", got)
	}
}

func TestWasteReuseTrackedProductRejected(t *testing.T) {
	svc, db := newTestServices(t)

	// 单件追踪成品的库存由单件重算，直接加账会被下次重算抹掉
	testutil.SeedMaterial(t, db, "PRD-1", "Carpet", entity.MaterialTypeProduct, 3, true)
	testutil.SeedProductUnits(t, db, "PRD-1", 3)
	testutil.SeedBatch(t, db, "BATCH-1", "PRD-1")
	w := seedWaste(t, svc, "PRD-1", 2, true)

	if _, err := svc.Waste.Reuse(w.ID, "u1"); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if got := currentStock(t, db, "PRD-1"); got != 3 {
		t.Fatalf("expected stock unchanged at 3, got %.4f", got)
	}

	// 重算后口径仍一致
	if _, err := svc.Reconcile.ReconcileMaterialStock("PRD-1"); err != nil {
		t.Fatalf("ReconcileMaterialStock: %v", err)
	}
	if got := currentStock(t, db, "PRD-1"); got != 3 {
		t.Fatalf("expected stock 3 after recompute, got %.4f", got)
	}
}

func TestWasteReuseNotReusable(t *testing.T) {
	svc, db := newTestServices(t)

	testutil.SeedMaterial(t, db, "RM-1", "Yarn", entity.MaterialTypeRaw, 10, false)
	testutil.SeedBatch(t, db, "BATCH-1", "PRD-X")
	w := seedWaste(t, svc, "RM-1", 5, false)

	if _, err := svc.Waste.Reuse(w.ID, "u1"); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestWasteDisposeAndReuseExclusive(t *testing.T) {
	svc, db := newTestServices(t)

	testutil.SeedMaterial(t, db, "RM-1", "Yarn", entity.MaterialTypeRaw, 10, false)
	testutil.SeedBatch(t, db, "BATCH-1", "PRD-X")

	w := seedWaste(t, svc, "RM-1", 5, true)
	if _, err := svc.Waste.Dispose(w.ID, "u1"); err != nil {
		t.Fatalf("Dispose: %v", err)
	}
	// 处置幂等
	if _, err := svc.Waste.Dispose(w.ID, "u1"); err != nil {
		t.Fatalf("repeat Dispose: %v", err)
	}
	// 已处置不能回收
	if _, err := svc.Waste.Reuse(w.ID, "u1"); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error reusing disposed waste, got %v", err)
	}

	// 已回收不能处置
	w2 := seedWaste(t, svc, "RM-1", 3, true)
	if _, err := svc.Waste.Reuse(w2.ID, "u1"); err != nil {
		t.Fatalf("Reuse: %v", err)
	}
	if _, err := svc.Waste.Dispose(w2.ID, "u1"); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error disposing reused waste, got %v", err)
	}
}
