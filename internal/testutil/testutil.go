package testutil

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DnyaneshwarWantace/Rajdhani-Backend-sub000/internal/entity"
	"github.com/DnyaneshwarWantace/Rajdhani-Backend-sub000/internal/middleware"
	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/golang-jwt/jwt/v5"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const JWTSecret = "mfg-test-jwt-secret-2025"

// SetupTestDB 每个测试拿独立的内存库，跑完自动回收
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:?cache=private"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}

	if err := entity.AutoMigrate(db); err != nil {
		t.Fatalf("Failed to migrate test tables: %v", err)
	}

	t.Cleanup(func() {
		sqlDB, _ := db.DB()
		if sqlDB != nil {
			sqlDB.Close()
		}
	})

	return db
}

// SetupRouter creates a gin test router
func SetupRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(gin.Recovery())
	return r
}

// AuthGroup creates an API group with JWT auth middleware for testing
func AuthGroup(r *gin.Engine, path string) *gin.RouterGroup {
	return r.Group(path, middleware.JWTAuth(JWTSecret))
}

// GenerateTestToken creates a valid JWT token for testing
func GenerateTestToken(userID, name, email string, roles, permissions []string) string {
	if roles == nil {
		roles = []string{}
	}
	if permissions == nil {
		permissions = []string{}
	}

	now := time.Now()
	claims := jwt.MapClaims{
		"sub":   userID,
		"uid":   userID,
		"name":  name,
		"email": email,
		"roles": roles,
		"perms": permissions,
		"iss":   "rajdhani-mfg",
		"iat":   now.Unix(),
		"exp":   now.Add(24 * time.Hour).Unix(),
		"jti":   fmt.Sprintf("test-jti-%d", now.UnixNano()),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, _ := token.SignedString([]byte(JWTSecret))
	return tokenString
}

// DefaultTestToken returns a token for a default admin test user
func DefaultTestToken() string {
	return GenerateTestToken(
		"test-user-001",
		"Test Admin",
		"admin@test.com",
		[]string{"mfg_admin"},
		[]string{"*"},
	)
}

// DoRequest executes an HTTP request against the test router
func DoRequest(r *gin.Engine, method, path string, body interface{}, token string) *httptest.ResponseRecorder {
	var reqBody *bytes.Buffer
	if body != nil {
		jsonBytes, _ := json.Marshal(body)
		reqBody = bytes.NewBuffer(jsonBytes)
	} else {
		reqBody = bytes.NewBuffer(nil)
	}

	req, _ := http.NewRequest(method, path, reqBody)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

// ParseResponse parses the JSON response body
func ParseResponse(w *httptest.ResponseRecorder) map[string]interface{} {
	var result map[string]interface{}
	json.Unmarshal(w.Body.Bytes(), &result)
	return result
}

// SeedMaterial creates a material row for tests
func SeedMaterial(t *testing.T, db *gorm.DB, id, name, materialType string, stock float64, unitTracking bool) *entity.Material {
	t.Helper()
	m := &entity.Material{
		ID:           id,
		Code:         id,
		Name:         name,
		Type:         materialType,
		Unit:         "pcs",
		CurrentStock: stock,
		UnitTracking: unitTracking,
	}
	if err := db.Create(m).Error; err != nil {
		t.Fatalf("Failed to seed material: %v", err)
	}
	return m
}

// SeedBatch creates a production batch row for tests
func SeedBatch(t *testing.T, db *gorm.DB, id, productID string) *entity.ProductionBatch {
	t.Helper()
	b := &entity.ProductionBatch{
		ID:              id,
		BatchNumber:     "BN-" + id,
		ProductID:       productID,
		PlannedQuantity: 10,
		Status:          entity.BatchStatusInProgress,
	}
	b.PlanningStage = entity.BatchStage{Status: entity.StageStatusCompleted}
	b.MachineStage = entity.BatchStage{Status: entity.StageStatusInProgress}
	if err := db.Create(b).Error; err != nil {
		t.Fatalf("Failed to seed batch: %v", err)
	}
	return b
}

// SeedProductUnits creates available product units for tests
func SeedProductUnits(t *testing.T, db *gorm.DB, materialID string, count int) []entity.ProductUnit {
	t.Helper()
	units := make([]entity.ProductUnit, 0, count)
	for i := 0; i < count; i++ {
		units = append(units, entity.ProductUnit{
			ID:         fmt.Sprintf("PU-%s-%03d", materialID, i+1),
			MaterialID: materialID,
			SerialNo:   fmt.Sprintf("SN-%s-%03d", materialID, i+1),
			Status:     entity.UnitStatusAvailable,
		})
	}
	if err := db.Create(&units).Error; err != nil {
		t.Fatalf("Failed to seed product units: %v", err)
	}
	return units
}

// SeedLot creates a raw material lot for tests
func SeedLot(t *testing.T, db *gorm.DB, id, materialID string, qty float64, receivedAt time.Time) *entity.RawMaterialLot {
	t.Helper()
	lot := &entity.RawMaterialLot{
		ID:         id,
		MaterialID: materialID,
		BatchNo:    "BN-" + id,
		Quantity:   qty,
		Unit:       "kg",
		Status:     entity.UnitStatusAvailable,
		ReceivedAt: receivedAt,
	}
	if err := db.Create(lot).Error; err != nil {
		t.Fatalf("Failed to seed lot: %v", err)
	}
	return lot
}
