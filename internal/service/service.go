package service

import (
	"github.com/DnyaneshwarWantace/Rajdhani-Backend-sub000/internal/repository"
	"github.com/bsm/redislock"
	"github.com/minio/minio-go/v7"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Services 业务服务集合
type Services struct {
	Material    *MaterialService
	Stock       *StockService
	Unit        *UnitService
	Consumption *ConsumptionService
	Stage       *StageService
	Waste       *WasteService
	Reconcile   *ReconcileService
	Report      *ReportService
}

// NewServices 按依赖顺序装配服务。locker 与 minioClient 允许为 nil，
// 对应的能力（跨实例互斥、图片上传）降级为本地或跳过。
func NewServices(
	repos *repository.Repositories,
	db *gorm.DB,
	locker *redislock.Client,
	minioClient *minio.Client,
	bucketName string,
	logger *zap.Logger,
) *Services {
	stockSvc := NewStockService(repos.Material, repos.Unit, logger)
	unitSvc := NewUnitService(repos.Material, repos.Unit, stockSvc, db, logger)
	consumptionSvc := NewConsumptionService(repos, stockSvc, unitSvc, db, locker, logger)
	stageSvc := NewStageService(repos, stockSvc, unitSvc, db, logger)

	return &Services{
		Material:    NewMaterialService(repos.Material, minioClient, bucketName, logger),
		Stock:       stockSvc,
		Unit:        unitSvc,
		Consumption: consumptionSvc,
		Stage:       stageSvc,
		Waste:       NewWasteService(repos, stockSvc, db, logger),
		Reconcile:   NewReconcileService(repos, stockSvc, db, logger),
		Report:      NewReportService(consumptionSvc, stageSvc),
	}
}
