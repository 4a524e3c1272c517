package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/DnyaneshwarWantace/Rajdhani-Backend-sub000/internal/config"
	"github.com/DnyaneshwarWantace/Rajdhani-Backend-sub000/internal/entity"
	"github.com/DnyaneshwarWantace/Rajdhani-Backend-sub000/internal/handler"
	"github.com/DnyaneshwarWantace/Rajdhani-Backend-sub000/internal/middleware"
	"github.com/DnyaneshwarWantace/Rajdhani-Backend-sub000/internal/repository"
	"github.com/DnyaneshwarWantace/Rajdhani-Backend-sub000/internal/service"
	"github.com/bsm/redislock"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	// .env 可选，容器里直接用环境变量
	if err := godotenv.Load(); err != nil {
		log.Printf("No .env file loaded: %v", err)
	}

	// 加载配置
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 初始化日志
	zapLogger, err := initLogger(cfg.Log)
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	defer zapLogger.Sync()

	zapLogger.Info("Starting rajdhani manufacturing service",
		zap.String("version", Version),
		zap.String("build_time", BuildTime),
	)

	// 初始化数据库
	db, err := initDatabase(cfg.Database)
	if err != nil {
		zapLogger.Fatal("Failed to connect to database", zap.Error(err))
	}

	if err := entity.AutoMigrate(db); err != nil {
		zapLogger.Fatal("Failed to migrate database", zap.Error(err))
	}

	// 初始化Redis与分布式锁
	rdb := initRedis(cfg.Redis)
	var locker *redislock.Client
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		zapLogger.Warn("Redis unavailable, cross-instance locking disabled", zap.Error(err))
	} else {
		locker = redislock.New(rdb)
	}

	// 初始化对象存储
	minioClient := initMinIO(cfg.MinIO, zapLogger)

	// 初始化依赖
	repos := repository.NewRepositories(db)
	services := service.NewServices(repos, db, locker, minioClient, cfg.MinIO.Bucket, zapLogger)
	handlers := handler.NewHandlers(services)

	// 设置Gin模式
	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	// 创建路由
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(gzip.Gzip(gzip.DefaultCompression))
	router.Use(middleware.Logger(zapLogger))
	router.Use(middleware.CORS())
	router.Use(middleware.RequestID())

	// 注册路由
	registerRoutes(router, handlers, cfg)

	// 创建HTTP服务器
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// 启动服务器
	go func() {
		zapLogger.Info("Server starting", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLogger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// 优雅关闭
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zapLogger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		zapLogger.Error("Server forced to shutdown", zap.Error(err))
	}

	zapLogger.Info("Server exited")
}

func initLogger(cfg config.LogConfig) (*zap.Logger, error) {
	var zapCfg zap.Config

	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
	}

	switch cfg.Level {
	case "debug":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	case "info":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	case "warn":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	case "error":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.ErrorLevel)
	}

	return zapCfg.Build()
}

func initDatabase(cfg config.DatabaseConfig) (*gorm.DB, error) {
	gormConfig := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	}

	db, err := gorm.Open(postgres.Open(cfg.DSN()), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}

	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	return db, nil
}

func initRedis(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})
}

func initMinIO(cfg config.MinIOConfig, zapLogger *zap.Logger) *minio.Client {
	if cfg.Endpoint == "" {
		zapLogger.Warn("MinIO not configured, image upload disabled")
		return nil
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		zapLogger.Warn("MinIO init failed, image upload disabled", zap.Error(err))
		return nil
	}
	return client
}

func registerRoutes(r *gin.Engine, h *handler.Handlers, cfg *config.Config) {
	// 健康检查
	r.GET("/health/live", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/health/ready", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// 版本信息
	r.GET("/version", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"version":    Version,
			"build_time": BuildTime,
		})
	})

	// API v1
	v1 := r.Group("/api/v1")

	authorized := v1.Group("")
	authorized.Use(middleware.JWTAuth(cfg.JWT.Secret))
	{
		// 物料与库存
		materials := authorized.Group("/materials")
		{
			materials.GET("", h.Material.List)
			materials.POST("", h.Material.Create)
			materials.GET("/:id", h.Material.Get)
			materials.PUT("/:id", h.Material.Update)
			materials.DELETE("/:id", h.Material.Delete)
			materials.POST("/:id/image", h.Material.UploadImage)
			materials.POST("/:id/stock/adjust", h.Material.AdjustStock)

			// 单件/批次
			materials.GET("/:id/units", h.Material.ListUnits)
			materials.POST("/:id/units", h.Material.CreateUnits)
			materials.GET("/:id/units/counts", h.Material.UnitCounts)
			materials.GET("/:id/lots", h.Material.ListLots)
			materials.POST("/:id/lots", h.Material.ReceiveLot)
		}

		// 消耗记录
		consumption := authorized.Group("/consumption")
		{
			consumption.GET("", h.Consumption.List)
			consumption.POST("", h.Consumption.Record)
			consumption.GET("/:id", h.Consumption.Get)
			consumption.PUT("/:id/status", h.Consumption.UpdateStatus)
			consumption.POST("/:id/cancel", h.Consumption.Cancel)
			consumption.GET("/batch/:batchId/summary", h.Consumption.BatchSummary)
		}

		// 生产批次
		batches := authorized.Group("/production-batches")
		{
			batches.GET("", h.Batch.List)
			batches.POST("", h.Batch.Create)
			batches.GET("/:id", h.Batch.Get)
			batches.GET("/:id/stages", h.Batch.Stages)
			batches.POST("/:id/stages/infer", h.Batch.InferStages)
			batches.POST("/:id/stages/wastage/complete", h.Batch.CompleteWastage)
			batches.POST("/:id/stages/final/complete", h.Batch.CompleteFinal)

			// 工序步骤
			batches.GET("/:id/flow-steps", h.Batch.ListFlowSteps)
			batches.POST("/:id/flow-steps", h.Batch.CreateFlowStep)
			batches.PUT("/:id/flow-steps/:stepId/status", h.Batch.UpdateFlowStep)

			// 报表
			batches.GET("/:id/consumption/export", h.Report.ExportBatchConsumption)
		}

		// 废料
		waste := authorized.Group("/waste")
		{
			waste.GET("", h.Waste.List)
			waste.POST("", h.Waste.Create)
			waste.GET("/:id", h.Waste.Get)
			waste.POST("/:id/reuse", h.Waste.Reuse)
			waste.POST("/:id/dispose", h.Waste.Dispose)
		}

		// 管理端：对账与修复
		admin := authorized.Group("/admin")
		admin.Use(middleware.RequireRole("mfg_admin"))
		{
			admin.POST("/reconcile/materials/:id", h.Reconcile.ReconcileMaterial)
			admin.POST("/reconcile/materials", h.Reconcile.ReconcileAll)
			admin.POST("/reconcile/unit-links/backfill", h.Reconcile.BackfillUnitLinks)
			admin.POST("/reconcile/batch-stages/fix", h.Reconcile.FixBatchStages)
		}
	}
}
