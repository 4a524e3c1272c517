package main

import (
	"flag"
	"fmt"
	"log"

	"github.com/DnyaneshwarWantace/Rajdhani-Backend-sub000/internal/config"
	"github.com/DnyaneshwarWantace/Rajdhani-Backend-sub000/internal/repository"
	"github.com/DnyaneshwarWantace/Rajdhani-Backend-sub000/internal/service"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// 离线对账工具：全量重算库存漂移、回填历史单件关联、修复批次阶段。
// 与在线服务共用同一套服务层，适合定时任务或手工运维执行。
func main() {
	var (
		materialID = flag.String("material", "", "只对账指定物料，空则全量")
		backfill   = flag.Bool("backfill", false, "回填历史消耗记录的单件关联")
		fixStages  = flag.Bool("fix-stages", false, "修复批次阶段")
	)
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		log.Printf("No .env file loaded: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	zapLogger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	defer zapLogger.Sync()

	db, err := gorm.Open(postgres.Open(cfg.Database.DSN()), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		zapLogger.Fatal("Failed to connect to database", zap.Error(err))
	}

	repos := repository.NewRepositories(db)
	services := service.NewServices(repos, db, nil, nil, "", zapLogger)

	if *materialID != "" {
		drift, err := services.Reconcile.ReconcileMaterialStock(*materialID)
		if err != nil {
			zapLogger.Fatal("Reconcile failed", zap.String("material_id", *materialID), zap.Error(err))
		}
		fmt.Printf("material %s: %.4f -> %.4f (drifted=%v)\n",
			drift.MaterialID, drift.Before, drift.After, drift.Drifted)
	} else {
		drifts, err := services.Reconcile.ReconcileAll()
		if err != nil {
			zapLogger.Fatal("Reconcile failed", zap.Error(err))
		}
		drifted := 0
		for _, d := range drifts {
			if d.Drifted {
				drifted++
				fmt.Printf("material %s: %.4f -> %.4f\n", d.MaterialID, d.Before, d.After)
			}
		}
		fmt.Printf("reconciled %d materials, %d drifted\n", len(drifts), drifted)
	}

	if *backfill {
		result, err := services.Reconcile.BackfillConsumptionUnitLinks()
		if err != nil {
			zapLogger.Fatal("Backfill failed", zap.Error(err))
		}
		fmt.Printf("backfill: scanned=%d attached=%d ambiguous=%d no_match=%d\n",
			result.Scanned, result.Attached, result.Ambiguous, result.NoMatch)
	}

	if *fixStages {
		fixed, err := services.Stage.FixBatchStages()
		if err != nil {
			zapLogger.Fatal("Fix stages failed", zap.Error(err))
		}
		fmt.Printf("batch stages fixed: %d\n", fixed)
	}
}
