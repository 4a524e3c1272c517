package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/DnyaneshwarWantace/Rajdhani-Backend-sub000/internal/entity"
	"github.com/DnyaneshwarWantace/Rajdhani-Backend-sub000/internal/repository"
	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// MaterialService 物料主数据
type MaterialService struct {
	materialRepo *repository.MaterialRepository
	minioClient  *minio.Client // 可为nil（未配置对象存储时跳过上传）
	bucketName   string
	logger       *zap.Logger
}

func NewMaterialService(materialRepo *repository.MaterialRepository, minioClient *minio.Client, bucketName string, logger *zap.Logger) *MaterialService {
	return &MaterialService{
		materialRepo: materialRepo,
		minioClient:  minioClient,
		bucketName:   bucketName,
		logger:       logger,
	}
}

type CreateMaterialRequest struct {
	Code          string  `json:"code"`
	Name          string  `json:"name" binding:"required"`
	Type          string  `json:"type" binding:"required"`
	Unit          string  `json:"unit"`
	CurrentStock  float64 `json:"current_stock"`
	MinThreshold  float64 `json:"min_threshold"`
	MaxCapacity   float64 `json:"max_capacity"`
	UnitCost      float64 `json:"unit_cost"`
	UnitTracking  bool    `json:"unit_tracking"`
	Color         string  `json:"color"`
	Specification string  `json:"specification"`
	SupplierName  string  `json:"supplier_name"`
}

func (s *MaterialService) Create(req CreateMaterialRequest, userID string) (*entity.Material, error) {
	if req.Type != entity.MaterialTypeProduct && req.Type != entity.MaterialTypeRaw {
		return nil, validationf("无效的物料类型: %s", req.Type)
	}
	if req.CurrentStock < 0 {
		return nil, validationf("初始库存不能为负: %.4f", req.CurrentStock)
	}

	prefix := "RM"
	if req.Type == entity.MaterialTypeProduct {
		prefix = "PRD"
	}
	unit := req.Unit
	if unit == "" {
		unit = "pcs"
	}
	m := &entity.Material{
		ID:            prefix + "-" + uuid.New().String()[:12],
		Code:          req.Code,
		Name:          req.Name,
		Type:          req.Type,
		Unit:          unit,
		CurrentStock:  req.CurrentStock,
		MinThreshold:  req.MinThreshold,
		MaxCapacity:   req.MaxCapacity,
		UnitCost:      req.UnitCost,
		UnitTracking:  req.UnitTracking,
		Color:         req.Color,
		Specification: req.Specification,
		SupplierName:  req.SupplierName,
		CreatedBy:     userID,
	}
	if err := s.materialRepo.Create(m); err != nil {
		return nil, fmt.Errorf("创建物料失败: %w", err)
	}
	return m, nil
}

func (s *MaterialService) GetByID(id string) (*entity.Material, error) {
	m, err := s.materialRepo.GetByID(id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, notFoundf("物料不存在: %s", id)
	}
	return m, err
}

func (s *MaterialService) List(params repository.MaterialListParams) ([]entity.Material, int64, error) {
	return s.materialRepo.List(params)
}

type UpdateMaterialRequest struct {
	Name          *string  `json:"name"`
	Unit          *string  `json:"unit"`
	MinThreshold  *float64 `json:"min_threshold"`
	MaxCapacity   *float64 `json:"max_capacity"`
	UnitCost      *float64 `json:"unit_cost"`
	Color         *string  `json:"color"`
	Specification *string  `json:"specification"`
	SupplierName  *string  `json:"supplier_name"`
}

// Update 主数据更新；库存字段不在此处改，库存只走消耗/入库/对账路径
func (s *MaterialService) Update(id string, req UpdateMaterialRequest) (*entity.Material, error) {
	m, err := s.GetByID(id)
	if err != nil {
		return nil, err
	}
	if req.Name != nil {
		m.Name = *req.Name
	}
	if req.Unit != nil {
		m.Unit = *req.Unit
	}
	if req.MinThreshold != nil {
		m.MinThreshold = *req.MinThreshold
	}
	if req.MaxCapacity != nil {
		m.MaxCapacity = *req.MaxCapacity
	}
	if req.UnitCost != nil {
		m.UnitCost = *req.UnitCost
	}
	if req.Color != nil {
		m.Color = *req.Color
	}
	if req.Specification != nil {
		m.Specification = *req.Specification
	}
	if req.SupplierName != nil {
		m.SupplierName = *req.SupplierName
	}
	if err := s.materialRepo.Update(m); err != nil {
		return nil, err
	}
	return m, nil
}

func (s *MaterialService) Delete(id string) error {
	if _, err := s.GetByID(id); err != nil {
		return err
	}
	return s.materialRepo.Delete(id)
}

// UploadImage 物料图片上传到对象存储
func (s *MaterialService) UploadImage(ctx context.Context, id, filename string, reader io.Reader, size int64, contentType string) (*entity.Material, error) {
	m, err := s.GetByID(id)
	if err != nil {
		return nil, err
	}

	objectName := fmt.Sprintf("materials/%s/%d%s", m.ID, time.Now().UnixMilli(), filepath.Ext(filename))
	if s.minioClient != nil {
		_, err = s.minioClient.PutObject(ctx, s.bucketName, objectName, reader, size, minio.PutObjectOptions{
			ContentType: contentType,
		})
		if err != nil {
			return nil, fmt.Errorf("上传图片失败: %w", err)
		}
	}

	m.ImageURL = objectName
	if err := s.materialRepo.Update(m); err != nil {
		return nil, err
	}
	return m, nil
}
