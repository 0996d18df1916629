package gorm

import (
	"context"

	"cloudtune-ops/internal/models"
	"cloudtune-ops/internal/service"

	"gorm.io/gorm"
)

// GormDeployRepository - это реализация DeployRepository с использованием GORM.
type GormDeployRepository struct {
	db *gorm.DB
}

// NewGormDeployRepository создает новый экземпляр репозитория истории деплоев.
func NewGormDeployRepository(db *gorm.DB) (service.DeployRepository, error) {
	return &GormDeployRepository{db: db}, nil
}

func (r *GormDeployRepository) Create(ctx context.Context, record *models.DeployRecord) error {
	return r.db.WithContext(ctx).Create(record).Error
}

// ListRecent возвращает последние деплои, новые первыми.
func (r *GormDeployRepository) ListRecent(ctx context.Context, limit int) ([]*models.DeployRecord, error) {
	var records []*models.DeployRecord
	err := r.db.WithContext(ctx).
		Order("started_at desc").
		Order("id desc").
		Limit(limit).
		Find(&records).Error
	return records, err
}
