package gorm

import (
	"context"

	"cloudtune-ops/internal/models"
	"cloudtune-ops/internal/service"

	"gorm.io/gorm"
)

type GormAlertRepository struct {
	db *gorm.DB
}

func NewGormAlertRepository(db *gorm.DB) (service.AlertRepository, error) {
	return &GormAlertRepository{db: db}, nil
}

func (r *GormAlertRepository) Create(ctx context.Context, record *models.AlertRecord) error {
	return r.db.WithContext(ctx).Create(record).Error
}

func (r *GormAlertRepository) ListRecent(ctx context.Context, limit int) ([]*models.AlertRecord, error) {
	var records []*models.AlertRecord
	err := r.db.WithContext(ctx).Order("sent_at desc").Order("id desc").Limit(limit).Find(&records).Error
	return records, err
}
