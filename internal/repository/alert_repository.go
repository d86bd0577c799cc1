package repository

import (
	"context"

	"gorm.io/gorm"
)

type AlertRepository struct {
	db *gorm.DB
}

func NewAlertRepository(db *gorm.DB) *AlertRepository {
	return &AlertRepository{db: db}
}

func (r *AlertRepository) WithTx(tx *gorm.DB) *AlertRepository {
	return &AlertRepository{db: tx}
}

func (r *AlertRepository) Create(ctx context.Context, alert *Alert) error {
	return r.db.WithContext(ctx).Create(alert).Error
}

func (r *AlertRepository) FindByID(ctx context.Context, id string) (*Alert, error) {
	var alert Alert
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&alert).Error; err != nil {
		return nil, err
	}
	return &alert, nil
}

func (r *AlertRepository) Update(ctx context.Context, alert *Alert) error {
	return r.db.WithContext(ctx).Save(alert).Error
}

func (r *AlertRepository) List(ctx context.Context, resolved *bool, limit int) ([]Alert, error) {
	query := r.db.WithContext(ctx).Model(&Alert{})
	if resolved != nil {
		query = query.Where("resolved = ?", *resolved)
	}
	if limit <= 0 || limit > 200 {
		limit = 200
	}
	var alerts []Alert
	err := query.Order("created_at DESC").Limit(limit).Find(&alerts).Error
	return alerts, err
}
