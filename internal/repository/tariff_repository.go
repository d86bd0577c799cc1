package repository

import (
	"context"
	"encoding/json"
	"time"

	"gorm.io/gorm"

	"parking-service/internal/domain/parking"
)

type TariffRepository struct {
	db *gorm.DB
}

func NewTariffRepository(db *gorm.DB) *TariffRepository {
	return &TariffRepository{db: db}
}

func (r *TariffRepository) WithTx(tx *gorm.DB) *TariffRepository {
	return &TariffRepository{db: tx}
}

// FindActive returns active tariffs whose validity window covers now,
// oldest first. Vehicle-type matching happens in Go because the set is a
// JSON column and selection order must stay deterministic.
func (r *TariffRepository) FindActive(ctx context.Context, now time.Time) ([]Tariff, error) {
	var tariffs []Tariff
	err := r.db.WithContext(ctx).
		Where("active = ?", true).
		Where("valid_from IS NULL OR valid_from <= ?", now).
		Where("valid_until IS NULL OR valid_until >= ?", now).
		Order("created_at ASC").
		Find(&tariffs).Error
	return tariffs, err
}

// AppliesTo reports whether the tariff's vehicle-type set contains vt.
func (t *Tariff) AppliesTo(vt parking.VehicleType) bool {
	var types []parking.VehicleType
	if err := json.Unmarshal(t.VehicleTypes, &types); err != nil {
		return false
	}
	for _, candidate := range types {
		if candidate == vt {
			return true
		}
	}
	return false
}

func (r *TariffRepository) FindByID(ctx context.Context, id string) (*Tariff, error) {
	var tariff Tariff
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&tariff).Error; err != nil {
		return nil, err
	}
	return &tariff, nil
}

func (r *TariffRepository) Create(ctx context.Context, tariff *Tariff) error {
	return r.db.WithContext(ctx).Create(tariff).Error
}

func (r *TariffRepository) Update(ctx context.Context, tariff *Tariff) error {
	return r.db.WithContext(ctx).Save(tariff).Error
}

func (r *TariffRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Where("id = ?", id).Delete(&Tariff{}).Error
}

func (r *TariffRepository) List(ctx context.Context) ([]Tariff, error) {
	var tariffs []Tariff
	err := r.db.WithContext(ctx).Order("created_at ASC").Find(&tariffs).Error
	return tariffs, err
}
