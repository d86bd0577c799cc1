package repository

import (
	"context"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type RuleRepository struct {
	db *gorm.DB
}

func NewRuleRepository(db *gorm.DB) *RuleRepository {
	return &RuleRepository{db: db}
}

func (r *RuleRepository) WithTx(tx *gorm.DB) *RuleRepository {
	return &RuleRepository{db: tx}
}

func (r *RuleRepository) FindAll(ctx context.Context) ([]Rule, error) {
	var rules []Rule
	err := r.db.WithContext(ctx).Find(&rules).Error
	return rules, err
}

func (r *RuleRepository) FindByKey(ctx context.Context, key string) (*Rule, error) {
	var rule Rule
	err := r.db.WithContext(ctx).Where("key = ?", key).First(&rule).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rule, nil
}

// Set upserts the rule and appends the history record in one transaction.
// A reader never observes the value without its history entry or the
// history entry without the value.
func (r *RuleRepository) Set(ctx context.Context, key string, value datatypes.JSON, author string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing Rule
		err := tx.Where("key = ?", key).First(&existing).Error
		if err != nil && err != gorm.ErrRecordNotFound {
			return err
		}

		history := RuleHistory{
			RuleKey:   key,
			NewValue:  value,
			ChangedBy: &author,
			ChangedAt: time.Now(),
		}
		if err == nil {
			old := existing.Value
			history.OldValue = old
		}
		if err := tx.Create(&history).Error; err != nil {
			return err
		}

		if err == gorm.ErrRecordNotFound {
			rule := Rule{
				Key:       key,
				Value:     value,
				UpdatedBy: &author,
				UpdatedAt: time.Now(),
			}
			return tx.Create(&rule).Error
		}

		existing.Value = value
		existing.UpdatedBy = &author
		existing.UpdatedAt = time.Now()
		return tx.Save(&existing).Error
	})
}

func (r *RuleRepository) HistoryForKey(ctx context.Context, key string) ([]RuleHistory, error) {
	var history []RuleHistory
	err := r.db.WithContext(ctx).
		Where("rule_key = ?", key).
		Order("changed_at DESC").
		Find(&history).Error
	return history, err
}
