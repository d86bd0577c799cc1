package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
)

type EventRepository struct {
	db *gorm.DB
}

func NewEventRepository(db *gorm.DB) *EventRepository {
	return &EventRepository{db: db}
}

func (r *EventRepository) WithTx(tx *gorm.DB) *EventRepository {
	return &EventRepository{db: tx}
}

// Events and decisions are append-only; no update methods exist on purpose.

func (r *EventRepository) CreateEvent(ctx context.Context, event *Event) error {
	return r.db.WithContext(ctx).Create(event).Error
}

func (r *EventRepository) CreateDecision(ctx context.Context, decision *Decision) error {
	return r.db.WithContext(ctx).Create(decision).Error
}

func (r *EventRepository) FindEvents(ctx context.Context, plate *string, from, to *time.Time, limit, offset int) ([]Event, error) {
	query := r.db.WithContext(ctx).Model(&Event{})

	if plate != nil {
		query = query.Where("plate = ?", *plate)
	}
	if from != nil {
		query = query.Where("timestamp >= ?", *from)
	}
	if to != nil {
		query = query.Where("timestamp <= ?", *to)
	}

	if limit <= 0 {
		limit = 50
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}

	var events []Event
	err := query.Order("timestamp DESC").Limit(limit).Offset(offset).Find(&events).Error
	return events, err
}

func (r *EventRepository) FindDecisions(ctx context.Context, plate *string, limit, offset int) ([]Decision, error) {
	query := r.db.WithContext(ctx).Model(&Decision{})

	if plate != nil {
		query = query.Where("plate = ?", *plate)
	}

	if limit <= 0 {
		limit = 50
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}

	var decisions []Decision
	err := query.Order("timestamp DESC").Limit(limit).Offset(offset).Find(&decisions).Error
	return decisions, err
}

func (r *EventRepository) FindDecisionByEventID(ctx context.Context, eventID string) (*Decision, error) {
	var decision Decision
	err := r.db.WithContext(ctx).Where("event_id = ?", eventID).First(&decision).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &decision, nil
}
