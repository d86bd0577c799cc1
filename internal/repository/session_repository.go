package repository

import (
	"context"

	"gorm.io/gorm"

	"parking-service/internal/domain/parking"
)

type SessionRepository struct {
	db *gorm.DB
}

func NewSessionRepository(db *gorm.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

func (r *SessionRepository) WithTx(tx *gorm.DB) *SessionRepository {
	return &SessionRepository{db: tx}
}

func (r *SessionRepository) Create(ctx context.Context, session *Session) error {
	return r.db.WithContext(ctx).Create(session).Error
}

func (r *SessionRepository) Update(ctx context.Context, session *Session) error {
	return r.db.WithContext(ctx).Save(session).Error
}

func (r *SessionRepository) FindByID(ctx context.Context, id string) (*Session, error) {
	var session Session
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&session).Error; err != nil {
		return nil, err
	}
	return &session, nil
}

// FindOpenByPlate returns the most recently opened session with no exit
// time for the plate, or nil when the plate has no open session.
func (r *SessionRepository) FindOpenByPlate(ctx context.Context, plate string) (*Session, error) {
	var session Session
	err := r.db.WithContext(ctx).
		Where("plate = ? AND exit_time IS NULL", plate).
		Order("entry_time DESC").
		First(&session).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &session, nil
}

func (r *SessionRepository) ListOpen(ctx context.Context) ([]Session, error) {
	var sessions []Session
	err := r.db.WithContext(ctx).
		Where("exit_time IS NULL").
		Order("entry_time DESC").
		Find(&sessions).Error
	return sessions, err
}

func (r *SessionRepository) List(ctx context.Context, plate string, limit int) ([]Session, error) {
	query := r.db.WithContext(ctx).Model(&Session{})
	if plate != "" {
		query = query.Where("plate LIKE ?", "%"+plate+"%")
	}
	if limit <= 0 || limit > 500 {
		limit = 500
	}
	var sessions []Session
	err := query.Order("entry_time DESC").Limit(limit).Find(&sessions).Error
	return sessions, err
}

func (r *SessionRepository) UpdatePaymentStatus(ctx context.Context, id string, status parking.PaymentStatus) error {
	return r.db.WithContext(ctx).
		Model(&Session{}).
		Where("id = ?", id).
		Update("payment_status", status).Error
}
