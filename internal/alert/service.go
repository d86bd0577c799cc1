package alert

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"parking-service/internal/domain/parking"
	"parking-service/internal/repository"
)

var ErrAlreadyResolved = errors.New("alert already resolved")

// severityByType assigns a default severity when the caller supplies none.
var severityByType = map[parking.AlertType]parking.AlertSeverity{
	parking.AlertBlacklist:      parking.SeverityCritical,
	parking.AlertDuplicatePlate: parking.SeverityHigh,
	parking.AlertFraud:          parking.SeverityHigh,
	parking.AlertOverstay:       parking.SeverityMedium,
	parking.AlertPlateMismatch:  parking.SeverityMedium,
	parking.AlertRevenueAnomaly: parking.SeverityMedium,
	parking.AlertLowConfidence:  parking.SeverityLow,
}

type Service struct {
	repo *repository.AlertRepository
	log  zerolog.Logger
}

func NewService(repo *repository.AlertRepository, log zerolog.Logger) *Service {
	return &Service{repo: repo, log: log}
}

func (s *Service) Create(ctx context.Context, alertType parking.AlertType, message, plate, gateID string) (*repository.Alert, error) {
	severity, ok := severityByType[alertType]
	if !ok {
		severity = parking.SeverityMedium
	}

	record := &repository.Alert{
		AlertType: alertType,
		Severity:  severity,
		Message:   message,
		CreatedAt: time.Now(),
	}
	if plate != "" {
		record.Plate = &plate
	}
	if gateID != "" {
		record.GateID = &gateID
	}

	if err := s.repo.Create(ctx, record); err != nil {
		return nil, fmt.Errorf("create alert: %w", err)
	}

	s.log.Info().
		Str("alert_id", record.ID).
		Str("type", string(alertType)).
		Str("severity", string(severity)).
		Str("plate", plate).
		Str("gate_id", gateID).
		Msg("alert created")

	return record, nil
}

func (s *Service) Resolve(ctx context.Context, id, resolvedBy string) (*repository.Alert, error) {
	record, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if record.Resolved {
		return nil, fmt.Errorf("%w: %s", ErrAlreadyResolved, id)
	}

	now := time.Now()
	record.Resolved = true
	record.ResolvedBy = &resolvedBy
	record.ResolvedAt = &now
	if err := s.repo.Update(ctx, record); err != nil {
		return nil, fmt.Errorf("resolve alert: %w", err)
	}
	return record, nil
}

func (s *Service) List(ctx context.Context, resolved *bool, limit int) ([]repository.Alert, error) {
	return s.repo.List(ctx, resolved, limit)
}
