package service

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"parking-service/internal/access"
	"parking-service/internal/alert"
	"parking-service/internal/domain/parking"
	"parking-service/internal/metrics"
	"parking-service/internal/repository"
	"parking-service/internal/rules"
	"parking-service/internal/session"
	"parking-service/internal/utils"
)

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrNotFound     = errors.New("not found")
)

// SightingService runs the per-sighting pipeline: rule snapshot, identity
// lookup, access decision, event + decision write and the session step, all
// inside one transaction. Alert creation happens after commit and never
// affects the decision or its audit snapshot.
type SightingService struct {
	db          *gorm.DB
	vehicles    *repository.VehicleRepository
	events      *repository.EventRepository
	ruleRepo    *repository.RuleRepository
	sessions    *session.Manager
	alerts      *alert.Service
	snapshotDir string
	log         zerolog.Logger
}

func NewSightingService(
	db *gorm.DB,
	vehicles *repository.VehicleRepository,
	events *repository.EventRepository,
	ruleRepo *repository.RuleRepository,
	sessions *session.Manager,
	alerts *alert.Service,
	snapshotDir string,
	log zerolog.Logger,
) *SightingService {
	return &SightingService{
		db:          db,
		vehicles:    vehicles,
		events:      events,
		ruleRepo:    ruleRepo,
		sessions:    sessions,
		alerts:      alerts,
		snapshotDir: snapshotDir,
		log:         log,
	}
}

type pendingAlert struct {
	alertType parking.AlertType
	message   string
}

func (s *SightingService) ProcessSighting(ctx context.Context, payload parking.SightingPayload) (*parking.SightingResult, error) {
	if payload.Plate == "" {
		return nil, fmt.Errorf("%w: plate is required", ErrInvalidInput)
	}
	if payload.GateID == "" {
		return nil, fmt.Errorf("%w: gate_id is required", ErrInvalidInput)
	}
	if payload.EventType == "" {
		payload.EventType = parking.EventEntry
	}
	if !payload.EventType.Valid() {
		return nil, fmt.Errorf("%w: unknown event_type %q", ErrInvalidInput, payload.EventType)
	}
	if payload.VehicleType == "" {
		payload.VehicleType = parking.TypeCar
	}
	if !payload.VehicleType.Valid() {
		return nil, fmt.Errorf("%w: unknown vehicle_type %q", ErrInvalidInput, payload.VehicleType)
	}
	now := payload.EventTime
	if now.IsZero() {
		now = time.Now().UTC()
	}

	normalized := utils.NormalizePlate(payload.Plate)
	if normalized == "" {
		return nil, fmt.Errorf("%w: plate cannot be empty after normalization", ErrInvalidInput)
	}

	var imageURL *string
	if payload.ImageBase64 != "" {
		if url, err := s.saveSnapshot(payload.ImageBase64); err == nil {
			imageURL = &url
		} else {
			s.log.Warn().Err(err).Str("plate", normalized).Msg("failed to save snapshot image")
		}
	}

	var (
		result        parking.DecisionResult
		eventID       string
		sessionID     string
		pendingAlerts []pendingAlert
	)

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		snap, err := rules.NewStore(s.ruleRepo.WithTx(tx)).Snapshot(ctx)
		if err != nil {
			return err
		}

		vehicle, err := s.vehicles.WithTx(tx).FindByNormalizedPlate(ctx, normalized)
		if err != nil {
			return fmt.Errorf("lookup vehicle: %w", err)
		}

		var identity *parking.Identity
		if vehicle != nil {
			identity = vehicle.Identity()
		}
		result = access.Decide(normalized, identity, snap, now)

		event := &repository.Event{
			Plate:     normalized,
			GateID:    payload.GateID,
			EventType: payload.EventType,
			Decision:  &result.Outcome,
			ImageURL:  imageURL,
			Timestamp: now,
		}
		if vehicle != nil {
			event.VehicleID = &vehicle.ID
		}
		if payload.CameraID != "" {
			cameraID := payload.CameraID
			event.CameraID = &cameraID
		}
		if payload.Confidence != 0 {
			confidence := payload.Confidence
			event.OCRConfidence = &confidence
		}
		rawPlate := payload.RawPlate
		if rawPlate == "" {
			rawPlate = payload.Plate
		}
		event.RawPlate = &rawPlate
		if result.RuleRef != "" {
			ruleRef := result.RuleRef
			event.RuleApplied = &ruleRef
		}

		txEvents := s.events.WithTx(tx)
		if err := txEvents.CreateEvent(ctx, event); err != nil {
			return fmt.Errorf("create event: %w", err)
		}
		eventID = event.ID

		ruleSnapshot, err := json.Marshal(result)
		if err != nil {
			return fmt.Errorf("encode rule snapshot: %w", err)
		}
		facts, err := json.Marshal(result.Facts)
		if err != nil {
			return fmt.Errorf("encode facts: %w", err)
		}
		ruleRef := result.RuleRef
		decision := &repository.Decision{
			EventID:      &event.ID,
			Plate:        normalized,
			Outcome:      result.Outcome,
			ReasonCode:   result.ReasonCode,
			RuleRef:      &ruleRef,
			RuleSnapshot: datatypes.JSON(ruleSnapshot),
			Facts:        datatypes.JSON(facts),
			GateAction:   result.GateAction,
			Timestamp:    now,
		}
		if err := txEvents.CreateDecision(ctx, decision); err != nil {
			return fmt.Errorf("create decision: %w", err)
		}

		if result.Outcome == parking.OutcomeAllow {
			sessionID, err = s.sessionStep(ctx, tx, snap, payload, vehicle, normalized, event.ID, now)
			if err != nil {
				return err
			}
		}

		if result.ReasonCode == parking.ReasonBlacklist && snap.GetBool("access.blacklist_auto_alert", true) {
			pendingAlerts = append(pendingAlerts, pendingAlert{
				alertType: parking.AlertBlacklist,
				message:   fmt.Sprintf("Blacklisted vehicle %s detected at gate %s", normalized, payload.GateID),
			})
		}
		threshold := snap.GetFloat("access.low_confidence_threshold", 0.70)
		if payload.Confidence > 0 && payload.Confidence < threshold {
			pendingAlerts = append(pendingAlerts, pendingAlert{
				alertType: parking.AlertLowConfidence,
				message:   fmt.Sprintf("Low OCR confidence %.0f%% on plate %s", payload.Confidence*100, payload.Plate),
			})
		}
		return nil
	})
	if err != nil {
		s.log.Error().
			Err(err).
			Str("plate", normalized).
			Str("gate_id", payload.GateID).
			Msg("failed to process sighting")
		return nil, err
	}

	metrics.DecisionsTotal.WithLabelValues(string(result.Outcome), result.ReasonCode).Inc()

	s.log.Info().
		Str("event_id", eventID).
		Str("plate", normalized).
		Str("raw_plate", payload.Plate).
		Str("gate_id", payload.GateID).
		Str("decision", string(result.Outcome)).
		Str("reason", result.ReasonCode).
		Str("session_id", sessionID).
		Time("event_time", now).
		Msg("processed plate sighting")

	// Alerts are created after commit, outside the sighting transaction.
	// They are notification only: a failure is logged, never surfaced to
	// the gate, and cannot change the decision or its audit snapshot.
	for _, pending := range pendingAlerts {
		s.createAlert(ctx, pending, normalized, payload.GateID)
	}

	return &parking.SightingResult{
		Decision:   result.Outcome,
		ReasonCode: result.ReasonCode,
		GateAction: result.GateAction,
		SessionID:  sessionID,
		EventID:    eventID,
	}, nil
}

func (s *SightingService) sessionStep(
	ctx context.Context,
	tx *gorm.DB,
	snap *rules.Snapshot,
	payload parking.SightingPayload,
	vehicle *repository.Vehicle,
	normalized, eventID string,
	now time.Time,
) (string, error) {
	manager := s.sessions.WithTx(tx)

	switch payload.EventType {
	case parking.EventEntry:
		if !snap.GetBool("access.visitor_auto_session", true) {
			return "", nil
		}
		existing, err := manager.GetOpen(ctx, normalized)
		if err != nil {
			return "", fmt.Errorf("lookup open session: %w", err)
		}
		if existing != nil {
			// Repeat entry without an exit keeps the original session.
			return existing.ID, nil
		}
		params := session.OpenParams{
			Plate:        normalized,
			EntryTime:    now,
			GateEntry:    payload.GateID,
			EntryEventID: &eventID,
		}
		if vehicle != nil {
			params.VehicleID = &vehicle.ID
		}
		opened, err := manager.Open(ctx, params)
		if err != nil {
			if errors.Is(err, session.ErrOpenSessionExists) {
				// Lost a race with a concurrent entry; the winner's session stands.
				winner, lookupErr := manager.GetOpen(ctx, normalized)
				if lookupErr == nil && winner != nil {
					return winner.ID, nil
				}
			}
			return "", err
		}
		metrics.SessionsOpenedTotal.Inc()
		return opened.ID, nil

	case parking.EventExit:
		open, err := manager.GetOpen(ctx, normalized)
		if err != nil {
			return "", fmt.Errorf("lookup open session: %w", err)
		}
		if open == nil {
			return "", nil
		}
		closed, err := manager.Close(ctx, snap, open, now, payload.GateID, &eventID)
		if err != nil {
			return "", err
		}
		metrics.SessionsClosedTotal.Inc()
		return closed.ID, nil
	}

	return "", nil
}

func (s *SightingService) createAlert(ctx context.Context, pending pendingAlert, plate, gateID string) {
	if _, err := s.alerts.Create(ctx, pending.alertType, pending.message, plate, gateID); err != nil {
		s.log.Error().
			Err(err).
			Str("type", string(pending.alertType)).
			Str("plate", plate).
			Msg("failed to create alert")
		return
	}
	metrics.AlertsTotal.WithLabelValues(string(pending.alertType)).Inc()
}

func (s *SightingService) saveSnapshot(imageBase64 string) (string, error) {
	data, err := base64.StdEncoding.DecodeString(imageBase64)
	if err != nil {
		return "", fmt.Errorf("decode snapshot: %w", err)
	}
	if err := os.MkdirAll(s.snapshotDir, 0o755); err != nil {
		return "", err
	}
	filename := uuid.NewString() + ".jpg"
	if err := os.WriteFile(filepath.Join(s.snapshotDir, filename), data, 0o644); err != nil {
		return "", err
	}
	return "/snapshots/" + filename, nil
}

// FindEvents lists persisted sightings with optional plate and time filters.
func (s *SightingService) FindEvents(ctx context.Context, plateQuery *string, from, to *string, limit, offset int) ([]repository.Event, error) {
	var normalizedPlate *string
	if plateQuery != nil {
		normalized := utils.NormalizePlate(*plateQuery)
		if normalized != "" {
			normalizedPlate = &normalized
		}
	}

	var fromTime, toTime *time.Time
	if from != nil && *from != "" {
		t, err := time.Parse(time.RFC3339, *from)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid from time format", ErrInvalidInput)
		}
		fromTime = &t
	}
	if to != nil && *to != "" {
		t, err := time.Parse(time.RFC3339, *to)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid to time format", ErrInvalidInput)
		}
		toTime = &t
	}

	return s.events.FindEvents(ctx, normalizedPlate, fromTime, toTime, limit, offset)
}

// FindDecisions lists the audit trail, newest first.
func (s *SightingService) FindDecisions(ctx context.Context, plateQuery *string, limit, offset int) ([]repository.Decision, error) {
	var normalizedPlate *string
	if plateQuery != nil {
		normalized := utils.NormalizePlate(*plateQuery)
		if normalized != "" {
			normalizedPlate = &normalized
		}
	}
	return s.events.FindDecisions(ctx, normalizedPlate, limit, offset)
}
