// Package session owns the parking-session state machine:
// absent -> open -> closed, closed being terminal.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"parking-service/internal/billing"
	"parking-service/internal/domain/parking"
	"parking-service/internal/repository"
	"parking-service/internal/rules"
)

var (
	// ErrOpenSessionExists is returned when a plate already has an open
	// session; the partial unique index enforces this even under
	// concurrent opens.
	ErrOpenSessionExists = errors.New("open session already exists for plate")
	// ErrSessionClosed is returned when closing an already-closed session.
	// A closed session's financials are immutable.
	ErrSessionClosed = errors.New("session already closed")
)

type Manager struct {
	sessions *repository.SessionRepository
	vehicles *repository.VehicleRepository
	tariffs  *repository.TariffRepository
}

func NewManager(
	sessions *repository.SessionRepository,
	vehicles *repository.VehicleRepository,
	tariffs *repository.TariffRepository,
) *Manager {
	return &Manager{sessions: sessions, vehicles: vehicles, tariffs: tariffs}
}

// WithTx returns a copy whose persistence runs inside tx.
func (m *Manager) WithTx(tx *gorm.DB) *Manager {
	return &Manager{
		sessions: m.sessions.WithTx(tx),
		vehicles: m.vehicles.WithTx(tx),
		tariffs:  m.tariffs.WithTx(tx),
	}
}

type OpenParams struct {
	Plate        string
	EntryTime    time.Time
	GateEntry    string
	VehicleID    *string
	EntryEventID *string
}

// Open creates an open session with payment pending. A second open for the
// same plate fails with ErrOpenSessionExists.
func (m *Manager) Open(ctx context.Context, params OpenParams) (*repository.Session, error) {
	session := &repository.Session{
		Plate:         params.Plate,
		VehicleID:     params.VehicleID,
		EntryEventID:  params.EntryEventID,
		EntryTime:     params.EntryTime,
		PaymentStatus: parking.PaymentPending,
	}
	if params.GateEntry != "" {
		session.GateEntry = &params.GateEntry
	}
	if err := m.sessions.Create(ctx, session); err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: %s", ErrOpenSessionExists, params.Plate)
		}
		return nil, fmt.Errorf("create session: %w", err)
	}
	return session, nil
}

// Close bills the stay and freezes the computation into tariff_snapshot.
// Payment status is untouched: billing does not imply payment.
func (m *Manager) Close(
	ctx context.Context,
	snap *rules.Snapshot,
	session *repository.Session,
	exitTime time.Time,
	gateExit string,
	exitEventID *string,
) (*repository.Session, error) {
	if session.Closed() {
		return nil, fmt.Errorf("%w: %s", ErrSessionClosed, session.ID)
	}
	if exitTime.IsZero() {
		exitTime = time.Now().UTC()
	}

	vehicleType := parking.TypeCar
	if session.VehicleID != nil {
		vehicle, err := m.vehicles.FindByID(ctx, *session.VehicleID)
		if err == nil && vehicle != nil {
			vehicleType = vehicle.VehicleType
		}
	}

	engine := billing.NewEngine(m.tariffs)
	result, err := engine.Calculate(ctx, snap, vehicleType, session.EntryTime, exitTime, nil)
	if err != nil {
		return nil, err
	}

	snapshot, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("encode tariff snapshot: %w", err)
	}

	session.ExitTime = &exitTime
	if gateExit != "" {
		session.GateExit = &gateExit
	}
	session.ExitEventID = exitEventID
	session.DurationMinutes = &result.DurationMinutes
	session.AmountDue = &result.Amount
	session.TariffSnapshot = datatypes.JSON(snapshot)
	if result.TariffID != "" {
		tariffID := result.TariffID
		session.TariffID = &tariffID
	}

	if err := m.sessions.Update(ctx, session); err != nil {
		return nil, fmt.Errorf("close session: %w", err)
	}
	return session, nil
}

// GetOpen returns the most recently opened session without an exit time,
// or nil when the plate has none.
func (m *Manager) GetOpen(ctx context.Context, plate string) (*repository.Session, error) {
	return m.sessions.FindOpenByPlate(ctx, plate)
}

// SetPaymentStatus is the reconciliation transition; it is deliberately
// separate from Close.
func (m *Manager) SetPaymentStatus(ctx context.Context, id string, status parking.PaymentStatus) error {
	if !status.Valid() {
		return fmt.Errorf("invalid payment status %q", status)
	}
	return m.sessions.UpdatePaymentStatus(ctx, id, status)
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLSTATE 23505") ||
		strings.Contains(msg, "duplicate key") ||
		strings.Contains(msg, "UNIQUE constraint failed")
}
