package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"parking-service/internal/domain/parking"
	"parking-service/internal/repository"
	"parking-service/internal/utils"
)

var ErrPlateConflict = errors.New("plate already registered")

// VehicleService owns registered-vehicle identities. The normalized plate
// is the true identity key; creation rejects a duplicate before it can
// corrupt uniqueness.
type VehicleService struct {
	repo *repository.VehicleRepository
	log  zerolog.Logger
}

func NewVehicleService(repo *repository.VehicleRepository, log zerolog.Logger) *VehicleService {
	return &VehicleService{repo: repo, log: log}
}

type VehicleInput struct {
	Plate               string                  `json:"plate"`
	Category            parking.VehicleCategory `json:"category"`
	VehicleType         parking.VehicleType     `json:"vehicle_type"`
	OwnerName           string                  `json:"owner_name,omitempty"`
	OwnerPhone          string                  `json:"owner_phone,omitempty"`
	OwnerEmail          string                  `json:"owner_email,omitempty"`
	SubscriptionExpires *time.Time              `json:"subscription_expires,omitempty"`
	Notes               string                  `json:"notes,omitempty"`
}

func (s *VehicleService) Create(ctx context.Context, input VehicleInput) (*repository.Vehicle, error) {
	normalized, err := s.validate(&input)
	if err != nil {
		return nil, err
	}

	existing, err := s.repo.FindByNormalizedPlate(ctx, normalized)
	if err != nil {
		return nil, fmt.Errorf("lookup vehicle: %w", err)
	}
	if existing != nil {
		return nil, fmt.Errorf("%w: %s", ErrPlateConflict, normalized)
	}

	vehicle := &repository.Vehicle{
		Plate:               input.Plate,
		PlateNormalized:     normalized,
		Category:            input.Category,
		VehicleType:         input.VehicleType,
		SubscriptionExpires: input.SubscriptionExpires,
	}
	applyOptional(vehicle, input)

	if err := s.repo.Create(ctx, vehicle); err != nil {
		return nil, fmt.Errorf("create vehicle: %w", err)
	}

	s.log.Info().
		Str("vehicle_id", vehicle.ID).
		Str("plate", normalized).
		Str("category", string(vehicle.Category)).
		Msg("vehicle registered")
	return vehicle, nil
}

func (s *VehicleService) Update(ctx context.Context, id string, input VehicleInput) (*repository.Vehicle, error) {
	normalized, err := s.validate(&input)
	if err != nil {
		return nil, err
	}

	vehicle, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%w: vehicle %s", ErrNotFound, id)
	}

	if normalized != vehicle.PlateNormalized {
		existing, err := s.repo.FindByNormalizedPlate(ctx, normalized)
		if err != nil {
			return nil, fmt.Errorf("lookup vehicle: %w", err)
		}
		if existing != nil && existing.ID != id {
			return nil, fmt.Errorf("%w: %s", ErrPlateConflict, normalized)
		}
	}

	vehicle.Plate = input.Plate
	vehicle.PlateNormalized = normalized
	vehicle.Category = input.Category
	vehicle.VehicleType = input.VehicleType
	vehicle.SubscriptionExpires = input.SubscriptionExpires
	applyOptional(vehicle, input)

	if err := s.repo.Update(ctx, vehicle); err != nil {
		return nil, fmt.Errorf("update vehicle: %w", err)
	}
	return vehicle, nil
}

func (s *VehicleService) Delete(ctx context.Context, id string) error {
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		return fmt.Errorf("%w: vehicle %s", ErrNotFound, id)
	}
	return s.repo.Delete(ctx, id)
}

func (s *VehicleService) Get(ctx context.Context, id string) (*repository.Vehicle, error) {
	vehicle, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%w: vehicle %s", ErrNotFound, id)
	}
	return vehicle, nil
}

func (s *VehicleService) List(ctx context.Context, limit, offset int) ([]repository.Vehicle, error) {
	if limit <= 0 {
		limit = 50
	}
	if limit > 200 {
		limit = 200
	}
	if offset < 0 {
		offset = 0
	}
	return s.repo.List(ctx, limit, offset)
}

func (s *VehicleService) validate(input *VehicleInput) (string, error) {
	if input.Category == "" {
		input.Category = parking.CategoryVisitor
	}
	if input.VehicleType == "" {
		input.VehicleType = parking.TypeCar
	}
	if !input.Category.Valid() {
		return "", fmt.Errorf("%w: unknown category %q", ErrInvalidInput, input.Category)
	}
	if !input.VehicleType.Valid() {
		return "", fmt.Errorf("%w: unknown vehicle_type %q", ErrInvalidInput, input.VehicleType)
	}
	normalized := utils.NormalizePlate(input.Plate)
	if normalized == "" {
		return "", fmt.Errorf("%w: plate is required", ErrInvalidInput)
	}
	if !utils.ValidatePlate(normalized) {
		return "", fmt.Errorf("%w: %q is not a recognized plate format", ErrInvalidInput, normalized)
	}
	return normalized, nil
}

func applyOptional(vehicle *repository.Vehicle, input VehicleInput) {
	vehicle.OwnerName = optional(input.OwnerName)
	vehicle.OwnerPhone = optional(input.OwnerPhone)
	vehicle.OwnerEmail = optional(input.OwnerEmail)
	vehicle.Notes = optional(input.Notes)
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
