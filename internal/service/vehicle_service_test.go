package service

import (
	"context"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"parking-service/internal/domain/parking"
	"parking-service/internal/repository"
)

func newVehicleService(t *testing.T) *VehicleService {
	t.Helper()
	gdb, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, gdb.AutoMigrate(&repository.Vehicle{}))
	return NewVehicleService(repository.NewVehicleRepository(gdb), zerolog.Nop())
}

func TestVehicleCreateNormalizesPlate(t *testing.T) {
	svc := newVehicleService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, VehicleInput{
		Plate:    "123 تونس 456",
		Category: parking.CategorySubscriber,
	})
	require.NoError(t, err)

	assert.Equal(t, "123 تونس 456", created.Plate)
	assert.Equal(t, "123TN456", created.PlateNormalized)
	assert.Equal(t, parking.TypeCar, created.VehicleType)
	assert.NotEmpty(t, created.ID)
}

func TestVehicleCreateRejectsDuplicateIdentity(t *testing.T) {
	svc := newVehicleService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, VehicleInput{Plate: "123TN456"})
	require.NoError(t, err)

	// Same identity in a different writing is still a duplicate.
	_, err = svc.Create(ctx, VehicleInput{Plate: "123 تونس 456"})
	assert.ErrorIs(t, err, ErrPlateConflict)
}

func TestVehicleCreateValidation(t *testing.T) {
	svc := newVehicleService(t)
	ctx := context.Background()

	tests := []struct {
		name  string
		input VehicleInput
	}{
		{"empty plate", VehicleInput{}},
		{"unrecognized format", VehicleInput{Plate: "ABC-XYZ"}},
		{"bad category", VehicleInput{Plate: "123TN456", Category: "royalty"}},
		{"bad vehicle type", VehicleInput{Plate: "123TN456", VehicleType: "hovercraft"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Create(ctx, tt.input)
			assert.ErrorIs(t, err, ErrInvalidInput)
		})
	}
}

func TestVehicleUpdatePlateChange(t *testing.T) {
	svc := newVehicleService(t)
	ctx := context.Background()

	first, err := svc.Create(ctx, VehicleInput{Plate: "123TN456"})
	require.NoError(t, err)
	_, err = svc.Create(ctx, VehicleInput{Plate: "789TN123"})
	require.NoError(t, err)

	// Moving to an occupied plate conflicts.
	_, err = svc.Update(ctx, first.ID, VehicleInput{Plate: "789TN123"})
	assert.ErrorIs(t, err, ErrPlateConflict)

	// Re-saving under the same plate does not conflict with itself.
	updated, err := svc.Update(ctx, first.ID, VehicleInput{
		Plate:     "123TN456",
		Category:  parking.CategoryVIP,
		OwnerName: "Sami Ben Ali",
	})
	require.NoError(t, err)
	assert.Equal(t, parking.CategoryVIP, updated.Category)
	require.NotNil(t, updated.OwnerName)
	assert.Equal(t, "Sami Ben Ali", *updated.OwnerName)
}

func TestVehicleDeleteAndGet(t *testing.T) {
	svc := newVehicleService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, VehicleInput{Plate: "123TN456"})
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, created.ID))

	_, err = svc.Get(ctx, created.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	err = svc.Delete(ctx, created.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestVehicleListClampsLimit(t *testing.T) {
	svc := newVehicleService(t)
	ctx := context.Background()

	for _, plate := range []string{"1TN1", "2TN2", "3TN3"} {
		_, err := svc.Create(ctx, VehicleInput{Plate: plate})
		require.NoError(t, err)
	}

	listed, err := svc.List(ctx, 2, 0)
	require.NoError(t, err)
	assert.Len(t, listed, 2)

	listed, err = svc.List(ctx, -5, -1)
	require.NoError(t, err)
	assert.Len(t, listed, 3)
}
