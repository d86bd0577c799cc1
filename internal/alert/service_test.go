package alert

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

func newAlertService(t *testing.T) *Service {
	t.Helper()
	gdb, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, gdb.AutoMigrate(&repository.Alert{}))
	return NewService(repository.NewAlertRepository(gdb), zerolog.Nop())
}

func TestCreateAssignsSeverity(t *testing.T) {
	svc := newAlertService(t)
	ctx := context.Background()

	tests := []struct {
		alertType parking.AlertType
		want      parking.AlertSeverity
	}{
		{parking.AlertBlacklist, parking.SeverityCritical},
		{parking.AlertFraud, parking.SeverityHigh},
		{parking.AlertOverstay, parking.SeverityMedium},
		{parking.AlertLowConfidence, parking.SeverityLow},
		{parking.AlertType("UNMAPPED"), parking.SeverityMedium},
	}
	for _, tt := range tests {
		t.Run(string(tt.alertType), func(t *testing.T) {
			created, err := svc.Create(ctx, tt.alertType, "test alert", "123TN456", "gate_main_in")
			require.NoError(t, err)
			assert.Equal(t, tt.want, created.Severity)
			assert.False(t, created.Resolved)
		})
	}
}

func TestResolveIsTerminal(t *testing.T) {
	svc := newAlertService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, parking.AlertOverstay, "vehicle past max stay", "123TN456", "")
	require.NoError(t, err)
	assert.Nil(t, created.GateID)

	resolved, err := svc.Resolve(ctx, created.ID, "sami")
	require.NoError(t, err)
	assert.True(t, resolved.Resolved)
	require.NotNil(t, resolved.ResolvedBy)
	assert.Equal(t, "sami", *resolved.ResolvedBy)
	assert.NotNil(t, resolved.ResolvedAt)

	_, err = svc.Resolve(ctx, created.ID, "sami")
	assert.ErrorIs(t, err, ErrAlreadyResolved)
}

func TestListFiltersResolved(t *testing.T) {
	svc := newAlertService(t)
	ctx := context.Background()

	open, err := svc.Create(ctx, parking.AlertBlacklist, "blacklisted vehicle", "123TN456", "gate_main_in")
	require.NoError(t, err)
	done, err := svc.Create(ctx, parking.AlertLowConfidence, "low confidence read", "789TN123", "gate_main_in")
	require.NoError(t, err)
	_, err = svc.Resolve(ctx, done.ID, "sami")
	require.NoError(t, err)

	unresolved := false
	listed, err := svc.List(ctx, &unresolved, 10)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, open.ID, listed[0].ID)

	all, err := svc.List(ctx, nil, 10)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}
