package billing

import (
	"context"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"parking-service/internal/domain/parking"
	"parking-service/internal/repository"
	"parking-service/internal/rules"
)

func testTariff() *repository.Tariff {
	return &repository.Tariff{
		ID:                "11111111-1111-1111-1111-111111111111",
		Name:              "standard",
		VehicleTypes:      datatypes.JSON(`["car"]`),
		FirstHourTND:      2.0,
		ExtraHourTND:      1.0,
		DailyMaxTND:       20.0,
		NightMultiplier:   1.5,
		NightStart:        "22:00",
		NightEnd:          "06:00",
		WeekendMultiplier: 1.2,
		Active:            true,
	}
}

func emptySnapshot() *rules.Snapshot {
	return rules.NewSnapshot(nil)
}

// weekday entry at 10:00, outside the night window
func weekdayEntry() time.Time {
	return time.Date(2024, 3, 13, 10, 0, 0, 0, time.UTC) // Wednesday
}

func TestPriceFirstHour(t *testing.T) {
	entry := weekdayEntry()

	tests := []struct {
		name    string
		minutes int
		want    float64
	}{
		{"zero duration", 0, 2.0},
		{"half hour", 30, 2.0},
		{"exactly one hour", 60, 2.0},
		{"ninety minutes", 90, 2.5},
		{"two hours", 120, 3.0},
		{"three and a half hours", 210, 4.5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exit := entry.Add(time.Duration(tt.minutes) * time.Minute)
			result := Price(testTariff(), emptySnapshot(), entry, exit)
			assert.Equal(t, tt.want, result.Amount)
			assert.Equal(t, tt.minutes, result.DurationMinutes)
		})
	}
}

func TestPriceMonotonicity(t *testing.T) {
	entry := weekdayEntry()
	short := Price(testTariff(), emptySnapshot(), entry, entry.Add(59*time.Minute))
	long := Price(testTariff(), emptySnapshot(), entry, entry.Add(90*time.Minute))

	assert.GreaterOrEqual(t, long.Amount, short.Amount)
	assert.LessOrEqual(t, short.Amount, 20.0)
	assert.LessOrEqual(t, long.Amount, 20.0)
}

func TestPriceCapAppliedBeforeNightMultiplier(t *testing.T) {
	// 30h stay: base 2 + 29*1 = 31, capped to 20, then night 1.5 -> 30.0.
	// The final amount exceeding the daily max is the intended ordering.
	entry := time.Date(2024, 3, 13, 23, 0, 0, 0, time.UTC) // Wednesday night
	exit := entry.Add(30 * time.Hour)

	result := Price(testTariff(), emptySnapshot(), entry, exit)

	assert.Equal(t, 30.0, result.Amount)
	assert.Equal(t, 30*60, result.DurationMinutes)
}

func TestPriceNightWindowWraparound(t *testing.T) {
	tariff := testTariff()

	tests := []struct {
		name  string
		entry time.Time
		night bool
	}{
		{"before midnight", time.Date(2024, 3, 13, 23, 30, 0, 0, time.UTC), true},
		{"after midnight", time.Date(2024, 3, 13, 2, 0, 0, 0, time.UTC), true},
		{"window start inclusive", time.Date(2024, 3, 13, 22, 0, 0, 0, time.UTC), true},
		{"window end exclusive", time.Date(2024, 3, 13, 6, 0, 0, 0, time.UTC), false},
		{"mid morning", time.Date(2024, 3, 13, 10, 0, 0, 0, time.UTC), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Price(tariff, emptySnapshot(), tt.entry, tt.entry.Add(30*time.Minute))
			if tt.night {
				assert.Equal(t, 3.0, result.Amount) // 2.0 * 1.5
			} else {
				assert.Equal(t, 2.0, result.Amount)
			}
		})
	}
}

func TestPriceNonWrappingNightWindow(t *testing.T) {
	tariff := testTariff()
	tariff.NightStart = "00:00"
	tariff.NightEnd = "05:00"

	inside := Price(tariff, emptySnapshot(), time.Date(2024, 3, 13, 3, 0, 0, 0, time.UTC), time.Date(2024, 3, 13, 3, 30, 0, 0, time.UTC))
	outside := Price(tariff, emptySnapshot(), time.Date(2024, 3, 13, 23, 0, 0, 0, time.UTC), time.Date(2024, 3, 13, 23, 30, 0, 0, time.UTC))

	assert.Equal(t, 3.0, inside.Amount)
	assert.Equal(t, 2.0, outside.Amount)
}

func TestPriceWeekendMultiplier(t *testing.T) {
	saturday := time.Date(2024, 3, 16, 10, 0, 0, 0, time.UTC)
	sunday := time.Date(2024, 3, 17, 10, 0, 0, 0, time.UTC)
	monday := time.Date(2024, 3, 18, 10, 0, 0, 0, time.UTC)

	assert.Equal(t, 2.4, Price(testTariff(), emptySnapshot(), saturday, saturday.Add(30*time.Minute)).Amount)
	assert.Equal(t, 2.4, Price(testTariff(), emptySnapshot(), sunday, sunday.Add(30*time.Minute)).Amount)
	assert.Equal(t, 2.0, Price(testTariff(), emptySnapshot(), monday, monday.Add(30*time.Minute)).Amount)
}

func TestPriceNightAndWeekendCompose(t *testing.T) {
	// Saturday 23:00: night then weekend, 2.0 * 1.5 * 1.2 = 3.6.
	entry := time.Date(2024, 3, 16, 23, 0, 0, 0, time.UTC)
	result := Price(testTariff(), emptySnapshot(), entry, entry.Add(30*time.Minute))
	assert.Equal(t, 3.6, result.Amount)
}

func TestPriceNegativeDurationClamped(t *testing.T) {
	entry := weekdayEntry()
	exit := entry.Add(-45 * time.Minute) // clock skew

	result := Price(testTariff(), emptySnapshot(), entry, exit)

	assert.Equal(t, 0, result.DurationMinutes)
	assert.Equal(t, 2.0, result.Amount)
}

func TestPriceRoundsToMillimes(t *testing.T) {
	tariff := testTariff()
	tariff.ExtraHourTND = 0.333

	entry := weekdayEntry()
	// 100 minutes: 2 + (100/60 - 1) * 0.333 = 2.222
	result := Price(tariff, emptySnapshot(), entry, entry.Add(100*time.Minute))
	assert.Equal(t, 2.222, result.Amount)
}

func TestPriceNightWindowFromRulesWhenTariffEmpty(t *testing.T) {
	tariff := testTariff()
	tariff.NightStart = ""
	tariff.NightEnd = ""
	snap := rules.NewSnapshot(map[string]interface{}{
		"billing.night.start": "20:00",
		"billing.night.end":   "23:00",
	})

	entry := time.Date(2024, 3, 13, 21, 0, 0, 0, time.UTC)
	result := Price(tariff, snap, entry, entry.Add(30*time.Minute))
	assert.Equal(t, 3.0, result.Amount)
}

func newBillingTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	gdb, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, gdb.AutoMigrate(&repository.Tariff{}))
	return gdb
}

func TestCalculateSelectsMatchingTariff(t *testing.T) {
	gdb := newBillingTestDB(t)
	repo := repository.NewTariffRepository(gdb)
	ctx := context.Background()

	carTariff := testTariff()
	carTariff.ID = ""
	truckTariff := testTariff()
	truckTariff.ID = ""
	truckTariff.Name = "heavy"
	truckTariff.VehicleTypes = datatypes.JSON(`["truck","bus"]`)
	truckTariff.FirstHourTND = 5.0
	require.NoError(t, repo.Create(ctx, carTariff))
	require.NoError(t, repo.Create(ctx, truckTariff))

	engine := NewEngine(repo)
	entry := weekdayEntry()

	result, err := engine.Calculate(ctx, emptySnapshot(), parking.TypeTruck, entry, entry.Add(30*time.Minute), nil)
	require.NoError(t, err)
	assert.Equal(t, "heavy", result.TariffName)
	assert.Equal(t, 5.0, result.Amount)
	assert.Equal(t, truckTariff.ID, result.TariffID)
}

func TestCalculateFallsBackToAnyActiveTariff(t *testing.T) {
	gdb := newBillingTestDB(t)
	repo := repository.NewTariffRepository(gdb)
	ctx := context.Background()

	carTariff := testTariff()
	carTariff.ID = ""
	require.NoError(t, repo.Create(ctx, carTariff))

	engine := NewEngine(repo)
	entry := weekdayEntry()

	// No tariff covers motorcycles; any active tariff serves.
	result, err := engine.Calculate(ctx, emptySnapshot(), parking.TypeMotorcycle, entry, entry.Add(30*time.Minute), nil)
	require.NoError(t, err)
	assert.Equal(t, "standard", result.TariffName)
	assert.Equal(t, 2.0, result.Amount)
}

func TestCalculateDegradesWithoutTariffs(t *testing.T) {
	gdb := newBillingTestDB(t)
	repo := repository.NewTariffRepository(gdb)

	engine := NewEngine(repo)
	entry := weekdayEntry()

	result, err := engine.Calculate(context.Background(), emptySnapshot(), parking.TypeCar, entry, entry.Add(30*time.Minute), nil)
	require.NoError(t, err)
	assert.Equal(t, 0.0, result.Amount)
	assert.Equal(t, 0, result.DurationMinutes)
	assert.Equal(t, "no active tariff found", result.Note)
}

func TestCalculateSkipsInactiveAndExpiredTariffs(t *testing.T) {
	gdb := newBillingTestDB(t)
	repo := repository.NewTariffRepository(gdb)
	ctx := context.Background()

	inactive := testTariff()
	inactive.ID = ""
	inactive.Name = "inactive"
	inactive.Active = false
	require.NoError(t, repo.Create(ctx, inactive))

	past := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	expired := testTariff()
	expired.ID = ""
	expired.Name = "expired"
	expired.ValidUntil = &past
	require.NoError(t, repo.Create(ctx, expired))

	current := testTariff()
	current.ID = ""
	current.Name = "current"
	require.NoError(t, repo.Create(ctx, current))

	engine := NewEngine(repo)
	entry := weekdayEntry()

	result, err := engine.Calculate(ctx, emptySnapshot(), parking.TypeCar, entry, entry.Add(30*time.Minute), nil)
	require.NoError(t, err)
	assert.Equal(t, "current", result.TariffName)
}

func TestCalculateUsesSuppliedTariff(t *testing.T) {
	gdb := newBillingTestDB(t)
	repo := repository.NewTariffRepository(gdb)
	engine := NewEngine(repo)

	supplied := testTariff()
	supplied.Name = "supplied"
	entry := weekdayEntry()

	result, err := engine.Calculate(context.Background(), emptySnapshot(), parking.TypeCar, entry, entry.Add(30*time.Minute), supplied)
	require.NoError(t, err)
	assert.Equal(t, "supplied", result.TariffName)
}
