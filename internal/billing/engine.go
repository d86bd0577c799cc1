// Package billing computes time- and condition-based tariffs for parking
// sessions. The pricing itself is a pure function; the engine only touches
// the database to select a tariff when the caller supplies none.
package billing

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"parking-service/internal/domain/parking"
	"parking-service/internal/repository"
	"parking-service/internal/rules"
)

const noTariffNote = "no active tariff found"

type Engine struct {
	tariffs *repository.TariffRepository
}

func NewEngine(tariffs *repository.TariffRepository) *Engine {
	return &Engine{tariffs: tariffs}
}

// Calculate prices a stay. When tariff is nil it selects the first active
// tariff (valid at exit time) covering the vehicle type, then any active
// tariff, and finally degrades to a zero-amount result with a diagnostic
// note. Billing always terminates with a concrete answer; only a database
// failure is an error.
func (e *Engine) Calculate(
	ctx context.Context,
	snap *rules.Snapshot,
	vehicleType parking.VehicleType,
	entryTime, exitTime time.Time,
	tariff *repository.Tariff,
) (parking.BillingResult, error) {
	if tariff == nil {
		selected, err := e.selectTariff(ctx, vehicleType, exitTime)
		if err != nil {
			return parking.BillingResult{}, fmt.Errorf("select tariff: %w", err)
		}
		tariff = selected
	}
	if tariff == nil {
		return parking.BillingResult{Amount: 0, DurationMinutes: 0, Note: noTariffNote}, nil
	}
	return Price(tariff, snap, entryTime, exitTime), nil
}

func (e *Engine) selectTariff(ctx context.Context, vehicleType parking.VehicleType, now time.Time) (*repository.Tariff, error) {
	active, err := e.tariffs.FindActive(ctx, now)
	if err != nil {
		return nil, err
	}
	for i := range active {
		if active[i].AppliesTo(vehicleType) {
			return &active[i], nil
		}
	}
	if len(active) > 0 {
		return &active[0], nil
	}
	return nil, nil
}

// Price applies the tariff formula in its fixed order: duration, base
// price (continuous fractional hours past the first), daily cap, night
// multiplier, weekend multiplier, round to millimes. The cap runs before
// the multipliers, so a capped stay under a multiplier can exceed the
// nominal daily max.
func Price(tariff *repository.Tariff, snap *rules.Snapshot, entryTime, exitTime time.Time) parking.BillingResult {
	durationMinutes := int(math.Round(exitTime.Sub(entryTime).Minutes()))
	if durationMinutes < 0 {
		// Clock skew between entry and exit records; never bill negative time.
		durationMinutes = 0
	}
	hours := float64(durationMinutes) / 60

	var price float64
	if hours <= 1 {
		price = tariff.FirstHourTND
	} else {
		price = tariff.FirstHourTND + (hours-1)*tariff.ExtraHourTND
	}

	price = math.Min(price, tariff.DailyMaxTND)

	nightStart := tariff.NightStart
	if nightStart == "" {
		nightStart = snap.GetString("billing.night.start", "22:00")
	}
	nightEnd := tariff.NightEnd
	if nightEnd == "" {
		nightEnd = snap.GetString("billing.night.end", "06:00")
	}
	if inNightWindow(entryTime, nightStart, nightEnd) {
		price *= tariff.NightMultiplier
	}

	if wd := entryTime.Weekday(); wd == time.Saturday || wd == time.Sunday {
		price *= tariff.WeekendMultiplier
	}

	return parking.BillingResult{
		Amount:          math.Round(price*1000) / 1000,
		DurationMinutes: durationMinutes,
		TariffName:      tariff.Name,
		TariffID:        tariff.ID,
	}
}

// inNightWindow checks the entry time of day against [start, end) in
// minute-of-day form. start > end means the window wraps midnight.
func inNightWindow(entry time.Time, start, end string) bool {
	startMin, okStart := parseMinuteOfDay(start)
	endMin, okEnd := parseMinuteOfDay(end)
	if !okStart || !okEnd {
		return false
	}
	entryMin := entry.Hour()*60 + entry.Minute()
	if startMin > endMin {
		return entryMin >= startMin || entryMin < endMin
	}
	return entryMin >= startMin && entryMin < endMin
}

func parseMinuteOfDay(hhmm string) (int, bool) {
	parts := strings.SplitN(hhmm, ":", 2)
	if len(parts) != 2 {
		return 0, false
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, false
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, false
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, false
	}
	return h*60 + m, true
}
