package medications

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestDailyConsumption(t *testing.T) {
	today := day("2025-01-15")
	two := decimal.NewFromInt(2)

	tests := []struct {
		name string
		p    Posology
		want string
	}{
		{"once daily", Posology{Frequency: FrequencyOnceDaily, UnitsPerDose: decimal.NewFromInt(1)}, "1"},
		{"twice daily two units", Posology{Frequency: FrequencyTwiceDaily, UnitsPerDose: two}, "4"},
		{"half dose", Posology{Frequency: FrequencyTwiceDaily, UnitsPerDose: decimal.NewFromInt(1), HalfDose: true}, "1"},
		{"every other day", Posology{Frequency: FrequencyEveryOtherDay, UnitsPerDose: two}, "1"},
		{"custom counts times", Posology{Frequency: FrequencyCustom, AdministrationTimes: []string{"08:00", "14:00", "22:00"}, UnitsPerDose: decimal.NewFromInt(1)}, "3"},
		{"custom without times", Posology{Frequency: FrequencyCustom}, "0"},
		{"as needed", Posology{Frequency: FrequencyOnceDaily, AsNeeded: true}, "0"},
		{"zero units defaults to one", Posology{Frequency: FrequencyOnceDaily}, "1"},
		{"not started", Posology{Frequency: FrequencyOnceDaily, StartDate: dayPtr("2025-02-01")}, "0"},
		{"ended", Posology{Frequency: FrequencyOnceDaily, EndDate: dayPtr("2025-01-14")}, "0"},
		{"last day included", Posology{Frequency: FrequencyOnceDaily, EndDate: dayPtr("2025-01-15")}, "1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.p.DailyConsumption(today)
			assert.True(t, got.Equal(decimal.RequireFromString(tt.want)), "got %s want %s", got, tt.want)
		})
	}
}

func TestDailyConsumptionWeekly(t *testing.T) {
	p := Posology{Frequency: FrequencyWeekly, UnitsPerDose: decimal.NewFromInt(7)}
	got := p.DailyConsumption(day("2025-01-15"))
	assert.True(t, got.Round(6).Equal(decimal.NewFromInt(1)), "got %s", got)
}

func TestDailyConsumptionTapering(t *testing.T) {
	p := Posology{
		Frequency:    FrequencyOnceDaily,
		UnitsPerDose: decimal.NewFromInt(1),
		Tapering:     true,
		Phases: []Phase{
			{Kind: PhaseMaintenance, Dosage: decimal.NewFromInt(2), Frequency: FrequencyTwiceDaily, StartDate: day("2025-01-01"), EndDate: dayPtr("2025-01-10")},
			{Kind: PhaseFinished, Dosage: decimal.Zero, Frequency: FrequencyOnceDaily, StartDate: day("2025-01-11")},
		},
	}

	assert.True(t, p.DailyConsumption(day("2025-01-05")).Equal(decimal.NewFromInt(4)))
	assert.True(t, p.DailyConsumption(day("2025-01-12")).IsZero())
	assert.True(t, p.DailyConsumption(day("2024-12-31")).IsZero(), "pending phase consumes nothing")
}

func TestTotalDailyConsumption(t *testing.T) {
	items := []Posology{
		{Frequency: FrequencyOnceDaily, UnitsPerDose: decimal.NewFromInt(1)},
		{Frequency: FrequencyThreeTimesDaily, UnitsPerDose: decimal.NewFromInt(1)},
		{Frequency: FrequencyOnceDaily, AsNeeded: true},
	}
	got := TotalDailyConsumption(items, day("2025-01-15"))
	assert.True(t, got.Equal(decimal.NewFromInt(4)), "got %s", got)
}
