package medications

import (
	"time"

	"github.com/shopspring/decimal"

	"deja/internal/platform/dates"
)

var (
	half  = decimal.NewFromFloat(0.5)
	seven = decimal.NewFromInt(7)
)

// DosesPerDay por frecuencia. custom cuenta los horarios cargados.
func DosesPerDay(f Frequency, times int) decimal.Decimal {
	switch f {
	case FrequencyOnceDaily:
		return decimal.NewFromInt(1)
	case FrequencyTwiceDaily:
		return decimal.NewFromInt(2)
	case FrequencyThreeTimesDaily:
		return decimal.NewFromInt(3)
	case FrequencyFourTimesDaily:
		return decimal.NewFromInt(4)
	case FrequencyEveryOtherDay:
		return half
	case FrequencyWeekly:
		return decimal.NewFromInt(1).Div(seven)
	case FrequencyCustom:
		return decimal.NewFromInt(int64(times))
	default:
		return decimal.Zero
	}
}

// DailyConsumption en unidades/día para el día dado.
// Cero si es "según necesidad", si day está fuera del tratamiento
// o si la fase de desmame vigente no aplica (pending, ended, finished).
func (p Posology) DailyConsumption(day time.Time) decimal.Decimal {
	day = dates.Day(day)

	if p.AsNeeded {
		return decimal.Zero
	}
	if p.StartDate != nil && day.Before(*p.StartDate) {
		return decimal.Zero
	}
	if !p.Ongoing(day) {
		return decimal.Zero
	}

	if p.Tapering && len(p.Phases) > 0 {
		res := Resolve(p.Phases, day, p.Ongoing(day))
		if res.State != ResolutionActive || res.Phase.Kind == PhaseFinished {
			return decimal.Zero
		}
		return res.Phase.Dosage.Mul(DosesPerDay(res.Phase.Frequency, len(p.AdministrationTimes)))
	}

	units := p.UnitsPerDose
	if !units.IsPositive() {
		units = decimal.NewFromInt(1)
	}
	rate := DosesPerDay(p.Frequency, len(p.AdministrationTimes)).Mul(units)
	if p.HalfDose {
		rate = rate.Mul(half)
	}
	return rate
}

// TotalDailyConsumption suma el consumo de todos los pacientes del medicamento.
func TotalDailyConsumption(items []Posology, day time.Time) decimal.Decimal {
	total := decimal.Zero
	for _, p := range items {
		total = total.Add(p.DailyConsumption(day))
	}
	return total
}
