package medications

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"deja/internal/platform/dates"
)

type PhaseKind string

const (
	PhaseIncrease    PhaseKind = "increase"
	PhaseMaintenance PhaseKind = "maintenance"
	PhaseDecrease    PhaseKind = "decrease"
	PhaseFinished    PhaseKind = "finished"
)

func (k PhaseKind) Valid() bool {
	switch k {
	case PhaseIncrease, PhaseMaintenance, PhaseDecrease, PhaseFinished:
		return true
	default:
		return false
	}
}

// Phase es un escalón del desmame/titulación. EndDate nil => abierto.
type Phase struct {
	Kind         PhaseKind
	Dosage       decimal.Decimal // unidades por toma
	Frequency    Frequency
	StartDate    time.Time
	EndDate      *time.Time
	Instructions string
}

type ResolutionState string

const (
	// ResolutionNone: la posología no tiene fases.
	ResolutionNone    ResolutionState = "none"
	ResolutionPending ResolutionState = "pending"
	ResolutionActive  ResolutionState = "active"
	ResolutionEnded   ResolutionState = "ended"
)

type Resolution struct {
	State ResolutionState
	Index int // -1 si no hay fase
	Phase *Phase
}

// Resolve elige la fase vigente en day. Las fases no se reordenan.
//   - activa: la última con start <= day y (end nil o end >= day).
//   - ninguna empezó: pending con la fase de start más temprano.
//   - empezaron pero ninguna ventana contiene day: la última fase,
//     active si el tratamiento sigue, ended si no.
func Resolve(phases []Phase, day time.Time, ongoing bool) Resolution {
	if len(phases) == 0 {
		return Resolution{State: ResolutionNone, Index: -1}
	}
	day = dates.Day(day)

	active := -1
	started := false
	for i, ph := range phases {
		if ph.StartDate.After(day) {
			continue
		}
		started = true
		if ph.EndDate == nil || !ph.EndDate.Before(day) {
			active = i
		}
	}

	if active >= 0 {
		return resolution(ResolutionActive, phases, active)
	}

	if !started {
		earliest := 0
		for i, ph := range phases {
			if ph.StartDate.Before(phases[earliest].StartDate) {
				earliest = i
			}
		}
		return resolution(ResolutionPending, phases, earliest)
	}

	last := len(phases) - 1
	if ongoing {
		return resolution(ResolutionActive, phases, last)
	}
	return resolution(ResolutionEnded, phases, last)
}

func resolution(state ResolutionState, phases []Phase, i int) Resolution {
	ph := phases[i]
	return Resolution{State: state, Index: i, Phase: &ph}
}

var errPhases = errors.New("invalid tapering phases")

// ValidatePhases exige start <= end en cada fase y orden temporal:
// cada fase empieza en o después del inicio y del fin (si lo hay) de la anterior.
func ValidatePhases(phases []Phase) error {
	for i, ph := range phases {
		if !ph.Kind.Valid() {
			return fmt.Errorf("%w: phase %d: unknown kind %q", errPhases, i, ph.Kind)
		}
		if !ph.Frequency.Valid() {
			return fmt.Errorf("%w: phase %d: unknown frequency %q", errPhases, i, ph.Frequency)
		}
		if ph.Dosage.IsNegative() || (ph.Kind != PhaseFinished && !ph.Dosage.IsPositive()) {
			return fmt.Errorf("%w: phase %d: dosage must be positive", errPhases, i)
		}
		if ph.StartDate.IsZero() {
			return fmt.Errorf("%w: phase %d: start_date is required", errPhases, i)
		}
		if ph.EndDate != nil && ph.EndDate.Before(ph.StartDate) {
			return fmt.Errorf("%w: phase %d: end_date before start_date", errPhases, i)
		}
		if i == 0 {
			continue
		}
		prev := phases[i-1]
		if ph.StartDate.Before(prev.StartDate) {
			return fmt.Errorf("%w: phase %d starts before phase %d", errPhases, i, i-1)
		}
		if prev.EndDate != nil && ph.StartDate.Before(*prev.EndDate) {
			return fmt.Errorf("%w: phase %d starts before phase %d ends", errPhases, i, i-1)
		}
	}
	return nil
}
