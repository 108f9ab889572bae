package medications

import (
	"time"

	"github.com/shopspring/decimal"
)

// Medication es el producto físico que el representante compra y stockea.
// No pertenece a un paciente: la posología por paciente vive en Posology.
type Medication struct {
	ID          string
	OwnerUserID string

	Name         string
	DosageAmount decimal.Decimal
	DosageUnit   string // mg, ml, UI...
	Form         string // tablet, capsule, drops...
	Route        string // oral, topical...

	// BoxQuantity: unidades por caja. Permite cargar stock en cajas.
	BoxQuantity decimal.Decimal

	Instructions string

	CreatedAt time.Time
	UpdatedAt time.Time
}

type Frequency string

const (
	FrequencyOnceDaily       Frequency = "once_daily"
	FrequencyTwiceDaily      Frequency = "twice_daily"
	FrequencyThreeTimesDaily Frequency = "three_times_daily"
	FrequencyFourTimesDaily  Frequency = "four_times_daily"
	FrequencyEveryOtherDay   Frequency = "every_other_day"
	FrequencyWeekly          Frequency = "weekly"
	FrequencyCustom          Frequency = "custom"
)

func (f Frequency) Valid() bool {
	switch f {
	case FrequencyOnceDaily, FrequencyTwiceDaily, FrequencyThreeTimesDaily, FrequencyFourTimesDaily,
		FrequencyEveryOtherDay, FrequencyWeekly, FrequencyCustom:
		return true
	default:
		return false
	}
}

type TreatmentType string

const (
	TreatmentContinuous TreatmentType = "continuous"
	TreatmentTemporary  TreatmentType = "temporary"
)

// Posology es la fila medicamento-paciente: cómo toma ESE paciente ESE medicamento.
// Dos pacientes con el mismo medicamento tienen filas independientes.
type Posology struct {
	ID          string
	OwnerUserID string

	MedicationID string
	PatientID    string

	Frequency           Frequency
	AdministrationTimes []string // HH:MM
	HalfDose            bool
	CustomFrequency     string
	UnitsPerDose        decimal.Decimal
	AsNeeded            bool

	TreatmentType TreatmentType
	StartDate     *time.Time
	EndDate       *time.Time

	Tapering bool
	Phases   []Phase

	PrescriptionID string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Ongoing: el tratamiento sigue vigente en day (sin fin o fin >= day).
func (p Posology) Ongoing(day time.Time) bool {
	return p.EndDate == nil || !p.EndDate.Before(day)
}
