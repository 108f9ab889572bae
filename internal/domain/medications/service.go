package medications

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"deja/internal/platform/dates"
)

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrNotFound     = errors.New("not found")
	ErrForbidden    = errors.New("forbidden")
	ErrConflict     = errors.New("medication already assigned to patient")
)

// PatientOwnerLookup evita importar el paquete patients.
type PatientOwnerLookup interface {
	OwnerOf(ctx context.Context, patientID string) (string, error)
}

// Purger borra datos de otros módulos que cuelgan del medicamento (movimientos de stock).
type Purger interface {
	DeleteByMedication(ctx context.Context, medicationID string) error
}

type Service struct {
	meds       Repository
	posologies PosologyRepository
	patients   PatientOwnerLookup
	purgers    []Purger

	log zerolog.Logger
	now func() time.Time
}

func NewService(meds Repository, posologies PosologyRepository, patients PatientOwnerLookup, log zerolog.Logger) *Service {
	return &Service{
		meds:       meds,
		posologies: posologies,
		patients:   patients,
		log:        log,
		now:        time.Now,
	}
}

func (s *Service) OnDelete(purgers ...Purger) {
	s.purgers = append(s.purgers, purgers...)
}

// Today es la fecha civil de hoy según el reloj del servicio.
func (s *Service) Today() time.Time {
	return dates.Day(s.now())
}

// -------------------------
// Medications
// -------------------------

type Input struct {
	Name         string
	DosageAmount decimal.Decimal
	DosageUnit   string
	Form         string
	Route        string
	BoxQuantity  decimal.Decimal
	Instructions string
}

func (s *Service) Create(ctx context.Context, ownerUserID string, in Input) (Medication, error) {
	if strings.TrimSpace(ownerUserID) == "" {
		return Medication{}, ErrInvalidInput
	}
	now := s.now()
	m := Medication{
		ID:          uuid.NewString(),
		OwnerUserID: ownerUserID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := applyMedication(&m, in); err != nil {
		return Medication{}, err
	}
	if err := s.meds.Create(ctx, m); err != nil {
		return Medication{}, err
	}
	return m, nil
}

func (s *Service) Update(ctx context.Context, id, userID string, in Input) (Medication, error) {
	m, err := s.GetOwned(ctx, id, userID)
	if err != nil {
		return Medication{}, err
	}
	if err := applyMedication(&m, in); err != nil {
		return Medication{}, err
	}
	m.UpdatedAt = s.now()
	if err := s.meds.Update(ctx, m); err != nil {
		return Medication{}, err
	}
	return m, nil
}

// Delete borra en cascada posologías (con sus fases) y movimientos de stock.
func (s *Service) Delete(ctx context.Context, id, userID string) error {
	if _, err := s.GetOwned(ctx, id, userID); err != nil {
		return err
	}
	for _, p := range s.purgers {
		if err := p.DeleteByMedication(ctx, id); err != nil {
			return fmt.Errorf("purge medication data: %w", err)
		}
	}
	if err := s.posologies.DeleteByMedication(ctx, id); err != nil {
		return fmt.Errorf("delete posologies: %w", err)
	}
	if err := s.meds.Delete(ctx, id); err != nil {
		return err
	}
	s.log.Info().Str("medication_id", id).Msg("medication deleted")
	return nil
}

func (s *Service) GetByID(ctx context.Context, id string) (Medication, error) {
	return s.meds.GetByID(ctx, strings.TrimSpace(id))
}

func (s *Service) GetOwned(ctx context.Context, id, userID string) (Medication, error) {
	m, err := s.GetByID(ctx, id)
	if err != nil {
		return Medication{}, err
	}
	if m.OwnerUserID != userID {
		return Medication{}, ErrForbidden
	}
	return m, nil
}

func (s *Service) ListByOwner(ctx context.Context, ownerUserID string) ([]Medication, error) {
	return s.meds.ListByOwner(ctx, ownerUserID)
}

// ListOwners: representantes con medicamentos cargados (para el dispatch por CLI).
func (s *Service) ListOwners(ctx context.Context) ([]string, error) {
	return s.meds.ListOwners(ctx)
}

func applyMedication(m *Medication, in Input) error {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	if in.DosageAmount.IsNegative() {
		return fmt.Errorf("%w: dosage_amount must not be negative", ErrInvalidInput)
	}
	if !in.BoxQuantity.IsPositive() {
		return fmt.Errorf("%w: box_quantity must be positive", ErrInvalidInput)
	}

	m.Name = name
	m.DosageAmount = in.DosageAmount
	m.DosageUnit = strings.TrimSpace(in.DosageUnit)
	m.Form = strings.ToLower(strings.TrimSpace(in.Form))
	m.Route = strings.ToLower(strings.TrimSpace(in.Route))
	m.BoxQuantity = in.BoxQuantity
	m.Instructions = strings.TrimSpace(in.Instructions)
	return nil
}

// -------------------------
// Posology (medicamento x paciente)
// -------------------------

type PosologyInput struct {
	Frequency           string
	AdministrationTimes []string
	HalfDose            bool
	CustomFrequency     string
	UnitsPerDose        *decimal.Decimal // nil => 1
	AsNeeded            bool
	TreatmentType       string
	StartDate           *time.Time
	EndDate             *time.Time
	Tapering            bool
	PrescriptionID      string
}

// Assign crea la posología de un paciente para un medicamento del representante.
func (s *Service) Assign(ctx context.Context, userID, medicationID, patientID string, in PosologyInput) (Posology, error) {
	m, err := s.GetOwned(ctx, medicationID, userID)
	if err != nil {
		return Posology{}, err
	}
	if err := s.checkPatient(ctx, userID, patientID); err != nil {
		return Posology{}, err
	}

	now := s.now()
	p := Posology{
		ID:           uuid.NewString(),
		OwnerUserID:  m.OwnerUserID,
		MedicationID: m.ID,
		PatientID:    patientID,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := applyPosology(&p, in); err != nil {
		return Posology{}, err
	}
	if err := s.posologies.Create(ctx, p); err != nil {
		return Posology{}, err
	}
	return p, nil
}

// UpdatePosology reemplaza solo la fila (medicationID, patientID); las fases se mantienen.
func (s *Service) UpdatePosology(ctx context.Context, userID, medicationID, patientID string, in PosologyInput) (Posology, error) {
	if _, err := s.GetOwned(ctx, medicationID, userID); err != nil {
		return Posology{}, err
	}
	p, err := s.posologies.Get(ctx, medicationID, patientID)
	if err != nil {
		return Posology{}, err
	}
	hadPhases := len(p.Phases) > 0
	if err := applyPosology(&p, in); err != nil {
		return Posology{}, err
	}
	p.UpdatedAt = s.now()
	if err := s.posologies.Update(ctx, p); err != nil {
		return Posology{}, err
	}
	// apagar el desmame descarta las fases guardadas
	if hadPhases && !p.Tapering {
		if err := s.posologies.ReplacePhases(ctx, p.ID, nil); err != nil {
			return Posology{}, err
		}
	}
	return p, nil
}

func (s *Service) Unassign(ctx context.Context, userID, medicationID, patientID string) error {
	if _, err := s.GetOwned(ctx, medicationID, userID); err != nil {
		return err
	}
	return s.posologies.Delete(ctx, medicationID, patientID)
}

func (s *Service) GetPosology(ctx context.Context, medicationID, patientID string) (Posology, error) {
	return s.posologies.Get(ctx, medicationID, patientID)
}

func (s *Service) ListPosologiesByMedication(ctx context.Context, medicationID string) ([]Posology, error) {
	return s.posologies.ListByMedication(ctx, medicationID)
}

func (s *Service) ListPosologiesByPatient(ctx context.Context, patientID string) ([]Posology, error) {
	return s.posologies.ListByPatient(ctx, patientID)
}

// ReplacePhases guarda la lista completa de fases de desmame de una posología.
func (s *Service) ReplacePhases(ctx context.Context, userID, medicationID, patientID string, phases []Phase) (Posology, error) {
	if _, err := s.GetOwned(ctx, medicationID, userID); err != nil {
		return Posology{}, err
	}
	p, err := s.posologies.Get(ctx, medicationID, patientID)
	if err != nil {
		return Posology{}, err
	}
	if !p.Tapering && len(phases) > 0 {
		return Posology{}, fmt.Errorf("%w: posology does not have tapering enabled", ErrInvalidInput)
	}

	normalized := make([]Phase, 0, len(phases))
	for _, ph := range phases {
		ph.StartDate = dates.Day(ph.StartDate)
		ph.EndDate = dates.DayPtr(ph.EndDate)
		ph.Instructions = strings.TrimSpace(ph.Instructions)
		normalized = append(normalized, ph)
	}
	if err := ValidatePhases(normalized); err != nil {
		return Posology{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	if err := s.posologies.ReplacePhases(ctx, p.ID, normalized); err != nil {
		return Posology{}, err
	}
	p.Phases = normalized
	return p, nil
}

// Resolution de la fase vigente para una posología en day.
func (s *Service) Resolution(p Posology, day time.Time) Resolution {
	day = dates.Day(day)
	return Resolve(p.Phases, day, p.Ongoing(day))
}

// DailyConsumption total del medicamento (todos sus pacientes) en day.
func (s *Service) DailyConsumption(ctx context.Context, medicationID string, day time.Time) (decimal.Decimal, error) {
	items, err := s.posologies.ListByMedication(ctx, medicationID)
	if err != nil {
		return decimal.Zero, err
	}
	return TotalDailyConsumption(items, day), nil
}

// PatientInUse bloquea borrar pacientes con medicamentos asignados.
func (s *Service) PatientInUse(ctx context.Context, patientID string) (bool, error) {
	items, err := s.posologies.ListByPatient(ctx, patientID)
	if err != nil {
		return false, err
	}
	return len(items) > 0, nil
}

func (s *Service) checkPatient(ctx context.Context, userID, patientID string) error {
	if strings.TrimSpace(patientID) == "" {
		return fmt.Errorf("%w: patient_id is required", ErrInvalidInput)
	}
	owner, err := s.patients.OwnerOf(ctx, patientID)
	if err != nil {
		return fmt.Errorf("%w: unknown patient", ErrNotFound)
	}
	if owner != userID {
		return ErrForbidden
	}
	return nil
}

func applyPosology(p *Posology, in PosologyInput) error {
	freq := Frequency(strings.TrimSpace(in.Frequency))
	if !freq.Valid() {
		return fmt.Errorf("%w: unknown frequency %q", ErrInvalidInput, in.Frequency)
	}

	times := make([]string, 0, len(in.AdministrationTimes))
	for _, raw := range in.AdministrationTimes {
		t := strings.TrimSpace(raw)
		if _, err := time.Parse("15:04", t); err != nil {
			return fmt.Errorf("%w: administration time %q must be HH:MM", ErrInvalidInput, raw)
		}
		times = append(times, t)
	}
	if freq == FrequencyCustom && len(times) == 0 && strings.TrimSpace(in.CustomFrequency) == "" {
		return fmt.Errorf("%w: custom frequency needs administration times or a description", ErrInvalidInput)
	}

	units := decimal.NewFromInt(1)
	if in.UnitsPerDose != nil {
		if !in.UnitsPerDose.IsPositive() {
			return fmt.Errorf("%w: units_per_dose must be positive", ErrInvalidInput)
		}
		units = *in.UnitsPerDose
	}

	tt := TreatmentType(strings.TrimSpace(in.TreatmentType))
	if tt == "" {
		tt = TreatmentContinuous
	}
	start := dates.DayPtr(in.StartDate)
	end := dates.DayPtr(in.EndDate)
	switch tt {
	case TreatmentContinuous:
	case TreatmentTemporary:
		if start == nil || end == nil {
			return fmt.Errorf("%w: temporary treatment needs start_date and end_date", ErrInvalidInput)
		}
	default:
		return fmt.Errorf("%w: treatment_type must be continuous or temporary", ErrInvalidInput)
	}
	if start != nil && end != nil && end.Before(*start) {
		return fmt.Errorf("%w: end_date before start_date", ErrInvalidInput)
	}

	p.Frequency = freq
	p.AdministrationTimes = times
	p.HalfDose = in.HalfDose
	p.CustomFrequency = strings.TrimSpace(in.CustomFrequency)
	p.UnitsPerDose = units
	p.AsNeeded = in.AsNeeded
	p.TreatmentType = tt
	p.StartDate = start
	p.EndDate = end
	p.Tapering = in.Tapering
	p.PrescriptionID = strings.TrimSpace(in.PrescriptionID)
	if !p.Tapering {
		p.Phases = nil
	}
	return nil
}
