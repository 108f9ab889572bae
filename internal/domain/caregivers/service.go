package caregivers

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"deja/internal/platform/phone"
)

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrNotFound     = errors.New("not found")
	ErrForbidden    = errors.New("forbidden")
)

// PatientOwnerLookup evita importar el paquete patients.
type PatientOwnerLookup interface {
	OwnerOf(ctx context.Context, patientID string) (string, error)
}

type Service struct {
	caregivers CaregiverRepository
	schedules  ScheduleRepository
	patients   PatientOwnerLookup

	phoneRegion string
	log         zerolog.Logger
	now         func() time.Time
}

func NewService(caregivers CaregiverRepository, schedules ScheduleRepository, patients PatientOwnerLookup, phoneRegion string, log zerolog.Logger) *Service {
	return &Service{
		caregivers:  caregivers,
		schedules:   schedules,
		patients:    patients,
		phoneRegion: phoneRegion,
		log:         log,
		now:         time.Now,
	}
}

// -------------------------
// Caregivers
// -------------------------

type CaregiverInput struct {
	Name   string
	Phone  string
	Email  string
	Role   string
	Notes  string
	Active *bool // nil => true
}

func (s *Service) CreateCaregiver(ctx context.Context, ownerUserID string, in CaregiverInput) (Caregiver, error) {
	if strings.TrimSpace(ownerUserID) == "" {
		return Caregiver{}, ErrInvalidInput
	}
	now := s.now()
	c := Caregiver{
		ID:          uuid.NewString(),
		OwnerUserID: ownerUserID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.applyCaregiver(&c, in); err != nil {
		return Caregiver{}, err
	}
	if err := s.caregivers.Create(ctx, c); err != nil {
		return Caregiver{}, err
	}
	return c, nil
}

func (s *Service) UpdateCaregiver(ctx context.Context, id, userID string, in CaregiverInput) (Caregiver, error) {
	c, err := s.GetCaregiver(ctx, id, userID)
	if err != nil {
		return Caregiver{}, err
	}
	if err := s.applyCaregiver(&c, in); err != nil {
		return Caregiver{}, err
	}
	c.UpdatedAt = s.now()
	if err := s.caregivers.Update(ctx, c); err != nil {
		return Caregiver{}, err
	}
	return c, nil
}

// DeleteCaregiver borra también sus turnos.
func (s *Service) DeleteCaregiver(ctx context.Context, id, userID string) error {
	if _, err := s.GetCaregiver(ctx, id, userID); err != nil {
		return err
	}
	if err := s.schedules.DeleteByCaregiver(ctx, id); err != nil {
		return fmt.Errorf("delete caregiver schedules: %w", err)
	}
	return s.caregivers.Delete(ctx, id)
}

func (s *Service) GetCaregiver(ctx context.Context, id, userID string) (Caregiver, error) {
	c, err := s.caregivers.GetByID(ctx, strings.TrimSpace(id))
	if err != nil {
		return Caregiver{}, err
	}
	if c.OwnerUserID != userID {
		return Caregiver{}, ErrForbidden
	}
	return c, nil
}

func (s *Service) ListCaregivers(ctx context.Context, ownerUserID string) ([]Caregiver, error) {
	return s.caregivers.ListByOwner(ctx, ownerUserID)
}

func (s *Service) applyCaregiver(c *Caregiver, in CaregiverInput) error {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidInput)
	}

	p, err := phone.Normalize(in.Phone, s.phoneRegion)
	if err != nil {
		return fmt.Errorf("%w: phone: %v", ErrInvalidInput, err)
	}

	email := strings.TrimSpace(in.Email)
	if email != "" {
		addr, err := mail.ParseAddress(email)
		if err != nil {
			return fmt.Errorf("%w: email is not valid", ErrInvalidInput)
		}
		email = addr.Address
	}

	active := true
	if in.Active != nil {
		active = *in.Active
	}

	c.Name = name
	c.Phone = p
	c.Email = email
	c.Role = strings.ToLower(strings.TrimSpace(in.Role))
	c.Notes = strings.TrimSpace(in.Notes)
	c.Active = active
	return nil
}

// -------------------------
// Schedules
// -------------------------

type ScheduleInput struct {
	CaregiverID string
	PatientIDs  []string
	Days        []time.Weekday
	Start       Clock
	End         Clock
	Notes       string
}

type ScheduleFilter struct {
	CaregiverID string
	PatientID   string
}

func (f ScheduleFilter) match(s Schedule) bool {
	if f.CaregiverID != "" && s.CaregiverID != f.CaregiverID {
		return false
	}
	if f.PatientID != "" && !s.HasPatient(f.PatientID) {
		return false
	}
	return true
}

func (s *Service) CreateSchedule(ctx context.Context, ownerUserID string, in ScheduleInput) (Schedule, error) {
	if strings.TrimSpace(ownerUserID) == "" {
		return Schedule{}, ErrInvalidInput
	}
	now := s.now()
	sc := Schedule{
		ID:          uuid.NewString(),
		OwnerUserID: ownerUserID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.applySchedule(ctx, &sc, in); err != nil {
		return Schedule{}, err
	}
	if err := s.schedules.Create(ctx, sc); err != nil {
		return Schedule{}, err
	}
	return sc, nil
}

func (s *Service) UpdateSchedule(ctx context.Context, id, userID string, in ScheduleInput) (Schedule, error) {
	sc, err := s.GetSchedule(ctx, id, userID)
	if err != nil {
		return Schedule{}, err
	}
	if err := s.applySchedule(ctx, &sc, in); err != nil {
		return Schedule{}, err
	}
	sc.UpdatedAt = s.now()
	if err := s.schedules.Update(ctx, sc); err != nil {
		return Schedule{}, err
	}
	return sc, nil
}

func (s *Service) DeleteSchedule(ctx context.Context, id, userID string) error {
	if _, err := s.GetSchedule(ctx, id, userID); err != nil {
		return err
	}
	return s.schedules.Delete(ctx, id)
}

func (s *Service) GetSchedule(ctx context.Context, id, userID string) (Schedule, error) {
	sc, err := s.schedules.GetByID(ctx, strings.TrimSpace(id))
	if err != nil {
		return Schedule{}, err
	}
	if sc.OwnerUserID != userID {
		return Schedule{}, ErrForbidden
	}
	return sc, nil
}

func (s *Service) ListSchedules(ctx context.Context, ownerUserID string, f ScheduleFilter) ([]Schedule, error) {
	items, err := s.schedules.ListByOwner(ctx, ownerUserID)
	if err != nil {
		return nil, err
	}
	out := make([]Schedule, 0, len(items))
	for _, sc := range items {
		if f.match(sc) {
			out = append(out, sc)
		}
	}
	return out, nil
}

// Week arma el calendario semanal de los turnos del representante.
func (s *Service) Week(ctx context.Context, ownerUserID string, f ScheduleFilter, hourHeight float64) ([]Segment, error) {
	items, err := s.ListSchedules(ctx, ownerUserID, f)
	if err != nil {
		return nil, err
	}
	return WeekLayout(items, hourHeight), nil
}

// Today devuelve los segmentos del día de la semana de now.
func (s *Service) Today(ctx context.Context, ownerUserID string) ([]Segment, error) {
	items, err := s.schedules.ListByOwner(ctx, ownerUserID)
	if err != nil {
		return nil, err
	}
	return DayLayout(items, s.now().Weekday(), DefaultHourHeight), nil
}

// DetachPatient quita al paciente de todos sus turnos;
// un turno que queda sin pacientes se borra.
func (s *Service) DetachPatient(ctx context.Context, patientID string) error {
	items, err := s.schedules.ListByPatient(ctx, patientID)
	if err != nil {
		return err
	}

	for _, sc := range items {
		remaining := make([]string, 0, len(sc.PatientIDs))
		for _, id := range sc.PatientIDs {
			if id != patientID {
				remaining = append(remaining, id)
			}
		}

		if len(remaining) == 0 {
			if err := s.schedules.Delete(ctx, sc.ID); err != nil {
				return err
			}
			s.log.Info().Str("schedule_id", sc.ID).Str("patient_id", patientID).Msg("schedule removed with its last patient")
			continue
		}

		sc.PatientIDs = remaining
		sc.UpdatedAt = s.now()
		if err := s.schedules.Update(ctx, sc); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) applySchedule(ctx context.Context, sc *Schedule, in ScheduleInput) error {
	caregiverID := strings.TrimSpace(in.CaregiverID)
	if caregiverID == "" {
		return fmt.Errorf("%w: caregiver_id is required", ErrInvalidInput)
	}
	c, err := s.caregivers.GetByID(ctx, caregiverID)
	if err != nil || c.OwnerUserID != sc.OwnerUserID {
		return fmt.Errorf("%w: unknown caregiver_id", ErrInvalidInput)
	}

	patientIDs := uniqueStrings(in.PatientIDs)
	if len(patientIDs) == 0 {
		return fmt.Errorf("%w: at least one patient is required", ErrInvalidInput)
	}
	for _, id := range patientIDs {
		owner, err := s.patients.OwnerOf(ctx, id)
		if err != nil || owner != sc.OwnerUserID {
			return fmt.Errorf("%w: unknown patient %s", ErrInvalidInput, id)
		}
	}

	days := uniqueDays(in.Days)
	if len(days) == 0 {
		return fmt.Errorf("%w: at least one day is required", ErrInvalidInput)
	}
	if in.Start < 0 || in.Start > EndOfDay || in.End < 0 || in.End > EndOfDay {
		return fmt.Errorf("%w: start/end out of range", ErrInvalidInput)
	}

	sc.CaregiverID = caregiverID
	sc.PatientIDs = patientIDs
	sc.Days = days
	sc.Start = in.Start
	sc.End = in.End
	sc.Notes = strings.TrimSpace(in.Notes)
	return nil
}

func uniqueStrings(in []string) []string {
	seen := map[string]struct{}{}
	out := make([]string, 0, len(in))
	for _, raw := range in {
		v := strings.TrimSpace(raw)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

func uniqueDays(in []time.Weekday) []time.Weekday {
	seen := map[time.Weekday]struct{}{}
	out := make([]time.Weekday, 0, len(in))
	for _, d := range in {
		if d < time.Sunday || d > time.Saturday {
			continue
		}
		if _, ok := seen[d]; ok {
			continue
		}
		seen[d] = struct{}{}
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return weekIndex(out[i]) < weekIndex(out[j]) })
	return out
}
