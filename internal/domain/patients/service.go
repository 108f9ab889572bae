package patients

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"deja/internal/platform/phone"
)

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrNotFound     = errors.New("patient not found")
	ErrForbidden    = errors.New("forbidden")
	ErrInUse        = errors.New("patient is referenced by medications or prescriptions")
)

type Service struct {
	repo Repository
	now  func() time.Time

	phoneRegion string
	guards      []DeleteGuard
	detachers   []Detacher
}

func NewService(repo Repository, phoneRegion string) *Service {
	return &Service{
		repo:        repo,
		now:         time.Now,
		phoneRegion: phoneRegion,
	}
}

// OnDelete registra las reglas de borrado que aportan otros módulos.
func (s *Service) OnDelete(guards []DeleteGuard, detachers []Detacher) {
	s.guards = guards
	s.detachers = detachers
}

type Input struct {
	Name             string
	BirthDate        *time.Time
	Sex              string
	HealthNotes      string
	Allergies        string
	EmergencyContact EmergencyContact
}

func (s *Service) Create(ctx context.Context, ownerUserID string, in Input) (Patient, error) {
	if strings.TrimSpace(ownerUserID) == "" {
		return Patient{}, ErrInvalidInput
	}

	now := s.now()
	p := Patient{
		ID:          uuid.NewString(),
		OwnerUserID: ownerUserID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.apply(&p, in); err != nil {
		return Patient{}, err
	}

	if err := s.repo.Create(ctx, p); err != nil {
		return Patient{}, err
	}
	return p, nil
}

// Update reemplaza el perfil completo (PUT). Solo el representante.
func (s *Service) Update(ctx context.Context, id, userID string, in Input) (Patient, error) {
	p, err := s.GetOwned(ctx, id, userID)
	if err != nil {
		return Patient{}, err
	}
	if err := s.apply(&p, in); err != nil {
		return Patient{}, err
	}
	p.UpdatedAt = s.now()

	if err := s.repo.Update(ctx, p); err != nil {
		return Patient{}, err
	}
	return p, nil
}

// Delete está restringido mientras haya posologías o recetas del paciente;
// los turnos de cuidadores se desvinculan antes de borrar.
func (s *Service) Delete(ctx context.Context, id, userID string) error {
	if _, err := s.GetOwned(ctx, id, userID); err != nil {
		return err
	}

	for _, g := range s.guards {
		inUse, err := g.PatientInUse(ctx, id)
		if err != nil {
			return fmt.Errorf("check patient usage: %w", err)
		}
		if inUse {
			return ErrInUse
		}
	}

	for _, d := range s.detachers {
		if err := d.DetachPatient(ctx, id); err != nil {
			return fmt.Errorf("detach patient: %w", err)
		}
	}

	return s.repo.Delete(ctx, id)
}

func (s *Service) GetByID(ctx context.Context, id string) (Patient, error) {
	p, err := s.repo.GetByID(ctx, strings.TrimSpace(id))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Patient{}, ErrNotFound
		}
		return Patient{}, err
	}
	return p, nil
}

// GetOwned devuelve el paciente solo si userID es su representante.
func (s *Service) GetOwned(ctx context.Context, id, userID string) (Patient, error) {
	p, err := s.GetByID(ctx, id)
	if err != nil {
		return Patient{}, err
	}
	if p.OwnerUserID != userID {
		return Patient{}, ErrForbidden
	}
	return p, nil
}

func (s *Service) ListByOwner(ctx context.Context, ownerUserID string) ([]Patient, error) {
	return s.repo.ListByOwner(ctx, ownerUserID)
}

func (s *Service) apply(p *Patient, in Input) error {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidInput)
	}

	sex := Sex(strings.ToLower(strings.TrimSpace(in.Sex)))
	if sex == "" {
		sex = SexUnknown
	}
	if !sex.Valid() {
		return fmt.Errorf("%w: sex must be male, female, other or unknown", ErrInvalidInput)
	}

	if in.BirthDate != nil && in.BirthDate.After(s.now()) {
		return fmt.Errorf("%w: birth_date is in the future", ErrInvalidInput)
	}

	contactPhone, err := phone.Normalize(in.EmergencyContact.Phone, s.phoneRegion)
	if err != nil {
		return fmt.Errorf("%w: emergency_contact.phone: %v", ErrInvalidInput, err)
	}

	p.Name = name
	p.BirthDate = in.BirthDate
	p.Sex = sex
	p.HealthNotes = strings.TrimSpace(in.HealthNotes)
	p.Allergies = strings.TrimSpace(in.Allergies)
	p.EmergencyContact = EmergencyContact{
		Name:     strings.TrimSpace(in.EmergencyContact.Name),
		Phone:    contactPhone,
		Relation: strings.TrimSpace(in.EmergencyContact.Relation),
	}
	return nil
}
