package memory

import (
	"context"
	"errors"
	"sync"
	"time"

	"deja/internal/domain/caregivers"
)

type caregiverRepo struct {
	mu   sync.RWMutex
	byID map[string]caregivers.Caregiver
}

func NewCaregiversRepo() caregivers.CaregiverRepository {
	return &caregiverRepo{
		byID: make(map[string]caregivers.Caregiver),
	}
}

func (r *caregiverRepo) Create(ctx context.Context, c caregivers.Caregiver) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if c.ID == "" {
		return errors.New("caregiver id required")
	}
	if _, exists := r.byID[c.ID]; exists {
		return errors.New("caregiver already exists")
	}
	r.byID[c.ID] = c
	return nil
}

func (r *caregiverRepo) Update(ctx context.Context, c caregivers.Caregiver) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byID[c.ID]; !exists {
		return caregivers.ErrNotFound
	}
	r.byID[c.ID] = c
	return nil
}

func (r *caregiverRepo) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byID[id]; !exists {
		return caregivers.ErrNotFound
	}
	delete(r.byID, id)
	return nil
}

func (r *caregiverRepo) GetByID(ctx context.Context, id string) (caregivers.Caregiver, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.byID[id]
	if !ok {
		return caregivers.Caregiver{}, caregivers.ErrNotFound
	}
	return c, nil
}

func (r *caregiverRepo) ListByOwner(ctx context.Context, ownerUserID string) ([]caregivers.Caregiver, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]caregivers.Caregiver, 0)
	for _, c := range r.byID {
		if c.OwnerUserID == ownerUserID {
			out = append(out, c)
		}
	}
	sortByCreated(out, func(c caregivers.Caregiver) (string, int64) { return c.ID, c.CreatedAt.UnixNano() })
	return out, nil
}

type scheduleRepo struct {
	mu   sync.RWMutex
	byID map[string]caregivers.Schedule
}

func NewSchedulesRepo() caregivers.ScheduleRepository {
	return &scheduleRepo{
		byID: make(map[string]caregivers.Schedule),
	}
}

func (r *scheduleRepo) Create(ctx context.Context, s caregivers.Schedule) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s.ID == "" {
		return errors.New("schedule id required")
	}
	if _, exists := r.byID[s.ID]; exists {
		return errors.New("schedule already exists")
	}
	r.byID[s.ID] = cloneSchedule(s)
	return nil
}

func (r *scheduleRepo) Update(ctx context.Context, s caregivers.Schedule) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byID[s.ID]; !exists {
		return caregivers.ErrNotFound
	}
	r.byID[s.ID] = cloneSchedule(s)
	return nil
}

func (r *scheduleRepo) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byID[id]; !exists {
		return caregivers.ErrNotFound
	}
	delete(r.byID, id)
	return nil
}

func (r *scheduleRepo) GetByID(ctx context.Context, id string) (caregivers.Schedule, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.byID[id]
	if !ok {
		return caregivers.Schedule{}, caregivers.ErrNotFound
	}
	return cloneSchedule(s), nil
}

func (r *scheduleRepo) ListByOwner(ctx context.Context, ownerUserID string) ([]caregivers.Schedule, error) {
	return r.filter(func(s caregivers.Schedule) bool { return s.OwnerUserID == ownerUserID }), nil
}

func (r *scheduleRepo) ListByPatient(ctx context.Context, patientID string) ([]caregivers.Schedule, error) {
	return r.filter(func(s caregivers.Schedule) bool { return s.HasPatient(patientID) }), nil
}

func (r *scheduleRepo) DeleteByCaregiver(ctx context.Context, caregiverID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, s := range r.byID {
		if s.CaregiverID == caregiverID {
			delete(r.byID, id)
		}
	}
	return nil
}

func (r *scheduleRepo) filter(keep func(caregivers.Schedule) bool) []caregivers.Schedule {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]caregivers.Schedule, 0)
	for _, s := range r.byID {
		if keep(s) {
			out = append(out, cloneSchedule(s))
		}
	}
	sortByCreated(out, func(s caregivers.Schedule) (string, int64) { return s.ID, s.CreatedAt.UnixNano() })
	return out
}

func cloneSchedule(s caregivers.Schedule) caregivers.Schedule {
	s.PatientIDs = append([]string(nil), s.PatientIDs...)
	s.Days = append([]time.Weekday(nil), s.Days...)
	return s
}
