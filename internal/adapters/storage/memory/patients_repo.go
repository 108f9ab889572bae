package memory

import (
	"context"
	"errors"
	"sync"

	"deja/internal/domain/patients"
)

type patientRepo struct {
	mu   sync.RWMutex
	byID map[string]patients.Patient
}

func NewPatientsRepo() patients.Repository {
	return &patientRepo{
		byID: make(map[string]patients.Patient),
	}
}

func (r *patientRepo) Create(ctx context.Context, p patients.Patient) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if p.ID == "" {
		return errors.New("patient id required")
	}
	if _, exists := r.byID[p.ID]; exists {
		return errors.New("patient already exists")
	}
	r.byID[p.ID] = p
	return nil
}

func (r *patientRepo) Update(ctx context.Context, p patients.Patient) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byID[p.ID]; !exists {
		return patients.ErrNotFound
	}
	r.byID[p.ID] = p
	return nil
}

func (r *patientRepo) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byID[id]; !exists {
		return patients.ErrNotFound
	}
	delete(r.byID, id)
	return nil
}

func (r *patientRepo) GetByID(ctx context.Context, id string) (patients.Patient, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.byID[id]
	if !ok {
		return patients.Patient{}, patients.ErrNotFound
	}
	return p, nil
}

func (r *patientRepo) ListByOwner(ctx context.Context, ownerUserID string) ([]patients.Patient, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]patients.Patient, 0)
	for _, p := range r.byID {
		if p.OwnerUserID == ownerUserID {
			out = append(out, p)
		}
	}
	sortByCreated(out, func(p patients.Patient) (string, int64) { return p.ID, p.CreatedAt.UnixNano() })
	return out, nil
}
