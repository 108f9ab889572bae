package memory

import (
	"context"
	"errors"
	"sort"
	"sync"

	"deja/internal/domain/prescriptions"
)

type prescriptionRepo struct {
	mu   sync.RWMutex
	byID map[string]prescriptions.Prescription
}

func NewPrescriptionsRepo() prescriptions.Repository {
	return &prescriptionRepo{
		byID: make(map[string]prescriptions.Prescription),
	}
}

func (r *prescriptionRepo) Create(ctx context.Context, p prescriptions.Prescription) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if p.ID == "" {
		return errors.New("prescription id required")
	}
	if _, exists := r.byID[p.ID]; exists {
		return errors.New("prescription already exists")
	}
	r.byID[p.ID] = clonePrescription(p)
	return nil
}

func (r *prescriptionRepo) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byID[id]; !exists {
		return prescriptions.ErrNotFound
	}
	delete(r.byID, id)
	return nil
}

func (r *prescriptionRepo) ListOwners(ctx context.Context) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[string]struct{})
	out := make([]string, 0)
	for _, p := range r.byID {
		if _, ok := seen[p.OwnerUserID]; ok {
			continue
		}
		seen[p.OwnerUserID] = struct{}{}
		out = append(out, p.OwnerUserID)
	}
	sort.Strings(out)
	return out, nil
}

func (r *prescriptionRepo) GetByID(ctx context.Context, id string) (prescriptions.Prescription, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.byID[id]
	if !ok {
		return prescriptions.Prescription{}, prescriptions.ErrNotFound
	}
	return clonePrescription(p), nil
}

func (r *prescriptionRepo) ListByOwner(ctx context.Context, ownerUserID string) ([]prescriptions.Prescription, error) {
	return r.filter(func(p prescriptions.Prescription) bool { return p.OwnerUserID == ownerUserID }), nil
}

func (r *prescriptionRepo) ListByPatient(ctx context.Context, patientID string) ([]prescriptions.Prescription, error) {
	return r.filter(func(p prescriptions.Prescription) bool { return p.PatientID == patientID }), nil
}

func (r *prescriptionRepo) filter(keep func(prescriptions.Prescription) bool) []prescriptions.Prescription {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]prescriptions.Prescription, 0)
	for _, p := range r.byID {
		if keep(p) {
			out = append(out, clonePrescription(p))
		}
	}
	sortByCreated(out, func(p prescriptions.Prescription) (string, int64) { return p.ID, p.CreatedAt.UnixNano() })
	return out
}

func clonePrescription(p prescriptions.Prescription) prescriptions.Prescription {
	p.Links = append([]prescriptions.Link(nil), p.Links...)
	return p
}
