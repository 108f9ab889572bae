package memory

import (
	"context"
	"errors"
	"sort"
	"sync"

	"deja/internal/domain/medications"
)

type medicationRepo struct {
	mu   sync.RWMutex
	byID map[string]medications.Medication
}

func NewMedicationsRepo() medications.Repository {
	return &medicationRepo{
		byID: make(map[string]medications.Medication),
	}
}

func (r *medicationRepo) Create(ctx context.Context, m medications.Medication) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if m.ID == "" {
		return errors.New("medication id required")
	}
	if _, exists := r.byID[m.ID]; exists {
		return errors.New("medication already exists")
	}
	r.byID[m.ID] = m
	return nil
}

func (r *medicationRepo) Update(ctx context.Context, m medications.Medication) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byID[m.ID]; !exists {
		return medications.ErrNotFound
	}
	r.byID[m.ID] = m
	return nil
}

func (r *medicationRepo) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byID[id]; !exists {
		return medications.ErrNotFound
	}
	delete(r.byID, id)
	return nil
}

func (r *medicationRepo) ListOwners(ctx context.Context) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[string]struct{})
	out := make([]string, 0)
	for _, m := range r.byID {
		if _, ok := seen[m.OwnerUserID]; ok {
			continue
		}
		seen[m.OwnerUserID] = struct{}{}
		out = append(out, m.OwnerUserID)
	}
	sort.Strings(out)
	return out, nil
}

func (r *medicationRepo) GetByID(ctx context.Context, id string) (medications.Medication, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	m, ok := r.byID[id]
	if !ok {
		return medications.Medication{}, medications.ErrNotFound
	}
	return m, nil
}

func (r *medicationRepo) ListByOwner(ctx context.Context, ownerUserID string) ([]medications.Medication, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]medications.Medication, 0)
	for _, m := range r.byID {
		if m.OwnerUserID == ownerUserID {
			out = append(out, m)
		}
	}
	sortByCreated(out, func(m medications.Medication) (string, int64) { return m.ID, m.CreatedAt.UnixNano() })
	return out, nil
}

// posologyRepo indexa por el par (medicationID, patientID), que es único.
type posologyRepo struct {
	mu     sync.RWMutex
	byPair map[pairKey]medications.Posology
}

type pairKey struct {
	medicationID string
	patientID    string
}

func NewPosologiesRepo() medications.PosologyRepository {
	return &posologyRepo{
		byPair: make(map[pairKey]medications.Posology),
	}
}

func (r *posologyRepo) Create(ctx context.Context, p medications.Posology) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if p.ID == "" {
		return errors.New("posology id required")
	}
	k := pairKey{p.MedicationID, p.PatientID}
	if _, exists := r.byPair[k]; exists {
		return medications.ErrConflict
	}
	r.byPair[k] = clonePosology(p)
	return nil
}

func (r *posologyRepo) Update(ctx context.Context, p medications.Posology) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	k := pairKey{p.MedicationID, p.PatientID}
	cur, exists := r.byPair[k]
	if !exists {
		return medications.ErrNotFound
	}
	// las fases se reemplazan solo vía ReplacePhases
	p.Phases = cur.Phases
	r.byPair[k] = clonePosology(p)
	return nil
}

func (r *posologyRepo) Delete(ctx context.Context, medicationID, patientID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	k := pairKey{medicationID, patientID}
	if _, exists := r.byPair[k]; !exists {
		return medications.ErrNotFound
	}
	delete(r.byPair, k)
	return nil
}

func (r *posologyRepo) Get(ctx context.Context, medicationID, patientID string) (medications.Posology, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.byPair[pairKey{medicationID, patientID}]
	if !ok {
		return medications.Posology{}, medications.ErrNotFound
	}
	return clonePosology(p), nil
}

func (r *posologyRepo) ListByMedication(ctx context.Context, medicationID string) ([]medications.Posology, error) {
	return r.filter(func(p medications.Posology) bool { return p.MedicationID == medicationID }), nil
}

func (r *posologyRepo) ListByPatient(ctx context.Context, patientID string) ([]medications.Posology, error) {
	return r.filter(func(p medications.Posology) bool { return p.PatientID == patientID }), nil
}

func (r *posologyRepo) ReplacePhases(ctx context.Context, posologyID string, phases []medications.Phase) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for k, p := range r.byPair {
		if p.ID == posologyID {
			p.Phases = append([]medications.Phase(nil), phases...)
			r.byPair[k] = p
			return nil
		}
	}
	return medications.ErrNotFound
}

func (r *posologyRepo) DeleteByMedication(ctx context.Context, medicationID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for k := range r.byPair {
		if k.medicationID == medicationID {
			delete(r.byPair, k)
		}
	}
	return nil
}

func (r *posologyRepo) filter(keep func(medications.Posology) bool) []medications.Posology {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]medications.Posology, 0)
	for _, p := range r.byPair {
		if keep(p) {
			out = append(out, clonePosology(p))
		}
	}
	sortByCreated(out, func(p medications.Posology) (string, int64) { return p.ID, p.CreatedAt.UnixNano() })
	return out
}

func clonePosology(p medications.Posology) medications.Posology {
	p.AdministrationTimes = append([]string(nil), p.AdministrationTimes...)
	p.Phases = append([]medications.Phase(nil), p.Phases...)
	return p
}
