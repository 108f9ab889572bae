package memory

import (
	"context"
	"errors"
	"sync"

	"deja/internal/domain/accessgrants"
)

type grantRepo struct {
	mu   sync.RWMutex
	byID map[string]accessgrants.Grant
}

func NewAccessGrantsRepo() accessgrants.Repository {
	return &grantRepo{
		byID: make(map[string]accessgrants.Grant),
	}
}

func (r *grantRepo) Create(ctx context.Context, g accessgrants.Grant) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if g.ID == "" {
		return errors.New("grant id required")
	}
	if _, exists := r.byID[g.ID]; exists {
		return errors.New("grant already exists")
	}
	r.byID[g.ID] = cloneGrant(g)
	return nil
}

func (r *grantRepo) Update(ctx context.Context, g accessgrants.Grant) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byID[g.ID]; !exists {
		return accessgrants.ErrNotFound
	}
	r.byID[g.ID] = cloneGrant(g)
	return nil
}

func (r *grantRepo) GetByID(ctx context.Context, id string) (accessgrants.Grant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	g, ok := r.byID[id]
	if !ok {
		return accessgrants.Grant{}, accessgrants.ErrNotFound
	}
	return cloneGrant(g), nil
}

func (r *grantRepo) ListByPatient(ctx context.Context, patientID string) ([]accessgrants.Grant, error) {
	return r.filter(func(g accessgrants.Grant) bool { return g.PatientID == patientID }), nil
}

func (r *grantRepo) ListByGrantee(ctx context.Context, granteeUserID string) ([]accessgrants.Grant, error) {
	return r.filter(func(g accessgrants.Grant) bool { return g.GranteeUserID == granteeUserID }), nil
}

// Si hubiera más de un grant activo para el par, gana el más reciente
// por UpdatedAt y luego CreatedAt.
func (r *grantRepo) GetActiveGrant(ctx context.Context, patientID, granteeUserID string) (accessgrants.Grant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var winner accessgrants.Grant
	has := false

	for _, g := range r.byID {
		if g.PatientID != patientID || g.GranteeUserID != granteeUserID {
			continue
		}
		if g.Status != accessgrants.StatusActive {
			continue
		}
		if !has ||
			g.UpdatedAt.After(winner.UpdatedAt) ||
			(g.UpdatedAt.Equal(winner.UpdatedAt) && g.CreatedAt.After(winner.CreatedAt)) {
			winner = g
			has = true
		}
	}

	if !has {
		return accessgrants.Grant{}, accessgrants.ErrNotFound
	}
	return cloneGrant(winner), nil
}

func (r *grantRepo) filter(keep func(accessgrants.Grant) bool) []accessgrants.Grant {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]accessgrants.Grant, 0)
	for _, g := range r.byID {
		if keep(g) {
			out = append(out, cloneGrant(g))
		}
	}
	sortByCreated(out, func(g accessgrants.Grant) (string, int64) { return g.ID, g.CreatedAt.UnixNano() })
	return out
}

func cloneGrant(g accessgrants.Grant) accessgrants.Grant {
	g.Scopes = append([]accessgrants.Scope(nil), g.Scopes...)
	return g
}
