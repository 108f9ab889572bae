package memory

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"

	"deja/internal/domain/stock"
)

type movementRepo struct {
	mu   sync.RWMutex
	byID map[string]stock.Movement
}

func NewMovementsRepo() stock.Repository {
	return &movementRepo{
		byID: make(map[string]stock.Movement),
	}
}

func (r *movementRepo) Create(ctx context.Context, m stock.Movement) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if m.ID == "" {
		return errors.New("movement id required")
	}
	if _, exists := r.byID[m.ID]; exists {
		return errors.New("movement already exists")
	}
	r.byID[m.ID] = m
	return nil
}

func (r *movementRepo) Update(ctx context.Context, m stock.Movement) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byID[m.ID]; !exists {
		return stock.ErrNotFound
	}
	r.byID[m.ID] = m
	return nil
}

func (r *movementRepo) GetByID(ctx context.Context, id string) (stock.Movement, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	m, ok := r.byID[id]
	if !ok {
		return stock.Movement{}, stock.ErrNotFound
	}
	return m, nil
}

func (r *movementRepo) List(ctx context.Context, medicationID string, f stock.Filter) ([]stock.Movement, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	q := strings.ToLower(strings.TrimSpace(f.Query))
	out := make([]stock.Movement, 0)

	for _, m := range r.byID {
		if m.MedicationID != medicationID {
			continue
		}
		if f.ActiveOnly && !m.Active() {
			continue
		}
		if f.Direction != "" && m.Direction != f.Direction {
			continue
		}
		if f.From != nil && m.Date.Before(*f.From) {
			continue
		}
		if f.To != nil && m.Date.After(*f.To) {
			continue
		}
		if q != "" && !strings.Contains(strings.ToLower(m.Reason), q) {
			continue
		}
		out = append(out, m)
	}

	// más reciente primero
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.After(out[j].Date)
		}
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})

	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (r *movementRepo) DeleteByMedication(ctx context.Context, medicationID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, m := range r.byID {
		if m.MedicationID == medicationID {
			delete(r.byID, id)
		}
	}
	return nil
}
