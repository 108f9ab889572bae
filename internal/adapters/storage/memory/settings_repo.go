package memory

import (
	"context"
	"sort"
	"sync"

	"deja/internal/domain/settings"
	"deja/internal/ports/notify"
)

type settingsRepo struct {
	mu      sync.Mutex
	byOwner map[string]settings.Settings
}

func NewSettingsRepo() settings.Repository {
	return &settingsRepo{
		byOwner: make(map[string]settings.Settings),
	}
}

// GetOrCreate toma el lock de escritura: dos lecturas concurrentes del
// mismo dueño crean una sola fila.
func (r *settingsRepo) GetOrCreate(ctx context.Context, defaults settings.Settings) (settings.Settings, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.byOwner[defaults.OwnerUserID]; ok {
		return cloneSettings(s), false, nil
	}
	r.byOwner[defaults.OwnerUserID] = cloneSettings(defaults)
	return cloneSettings(defaults), true, nil
}

// Update hace upsert: el servicio siempre lee (y crea) antes de escribir.
func (r *settingsRepo) Update(ctx context.Context, s settings.Settings) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.byOwner[s.OwnerUserID] = cloneSettings(s)
	return nil
}

func (r *settingsRepo) ListOwners(ctx context.Context) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]string, 0, len(r.byOwner))
	for owner := range r.byOwner {
		out = append(out, owner)
	}
	sort.Strings(out)
	return out, nil
}

func cloneSettings(s settings.Settings) settings.Settings {
	s.Channels = append([]notify.Channel(nil), s.Channels...)
	return s
}
