package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"deja/internal/domain/accessgrants"
	"deja/internal/domain/medications"
	"deja/internal/domain/patients"
	"deja/internal/domain/prescriptions"
	"deja/internal/domain/settings"
	"deja/internal/domain/stock"
)

func TestPatientsRepo_NotFoundIsDomainError(t *testing.T) {
	ctx := context.Background()
	repo := NewPatientsRepo()

	_, err := repo.GetByID(ctx, "nope")
	assert.ErrorIs(t, err, patients.ErrNotFound)
	assert.ErrorIs(t, repo.Update(ctx, patients.Patient{ID: "nope"}), patients.ErrNotFound)
	assert.ErrorIs(t, repo.Delete(ctx, "nope"), patients.ErrNotFound)
}

func TestAccessGrantsRepo_ActiveGrantPicksMostRecent(t *testing.T) {
	ctx := context.Background()
	repo := NewAccessGrantsRepo()
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, repo.Create(ctx, accessgrants.Grant{ID: "g1", PatientID: "p1", GranteeUserID: "u2", Status: accessgrants.StatusActive, UpdatedAt: t0}))
	require.NoError(t, repo.Create(ctx, accessgrants.Grant{ID: "g2", PatientID: "p1", GranteeUserID: "u2", Status: accessgrants.StatusActive, UpdatedAt: t0.Add(time.Hour)}))
	require.NoError(t, repo.Create(ctx, accessgrants.Grant{ID: "g3", PatientID: "p1", GranteeUserID: "u2", Status: accessgrants.StatusRevoked, UpdatedAt: t0.Add(2 * time.Hour)}))

	g, err := repo.GetActiveGrant(ctx, "p1", "u2")
	require.NoError(t, err)
	assert.Equal(t, "g2", g.ID)

	_, err = repo.GetActiveGrant(ctx, "p1", "u3")
	assert.ErrorIs(t, err, accessgrants.ErrNotFound)
}

func TestAccessGrantsRepo_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	repo := NewAccessGrantsRepo()
	scopes := []accessgrants.Scope{accessgrants.ScopePatientRead}
	require.NoError(t, repo.Create(ctx, accessgrants.Grant{ID: "g1", PatientID: "p1", Scopes: scopes}))

	scopes[0] = accessgrants.ScopeStockWrite

	g, err := repo.GetByID(ctx, "g1")
	require.NoError(t, err)
	assert.Equal(t, []accessgrants.Scope{accessgrants.ScopePatientRead}, g.Scopes)
}

func TestRepos_ListOwnersDistinctSorted(t *testing.T) {
	ctx := context.Background()
	meds := NewMedicationsRepo()
	require.NoError(t, meds.Create(ctx, medications.Medication{ID: "m1", OwnerUserID: "u2"}))
	require.NoError(t, meds.Create(ctx, medications.Medication{ID: "m2", OwnerUserID: "u1"}))
	require.NoError(t, meds.Create(ctx, medications.Medication{ID: "m3", OwnerUserID: "u2"}))

	got, err := meds.ListOwners(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"u1", "u2"}, got)

	rx := NewPrescriptionsRepo()
	require.NoError(t, rx.Create(ctx, prescriptions.Prescription{ID: "r1", OwnerUserID: "u3"}))
	require.NoError(t, rx.Create(ctx, prescriptions.Prescription{ID: "r2", OwnerUserID: "u3"}))

	got, err = rx.ListOwners(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"u3"}, got)
}

func TestPosologiesRepo_PairIsUnique(t *testing.T) {
	ctx := context.Background()
	repo := NewPosologiesRepo()

	require.NoError(t, repo.Create(ctx, medications.Posology{ID: "a", MedicationID: "m1", PatientID: "p1"}))
	require.NoError(t, repo.Create(ctx, medications.Posology{ID: "b", MedicationID: "m1", PatientID: "p2"}))
	assert.ErrorIs(t, repo.Create(ctx, medications.Posology{ID: "c", MedicationID: "m1", PatientID: "p1"}), medications.ErrConflict)

	phases := []medications.Phase{{Kind: medications.PhaseDecrease, StartDate: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}}
	require.NoError(t, repo.ReplacePhases(ctx, "a", phases))

	// Update no pisa las fases
	require.NoError(t, repo.Update(ctx, medications.Posology{ID: "a", MedicationID: "m1", PatientID: "p1", HalfDose: true}))
	p, err := repo.Get(ctx, "m1", "p1")
	require.NoError(t, err)
	assert.True(t, p.HalfDose)
	assert.Len(t, p.Phases, 1)

	other, err := repo.Get(ctx, "m1", "p2")
	require.NoError(t, err)
	assert.Empty(t, other.Phases)

	require.NoError(t, repo.DeleteByMedication(ctx, "m1"))
	items, err := repo.ListByMedication(ctx, "m1")
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestMovementsRepo_ListFiltersAndOrder(t *testing.T) {
	ctx := context.Background()
	repo := NewMovementsRepo()
	d := func(day int) time.Time { return time.Date(2026, 3, day, 0, 0, 0, 0, time.UTC) }
	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	mk := func(id string, dir stock.Direction, date time.Time, reason string, status stock.MovementStatus, offset time.Duration) stock.Movement {
		return stock.Movement{
			ID: id, MedicationID: "m1", Direction: dir, Quantity: decimal.NewFromInt(1),
			Date: date, Reason: reason, Status: status, CreatedAt: created.Add(offset),
		}
	}
	require.NoError(t, repo.Create(ctx, mk("1", stock.DirectionIn, d(1), "Compra farmacia", stock.MovementActive, 0)))
	require.NoError(t, repo.Create(ctx, mk("2", stock.DirectionOut, d(2), "dosis", stock.MovementActive, 0)))
	require.NoError(t, repo.Create(ctx, mk("3", stock.DirectionOut, d(2), "dosis", stock.MovementVoided, time.Minute)))
	require.NoError(t, repo.Create(ctx, mk("4", stock.DirectionIn, d(5), "compra online", stock.MovementActive, 0)))
	require.NoError(t, repo.Create(ctx, stock.Movement{ID: "x", MedicationID: "m2", Date: d(3)}))

	all, err := repo.List(ctx, "m1", stock.Filter{})
	require.NoError(t, err)
	ids := make([]string, 0, len(all))
	for _, m := range all {
		ids = append(ids, m.ID)
	}
	assert.Equal(t, []string{"4", "3", "2", "1"}, ids)

	active, err := repo.List(ctx, "m1", stock.Filter{ActiveOnly: true, Direction: stock.DirectionOut})
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "2", active[0].ID)

	from, to := d(1), d(2)
	ranged, err := repo.List(ctx, "m1", stock.Filter{From: &from, To: &to, Query: "COMPRA"})
	require.NoError(t, err)
	require.Len(t, ranged, 1)
	assert.Equal(t, "1", ranged[0].ID)

	limited, err := repo.List(ctx, "m1", stock.Filter{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}

func TestSettingsRepo_GetOrCreateOnce(t *testing.T) {
	ctx := context.Background()
	repo := NewSettingsRepo()
	defaults := settings.Defaults("u1", time.Now())

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		created int
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, c, err := repo.GetOrCreate(ctx, defaults)
			assert.NoError(t, err)
			if c {
				mu.Lock()
				created++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, created)
	owners, err := repo.ListOwners(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"u1"}, owners)
}
