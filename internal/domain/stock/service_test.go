package stock

import (
	"context"
	"errors"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"deja/internal/domain/accessgrants"
	"deja/internal/domain/medications"
	"deja/internal/platform/metrics"
)

type fakeRepo struct{ byID map[string]Movement }

func (f *fakeRepo) Create(_ context.Context, m Movement) error { f.byID[m.ID] = m; return nil }
func (f *fakeRepo) Update(_ context.Context, m Movement) error { f.byID[m.ID] = m; return nil }
func (f *fakeRepo) GetByID(_ context.Context, id string) (Movement, error) {
	m, ok := f.byID[id]
	if !ok {
		return Movement{}, ErrNotFound
	}
	return m, nil
}
func (f *fakeRepo) List(_ context.Context, medID string, flt Filter) ([]Movement, error) {
	out := []Movement{}
	for _, m := range f.byID {
		if m.MedicationID != medID {
			continue
		}
		if flt.ActiveOnly && !m.Active() {
			continue
		}
		if flt.Direction != "" && m.Direction != flt.Direction {
			continue
		}
		if flt.Query != "" && !strings.Contains(strings.ToLower(m.Reason), strings.ToLower(flt.Query)) {
			continue
		}
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.After(out[j].Date) })
	if flt.Limit > 0 && len(out) > flt.Limit {
		out = out[:flt.Limit]
	}
	return out, nil
}
func (f *fakeRepo) DeleteByMedication(_ context.Context, medID string) error {
	for id, m := range f.byID {
		if m.MedicationID == medID {
			delete(f.byID, id)
		}
	}
	return nil
}

type fakeCatalog struct {
	meds       map[string]medications.Medication
	posologies map[string][]medications.Posology
}

func (f *fakeCatalog) GetByID(_ context.Context, id string) (medications.Medication, error) {
	m, ok := f.meds[id]
	if !ok {
		return medications.Medication{}, medications.ErrNotFound
	}
	return m, nil
}
func (f *fakeCatalog) ListByOwner(_ context.Context, owner string) ([]medications.Medication, error) {
	out := []medications.Medication{}
	for _, m := range f.meds {
		if m.OwnerUserID == owner {
			out = append(out, m)
		}
	}
	return out, nil
}
func (f *fakeCatalog) ListPosologiesByMedication(_ context.Context, id string) ([]medications.Posology, error) {
	return f.posologies[id], nil
}

type fixedThresholds struct{ critical, low int }

func (f fixedThresholds) StockThresholds(context.Context, string) (int, int, error) {
	return f.critical, f.low, nil
}

// grants: patientID -> grantee -> scope
type fakeGrants map[string]map[string]accessgrants.Scope

func (f fakeGrants) Authorize(_ context.Context, owner, patientID, userID string, scope accessgrants.Scope) error {
	if owner == userID {
		return nil
	}
	if got, ok := f[patientID][userID]; ok && got == scope {
		return nil
	}
	return errors.New("forbidden")
}

func newTestService() (*Service, *fakeCatalog) {
	catalog := &fakeCatalog{
		meds: map[string]medications.Medication{
			"med-1": {ID: "med-1", OwnerUserID: "u1", Name: "Losartana", BoxQuantity: decimal.NewFromInt(30)},
			"med-2": {ID: "med-2", OwnerUserID: "u1", Name: "Vitamina D", BoxQuantity: decimal.NewFromInt(10)},
		},
		posologies: map[string][]medications.Posology{
			"med-1": {{MedicationID: "med-1", PatientID: "pat-1", Frequency: medications.FrequencyTwiceDaily, UnitsPerDose: decimal.NewFromInt(1)}},
		},
	}
	svc := NewService(&fakeRepo{byID: map[string]Movement{}}, catalog, fixedThresholds{3, 7},
		fakeGrants{"pat-1": {
			"helper": accessgrants.ScopeStockWrite,
			"reader": accessgrants.ScopeMedicationsRead,
		}}, metrics.New(), zerolog.Nop())
	svc.now = func() time.Time { return time.Date(2025, 1, 15, 9, 0, 0, 0, time.UTC) }
	return svc, catalog
}

func qty(v int64) *decimal.Decimal {
	d := decimal.NewFromInt(v)
	return &d
}

func TestRegisterMovement(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	m, err := svc.RegisterMovement(ctx, "u1", "med-1", MovementInput{Direction: "in", Boxes: qty(2), Reason: "farmácia"})
	require.NoError(t, err)
	assert.True(t, m.Quantity.Equal(decimal.NewFromInt(60)), "boxes × box quantity")
	assert.Equal(t, time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC), m.Date)
	assert.Equal(t, "u1", m.ActorUserID)

	_, err = svc.RegisterMovement(ctx, "u1", "med-1", MovementInput{Direction: "sideways", Quantity: qty(1)})
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = svc.RegisterMovement(ctx, "u1", "med-1", MovementInput{Direction: "out", Quantity: qty(0)})
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = svc.RegisterMovement(ctx, "u1", "med-1", MovementInput{Direction: "out", Quantity: qty(1), Boxes: qty(1)})
	assert.ErrorIs(t, err, ErrInvalidInput)
	zero := 0
	_, err = svc.RegisterMovement(ctx, "u1", "med-1", MovementInput{Direction: "in", Quantity: qty(1), Installments: &zero})
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = svc.RegisterMovement(ctx, "u1", "missing", MovementInput{Direction: "in", Quantity: qty(1)})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRegisterMovementWithGrant(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	m, err := svc.RegisterMovement(ctx, "helper", "med-1", MovementInput{Direction: "out", Quantity: qty(2)})
	require.NoError(t, err)
	assert.Equal(t, "u1", m.OwnerUserID)
	assert.Equal(t, "helper", m.ActorUserID)

	// med-2 no tiene pacientes: el helper no tiene acceso
	_, err = svc.RegisterMovement(ctx, "helper", "med-2", MovementInput{Direction: "out", Quantity: qty(2)})
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = svc.RegisterMovement(ctx, "stranger", "med-1", MovementInput{Direction: "out", Quantity: qty(2)})
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestStockReadsWithMedicationsReadGrant(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	_, err := svc.RegisterMovement(ctx, "u1", "med-1", MovementInput{Direction: "in", Quantity: qty(10)})
	require.NoError(t, err)

	st, err := svc.StatusOf(ctx, "reader", "med-1")
	require.NoError(t, err)
	assert.True(t, st.Stock.Equal(decimal.NewFromInt(10)))

	items, err := svc.ListMovements(ctx, "reader", "med-1", Filter{})
	require.NoError(t, err)
	assert.Len(t, items, 1)

	// medications:read no habilita escribir
	_, err = svc.RegisterMovement(ctx, "reader", "med-1", MovementInput{Direction: "out", Quantity: qty(1)})
	assert.ErrorIs(t, err, ErrForbidden)

	// stock:write también puede leer
	_, err = svc.StatusOf(ctx, "helper", "med-1")
	assert.NoError(t, err)

	_, err = svc.StatusOf(ctx, "stranger", "med-1")
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestVoidMovementExcludesFromLedger(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	_, err := svc.RegisterMovement(ctx, "u1", "med-1", MovementInput{Direction: "in", Quantity: qty(30)})
	require.NoError(t, err)
	out, err := svc.RegisterMovement(ctx, "u1", "med-1", MovementInput{Direction: "out", Quantity: qty(20)})
	require.NoError(t, err)

	st, err := svc.StatusOf(ctx, "u1", "med-1")
	require.NoError(t, err)
	assert.True(t, st.Stock.Equal(decimal.NewFromInt(10)))
	require.NotNil(t, st.DaysRemaining)
	assert.Equal(t, 5, *st.DaysRemaining)
	assert.Equal(t, LevelWarning, st.Level)

	_, err = svc.VoidMovement(ctx, "helper", "med-1", out.ID, "")
	assert.ErrorIs(t, err, ErrForbidden, "only the owner voids")

	voided, err := svc.VoidMovement(ctx, "u1", "med-1", out.ID, "duplicado")
	require.NoError(t, err)
	assert.Equal(t, MovementVoided, voided.Status)

	again, err := svc.VoidMovement(ctx, "u1", "med-1", out.ID, "")
	require.NoError(t, err)
	assert.Equal(t, "duplicado", again.VoidReason)

	st, err = svc.StatusOf(ctx, "u1", "med-1")
	require.NoError(t, err)
	assert.True(t, st.Stock.Equal(decimal.NewFromInt(30)))
	assert.Equal(t, LevelOK, st.Level)

	all, err := svc.ListMovements(ctx, "u1", "med-1", Filter{})
	require.NoError(t, err)
	assert.Len(t, all, 2, "voided movements stay in the ledger")
}

func TestListMovementsValidation(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	_, err := svc.ListMovements(ctx, "u1", "med-1", Filter{Direction: "up"})
	assert.ErrorIs(t, err, ErrInvalidInput)

	from := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	_, err = svc.ListMovements(ctx, "u1", "med-1", Filter{From: &from, To: &to})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestListStatusesAndReplenishment(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	// med-1: 4 unidades a 2/día => 2 días => critical
	_, err := svc.RegisterMovement(ctx, "u1", "med-1", MovementInput{Direction: "in", Quantity: qty(4)})
	require.NoError(t, err)

	items, err := svc.ListStatuses(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "med-1", items[0].MedicationID)
	assert.Equal(t, LevelCritical, items[0].Level)
	assert.Equal(t, LevelOK, items[1].Level, "no consumption means no estimate")
	assert.Nil(t, items[1].DaysRemaining)

	rep, err := svc.Replenishment(ctx, "u1", 0)
	require.NoError(t, err)
	require.Len(t, rep, 1)
	assert.Equal(t, DefaultTargetDays, rep[0].TargetDays)
	// 30×2 − 4 = 56 unidades => ceil(56/30) = 2 cajas
	assert.True(t, rep[0].SuggestedUnits.Equal(decimal.NewFromInt(56)))
	assert.Equal(t, int64(2), rep[0].SuggestedBoxes)
}
