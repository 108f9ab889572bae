package caregivers

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCaregivers struct{ byID map[string]Caregiver }

func (f *fakeCaregivers) Create(_ context.Context, c Caregiver) error { f.byID[c.ID] = c; return nil }
func (f *fakeCaregivers) Update(_ context.Context, c Caregiver) error { f.byID[c.ID] = c; return nil }
func (f *fakeCaregivers) Delete(_ context.Context, id string) error   { delete(f.byID, id); return nil }
func (f *fakeCaregivers) GetByID(_ context.Context, id string) (Caregiver, error) {
	c, ok := f.byID[id]
	if !ok {
		return Caregiver{}, ErrNotFound
	}
	return c, nil
}
func (f *fakeCaregivers) ListByOwner(_ context.Context, owner string) ([]Caregiver, error) {
	out := []Caregiver{}
	for _, c := range f.byID {
		if c.OwnerUserID == owner {
			out = append(out, c)
		}
	}
	return out, nil
}

type fakeSchedules struct{ byID map[string]Schedule }

func (f *fakeSchedules) Create(_ context.Context, s Schedule) error { f.byID[s.ID] = s; return nil }
func (f *fakeSchedules) Update(_ context.Context, s Schedule) error { f.byID[s.ID] = s; return nil }
func (f *fakeSchedules) Delete(_ context.Context, id string) error  { delete(f.byID, id); return nil }
func (f *fakeSchedules) GetByID(_ context.Context, id string) (Schedule, error) {
	s, ok := f.byID[id]
	if !ok {
		return Schedule{}, ErrNotFound
	}
	return s, nil
}
func (f *fakeSchedules) ListByOwner(_ context.Context, owner string) ([]Schedule, error) {
	out := []Schedule{}
	for _, s := range f.byID {
		if s.OwnerUserID == owner {
			out = append(out, s)
		}
	}
	return out, nil
}
func (f *fakeSchedules) ListByPatient(_ context.Context, patientID string) ([]Schedule, error) {
	out := []Schedule{}
	for _, s := range f.byID {
		if s.HasPatient(patientID) {
			out = append(out, s)
		}
	}
	return out, nil
}
func (f *fakeSchedules) DeleteByCaregiver(_ context.Context, caregiverID string) error {
	for id, s := range f.byID {
		if s.CaregiverID == caregiverID {
			delete(f.byID, id)
		}
	}
	return nil
}

type fakeOwners map[string]string

func (f fakeOwners) OwnerOf(_ context.Context, id string) (string, error) {
	o, ok := f[id]
	if !ok {
		return "", errors.New("not found")
	}
	return o, nil
}

func setup(t *testing.T) (*Service, *fakeSchedules, Caregiver) {
	t.Helper()
	cg := &fakeCaregivers{byID: map[string]Caregiver{}}
	sc := &fakeSchedules{byID: map[string]Schedule{}}
	owners := fakeOwners{"p1": "rep-1", "p2": "rep-1", "other": "rep-2"}

	svc := NewService(cg, sc, owners, "BR", zerolog.Nop())
	svc.now = func() time.Time { return time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC) } // lunes

	c, err := svc.CreateCaregiver(context.Background(), "rep-1", CaregiverInput{Name: "Ana", Phone: "11 98765-4321"})
	require.NoError(t, err)
	return svc, sc, c
}

func TestCreateCaregiver_NormalizesPhoneAndDefaultsActive(t *testing.T) {
	svc, _, c := setup(t)
	assert.Equal(t, "+5511987654321", c.Phone)
	assert.True(t, c.Active)

	_, err := svc.CreateCaregiver(context.Background(), "rep-1", CaregiverInput{Name: "Bad", Phone: "12"})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = svc.CreateCaregiver(context.Background(), "rep-1", CaregiverInput{Name: "Bad", Email: "nope"})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestCreateSchedule_Validation(t *testing.T) {
	svc, _, c := setup(t)
	ctx := context.Background()
	base := ScheduleInput{
		CaregiverID: c.ID,
		PatientIDs:  []string{"p1"},
		Days:        []time.Weekday{time.Monday},
		Start:       19 * 60,
		End:         8 * 60,
	}

	noPatients := base
	noPatients.PatientIDs = nil
	_, err := svc.CreateSchedule(ctx, "rep-1", noPatients)
	assert.ErrorIs(t, err, ErrInvalidInput)

	foreign := base
	foreign.PatientIDs = []string{"other"}
	_, err = svc.CreateSchedule(ctx, "rep-1", foreign)
	assert.ErrorIs(t, err, ErrInvalidInput)

	noDays := base
	noDays.Days = nil
	_, err = svc.CreateSchedule(ctx, "rep-1", noDays)
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = svc.CreateSchedule(ctx, "rep-2", base)
	assert.ErrorIs(t, err, ErrInvalidInput, "caregiver belongs to another representative")

	dup := base
	dup.Days = []time.Weekday{time.Sunday, time.Monday, time.Monday}
	s, err := svc.CreateSchedule(ctx, "rep-1", dup)
	require.NoError(t, err)
	assert.Equal(t, []time.Weekday{time.Monday, time.Sunday}, s.Days)
	assert.True(t, s.CrossesMidnight())
}

func TestDetachPatient_RemovesOrDeletes(t *testing.T) {
	svc, repo, c := setup(t)
	ctx := context.Background()

	shared, err := svc.CreateSchedule(ctx, "rep-1", ScheduleInput{
		CaregiverID: c.ID, PatientIDs: []string{"p1", "p2"}, Days: []time.Weekday{time.Monday}, Start: 480, End: 600,
	})
	require.NoError(t, err)
	solo, err := svc.CreateSchedule(ctx, "rep-1", ScheduleInput{
		CaregiverID: c.ID, PatientIDs: []string{"p1"}, Days: []time.Weekday{time.Tuesday}, Start: 480, End: 600,
	})
	require.NoError(t, err)

	require.NoError(t, svc.DetachPatient(ctx, "p1"))

	assert.NotContains(t, repo.byID, solo.ID)
	require.Contains(t, repo.byID, shared.ID)
	assert.Equal(t, []string{"p2"}, repo.byID[shared.ID].PatientIDs)
}

func TestDeleteCaregiver_CascadesSchedules(t *testing.T) {
	svc, repo, c := setup(t)
	ctx := context.Background()

	_, err := svc.CreateSchedule(ctx, "rep-1", ScheduleInput{
		CaregiverID: c.ID, PatientIDs: []string{"p1"}, Days: []time.Weekday{time.Monday}, Start: 480, End: 600,
	})
	require.NoError(t, err)

	assert.ErrorIs(t, svc.DeleteCaregiver(ctx, c.ID, "rep-2"), ErrForbidden)
	require.NoError(t, svc.DeleteCaregiver(ctx, c.ID, "rep-1"))
	assert.Empty(t, repo.byID)
}

func TestWeekAndToday(t *testing.T) {
	svc, _, c := setup(t)
	ctx := context.Background()

	_, err := svc.CreateSchedule(ctx, "rep-1", ScheduleInput{
		CaregiverID: c.ID, PatientIDs: []string{"p1"},
		Days:  []time.Weekday{time.Sunday, time.Monday},
		Start: 19 * 60, End: 7 * 60,
	})
	require.NoError(t, err)

	week, err := svc.Week(ctx, "rep-1", ScheduleFilter{PatientID: "p2"}, 48)
	require.NoError(t, err)
	assert.Empty(t, week)

	today, err := svc.Today(ctx, "rep-1")
	require.NoError(t, err)
	// lunes: continuación del domingo + turno del lunes
	require.Len(t, today, 2)
	assert.True(t, today[0].Continuation)
}
