package alerts

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"deja/internal/domain/prescriptions"
	"deja/internal/domain/settings"
	"deja/internal/domain/stock"
	"deja/internal/platform/metrics"
	"deja/internal/ports/notify"
)

type fakeStock []stock.Status

func (f fakeStock) ListStatuses(context.Context, string) ([]stock.Status, error) { return f, nil }

type fakeRx []prescriptions.Prescription

func (f fakeRx) List(context.Context, string, string) ([]prescriptions.Prescription, error) {
	return f, nil
}

type fakeSettings settings.Settings

func (f fakeSettings) Get(_ context.Context, owner string) (settings.Settings, error) {
	s := settings.Settings(f)
	s.OwnerUserID = owner
	return s, nil
}

type recordingSender struct {
	msgs []notify.Message
	err  error
}

func (r *recordingSender) Send(_ context.Context, m notify.Message) error {
	r.msgs = append(r.msgs, m)
	return r.err
}

type owners []string

func (o owners) ListOwners(context.Context) ([]string, error) { return o, nil }

func d(s string) time.Time {
	t, _ := time.Parse("2006-01-02", s)
	return t
}

func ptr(t time.Time) *time.Time { return &t }
func days(n int) *int            { return &n }

func fixtures() (fakeStock, fakeRx) {
	st := fakeStock{
		{MedicationID: "m-ok", MedicationName: "Vitamina D", Level: stock.LevelOK},
		{MedicationID: "m-low", MedicationName: "Losartana", Level: stock.LevelWarning, DaysRemaining: days(5), RunOutDate: ptr(d("2025-01-20"))},
		{MedicationID: "m-crit", MedicationName: "Insulina", Level: stock.LevelCritical, DaysRemaining: days(1), RunOutDate: ptr(d("2025-01-16"))},
		{MedicationID: "m-neg", MedicationName: "Dipirona", Level: stock.LevelCritical, Negative: true, Stock: decimal.NewFromInt(-2)},
	}
	rx := fakeRx{
		{ID: "rx-expired", Type: prescriptions.TypeB, ExpiryDate: d("2025-01-10")},
		{ID: "rx-soon", Type: prescriptions.TypeSimple, ExpiryDate: d("2025-01-20")},
		{ID: "rx-far", Type: prescriptions.TypeSimple, ExpiryDate: d("2025-06-01")},
	}
	return st, rx
}

func newTestService(cfg settings.Settings) *Service {
	st, rx := fixtures()
	svc := NewService(st, rx, fakeSettings(cfg))
	svc.now = func() time.Time { return time.Date(2025, 1, 15, 12, 0, 0, 0, time.UTC) }
	return svc
}

func TestDerive(t *testing.T) {
	svc := newTestService(settings.Defaults("u1", time.Now()))

	items, err := svc.Derive(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, items, 5)

	kinds := []Kind{}
	for _, a := range items {
		kinds = append(kinds, a.Kind)
	}
	assert.Equal(t, []Kind{
		KindPrescriptionExpired, // critical, 01-10
		KindStockCritical,       // critical, 01-16
		KindStockCritical,       // critical, sin fecha
		KindStockLow,            // warning, 01-20
		KindPrescriptionExpiring,
	}, kinds)
	assert.Contains(t, items[2].Message, "negativo")
}

func TestDeriveRespectsLeadDays(t *testing.T) {
	cfg := settings.Defaults("u1", time.Now())
	cfg.PrescriptionLeadDays = 2
	svc := newTestService(cfg)

	items, err := svc.Derive(context.Background(), "u1")
	require.NoError(t, err)
	for _, a := range items {
		assert.NotEqual(t, KindPrescriptionExpiring, a.Kind)
	}
}

func TestDispatch(t *testing.T) {
	cfg := settings.Defaults("u1", time.Now())
	cfg.Channels = []notify.Channel{notify.ChannelEmail, notify.ChannelSMS, notify.ChannelPush}
	cfg.ContactEmail = "ana@example.com"
	cfg.ContactPhone = "+5511987654321"
	svc := newTestService(cfg)

	email := &recordingSender{}
	sms := &recordingSender{err: errors.New("gateway down")}
	disp := NewDispatcher(svc, fakeSettings(cfg), map[notify.Channel]notify.Sender{
		notify.ChannelEmail: email,
		notify.ChannelSMS:   sms,
	}, metrics.New(), zerolog.Nop())

	rep, err := disp.Dispatch(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, 5, rep.Alerts)
	assert.Equal(t, []notify.Channel{notify.ChannelEmail}, rep.Sent)
	assert.Contains(t, rep.Failed, notify.ChannelSMS)

	require.Len(t, email.msgs, 1)
	assert.Equal(t, "ana@example.com", email.msgs[0].To)
	assert.Equal(t, "Deja: 5 alertas (3 críticas)", email.msgs[0].Subject)
	require.Len(t, sms.msgs, 1)
	assert.Equal(t, "+5511987654321", sms.msgs[0].To)

	reports, err := disp.DispatchAll(context.Background(), owners{"u1", "u2"})
	require.NoError(t, err)
	assert.Len(t, reports, 2)
}

func TestDispatchWithoutAlertsSendsNothing(t *testing.T) {
	cfg := settings.Defaults("u1", time.Now())
	svc := NewService(fakeStock{}, fakeRx{}, fakeSettings(cfg))
	push := &recordingSender{}
	disp := NewDispatcher(svc, fakeSettings(cfg), map[notify.Channel]notify.Sender{notify.ChannelPush: push}, nil, zerolog.Nop())

	rep, err := disp.Dispatch(context.Background(), "u1")
	require.NoError(t, err)
	assert.Zero(t, rep.Alerts)
	assert.Empty(t, push.msgs)
}

type flakySettings struct {
	fakeSettings
	bad string
}

func (f flakySettings) Get(ctx context.Context, owner string) (settings.Settings, error) {
	if owner == f.bad {
		return settings.Settings{}, errors.New("settings unavailable")
	}
	return f.fakeSettings.Get(ctx, owner)
}

func TestDispatchAll_UnionOfOwnerSources(t *testing.T) {
	cfg := settings.Defaults("", time.Now())
	svc := newTestService(cfg)
	push := &recordingSender{}
	disp := NewDispatcher(svc, fakeSettings(cfg), map[notify.Channel]notify.Sender{notify.ChannelPush: push}, nil, zerolog.Nop())

	// u3 tiene medicamentos pero nunca guardó configuración
	reports, err := disp.DispatchAll(context.Background(), owners{"u3", "u1"}, owners{"u1", ""}, owners{"u2"})
	require.NoError(t, err)

	got := []string{}
	for _, rep := range reports {
		got = append(got, rep.OwnerUserID)
	}
	assert.Equal(t, []string{"u1", "u2", "u3"}, got)
	require.Len(t, push.msgs, 3)
	assert.Equal(t, "u3", push.msgs[2].To)
}

func TestDispatchAll_OwnerErrorDoesNotStopOthers(t *testing.T) {
	cfg := settings.Defaults("", time.Now())
	st, rx := fixtures()
	src := flakySettings{fakeSettings: fakeSettings(cfg), bad: "u1"}
	svc := NewService(st, rx, src)
	svc.now = func() time.Time { return time.Date(2025, 1, 15, 12, 0, 0, 0, time.UTC) }
	push := &recordingSender{}
	disp := NewDispatcher(svc, src, map[notify.Channel]notify.Sender{notify.ChannelPush: push}, nil, zerolog.Nop())

	reports, err := disp.DispatchAll(context.Background(), owners{"u1", "u2"})
	require.NoError(t, err)
	require.Len(t, reports, 2)

	assert.Equal(t, "u1", reports[0].OwnerUserID)
	assert.Error(t, reports[0].Err)
	assert.Equal(t, "u2", reports[1].OwnerUserID)
	assert.NoError(t, reports[1].Err)
	assert.Equal(t, 5, reports[1].Alerts)
	require.Len(t, push.msgs, 1)
	assert.Equal(t, "u2", push.msgs[0].To)
}
