package settings

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"deja/internal/platform/metrics"
	"deja/internal/ports/notify"
)

type fakeRepo struct {
	mu      sync.Mutex
	byOwner map[string]Settings
	inserts int
}

func (f *fakeRepo) GetOrCreate(_ context.Context, d Settings) (Settings, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if s, ok := f.byOwner[d.OwnerUserID]; ok {
		return s, false, nil
	}
	f.byOwner[d.OwnerUserID] = d
	f.inserts++
	return d, true, nil
}

func (f *fakeRepo) Update(_ context.Context, s Settings) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.byOwner[s.OwnerUserID] = s
	return nil
}

func (f *fakeRepo) ListOwners(context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []string{}
	for id := range f.byOwner {
		out = append(out, id)
	}
	return out, nil
}

func newTestService() (*Service, *fakeRepo, *metrics.Metrics) {
	repo := &fakeRepo{byOwner: map[string]Settings{}}
	m := metrics.New()
	svc := NewService(repo, m, "BR", zerolog.Nop())
	svc.now = func() time.Time { return time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC) }
	return svc, repo, m
}

func TestGetCreatesDefaultsOnce(t *testing.T) {
	svc, repo, _ := newTestService()
	ctx := context.Background()

	first, err := svc.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 3, first.CriticalStockDays)
	assert.Equal(t, 7, first.LowStockDays)
	assert.Equal(t, 30, first.DelayToleranceMinutes)
	assert.Equal(t, 7, first.PrescriptionLeadDays)
	assert.Equal(t, []notify.Channel{notify.ChannelPush}, first.Channels)

	second, err := svc.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, repo.inserts)
}

func TestGetConcurrentFirstReads(t *testing.T) {
	svc, repo, m := newTestService()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Get(context.Background(), "u1")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, repo.inserts)
	expected := `
# HELP deja_alert_settings_created_total Alert settings records created lazily on first read.
# TYPE deja_alert_settings_created_total counter
deja_alert_settings_created_total 1
`
	assert.NoError(t, testutil.GatherAndCompare(m.Registry(), strings.NewReader(expected), "deja_alert_settings_created_total"))
}

func TestStockThresholds(t *testing.T) {
	svc, _, _ := newTestService()
	critical, low, err := svc.StockThresholds(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, 3, critical)
	assert.Equal(t, 7, low)
}

func TestUpdateValidation(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	base := Input{CriticalStockDays: 2, LowStockDays: 5, DelayToleranceMinutes: 15, PrescriptionLeadDays: 10}

	tests := []struct {
		name   string
		mutate func(*Input)
	}{
		{"negative critical", func(in *Input) { in.CriticalStockDays = -1 }},
		{"low below critical", func(in *Input) { in.LowStockDays = 1 }},
		{"negative delay", func(in *Input) { in.DelayToleranceMinutes = -5 }},
		{"negative lead", func(in *Input) { in.PrescriptionLeadDays = -1 }},
		{"unknown channel", func(in *Input) { in.Channels = []string{"pigeon"} }},
		{"email without address", func(in *Input) { in.Channels = []string{"email"} }},
		{"sms without phone", func(in *Input) { in.Channels = []string{"sms"} }},
		{"bad phone", func(in *Input) { in.ContactPhone = "123" }},
		{"bad email", func(in *Input) { in.ContactEmail = "not-an-email" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := base
			tt.mutate(&in)
			_, err := svc.Update(ctx, "u1", in)
			assert.ErrorIs(t, err, ErrInvalidInput)
		})
	}

	in := base
	in.Channels = []string{"Email", "sms", "email"}
	in.ContactEmail = "Ana <ana@example.com>"
	in.ContactPhone = "(11) 98765-4321"
	st, err := svc.Update(ctx, "u1", in)
	require.NoError(t, err)
	assert.Equal(t, []notify.Channel{notify.ChannelEmail, notify.ChannelSMS}, st.Channels)
	assert.Equal(t, "ana@example.com", st.ContactEmail)
	assert.Equal(t, "+5511987654321", st.ContactPhone)

	got, err := svc.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 2, got.CriticalStockDays)
}
