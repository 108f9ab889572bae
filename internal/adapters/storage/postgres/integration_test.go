package postgres

import (
	"context"
	"database/sql"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"deja/internal/domain/medications"
	"deja/internal/domain/settings"
)

// openTestDB usa DEJA_TEST_DATABASE_DSN; sin ella los tests se saltean.
func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	dsn := os.Getenv("DEJA_TEST_DATABASE_DSN")
	if dsn == "" {
		t.Skip("DEJA_TEST_DATABASE_DSN not set")
	}
	db, err := Open(context.Background(), dsn, PoolConfig{MaxOpenConns: 20, MaxIdleConns: 5})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, Migrate(db, MigrateUp))
	return db
}

func TestSettingsRepo_GetOrCreateConcurrentFirstRead(t *testing.T) {
	db := openTestDB(t)
	repo := NewSettingsRepo(db)
	ctx := context.Background()

	owner := "owner-" + uuid.NewString()
	t.Cleanup(func() {
		_, _ = db.ExecContext(context.Background(), `DELETE FROM alert_settings WHERE owner_user_id = $1`, owner)
	})
	defaults := settings.Defaults(owner, time.Now().UTC())

	const readers = 10
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		created int
		errs    []error
	)
	for i := 0; i < readers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s, ok, err := repo.GetOrCreate(ctx, defaults)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, err)
				return
			}
			if ok {
				created++
			}
			if s.OwnerUserID != owner {
				errs = append(errs, assert.AnError)
			}
		}()
	}
	wg.Wait()

	require.Empty(t, errs)
	assert.Equal(t, 1, created)

	var rows int
	require.NoError(t, db.QueryRowContext(ctx, `SELECT count(*) FROM alert_settings WHERE owner_user_id = $1`, owner).Scan(&rows))
	assert.Equal(t, 1, rows)

	s, ok, err := repo.GetOrCreate(ctx, defaults)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, defaults.Channels, s.Channels)
}

func TestMedicationsRepo_ListOwnersWithoutSettings(t *testing.T) {
	db := openTestDB(t)
	repo := NewMedicationsRepo(db)
	ctx := context.Background()

	owner := "owner-" + uuid.NewString()
	now := time.Now().UTC()
	m := medications.Medication{
		ID:           uuid.NewString(),
		OwnerUserID:  owner,
		Name:         "Losartana",
		DosageAmount: decimal.NewFromInt(50),
		DosageUnit:   "mg",
		BoxQuantity:  decimal.NewFromInt(30),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	require.NoError(t, repo.Create(ctx, m))
	t.Cleanup(func() { _ = repo.Delete(context.Background(), m.ID) })

	owners, err := repo.ListOwners(ctx)
	require.NoError(t, err)
	assert.Contains(t, owners, owner)
}
