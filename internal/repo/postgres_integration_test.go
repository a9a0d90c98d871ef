package repo

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/Skotchmaster/pharmacy/internal/models"
	"github.com/Skotchmaster/pharmacy/internal/testutil"
	"github.com/Skotchmaster/pharmacy/pkg/db"
)

func newPostgresRepo(t *testing.T) *GormRepo {
	t.Helper()

	dsn := os.Getenv("PHARMACY_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("PHARMACY_TEST_DATABASE_URL is required for postgres tests")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()
	gdb, err := db.Open(ctx, db.DriverPostgres, dsn)
	require.NoError(t, err)
	require.NoError(t, models.Migrate(gdb))

	t.Cleanup(func() {
		truncateTables(t, gdb)
		_ = db.Close(gdb)
	})
	truncateTables(t, gdb)
	return New(gdb)
}

func truncateTables(t *testing.T, gdb *gorm.DB) {
	t.Helper()
	err := gdb.Exec("TRUNCATE TABLE refresh_tokens, medicines, categories, users RESTART IDENTITY CASCADE").Error
	require.NoError(t, err)
}

func TestPostgres_ConcurrentRotationOneWinner(t *testing.T) {
	r := newPostgresRepo(t)
	ctx := context.Background()
	u := testutil.CreateUser(t, r.DB, "Admin", "admin@pharmacy.test", "secret", models.RoleAdmin)

	old := &models.RefreshToken{Token: "fp-0", JTI: "jti-0", UserID: &u.ID, ExpiresAt: time.Now().Add(time.Hour)}
	require.NoError(t, r.AddRefreshToken(ctx, old))

	const n = 16
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = r.RotateRefreshToken(ctx, old.ID, &models.RefreshToken{
				Token:     fmt.Sprintf("fp-%d", i+1),
				JTI:       fmt.Sprintf("jti-%d", i+1),
				UserID:    &u.ID,
				ExpiresAt: time.Now().Add(time.Hour),
			})
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, err := range errs {
		if err == nil {
			wins++
			continue
		}
		assert.ErrorIs(t, err, ErrTokenAlreadyRevoked)
	}
	assert.Equal(t, 1, wins)

	rows, err := r.ListRefreshTokens(ctx, u.ID)
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}

func TestPostgres_CreateFirstUserOnlyOnce(t *testing.T) {
	r := newPostgresRepo(t)
	ctx := context.Background()

	first := &models.User{Name: "Root", Email: "root@pharmacy.test", PasswordHash: "x", Role: models.RoleSuperAdmin}
	require.NoError(t, r.CreateFirstUser(ctx, first))

	second := &models.User{Name: "Other", Email: "other@pharmacy.test", PasswordHash: "x", Role: models.RoleSuperAdmin}
	assert.ErrorIs(t, r.CreateFirstUser(ctx, second), ErrUsersExist)
}
