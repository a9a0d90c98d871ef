package repo

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/Skotchmaster/pharmacy/internal/models"
	"github.com/Skotchmaster/pharmacy/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRepo(t *testing.T) (*GormRepo, *models.User) {
	t.Helper()
	db := testutil.NewDB(t)
	u := testutil.CreateUser(t, db, "Admin", "admin@pharmacy.test", "secret", models.RoleAdmin)
	return New(db), u
}

func addToken(t *testing.T, r *GormRepo, userID uint, fp, jti string, exp time.Time) *models.RefreshToken {
	t.Helper()
	tok := &models.RefreshToken{Token: fp, JTI: jti, UserID: &userID, ExpiresAt: exp}
	require.NoError(t, r.AddRefreshToken(context.Background(), tok))
	return tok
}

func TestRotateRefreshToken_RevokesOldAndStoresNew(t *testing.T) {
	r, u := newTestRepo(t)
	ctx := context.Background()
	old := addToken(t, r, u.ID, "fp-1", "jti-1", time.Now().Add(time.Hour))

	next := &models.RefreshToken{Token: "fp-2", JTI: "jti-2", UserID: &u.ID, ExpiresAt: time.Now().Add(time.Hour)}
	require.NoError(t, r.RotateRefreshToken(ctx, old.ID, next))

	got, err := r.FindRefreshByToken(ctx, "fp-1")
	require.NoError(t, err)
	assert.True(t, got.Revoked)

	got, err = r.FindRefreshByToken(ctx, "fp-2")
	require.NoError(t, err)
	assert.False(t, got.Revoked)
}

func TestRotateRefreshToken_SecondRotationFails(t *testing.T) {
	r, u := newTestRepo(t)
	ctx := context.Background()
	old := addToken(t, r, u.ID, "fp-1", "jti-1", time.Now().Add(time.Hour))

	require.NoError(t, r.RotateRefreshToken(ctx, old.ID,
		&models.RefreshToken{Token: "fp-2", JTI: "jti-2", UserID: &u.ID, ExpiresAt: time.Now().Add(time.Hour)}))

	err := r.RotateRefreshToken(ctx, old.ID,
		&models.RefreshToken{Token: "fp-3", JTI: "jti-3", UserID: &u.ID, ExpiresAt: time.Now().Add(time.Hour)})
	assert.ErrorIs(t, err, ErrTokenAlreadyRevoked)

	_, err = r.FindRefreshByToken(ctx, "fp-3")
	assert.ErrorIs(t, err, ErrNotFound, "failed rotation must not leave the new row behind")
}

func TestRotateRefreshToken_ConcurrentOnlyOneWins(t *testing.T) {
	r, u := newTestRepo(t)
	ctx := context.Background()
	old := addToken(t, r, u.ID, "fp-0", "jti-0", time.Now().Add(time.Hour))

	const n = 8
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			next := &models.RefreshToken{
				Token:     "fp-next-" + string(rune('a'+i)),
				JTI:       "jti-next-" + string(rune('a'+i)),
				UserID:    &u.ID,
				ExpiresAt: time.Now().Add(time.Hour),
			}
			errs[i] = r.RotateRefreshToken(ctx, old.ID, next)
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

func TestRevokeRefreshToken_Idempotent(t *testing.T) {
	r, u := newTestRepo(t)
	ctx := context.Background()
	addToken(t, r, u.ID, "fp-1", "jti-1", time.Now().Add(time.Hour))

	revoked, err := r.RevokeRefreshToken(ctx, "fp-1")
	require.NoError(t, err)
	assert.True(t, revoked)

	revoked, err = r.RevokeRefreshToken(ctx, "fp-1")
	require.NoError(t, err)
	assert.False(t, revoked)

	revoked, err = r.RevokeRefreshToken(ctx, "unknown")
	require.NoError(t, err)
	assert.False(t, revoked)
}

func TestPurgeExpired(t *testing.T) {
	r, u := newTestRepo(t)
	ctx := context.Background()
	addToken(t, r, u.ID, "fp-old", "jti-old", time.Now().Add(-48*time.Hour))
	addToken(t, r, u.ID, "fp-new", "jti-new", time.Now().Add(48*time.Hour))

	n, err := r.PurgeExpired(ctx, time.Now())
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	_, err = r.FindRefreshByToken(ctx, "fp-old")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = r.FindRefreshByToken(ctx, "fp-new")
	assert.NoError(t, err)
}

func TestRevokeAllForUser(t *testing.T) {
	r, u := newTestRepo(t)
	ctx := context.Background()
	addToken(t, r, u.ID, "fp-1", "jti-1", time.Now().Add(time.Hour))
	addToken(t, r, u.ID, "fp-2", "jti-2", time.Now().Add(time.Hour))

	n, err := r.RevokeAllForUser(ctx, u.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)
}

func TestDeleteUser_DetachesRefreshTokens(t *testing.T) {
	r, u := newTestRepo(t)
	ctx := context.Background()
	addToken(t, r, u.ID, "fp-1", "jti-1", time.Now().Add(time.Hour))

	require.NoError(t, r.DeleteUser(ctx, u.ID))

	got, err := r.FindRefreshByToken(ctx, "fp-1")
	require.NoError(t, err, "row survives its user")
	assert.Nil(t, got.UserID)
	assert.False(t, got.OwnedBy(u.ID))
}

func TestAddRefreshToken_RejectsUnknownUser(t *testing.T) {
	r, _ := newTestRepo(t)
	ghost := uint(9999)

	err := r.AddRefreshToken(context.Background(), &models.RefreshToken{
		Token: "fp-x", JTI: "jti-x", UserID: &ghost, ExpiresAt: time.Now().Add(time.Hour),
	})
	assert.Error(t, err)
}
