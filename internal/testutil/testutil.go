// Package testutil builds the in-memory store and issuer shared by tests.
package testutil

import (
	"context"
	"testing"

	"github.com/Skotchmaster/pharmacy/internal/models"
	pkgdb "github.com/Skotchmaster/pharmacy/pkg/db"
	"github.com/Skotchmaster/pharmacy/pkg/hash"
	"github.com/Skotchmaster/pharmacy/pkg/tokens"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var (
	AccessSecret  = []byte("test-jwt-secret")
	RefreshSecret = []byte("test-refresh-secret")
)

func NewDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := pkgdb.Open(context.Background(), pkgdb.DriverSQLite, ":memory:")
	require.NoError(t, err)
	require.NoError(t, models.Migrate(db))

	t.Cleanup(func() { _ = pkgdb.Close(db) })
	return db
}

func NewIssuer(t *testing.T) *tokens.Issuer {
	t.Helper()

	iss, err := tokens.NewIssuer(tokens.IssuerConfig{
		AccessSecret:  AccessSecret,
		RefreshSecret: RefreshSecret,
	})
	require.NoError(t, err)
	return iss
}

func CreateUser(t *testing.T, db *gorm.DB, name, email, password, role string) *models.User {
	t.Helper()

	pw, err := hash.HashPassword(password)
	require.NoError(t, err)
	u := &models.User{Name: name, Email: email, PasswordHash: pw, Role: role}
	require.NoError(t, db.Create(u).Error)
	return u
}
