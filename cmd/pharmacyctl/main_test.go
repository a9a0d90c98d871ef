package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setTestEnv(t *testing.T) {
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("DATABASE_URL", ":memory:")
	t.Setenv("JWT_SECRET", "a")
	t.Setenv("REFRESH_TOKEN_SECRET", "b")
	t.Setenv("KAFKA_BROKERS", "")
	t.Setenv("ES_URL", "")
	t.Setenv("LOG_LEVEL", "error")
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetArgs(append(args, "--env-file", t.TempDir()+"/missing.env"))
	err := cmd.Execute()
	return out.String(), err
}

func TestCreateSuperAdmin(t *testing.T) {
	setTestEnv(t)

	out, err := run(t, "create-superadmin", "--email", "root@pharmacy.test", "--password", "pw")
	require.NoError(t, err)
	assert.Contains(t, out, "created superadmin")
}

func TestCreateSuperAdmin_RequiresEmail(t *testing.T) {
	setTestEnv(t)

	_, err := run(t, "create-superadmin", "--password", "pw")
	assert.Error(t, err)
}

func TestSeedMedicines(t *testing.T) {
	setTestEnv(t)

	out, err := run(t, "seed-medicines", "--count", "3")
	require.NoError(t, err)
	assert.Contains(t, out, "seeded 3 medicines")

	_, err = run(t, "seed-medicines", "--count", "0")
	assert.Error(t, err)
}

func TestSweepTokens(t *testing.T) {
	setTestEnv(t)

	out, err := run(t, "sweep-tokens")
	require.NoError(t, err)
	assert.Contains(t, out, "purged 0 refresh tokens")
}

func TestUserCommands_UnknownUser(t *testing.T) {
	setTestEnv(t)

	_, err := run(t, "revoke-sessions", "--email", "ghost@pharmacy.test")
	assert.ErrorContains(t, err, "user not found")

	_, err = run(t, "delete-user", "--email", "ghost@pharmacy.test")
	assert.ErrorContains(t, err, "user not found")
}
