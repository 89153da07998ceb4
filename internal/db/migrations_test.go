package db

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestDB(t *testing.T) *DB {
	t.Helper()
	database, err := New(t.TempDir() + "/test.db")
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	require.NoError(t, database.RunMigrations())
	return database
}

func TestRunMigrations(t *testing.T) {
	database := setupTestDB(t)

	var name string
	err := database.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name='handshake_flows'").Scan(&name)
	require.NoError(t, err)
	assert.Equal(t, "handshake_flows", name)
}

func TestRunMigrationsIdempotent(t *testing.T) {
	database := setupTestDB(t)
	assert.NoError(t, database.RunMigrations())
}

func TestHandshakeFlowIntentConstraint(t *testing.T) {
	database := setupTestDB(t)

	_, err := database.Exec(`INSERT INTO handshake_flows
		(id, intent, strategy, code_verifier, redirect_url, redirect_url_complete, created_at, expires_at)
		VALUES ('s1', 'sign_in', 'oauth_google', 'v', '/sso-callback', '/', 1, 2)`)
	require.NoError(t, err)

	_, err = database.Exec(`INSERT INTO handshake_flows
		(id, intent, strategy, code_verifier, redirect_url, redirect_url_complete, created_at, expires_at)
		VALUES ('s2', 'link', 'oauth_google', 'v', '/sso-callback', '/', 1, 2)`)
	assert.Error(t, err)
}
