package cmd

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("CATALOG_DATABASE_URL", "")
	databaseURL, confirmDrop = "", false

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestMigrateRequiresDatabaseURL(t *testing.T) {
	_, err := execute(t, "migrate", "version")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database url is required")
}

func TestMigrateDownRejectsBadSteps(t *testing.T) {
	for _, arg := range []string{"zero", "0", "-2"} {
		_, err := execute(t, "migrate", "down", "--", arg)
		require.Error(t, err, arg)
		assert.Contains(t, err.Error(), "steps must be a positive integer")
	}
}

func TestMigrateDropRequiresConfirmation(t *testing.T) {
	_, err := execute(t, "migrate", "drop", "--database-url", "postgres://localhost/catalog")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--yes")
}

func TestMigrateList(t *testing.T) {
	out, err := execute(t, "migrate", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "000001_create_usuarios.up.sql")
	assert.Contains(t, out, "000002_create_catalogo.down.sql")
}

func TestMigrateForceRejectsBadVersion(t *testing.T) {
	_, err := execute(t, "migrate", "force", "abc", "--database-url", "postgres://localhost/catalog")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid version")
}
