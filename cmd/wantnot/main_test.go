package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/Veraticus/wantnot/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	require.NoError(t, rootCmd.ExecuteContext(context.Background()), out.String())
	return out.String()
}

func TestCommands_CategoryLifecycle(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "data", "wantnot.db")
	cfgPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("database:\n  path: "+dbPath+"\nlogging:\n  level: error\n"), 0o600))

	out := execute(t, "--config", cfgPath, "migrate")
	assert.Contains(t, out, "schema at version")

	store, err := storage.NewSQLiteStorage(dbPath)
	require.NoError(t, err)
	user, err := store.CreateUser(context.Background(), "cli@example.com", "CLI")
	require.NoError(t, err)
	require.NoError(t, store.Close())

	out = execute(t, "--config", cfgPath, "users", "list")
	assert.Contains(t, out, "cli@example.com")

	execute(t, "--config", cfgPath, "--user", user.ID, "categories", "add", "Groceries", "--budget", "400")
	execute(t, "--config", cfgPath, "--user", user.ID, "categories", "add", "Salary", "--income")

	out = execute(t, "--config", cfgPath, "--user", user.ID, "categories", "list")
	assert.Contains(t, out, "Groceries")
	assert.Contains(t, out, "Salary")

	execute(t, "--config", cfgPath, "--user", user.ID, "categories", "delete", "groceries", "--force")
	out = execute(t, "--config", cfgPath, "--user", user.ID, "categories", "list")
	assert.NotContains(t, out, "Groceries")

	out = execute(t, "--config", cfgPath, "--user", user.ID, "uncategorized")
	assert.Contains(t, out, "Nothing to show")
}
