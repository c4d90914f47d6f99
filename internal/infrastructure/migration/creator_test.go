package migration

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeName(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"add payee index", "add_payee_index"},
		{"Add-Payee-Index", "add_payee_index"},
		{"ADD_PAYEE_INDEX", "add_payee_index"},
		{"add__payee__index", "add_payee_index"},
		{"Ledger Totals 2", "ledger_totals_2"},
		{"   spaces   ", "spaces"},
		{"special!@#$chars", "specialchars"},
		{"trailing_", "trailing"},
		{"_leading", "leading"},
		{"drop ! legacy", "drop_legacy"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, sanitizeName(tt.input))
		})
	}
}

func writeFiles(t *testing.T, dir string, names ...string) {
	t.Helper()
	for _, name := range names {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("-- test"), 0o644))
	}
}

func TestCreateMigration(t *testing.T) {
	t.Run("numbers after existing migrations", func(t *testing.T) {
		dir := t.TempDir()
		writeFiles(t, dir,
			"000001_create_financial_ledgers.up.sql",
			"000001_create_financial_ledgers.down.sql",
			"000004_create_reconciliation_runs.up.sql",
			"000004_create_reconciliation_runs.down.sql",
		)

		mf, err := CreateMigration(dir, "Add payee index", "index ledger entries by payee")
		require.NoError(t, err)

		assert.Equal(t, "000005", mf.Version)
		assert.Equal(t, filepath.Join(dir, "000005_add_payee_index.up.sql"), mf.UpPath)
		assert.Equal(t, filepath.Join(dir, "000005_add_payee_index.down.sql"), mf.DownPath)

		up, err := os.ReadFile(mf.UpPath)
		require.NoError(t, err)
		assert.Contains(t, string(up), "-- Migration: add_payee_index")
		assert.Contains(t, string(up), "index ledger entries by payee")

		down, err := os.ReadFile(mf.DownPath)
		require.NoError(t, err)
		assert.Contains(t, string(down), "(rollback)")
	})

	t.Run("creates missing directory and starts at one", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "nested", "migrations")

		mf, err := CreateMigration(dir, "init", "")
		require.NoError(t, err)
		assert.Equal(t, "000001", mf.Version)

		info, err := os.Stat(dir)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	})

	t.Run("rejects empty name", func(t *testing.T) {
		_, err := CreateMigration(t.TempDir(), "!!!", "")
		require.Error(t, err)
	})

	t.Run("rejects non-numeric versions", func(t *testing.T) {
		dir := t.TempDir()
		writeFiles(t, dir, "latest_schema.up.sql")

		_, err := CreateMigration(dir, "next", "")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "non-numeric version")
	})
}

func TestListMigrations(t *testing.T) {
	t.Run("returns sorted base names", func(t *testing.T) {
		dir := t.TempDir()
		writeFiles(t, dir,
			"000002_create_ledger_entries.up.sql",
			"000002_create_ledger_entries.down.sql",
			"000001_create_financial_ledgers.up.sql",
			"000001_create_financial_ledgers.down.sql",
		)

		names, err := ListMigrations(dir)
		require.NoError(t, err)
		assert.Equal(t, []string{"000001_create_financial_ledgers", "000002_create_ledger_entries"}, names)
	})

	t.Run("empty directory", func(t *testing.T) {
		names, err := ListMigrations(t.TempDir())
		require.NoError(t, err)
		assert.Empty(t, names)
	})

	t.Run("nonexistent directory", func(t *testing.T) {
		names, err := ListMigrations(filepath.Join(t.TempDir(), "missing"))
		require.NoError(t, err)
		assert.Empty(t, names)
	})

	t.Run("ignores other files and directories", func(t *testing.T) {
		dir := t.TempDir()
		writeFiles(t, dir, "000001_init.up.sql", "000001_init.down.sql", "README.md", ".gitkeep")
		require.NoError(t, os.Mkdir(filepath.Join(dir, "subdir.up.sql"), 0o755))

		names, err := ListMigrations(dir)
		require.NoError(t, err)
		assert.Equal(t, []string{"000001_init"}, names)
	})
}

func TestListEmbedded(t *testing.T) {
	names, err := ListEmbedded()
	require.NoError(t, err)

	assert.Equal(t, []string{
		"000001_create_financial_ledgers",
		"000002_create_ledger_entries",
		"000003_create_ledger_communications_documents",
		"000004_create_reconciliation_runs",
	}, names)
}
