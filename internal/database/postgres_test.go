package database

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrationFiles_OrdersAndFilters(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"002_feedback.sql", "001_initial_schema.sql", "README.md", "abc_bad.sql", "000_zero.sql"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("SELECT 1;"), 0o644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "003_dir.sql"), 0o755))

	files, err := migrationFiles(dir)

	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, 1, files[0].version)
	assert.Equal(t, "001_initial_schema.sql", files[0].name)
	assert.Equal(t, 2, files[1].version)
}

func TestMigrationFiles_MissingDir(t *testing.T) {
	_, err := migrationFiles(filepath.Join(t.TempDir(), "nope"))

	assert.Error(t, err)
}

func TestRepositoryMigrationsParse(t *testing.T) {
	files, err := migrationFiles(filepath.Join("..", "..", "migrations"))

	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, 1, files[0].version)
	assert.Equal(t, "002_settings.sql", files[1].name)
}
