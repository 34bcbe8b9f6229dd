package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chdir(t *testing.T, dir string) {
	t.Helper()
	original, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(original) })
}

func TestLoad_DefaultsWhenNoFile(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)
	assert.NotEmpty(t, cfg.DBPath)
}

func TestLoad_ReadsConfigFile(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)

	dbPath := filepath.Join(dir, "custom.db")
	content := "db_path: " + dbPath + "\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "queuectl.yaml"), []byte(content), 0644))

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, dbPath, cfg.DBPath)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)

	content := "db_path: " + filepath.Join(dir, "from-file.db") + "\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "queuectl.yaml"), []byte(content), 0644))

	envPath := filepath.Join(dir, "from-env.db")
	t.Setenv("QUEUECTL_DB_PATH", envPath)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, envPath, cfg.DBPath)
}
