package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	for _, k := range []string{"BUILDSTOCK_WORKERS", "BUILDSTOCK_PORT", "BUILDSTOCK_DB_DSN", "BUILDSTOCK_DB_DRIVER", "BUILDSTOCK_DEV"} {
		t.Setenv(k, "")
	}
	c, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)
	assert.Equal(t, "info", c.LogLevel)
	assert.Equal(t, 8080, c.Port)
	assert.Positive(t, c.Workers)
	assert.Empty(t, c.DBDriver)
	assert.False(t, c.Dev)
}

func TestLoadEnvFile(t *testing.T) {
	for _, k := range []string{"BUILDSTOCK_WORKERS", "BUILDSTOCK_DB_DSN", "BUILDSTOCK_DB_DRIVER", "BUILDSTOCK_DEV", "BUILDSTOCK_PORT"} {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
	t.Setenv("BUILDSTOCK_PORT", "9090")

	p := filepath.Join(t.TempDir(), ".env")
	body := "BUILDSTOCK_WORKERS=3\nBUILDSTOCK_DB_DSN=out/runs.db\nBUILDSTOCK_DEV=true\nBUILDSTOCK_PORT=7000\n"
	require.NoError(t, os.WriteFile(p, []byte(body), 0o644))

	c, err := Load(p)
	require.NoError(t, err)
	assert.Equal(t, 3, c.Workers)
	assert.Equal(t, "sqlite3", c.DBDriver)
	assert.Equal(t, "out/runs.db", c.DBDSN)
	assert.True(t, c.Dev)
	assert.Equal(t, 9090, c.Port, "environment wins over the file")
}

func TestLoadInvalid(t *testing.T) {
	t.Setenv("BUILDSTOCK_WORKERS", "many")
	_, err := Load(filepath.Join(t.TempDir(), "none.env"))
	assert.Error(t, err)
}
