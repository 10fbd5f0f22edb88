package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := LoadFrom()
	require.NoError(t, err)

	assert.Equal(t, DriverPostgres, cfg.DatabaseDriver)
	assert.Equal(t, 30*time.Minute, cfg.JWTExpiry)
	assert.Equal(t, "0.0.0.0:8000", cfg.Addr())
}

func TestLoadEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("DATABASE_DRIVER=sqlite\nSQLITE_PATH=/tmp/x.db\n"), 0o600))
	t.Setenv("DATABASE_DRIVER", "")
	require.NoError(t, os.Unsetenv("DATABASE_DRIVER"))
	t.Setenv("SQLITE_PATH", "/from/env.db")

	cfg, err := LoadFrom(path)
	require.NoError(t, err)

	assert.Equal(t, DriverSQLite, cfg.DatabaseDriver)
	assert.Equal(t, "/from/env.db", cfg.SQLitePath)
}

func TestValidateDriver(t *testing.T) {
	t.Setenv("DATABASE_DRIVER", "mysql")

	_, err := LoadFrom()
	assert.Error(t, err)
}
