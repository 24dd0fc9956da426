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
	for _, key := range []string{"HOST", "PORT", "DB_DRIVER", "DATABASE_URL", "LOG_LEVEL"} {
		t.Setenv(key, "")
	}

	cfg, err := LoadFromPath("")
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:4000", cfg.Server.Addr())
	assert.Equal(t, DriverMemory, cfg.Database.Driver)
	assert.False(t, cfg.Database.IsSQL())
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, 10*time.Second, cfg.Server.ShutdownTimeout)
}

func TestLoadYAMLThenEnvironment(t *testing.T) {
	path := filepath.Join(t.TempDir(), "quietmap.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: 5000
  shutdown_timeout: 3s
database:
  driver: Postgres
  dsn: postgres://yaml/db
  max_open_conns: 4
logging:
  format: json
`), 0o600))

	t.Setenv("PORT", "6000")
	t.Setenv("DB_CONN_MAX_LIFETIME", "90s")

	cfg, err := LoadFromPath(path)
	require.NoError(t, err)

	assert.Equal(t, 6000, cfg.Server.Port, "environment overrides file")
	assert.Equal(t, 3*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, DriverPostgres, cfg.Database.Driver)
	assert.Equal(t, "postgres://yaml/db", cfg.Database.DSN)
	assert.Equal(t, 4, cfg.Database.MaxOpenConns)
	assert.Equal(t, 90*time.Second, cfg.Database.ConnMaxLifetime)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, "info", cfg.Logging.Level, "unset keys keep defaults")
}

func TestLoadUsesEnvConfigPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "custom.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  host: 127.0.0.1\n"), 0o600))
	t.Setenv(EnvConfigPath, path)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("LOG_LEVEL=debug\n"), 0o600))

	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() {
		_ = os.Chdir(wd)
		_ = os.Unsetenv("LOG_LEVEL")
	})

	cfg, err := LoadFromPath("")
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoadErrors(t *testing.T) {
	_, err := LoadFromPath(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("server: [\n"), 0o600))
	_, err = LoadFromPath(bad)
	assert.Error(t, err)
}

func TestLoadLeavesValidationToCaller(t *testing.T) {
	t.Setenv("DB_DRIVER", "postgres")
	t.Setenv("DATABASE_URL", "")

	cfg, err := LoadFromPath("")
	require.NoError(t, err, "a dsn may still arrive from a flag")
	assert.Equal(t, DriverPostgres, cfg.Database.Driver)
	assert.Error(t, cfg.Validate())

	cfg.Database.DSN = "postgres://flag/db"
	assert.NoError(t, cfg.Validate())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"sqlite with dsn", func(c *Config) { c.Database.Driver = DriverSQLite; c.Database.DSN = "quietmap.db" }, false},
		{"pgx without dsn", func(c *Config) { c.Database.Driver = DriverPgx }, true},
		{"unknown driver", func(c *Config) { c.Database.Driver = "mongo" }, true},
		{"port too large", func(c *Config) { c.Server.Port = 70000 }, true},
		{"negative port", func(c *Config) { c.Server.Port = -1 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
