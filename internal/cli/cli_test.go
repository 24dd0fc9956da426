package cli

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	app "github.com/R3E-Network/quietmap/internal/app"
	"github.com/R3E-Network/quietmap/internal/app/domain/place"
	"github.com/R3E-Network/quietmap/internal/app/httpapi"
	"github.com/R3E-Network/quietmap/internal/config"
	"github.com/R3E-Network/quietmap/pkg/logger"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestVersionCommand(t *testing.T) {
	Version = "1.2.3"
	t.Cleanup(func() { Version = "dev" })

	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "quietmap 1.2.3\n", out)
}

func TestMigrateRejectsNonPostgresDrivers(t *testing.T) {
	t.Setenv("DB_DRIVER", "")
	t.Setenv("DATABASE_URL", "")

	_, err := run(t, "migrate", "--driver", "sqlite", "--dsn", "quietmap.db")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "postgres only")

	_, err = run(t, "migrate")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dsn")
}

func TestServeFlagsOverrideConfig(t *testing.T) {
	cmd := newServeCommand(&rootOptions{})
	require.NoError(t, cmd.ParseFlags([]string{"--port", "5050", "--driver", "SQLite", "--dsn", "x.db", "--migrate=false"}))

	cfg := config.Default()
	opts := &serveOptions{}
	opts.port, _ = cmd.Flags().GetInt("port")
	opts.driver, _ = cmd.Flags().GetString("driver")
	opts.dsn, _ = cmd.Flags().GetString("dsn")
	opts.migrate, _ = cmd.Flags().GetBool("migrate")
	opts.apply(cmd, cfg)

	assert.Equal(t, 5050, cfg.Server.Port)
	assert.Equal(t, config.DriverSQLite, cfg.Database.Driver)
	assert.Equal(t, "x.db", cfg.Database.DSN)
	assert.False(t, cfg.Database.AutoMigrate)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host, "unset flags keep config values")
}

func TestServeDSNFlagCompletesEnvironmentConfig(t *testing.T) {
	t.Setenv(config.EnvConfigPath, "")
	t.Setenv("DB_DRIVER", "postgres")
	t.Setenv("DATABASE_URL", "")

	root := &rootOptions{}
	cfg, err := root.load()
	require.NoError(t, err)

	cmd := newServeCommand(root)
	require.NoError(t, cmd.ParseFlags([]string{"--dsn", "postgres://flag/db"}))
	opts := &serveOptions{}
	opts.dsn, _ = cmd.Flags().GetString("dsn")
	opts.apply(cmd, cfg)

	assert.Equal(t, config.DriverPostgres, cfg.Database.Driver)
	assert.Equal(t, "postgres://flag/db", cfg.Database.DSN)
	assert.NoError(t, cfg.Validate())
}

func TestServeRejectsInvalidConfig(t *testing.T) {
	t.Setenv("DB_DRIVER", "")
	t.Setenv("DATABASE_URL", "")

	_, err := run(t, "serve", "--driver", "postgres")
	require.Error(t, err)
}

func TestPlaceCommandsAgainstServer(t *testing.T) {
	application, err := app.New(app.Stores{}, logger.Discard())
	require.NoError(t, err)
	server := httptest.NewServer(httpapi.NewHandler(application, logger.Discard()))
	defer server.Close()

	out, err := run(t, "place", "create", "Quiet Café", "52.5", "13.4", "--hasWifi", "--json", "--server", server.URL)
	require.NoError(t, err)
	var created place.Place
	require.NoError(t, json.Unmarshal([]byte(out), &created))
	assert.True(t, created.HasWifi)
	assert.False(t, created.IsPremium)

	for _, v := range []string{"30", "50"} {
		_, err = run(t, "measurement", "add", created.ID, v, "--server", server.URL)
		require.NoError(t, err)
	}

	out, err = run(t, "place", "list", "--server", server.URL)
	require.NoError(t, err)
	assert.Contains(t, out, "Quiet Café")
	assert.Contains(t, out, "40.0")

	_, err = run(t, "measurement", "add", created.ID, "loud", "--server", server.URL)
	assert.Error(t, err)

	_, err = run(t, "place", "create", "", "1", "2", "--server", server.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "BAD_REQUEST")
}
