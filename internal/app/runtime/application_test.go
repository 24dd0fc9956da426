package runtime

import (
	"context"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/R3E-Network/quietmap/internal/config"
)

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Server.Host = "127.0.0.1"
	cfg.Server.Port = 0
	cfg.Logging.Output = "discard"
	cfg.Server.ShutdownTimeout = 2 * time.Second
	return cfg
}

func TestApplicationRunAndShutdown(t *testing.T) {
	application, err := NewApplication(context.Background(), testConfig())
	if err != nil {
		t.Fatalf("new application: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- application.Run(ctx) }()

	var resp *http.Response
	deadline := time.Now().Add(2 * time.Second)
	for {
		if addr := application.Addr(); !strings.HasSuffix(addr, ":0") {
			resp, err = http.Get("http://" + addr + "/")
			if err == nil {
				break
			}
		}
		if time.Now().After(deadline) {
			t.Fatalf("server did not start: %v", err)
		}
		time.Sleep(20 * time.Millisecond)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || string(body) != "Quiet Map API Service" {
		t.Fatalf("unexpected root response %d %q", resp.StatusCode, body)
	}

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("run: %v", err)
	}
	if err := application.Shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
}

func TestApplicationSQLiteStore(t *testing.T) {
	cfg := testConfig()
	cfg.Database.Driver = config.DriverSQLite
	cfg.Database.DSN = filepath.Join(t.TempDir(), "quietmap.db")

	application, err := NewApplication(context.Background(), cfg)
	if err != nil {
		t.Fatalf("new application: %v", err)
	}
	defer application.Shutdown(context.Background())

	if err := application.App().Ping(context.Background()); err != nil {
		t.Fatalf("ping sqlite: %v", err)
	}
}

func TestNewApplicationRejectsInvalidConfig(t *testing.T) {
	cfg := testConfig()
	cfg.Database.Driver = config.DriverPostgres
	cfg.Database.DSN = ""

	if _, err := NewApplication(context.Background(), cfg); err == nil {
		t.Fatalf("expected error for postgres without dsn")
	}

	cfg.Database.Driver = "cassandra"
	if _, err := NewApplication(context.Background(), cfg); err == nil {
		t.Fatalf("expected error for unknown driver")
	}
}
