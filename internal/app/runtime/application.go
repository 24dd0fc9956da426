package runtime

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	app "github.com/R3E-Network/quietmap/internal/app"
	"github.com/R3E-Network/quietmap/internal/app/httpapi"
	"github.com/R3E-Network/quietmap/internal/app/storage"
	"github.com/R3E-Network/quietmap/internal/app/storage/memory"
	"github.com/R3E-Network/quietmap/internal/app/storage/postgres"
	"github.com/R3E-Network/quietmap/internal/app/storage/sqlite"
	"github.com/R3E-Network/quietmap/internal/config"
	"github.com/R3E-Network/quietmap/internal/platform/database"
	"github.com/R3E-Network/quietmap/internal/platform/migrations"
	"github.com/R3E-Network/quietmap/pkg/logger"
)

const defaultShutdownTimeout = 10 * time.Second

// Application wires core dependencies and manages the HTTP server lifecycle.
type Application struct {
	cfg        *config.Config
	log        *logger.Logger
	app        *app.Application
	store      storage.Store
	httpServer *http.Server

	mu       sync.Mutex
	listener net.Listener
}

// NewApplication opens the configured store, builds the services and the
// HTTP handler. The store is opened once here and closed by Shutdown.
func NewApplication(ctx context.Context, cfg *config.Config) (*Application, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	log := logger.New(logger.LoggingConfig{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})

	store, err := buildStore(ctx, cfg.Database, log)
	if err != nil {
		return nil, fmt.Errorf("configure store: %w", err)
	}

	application, err := app.New(app.Stores{Places: store, Measurements: store, Health: store}, log.Named("app"))
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	httpSrv := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           httpapi.NewHandler(application, log.Named("httpapi")),
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      cfg.Server.WriteTimeout,
	}

	return &Application{
		cfg:        cfg,
		log:        log,
		app:        application,
		store:      store,
		httpServer: httpSrv,
	}, nil
}

// App exposes the composed application, mainly for tests.
func (a *Application) App() *app.Application {
	return a.app
}

// Handler returns the HTTP handler served by Run.
func (a *Application) Handler() http.Handler {
	return a.httpServer.Handler
}

// Addr returns the bound listen address once Run has started, or the
// configured address before that.
func (a *Application) Addr() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.listener != nil {
		return a.listener.Addr().String()
	}
	return a.httpServer.Addr
}

// Run starts the HTTP server and blocks until the context is cancelled or the
// server fails.
func (a *Application) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", a.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", a.httpServer.Addr, err)
	}
	a.mu.Lock()
	a.listener = ln
	a.mu.Unlock()

	errCh := make(chan error, 1)
	go func() {
		a.log.WithField("addr", ln.Addr().String()).
			WithField("driver", a.cfg.Database.Driver).
			Info("HTTP server listening")
		if err := a.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		return err
	}
}

// Shutdown gracefully stops the HTTP server and closes the store.
func (a *Application) Shutdown(ctx context.Context) error {
	timeout := a.cfg.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = defaultShutdownTimeout
	}
	shutdownCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
		return err
	}

	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.WithError(err).Warn("error closing store")
		}
	}
	a.log.Info("shutdown complete")
	return nil
}

func buildStore(ctx context.Context, cfg config.DatabaseConfig, log *logger.Logger) (storage.Store, error) {
	switch cfg.Driver {
	case config.DriverMemory, "":
		log.Warn("using in-memory store; data is lost on restart")
		return memory.New(), nil
	case config.DriverPostgres, config.DriverPgx:
		db, err := database.Open(ctx, cfg)
		if err != nil {
			return nil, err
		}
		if cfg.AutoMigrate {
			if err := migrations.Up(ctx, db, log.Named("migrations")); err != nil {
				_ = db.Close()
				return nil, err
			}
		}
		return postgres.Wrap(db, cfg.Driver), nil
	case config.DriverSQLite:
		return sqlite.Open(cfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}
