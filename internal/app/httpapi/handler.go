package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	app "github.com/R3E-Network/quietmap/internal/app"
	"github.com/R3E-Network/quietmap/internal/app/metrics"
	svcerrors "github.com/R3E-Network/quietmap/internal/errors"
	"github.com/R3E-Network/quietmap/internal/middleware"
	"github.com/R3E-Network/quietmap/pkg/logger"
)

const (
	serviceBanner = "Quiet Map API Service"
	healthTimeout = 2 * time.Second
)

// handler bundles HTTP endpoints for the application services.
type handler struct {
	app *app.Application
	log *logger.Logger
}

// NewHandler returns the full HTTP surface: the RPC gateway under /trpc plus
// liveness, health and metrics routes, wrapped with CORS, request logging
// and metrics instrumentation.
func NewHandler(application *app.Application, log *logger.Logger) http.Handler {
	if log == nil {
		log = logger.NewDefault("httpapi")
	}
	h := &handler{app: application, log: log}
	gw := newGateway(application.Places, log.Named("rpc"))

	router := mux.NewRouter()
	router.HandleFunc("/", h.root).Methods(http.MethodGet)
	router.HandleFunc("/healthz", h.health).Methods(http.MethodGet)
	router.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)
	router.HandleFunc("/trpc/{procedures}", gw.serve)
	router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, gw.failure("", svcerrors.NotFound("route "+r.URL.Path)))
	})
	router.Use(middleware.LoggingMiddleware(log.Named("http")))

	return middleware.NewCORSMiddleware([]string{"*"}).Handler(metrics.InstrumentHandler(router))
}

func (h *handler) root(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(serviceBanner))
}

func (h *handler) health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
	defer cancel()

	if err := h.app.Ping(ctx); err != nil {
		h.log.WithError(err).Warn("health check failed")
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
