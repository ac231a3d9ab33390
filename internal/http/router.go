// Package httpapi assembles the service's HTTP surface: the faucet routes,
// health, and metrics.
package httpapi

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	faucethandler "faucetd/internal/faucet/handler"
	"faucetd/internal/platform/middleware"
	"faucetd/pkg/platform/middleware/metadata"
)

// NewRouter wires the shared middleware chain and mounts all routes.
func NewRouter(h *faucethandler.Handler, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recovery(logger))
	r.Use(middleware.RequestID)
	r.Use(metadata.ClientMetadata)
	r.Use(middleware.Logger(logger))
	r.Use(middleware.ContentTypeJSON)

	h.Register(r)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	return r
}
