// Package server wires the tile service behind a chi router.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/eocis/cubetile/internal/config"
	"github.com/eocis/cubetile/internal/metrics"
	"github.com/eocis/cubetile/internal/middleware"
	"github.com/eocis/cubetile/internal/service"
)

func NewRouter(cfg config.Config, svc *service.Service, prov *metrics.Provider, zl *zerolog.Logger) http.Handler {
	h := &handlers{svc: svc, zl: zl}

	r := chi.NewRouter()
	r.Use(middleware.Recover(zl))
	r.Use(middleware.RequestID())
	r.Use(middleware.Logging(zl))
	r.Use(middleware.CORS())

	r.Get("/healthz", liveness)
	if cfg.MetricsEnabled && prov != nil {
		r.Method(http.MethodGet, cfg.MetricsPath, prov.Handler())
	}

	r.Get("/layers", h.layers)
	r.Get("/tiles/{layer}/{time}/{z}/{x}/{y}.png", h.tile)
	r.Get("/legend/{layer}.png", h.legend)
	r.Get("/metadata", h.metadata)

	return r
}

func liveness(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func Run(ctx context.Context, cfg config.Config, handler http.Handler, zl *zerolog.Logger) error {
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		zl.Info().Str("addr", cfg.Addr).Msg("http listen")
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return nil
	case err := <-errCh:
		return err
	}
}
